package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlexibleString(t *testing.T) {
	assert.Equal(t, "", FlexibleString(nil))
	assert.Equal(t, "id", FlexibleString("id"))
	assert.Equal(t, "42", FlexibleString(float64(42)))
	assert.Equal(t, "4.5", FlexibleString(4.5))
	assert.Equal(t, "true", FlexibleString(true))
	assert.Equal(t, "7", FlexibleString(json.Number("7")))
	assert.Equal(t, `["a"]`, FlexibleString([]any{"a"}))
}

func TestFlexibleBool(t *testing.T) {
	assert.True(t, FlexibleBool(true, false))
	assert.True(t, FlexibleBool("yes", false))
	assert.True(t, FlexibleBool("True", false))
	assert.False(t, FlexibleBool("no", true))
	assert.True(t, FlexibleBool(float64(1), false))
	assert.False(t, FlexibleBool(float64(0), true))
	assert.True(t, FlexibleBool("garbage", true), "unrecognized falls back to default")
	assert.False(t, FlexibleBool(nil, false))
}

func TestFlexibleFloat(t *testing.T) {
	assert.Equal(t, 1.5, FlexibleFloat(1.5, 0))
	assert.Equal(t, 3.0, FlexibleFloat("3", 0))
	assert.Equal(t, 2.5, FlexibleFloat(json.Number("2.5"), 0))
	assert.Equal(t, 9.0, FlexibleFloat(nil, 9))
	assert.Equal(t, 9.0, FlexibleFloat("not a number", 9))
}

func TestAsObjectAndAsArray(t *testing.T) {
	obj := map[string]any{"k": "v"}
	assert.Equal(t, obj, AsObject(obj))
	assert.Nil(t, AsObject("nope"))

	arr := []any{1.0}
	assert.Equal(t, arr, AsArray(arr))
	assert.Nil(t, AsArray(obj))
}
