// Package jsonutil provides tolerant decoding helpers for LLM-produced
// JSON, which routinely uses the wrong scalar type for a field.
package jsonutil

import (
	"encoding/json"
	"fmt"
)

// FlexibleString converts a decoded JSON value to a string, handling cases
// where LLMs return numbers or booleans instead of strings. Returns empty
// string for nil.
func FlexibleString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprintf("%t", t)
	case json.Number:
		return t.String()
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

// FlexibleBool converts a decoded JSON value to a bool, accepting the
// string spellings LLMs produce ("true", "false", "yes", "no"). Missing or
// unrecognized values fall back to def.
func FlexibleBool(v any, def bool) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch t {
		case "true", "TRUE", "True", "yes", "YES", "1":
			return true
		case "false", "FALSE", "False", "no", "NO", "0":
			return false
		}
	case float64:
		return t != 0
	}
	return def
}

// FlexibleFloat converts a decoded JSON value to a float64, accepting
// numeric strings. Missing or unrecognized values fall back to def.
func FlexibleFloat(v any, def float64) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
	case string:
		var f float64
		if _, err := fmt.Sscanf(t, "%g", &f); err == nil {
			return f
		}
	}
	return def
}

// AsObject returns v as a JSON object, or nil if it is anything else.
func AsObject(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

// AsArray returns v as a JSON array, or nil if it is anything else.
func AsArray(v any) []any {
	if a, ok := v.([]any); ok {
		return a
	}
	return nil
}
