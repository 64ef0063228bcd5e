package erd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemasketch/engine/pkg/apperrors"
	"github.com/schemasketch/engine/pkg/models"
)

func TestNormalize_NonObjectRoot(t *testing.T) {
	for _, root := range []any{nil, "nope", 42.0, []any{1, 2}, true} {
		_, err := Normalize(root)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	}
}

func TestNormalize_EmptyObject(t *testing.T) {
	g, err := Normalize(map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Edges)
}

// End-to-end repair of a typical loose AI payload: node without position,
// single well-formed field, no edges.
func TestNormalize_LooseAIPayload(t *testing.T) {
	raw := `{"nodes":[{"id":"1","type":"databaseSchema","data":{"label":"Author","schema":[{"id":"author-id","title":"id","type":"INT","key":"PK"}]}}],"edges":[]}`

	g, err := NormalizeJSON([]byte(raw))
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)
	assert.Empty(t, g.Edges)

	n := g.Nodes[0]
	assert.Equal(t, "1", n.ID)
	assert.Equal(t, models.NodeTypeSchema, n.Type)
	assert.Equal(t, models.Position{X: 0, Y: 0}, n.Position)
	assert.Equal(t, "Author", n.Data.Label)
	require.Len(t, n.Data.Schema, 1)
	f := n.Data.Schema[0]
	assert.Equal(t, "author-id", f.ID)
	assert.Equal(t, "id", f.Title)
	assert.Equal(t, "INT", f.Type)
	assert.Equal(t, models.FieldKeyPrimary, f.Key)
}

func TestNormalize_DefaultsMissingNodeData(t *testing.T) {
	g, err := NormalizeJSON([]byte(`{"nodes":[{"id":"a"}]}`))
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)

	n := g.Nodes[0]
	assert.Equal(t, "Table", n.Data.Label)
	// Strict nodes carry at least one field, so an empty schema gains a
	// synthetic placeholder.
	require.Len(t, n.Data.Schema, 1)
	assert.Equal(t, "field_0_0", n.Data.Schema[0].ID)
	assert.Equal(t, "Field_1", n.Data.Schema[0].Title)
	assert.Equal(t, "VARCHAR(255)", n.Data.Schema[0].Type)
	assert.True(t, n.Data.Schema[0].Nullable)
}

func TestNormalize_FieldPlaceholders(t *testing.T) {
	raw := `{"nodes":[{"id":"a","data":{"label":"Users","schema":[{},{"title":"email"}]}}]}`
	g, err := NormalizeJSON([]byte(raw))
	require.NoError(t, err)

	schema := g.Nodes[0].Data.Schema
	require.Len(t, schema, 2)
	assert.Equal(t, "field_0_0", schema[0].ID)
	assert.Equal(t, "Field_1", schema[0].Title)
	assert.Equal(t, "VARCHAR(255)", schema[0].Type)
	assert.Equal(t, "field_0_1", schema[1].ID)
	assert.Equal(t, "email", schema[1].Title)
}

func TestNormalize_KeyRetention(t *testing.T) {
	raw := `{"nodes":[{"id":"a","data":{"label":"T","schema":[
		{"id":"a-1","title":"f1","type":"INT","key":"PK"},
		{"id":"a-2","title":"f2","type":"INT","key":"FK"},
		{"id":"a-3","title":"f3","type":"INT","key":"UNIQUE"},
		{"id":"a-4","title":"f4","type":"INT","key":""},
		{"id":"a-5","title":"f5","type":"INT","key":"banana"}]}}]}`
	g, err := NormalizeJSON([]byte(raw))
	require.NoError(t, err)

	schema := g.Nodes[0].Data.Schema
	assert.Equal(t, models.FieldKeyPrimary, schema[0].Key)
	assert.Equal(t, models.FieldKeyForeign, schema[1].Key)
	assert.Equal(t, models.FieldKeyNone, schema[2].Key)
	assert.Equal(t, models.FieldKeyNone, schema[3].Key)
	assert.Equal(t, models.FieldKeyNone, schema[4].Key)
}

func TestNormalize_EdgeRepair(t *testing.T) {
	raw := `{"nodes":[
		{"id":"users","data":{"label":"users","schema":[{"id":"users-id","title":"id","type":"INT","key":"PK","nullable":false}]}},
		{"id":"posts","data":{"label":"posts","schema":[{"id":"posts-user_id","title":"user_id","type":"INT","key":"FK","nullable":true}]}}],
		"edges":[{"source":"users","target":"posts","sourceHandle":"users-id","targetHandle":"posts-user_id-right"}]}`

	g, err := NormalizeJSON([]byte(raw))
	require.NoError(t, err)
	require.Len(t, g.Edges, 1)

	e := g.Edges[0]
	assert.Equal(t, "eusers-posts", e.ID)
	assert.Equal(t, "users-id-right", e.SourceHandle, "sourceHandle forced to -right")
	assert.Equal(t, "posts-user_id-left", e.TargetHandle, "targetHandle forced to -left")
	assert.Equal(t, models.EdgeTypeCurvy, e.Type)
	assert.Equal(t, models.MarkerOneStart, e.MarkerStart)
	// Inferred from the already-processed target field: FK + nullable.
	assert.Equal(t, models.MarkerZeroToManyEnd, e.MarkerEnd)
	assert.NotNil(t, e.Data)
}

func TestNormalize_DuplicateIDsDisambiguated(t *testing.T) {
	raw := `{"nodes":[
		{"id":"a_2","data":{"label":"A2","schema":[{"id":"x","title":"x","type":"INT"}]}},
		{"id":"a","data":{"label":"A","schema":[{"id":"x","title":"x","type":"INT"}]}},
		{"id":"a","data":{"label":"B","schema":[{"id":"x","title":"x","type":"INT"}]}}]}`

	g, err := NormalizeJSON([]byte(raw))
	require.NoError(t, err)
	require.Len(t, g.Nodes, 3)

	seen := map[string]bool{}
	for _, n := range g.Nodes {
		assert.False(t, seen[n.ID], "node id %q assigned twice", n.ID)
		seen[n.ID] = true
	}
	// The colliding node keeps its prefix; the suffix grows past the taken
	// "a_2" form.
	assert.Equal(t, "a_2", g.Nodes[0].ID)
	assert.Equal(t, "a", g.Nodes[1].ID)
	assert.Equal(t, "a_2_2", g.Nodes[2].ID)
}

func TestNormalize_ExplicitMarkersKept(t *testing.T) {
	raw := `{"nodes":[{"id":"a","data":{"label":"A","schema":[{"id":"a-id","title":"id","type":"INT"}]}}],
		"edges":[{"id":"e1","source":"a","target":"a","sourceHandle":"a-id-right","targetHandle":"a-id-left",
		"markerStart":"zero-to-one-start","markerEnd":"one-end"}]}`

	g, err := NormalizeJSON([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, models.MarkerZeroToOneStart, g.Edges[0].MarkerStart)
	assert.Equal(t, models.MarkerOneEnd, g.Edges[0].MarkerEnd)
}

// Totality: arbitrary junk in nodes/edges never produces a partially
// invalid graph; the only error is a non-object root.
func TestNormalize_Totality(t *testing.T) {
	payloads := []string{
		`{}`,
		`{"nodes":null,"edges":null}`,
		`{"nodes":"junk","edges":42}`,
		`{"nodes":[null,1,"x",{}],"edges":[null,1,"x",{}]}`,
		`{"nodes":[{"id":5,"position":"nope","data":{"schema":"junk"}}]}`,
		`{"nodes":[{"id":"a"},{"id":"a"}],"edges":[{"id":"e"},{"id":"e"}]}`,
		`{"nodes":[{"data":{"label":"  ","schema":[{"nullable":"yes"},{"key":123}]}}]}`,
		// Ids that pre-contain the disambiguated form of a later duplicate.
		`{"nodes":[{"id":"a_2"},{"id":"a"},{"id":"a"}]}`,
		`{"nodes":[{"id":"a","data":{"schema":[{"id":"f_2"},{"id":"f"},{"id":"f"}]}}]}`,
		`{"edges":[{"id":"e_2"},{"id":"e"},{"id":"e"}]}`,
		`{"nodes":[{"id":"n"},{"id":"n"},{"id":"n_1"},{"id":"n_1_3"},{"id":"n_1"}]}`,
	}
	for _, p := range payloads {
		var root any
		require.NoError(t, json.Unmarshal([]byte(p), &root))
		g, err := Normalize(root)
		require.NoError(t, err, "payload: %s", p)
		assert.NoError(t, g.Validate(), "payload: %s", p)
	}
}
