package erd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemasketch/engine/pkg/apperrors"
	"github.com/schemasketch/engine/pkg/models"
)

func opsFixture() *models.Graph {
	return &models.Graph{
		Nodes: []models.Node{
			{
				ID:   "users",
				Type: models.NodeTypeSchema,
				Data: models.NodeData{Label: "users", Schema: []models.Field{
					{ID: "users-id", Title: "id", Type: "INT", Key: models.FieldKeyPrimary},
				}},
			},
			{
				ID:   "posts",
				Type: models.NodeTypeSchema,
				Data: models.NodeData{Label: "posts", Schema: []models.Field{
					{ID: "posts-id", Title: "id", Type: "INT", Key: models.FieldKeyPrimary},
					{ID: "posts-user_id", Title: "user_id", Type: "INT", Key: models.FieldKeyForeign},
				}},
			},
		},
		Edges: []models.Edge{
			{
				ID: "eusers-posts", Source: "users", Target: "posts",
				SourceHandle: "users-id-right", TargetHandle: "posts-user_id-left",
				Type:        models.EdgeTypeCurvy,
				MarkerStart: models.MarkerOneStart, MarkerEnd: models.MarkerManyEnd,
				Data: map[string]any{},
			},
		},
	}
}

func TestApplyOps_AddField(t *testing.T) {
	g := opsFixture()
	out, err := ApplyOps(g, []models.Op{
		{Op: models.OpAddField, TableID: "users", ID: "users-email", Title: "email", Type: "VARCHAR(255)", Key: "UNIQUE"},
	})
	require.NoError(t, err)

	node := out.FindNode("users")
	require.NotNil(t, node)
	require.Len(t, node.Data.Schema, 2)
	f := node.Data.Schema[1]
	assert.Equal(t, "users-email", f.ID)
	assert.Equal(t, models.FieldKey("UNIQUE"), f.Key)
	assert.True(t, f.Nullable)
	assert.Nil(t, f.Default)

	// Original untouched.
	assert.Len(t, g.FindNode("users").Data.Schema, 1)
}

func TestApplyOps_AddFieldKeyCanonicalization(t *testing.T) {
	tests := []struct {
		in   string
		want models.FieldKey
	}{
		{"PRIMARY", models.FieldKeyPrimary},
		{"PK", models.FieldKeyPrimary},
		{"FOREIGN", models.FieldKeyForeign},
		{"FK", models.FieldKeyForeign},
		{"UNIQUE", models.FieldKey("UNIQUE")},
		{"banana", models.FieldKeyNone},
		{"", models.FieldKeyNone},
	}
	for _, tt := range tests {
		out, err := ApplyOps(opsFixture(), []models.Op{
			{Op: models.OpAddField, TableID: "users", ID: "users-x", Title: "x", Type: "INT", Key: tt.in},
		})
		require.NoError(t, err)
		assert.Equal(t, tt.want, out.FindNode("users").Data.Schema[1].Key, "key %q", tt.in)
	}
}

func TestApplyOps_AddFieldErrors(t *testing.T) {
	_, err := ApplyOps(opsFixture(), []models.Op{
		{Op: models.OpAddField, TableID: "missing", ID: "x", Title: "x", Type: "INT"},
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = ApplyOps(opsFixture(), []models.Op{
		{Op: models.OpAddField, TableID: "users", ID: "users-id", Title: "dup", Type: "INT"},
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestApplyOps_RenameTablePropagation(t *testing.T) {
	out, err := ApplyOps(opsFixture(), []models.Op{
		{Op: models.OpRenameTable, OldID: "users", NewID: "accounts", NewLabel: "accounts"},
	})
	require.NoError(t, err)

	assert.Nil(t, out.FindNode("users"))
	node := out.FindNode("accounts")
	require.NotNil(t, node)
	assert.Equal(t, "accounts", node.Data.Label)

	// Zero remaining references to the old id in any edge.
	for _, e := range out.Edges {
		assert.NotEqual(t, "users", e.Source)
		assert.NotEqual(t, "users", e.Target)
	}
	assert.Equal(t, "accounts", out.Edges[0].Source)
}

func TestApplyOps_RenameTableErrors(t *testing.T) {
	_, err := ApplyOps(opsFixture(), []models.Op{
		{Op: models.OpRenameTable, OldID: "missing", NewID: "x"},
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = ApplyOps(opsFixture(), []models.Op{
		{Op: models.OpRenameTable, OldID: "users", NewID: "posts"},
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestApplyOps_DeleteFieldRemovesAnchoredEdges(t *testing.T) {
	out, err := ApplyOps(opsFixture(), []models.Op{
		{Op: models.OpDeleteField, TableID: "posts", FieldID: "posts-user_id"},
	})
	require.NoError(t, err)

	assert.Len(t, out.FindNode("posts").Data.Schema, 1)
	assert.Empty(t, out.Edges, "edge anchored to the deleted field is removed")
}

func TestApplyOps_DeleteFieldSourceSideMatch(t *testing.T) {
	out, err := ApplyOps(opsFixture(), []models.Op{
		{Op: models.OpDeleteField, TableID: "users", FieldID: "users-id"},
	})
	require.NoError(t, err)
	assert.Empty(t, out.Edges, "source-handle anchor is checked too")
}

func TestApplyOps_BatchAtomicity(t *testing.T) {
	g := opsFixture()
	_, err := ApplyOps(g, []models.Op{
		{Op: models.OpAddField, TableID: "users", ID: "users-email", Title: "email", Type: "VARCHAR(255)"},
		{Op: models.OpDeleteField, TableID: "users", FieldID: "does-not-exist"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// No partial application: the valid add_field must not survive.
	assert.Len(t, g.FindNode("users").Data.Schema, 1)
	assert.Len(t, g.Edges, 1)
}

func TestApplyOps_UnknownOp(t *testing.T) {
	_, err := ApplyOps(opsFixture(), []models.Op{{Op: "explode_table"}})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
