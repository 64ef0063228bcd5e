package erd

import (
	"fmt"

	"github.com/schemasketch/engine/pkg/apperrors"
	"github.com/schemasketch/engine/pkg/models"
)

// canonicalKeys maps the key spellings LLMs emit in ops to stored values.
// Anything unrecognized becomes "no key". UNIQUE survives the ops stage but
// is stripped to "no key" by the normalizer, which only retains PK and FK.
var canonicalKeys = map[string]string{
	"PK":      "PK",
	"PRIMARY": "PK",
	"FK":      "FK",
	"FOREIGN": "FK",
	"UNIQUE":  "UNIQUE",
}

// ApplyOps applies a sequence of discrete edit operations to a deep copy of
// the graph. The batch is atomic: the first failing operation aborts the
// whole batch and the original graph is returned to the caller unmodified
// (the clone is discarded). The result is loose until normalized.
func ApplyOps(g *models.Graph, ops []models.Op) (*models.Graph, error) {
	out := g.Clone()

	for i, op := range ops {
		var err error
		switch op.Op {
		case models.OpAddField:
			err = applyAddField(out, op)
		case models.OpRenameTable:
			err = applyRenameTable(out, op)
		case models.OpDeleteField:
			err = applyDeleteField(out, op)
		default:
			err = fmt.Errorf("%w: unknown operation %q", apperrors.ErrValidation, op.Op)
		}
		if err != nil {
			return nil, fmt.Errorf("op %d (%s): %w", i, op.Op, err)
		}
	}
	return out, nil
}

func applyAddField(g *models.Graph, op models.Op) error {
	node := g.FindNode(op.TableID)
	if node == nil {
		return fmt.Errorf("%w: table %q", apperrors.ErrNotFound, op.TableID)
	}
	if node.FindField(op.ID) != nil {
		return fmt.Errorf("%w: field id %q already exists in table %q", apperrors.ErrValidation, op.ID, op.TableID)
	}

	key := canonicalKeys[op.Key]
	node.Data.Schema = append(node.Data.Schema, models.Field{
		ID:       op.ID,
		Title:    op.Title,
		Type:     op.Type,
		Key:      models.FieldKey(key),
		Nullable: true,
		Default:  nil,
	})
	return nil
}

func applyRenameTable(g *models.Graph, op models.Op) error {
	node := g.FindNode(op.OldID)
	if node == nil {
		return fmt.Errorf("%w: table %q", apperrors.ErrNotFound, op.OldID)
	}
	if other := g.FindNode(op.NewID); other != nil && other != node {
		return fmt.Errorf("%w: table id %q already in use", apperrors.ErrValidation, op.NewID)
	}

	node.ID = op.NewID
	if op.NewLabel != "" {
		node.Data.Label = op.NewLabel
	}

	// Every edge referencing the old id follows the rename.
	for i := range g.Edges {
		if g.Edges[i].Source == op.OldID {
			g.Edges[i].Source = op.NewID
		}
		if g.Edges[i].Target == op.OldID {
			g.Edges[i].Target = op.NewID
		}
	}
	return nil
}

func applyDeleteField(g *models.Graph, op models.Op) error {
	node := g.FindNode(op.TableID)
	if node == nil {
		return fmt.Errorf("%w: table %q", apperrors.ErrNotFound, op.TableID)
	}

	kept := node.Data.Schema[:0:0]
	for _, f := range node.Data.Schema {
		if f.ID != op.FieldID {
			kept = append(kept, f)
		}
	}
	if len(kept) == len(node.Data.Schema) {
		return fmt.Errorf("%w: field %q in table %q", apperrors.ErrNotFound, op.FieldID, op.TableID)
	}
	node.Data.Schema = kept

	// Drop every edge anchored to the deleted field, on either side.
	keptEdges := g.Edges[:0:0]
	for _, e := range g.Edges {
		if StripSide(e.SourceHandle) == op.FieldID || StripSide(e.TargetHandle) == op.FieldID {
			continue
		}
		keptEdges = append(keptEdges, e)
	}
	g.Edges = keptEdges
	return nil
}
