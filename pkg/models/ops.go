package models

import "encoding/json"

// ============================================================================
// Patch Operations
// ============================================================================

// OpType discriminates the patch operations an AI response may return
// instead of a full replacement graph.
type OpType string

const (
	OpAddField    OpType = "add_field"
	OpRenameTable OpType = "rename_table"
	OpDeleteField OpType = "delete_field"
)

// Op is one discrete edit operation. Which fields are meaningful depends
// on Op; unknown operations fail the whole batch.
type Op struct {
	Op OpType `json:"op"`

	// add_field / delete_field
	TableID string `json:"tableId,omitempty"`

	// add_field
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
	Type  string `json:"type,omitempty"`
	Key   string `json:"key,omitempty"`

	// rename_table
	OldID    string `json:"oldId,omitempty"`
	NewID    string `json:"newId,omitempty"`
	NewLabel string `json:"newLabel,omitempty"`

	// delete_field
	FieldID string `json:"fieldId,omitempty"`
}

// ============================================================================
// AI Response Union
// ============================================================================

// AIResponse is the parsed provider payload: either an ops list or a full
// replacement graph, discriminated by the presence of Ops. Nodes/Edges are
// kept raw because provider output is loose until the normalizer has run.
type AIResponse struct {
	Nodes   json.RawMessage `json:"nodes,omitempty"`
	Edges   json.RawMessage `json:"edges,omitempty"`
	Ops     []Op            `json:"ops,omitempty"`
	Message string          `json:"message,omitempty"`
}

// IsOps reports whether the response carries a diff-style ops list.
func (r *AIResponse) IsOps() bool { return len(r.Ops) > 0 }
