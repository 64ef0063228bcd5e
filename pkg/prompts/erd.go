package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/schemasketch/engine/pkg/erd"
	"github.com/schemasketch/engine/pkg/models"
)

// DefaultHistoryTurns is how many trailing chat messages are included in
// the prompt when the caller does not configure a limit.
const DefaultHistoryTurns = 6

// minifiedField is the token-economical projection of a schema field.
type minifiedField struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
	Key   string `json:"key,omitempty"`
}

// minifiedTable carries only what the model needs to reason about a table.
type minifiedTable struct {
	ID     string          `json:"id"`
	Label  string          `json:"label"`
	Fields []minifiedField `json:"fields"`
}

// minifiedEdge reduces an edge to its connectivity.
type minifiedEdge struct {
	From string `json:"from"` // table.column
	To   string `json:"to"`   // table.column
}

type minifiedDiagram struct {
	Tables []minifiedTable `json:"tables"`
	Edges  []minifiedEdge  `json:"edges"`
}

// MinifyGraph projects a diagram graph down to table labels, field
// id/title/type/key, and edge connectivity, dropping positions, markers and
// other render metadata that only costs tokens.
func MinifyGraph(g *models.Graph) string {
	m := minifiedDiagram{
		Tables: make([]minifiedTable, 0, len(g.Nodes)),
		Edges:  make([]minifiedEdge, 0, len(g.Edges)),
	}

	for _, n := range g.Nodes {
		t := minifiedTable{
			ID:     n.ID,
			Label:  n.Data.Label,
			Fields: make([]minifiedField, 0, len(n.Data.Schema)),
		}
		for _, f := range n.Data.Schema {
			t.Fields = append(t.Fields, minifiedField{
				ID:    f.ID,
				Title: f.Title,
				Type:  f.Type,
				Key:   string(f.Key),
			})
		}
		m.Tables = append(m.Tables, t)
	}

	for _, e := range g.Edges {
		me := minifiedEdge{From: e.Source, To: e.Target}
		if ref := erd.ParseHandle(e.SourceHandle); ref != nil {
			me.From = ref.Table + "." + ref.Column
		}
		if ref := erd.ParseHandle(e.TargetHandle); ref != nil {
			me.To = ref.Table + "." + ref.Column
		}
		m.Edges = append(m.Edges, me)
	}

	out, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(out)
}

// BuildDiagramPrompt composes the instruction block sent to the model: the
// minified current diagram, the trailing chat turns, and the new request.
// historyTurns <= 0 uses DefaultHistoryTurns.
func BuildDiagramPrompt(g *models.Graph, chat []models.ChatMessage, request string, historyTurns int) string {
	if historyTurns <= 0 {
		historyTurns = DefaultHistoryTurns
	}

	var prompt strings.Builder

	prompt.WriteString("# Entity-Relationship Diagram Request\n\n")

	if g != nil && len(g.Nodes) > 0 {
		prompt.WriteString("## Current Diagram\n\n")
		prompt.WriteString("The user's diagram currently contains:\n\n")
		prompt.WriteString("```json\n")
		prompt.WriteString(MinifyGraph(g))
		prompt.WriteString("\n```\n\n")
	} else {
		prompt.WriteString("## Current Diagram\n\n")
		prompt.WriteString("The diagram is empty; design the schema from scratch.\n\n")
	}

	if len(chat) > 0 {
		start := len(chat) - historyTurns
		if start < 0 {
			start = 0
		}
		prompt.WriteString("## Recent Conversation\n\n")
		for _, msg := range chat[start:] {
			prompt.WriteString(fmt.Sprintf("- **%s**: %s\n", msg.Role, msg.Content))
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("## Request\n\n")
	prompt.WriteString(request)
	prompt.WriteString("\n\n")

	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString("Respond in JSON using ONE of the two shapes below.\n\n")

	prompt.WriteString("**Shape A: full replacement graph** (use for new diagrams or large restructurings):\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`{
  "nodes": [
    {
      "id": "users",
      "type": "databaseSchema",
      "position": {"x": 0, "y": 0},
      "data": {
        "label": "users",
        "schema": [
          {"id": "id", "title": "id", "type": "BIGINT", "key": "PK", "nullable": false},
          {"id": "email", "title": "email", "type": "VARCHAR(255)", "nullable": false}
        ]
      }
    }
  ],
  "edges": [
    {
      "id": "eposts-users",
      "source": "posts",
      "target": "users",
      "sourceHandle": "posts-user_id-right",
      "targetHandle": "users-id-left"
    }
  ],
  "message": "Short human-readable summary of what you built or changed."
}
`)
	prompt.WriteString("```\n\n")

	prompt.WriteString("**Shape B: operations list** (use for small incremental edits to the existing diagram):\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`{
  "ops": [
    {"op": "add_field", "tableId": "users", "id": "created_at", "title": "created_at", "type": "TIMESTAMP"},
    {"op": "rename_table", "oldId": "users", "newId": "members", "newLabel": "members"},
    {"op": "delete_field", "tableId": "posts", "fieldId": "draft"}
  ],
  "message": "Short human-readable summary of the edits."
}
`)
	prompt.WriteString("```\n\n")

	prompt.WriteString("Rules:\n")
	prompt.WriteString("- Mark key columns with `\"key\": \"PK\"` or `\"key\": \"FK\"`.\n")
	prompt.WriteString("- Edge handles follow `<table>-<column>-right` on the source and `<table>-<column>-left` on the target.\n")
	prompt.WriteString("- Use concrete SQL column types (BIGINT, VARCHAR(255), TIMESTAMP, BOOLEAN, ...).\n")
	prompt.WriteString("- Return ONLY the JSON, no additional text.\n")

	return prompt.String()
}

// BuildDiagramSystemMessage returns the system message for ERD generation.
func BuildDiagramSystemMessage() string {
	return `You are a database schema design expert. You help users build entity-relationship diagrams by producing tables, columns, keys, and foreign-key relationships as structured JSON. Prefer conventional naming (snake_case tables and columns, surrogate integer primary keys named "id", foreign keys named "<table>_id").`
}
