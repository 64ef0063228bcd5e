package models

import (
	"fmt"
	"strings"
)

// ============================================================================
// Field Keys
// ============================================================================

// FieldKey is the key role of a column. A field carries at most one role.
type FieldKey string

const (
	FieldKeyPrimary FieldKey = "PK"
	FieldKeyForeign FieldKey = "FK"
	FieldKeyNone    FieldKey = ""
)

// ============================================================================
// Edge Markers
// ============================================================================

// Marker is the cardinality annotation rendered at an edge endpoint.
type Marker string

const (
	MarkerOneStart        Marker = "one-start"
	MarkerManyStart       Marker = "many-start"
	MarkerZeroStart       Marker = "zero-start"
	MarkerZeroToOneStart  Marker = "zero-to-one-start"
	MarkerZeroToManyStart Marker = "zero-to-many-start"

	MarkerOneEnd        Marker = "one-end"
	MarkerManyEnd       Marker = "many-end"
	MarkerZeroEnd       Marker = "zero-end"
	MarkerZeroToOneEnd  Marker = "zero-to-one-end"
	MarkerZeroToManyEnd Marker = "zero-to-many-end"
)

var validStartMarkers = map[Marker]bool{
	MarkerOneStart:        true,
	MarkerManyStart:       true,
	MarkerZeroStart:       true,
	MarkerZeroToOneStart:  true,
	MarkerZeroToManyStart: true,
}

var validEndMarkers = map[Marker]bool{
	MarkerOneEnd:        true,
	MarkerManyEnd:       true,
	MarkerZeroEnd:       true,
	MarkerZeroToOneEnd:  true,
	MarkerZeroToManyEnd: true,
}

// IsValidStartMarker reports whether m is an allowed markerStart value.
func IsValidStartMarker(m Marker) bool { return validStartMarkers[m] }

// IsValidEndMarker reports whether m is an allowed markerEnd value.
func IsValidEndMarker(m Marker) bool { return validEndMarkers[m] }

// ============================================================================
// Graph Types
// ============================================================================

// NodeTypeSchema is the fixed node type in the strict/API form.
const NodeTypeSchema = "databaseSchema"

// EdgeTypeCurvy is the fixed edge type in the strict/API form.
const EdgeTypeCurvy = "superCurvyEdge"

// Field is a single column of a table node.
type Field struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Type     string   `json:"type"`
	Key      FieldKey `json:"key,omitempty"`
	Nullable bool     `json:"nullable"`
	Default  *string  `json:"default"`
	Note     string   `json:"note,omitempty"`
}

// Position is a node's canvas placement.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData carries the table label and its column list.
type NodeData struct {
	Label  string  `json:"label"`
	Schema []Field `json:"schema"`
}

// Node is one table in the diagram.
type Node struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Edge is a relationship between two table nodes. Handles identify the
// field-and-side anchor on each endpoint; by convention sourceHandle ends
// "-right" (parent side) and targetHandle ends "-left" (child side).
type Edge struct {
	ID           string         `json:"id"`
	Source       string         `json:"source"`
	Target       string         `json:"target"`
	SourceHandle string         `json:"sourceHandle"`
	TargetHandle string         `json:"targetHandle"`
	Type         string         `json:"type"`
	MarkerStart  Marker         `json:"markerStart"`
	MarkerEnd    Marker         `json:"markerEnd"`
	Data         map[string]any `json:"data"`
}

// Graph is a diagram's node/edge pair. A Graph produced by the normalizer
// satisfies Validate; anything else is treated as loose input.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// FindNode returns the node with the given id, or nil.
func (g *Graph) FindNode(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// FindField returns the field with the given id, or nil.
func (n *Node) FindField(fieldID string) *Field {
	for i := range n.Data.Schema {
		if n.Data.Schema[i].ID == fieldID {
			return &n.Data.Schema[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the graph. The patch-ops engine applies
// operations to a clone so a failed batch never leaks partial state.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		cn := n
		cn.Data.Schema = make([]Field, len(n.Data.Schema))
		copy(cn.Data.Schema, n.Data.Schema)
		for j := range cn.Data.Schema {
			if d := cn.Data.Schema[j].Default; d != nil {
				v := *d
				cn.Data.Schema[j].Default = &v
			}
		}
		out.Nodes[i] = cn
	}
	for i, e := range g.Edges {
		ce := e
		ce.Data = make(map[string]any, len(e.Data))
		for k, v := range e.Data {
			ce.Data[k] = v
		}
		out.Edges[i] = ce
	}
	return out
}

// Validate checks every strict-graph invariant. The normalizer re-validates
// its own output with this; a failure there is a server fault, not bad input.
func (g *Graph) Validate() error {
	nodeIDs := make(map[string]bool, len(g.Nodes))
	for i, n := range g.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node %d: empty id", i)
		}
		if nodeIDs[n.ID] {
			return fmt.Errorf("node %d: duplicate id %q", i, n.ID)
		}
		nodeIDs[n.ID] = true
		if n.Type != NodeTypeSchema {
			return fmt.Errorf("node %q: type must be %q, got %q", n.ID, NodeTypeSchema, n.Type)
		}
		if n.Data.Label == "" {
			return fmt.Errorf("node %q: empty label", n.ID)
		}
		if len(n.Data.Schema) == 0 {
			return fmt.Errorf("node %q: schema must have at least one field", n.ID)
		}
		fieldIDs := make(map[string]bool, len(n.Data.Schema))
		for j, f := range n.Data.Schema {
			if f.ID == "" {
				return fmt.Errorf("node %q field %d: empty id", n.ID, j)
			}
			if fieldIDs[f.ID] {
				return fmt.Errorf("node %q: duplicate field id %q", n.ID, f.ID)
			}
			fieldIDs[f.ID] = true
			if f.Title == "" {
				return fmt.Errorf("node %q field %q: empty title", n.ID, f.ID)
			}
			if f.Type == "" {
				return fmt.Errorf("node %q field %q: empty type", n.ID, f.ID)
			}
			if f.Key != FieldKeyPrimary && f.Key != FieldKeyForeign && f.Key != FieldKeyNone {
				return fmt.Errorf("node %q field %q: invalid key %q", n.ID, f.ID, f.Key)
			}
		}
	}

	edgeIDs := make(map[string]bool, len(g.Edges))
	for i, e := range g.Edges {
		if e.ID == "" {
			return fmt.Errorf("edge %d: empty id", i)
		}
		if edgeIDs[e.ID] {
			return fmt.Errorf("edge %d: duplicate id %q", i, e.ID)
		}
		edgeIDs[e.ID] = true
		if e.Type != EdgeTypeCurvy {
			return fmt.Errorf("edge %q: type must be %q, got %q", e.ID, EdgeTypeCurvy, e.Type)
		}
		if !strings.HasSuffix(e.SourceHandle, "-right") {
			return fmt.Errorf("edge %q: sourceHandle must end in -right, got %q", e.ID, e.SourceHandle)
		}
		if !strings.HasSuffix(e.TargetHandle, "-left") {
			return fmt.Errorf("edge %q: targetHandle must end in -left, got %q", e.ID, e.TargetHandle)
		}
		if !IsValidStartMarker(e.MarkerStart) {
			return fmt.Errorf("edge %q: invalid markerStart %q", e.ID, e.MarkerStart)
		}
		if !IsValidEndMarker(e.MarkerEnd) {
			return fmt.Errorf("edge %q: invalid markerEnd %q", e.ID, e.MarkerEnd)
		}
		if e.Data == nil {
			return fmt.Errorf("edge %q: nil data bag", e.ID)
		}
	}
	return nil
}
