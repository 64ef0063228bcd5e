package erd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/schemasketch/engine/pkg/apperrors"
	"github.com/schemasketch/engine/pkg/jsonutil"
	"github.com/schemasketch/engine/pkg/models"
)

// Normalize transforms an arbitrary, loosely-typed {nodes, edges} payload
// into a graph satisfying every strict invariant. LLM output is adversarial
// in practice: fields without types, handles without side suffixes, omitted
// markers. All of that is repaired silently; the only client error is a
// root that is not a JSON object. Centralizing the defaulting here means
// the AI path, the manual-edit path, the legacy-document upgrade path and
// the SQL-export path all get identical guarantees.
func Normalize(root any) (*models.Graph, error) {
	obj := jsonutil.AsObject(root)
	if obj == nil {
		return nil, fmt.Errorf("%w: graph payload must be a JSON object", apperrors.ErrValidation)
	}

	g := &models.Graph{
		Nodes: normalizeNodes(jsonutil.AsArray(obj["nodes"])),
	}
	g.Edges = normalizeEdges(jsonutil.AsArray(obj["edges"]), g.Nodes)

	// The defaulting above is total, so a strict-validation failure here is
	// an implementation bug, not a user error. Surface it as a server fault.
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("normalized graph failed strict validation: %w", err)
	}
	return g, nil
}

// NormalizeJSON decodes raw JSON and normalizes it. A nil/empty payload
// yields an empty graph.
func NormalizeJSON(raw []byte) (*models.Graph, error) {
	if len(raw) == 0 {
		return Normalize(map[string]any{})
	}
	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("%w: graph payload is not valid JSON: %v", apperrors.ErrValidation, err)
	}
	return Normalize(root)
}

// NormalizeGraph runs an already-typed graph through the same pipeline.
// Used by the manual-edit and legacy-upgrade paths so there is a single
// source of truth for what a valid graph looks like.
func NormalizeGraph(g *models.Graph) (*models.Graph, error) {
	if g == nil {
		return Normalize(map[string]any{})
	}
	raw, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("marshal graph: %w", err)
	}
	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("decode graph: %w", err)
	}
	return Normalize(root)
}

func normalizeNodes(rawNodes []any) []models.Node {
	nodes := make([]models.Node, 0, len(rawNodes))
	seenIDs := make(map[string]bool, len(rawNodes))

	for ni, rawNode := range rawNodes {
		obj := jsonutil.AsObject(rawNode)
		if obj == nil {
			obj = map[string]any{}
		}

		node := models.Node{
			ID:   strings.TrimSpace(jsonutil.FlexibleString(obj["id"])),
			Type: models.NodeTypeSchema,
		}
		if node.ID == "" {
			node.ID = fmt.Sprintf("node_%d", ni+1)
		}
		// Duplicate node ids would fail strict validation; disambiguate
		// rather than drop.
		node.ID = uniqueID(seenIDs, node.ID, ni)
		seenIDs[node.ID] = true

		if pos := jsonutil.AsObject(obj["position"]); pos != nil {
			node.Position.X = jsonutil.FlexibleFloat(pos["x"], 0)
			node.Position.Y = jsonutil.FlexibleFloat(pos["y"], 0)
		}

		data := jsonutil.AsObject(obj["data"])
		if data == nil {
			data = map[string]any{}
		}
		node.Data.Label = strings.TrimSpace(jsonutil.FlexibleString(data["label"]))
		if node.Data.Label == "" {
			node.Data.Label = "Table"
		}
		node.Data.Schema = normalizeFields(jsonutil.AsArray(data["schema"]), ni)

		nodes = append(nodes, node)
	}
	return nodes
}

func normalizeFields(rawFields []any, nodeIdx int) []models.Field {
	fields := make([]models.Field, 0, len(rawFields))
	seenIDs := make(map[string]bool, len(rawFields))

	for fi, rawField := range rawFields {
		obj := jsonutil.AsObject(rawField)
		if obj == nil {
			obj = map[string]any{}
		}

		// A record is never dropped for missing cosmetic data; synthesize
		// placeholders instead.
		f := models.Field{
			ID:       strings.TrimSpace(jsonutil.FlexibleString(obj["id"])),
			Title:    strings.TrimSpace(jsonutil.FlexibleString(obj["title"])),
			Type:     strings.TrimSpace(jsonutil.FlexibleString(obj["type"])),
			Key:      normalizeFieldKey(jsonutil.FlexibleString(obj["key"])),
			Nullable: jsonutil.FlexibleBool(obj["nullable"], true),
			Note:     jsonutil.FlexibleString(obj["note"]),
		}
		if f.ID == "" {
			f.ID = fmt.Sprintf("field_%d_%d", nodeIdx, fi)
		}
		f.ID = uniqueID(seenIDs, f.ID, fi)
		seenIDs[f.ID] = true
		if f.Title == "" {
			f.Title = fmt.Sprintf("Field_%d", fi+1)
		}
		if f.Type == "" {
			f.Type = "VARCHAR(255)"
		}
		if v, ok := obj["default"]; ok && v != nil {
			s := jsonutil.FlexibleString(v)
			f.Default = &s
		}

		fields = append(fields, f)
	}

	// Strict nodes carry at least one field.
	if len(fields) == 0 {
		fields = append(fields, models.Field{
			ID:       fmt.Sprintf("field_%d_0", nodeIdx),
			Title:    "Field_1",
			Type:     "VARCHAR(255)",
			Nullable: true,
		})
	}
	return fields
}

// uniqueID disambiguates id against seen. The suffix is extended until the
// result is unused: input may already contain any single suffixed form, so
// one pass is not enough.
func uniqueID(seen map[string]bool, id string, idx int) string {
	for seen[id] {
		id = fmt.Sprintf("%s_%d", id, idx)
	}
	return id
}

// normalizeFieldKey retains only PK and FK; anything else, including empty
// string and UNIQUE, becomes "no key".
func normalizeFieldKey(key string) models.FieldKey {
	switch strings.ToUpper(strings.TrimSpace(key)) {
	case "PK":
		return models.FieldKeyPrimary
	case "FK":
		return models.FieldKeyForeign
	default:
		return models.FieldKeyNone
	}
}

func normalizeEdges(rawEdges []any, nodes []models.Node) []models.Edge {
	edges := make([]models.Edge, 0, len(rawEdges))
	seenIDs := make(map[string]bool, len(rawEdges))

	for ei, rawEdge := range rawEdges {
		obj := jsonutil.AsObject(rawEdge)
		if obj == nil {
			obj = map[string]any{}
		}

		e := models.Edge{
			Source:       jsonutil.FlexibleString(obj["source"]),
			Target:       jsonutil.FlexibleString(obj["target"]),
			SourceHandle: ForceSide(jsonutil.FlexibleString(obj["sourceHandle"]), SideRight),
			TargetHandle: ForceSide(jsonutil.FlexibleString(obj["targetHandle"]), SideLeft),
			Type:         models.EdgeTypeCurvy,
		}
		// Handles that were absent entirely still need a valid side suffix.
		// The empty field-id prefix is intentional: "-right"/"-left" pass
		// validation, and resolvers that cannot map the prefix to a column
		// skip the edge.
		if e.SourceHandle == "" {
			e.SourceHandle = "-right"
		}
		if e.TargetHandle == "" {
			e.TargetHandle = "-left"
		}

		e.ID = strings.TrimSpace(jsonutil.FlexibleString(obj["id"]))
		if e.ID == "" {
			e.ID = fmt.Sprintf("e%s-%s", e.Source, e.Target)
		}
		e.ID = uniqueID(seenIDs, e.ID, ei)
		seenIDs[e.ID] = true

		if m := models.Marker(jsonutil.FlexibleString(obj["markerStart"])); models.IsValidStartMarker(m) {
			e.MarkerStart = m
		} else {
			e.MarkerStart = DefaultMarkerStart
		}
		if m := models.Marker(jsonutil.FlexibleString(obj["markerEnd"])); models.IsValidEndMarker(m) {
			e.MarkerEnd = m
		} else {
			// Lookup runs against the already-processed node table so the
			// inference sees repaired field metadata.
			e.MarkerEnd = InferMarkerEnd(nodes, e.Target, e.TargetHandle)
		}

		if data := jsonutil.AsObject(obj["data"]); data != nil {
			e.Data = data
		} else {
			e.Data = map[string]any{}
		}

		edges = append(edges, e)
	}
	return edges
}
