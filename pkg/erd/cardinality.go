package erd

import "github.com/schemasketch/engine/pkg/models"

// DefaultMarkerStart is used when an edge omits markerStart. The parent /
// referenced side is always exactly-one by convention; many-to-many is
// modeled as a join table with two one-to-many edges.
const DefaultMarkerStart = models.MarkerOneStart

// InferMarkerEnd derives an edge's end marker from the target field's key
// role and nullability. If the target node or field cannot be resolved the
// result is many-end.
//
//	PK + nullable -> zero-to-one-end    PK + required -> one-end
//	FK + nullable -> zero-to-many-end   FK + required -> many-end
//	no key + nullable -> zero-to-many-end, required -> many-end
func InferMarkerEnd(nodes []models.Node, targetNodeID, targetHandle string) models.Marker {
	fieldID := StripSide(targetHandle)

	var field *models.Field
	for i := range nodes {
		if nodes[i].ID != targetNodeID {
			continue
		}
		field = nodes[i].FindField(fieldID)
		break
	}
	if field == nil {
		return models.MarkerManyEnd
	}

	switch field.Key {
	case models.FieldKeyForeign:
		if field.Nullable {
			return models.MarkerZeroToManyEnd
		}
		return models.MarkerManyEnd
	case models.FieldKeyPrimary:
		if field.Nullable {
			return models.MarkerZeroToOneEnd
		}
		return models.MarkerOneEnd
	default:
		if field.Nullable {
			return models.MarkerZeroToManyEnd
		}
		return models.MarkerManyEnd
	}
}
