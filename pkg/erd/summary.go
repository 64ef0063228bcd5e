package erd

import (
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/schemasketch/engine/pkg/models"
)

// summaryTableLimit caps how many per-table breakdowns a synthesized
// change message includes.
const summaryTableLimit = 5

// SynthesizeMessage builds a human-readable description of a generated
// graph for when the provider response did not include one: table and
// relationship counts plus a per-table field/PK/FK breakdown truncated to
// the first tables.
func SynthesizeMessage(g *models.Graph) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generated %s and %s.",
		countNoun(len(g.Nodes), "table"),
		countNoun(len(g.Edges), "relationship"))

	for i, n := range g.Nodes {
		if i >= summaryTableLimit {
			fmt.Fprintf(&b, " …and %d more.", len(g.Nodes)-summaryTableLimit)
			break
		}
		var pk, fk int
		for _, f := range n.Data.Schema {
			switch f.Key {
			case models.FieldKeyPrimary:
				pk++
			case models.FieldKeyForeign:
				fk++
			}
		}
		fmt.Fprintf(&b, " %s: %s", n.Data.Label, countNoun(len(n.Data.Schema), "field"))
		if pk > 0 || fk > 0 {
			fmt.Fprintf(&b, " (%d PK, %d FK)", pk, fk)
		}
		b.WriteString(".")
	}
	return b.String()
}

func countNoun(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %s", n, inflection.Plural(noun))
}
