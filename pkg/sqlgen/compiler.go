package sqlgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/schemasketch/engine/pkg/erd"
	"github.com/schemasketch/engine/pkg/models"
)

// Options are the independent rendering knobs.
type Options struct {
	AddIdentity          bool   // identity/autoincrement clause on PK columns
	AddNotNull           bool   // NOT NULL on PK/FK columns
	AddFkIndexes         bool   // one CREATE INDEX per inferred FK column
	AddTimestampDefaults bool   // default-now on created_at/updated_at columns
	Schema               string // qualification prefix, used when the dialect supports schemas
}

// DefaultOptions mirrors what the export endpoint uses unless the caller
// overrides individual knobs.
func DefaultOptions() Options {
	return Options{
		AddIdentity:          true,
		AddNotNull:           true,
		AddFkIndexes:         true,
		AddTimestampDefaults: true,
	}
}

type column struct {
	name string
	typ  string
	pk   bool
	fk   bool
}

type table struct {
	name   string
	cols   []string // emission order
	byName map[string]*column
	fks    []fkConstraint
	fkSeen map[string]bool
}

type fkConstraint struct {
	column    string
	refTable  string
	refColumn string
}

// Compile walks a strict graph and renders CREATE TABLE / CREATE INDEX
// statements. Tables are keyed by node label, not node id, and sorted
// lexicographically so output is deterministic; duplicate column names
// within a label resolve last-write-wins.
func Compile(g *models.Graph, d Dialect, opts Options) string {
	tables := map[string]*table{}
	order := []string{}

	for _, n := range g.Nodes {
		t, ok := tables[n.Data.Label]
		if !ok {
			t = &table{
				name:   n.Data.Label,
				byName: map[string]*column{},
				fkSeen: map[string]bool{},
			}
			tables[n.Data.Label] = t
			order = append(order, n.Data.Label)
		}
		for _, f := range n.Data.Schema {
			col, exists := t.byName[f.Title]
			if !exists {
				col = &column{name: f.Title}
				t.byName[f.Title] = col
				t.cols = append(t.cols, f.Title)
			}
			col.typ = f.Type
			col.pk = f.Key == models.FieldKeyPrimary
			col.fk = f.Key == models.FieldKeyForeign
		}
	}
	sort.Strings(order)

	for _, e := range g.Edges {
		collectForeignKey(tables, e)
	}

	var b strings.Builder
	for _, name := range order {
		writeCreateTable(&b, tables[name], d, opts)
	}
	if opts.AddFkIndexes {
		for _, name := range order {
			writeFkIndexes(&b, tables[name], d, opts)
		}
	}
	return b.String()
}

// collectForeignKey resolves both edge endpoints via the handle codec and
// attaches a constraint to the child table. The FK side is whichever
// resolved column is flagged fk; when both or neither are flagged the
// target is treated as the child. That tie-break is a documented heuristic
// carried over from existing diagrams, not a guarantee.
func collectForeignKey(tables map[string]*table, e models.Edge) {
	src := erd.ParseHandle(e.SourceHandle)
	tgt := erd.ParseHandle(e.TargetHandle)
	if src == nil || tgt == nil {
		return
	}
	srcTable, srcOK := tables[src.Table]
	tgtTable, tgtOK := tables[tgt.Table]
	if !srcOK || !tgtOK {
		return
	}

	child, childRef, parentRef := tgtTable, tgt, src
	tgtCol := tgtTable.byName[tgt.Column]
	srcCol := srcTable.byName[src.Column]
	if (tgtCol == nil || !tgtCol.fk) && srcCol != nil && srcCol.fk {
		child, childRef, parentRef = srcTable, src, tgt
	}

	key := childRef.Column + "->" + parentRef.Table + "." + parentRef.Column
	if child.fkSeen[key] {
		return
	}
	child.fkSeen[key] = true
	child.fks = append(child.fks, fkConstraint{
		column:    childRef.Column,
		refTable:  parentRef.Table,
		refColumn: parentRef.Column,
	})
}

func qualifiedName(name string, d Dialect, opts Options) string {
	if opts.Schema != "" && d.SupportsSchemas() {
		return d.QuoteIdent(opts.Schema) + "." + d.QuoteIdent(name)
	}
	return d.QuoteIdent(name)
}

func writeCreateTable(b *strings.Builder, t *table, d Dialect, opts Options) {
	fmt.Fprintf(b, "CREATE TABLE %s (\n", qualifiedName(t.name, d, opts))

	var pkCols []string
	for _, name := range t.cols {
		if t.byName[name].pk {
			pkCols = append(pkCols, name)
		}
	}
	singlePK := len(pkCols) == 1

	lines := make([]string, 0, len(t.cols)+1+len(t.fks))
	pkInlined := false
	for _, name := range t.cols {
		col := t.byName[name]
		typ := d.MapType(safeType(col.typ))
		parts := []string{"  " + d.QuoteIdent(col.name), typ}

		inline := false
		if opts.AddIdentity && col.pk {
			clause, isInline := d.IdentityClause(typ)
			if isInline && singlePK {
				parts = append(parts, clause)
				inline = true
				pkInlined = true
			} else if !isInline && clause != "" {
				parts = append(parts, clause)
			}
		}
		if opts.AddNotNull && (col.pk || col.fk) && !inline {
			parts = append(parts, "NOT NULL")
		}
		if opts.AddTimestampDefaults && (col.name == "created_at" || col.name == "updated_at") {
			parts = append(parts, "DEFAULT "+d.NowExpr())
		}
		lines = append(lines, strings.Join(parts, " "))
	}

	if len(pkCols) > 0 && !pkInlined {
		quoted := make([]string, len(pkCols))
		for i, c := range pkCols {
			quoted[i] = d.QuoteIdent(c)
		}
		lines = append(lines, "  PRIMARY KEY ("+strings.Join(quoted, ", ")+")")
	}

	for _, fk := range t.fks {
		lines = append(lines, fmt.Sprintf("  CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
			d.QuoteIdent(fmt.Sprintf("fk_%s_%s", t.name, fk.column)),
			d.QuoteIdent(fk.column),
			qualifiedName(fk.refTable, d, opts),
			d.QuoteIdent(fk.refColumn)))
	}

	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n);\n\n")
}

func writeFkIndexes(b *strings.Builder, t *table, d Dialect, opts Options) {
	for _, fk := range t.fks {
		fmt.Fprintf(b, "CREATE INDEX %s ON %s (%s);\n",
			d.QuoteIdent(fmt.Sprintf("%s_%s_idx", t.name, fk.column)),
			qualifiedName(t.name, d, opts),
			d.QuoteIdent(fk.column))
	}
}
