// Package sqlgen compiles a strict ERD graph into CREATE TABLE / CREATE
// INDEX statements for a selectable SQL dialect.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/schemasketch/engine/pkg/apperrors"
)

// Dialect abstracts the renderer differences between target databases:
// identifier quoting, type-name mapping, identity clause synthesis, the
// NOW()-equivalent expression and schema qualification support.
type Dialect interface {
	Name() string
	QuoteIdent(name string) string
	MapType(raw string) string
	// IdentityClause returns the column-level identity/autoincrement clause
	// for a PK column. inlinePK reports whether the clause already declares
	// the primary key (SQLite), in which case the table-level PRIMARY KEY
	// clause is omitted for a single-column key.
	IdentityClause(colType string) (clause string, inlinePK bool)
	NowExpr() string
	SupportsSchemas() bool
}

// ParseDialect resolves a dialect name from a request parameter.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "postgres", "postgresql", "pg":
		return Postgres{}, nil
	case "mysql", "mariadb":
		return MySQL{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown SQL dialect %q", apperrors.ErrValidation, name)
	}
}

// Postgres renders PostgreSQL DDL.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (Postgres) MapType(raw string) string { return raw }

func (Postgres) IdentityClause(string) (string, bool) {
	return "GENERATED ALWAYS AS IDENTITY", false
}

func (Postgres) NowExpr() string { return "NOW()" }

func (Postgres) SupportsSchemas() bool { return true }

// MySQL renders MySQL/MariaDB DDL.
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }

func (MySQL) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (MySQL) MapType(raw string) string {
	// MySQL has no bare SERIAL-style text type aliases worth rewriting;
	// free-form types pass through.
	return raw
}

func (MySQL) IdentityClause(string) (string, bool) {
	return "AUTO_INCREMENT", false
}

func (MySQL) NowExpr() string { return "CURRENT_TIMESTAMP" }

func (MySQL) SupportsSchemas() bool { return false }

// SQLite renders SQLite DDL. Single-column integer primary keys use the
// inline INTEGER PRIMARY KEY AUTOINCREMENT form.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (SQLite) MapType(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "INT", "BIGINT", "SMALLINT":
		return "INTEGER"
	default:
		return raw
	}
}

func (SQLite) IdentityClause(colType string) (string, bool) {
	if strings.EqualFold(strings.TrimSpace(colType), "INTEGER") {
		return "PRIMARY KEY AUTOINCREMENT", true
	}
	return "", false
}

func (SQLite) NowExpr() string { return "CURRENT_TIMESTAMP" }

func (SQLite) SupportsSchemas() bool { return false }
