package sqlgen

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// fallbackType replaces a column type that failed the injection check.
const fallbackType = "VARCHAR(255)"

// safeType guards the free-form type strings that end up verbatim in DDL.
// Field types come from client edits and LLM output, and unlike identifiers
// they cannot be quoted away, so anything libinjection flags as a SQL
// injection pattern is replaced with a neutral fallback.
func safeType(raw string) string {
	if raw == "" {
		return fallbackType
	}
	if isSQLi, _ := libinjection.IsSQLi(raw); isSQLi {
		return fallbackType
	}
	return raw
}
