// Package erd implements the diagram reconciliation core: the handle
// codec, cardinality inference, the normalizer that repairs loose graphs
// into strict ones, and the patch-operations engine.
package erd

import "regexp"

// Side is an edge endpoint anchor side.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Handles have the form "<fieldId>-left" or "<fieldId>-right", where the
// field id itself may contain hyphens. The canonical field id is
// "<table>-<column>", so a full handle splits as
// "<table>-<column>-(left|right)" on the last two hyphen segments.
var (
	sidePattern   = regexp.MustCompile(`(?i)-(left|right)$`)
	handlePattern = regexp.MustCompile(`^(.*?)-([^-]+)-(left|right)$`)
)

// StripSide removes a trailing -left or -right (case-insensitive) from a
// handle, leaving the field id. Empty input passes through unchanged.
func StripSide(handle string) string {
	if handle == "" {
		return ""
	}
	return sidePattern.ReplaceAllString(handle, "")
}

// ForceSide strips any existing side suffix and appends the requested
// side. Empty input passes through unchanged.
func ForceSide(handle string, side Side) string {
	if handle == "" {
		return ""
	}
	return StripSide(handle) + "-" + string(side)
}

// HandleRef is a handle resolved to its table and column names.
type HandleRef struct {
	Table  string
	Column string
}

// ParseHandle splits a canonical "<table>-<column>-(left|right)" handle.
// The table prefix is matched non-greedily, so table or column names that
// themselves contain hyphens stay inside the prefix rather than being
// split further. Returns nil on non-matching input.
func ParseHandle(handle string) *HandleRef {
	m := handlePattern.FindStringSubmatch(handle)
	if m == nil {
		return nil
	}
	return &HandleRef{Table: m[1], Column: m[2]}
}
