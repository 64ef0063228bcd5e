package erd

import "testing"

func TestStripSide(t *testing.T) {
	tests := []struct {
		name   string
		handle string
		want   string
	}{
		{"right side", "users-id-right", "users-id"},
		{"left side", "users-id-left", "users-id"},
		{"uppercase side", "users-id-RIGHT", "users-id"},
		{"mixed case side", "users-id-Left", "users-id"},
		{"no side suffix", "users-id", "users-id"},
		{"hyphenated field id", "user-profile-avatar_url-left", "user-profile-avatar_url"},
		{"empty", "", ""},
		{"bare side word", "left", "left"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripSide(tt.handle); got != tt.want {
				t.Errorf("StripSide(%q) = %q, want %q", tt.handle, got, tt.want)
			}
		})
	}
}

func TestForceSide(t *testing.T) {
	tests := []struct {
		name   string
		handle string
		side   Side
		want   string
	}{
		{"add right to bare id", "users-id", SideRight, "users-id-right"},
		{"add left to bare id", "users-id", SideLeft, "users-id-left"},
		{"flip left to right", "users-id-left", SideRight, "users-id-right"},
		{"flip right to left", "users-id-right", SideLeft, "users-id-left"},
		{"idempotent", "users-id-right", SideRight, "users-id-right"},
		{"empty passes through", "", SideRight, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ForceSide(tt.handle, tt.side); got != tt.want {
				t.Errorf("ForceSide(%q, %q) = %q, want %q", tt.handle, tt.side, got, tt.want)
			}
		})
	}
}

func TestForceSideStripSideRoundTrip(t *testing.T) {
	fieldIDs := []string{"users-id", "a", "order_items-order_id", "user-profile-id"}
	for _, id := range fieldIDs {
		for _, side := range []Side{SideLeft, SideRight} {
			if got := StripSide(ForceSide(id, side)); got != id {
				t.Errorf("StripSide(ForceSide(%q, %q)) = %q, want %q", id, side, got, id)
			}
		}
	}
}

func TestParseHandle(t *testing.T) {
	tests := []struct {
		name       string
		handle     string
		wantTable  string
		wantColumn string
		wantNil    bool
	}{
		{"canonical", "users-id-right", "users", "id", false},
		{"left side", "posts-user_id-left", "posts", "user_id", false},
		{"hyphenated table name", "user-profiles-id-left", "user-profiles", "id", false},
		{"no side marker", "users-id", "", "", true},
		{"missing column segment", "users-right", "", "", true},
		{"empty", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseHandle(tt.handle)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("ParseHandle(%q) = %+v, want nil", tt.handle, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("ParseHandle(%q) = nil, want {%s %s}", tt.handle, tt.wantTable, tt.wantColumn)
			}
			if got.Table != tt.wantTable || got.Column != tt.wantColumn {
				t.Errorf("ParseHandle(%q) = {%s %s}, want {%s %s}",
					tt.handle, got.Table, got.Column, tt.wantTable, tt.wantColumn)
			}
		})
	}
}
