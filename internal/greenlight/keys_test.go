package greenlight

import (
	"errors"
	"testing"

	"github.com/freightpilot/greenlight/internal/models"
)

func TestResolveCargoKey(t *testing.T) {
	inv := &fakeInventory{docs: map[string]models.CargoDoc{
		"alice": {User: "alice", IDs: []string{"BM-X-12345", "BM-Y-777"}},
	}}

	tests := []struct {
		name     string
		inv      Inventory
		user     string
		cargoID  string
		bmID     string
		wantKey  string
		wantBMID string
	}{
		{"alias passthrough", inv, "alice", "BM-Y-999", "", "BM-Y-999", "BM-Y-999"},
		{"alias passthrough lowercase", inv, "alice", "bm-y-999", "", "bm-y-999", "bm-y-999"},
		{"supplied bm wins", inv, "alice", "12345", "BM-Z-1", "BM-Z-1", "BM-Z-1"},
		{"inventory suffix match", inv, "alice", "12345", "", "BM-X-12345", "BM-X-12345"},
		{"inventory suffix match with noise", inv, "alice", "cargo 777", "", "BM-Y-777", "BM-Y-777"},
		{"no match falls back to raw id", inv, "alice", "999", "", "999", ""},
		{"no digits falls back to raw id", inv, "alice", "abc", "", "abc", ""},
		{"nil inventory falls back to raw id", nil, "alice", "12345", "", "12345", ""},
		{"empty everything", inv, "alice", "", "", "", ""},
		{"whitespace trimmed", inv, "alice", "  BM-Y-999  ", "", "BM-Y-999", "BM-Y-999"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, bm := ResolveCargoKey(tt.inv, tt.user, tt.cargoID, tt.bmID)
			if key != tt.wantKey || bm != tt.wantBMID {
				t.Errorf("ResolveCargoKey(%q, %q) = (%q, %q), want (%q, %q)",
					tt.cargoID, tt.bmID, key, bm, tt.wantKey, tt.wantBMID)
			}
		})
	}
}

func TestResolveCargoKeyInventoryError(t *testing.T) {
	inv := &fakeInventory{err: errors.New("backend unavailable")}

	key, bm := ResolveCargoKey(inv, "alice", "12345", "")
	if key != "12345" || bm != "" {
		t.Errorf("lookup failure should degrade to the raw id, got (%q, %q)", key, bm)
	}
}
