package greenlight

import (
	"log/slog"
	"strings"

	"github.com/freightpilot/greenlight/internal/models"
)

// aliasPrefix marks a cargo identifier that is already the canonical
// exchange cross-reference. Identifiers carrying it are used as-is.
const aliasPrefix = "BM-"

// Inventory is the subset of the inventory store the coordinator needs for
// alias resolution and publish-duration lookup.
type Inventory interface {
	GetCargoDoc(user string) (models.CargoDoc, error)
}

// ResolveCargoKey computes the storage key for a user's work on one cargo,
// so every endpoint lands on the same record regardless of which identifier
// the page exposed.
//
// If the raw id already carries the alias prefix the key is the raw id.
// Otherwise a supplied bm id wins; failing that, the user's inventory is
// searched for an entry whose trailing digits match the raw id's. The result
// is (cargoKey, bmID); both are empty when nothing resolves, and callers
// must skip coordination for an empty key.
func ResolveCargoKey(inv Inventory, user, cargoID, bmID string) (string, string) {
	cid := strings.TrimSpace(cargoID)
	if strings.HasPrefix(strings.ToUpper(cid), aliasPrefix) {
		return cid, cid
	}

	bm := strings.TrimSpace(bmID)
	if bm == "" {
		bm = resolveAliasBySuffix(inv, user, models.DigitSuffix(cid))
	}
	if bm != "" {
		return bm, bm
	}
	return cid, ""
}

// resolveAliasBySuffix searches the user's known inventory for an identifier
// whose trailing digits match. Lookup failures resolve to "" so a flaky
// inventory backend degrades to the raw id instead of failing the request.
func resolveAliasBySuffix(inv Inventory, user, suffix string) string {
	if inv == nil || user == "" || suffix == "" {
		return ""
	}
	doc, err := inv.GetCargoDoc(user)
	if err != nil {
		slog.Debug("greenlight.resolveAliasBySuffix: inventory lookup failed", "error", err, "user", user)
		return ""
	}
	for _, id := range doc.IDs {
		if models.DigitSuffix(id) == suffix {
			return id
		}
	}
	return ""
}
