package greenlight

import (
	"log/slog"
	"strings"
	"time"

	"github.com/freightpilot/greenlight/internal/models"
)

// FindRecentPending scans every stored record for the user's most recent
// pending episode: armed, not pressed, ready when required, with a pending
// timestamp no older than maxAge (inclusive). Records without a pending
// timestamp are skipped rather than failing the scan. Ties on the timestamp
// break deterministically on the cargo key.
//
// The scan is linear over live keys, which stays cheap because the store is
// bounded by in-flight episodes, not history.
func (c *Coordinator) FindRecentPending(user string, maxAge time.Duration, requireReady bool) (string, models.GreenlightRecord, bool) {
	now := c.now().UTC()

	var bestKey string
	var best models.GreenlightRecord
	found := false

	for k, rec := range c.store.Snapshot() {
		if k.User != user {
			continue
		}
		if !rec.Armed || rec.PressedOnce {
			continue
		}
		if requireReady && !rec.ReadyForAutoFinalize {
			continue
		}
		if rec.PendingSince == nil {
			continue
		}
		if now.Sub(*rec.PendingSince) > maxAge {
			continue
		}
		if !found ||
			rec.PendingSince.After(*best.PendingSince) ||
			(rec.PendingSince.Equal(*best.PendingSince) && strings.Compare(k.CargoKey, bestKey) < 0) {
			found = true
			bestKey = k.CargoKey
			best = rec
		}
	}

	if !found {
		return "", models.GreenlightRecord{}, false
	}
	return bestKey, best, true
}

// AutoFinalize recovers the publish result when the explicit after-click
// report never arrived: the client only told us the publish page is empty
// again. It finalizes the user's most recent pending episode within the
// window as a success (the emptied page is the final load indicator).
//
// Returns the finalized cargo key and whether a finalize happened. It is
// best-effort by contract: callers log the error and never let it fail the
// triggering page-event response.
func (c *Coordinator) AutoFinalize(user string, maxAge time.Duration) (string, bool, error) {
	cargoKey, _, found := c.FindRecentPending(user, maxAge, true)
	if !found {
		return "", false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-read under the protocol mutex: an explicit after-click report may
	// have finalized the episode between the scan and now.
	rec, ok := c.store.Get(user, cargoKey)
	if !ok || rec.PressSuccess != nil || rec.PressedOnce {
		return cargoKey, false, nil
	}

	identity := models.RecordUpdate{
		User:     models.Ptr(user),
		CargoKey: models.Ptr(cargoKey),
	}
	phases := appendPhase(rec.PressPhases, string(models.PhaseAfterClick))
	outcome := c.finalizeLocked(rec, identity, phases, "", nil, "auto-finalize via empty page ping")

	slog.Info("Coordinator.AutoFinalize: recovered publish result",
		"cargoKey", cargoKey, "user", user, "message", outcome.Message)
	return cargoKey, true, nil
}
