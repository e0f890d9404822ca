// Package greenlight implements the publish coordination core: the per-key
// state store, the phase protocol, and the recovery scanner that infers a
// publish result when the explicit after-click report never arrives.
package greenlight

import (
	"log/slog"
	"sync"
	"time"

	"github.com/freightpilot/greenlight/internal/models"
)

// Key identifies one coordination episode slot: one user working one cargo.
type Key struct {
	User     string
	CargoKey string
}

// StateStore is the storage contract for coordination records. All methods
// are safe for unrestricted concurrent callers, and each call is atomic:
// no reader observes a partially applied update.
type StateStore interface {
	// Get returns a copy of the record for the key, or false if absent.
	Get(user, cargoKey string) (models.GreenlightRecord, bool)

	// Upsert applies the update to the record for the key. With merge the
	// update is overlaid onto the existing record; without it the record
	// is replaced wholesale by the update applied to a zero record.
	Upsert(user, cargoKey string, update models.RecordUpdate, merge bool)

	// Delete removes the record for the key. Absent keys are a no-op.
	Delete(user, cargoKey string)

	// Snapshot returns a copy of every record, taken under a single lock
	// acquisition so the recovery scanner sees a consistent view.
	Snapshot() map[Key]models.GreenlightRecord
}

// InMemoryStateStore is the process-local StateStore. Coordination state is
// short-lived (seconds), so losing it on restart is acceptable.
type InMemoryStateStore struct {
	mu      sync.Mutex
	records map[Key]*models.GreenlightRecord
	now     func() time.Time
}

// NewInMemoryStateStore creates an empty in-memory state store.
func NewInMemoryStateStore() *InMemoryStateStore {
	return &InMemoryStateStore{
		records: make(map[Key]*models.GreenlightRecord),
		now:     time.Now,
	}
}

// Get returns a copy of the record for (user, cargoKey), or false if absent.
func (s *InMemoryStateStore) Get(user, cargoKey string) (models.GreenlightRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[Key{User: user, CargoKey: cargoKey}]
	if !ok {
		return models.GreenlightRecord{}, false
	}
	return rec.Clone(), true
}

// Upsert applies the update atomically, creating the record if needed.
func (s *InMemoryStateStore) Upsert(user, cargoKey string, update models.RecordUpdate, merge bool) {
	k := Key{User: user, CargoKey: cargoKey}
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	var rec models.GreenlightRecord
	if existing, ok := s.records[k]; ok && merge {
		rec = existing.Clone()
	} else if ok {
		rec.CreatedAt = existing.CreatedAt
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	update.Apply(&rec)
	rec.UpdatedAt = now
	s.records[k] = &rec
}

// Delete removes the record for (user, cargoKey). Idempotent.
func (s *InMemoryStateStore) Delete(user, cargoKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, Key{User: user, CargoKey: cargoKey})
}

// Snapshot returns a consistent copy of all live records.
func (s *InMemoryStateStore) Snapshot() map[Key]models.GreenlightRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Key]models.GreenlightRecord, len(s.records))
	for k, rec := range s.records {
		out[k] = rec.Clone()
	}
	return out
}

// EvictOlderThan removes finalized records not touched within the horizon
// and returns the number removed. Live (armed or pending) records are kept
// regardless of age so a slow episode is never dropped mid-flight.
func (s *InMemoryStateStore) EvictOlderThan(horizon time.Duration) int {
	cutoff := s.now().UTC().Add(-horizon)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for k, rec := range s.records {
		if !rec.PressedOnce || rec.Armed {
			continue
		}
		if rec.UpdatedAt.Before(cutoff) {
			delete(s.records, k)
			evicted++
		}
	}
	if evicted > 0 {
		slog.Debug("InMemoryStateStore.EvictOlderThan: evicted finalized records", "count", evicted, "horizon", horizon)
	}
	return evicted
}
