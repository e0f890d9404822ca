package greenlight

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/freightpilot/greenlight/internal/models"
)

// EmptyLoadPlaceholders are the load-indicator values the exchange page
// renders for an item that has left the pending queue. The exact set comes
// from observed page output; do not broaden it.
var EmptyLoadPlaceholders = map[string]struct{}{
	"":  {},
	"-": {},
	"–": {},
	"—": {},
}

// NormalizeLoadState trims the reported load indicator and collapses the
// placeholder variants to the empty string. An empty result means the
// publish action took effect.
func NormalizeLoadState(s string) string {
	s = strings.TrimSpace(s)
	if _, ok := EmptyLoadPlaceholders[s]; ok {
		return ""
	}
	return s
}

// Decision is the go/no-go signal emitted to the client.
type Decision struct {
	Go       bool
	CargoKey string
	ForDays  int
}

// PhaseOutcome answers a phase report. Success stays nil until the episode
// has been finalized.
type PhaseOutcome struct {
	Success *bool
	Message string
}

// Coordinator drives the greenlight phase protocol over a StateStore.
//
// The protocol mutex serializes every read-modify-write transition, so
// concurrent duplicate finalize reports and concurrent press-consume checks
// for the same key resolve to exactly one decision. The store's own lock
// still covers direct readers such as the recovery scanner.
type Coordinator struct {
	mu    sync.Mutex
	store StateStore
	inv   Inventory
	now   func() time.Time
}

// NewCoordinator creates a coordinator over the given state store and
// inventory. The inventory may be nil; alias resolution then degrades to
// raw identifiers.
func NewCoordinator(store StateStore, inv Inventory) *Coordinator {
	return &Coordinator{store: store, inv: inv, now: time.Now}
}

// decide is the decision emitter: the client may press only while the key
// is armed and the episode's press has not been consumed.
func decide(rec models.GreenlightRecord) bool {
	return rec.Armed && !rec.PressedOnce
}

// ArmOnPageEntry arms the key when the client lands on a cargo publish page.
// Arming is idempotent: an already armed or already pressed key is left
// untouched and the existing state is reported back.
func (c *Coordinator) ArmOnPageEntry(user, cargoID, bmID string) (Decision, error) {
	cargoKey, bm := ResolveCargoKey(c.inv, user, cargoID, bmID)
	if user == "" || cargoKey == "" {
		return Decision{}, models.ErrEmptyCargoKey
	}

	c.mu.Lock()
	rec, _ := c.store.Get(user, cargoKey)
	goNow := decide(rec)
	if !rec.Armed && !rec.PressedOnce {
		// Fresh arm replaces the record wholesale so leftovers from a
		// previous episode cannot leak into this one.
		c.store.Upsert(user, cargoKey, models.RecordUpdate{
			User:        models.Ptr(user),
			CargoID:     models.Ptr(strings.TrimSpace(cargoID)),
			BMID:        models.Ptr(bm),
			CargoKey:    models.Ptr(cargoKey),
			EpisodeID:   models.Ptr(uuid.NewString()),
			Armed:       models.Ptr(true),
			PressedOnce: models.Ptr(false),
		}, false)
		goNow = true
		slog.Info("Coordinator.ArmOnPageEntry: armed", "cargoKey", cargoKey, "bmID", bm, "user", user)
	} else {
		slog.Debug("Coordinator.ArmOnPageEntry: skipping arm",
			"cargoKey", cargoKey, "user", user, "armed", rec.Armed, "pressedOnce", rec.PressedOnce)
	}
	c.mu.Unlock()

	return Decision{Go: goNow, CargoKey: cargoKey, ForDays: c.publishDaysFor(user, cargoID)}, nil
}

// CheckAndConsume converts an armed key into a single go=true. The flip to
// pressed_once happens inside the protocol mutex, so N concurrent checks
// yield exactly one go=true.
func (c *Coordinator) CheckAndConsume(user, cargoID, bmID string) (Decision, error) {
	cargoKey, _ := ResolveCargoKey(c.inv, user, cargoID, bmID)
	if user == "" || cargoKey == "" {
		return Decision{}, models.ErrEmptyCargoKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rec, _ := c.store.Get(user, cargoKey)
	if !decide(rec) {
		slog.Debug("Coordinator.CheckAndConsume: no press",
			"cargoKey", cargoKey, "user", user, "armed", rec.Armed, "pressedOnce", rec.PressedOnce)
		return Decision{Go: false, CargoKey: cargoKey}, nil
	}

	c.store.Upsert(user, cargoKey, models.RecordUpdate{
		Armed:       models.Ptr(false),
		PressedOnce: models.Ptr(true),
	}, true)
	slog.Info("Coordinator.CheckAndConsume: press the button", "cargoKey", cargoKey, "bmID", rec.BMID, "user", user)
	return Decision{Go: true, CargoKey: cargoKey}, nil
}

// ForceSetArm is the explicit override, bypassing normal phase progression.
// press=true starts a fresh episode under the key; press=false marks the
// key pressed without arming it.
func (c *Coordinator) ForceSetArm(user, cargoID, bmID string, press bool) (bool, string, error) {
	cargoKey, bm := ResolveCargoKey(c.inv, user, cargoID, bmID)
	if user == "" || cargoKey == "" {
		return false, "", models.ErrEmptyCargoKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if press {
		// A forced arm opens a new episode: the record is replaced so the
		// previous episode's write-once verdict cannot shadow the new one.
		c.store.Upsert(user, cargoKey, models.RecordUpdate{
			User:        models.Ptr(user),
			CargoID:     models.Ptr(strings.TrimSpace(cargoID)),
			BMID:        models.Ptr(bm),
			CargoKey:    models.Ptr(cargoKey),
			EpisodeID:   models.Ptr(uuid.NewString()),
			Armed:       models.Ptr(true),
			PressedOnce: models.Ptr(false),
		}, false)
	} else {
		c.store.Upsert(user, cargoKey, models.RecordUpdate{
			User:        models.Ptr(user),
			CargoID:     models.Ptr(strings.TrimSpace(cargoID)),
			BMID:        models.Ptr(bm),
			CargoKey:    models.Ptr(cargoKey),
			Armed:       models.Ptr(false),
			PressedOnce: models.Ptr(true),
		}, true)
	}
	slog.Info("Coordinator.ForceSetArm: set", "armed", press, "cargoKey", cargoKey, "bmID", bm, "user", user)
	return press, cargoKey, nil
}

// ReportPhase advances the key through the phase protocol. Reports lacking a
// resolvable user or cargo fall back to a stateless verdict so callers
// without context are still answered.
func (c *Coordinator) ReportPhase(user, cargoID, bmID, phaseRaw, loadRaw string, publishDays *int) PhaseOutcome {
	phaseName := strings.ToLower(strings.TrimSpace(phaseRaw))
	phase := models.Phase(phaseName)
	load := NormalizeLoadState(loadRaw)

	if strings.TrimSpace(user) == "" || strings.TrimSpace(cargoID) == "" {
		return statelessOutcome(phase, load)
	}

	cargoKey, bm := ResolveCargoKey(c.inv, user, cargoID, bmID)
	if cargoKey == "" {
		return statelessOutcome(phase, load)
	}
	cid := strings.TrimSpace(cargoID)

	c.mu.Lock()
	defer c.mu.Unlock()

	rec, _ := c.store.Get(user, cargoKey)
	if bm == "" {
		bm = rec.BMID
	}
	phases := appendPhase(rec.PressPhases, phaseName)

	identity := models.RecordUpdate{
		User:     models.Ptr(user),
		CargoID:  models.Ptr(cid),
		BMID:     models.Ptr(bm),
		CargoKey: models.Ptr(cargoKey),
	}
	if rec.EpisodeID == "" {
		identity.EpisodeID = models.Ptr(uuid.NewString())
	}

	switch {
	case phase == models.PhasePrepared:
		upd := identity
		upd.Armed = models.Ptr(true)
		upd.PressedOnce = models.Ptr(false)
		upd.PressPhases = phases
		if publishDays != nil {
			upd.PublishDaysBefore = publishDays
			slog.Debug("Coordinator.ReportPhase: candidate publish days",
				"phase", phaseName, "days", *publishDays, "cargoKey", cargoKey, "user", user)
		}
		c.store.Upsert(user, cargoKey, upd, true)
		return PhaseOutcome{Message: models.MsgRecorded}

	case phase == models.PhaseBeforeClick:
		now := c.now().UTC()
		upd := identity
		upd.Armed = models.Ptr(true)
		upd.PressedOnce = models.Ptr(false)
		upd.ReadyForAutoFinalize = models.Ptr(true)
		upd.PendingSince = models.Ptr(now)
		upd.PressPhases = phases
		// Before values are first-write-wins within the episode; an earlier
		// prepared report's candidate is supplemented, never overwritten.
		if rec.LoadStateBefore == nil {
			upd.LoadStateBefore = models.Ptr(load)
		}
		if publishDays != nil && rec.PublishDaysBefore == nil {
			upd.PublishDaysBefore = publishDays
		}
		c.store.Upsert(user, cargoKey, upd, true)
		slog.Info("Coordinator.ReportPhase: ready window opened",
			"cargoKey", cargoKey, "bmID", bm, "user", user, "loadBefore", load)
		return PhaseOutcome{Message: models.MsgChecking}

	case phase.IsFinalize():
		return c.finalizeLocked(rec, identity, phases, load, publishDays, string(phase))

	default:
		upd := identity
		upd.PressPhases = phases
		if publishDays != nil {
			upd.PublishDaysBefore = publishDays
		}
		c.store.Upsert(user, cargoKey, upd, true)
		slog.Debug("Coordinator.ReportPhase: generic phase recorded",
			"phase", phaseName, "cargoKey", cargoKey, "user", user)
		return PhaseOutcome{Message: models.MsgRecorded}
	}
}

// finalizeLocked performs the at-most-once finalize transition. The caller
// holds the protocol mutex. rec is the current record, identity the shared
// bookkeeping fields, load the already normalized final load indicator.
func (c *Coordinator) finalizeLocked(rec models.GreenlightRecord, identity models.RecordUpdate, phases []string, load string, publishDays *int, reason string) PhaseOutcome {
	user := rec.User
	cargoKey := rec.CargoKey
	if identity.User != nil {
		user = *identity.User
	}
	if identity.CargoKey != nil {
		cargoKey = *identity.CargoKey
	}

	if rec.PressSuccess != nil {
		// Finalize already happened for this episode; echo, never recompute.
		msg := rec.PressMessage
		if msg == "" {
			msg = models.MsgPublishFailed
			if *rec.PressSuccess {
				msg = models.MsgPublishSuccess
			}
		}
		slog.Info("Coordinator.finalize: repeat finalize, echoing stored verdict",
			"cargoKey", cargoKey, "user", user, "success", *rec.PressSuccess, "reason", reason)
		return PhaseOutcome{Success: models.Ptr(*rec.PressSuccess), Message: msg}
	}

	daysFinal := publishDays
	if daysFinal == nil {
		daysFinal = rec.PublishDaysFinal
	}
	if daysFinal == nil {
		daysFinal = rec.PublishDaysBefore
	}

	success := load == ""
	msg := models.MsgPublishFailed
	if success {
		msg = models.MsgPublishSuccess
	}
	now := c.now().UTC()

	upd := identity
	upd.Armed = models.Ptr(false)
	upd.PressedOnce = models.Ptr(true)
	upd.ReadyForAutoFinalize = models.Ptr(false)
	upd.ClearPendingSince = true
	upd.PressPhases = phases
	upd.LoadStateFinal = models.Ptr(load)
	upd.PressSuccess = models.Ptr(success)
	upd.PressMessage = models.Ptr(msg)
	upd.LastAfterAction = models.Ptr(now)
	if daysFinal != nil {
		upd.PublishDaysFinal = daysFinal
	}
	c.store.Upsert(user, cargoKey, upd, true)

	logDays := 0
	if daysFinal != nil {
		logDays = *daysFinal
	}
	slog.Info("Coordinator.finalize: publish result",
		"success", success, "cargoKey", cargoKey, "user", user,
		"finalLoad", load, "publishDays", logDays, "reason", reason)
	return PhaseOutcome{Success: models.Ptr(success), Message: msg}
}

// statelessOutcome produces a best-effort verdict for reports lacking key
// context. No state is touched.
func statelessOutcome(phase models.Phase, load string) PhaseOutcome {
	if !phase.IsFinalize() {
		return PhaseOutcome{Message: models.MsgRecorded}
	}
	success := load == ""
	msg := models.MsgPublishFailed
	if success {
		msg = models.MsgPublishSuccess
	}
	return PhaseOutcome{Success: models.Ptr(success), Message: msg}
}

// publishDaysFor returns the stored publish duration for the cargo, never
// less than one day.
func (c *Coordinator) publishDaysFor(user, cargoID string) int {
	if c.inv == nil {
		return 1
	}
	doc, err := c.inv.GetCargoDoc(user)
	if err != nil {
		slog.Debug("Coordinator.publishDaysFor: inventory lookup failed", "error", err, "user", user)
		return 1
	}
	meta := doc.MetaFor(strings.TrimSpace(cargoID))
	if meta.ForDays == nil || *meta.ForDays <= 0 {
		return 1
	}
	return *meta.ForDays
}

// appendPhase records a phase name into the ordered, duplicate-free list.
func appendPhase(phases []string, name string) []string {
	if name == "" {
		return phases
	}
	for _, p := range phases {
		if p == name {
			return phases
		}
	}
	return append(append([]string(nil), phases...), name)
}
