// Package models defines state structures for greenlight coordination episodes.
package models

import "time"

// GreenlightRecord is the coordination state for one (user, cargo key) pair.
// One record covers one episode at a time; an explicit re-arm starts a new
// episode under the same key.
type GreenlightRecord struct {
	User      string `json:"user"`
	CargoID   string `json:"cargo_id"`
	BMID      string `json:"bm_id,omitempty"`
	CargoKey  string `json:"cargo_key"`
	EpisodeID string `json:"episode_id,omitempty"`

	Armed                bool       `json:"armed"`
	PressedOnce          bool       `json:"pressed_once"`
	ReadyForAutoFinalize bool       `json:"ready_for_auto_finalize"`
	PendingSince         *time.Time `json:"pending_since,omitempty"`

	// PressPhases records every phase name seen for this key, in arrival
	// order, without duplicates.
	PressPhases []string `json:"press_phases,omitempty"`

	LoadStateBefore   *string `json:"load_state_before,omitempty"`
	LoadStateFinal    *string `json:"load_state_final,omitempty"`
	PublishDaysBefore *int    `json:"publish_days_before,omitempty"`
	PublishDaysFinal  *int    `json:"publish_days_final,omitempty"`

	// PressSuccess and PressMessage are write-once per episode. Once set,
	// later finalize reports only echo them.
	PressSuccess *bool  `json:"press_success,omitempty"`
	PressMessage string `json:"press_message,omitempty"`

	LastAfterAction *time.Time `json:"last_after_action,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Clone returns a deep copy of the record. Store readers always receive
// clones so no caller holds an alias into the store.
func (r GreenlightRecord) Clone() GreenlightRecord {
	out := r
	out.PendingSince = cloneTime(r.PendingSince)
	out.LastAfterAction = cloneTime(r.LastAfterAction)
	out.LoadStateBefore = cloneString(r.LoadStateBefore)
	out.LoadStateFinal = cloneString(r.LoadStateFinal)
	out.PublishDaysBefore = cloneInt(r.PublishDaysBefore)
	out.PublishDaysFinal = cloneInt(r.PublishDaysFinal)
	out.PressSuccess = cloneBool(r.PressSuccess)
	if r.PressPhases != nil {
		out.PressPhases = append([]string(nil), r.PressPhases...)
	}
	return out
}

// RecordUpdate is a typed partial update for a GreenlightRecord. Nil pointer
// fields leave the existing value untouched; ClearPendingSince is explicit
// because setting PendingSince to nil is a real transition, not an omission.
type RecordUpdate struct {
	User      *string
	CargoID   *string
	BMID      *string
	CargoKey  *string
	EpisodeID *string

	Armed                *bool
	PressedOnce          *bool
	ReadyForAutoFinalize *bool
	PendingSince         *time.Time
	ClearPendingSince    bool

	// PressPhases replaces the stored list when non-nil.
	PressPhases []string

	LoadStateBefore   *string
	LoadStateFinal    *string
	PublishDaysBefore *int
	PublishDaysFinal  *int

	PressSuccess *bool
	PressMessage *string

	LastAfterAction *time.Time
}

// Apply overlays the update onto r. Values are copied, never aliased.
func (u RecordUpdate) Apply(r *GreenlightRecord) {
	if u.User != nil {
		r.User = *u.User
	}
	if u.CargoID != nil {
		r.CargoID = *u.CargoID
	}
	if u.BMID != nil {
		r.BMID = *u.BMID
	}
	if u.CargoKey != nil {
		r.CargoKey = *u.CargoKey
	}
	if u.EpisodeID != nil {
		r.EpisodeID = *u.EpisodeID
	}
	if u.Armed != nil {
		r.Armed = *u.Armed
	}
	if u.PressedOnce != nil {
		r.PressedOnce = *u.PressedOnce
	}
	if u.ReadyForAutoFinalize != nil {
		r.ReadyForAutoFinalize = *u.ReadyForAutoFinalize
	}
	if u.ClearPendingSince {
		r.PendingSince = nil
	} else if u.PendingSince != nil {
		r.PendingSince = cloneTime(u.PendingSince)
	}
	if u.PressPhases != nil {
		r.PressPhases = append([]string(nil), u.PressPhases...)
	}
	if u.LoadStateBefore != nil {
		r.LoadStateBefore = cloneString(u.LoadStateBefore)
	}
	if u.LoadStateFinal != nil {
		r.LoadStateFinal = cloneString(u.LoadStateFinal)
	}
	if u.PublishDaysBefore != nil {
		r.PublishDaysBefore = cloneInt(u.PublishDaysBefore)
	}
	if u.PublishDaysFinal != nil {
		r.PublishDaysFinal = cloneInt(u.PublishDaysFinal)
	}
	if u.PressSuccess != nil {
		r.PressSuccess = cloneBool(u.PressSuccess)
	}
	if u.PressMessage != nil {
		r.PressMessage = *u.PressMessage
	}
	if u.LastAfterAction != nil {
		r.LastAfterAction = cloneTime(u.LastAfterAction)
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

// Ptr returns a pointer to v. It keeps RecordUpdate literals readable.
func Ptr[T any](v T) *T {
	return &v
}
