package models

import (
	"testing"
	"time"
)

func TestPhaseIsFinalize(t *testing.T) {
	tests := []struct {
		phase Phase
		want  bool
	}{
		{PhasePrepared, false},
		{PhaseBeforeClick, false},
		{PhaseAfterClick, true},
		{PhasePostFlow, true},
		{Phase("hover"), false},
		{Phase(""), false},
	}
	for _, tt := range tests {
		if got := tt.phase.IsFinalize(); got != tt.want {
			t.Errorf("Phase(%q).IsFinalize() = %v, want %v", tt.phase, got, tt.want)
		}
	}
}

func TestDigitSuffix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"BM-X-12345", "12345"},
		{"12345", "12345"},
		{"cargo 777", "777"},
		{"BM-1-42a", ""},
		{"abc", ""},
		{"", ""},
		{"12a34", "34"},
	}
	for _, tt := range tests {
		if got := DigitSuffix(tt.in); got != tt.want {
			t.Errorf("DigitSuffix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCargoDocMetaFor(t *testing.T) {
	seven, three := 7, 3
	doc := CargoDoc{
		User: "alice",
		IDs:  []string{"BM-X-12345", "BM-Y-777"},
		IDsMeta: []CargoMeta{
			{ID: "BM-X-12345", StartDate: "2026-03-01", ForDays: &seven},
			{ID: "BM-Y-777", ForDays: &three},
		},
	}

	if m := doc.MetaFor("BM-X-12345"); m.ForDays == nil || *m.ForDays != 7 {
		t.Errorf("exact match failed: %+v", m)
	}
	// A raw id should fall back to the suffix match against its alias.
	if m := doc.MetaFor("12345"); m.ForDays == nil || *m.ForDays != 7 {
		t.Errorf("suffix match failed: %+v", m)
	}
	if m := doc.MetaFor("777"); m.ForDays == nil || *m.ForDays != 3 {
		t.Errorf("suffix match failed: %+v", m)
	}
	if m := doc.MetaFor("999"); m.ID != "" || m.ForDays != nil {
		t.Errorf("unknown id should yield empty meta, got %+v", m)
	}
	if m := doc.MetaFor(""); m.ID != "" {
		t.Errorf("empty id should yield empty meta, got %+v", m)
	}
	if m := doc.MetaFor("abc"); m.ID != "" {
		t.Errorf("id without digits should yield empty meta, got %+v", m)
	}
}

func TestRecordUpdateApply(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := GreenlightRecord{
		User:         "alice",
		CargoKey:     "BM-1-1",
		Armed:        true,
		PendingSince: &at,
		PressPhases:  []string{"prepared"},
	}

	upd := RecordUpdate{
		Armed:        Ptr(false),
		PressedOnce:  Ptr(true),
		PressSuccess: Ptr(true),
		PressMessage: Ptr(MsgPublishSuccess),
		PressPhases:  []string{"prepared", "after_click"},
	}
	upd.Apply(&rec)

	if rec.Armed || !rec.PressedOnce {
		t.Errorf("flags not applied: %+v", rec)
	}
	if rec.PressSuccess == nil || !*rec.PressSuccess || rec.PressMessage != MsgPublishSuccess {
		t.Errorf("verdict not applied: %+v", rec)
	}
	if rec.User != "alice" || rec.CargoKey != "BM-1-1" {
		t.Error("untouched fields must survive")
	}
	if rec.PendingSince == nil || !rec.PendingSince.Equal(at) {
		t.Errorf("pending timestamp must survive an update that omits it, got %v", rec.PendingSince)
	}
	if len(rec.PressPhases) != 2 || rec.PressPhases[1] != "after_click" {
		t.Errorf("phase list not replaced: %v", rec.PressPhases)
	}

	// ClearPendingSince is the explicit transition to nil.
	RecordUpdate{ClearPendingSince: true}.Apply(&rec)
	if rec.PendingSince != nil {
		t.Errorf("pending timestamp should be cleared, got %v", rec.PendingSince)
	}
}

func TestRecordUpdateApplyCopiesValues(t *testing.T) {
	var rec GreenlightRecord
	days := 5
	phases := []string{"prepared"}
	RecordUpdate{PublishDaysBefore: &days, PressPhases: phases}.Apply(&rec)

	days = 99
	phases[0] = "mutated"
	if *rec.PublishDaysBefore != 5 {
		t.Errorf("applied int must be a copy, got %d", *rec.PublishDaysBefore)
	}
	if rec.PressPhases[0] != "prepared" {
		t.Errorf("applied slice must be a copy, got %v", rec.PressPhases)
	}
}

func TestGreenlightRecordClone(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	load := "loaded"
	days := 7
	success := true
	rec := GreenlightRecord{
		User:             "alice",
		PendingSince:     &at,
		PressPhases:      []string{"prepared", "before_click"},
		LoadStateBefore:  &load,
		PublishDaysFinal: &days,
		PressSuccess:     &success,
	}

	clone := rec.Clone()
	*clone.PendingSince = at.Add(time.Hour)
	*clone.LoadStateBefore = "mutated"
	*clone.PublishDaysFinal = 1
	*clone.PressSuccess = false
	clone.PressPhases[0] = "mutated"

	if !rec.PendingSince.Equal(at) {
		t.Error("clone must not alias the pending timestamp")
	}
	if *rec.LoadStateBefore != "loaded" {
		t.Error("clone must not alias the load state")
	}
	if *rec.PublishDaysFinal != 7 {
		t.Error("clone must not alias the publish days")
	}
	if !*rec.PressSuccess {
		t.Error("clone must not alias the verdict")
	}
	if rec.PressPhases[0] != "prepared" {
		t.Error("clone must not alias the phase list")
	}
}
