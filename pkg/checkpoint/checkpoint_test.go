package checkpoint

import (
	"testing"
	"time"

	"github.com/paiban/roster/pkg/builder"
	"github.com/paiban/roster/pkg/calendar"
	"github.com/paiban/roster/pkg/model"
)

func cpDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCaptureRoundTrip(t *testing.T) {
	w := &model.Worker{ID: "w1", TargetShifts: 5, MandatoryDays: map[string]bool{"2026-01-10": true},
		WorkPeriods: []model.DateRange{{Start: cpDate("2026-01-01"), End: cpDate("2026-01-31")}}}
	cal := calendar.New(nil)
	b := builder.New([]*model.Worker{w}, cpDate("2026-01-01"), cpDate("2026-01-31"), 1, cal, model.DefaultPolicy())
	b.AssignMandatoryGuards()
	b.Place(w.ID, cpDate("2026-01-15"), 0)

	doc := Capture(b, "mandatory", "test checkpoint")
	if doc.ID == "" {
		t.Error("expected a generated checkpoint ID")
	}
	if len(doc.Locked) != 1 || doc.Locked[0].Worker != "w1" || doc.Locked[0].Date != "2026-01-10" {
		t.Errorf("expected the mandatory placement to be captured as locked, got %v", doc.Locked)
	}
	if doc.Schedule["2026-01-15"][0] != "w1" {
		t.Errorf("expected the free placement to appear in the schedule snapshot")
	}
	if doc.Counters.ShiftCount["w1"] != 2 {
		t.Errorf("ShiftCount snapshot = %d, want 2", doc.Counters.ShiftCount["w1"])
	}

	encoded, err := Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	decoded, err := Unmarshal(encoded)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.ID != doc.ID {
		t.Errorf("decoded ID = %q, want %q", decoded.ID, doc.ID)
	}
	if decoded.Counters.ShiftCount["w1"] != 2 {
		t.Errorf("decoded ShiftCount = %d, want 2", decoded.Counters.ShiftCount["w1"])
	}
}

func TestRestoreRebuildsBuilderState(t *testing.T) {
	w := &model.Worker{ID: "w1", TargetShifts: 5, MandatoryDays: map[string]bool{"2026-01-10": true},
		WorkPeriods: []model.DateRange{{Start: cpDate("2026-01-01"), End: cpDate("2026-01-31")}}}
	cal := calendar.New(nil)
	b := builder.New([]*model.Worker{w}, cpDate("2026-01-01"), cpDate("2026-01-31"), 1, cal, model.DefaultPolicy())
	b.AssignMandatoryGuards()
	b.Place(w.ID, cpDate("2026-01-15"), 0)
	b.EnableRelaxed(model.RelaxedPhase1)

	doc := Capture(b, "optimization", "test resume")
	encoded, err := Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	decoded, err := Unmarshal(encoded)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	restored, err := Restore(decoded, []*model.Worker{w}, cal, model.DefaultPolicy())
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if restored.Mode != model.RelaxedPhase1 {
		t.Errorf("restored Mode = %v, want RelaxedPhase1", restored.Mode)
	}
	if got := restored.Counters.ShiftCount[w.ID]; got != 2 {
		t.Errorf("restored ShiftCount = %d, want 2", got)
	}
	if !restored.IsLockedMandatory(w.ID, cpDate("2026-01-10")) {
		t.Error("expected the mandatory lock to survive the restore")
	}
	if got := restored.Schedule.At("2026-01-15", 0); got == nil || *got != w.ID {
		t.Error("expected the free placement to survive the restore")
	}
	if !restored.CanModify(w.ID, cpDate("2026-01-15"), "resume_check") {
		t.Error("expected the non-mandatory placement to stay modifiable after restore")
	}
	if restored.CanModify(w.ID, cpDate("2026-01-10"), "resume_check") {
		t.Error("expected the restored lock to block further modification")
	}
}
