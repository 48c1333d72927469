package builder

import (
	"testing"
	"time"

	"github.com/paiban/roster/internal/rosterlog"
	"github.com/paiban/roster/pkg/calendar"
	"github.com/paiban/roster/pkg/model"
)

func bDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestBuilder(workers []*model.Worker, numPosts int) *Builder {
	cal := calendar.New(nil)
	return New(workers, bDate("2026-01-01"), bDate("2026-01-31"), numPosts, cal, model.DefaultPolicy())
}

func fullAvailability() []model.DateRange {
	return []model.DateRange{{Start: bDate("2026-01-01"), End: bDate("2026-01-31")}}
}

func TestAssignMandatoryGuardsLocksAndPlaces(t *testing.T) {
	w := &model.Worker{
		ID:            "w1",
		TargetShifts:  5,
		WorkPeriods:   fullAvailability(),
		MandatoryDays: map[string]bool{"2026-01-10": true},
	}
	b := newTestBuilder([]*model.Worker{w}, 1)
	b.AssignMandatoryGuards()

	if got := b.Schedule.At("2026-01-10", 0); got == nil || *got != w.ID {
		t.Fatal("expected mandatory day to be placed")
	}
}

func TestAssignMandatoryGuardsReportsToAttachedLogger(t *testing.T) {
	w := &model.Worker{
		ID:            "w1",
		TargetShifts:  5,
		WorkPeriods:   fullAvailability(),
		MandatoryDays: map[string]bool{"2026-01-10": true},
	}
	b := newTestBuilder([]*model.Worker{w}, 1)
	b.SetLogger("run-1", rosterlog.New())
	b.AssignMandatoryGuards()

	if got := b.Schedule.At("2026-01-10", 0); got == nil || *got != w.ID {
		t.Error("expected an attached logger not to change placement behavior")
	}
	if !b.IsLockedMandatory(w.ID, bDate("2026-01-10")) {
		t.Error("expected mandatory day to be locked")
	}
	if b.CanModify(w.ID, bDate("2026-01-10"), "any") {
		t.Error("expected locked mandatory day to reject modification")
	}
}

func TestAssignMandatoryGuardsRecordsConfigErrorOnUnavailable(t *testing.T) {
	w := &model.Worker{
		ID:            "w1",
		TargetShifts:  5,
		MandatoryDays: map[string]bool{"2026-01-10": true},
		// no WorkPeriods -> unavailable everywhere
	}
	b := newTestBuilder([]*model.Worker{w}, 1)
	b.AssignMandatoryGuards()

	if len(b.ConfigErrors) == 0 {
		t.Error("expected a config error for an unreachable mandatory date")
	}
	if b.Schedule.At("2026-01-10", 0) != nil {
		t.Error("expected no placement for an unreachable mandatory date")
	}
}

func TestCanModifyAllowsUnlockedSlot(t *testing.T) {
	w := &model.Worker{ID: "w1", TargetShifts: 5}
	b := newTestBuilder([]*model.Worker{w}, 1)
	if !b.CanModify(w.ID, bDate("2026-01-05"), "fill") {
		t.Error("expected an unlocked, non-mandatory date to be modifiable")
	}
}

func TestSelectWorkerPrefersHigherDeficit(t *testing.T) {
	low := &model.Worker{ID: "low", TargetShifts: 5, WorkPeriods: fullAvailability(), GapBetweenShifts: 1}
	high := &model.Worker{ID: "high", TargetShifts: 10, WorkPeriods: fullAvailability(), GapBetweenShifts: 1}
	b := newTestBuilder([]*model.Worker{low, high}, 1)
	// Give "low" a head start so its deficit is small, "high" still has
	// the full target outstanding.
	b.Counters.ShiftCount["low"] = 4

	picked, ok := b.SelectWorker(bDate("2026-01-15"), 0)
	if !ok {
		t.Fatal("expected a candidate to be selected")
	}
	if picked.ID != "high" {
		t.Errorf("expected the higher-deficit worker to be selected, got %s", picked.ID)
	}
}

func TestSelectWorkerReturnsFalseWhenNoneEligible(t *testing.T) {
	w := &model.Worker{ID: "w1", TargetShifts: 5} // no work periods
	b := newTestBuilder([]*model.Worker{w}, 1)
	if _, ok := b.SelectWorker(bDate("2026-01-15"), 0); ok {
		t.Error("expected no candidate to be selected")
	}
}

func TestPlaceUpdatesCounters(t *testing.T) {
	w := &model.Worker{ID: "w1", TargetShifts: 5, WorkPeriods: fullAvailability()}
	b := newTestBuilder([]*model.Worker{w}, 2)
	b.Place(w.ID, bDate("2026-01-10"), 1) // last post of 2

	if b.Counters.ShiftCount[w.ID] != 1 {
		t.Errorf("ShiftCount = %d, want 1", b.Counters.ShiftCount[w.ID])
	}
	if b.Counters.LastPostCount[w.ID] != 1 {
		t.Errorf("LastPostCount = %d, want 1", b.Counters.LastPostCount[w.ID])
	}
}

func TestCoverage(t *testing.T) {
	w := &model.Worker{ID: "w1", TargetShifts: 31, WorkPeriods: fullAvailability()}
	b := newTestBuilder([]*model.Worker{w}, 1)
	if got := b.Coverage(); got != 0 {
		t.Errorf("Coverage() on an empty schedule = %v, want 0", got)
	}
	for _, date := range b.Schedule.Dates() {
		d, _ := time.Parse("2006-01-02", date)
		b.Place(w.ID, d, 0)
	}
	if got := b.Coverage(); got != 1 {
		t.Errorf("Coverage() on a fully filled schedule = %v, want 1", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	w := &model.Worker{ID: "w1", TargetShifts: 5, WorkPeriods: fullAvailability()}
	b := newTestBuilder([]*model.Worker{w}, 1)
	b.Place(w.ID, bDate("2026-01-05"), 0)

	clone := b.Clone()
	clone.Place(w.ID, bDate("2026-01-06"), 0)

	if b.Schedule.At("2026-01-06", 0) != nil {
		t.Error("mutating the clone must not affect the original builder")
	}
	if clone.Counters.ShiftCount[w.ID] != 2 {
		t.Errorf("clone ShiftCount = %d, want 2", clone.Counters.ShiftCount[w.ID])
	}
	if b.Counters.ShiftCount[w.ID] != 1 {
		t.Errorf("original ShiftCount = %d, want 1", b.Counters.ShiftCount[w.ID])
	}
}

func TestCloneCarriesTheAttachedLogger(t *testing.T) {
	w := &model.Worker{ID: "w1", TargetShifts: 5, WorkPeriods: fullAvailability()}
	b := newTestBuilder([]*model.Worker{w}, 1)
	b.SetLogger("run-1", rosterlog.New())

	clone := b.Clone()
	clone.LogOptimizerIteration(1, 0, 0.3, 0)
}

func TestEnableRelaxedIsOneWay(t *testing.T) {
	w := &model.Worker{ID: "w1"}
	b := newTestBuilder([]*model.Worker{w}, 1)
	b.EnableRelaxed(model.RelaxedPhase1)
	if err := b.EnableStrict(); err == nil {
		t.Error("expected reverting to strict mode after relaxing to be forbidden")
	}
}
