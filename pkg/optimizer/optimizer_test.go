package optimizer

import (
	"testing"
	"time"

	"github.com/paiban/roster/pkg/builder"
	"github.com/paiban/roster/pkg/calendar"
	"github.com/paiban/roster/pkg/model"
)

func oDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestIntensityForClampsToUnit(t *testing.T) {
	if got := intensityFor(0); got != 0.3 {
		t.Errorf("intensityFor(0) = %v, want 0.3", got)
	}
	if got := intensityFor(20); got != 1.0 {
		t.Errorf("intensityFor(20) = %v, want 1.0 (clamped)", got)
	}
}

func TestAvgImprovementRequiresHistory(t *testing.T) {
	if got := avgImprovement([]int{10, 8, 6}); got != 1.0 {
		t.Errorf("avgImprovement() with short history = %v, want 1.0", got)
	}
	history := []int{20, 18, 16, 14, 12, 10, 8, 6, 4, 2}
	if got := avgImprovement(history); got <= 0 {
		t.Errorf("avgImprovement() on a strictly improving history = %v, want > 0", got)
	}
}

func TestNonDecreasingDetectsPlateau(t *testing.T) {
	if !nonDecreasing([]int{5, 5, 5, 5}, 3) {
		t.Error("expected a flat tail to be detected as non-decreasing")
	}
	if nonDecreasing([]int{5, 4, 3, 2}, 3) {
		t.Error("expected a strictly decreasing tail to not be flagged")
	}
}

func TestCountDetectsGapViolation(t *testing.T) {
	w := &model.Worker{ID: "w1", TargetShifts: 10, GapBetweenShifts: 5}
	cal := calendar.New(nil)
	b := builder.New([]*model.Worker{w}, oDate("2026-01-01"), oDate("2026-01-31"), 1, cal, model.DefaultPolicy())
	b.Place(w.ID, oDate("2026-01-01"), 0)
	b.Place(w.ID, oDate("2026-01-02"), 0)

	v := count(b)
	if v.Gap == 0 {
		t.Error("expected a gap violation for two adjacent assignments under a 5-day gap requirement")
	}
}

func TestRunConvergesOnBalancedSchedule(t *testing.T) {
	w := &model.Worker{ID: "w1", TargetShifts: 2}
	cal := calendar.New(nil)
	b := builder.New([]*model.Worker{w}, oDate("2026-01-01"), oDate("2026-01-02"), 1, cal, model.DefaultPolicy())
	b.Place(w.ID, oDate("2026-01-01"), 0)
	b.Place(w.ID, oDate("2026-01-02"), 0)

	result := Run(b, 10, 1)
	if !result.Converged {
		t.Errorf("expected an already-on-target schedule to converge immediately, got %+v", result.FinalViolations)
	}
}

func TestRunNeverRegressesBelowStartingViolations(t *testing.T) {
	workers := []*model.Worker{
		{ID: "w1", TargetShifts: 6, GapBetweenShifts: 3},
		{ID: "w2", TargetShifts: 6, GapBetweenShifts: 3},
		{ID: "w3", TargetShifts: 6, GapBetweenShifts: 3},
	}
	cal := calendar.New(nil)
	b := builder.New(workers, oDate("2026-01-01"), oDate("2026-01-31"), 1, cal, model.DefaultPolicy())
	for i, ds := range b.Schedule.Dates() {
		d, _ := time.Parse("2006-01-02", ds)
		b.Place(workers[i%len(workers)].ID, d, 0)
	}

	before := count(b).Total()
	result := Run(b, 15, 7)
	after := count(b).Total()

	if after > before {
		t.Errorf("Run left the builder worse than its starting state: before=%d after=%d", before, after)
	}
	if result.FinalViolations.Total() > before {
		t.Errorf("Result.FinalViolations = %d, must never exceed the starting violation count %d", result.FinalViolations.Total(), before)
	}
}
