package islands

import (
	"context"
	"testing"
	"time"

	"github.com/paiban/roster/pkg/builder"
	"github.com/paiban/roster/pkg/calendar"
	"github.com/paiban/roster/pkg/model"
)

func iDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestRotationCoversTenStrategies(t *testing.T) {
	seen := make(map[Strategy]bool)
	for i := 1; i <= 10; i++ {
		seen[Rotation(i)] = true
	}
	if len(seen) != 10 {
		t.Errorf("expected ten distinct strategies, got %d", len(seen))
	}
}

func TestOrderForByIDAscAndDesc(t *testing.T) {
	base := []model.WorkerID{"c", "a", "b"}
	workers := map[model.WorkerID]*model.Worker{
		"a": {ID: "a"}, "b": {ID: "b"}, "c": {ID: "c"},
	}

	asc := orderFor(base, workers, Strategy{Name: "by_id_asc"})
	if asc[0] != "a" || asc[2] != "c" {
		t.Errorf("expected ascending order, got %v", asc)
	}
	desc := orderFor(base, workers, Strategy{Name: "by_id_desc"})
	if desc[0] != "c" || desc[2] != "a" {
		t.Errorf("expected descending order, got %v", desc)
	}
	// orderFor must not mutate its input.
	if base[0] != "c" {
		t.Error("expected base order to remain untouched")
	}
}

func TestScoreBeats(t *testing.T) {
	better := Score{Overall: 10}
	worse := Score{Overall: 5}
	if !better.Beats(worse) {
		t.Error("expected higher overall score to beat a lower one")
	}
	tie1 := Score{Overall: 10, EmptySlots: 2}
	tie2 := Score{Overall: 10, EmptySlots: 5}
	if !tie1.Beats(tie2) {
		t.Error("expected fewer empty slots to break an overall-score tie")
	}
}

func TestRunSelectsBestAttempt(t *testing.T) {
	workers := []*model.Worker{
		{ID: "w1", TargetShifts: 15, GapBetweenShifts: 0, WorkPeriods: []model.DateRange{
			{Start: iDate("2026-01-01"), End: iDate("2026-01-31")},
		}},
		{ID: "w2", TargetShifts: 15, GapBetweenShifts: 0, WorkPeriods: []model.DateRange{
			{Start: iDate("2026-01-01"), End: iDate("2026-01-31")},
		}},
	}
	cal := calendar.New(nil)
	base := builder.New(workers, iDate("2026-01-01"), iDate("2026-01-31"), 1, cal, model.DefaultPolicy())
	base.EnableRelaxed(model.RelaxedPhase1)

	best, attempts, err := Run(context.Background(), base, 4)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(attempts) != 4 {
		t.Fatalf("expected 4 attempts, got %d", len(attempts))
	}
	for _, a := range attempts {
		if best.Score.Beats(a.Score) == false && a.Score.Beats(best.Score) {
			t.Errorf("attempt %d scored better than the selected winner", a.Index)
		}
	}
}
