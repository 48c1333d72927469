package tolerance

import (
	"testing"

	"github.com/paiban/roster/pkg/balance"
	"github.com/paiban/roster/pkg/model"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name            string
		coverage        float64
		violations      int
		hasConfigErrors bool
		want            int
	}{
		{"fully covered, no violations", 100, 0, false, 0},
		{"fully covered, with violations", 98, 3, false, 1},
		{"low coverage", 80, 0, false, 2},
		{"low coverage with violations", 80, 5, false, 2},
		{"config error overrides good coverage", 100, 0, true, 3},
		{"config error overrides low coverage", 50, 5, true, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.coverage, tt.violations, tt.hasConfigErrors); got != tt.want {
				t.Errorf("exitCodeFor(%v, %v, %v) = %d, want %d", tt.coverage, tt.violations, tt.hasConfigErrors, got, tt.want)
			}
		})
	}
}

func TestViolationCount(t *testing.T) {
	report := balance.Report{
		Deviations: []balance.WorkerDeviation{
			{Classification: balance.WithinTolerance},
			{Classification: balance.Critical},
			{Classification: balance.Extreme},
		},
	}
	if got := violationCount(report); got != 2 {
		t.Errorf("violationCount() = %d, want 2", got)
	}
}

func TestWithinTarget(t *testing.T) {
	v := balance.New(model.DefaultPolicy())
	w := &model.Worker{ID: "w1", TargetShifts: 10}
	counters := model.NewCounters([]*model.Worker{w})
	counters.ShiftCount["w1"] = 10

	if !WithinTarget(v, w, counters) {
		t.Error("expected an on-target worker to be within target")
	}

	counters.ShiftCount["w1"] = 20
	if WithinTarget(v, w, counters) {
		t.Error("expected a badly over-target worker to fail WithinTarget")
	}
}

func TestWithinTargetZeroTargetAlwaysPasses(t *testing.T) {
	v := balance.New(model.DefaultPolicy())
	w := &model.Worker{ID: "w1", TargetShifts: 0}
	counters := model.NewCounters([]*model.Worker{w})
	if !WithinTarget(v, w, counters) {
		t.Error("expected a zero-target worker to always be within target")
	}
}
