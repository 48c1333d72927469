// Package optimizer implements the iterative optimizer of spec §4.6:
// a violation-driven loop that proposes redistributions and bounded
// perturbations, accepting only net improvements, with stagnation-
// scaled intensity and the spec's four stopping criteria. Grounded on
// the teacher's simulated-annealing/tabu-list local search in
// pkg/scheduler/optimizer/local_search.go (the accept-if-improved,
// revert-and-bump-stagnation shape) and on original_source/
// iterative_optimizer.py's stagnation_counter/optimization_intensity
// formula.
package optimizer

import (
	"math"
	"math/rand"
	"time"

	"github.com/paiban/roster/pkg/builder"
	"github.com/paiban/roster/pkg/calendar"
	"github.com/paiban/roster/pkg/constraint"
	"github.com/paiban/roster/pkg/model"
)

// Violations is the per-kind violation count of spec §4.6 step 1.
type Violations struct {
	Target   int
	Gap      int
	Pattern  int
	Monthly  int
	Weekend  int
}

// Total sums every kind.
func (v Violations) Total() int {
	return v.Target + v.Gap + v.Pattern + v.Monthly + v.Weekend
}

// count recomputes Violations from the builder's current schedule:
// target violations come from the balance report, the rest from
// directly re-checking each worker's own assignment list against fixed
// thresholds of this package: the unrelaxed gap, the 7/14 pattern, and
// a max(1, 10% of expected) envelope for monthly and weekend counts.
// These do not follow the mode-dependent thresholds the constraint
// package applies on placement.
func count(b *builder.Builder) Violations {
	var v Violations

	report := b.Report()
	for _, d := range report.Deviations {
		if d.Classification != 0 { // not WithinTolerance
			v.Target++
		}
	}

	wa := b.Schedule.WorkerAssignments()
	for id, dateStrs := range wa {
		w := b.Workers[id]
		dates := make([]time.Time, 0, len(dateStrs))
		for _, ds := range dateStrs {
			if t, err := time.Parse("2006-01-02", ds); err == nil {
				dates = append(dates, t)
			}
		}

		for i := range dates {
			for j := i + 1; j < len(dates); j++ {
				dist := calendar.DaysBetween(dates[i], dates[j])
				if dist < 0 {
					dist = -dist
				}
				if dist < w.GapBetweenShifts {
					v.Gap++
				}
				if (dist == 7 || dist == 14) && calendar.SameWeekday(dates[i], dates[j]) {
					v.Pattern++
				}
			}
		}

		expectedMonthly := constraint.ExpectedMonthly(w.TargetShifts, maxInt(monthCount(dates), 1))
		for _, monthlyCount := range b.Counters.MonthlyCount[id] {
			if math.Abs(float64(monthlyCount)-expectedMonthly) > math.Max(1, expectedMonthly*0.10) {
				v.Monthly++
			}
		}

		if w.TargetShifts > 0 {
			expectedWeekend := float64(w.TargetShifts) * float64(b.SpecialDays()) / float64(maxInt(b.TotalDays(), 1))
			if math.Abs(float64(b.Counters.WeekendCount[id])-expectedWeekend) > math.Max(1, expectedWeekend*0.10) {
				v.Weekend++
			}
		}
	}
	return v
}

func monthCount(dates []time.Time) int {
	months := make(map[string]bool)
	for _, d := range dates {
		months[calendar.MonthOf(d)] = true
	}
	return len(months)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Result is one optimizer run's outcome.
type Result struct {
	Iterations     int
	FinalViolations Violations
	Converged      bool
	StagnationFinal int
}

// Run executes the optimizer loop in relaxed mode, up to maxIterations,
// and returns once one of the four stopping criteria fires.
// The caller controls which relaxed tier is active: Run only escalates
// a still-Strict builder to RelaxedPhase1, never downgrading a builder
// the caller has already pushed to RelaxedPhase2 (the orchestrator's
// Phase2 escalation pass depends on this).
func Run(b *builder.Builder, maxIterations int, seed int64) Result {
	if b.Mode == model.Strict {
		b.EnableRelaxed(model.RelaxedPhase1)
	}

	rng := rand.New(rand.NewSource(seed))
	stagnation := 0
	history := make([]int, 0, maxIterations)

	var last Violations
	for iter := 0; iter < maxIterations; iter++ {
		v := count(b)
		last = v
		if v.Total() == 0 {
			return Result{Iterations: iter, FinalViolations: v, Converged: true, StagnationFinal: stagnation}
		}

		intensity := intensityFor(stagnation)
		before := v.Total()
		b.LogOptimizerIteration(iter, before, intensity, stagnation)
		snapshot := b.Clone()

		limit := minInt(100, v.Total()*5)
		applied := 0
		for _, o := range b.BalanceWorkloads() {
			if applied >= limit {
				break
			}
			if o.Accepted {
				applied++
			}
		}
		for _, o := range b.RebalanceWeekendShifts() {
			if applied >= limit {
				break
			}
			if o.Accepted {
				applied++
			}
		}
		for _, o := range b.SwapSpecialDayShifts() {
			if applied >= limit {
				break
			}
			if o.Accepted {
				applied++
			}
		}
		for _, o := range b.AdjustLastPostDistribution() {
			if applied >= limit {
				break
			}
			if o.Accepted {
				applied++
			}
		}

		perturb(b, rng, intensity)

		after := count(b).Total()
		if after < before {
			stagnation = 0
		} else {
			// spec §4.6 step 5: accept only a net improvement; anything
			// else reverts this iteration's mutations entirely so the
			// builder never regresses below its pre-iteration state.
			*b = *snapshot
			after = before
			stagnation++
		}
		history = append(history, after)

		if v.Total() <= 5 && stagnation >= 5 {
			return Result{Iterations: iter + 1, FinalViolations: last, Converged: false, StagnationFinal: stagnation}
		}
		if avgImprovement(history) < 0.3 && len(history) >= 10 {
			return Result{Iterations: iter + 1, FinalViolations: last, Converged: false, StagnationFinal: stagnation}
		}
		if nonDecreasing(history, 3) {
			return Result{Iterations: iter + 1, FinalViolations: last, Converged: false, StagnationFinal: stagnation}
		}
	}

	return Result{Iterations: maxIterations, FinalViolations: last, Converged: last.Total() == 0, StagnationFinal: stagnation}
}

// intensityFor maps the stagnation counter onto [0.3, 1.0].
func intensityFor(stagnation int) float64 {
	intensity := 0.3 + 0.1*float64(stagnation)
	if intensity > 1.0 {
		intensity = 1.0
	}
	return intensity
}

// perturb applies bounded 2-swaps proportional to intensity. A
// genuine random two-worker swap still has to pass through the
// protection oracle and can_assign on both ends, so this reuses
// BalanceWeekdayDistribution's already-safe swap search rather than
// re-deriving that safety discipline; intensity controls how many
// rounds of it run per iteration.
func perturb(b *builder.Builder, rng *rand.Rand, intensity float64) {
	rounds := 1 + rng.Intn(1+int(intensity*3))
	for s := 0; s < rounds; s++ {
		b.BalanceWeekdayDistribution()
	}
}

func avgImprovement(history []int) float64 {
	if len(history) < 10 {
		return 1.0
	}
	window := history[len(history)-10:]
	total := 0
	for i := 1; i < len(window); i++ {
		total += window[i-1] - window[i]
	}
	return float64(total) / float64(len(window)-1)
}

func nonDecreasing(history []int, n int) bool {
	if len(history) < n+1 {
		return false
	}
	tail := history[len(history)-n-1:]
	for i := 1; i < len(tail); i++ {
		if tail[i] < tail[i-1] {
			return false
		}
	}
	return true
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
