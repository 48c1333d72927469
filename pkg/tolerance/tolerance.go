// Package tolerance implements the final tolerance validator of spec
// §4 / §6: it reports target compliance within ±T%, overall coverage,
// and the termination metadata the orchestrator's output document
// carries.
package tolerance

import (
	"github.com/paiban/roster/pkg/balance"
	"github.com/paiban/roster/pkg/builder"
	"github.com/paiban/roster/pkg/model"
)

// AttemptSummary is one Phase 2.5 attempt's entry in the termination
// metadata's attempts summary.
type AttemptSummary struct {
	Index            int
	Strategy         string
	Score            float64
	EmptySlots       int
	WorkImbalance    float64
	WeekendImbalance float64
}

// Report is the orchestrator's final output document (spec §6
// Outputs): schedule snapshot is read from the builder directly by
// the caller; this carries the per-worker statistics, coverage, and
// termination metadata. It has no per-kind violations summary; the
// count of workers outside tolerance only feeds ExitCode.
type Report struct {
	Balance        balance.Report
	CoveragePercent float64
	ModeHistory    []string
	Attempts       []AttemptSummary
	IterationsRun  int
	Converged      bool
	StagnationFinal int
	ExitCode       int
}

// Compile assembles the final report from the builder's terminal
// state and the orchestrator-supplied run history. hasConfigErrors
// reflects whether the mandatory phase recorded any unresolved
// configuration problem (e.g. a mandatory clash) in the builder's
// ConfigErrors — spec §6's exit code 3 covers that case too, not only
// the pre-report errors raised before a builder exists.
func Compile(b *builder.Builder, modeHistory []string, attempts []AttemptSummary, iterationsRun int, converged bool, stagnationFinal int, hasConfigErrors bool) Report {
	report := b.Report()
	coverage := b.Coverage() * 100

	return Report{
		Balance:         report,
		CoveragePercent: coverage,
		ModeHistory:     modeHistory,
		Attempts:        attempts,
		IterationsRun:   iterationsRun,
		Converged:       converged,
		StagnationFinal: stagnationFinal,
		ExitCode:        exitCodeFor(coverage, violationCount(report), hasConfigErrors),
	}
}

func violationCount(report balance.Report) int {
	n := 0
	for _, d := range report.Deviations {
		if d.Classification != balance.WithinTolerance {
			n++
		}
	}
	return n
}

// exitCodeFor implements spec §6's CLI exit-code contract: 3 on any
// configuration error (e.g. a mandatory clash), whether raised before
// a builder exists or recorded mid-run in ConfigErrors; otherwise 0 on
// coverage >= 95% and violations = 0; 1 on coverage >= 95% and
// violations > 0; 2 on coverage < 95%.
func exitCodeFor(coveragePercent float64, violations int, hasConfigErrors bool) int {
	switch {
	case hasConfigErrors:
		return 3
	case coveragePercent >= 95 && violations == 0:
		return 0
	case coveragePercent >= 95:
		return 1
	default:
		return 2
	}
}

// WithinTarget reports whether worker w's current count is within
// v.TolerancePercent of its target, whatever mode the builder is in.
func WithinTarget(v *balance.Validator, w *model.Worker, counters *model.Counters) bool {
	if w.TargetShifts == 0 {
		return true
	}
	assigned := counters.ShiftCount[w.ID]
	devPct := absFloat(float64(assigned-w.TargetShifts) / float64(w.TargetShifts) * 100)
	return devPct <= v.TolerancePercent
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
