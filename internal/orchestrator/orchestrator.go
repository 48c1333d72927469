// Package orchestrator implements the scheduler core of spec §4.8:
// the phase sequence (initialize -> mandatory -> Phase 2.5 multi-
// attempt initial distribution -> Phase 3 iterative optimization ->
// Phase 3.5 advanced distribution if empty slots remain -> Phase 4
// validation and report). It decides the escalation to RelaxedPhase2;
// optimizer.Run and the distribution package's progressive relaxation
// also raise Mode. It does not back up locked_mandatory itself: each
// Phase 2.5 attempt works on its own clone. Grounded on the teacher's
// scheduler-core phase sequencing in original_source/scheduler_core.py,
// re-expressed in the builder/islands/optimizer/distribution/
// tolerance package split this module uses instead of one monolithic
// class.
package orchestrator

import (
	"context"
	"time"

	"github.com/paiban/roster/internal/rosterlog"
	"github.com/paiban/roster/internal/runid"
	"github.com/paiban/roster/pkg/builder"
	"github.com/paiban/roster/pkg/calendar"
	"github.com/paiban/roster/pkg/distribution"
	apperrors "github.com/paiban/roster/pkg/errors"
	"github.com/paiban/roster/pkg/islands"
	"github.com/paiban/roster/pkg/iteration"
	"github.com/paiban/roster/pkg/model"
	"github.com/paiban/roster/pkg/optimizer"
	"github.com/paiban/roster/pkg/tolerance"
)

// Input is everything the orchestrator needs to run one complete
// assignment (spec §6 Inputs).
type Input struct {
	Workers  []*model.Worker
	Start    time.Time
	End      time.Time
	NumPosts int
	Holidays []string
	Policy   model.Policy
}

// Output is the orchestrator's final result (spec §6 Outputs).
type Output struct {
	RunID        string
	Builder      *builder.Builder
	Report       tolerance.Report
	Distribution distribution.Report
	ConfigErrors []string
}

// Run executes the full phase sequence and returns the final report.
// It never returns a Go error for ordinary infeasibility — those are
// captured in the report's violation counts and ConfigErrors — only
// for a configuration problem severe enough that no schedule at all
// could be produced, or for context cancellation.
func Run(ctx context.Context, in Input) (Output, error) {
	start := time.Now()
	log := rosterlog.New()
	runID := runid.NewRun()
	var modeHistory []string

	if in.NumPosts <= 0 {
		return Output{}, apperrors.Configuration("num_posts must be positive")
	}
	if !in.End.After(in.Start) && !in.End.Equal(in.Start) {
		return Output{}, apperrors.Configuration("end date must not precede start date")
	}

	cal := calendar.New(in.Holidays)
	b := builder.New(in.Workers, in.Start, in.End, in.NumPosts, cal, in.Policy)
	b.SetLogger(runID, log)

	log.PhaseTransition(runID, "init", "mandatory")
	modeHistory = append(modeHistory, b.Mode.String())
	b.AssignMandatoryGuards()
	// b.ConfigErrors already holds one human-readable diagnostic per
	// unresolved mandatory date; spec §7 reports these rather than
	// failing the run, so they flow straight into Output.ConfigErrors.

	log.PhaseTransition(runID, "mandatory", "initial_distribution")
	restrictions := iteration.RestrictionFactors{
		HasIncompatibilities: anyIncompatibilities(in.Workers),
		HasMandatoryDays:     anyMandatoryDays(in.Workers),
		HasPartTimeWorkers:   anyPartTime(in.Workers),
		HasGapConstraints:    anyGapConstraints(in.Workers),
		HasPatternLimits:     true,
	}
	plan := iteration.Compute(len(in.Workers), in.NumPosts, len(b.Schedule.Dates()), restrictions)

	best, attempts, err := islands.Run(ctx, b, plan.InitialAttempts)
	if err != nil {
		return Output{}, apperrors.Wrap(err, apperrors.ErrBudgetExceeded, "initial distribution attempts did not complete")
	}
	b = best.Builder
	log.AttemptScored(runID, best.Index, best.Score.Overall, best.Score.WorkImbalance)

	var summaries []tolerance.AttemptSummary
	for _, a := range attempts {
		summaries = append(summaries, tolerance.AttemptSummary{
			Index:            a.Index,
			Strategy:         a.Strategy.Name,
			Score:            a.Score.Overall,
			EmptySlots:       a.Score.EmptySlots,
			WorkImbalance:    a.Score.WorkImbalance,
			WeekendImbalance: a.Score.WeekendImbalance,
		})
	}

	log.PhaseTransition(runID, "initial_distribution", "optimization")
	optResult := optimizer.Run(b, plan.MaxIterations, in.Policy.Seed)
	modeHistory = append(modeHistory, b.Mode.String())

	if b.Coverage()*100 < 95 && optResult.FinalViolations.Total() > 0 {
		log.PhaseTransition(runID, "optimization", "phase2_tolerance")
		b.EnableRelaxed(model.RelaxedPhase2)
		modeHistory = append(modeHistory, b.Mode.String())
		optResult = optimizer.Run(b, plan.MaxIterations/2, in.Policy.Seed+1)
	}

	var distReport distribution.Report
	if len(b.Schedule.EmptySlots()) > 0 {
		log.PhaseTransition(runID, "optimization", "advanced_distribution")
		distReport = distribution.Run(b)
		modeHistory = append(modeHistory, b.Mode.String())
	}

	log.PhaseTransition(runID, "advanced_distribution", "validation")
	finalReport := tolerance.Compile(b, modeHistory, summaries, optResult.Iterations, optResult.Converged, optResult.StagnationFinal, len(b.ConfigErrors) > 0)

	log.RunComplete(runID, time.Since(start), finalReport.CoveragePercent, b.Mode.String())

	return Output{
		RunID:        runID,
		Builder:      b,
		Report:       finalReport,
		Distribution: distReport,
		ConfigErrors: b.ConfigErrors,
	}, nil
}

func anyIncompatibilities(workers []*model.Worker) bool {
	for _, w := range workers {
		if len(w.IncompatibleWith) > 0 {
			return true
		}
	}
	return false
}

func anyMandatoryDays(workers []*model.Worker) bool {
	for _, w := range workers {
		if len(w.MandatoryDays) > 0 {
			return true
		}
	}
	return false
}

func anyPartTime(workers []*model.Worker) bool {
	for _, w := range workers {
		if w.WorkPercentage < 100 {
			return true
		}
	}
	return false
}

func anyGapConstraints(workers []*model.Worker) bool {
	for _, w := range workers {
		if w.GapBetweenShifts > 0 {
			return true
		}
	}
	return false
}
