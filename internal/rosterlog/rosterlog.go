// Package rosterlog wraps the engine's zerolog-based logger with
// structured helpers for the assignment engine's own events, mirroring
// the teacher's SchedulerLogger in pkg/logger/logger.go.
package rosterlog

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/paiban/roster/pkg/logger"
)

// RosterLogger is the duty-roster analogue of the teacher's
// SchedulerLogger: one component-scoped logger exposing the events
// this engine actually emits.
type RosterLogger struct {
	base *zerolog.Logger
}

// New returns a RosterLogger scoped to the "roster" component.
func New() *RosterLogger {
	l := logger.Get().With().Str("component", "roster").Logger()
	return &RosterLogger{base: &l}
}

// PhaseTransition logs a move between orchestrator phases (init,
// mandatory, initial distribution, optimization, advanced
// distribution, validation).
func (l *RosterLogger) PhaseTransition(runID, from, to string) {
	l.base.Info().
		Str("run_id", runID).
		Str("from", from).
		Str("to", to).
		Msg("phase transition")
}

// MandatoryPlaced logs a successfully locked mandatory assignment.
func (l *RosterLogger) MandatoryPlaced(workerID, date string, post int) {
	l.base.Debug().
		Str("worker_id", workerID).
		Str("date", date).
		Int("post", post).
		Msg("mandatory assignment locked")
}

// AttemptScored logs one Phase 2.5 island attempt's final score.
func (l *RosterLogger) AttemptScored(runID string, attempt int, score, workImbalance float64) {
	l.base.Info().
		Str("run_id", runID).
		Int("attempt", attempt).
		Float64("score", score).
		Float64("work_imbalance", workImbalance).
		Msg("attempt scored")
}

// OptimizerIteration logs one iterative-optimizer pass.
func (l *RosterLogger) OptimizerIteration(runID string, iteration, violations int, intensity float64, stagnation int) {
	l.base.Debug().
		Str("run_id", runID).
		Int("iteration", iteration).
		Int("violations", violations).
		Float64("intensity", intensity).
		Int("stagnation", stagnation).
		Msg("optimizer iteration")
}

// TransformBlocked logs a transform rejected or blocked by the
// protection oracle or a post-mutation rollback.
func (l *RosterLogger) TransformBlocked(transform, workerID, date, reason string) {
	l.base.Warn().
		Str("transform", transform).
		Str("worker_id", workerID).
		Str("date", date).
		Str("reason", reason).
		Msg("transform blocked")
}

// RunComplete logs the final termination state of one engine run.
func (l *RosterLogger) RunComplete(runID string, duration time.Duration, coverage float64, mode string) {
	l.base.Info().
		Str("run_id", runID).
		Dur("duration", duration).
		Float64("coverage", coverage).
		Str("final_mode", mode).
		Msg("run complete")
}
