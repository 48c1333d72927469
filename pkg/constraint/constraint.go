// Package constraint implements the hard and soft predicates that
// gate every candidate assignment (spec §4.3). Each predicate is a
// pure function of (worker, date, post, context, mode) and returns
// (bool, reason) for auditability, matching the teacher's
// ViolationDetail-per-check discipline in pkg/scheduler/constraint.
package constraint

import (
	"fmt"
	"math"
	"time"

	"github.com/paiban/roster/pkg/calendar"
	"github.com/paiban/roster/pkg/eligibility"
	"github.com/paiban/roster/pkg/model"
)

// Context is the read-only view a predicate evaluates against: the
// current schedule, worker registry, derived counters, and active
// calendar/policy. It is the duty-roster analogue of the teacher's
// constraint.Context index maps.
type Context struct {
	Schedule *model.Schedule
	Workers  map[model.WorkerID]*model.Worker
	Counters *model.Counters
	Calendar *calendar.Calendar
	Policy   model.Policy
}

// Check is the (pass/fail, reason) result of one predicate.
type Check struct {
	Pass    bool
	Reason  string
	Penalty int
}

func ok() Check { return Check{Pass: true} }

func fail(reason string, penalty int) Check {
	return Check{Pass: false, Reason: reason, Penalty: penalty}
}

// H1Availability is the hard eligibility gate.
func H1Availability(ctx *Context, w *model.Worker, d time.Time) Check {
	if !eligibility.IsAvailable(w, d) {
		return fail(fmt.Sprintf("worker %s unavailable on %s", w.ID, model.DateKey(d)), 0)
	}
	return ok()
}

// H2Incompatibility reports whether any worker already assigned on d
// is incompatible with w.
func H2Incompatibility(ctx *Context, w *model.Worker, d time.Time) Check {
	date := model.DateKey(d)
	for p := 0; p < ctx.Schedule.NumPosts; p++ {
		other := ctx.Schedule.At(date, p)
		if other == nil || *other == w.ID {
			continue
		}
		if w.IsIncompatibleWith(*other) {
			return fail(fmt.Sprintf("worker %s incompatible with %s on %s", w.ID, *other, date), 0)
		}
	}
	return ok()
}

// H3TargetCap reports whether accepting one more shift would push w
// past the strict cap ⌊target·1.10⌋ (invariant I5).
func H3TargetCap(w *model.Worker, currentCount int) Check {
	cap := int(math.Floor(float64(w.TargetShifts) * 1.10))
	if currentCount+1 > cap {
		return fail(fmt.Sprintf("worker %s at cap %d", w.ID, cap), 0)
	}
	return ok()
}

// Deficit is target - current (positive = under target).
func Deficit(w *model.Worker, currentCount int) int {
	return w.TargetShifts - currentCount
}

// S1MinGap enforces the minimum day distance between any two of w's
// assignments. In relaxed mode the gap may drop when the worker's
// deficit is at least 3 (spec I6): by one day in RelaxedPhase1, by two
// in RelaxedPhase2's wider absolute-cap envelope.
func S1MinGap(ctx *Context, w *model.Worker, d time.Time, assignedDates []time.Time, mode model.Mode, currentCount int) Check {
	gap := w.GapBetweenShifts
	if mode != model.Strict && Deficit(w, currentCount) >= 3 {
		cut := 1
		if mode == model.RelaxedPhase2 {
			cut = 2
		}
		gap -= cut
		if gap < 0 {
			gap = 0
		}
	}
	for _, d2 := range assignedDates {
		if calendar.DaysBetween(d2, d) == 0 {
			continue
		}
		dist := calendar.DaysBetween(d2, d)
		if dist < 0 {
			dist = -dist
		}
		if dist < gap {
			return fail(fmt.Sprintf("worker %s gap %d below %d", w.ID, dist, gap), 0)
		}
	}
	return ok()
}

// S2Pattern714 prohibits two same-weekday assignments of w separated
// by exactly 7 or 14 days. Strict mode always enforces it; relaxed
// mode permits it once the worker's deficit exceeds a deficit-ratio
// threshold: 10% of target in RelaxedPhase1, halved to 5% in
// RelaxedPhase2's wider absolute-cap envelope, so Phase2 waives the
// pattern check sooner.
func S2Pattern714(w *model.Worker, d time.Time, assignedDates []time.Time, mode model.Mode, currentCount int) Check {
	if mode != model.Strict {
		target := w.TargetShifts
		threshold := 0.10
		if mode == model.RelaxedPhase2 {
			threshold = 0.05
		}
		if target > 0 && float64(Deficit(w, currentCount))/float64(target) > threshold {
			return ok()
		}
	}
	for _, d2 := range assignedDates {
		dist := calendar.DaysBetween(d2, d)
		if dist < 0 {
			dist = -dist
		}
		if (dist == 7 || dist == 14) && calendar.SameWeekday(d2, d) {
			return fail(fmt.Sprintf("worker %s pattern 7/14 at distance %d", w.ID, dist), 0)
		}
	}
	return ok()
}

// PhaseTolerancePercent picks the active deficit-envelope width for
// the soft predicates: ±8% (Policy.TolerancePercent) in RelaxedPhase1,
// widened to ±12% (Policy.Phase2TolerancePercent) once the builder has
// escalated to RelaxedPhase2. Strict mode never calls this; its soft
// predicates use the fixed ±1 envelope instead.
func PhaseTolerancePercent(mode model.Mode, policy model.Policy) float64 {
	if mode == model.RelaxedPhase2 {
		if policy.Phase2TolerancePercent == 0 {
			return 12
		}
		return policy.Phase2TolerancePercent
	}
	if policy.TolerancePercent == 0 {
		return 8
	}
	return policy.TolerancePercent
}

// S3MonthlyBalance keeps per-month counts within the expected
// envelope: ±1 in strict mode, ±tolerancePercent of expected in
// relaxed mode (PhaseTolerancePercent picks 8% or 12%).
func S3MonthlyBalance(w *model.Worker, month string, monthlyCount int, expectedMonthly float64, mode model.Mode, tolerancePercent float64) Check {
	newCount := monthlyCount + 1
	if mode == model.Strict {
		if math.Abs(float64(newCount)-expectedMonthly) > 1 {
			return fail(fmt.Sprintf("worker %s month %s count %d off expected %.1f", w.ID, month, newCount, expectedMonthly), 0)
		}
		return ok()
	}
	tolerance := expectedMonthly * tolerancePercent / 100
	if math.Abs(float64(newCount)-expectedMonthly) > tolerance {
		return fail(fmt.Sprintf("worker %s month %s count %d off expected %.1f (relaxed)", w.ID, month, newCount, expectedMonthly), 0)
	}
	return ok()
}

// S4WeekendBalance is S3's analogue for special-day counts.
func S4WeekendBalance(w *model.Worker, weekendCount int, expectedWeekend float64, mode model.Mode, tolerancePercent float64) Check {
	newCount := weekendCount + 1
	if mode == model.Strict {
		if math.Abs(float64(newCount)-expectedWeekend) > 1 {
			return fail(fmt.Sprintf("worker %s weekend count %d off expected %.1f", w.ID, newCount, expectedWeekend), 0)
		}
		return ok()
	}
	tolerance := expectedWeekend * tolerancePercent / 100
	if math.Abs(float64(newCount)-expectedWeekend) > tolerance {
		return fail(fmt.Sprintf("worker %s weekend count %d off expected %.1f (relaxed)", w.ID, newCount, expectedWeekend), 0)
	}
	return ok()
}

// S5LastPost keeps the per-worker last-post count within its balance
// envelope when p is the final post of the date.
func S5LastPost(w *model.Worker, isLastPost bool, lastPostCount int, expectedLastPost float64, mode model.Mode, tolerancePercent float64) Check {
	if !isLastPost {
		return ok()
	}
	newCount := lastPostCount + 1
	tolerance := 1.0
	if mode != model.Strict {
		tolerance = math.Max(1, expectedLastPost*tolerancePercent/100)
	}
	if math.Abs(float64(newCount)-expectedLastPost) > tolerance {
		return fail(fmt.Sprintf("worker %s last-post count %d off expected %.1f", w.ID, newCount, expectedLastPost), 0)
	}
	return ok()
}

// Result is the full can_assign verdict: the aggregate pass/fail plus
// every individual check, for the audit trail spec §4.3 requires.
type Result struct {
	Pass   bool
	Checks map[string]Check
}

// Reasons returns the failing checks' reasons, in a fixed order.
func (r Result) Reasons() []string {
	var out []string
	for _, name := range []string{"H1", "H2", "H3", "S1", "S2", "S3", "S4", "S5"} {
		if c, ok := r.Checks[name]; ok && !c.Pass {
			out = append(out, name+": "+c.Reason)
		}
	}
	return out
}
