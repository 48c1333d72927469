package constraint

import (
	"time"

	"github.com/paiban/roster/pkg/calendar"
	"github.com/paiban/roster/pkg/model"
)

// assignedDates returns w's currently assigned dates as time.Time,
// parsed from the derived worker_assignments view.
func assignedDates(ctx *Context, w model.WorkerID) []time.Time {
	wa := ctx.Schedule.WorkerAssignments()
	dates := wa[w]
	out := make([]time.Time, 0, len(dates))
	for _, ds := range dates {
		if t, err := time.Parse("2006-01-02", ds); err == nil {
			out = append(out, t)
		}
	}
	return out
}

// ExpectedMonthly computes the fair-share monthly count for a worker
// given its target and the number of months in the schedule range.
func ExpectedMonthly(target int, numMonths int) float64 {
	if numMonths <= 0 {
		return float64(target)
	}
	return float64(target) / float64(numMonths)
}

// ExpectedWeekend computes the fair-share special-day count: target
// scaled by the range's actual share of special days
// (specialDays/totalDays); used as the envelope center for S4 and the
// builder's weekend-balance bonus.
func ExpectedWeekend(target int, totalDays, specialDays int) float64 {
	if totalDays <= 0 {
		return 0
	}
	return float64(target) * float64(specialDays) / float64(totalDays)
}

// ExpectedLastPost computes the fair-share last-post count, assuming
// uniform distribution across posts.
func ExpectedLastPost(target int, numPosts int) float64 {
	if numPosts <= 0 {
		return 0
	}
	return float64(target) / float64(numPosts)
}

// CanAssign is can_assign(w, d, p, mode) from spec §4.3: H1 ∧ H2 ∧ H3
// ∧ all applicable soft predicates for the active mode.
func CanAssign(ctx *Context, w *model.Worker, d time.Time, post int, mode model.Mode, numMonths, totalDays, specialDays int) Result {
	res := Result{Pass: true, Checks: make(map[string]Check, 8)}

	currentCount := ctx.Counters.ShiftCount[w.ID]

	checks := []struct {
		name  string
		check Check
	}{
		{"H1", H1Availability(ctx, w, d)},
		{"H2", H2Incompatibility(ctx, w, d)},
		{"H3", H3TargetCap(w, currentCount)},
	}
	for _, c := range checks {
		res.Checks[c.name] = c.check
		if !c.check.Pass {
			res.Pass = false
		}
	}
	// Hard predicates short-circuit: soft checks on an already-doomed
	// candidate would report misleading reasons (e.g. H3 cap reached
	// but S3 still computed against a count that can never occur).
	if !res.Pass {
		return res
	}

	dates := assignedDates(ctx, w.ID)
	gapCheck := S1MinGap(ctx, w, d, dates, mode, currentCount)
	patternCheck := S2Pattern714(w, d, dates, mode, currentCount)

	tolerancePercent := PhaseTolerancePercent(mode, ctx.Policy)

	month := calendar.MonthOf(d)
	monthlyCount := ctx.Counters.MonthlyCount[w.ID][month]
	monthlyCheck := S3MonthlyBalance(w, month, monthlyCount, ExpectedMonthly(w.TargetShifts, numMonths), mode, tolerancePercent)

	weekendCheck := ok()
	if ctx.Calendar.IsSpecial(d) {
		weekendCheck = S4WeekendBalance(w, ctx.Counters.WeekendCount[w.ID], ExpectedWeekend(w.TargetShifts, totalDays, specialDays), mode, tolerancePercent)
	}

	isLast := post == ctx.Schedule.NumPosts-1
	lastPostCheck := S5LastPost(w, isLast, ctx.Counters.LastPostCount[w.ID], ExpectedLastPost(w.TargetShifts, ctx.Schedule.NumPosts), mode, tolerancePercent)

	soft := []struct {
		name  string
		check Check
	}{
		{"S1", gapCheck},
		{"S2", patternCheck},
		{"S3", monthlyCheck},
		{"S4", weekendCheck},
		{"S5", lastPostCheck},
	}
	for _, c := range soft {
		res.Checks[c.name] = c.check
		// In strict mode every soft predicate is enforced as hard; in
		// relaxed mode each predicate already applies its relaxed rule
		// (deficit gates for S1/S2, wider envelopes for S3-S5), so a
		// still-failing check is a genuine rejection there too.
		if !c.check.Pass {
			res.Pass = false
		}
	}
	return res
}
