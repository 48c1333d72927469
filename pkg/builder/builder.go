// Package builder implements the schedule builder of spec §4.5: it
// owns the Schedule, worker_assignments, counters, the mandatory
// lock, and the dual Mode/TolerancePhase switch, and exposes the
// fill/balance/rebalance transforms as the sole mutation surface.
// Grounded on the teacher's pkg/scheduler/solver/greedy.go candidate
// ranking and pkg/swap/recommender.go scoring discipline, generalized
// to the mandatory-lock and scoring rules of the distilled spec.
package builder

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/paiban/roster/internal/rosterlog"
	"github.com/paiban/roster/pkg/balance"
	"github.com/paiban/roster/pkg/calendar"
	"github.com/paiban/roster/pkg/constraint"
	"github.com/paiban/roster/pkg/model"
)

// Outcome is a transform's typed result (spec §7): a mutation either
// succeeds, is rejected with a reason, or is blocked by the
// protection oracle. Modeled as data, never as a Go error, since a
// rejected or blocked transform is expected control flow.
type Outcome struct {
	Accepted bool
	Blocked  bool
	Reason   string
}

// MandatoryKey is the (worker, date) pair recorded by the append-only
// locked mandatory set (invariant I8).
type MandatoryKey = model.MandatoryKey

// Builder is the sole mutator of Schedule, Counters, and
// locked_mandatory.
type Builder struct {
	Schedule *model.Schedule
	Workers  map[model.WorkerID]*model.Worker
	Order    []model.WorkerID

	Counters *model.Counters
	Calendar *calendar.Calendar
	Policy   model.Policy

	Mode model.Mode

	lockedMandatory map[MandatoryKey]bool

	numMonths, totalDays, specialDays int

	// ConfigErrors accumulates non-fatal mandatory-phase configuration
	// problems (spec §7's ConfigurationError kind) for the final
	// report; the engine never stops on them.
	ConfigErrors []string

	log   *rosterlog.RosterLogger
	runID string
}

// SetLogger attaches the run-scoped structured logger the orchestrator
// creates for this run. Unset by default, so builders constructed
// directly in tests stay silent.
func (b *Builder) SetLogger(runID string, l *rosterlog.RosterLogger) {
	b.runID = runID
	b.log = l
}

func (b *Builder) logMandatoryPlaced(w model.WorkerID, d time.Time, post int) {
	if b.log != nil {
		b.log.MandatoryPlaced(string(w), model.DateKey(d), post)
	}
}

// LogOptimizerIteration reports one iterative-optimizer pass to the
// run's logger, if one is attached.
func (b *Builder) LogOptimizerIteration(iteration, violations int, intensity float64, stagnation int) {
	if b.log != nil {
		b.log.OptimizerIteration(b.runID, iteration, violations, intensity, stagnation)
	}
}

// LogTransformBlocked reports a transform rejected by the protection
// oracle or rolled back after worsening the schedule's balance.
func (b *Builder) LogTransformBlocked(transform, workerID, date, reason string) {
	if b.log != nil {
		b.log.TransformBlocked(transform, workerID, date, reason)
	}
}

// New builds an empty builder over the given workers and date range.
func New(workers []*model.Worker, start, end time.Time, numPosts int, cal *calendar.Calendar, policy model.Policy) *Builder {
	order := make([]model.WorkerID, 0, len(workers))
	workerMap := make(map[model.WorkerID]*model.Worker, len(workers))
	for _, w := range workers {
		workerMap[w.ID] = w
		order = append(order, w.ID)
	}

	sched := model.NewSchedule(start, end, numPosts)
	totalDays := len(sched.Dates())
	specialDays := 0
	for _, ds := range sched.Dates() {
		t, _ := time.Parse("2006-01-02", ds)
		if cal.IsSpecial(t) {
			specialDays++
		}
	}
	numMonths := countMonths(start, end)

	return &Builder{
		Schedule:        sched,
		Workers:         workerMap,
		Order:           order,
		Counters:        model.NewCounters(workers),
		Calendar:        cal,
		Policy:          policy,
		Mode:            model.Strict,
		lockedMandatory: make(map[MandatoryKey]bool),
		numMonths:       numMonths,
		totalDays:       totalDays,
		specialDays:     specialDays,
	}
}

func countMonths(start, end time.Time) int {
	months := make(map[string]bool)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		months[calendar.MonthOf(d)] = true
	}
	return len(months)
}

// Clone produces an independent copy of the builder's mutable state
// for Phase 2.5's cloned-state attempts (spec §5, §9 "copy-on-write
// for attempts"). The worker registry and policy are shared since
// they are immutable for the run.
func (b *Builder) Clone() *Builder {
	locked := make(map[MandatoryKey]bool, len(b.lockedMandatory))
	for k, v := range b.lockedMandatory {
		locked[k] = v
	}
	return &Builder{
		Schedule:        b.Schedule.Clone(),
		Workers:         b.Workers,
		Order:           append([]model.WorkerID(nil), b.Order...),
		Counters:        b.Counters.Clone(),
		Calendar:        b.Calendar,
		Policy:          b.Policy,
		Mode:            b.Mode,
		lockedMandatory: locked,
		numMonths:       b.numMonths,
		totalDays:       b.totalDays,
		specialDays:     b.specialDays,
		ConfigErrors:    append([]string(nil), b.ConfigErrors...),
		log:             b.log,
		runID:           b.runID,
	}
}

// IsLockedMandatory reports whether (w, d) is in the append-only
// mandatory lock.
func (b *Builder) IsLockedMandatory(w model.WorkerID, d time.Time) bool {
	return b.lockedMandatory[MandatoryKey{Worker: w, Date: model.DateKey(d)}]
}

// LockMandatory adds (w, d) to the append-only mandatory lock
// directly, for checkpoint restoration replaying a prior
// AssignMandatoryGuards pass without re-running it.
func (b *Builder) LockMandatory(w model.WorkerID, d time.Time) {
	b.lockedMandatory[MandatoryKey{Worker: w, Date: model.DateKey(d)}] = true
}

// CanModify is the protection oracle: can_modify(w, d, op_name) =
// (w,d) ∉ locked_mandatory ∧ ¬is_mandatory(w, d). Every mutation path
// must call this before touching the schedule.
func (b *Builder) CanModify(w model.WorkerID, d time.Time, opName string) bool {
	if b.IsLockedMandatory(w, d) {
		return false
	}
	if worker, ok := b.Workers[w]; ok && worker.IsMandatory(d) {
		return false
	}
	return true
}

// EnableStrict never changes Mode: it is a no-op while the builder is
// still Strict and returns an error once a relaxed tier is active.
func (b *Builder) EnableStrict() error {
	if b.Mode != model.Strict {
		return fmt.Errorf("relaxed to strict transition is forbidden after the first relaxed transform")
	}
	return nil
}

// EnableRelaxed switches to the given relaxed tier. Phase2 is a
// one-way escalation from Phase1; there is no path back to Strict.
func (b *Builder) EnableRelaxed(phase model.Mode) {
	if b.Mode == model.RelaxedPhase2 && phase != model.RelaxedPhase2 {
		return
	}
	b.Mode = phase
}

func (b *Builder) constraintContext() *constraint.Context {
	return &constraint.Context{
		Schedule: b.Schedule,
		Workers:  b.Workers,
		Counters: b.Counters,
		Calendar: b.Calendar,
		Policy:   b.Policy,
	}
}

// canAssign wraps constraint.CanAssign with the builder's own counts.
func (b *Builder) canAssign(w *model.Worker, d time.Time, post int) constraint.Result {
	return constraint.CanAssign(b.constraintContext(), w, d, post, b.Mode, b.numMonths, b.totalDays, b.specialDays)
}

// place is the single write path that keeps Schedule and Counters
// transactionally coherent (invariant I1). It does not consult the
// protection oracle; callers (mandatory phase, transforms) must do so
// themselves since the oracle's rules differ by phase.
func (b *Builder) place(w model.WorkerID, d time.Time, post int) {
	date := model.DateKey(d)
	b.Schedule.Set(date, post, &w)

	b.Counters.ShiftCount[w]++
	if b.Calendar.IsSpecial(d) {
		b.Counters.WeekendCount[w]++
	}
	if post == b.Schedule.NumPosts-1 {
		b.Counters.LastPostCount[w]++
	}
	month := calendar.MonthOf(d)
	if b.Counters.MonthlyCount[w] == nil {
		b.Counters.MonthlyCount[w] = make(map[string]int)
	}
	b.Counters.MonthlyCount[w][month]++

	if last := b.Counters.LastAssignment[w]; last != nil && calendar.IsConsecutiveDate(*last, d) {
		b.Counters.Consecutive[w]++
	} else {
		b.Counters.Consecutive[w] = 1
	}
	t := d
	b.Counters.LastAssignment[w] = &t
}

// clear is place's inverse for the slot and the shift, weekend,
// last-post and monthly counters; it leaves LastAssignment and
// Consecutive as they are.
func (b *Builder) clear(w model.WorkerID, d time.Time, post int) {
	date := model.DateKey(d)
	b.Schedule.Set(date, post, nil)

	b.Counters.ShiftCount[w]--
	if b.Calendar.IsSpecial(d) {
		b.Counters.WeekendCount[w]--
	}
	if post == b.Schedule.NumPosts-1 {
		b.Counters.LastPostCount[w]--
	}
	month := calendar.MonthOf(d)
	if b.Counters.MonthlyCount[w] != nil {
		b.Counters.MonthlyCount[w][month]--
	}
}

// AssignMandatoryGuards is the mandatory phase: assign every worker's
// mandatory dates, soft predicates disabled, and lock them into
// locked_mandatory. Mirrors spec §4.5's assign_mandatory_guards.
func (b *Builder) AssignMandatoryGuards() {
	type pending struct {
		worker model.WorkerID
		date   time.Time
	}
	var jobs []pending
	for _, id := range b.Order {
		w := b.Workers[id]
		for ds := range w.MandatoryDays {
			t, err := time.Parse("2006-01-02", ds)
			if err != nil {
				continue
			}
			if !b.dateInRange(t) {
				continue
			}
			jobs = append(jobs, pending{worker: id, date: t})
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].date.Equal(jobs[j].date) {
			return jobs[i].worker < jobs[j].worker
		}
		return jobs[i].date.Before(jobs[j].date)
	})

	for _, j := range jobs {
		w := b.Workers[j.worker]
		ctx := b.constraintContext()

		if c := constraint.H1Availability(ctx, w, j.date); !c.Pass {
			b.ConfigErrors = append(b.ConfigErrors, fmt.Sprintf("mandatory date %s for %s outside work-period or on a day off", model.DateKey(j.date), w.ID))
			continue
		}
		if c := constraint.H2Incompatibility(ctx, w, j.date); !c.Pass {
			date := model.DateKey(j.date)
			conflictingMandatory := false
			for p := 0; p < b.Schedule.NumPosts; p++ {
				other := b.Schedule.At(date, p)
				if other != nil && w.IsIncompatibleWith(*other) {
					if b.Workers[*other].IsMandatory(j.date) {
						conflictingMandatory = true
					}
				}
			}
			if conflictingMandatory {
				b.ConfigErrors = append(b.ConfigErrors, fmt.Sprintf("mandatory clash: %s incompatible with an already-mandatory worker on %s", w.ID, date))
				continue
			}
			b.ConfigErrors = append(b.ConfigErrors, fmt.Sprintf("mandatory placement for %s on %s blocked by incompatibility", w.ID, date))
			continue
		}

		post := b.firstEmptyPost(j.date)
		if post < 0 {
			b.ConfigErrors = append(b.ConfigErrors, fmt.Sprintf("no free post for mandatory worker %s on %s", w.ID, model.DateKey(j.date)))
			continue
		}

		b.place(j.worker, j.date, post)
		b.lockedMandatory[MandatoryKey{Worker: j.worker, Date: model.DateKey(j.date)}] = true
		b.logMandatoryPlaced(j.worker, j.date, post)
	}
}

func (b *Builder) firstEmptyPost(d time.Time) int {
	date := model.DateKey(d)
	for p := 0; p < b.Schedule.NumPosts; p++ {
		if b.Schedule.At(date, p) == nil {
			return p
		}
	}
	return -1
}

func (b *Builder) dateInRange(d time.Time) bool {
	for _, ds := range b.Schedule.Dates() {
		if ds == model.DateKey(d) {
			return true
		}
	}
	return false
}

// Score implements spec §4.5's score(w, d, p): a total ordering over
// candidates, with deficit-priority, a gap-distance bonus, weekend and
// monthly balance bonuses, a last-post bonus, and an over-target
// penalty. It has no pattern-reuse bonus.
func (b *Builder) Score(w *model.Worker, d time.Time, post int) float64 {
	score := 0.0
	currentCount := b.Counters.ShiftCount[w.ID]
	deficit := constraint.Deficit(w, currentCount)

	switch {
	case deficit >= 5:
		score += 25000 + 5000*float64(deficit)
	case deficit == 4:
		score += 18000 + 3000*4
	case deficit == 3:
		score += 18000 + 3000*3
	case deficit == 2:
		score += 14000
	case deficit == 1:
		score += 10000
	}

	delta := minGapDistance(b, w.ID, d)
	if delta >= w.GapBetweenShifts {
		over := float64(delta - w.GapBetweenShifts)
		score += 500 + 200*pow15(over)
	}

	if b.Calendar.IsSpecial(d) {
		expected := constraint.ExpectedWeekend(w.TargetShifts, b.totalDays, b.specialDays)
		if float64(b.Counters.WeekendCount[w.ID]) < expected {
			score += 800
		}
	}

	month := calendar.MonthOf(d)
	expectedMonthly := constraint.ExpectedMonthly(w.TargetShifts, b.numMonths)
	if float64(b.Counters.MonthlyCount[w.ID][month]) < expectedMonthly {
		score += 600
	}

	if post == b.Schedule.NumPosts-1 {
		expectedLast := constraint.ExpectedLastPost(w.TargetShifts, b.Schedule.NumPosts)
		if float64(b.Counters.LastPostCount[w.ID]) < expectedLast {
			score += 400
		}
	}

	if currentCount > w.TargetShifts {
		score -= 300 * float64(currentCount-w.TargetShifts)
	}

	return score
}

func pow15(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Sqrt(x) * x
}

func minGapDistance(b *Builder, w model.WorkerID, d time.Time) int {
	wa := b.Schedule.WorkerAssignments()
	dates := wa[w]
	if len(dates) == 0 {
		return b.Workers[w].GapBetweenShifts + 1
	}
	min := -1
	for _, ds := range dates {
		t, err := time.Parse("2006-01-02", ds)
		if err != nil {
			continue
		}
		dist := calendar.DaysBetween(t, d)
		if dist < 0 {
			dist = -dist
		}
		if min == -1 || dist < min {
			min = dist
		}
	}
	if min == -1 {
		return b.Workers[w].GapBetweenShifts + 1
	}
	return min
}

// candidate is a scored worker for a given slot.
type candidate struct {
	worker *model.Worker
	score  float64
}

// SelectWorker is select_worker(d, p, mode): enumerate can_assign
// workers, rank by score, return the top one. Ties break by lower
// current count, then by worker id (spec's total ordering, L2).
func (b *Builder) SelectWorker(d time.Time, post int) (*model.Worker, bool) {
	var cands []candidate
	for _, id := range b.Order {
		w := b.Workers[id]
		if !b.canAssign(w, d, post).Pass {
			continue
		}
		cands = append(cands, candidate{worker: w, score: b.Score(w, d, post)})
	}
	if len(cands) == 0 {
		return nil, false
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		ci := b.Counters.ShiftCount[cands[i].worker.ID]
		cj := b.Counters.ShiftCount[cands[j].worker.ID]
		if ci != cj {
			return ci < cj
		}
		return cands[i].worker.ID < cands[j].worker.ID
	})
	return cands[0].worker, true
}

// CandidateCount returns the number of workers that currently
// can_assign a given slot, used by the "most constrained first"
// ordering heuristic.
func (b *Builder) CandidateCount(d time.Time, post int) int {
	n := 0
	for _, id := range b.Order {
		if b.canAssign(b.Workers[id], d, post).Pass {
			n++
		}
	}
	return n
}

// BalanceValidator builds a fresh balance.Validator from the
// builder's active policy.
func (b *Builder) BalanceValidator() *balance.Validator {
	return balance.New(b.Policy)
}

// Report computes the current balance report.
func (b *Builder) Report() balance.Report {
	workers := make([]*model.Worker, 0, len(b.Workers))
	for _, id := range b.Order {
		workers = append(workers, b.Workers[id])
	}
	return b.BalanceValidator().Validate(workers, b.Counters)
}

// Place is the exported direct-placement entry point used by the
// advanced distribution engine's fill strategies when assigning into
// a currently empty slot (no protection-oracle check is needed since
// nothing occupies the slot yet).
func (b *Builder) Place(w model.WorkerID, d time.Time, post int) {
	b.place(w, d, post)
}

// CanAssignNow reports whether w currently satisfies can_assign for
// (d, post) under the builder's active mode.
func (b *Builder) CanAssignNow(w *model.Worker, d time.Time, post int) bool {
	return b.canAssign(w, d, post).Pass
}

// TryFreeForSwap looks for one of candidate's existing modifiable
// assignments that, if handed to a replacement worker, would let
// candidate legally take (d, post). On success both moves are
// committed; on failure the schedule is left exactly as it was.
func (b *Builder) TryFreeForSwap(candidate model.WorkerID, d time.Time, post int) bool {
	for _, date := range b.Schedule.Dates() {
		for p := 0; p < b.Schedule.NumPosts; p++ {
			occ := b.Schedule.At(date, p)
			if occ == nil || *occ != candidate {
				continue
			}
			t, err := time.Parse("2006-01-02", date)
			if err != nil || !b.CanModify(candidate, t, "swap_chain") {
				continue
			}

			b.clear(candidate, t, p)
			if !b.canAssign(b.Workers[candidate], d, post).Pass {
				b.place(candidate, t, p)
				continue
			}
			replacement, ok := b.SelectWorker(t, p)
			if !ok || replacement.ID == candidate {
				b.place(candidate, t, p)
				continue
			}
			b.place(candidate, d, post)
			b.place(replacement.ID, t, p)
			return true
		}
	}
	return false
}

// TotalDays returns the schedule's day count.
func (b *Builder) TotalDays() int { return b.totalDays }

// SpecialDays returns the schedule's special-day count.
func (b *Builder) SpecialDays() int { return b.specialDays }

// Coverage is (total_slots - empty_slots) / total_slots.
func (b *Builder) Coverage() float64 {
	total := b.Schedule.TotalSlots()
	if total == 0 {
		return 1
	}
	empty := len(b.Schedule.EmptySlots())
	return float64(total-empty) / float64(total)
}
