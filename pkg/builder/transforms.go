package builder

import (
	"fmt"
	"time"

	"github.com/paiban/roster/pkg/balance"
	"github.com/paiban/roster/pkg/model"
)

// FillEmptyShifts is the two-pass fill transform of spec §4.5: a
// direct pass assigns select_worker's top candidate into every empty
// slot it can; a second swap pass retries slots the direct pass
// skipped by looking for an already-assigned worker who could move
// elsewhere to free room for a higher-deficit worker. Returns the
// number of slots filled.
func (b *Builder) FillEmptyShifts() int {
	filled := 0
	for _, slot := range b.Schedule.EmptySlots() {
		if w, ok := b.SelectWorker(slot.Date, slot.PostIndex); ok {
			b.place(w.ID, slot.Date, slot.PostIndex)
			filled++
		}
	}

	for _, slot := range b.Schedule.EmptySlots() {
		if b.trySwapFill(slot.Date, slot.PostIndex) {
			filled++
		}
	}
	return filled
}

// trySwapFill looks for an assigned worker elsewhere on the same date
// whose own slot could instead be filled by a third worker, freeing
// them to move into the target slot. Mirrors the teacher's
// pkg/swap/recommender.go chain search, bounded to a single hop.
func (b *Builder) trySwapFill(d time.Time, post int) bool {
	date := model.DateKey(d)
	for otherPost := 0; otherPost < b.Schedule.NumPosts; otherPost++ {
		if otherPost == post {
			continue
		}
		occupant := b.Schedule.At(date, otherPost)
		if occupant == nil {
			continue
		}
		if !b.CanModify(*occupant, d, "swap_fill") {
			continue
		}
		w := b.Workers[*occupant]
		if !b.canAssign(w, d, post).Pass {
			continue
		}
		replacement, ok := b.SelectWorker(d, otherPost)
		if !ok || replacement.ID == *occupant {
			continue
		}
		occID := *occupant
		b.clear(occID, d, otherPost)
		b.place(occID, d, post)
		b.place(replacement.ID, d, otherPost)
		return true
	}
	return false
}

// moveShift relocates one assignment from (fromWorker, d, fromPost)
// onto toWorker at the same slot, subject to the protection oracle
// and a pre/post balance check. On rejection the schedule is left
// untouched (no partial mutation ever escapes this function).
func (b *Builder) moveShift(fromWorker model.WorkerID, d time.Time, post int, toWorker model.WorkerID) Outcome {
	if !b.CanModify(fromWorker, d, "move_shift") {
		reason := "source assignment is mandatory or locked"
		b.LogTransformBlocked("move_shift", string(fromWorker), model.DateKey(d), reason)
		return Outcome{Blocked: true, Reason: reason}
	}
	to := b.Workers[toWorker]
	if !b.canAssign(to, d, post).Pass {
		return Outcome{Reason: "destination worker fails can_assign for this slot"}
	}

	fromAssigned := b.Counters.ShiftCount[fromWorker]
	toAssigned := b.Counters.ShiftCount[toWorker]
	ok, reason := balance.TransferValidity(b.BalanceValidator(), b.Workers[fromWorker], to, fromAssigned, toAssigned, b.Mode)
	if !ok {
		return Outcome{Reason: reason}
	}

	before := b.Report()
	b.clear(fromWorker, d, post)
	b.place(toWorker, d, post)
	after := b.Report()

	if after.MaxDeviation > before.MaxDeviation && after.MaxDeviation > b.BalanceValidator().CriticalPercent {
		b.clear(toWorker, d, post)
		b.place(fromWorker, d, post)
		reason := "rolled back: transform would worsen the worst-case deviation past the critical tier"
		b.LogTransformBlocked("move_shift", string(fromWorker), model.DateKey(d), reason)
		return Outcome{Reason: reason}
	}
	return Outcome{Accepted: true}
}

// BalanceWorkloads implements balance_workloads: for every
// over-target/under-target pair the balance validator recommends, try
// the transfer; each accepted move is logged by its Outcome.
func (b *Builder) BalanceWorkloads() []Outcome {
	report := b.Report()
	recs := b.BalanceValidator().RebalancingRecommendations(report)
	var outcomes []Outcome
	for _, rec := range recs {
		moved := 0
		for moved < rec.ShiftsToTransfer {
			slot, found := b.anyModifiableSlot(rec.FromWorker)
			if !found {
				break
			}
			o := b.moveShift(rec.FromWorker, slot.Date, slot.PostIndex, rec.ToWorker)
			outcomes = append(outcomes, o)
			if !o.Accepted {
				break
			}
			moved++
		}
	}
	return outcomes
}

// anyModifiableSlot finds a date/post currently held by w that the
// protection oracle allows touching.
func (b *Builder) anyModifiableSlot(w model.WorkerID) (model.Slot, bool) {
	for _, date := range b.Schedule.Dates() {
		for p := 0; p < b.Schedule.NumPosts; p++ {
			if occ := b.Schedule.At(date, p); occ != nil && *occ == w {
				t, _ := time.Parse("2006-01-02", date)
				if b.CanModify(w, t, "rebalance") {
					return model.Slot{Date: t, PostIndex: p}, true
				}
			}
		}
	}
	return model.Slot{}, false
}

// BalanceWeekdayDistribution implements balance_weekday_distribution:
// for each weekday, finds the worker most above and most below the
// per-weekday fair share and attempts a single move between their
// assignments that land on that weekday.
func (b *Builder) BalanceWeekdayDistribution() []Outcome {
	var outcomes []Outcome
	counts := make(map[time.Weekday]map[model.WorkerID]int)
	for _, date := range b.Schedule.Dates() {
		t, _ := time.Parse("2006-01-02", date)
		wd := t.Weekday()
		if counts[wd] == nil {
			counts[wd] = make(map[model.WorkerID]int)
		}
		for p := 0; p < b.Schedule.NumPosts; p++ {
			if occ := b.Schedule.At(date, p); occ != nil {
				counts[wd][*occ]++
			}
		}
	}

	for wd, perWorker := range counts {
		var maxW, minW model.WorkerID
		maxC, minC := -1, -1
		for _, id := range b.Order {
			c := perWorker[id]
			if maxC == -1 || c > maxC {
				maxC, maxW = c, id
			}
			if minC == -1 || c < minC {
				minC, minW = c, id
			}
		}
		if maxW == minW || maxC-minC < 2 {
			continue
		}
		slot, found := b.weekdaySlot(maxW, wd)
		if !found {
			continue
		}
		outcomes = append(outcomes, b.moveShift(maxW, slot.Date, slot.PostIndex, minW))
	}
	return outcomes
}

func (b *Builder) weekdaySlot(w model.WorkerID, wd time.Weekday) (model.Slot, bool) {
	for _, date := range b.Schedule.Dates() {
		t, _ := time.Parse("2006-01-02", date)
		if t.Weekday() != wd {
			continue
		}
		for p := 0; p < b.Schedule.NumPosts; p++ {
			if occ := b.Schedule.At(date, p); occ != nil && *occ == w && b.CanModify(w, t, "weekday_balance") {
				return model.Slot{Date: t, PostIndex: p}, true
			}
		}
	}
	return model.Slot{}, false
}

// RebalanceWeekendShifts implements rebalance_weekend_shifts: the same
// transfer search as BalanceWorkloads, restricted to special-day
// slots and driven by weekend-count deviation rather than total-count
// deviation.
func (b *Builder) RebalanceWeekendShifts() []Outcome {
	var outcomes []Outcome
	type dev struct {
		id  model.WorkerID
		dev float64
	}
	var devs []dev
	for _, id := range b.Order {
		w := b.Workers[id]
		if w.TargetShifts == 0 {
			continue
		}
		expected := expectedWeekendFor(b, w)
		actual := float64(b.Counters.WeekendCount[id])
		devs = append(devs, dev{id: id, dev: actual - expected})
	}

	for _, over := range devs {
		if over.dev <= 1 {
			continue
		}
		for _, under := range devs {
			if under.dev >= -1 || under.id == over.id {
				continue
			}
			slot, found := b.specialDaySlot(over.id)
			if !found {
				continue
			}
			outcomes = append(outcomes, b.moveShift(over.id, slot.Date, slot.PostIndex, under.id))
			break
		}
	}
	return outcomes
}

func expectedWeekendFor(b *Builder, w *model.Worker) float64 {
	return float64(w.TargetShifts) * float64(b.specialDays) / float64(maxInt(b.totalDays, 1))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (b *Builder) specialDaySlot(w model.WorkerID) (model.Slot, bool) {
	for _, date := range b.Schedule.Dates() {
		t, _ := time.Parse("2006-01-02", date)
		if !b.Calendar.IsSpecial(t) {
			continue
		}
		for p := 0; p < b.Schedule.NumPosts; p++ {
			if occ := b.Schedule.At(date, p); occ != nil && *occ == w && b.CanModify(w, t, "weekend_rebalance") {
				return model.Slot{Date: t, PostIndex: p}, true
			}
		}
	}
	return model.Slot{}, false
}

// RedistributeExcessShifts implements redistribute_excess_shifts:
// workers strictly above H3's cap-minus-slack band hand shifts to
// workers still in deficit, without regard for day-of-week or
// special-day classification — the last-resort global move.
func (b *Builder) RedistributeExcessShifts() []Outcome {
	var outcomes []Outcome
	var over, under []model.WorkerID
	for _, id := range b.Order {
		w := b.Workers[id]
		count := b.Counters.ShiftCount[id]
		switch {
		case count > w.TargetShifts:
			over = append(over, id)
		case count < w.TargetShifts:
			under = append(under, id)
		}
	}
	for _, o := range over {
		for _, u := range under {
			if b.Counters.ShiftCount[o] <= b.Workers[o].TargetShifts {
				break
			}
			if b.Counters.ShiftCount[u] >= b.Workers[u].TargetShifts {
				continue
			}
			slot, found := b.anyModifiableSlot(o)
			if !found {
				continue
			}
			outcomes = append(outcomes, b.moveShift(o, slot.Date, slot.PostIndex, u))
		}
	}
	return outcomes
}

// SwapSpecialDayShifts implements swap_special_day_shifts: a worker
// over their weekend quota is cleared off a special-day slot and
// replaced by a worker under quota, through the same protection
// oracle and select_worker ranking as any other placement. This moves
// one shift from the over-quota worker to the under-quota one; it is
// not a net-zero exchange of two slots.
func (b *Builder) SwapSpecialDayShifts() []Outcome {
	var outcomes []Outcome
	for _, date := range b.Schedule.Dates() {
		t, _ := time.Parse("2006-01-02", date)
		if !b.Calendar.IsSpecial(t) {
			continue
		}
		for p := 0; p < b.Schedule.NumPosts; p++ {
			occ := b.Schedule.At(date, p)
			if occ == nil || !b.CanModify(*occ, t, "special_swap") {
				continue
			}
			w := b.Workers[*occ]
			expected := expectedWeekendFor(b, w)
			if float64(b.Counters.WeekendCount[*occ]) <= expected+1 {
				continue
			}
			replacement, ok := b.SelectWorker(t, p)
			if !ok || replacement.ID == *occ {
				continue
			}
			if float64(b.Counters.WeekendCount[replacement.ID]) >= expectedWeekendFor(b, replacement) {
				continue
			}
			id := *occ
			b.clear(id, t, p)
			b.place(replacement.ID, t, p)
			outcomes = append(outcomes, Outcome{Accepted: true, Reason: fmt.Sprintf("%s -> %s on %s", id, replacement.ID, date)})
		}
	}
	return outcomes
}

// AdjustLastPostDistribution implements adjust_last_post_distribution:
// within one date, swap the post indices of a worker over their
// fair-share last-post count with a worker under it, so each worker's
// total, monthly, and weekend counts are untouched and only the
// last-post count moves.
func (b *Builder) AdjustLastPostDistribution() []Outcome {
	var outcomes []Outcome
	lastPost := b.Schedule.NumPosts - 1
	if lastPost <= 0 {
		return outcomes
	}
	type dev struct {
		id  model.WorkerID
		dev float64
	}
	var devs []dev
	for _, id := range b.Order {
		w := b.Workers[id]
		if w.TargetShifts == 0 {
			continue
		}
		expected := float64(w.TargetShifts) / float64(b.Schedule.NumPosts)
		devs = append(devs, dev{id: id, dev: float64(b.Counters.LastPostCount[id]) - expected})
	}
	for _, over := range devs {
		if over.dev <= 1 {
			continue
		}
		for _, under := range devs {
			if under.dev >= -1 || under.id == over.id {
				continue
			}
			if o, ok := b.swapLastPost(over.id, under.id, lastPost); ok {
				outcomes = append(outcomes, o)
				break
			}
		}
	}
	return outcomes
}

// swapLastPost finds a date where over holds the final post and under
// holds some other post, and exchanges their post assignments on that
// date through the protection oracle. Neither worker's total, monthly,
// or weekend counters change; only which post each holds that day.
func (b *Builder) swapLastPost(over, under model.WorkerID, lastPost int) (Outcome, bool) {
	for _, date := range b.Schedule.Dates() {
		overOcc := b.Schedule.At(date, lastPost)
		if overOcc == nil || *overOcc != over {
			continue
		}
		t, _ := time.Parse("2006-01-02", date)
		if !b.CanModify(over, t, "last_post_swap") {
			continue
		}
		for p := 0; p < lastPost; p++ {
			underOcc := b.Schedule.At(date, p)
			if underOcc == nil || *underOcc != under {
				continue
			}
			if !b.CanModify(under, t, "last_post_swap") {
				continue
			}
			b.clear(over, t, lastPost)
			b.clear(under, t, p)
			b.place(under, t, lastPost)
			b.place(over, t, p)
			return Outcome{Accepted: true, Reason: fmt.Sprintf("%s <-> %s post swap on %s", over, under, date)}, true
		}
	}
	return Outcome{}, false
}
