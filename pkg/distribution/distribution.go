// Package distribution implements the advanced distribution engine of
// spec §4.9: a last-resort pass over any remaining empty slots once
// Phase 3 has finished, running four strategies in order, each
// bounded by its own cap, all funneled through the builder's
// protection oracle and rollback discipline. Grounded on the
// teacher's pkg/scheduler/solver/greedy.go (chunked, deficit-ordered
// fill) and supplemented with original_source/backtracking_manager.py's
// DeadEndIndicators heuristic for when to abandon a rollback point.
package distribution

import (
	"sort"
	"strconv"
	"time"

	"github.com/paiban/roster/pkg/builder"
	"github.com/paiban/roster/pkg/model"
)

// Report summarizes what the engine managed to fill and by which
// strategy.
type Report struct {
	FilledByChunk       int
	FilledByBacktrack   int
	FilledBySwapChain   int
	FilledByRelaxation  int
	RemainingEmpty      int
}

// Run executes the four strategies in order against b, stopping early
// once no empty slots remain.
func Run(b *builder.Builder) Report {
	var r Report

	r.FilledByChunk = chunkFill(b)
	if len(b.Schedule.EmptySlots()) == 0 {
		r.RemainingEmpty = 0
		return r
	}

	r.FilledByBacktrack = backtrackFill(b, 200)
	if len(b.Schedule.EmptySlots()) == 0 {
		r.RemainingEmpty = 0
		return r
	}

	r.FilledBySwapChain = swapChainFill(b)
	if len(b.Schedule.EmptySlots()) == 0 {
		r.RemainingEmpty = 0
		return r
	}

	r.FilledByRelaxation = progressiveRelaxationFill(b)
	r.RemainingEmpty = len(b.Schedule.EmptySlots())
	return r
}

// chunkFill partitions the schedule into 7-day windows and, within
// each, fills slots in deficit-priority order (select_worker already
// ranks candidates by deficit first).
func chunkFill(b *builder.Builder) int {
	filled := 0
	dates := b.Schedule.Dates()
	for start := 0; start < len(dates); start += 7 {
		end := start + 7
		if end > len(dates) {
			end = len(dates)
		}
		window := dates[start:end]
		sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })
		for _, date := range window {
			t, err := time.Parse("2006-01-02", date)
			if err != nil {
				continue
			}
			for p := 0; p < b.Schedule.NumPosts; p++ {
				if b.Schedule.At(date, p) != nil {
					continue
				}
				if w, ok := b.SelectWorker(t, p); ok {
					b.Place(w.ID, t, p)
					filled++
				}
			}
		}
	}
	return filled
}

// deadEnd tracks the original's DeadEndIndicators: a rollback point is
// considered exhausted once any one of these small thresholds is
// crossed, rather than only a raw depth bound.
type deadEnd struct {
	stagnationIterations int
	noImprovementCycles  int
	impossibleCount      int
}

func (d deadEnd) exhausted() bool {
	return d.stagnationIterations >= 5 || d.noImprovementCycles >= 3 || d.impossibleCount >= 10
}

// backtrackFill applies the MRV heuristic: always attack the empty
// slot with the fewest valid candidates first, trying each in score
// order, and ends the pass once the dead-end tracker reports the
// current slot exhausted.
func backtrackFill(b *builder.Builder, maxSteps int) int {
	filled := 0
	failedPairs := make(map[string]bool)
	var stats deadEnd

	for step := 0; step < maxSteps; step++ {
		slots := b.Schedule.EmptySlots()
		if len(slots) == 0 {
			break
		}

		sort.Slice(slots, func(i, j int) bool {
			return b.CandidateCount(slots[i].Date, slots[i].PostIndex) < b.CandidateCount(slots[j].Date, slots[j].PostIndex)
		})
		target := slots[0]

		ids := append([]model.WorkerID(nil), b.Order...)
		scores := make(map[model.WorkerID]float64, len(ids))
		for _, id := range ids {
			scores[id] = b.Score(b.Workers[id], target.Date, target.PostIndex)
		}
		sort.SliceStable(ids, func(i, j int) bool { return scores[ids[i]] > scores[ids[j]] })

		placed := false
		for _, id := range ids {
			key := model.DateKey(target.Date) + "|" + string(id) + "|" + strconv.Itoa(target.PostIndex)
			if failedPairs[key] {
				continue
			}
			w := b.Workers[id]
			if !b.CanAssignNow(w, target.Date, target.PostIndex) {
				failedPairs[key] = true
				stats.impossibleCount++
				continue
			}
			b.Place(id, target.Date, target.PostIndex)
			filled++
			placed = true
			stats.stagnationIterations = 0
			stats.noImprovementCycles = 0
			break
		}

		if !placed {
			stats.stagnationIterations++
			stats.noImprovementCycles++
			if stats.exhausted() {
				break
			}
		}
	}
	return filled
}

// swapChainFill looks for a single-hop chain: worker A can fill an
// empty slot t, but only once their own prior assignment is handed to
// worker B (a direct swap) — both moves going through the builder's
// oracle and rollback.
func swapChainFill(b *builder.Builder) int {
	filled := 0
	for _, slot := range b.Schedule.EmptySlots() {
		for _, id := range b.Order {
			w := b.Workers[id]
			if b.CanAssignNow(w, slot.Date, slot.PostIndex) {
				continue // direct fill would already have happened upstream
			}
			moved := b.TryFreeForSwap(id, slot.Date, slot.PostIndex)
			if moved {
				filled++
				break
			}
		}
	}
	return filled
}

// progressiveRelaxationFill escalates Strict -> RelaxedPhase1 ->
// RelaxedPhase2, bounded, re-attempting fills and keeping only
// filled slots (never undoing an already-accepted fill).
func progressiveRelaxationFill(b *builder.Builder) int {
	filled := 0
	for _, mode := range []model.Mode{model.RelaxedPhase1, model.RelaxedPhase2} {
		b.EnableRelaxed(mode)
		for _, slot := range b.Schedule.EmptySlots() {
			if w, ok := b.SelectWorker(slot.Date, slot.PostIndex); ok {
				b.Place(w.ID, slot.Date, slot.PostIndex)
				filled++
			}
		}
		if len(b.Schedule.EmptySlots()) == 0 {
			break
		}
	}
	return filled
}
