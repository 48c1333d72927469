// Package islands implements spec §4.8's Phase 2.5 multi-attempt
// initial distribution: N independent cloned-state attempts, each
// under a different worker-ordering strategy, merged by a single
// lexicographic max-select. Grounded on the teacher's island/parallel
// optimizer pattern in pkg/scheduler/optimizer, generalized from
// simulated-annealing restarts to ordering-strategy restarts, and
// bounded with golang.org/x/sync/errgroup instead of a raw
// sync.WaitGroup for first-error propagation.
package islands

import (
	"context"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/paiban/roster/pkg/builder"
	"github.com/paiban/roster/pkg/model"
)

// Strategy names the worker-ordering rotation of spec §4.8 step 3.
type Strategy struct {
	Name string
	Seed int64
}

// Rotation returns the fixed ten-strategy rotation, seeded from the
// attempt index i (1-based) as the spec's formulas dictate.
func Rotation(i int) Strategy {
	switch i % 10 {
	case 1:
		return Strategy{Name: "balanced"}
	case 2:
		return Strategy{Name: "seed", Seed: 42 + int64(i)}
	case 3:
		return Strategy{Name: "by_id_asc"}
	case 4:
		return Strategy{Name: "seed", Seed: 100 + 7*int64(i)}
	case 5:
		return Strategy{Name: "by_id_desc"}
	case 6:
		return Strategy{Name: "seed", Seed: 200 + 13*int64(i)}
	case 7:
		return Strategy{Name: "workload_priority"}
	case 8:
		return Strategy{Name: "seed", Seed: 300 + 17*int64(i)}
	case 9:
		return Strategy{Name: "alternating"}
	default:
		return Strategy{Name: "seed", Seed: 400 + 23*int64(i)}
	}
}

// orderFor reorders base according to strategy, without mutating it.
func orderFor(base []model.WorkerID, workers map[model.WorkerID]*model.Worker, s Strategy) []model.WorkerID {
	order := append([]model.WorkerID(nil), base...)

	switch s.Name {
	case "balanced":
		return order
	case "seed":
		r := rand.New(rand.NewSource(s.Seed))
		r.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		return order
	case "by_id_asc":
		sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
		return order
	case "by_id_desc":
		sort.Slice(order, func(i, j int) bool { return order[i] > order[j] })
		return order
	case "workload_priority":
		sort.SliceStable(order, func(i, j int) bool {
			return workers[order[i]].TargetShifts > workers[order[j]].TargetShifts
		})
		return order
	case "alternating":
		out := make([]model.WorkerID, 0, len(order))
		i, j := 0, len(order)-1
		for i <= j {
			out = append(out, order[i])
			if i != j {
				out = append(out, order[j])
			}
			i++
			j--
		}
		return out
	default:
		return order
	}
}

// Score is the attempt-ranking tuple of spec §4.8: (overall_score,
// -empty_shifts, -work_imbalance, -weekend_imbalance), compared
// lexicographically, highest wins.
type Score struct {
	Overall          float64
	EmptySlots       int
	WorkImbalance    float64
	WeekendImbalance float64
}

// Beats reports whether s is strictly better than other under the
// spec's lexicographic ordering.
func (s Score) Beats(other Score) bool {
	if s.Overall != other.Overall {
		return s.Overall > other.Overall
	}
	if s.EmptySlots != other.EmptySlots {
		return s.EmptySlots < other.EmptySlots
	}
	if s.WorkImbalance != other.WorkImbalance {
		return s.WorkImbalance < other.WorkImbalance
	}
	return s.WeekendImbalance < other.WeekendImbalance
}

func scoreOf(b *builder.Builder) Score {
	report := b.Report()
	empty := len(b.Schedule.EmptySlots())

	workImbalance := 0.0
	weekendImbalance := 0.0
	for _, d := range report.Deviations {
		workImbalance += d.AbsDeviationPercent
	}
	for _, id := range b.Order {
		w := b.Workers[id]
		if w.TargetShifts == 0 {
			continue
		}
		expected := float64(w.TargetShifts) * float64(b.SpecialDays()) / float64(maxInt(b.TotalDays(), 1))
		weekendImbalance += abs(float64(b.Counters.WeekendCount[id]) - expected)
	}

	overall := float64(b.Schedule.TotalSlots()-empty) - workImbalance*0.1 - weekendImbalance*0.1

	return Score{
		Overall:          overall,
		EmptySlots:       empty,
		WorkImbalance:    workImbalance,
		WeekendImbalance: weekendImbalance,
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Attempt is one completed island's result.
type Attempt struct {
	Index    int
	Strategy Strategy
	Builder  *builder.Builder
	Score    Score
}

// Run executes n independent attempts against base (already past the
// mandatory phase), each on its own clone, under errgroup. Attempts do
// not report errors of their own; the only error Run returns is ctx's,
// when it is cancelled before every attempt has started. Returns the
// winning attempt by lexicographic max-select.
func Run(ctx context.Context, base *builder.Builder, n int) (*Attempt, []Attempt, error) {
	attempts := make([]Attempt, n)
	g, ctx := errgroup.WithContext(ctx)

	for i := 1; i <= n; i++ {
		i := i
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			strat := Rotation(i)
			clone := base.Clone()
			clone.Order = orderFor(base.Order, base.Workers, strat)
			clone.FillEmptyShifts()

			attempts[i-1] = Attempt{
				Index:    i,
				Strategy: strat,
				Builder:  clone,
				Score:    scoreOf(clone),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	best := &attempts[0]
	for i := 1; i < len(attempts); i++ {
		if attempts[i].Score.Beats(best.Score) {
			best = &attempts[i]
		}
	}
	return best, attempts, nil
}
