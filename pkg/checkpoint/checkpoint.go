// Package checkpoint implements the optional JSON checkpoint document
// of spec §6, supplemented with original_source/backtracking_manager.py's
// ScheduleCheckpoint dataclass: beyond the schedule and locked
// mandatory set, the document carries the full derived-counter
// snapshot so a reloaded checkpoint can resume deterministically
// rather than merely being inspectable.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/paiban/roster/internal/runid"
	"github.com/paiban/roster/pkg/builder"
	"github.com/paiban/roster/pkg/calendar"
	"github.com/paiban/roster/pkg/model"
)

// Document is the full checkpoint payload.
type Document struct {
	ID        string              `json:"id"`
	Phase     string              `json:"phase"`
	Reason    string              `json:"reason"`
	Mode      string              `json:"mode"`
	CreatedAt time.Time           `json:"created_at"`
	NumPosts  int                 `json:"num_posts"`
	Dates     []string            `json:"dates"`
	Schedule  map[string][]string `json:"schedule"` // date -> worker id per post, "" for empty
	Locked    []LockedEntry       `json:"locked_mandatory"`
	Counters  CounterSnapshot     `json:"counters"`
}

// LockedEntry is one (worker, date) pair in the locked mandatory set.
type LockedEntry struct {
	Worker string `json:"worker_id"`
	Date   string `json:"date"`
}

// CounterSnapshot mirrors the original's full derived-counter
// capture: worker_shift_counts, worker_weekend_counts, worker_posts
// (here: last-post counts), last_assignment_date, consecutive_shifts.
type CounterSnapshot struct {
	ShiftCount     map[string]int            `json:"worker_shift_counts"`
	WeekendCount   map[string]int            `json:"worker_weekend_counts"`
	LastPostCount  map[string]int            `json:"worker_posts"`
	MonthlyCount   map[string]map[string]int `json:"monthly_counts"`
	LastAssignment map[string]string         `json:"last_assignment_date"`
	Consecutive    map[string]int            `json:"consecutive_shifts"`
}

// Capture builds a Document from the builder's current state.
func Capture(b *builder.Builder, phase, reason string) Document {
	doc := Document{
		ID:        runid.NewCheckpoint(),
		Phase:     phase,
		Reason:    reason,
		Mode:      b.Mode.String(),
		CreatedAt: time.Now().UTC(),
		NumPosts:  b.Schedule.NumPosts,
		Dates:     b.Schedule.Dates(),
		Schedule:  make(map[string][]string),
		Counters:  snapshotCounters(b),
	}

	for _, date := range doc.Dates {
		row := make([]string, b.Schedule.NumPosts)
		for p := 0; p < b.Schedule.NumPosts; p++ {
			if w := b.Schedule.At(date, p); w != nil {
				row[p] = string(*w)
			} else {
				row[p] = ""
			}
		}
		doc.Schedule[date] = row
	}

	for _, id := range b.Order {
		for _, date := range doc.Dates {
			if b.IsLockedMandatory(id, mustParse(date)) {
				doc.Locked = append(doc.Locked, LockedEntry{Worker: string(id), Date: date})
			}
		}
	}

	return doc
}

func snapshotCounters(b *builder.Builder) CounterSnapshot {
	snap := CounterSnapshot{
		ShiftCount:     make(map[string]int),
		WeekendCount:   make(map[string]int),
		LastPostCount:  make(map[string]int),
		MonthlyCount:   make(map[string]map[string]int),
		LastAssignment: make(map[string]string),
		Consecutive:    make(map[string]int),
	}
	for _, id := range b.Order {
		key := string(id)
		snap.ShiftCount[key] = b.Counters.ShiftCount[id]
		snap.WeekendCount[key] = b.Counters.WeekendCount[id]
		snap.LastPostCount[key] = b.Counters.LastPostCount[id]
		if monthly := b.Counters.MonthlyCount[id]; monthly != nil {
			monthlyCopy := make(map[string]int, len(monthly))
			for m, c := range monthly {
				monthlyCopy[m] = c
			}
			snap.MonthlyCount[key] = monthlyCopy
		}
		if t := b.Counters.LastAssignment[id]; t != nil {
			snap.LastAssignment[key] = model.DateKey(*t)
		}
		snap.Consecutive[key] = b.Counters.Consecutive[id]
	}
	return snap
}

// Restore reconstructs a Builder from a captured Document, so a run
// can resume from a checkpoint instead of only inspecting it. It
// replays every recorded placement through the builder's own place
// path in chronological order (Capture's ordering of Dates), so
// Consecutive and LastAssignment are those of a chronological replay,
// which can differ from the original run's values when that run placed
// dates out of order, and then reapplies the locked-mandatory set and
// active mode.
// workers and cal must be the same ones the checkpoint was captured
// from; the document does not carry the worker registry.
func Restore(doc Document, workers []*model.Worker, cal *calendar.Calendar, policy model.Policy) (*builder.Builder, error) {
	if len(doc.Dates) == 0 {
		return nil, fmt.Errorf("checkpoint %s has no dates", doc.ID)
	}

	start := mustParse(doc.Dates[0])
	end := mustParse(doc.Dates[len(doc.Dates)-1])
	b := builder.New(workers, start, end, doc.NumPosts, cal, policy)

	for _, date := range doc.Dates {
		row := doc.Schedule[date]
		for p, workerID := range row {
			if workerID == "" {
				continue
			}
			b.Place(model.WorkerID(workerID), mustParse(date), p)
		}
	}

	for _, entry := range doc.Locked {
		b.LockMandatory(model.WorkerID(entry.Worker), mustParse(entry.Date))
	}

	switch doc.Mode {
	case model.Strict.String():
	case model.RelaxedPhase1.String():
		b.EnableRelaxed(model.RelaxedPhase1)
	case model.RelaxedPhase2.String():
		b.EnableRelaxed(model.RelaxedPhase2)
	default:
		return nil, fmt.Errorf("checkpoint %s has unknown mode %q", doc.ID, doc.Mode)
	}

	return b, nil
}

func mustParse(date string) time.Time {
	t, _ := time.Parse("2006-01-02", date)
	return t
}

// Marshal serializes the document as indented JSON.
func Marshal(doc Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// Unmarshal parses a previously captured document.
func Unmarshal(data []byte) (Document, error) {
	var doc Document
	err := json.Unmarshal(data, &doc)
	return doc, err
}
