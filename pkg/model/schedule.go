package model

import (
	"sort"
	"time"
)

// Slot identifies one (date, post) position in the roster.
type Slot struct {
	Date      time.Time
	PostIndex int
}

// Mode is the builder's dual-mode state machine flag (spec §3, §4.10).
type Mode int

const (
	// Strict mode treats soft predicates as hard; used for the
	// mandatory phase and the multi-attempt initial distribution.
	Strict Mode = iota
	// RelaxedPhase1 gates soft predicates by per-worker deficit,
	// target tolerance ±8%.
	RelaxedPhase1
	// RelaxedPhase2 is the absolute-cap escalation tier, ±12%,
	// entered only once on stagnation below 95% coverage.
	RelaxedPhase2
)

func (m Mode) String() string {
	switch m {
	case Strict:
		return "strict"
	case RelaxedPhase1:
		return "relaxed_phase1"
	case RelaxedPhase2:
		return "relaxed_phase2"
	default:
		return "unknown"
	}
}

// MandatoryKey is a (worker, date) pair in the locked mandatory set.
type MandatoryKey struct {
	Worker WorkerID
	Date   string
}

// Counters holds the derived per-worker balance state that must stay
// coherent with Schedule (invariant I1).
type Counters struct {
	ShiftCount     map[WorkerID]int
	WeekendCount   map[WorkerID]int
	LastPostCount  map[WorkerID]int
	MonthlyCount   map[WorkerID]map[string]int
	LastAssignment map[WorkerID]*time.Time
	Consecutive    map[WorkerID]int
}

// NewCounters returns zeroed counters for the given workers.
func NewCounters(workers []*Worker) *Counters {
	c := &Counters{
		ShiftCount:     make(map[WorkerID]int),
		WeekendCount:   make(map[WorkerID]int),
		LastPostCount:  make(map[WorkerID]int),
		MonthlyCount:   make(map[WorkerID]map[string]int),
		LastAssignment: make(map[WorkerID]*time.Time),
		Consecutive:    make(map[WorkerID]int),
	}
	for _, w := range workers {
		c.ShiftCount[w.ID] = 0
		c.WeekendCount[w.ID] = 0
		c.LastPostCount[w.ID] = 0
		c.MonthlyCount[w.ID] = make(map[string]int)
		c.LastAssignment[w.ID] = nil
		c.Consecutive[w.ID] = 0
	}
	return c
}

// Clone deep-copies the counters for Phase 2.5's cloned-state attempts.
func (c *Counters) Clone() *Counters {
	n := &Counters{
		ShiftCount:     make(map[WorkerID]int, len(c.ShiftCount)),
		WeekendCount:   make(map[WorkerID]int, len(c.WeekendCount)),
		LastPostCount:  make(map[WorkerID]int, len(c.LastPostCount)),
		MonthlyCount:   make(map[WorkerID]map[string]int, len(c.MonthlyCount)),
		LastAssignment: make(map[WorkerID]*time.Time, len(c.LastAssignment)),
		Consecutive:    make(map[WorkerID]int, len(c.Consecutive)),
	}
	for k, v := range c.ShiftCount {
		n.ShiftCount[k] = v
	}
	for k, v := range c.WeekendCount {
		n.WeekendCount[k] = v
	}
	for k, v := range c.LastPostCount {
		n.LastPostCount[k] = v
	}
	for k, m := range c.MonthlyCount {
		nm := make(map[string]int, len(m))
		for mk, mv := range m {
			nm[mk] = mv
		}
		n.MonthlyCount[k] = nm
	}
	for k, v := range c.LastAssignment {
		if v == nil {
			n.LastAssignment[k] = nil
			continue
		}
		t := *v
		n.LastAssignment[k] = &t
	}
	for k, v := range c.Consecutive {
		n.Consecutive[k] = v
	}
	return n
}

// Schedule is a mapping date -> ordered sequence of worker slots.
// Insertion order of dates is irrelevant; posts within a date are
// ordered (the last post has distinct balance semantics).
type Schedule struct {
	NumPosts int
	days     map[string][]*WorkerID
	order    []string
}

// NewSchedule builds an empty schedule of num_posts slots per day
// over [start, end], inclusive.
func NewSchedule(start, end time.Time, numPosts int) *Schedule {
	s := &Schedule{
		NumPosts: numPosts,
		days:     make(map[string][]*WorkerID),
	}
	start = truncateDay(start)
	end = truncateDay(end)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := DateKey(d)
		s.days[key] = make([]*WorkerID, numPosts)
		s.order = append(s.order, key)
	}
	return s
}

// Dates returns the schedule's dates in ascending order.
func (s *Schedule) Dates() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	sort.Strings(out)
	return out
}

// At returns the worker assigned at (date, post), or nil if empty.
func (s *Schedule) At(date string, post int) *WorkerID {
	posts, ok := s.days[date]
	if !ok || post < 0 || post >= len(posts) {
		return nil
	}
	return posts[post]
}

// Set writes w into (date, post). Callers are responsible for going
// through the builder's protection oracle before calling this.
func (s *Schedule) Set(date string, post int, w *WorkerID) {
	posts, ok := s.days[date]
	if !ok || post < 0 || post >= len(posts) {
		return
	}
	posts[post] = w
}

// EmptySlots returns all (date, post) pairs with no worker assigned.
func (s *Schedule) EmptySlots() []Slot {
	var out []Slot
	for _, date := range s.Dates() {
		t, _ := time.Parse("2006-01-02", date)
		for p, w := range s.days[date] {
			if w == nil {
				out = append(out, Slot{Date: t, PostIndex: p})
			}
		}
	}
	return out
}

// TotalSlots returns the total slot count (days * num_posts).
func (s *Schedule) TotalSlots() int {
	return len(s.order) * s.NumPosts
}

// Clone deep-copies the schedule for Phase 2.5's independent attempts.
func (s *Schedule) Clone() *Schedule {
	n := &Schedule{
		NumPosts: s.NumPosts,
		days:     make(map[string][]*WorkerID, len(s.days)),
		order:    append([]string(nil), s.order...),
	}
	for k, posts := range s.days {
		cp := make([]*WorkerID, len(posts))
		for i, w := range posts {
			if w == nil {
				continue
			}
			id := *w
			cp[i] = &id
		}
		n.days[k] = cp
	}
	return n
}

// WorkerAssignments derives worker_id -> sorted dates, satisfying I1
// by construction from the schedule.
func (s *Schedule) WorkerAssignments() map[WorkerID][]string {
	out := make(map[WorkerID][]string)
	for _, date := range s.Dates() {
		for _, w := range s.days[date] {
			if w == nil {
				continue
			}
			out[*w] = append(out[*w], date)
		}
	}
	for id := range out {
		sort.Strings(out[id])
	}
	return out
}
