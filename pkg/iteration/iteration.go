// Package iteration implements the adaptive iteration manager of
// spec §4.7: a pure function of problem size and constraint mix that
// recommends attempt and iteration counts for the orchestrator's
// Phase 2.5 and Phase 3.
package iteration

// Plan is the adaptive manager's recommendation. The orchestrator
// treats these as hints — spec §4.7 — and may override them.
type Plan struct {
	Complexity      float64
	InitialAttempts int
	MaxIterations   int
	FillAttempts    int
}

// RestrictionFactors are the per-constraint-class penalties that feed
// the complexity formula. Each field flags one constraint class as
// active; sum adds a small fixed weight for each active class and
// nothing for an inactive one (e.g. no incompatibility pairs defined
// at all).
type RestrictionFactors struct {
	HasIncompatibilities bool
	HasMandatoryDays     bool
	HasPartTimeWorkers   bool
	HasGapConstraints    bool
	HasPatternLimits     bool
}

func (r RestrictionFactors) sum() float64 {
	total := 0.0
	if r.HasIncompatibilities {
		total += 0.15
	}
	if r.HasMandatoryDays {
		total += 0.10
	}
	if r.HasPartTimeWorkers {
		total += 0.10
	}
	if r.HasGapConstraints {
		total += 0.05
	}
	if r.HasPatternLimits {
		total += 0.05
	}
	return total
}

// Compute derives a Plan from problem size and active constraint
// classes: C = num_workers * num_posts * num_days * (1 + restriction_factor).
func Compute(numWorkers, numPosts, numDays int, restrictions RestrictionFactors) Plan {
	c := float64(numWorkers) * float64(numPosts) * float64(numDays) * (1 + restrictions.sum())

	var initialAttempts, maxIterations int
	switch {
	case c < 1000:
		initialAttempts, maxIterations = 3, 20
	case c < 5000:
		initialAttempts, maxIterations = 5, 30
	case c < 15000:
		initialAttempts, maxIterations = 7, 40
	default:
		initialAttempts, maxIterations = 10, 50
	}

	fillAttempts := 8
	if c >= 5000 {
		fillAttempts = 16
	} else if c >= 1000 {
		fillAttempts = 12
	}

	return Plan{
		Complexity:      c,
		InitialAttempts: initialAttempts,
		MaxIterations:   maxIterations,
		FillAttempts:    fillAttempts,
	}
}
