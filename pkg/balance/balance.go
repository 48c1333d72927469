// Package balance implements the per-worker deviation computation,
// severity classification, and transfer-validity oracle of spec §4.4,
// grounded on the teacher's pkg/stats/fairness.go analyzer and
// pkg/swap/recommender.go ranking, and on original_source/
// balance_validator.py's exact threshold semantics.
package balance

import (
	"math"
	"sort"

	"github.com/paiban/roster/pkg/model"
)

// Classification is the severity bucket a worker's deviation falls
// into.
type Classification int

const (
	WithinTolerance Classification = iota
	WithinEmergency
	Critical
	Extreme
)

func (c Classification) String() string {
	switch c {
	case WithinTolerance:
		return "within_tolerance"
	case WithinEmergency:
		return "within_emergency"
	case Critical:
		return "critical"
	default:
		return "extreme"
	}
}

// WorkerDeviation is one worker's balance report entry.
type WorkerDeviation struct {
	Worker             model.WorkerID
	Target             int
	Assigned           int
	Deviation          int
	DeviationPercent   float64
	AbsDeviationPercent float64
	Classification     Classification
}

// Report is the full-schedule balance validation result.
type Report struct {
	Deviations    []WorkerDeviation
	MaxDeviation  float64
	AvgDeviation  float64
	IsBalanced    bool // no Critical or Extreme workers
}

// Validator classifies per-worker deviation against the engine's
// configured tolerance tiers (defaults: T=8, T_emergency=10,
// T_critical=15, matching original_source/balance_validator.py).
// Phase2Percent is the absolute-cap tier's transfer ceiling (default
// 12): it only widens the live acceptance envelope TransferValidity
// applies once the builder has escalated to RelaxedPhase2, never the
// fixed severity bands Validate classifies against.
type Validator struct {
	TolerancePercent float64
	EmergencyPercent float64
	CriticalPercent  float64
	Phase2Percent    float64
}

// New builds a Validator from policy, falling back to the spec's
// stated defaults for any zero field.
func New(p model.Policy) *Validator {
	v := &Validator{
		TolerancePercent: p.TolerancePercent,
		EmergencyPercent: p.EmergencyTolerancePercent,
		CriticalPercent:  p.CriticalTolerancePercent,
		Phase2Percent:    p.Phase2TolerancePercent,
	}
	if v.TolerancePercent == 0 {
		v.TolerancePercent = 8
	}
	if v.EmergencyPercent == 0 {
		v.EmergencyPercent = 10
	}
	if v.CriticalPercent == 0 {
		v.CriticalPercent = 15
	}
	if v.Phase2Percent == 0 {
		v.Phase2Percent = 12
	}
	return v
}

func (v *Validator) classify(absDev float64) Classification {
	switch {
	case absDev <= v.TolerancePercent:
		return WithinTolerance
	case absDev <= v.EmergencyPercent:
		return WithinEmergency
	case absDev <= v.CriticalPercent:
		return Critical
	default:
		return Extreme
	}
}

// Validate computes the deviation report for every worker with a
// nonzero target.
func (v *Validator) Validate(workers []*model.Worker, counters *model.Counters) Report {
	var deviations []WorkerDeviation
	var total float64
	var max float64
	isBalanced := true

	for _, w := range workers {
		if w.TargetShifts == 0 {
			continue
		}
		assigned := counters.ShiftCount[w.ID]
		dev := assigned - w.TargetShifts
		devPct := float64(dev) / float64(w.TargetShifts) * 100
		absDev := math.Abs(devPct)
		class := v.classify(absDev)
		if class == Critical || class == Extreme {
			isBalanced = false
		}

		deviations = append(deviations, WorkerDeviation{
			Worker:              w.ID,
			Target:              w.TargetShifts,
			Assigned:            assigned,
			Deviation:           dev,
			DeviationPercent:    devPct,
			AbsDeviationPercent: absDev,
			Classification:      class,
		})

		total += absDev
		if absDev > max {
			max = absDev
		}
	}

	avg := 0.0
	if len(deviations) > 0 {
		avg = total / float64(len(deviations))
	}

	return Report{Deviations: deviations, MaxDeviation: max, AvgDeviation: avg, IsBalanced: isBalanced}
}

// deviationPercentAfter computes |dev%| for a worker if its assigned
// count changed by delta shifts.
func deviationPercentAfter(target, assigned, delta int) float64 {
	if target == 0 {
		return 0
	}
	return math.Abs(float64(assigned+delta-target)) / float64(target) * 100
}

// TransferValidity decides whether moving one shift from "from" to
// "to" is valid. It accepts when both workers' |dev| improves, when
// the source improves and the destination's new |dev| stays within the
// active limit, or when the destination improves and the source's new
// |dev| stays within that limit; anything else is rejected. It does not
// compare the destination's new |dev| against the source's current
// |dev|, and it does not check the summed (L1) deviation, so an
// accepted transfer can raise the sum of the two workers' |dev|.
// mode picks the acceptance ceiling for the "other side stays within
// limit" branches: the fixed emergency band in Strict/RelaxedPhase1,
// widened to Phase2Percent once the builder has escalated to
// RelaxedPhase2. Mirrors original_source/balance_validator.py's
// check_transfer_validity.
func TransferValidity(v *Validator, from, to *model.Worker, fromAssigned, toAssigned int, mode model.Mode) (bool, string) {
	limit := v.EmergencyPercent
	if mode == model.RelaxedPhase2 {
		limit = v.Phase2Percent
	}

	fromDev := deviationPercentAfter(from.TargetShifts, fromAssigned, 0)
	toDev := deviationPercentAfter(to.TargetShifts, toAssigned, 0)
	fromDevAfter := deviationPercentAfter(from.TargetShifts, fromAssigned, -1)
	toDevAfter := deviationPercentAfter(to.TargetShifts, toAssigned, 1)

	fromImproves := fromDevAfter < fromDev
	toImproves := toDevAfter < toDev

	switch {
	case fromImproves && toImproves:
		return true, "both workers improve"
	case fromImproves && toDevAfter <= limit:
		return true, "source improves, destination stays within the active tolerance limit"
	case toImproves && fromDevAfter <= limit:
		return true, "destination improves, source stays within the active tolerance limit"
	default:
		return false, "transfer would worsen balance"
	}
}

// Recommendation is one proposed shift transfer, ranked by priority.
type Recommendation struct {
	FromWorker       model.WorkerID
	ToWorker         model.WorkerID
	ShiftsToTransfer int
	Priority         float64
	FromDeviation    float64
	ToDeviation      float64
}

// RebalancingRecommendations produces an ordered list of (over-worker,
// under-worker) transfer proposals, ranked by the sum of their
// absolute deviations (a proxy for expected L1 reduction), matching
// original_source/balance_validator.py's get_rebalancing_recommendations.
func (v *Validator) RebalancingRecommendations(report Report) []Recommendation {
	var overloaded, underloaded []WorkerDeviation
	for _, d := range report.Deviations {
		if d.Classification == WithinTolerance {
			continue
		}
		if d.Deviation > 0 {
			overloaded = append(overloaded, d)
		} else if d.Deviation < 0 {
			underloaded = append(underloaded, d)
		}
	}
	sort.Slice(overloaded, func(i, j int) bool {
		return overloaded[i].AbsDeviationPercent > overloaded[j].AbsDeviationPercent
	})
	sort.Slice(underloaded, func(i, j int) bool {
		return underloaded[i].AbsDeviationPercent > underloaded[j].AbsDeviationPercent
	})

	var recs []Recommendation
	for _, over := range overloaded {
		for _, under := range underloaded {
			excess := over.Assigned - over.Target
			deficit := under.Target - under.Assigned
			transfer := min(excess, deficit)
			if transfer <= 0 {
				continue
			}
			recs = append(recs, Recommendation{
				FromWorker:       over.Worker,
				ToWorker:         under.Worker,
				ShiftsToTransfer: transfer,
				Priority:         over.AbsDeviationPercent + under.AbsDeviationPercent,
				FromDeviation:    over.DeviationPercent,
				ToDeviation:      under.DeviationPercent,
			})
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Priority > recs[j].Priority })
	return recs
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
