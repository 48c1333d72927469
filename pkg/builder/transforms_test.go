package builder

import (
	"testing"
	"time"

	"github.com/paiban/roster/pkg/model"
)

func TestFillEmptyShiftsFillsAllSlots(t *testing.T) {
	workers := []*model.Worker{
		{ID: "w1", TargetShifts: 20, WorkPeriods: fullAvailability(), GapBetweenShifts: 0},
		{ID: "w2", TargetShifts: 20, WorkPeriods: fullAvailability(), GapBetweenShifts: 0},
	}
	b := newTestBuilder(workers, 1)
	b.EnableRelaxed(model.RelaxedPhase1)

	filled := b.FillEmptyShifts()
	if filled == 0 {
		t.Fatal("expected FillEmptyShifts to place at least one worker")
	}
	if remaining := len(b.Schedule.EmptySlots()); remaining > 0 {
		t.Errorf("expected no empty slots left with two widely available workers, got %d", remaining)
	}
}

func TestFillEmptyShiftsRespectsMandatoryLock(t *testing.T) {
	locked := &model.Worker{
		ID:            "locked",
		TargetShifts:  5,
		WorkPeriods:   fullAvailability(),
		MandatoryDays: map[string]bool{"2026-01-10": true},
	}
	other := &model.Worker{ID: "other", TargetShifts: 30, WorkPeriods: fullAvailability()}
	b := newTestBuilder([]*model.Worker{locked, other}, 1)
	b.AssignMandatoryGuards()
	b.EnableRelaxed(model.RelaxedPhase1)
	b.FillEmptyShifts()

	if got := b.Schedule.At("2026-01-10", 0); got == nil || *got != locked.ID {
		t.Error("expected the mandatory placement to survive the fill pass untouched")
	}
}

func TestBalanceWorkloadsMovesShiftsTowardTarget(t *testing.T) {
	over := &model.Worker{ID: "over", TargetShifts: 5, WorkPeriods: fullAvailability()}
	under := &model.Worker{ID: "under", TargetShifts: 5, WorkPeriods: fullAvailability()}
	b := newTestBuilder([]*model.Worker{over, under}, 1)

	for i := 1; i <= 7; i++ {
		d := time.Date(2026, 1, i, 0, 0, 0, 0, time.UTC)
		b.Place(over.ID, d, 0)
	}

	outcomes := b.BalanceWorkloads()
	accepted := 0
	for _, o := range outcomes {
		if o.Accepted {
			accepted++
		}
	}
	if accepted == 0 {
		t.Fatal("expected at least one accepted rebalancing move")
	}
	if b.Counters.ShiftCount["over"] >= 7 {
		t.Error("expected the overloaded worker's count to drop after rebalancing")
	}
}

func TestSwapSpecialDayShiftsMovesOverQuotaWorkerOff(t *testing.T) {
	over := &model.Worker{ID: "over", TargetShifts: 10, WorkPeriods: fullAvailability()}
	under := &model.Worker{ID: "under", TargetShifts: 10, WorkPeriods: fullAvailability()}
	b := newTestBuilder([]*model.Worker{over, under}, 1)

	for _, d := range []string{"2026-01-03", "2026-01-10", "2026-01-17", "2026-01-24", "2026-01-31"} {
		b.Place(over.ID, bDate(d), 0)
	}

	before := b.Counters.WeekendCount[over.ID]
	outcomes := b.SwapSpecialDayShifts()

	accepted := 0
	for _, o := range outcomes {
		if o.Accepted {
			accepted++
		}
	}
	if accepted == 0 {
		t.Fatal("expected at least one accepted special-day swap")
	}
	if b.Counters.WeekendCount[over.ID] >= before {
		t.Error("expected the over-quota worker's weekend count to drop")
	}
	if b.Counters.WeekendCount[under.ID] == 0 {
		t.Error("expected the under-quota worker's weekend count to rise")
	}
}

func TestAdjustLastPostDistributionSwapsPostIndices(t *testing.T) {
	over := &model.Worker{ID: "over", TargetShifts: 10, WorkPeriods: fullAvailability()}
	under := &model.Worker{ID: "under", TargetShifts: 10, WorkPeriods: fullAvailability()}
	b := newTestBuilder([]*model.Worker{over, under}, 2)

	for i := 1; i <= 7; i++ {
		d := time.Date(2026, 1, i, 0, 0, 0, 0, time.UTC)
		b.Place(under.ID, d, 0)
		b.Place(over.ID, d, 1)
	}

	overShiftsBefore := b.Counters.ShiftCount[over.ID]
	underShiftsBefore := b.Counters.ShiftCount[under.ID]
	overLastBefore := b.Counters.LastPostCount[over.ID]
	underLastBefore := b.Counters.LastPostCount[under.ID]

	outcomes := b.AdjustLastPostDistribution()
	accepted := 0
	for _, o := range outcomes {
		if o.Accepted {
			accepted++
		}
	}
	if accepted == 0 {
		t.Fatal("expected at least one accepted last-post swap")
	}
	if b.Counters.ShiftCount[over.ID] != overShiftsBefore || b.Counters.ShiftCount[under.ID] != underShiftsBefore {
		t.Error("expected total shift counts to stay unchanged by a post-index swap")
	}
	if b.Counters.LastPostCount[over.ID] >= overLastBefore {
		t.Error("expected the over-quota worker's last-post count to drop")
	}
	if b.Counters.LastPostCount[under.ID] <= underLastBefore {
		t.Error("expected the under-quota worker's last-post count to rise")
	}
}

func TestRedistributeExcessShiftsBalancesOverAndUnder(t *testing.T) {
	over := &model.Worker{ID: "over", TargetShifts: 3, WorkPeriods: fullAvailability()}
	under := &model.Worker{ID: "under", TargetShifts: 10, WorkPeriods: fullAvailability()}
	b := newTestBuilder([]*model.Worker{over, under}, 1)
	for i := 1; i <= 6; i++ {
		d := time.Date(2026, 1, i, 0, 0, 0, 0, time.UTC)
		b.Place(over.ID, d, 0)
	}

	b.RedistributeExcessShifts()
	if b.Counters.ShiftCount["over"] > 6 {
		t.Error("expected the over-target worker's count to not increase")
	}
}
