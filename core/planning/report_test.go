package planning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/twinplan/core/model"
)

func TestWriteReport_Flat(t *testing.T) {
	hh := model.Household{ID: 1, Name: "solo", Appliances: []model.Appliance{appliance(1, 2, 30, window(1, "08:00", "12:00"))}}
	c := mustContext(t, Input{TwinWorld: world(1, hh), CostModel: flatCost(0.2, 0.2), EnergyFlow: flow(1, nil)})
	rep := WriteReport(Greedy(c, mustPriority(t, "")).Schedule)

	require.Len(t, rep.Runs, 1)
	run := rep.Runs[0]
	assert.Equal(t, StatusScheduled, run.Status)
	assert.Equal(t, monday.Add(8*time.Hour), *run.Start)
	assert.Equal(t, monday.Add(8*time.Hour+30*time.Minute), *run.End)
	assert.InDelta(t, 1.0, run.EnergyKWh, 1e-12)

	require.Len(t, rep.Slots, 96)
	assert.Equal(t, SlotIdle, rep.Slots[0].Class)
	assert.Equal(t, SlotGrid, rep.Slots[32].Class)
	assert.InDelta(t, 0.5, rep.Slots[32].GridKWh, 1e-12)

	assert.InDelta(t, 0.2, rep.Totals.TotalCost, 1e-12)
	assert.InDelta(t, 0.2, rep.Totals.GridCost, 1e-12)
	assert.InDelta(t, 0.0, rep.Totals.Savings, 1e-12)
	assert.Zero(t, rep.Totals.LocalShare)
	assert.Zero(t, rep.Days[0].SelfEfficiency)
	assert.Equal(t, 1, rep.Totals.Scheduled)
}

func TestWriteReport_SavingsAgainstUnoptimised(t *testing.T) {
	hh := model.Household{ID: 1, Appliances: []model.Appliance{appliance(1, 2, 30, window(1, "08:00", "12:00"))}}
	cm := flatCost(0.2, 0.2)
	cm.TimeOfUse = []model.PriceBand{{Start: model.MustClock("08:00"), End: model.MustClock("09:00"), BuyPrice: 0.25}}
	c := mustContext(t, Input{TwinWorld: world(1, hh), CostModel: cm, EnergyFlow: flow(1, nil)})
	rep := WriteReport(Greedy(c, mustPriority(t, "")).Schedule)

	assert.InDelta(t, 0.25, rep.Days[0].BaselineCost, 1e-12)
	assert.InDelta(t, 0.20, rep.Days[0].TotalCost, 1e-12)
	assert.InDelta(t, 0.05, rep.Days[0].Savings, 1e-12)
	assert.InDelta(t, 0.05, rep.Totals.Savings, 1e-12)
}

func TestWriteReport_Community(t *testing.T) {
	solar := func(s int) float64 {
		if s >= 44 && s < 52 {
			return 2
		}
		return 0
	}
	c := mustContext(t, Input{
		TwinWorld: world(1,
			model.Household{ID: 1, SolarPanels: 1},
			model.Household{ID: 2, Appliances: []model.Appliance{appliance(1, 1, 30, window(1, "08:00", "16:00"))}},
		),
		CostModel:  flatCost(0.3, 0.05),
		EnergyFlow: flow(1, solar),
	})
	rep := WriteReport(Greedy(c, mustPriority(t, "")).Schedule)

	require.Len(t, rep.Households, 2)
	consumer := rep.Households[1]
	assert.Equal(t, 2, consumer.HouseholdID)
	assert.InDelta(t, 0.5, consumer.CommunityKWh, 1e-12)
	assert.InDelta(t, 100, consumer.LocalShare, 1e-9)
	assert.Zero(t, rep.Households[0].DemandKWh)

	day := rep.Days[0]
	assert.InDelta(t, 16, day.SurplusKWh, 1e-12)
	assert.InDelta(t, 0, day.SelfEfficiency, 1e-12)
	assert.InDelta(t, 0.5/16, day.TotalEfficiency, 1e-12)
	assert.Equal(t, SlotLocal, rep.Slots[44].Class)
	assert.Equal(t, SlotIdle, rep.Slots[46].Class)
}

func TestWriteReport_Unscheduled(t *testing.T) {
	ev := func(id, minutes int) model.Appliance {
		a := appliance(id, 7, minutes, window(id, "18:00", "19:00"))
		a.Resource = "charger"
		return a
	}
	hh := model.Household{ID: 1, Appliances: []model.Appliance{ev(1, 60), ev(2, 30)}}
	c := mustContext(t, Input{TwinWorld: world(1, hh), CostModel: flatCost(0.3, 0.1), EnergyFlow: flow(1, nil)})
	rep := WriteReport(Greedy(c, mustPriority(t, "")).Schedule)

	var unscheduled []ApplianceRun
	for _, r := range rep.Runs {
		if r.Status == StatusUnscheduled {
			unscheduled = append(unscheduled, r)
		}
	}
	require.Len(t, unscheduled, 1)
	assert.Equal(t, 1, unscheduled[0].ApplianceID)
	assert.Nil(t, unscheduled[0].Start)
	assert.NotEmpty(t, unscheduled[0].Reason)
	assert.Equal(t, 1, rep.Totals.Unscheduled)
	assert.Equal(t, 1, rep.Totals.Scheduled)
}

func TestWriteReport_DroppedDemandIsNotSavings(t *testing.T) {
	shared := func(id int) model.Appliance {
		a := appliance(id, 2, 120, window(id, "08:00", "10:00"))
		a.Resource = "charger"
		return a
	}
	hh := model.Household{ID: 1, Appliances: []model.Appliance{shared(1), shared(2)}}
	c := mustContext(t, Input{TwinWorld: world(1, hh), CostModel: flatCost(0.2, 0.2), EnergyFlow: flow(1, nil)})
	rep := WriteReport(Greedy(c, mustPriority(t, "")).Schedule)

	require.Equal(t, 1, rep.Totals.Unscheduled)
	assert.Greater(t, rep.Totals.TotalCost, 0.0)
	assert.InDelta(t, rep.Totals.TotalCost, rep.Totals.BaselineCost, 1e-12)
	assert.InDelta(t, 0, rep.Totals.Savings, 1e-12)
	for _, d := range rep.Days {
		assert.InDelta(t, 0, d.Savings, 1e-12)
	}
}

func TestWriteReport_HouseholdCostsAddUp(t *testing.T) {
	c := mustContext(t, community())
	s := Greedy(c, mustPriority(t, "")).Schedule
	before := s.snapshot()
	rep := WriteReport(s)
	assert.Equal(t, before, s.placements)

	var cost, demand float64
	for _, h := range rep.Households {
		cost += h.Cost
		demand += h.DemandKWh
		assert.InDelta(t, h.DemandKWh, h.OwnKWh+h.CommunityKWh+h.GridKWh, 1e-9)
	}
	assert.InDelta(t, rep.Totals.TotalCost, cost, 1e-9)
	assert.InDelta(t, rep.Totals.DemandKWh, demand, 1e-9)
	assert.InDelta(t, s.Cost(), rep.Totals.TotalCost, 1e-9)
	assert.Len(t, rep.Days, 3)
	assert.Len(t, rep.Slots, 3*96)
}
