package planning

import (
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/twinplan/core/model"
)

// Slot classifications.
const (
	SlotIdle  = "idle"
	SlotLocal = "local"
	SlotGrid  = "grid"
	SlotMixed = "mixed"
)

// Run statuses.
const (
	StatusScheduled   = "scheduled"
	StatusUnscheduled = "unscheduled"
)

// ApplianceRun is the planned run of one appliance on one day.
type ApplianceRun struct {
	ApplianceID   int        `json:"appliance_id"`
	ApplianceName string     `json:"appliance_name"`
	HouseholdID   int        `json:"household_id"`
	Day           int        `json:"day"`
	Date          model.Date `json:"date"`
	Status        string     `json:"status"`
	Start         *time.Time `json:"start,omitempty"`
	End           *time.Time `json:"end,omitempty"`
	EnergyKWh     float64    `json:"energy_kwh"`
	Reason        string     `json:"reason,omitempty"`
}

// SlotFlow is the community energy balance of one slot.
type SlotFlow struct {
	Day          int       `json:"day"`
	Slot         int       `json:"slot"`
	Start        time.Time `json:"start"`
	SurplusKWh   float64   `json:"surplus_kwh"`
	DemandKWh    float64   `json:"demand_kwh"`
	OwnKWh       float64   `json:"own_kwh"`
	CommunityKWh float64   `json:"community_kwh"`
	GridKWh      float64   `json:"grid_kwh"`
	BuyPrice     float64   `json:"buy_price"`
	LocalPrice   float64   `json:"local_price"`
	Cost         float64   `json:"cost"`
	Class        string    `json:"class"`
}

// DayResult aggregates one planned day.
type DayResult struct {
	Day             int        `json:"day"`
	Date            model.Date `json:"date"`
	SurplusKWh      float64    `json:"surplus_kwh"`
	DemandKWh       float64    `json:"demand_kwh"`
	OwnKWh          float64    `json:"own_kwh"`
	CommunityKWh    float64    `json:"community_kwh"`
	GridKWh         float64    `json:"grid_kwh"`
	SelfEfficiency  float64    `json:"self_efficiency"`
	TotalEfficiency float64    `json:"total_efficiency"`
	PriceRatio      float64    `json:"price_ratio"`
	GridCost        float64    `json:"grid_cost"`
	TotalCost       float64    `json:"total_cost"`
	BaselineCost    float64    `json:"baseline_cost"`
	Savings         float64    `json:"savings"`
}

// HouseholdResult aggregates one household over the planned days.
type HouseholdResult struct {
	HouseholdID  int     `json:"household_id"`
	Name         string  `json:"name"`
	DemandKWh    float64 `json:"demand_kwh"`
	OwnKWh       float64 `json:"own_kwh"`
	CommunityKWh float64 `json:"community_kwh"`
	GridKWh      float64 `json:"grid_kwh"`
	LocalShare   float64 `json:"local_share"` // percent of demand met by solar
	Cost         float64 `json:"cost"`
}

// Totals aggregates the whole run.
type Totals struct {
	DemandKWh       float64 `json:"demand_kwh"`
	LocalKWh        float64 `json:"local_kwh"`
	GridKWh         float64 `json:"grid_kwh"`
	SurplusKWh      float64 `json:"surplus_kwh"`
	LocalShare      float64 `json:"local_share"`
	SelfEfficiency  float64 `json:"self_efficiency"`
	TotalEfficiency float64 `json:"total_efficiency"`
	GridCost        float64 `json:"grid_cost"`
	TotalCost       float64 `json:"total_cost"`
	BaselineCost    float64 `json:"baseline_cost"`
	Savings         float64 `json:"savings"`
	Scheduled       int     `json:"scheduled"`
	Unscheduled     int     `json:"unscheduled"`
}

// Report is the result of writing a schedule.
type Report struct {
	Runs       []ApplianceRun    `json:"runs"`
	Slots      []SlotFlow        `json:"slots"`
	Days       []DayResult       `json:"days"`
	Households []HouseholdResult `json:"households"`
	Totals     Totals            `json:"totals"`
}

// WriteReport derives run times, energy flows and metrics from a schedule.
// It does not modify the schedule.
//
// Self efficiency is the share of the day's surplus used by the producing
// household; total efficiency adds surplus shared with the community. Both
// are zero on days without surplus.
func WriteReport(s *Schedule) Report {
	c := s.ctx
	baseline := Unoptimised(c, s)
	rep := Report{Days: make([]DayResult, len(c.days))}

	hh := make([]HouseholdResult, len(c.households))
	for h, household := range c.households {
		hh[h] = HouseholdResult{HouseholdID: household.ID, Name: household.Name}
	}

	for _, job := range c.jobs {
		rep.Runs = append(rep.Runs, s.run(job))
	}

	n := c.slotsPerDay
	own := make([]float64, n)
	comm := make([]float64, n)
	grid := make([]float64, n)
	demand := make([]float64, n)
	surplus := make([]float64, n)
	costs := make([]float64, n)
	baseCosts := make([]float64, n)
	for d, day := range c.days {
		for slot := range n {
			agg := s.agg[d][slot]
			own[slot] = agg.own
			comm[slot] = agg.community()
			grid[slot] = agg.resid - comm[slot]
			demand[slot] = agg.own + agg.resid
			surplus[slot] = agg.own + agg.excess
			costs[slot] = c.slotCost(d, slot, agg)
			baseCosts[slot] = c.slotCost(d, slot, baseline.agg[d][slot])

			rep.Slots = append(rep.Slots, SlotFlow{
				Day:          day.Number,
				Slot:         slot,
				Start:        c.SlotStart(d, slot),
				SurplusKWh:   surplus[slot],
				DemandKWh:    demand[slot],
				OwnKWh:       own[slot],
				CommunityKWh: comm[slot],
				GridKWh:      grid[slot],
				BuyPrice:     c.buy[d][slot],
				LocalPrice:   c.local[d][slot],
				Cost:         costs[slot],
				Class:        classify(own[slot]+comm[slot], grid[slot]),
			})
			s.attribute(d, slot, comm[slot], hh)
		}

		dr := DayResult{
			Day:          day.Number,
			Date:         day.Date,
			SurplusKWh:   floats.Sum(surplus),
			DemandKWh:    floats.Sum(demand),
			OwnKWh:       floats.Sum(own),
			CommunityKWh: floats.Sum(comm),
			GridKWh:      floats.Sum(grid),
			PriceRatio:   c.ratio[d],
			GridCost:     floats.Dot(grid, c.buy[d]),
			TotalCost:    floats.Sum(costs),
			BaselineCost: floats.Sum(baseCosts),
		}
		if dr.SurplusKWh > 0 {
			dr.SelfEfficiency = dr.OwnKWh / dr.SurplusKWh
			dr.TotalEfficiency = (dr.OwnKWh + dr.CommunityKWh) / dr.SurplusKWh
		}
		dr.Savings = dr.BaselineCost - dr.TotalCost
		rep.Days[d] = dr
	}

	for i := range hh {
		if hh[i].DemandKWh > 0 {
			hh[i].LocalShare = 100 * (hh[i].OwnKWh + hh[i].CommunityKWh) / hh[i].DemandKWh
		}
	}
	rep.Households = hh
	rep.Totals = totals(rep)
	return rep
}

func (s *Schedule) run(job Job) ApplianceRun {
	c := s.ctx
	a := c.appliances[job.Appliance]
	run := ApplianceRun{
		ApplianceID:   a.ID,
		ApplianceName: a.Name,
		HouseholdID:   a.HouseholdID,
		Day:           c.days[job.Day].Number,
		Date:          c.days[job.Day].Date,
	}
	switch p := s.placements[job.ID].(type) {
	case Scheduled:
		start, end := c.SlotStart(job.Day, p.StartSlot), c.SlotStart(job.Day, p.EndSlot)
		run.Status = StatusScheduled
		run.Start, run.End = &start, &end
		run.EnergyKWh = a.energy * float64(a.slots)
	case Unscheduled:
		run.Status = StatusUnscheduled
		run.Reason = p.Reason
	default:
		run.Status = StatusUnscheduled
		run.Reason = "not planned"
	}
	return run
}

// attribute splits a slot's energy and cost over households. Community
// energy is shared in proportion to each household's residual demand.
func (s *Schedule) attribute(d, slot int, comm float64, hh []HouseholdResult) {
	c := s.ctx
	agg := s.agg[d][slot]
	for h := range hh {
		sp := split(s.demand[d][h][slot], c.surplus[d][h][slot])
		share := 0.0
		if agg.resid > 0 {
			share = comm * sp.resid / agg.resid
		}
		gridKWh := sp.resid - share
		hh[h].DemandKWh += sp.own + sp.resid
		hh[h].OwnKWh += sp.own
		hh[h].CommunityKWh += share
		hh[h].GridKWh += gridKWh
		hh[h].Cost += c.sell*sp.own + c.local[d][slot]*share + c.buy[d][slot]*gridKWh
	}
}

func classify(local, grid float64) string {
	const eps = 1e-12
	switch {
	case local <= eps && grid <= eps:
		return SlotIdle
	case grid <= eps:
		return SlotLocal
	case local <= eps:
		return SlotGrid
	default:
		return SlotMixed
	}
}

func totals(rep Report) Totals {
	var t Totals
	var own, comm float64
	for _, d := range rep.Days {
		t.DemandKWh += d.DemandKWh
		t.GridKWh += d.GridKWh
		t.SurplusKWh += d.SurplusKWh
		t.GridCost += d.GridCost
		t.TotalCost += d.TotalCost
		t.BaselineCost += d.BaselineCost
		own += d.OwnKWh
		comm += d.CommunityKWh
	}
	t.LocalKWh = own + comm
	if t.DemandKWh > 0 {
		t.LocalShare = 100 * t.LocalKWh / t.DemandKWh
	}
	if t.SurplusKWh > 0 {
		t.SelfEfficiency = own / t.SurplusKWh
		t.TotalEfficiency = t.LocalKWh / t.SurplusKWh
	}
	t.Savings = t.BaselineCost - t.TotalCost
	for _, r := range rep.Runs {
		if r.Status == StatusScheduled {
			t.Scheduled++
		} else {
			t.Unscheduled++
		}
	}
	return t
}
