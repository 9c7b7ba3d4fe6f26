package planning

import (
	"fmt"
	"math"
	"slices"
)

// Placement is the outcome for one job: Scheduled or Unscheduled.
type Placement interface {
	placement()
}

// Scheduled places a run on slots [StartSlot, EndSlot) of its day.
type Scheduled struct {
	StartSlot int
	EndSlot   int
}

// Unscheduled records why a job could not be placed.
type Unscheduled struct {
	Reason string
}

func (Scheduled) placement()   {}
func (Unscheduled) placement() {}

// slotAgg accumulates, over the households of one slot, the flexible energy
// covered by the household's own surplus (own), the remaining demand (resid)
// and the surplus left over for the community (excess).
type slotAgg struct {
	own, resid, excess float64
}

func split(demand, surplus float64) slotAgg {
	own := min(demand, surplus)
	return slotAgg{own: own, resid: demand - own, excess: surplus - own}
}

func (a slotAgg) add(b slotAgg, sign float64) slotAgg {
	return slotAgg{
		own:    a.own + sign*b.own,
		resid:  a.resid + sign*b.resid,
		excess: a.excess + sign*b.excess,
	}
}

// community is the energy exchanged between households in the slot.
func (a slotAgg) community() float64 { return max(0, min(a.resid, a.excess)) }

// Schedule is a mutable assignment of jobs to start slots together with the
// aggregate energy state needed to price changes incrementally.
type Schedule struct {
	ctx        *Context
	placements []Placement
	occupancy  [][][]int     // [day][resource][slot] job ID + 1, 0 when free
	demand     [][][]float64 // [day][household][slot] flexible kWh
	agg        [][]slotAgg   // [day][slot]
}

// NewSchedule returns an empty schedule over the context's days.
func (c *Context) NewSchedule() *Schedule {
	s := &Schedule{
		ctx:        c,
		placements: make([]Placement, len(c.jobs)),
		occupancy:  make([][][]int, len(c.days)),
		demand:     make([][][]float64, len(c.days)),
		agg:        make([][]slotAgg, len(c.days)),
	}
	for d := range c.days {
		s.occupancy[d] = make([][]int, c.resources)
		for r := range s.occupancy[d] {
			s.occupancy[d][r] = make([]int, c.slotsPerDay)
		}
		s.demand[d] = make([][]float64, len(c.households))
		for h := range s.demand[d] {
			s.demand[d][h] = make([]float64, c.slotsPerDay)
		}
		s.agg[d] = make([]slotAgg, c.slotsPerDay)
		for slot := range s.agg[d] {
			for h := range c.households {
				s.agg[d][slot] = s.agg[d][slot].add(split(0, c.surplus[d][h][slot]), 1)
			}
		}
	}
	return s
}

// Context returns the context the schedule was built from.
func (s *Schedule) Context() *Context { return s.ctx }

// Placement returns the placement of a job, nil when it was never planned.
func (s *Schedule) Placement(job int) Placement { return s.placements[job] }

// Clone returns a deep copy.
func (s *Schedule) Clone() *Schedule {
	out := &Schedule{
		ctx:        s.ctx,
		placements: slices.Clone(s.placements),
		occupancy:  make([][][]int, len(s.occupancy)),
		demand:     make([][][]float64, len(s.demand)),
		agg:        make([][]slotAgg, len(s.agg)),
	}
	for d := range s.occupancy {
		out.occupancy[d] = make([][]int, len(s.occupancy[d]))
		for r, occ := range s.occupancy[d] {
			out.occupancy[d][r] = slices.Clone(occ)
		}
		out.demand[d] = make([][]float64, len(s.demand[d]))
		for h, dem := range s.demand[d] {
			out.demand[d][h] = slices.Clone(dem)
		}
		out.agg[d] = slices.Clone(s.agg[d])
	}
	return out
}

// Fits reports whether the job's resource is free on [start, start+duration),
// ignoring slots held by the job itself.
func (s *Schedule) Fits(job, start int) bool {
	j := s.ctx.jobs[job]
	a := s.ctx.appliances[j.Appliance]
	if start < 0 || start+a.slots > s.ctx.slotsPerDay {
		return false
	}
	occ := s.occupancy[j.Day][a.resource]
	for slot := start; slot < start+a.slots; slot++ {
		if occ[slot] != 0 && occ[slot] != job+1 {
			return false
		}
	}
	return true
}

// Place schedules an unplaced job at start. The caller checks feasibility.
func (s *Schedule) Place(job, start int) {
	j := s.ctx.jobs[job]
	a := s.ctx.appliances[j.Appliance]
	s.placements[job] = Scheduled{StartSlot: start, EndSlot: start + a.slots}
	s.addLoad(job, start, 1)
}

// Unplace records the job as unscheduled.
func (s *Schedule) Unplace(job int, reason string) {
	if p, ok := s.placements[job].(Scheduled); ok {
		s.addLoad(job, p.StartSlot, -1)
	}
	s.placements[job] = Unscheduled{Reason: reason}
}

// Move shifts a scheduled job to a new start slot.
func (s *Schedule) Move(job, start int) error {
	p, ok := s.placements[job].(Scheduled)
	if !ok {
		return fmt.Errorf("job %d is not scheduled", job)
	}
	s.addLoad(job, p.StartSlot, -1)
	s.Place(job, start)
	return nil
}

func (s *Schedule) addLoad(job, start int, sign float64) {
	j := s.ctx.jobs[job]
	a := s.ctx.appliances[j.Appliance]
	occ := s.occupancy[j.Day][a.resource]
	mark := job + 1
	if sign < 0 {
		mark = 0
	}
	for slot := start; slot < start+a.slots; slot++ {
		occ[slot] = mark
		s.shiftDemand(j.Day, a.household, slot, sign*a.energy)
	}
}

func (s *Schedule) shiftDemand(day, h, slot int, delta float64) {
	sur := s.ctx.surplus[day][h][slot]
	old := s.demand[day][h][slot]
	upd := max(0, old+delta)
	s.demand[day][h][slot] = upd
	s.agg[day][slot] = s.agg[day][slot].add(split(old, sur), -1).add(split(upd, sur), 1)
}

// slotCost prices one slot for a given aggregate state.
func (c *Context) slotCost(day, slot int, a slotAgg) float64 {
	comm := a.community()
	return c.sell*a.own + c.local[day][slot]*comm + c.buy[day][slot]*(a.resid-comm)
}

// shifted returns the slot aggregate after changing one household's demand.
func (s *Schedule) shifted(day, h, slot int, delta float64) slotAgg {
	sur := s.ctx.surplus[day][h][slot]
	old := s.demand[day][h][slot]
	return s.agg[day][slot].add(split(old, sur), -1).add(split(max(0, old+delta), sur), 1)
}

// PlacementCost returns the cost increase of placing an unplaced job at start.
func (s *Schedule) PlacementCost(job, start int) float64 {
	j := s.ctx.jobs[job]
	a := s.ctx.appliances[j.Appliance]
	var delta float64
	for slot := start; slot < start+a.slots; slot++ {
		before := s.ctx.slotCost(j.Day, slot, s.agg[j.Day][slot])
		after := s.ctx.slotCost(j.Day, slot, s.shifted(j.Day, a.household, slot, a.energy))
		delta += after - before
	}
	return delta
}

// MoveCost returns the cost change of moving a scheduled job to start. Only
// the slots whose demand changes are priced.
func (s *Schedule) MoveCost(job, start int) float64 {
	p, ok := s.placements[job].(Scheduled)
	if !ok {
		return math.Inf(1)
	}
	j := s.ctx.jobs[job]
	a := s.ctx.appliances[j.Appliance]
	end := start + a.slots
	var delta float64
	for slot := min(p.StartSlot, start); slot < max(p.EndSlot, end); slot++ {
		var change float64
		if slot >= p.StartSlot && slot < p.EndSlot {
			change -= a.energy
		}
		if slot >= start && slot < end {
			change += a.energy
		}
		if change == 0 {
			continue
		}
		before := s.ctx.slotCost(j.Day, slot, s.agg[j.Day][slot])
		after := s.ctx.slotCost(j.Day, slot, s.shifted(j.Day, a.household, slot, change))
		delta += after - before
	}
	return delta
}

// Cost recomputes the total energy cost of the schedule from the aggregates.
func (s *Schedule) Cost() float64 {
	var total float64
	for d := range s.agg {
		for slot, a := range s.agg[d] {
			total += s.ctx.slotCost(d, slot, a)
		}
	}
	return total
}

// Scheduled returns the IDs of scheduled jobs in ascending order.
func (s *Schedule) Scheduled() []int {
	var out []int
	for j, p := range s.placements {
		if _, ok := p.(Scheduled); ok {
			out = append(out, j)
		}
	}
	return out
}

// Verify checks the capacity and window invariants of every placement.
func (s *Schedule) Verify() error {
	c := s.ctx
	for d := range c.days {
		used := make([][]int, c.resources)
		for r := range used {
			used[r] = make([]int, c.slotsPerDay)
		}
		for _, job := range c.dayJobs[d] {
			p, ok := s.placements[job].(Scheduled)
			if !ok {
				continue
			}
			j := c.jobs[job]
			a := c.appliances[j.Appliance]
			if _, ok := slices.BinarySearch(j.Starts, p.StartSlot); !ok {
				return fmt.Errorf("appliance %d starts at slot %d outside its windows on day %d", a.ID, p.StartSlot, c.days[d].Number)
			}
			for slot := p.StartSlot; slot < p.EndSlot; slot++ {
				if used[a.resource][slot] != 0 {
					return fmt.Errorf("appliance %d overlaps appliance %d at slot %d on day %d",
						a.ID, c.appliances[c.jobs[used[a.resource][slot]-1].Appliance].ID, slot, c.days[d].Number)
				}
				used[a.resource][slot] = job + 1
			}
		}
	}
	return nil
}
