package planning

import (
	"fmt"
	"math"
)

// costEpsilon absorbs floating point noise when comparing costs. Candidates
// within epsilon of the best are ties and lose to the earlier start.
const costEpsilon = 1e-9

// CapacityViolation reports a job the greedy pass could not place.
type CapacityViolation struct {
	ApplianceID int    `json:"appliance_id"`
	HouseholdID int    `json:"household_id"`
	Day         int    `json:"day"`
	Reason      string `json:"reason"`
}

// GreedyResult is the output of the constructive pass.
type GreedyResult struct {
	Schedule   *Schedule
	Cost       float64
	Violations []CapacityViolation
}

// Greedy places each day's jobs in priority order at the feasible start with
// the lowest marginal cost given everything placed before it. Ties go to the
// earliest start. The result depends only on the context and the order.
func Greedy(c *Context, order PriorityOrder) *GreedyResult {
	s := c.NewSchedule()
	res := &GreedyResult{Schedule: s}
	for d := range c.days {
		for _, info := range c.ordered(d, order) {
			job := info.Job
			if job.Reason != "" {
				res.violate(c, s, job, job.Reason)
				continue
			}
			best, bestCost := -1, math.Inf(1)
			for _, start := range job.Starts {
				if !s.Fits(job.ID, start) {
					continue
				}
				if cost := s.PlacementCost(job.ID, start); cost < bestCost-costEpsilon {
					best, bestCost = start, cost
				}
			}
			if best < 0 {
				a := c.appliances[job.Appliance]
				res.violate(c, s, job, fmt.Sprintf("%s is occupied during every %s window", a.ResourceKey(), c.days[d].Weekday))
				continue
			}
			s.Place(job.ID, best)
		}
	}
	res.Cost = s.Cost()
	return res
}

func (r *GreedyResult) violate(c *Context, s *Schedule, job Job, reason string) {
	a := c.appliances[job.Appliance]
	s.Unplace(job.ID, reason)
	r.Violations = append(r.Violations, CapacityViolation{
		ApplianceID: a.ID,
		HouseholdID: a.HouseholdID,
		Day:         c.days[job.Day].Number,
		Reason:      reason,
	})
}

// Unoptimised places every job served by the given schedule at the earliest
// window start able to hold it, ignoring shared resources. Jobs left
// unscheduled in served stay unscheduled so that savings compare the same
// demand. A nil served places every job.
func Unoptimised(c *Context, served *Schedule) *Schedule {
	s := c.NewSchedule()
	for _, job := range c.jobs {
		if len(job.WindowStarts) == 0 {
			s.Unplace(job.ID, job.Reason)
			continue
		}
		if served != nil {
			if u, ok := served.Placement(job.ID).(Unscheduled); ok {
				s.Unplace(job.ID, u.Reason)
				continue
			}
		}
		s.Place(job.ID, job.WindowStarts[0])
	}
	return s
}
