package planning

import (
	"errors"
	"math"
	"math/rand"
)

// AnnealConfig tunes the simulated annealing refinement.
type AnnealConfig struct {
	InitialTemperature float64 `json:"initial_temperature"`
	CoolingRate        float64 `json:"cooling_rate"`
	MinTemperature     float64 `json:"min_temperature"`
	MaxIterations      int     `json:"max_iterations"`
}

// DefaultAnnealConfig returns the stock annealing parameters.
func DefaultAnnealConfig() AnnealConfig {
	return AnnealConfig{
		InitialTemperature: 1.0,
		CoolingRate:        0.995,
		MinTemperature:     1e-4,
		MaxIterations:      5000,
	}
}

// Validate checks the parameters are usable.
func (c AnnealConfig) Validate() error {
	if c.InitialTemperature <= 0 {
		return errors.New("initial_temperature must be positive")
	}
	if c.CoolingRate <= 0 || c.CoolingRate >= 1 {
		return errors.New("cooling_rate must be within (0,1)")
	}
	if c.MinTemperature < 0 {
		return errors.New("min_temperature must not be negative")
	}
	if c.MaxIterations < 0 {
		return errors.New("max_iterations must not be negative")
	}
	return nil
}

// AnnealStats summarizes an annealing run.
type AnnealStats struct {
	Seed             int64   `json:"seed"`
	Iterations       int     `json:"iterations"`
	NoOps            int     `json:"no_ops"`
	Accepted         int     `json:"accepted"`
	AcceptedWorse    int     `json:"accepted_worse"`
	Improvements     int     `json:"improvements"`
	InitialCost      float64 `json:"initial_cost"`
	BestCost         float64 `json:"best_cost"`
	FinalTemperature float64 `json:"final_temperature"`
}

// Anneal refines a schedule with simulated annealing and returns the best
// schedule seen, never costlier than the start. The input schedule is left
// untouched. Identical seeds yield identical results.
//
// Each iteration picks a scheduled job uniformly, then a uniformly chosen
// feasible alternative start on the same day. Improving moves are always
// accepted, worsening ones with probability exp(-delta/T).
func Anneal(start *Schedule, cfg AnnealConfig, seed int64) (*Schedule, AnnealStats) {
	rng := rand.New(rand.NewSource(seed))
	cur := start.Clone()
	curCost := cur.Cost()
	stats := AnnealStats{Seed: seed, InitialCost: curCost, BestCost: curCost}

	movable := cur.Scheduled()
	best := cur.snapshot()
	temp := cfg.InitialTemperature
	for stats.Iterations < cfg.MaxIterations && temp >= cfg.MinTemperature && len(movable) > 0 {
		stats.Iterations++
		job := movable[rng.Intn(len(movable))]
		alts := cur.alternatives(job)
		if len(alts) == 0 {
			stats.NoOps++
			temp *= cfg.CoolingRate
			continue
		}
		next := alts[rng.Intn(len(alts))]
		delta := cur.MoveCost(job, next)
		if delta < 0 || rng.Float64() < math.Exp(-delta/temp) {
			_ = cur.Move(job, next)
			curCost += delta
			stats.Accepted++
			if delta > 0 {
				stats.AcceptedWorse++
			}
			if curCost < stats.BestCost-costEpsilon {
				stats.BestCost = curCost
				stats.Improvements++
				best = cur.snapshot()
			}
		}
		temp *= cfg.CoolingRate
	}
	stats.FinalTemperature = temp

	out := start.ctx.restore(best)
	stats.BestCost = out.Cost()
	return out, stats
}

// alternatives lists the feasible start slots of a scheduled job other than
// its current one.
func (s *Schedule) alternatives(job int) []int {
	p, ok := s.placements[job].(Scheduled)
	if !ok {
		return nil
	}
	var out []int
	for _, start := range s.ctx.jobs[job].Starts {
		if start != p.StartSlot && s.Fits(job, start) {
			out = append(out, start)
		}
	}
	return out
}

func (s *Schedule) snapshot() []Placement {
	out := make([]Placement, len(s.placements))
	copy(out, s.placements)
	return out
}

// restore rebuilds a schedule from placements.
func (c *Context) restore(placements []Placement) *Schedule {
	s := c.NewSchedule()
	for job, p := range placements {
		switch p := p.(type) {
		case Scheduled:
			s.Place(job, p.StartSlot)
		case Unscheduled:
			s.placements[job] = p
		}
	}
	return s
}
