package metrics

import "time"

// PlanEvent summarizes one planning run.
type PlanEvent struct {
	RunID           string
	TwinWorldID     int
	CostModelID     int
	Algorithm       string
	Phase           string // schedule kept: greedy or annealed
	Seed            int64
	Days            int
	Households      int
	Scheduled       int
	Unscheduled     int
	GreedyCost      float64
	Cost            float64
	BaselineCost    float64
	LocalShare      float64 // percent
	SelfEfficiency  float64
	TotalEfficiency float64
	Duration        time.Duration
	Time            time.Time
}

// MetricsSink records planning runs for observability purposes.
type MetricsSink interface {
	RecordPlan(ev PlanEvent) error
}

// DayEvent is the outcome of one planned day.
type DayEvent struct {
	RunID           string
	TwinWorldID     int
	Date            time.Time
	SurplusKWh      float64
	DemandKWh       float64
	LocalKWh        float64
	GridKWh         float64
	SelfEfficiency  float64
	TotalEfficiency float64
	Cost            float64
	Savings         float64
}

// DayRecorder records per-day results.
type DayRecorder interface {
	RecordPlanDays(days []DayEvent) error
}

// AnnealEvent describes a simulated annealing refinement.
type AnnealEvent struct {
	RunID        string
	TwinWorldID  int
	Seed         int64
	Iterations   int
	Accepted     int
	Improvements int
	InitialCost  float64
	BestCost     float64
	Kept         bool // annealed schedule replaced the greedy one
	Time         time.Time
}

// AnnealRecorder records annealing statistics.
type AnnealRecorder interface {
	RecordAnneal(ev AnnealEvent) error
}

// PhaseEvent marks the completion of a planning phase.
type PhaseEvent struct {
	Phase       string
	Cost        float64
	Unscheduled int
	Time        time.Time
}

// PhaseRecorder records phase completions.
type PhaseRecorder interface {
	RecordPhase(ev PhaseEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordPlan(PlanEvent) error      { return nil }
func (NopSink) RecordPlanDays([]DayEvent) error { return nil }
func (NopSink) RecordAnneal(AnnealEvent) error  { return nil }
func (NopSink) RecordPhase(PhaseEvent) error    { return nil }
