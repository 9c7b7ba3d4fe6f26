package app

import (
	"github.com/kilianp07/twinplan/core/catalog"
	"github.com/kilianp07/twinplan/core/model"
	"github.com/kilianp07/twinplan/core/planning"
)

// Selection identifies the catalog entities a session plans with.
type Selection struct {
	TwinWorldID  int `json:"twinworld_id"`
	CostModelID  int `json:"costmodel_id"`
	AlgorithmID  int `json:"algorithm_id"`
	EnergyFlowID int `json:"energyflow_id"`
	ChunkOffset  int `json:"chunk_offset"`
}

// SelectedOptions is the resolved selection returned by Start. The energy
// flow is listed without its points.
type SelectedOptions struct {
	TwinWorld   model.TwinWorld   `json:"twinworld"`
	CostModel   model.CostModel   `json:"costmodel"`
	Algorithm   model.Algorithm   `json:"algorithm"`
	EnergyFlow  model.EnergyFlow  `json:"energyflow"`
	Households  []model.Household `json:"households"`
	ChunkOffset int               `json:"chunk_offset"`
	TotalDays   int               `json:"total_days"`
}

// PlanInput is one planning request. Zero-valued entities are taken from
// the session opened by Start.
type PlanInput struct {
	ChunkOffset int `json:"chunk_offset"`
	// ChunkDays defaults to the planner configuration.
	ChunkDays  int               `json:"chunk_days,omitempty"`
	TwinWorld  *model.TwinWorld  `json:"twinworld,omitempty"`
	Households []model.Household `json:"households,omitempty"`
	CostModel  *model.CostModel  `json:"costmodel,omitempty"`
	Algorithm  *model.Algorithm  `json:"algorithm,omitempty"`
	EnergyFlow *model.EnergyFlow `json:"energyflow,omitempty"`
	// EnergyFlowID resolves the flow from the catalog when EnergyFlow is nil.
	EnergyFlowID int `json:"energyflow_id,omitempty"`
	// Seed drives simulated annealing. When nil a seed is derived from the
	// input, so identical requests still produce identical plans.
	Seed     *int64 `json:"seed,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// HouseholdPlan lists the runs planned for one household.
type HouseholdPlan struct {
	ID          int                      `json:"id"`
	Name        string                   `json:"name"`
	SolarPanels int                      `json:"solar_panels"`
	Runs        []planning.ApplianceRun  `json:"runs"`
	Result      planning.HouseholdResult `json:"result"`
}

// EfficiencyResults are the community level metrics of a plan.
type EfficiencyResults struct {
	Days   []planning.DayResult `json:"days"`
	Totals planning.Totals      `json:"totals"`
	Slots  []planning.SlotFlow  `json:"slots"`
}

// PlanOutput is the response of Plan.
type PlanOutput struct {
	RunID           string                       `json:"run_id"`
	TwinWorldID     int                          `json:"twinworld_id"`
	ChunkOffset     int                          `json:"chunk_offset"`
	DaysInPlanning  int                          `json:"days_in_planning"`
	StartDate       model.Date                   `json:"start_date"`
	EndDate         model.Date                   `json:"end_date"`
	NextChunkOffset int                          `json:"next_chunk_offset"`
	Done            bool                         `json:"done"`
	Algorithm       string                       `json:"algorithm"`
	Phase           string                       `json:"phase"`
	Seed            int64                        `json:"seed"`
	Cost            float64                      `json:"cost"`
	GreedyCost      float64                      `json:"greedy_cost"`
	Households      []HouseholdPlan              `json:"households"`
	Efficiency      EfficiencyResults            `json:"efficiency_results"`
	Unscheduled     []planning.CapacityViolation `json:"unscheduled"`
	Anneal          *planning.AnnealStats        `json:"anneal,omitempty"`
	Greedy          *planning.Totals             `json:"greedy_totals,omitempty"`
}

// Options mirrors catalog.Options for the boundary.
type Options = catalog.Options
