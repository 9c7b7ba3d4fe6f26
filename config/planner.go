package config

import (
	"fmt"
	"slices"

	"github.com/kilianp07/twinplan/core/planning"
)

// PlannerConfig holds defaults applied to planning requests that leave
// them unset.
type PlannerConfig struct {
	// ChunkDays is the number of days planned per request.
	ChunkDays int `json:"chunk_days"`
	// Priority names the greedy priority policy.
	Priority string `json:"priority"`
	// Annealing parameters used when an algorithm declares none.
	Annealing planning.AnnealConfig `json:"annealing"`
}

// SetDefaults fills unset fields from the planner defaults.
func (c *PlannerConfig) SetDefaults() {
	if c.ChunkDays == 0 {
		c.ChunkDays = planning.DefaultChunkDays
	}
	if c.Priority == "" {
		c.Priority = planning.PriorityShortestFirst
	}
	def := planning.DefaultAnnealConfig()
	if c.Annealing.InitialTemperature == 0 {
		c.Annealing.InitialTemperature = def.InitialTemperature
	}
	if c.Annealing.CoolingRate == 0 {
		c.Annealing.CoolingRate = def.CoolingRate
	}
	if c.Annealing.MinTemperature == 0 {
		c.Annealing.MinTemperature = def.MinTemperature
	}
	if c.Annealing.MaxIterations == 0 {
		c.Annealing.MaxIterations = def.MaxIterations
	}
}

// Validate checks the chunk size, the policy name and annealing parameters.
func (c PlannerConfig) Validate() error {
	if c.ChunkDays < 0 {
		return fmt.Errorf("chunk_days must not be negative")
	}
	if !slices.Contains(planning.Priorities.Types(), c.Priority) {
		return fmt.Errorf("unknown priority %q, want one of %v", c.Priority, planning.Priorities.Types())
	}
	if err := c.Annealing.Validate(); err != nil {
		return fmt.Errorf("annealing: %w", err)
	}
	return nil
}
