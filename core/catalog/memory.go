package catalog

import (
	"context"
	"fmt"
	"slices"

	"github.com/kilianp07/twinplan/core/model"
)

// Memory is a Catalog backed by a Scenario held in memory.
type Memory struct {
	worlds     map[int]model.TwinWorld
	costModels map[int]model.CostModel
	algorithms map[int]model.Algorithm
	flows      map[int]model.EnergyFlow
	options    Options
}

// NewMemory indexes the scenario. Duplicate IDs are rejected.
func NewMemory(s Scenario) (*Memory, error) {
	m := &Memory{
		worlds:     make(map[int]model.TwinWorld, len(s.TwinWorlds)),
		costModels: make(map[int]model.CostModel, len(s.CostModels)),
		algorithms: make(map[int]model.Algorithm, len(s.Algorithms)),
		flows:      make(map[int]model.EnergyFlow, len(s.EnergyFlows)),
	}
	for _, w := range s.TwinWorlds {
		if err := insert(m.worlds, "twin world", w.ID, w); err != nil {
			return nil, err
		}
		summary := w
		summary.Households = nil
		m.options.TwinWorlds = append(m.options.TwinWorlds, summary)
	}
	for _, c := range s.CostModels {
		if err := insert(m.costModels, "cost model", c.ID, c); err != nil {
			return nil, err
		}
		m.options.CostModels = append(m.options.CostModels, c)
	}
	for _, a := range s.Algorithms {
		if err := insert(m.algorithms, "algorithm", a.ID, a); err != nil {
			return nil, err
		}
		m.options.Algorithms = append(m.options.Algorithms, a)
	}
	for _, f := range s.EnergyFlows {
		if err := insert(m.flows, "energy flow", f.ID, f.EnergyFlow); err != nil {
			return nil, err
		}
		summary := f.EnergyFlow
		summary.Points = nil
		m.options.EnergyFlows = append(m.options.EnergyFlows, summary)
	}
	slices.SortFunc(m.options.TwinWorlds, func(a, b model.TwinWorld) int { return a.ID - b.ID })
	slices.SortFunc(m.options.CostModels, func(a, b model.CostModel) int { return a.ID - b.ID })
	slices.SortFunc(m.options.Algorithms, func(a, b model.Algorithm) int { return a.ID - b.ID })
	slices.SortFunc(m.options.EnergyFlows, func(a, b model.EnergyFlow) int { return a.ID - b.ID })
	return m, nil
}

func insert[T any](m map[int]T, entity string, id int, v T) error {
	if _, dup := m[id]; dup {
		return fmt.Errorf("duplicate %s %d", entity, id)
	}
	m[id] = v
	return nil
}

func lookup[T any](m map[int]T, entity string, id int) (T, error) {
	v, ok := m[id]
	if !ok {
		var zero T
		return zero, &NotFoundError{Entity: entity, ID: id}
	}
	return v, nil
}

func (m *Memory) Options(context.Context) (Options, error) { return m.options, nil }

func (m *Memory) TwinWorld(_ context.Context, id int) (model.TwinWorld, error) {
	return lookup(m.worlds, "twin world", id)
}

func (m *Memory) CostModel(_ context.Context, id int) (model.CostModel, error) {
	return lookup(m.costModels, "cost model", id)
}

func (m *Memory) Algorithm(_ context.Context, id int) (model.Algorithm, error) {
	return lookup(m.algorithms, "algorithm", id)
}

func (m *Memory) EnergyFlow(_ context.Context, id int) (model.EnergyFlow, error) {
	return lookup(m.flows, "energy flow", id)
}

func (m *Memory) Close() error { return nil }
