// Package catalog exposes the read-only set of twin worlds, cost models,
// algorithms and energy flows a planning session can be started from.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/twinplan/core/model"
)

// ErrNotFound is returned when a catalog entity does not exist.
var ErrNotFound = errors.New("not found")

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     int
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %d %v", e.Entity, e.ID, ErrNotFound) }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Options lists every selectable entity. Twin worlds come without
// households and energy flows without points.
type Options struct {
	TwinWorlds  []model.TwinWorld  `json:"twinWorlds"`
	CostModels  []model.CostModel  `json:"costModels"`
	Algorithms  []model.Algorithm  `json:"algorithms"`
	EnergyFlows []model.EnergyFlow `json:"energyFlows"`
}

// Catalog resolves entities by ID.
type Catalog interface {
	Options(ctx context.Context) (Options, error)
	TwinWorld(ctx context.Context, id int) (model.TwinWorld, error)
	CostModel(ctx context.Context, id int) (model.CostModel, error)
	Algorithm(ctx context.Context, id int) (model.Algorithm, error)
	EnergyFlow(ctx context.Context, id int) (model.EnergyFlow, error)
	Close() error
}
