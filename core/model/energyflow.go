package model

import (
	"fmt"
	"math"
	"time"
)

// FlowPoint is one slot of an energy flow series. Energy values refer to the
// reference installation and are scaled per household.
type FlowPoint struct {
	Timestamp        time.Time `json:"timestamp"`
	SolarProducedKWh float64   `json:"solar_produced_kwh"`
	EnergyUsedKWh    float64   `json:"energy_used_kwh"`
	PriceEUR         *float64  `json:"price_eur,omitempty"` // dynamic buy price, overrides the cost model
}

// EnergyFlow is a solar generation / consumption / price series.
type EnergyFlow struct {
	ID                int         `json:"id"`
	Name              string      `json:"name"`
	ResolutionMinutes int         `json:"resolution_minutes"`
	SolarPanelsFactor float64     `json:"solar_panels_factor"`
	EnergyUsageFactor float64     `json:"energy_usage_factor"`
	Points            []FlowPoint `json:"points,omitempty"`
}

// Resolution returns the series step in minutes, defaulting to the twin
// world default.
func (f EnergyFlow) Resolution() int {
	if f.ResolutionMinutes <= 0 {
		return DefaultResolutionMinutes
	}
	return f.ResolutionMinutes
}

// Index maps slot start times (UTC) to points.
func (f EnergyFlow) Index() map[time.Time]FlowPoint {
	idx := make(map[time.Time]FlowPoint, len(f.Points))
	for _, p := range f.Points {
		idx[p.Timestamp.UTC()] = p
	}
	return idx
}

// Validate checks scaling factors, point values and that no two points share
// an instant.
func (f EnergyFlow) Validate() error {
	if f.SolarPanelsFactor <= 0 {
		return IncompleteDataError("solar_panels_factor", "must be positive, got %g", f.SolarPanelsFactor)
	}
	if f.EnergyUsageFactor <= 0 {
		return IncompleteDataError("energy_usage_factor", "must be positive, got %g", f.EnergyUsageFactor)
	}
	seen := make(map[time.Time]int, len(f.Points))
	for i, p := range f.Points {
		at := p.Timestamp.UTC()
		if j, dup := seen[at]; dup {
			return IncompleteDataError(fmt.Sprintf("points[%d].timestamp", i), "duplicate of points[%d] at %s", j, at.Format(time.RFC3339))
		}
		seen[at] = i
		if !finite(p.SolarProducedKWh) || !finite(p.EnergyUsedKWh) {
			return IncompleteDataError(fmt.Sprintf("points[%d]", i), "non-finite energy at %s", p.Timestamp.Format(time.RFC3339))
		}
		if p.SolarProducedKWh < 0 || p.EnergyUsedKWh < 0 {
			return IncompleteDataError(fmt.Sprintf("points[%d]", i), "negative energy at %s", p.Timestamp.Format(time.RFC3339))
		}
		if p.PriceEUR != nil && !finite(*p.PriceEUR) {
			return InvalidCostModelError(fmt.Sprintf("points[%d].price_eur", i), "must be finite, got %g", *p.PriceEUR)
		}
		if p.PriceEUR != nil && *p.PriceEUR < 0 {
			return InvalidCostModelError(fmt.Sprintf("points[%d].price_eur", i), "must not be negative, got %g", *p.PriceEUR)
		}
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
