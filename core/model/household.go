package model

import "fmt"

// Household owns appliances and optionally solar panels.
type Household struct {
	ID             int         `json:"id"`
	Name           string      `json:"name"`
	TwinWorldID    int         `json:"twinworld_id"`
	Size           int         `json:"size,omitempty"`
	SolarPanels    int         `json:"solar_panels"`
	EnergyUsageKWh float64     `json:"energy_usage_kwh"`
	BaselineKW     []float64   `json:"baseline_kw,omitempty"` // one value per slot of day
	Appliances     []Appliance `json:"appliances"`
}

// TwinWorld is a simulated population of households.
type TwinWorld struct {
	ID                int         `json:"id"`
	Name              string      `json:"name"`
	Description       string      `json:"description,omitempty"`
	Start             Date        `json:"start"`
	End               Date        `json:"end"`
	ResolutionMinutes int         `json:"resolution_minutes"`
	Households        []Household `json:"households,omitempty"`
}

// DefaultResolutionMinutes is used when a twin world leaves the resolution unset.
const DefaultResolutionMinutes = 15

// Resolution returns the slot length in minutes, applying the default.
func (w TwinWorld) Resolution() int {
	if w.ResolutionMinutes <= 0 {
		return DefaultResolutionMinutes
	}
	return w.ResolutionMinutes
}

// SlotsPerDay returns the number of slots in a day.
func (w TwinWorld) SlotsPerDay() int { return MinutesPerDay / w.Resolution() }

// Days returns the number of days in the inclusive horizon.
func (w TwinWorld) Days() int { return w.Start.DaysUntil(w.End) + 1 }

// Validate checks the horizon, resolution and household/appliance identity.
func (w TwinWorld) Validate() error {
	res := w.Resolution()
	if MinutesPerDay%res != 0 {
		return invalid(ErrInvalidTwinWorld, "resolution_minutes", "%d does not divide a day", res)
	}
	if w.Start.IsZero() || w.End.IsZero() {
		return invalid(ErrInvalidTwinWorld, "start", "horizon is not set")
	}
	if w.End.Before(w.Start.Time) {
		return invalid(ErrInvalidTwinWorld, "end", "%s precedes start %s", w.End, w.Start)
	}
	if len(w.Households) == 0 {
		return invalid(ErrInvalidTwinWorld, "households", "twin world %d has no household", w.ID)
	}
	households := make(map[int]struct{}, len(w.Households))
	appliances := make(map[int]struct{})
	for i, h := range w.Households {
		field := fmt.Sprintf("households[%d]", i)
		if _, dup := households[h.ID]; dup {
			return invalid(ErrInvalidTwinWorld, field+".id", "duplicate household %d", h.ID)
		}
		households[h.ID] = struct{}{}
		if h.SolarPanels < 0 {
			return invalid(ErrInvalidTwinWorld, field+".solar_panels", "must not be negative")
		}
		if len(h.BaselineKW) > 0 && len(h.BaselineKW) != w.SlotsPerDay() {
			return invalid(ErrInvalidTwinWorld, field+".baseline_kw",
				"has %d values, want %d", len(h.BaselineKW), w.SlotsPerDay())
		}
		for j, a := range h.Appliances {
			af := fmt.Sprintf("%s.appliances[%d]", field, j)
			if _, dup := appliances[a.ID]; dup {
				return invalid(ErrInvalidAppliance, af+".id", "duplicate appliance %d", a.ID)
			}
			appliances[a.ID] = struct{}{}
			if a.HouseholdID != 0 && a.HouseholdID != h.ID {
				return invalid(ErrInvalidAppliance, af+".household_id",
					"appliance %d listed under household %d", a.ID, h.ID)
			}
			if err := a.Validate(res); err != nil {
				return PrefixField(err, af)
			}
		}
	}
	return nil
}
