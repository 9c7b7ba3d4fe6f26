package model

import (
	"errors"
	"fmt"
)

// ApplianceType enumerates the appliance categories known to the planner.
type ApplianceType string

const (
	Dishwasher      ApplianceType = "dishwasher"
	WashingMachine  ApplianceType = "washing_machine"
	TumbleDryer     ApplianceType = "tumble_dryer"
	ElectricVehicle ApplianceType = "electric_vehicle"
	Stove           ApplianceType = "stove"
	HeatPump        ApplianceType = "heat_pump"
	OtherAppliance  ApplianceType = "other"
)

// Flexibility tells whether the planner may shift an appliance inside its
// windows or must start it at a window start.
type Flexibility string

const (
	Flexible Flexibility = "flexible"
	Fixed    Flexibility = "fixed"
)

// Appliance is a schedulable load owned by a household.
type Appliance struct {
	ID              int                   `json:"id"`
	HouseholdID     int                   `json:"household_id"`
	Name            string                `json:"name"`
	Type            ApplianceType         `json:"type"`
	Flexibility     Flexibility           `json:"flexibility,omitempty"`
	PowerKW         float64               `json:"power_kw"`
	DurationMinutes int                   `json:"duration_minutes"`
	Resource        string                `json:"resource,omitempty"` // shared per household, "" = dedicated
	Windows         []ApplianceTimeWindow `json:"windows"`
}

// ApplianceTimeWindow is a recurring period in which an appliance may run.
type ApplianceTimeWindow struct {
	ID          int    `json:"id"`
	ApplianceID int    `json:"appliance_id"`
	Days        DaySet `json:"days"`
	Start       Clock  `json:"start"`
	End         Clock  `json:"end"`
}

// IsFixed reports whether the appliance must start at a window start.
func (a Appliance) IsFixed() bool { return a.Flexibility == Fixed }

// ResourceKey identifies the capacity-constrained resource the appliance
// occupies inside its household.
func (a Appliance) ResourceKey() string {
	if a.Resource == "" {
		return fmt.Sprintf("appliance:%d", a.ID)
	}
	return "resource:" + a.Resource
}

// DurationSlots returns the run length in slots of resolutionMinutes.
func (a Appliance) DurationSlots(resolutionMinutes int) int {
	if resolutionMinutes <= 0 {
		return 0
	}
	return a.DurationMinutes / resolutionMinutes
}

// Validate checks the appliance against the slot resolution.
func (a Appliance) Validate(resolutionMinutes int) error {
	if a.PowerKW <= 0 {
		return invalid(ErrInvalidAppliance, "power_kw", "must be positive, got %g", a.PowerKW)
	}
	if a.DurationMinutes <= 0 || a.DurationMinutes%resolutionMinutes != 0 {
		return invalid(ErrInvalidAppliance, "duration_minutes",
			"must be a positive multiple of %d, got %d", resolutionMinutes, a.DurationMinutes)
	}
	if a.Flexibility != "" && a.Flexibility != Flexible && a.Flexibility != Fixed {
		return invalid(ErrInvalidAppliance, "flexibility", "unknown value %q", a.Flexibility)
	}
	if len(a.Windows) == 0 {
		return invalid(ErrMissingWindow, "windows", "appliance %d has no time window", a.ID)
	}
	fits := false
	for i, w := range a.Windows {
		if err := w.Validate(resolutionMinutes); err != nil {
			return PrefixField(err, fmt.Sprintf("windows[%d]", i))
		}
		if w.ApplianceID != 0 && w.ApplianceID != a.ID {
			return invalid(ErrMalformedWindow, fmt.Sprintf("windows[%d].appliance_id", i),
				"belongs to appliance %d", w.ApplianceID)
		}
		if int(w.End-w.Start) >= a.DurationMinutes {
			fits = true
		}
	}
	if !fits {
		return invalid(ErrInvalidAppliance, "duration_minutes",
			"%d minutes does not fit in any window", a.DurationMinutes)
	}
	return nil
}

// Validate checks ordering, alignment and day membership of the window.
func (w ApplianceTimeWindow) Validate(resolutionMinutes int) error {
	if w.Days == 0 {
		return invalid(ErrMalformedWindow, "days", "no eligible day")
	}
	if w.Start < 0 || w.End > MinutesPerDay || w.Start >= w.End {
		return invalid(ErrMalformedWindow, "start", "start %s must precede end %s", w.Start, w.End)
	}
	if int(w.Start)%resolutionMinutes != 0 {
		return invalid(ErrMalformedWindow, "start", "%s is not aligned to %d minutes", w.Start, resolutionMinutes)
	}
	if int(w.End)%resolutionMinutes != 0 {
		return invalid(ErrMalformedWindow, "end", "%s is not aligned to %d minutes", w.End, resolutionMinutes)
	}
	return nil
}

// PrefixField prepends prefix to the field path of a *ValidationError.
// Other errors are returned unchanged.
func PrefixField(err error, prefix string) error {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	field := prefix
	if ve.Field != "" {
		field = prefix + "." + ve.Field
	}
	return &ValidationError{Kind: ve.Kind, Field: field, Reason: ve.Reason}
}
