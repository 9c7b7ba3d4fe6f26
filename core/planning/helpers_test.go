package planning

import (
	"testing"
	"time"

	"github.com/kilianp07/twinplan/core/model"
)

var monday = model.NewDate(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

func window(id int, start, end string) model.ApplianceTimeWindow {
	return model.ApplianceTimeWindow{ID: id, Days: model.AllDays, Start: model.MustClock(start), End: model.MustClock(end)}
}

func appliance(id int, powerKW float64, minutes int, windows ...model.ApplianceTimeWindow) model.Appliance {
	return model.Appliance{
		ID:              id,
		Name:            "appliance",
		Type:            model.WashingMachine,
		Flexibility:     model.Flexible,
		PowerKW:         powerKW,
		DurationMinutes: minutes,
		Windows:         windows,
	}
}

func world(days int, households ...model.Household) model.TwinWorld {
	return model.TwinWorld{
		ID:                1,
		Name:              "test",
		Start:             monday,
		End:               monday.AddDays(days - 1),
		ResolutionMinutes: 15,
		Households:        households,
	}
}

func flatCost(buy, sell float64) model.CostModel {
	return model.CostModel{ID: 1, Name: "flat", BuyPrice: buy, SellPrice: sell, Scheme: model.SchemeFixedPrice}
}

// flow builds a 15 minute energy flow over days with solar(slot) kWh per
// reference panel and no reference consumption.
func flow(days int, solar func(slot int) float64) model.EnergyFlow {
	f := model.EnergyFlow{ID: 1, ResolutionMinutes: 15, SolarPanelsFactor: 1, EnergyUsageFactor: 1}
	for d := range days {
		for s := range 96 {
			p := model.FlowPoint{Timestamp: monday.AddDays(d).Add(time.Duration(s*15) * time.Minute)}
			if solar != nil {
				p.SolarProducedKWh = solar(s)
			}
			f.Points = append(f.Points, p)
		}
	}
	return f
}

func mustContext(t *testing.T, in Input) *Context {
	t.Helper()
	c, err := NewContext(in)
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	return c
}

func mustPriority(t *testing.T, name string) PriorityOrder {
	t.Helper()
	o, err := Priority(name)
	if err != nil {
		t.Fatalf("priority: %v", err)
	}
	return o
}

func clockOf(c *Context, p Placement) (string, string) {
	s := p.(Scheduled)
	return c.SlotClock(s.StartSlot).String(), c.SlotClock(s.EndSlot).String()
}

// community builds several households sharing solar, with overlapping
// windows and shared chargers, over three days.
func community() Input {
	noon := func(s int) float64 {
		if s >= 40 && s < 64 {
			return 0.4
		}
		return 0
	}
	hh := []model.Household{
		{ID: 1, Name: "sunny", SolarPanels: 3, EnergyUsageKWh: 0, Appliances: []model.Appliance{
			appliance(11, 2, 60, window(1, "08:00", "18:00")),
			appliance(12, 1.5, 90, window(2, "06:00", "22:00")),
		}},
		{ID: 2, Name: "shade", Appliances: []model.Appliance{
			appliance(21, 2, 45, window(3, "09:00", "17:00")),
			func() model.Appliance {
				a := appliance(22, 7, 120, window(4, "10:00", "16:00"))
				a.Resource = "charger"
				a.Type = model.ElectricVehicle
				return a
			}(),
			func() model.Appliance {
				a := appliance(23, 7, 60, window(5, "12:00", "15:00"))
				a.Resource = "charger"
				a.Type = model.ElectricVehicle
				return a
			}(),
		}},
		{ID: 3, Name: "fixed", SolarPanels: 1, Appliances: []model.Appliance{
			func() model.Appliance {
				a := appliance(31, 3, 30, window(6, "07:00", "09:00"), window(7, "17:00", "19:00"))
				a.Flexibility = model.Fixed
				a.Type = model.Stove
				return a
			}(),
		}},
	}
	cm := flatCost(0.30, 0.05)
	cm.TimeOfUse = []model.PriceBand{
		{Start: model.MustClock("07:00"), End: model.MustClock("10:00"), BuyPrice: 0.40},
		{Start: model.MustClock("17:00"), End: model.MustClock("21:00"), BuyPrice: 0.45},
	}
	return Input{TwinWorld: world(3, hh...), CostModel: cm, EnergyFlow: flow(3, noon)}
}
