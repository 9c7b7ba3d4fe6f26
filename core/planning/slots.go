package planning

import (
	"iter"
	"slices"
	"time"

	"github.com/kilianp07/twinplan/core/model"
)

// SlotEntry describes one slot of a planned day.
type SlotEntry struct {
	Day   int
	Slot  int
	Start time.Time
	Clock model.Clock
	// Eligible lists the IDs of appliances that may run during the whole
	// slot, in household then appliance order.
	Eligible []int
}

// Slots yields the slots of a planned day in chronological order.
func (c *Context) Slots(day int) iter.Seq[SlotEntry] {
	wd := c.days[day].Weekday
	return func(yield func(SlotEntry) bool) {
		for s := range c.slotsPerDay {
			from := c.SlotClock(s)
			to := from + model.Clock(c.Resolution)
			entry := SlotEntry{Day: day, Slot: s, Start: c.SlotStart(day, s), Clock: from}
			for _, a := range c.appliances {
				if covers(a.Windows, wd, from, to) {
					entry.Eligible = append(entry.Eligible, a.ID)
				}
			}
			if !yield(entry) {
				return
			}
		}
	}
}

func covers(windows []model.ApplianceTimeWindow, wd time.Weekday, from, to model.Clock) bool {
	for _, w := range windows {
		if w.Days.Has(wd) && from >= w.Start && to <= w.End {
			return true
		}
	}
	return false
}

// windowRuns returns the start slots at which a run of the appliance fits
// entirely inside one window on the given weekday, and the subset of those
// that coincide with a window start. Fixed appliances only get window starts.
func (c *Context) windowRuns(a applianceRef, wd time.Weekday) (starts, windowStarts []int) {
	for _, w := range a.Windows {
		if !w.Days.Has(wd) {
			continue
		}
		first := int(w.Start) / c.Resolution
		last := int(w.End)/c.Resolution - a.slots
		if last < first {
			continue
		}
		windowStarts = append(windowStarts, first)
		if a.IsFixed() {
			starts = append(starts, first)
			continue
		}
		for s := first; s <= last; s++ {
			starts = append(starts, s)
		}
	}
	slices.Sort(starts)
	slices.Sort(windowStarts)
	return slices.Compact(starts), slices.Compact(windowStarts)
}
