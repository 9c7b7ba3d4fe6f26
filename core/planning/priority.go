package planning

import (
	"cmp"
	"slices"

	"github.com/kilianp07/twinplan/core/factory"
)

// Priority policy names.
const (
	PriorityShortestFirst = "shortest_first"
	PriorityLongestFirst  = "longest_first"
	PriorityDeclared      = "declared"
)

// JobInfo is the view of a job a priority policy compares.
type JobInfo struct {
	Job         Job
	HouseholdID int
	ApplianceID int
	Fixed       bool
	Slots       int
	EnergyKWh   float64
}

// PriorityOrder compares two jobs of the same day. A negative result places
// a before b. Implementations must be a strict total order so the greedy pass
// stays deterministic.
type PriorityOrder func(a, b JobInfo) int

// Priorities holds the available priority policies.
var Priorities = factory.NewRegistry[PriorityOrder]()

func init() {
	_ = Priorities.Register(PriorityShortestFirst, func(map[string]any) (PriorityOrder, error) {
		return func(a, b JobInfo) int {
			return cmp.Or(fixedFirst(a, b), cmp.Compare(a.Slots, b.Slots), byIdentity(a, b))
		}, nil
	})
	_ = Priorities.Register(PriorityLongestFirst, func(map[string]any) (PriorityOrder, error) {
		return func(a, b JobInfo) int {
			return cmp.Or(fixedFirst(a, b), cmp.Compare(b.Slots, a.Slots), byIdentity(a, b))
		}, nil
	})
	_ = Priorities.Register(PriorityDeclared, func(map[string]any) (PriorityOrder, error) {
		return func(a, b JobInfo) int { return cmp.Or(fixedFirst(a, b), byIdentity(a, b)) }, nil
	})
}

// Priority returns the registered policy for name, or shortest_first when
// name is empty.
func Priority(name string) (PriorityOrder, error) {
	if name == "" {
		name = PriorityShortestFirst
	}
	return Priorities.Create(factory.ModuleConfig{Type: name})
}

func fixedFirst(a, b JobInfo) int {
	switch {
	case a.Fixed == b.Fixed:
		return 0
	case a.Fixed:
		return -1
	default:
		return 1
	}
}

func byIdentity(a, b JobInfo) int {
	return cmp.Or(cmp.Compare(a.HouseholdID, b.HouseholdID), cmp.Compare(a.ApplianceID, b.ApplianceID))
}

// ordered returns the jobs of a day sorted by the policy.
func (c *Context) ordered(day int, order PriorityOrder) []JobInfo {
	infos := make([]JobInfo, 0, len(c.dayJobs[day]))
	for _, id := range c.dayJobs[day] {
		j := c.jobs[id]
		a := c.appliances[j.Appliance]
		infos = append(infos, JobInfo{
			Job:         j,
			HouseholdID: a.HouseholdID,
			ApplianceID: a.ID,
			Fixed:       a.IsFixed(),
			Slots:       a.slots,
			EnergyKWh:   a.energy * float64(a.slots),
		})
	}
	slices.SortStableFunc(infos, order)
	return infos
}
