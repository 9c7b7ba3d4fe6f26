// Package planning schedules shiftable household appliances of a twin world
// against time-of-use prices and local solar generation.
//
// A run builds a Context from validated input, derives the per-day slot
// index, constructs a deterministic greedy schedule and optionally refines it
// with seeded simulated annealing. WriteReport turns any schedule into run
// times, per-slot energy flows and efficiency metrics. The package performs
// no I/O and keeps no state between runs.
package planning
