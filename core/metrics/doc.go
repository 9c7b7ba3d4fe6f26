// Package metrics defines the sinks recording planning runs. Sinks like
// PromSink and InfluxSink record plan, per-day and annealing events and can
// be combined with NewMultiSink. The factory helpers return a MultiSink
// automatically when multiple sinks are configured.
package metrics
