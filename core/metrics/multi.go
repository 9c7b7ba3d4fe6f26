package metrics

// MultiSink fans events out to multiple sinks. Optional recorders are only
// called on sinks implementing them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPlan forwards the event to all sinks, returning the first error encountered.
func (m *MultiSink) RecordPlan(ev PlanEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordPlan(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordPlanDays forwards per-day results.
func (m *MultiSink) RecordPlanDays(days []DayEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(DayRecorder); ok {
			if err := rec.RecordPlanDays(days); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordAnneal forwards annealing statistics.
func (m *MultiSink) RecordAnneal(ev AnnealEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(AnnealRecorder); ok {
			if err := rec.RecordAnneal(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordPhase forwards phase completions.
func (m *MultiSink) RecordPhase(ev PhaseEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(PhaseRecorder); ok {
			if err := rec.RecordPhase(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
