package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/twinplan/core/metrics"
	"github.com/kilianp07/twinplan/core/planning"
	"github.com/kilianp07/twinplan/internal/eventbus"
)

func TestPromSink_RecordPlan(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	ev := coremetrics.PlanEvent{
		TwinWorldID:  7,
		Algorithm:    "simulated_annealing",
		Phase:        "annealed",
		Unscheduled:  2,
		GreedyCost:   3.2,
		Cost:         2.9,
		BaselineCost: 4,
		LocalShare:   35,
		Duration:     20 * time.Millisecond,
	}
	require.NoError(t, sink.RecordPlan(ev))
	require.NoError(t, sink.RecordPlan(ev))

	assert.Equal(t, 2.0, testutil.ToFloat64(sink.runs.WithLabelValues("simulated_annealing", "annealed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(sink.unscheduled.WithLabelValues("7")))
	assert.Equal(t, 2.9, testutil.ToFloat64(sink.cost.WithLabelValues("7", "final")))
	assert.Equal(t, 3.2, testutil.ToFloat64(sink.cost.WithLabelValues("7", "greedy")))
	assert.Equal(t, 35.0, testutil.ToFloat64(sink.localShare.WithLabelValues("7")))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.duration))
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	second, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, first.RecordPhase(coremetrics.PhaseEvent{Phase: planning.PhaseGreedy}))
	require.NoError(t, second.RecordPhase(coremetrics.PhaseEvent{Phase: planning.PhaseGreedy}))
	assert.Equal(t, 2.0, testutil.ToFloat64(first.phases.WithLabelValues(planning.PhaseGreedy)))
}

func TestProgressCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	bus := eventbus.NewTyped[planning.Progress]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartProgressCollector(ctx, bus, sink)

	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	bus.Publish(planning.Progress{Phase: planning.PhaseGreedy, Cost: 1})
	bus.Publish(planning.Progress{Phase: planning.PhaseAnnealing, Cost: 0.8})

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(sink.phases.WithLabelValues(planning.PhaseAnnealing)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.phases.WithLabelValues(planning.PhaseGreedy)))

	bus.Close()
}

func TestProgressCollector_IgnoresSinksWithoutPhases(t *testing.T) {
	bus := eventbus.NewTyped[planning.Progress]()
	StartProgressCollector(context.Background(), bus, planSinkOnly{})
	assert.Zero(t, bus.Subscribers())
}

type planSinkOnly struct{}

func (planSinkOnly) RecordPlan(coremetrics.PlanEvent) error { return nil }

func TestFactory_BuiltinSinks(t *testing.T) {
	sink, err := coremetrics.NewMetricsSink(nil)
	require.NoError(t, err)
	assert.IsType(t, coremetrics.NopSink{}, sink)

	assert.Contains(t, coremetrics.SinkTypes(), "prometheus")
	assert.Contains(t, coremetrics.SinkTypes(), "influx")
}
