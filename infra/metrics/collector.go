package metrics

import (
	"context"
	"time"

	coremetrics "github.com/kilianp07/twinplan/core/metrics"
	"github.com/kilianp07/twinplan/core/planning"
	"github.com/kilianp07/twinplan/internal/eventbus"
)

// StartProgressCollector subscribes to planning progress and records phase
// completions on sinks implementing PhaseRecorder. It stops when the context
// is canceled or the bus is closed.
func StartProgressCollector(ctx context.Context, bus *eventbus.TypedBus[planning.Progress], sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.PhaseRecorder)
	if !ok {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case p, ok := <-sub:
				if !ok {
					return
				}
				_ = rec.RecordPhase(coremetrics.PhaseEvent{
					Phase:       p.Phase,
					Cost:        p.Cost,
					Unscheduled: p.Unscheduled,
					Time:        time.Now(),
				})
			}
		}
	}()
}
