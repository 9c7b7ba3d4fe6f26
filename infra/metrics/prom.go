package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/twinplan/core/metrics"
)

// PromSink records planning runs in Prometheus metrics.
type PromSink struct {
	runs        *prometheus.CounterVec
	unscheduled *prometheus.CounterVec
	cost        *prometheus.GaugeVec
	localShare  *prometheus.GaugeVec
	duration    *prometheus.HistogramVec
	iterations  prometheus.Histogram
	phases      *prometheus.CounterVec
}

// NewPromSink registers planning metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plan_runs_total",
			Help: "Total number of planning runs",
		}, []string{"algorithm", "phase"}),
		unscheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plan_unscheduled_appliances_total",
			Help: "Appliance runs that could not be placed",
		}, []string{"twinworld_id"}),
		cost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "plan_cost_eur",
			Help: "Energy cost of the last plan per twin world",
		}, []string{"twinworld_id", "kind"}),
		localShare: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "plan_local_share_percent",
			Help: "Share of flexible demand met by local solar in the last plan",
		}, []string{"twinworld_id"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "plan_duration_seconds",
			Help:    "Wall time of planning runs",
			Buckets: prometheus.DefBuckets,
		}, []string{"algorithm"}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "plan_anneal_iterations",
			Help:    "Iterations performed by simulated annealing",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		}),
		phases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plan_phases_total",
			Help: "Completed planning phases",
		}, []string{"phase"}),
	}
	var err error
	if s.runs, err = register(reg, s.runs); err != nil {
		return nil, err
	}
	if s.unscheduled, err = register(reg, s.unscheduled); err != nil {
		return nil, err
	}
	if s.cost, err = register(reg, s.cost); err != nil {
		return nil, err
	}
	if s.localShare, err = register(reg, s.localShare); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.iterations, err = register(reg, s.iterations); err != nil {
		return nil, err
	}
	if s.phases, err = register(reg, s.phases); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordPlan updates run counters, cost gauges and the duration histogram.
func (s *PromSink) RecordPlan(ev coremetrics.PlanEvent) error {
	tw := strconv.Itoa(ev.TwinWorldID)
	s.runs.WithLabelValues(ev.Algorithm, ev.Phase).Inc()
	s.unscheduled.WithLabelValues(tw).Add(float64(ev.Unscheduled))
	s.cost.WithLabelValues(tw, "greedy").Set(ev.GreedyCost)
	s.cost.WithLabelValues(tw, "final").Set(ev.Cost)
	s.cost.WithLabelValues(tw, "baseline").Set(ev.BaselineCost)
	s.localShare.WithLabelValues(tw).Set(ev.LocalShare)
	s.duration.WithLabelValues(ev.Algorithm).Observe(ev.Duration.Seconds())
	return nil
}

// RecordAnneal observes the annealing iteration count.
func (s *PromSink) RecordAnneal(ev coremetrics.AnnealEvent) error {
	s.iterations.Observe(float64(ev.Iterations))
	return nil
}

// RecordPhase counts completed phases.
func (s *PromSink) RecordPhase(ev coremetrics.PhaseEvent) error {
	s.phases.WithLabelValues(ev.Phase).Inc()
	return nil
}
