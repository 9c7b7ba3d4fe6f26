package planning

import (
	"fmt"

	"github.com/kilianp07/twinplan/core/factory"
	"github.com/kilianp07/twinplan/core/logger"
	"github.com/kilianp07/twinplan/core/model"
)

// Phases of a planning run.
const (
	PhaseGreedy    = "greedy"
	PhaseAnnealing = "annealing"
	PhaseAnnealed  = "annealed"
)

// Progress is emitted after each phase of a run.
type Progress struct {
	Phase       string  `json:"phase"`
	Cost        float64 `json:"cost"`
	Unscheduled int     `json:"unscheduled"`
	Iterations  int     `json:"iterations,omitempty"`
}

// Options tune a run without changing its input.
type Options struct {
	// Priority names a registered priority policy, empty for shortest_first.
	Priority string
	// Seed drives the annealing random source.
	Seed     int64
	Logger   logger.Logger
	Progress func(Progress)
}

func (o Options) emit(p Progress) {
	if o.Progress != nil {
		o.Progress(p)
	}
}

// Outcome is the result of a strategy run.
type Outcome struct {
	Algorithm string `json:"algorithm"`
	// Phase tells which schedule the report describes: greedy, or annealed
	// when the refinement was strictly cheaper.
	Phase      string              `json:"phase"`
	Seed       int64               `json:"seed"`
	Cost       float64             `json:"cost"`
	GreedyCost float64             `json:"greedy_cost"`
	Report     Report              `json:"report"`
	Greedy     *Report             `json:"greedy,omitempty"`
	Violations []CapacityViolation `json:"violations"`
	Anneal     *AnnealStats        `json:"anneal,omitempty"`
	Schedule   *Schedule           `json:"-"`
}

// Strategy builds a schedule for a context.
type Strategy interface {
	Name() string
	Run(c *Context, order PriorityOrder, opts Options) (*Outcome, error)
}

// Strategies holds the scheduling strategies keyed by algorithm tag.
var Strategies = factory.NewRegistry[Strategy]()

func init() {
	if err := Strategies.Register(model.AlgorithmGreedy, func(map[string]any) (Strategy, error) {
		return GreedyStrategy{}, nil
	}); err != nil {
		panic(err)
	}
	if err := Strategies.Register(model.AlgorithmSimulatedAnnealing, func(conf map[string]any) (Strategy, error) {
		cfg := DefaultAnnealConfig()
		if err := factory.Decode(conf, &cfg); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return &AnnealingStrategy{Config: cfg}, nil
	}); err != nil {
		panic(err)
	}
}

// EffectiveAlgorithm returns the algorithm a request runs with: its own tag,
// else the cost model's tag, else greedy.
func EffectiveAlgorithm(a model.Algorithm, cm model.CostModel) model.Algorithm {
	switch {
	case a.Tag != "":
	case cm.Algorithm != "":
		a.Tag = cm.Algorithm
	default:
		a.Tag = model.AlgorithmGreedy
	}
	return a
}

// NewStrategy creates the strategy registered for the algorithm's tag.
func NewStrategy(a model.Algorithm) (Strategy, error) {
	tag := a.Tag
	if tag == "" {
		tag = model.AlgorithmGreedy
	}
	s, err := Strategies.Create(factory.ModuleConfig{Type: tag, Conf: a.Params})
	if err != nil {
		return nil, fmt.Errorf("algorithm %q: %w", tag, err)
	}
	return s, nil
}

// GreedyStrategy runs the constructive pass only.
type GreedyStrategy struct{}

func (GreedyStrategy) Name() string { return model.AlgorithmGreedy }

func (GreedyStrategy) Run(c *Context, order PriorityOrder, opts Options) (*Outcome, error) {
	log := logger.OrNop(opts.Logger)
	g := Greedy(c, order)
	logViolations(log, g.Violations)
	opts.emit(Progress{Phase: PhaseGreedy, Cost: g.Cost, Unscheduled: len(g.Violations)})
	return &Outcome{
		Algorithm:  model.AlgorithmGreedy,
		Phase:      PhaseGreedy,
		Seed:       opts.Seed,
		Cost:       g.Cost,
		GreedyCost: g.Cost,
		Report:     WriteReport(g.Schedule),
		Violations: g.Violations,
		Schedule:   g.Schedule,
	}, nil
}

// AnnealingStrategy refines the greedy schedule and keeps it only when
// strictly cheaper.
type AnnealingStrategy struct {
	Config AnnealConfig
}

func (*AnnealingStrategy) Name() string { return model.AlgorithmSimulatedAnnealing }

func (s *AnnealingStrategy) Run(c *Context, order PriorityOrder, opts Options) (*Outcome, error) {
	log := logger.OrNop(opts.Logger)
	g := Greedy(c, order)
	logViolations(log, g.Violations)
	opts.emit(Progress{Phase: PhaseGreedy, Cost: g.Cost, Unscheduled: len(g.Violations)})
	greedy := WriteReport(g.Schedule)

	best, stats := Anneal(g.Schedule, s.Config, opts.Seed)
	opts.emit(Progress{Phase: PhaseAnnealing, Cost: stats.BestCost, Unscheduled: len(g.Violations), Iterations: stats.Iterations})
	log.Debugw("annealing finished", map[string]any{
		"seed":         stats.Seed,
		"iterations":   stats.Iterations,
		"accepted":     stats.Accepted,
		"improvements": stats.Improvements,
		"greedy_cost":  g.Cost,
		"best_cost":    stats.BestCost,
	})

	out := &Outcome{
		Algorithm:  model.AlgorithmSimulatedAnnealing,
		Phase:      PhaseGreedy,
		Seed:       opts.Seed,
		Cost:       g.Cost,
		GreedyCost: g.Cost,
		Report:     greedy,
		Violations: g.Violations,
		Anneal:     &stats,
		Schedule:   g.Schedule,
	}
	if stats.BestCost < g.Cost-costEpsilon {
		out.Phase = PhaseAnnealed
		out.Cost = stats.BestCost
		out.Report = WriteReport(best)
		out.Greedy = &greedy
		out.Schedule = best
	} else {
		log.Infof("annealing did not improve on greedy cost %.4f, keeping greedy schedule", g.Cost)
	}
	return out, nil
}

func logViolations(log logger.Logger, vs []CapacityViolation) {
	for _, v := range vs {
		log.Warnf("appliance %d of household %d unscheduled on day %d: %s", v.ApplianceID, v.HouseholdID, v.Day, v.Reason)
	}
}
