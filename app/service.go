package app

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/twinplan/core/catalog"
	"github.com/kilianp07/twinplan/core/logger"
	coremetrics "github.com/kilianp07/twinplan/core/metrics"
	"github.com/kilianp07/twinplan/core/model"
	"github.com/kilianp07/twinplan/core/monitoring"
	"github.com/kilianp07/twinplan/core/planlog"
	"github.com/kilianp07/twinplan/core/planning"
	"github.com/kilianp07/twinplan/internal/eventbus"
)

var (
	// ErrNotFound is returned when a selected catalog entity does not exist.
	ErrNotFound = catalog.ErrNotFound
	// ErrStopped is returned by Plan after Stop until the next Start.
	ErrStopped = errors.New("simulation stopped")
	// ErrNoSession is returned when a request relies on a session that
	// Start has not opened.
	ErrNoSession = errors.New("no simulation started")
)

// runNamespace scopes run and seed UUIDs.
var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("twinplan/plan-run"))

// Defaults are applied to requests that leave them unset.
type Defaults struct {
	ChunkDays int
	Priority  string
	Annealing planning.AnnealConfig
}

type session struct {
	selection Selection
	world     model.TwinWorld
	cost      model.CostModel
	algorithm model.Algorithm
	flow      model.EnergyFlow
}

// Service implements the simulation boundary on top of the planning engine.
type Service struct {
	catalog  catalog.Catalog
	log      logger.Logger
	sink     coremetrics.MetricsSink
	runs     planlog.Store
	bus      *eventbus.TypedBus[planning.Progress]
	defaults Defaults
	now      func() time.Time

	mu      sync.Mutex
	session *session
	stopped bool
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l logger.Logger) Option { return func(s *Service) { s.log = logger.OrNop(l) } }

func WithMetrics(sink coremetrics.MetricsSink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

func WithPlanLog(store planlog.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.runs = store
		}
	}
}

// WithProgress publishes planning progress on bus.
func WithProgress(bus *eventbus.TypedBus[planning.Progress]) Option {
	return func(s *Service) { s.bus = bus }
}

func WithDefaults(d Defaults) Option { return func(s *Service) { s.defaults = d } }

// WithClock overrides the time source used for run records and metrics.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// New creates a Service reading entities from cat.
func New(cat catalog.Catalog, opts ...Option) *Service {
	s := &Service{
		catalog: cat,
		log:     logger.NopLogger{},
		sink:    coremetrics.NopSink{},
		runs:    planlog.NopStore{},
		defaults: Defaults{
			ChunkDays: planning.DefaultChunkDays,
			Priority:  planning.PriorityShortestFirst,
			Annealing: planning.DefaultAnnealConfig(),
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadOptions lists every selectable entity.
func (s *Service) LoadOptions(ctx context.Context) (Options, error) {
	return s.catalog.Options(ctx)
}

// Start resolves the selection, opens a session for subsequent Plan calls
// and clears a previous Stop.
func (s *Service) Start(ctx context.Context, sel Selection) (SelectedOptions, error) {
	world, err := s.catalog.TwinWorld(ctx, sel.TwinWorldID)
	if err != nil {
		return SelectedOptions{}, err
	}
	if len(world.Households) == 0 {
		return SelectedOptions{}, fmt.Errorf("households of twin world %d: %w", world.ID, ErrNotFound)
	}
	cost, err := s.catalog.CostModel(ctx, sel.CostModelID)
	if err != nil {
		return SelectedOptions{}, err
	}
	algorithm, err := s.catalog.Algorithm(ctx, sel.AlgorithmID)
	if err != nil {
		return SelectedOptions{}, err
	}
	flow, err := s.catalog.EnergyFlow(ctx, sel.EnergyFlowID)
	if err != nil {
		return SelectedOptions{}, err
	}
	if sel.ChunkOffset < 0 || sel.ChunkOffset >= world.Days() {
		return SelectedOptions{}, &model.ValidationError{Kind: model.ErrInvalidTwinWorld, Field: "chunk_offset",
			Reason: fmt.Sprintf("%d is outside the %d day horizon", sel.ChunkOffset, world.Days())}
	}

	s.mu.Lock()
	s.session = &session{selection: sel, world: world, cost: cost, algorithm: algorithm, flow: flow}
	s.stopped = false
	s.mu.Unlock()
	s.log.Infof("simulation started: twin world %d, cost model %d, algorithm %d, energy flow %d",
		world.ID, cost.ID, algorithm.ID, flow.ID)

	households := slices.Clone(world.Households)
	// producers first, as the selection is displayed
	slices.SortStableFunc(households, func(a, b model.Household) int { return b.SolarPanels - a.SolarPanels })
	summary := flow
	summary.Points = nil
	return SelectedOptions{
		TwinWorld:   world,
		CostModel:   cost,
		Algorithm:   algorithm,
		EnergyFlow:  summary,
		Households:  households,
		ChunkOffset: sel.ChunkOffset,
		TotalDays:   world.Days(),
	}, nil
}

// Reset drops the session and clears a previous Stop.
func (s *Service) Reset() {
	s.mu.Lock()
	s.session = nil
	s.stopped = false
	s.mu.Unlock()
	s.log.Infof("simulation reset")
}

// Stop refuses further planning until the next Start.
func (s *Service) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.log.Infof("simulation stopped")
}

// Plan schedules one chunk with the algorithm of the request, the session
// or the cost model, in that order.
func (s *Service) Plan(ctx context.Context, in PlanInput) (PlanOutput, error) {
	return s.plan(ctx, in, false)
}

// PlanSimulatedAnnealing schedules one chunk with simulated annealing
// regardless of the selected algorithm.
func (s *Service) PlanSimulatedAnnealing(ctx context.Context, in PlanInput) (PlanOutput, error) {
	return s.plan(ctx, in, true)
}

type resolved struct {
	input     planning.Input
	algorithm model.Algorithm
	ids       planlog.RunRecord
}

func (s *Service) resolve(ctx context.Context, in PlanInput, forceAnnealing bool) (resolved, error) {
	s.mu.Lock()
	stopped, sess := s.stopped, s.session
	s.mu.Unlock()
	if stopped {
		return resolved{}, ErrStopped
	}

	var r resolved
	switch {
	case in.TwinWorld != nil:
		r.input.TwinWorld = *in.TwinWorld
	case sess != nil:
		r.input.TwinWorld = sess.world
	default:
		return r, fmt.Errorf("twin world: %w", ErrNoSession)
	}
	if len(in.Households) > 0 {
		r.input.TwinWorld.Households = in.Households
	}
	switch {
	case in.CostModel != nil:
		r.input.CostModel = *in.CostModel
	case sess != nil:
		r.input.CostModel = sess.cost
	default:
		return r, fmt.Errorf("cost model: %w", ErrNoSession)
	}
	switch {
	case in.EnergyFlow != nil:
		r.input.EnergyFlow = *in.EnergyFlow
	case in.EnergyFlowID != 0:
		f, err := s.catalog.EnergyFlow(ctx, in.EnergyFlowID)
		if err != nil {
			return r, err
		}
		r.input.EnergyFlow = f
	case sess != nil:
		r.input.EnergyFlow = sess.flow
	default:
		return r, fmt.Errorf("energy flow: %w", ErrNoSession)
	}
	switch {
	case in.Algorithm != nil:
		r.algorithm = *in.Algorithm
	case sess != nil:
		r.algorithm = sess.algorithm
	}
	r.algorithm = planning.EffectiveAlgorithm(r.algorithm, r.input.CostModel)
	if forceAnnealing && r.algorithm.Tag != model.AlgorithmSimulatedAnnealing {
		r.algorithm = model.Algorithm{ID: r.algorithm.ID, Name: r.algorithm.Name, Tag: model.AlgorithmSimulatedAnnealing}
	}
	if r.algorithm.Tag == model.AlgorithmSimulatedAnnealing {
		r.algorithm.Params = annealParams(s.defaults.Annealing, r.algorithm.Params)
	}

	r.input.ChunkOffset = in.ChunkOffset
	r.input.ChunkDays = in.ChunkDays
	if r.input.ChunkDays == 0 {
		r.input.ChunkDays = s.defaults.ChunkDays
	}
	r.ids = planlog.RunRecord{
		TwinWorldID:  r.input.TwinWorld.ID,
		CostModelID:  r.input.CostModel.ID,
		AlgorithmID:  r.algorithm.ID,
		EnergyFlowID: r.input.EnergyFlow.ID,
		ChunkOffset:  r.input.ChunkOffset,
	}
	return r, nil
}

// annealParams overlays the algorithm's params on the configured defaults.
func annealParams(def planning.AnnealConfig, params map[string]any) map[string]any {
	if def == (planning.AnnealConfig{}) {
		def = planning.DefaultAnnealConfig()
	}
	out := map[string]any{
		"initial_temperature": def.InitialTemperature,
		"cooling_rate":        def.CoolingRate,
		"min_temperature":     def.MinTemperature,
		"max_iterations":      def.MaxIterations,
	}
	maps.Copy(out, params)
	return out
}

func (s *Service) plan(ctx context.Context, in PlanInput, forceAnnealing bool) (PlanOutput, error) {
	r, err := s.resolve(ctx, in, forceAnnealing)
	if err != nil {
		return PlanOutput{}, err
	}
	priority := in.Priority
	if priority == "" {
		priority = s.defaults.Priority
	}
	if priority == "" {
		priority = planning.PriorityShortestFirst
	}
	if !slices.Contains(planning.Priorities.Types(), priority) {
		return PlanOutput{}, &model.ValidationError{Kind: model.ErrInvalidRequest, Field: "priority",
			Reason: fmt.Sprintf("unknown policy %q", priority)}
	}
	runID, seed, err := identify(r, priority, in.Seed)
	if err != nil {
		return PlanOutput{}, err
	}
	strategy, err := planning.NewStrategy(r.algorithm)
	if err != nil {
		return PlanOutput{}, &model.ValidationError{Kind: model.ErrInvalidRequest, Field: "algorithm.params", Reason: err.Error()}
	}

	log := s.log.With("run_id", runID)
	opts := planning.Options{
		Priority: priority,
		Seed:     seed,
		Logger:   log,
		Progress: func(p planning.Progress) {
			if s.bus != nil {
				s.bus.Publish(p)
			}
		},
	}

	tags := map[string]string{
		"run_id":       runID,
		"twinworld_id": strconv.Itoa(r.ids.TwinWorldID),
		"algorithm":    r.algorithm.Tag,
	}
	started := s.now()
	var out *planning.Outcome
	err = monitoring.Guard(tags, func() error {
		var rerr error
		out, rerr = planning.Run(r.input, strategy, opts)
		return rerr
	})
	if err != nil {
		if errors.Is(err, model.ErrInvariant) {
			monitoring.CaptureException(err, tags)
			log.Errorf("plan failed: %v", err)
		}
		var pe *monitoring.PanicError
		if errors.As(err, &pe) {
			err = model.NewInvariantError("%v", pe.Value)
			log.Errorf("plan panicked: %v", pe.Value)
		}
		return PlanOutput{}, err
	}
	elapsed := s.now().Sub(started)

	res := buildOutput(runID, r, out)
	log.Infof("planned days %d-%d of twin world %d: cost %.4f (%s), %d unscheduled",
		r.input.ChunkOffset+1, r.input.ChunkOffset+res.DaysInPlanning, r.ids.TwinWorldID,
		res.Cost, res.Phase, len(res.Unscheduled))
	s.record(ctx, r, res, out, started, elapsed)
	return res, nil
}

// identify derives the run ID and, when absent, the seed from the request
// content so that identical requests are reproducible.
func identify(r resolved, priority string, seed *int64) (string, int64, error) {
	body, err := json.Marshal(struct {
		Input     planning.Input  `json:"input"`
		Algorithm model.Algorithm `json:"algorithm"`
		Priority  string          `json:"priority"`
	}{r.input, r.algorithm, priority})
	if err != nil {
		return "", 0, fmt.Errorf("encode plan input: %w", err)
	}
	var sd int64
	if seed != nil {
		sd = *seed
	} else {
		u := uuid.NewSHA1(runNamespace, append([]byte("seed:"), body...))
		sd = int64(binary.BigEndian.Uint64(u[:8]) >> 1)
	}
	body = binary.BigEndian.AppendUint64(body, uint64(sd))
	return uuid.NewSHA1(runNamespace, body).String(), sd, nil
}

func buildOutput(runID string, r resolved, out *planning.Outcome) PlanOutput {
	c := out.Schedule.Context()
	days := c.Days()
	total := r.input.TwinWorld.Days()
	next := r.input.ChunkOffset + len(days)
	res := PlanOutput{
		RunID:           runID,
		TwinWorldID:     r.input.TwinWorld.ID,
		ChunkOffset:     r.input.ChunkOffset,
		DaysInPlanning:  len(days),
		StartDate:       days[0].Date,
		EndDate:         days[len(days)-1].Date,
		NextChunkOffset: next,
		Done:            next >= total,
		Algorithm:       out.Algorithm,
		Phase:           out.Phase,
		Seed:            out.Seed,
		Cost:            out.Cost,
		GreedyCost:      out.GreedyCost,
		Efficiency: EfficiencyResults{
			Days:   out.Report.Days,
			Totals: out.Report.Totals,
			Slots:  out.Report.Slots,
		},
		Unscheduled: out.Violations,
		Anneal:      out.Anneal,
	}
	if res.Unscheduled == nil {
		res.Unscheduled = []planning.CapacityViolation{}
	}
	if out.Greedy != nil {
		totals := out.Greedy.Totals
		res.Greedy = &totals
	}
	results := make(map[int]planning.HouseholdResult, len(out.Report.Households))
	for _, h := range out.Report.Households {
		results[h.HouseholdID] = h
	}
	runs := make(map[int][]planning.ApplianceRun)
	for _, run := range out.Report.Runs {
		runs[run.HouseholdID] = append(runs[run.HouseholdID], run)
	}
	for _, h := range c.Households() {
		plan := HouseholdPlan{ID: h.ID, Name: h.Name, SolarPanels: h.SolarPanels, Runs: runs[h.ID], Result: results[h.ID]}
		if plan.Runs == nil {
			plan.Runs = []planning.ApplianceRun{}
		}
		res.Households = append(res.Households, plan)
	}
	return res
}

// record reports the run to the metrics sink and the plan log. Failures are
// logged and do not fail the request.
func (s *Service) record(ctx context.Context, r resolved, res PlanOutput, out *planning.Outcome, started time.Time, elapsed time.Duration) {
	totals := res.Efficiency.Totals
	ev := coremetrics.PlanEvent{
		RunID:           res.RunID,
		TwinWorldID:     r.ids.TwinWorldID,
		CostModelID:     r.ids.CostModelID,
		Algorithm:       res.Algorithm,
		Phase:           res.Phase,
		Seed:            res.Seed,
		Days:            res.DaysInPlanning,
		Households:      len(res.Households),
		Scheduled:       totals.Scheduled,
		Unscheduled:     totals.Unscheduled,
		GreedyCost:      res.GreedyCost,
		Cost:            res.Cost,
		BaselineCost:    totals.BaselineCost,
		LocalShare:      totals.LocalShare,
		SelfEfficiency:  totals.SelfEfficiency,
		TotalEfficiency: totals.TotalEfficiency,
		Duration:        elapsed,
		Time:            started,
	}
	if err := s.sink.RecordPlan(ev); err != nil {
		s.log.Warnf("record plan metrics: %v", err)
	}
	if dr, ok := s.sink.(coremetrics.DayRecorder); ok {
		days := make([]coremetrics.DayEvent, 0, len(res.Efficiency.Days))
		for _, d := range res.Efficiency.Days {
			days = append(days, coremetrics.DayEvent{
				RunID:           res.RunID,
				TwinWorldID:     r.ids.TwinWorldID,
				Date:            d.Date.Time,
				SurplusKWh:      d.SurplusKWh,
				DemandKWh:       d.DemandKWh,
				LocalKWh:        d.OwnKWh + d.CommunityKWh,
				GridKWh:         d.GridKWh,
				SelfEfficiency:  d.SelfEfficiency,
				TotalEfficiency: d.TotalEfficiency,
				Cost:            d.TotalCost,
				Savings:         d.Savings,
			})
		}
		if err := dr.RecordPlanDays(days); err != nil {
			s.log.Warnf("record day metrics: %v", err)
		}
	}
	if ar, ok := s.sink.(coremetrics.AnnealRecorder); ok && out.Anneal != nil {
		st := out.Anneal
		if err := ar.RecordAnneal(coremetrics.AnnealEvent{
			RunID:        res.RunID,
			TwinWorldID:  r.ids.TwinWorldID,
			Seed:         st.Seed,
			Iterations:   st.Iterations,
			Accepted:     st.Accepted,
			Improvements: st.Improvements,
			InitialCost:  st.InitialCost,
			BestCost:     st.BestCost,
			Kept:         res.Phase == planning.PhaseAnnealed,
			Time:         started,
		}); err != nil {
			s.log.Warnf("record anneal metrics: %v", err)
		}
	}

	rec := r.ids
	rec.RunID = res.RunID
	rec.Timestamp = started
	rec.Algorithm = res.Algorithm
	rec.Phase = res.Phase
	rec.Seed = res.Seed
	rec.Days = res.DaysInPlanning
	rec.Scheduled = totals.Scheduled
	rec.Unscheduled = totals.Unscheduled
	rec.GreedyCost = res.GreedyCost
	rec.Cost = res.Cost
	rec.BaselineCost = totals.BaselineCost
	rec.LocalShare = totals.LocalShare
	rec.DurationMS = float64(elapsed.Microseconds()) / 1000
	rec.Violations = out.Violations
	if err := s.runs.Append(ctx, rec); err != nil {
		s.log.Warnf("append plan log: %v", err)
	}
}

// Runs queries the plan log.
func (s *Service) Runs(ctx context.Context, q planlog.Query) ([]planlog.RunRecord, error) {
	return s.runs.Query(ctx, q)
}
