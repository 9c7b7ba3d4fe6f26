package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/twinplan/core/catalog"
	coremetrics "github.com/kilianp07/twinplan/core/metrics"
	"github.com/kilianp07/twinplan/core/model"
	"github.com/kilianp07/twinplan/core/planlog"
	"github.com/kilianp07/twinplan/core/planning"
	"github.com/kilianp07/twinplan/internal/eventbus"
)

var june3 = model.NewDate(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC))

// testScenario is a ten day twin world with one producer and two
// consumers on an hourly energy flow with solar from 10:00 to 15:00.
func testScenario() catalog.Scenario {
	dishwasher := func(id int) model.Appliance {
		return model.Appliance{
			ID: id, Name: "dishwasher", Type: model.Dishwasher, PowerKW: 1.5, DurationMinutes: 120,
			Windows: []model.ApplianceTimeWindow{{ID: id, Days: model.AllDays, Start: model.MustClock("08:00"), End: model.MustClock("18:00")}},
		}
	}
	flow := model.EnergyFlow{ID: 1, Name: "june", ResolutionMinutes: 60, SolarPanelsFactor: 1, EnergyUsageFactor: 1}
	for d := range 10 {
		for h := range 24 {
			p := model.FlowPoint{Timestamp: june3.AddDays(d).Add(time.Duration(h) * time.Hour), EnergyUsedKWh: 0.1}
			if h >= 10 && h < 15 {
				p.SolarProducedKWh = 0.5
			}
			flow.Points = append(flow.Points, p)
		}
	}
	return catalog.Scenario{
		TwinWorlds: []model.TwinWorld{{
			ID: 1, Name: "street", Start: june3, End: june3.AddDays(9), ResolutionMinutes: 60,
			Households: []model.Household{
				{ID: 2, Name: "consumer", Appliances: []model.Appliance{dishwasher(20)}},
				{ID: 1, Name: "producer", SolarPanels: 4},
				{ID: 3, Name: "neighbour", SolarPanels: 1, Appliances: []model.Appliance{dishwasher(30)}},
			},
		}},
		CostModels: []model.CostModel{{ID: 1, Name: "flat", BuyPrice: 0.3, SellPrice: 0.05, Scheme: model.SchemeFixedPrice}},
		Algorithms: []model.Algorithm{
			{ID: 1, Name: "greedy", Tag: model.AlgorithmGreedy},
			{ID: 2, Name: "annealing", Tag: model.AlgorithmSimulatedAnnealing, Params: map[string]any{"max_iterations": 500}},
		},
		EnergyFlows: []catalog.FlowSource{{EnergyFlow: flow}},
	}
}

type recordingSink struct {
	mu     sync.Mutex
	plans  []coremetrics.PlanEvent
	days   []coremetrics.DayEvent
	anneal []coremetrics.AnnealEvent
}

func (r *recordingSink) RecordPlan(ev coremetrics.PlanEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans = append(r.plans, ev)
	return nil
}

func (r *recordingSink) RecordPlanDays(days []coremetrics.DayEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.days = append(r.days, days...)
	return nil
}

func (r *recordingSink) RecordAnneal(ev coremetrics.AnnealEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anneal = append(r.anneal, ev)
	return nil
}

type memStore struct {
	planlog.NopStore
	recs []planlog.RunRecord
}

func (m *memStore) Append(_ context.Context, rec planlog.RunRecord) error {
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memStore) Query(_ context.Context, q planlog.Query) ([]planlog.RunRecord, error) {
	var out []planlog.RunRecord
	for _, r := range m.recs {
		if q.Match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func newService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	cat, err := catalog.NewMemory(testScenario())
	require.NoError(t, err)
	return New(cat, opts...)
}

func selection(algorithm int) Selection {
	return Selection{TwinWorldID: 1, CostModelID: 1, AlgorithmID: algorithm, EnergyFlowID: 1}
}

func TestService_LoadOptions(t *testing.T) {
	opts, err := newService(t).LoadOptions(context.Background())
	require.NoError(t, err)
	require.Len(t, opts.TwinWorlds, 1)
	assert.Empty(t, opts.TwinWorlds[0].Households)
	require.Len(t, opts.Algorithms, 2)
	assert.Equal(t, 1, opts.Algorithms[0].ID)
	require.Len(t, opts.EnergyFlows, 1)
	assert.Empty(t, opts.EnergyFlows[0].Points)
}

func TestService_Start(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	sel, err := svc.Start(ctx, selection(1))
	require.NoError(t, err)
	assert.Equal(t, 10, sel.TotalDays)
	assert.Empty(t, sel.EnergyFlow.Points)
	ids := []int{}
	for _, h := range sel.Households {
		ids = append(ids, h.ID)
	}
	assert.Equal(t, []int{1, 3, 2}, ids)

	for _, bad := range []Selection{
		{TwinWorldID: 9, CostModelID: 1, AlgorithmID: 1, EnergyFlowID: 1},
		{TwinWorldID: 1, CostModelID: 9, AlgorithmID: 1, EnergyFlowID: 1},
		{TwinWorldID: 1, CostModelID: 1, AlgorithmID: 9, EnergyFlowID: 1},
		{TwinWorldID: 1, CostModelID: 1, AlgorithmID: 1, EnergyFlowID: 9},
	} {
		_, err := svc.Start(ctx, bad)
		assert.ErrorIs(t, err, ErrNotFound, "%+v", bad)
	}

	sl := selection(1)
	sl.ChunkOffset = 10
	_, err = svc.Start(ctx, sl)
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "chunk_offset", ve.Field)
}

func TestService_PlanChunks(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Plan(ctx, PlanInput{})
	require.ErrorIs(t, err, ErrNoSession)

	_, err = svc.Start(ctx, selection(1))
	require.NoError(t, err)

	first, err := svc.Plan(ctx, PlanInput{})
	require.NoError(t, err)
	assert.Equal(t, 7, first.DaysInPlanning)
	assert.Equal(t, "2024-06-03", first.StartDate.String())
	assert.Equal(t, "2024-06-09", first.EndDate.String())
	assert.Equal(t, 7, first.NextChunkOffset)
	assert.False(t, first.Done)
	assert.Equal(t, model.AlgorithmGreedy, first.Algorithm)
	require.Len(t, first.Households, 3)
	assert.Len(t, first.Efficiency.Days, 7)
	assert.Len(t, first.Efficiency.Slots, 7*24)
	assert.NotNil(t, first.Unscheduled)

	for _, h := range first.Households {
		if h.ID == 1 {
			assert.Empty(t, h.Runs)
			continue
		}
		require.Len(t, h.Runs, 7)
		for _, run := range h.Runs {
			require.Equal(t, planning.StatusScheduled, run.Status)
			// solar hours are the cheapest
			assert.GreaterOrEqual(t, run.Start.Hour(), 10)
			assert.LessOrEqual(t, run.End.Hour(), 15)
		}
	}

	rest, err := svc.Plan(ctx, PlanInput{ChunkOffset: first.NextChunkOffset})
	require.NoError(t, err)
	assert.Equal(t, 3, rest.DaysInPlanning)
	assert.Equal(t, "2024-06-12", rest.EndDate.String())
	assert.True(t, rest.Done)
	assert.NotEqual(t, first.RunID, rest.RunID)

	_, err = svc.Plan(ctx, PlanInput{ChunkOffset: 10})
	assert.ErrorIs(t, err, model.ErrInvalidTwinWorld)
}

func TestService_PlanIsReproducible(t *testing.T) {
	encode := func(seed *int64) []byte {
		svc := newService(t)
		_, err := svc.Start(context.Background(), selection(2))
		require.NoError(t, err)
		out, err := svc.Plan(context.Background(), PlanInput{Seed: seed})
		require.NoError(t, err)
		b, err := json.Marshal(out)
		require.NoError(t, err)
		return b
	}
	assert.Equal(t, string(encode(nil)), string(encode(nil)))
	seed := int64(7)
	a, b := encode(&seed), encode(&seed)
	assert.Equal(t, string(a), string(b))

	var out PlanOutput
	require.NoError(t, json.Unmarshal(a, &out))
	assert.Equal(t, int64(7), out.Seed)
	assert.Equal(t, model.AlgorithmSimulatedAnnealing, out.Algorithm)
	require.NotNil(t, out.Anneal)
	assert.LessOrEqual(t, out.Cost, out.GreedyCost)
}

func TestService_PlanSimulatedAnnealing(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, err := svc.Start(ctx, selection(1))
	require.NoError(t, err)

	out, err := svc.PlanSimulatedAnnealing(ctx, PlanInput{})
	require.NoError(t, err)
	assert.Equal(t, model.AlgorithmSimulatedAnnealing, out.Algorithm)
	require.NotNil(t, out.Anneal)
	assert.LessOrEqual(t, out.Anneal.Iterations, planning.DefaultAnnealConfig().MaxIterations)

	greedy, err := svc.Plan(ctx, PlanInput{})
	require.NoError(t, err)
	assert.Equal(t, model.AlgorithmGreedy, greedy.Algorithm)
	assert.Nil(t, greedy.Anneal)
}

func TestService_PlanOverrides(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	sc := testScenario()
	world := sc.TwinWorlds[0]
	cm := sc.CostModels[0]

	// everything supplied inline needs no session
	out, err := svc.Plan(ctx, PlanInput{TwinWorld: &world, CostModel: &cm, EnergyFlowID: 1, ChunkDays: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, out.DaysInPlanning)

	only := []model.Household{world.Households[0]}
	out, err = svc.Plan(ctx, PlanInput{TwinWorld: &world, Households: only, CostModel: &cm, EnergyFlowID: 1, ChunkDays: 1})
	require.NoError(t, err)
	require.Len(t, out.Households, 1)
	assert.Equal(t, 2, out.Households[0].ID)

	_, err = svc.Plan(ctx, PlanInput{TwinWorld: &world, CostModel: &cm, EnergyFlowID: 5})
	assert.ErrorIs(t, err, ErrNotFound)

	bad := cm
	bad.SellPrice = -1
	_, err = svc.Plan(ctx, PlanInput{TwinWorld: &world, CostModel: &bad, EnergyFlowID: 1})
	assert.ErrorIs(t, err, model.ErrInvalidCostModel)

	_, err = svc.Plan(ctx, PlanInput{TwinWorld: &world, CostModel: &cm, EnergyFlowID: 1, Priority: "random"})
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
	assert.NotErrorIs(t, err, model.ErrInvalidCostModel)
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "priority", ve.Field)
}

func TestService_StopAndReset(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, err := svc.Start(ctx, selection(1))
	require.NoError(t, err)

	svc.Stop()
	_, err = svc.Plan(ctx, PlanInput{})
	assert.True(t, errors.Is(err, ErrStopped))

	_, err = svc.Start(ctx, selection(1))
	require.NoError(t, err)
	_, err = svc.Plan(ctx, PlanInput{})
	require.NoError(t, err)

	svc.Reset()
	_, err = svc.Plan(ctx, PlanInput{})
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestService_RecordsRuns(t *testing.T) {
	sink := &recordingSink{}
	store := &memStore{}
	bus := eventbus.NewTyped[planning.Progress](eventbus.WithBuffer(4))
	defer bus.Close()
	progress := bus.Subscribe()

	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	svc := newService(t, WithMetrics(sink), WithPlanLog(store), WithProgress(bus), WithClock(func() time.Time { return now }))
	ctx := context.Background()
	_, err := svc.Start(ctx, selection(2))
	require.NoError(t, err)
	out, err := svc.Plan(ctx, PlanInput{})
	require.NoError(t, err)

	require.Len(t, sink.plans, 1)
	ev := sink.plans[0]
	assert.Equal(t, out.RunID, ev.RunID)
	assert.Equal(t, 7, ev.Days)
	assert.Equal(t, 3, ev.Households)
	assert.Equal(t, 14, ev.Scheduled)
	assert.Equal(t, now, ev.Time)
	assert.Len(t, sink.days, 7)
	require.Len(t, sink.anneal, 1)
	assert.Equal(t, out.Seed, sink.anneal[0].Seed)

	require.Len(t, store.recs, 1)
	rec := store.recs[0]
	assert.Equal(t, out.RunID, rec.RunID)
	assert.Equal(t, 2, rec.AlgorithmID)
	assert.Equal(t, out.Cost, rec.Cost)

	runs, err := svc.Runs(ctx, planlog.Query{RunID: out.RunID})
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	first := <-progress
	assert.Equal(t, planning.PhaseGreedy, first.Phase)
	second := <-progress
	assert.Equal(t, planning.PhaseAnnealing, second.Phase)
}
