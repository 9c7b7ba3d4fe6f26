package planning

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/twinplan/core/model"
)

func TestNewStrategy(t *testing.T) {
	s, err := NewStrategy(model.Algorithm{})
	require.NoError(t, err)
	assert.Equal(t, model.AlgorithmGreedy, s.Name())

	s, err = NewStrategy(model.Algorithm{Tag: model.AlgorithmSimulatedAnnealing, Params: map[string]any{
		"max_iterations": float64(300),
		"cooling_rate":   0.9,
	}})
	require.NoError(t, err)
	as, ok := s.(*AnnealingStrategy)
	require.True(t, ok)
	assert.Equal(t, 300, as.Config.MaxIterations)
	assert.Equal(t, 0.9, as.Config.CoolingRate)
	assert.Equal(t, DefaultAnnealConfig().InitialTemperature, as.Config.InitialTemperature)

	_, err = NewStrategy(model.Algorithm{Tag: model.AlgorithmSimulatedAnnealing, Params: map[string]any{"cooling_rate": 2.0}})
	assert.Error(t, err)
	_, err = NewStrategy(model.Algorithm{Tag: "genetic"})
	assert.Error(t, err)
}

func TestEffectiveAlgorithm(t *testing.T) {
	cm := model.CostModel{Algorithm: model.AlgorithmSimulatedAnnealing}
	assert.Equal(t, model.AlgorithmGreedy, EffectiveAlgorithm(model.Algorithm{Tag: model.AlgorithmGreedy}, cm).Tag)
	assert.Equal(t, model.AlgorithmSimulatedAnnealing, EffectiveAlgorithm(model.Algorithm{}, cm).Tag)
	assert.Equal(t, model.AlgorithmGreedy, EffectiveAlgorithm(model.Algorithm{}, model.CostModel{}).Tag)
}

func TestRun_AnnealingKeepsCheaperSchedule(t *testing.T) {
	var phases []string
	out, err := Run(myopic(), &AnnealingStrategy{Config: DefaultAnnealConfig()}, Options{
		Seed:     5,
		Progress: func(p Progress) { phases = append(phases, p.Phase) },
	})
	require.NoError(t, err)
	assert.Equal(t, PhaseAnnealed, out.Phase)
	assert.InDelta(t, 0.35, out.Cost, 1e-9)
	assert.InDelta(t, 0.45, out.GreedyCost, 1e-9)
	require.NotNil(t, out.Greedy)
	assert.InDelta(t, 0.45, out.Greedy.Totals.TotalCost, 1e-9)
	assert.InDelta(t, 0.35, out.Report.Totals.TotalCost, 1e-9)
	require.NotNil(t, out.Anneal)
	assert.Equal(t, []string{PhaseGreedy, PhaseAnnealing}, phases)
}

func TestRun_AnnealingFallsBackToGreedy(t *testing.T) {
	hh := model.Household{ID: 1, Appliances: []model.Appliance{appliance(1, 2, 30, window(1, "08:00", "12:00"))}}
	in := Input{TwinWorld: world(1, hh), CostModel: flatCost(0.2, 0.2), EnergyFlow: flow(1, nil)}
	out, err := Run(in, &AnnealingStrategy{Config: DefaultAnnealConfig()}, Options{Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, PhaseGreedy, out.Phase)
	assert.Nil(t, out.Greedy)
	assert.Equal(t, "08:00", out.Report.Runs[0].Start.Format("15:04"))
}

func TestRun_ByteIdentical(t *testing.T) {
	encode := func() []byte {
		s, err := NewStrategy(model.Algorithm{Tag: model.AlgorithmSimulatedAnnealing})
		require.NoError(t, err)
		out, err := Run(community(), s, Options{Seed: 2024})
		require.NoError(t, err)
		b, err := json.Marshal(out)
		require.NoError(t, err)
		return b
	}
	assert.Equal(t, string(encode()), string(encode()))
}

func TestRun_Errors(t *testing.T) {
	in := community()
	in.CostModel.SellPrice = -1
	_, err := Run(in, GreedyStrategy{}, Options{})
	assert.True(t, errors.Is(err, model.ErrInvalidCostModel))

	_, err = Run(community(), GreedyStrategy{}, Options{Priority: "random"})
	assert.Error(t, err)

	_, err = Run(community(), nil, Options{})
	assert.Error(t, err)
}

func TestPriority_FixedFirst(t *testing.T) {
	order := mustPriority(t, PriorityLongestFirst)
	fixed := JobInfo{HouseholdID: 9, ApplianceID: 9, Fixed: true, Slots: 1}
	long := JobInfo{HouseholdID: 1, ApplianceID: 1, Slots: 8}
	assert.Negative(t, order(fixed, long))
	assert.Positive(t, order(long, fixed))
	assert.Zero(t, order(long, long))
}
