package cpctt

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestEngineSolvesTrivialInstance(t *testing.T) {
	in := mustECTT(t, trivialECTT)
	cfg := DefaultLnsConfig()
	cfg.IterationCap = 3

	engine := NewEngine(in, cfg, nil)
	a, err := engine.Solve(testContext(t))
	require.NoError(t, err)

	assert.True(t, a.Feasible())
	assert.Equal(t, 0, a.Cost)
	assert.Equal(t, []int{0}, a.Roomslot)
	assert.Greater(t, engine.Stats().Solutions, int64(0))
}

func TestEngineSolvesConflictInstance(t *testing.T) {
	in := mustECTT(t, teacherECTT)
	cfg := DefaultLnsConfig()
	cfg.IterationCap = 5

	engine := NewEngine(in, cfg, nil)
	a, err := engine.Solve(testContext(t))
	require.NoError(t, err)

	assert.True(t, a.Feasible())
	assert.Equal(t, 0, a.Cost)
	assert.NotEqual(t, a.PeriodOf(0), a.PeriodOf(1))
}

func TestEngineDeterministicUnderFixedSeed(t *testing.T) {
	in := mustECTT(t, playgroundECTT)
	cfg := DefaultLnsConfig()
	cfg.Seed = 7
	cfg.IterationCap = 4
	cfg.MsPerVariable = 1000 // generous inner budgets so searches always complete

	run := func() *Assignment {
		engine := NewEngine(in, cfg, nil)
		a, err := engine.Solve(testContext(t))
		require.NoError(t, err)
		return a
	}

	a1, a2 := run(), run()
	assert.Equal(t, a1.Roomslot, a2.Roomslot)
	assert.Equal(t, a1.Cost, a2.Cost)
}

func TestEngineBestIsMonotone(t *testing.T) {
	in := mustECTT(t, playgroundECTT)
	cfg := DefaultLnsConfig()
	cfg.MsPerVariable = 1000

	engine := NewEngine(in, cfg, nil)
	ctx := testContext(t)
	require.NotEqual(t, StatusFailed, engine.root.S.Status())
	require.NoError(t, engine.initialSolution(ctx))
	engine.temperature = cfg.Temperature
	engine.intensity = cfg.InitFreeVariables

	previous := engine.key(engine.best)
	for i := 0; i < 8; i++ {
		engine.iterate(ctx)
		current := engine.key(engine.best)
		assert.False(t, previous.improves(current),
			"the incumbent best must never get worse")
		previous = current
	}
}

func TestEngineCoolingSchedule(t *testing.T) {
	in := mustECTT(t, trivialECTT)
	cfg := DefaultLnsConfig()
	cfg.Temperature = 10
	cfg.CoolingRate = 0.5
	cfg.MinTemperature = 2
	cfg.NeighborsAccepted = 1
	cfg.IterationCap = 20

	engine := NewEngine(in, cfg, nil)
	_, err := engine.Solve(testContext(t))
	require.NoError(t, err)

	assert.Less(t, engine.temperature, cfg.Temperature, "acceptances must cool the engine")
	assert.GreaterOrEqual(t, engine.temperature, cfg.MinTemperature,
		"temperature must never fall below the floor")
}

func TestEngineIntensityIncreasesOnStagnation(t *testing.T) {
	in := mustECTT(t, playgroundECTT)
	cfg := DefaultLnsConfig()
	cfg.MaxFreeVariables = 0.75 // intensity ceiling of 3 on four lectures
	cfg.MsPerVariable = 1000

	engine := NewEngine(in, cfg, nil)
	ctx := testContext(t)

	// install the optimum so no iteration can improve the best
	solved, _ := solveOptimal(t, in)
	require.NotEqual(t, StatusFailed, engine.root.S.Status())
	engine.best = NewLnsSpace(solved)
	engine.current = engine.best
	engine.temperature = cfg.Temperature
	engine.intensity = cfg.InitFreeVariables

	engine.idle = cfg.MaxIdleIterations // one more idle iteration trips the schedule
	engine.iterate(ctx)

	assert.Equal(t, cfg.InitFreeVariables+1, engine.intensity)
	assert.Zero(t, engine.idle)
}

func TestEnginePerturbsAtMaxIntensity(t *testing.T) {
	in := mustECTT(t, playgroundECTT)
	cfg := DefaultLnsConfig()
	cfg.MaxFreeVariables = 0.75
	cfg.MsPerVariable = 1000

	engine := NewEngine(in, cfg, nil)
	ctx := testContext(t)

	solved, _ := solveOptimal(t, in)
	require.NotEqual(t, StatusFailed, engine.root.S.Status())
	engine.best = NewLnsSpace(solved)
	engine.current = engine.best
	engine.temperature = cfg.Temperature
	engine.intensity = engine.maxIntensity()

	engine.idle = cfg.MaxIdleIterations
	engine.iterate(ctx)

	assert.Equal(t, cfg.InitFreeVariables, engine.intensity,
		"perturbation must reset the intensity")
	assert.Zero(t, engine.idle)
	assert.NotNil(t, engine.current)
}

func TestEngineRootFailure(t *testing.T) {
	// three ordered lectures cannot fit the two available periods; the
	// ordering chain wipes the root before any search starts
	in, err := ParseECTT(strings.NewReader(infeasibleECTT))
	require.NoError(t, err)

	engine := NewEngine(in, DefaultLnsConfig(), nil)
	_, err = engine.Solve(testContext(t))
	assert.ErrorIs(t, err, ErrRootFailed)
}

func TestEngineSADeltaIsNonNegative(t *testing.T) {
	in := mustECTT(t, trivialECTT)
	cfg := DefaultLnsConfig()
	engine := NewEngine(in, cfg, nil)
	engine.temperature = cfg.Temperature

	for i := 0; i < 100; i++ {
		assert.GreaterOrEqual(t, engine.saDelta(), 0)
	}

	// sampled p when the configured probability is unset
	engine.cfg.DeltaProbability = 0
	for i := 0; i < 100; i++ {
		assert.GreaterOrEqual(t, engine.saDelta(), 0)
	}
}

func TestEngineMaxIntensityRespectsFloor(t *testing.T) {
	in := mustECTT(t, trivialECTT)
	cfg := DefaultLnsConfig()
	cfg.InitFreeVariables = 5
	cfg.MaxFreeVariables = 0.15 // ceiling below the starting intensity

	engine := NewEngine(in, cfg, nil)
	assert.Equal(t, 5, engine.maxIntensity())
}
