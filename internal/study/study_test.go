package study

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/GoSim-25-26J-441/hpo-core/pkg/distribution"
	"github.com/GoSim-25-26J-441/hpo-core/internal/sampler"
	"github.com/GoSim-25-26J-441/hpo-core/internal/storage"
	"github.com/GoSim-25-26J-441/hpo-core/pkg/utils"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStudy(seed int64) *Study {
	return New("test", storage.NewInMemoryStorage(), sampler.NewIndependentSampler(utils.NewRandSource(seed))).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func quadratic(ctx context.Context, t *Trial) (float64, error) {
	x, err := t.SuggestInt("x", 0, 10)
	if err != nil {
		return 0, err
	}
	y, err := t.SuggestInt("y", 0, 10)
	if err != nil {
		return 0, err
	}
	return math.Pow(float64(x)-3, 2) + math.Pow(float64(y)-5, 2), nil
}

func TestOptimizeQuadraticRecordsConsistentValues(t *testing.T) {
	s := newTestStudy(1)
	require.NoError(t, s.Optimize(context.Background(), quadratic, 10))

	trials := s.Trials()
	require.Len(t, trials, 10)
	for i, tr := range trials {
		assert.Equal(t, i, tr.ID)
		require.Equal(t, storage.StateCompleted, tr.State)

		params, err := tr.ExternalParams()
		require.NoError(t, err)
		x, ok := params["x"].Int()
		require.True(t, ok)
		y, ok := params["y"].Int()
		require.True(t, ok)
		assert.GreaterOrEqual(t, x, int64(0))
		assert.LessOrEqual(t, x, int64(10))
		want := math.Pow(float64(x)-3, 2) + math.Pow(float64(y)-5, 2)
		assert.Equal(t, want, tr.Value)
	}

	best, ok := s.BestTrial()
	require.True(t, ok)
	for _, tr := range trials {
		assert.LessOrEqual(t, best.Value, tr.Value)
	}
}

func TestOptimizeQuadraticFindsOptimum(t *testing.T) {
	s := newTestStudy(42)
	require.NoError(t, s.Optimize(context.Background(), quadratic, 2000))

	value, err := s.BestValue()
	require.NoError(t, err)
	assert.Equal(t, 0.0, value)

	params, err := s.BestParams()
	require.NoError(t, err)
	want := map[string]any{"x": int64(3), "y": int64(5)}
	if diff := cmp.Diff(want, ParamsToMap(params)); diff != "" {
		t.Fatalf("best params mismatch (-want +got):\n%s", diff)
	}
}

func TestOptimizeSameSeedIsReproducible(t *testing.T) {
	a := newTestStudy(7)
	b := newTestStudy(7)
	require.NoError(t, a.Optimize(context.Background(), quadratic, 25))
	require.NoError(t, b.Optimize(context.Background(), quadratic, 25))

	for i, tr := range a.Trials() {
		other := b.Trials()[i]
		assert.Equal(t, tr.Params, other.Params)
		assert.Equal(t, tr.Value, other.Value)
	}
}

func TestSuggestAllKinds(t *testing.T) {
	s := newTestStudy(3)
	objective := func(ctx context.Context, tr *Trial) (float64, error) {
		n, err := tr.SuggestInt("n", -5, 5)
		if err != nil {
			return 0, err
		}
		f, err := tr.SuggestFloat("f", 0, 1)
		if err != nil {
			return 0, err
		}
		lr, err := tr.SuggestLogFloat("lr", 1e-5, 1e-1)
		if err != nil {
			return 0, err
		}
		opt, err := tr.SuggestCategorical("opt", []string{"sgd", "adam", "rmsprop"})
		if err != nil {
			return 0, err
		}

		// the handle reads back through storage
		params, err := tr.Params()
		if err != nil {
			return 0, err
		}
		gotN, _ := params["n"].Int()
		gotF, _ := params["f"].Float()
		gotLR, _ := params["lr"].Float()
		gotOpt, _ := params["opt"].Str()
		if gotN != n || gotF != f || gotLR != lr || gotOpt != opt {
			return 0, errors.New("stored params differ from suggested values")
		}
		return f, nil
	}
	require.NoError(t, s.Optimize(context.Background(), objective, 20))
	assert.Len(t, s.Trials(storage.StateCompleted), 20)

	tr := s.Trials()[0]
	assert.True(t, tr.Distributions["n"].Equal(distribution.IntUniform{Low: -5, High: 5}))
	assert.True(t, tr.Distributions["lr"].Equal(distribution.LogUniform{Low: 1e-5, High: 1e-1}))
	assert.True(t, tr.Distributions["opt"].Equal(distribution.NewCategorical([]string{"sgd", "adam", "rmsprop"})))
}

func TestSuggestSameNameLastWins(t *testing.T) {
	s := newTestStudy(5)
	var second int64
	objective := func(ctx context.Context, tr *Trial) (float64, error) {
		if _, err := tr.SuggestInt("x", 0, 100); err != nil {
			return 0, err
		}
		v, err := tr.SuggestInt("x", 200, 300)
		second = v
		return 0, err
	}
	require.NoError(t, s.Optimize(context.Background(), objective, 1))

	tr := s.Trials()[0]
	require.Len(t, tr.Params, 1)
	assert.Equal(t, float64(second), tr.Params["x"])
	assert.True(t, tr.Distributions["x"].Equal(distribution.IntUniform{Low: 200, High: 300}))
}

func TestSuggestOnFinishedTrial(t *testing.T) {
	s := newTestStudy(9)
	var kept *Trial
	require.NoError(t, s.Optimize(context.Background(), func(ctx context.Context, tr *Trial) (float64, error) {
		kept = tr
		return 1, nil
	}, 1))

	_, err := kept.SuggestInt("x", 0, 10)
	assert.ErrorIs(t, err, storage.ErrAlreadyFinished)
	_, err = kept.SuggestCategorical("c", []string{"a"})
	assert.ErrorIs(t, err, storage.ErrAlreadyFinished)

	tr := s.Trials()[0]
	assert.Empty(t, tr.Params)
}

func TestObjectiveErrorFailsTrialAndContinues(t *testing.T) {
	s := newTestStudy(11)
	calls := 0
	objective := func(ctx context.Context, tr *Trial) (float64, error) {
		calls++
		if _, err := tr.SuggestFloat("x", 0, 1); err != nil {
			return 0, err
		}
		if tr.ID()%2 == 1 {
			return 0, errors.New("diverged")
		}
		return float64(tr.ID()), nil
	}
	require.NoError(t, s.Optimize(context.Background(), objective, 6))
	assert.Equal(t, 6, calls)

	failed := s.Trials(storage.StateFailed)
	require.Len(t, failed, 3)
	for _, tr := range failed {
		assert.True(t, math.IsNaN(tr.Value))
		assert.Equal(t, "diverged", tr.FailReason)
		assert.Contains(t, tr.Params, "x")
	}

	best, ok := s.BestTrial()
	require.True(t, ok)
	assert.Equal(t, 0, best.ID)
}

func TestObjectivePanicFailsTrial(t *testing.T) {
	s := newTestStudy(13)
	require.NoError(t, s.Optimize(context.Background(), func(ctx context.Context, tr *Trial) (float64, error) {
		panic("boom")
	}, 2))

	failed := s.Trials(storage.StateFailed)
	require.Len(t, failed, 2)
	assert.Contains(t, failed[0].FailReason, "boom")

	_, err := s.BestValue()
	assert.ErrorIs(t, err, ErrNoCompletedTrials)
	_, err = s.BestParams()
	assert.ErrorIs(t, err, ErrNoCompletedTrials)
}

func TestConfigurationErrorStopsLoop(t *testing.T) {
	s := newTestStudy(17)
	calls := 0
	err := s.Optimize(context.Background(), func(ctx context.Context, tr *Trial) (float64, error) {
		calls++
		_, err := tr.SuggestLogFloat("lr", 0, 1)
		return 0, err
	}, 5)

	require.ErrorIs(t, err, distribution.ErrConfiguration)
	assert.Equal(t, 1, calls)
	trials := s.Trials()
	require.Len(t, trials, 1)
	assert.Equal(t, storage.StateFailed, trials[0].State)
	assert.Empty(t, trials[0].Params, "a rejected distribution must not be recorded")
	assert.Equal(t, "configuration error", s.StopReason())
}

func TestOptimizeCancelledContext(t *testing.T) {
	s := newTestStudy(19)
	ctx, cancel := context.WithCancel(context.Background())

	err := s.Optimize(ctx, func(ctx context.Context, tr *Trial) (float64, error) {
		if tr.ID() == 2 {
			cancel()
			return 0, ctx.Err()
		}
		return 1, nil
	}, 10)

	require.ErrorIs(t, err, context.Canceled)
	trials := s.Trials()
	require.Len(t, trials, 3)
	assert.Equal(t, storage.StateCompleted, trials[1].State)
	assert.Equal(t, storage.StateFailed, trials[2].State)
	assert.Equal(t, "cancelled", s.StopReason())
}

func TestOptimizeAlreadyCancelled(t *testing.T) {
	s := newTestStudy(23)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Optimize(ctx, quadratic, 5)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.Trials())
}

func TestOptimizeNilObjective(t *testing.T) {
	s := newTestStudy(29)
	assert.Error(t, s.Optimize(context.Background(), nil, 1))
}

func TestCallbacksSeeFinishedTrials(t *testing.T) {
	s := newTestStudy(31)
	var seen []storage.FrozenTrial
	s.WithCallback(func(st *Study, tr storage.FrozenTrial) {
		assert.Same(t, s, st)
		seen = append(seen, tr)
	})

	require.NoError(t, s.Optimize(context.Background(), func(ctx context.Context, tr *Trial) (float64, error) {
		if tr.ID() == 1 {
			return 0, errors.New("bad")
		}
		return quadratic(ctx, tr)
	}, 3))

	require.Len(t, seen, 3)
	assert.Equal(t, storage.StateCompleted, seen[0].State)
	assert.Equal(t, storage.StateFailed, seen[1].State)
	assert.Equal(t, storage.StateCompleted, seen[2].State)
}

func TestConvergenceStopsEarly(t *testing.T) {
	s := newTestStudy(37).WithConvergence(&TargetStrategy{Target: 0})
	require.NoError(t, s.Optimize(context.Background(), quadratic, 5000))

	value, err := s.BestValue()
	require.NoError(t, err)
	assert.Equal(t, 0.0, value)
	assert.Less(t, len(s.Trials()), 5000)
	assert.Contains(t, s.StopReason(), "reached target")
}

func TestSummary(t *testing.T) {
	s := newTestStudy(41)
	values := []float64{4, 1, math.NaN(), 7}
	require.NoError(t, s.Optimize(context.Background(), func(ctx context.Context, tr *Trial) (float64, error) {
		if tr.ID() == 4 {
			return 0, errors.New("fail")
		}
		return values[tr.ID()], nil
	}, 5))
	s.Storage().CreateTrial()

	sum := s.Summary()
	assert.Equal(t, "test", sum.Name)
	assert.Equal(t, 6, sum.Trials)
	assert.Equal(t, 4, sum.Completed)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Running)
	require.True(t, sum.HasBest)
	assert.Equal(t, 1, sum.BestTrialID)
	assert.Equal(t, 1.0, sum.BestValue)
	assert.InDelta(t, 4.0, sum.Mean, 1e-12)
	assert.InDelta(t, 3.0, sum.StdDev, 1e-12)
	assert.Equal(t, 4.0, sum.Median)
	assert.Equal(t, 1.0, sum.Min)
	assert.Equal(t, 7.0, sum.Max)
}

func TestSummaryEmpty(t *testing.T) {
	sum := newTestStudy(43).Summary()
	assert.Zero(t, sum.Trials)
	assert.False(t, sum.HasBest)
}
