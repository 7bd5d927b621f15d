package tabula

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkr-ml/tabula/game"
	"github.com/mkr-ml/tabula/game/connecttwo"
	"github.com/mkr-ml/tabula/internal/rng"
	"github.com/mkr-ml/tabula/mcts"
)

// stubInferer returns zero logits and values; it stands in for the network
// so driver tests stay independent of gorgonia.
type stubInferer struct {
	actions int
}

func (s stubInferer) Infer(obs [][]float32) ([][]float32, []float32, error) {
	logits := make([][]float32, len(obs))
	for i := range logits {
		logits[i] = make([]float32, s.actions)
	}
	return logits, make([]float32, len(obs)), nil
}

func (s stubInferer) Close() error { return nil }

// stubOracle plays a seeded random legal move with uniform weights over
// legal actions. Deterministic given the seed, like the real searcher.
type stubOracle struct{}

func (stubOracle) Search(inf mcts.Inferer, seed uint64, roots []game.State, rootLogits [][]float32, rootValues []float32) ([][]float32, []int, error) {
	weights := make([][]float32, len(roots))
	actions := make([]int, len(roots))
	for i, root := range roots {
		legal := root.LegalMask()
		w := make([]float32, len(legal))
		var candidates []int
		for a, ok := range legal {
			if ok {
				candidates = append(candidates, a)
			}
		}
		if len(candidates) > 0 {
			for _, a := range candidates {
				w[a] = 1 / float32(len(candidates))
			}
			r := rng.New(rng.Split(seed, uint64(i)))
			actions[i] = candidates[r.Intn(len(candidates))]
		}
		weights[i] = w
	}
	return weights, actions, nil
}

func newTestAZ(batchSize, dataSize int) *AZ {
	g := connecttwo.New()
	return &AZ{
		Config: Config{
			BatchSize: batchSize,
			DataSize:  dataSize,
		},
		g:      g,
		oracle: stubOracle{},
		inf:    stubInferer{actions: g.ActionSpace()},
	}
}

func TestCollectBatchedLockstep(t *testing.T) {
	a := newTestAZ(8, 8)
	trajectories, err := a.collectSelfPlay(1)
	require.NoError(t, err)
	require.Len(t, trajectories, 8)

	for _, trajectory := range trajectories {
		// every game is padded to exactly MaxPlies records
		require.Len(t, trajectory, a.g.MaxPlies())

		// once a game terminates it stays terminated
		sawTerminated := false
		for _, rec := range trajectory {
			if sawTerminated {
				assert.True(t, rec.Terminated)
			}
			sawTerminated = sawTerminated || rec.Terminated
		}
	}
}

func TestCollectSelfPlayDeterminism(t *testing.T) {
	a := newTestAZ(4, 16)
	b := newTestAZ(4, 16)

	ta, err := a.collectSelfPlay(99)
	require.NoError(t, err)
	tb, err := b.collectSelfPlay(99)
	require.NoError(t, err)

	if diff := cmp.Diff(ta, tb); diff != "" {
		t.Errorf("same seed produced different trajectories (-a +b):\n%s", diff)
	}

	tc, err := newTestAZ(4, 16).collectSelfPlay(100)
	require.NoError(t, err)
	assert.False(t, cmp.Equal(ta, tc), "different seeds should produce different trajectories")
}

func TestCollectSelfPlayBatchPrefix(t *testing.T) {
	// sub-batch k depends only on (seed, k): collecting more data extends
	// the corpus without changing the games already in it
	small, err := newTestAZ(4, 4).collectSelfPlay(7)
	require.NoError(t, err)
	large, err := newTestAZ(4, 12).collectSelfPlay(7)
	require.NoError(t, err)

	if diff := cmp.Diff(small, large[:4]); diff != "" {
		t.Errorf("first sub-batch changed when more data was collected (-small +large):\n%s", diff)
	}
}

func TestCollectedWeightsAreDistributions(t *testing.T) {
	a := newTestAZ(8, 16)
	trajectories, err := a.collectSelfPlay(3)
	require.NoError(t, err)

	examples := compile(trajectories)
	require.NotEmpty(t, examples)
	for _, ex := range examples {
		var sum float32
		for _, p := range ex.Policy {
			assert.GreaterOrEqual(t, p, float32(0))
			sum += p
		}
		assert.InDelta(t, 1, sum, 1e-5)
	}
}

func TestPaddingNeverBecomesExamples(t *testing.T) {
	a := newTestAZ(16, 16)
	trajectories, err := a.collectSelfPlay(5)
	require.NoError(t, err)

	var live int
	for _, trajectory := range trajectories {
		for _, rec := range trajectory {
			if !rec.Terminated {
				live++
			}
		}
	}
	examples := compile(trajectories)
	assert.Len(t, examples, live)
}

func TestCheckDistribution(t *testing.T) {
	legal := []bool{true, true, false}

	assert.NotPanics(t, func() { checkDistribution([]float32{0.5, 0.5, 0}, legal) })
	assert.Panics(t, func() { checkDistribution([]float32{0.5, 0.2, 0}, legal) }, "does not sum to 1")
	assert.Panics(t, func() { checkDistribution([]float32{0.5, 0.2, 0.3}, legal) }, "mass on illegal action")
	assert.Panics(t, func() { checkDistribution([]float32{float32(0), -0.5, 0}, legal) }, "negative entry")
}
