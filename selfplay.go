package tabula

import (
	"runtime"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mkr-ml/tabula/game"
	"github.com/mkr-ml/tabula/internal/rng"
	"github.com/mkr-ml/tabula/pvnet"
)

var numCPU = runtime.NumCPU()

// distributionTolerance is how far a search policy may drift from summing
// to 1 before it is treated as a contract violation.
const distributionTolerance = 1e-3

// collectSelfPlay gathers a corpus of DataSize games by running
// DataSize/BatchSize lockstep batches, each under its own child seed. The
// sub-batches are independent: batch k of a master seed plays the same games
// regardless of how many batches are collected around it.
func (a *AZ) collectSelfPlay(seed uint64) ([]Trajectory, error) {
	n := a.DataSize / a.BatchSize
	trajectories := make([]Trajectory, 0, a.DataSize)
	for k := 0; k < n; k++ {
		batch, err := a.collectBatched(rng.Split(seed, uint64(k)), a.BatchSize)
		if err != nil {
			return nil, errors.WithMessagef(err, "self-play batch %d", k)
		}
		trajectories = append(trajectories, batch...)
		log.Debug().Int("batch", k).Int("of", n).Msg("self-play batch done")
	}
	return trajectories, nil
}

// collectBatched plays batchSize games in lockstep for exactly MaxPlies
// plies. Every ply makes one batched network call and one oracle call for
// the whole batch; the environment transitions run on separate goroutines
// since no game depends on another. Games that end early keep stepping as
// no-ops and keep emitting Terminated padding records, which is what keeps
// the batch rectangular.
func (a *AZ) collectBatched(seed uint64, batchSize int) ([]Trajectory, error) {
	plies := a.g.MaxPlies()
	states := game.Replicate(a.g.Reset(), batchSize)

	trajectories := make([]Trajectory, batchSize)
	for i := range trajectories {
		trajectories[i] = make(Trajectory, 0, plies)
	}

	obs := make([][]float32, batchSize)
	terminated := make([]bool, batchSize)
	rewards := make([]float32, batchSize)

	for ply := 0; ply < plies; ply++ {
		plySeed := rng.Split(seed, uint64(ply))

		for i, s := range states {
			o := s.Observation()
			if len(o) != a.g.ObservationLen() {
				panic(errors.Errorf("selfplay: game %q produced an observation of length %d, want %d",
					a.g.Name(), len(o), a.g.ObservationLen()))
			}
			obs[i] = o
			terminated[i] = s.Terminated()
		}

		logits, values, err := a.inf.Infer(obs)
		if err != nil {
			return nil, errors.WithMessage(err, "batched inference")
		}

		weights, actions, err := a.oracle.Search(a.pool, plySeed, states, logits, values)
		if err != nil {
			return nil, errors.WithMessage(err, "search")
		}
		for i := range states {
			if !terminated[i] {
				checkDistribution(weights[i], states[i].LegalMask())
			}
		}

		var grp errgroup.Group
		grp.SetLimit(numCPU)
		for i := range states {
			i := i
			grp.Go(func() error {
				next, reward := states[i].Move(actions[i])
				states[i] = next
				rewards[i] = reward
				return nil
			})
		}
		if err := grp.Wait(); err != nil {
			return nil, errors.WithMessage(err, "environment step")
		}

		for i := range states {
			trajectories[i] = append(trajectories[i], MoveRecord{
				Observation:   obs[i],
				ActionWeights: weights[i],
				Reward:        rewards[i],
				Terminated:    terminated[i],
			})
		}
	}
	return trajectories, nil
}

// checkDistribution panics unless w is a finite probability distribution
// with zero mass on illegal actions. The compiler and the loss silently
// assume well-formed policies, so a malformed one must not travel further.
func checkDistribution(w []float32, legal []bool) {
	var sum float32
	for a, p := range w {
		if math32.IsNaN(p) || math32.IsInf(p, 0) || p < 0 {
			panic(errors.Errorf("selfplay: search policy has entry %v at action %d", p, a))
		}
		if !legal[a] && p != 0 {
			panic(errors.Errorf("selfplay: search policy has mass %v on illegal action %d", p, a))
		}
		sum += p
	}
	if math32.Abs(sum-1) > distributionTolerance {
		panic(errors.Errorf("selfplay: search policy sums to %v", sum))
	}
}

// inferPool is a goroutine-safe pool of single-position inferencers sharing
// one weight snapshot; the search oracle draws from it at leaf evaluations.
type inferPool struct {
	ch   chan *pvnet.Inferencer
	infs []*pvnet.Inferencer
}

func newInferPool(nn *pvnet.Net, n int) (*inferPool, error) {
	p := &inferPool{ch: make(chan *pvnet.Inferencer, n)}
	for i := 0; i < n; i++ {
		inf, err := pvnet.Infer(nn, 1)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.infs = append(p.infs, inf)
		p.ch <- inf
	}
	return p, nil
}

// Infer implements mcts.Inferer.
func (p *inferPool) Infer(obs []float32) ([]float32, float32, error) {
	inf := <-p.ch
	logits, values, err := inf.Infer([][]float32{obs})
	p.ch <- inf
	if err != nil {
		return nil, 0, err
	}
	return logits[0], values[0], nil
}

func (p *inferPool) Close() error {
	var firstErr error
	for _, inf := range p.infs {
		if err := inf.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
