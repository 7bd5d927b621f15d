// Package tabula trains a policy-value network for two-player zero-sum board
// games purely by self-play, AlphaZero style: the current network plays
// batches of games against itself with tree search sharpening every move,
// the finished games are compiled into (position, search policy, outcome)
// examples, and one epoch of gradient descent fits the network to them. The
// improved network seeds the next iteration.
package tabula

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/mkr-ml/tabula/game"
	"github.com/mkr-ml/tabula/internal/rng"
	"github.com/mkr-ml/tabula/mcts"
	"github.com/mkr-ml/tabula/optim"
	"github.com/mkr-ml/tabula/pvnet"
)

// Config configures a training run.
type Config struct {
	Name       string
	NetConf    pvnet.Config
	SearchConf mcts.Config

	// BatchSize is both the number of games advanced in lockstep during
	// self-play and the training mini-batch size; it must divide DataSize.
	BatchSize int

	// DataSize is the number of games collected per iteration.
	DataSize int

	Iterations  int
	LearnRate   float64
	Momentum    float64
	WeightDecay float64

	// Seed is the master seed; every random decision in the run derives
	// from it.
	Seed uint64
}

func (conf Config) IsValid() bool {
	return conf.BatchSize >= 1 &&
		conf.DataSize >= conf.BatchSize &&
		conf.DataSize%conf.BatchSize == 0 &&
		conf.Iterations >= 1 &&
		conf.LearnRate > 0 &&
		conf.Momentum >= 0 && conf.Momentum < 1 &&
		conf.WeightDecay >= 0
}

// AZ is the top level structure: the network, its optimizer, the search
// oracle, and the self-play/train loop that ties them together.
type AZ struct {
	Config
	Statistics

	g      game.Game
	NN     *pvnet.Net
	oracle SearchOracle
	solver G.Solver

	// iteration-scoped inference snapshots; live only during self-play
	inf  BatchInferer
	pool *inferPool
}

// New builds an AZ for a game. It panics on invalid configuration: there is
// no sensible way to proceed, and the failure is a programming error at the
// call site.
func New(g game.Game, conf Config) *AZ {
	if !conf.IsValid() {
		panic("tabula: config is not valid")
	}
	if !conf.NetConf.IsValid() {
		panic("tabula: network config is not valid")
	}
	if !conf.SearchConf.IsValid() {
		panic("tabula: search config is not valid")
	}
	if conf.NetConf.ObservationLen != g.ObservationLen() || conf.NetConf.ActionSpace != g.ActionSpace() {
		panic(fmt.Sprintf("tabula: network sized for (%d, %d), game %q needs (%d, %d)",
			conf.NetConf.ObservationLen, conf.NetConf.ActionSpace, g.Name(), g.ObservationLen(), g.ActionSpace()))
	}

	nn := pvnet.New(conf.NetConf)
	if err := nn.Init(); err != nil {
		panic(fmt.Sprintf("%+v", err))
	}

	return &AZ{
		Config:     conf,
		Statistics: makeStatistics(),
		g:          g,
		NN:         nn,
		oracle:     mcts.New(conf.SearchConf),
		solver:     optim.SGD(conf.LearnRate, conf.Momentum, conf.WeightDecay),
	}
}

// Learn runs the configured number of iterations: collect a self-play
// corpus with frozen weights, compile it into examples, train one epoch.
// Iterations are strictly sequential; each one plays with the weights the
// previous one produced.
func (a *AZ) Learn() error {
	for iter := 0; iter < a.Iterations; iter++ {
		iterSeed := rng.Split(a.Seed, uint64(iter))

		if err := a.setupSelfPlay(); err != nil {
			return errors.WithMessagef(err, "iteration %d: snapshot", iter)
		}
		trajectories, err := a.collectSelfPlay(rng.Split(iterSeed, 0))
		a.teardownSelfPlay()
		if err != nil {
			return errors.WithMessagef(err, "iteration %d: self-play", iter)
		}

		examples := compile(trajectories)
		log.Info().
			Str("run", a.Name).
			Str("game", a.g.Name()).
			Int("iteration", iter).
			Int("games", len(trajectories)).
			Int("examples", len(examples)).
			Msg("self-play done")

		valueLoss, policyLoss, err := a.trainEpoch(examples, rng.New(rng.Split(iterSeed, 1)))
		if err != nil {
			return errors.WithMessagef(err, "iteration %d: train", iter)
		}
		a.Statistics.record(valueLoss, policyLoss)
		log.Info().
			Str("run", a.Name).
			Int("iteration", iter).
			Float32("value_loss", valueLoss).
			Float32("policy_loss", policyLoss).
			Msg("train done")
	}
	return nil
}

// setupSelfPlay freezes the current weights into the inference snapshots the
// drivers use: one batched inferencer for root evaluations, and a pool of
// single-position inferencers for search leaves.
func (a *AZ) setupSelfPlay() error {
	inf, err := pvnet.Infer(a.NN, a.BatchSize)
	if err != nil {
		return err
	}
	pool, err := newInferPool(a.NN, numCPU)
	if err != nil {
		inf.Close()
		return err
	}
	a.inf = inf
	a.pool = pool
	return nil
}

func (a *AZ) teardownSelfPlay() {
	if a.inf != nil {
		a.inf.Close()
		a.inf = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

// Save writes the checkpoint: a gob-encoded map of parameter names to
// tensors, written once at the end of a run.
func (a *AZ) Save(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	enc := gob.NewEncoder(f)
	return errors.WithStack(enc.Encode(a.NN.Params()))
}

// Load restores a checkpoint written by Save into the current network. The
// network must have been built with the same configuration.
func (a *AZ) Load(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	var params map[string]*tensor.Dense
	dec := gob.NewDecoder(f)
	if err := dec.Decode(&params); err != nil {
		return errors.WithStack(err)
	}

	for _, node := range a.NN.Model() {
		p, ok := params[node.Name()]
		if !ok {
			return errors.Errorf("tabula: checkpoint is missing parameter %q", node.Name())
		}
		if err := G.Let(node, p); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}
