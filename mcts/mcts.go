// Package mcts is the search oracle: PUCT Monte-Carlo tree search guided by
// a policy-value network. Given a batch of root positions and the network's
// raw output at those roots, Search returns an improved action distribution
// (normalized visit counts) and a sampled action per root.
//
// A search is deterministic given its seed: each root gets its own tree and
// its own rng derived from (seed, root index), so the batch can be searched
// concurrently without affecting the result.
package mcts

import (
	"math/rand"
	"runtime"

	"github.com/chewxy/math32"
	"golang.org/x/sync/errgroup"

	"github.com/mkr-ml/tabula/game"
	"github.com/mkr-ml/tabula/internal/rng"
)

// Inferer is the neural network as seen by the search: single-position
// inference at a leaf.
type Inferer interface {
	Infer(obs []float32) (logits []float32, value float32, err error)
}

// Config configures a search.
type Config struct {
	// Simulations is the tree budget per root position.
	Simulations int

	// PUCT weighs the exploration term in action selection.
	PUCT float64

	// Temperature shapes the sampling of the final action from the visit
	// distribution. 0 means play the most visited action.
	Temperature float64
}

func DefaultConfig() Config {
	return Config{
		Simulations: 16,
		PUCT:        1.0,
		Temperature: 1.0,
	}
}

func (conf Config) IsValid() bool {
	return conf.Simulations >= 1 && conf.PUCT > 0 && conf.Temperature >= 0
}

// Searcher runs PUCT searches. It is stateless between calls and safe for
// concurrent use.
type Searcher struct {
	conf Config
}

func New(conf Config) *Searcher {
	return &Searcher{conf: conf}
}

// Search searches every root for conf.Simulations simulations and returns,
// per root, the visit-count distribution over actions and an action sampled
// from it. rootLogits and rootValues are the network's raw output at the
// roots; the logits seed the root priors (values are regenerated by the
// backups and accepted only for interface symmetry).
//
// Terminated roots are not searched: they get a uniform distribution over
// whatever is still legal (all zero when nothing is), and the first legal
// action. Such roots only occur as padding in lockstep self-play and their
// records never become training data.
func (s *Searcher) Search(inf Inferer, seed uint64, roots []game.State, rootLogits [][]float32, rootValues []float32) (weights [][]float32, actions []int, err error) {
	weights = make([][]float32, len(roots))
	actions = make([]int, len(roots))

	var grp errgroup.Group
	grp.SetLimit(runtime.NumCPU())
	for i := range roots {
		i := i
		grp.Go(func() error {
			w, a, err := s.searchOne(inf, rng.Split(seed, uint64(i)), roots[i], rootLogits[i])
			weights[i] = w
			actions[i] = a
			return err
		})
	}
	if err = grp.Wait(); err != nil {
		return nil, nil, err
	}
	return weights, actions, nil
}

func (s *Searcher) searchOne(inf Inferer, seed uint64, root game.State, rootLogits []float32) ([]float32, int, error) {
	legal := root.LegalMask()
	if root.Terminated() {
		w := make([]float32, len(rootLogits))
		action := 0
		var count int
		for _, ok := range legal {
			if ok {
				count++
			}
		}
		if count > 0 {
			for a, ok := range legal {
				if ok {
					w[a] = 1 / float32(count)
				}
			}
			for a, ok := range legal {
				if ok {
					action = a
					break
				}
			}
		}
		return w, action, nil
	}

	tree := newNode(root)
	tree.expand(rootLogits, legal)
	for i := 0; i < s.conf.Simulations; i++ {
		if _, err := s.simulate(inf, tree); err != nil {
			return nil, 0, err
		}
	}

	w := tree.visitWeights()
	action := sampleAction(rng.New(seed), w, legal, s.conf.Temperature)
	return w, action, nil
}

// simulate runs one simulation from nd and returns the resulting value
// estimate from the perspective of the player to move at nd.
func (s *Searcher) simulate(inf Inferer, nd *node) (float32, error) {
	if !nd.expanded() {
		logits, value, err := inf.Infer(nd.state.Observation())
		if err != nil {
			return 0, err
		}
		nd.expand(logits, nd.state.LegalMask())
		return value, nil
	}

	a := nd.selectAction(float32(s.conf.PUCT))
	if a < 0 {
		return 0, nil
	}
	child := nd.children[a]
	if child == nil {
		next, reward := nd.state.Move(a)
		child = newNode(next)
		nd.children[a] = child
		nd.reward[a] = reward
	}

	var q float32
	if child.state.Terminated() {
		// the transition reached the end of the game: back up the true
		// outcome rather than an estimate
		q = nd.reward[a]
	} else {
		v, err := s.simulate(inf, child)
		if err != nil {
			return 0, err
		}
		q = -v // zero-sum alternation
	}

	nd.visits[a]++
	nd.total++
	nd.totalQ[a] += q
	return q, nil
}

// sampleAction draws an action from the visit distribution. Temperature 1
// samples proportionally, 0 plays the argmax, anything else reweighs by
// w^(1/T). Illegal actions carry zero weight and are never drawn.
func sampleAction(r *rand.Rand, w []float32, legal []bool, temperature float64) int {
	if temperature == 0 {
		best := -1
		for a := range w {
			if legal[a] && (best < 0 || w[a] > w[best]) {
				best = a
			}
		}
		if best < 0 {
			return 0
		}
		return best
	}

	probs := make([]float32, len(w))
	var sum float32
	for a := range w {
		if !legal[a] || w[a] == 0 {
			continue
		}
		if temperature == 1 {
			probs[a] = w[a]
		} else {
			probs[a] = math32.Pow(w[a], 1/float32(temperature))
		}
		sum += probs[a]
	}
	if sum == 0 {
		return 0
	}

	x := r.Float32() * sum
	for a := range probs {
		x -= probs[a]
		if x < 0 && probs[a] > 0 {
			return a
		}
	}
	// floating point slop: fall back to the last weighted action
	for a := len(probs) - 1; a >= 0; a-- {
		if probs[a] > 0 {
			return a
		}
	}
	return 0
}
