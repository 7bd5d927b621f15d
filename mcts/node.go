package mcts

import (
	"github.com/chewxy/math32"

	"github.com/mkr-ml/tabula/game"
)

// node is one position in the search tree. Edge statistics are stored on the
// parent, indexed by action.
type node struct {
	state game.State
	legal []bool

	p        []float32 // priors, masked softmax of the network logits
	visits   []int32   // per-action visit counts
	totalQ   []float32 // per-action summed backup values
	reward   []float32 // immediate reward observed when the edge was created
	children []*node
	total    int32 // sum of visits
}

func newNode(state game.State) *node {
	return &node{state: state}
}

func (nd *node) expanded() bool { return nd.p != nil }

// expand turns the raw logits into priors over legal actions: a softmax over
// the legal entries, exactly zero elsewhere.
func (nd *node) expand(logits []float32, legal []bool) {
	n := len(logits)
	p := make([]float32, n)

	max := math32.Inf(-1)
	for a := 0; a < n; a++ {
		if legal[a] && logits[a] > max {
			max = logits[a]
		}
	}
	var sum float32
	for a := 0; a < n; a++ {
		if legal[a] {
			p[a] = math32.Exp(logits[a] - max)
			sum += p[a]
		}
	}
	if sum > 0 {
		for a := range p {
			p[a] /= sum
		}
	}

	nd.legal = legal
	nd.p = p
	nd.visits = make([]int32, n)
	nd.totalQ = make([]float32, n)
	nd.reward = make([]float32, n)
	nd.children = make([]*node, n)
}

// selectAction picks the legal action maximizing Q + c*P*sqrt(N)/(1+n),
// ties broken by the lowest action index. Returns -1 when nothing is legal.
func (nd *node) selectAction(c float32) int {
	sqrtTotal := math32.Sqrt(float32(nd.total) + 1)
	best := -1
	bestScore := math32.Inf(-1)
	for a := range nd.p {
		if !nd.legal[a] {
			continue
		}
		var q float32
		if nd.visits[a] > 0 {
			q = nd.totalQ[a] / float32(nd.visits[a])
		}
		score := q + c*nd.p[a]*sqrtTotal/float32(1+nd.visits[a])
		if score > bestScore {
			bestScore = score
			best = a
		}
	}
	return best
}

// visitWeights normalizes the visit counts into the improved action
// distribution the trainer distills. Zero everywhere when nothing was
// visited.
func (nd *node) visitWeights() []float32 {
	w := make([]float32, len(nd.visits))
	if nd.total == 0 {
		return w
	}
	for a, v := range nd.visits {
		w[a] = float32(v) / float32(nd.total)
	}
	return w
}
