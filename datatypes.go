package tabula

import (
	"github.com/mkr-ml/tabula/game"
	"github.com/mkr-ml/tabula/mcts"
)

// MoveRecord is one ply of one self-play game, captured as it was played:
// the position before the move, the search's improved action distribution at
// that position, and the reward the move produced. Terminated marks padding
// plies recorded after the game already ended; they carry no information and
// are discarded by the compiler.
type MoveRecord struct {
	Observation   []float32
	ActionWeights []float32
	Reward        float32
	Terminated    bool
}

// Trajectory is one game's record: exactly MaxPlies MoveRecords, the tail
// padded with Terminated records for games that ended early.
type Trajectory []MoveRecord

// Example is one training example: a position, the action distribution to
// distill, and the game outcome from the perspective of the player to move.
type Example struct {
	Board  []float32
	Policy []float32
	Value  float32
}

// BatchInferer is batched network inference over an immutable snapshot of
// weights. pvnet.Inferencer is the concrete implementation.
type BatchInferer interface {
	Infer(obs [][]float32) (logits [][]float32, values []float32, err error)
	Close() error
}

// SearchOracle improves the network's raw output at a batch of root
// positions into an action distribution and a chosen action per root. It
// must be deterministic given (inf, seed, roots, logits, values).
type SearchOracle interface {
	Search(inf mcts.Inferer, seed uint64, roots []game.State, rootLogits [][]float32, rootValues []float32) (weights [][]float32, actions []int, err error)
}
