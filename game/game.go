// Package game defines the contract between the training pipeline and a
// two-player zero-sum board game. Games are immutable-ish: Move returns a new
// State and never mutates the receiver, which is what lets a batch of games
// advance independently on separate goroutines.
package game

// State is a single position. All observations and rewards are from the
// perspective of the player about to move (the canonical form), so the model
// never needs to know which colour it is playing.
type State interface {
	// Observation returns the canonical encoding of the position. The length
	// is fixed per game and equals Game.ObservationLen().
	Observation() []float32

	// Terminated reports whether the game is over at this position.
	Terminated() bool

	// LegalMask returns one entry per action; true means playable. A
	// terminated position has no legal actions.
	LegalMask() []bool

	// Move applies an action and returns the resulting position together
	// with the immediate reward from the mover's perspective. Moving on a
	// terminated position is a no-op with zero reward.
	Move(action int) (State, float32)

	Clone() State
}

// A Game knows how to start new positions and describes the fixed shapes the
// pipeline needs to size its buffers.
type Game interface {
	Name() string
	Reset() State
	ActionSpace() int
	ObservationLen() int

	// MaxPlies is the longest possible game, and therefore the fixed number
	// of plies every self-play trajectory is padded to.
	MaxPlies() int
}

// Replicate makes n independent copies of a position. It is how a self-play
// batch is seeded from a single start state.
func Replicate(s State, n int) []State {
	states := make([]State, n)
	for i := range states {
		states[i] = s.Clone()
	}
	return states
}
