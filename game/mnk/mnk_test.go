package mnk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkr-ml/tabula/game"
)

func playout(t *testing.T, g *Game, moves []int) (s game.State, lastReward float32) {
	t.Helper()
	s = g.Reset()
	for _, a := range moves {
		s, lastReward = s.Move(a)
	}
	return s, lastReward
}

func TestTicTacToeRowWin(t *testing.T) {
	// X X X across the top
	s, r := playout(t, TicTacToe(), []int{0, 3, 1, 4, 2})
	assert.True(t, s.Terminated())
	assert.Equal(t, float32(1), r)
}

func TestTicTacToeColumnWin(t *testing.T) {
	s, r := playout(t, TicTacToe(), []int{0, 1, 3, 2, 6})
	assert.True(t, s.Terminated())
	assert.Equal(t, float32(1), r)
}

func TestTicTacToeDiagonalWin(t *testing.T) {
	s, r := playout(t, TicTacToe(), []int{0, 1, 4, 2, 8})
	assert.True(t, s.Terminated())
	assert.Equal(t, float32(1), r)
}

func TestTicTacToeAntidiagonalWinBySecondPlayer(t *testing.T) {
	// O takes 2, 4, 6
	s, r := playout(t, TicTacToe(), []int{0, 2, 1, 4, 8, 6})
	assert.True(t, s.Terminated())
	assert.Equal(t, float32(1), r)
}

func TestTicTacToeDraw(t *testing.T) {
	// X O X / X O O / O X X
	s, r := playout(t, TicTacToe(), []int{0, 1, 2, 4, 3, 5, 7, 6, 8})
	assert.True(t, s.Terminated())
	assert.Zero(t, r)
}

func TestCanonicalObservation(t *testing.T) {
	g := TicTacToe()
	s := g.Reset()
	s, _ = s.Move(4)

	obs := s.Observation()
	assert.Equal(t, float32(-1), obs[4], "mover sees the opponent stone as -1")

	s, _ = s.Move(0)
	obs = s.Observation()
	assert.Equal(t, float32(1), obs[4])
	assert.Equal(t, float32(-1), obs[0])
}

func TestLegalMask(t *testing.T) {
	g := TicTacToe()
	s := g.Reset()
	s, _ = s.Move(4)

	mask := s.LegalMask()
	for a, ok := range mask {
		assert.Equal(t, a != 4, ok, "action %d", a)
	}
}

func TestNonSquareBoard(t *testing.T) {
	g := New(2, 3, 2) // 2x3, pairs win
	assert.Equal(t, 6, g.ActionSpace())
	assert.Equal(t, "mnk-2-3-2", g.Name())

	s := g.Reset()
	s, _ = s.Move(0)
	s, _ = s.Move(5)
	s, r := s.Move(1) // two in the top row
	assert.True(t, s.Terminated())
	assert.Equal(t, float32(1), r)
}

func TestNoWrapAroundLines(t *testing.T) {
	// stones at the end of one row and the start of the next are not a line
	g := New(2, 3, 2)
	s := g.Reset()
	s, _ = s.Move(2)
	s, _ = s.Move(0)
	s, r := s.Move(3)
	assert.Zero(t, r)
	assert.False(t, s.Terminated())
}

func TestUnplayableConfigurationPanics(t *testing.T) {
	assert.Panics(t, func() { New(0, 3, 3) })
	assert.Panics(t, func() { New(3, 3, 1) })
	assert.Panics(t, func() { New(2, 2, 3) })
}

func TestMoveAfterTerminalIsNoop(t *testing.T) {
	s, _ := playout(t, TicTacToe(), []int{0, 3, 1, 4, 2})
	require.True(t, s.Terminated())

	s2, r := s.Move(5)
	assert.Zero(t, r)
	assert.Equal(t, s, s2)
	assert.Equal(t, []bool{false, false, false, false, false, false, false, false, false}, s.LegalMask())
}

func TestIllegalMovesPanic(t *testing.T) {
	g := TicTacToe()
	s := g.Reset()
	s, _ = s.Move(4)

	assert.Panics(t, func() { s.Move(4) })
	assert.Panics(t, func() { s.Move(9) })
	assert.Panics(t, func() { s.Move(-1) })
}

func TestMoveDoesNotMutate(t *testing.T) {
	g := TicTacToe()
	s := g.Reset()
	before := s.Observation()
	s.Move(0)
	assert.Equal(t, before, s.Observation())
}
