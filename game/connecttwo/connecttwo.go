// Package connecttwo implements Connect-Two, the smallest interesting
// two-player game: a 1x4 board, players alternate placing a stone on an empty
// cell, and the first player with two adjacent stones wins. A full board with
// no pair is a draw. It exists to exercise the full training pipeline at a
// size where a correct agent is learnable in seconds.
package connecttwo

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/mkr-ml/tabula/game"
)

const boardLen = 4

// Game implements game.Game.
type Game struct{}

func New() *Game { return &Game{} }

func (*Game) Name() string        { return "connect2" }
func (*Game) ActionSpace() int    { return boardLen }
func (*Game) ObservationLen() int { return boardLen }
func (*Game) MaxPlies() int       { return boardLen }

func (*Game) Reset() game.State {
	return &Position{toMove: 1}
}

var _ game.State = &Position{}

// Position is a Connect-Two position. Stones are stored in absolute terms
// (+1 for the first player, -1 for the second); the canonical observation
// flips the board so the mover always sees its own stones as +1.
type Position struct {
	board  [boardLen]int8
	toMove int8 // +1 or -1
	winner int8 // 0 while the game runs
	plies  int8
}

func (p *Position) Observation() []float32 {
	obs := make([]float32, boardLen)
	for i, c := range p.board {
		obs[i] = float32(c * p.toMove)
	}
	return obs
}

func (p *Position) Terminated() bool {
	return p.winner != 0 || p.plies == boardLen
}

func (p *Position) LegalMask() []bool {
	mask := make([]bool, boardLen)
	if p.Terminated() {
		return mask
	}
	for i, c := range p.board {
		mask[i] = c == 0
	}
	return mask
}

func (p *Position) Move(action int) (game.State, float32) {
	if p.Terminated() {
		return p, 0
	}
	if action < 0 || action >= boardLen {
		panic(errors.Errorf("connecttwo: action %d out of range", action))
	}
	if p.board[action] != 0 {
		panic(errors.Errorf("connecttwo: cell %d is occupied", action))
	}

	next := *p
	next.board[action] = p.toMove
	next.plies++
	for i := 0; i < boardLen-1; i++ {
		if next.board[i] == p.toMove && next.board[i+1] == p.toMove {
			next.winner = p.toMove
			break
		}
	}
	next.toMove = -p.toMove

	var reward float32
	if next.winner == p.toMove {
		reward = 1
	}
	return &next, reward
}

func (p *Position) Clone() game.State {
	next := *p
	return &next
}

func (p *Position) Format(s fmt.State, c rune) {
	for _, v := range p.board {
		switch v {
		case 1:
			fmt.Fprint(s, "X")
		case -1:
			fmt.Fprint(s, "O")
		default:
			fmt.Fprint(s, "·")
		}
	}
}
