// Package mnk implements m,n,k-games: played on an m x n board, k own stones
// in a row (horizontally, vertically or diagonally) win. Tic-tac-toe is the
// (3,3,3) instance.
package mnk

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/mkr-ml/tabula/game"
)

// Game implements game.Game for an m,n,k-game.
type Game struct {
	m, n, k int
}

// New creates an m,n,k-game. m rows, n columns, k in a row to win.
func New(m, n, k int) *Game {
	if m < 1 || n < 1 || k < 2 || (k > m && k > n) {
		panic(errors.Errorf("mnk: unplayable configuration m=%d n=%d k=%d", m, n, k))
	}
	return &Game{m: m, n: n, k: k}
}

// TicTacToe creates the 3,3,3 game.
func TicTacToe() *Game { return New(3, 3, 3) }

func (g *Game) Name() string        { return fmt.Sprintf("mnk-%d-%d-%d", g.m, g.n, g.k) }
func (g *Game) ActionSpace() int    { return g.m * g.n }
func (g *Game) ObservationLen() int { return g.m * g.n }
func (g *Game) MaxPlies() int       { return g.m * g.n }

func (g *Game) Reset() game.State {
	return &Position{
		board:  make([]int8, g.m*g.n),
		toMove: 1,
		m:      g.m,
		n:      g.n,
		k:      g.k,
	}
}

var _ game.State = &Position{}

// Position is an m,n,k position in row-major order. Stones are absolute
// (+1 first player, -1 second); the observation is flipped to the mover's
// perspective.
type Position struct {
	board   []int8
	toMove  int8
	winner  int8
	plies   int
	m, n, k int
}

func (p *Position) Observation() []float32 {
	obs := make([]float32, len(p.board))
	for i, c := range p.board {
		obs[i] = float32(c * p.toMove)
	}
	return obs
}

func (p *Position) Terminated() bool {
	return p.winner != 0 || p.plies == len(p.board)
}

func (p *Position) LegalMask() []bool {
	mask := make([]bool, len(p.board))
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
	if action < 0 || action >= len(p.board) {
		panic(errors.Errorf("mnk: action %d out of range", action))
	}
	if p.board[action] != 0 {
		panic(errors.Errorf("mnk: cell %d is occupied", action))
	}

	next := p.clone()
	next.board[action] = p.toMove
	next.plies++
	if next.lineThrough(action, p.toMove) {
		next.winner = p.toMove
	}
	next.toMove = -p.toMove

	var reward float32
	if next.winner == p.toMove {
		reward = 1
	}
	return next, reward
}

func (p *Position) Clone() game.State { return p.clone() }

func (p *Position) clone() *Position {
	next := *p
	next.board = make([]int8, len(p.board))
	copy(next.board, p.board)
	return &next
}

// lineThrough reports whether the stone just placed at idx completes a run of
// k stones of the given colour. Only lines through idx need checking.
func (p *Position) lineThrough(idx int, colour int8) bool {
	row, col := idx/p.n, idx%p.n
	dirs := [4][2]int{
		{0, 1},  // row
		{1, 0},  // column
		{1, 1},  // diagonal
		{1, -1}, // antidiagonal
	}
	for _, d := range dirs {
		count := 1
		for _, sign := range [2]int{1, -1} {
			r, c := row+sign*d[0], col+sign*d[1]
			for r >= 0 && r < p.m && c >= 0 && c < p.n && p.board[r*p.n+c] == colour {
				count++
				r += sign * d[0]
				c += sign * d[1]
			}
		}
		if count >= p.k {
			return true
		}
	}
	return false
}

func (p *Position) Format(s fmt.State, c rune) {
	for i, v := range p.board {
		if i%p.n == 0 {
			fmt.Fprint(s, "⎢ ")
		}
		switch v {
		case 1:
			fmt.Fprint(s, "X ")
		case -1:
			fmt.Fprint(s, "O ")
		default:
			fmt.Fprint(s, "· ")
		}
		if (i+1)%p.n == 0 {
			fmt.Fprint(s, "⎥\n")
		}
	}
}
