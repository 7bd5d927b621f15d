package tabula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(obs float32, reward float32, terminated bool) MoveRecord {
	return MoveRecord{
		Observation:   []float32{obs},
		ActionWeights: []float32{1},
		Reward:        reward,
		Terminated:    terminated,
	}
}

func TestCompileValueAlternation(t *testing.T) {
	// four live plies, the mover wins at the last one
	trajectory := Trajectory{
		record(0, 0, false),
		record(1, 0, false),
		record(2, 0, false),
		record(3, 1, false),
	}

	examples := compile([]Trajectory{trajectory})
	require.Len(t, examples, 4)

	// compile walks backwards, so examples come out last ply first
	values := map[float32]float32{}
	for _, ex := range examples {
		values[ex.Board[0]] = ex.Value
	}
	assert.Equal(t, float32(1), values[3])
	assert.Equal(t, float32(-1), values[2])
	assert.Equal(t, float32(1), values[1])
	assert.Equal(t, float32(-1), values[0])
}

func TestCompileSkipsPadding(t *testing.T) {
	// the game ends at ply 1; plies 2 and 3 are padding
	trajectory := Trajectory{
		record(0, 0, false),
		record(1, 1, false),
		record(2, 0, true),
		record(3, 0, true),
	}

	examples := compile([]Trajectory{trajectory})
	require.Len(t, examples, 2)
	for _, ex := range examples {
		assert.NotEqual(t, float32(2), ex.Board[0])
		assert.NotEqual(t, float32(3), ex.Board[0])
	}
	assert.Equal(t, float32(1), examples[0].Value)  // winning ply
	assert.Equal(t, float32(-1), examples[1].Value) // the ply before it
}

func TestCompileAllTerminated(t *testing.T) {
	trajectory := Trajectory{
		record(0, 0, true),
		record(1, 0, true),
	}
	examples := compile([]Trajectory{trajectory})
	assert.Empty(t, examples)
}

func TestCompileDraw(t *testing.T) {
	// a drawn game: final reward 0 makes every value 0
	trajectory := Trajectory{
		record(0, 0, false),
		record(1, 0, false),
		record(2, 0, false),
	}
	examples := compile([]Trajectory{trajectory})
	require.Len(t, examples, 3)
	for _, ex := range examples {
		assert.Equal(t, float32(0), ex.Value)
	}
}

func TestCompileEmpty(t *testing.T) {
	assert.Empty(t, compile(nil))
	assert.Empty(t, compile([]Trajectory{{}}))
}

func TestCompileMultipleGames(t *testing.T) {
	win := Trajectory{record(0, 1, false)}
	padded := Trajectory{record(1, 1, false), record(2, 0, true)}
	examples := compile([]Trajectory{win, padded})
	require.Len(t, examples, 2)
	assert.Equal(t, float32(1), examples[0].Value)
	assert.Equal(t, float32(1), examples[1].Value)
}
