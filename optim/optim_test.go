package optim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

type fakeParam struct {
	w, g *tensor.Dense
}

func (f fakeParam) Value() G.Value         { return f.w }
func (f fakeParam) Grad() (G.Value, error) { return f.g, nil }

func param(w, g []float32) fakeParam {
	return fakeParam{
		w: tensor.New(tensor.WithShape(len(w)), tensor.WithBacking(w)),
		g: tensor.New(tensor.WithShape(len(g)), tensor.WithBacking(g)),
	}
}

func TestChainOrder(t *testing.T) {
	// trace -> add_decayed_weights -> scale, then w -= g. Hand-computed:
	//
	// step 1: v = 0.5              update = (0.5 + 0.1*1.0) * 0.1 = 0.06
	// step 2: v = 0.5*0.5 + 0.5    update = (0.75 + 0.1*0.94) * 0.1 = 0.0844
	p := param([]float32{1}, []float32{0.5})
	chain := SGD(0.1, 0.5, 0.1)

	require.NoError(t, chain.Step([]G.ValueGrad{p}))
	assert.InDelta(t, 0.94, p.w.Data().([]float32)[0], 1e-6)

	// the tape machine rewrites gradients every pass; emulate that
	copy(p.g.Data().([]float32), []float32{0.5})
	require.NoError(t, chain.Step([]G.ValueGrad{p}))
	assert.InDelta(t, 0.8556, p.w.Data().([]float32)[0], 1e-6)
}

func TestPlainSGD(t *testing.T) {
	// no momentum, no decay: w -= lr*g
	p := param([]float32{1, 2}, []float32{1, -1})
	chain := NewChain(Scale(0.5))

	require.NoError(t, chain.Step([]G.ValueGrad{p}))
	w := p.w.Data().([]float32)
	assert.InDelta(t, 0.5, w[0], 1e-6)
	assert.InDelta(t, 2.5, w[1], 1e-6)
}

func TestTraceAccumulates(t *testing.T) {
	p := param([]float32{0}, []float32{1})
	chain := NewChain(Trace(1.0)) // pure accumulation

	require.NoError(t, chain.Step([]G.ValueGrad{p}))
	copy(p.g.Data().([]float32), []float32{1})
	require.NoError(t, chain.Step([]G.ValueGrad{p}))

	// updates were 1 then 2
	assert.InDelta(t, -3, p.w.Data().([]float32)[0], 1e-6)
}

func TestChainString(t *testing.T) {
	chain := SGD(0.1, 0.9, 1e-4)
	assert.Equal(t, "chain(trace, add_decayed_weights, scale)", chain.String())
}

func TestStatefulTransformsAreIndexed(t *testing.T) {
	// each parameter keeps its own velocity
	p1 := param([]float32{0}, []float32{1})
	p2 := param([]float32{0}, []float32{2})
	chain := NewChain(Trace(1.0))

	model := []G.ValueGrad{p1, p2}
	require.NoError(t, chain.Step(model))
	copy(p1.g.Data().([]float32), []float32{1})
	copy(p2.g.Data().([]float32), []float32{2})
	require.NoError(t, chain.Step(model))

	assert.InDelta(t, -3, p1.w.Data().([]float32)[0], 1e-6)
	assert.InDelta(t, -6, p2.w.Data().([]float32)[0], 1e-6)
}
