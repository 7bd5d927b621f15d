package pvnet

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// maebe threads an error through a chain of graph-building calls so the
// network construction reads linearly.
type maebe struct {
	err error
}

func (m *maebe) do(f func() (*G.Node, error)) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = f(); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

// linear is a fully connected layer: x*W + b, with b broadcast across the
// batch dimension.
func (m *maebe) linear(input *G.Node, units int, name string) *G.Node {
	if m.err != nil {
		return nil
	}
	g := input.Graph()
	w := G.NewMatrix(g, Float, G.WithShape(input.Shape()[1], units), G.WithInit(G.GlorotU(1.0)), G.WithName(name+"_w"))
	b := G.NewVector(g, Float, G.WithShape(units), G.WithInit(G.Zeroes()), G.WithName(name+"_b"))
	xw := m.do(func() (*G.Node, error) { return G.Mul(input, w) })
	return m.do(func() (*G.Node, error) { return G.BroadcastAdd(xw, b, nil, []byte{0}) })
}

func (m *maebe) rectify(input *G.Node) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = G.Rectify(input); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

func (m *maebe) reshape(input *G.Node, to tensor.Shape) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = G.Reshape(input, to); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

// logSoftMax computes log(softmax(logits)) row-wise with the usual max-shift
// so large logits do not overflow the exponentials.
func (m *maebe) logSoftMax(logits *G.Node) *G.Node {
	rows := logits.Shape()[0]
	max := m.do(func() (*G.Node, error) { return G.Max(logits, 1) })
	max2d := m.reshape(max, tensor.Shape{rows, 1})
	shifted := m.do(func() (*G.Node, error) { return G.BroadcastSub(logits, max2d, nil, []byte{1}) })
	exps := m.do(func() (*G.Node, error) { return G.Exp(shifted) })
	sums := m.do(func() (*G.Node, error) { return G.Sum(exps, 1) })
	logZ := m.do(func() (*G.Node, error) { return G.Log(sums) })
	logZ = m.do(func() (*G.Node, error) { return G.Add(logZ, max) })
	logZ2d := m.reshape(logZ, tensor.Shape{rows, 1})
	return m.do(func() (*G.Node, error) { return G.BroadcastSub(logits, logZ2d, nil, []byte{1}) })
}
