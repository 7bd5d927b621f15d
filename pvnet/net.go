// Package pvnet is the policy-value network: a small fully connected trunk
// with a policy head (action logits) and a value head (a tanh scalar). The
// training graph carries the combined loss the pipeline fits: mean squared
// error on the value plus a KL policy-distillation term.
package pvnet

import (
	"bytes"
	"encoding/gob"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

var Float = G.Float32

// LogPolicyFloor is the minimum log-probability fed to the KL term. Target
// distributions legitimately contain exact zeros (illegal actions, unvisited
// actions); flooring their log keeps the divergence finite.
const LogPolicyFloor float32 = -50

// Net is the dual-headed network.
type Net struct {
	Config

	g *G.ExprGraph

	// inputs
	X     *G.Node // observations (batch, observationLen)
	LogPi *G.Node // floored log of target action weights (batch, actionSpace)
	V     *G.Node // target values (batch)

	logits *G.Node
	value  *G.Node

	// read-out values
	logitsVal  G.Value
	probsVal   G.Value
	valueVal   G.Value
	valueLoss  G.Value
	policyLoss G.Value
}

// New returns a new, uninitialized *Net.
func New(conf Config) *Net {
	return &Net{Config: conf}
}

// Init builds the graph. For FwdOnly configs only the two heads are built;
// otherwise the loss nodes and the gradient graph are added.
func (n *Net) Init() error {
	n.reset()
	n.g = G.NewGraph()
	var m maebe
	logits, value := n.fwd(&m)
	if m.err != nil {
		return m.err
	}
	return n.bwd(logits, value)
}

func (n *Net) fwd(m *maebe) (logits, value *G.Node) {
	n.X = G.NewMatrix(n.g, Float, G.WithShape(n.BatchSize, n.ObservationLen), G.WithName("X"))

	trunk := m.rectify(m.linear(n.X, n.Hidden, "Trunk0"))
	trunk = m.rectify(m.linear(trunk, n.Hidden, "Trunk1"))

	// policy head
	logits = m.linear(trunk, n.ActionSpace, "Policy")
	probs := m.do(func() (*G.Node, error) { return G.SoftMax(logits) })
	G.Read(logits, &n.logitsVal)
	G.Read(probs, &n.probsVal)

	// value head
	v := m.rectify(m.linear(trunk, n.Hidden, "Value"))
	v = m.linear(v, 1, "ValueOut")
	v = m.reshape(v, tensor.Shape{n.BatchSize})
	value = m.do(func() (*G.Node, error) { return G.Tanh(v) })
	G.Read(value, &n.valueVal)

	n.logits = logits
	n.value = value
	return logits, value
}

func (n *Net) bwd(logits, value *G.Node) error {
	if n.FwdOnly {
		return nil
	}
	n.LogPi = G.NewMatrix(n.g, Float, G.WithShape(n.BatchSize, n.ActionSpace), G.WithName("LogPi"))
	n.V = G.NewVector(n.g, Float, G.WithShape(n.BatchSize), G.WithName("V"))

	var m maebe

	// value loss: mean (v - target)^2
	vcost := m.do(func() (*G.Node, error) { return G.Sub(value, n.V) })
	vcost = m.do(func() (*G.Node, error) { return G.Square(vcost) })
	vcost = m.do(func() (*G.Node, error) { return G.Mean(vcost) })

	// policy loss: mean over the batch of sum_a p(a) * (log p(a) - log pi*(a)),
	// log p computed stably, log pi* pre-floored on the CPU side.
	logProbs := m.logSoftMax(logits)
	probs := m.do(func() (*G.Node, error) { return G.Exp(logProbs) })
	diff := m.do(func() (*G.Node, error) { return G.Sub(logProbs, n.LogPi) })
	kl := m.do(func() (*G.Node, error) { return G.HadamardProd(probs, diff) })
	kl = m.do(func() (*G.Node, error) { return G.Sum(kl, 1) })
	pcost := m.do(func() (*G.Node, error) { return G.Mean(kl) })

	weighted := m.do(func() (*G.Node, error) {
		return G.Mul(G.NewConstant(float32(n.PolicyWeight), G.WithName("policyWeight")), pcost)
	})
	ccost := m.do(func() (*G.Node, error) { return G.Add(vcost, weighted) })
	if m.err != nil {
		return m.err
	}

	G.Read(vcost, &n.valueLoss)
	G.Read(pcost, &n.policyLoss)

	if _, err := G.Grad(ccost, n.Model()...); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Model returns the trainable nodes, in graph insertion order. The order is
// stable across Init calls for the same Config, which is what lets Clone and
// the gob round trip pair nodes up positionally.
func (n *Net) Model() G.Nodes {
	retVal := make(G.Nodes, 0, n.g.Nodes().Len())
	for _, node := range n.g.AllNodes() {
		if node.IsVar() && node != n.X && node != n.LogPi && node != n.V {
			retVal = append(retVal, node)
		}
	}
	return retVal
}

// Graph exposes the expression graph for the training loop's tape machine.
func (n *Net) Graph() *G.ExprGraph { return n.g }

// Losses returns the loss components read out by the last forward pass.
func (n *Net) Losses() (valueLoss, policyLoss float32) {
	return n.valueLoss.Data().(float32), n.policyLoss.Data().(float32)
}

// Clone returns a deep copy: a freshly initialized net with copied weights.
func (n *Net) Clone() (*Net, error) {
	n2 := New(n.Config)
	if err := n2.Init(); err != nil {
		return nil, err
	}
	model := n.Model()
	model2 := n2.Model()
	for i, node := range model {
		v := node.Value().(*tensor.Dense).Clone().(*tensor.Dense)
		if err := G.Let(model2[i], v); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return n2, nil
}

// Params returns the named parameter tensors, deep-copied. This is the
// checkpoint payload.
func (n *Net) Params() map[string]*tensor.Dense {
	retVal := make(map[string]*tensor.Dense)
	for _, node := range n.Model() {
		retVal[node.Name()] = node.Value().(*tensor.Dense).Clone().(*tensor.Dense)
	}
	return retVal
}

func (n *Net) reset() {
	n.g = nil
	n.X = nil
	n.LogPi = nil
	n.V = nil
	n.logits = nil
	n.value = nil
}

func (n *Net) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(n.Config); err != nil {
		return nil, errors.WithStack(err)
	}
	for _, node := range n.Model() {
		v := node.Value()
		if err := enc.Encode(&v); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return buf.Bytes(), nil
}

func (n *Net) GobDecode(p []byte) error {
	buf := bytes.NewBuffer(p)
	dec := gob.NewDecoder(buf)
	if err := dec.Decode(&n.Config); err != nil {
		return errors.WithStack(err)
	}
	if err := n.Init(); err != nil {
		return err
	}
	for _, node := range n.Model() {
		var v G.Value
		if err := dec.Decode(&v); err != nil {
			return errors.WithStack(err)
		}
		if err := G.Let(node, v); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// ClampedLogPolicy writes the floored log of a target action distribution
// into out. Zero-probability entries land exactly on LogPolicyFloor.
func ClampedLogPolicy(weights, out []float32) {
	for i, w := range weights {
		lp := math32.Log(w)
		if lp < LogPolicyFloor || math32.IsNaN(lp) || math32.IsInf(lp, -1) {
			lp = LogPolicyFloor
		}
		out[i] = lp
	}
}
