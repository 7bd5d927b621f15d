// Package optim implements stochastic gradient descent as a chain of named
// gradient transforms. Each transform rewrites the gradient in place; after
// the whole chain has run, the parameter takes a plain w -= g step. The
// update rule is therefore entirely determined by the transforms and their
// order, and the order is part of the contract: reruns of the same seed must
// walk the same parameter trajectory.
package optim

import (
	"strings"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/vecf32"
)

// A Transform rewrites one parameter's gradient. i identifies the parameter
// across calls so stateful transforms can keep per-parameter state.
type Transform interface {
	Name() string
	apply(i int, grad, weight []float32)
}

// Chain is a gorgonia-compatible solver (it satisfies G.Solver) that applies
// its transforms in declaration order, then steps w -= g.
type Chain struct {
	stages []Transform
}

var _ G.Solver = &Chain{}

func NewChain(stages ...Transform) *Chain {
	return &Chain{stages: stages}
}

// SGD is the standard composition: momentum trace, then L2 weight decay,
// then the learning-rate scale.
func SGD(learnRate, momentum, weightDecay float64) *Chain {
	return NewChain(
		Trace(float32(momentum)),
		AddDecayedWeights(float32(weightDecay)),
		Scale(float32(learnRate)),
	)
}

func (c *Chain) String() string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.Name()
	}
	return "chain(" + strings.Join(names, ", ") + ")"
}

// Step applies one update to every parameter.
func (c *Chain) Step(model []G.ValueGrad) error {
	for i, vg := range model {
		weight, ok := vg.Value().Data().([]float32)
		if !ok {
			return errors.Errorf("optim: param %d is not float32-backed", i)
		}
		gradVal, err := vg.Grad()
		if err != nil {
			return errors.Wrapf(err, "optim: no gradient for param %d", i)
		}
		grad, ok := gradVal.Data().([]float32)
		if !ok {
			return errors.Errorf("optim: gradient %d is not float32-backed", i)
		}
		if len(grad) != len(weight) {
			return errors.Errorf("optim: param %d: weight size %d, gradient size %d", i, len(weight), len(grad))
		}

		for _, stage := range c.stages {
			stage.apply(i, grad, weight)
		}
		vecf32.Sub(weight, grad)
	}
	return nil
}

// trace is classic momentum: t <- g + momentum*t, and t becomes the update.
type trace struct {
	momentum float32
	velocity map[int][]float32
}

func Trace(momentum float32) Transform {
	return &trace{momentum: momentum, velocity: make(map[int][]float32)}
}

func (t *trace) Name() string { return "trace" }

func (t *trace) apply(i int, grad, weight []float32) {
	v, ok := t.velocity[i]
	if !ok {
		v = make([]float32, len(grad))
		t.velocity[i] = v
	}
	vecf32.Scale(v, t.momentum)
	vecf32.Add(v, grad)
	copy(grad, v)
}

// decayedWeights adds wd*w to the gradient (decoupled L2 regularization).
type decayedWeights struct {
	wd      float32
	scratch []float32
}

func AddDecayedWeights(wd float32) Transform {
	return &decayedWeights{wd: wd}
}

func (d *decayedWeights) Name() string { return "add_decayed_weights" }

func (d *decayedWeights) apply(i int, grad, weight []float32) {
	if cap(d.scratch) < len(weight) {
		d.scratch = make([]float32, len(weight))
	}
	s := d.scratch[:len(weight)]
	copy(s, weight)
	vecf32.Scale(s, d.wd)
	vecf32.Add(grad, s)
}

// scale multiplies the gradient by the learning rate.
type scale struct {
	lr float32
}

func Scale(lr float32) Transform { return &scale{lr: lr} }

func (s *scale) Name() string { return "scale" }

func (s *scale) apply(i int, grad, weight []float32) {
	vecf32.Scale(grad, s.lr)
}
