package pvnet

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Inferencer is a forward-only snapshot of a *Net at a fixed batch size. The
// weights are copied at construction, so training the source net afterwards
// does not affect inference. A self-play iteration always plays against the
// weights it started with.
//
// An Inferencer owns a VM and is not goroutine safe; use one per goroutine.
type Inferencer struct {
	n *Net
	m G.VM

	input *tensor.Dense
}

// Infer builds an Inferencer from a trained net, rebatched to batchSize rows.
func Infer(n *Net, batchSize int) (*Inferencer, error) {
	conf := n.Config
	conf.FwdOnly = true
	conf.BatchSize = batchSize

	retVal := &Inferencer{
		n:     New(conf),
		input: tensor.New(tensor.WithShape(batchSize, conf.ObservationLen), tensor.Of(Float)),
	}
	if err := retVal.n.Init(); err != nil {
		return nil, err
	}

	model := n.Model()
	snapshot := retVal.n.Model()
	if len(model) != len(snapshot) {
		return nil, errors.Errorf("pvnet: model has %d params, snapshot has %d", len(model), len(snapshot))
	}
	for i, node := range model {
		src := node.Value().Data().([]float32)
		dst := snapshot[i].Value().Data().([]float32)
		if len(src) != len(dst) {
			return nil, errors.Errorf("pvnet: param %q size mismatch: %d vs %d", node.Name(), len(src), len(dst))
		}
		copy(dst, src)
	}

	retVal.m = G.NewTapeMachine(retVal.n.g)
	return retVal, nil
}

// BatchSize returns the number of rows per forward pass.
func (inf *Inferencer) BatchSize() int { return inf.n.BatchSize }

// Infer runs one batched forward pass. obs must hold exactly BatchSize
// observations. The returned slices are freshly allocated.
func (inf *Inferencer) Infer(obs [][]float32) (logits [][]float32, values []float32, err error) {
	if len(obs) != inf.n.BatchSize {
		return nil, nil, errors.Errorf("pvnet: got %d observations, inferencer is batched at %d", len(obs), inf.n.BatchSize)
	}

	inf.input.Zero()
	data := inf.input.Data().([]float32)
	for i, o := range obs {
		if len(o) != inf.n.ObservationLen {
			return nil, nil, errors.Errorf("pvnet: observation %d has length %d, want %d", i, len(o), inf.n.ObservationLen)
		}
		copy(data[i*inf.n.ObservationLen:], o)
	}

	inf.m.Reset()
	if err = G.Let(inf.n.X, inf.input); err != nil {
		return nil, nil, errors.WithStack(err)
	}
	if err = inf.m.RunAll(); err != nil {
		return nil, nil, errors.WithStack(err)
	}

	rawLogits := inf.n.logitsVal.Data().([]float32)
	rawValues := inf.n.valueVal.Data().([]float32)

	logits = make([][]float32, len(obs))
	for i := range logits {
		row := make([]float32, inf.n.ActionSpace)
		copy(row, rawLogits[i*inf.n.ActionSpace:(i+1)*inf.n.ActionSpace])
		logits[i] = row
	}
	values = make([]float32, len(obs))
	copy(values, rawValues)
	return logits, values, nil
}

// Close releases the VM.
func (inf *Inferencer) Close() error { return inf.m.Close() }
