package tabula

import (
	"math/rand"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/mkr-ml/tabula/pvnet"
)

// trainEpoch runs one epoch of mini-batch gradient descent over the compiled
// examples and returns the average loss components. The buffer is shuffled
// with the supplied rng, partitioned into full batches (any final partial
// batch is dropped), and each batch takes one forward/backward pass and one
// solver step.
//
// A buffer too small for even a single batch skips the epoch with a warning
// rather than erroring: an early iteration of a short game can legitimately
// produce very little data.
func (a *AZ) trainEpoch(examples []Example, r *rand.Rand) (valueLoss, policyLoss float32, err error) {
	shuffleExamples(examples, r)

	batchSize := a.NetConf.BatchSize
	batches := len(examples) / batchSize
	if batches == 0 {
		log.Warn().
			Int("examples", len(examples)).
			Int("batch_size", batchSize).
			Msg("not enough examples for one batch; skipping training epoch")
		return 0, 0, nil
	}

	obsLen := a.NetConf.ObservationLen
	actions := a.NetConf.ActionSpace
	xs := tensor.New(tensor.WithShape(batchSize, obsLen), tensor.Of(pvnet.Float))
	logPi := tensor.New(tensor.WithShape(batchSize, actions), tensor.Of(pvnet.Float))
	vs := tensor.New(tensor.WithShape(batchSize), tensor.Of(pvnet.Float))

	model := a.NN.Model()
	machine := G.NewTapeMachine(a.NN.Graph(), G.BindDualValues(model...))
	defer machine.Close()
	grads := G.NodesToValueGrads(model)

	var vTotal, pTotal float32
	for bat := 0; bat < batches; bat++ {
		fillBatch(examples[bat*batchSize:(bat+1)*batchSize], obsLen, actions, xs, logPi, vs)

		machine.Reset()
		if err = G.Let(a.NN.X, xs); err != nil {
			return 0, 0, errors.WithStack(err)
		}
		if err = G.Let(a.NN.LogPi, logPi); err != nil {
			return 0, 0, errors.WithStack(err)
		}
		if err = G.Let(a.NN.V, vs); err != nil {
			return 0, 0, errors.WithStack(err)
		}
		if err = machine.RunAll(); err != nil {
			return 0, 0, errors.Wrapf(err, "batch %d", bat)
		}

		vl, pl := a.NN.Losses()
		if err = a.solver.Step(grads); err != nil {
			return 0, 0, errors.Wrapf(err, "batch %d: solver step", bat)
		}

		vTotal += vl
		pTotal += pl
	}
	return vTotal / float32(batches), pTotal / float32(batches), nil
}

// fillBatch flattens a slice of examples into the preallocated batch
// tensors. Target policies are stored as floored logs, which is the form the
// KL term consumes.
func fillBatch(batch []Example, obsLen, actions int, xs, logPi, vs *tensor.Dense) {
	xd := xs.Data().([]float32)
	ld := logPi.Data().([]float32)
	vd := vs.Data().([]float32)
	for i, ex := range batch {
		copy(xd[i*obsLen:(i+1)*obsLen], ex.Board)
		pvnet.ClampedLogPolicy(ex.Policy, ld[i*actions:(i+1)*actions])
		vd[i] = ex.Value
	}
}

func shuffleExamples(examples []Example, r *rand.Rand) {
	for i := range examples {
		j := r.Intn(i + 1)
		examples[i], examples[j] = examples[j], examples[i]
	}
}
