package tabula

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Statistics accumulates per-iteration training metrics.
type Statistics struct {
	ValueLosses  []float32
	PolicyLosses []float32
}

func makeStatistics() Statistics {
	return Statistics{
		ValueLosses:  make([]float32, 0, 64),
		PolicyLosses: make([]float32, 0, 64),
	}
}

func (s *Statistics) record(valueLoss, policyLoss float32) {
	s.ValueLosses = append(s.ValueLosses, valueLoss)
	s.PolicyLosses = append(s.PolicyLosses, policyLoss)
}

// Dump writes the loss history as CSV, one row per iteration.
func (s *Statistics) Dump(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"iteration", "value_loss", "policy_loss"}); err != nil {
		return errors.WithStack(err)
	}
	for i := range s.ValueLosses {
		record := []string{
			strconv.Itoa(i),
			strconv.FormatFloat(float64(s.ValueLosses[i]), 'f', 6, 32),
			strconv.FormatFloat(float64(s.PolicyLosses[i]), 'f', 6, 32),
		}
		if err := w.Write(record); err != nil {
			return errors.WithStack(err)
		}
	}
	w.Flush()
	return errors.WithStack(w.Error())
}
