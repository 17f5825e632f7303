package metrics

import (
	"math"

	"github.com/gorgonia/jointrnn/jointnet"
	"github.com/pkg/errors"
)

// ErrDivision is returned when a summarization would divide by a non-positive count.
var ErrDivision = errors.New("metric division error")

// Aggregator reduces per-step loss records into reportable metrics.
// It holds no state between calls.
type Aggregator[T jointnet.Float] struct {
	steps     int
	batchSize int
	exp       bool
}

// NewAggregator creates an aggregator for networks built with conf.
func NewAggregator[T jointnet.Float](conf jointnet.Config) *Aggregator[T] {
	return &Aggregator[T]{
		steps:     conf.BPTT,
		batchSize: conf.BatchSize,
		exp:       conf.Loss == jointnet.LossExp,
	}
}

type sums struct {
	mae, mse, nll, errCnt, expnll float64
}

func (a *Aggregator[T]) sum(rec jointnet.LossRecord[T], steps int) (s sums, err error) {
	get := func(r jointnet.Role, t int) float64 {
		if err != nil {
			return 0
		}
		var v T
		v, err = rec.Get(jointnet.At(r, t))
		return float64(v)
	}
	for t := 0; t < steps; t++ {
		s.mae += get(jointnet.MAE, t)
		s.mse += get(jointnet.MSE, t)
		s.nll += get(jointnet.NLL, t)
		s.errCnt += get(jointnet.ErrCnt, t)
		if a.exp {
			s.expnll += get(jointnet.ExpNLL, t)
		}
	}
	return s, err
}

// SummarizeTraining reduces the record of one training pass over every unrolled step.
//
// mse, mae and expnll are normalized by the configured batch size. nll and err_cnt are
// normalized by batchSize, the number of samples actually present in this batch, which
// is smaller than the configured size for a trailing partial batch.
func (a *Aggregator[T]) SummarizeTraining(iter int, rec jointnet.LossRecord[T], batchSize int) (Report, error) {
	if a.steps <= 0 || a.batchSize <= 0 {
		return Report{}, errors.Wrapf(ErrDivision, "steps %d, configured batch size %d", a.steps, a.batchSize)
	}
	if batchSize <= 0 {
		return Report{}, errors.Wrapf(ErrDivision, "batch size %d", batchSize)
	}
	s, err := a.sum(rec, a.steps)
	if err != nil {
		return Report{}, err
	}

	configured := float64(a.steps * a.batchSize)
	actual := float64(a.steps * batchSize)
	return Report{
		Phase:     Training,
		Iter:      iter,
		MAE:       s.mae / configured,
		RMSE:      math.Sqrt(s.mse / configured),
		NLL:       s.nll / actual,
		ErrRate:   s.errCnt / actual,
		ExpNLL:    s.expnll / configured,
		HasExpNLL: a.exp,
	}, nil
}

// SummarizeTesting reduces the accumulated record of a whole test pass. Only step 0
// contributes, and every family is normalized by the number of evaluated samples.
func (a *Aggregator[T]) SummarizeTesting(iter int, rec jointnet.LossRecord[T], samples int) (Report, error) {
	if samples <= 0 {
		return Report{}, errors.Wrapf(ErrDivision, "sample count %d", samples)
	}
	s, err := a.sum(rec, 1)
	if err != nil {
		return Report{}, err
	}
	n := float64(samples)
	return Report{
		Phase:     Testing,
		Iter:      iter,
		MAE:       s.mae / n,
		RMSE:      math.Sqrt(s.mse / n),
		NLL:       s.nll / n,
		ErrRate:   s.errCnt / n,
		ExpNLL:    s.expnll / n,
		HasExpNLL: a.exp,
	}, nil
}

// Accumulate adds src into dst, entry by entry. It is used to total test batches
// before SummarizeTesting.
func Accumulate[T jointnet.Float](dst, src jointnet.LossRecord[T]) {
	for k, v := range src {
		dst[k] += v
	}
}
