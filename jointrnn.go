// Package jointrnn trains a recurrent network that jointly predicts the type and the
// arrival time of the next event in a sequence.
package jointrnn

import (
	"context"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorgonia/jointrnn/dataset"
	"github.com/gorgonia/jointrnn/jointnet"
	"github.com/gorgonia/jointrnn/machine"
	"github.com/gorgonia/jointrnn/metrics"
	"github.com/gorgonia/jointrnn/predict"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var validate = validator.New()

// Trainer is the top level structure and the entry point of the API.
// It owns a training machine unrolled over BPTT steps and a single step test machine
// sharing the same weights.
type Trainer struct {
	Statistics

	conf  Config
	runID uuid.UUID
	log   *logrus.Entry
	agg   *metrics.Aggregator[float32]

	train, test *machine.Machine
	trainSet    *dataset.Dataset
	testSet     *dataset.Dataset

	iter int
}

// New builds both networks and compiles them.
func New(conf Config, trainSet, testSet *dataset.Dataset) (*Trainer, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if trainSet == nil || testSet == nil {
		return nil, errors.Wrap(jointnet.ErrConfig, "a training and a test set are required")
	}
	for _, d := range []*dataset.Dataset{trainSet, testSet} {
		if d.NumEventTypes > conf.NNConf.NumEventTypes {
			return nil, errors.Wrapf(jointnet.ErrConfig, "data has %d event types, the network %d", d.NumEventTypes, conf.NNConf.NumEventTypes)
		}
	}

	logger := conf.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	runID := uuid.New()

	a, err := jointnet.NewAssembler(conf.NNConf)
	if err != nil {
		return nil, err
	}
	trainNet, err := a.BuildTraining(conf.NNConf.BPTT)
	if err != nil {
		return nil, errors.WithMessage(err, "unable to build the training graph")
	}
	testNet, err := a.BuildTest()
	if err != nil {
		return nil, errors.WithMessage(err, "unable to build the test graph")
	}

	train, err := machine.New(trainNet, machine.Training(conf.LearnRate))
	if err != nil {
		return nil, errors.WithMessage(err, "unable to compile the training graph")
	}
	test, err := machine.New(testNet)
	if err != nil {
		train.Close()
		return nil, errors.WithMessage(err, "unable to compile the test graph")
	}

	t := &Trainer{
		Statistics: makeStatistics(),
		conf:       conf,
		runID:      runID,
		log:        logger.WithFields(logrus.Fields{"run": runID.String(), "name": conf.Name}),
		agg:        metrics.NewAggregator[float32](conf.NNConf),
		train:      train,
		test:       test,
		trainSet:   trainSet,
		testSet:    testSet,
	}
	t.log.WithFields(logrus.Fields{
		"train_nodes": trainNet.Graph.Len(),
		"test_nodes":  testNet.Graph.Len(),
		"params":      trainNet.Params.Len(),
		"loss":        conf.NNConf.Loss,
	}).Info("networks compiled")
	return t, nil
}

// RunID identifies this trainer in logs.
func (t *Trainer) RunID() uuid.UUID { return t.runID }

// Learn runs conf.Iterations training batches, cycling through the training set.
// Every TestInterval iterations, and once at the end, the whole test set is evaluated.
func (t *Trainer) Learn(ctx context.Context) error {
	loader := dataset.NewTrainLoader(t.trainSet, t.conf.NNConf.BatchSize, t.conf.NNConf.BPTT)
	t.train.ResetCarry()

	var epoch, inEpoch int
	for t.iter = 0; t.iter < t.conf.Iterations; t.iter++ {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}
		b, ok := loader.Next()
		if !ok {
			if inEpoch == 0 {
				return errors.Wrapf(jointnet.ErrConfig, "no sequence is longer than %d events", t.conf.NNConf.BPTT)
			}
			epoch++
			inEpoch = 0
			t.log.WithField("epoch", epoch).Debug("training set exhausted, starting over")
			loader.Reset()
			if b, ok = loader.Next(); !ok {
				return errors.New("training loader is empty after a reset")
			}
		}
		inEpoch++

		rec, err := t.train.Run(b)
		if err != nil {
			return errors.WithMessagef(err, "training iteration %d", t.iter)
		}
		r, err := t.agg.SummarizeTraining(t.iter, rec, b.Samples)
		dataset.ReturnBatch(b)
		if err != nil {
			return err
		}
		if err = t.report(r); err != nil {
			return err
		}

		if t.conf.TestInterval > 0 && (t.iter+1)%t.conf.TestInterval == 0 {
			if _, err = t.Evaluate(ctx); err != nil {
				return err
			}
		}
	}
	if t.conf.TestInterval == 0 || t.conf.Iterations%t.conf.TestInterval != 0 {
		if _, err := t.Evaluate(ctx); err != nil {
			return err
		}
	}
	return t.flush()
}

// Evaluate copies the current weights into the test network and runs it over every
// transition of the test set. Predictions go to conf.Results when it is set.
func (t *Trainer) Evaluate(ctx context.Context) (metrics.Report, error) {
	if err := t.test.SyncFrom(t.train); err != nil {
		return metrics.Report{}, err
	}
	t.test.ResetCarry()

	total := make(jointnet.LossRecord[float32])
	var samples, written int
	loader := dataset.NewTestLoader(t.testSet, t.conf.NNConf.BatchSize)
	for b, ok := loader.Next(); ok; b, ok = loader.Next() {
		if err := ctx.Err(); err != nil {
			return metrics.Report{}, errors.WithStack(err)
		}
		rec, err := t.test.Run(b)
		if err != nil {
			return metrics.Report{}, errors.WithMessage(err, "evaluating")
		}
		metrics.Accumulate(total, rec)
		samples += b.Samples

		if t.conf.Results != nil {
			n, err := t.writePredictions()
			if err != nil {
				return metrics.Report{}, err
			}
			written += n
		}
		dataset.ReturnBatch(b)
	}

	r, err := t.agg.SummarizeTesting(t.iter, total, samples)
	if err != nil {
		return metrics.Report{}, errors.WithMessage(err, "empty test set")
	}
	t.log.WithFields(logrus.Fields{"iter": t.iter, "samples": samples, "predictions": written}).Debug("evaluated")
	return r, t.report(r)
}

func (t *Trainer) writePredictions() (int, error) {
	times, err := t.test.Output(jointnet.At(jointnet.TimeOut, 0))
	if err != nil {
		return 0, err
	}
	scores, err := t.test.Output(jointnet.At(jointnet.EventOut, 0))
	if err != nil {
		return 0, err
	}
	it, err := predict.Decode(times, scores)
	if err != nil {
		return 0, err
	}
	return predict.Write(t.conf.Results, it)
}

func (t *Trainer) report(r metrics.Report) error {
	t.update(r)
	if r.Phase == metrics.Testing {
		t.log.WithFields(logrus.Fields{"iter": r.Iter, "phase": r.Phase}).Info(r.String())
	}
	if t.conf.Sink == nil {
		return nil
	}
	return errors.WithMessage(t.conf.Sink.Encode(r), "reporting")
}

func (t *Trainer) flush() error {
	if t.conf.Sink == nil {
		return nil
	}
	return t.conf.Sink.Flush()
}

// Save writes the weights into filename.
func (t *Trainer) Save(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	return t.train.Save(f)
}

// Load reads weights written by Save into both networks.
func (t *Trainer) Load(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	if err = t.train.Load(f); err != nil {
		return errors.WithMessagef(err, "loading %s", filename)
	}
	return t.test.SyncFrom(t.train)
}

// ExecLog returns the execution log of the last test pass.
func (t *Trainer) ExecLog() string { return t.test.ExecLog() }

// Close releases both machines.
func (t *Trainer) Close() error {
	err1 := t.train.Close()
	err2 := t.test.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
