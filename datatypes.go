package jointrnn

import (
	"io"

	"github.com/gorgonia/jointrnn/jointnet"
	"github.com/gorgonia/jointrnn/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config configures a Trainer.
type Config struct {
	Name   string
	NNConf jointnet.Config

	Iterations   int     `validate:"gte=1"` // number of training batches to run
	TestInterval int     `validate:"gte=0"` // evaluate every TestInterval iterations. 0 evaluates only at the end
	LearnRate    float64 `validate:"gt=0"`

	// extensions
	Sink    metrics.Sink   // receives every training and testing report
	Results io.Writer      // receives the predictions of every evaluation, if set
	Logger  *logrus.Logger // defaults to logrus.StandardLogger()
}

// DefaultConfig returns a training configuration for numEventTypes event types.
func DefaultConfig(numEventTypes int) Config {
	return Config{
		Name:         "jointrnn",
		NNConf:       jointnet.DefaultConf(numEventTypes),
		Iterations:   1000,
		TestInterval: 100,
		LearnRate:    0.01,
	}
}

// Validate checks the training options and the network configuration.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(jointnet.ErrConfig, err.Error())
	}
	return c.NNConf.Validate()
}

// ExecLogger is anything that can return the execution log.
type ExecLogger interface {
	ExecLog() string
}
