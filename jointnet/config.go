package jointnet

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// LossType selects which time loss drives the gradient.
type LossType byte

const (
	LossMSE LossType = iota // squared error on the time output
	LossExp                 // exponential intensity negative log likelihood
)

func (l LossType) String() string {
	switch l {
	case LossMSE:
		return "mse"
	case LossExp:
		return "exp"
	}
	return fmt.Sprintf("LossType(%d)", byte(l))
}

// ParseLossType parses "mse" (or "standard") and "exp".
func ParseLossType(s string) (LossType, error) {
	switch strings.ToLower(s) {
	case "mse", "standard", "":
		return LossMSE, nil
	case "exp", "exponential":
		return LossExp, nil
	}
	return 0, errors.Wrapf(ErrConfig, "unknown loss type %q", s)
}

// Config configures the joint event/time network.
type Config struct {
	NumEventTypes int `validate:"gte=1"` // number of event types (vocabulary)
	BPTT          int `validate:"gte=1"` // unroll depth
	BatchSize     int `validate:"gte=1"`

	Embed   int `validate:"gte=1"` // event embedding width
	Hidden  int `validate:"gte=1"` // recurrent hidden width
	Hidden2 int `validate:"gte=0"` // optional second hidden width. 0 disables it
	TimeDim int `validate:"gte=1"` // time feature width

	WScale float64  `validate:"gt=0"` // std of the zero centred weight init
	Loss   LossType `validate:"lte=1"`
	Lambda float64  `validate:"gte=0"` // weight of the squared error loss in MSE mode
}

var validate = validator.New()

// DefaultConf returns a usable configuration for the given number of event types.
func DefaultConf(numEventTypes int) Config {
	return Config{
		NumEventTypes: numEventTypes,
		BPTT:          3,
		BatchSize:     64,
		Embed:         64,
		Hidden:        128,
		TimeDim:       1,
		WScale:        0.01,
		Loss:          LossMSE,
		Lambda:        1,
	}
}

// Validate checks the configuration. The returned error wraps ErrConfig.
func (conf Config) Validate() error {
	if err := validate.Struct(conf); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", e.Field(), e.Tag(), e.Param(), e.Value()))
			}
			return errors.Wrap(ErrConfig, strings.Join(msgs, "; "))
		}
		return errors.Wrap(ErrConfig, err.Error())
	}
	return nil
}

func (conf Config) IsValid() bool { return conf.Validate() == nil }

// TopHidden is the width of the representation fed into the output heads.
func (conf Config) TopHidden() int {
	if conf.Hidden2 > 0 {
		return conf.Hidden2
	}
	return conf.Hidden
}
