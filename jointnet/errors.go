package jointnet

import "github.com/pkg/errors"

var (
	// ErrConfig is returned for missing or invalid dimensions.
	ErrConfig = errors.New("configuration error")

	// ErrTopology is returned when a node or parameter is registered twice,
	// or when a node references something that does not exist.
	ErrTopology = errors.New("topology error")
)

func topologyErr(format string, args ...interface{}) error {
	return errors.Wrapf(ErrTopology, format, args...)
}
