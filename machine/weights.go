package machine

import (
	"encoding/gob"
	"io"

	"github.com/gorgonia/jointrnn/jointnet"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

type savedWeight struct {
	Name  string
	Shape []int
	Data  []float32
}

func (m *Machine) weightData(name jointnet.ParamName) ([]float32, error) {
	w, ok := m.weights[name]
	if !ok {
		return nil, errors.Wrapf(jointnet.ErrTopology, "no weight %v", name)
	}
	data, ok := w.Value().Data().([]float32)
	if !ok {
		return nil, errors.Errorf("weight %v holds %T", name, w.Value().Data())
	}
	return data, nil
}

// SyncFrom copies every weight of src into m. Both machines must have been compiled from
// the same parameter store.
func (m *Machine) SyncFrom(src *Machine) error {
	for _, name := range m.order {
		dst, err := m.weightData(name)
		if err != nil {
			return err
		}
		from, err := src.weightData(name)
		if err != nil {
			return err
		}
		if len(dst) != len(from) {
			return errors.Wrapf(jointnet.ErrTopology, "weight %v has %d values, source has %d", name, len(dst), len(from))
		}
		copy(dst, from)
	}
	return nil
}

// Save writes the weights as a gob stream.
func (m *Machine) Save(w io.Writer) error {
	enc := gob.NewEncoder(w)
	for _, name := range m.order {
		data, err := m.weightData(name)
		if err != nil {
			return err
		}
		sw := savedWeight{
			Name:  name.String(),
			Shape: m.weights[name].Shape().Clone(),
			Data:  data,
		}
		if err := enc.Encode(&sw); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// Load reads weights written by Save.
func (m *Machine) Load(r io.Reader) error {
	dec := gob.NewDecoder(r)
	for _, name := range m.order {
		var sw savedWeight
		if err := dec.Decode(&sw); err != nil {
			return errors.Wrapf(err, "decoding %v", name)
		}
		if sw.Name != name.String() {
			return errors.Wrapf(jointnet.ErrTopology, "expected weight %v, found %v", name, sw.Name)
		}
		w := m.weights[name]
		if !w.Shape().Eq(tensor.Shape(sw.Shape)) {
			return errors.Wrapf(jointnet.ErrTopology, "weight %v has shape %v, saved %v", name, w.Shape(), sw.Shape)
		}
		v := tensor.New(tensor.WithShape(sw.Shape...), tensor.WithBacking(sw.Data))
		if err := G.Let(w, v); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}
