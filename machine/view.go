package machine

import (
	"github.com/gorgonia/jointrnn/jointnet"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// rowView exposes the active rows of a [batch, cols] output as a gonum matrix.
type rowView struct {
	data []float32
	cols int
	rows []int
}

func (v rowView) Dims() (r, c int) { return len(v.rows), v.cols }

func (v rowView) At(i, j int) float64 {
	if i < 0 || i >= len(v.rows) || j < 0 || j >= v.cols {
		panic(mat.ErrIndexOutOfRange)
	}
	return float64(v.data[v.rows[i]*v.cols+j])
}

func (v rowView) T() mat.Matrix { return mat.Transpose{Matrix: v} }

// Output returns the value of an output node after the last pass, restricted to the active rows.
func (m *Machine) Output(id jointnet.ID) (mat.Matrix, error) {
	if m.batch == nil {
		return nil, errors.New("the machine has not run yet")
	}
	data, err := m.floats(id)
	if err != nil {
		return nil, err
	}
	cols := len(data) / m.conf.BatchSize
	// the next pass overwrites the values in place
	own := make([]float32, len(data))
	copy(own, data)
	return rowView{data: own, cols: cols, rows: m.batch.ActiveRows()}, nil
}
