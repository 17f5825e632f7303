// Package predict turns the raw outputs of a forward pass into per-sample predictions.
package predict

import (
	"bufio"
	"io"
	"math"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Pair is the prediction for one sample.
type Pair struct {
	Time  float64 // predicted inter-arrival time
	Class int     // predicted event type, in [0, num_event_types)
}

// Iterator yields one Pair per row, in row order. It cannot be restarted.
type Iterator struct {
	times, scores mat.Matrix
	rows, cols    int

	i    int
	cur  Pair
	done bool
	err  error
}

// Decode pairs each row of the time output (rows×1) with the arg-max of the same row
// of the class scores (rows×num_event_types). Ties go to the lowest index. A row holding
// a NaN score stops the iteration, see Err.
func Decode(times, scores mat.Matrix) (*Iterator, error) {
	tr, tc := times.Dims()
	sr, sc := scores.Dims()
	if tc != 1 {
		return nil, errors.Errorf("time output must have one column, got %d", tc)
	}
	if tr != sr {
		return nil, errors.Errorf("time output has %d rows but class scores have %d", tr, sr)
	}
	if sc < 1 {
		return nil, errors.Errorf("class scores have no columns")
	}
	return &Iterator{
		times:  times,
		scores: scores,
		rows:   tr,
		cols:   sc,
	}, nil
}

// Next advances to the next sample. It returns false once every row has been produced.
func (it *Iterator) Next() bool {
	if it.done || it.i >= it.rows {
		it.done = true
		return false
	}
	class, ok := argmax(it.scores, it.i, it.cols)
	if !ok {
		it.err = errors.Errorf("row %d has a NaN class score", it.i)
		it.done = true
		return false
	}
	it.cur = Pair{
		Time:  it.times.At(it.i, 0),
		Class: class,
	}
	it.i++
	return true
}

// Err returns the error that stopped the iteration, if any.
func (it *Iterator) Err() error { return it.err }

// Pair returns the current sample. It is only valid after Next returned true.
func (it *Iterator) Pair() Pair { return it.cur }

// Len returns the number of samples the iterator produces in total.
func (it *Iterator) Len() int { return it.rows }

// argmax returns false if the row holds a NaN.
func argmax(m mat.Matrix, row, cols int) (int, bool) {
	best := m.At(row, 0)
	if math.IsNaN(best) {
		return 0, false
	}
	var retVal int
	for j := 1; j < cols; j++ {
		v := m.At(row, j)
		if math.IsNaN(v) {
			return 0, false
		}
		if v > best {
			best = v
			retVal = j
		}
	}
	return retVal, true
}

// Write drains it into w, one "<time> <class>" line per sample with six decimal digits.
// It returns the number of lines written, and the iterator's error if it stopped early.
func Write(w io.Writer, it *Iterator) (n int, err error) {
	bw := bufio.NewWriter(w)
	var line []byte
	for it.Next() {
		p := it.Pair()
		line = strconv.AppendFloat(line[:0], p.Time, 'f', 6, 64)
		line = append(line, ' ')
		line = strconv.AppendInt(line, int64(p.Class), 10)
		line = append(line, '\n')
		if _, err = bw.Write(line); err != nil {
			return n, errors.WithStack(err)
		}
		n++
	}
	if err = bw.Flush(); err != nil {
		return n, errors.WithStack(err)
	}
	return n, it.Err()
}
