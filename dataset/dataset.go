// Package dataset loads event sequences and cuts them into per-step batches.
package dataset

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Sequence is one stream of events. Times[i] is the time elapsed between event i-1 and event i.
type Sequence struct {
	Events []int
	Times  []float64
}

// Len returns the number of events.
func (s Sequence) Len() int { return len(s.Events) }

// Dataset is a set of sequences over a fixed vocabulary of event types.
type Dataset struct {
	Seqs          []Sequence
	NumEventTypes int
}

// NumSamples is the number of (event, next event) transitions across all sequences.
func (d *Dataset) NumSamples() int {
	var n int
	for _, s := range d.Seqs {
		if s.Len() > 1 {
			n += s.Len() - 1
		}
	}
	return n
}

// Load reads two parallel files: each line of events is a sequence of space separated
// event type indices, and the same line of times holds the matching inter-arrival times.
func Load(events, times io.Reader) (*Dataset, error) {
	es := bufio.NewScanner(events)
	ts := bufio.NewScanner(times)
	es.Buffer(nil, 1<<24)
	ts.Buffer(nil, 1<<24)

	d := new(Dataset)
	var line int
	for es.Scan() {
		line++
		if !ts.Scan() {
			return nil, errors.Errorf("times has fewer lines than events (line %d)", line)
		}
		ef := strings.Fields(es.Text())
		tf := strings.Fields(ts.Text())
		if len(ef) != len(tf) {
			return nil, errors.Errorf("line %d: %d events but %d times", line, len(ef), len(tf))
		}
		if len(ef) == 0 {
			continue
		}
		seq := Sequence{
			Events: make([]int, len(ef)),
			Times:  make([]float64, len(tf)),
		}
		for i := range ef {
			e, err := strconv.Atoi(ef[i])
			if err != nil || e < 0 {
				return nil, errors.Errorf("line %d: bad event %q", line, ef[i])
			}
			t, err := strconv.ParseFloat(tf[i], 64)
			if err != nil || t < 0 {
				return nil, errors.Errorf("line %d: bad time %q", line, tf[i])
			}
			seq.Events[i] = e
			seq.Times[i] = t
			if e >= d.NumEventTypes {
				d.NumEventTypes = e + 1
			}
		}
		d.Seqs = append(d.Seqs, seq)
	}
	if err := es.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	if ts.Scan() {
		return nil, errors.Errorf("times has more lines than events")
	}
	if err := ts.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	return d, nil
}

// LoadFiles is Load on two files.
func LoadFiles(eventPath, timePath string) (*Dataset, error) {
	ef, err := os.Open(eventPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer ef.Close()
	tf, err := os.Open(timePath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer tf.Close()
	d, err := Load(ef, tf)
	return d, errors.WithMessagef(err, "loading %s and %s", eventPath, timePath)
}
