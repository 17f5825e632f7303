package metrics

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Sink receives reports.
//
// A TextSink writes lines, a PromSink exports gauges, and the gif encoder renders frames.
type Sink interface {
	Encode(r Report) error
	Flush() error
}

// TextSink writes one line per report.
type TextSink struct {
	w io.Writer
}

// NewTextSink writes reports to w.
func NewTextSink(w io.Writer) *TextSink { return &TextSink{w: w} }

func (s *TextSink) Encode(r Report) error {
	_, err := fmt.Fprintln(s.w, r.String())
	return errors.WithStack(err)
}

// Flush is a no-op: every line is written by Encode. Stream writers such as pipes and
// terminals cannot be synced.
func (s *TextSink) Flush() error { return nil }

// Sinks fans a report out to many sinks.
type Sinks []Sink

func (ss Sinks) Encode(r Report) error {
	var errs manyErr
	for _, s := range ss {
		if err := s.Encode(r); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (ss Sinks) Flush() error {
	var errs manyErr
	for _, s := range ss {
		if err := s.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// PromSink exports the latest value of every metric as a gauge labelled by phase and field.
type PromSink struct {
	values  *prometheus.GaugeVec
	reports *prometheus.CounterVec
	iter    prometheus.Gauge
}

// NewPromSink creates the collectors and registers them with reg.
func NewPromSink(reg prometheus.Registerer, namespace string) (*PromSink, error) {
	s := &PromSink{
		values: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "metric",
				Help:      "Latest normalized value of each reported metric",
			},
			[]string{"phase", "field"},
		),
		reports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_total",
				Help:      "Number of reports produced",
			},
			[]string{"phase"},
		),
		iter: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "iteration",
				Help:      "Training iteration of the latest report",
			},
		),
	}
	for _, c := range []prometheus.Collector{s.values, s.reports, s.iter} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "registering prometheus collector")
		}
	}
	return s, nil
}

func (s *PromSink) Encode(r Report) error {
	phase := r.Phase.String()
	for _, f := range r.Fields() {
		s.values.WithLabelValues(phase, f.Name).Set(f.Value)
	}
	s.reports.WithLabelValues(phase).Inc()
	s.iter.Set(float64(r.Iter))
	return nil
}

func (s *PromSink) Flush() error { return nil }

type manyErr []error

func (err manyErr) Error() string {
	var buf bytes.Buffer
	for _, e := range err {
		fmt.Fprintln(&buf, e.Error())
	}
	return buf.String()
}
