package metrics

import (
	"bytes"
	"fmt"
)

// Phase is the phase a report was produced in.
type Phase byte

const (
	Training Phase = iota
	Testing
)

func (p Phase) String() string {
	switch p {
	case Training:
		return "train"
	case Testing:
		return "test"
	}
	return fmt.Sprintf("Phase(%d)", byte(p))
}

// Report holds the normalized metrics of one summarization.
type Report struct {
	Phase Phase
	Iter  int // training iteration the report belongs to

	MAE     float64
	RMSE    float64
	NLL     float64
	ErrRate float64

	ExpNLL    float64
	HasExpNLL bool // set when the exponential intensity loss is active
}

// Field is a named metric value.
type Field struct {
	Name  string
	Value float64
}

// Fields returns the metrics in reporting order: mae, rmse, nll, err_rate, [expnll].
// Testing fields carry a "test_" prefix.
func (r Report) Fields() []Field {
	var prefix string
	if r.Phase == Testing {
		prefix = "test_"
	}
	retVal := []Field{
		{prefix + "mae", r.MAE},
		{prefix + "rmse", r.RMSE},
		{prefix + "nll", r.NLL},
		{prefix + "err_rate", r.ErrRate},
	}
	if r.HasExpNLL {
		retVal = append(retVal, Field{prefix + "expnll", r.ExpNLL})
	}
	return retVal
}

// String formats the report as one tab separated line, without a trailing newline.
func (r Report) String() string {
	var buf bytes.Buffer
	if r.Phase == Training {
		fmt.Fprintf(&buf, "train iter=%d\t", r.Iter)
	}
	for i, f := range r.Fields() {
		if i > 0 {
			buf.WriteByte('\t')
		}
		fmt.Fprintf(&buf, "%s: %.4f", f.Name, f.Value)
	}
	return buf.String()
}
