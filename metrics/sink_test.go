package metrics

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewTextSink(&buf)
	require.NoError(t, s.Encode(Report{Phase: Training, Iter: 3, MAE: 1, RMSE: 2, NLL: 3, ErrRate: 0.5}))
	require.NoError(t, s.Encode(Report{Phase: Testing, MAE: 1, RMSE: 2, NLL: 3, ErrRate: 0.25, ExpNLL: 4, HasExpNLL: true}))
	require.NoError(t, s.Flush())

	expected := "train iter=3\tmae: 1.0000\trmse: 2.0000\tnll: 3.0000\terr_rate: 0.5000\n" +
		"test_mae: 1.0000\ttest_rmse: 2.0000\ttest_nll: 3.0000\ttest_err_rate: 0.2500\ttest_expnll: 4.0000\n"
	assert.Equal(t, expected, buf.String())
}

func TestTextSink_Pipe(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	s := NewTextSink(w)
	require.NoError(t, s.Encode(Report{Phase: Testing, MAE: 1}))
	require.NoError(t, s.Flush())
	require.NoError(t, w.Close())

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "test_mae: 1.0000\ttest_rmse: 0.0000\ttest_nll: 0.0000\ttest_err_rate: 0.0000\n", string(out))

	assert.NoError(t, NewTextSink(os.Stdout).Flush())
}

func TestPromSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPromSink(reg, "jointrnn")
	require.NoError(t, err)

	var buf bytes.Buffer
	sinks := Sinks{s, NewTextSink(&buf)}
	require.NoError(t, sinks.Encode(Report{Phase: Testing, Iter: 9, MAE: 0.5, RMSE: 1.5, NLL: 2.5, ErrRate: 0.1}))
	require.NoError(t, sinks.Flush())

	assert.Equal(t, 0.5, testutil.ToFloat64(s.values.WithLabelValues("test", "test_mae")))
	assert.Equal(t, 1.5, testutil.ToFloat64(s.values.WithLabelValues("test", "test_rmse")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.reports.WithLabelValues("test")))
	assert.Equal(t, 9.0, testutil.ToFloat64(s.iter))
	assert.NotEmpty(t, buf.String())

	if _, err = NewPromSink(reg, "jointrnn"); err == nil {
		t.Errorf("Expected registering twice to fail")
	}
}
