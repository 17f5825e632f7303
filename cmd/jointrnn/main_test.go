package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphCmd(t *testing.T) {
	defer viper.Reset()
	cmd := newGraphCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--num-events", "3", "--bptt", "2", "--hidden2", "4"})
	require.NoError(t, cmd.Execute())

	dot := out.String()
	assert.True(t, strings.HasPrefix(dot, "digraph"), dot)
	assert.Contains(t, dot, `"relu_hidden_1"`)
	assert.Contains(t, dot, `"hidden_2_0"`)
	assert.NotContains(t, dot, `"expnll_0"`)
}

func TestGraphCmd_BadLoss(t *testing.T) {
	defer viper.Reset()
	cmd := newGraphCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--num-events", "3", "--loss", "poisson"})
	assert.Error(t, cmd.Execute())
}

func TestTrainCmd(t *testing.T) {
	defer viper.Reset()
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		return p
	}
	ev := write("train.ev", "0 1 2 1 0 2\n2 1 0 1\n")
	dt := write("train.dt", "0 1 2 1 0.5 0.5\n0 1 1 2\n")
	results := filepath.Join(dir, "pred.txt")
	stats := filepath.Join(dir, "stats.csv")
	weights := filepath.Join(dir, "w.gob")

	log.SetOutput(new(bytes.Buffer))
	cmd := newTrainCmd()
	cmd.SetArgs([]string{
		"--train-events", ev, "--train-times", dt,
		"--test-events", ev, "--test-times", dt,
		"--bptt", "2", "--batch", "2", "--embed", "3", "--hidden", "4",
		"--iters", "3", "--test-interval", "0",
		"--results", results, "--stats", stats, "--save", weights,
	})
	require.NoError(t, cmd.Execute())

	pred, err := os.ReadFile(results)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(pred)), "\n"), 5+3)
	for _, p := range []string{stats, weights} {
		fi, err := os.Stat(p)
		require.NoError(t, err)
		assert.NotZero(t, fi.Size())
	}
}

func TestServeMetrics(t *testing.T) {
	log.SetOutput(new(bytes.Buffer))
	reg := prometheus.NewRegistry()
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "served"})
	reg.MustRegister(g)

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := serveMetrics(ctx, "127.0.0.1:0", reg)
	require.NoError(t, err)

	url := "http://" + srv.addr.String() + "/metrics"
	resp, err := http.Get(url)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case <-srv.done:
	case <-time.After(5 * time.Second):
		t.Fatal("server still running after the context was cancelled")
	}
	assert.NoError(t, srv.Close())

	if resp, err = http.Get(url); err == nil {
		resp.Body.Close()
		t.Errorf("Expected the server to be gone")
	}
}
