package machine

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/chewxy/math32"
	"github.com/gorgonia/jointrnn/dataset"
	"github.com/gorgonia/jointrnn/jointnet"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const events = `0 1 2 1 0 2 1
2 2 1 0
1 0 2
`

const times = `0 0.5 1 1.5 2 0.1 0.2
0 0.25 3 1
0 1 2
`

func smallConf() jointnet.Config {
	conf := jointnet.DefaultConf(3)
	conf.BPTT = 2
	conf.BatchSize = 2
	conf.Embed = 4
	conf.Hidden = 5
	conf.TimeDim = 2
	conf.WScale = 0.1
	return conf
}

func data(t *testing.T) *dataset.Dataset {
	d, err := dataset.Load(strings.NewReader(events), strings.NewReader(times))
	require.NoError(t, err)
	return d
}

func machines(t *testing.T, conf jointnet.Config) (train, test *Machine) {
	a, err := jointnet.NewAssembler(conf)
	require.NoError(t, err)
	trainNet, err := a.BuildTraining(conf.BPTT)
	require.NoError(t, err)
	testNet, err := a.BuildTest()
	require.NoError(t, err)

	train, err = New(trainNet, Training(0.01))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	test, err = New(testNet)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	return train, test
}

func checkRecord(t *testing.T, net *jointnet.Net, rec jointnet.LossRecord[float32], samples int) {
	losses := net.Graph.Losses()
	require.Len(t, rec, len(losses))
	for _, n := range losses {
		v, err := rec.Get(n.ID)
		require.NoError(t, err)
		assert.False(t, math32.IsNaN(v) || math32.IsInf(v, 0), "%v = %v", n.ID, v)
		switch n.ID.Role {
		case jointnet.ErrCnt:
			assert.True(t, v >= 0 && v <= float32(samples), "err_cnt %v", v)
		case jointnet.NLL, jointnet.MSE, jointnet.MAE:
			assert.True(t, v >= 0, "%v = %v", n.ID, v)
		}
	}
}

func TestTrainAndTest(t *testing.T) {
	for _, c := range []struct {
		name string
		mod  func(*jointnet.Config)
	}{
		{"mse", func(*jointnet.Config) {}},
		{"hidden2", func(c *jointnet.Config) { c.Hidden2 = 3 }},
		{"exp", func(c *jointnet.Config) { c.Loss = jointnet.LossExp }},
	} {
		t.Run(c.name, func(t *testing.T) {
			conf := smallConf()
			c.mod(&conf)
			train, test := machines(t, conf)
			defer train.Close()
			defer test.Close()

			d := data(t)
			tl := dataset.NewTrainLoader(d, conf.BatchSize, conf.BPTT)
			var batches int
			for b, ok := tl.Next(); ok; b, ok = tl.Next() {
				rec, err := train.Run(b)
				if err != nil {
					t.Fatalf("%+v", err)
				}
				checkRecord(t, train.Net(), rec, b.Samples)
				batches++
			}
			assert.NotZero(t, batches)

			require.NoError(t, test.SyncFrom(train))
			test.ResetCarry()
			el := dataset.NewTestLoader(d, conf.BatchSize)
			var samples int
			for b, ok := el.Next(); ok; b, ok = el.Next() {
				rec, err := test.Run(b)
				if err != nil {
					t.Fatalf("%+v", err)
				}
				checkRecord(t, test.Net(), rec, b.Samples)

				scores, err := test.Output(jointnet.At(jointnet.EventOut, 0))
				require.NoError(t, err)
				r, c := scores.Dims()
				assert.Equal(t, b.Samples, r)
				assert.Equal(t, conf.NumEventTypes, c)

				ts, err := test.Output(jointnet.At(jointnet.TimeOut, 0))
				require.NoError(t, err)
				r, c = ts.Dims()
				assert.Equal(t, b.Samples, r)
				assert.Equal(t, 1, c)
				samples += b.Samples
			}
			assert.Equal(t, d.NumSamples(), samples)
		})
	}
}

func TestTrainingMovesWeights(t *testing.T) {
	conf := smallConf()
	train, test := machines(t, conf)
	defer train.Close()
	defer test.Close()

	before, err := train.weightData(jointnet.WEventOut)
	require.NoError(t, err)
	before = append([]float32(nil), before...)

	b, ok := dataset.NewTrainLoader(data(t), conf.BatchSize, conf.BPTT).Next()
	require.True(t, ok)
	_, err = train.Run(b)
	require.NoError(t, err)

	after, err := train.weightData(jointnet.WEventOut)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestSyncAndPersistence(t *testing.T) {
	conf := smallConf()
	train, test := machines(t, conf)
	defer train.Close()
	defer test.Close()

	var buf bytes.Buffer
	require.NoError(t, train.Save(&buf))
	require.NoError(t, test.Load(&buf))
	for _, name := range train.order {
		a, err := train.weightData(name)
		require.NoError(t, err)
		b, err := test.weightData(name)
		require.NoError(t, err)
		assert.Equal(t, a, b, "%v", name)
	}

	// a machine with a second hidden layer has a different set of weights
	conf2 := smallConf()
	conf2.Hidden2 = 3
	train2, _ := machines(t, conf2)
	defer train2.Close()
	buf.Reset()
	require.NoError(t, train2.Save(&buf))
	err := test.Load(&buf)
	assert.True(t, errors.Is(err, jointnet.ErrTopology), "%v", err)
}

func TestBindErrors(t *testing.T) {
	conf := smallConf()
	train, test := machines(t, conf)
	defer train.Close()
	defer test.Close()

	b, ok := dataset.NewTestLoader(data(t), conf.BatchSize).Next()
	require.True(t, ok)
	_, err := train.Run(b)
	assert.Error(t, err, "single step batch on a two step graph")

	b.Events[0][0] = conf.NumEventTypes
	_, err = test.Run(b)
	assert.True(t, errors.Is(err, jointnet.ErrConfig), "%v", err)

	_, err = test.Output(jointnet.At(jointnet.EventOut, 0))
	assert.Error(t, err, "nothing was computed")
}

func TestExecLog(t *testing.T) {
	conf := smallConf()
	a, err := jointnet.NewAssembler(conf)
	require.NoError(t, err)
	net, err := a.BuildTest()
	require.NoError(t, err)
	m, err := New(net, WithExecLog())
	require.NoError(t, err)
	defer m.Close()

	b, ok := dataset.NewTestLoader(data(t), conf.BatchSize).Next()
	require.True(t, ok)
	_, err = m.Run(b)
	require.NoError(t, err)
	assert.NotEmpty(t, m.ExecLog())

	_, err = m.Output(jointnet.At(jointnet.Embed, 0))
	assert.Error(t, err, "embed is not read back")
}

func TestLossValues(t *testing.T) {
	conf := smallConf()
	conf.BatchSize = 3
	conf.Loss = jointnet.LossExp
	_, test := machines(t, conf)
	defer test.Close()

	b, ok := dataset.NewTestLoader(data(t), conf.BatchSize).Next()
	require.True(t, ok)
	require.Equal(t, 3, b.Samples)
	// row 1 drops out; its label would dominate every sum if it leaked through
	b.Active[1] = false
	b.Samples = 2
	b.NextTimes[0][1] = 100

	rec, err := test.Run(b)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	times, err := test.Output(jointnet.At(jointnet.TimeOut, 0))
	require.NoError(t, err)
	scores, err := test.Output(jointnet.At(jointnet.EventOut, 0))
	require.NoError(t, err)

	var mse, mae, expnll, nll, errCnt float64
	for i, r := range b.ActiveRows() {
		out, label := times.At(i, 0), b.NextTimes[0][r]
		d := out - label
		mse += d * d
		mae += math.Abs(d)
		expnll += math.Exp(out)*label - out

		var sum float64
		best := 0
		for j := 0; j < conf.NumEventTypes; j++ {
			sum += math.Exp(scores.At(i, j))
			if scores.At(i, j) > scores.At(i, best) {
				best = j
			}
		}
		next := b.NextEvents[0][r]
		nll -= math.Log(math.Exp(scores.At(i, next))/sum + 1e-10)
		if best != next {
			errCnt++
		}
	}

	for _, c := range []struct {
		role jointnet.Role
		want float64
	}{
		{jointnet.MSE, mse},
		{jointnet.MAE, mae},
		{jointnet.ExpNLL, expnll},
		{jointnet.NLL, nll},
		{jointnet.ErrCnt, errCnt},
	} {
		got, err := rec.Get(jointnet.At(c.role, 0))
		require.NoError(t, err)
		assert.InDelta(t, c.want, float64(got), 1e-4, "%v", c.role)
	}

	// the test network composes a cost too: nll + expnll in exp mode
	cost, err := test.Cost()
	require.NoError(t, err)
	assert.InDelta(t, nll+expnll, float64(cost), 1e-4)
}

func TestCostComposition(t *testing.T) {
	for _, c := range []struct {
		name   string
		loss   jointnet.LossType
		lambda float64
	}{
		{"mse", jointnet.LossMSE, 1},
		{"mse lambda", jointnet.LossMSE, 0.5},
		{"exp", jointnet.LossExp, 0.5},
	} {
		t.Run(c.name, func(t *testing.T) {
			conf := smallConf()
			conf.Loss = c.loss
			conf.Lambda = c.lambda
			train, test := machines(t, conf)
			defer train.Close()
			defer test.Close()

			_, err := train.Cost()
			assert.Error(t, err, "nothing ran yet")

			b, ok := dataset.NewTrainLoader(data(t), conf.BatchSize, conf.BPTT).Next()
			require.True(t, ok)
			rec, err := train.Run(b)
			if err != nil {
				t.Fatalf("%+v", err)
			}

			var want float64
			for step := 0; step < conf.BPTT; step++ {
				want += float64(rec[jointnet.At(jointnet.NLL, step)])
				if c.loss == jointnet.LossExp {
					want += float64(rec[jointnet.At(jointnet.ExpNLL, step)])
				} else {
					want += c.lambda * float64(rec[jointnet.At(jointnet.MSE, step)])
				}
			}
			cost, err := train.Cost()
			require.NoError(t, err)
			assert.InDelta(t, want, float64(cost), 1e-3*math.Max(1, want))
		})
	}
}
