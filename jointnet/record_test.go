package jointnet

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLossRecord(t *testing.T) {
	rec := LossRecord[float64]{
		At(MAE, 1):    4,
		At(NLL, 0):    1,
		At(ErrCnt, 0): 2,
		At(NLL, 1):    3,
	}
	assert.Equal(t, []ID{At(NLL, 0), At(ErrCnt, 0), At(NLL, 1), At(MAE, 1)}, rec.Keys())

	v, err := rec.Get(At(NLL, 1))
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
	_, err = rec.Get(At(MSE, 0))
	assert.Equal(t, ErrTopology, errors.Cause(err))

	named := rec.Named()
	assert.Equal(t, 4.0, named["mae_1"])
	back, err := ParseLossRecord(named)
	require.NoError(t, err)
	assert.Equal(t, rec, back)
}

func TestParseLossRecord_Errors(t *testing.T) {
	_, err := ParseLossRecord(map[string]float32{"hidden_0": 1})
	assert.Equal(t, ErrTopology, errors.Cause(err))
	_, err = ParseLossRecord(map[string]float32{"nll_x": 1})
	assert.Equal(t, ErrTopology, errors.Cause(err))
}
