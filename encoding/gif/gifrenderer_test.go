package gif

import (
	"bytes"
	"image/gif"
	"testing"

	"github.com/gorgonia/jointrnn/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewGifEncoder(&buf, "jointrnn", 400, 600)
	var _ metrics.Sink = enc

	require.NoError(t, enc.Flush())
	assert.Zero(t, buf.Len(), "nothing to write without frames")

	require.NoError(t, enc.Encode(metrics.Report{Phase: metrics.Training, Iter: 0, MAE: 0.5, RMSE: 0.7, NLL: 1.1}))
	require.NoError(t, enc.Encode(metrics.Report{Phase: metrics.Testing, Iter: 1, MAE: 0.4, HasExpNLL: true, ExpNLL: 2}))
	assert.Equal(t, 2, enc.Frames())
	require.NoError(t, enc.Flush())

	g, err := gif.DecodeAll(&buf)
	require.NoError(t, err)
	require.Len(t, g.Image, 2)
	assert.Equal(t, []int{0, 300}, g.Delay)
	b := g.Image[0].Bounds()
	assert.True(t, b.Dx() <= 600 && b.Dy() <= 400, "%v", b)
}
