package jointnet

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shapes(s *ParamStore) map[string][2]int {
	retVal := make(map[string][2]int)
	for _, p := range s.All() {
		r, c := p.Shape()
		retVal[p.Name.String()] = [2]int{r, c}
	}
	return retVal
}

func TestInitParams(t *testing.T) {
	conf := Config{
		NumEventTypes: 7,
		BPTT:          2,
		BatchSize:     4,
		Embed:         5,
		Hidden:        6,
		TimeDim:       2,
		WScale:        0.1,
	}

	s := NewParamStore()
	require.NoError(t, InitParams(s, conf))
	assert.Equal(t, map[string][2]int{
		"w_embed":     {7, 5},
		"w_event2h":   {5, 6},
		"w_time2h":    {2, 6},
		"w_h2h":       {6, 6},
		"w_event_out": {6, 7},
		"w_time_out":  {6, 1},
	}, shapes(s))
	assert.False(t, s.Has(WHidden2))

	conf.Hidden2 = 3
	s = NewParamStore()
	require.NoError(t, InitParams(s, conf))
	assert.Equal(t, map[string][2]int{
		"w_embed":     {7, 5},
		"w_event2h":   {5, 6},
		"w_time2h":    {2, 6},
		"w_h2h":       {6, 6},
		"w_hidden2":   {6, 3},
		"w_event_out": {3, 7},
		"w_time_out":  {3, 1},
	}, shapes(s))

	for _, p := range s.All() {
		assert.Equal(t, 0.1, p.Init.Scale, "%v", p.Name)
	}
}

func TestParamStore_CreateOrGet(t *testing.T) {
	s := NewParamStore()
	a, err := s.CreateOrGet(WH2H, 4, 4, Init{Scale: 1})
	require.NoError(t, err)
	b, err := s.CreateOrGet(WH2H, 4, 4, Init{Scale: 1})
	require.NoError(t, err)
	assert.True(t, a == b, "Expected the same instance to be returned")
	assert.Equal(t, 1, s.Len())

	if _, err = s.CreateOrGet(WH2H, 4, 5, Init{Scale: 1}); errors.Cause(err) != ErrTopology {
		t.Errorf("Expected a topology error on shape mismatch. Got %v", err)
	}
	if _, err = s.CreateOrGet(WEmbed, 0, 5, Init{}); errors.Cause(err) != ErrTopology {
		t.Errorf("Expected a topology error on degenerate shape. Got %v", err)
	}
	if _, err = s.Get(WTimeOut); errors.Cause(err) != ErrTopology {
		t.Errorf("Expected a topology error for a weight never created. Got %v", err)
	}
}
