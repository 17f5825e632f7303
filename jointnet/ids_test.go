package jointnet

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestID_String(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("event_input_3", At(EventInput, 3).String())
	assert.Equal("relu_hidden_0", At(ReLUHidden, 0).String())
	assert.Equal("hidden_2_4", At(Hidden2, 4).String())
	assert.Equal("relu_h2_1", At(ReLUH2, 1).String())
	assert.Equal("err_cnt_2", At(ErrCnt, 2).String())
	assert.Equal("expnll_0", At(ExpNLL, 0).String())
	assert.Equal("last_hidden", At(LastHidden, 9).String())
}

func TestParseID(t *testing.T) {
	for r := LastHidden; r < MAXROLE; r++ {
		for _, step := range []int{0, 1, 12} {
			id := At(r, step)
			got, err := ParseID(id.String())
			if err != nil {
				t.Errorf("%v: %v", id, err)
				continue
			}
			if got != id {
				t.Errorf("Round trip of %q: expected %#v. Got %#v", id.String(), id, got)
			}
		}
	}

	for _, bad := range []string{"", "hidden", "hidden_x", "nope_3", "_3", "hidden_-1"} {
		if _, err := ParseID(bad); errors.Cause(err) != ErrTopology {
			t.Errorf("%q: expected a topology error. Got %v", bad, err)
		}
	}
}

func TestRole_Kind(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(Input, LastHidden.Kind())
	assert.Equal(Input, TimeInput.Kind())
	assert.Equal(Transform, Hidden.Kind())
	assert.Equal(Transform, Hidden2.Kind())
	assert.Equal(Activation, ReLUH2.Kind())
	assert.Equal(Loss, ErrCnt.Kind())
	assert.Equal(Loss, ExpNLL.Kind())
}
