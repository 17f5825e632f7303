package jointnet

import (
	"fmt"
	"strconv"
	"strings"
)

// Role is the semantic role of a node within one unrolled step.
type Role byte

const (
	LastHidden Role = iota // the externally supplied recurrent carry
	EventInput
	TimeInput
	Embed
	ReLUEmbed
	Hidden
	ReLUHidden
	Hidden2
	ReLUH2
	EventOut
	TimeOut
	NLL
	MSE
	MAE
	ErrCnt
	ExpNLL

	MAXROLE
)

var roleNames = [...]string{
	LastHidden: "last_hidden",
	EventInput: "event_input",
	TimeInput:  "time_input",
	Embed:      "embed",
	ReLUEmbed:  "relu_embed",
	Hidden:     "hidden",
	ReLUHidden: "relu_hidden",
	Hidden2:    "hidden_2",
	ReLUH2:     "relu_h2",
	EventOut:   "event_out",
	TimeOut:    "time_out",
	NLL:        "nll",
	MSE:        "mse",
	MAE:        "mae",
	ErrCnt:     "err_cnt",
	ExpNLL:     "expnll",
}

func (r Role) String() string {
	if r < MAXROLE {
		return roleNames[r]
	}
	return fmt.Sprintf("Role(%d)", byte(r))
}

// Kind is the execution category of a node.
type Kind byte

const (
	Input Kind = iota
	Transform
	Activation
	Loss
)

func (k Kind) String() string {
	switch k {
	case Input:
		return "input"
	case Transform:
		return "transform"
	case Activation:
		return "activation"
	case Loss:
		return "loss"
	}
	return fmt.Sprintf("Kind(%d)", byte(k))
}

// Kind returns the execution category every node of this role has.
func (r Role) Kind() Kind {
	switch r {
	case LastHidden, EventInput, TimeInput:
		return Input
	case Embed, Hidden, Hidden2, EventOut, TimeOut:
		return Transform
	case ReLUEmbed, ReLUHidden, ReLUH2:
		return Activation
	}
	return Loss
}

// ID identifies a node: a role at a time step. LastHidden ignores the step.
type ID struct {
	Role Role
	Step int
}

// At makes an ID for role r at step t.
func At(r Role, t int) ID {
	if r == LastHidden {
		return ID{Role: LastHidden}
	}
	return ID{Role: r, Step: t}
}

// String returns the key the execution engine sees, e.g. "relu_hidden_3".
func (id ID) String() string {
	if id.Role == LastHidden {
		return roleNames[LastHidden]
	}
	return id.Role.String() + "_" + strconv.Itoa(id.Step)
}

// ParseID is the inverse of ID.String.
func ParseID(name string) (ID, error) {
	if name == roleNames[LastHidden] {
		return ID{Role: LastHidden}, nil
	}
	i := strings.LastIndexByte(name, '_')
	if i <= 0 {
		return ID{}, topologyErr("malformed node name %q", name)
	}
	step, err := strconv.Atoi(name[i+1:])
	if err != nil || step < 0 {
		return ID{}, topologyErr("malformed step in node name %q", name)
	}
	prefix := name[:i]
	for r := EventInput; r < MAXROLE; r++ {
		if roleNames[r] == prefix {
			return ID{Role: r, Step: step}, nil
		}
	}
	return ID{}, topologyErr("unknown role in node name %q", name)
}
