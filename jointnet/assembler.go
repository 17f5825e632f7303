package jointnet

import "github.com/pkg/errors"

// SlotKind is the kind of tensor a caller must supply for a bound node.
type SlotKind byte

const (
	SlotLastHidden SlotKind = iota // recurrent carry from the previous batch
	SlotEvent                      // event type of the current event
	SlotTime                       // inter-arrival time features of the current event
	SlotEventLabel                 // type of the next event
	SlotTimeLabel                  // inter-arrival time of the next event
)

func (k SlotKind) String() string {
	switch k {
	case SlotLastHidden:
		return "last_hidden"
	case SlotEvent:
		return "event"
	case SlotTime:
		return "time"
	case SlotEventLabel:
		return "event_label"
	case SlotTimeLabel:
		return "time_label"
	}
	return "unknown slot"
}

// Slot names an externally supplied tensor.
type Slot struct {
	Kind SlotKind
	Step int
}

// Bindings maps graph nodes to externally supplied tensors.
type Bindings struct {
	Features map[ID]Slot // input nodes
	Labels   map[ID]Slot // loss nodes
}

func makeBindings() Bindings {
	return Bindings{
		Features: make(map[ID]Slot),
		Labels:   make(map[ID]Slot),
	}
}

func (b Bindings) bindStep(conf Config, t int) {
	b.Features[At(EventInput, t)] = Slot{SlotEvent, t}
	b.Features[At(TimeInput, t)] = Slot{SlotTime, t}
	b.Labels[At(NLL, t)] = Slot{SlotEventLabel, t}
	b.Labels[At(ErrCnt, t)] = Slot{SlotEventLabel, t}
	b.Labels[At(MSE, t)] = Slot{SlotTimeLabel, t}
	b.Labels[At(MAE, t)] = Slot{SlotTimeLabel, t}
	if conf.Loss == LossExp {
		b.Labels[At(ExpNLL, t)] = Slot{SlotTimeLabel, t}
	}
}

// Net is an assembled, bound graph spanning Steps unrolled steps.
type Net struct {
	Config
	Graph    *Graph
	Params   *ParamStore
	Bindings Bindings
	Steps    int
	Carry    ID // recurrent hidden node produced by the final step
}

// Assembler drives a Builder across the unroll depth. It owns the shared weights,
// which are registered once when the assembler is created.
//
// Each graph can be built once. Building it again collides with the existing node names
// and fails with ErrTopology.
type Assembler struct {
	conf   Config
	params *ParamStore

	train *Graph
	test  *Graph
}

// NewAssembler validates conf and registers the shared weights.
func NewAssembler(conf Config) (*Assembler, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	params := NewParamStore()
	if err := InitParams(params, conf); err != nil {
		return nil, err
	}
	return &Assembler{
		conf:   conf,
		params: params,
		train:  NewGraph(),
		test:   NewGraph(),
	}, nil
}

// Params returns the shared weights.
func (a *Assembler) Params() *ParamStore { return a.params }

// Config returns the configuration the assembler was created with.
func (a *Assembler) Config() Config { return a.conf }

// BuildTraining unrolls depth steps into the training graph.
func (a *Assembler) BuildTraining(depth int) (*Net, error) {
	if depth < 1 {
		return nil, errors.Wrapf(ErrConfig, "unroll depth must be positive, got %d", depth)
	}
	return a.build(a.train, depth)
}

// BuildTest builds the single step lookahead graph used for evaluation.
func (a *Assembler) BuildTest() (*Net, error) { return a.build(a.test, 1) }

func (a *Assembler) build(g *Graph, depth int) (*Net, error) {
	last := At(LastHidden, 0)
	if err := g.AddNode(&Node{ID: last, Kind: Input}); err != nil {
		return nil, err
	}
	bindings := makeBindings()
	bindings.Features[last] = Slot{Kind: SlotLastHidden}

	b := NewBuilder(a.conf, a.params, g)
	carry := last
	for t := 0; t < depth; t++ {
		var err error
		if carry, err = b.BuildStep(t, carry); err != nil {
			return nil, errors.WithMessagef(err, "building step %d", t)
		}
		bindings.bindStep(a.conf, t)
	}

	return &Net{
		Config:   a.conf,
		Graph:    g,
		Params:   a.params,
		Bindings: bindings,
		Steps:    depth,
		Carry:    carry,
	}, nil
}
