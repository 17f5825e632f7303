package jointnet

// Builder wires the subgraph of one unrolled step into a Graph.
//
// The always-present part of a step is fixed. The optional second hidden stage and the
// exponential intensity loss are applied as extensions, chosen once from the Config.
type Builder struct {
	conf   Config
	params *ParamStore
	g      *Graph

	stages []stageExt
	losses []lossExt
}

// stageExt grows the path from the recurrent hidden node to the output heads, returning the new top hidden.
type stageExt func(s *step, top ID) ID

// lossExt adds loss nodes hanging off the output heads.
type lossExt func(s *step, eventOut, timeOut ID)

// NewBuilder creates a builder that adds steps to g, looking shared weights up in params.
func NewBuilder(conf Config, params *ParamStore, g *Graph) *Builder {
	b := &Builder{
		conf:   conf,
		params: params,
		g:      g,
	}
	if conf.Hidden2 > 0 {
		b.stages = append(b.stages, secondHidden)
	}
	if conf.Loss == LossExp {
		b.losses = append(b.losses, expIntensity)
	}
	return b
}

// Graph returns the graph being built.
func (b *Builder) Graph() *Graph { return b.g }

// BuildStep adds step t, fed by hiddenIn, and returns the step's recurrent hidden node.
// The returned node is always relu_hidden_t, even when a second hidden stage exists:
// the second stage only feeds the output heads.
func (b *Builder) BuildStep(t int, hiddenIn ID) (ID, error) {
	s := &step{Builder: b, t: t}

	eventIn := s.input(EventInput)
	timeIn := s.input(TimeInput)

	embed := s.transform(Embed, Term{eventIn, s.param(WEmbed)})
	reluEmbed := s.relu(ReLUEmbed, embed)

	hidden := s.transform(Hidden,
		Term{timeIn, s.param(WTime2H)},
		Term{reluEmbed, s.param(WEvent2H)},
		Term{hiddenIn, s.param(WH2H)},
	)
	reluHidden := s.relu(ReLUHidden, hidden)

	top := reluHidden
	for _, ext := range b.stages {
		top = ext(s, top)
	}

	eventOut := s.transform(EventOut, Term{top, s.param(WEventOut)})
	timeOut := s.transform(TimeOut, Term{top, s.param(WTimeOut)})

	s.loss(NLL, eventOut, true, 1)
	s.loss(MSE, timeOut, b.conf.Loss == LossMSE, b.conf.Lambda)
	s.loss(MAE, timeOut, false, 0)
	s.loss(ErrCnt, eventOut, false, 0)
	for _, ext := range b.losses {
		ext(s, eventOut, timeOut)
	}

	if s.err != nil {
		return ID{}, s.err
	}
	return reluHidden, nil
}

func secondHidden(s *step, top ID) ID {
	h2 := s.transform(Hidden2, Term{top, s.param(WHidden2)})
	return s.relu(ReLUH2, h2)
}

func expIntensity(s *step, eventOut, timeOut ID) {
	s.loss(ExpNLL, timeOut, true, 1)
}

// step carries the first error encountered while wiring a step. Once set, every call is a no-op.
type step struct {
	*Builder
	t   int
	err error
}

func (s *step) id(r Role) ID { return At(r, s.t) }

func (s *step) param(name ParamName) *Param {
	if s.err != nil {
		return nil
	}
	var p *Param
	p, s.err = s.params.Get(name)
	return p
}

func (s *step) add(n *Node, from ...ID) ID {
	if s.err != nil {
		return n.ID
	}
	if s.err = s.g.AddNode(n); s.err != nil {
		return n.ID
	}
	for _, f := range from {
		if s.err = s.g.AddEdge(f, n.ID); s.err != nil {
			break
		}
	}
	return n.ID
}

func (s *step) input(r Role) ID {
	return s.add(&Node{ID: s.id(r), Kind: Input})
}

func (s *step) transform(r Role, terms ...Term) ID {
	from := make([]ID, 0, len(terms))
	for _, t := range terms {
		from = append(from, t.From)
	}
	return s.add(&Node{ID: s.id(r), Kind: Transform, Terms: terms}, from...)
}

func (s *step) relu(r Role, in ID) ID {
	return s.add(&Node{ID: s.id(r), Kind: Activation, InPlace: true}, in)
}

func (s *step) loss(r Role, in ID, propagate bool, weight float64) ID {
	if !propagate {
		weight = 0
	}
	return s.add(&Node{ID: s.id(r), Kind: Loss, Propagate: propagate, Weight: weight}, in)
}
