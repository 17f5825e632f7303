// Package machine executes jointnet graphs with gorgonia.
package machine

import (
	"bytes"
	"log"
	"math"
	"strconv"

	"github.com/chewxy/math32"
	"github.com/gorgonia/jointrnn/dataset"
	"github.com/gorgonia/jointrnn/jointnet"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

var Float = G.Float32

// Machine compiles an assembled jointnet.Net into a gorgonia expression graph and runs it.
// A training machine also takes the gradient of the propagating losses and applies a solver step
// after every pass.
type Machine struct {
	net  *jointnet.Net
	conf jointnet.Config

	g       *G.ExprGraph
	nodes   map[jointnet.ID]*G.Node
	weights map[jointnet.ParamName]*G.Node
	order   []jointnet.ParamName

	inputs map[jointnet.ID]*tensor.Dense
	labels map[jointnet.Slot]*binding
	mask   *binding

	values  map[jointnet.ID]*G.Value // read back after every pass
	cost    *G.Node
	costVal G.Value

	// hidden is the recurrent carry. It is the backing tensor of last_hidden.
	hidden *tensor.Dense

	train     bool
	learnRate float64
	vm        G.VM
	solver    G.Solver

	buf     *bytes.Buffer
	execLog bool

	batch *dataset.Batch // last batch run
}

type binding struct {
	n *G.Node
	t *tensor.Dense
}

// Option configures a Machine.
type Option func(m *Machine)

// Training makes the machine take gradients and step a vanilla SGD solver with the given learn rate.
func Training(learnRate float64) Option {
	return func(m *Machine) {
		m.train = true
		m.learnRate = learnRate
	}
}

// WithExecLog traces the execution of the VM into a buffer readable with ExecLog.
func WithExecLog() Option {
	return func(m *Machine) { m.execLog = true }
}

// New compiles net.
func New(net *jointnet.Net, opts ...Option) (*Machine, error) {
	m := &Machine{
		net:     net,
		conf:    net.Config,
		g:       G.NewGraph(),
		nodes:   make(map[jointnet.ID]*G.Node),
		weights: make(map[jointnet.ParamName]*G.Node),
		inputs:  make(map[jointnet.ID]*tensor.Dense),
		labels:  make(map[jointnet.Slot]*binding),
		values:  make(map[jointnet.ID]*G.Value),
		buf:     new(bytes.Buffer),
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.compile(); err != nil {
		return nil, err
	}

	if m.train {
		if _, err := G.Grad(m.cost, m.Model()...); err != nil {
			return nil, errors.WithStack(err)
		}
		m.solver = G.NewVanillaSolver(G.WithLearnRate(m.learnRate), G.WithBatchSize(float64(m.conf.BatchSize)))
	}

	var vmOpts []G.VMOpt
	if m.train {
		vmOpts = append(vmOpts, G.BindDualValues(m.Model()...))
	}
	if m.execLog {
		logger := log.New(m.buf, "", 0)
		vmOpts = append(vmOpts,
			G.WithLogger(logger),
			G.WithWatchlist(),
			G.TraceExec(),
			G.WithValueFmt("%+1.1v"),
			G.WithNaNWatch(),
		)
	}
	m.vm = G.NewTapeMachine(m.g, vmOpts...)
	return m, nil
}

func (m *Machine) compile() error {
	conf := m.conf
	batch := conf.BatchSize

	for _, p := range m.net.Params.All() {
		w := G.NewMatrix(m.g, Float, G.WithShape(p.Rows, p.Cols), G.WithName(p.Name.String()), G.WithInit(G.Gaussian(0, p.Init.Scale)))
		m.weights[p.Name] = w
		m.order = append(m.order, p.Name)
	}

	mask := tensor.New(tensor.WithShape(batch, 1), tensor.Of(Float))
	m.mask = &binding{n: G.NewMatrix(m.g, Float, G.WithShape(batch, 1), G.WithName("mask")), t: mask}

	var mb maebe
	diffs := make(map[jointnet.ID]*G.Node) // time output → masked difference to its label
	var costs []*G.Node
	for _, n := range m.net.Graph.Nodes() {
		switch n.Kind {
		case jointnet.Input:
			slot, ok := m.net.Bindings.Features[n.ID]
			if !ok {
				return errors.Wrapf(jointnet.ErrTopology, "input %v is not bound", n.ID)
			}
			cols := m.width(slot.Kind)
			node := G.NewMatrix(m.g, Float, G.WithShape(batch, cols), G.WithName(n.Name()))
			t := tensor.New(tensor.WithShape(batch, cols), tensor.Of(Float))
			m.nodes[n.ID] = node
			m.inputs[n.ID] = t
			if slot.Kind == jointnet.SlotLastHidden {
				m.hidden = t
			}

		case jointnet.Transform:
			var acc *G.Node
			for _, term := range n.Terms {
				w, ok := m.weights[term.Param.Name]
				if !ok {
					return errors.Wrapf(jointnet.ErrTopology, "%v uses unknown weight %v", n.ID, term.Param.Name)
				}
				xw := mb.mul(m.nodes[term.From], w)
				if acc == nil {
					acc = xw
					continue
				}
				acc = mb.add(acc, xw)
			}
			m.nodes[n.ID] = acc
			if n.ID.Role == jointnet.EventOut || n.ID.Role == jointnet.TimeOut {
				m.read(n.ID, acc)
			}

		case jointnet.Activation:
			m.nodes[n.ID] = mb.rectify(m.single(n.ID))
			if n.ID == m.net.Carry {
				m.read(n.ID, m.nodes[n.ID])
			}

		case jointnet.Loss:
			slot, ok := m.net.Bindings.Labels[n.ID]
			if !ok {
				return errors.Wrapf(jointnet.ErrTopology, "loss %v has no label", n.ID)
			}
			in := m.single(n.ID)
			label := m.label(slot)

			var loss *G.Node
			switch n.ID.Role {
			case jointnet.NLL:
				loss = mb.classNLL(in, label)
			case jointnet.MSE, jointnet.MAE:
				diff, ok := diffs[m.net.Graph.Inputs(n.ID)[0]]
				if !ok {
					diff = mb.hadamard(mb.sub(in, label), m.mask.n)
					diffs[m.net.Graph.Inputs(n.ID)[0]] = diff
				}
				if n.ID.Role == jointnet.MSE {
					loss = mb.squared(diff)
				} else {
					loss = mb.absolute(diff)
				}
			case jointnet.ExpNLL:
				loss = mb.expNLL(in, label, m.mask.n)
			case jointnet.ErrCnt:
				// not differentiable: counted from the event output after the pass
				continue
			default:
				return errors.Wrapf(jointnet.ErrTopology, "unknown loss %v", n.ID)
			}
			m.nodes[n.ID] = loss
			m.read(n.ID, loss)
			if n.Propagate {
				costs = append(costs, mb.scale(loss, n.Weight))
			}
		}
		if mb.err != nil {
			return errors.WithMessagef(mb.err, "compiling %v", n.ID)
		}
	}

	for _, c := range costs {
		if m.cost == nil {
			m.cost = c
			continue
		}
		m.cost = mb.add(m.cost, c)
	}
	if mb.err != nil {
		return mb.err
	}
	if m.cost == nil {
		if m.train {
			return errors.Wrap(jointnet.ErrTopology, "no loss propagates gradient")
		}
		return nil
	}
	G.Read(m.cost, &m.costVal)
	return nil
}

// Cost returns the weighted sum of the propagating losses computed by the last pass.
func (m *Machine) Cost() (float32, error) {
	if m.costVal == nil {
		return 0, errors.New("no cost has been computed")
	}
	v, ok := m.costVal.Data().(float32)
	if !ok {
		return 0, errors.Errorf("cost holds %T", m.costVal.Data())
	}
	return v, nil
}

func (m *Machine) single(id jointnet.ID) *G.Node {
	ins := m.net.Graph.Inputs(id)
	if len(ins) != 1 {
		return nil
	}
	return m.nodes[ins[0]]
}

func (m *Machine) read(id jointnet.ID, n *G.Node) {
	if n == nil {
		return
	}
	v := new(G.Value)
	G.Read(n, v)
	m.values[id] = v
}

func (m *Machine) width(k jointnet.SlotKind) int {
	switch k {
	case jointnet.SlotLastHidden:
		return m.conf.Hidden
	case jointnet.SlotEvent, jointnet.SlotEventLabel:
		return m.conf.NumEventTypes
	case jointnet.SlotTime:
		return m.conf.TimeDim
	}
	return 1
}

func (m *Machine) label(s jointnet.Slot) *G.Node {
	if b, ok := m.labels[s]; ok {
		return b.n
	}
	cols := m.width(s.Kind)
	b := &binding{
		n: G.NewMatrix(m.g, Float, G.WithShape(m.conf.BatchSize, cols), G.WithName(s.Kind.String()+"_"+strconv.Itoa(s.Step))),
		t: tensor.New(tensor.WithShape(m.conf.BatchSize, cols), tensor.Of(Float)),
	}
	m.labels[s] = b
	return b.n
}

// Model returns the weight nodes, in parameter creation order.
func (m *Machine) Model() G.Nodes {
	retVal := make(G.Nodes, 0, len(m.order))
	for _, name := range m.order {
		retVal = append(retVal, m.weights[name])
	}
	return retVal
}

// Run binds b, executes one forward pass (and, when training, one solver step) and returns
// the scalar of every loss node. On return the carry holds the final hidden state of every
// active row.
func (m *Machine) Run(b *dataset.Batch) (jointnet.LossRecord[float32], error) {
	if err := m.bind(b); err != nil {
		return nil, err
	}
	m.buf.Reset()
	defer m.vm.Reset()
	if err := m.vm.RunAll(); err != nil {
		return nil, errors.WithStack(err)
	}

	rec := make(jointnet.LossRecord[float32], len(m.net.Graph.Losses()))
	for _, n := range m.net.Graph.Losses() {
		var v float32
		if n.ID.Role == jointnet.ErrCnt {
			var err error
			if v, err = m.errCount(n.ID); err != nil {
				return nil, err
			}
		} else {
			val := *m.values[n.ID]
			if val == nil {
				return nil, errors.Errorf("loss %v was not computed", n.ID)
			}
			v = val.Data().(float32)
		}
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return nil, errors.Errorf("loss %v is %v", n.ID, v)
		}
		rec[n.ID] = v
	}

	if err := m.keepCarry(); err != nil {
		return nil, err
	}
	if m.train {
		if err := m.solver.Step(G.NodesToValueGrads(m.Model())); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return rec, nil
}

// errCount counts the active rows whose arg-max event score misses the label.
func (m *Machine) errCount(id jointnet.ID) (float32, error) {
	out, err := m.floats(jointnet.At(jointnet.EventOut, id.Step))
	if err != nil {
		return 0, err
	}
	n := m.conf.NumEventTypes
	var count float32
	for r, active := range m.batch.Active {
		if !active {
			continue
		}
		if vecf32.Argmax(out[r*n:(r+1)*n]) != m.batch.NextEvents[id.Step][r] {
			count++
		}
	}
	return count, nil
}

func (m *Machine) floats(id jointnet.ID) ([]float32, error) {
	v, ok := m.values[id]
	if !ok || *v == nil {
		return nil, errors.Errorf("no value read for %v", id)
	}
	data, ok := (*v).Data().([]float32)
	if !ok {
		return nil, errors.Errorf("value of %v is %T, not []float32", id, (*v).Data())
	}
	return data, nil
}

func (m *Machine) keepCarry() error {
	if m.hidden == nil {
		return nil
	}
	out, err := m.floats(m.net.Carry)
	if err != nil {
		return err
	}
	copy(m.hidden.Data().([]float32), out)
	return nil
}

// ResetCarry zeroes the recurrent carry of every row.
func (m *Machine) ResetCarry() {
	if m.hidden != nil {
		m.hidden.Zero()
	}
}

func (m *Machine) bind(b *dataset.Batch) error {
	conf := m.conf
	if b.Rows != conf.BatchSize {
		return errors.Errorf("batch has %d rows, the graph was built for %d", b.Rows, conf.BatchSize)
	}
	if b.Steps != m.net.Steps {
		return errors.Errorf("batch has %d steps, the graph was built for %d", b.Steps, m.net.Steps)
	}
	m.batch = b

	// rows that start a new sequence, or carry nothing, begin from a zero hidden state
	if m.hidden != nil {
		h := m.hidden.Data().([]float32)
		for r := 0; r < b.Rows; r++ {
			if b.Reset[r] || !b.Active[r] {
				zero(h[r*conf.Hidden : (r+1)*conf.Hidden])
			}
		}
	}

	mask := m.mask.t.Data().([]float32)
	for r := range mask {
		mask[r] = 0
		if b.Active[r] {
			mask[r] = 1
		}
	}
	if err := G.Let(m.mask.n, m.mask.t); err != nil {
		return errors.WithStack(err)
	}

	for id, t := range m.inputs {
		slot := m.net.Bindings.Features[id]
		data := t.Data().([]float32)
		switch slot.Kind {
		case jointnet.SlotEvent:
			if err := oneHot(data, b.Events[slot.Step], b.Active, conf.NumEventTypes); err != nil {
				return errors.WithMessagef(err, "binding %v", id)
			}
		case jointnet.SlotTime:
			timeFeatures(data, b.Times[slot.Step], b.Active, conf.TimeDim)
		}
		if err := G.Let(m.nodes[id], t); err != nil {
			return errors.WithStack(err)
		}
	}

	for slot, l := range m.labels {
		data := l.t.Data().([]float32)
		switch slot.Kind {
		case jointnet.SlotEventLabel:
			if err := oneHot(data, b.NextEvents[slot.Step], b.Active, conf.NumEventTypes); err != nil {
				return errors.WithMessagef(err, "binding label %v", slot.Kind)
			}
		case jointnet.SlotTimeLabel:
			for r := range data {
				data[r] = 0
				if b.Active[r] {
					data[r] = float32(b.NextTimes[slot.Step][r])
				}
			}
		}
		if err := G.Let(l.n, l.t); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func oneHot(data []float32, events []int, active []bool, n int) error {
	zero(data)
	for r, e := range events {
		if !active[r] {
			continue
		}
		if e < 0 || e >= n {
			return errors.Wrapf(jointnet.ErrConfig, "event %d outside of [0, %d)", e, n)
		}
		data[r*n+e] = 1
	}
	return nil
}

// timeFeatures writes Δt in column 0 and log(1+Δt) in column 1. Further columns stay zero.
func timeFeatures(data []float32, times []float64, active []bool, dim int) {
	zero(data)
	for r, dt := range times {
		if !active[r] {
			continue
		}
		data[r*dim] = float32(dt)
		if dim > 1 {
			data[r*dim+1] = float32(math.Log1p(dt))
		}
	}
}

func zero(a []float32) {
	for i := range a {
		a[i] = 0
	}
}

// ExecLog returns the execution trace of the last pass. It is empty unless WithExecLog was given.
func (m *Machine) ExecLog() string { return m.buf.String() }

// Close releases the VM.
func (m *Machine) Close() error { return m.vm.Close() }

// Net returns the assembled network the machine runs.
func (m *Machine) Net() *jointnet.Net { return m.net }
