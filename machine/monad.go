package machine

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	nnops "gorgonia.org/gorgonia/ops/nn"
)

// maebe holds the first error of a chain of graph operations. Once set, every op returns nil.
type maebe struct {
	err error
}

func (m *maebe) do(f func() (*G.Node, error)) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = f(); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

func (m *maebe) mul(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Mul(a, b) })
}

func (m *maebe) add(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Add(a, b) })
}

func (m *maebe) sub(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Sub(a, b) })
}

func (m *maebe) hadamard(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.HadamardProd(a, b) })
}

func (m *maebe) rectify(input *G.Node) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = nnops.Rectify(input); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

// sum reduces every element of a to a scalar.
func (m *maebe) sum(a *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Sum(a) })
}

// classNLL is -Σ label ⊙ log(softmax(scores)). Rows with an all-zero label contribute nothing.
func (m *maebe) classNLL(scores, label *G.Node) *G.Node {
	prob := m.do(func() (*G.Node, error) { return G.SoftMax(scores) })
	prob = m.do(func() (*G.Node, error) { return G.Add(prob, G.NewConstant(float32(1e-10))) })
	logp := m.do(func() (*G.Node, error) { return G.Log(prob) })
	s := m.sum(m.hadamard(label, logp))
	return m.do(func() (*G.Node, error) { return G.Neg(s) })
}

// squared is Σ diff².
func (m *maebe) squared(diff *G.Node) *G.Node {
	return m.sum(m.do(func() (*G.Node, error) { return G.Square(diff) }))
}

// absolute is Σ |diff|.
func (m *maebe) absolute(diff *G.Node) *G.Node {
	return m.sum(m.do(func() (*G.Node, error) { return G.Abs(diff) }))
}

// expNLL is the negative log likelihood of t under an exponential distribution
// with intensity λ = exp(out): Σ (λ·t − out), masked per row.
func (m *maebe) expNLL(out, t, mask *G.Node) *G.Node {
	lambda := m.do(func() (*G.Node, error) { return G.Exp(out) })
	nll := m.sub(m.hadamard(lambda, t), out)
	return m.sum(m.hadamard(nll, mask))
}

func (m *maebe) scale(a *G.Node, w float64) *G.Node {
	if w == 1 {
		return a
	}
	return m.do(func() (*G.Node, error) { return G.Mul(G.NewConstant(float32(w)), a) })
}
