package jointnet

import (
	"fmt"

	"github.com/awalterschulze/gographviz"
)

// Term is one weighted contribution to a transform node: From multiplied by Param.
type Term struct {
	From  ID
	Param *Param
}

// Node is a unit of the dataflow graph. Only the fields relevant to its Kind are set.
type Node struct {
	ID   ID
	Kind Kind

	// Transform
	Terms []Term

	// Activation. InPlace hints that the output may reuse the input's storage.
	InPlace bool

	// Loss
	Propagate bool    // does this loss contribute gradient?
	Weight    float64 // gradient weight, when Propagate is set
}

// Name is the key the execution engine sees.
func (n *Node) Name() string { return n.ID.String() }

func (n *Node) String() string { return fmt.Sprintf("%v(%v)", n.ID, n.Kind) }

// Edge is a directed dependency: To needs the output of From.
type Edge struct {
	From, To ID
}

// Graph is an acyclic dataflow topology. Nodes are kept in insertion order,
// and because edges may only point at nodes already present when the consumer
// is added, insertion order is a topological order.
type Graph struct {
	nodes []*Node
	index map[ID]*Node
	pos   map[ID]int
	edges []Edge
	in    map[ID][]ID
	out   map[ID][]ID
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		index: make(map[ID]*Node),
		pos:   make(map[ID]int),
		in:    make(map[ID][]ID),
		out:   make(map[ID][]ID),
	}
}

// AddNode registers a node. Name collisions are topology errors.
func (g *Graph) AddNode(n *Node) error {
	if _, ok := g.index[n.ID]; ok {
		return topologyErr("duplicate node %v", n.ID)
	}
	if n.Kind != n.ID.Role.Kind() {
		return topologyErr("node %v has kind %v, expected %v", n.ID, n.Kind, n.ID.Role.Kind())
	}
	for _, t := range n.Terms {
		if t.Param == nil {
			return topologyErr("node %v has a term from %v without a parameter", n.ID, t.From)
		}
	}
	g.pos[n.ID] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	g.index[n.ID] = n
	return nil
}

// AddEdge adds the dependency from → to. The producer must already be in the graph
// and must have been added before the consumer.
func (g *Graph) AddEdge(from, to ID) error {
	if _, ok := g.index[from]; !ok {
		return topologyErr("edge %v → %v: no such producer", from, to)
	}
	if _, ok := g.index[to]; !ok {
		return topologyErr("edge %v → %v: no such consumer", from, to)
	}
	if from == to {
		return topologyErr("self loop on %v", from)
	}
	for _, x := range g.in[to] {
		if x == from {
			return topologyErr("duplicate edge %v → %v", from, to)
		}
	}
	if g.pos[from] > g.pos[to] {
		return topologyErr("edge %v → %v points backwards", from, to)
	}
	g.edges = append(g.edges, Edge{From: from, To: to})
	g.in[to] = append(g.in[to], from)
	g.out[from] = append(g.out[from], to)
	return nil
}

// Node looks up a node by ID.
func (g *Graph) Node(id ID) (*Node, bool) {
	n, ok := g.index[id]
	return n, ok
}

// NodeByName looks up a node by its engine key.
func (g *Graph) NodeByName(name string) (*Node, bool) {
	id, err := ParseID(name)
	if err != nil {
		return nil, false
	}
	return g.Node(id)
}

// Nodes returns all nodes in topological order.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []Edge { return g.edges }

// Inputs returns the producers feeding id.
func (g *Graph) Inputs(id ID) []ID { return g.in[id] }

// Consumers returns the nodes fed by id.
func (g *Graph) Consumers(id ID) []ID { return g.out[id] }

// Losses returns the loss nodes in topological order.
func (g *Graph) Losses() []*Node {
	var retVal []*Node
	for _, n := range g.nodes {
		if n.Kind == Loss {
			retVal = append(retVal, n)
		}
	}
	return retVal
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// ToDot renders the graph in graphviz format.
func (g *Graph) ToDot() string {
	gv := gographviz.NewGraph()
	if err := gv.SetName("G"); err != nil {
		panic(err)
	}
	gv.SetDir(true)

	for _, n := range g.nodes {
		attrs := map[string]string{
			"fontname": "Monaco",
			"shape":    shapeOf(n.Kind),
			"label":    fmt.Sprintf("%q", n.Name()),
		}
		if len(n.Terms) > 0 {
			var label string
			for i, t := range n.Terms {
				if i > 0 {
					label += `\n`
				}
				label += t.Param.Name.String()
			}
			attrs["label"] = fmt.Sprintf(`"%s\n%s"`, n.Name(), label)
		}
		if n.InPlace {
			attrs["style"] = "dashed"
		}
		gv.AddNode("G", quote(n.Name()), attrs)
	}
	for _, e := range g.edges {
		gv.AddEdge(quote(e.From.String()), quote(e.To.String()), true, nil)
	}
	return gv.String()
}

func quote(s string) string { return `"` + s + `"` }

func shapeOf(k Kind) string {
	switch k {
	case Input:
		return "invhouse"
	case Transform:
		return "box"
	case Activation:
		return "ellipse"
	}
	return "doubleoctagon"
}
