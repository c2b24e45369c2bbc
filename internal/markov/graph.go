package markov

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/multi"
	"gonum.org/v1/gonum/graph/traverse"
)

type VertexKind int

const (
	InputVertex VertexKind = iota
	OutputVertex
	HiddenVertex
	GateVertex
)

func (k VertexKind) String() string {
	switch k {
	case InputVertex:
		return "INPUT"
	case OutputVertex:
		return "OUTPUT"
	case HiddenVertex:
		return "HIDDEN"
	case GateVertex:
		return "GATE"
	default:
		return fmt.Sprintf("vertex_kind(%d)", int(k))
	}
}

type EdgeKind int

const (
	SignalEdge EdgeKind = iota
	ReinforceEdge
	InhibitEdge
)

func (k EdgeKind) String() string {
	switch k {
	case SignalEdge:
		return "SIGNAL"
	case ReinforceEdge:
		return "REINFORCE"
	case InhibitEdge:
		return "INHIBIT"
	default:
		return fmt.Sprintf("edge_kind(%d)", int(k))
	}
}

// Vertex is either a state index or a gate. State vertices use the state
// index as ID; gate i uses Size()+i.
type Vertex struct {
	Kind  VertexKind
	Index int
	Gate  GateType
	id    int64
}

func (v Vertex) ID() int64 { return v.id }

func (v Vertex) DOTID() string {
	if v.Kind == GateVertex {
		return fmt.Sprintf("g%d", v.Index)
	}
	return fmt.Sprintf("s%d", v.Index)
}

func (v Vertex) Attributes() []encoding.Attribute {
	switch v.Kind {
	case GateVertex:
		return []encoding.Attribute{
			{Key: "shape", Value: "box"},
			{Key: "label", Value: fmt.Sprintf("%s_%d", v.Gate, v.Index)},
		}
	case InputVertex:
		return []encoding.Attribute{{Key: "shape", Value: "invtriangle"}}
	case OutputVertex:
		return []encoding.Attribute{{Key: "shape", Value: "triangle"}}
	default:
		return []encoding.Attribute{{Key: "shape", Value: "circle"}}
	}
}

// Edge connects a state vertex to a gate reading it, or a gate to a state
// vertex it writes. A state read by one gate through several roles (signal,
// reinforce, inhibit) gets one parallel edge per role.
type Edge struct {
	F, T Vertex
	Kind EdgeKind
	id   int64
}

func (e Edge) From() graph.Node         { return e.F }
func (e Edge) To() graph.Node           { return e.T }
func (e Edge) ID() int64                { return e.id }
func (e Edge) ReversedLine() graph.Line { return Edge{F: e.T, T: e.F, Kind: e.Kind, id: e.id} }

func (e Edge) Attributes() []encoding.Attribute {
	switch e.Kind {
	case ReinforceEdge:
		return []encoding.Attribute{{Key: "color", Value: "green"}, {Key: "style", Value: "dashed"}}
	case InhibitEdge:
		return []encoding.Attribute{{Key: "color", Value: "red"}, {Key: "style", Value: "dashed"}}
	default:
		return nil
	}
}

// GateGraph is a read-only directed multigraph of a network's connectivity.
type GateGraph struct {
	*multi.DirectedGraph
}

// Graph builds the connectivity graph of net. Every state index becomes a
// vertex even when no gate touches it.
func Graph(net *Network) *GateGraph {
	g := multi.NewDirectedGraph()
	var lines int64
	setEdge := func(from, to Vertex, kind EdgeKind) {
		g.SetLine(Edge{F: from, T: to, Kind: kind, id: lines})
		lines++
	}
	geom := net.Geometry()
	for i := 0; i < geom.Size(); i++ {
		g.AddNode(Vertex{Kind: stateKind(geom, i), Index: i, id: int64(i)})
	}
	for i, gate := range net.Gates() {
		gv := Vertex{Kind: GateVertex, Index: i, Gate: gate.Kind(), id: int64(geom.Size() + i)}
		g.AddNode(gv)

		inputs := gate.Inputs()
		adaptive, isAdaptive := gate.(*AdaptiveGate)
		if isAdaptive {
			inputs = adaptive.SignalInputs()
		}
		for _, idx := range inputs {
			setEdge(g.Node(int64(idx)).(Vertex), gv, SignalEdge)
		}
		if isAdaptive {
			setEdge(g.Node(int64(adaptive.Reinforce())).(Vertex), gv, ReinforceEdge)
			setEdge(g.Node(int64(adaptive.Inhibit())).(Vertex), gv, InhibitEdge)
		}
		for _, idx := range gate.Outputs() {
			setEdge(gv, g.Node(int64(idx)).(Vertex), SignalEdge)
		}
	}
	return &GateGraph{DirectedGraph: g}
}

func stateKind(geom Geometry, i int) VertexKind {
	switch {
	case i < geom.Inputs:
		return InputVertex
	case i < geom.Inputs+geom.Outputs:
		return OutputVertex
	default:
		return HiddenVertex
	}
}

// Vertices returns every vertex ordered by ID.
func (g *GateGraph) Vertices() []Vertex {
	nodes := graph.NodesOf(g.Nodes())
	out := make([]Vertex, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.(Vertex))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// EdgeList returns every edge, parallel edges included, ordered by
// (from, to, kind).
func (g *GateGraph) EdgeList() []Edge {
	var out []Edge
	for _, e := range graph.EdgesOf(g.Edges()) {
		for _, l := range graph.LinesOf(g.Lines(e.From().ID(), e.To().ID())) {
			out = append(out, l.(Edge))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].F.ID() != out[j].F.ID() {
			return out[i].F.ID() < out[j].F.ID()
		}
		if out[i].T.ID() != out[j].T.ID() {
			return out[i].T.ID() < out[j].T.ID()
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].id < out[j].id
	})
	return out
}

// GateVertices returns the gate vertices ordered by gate index.
func (g *GateGraph) GateVertices() []Vertex {
	var gates []Vertex
	for _, v := range g.Vertices() {
		if v.Kind == GateVertex {
			gates = append(gates, v)
		}
	}
	return gates
}

// Reduced returns the subgraph of vertices lying on some path from an input
// vertex to an output vertex. Input and output vertices are always kept.
func (g *GateGraph) Reduced() *GateGraph {
	vertices := g.Vertices()

	forward := make(map[int64]bool)
	fw := traverse.BreadthFirst{Visit: func(n graph.Node) { forward[n.ID()] = true }}
	reversed := multi.NewDirectedGraph()
	for _, v := range vertices {
		reversed.AddNode(v)
	}
	for _, e := range g.EdgeList() {
		reversed.SetLine(e.ReversedLine())
	}
	backward := make(map[int64]bool)
	bw := traverse.BreadthFirst{Visit: func(n graph.Node) { backward[n.ID()] = true }}

	for _, v := range vertices {
		switch v.Kind {
		case InputVertex:
			fw.Walk(g.DirectedGraph, v, nil)
		case OutputVertex:
			bw.Walk(reversed, v, nil)
		}
	}

	out := multi.NewDirectedGraph()
	for _, v := range vertices {
		if v.Kind == InputVertex || v.Kind == OutputVertex || (forward[v.ID()] && backward[v.ID()]) {
			out.AddNode(v)
		}
	}
	for _, e := range g.EdgeList() {
		if out.Node(e.F.ID()) != nil && out.Node(e.T.ID()) != nil {
			out.SetLine(e)
		}
	}
	return &GateGraph{DirectedGraph: out}
}

// MarshalDOT renders the graph in Graphviz format.
func (g *GateGraph) MarshalDOT(name string) ([]byte, error) {
	return dot.MarshalMulti(g.DirectedGraph, name, "", "  ")
}
