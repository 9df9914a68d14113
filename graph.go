package chi

import (
	"fmt"
	"sort"
	"strings"
)

// Graph is a node/edge structure backing one GraphFunction (or, in principle,
// any node collection that needs insert/connect/validate/export). Edges are
// centralized in a single table (see Edge's doc comment) rather than
// threaded through node-to-node pointers.
type Graph struct {
	Function *GraphFunction // back-reference; nil for a standalone Graph

	nodes      map[string]*NodeInstance
	nodeOrder  []string
	edges      map[int]*Edge
	nextEdgeID int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]*NodeInstance),
		edges: make(map[int]*Edge),
	}
}

// Nodes returns every node in insertion order.
func (g *Graph) Nodes() []*NodeInstance {
	out := make([]*NodeInstance, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, g.nodes[id])
	}
	return out
}

// Node looks up a node by ID.
func (g *Graph) Node(id string) (*NodeInstance, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Edges returns every edge, sorted by ID for deterministic iteration.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// InsertNode adds a new node with the given ID and type. It returns
// CodeDuplicateID if id is already taken, matching the original's
// insertNode duplicate-ID check.
func (g *Graph) InsertNode(id string, nt NodeType, x, y float64) (*NodeInstance, *Result) {
	r := NewResult()
	if _, exists := g.nodes[id]; exists {
		r.AddEntry(CodeDuplicateID, fmt.Sprintf("node id %q already exists in graph", id), map[string]any{"Node ID": id})
		return nil, r
	}
	n := newNodeInstance(id, nt)
	n.X, n.Y = x, y
	n.graph = g
	g.nodes[id] = n
	g.nodeOrder = append(g.nodeOrder, id)
	return n, r
}

// RemoveNode deletes a node and every edge touching it.
func (g *Graph) RemoveNode(id string) *Result {
	r := NewResult()
	n, ok := g.nodes[id]
	if !ok {
		r.AddEntry(CodeUnknown, fmt.Sprintf("node id %q not found", id), map[string]any{"Node ID": id})
		return r
	}
	for _, e := range g.edgesTouching(n) {
		g.removeEdge(e.ID)
	}
	delete(g.nodes, id)
	for i, oid := range g.nodeOrder {
		if oid == id {
			g.nodeOrder = append(g.nodeOrder[:i], g.nodeOrder[i+1:]...)
			break
		}
	}
	return r
}

func (g *Graph) edgesTouching(n *NodeInstance) []*Edge {
	var out []*Edge
	for _, e := range g.edges {
		if e.SrcNode == n.ID || e.DstNode == n.ID {
			out = append(out, e)
		}
	}
	return out
}

func (g *Graph) removeEdge(id int) {
	e, ok := g.edges[id]
	if !ok {
		return
	}
	if src, ok := g.nodes[e.SrcNode]; ok {
		if e.Kind == EdgeData {
			src.outputData[e.SrcPort] = removeInt(src.outputData[e.SrcPort], id)
		} else {
			src.outputExec[e.SrcPort] = -1
		}
	}
	if dst, ok := g.nodes[e.DstNode]; ok {
		if e.Kind == EdgeData {
			dst.inputData[e.DstPort] = -1
		} else {
			dst.inputExec[e.DstPort] = removeInt(dst.inputExec[e.DstPort], id)
		}
	}
	delete(g.edges, id)
}

func removeInt(s []int, v int) []int {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

// ConnectData connects a data output to a data input. Following the
// on-disk convention verified against the original Graph.cpp JSON
// constructor, the "source" node/port is the one producing the value
// (matching "input" in the serialized form) and the "sink" is the one
// consuming it (matching "output"); this method's parameter names use the
// producer/consumer terms directly to avoid that confusion in code.
func (g *Graph) ConnectData(srcNode string, srcPort int, dstNode string, dstPort int) *Result {
	r := NewResult()
	src, ok := g.nodes[srcNode]
	if !ok {
		r.AddEntry(CodeUnknown, fmt.Sprintf("unknown source node %q", srcNode), nil)
		return r
	}
	dst, ok := g.nodes[dstNode]
	if !ok {
		r.AddEntry(CodeUnknown, fmt.Sprintf("unknown destination node %q", dstNode), nil)
		return r
	}
	if srcPort < 0 || srcPort >= len(src.outputData) {
		r.AddEntry(CodeUnknown, fmt.Sprintf("node %q has no data output %d", srcNode, srcPort), nil)
		return r
	}
	if dstPort < 0 || dstPort >= len(dst.inputData) {
		r.AddEntry(CodeUnknown, fmt.Sprintf("node %q has no data input %d", dstNode, dstPort), nil)
		return r
	}
	srcType := src.Type.DataOutputs()[srcPort].Type
	dstType := dst.Type.DataInputs()[dstPort].Type
	var converter NodeType
	if !srcType.Equal(dstType) {
		ctx := g.context()
		var ok bool
		if ctx != nil {
			converter, ok = ctx.ConverterNodeType(srcType, dstType)
		}
		if !ok {
			r.AddEntry(CodeTypeMismatch, fmt.Sprintf("cannot connect %s to %s", srcType, dstType), map[string]any{
				"Node ID": dstNode,
			})
			return r
		}
	}
	if dst.inputData[dstPort] >= 0 {
		g.removeEdge(dst.inputData[dstPort])
	}
	id := g.nextEdgeID
	g.nextEdgeID++
	e := &Edge{ID: id, Kind: EdgeData, SrcNode: srcNode, SrcPort: srcPort, DstNode: dstNode, DstPort: dstPort, Converter: converter}
	g.edges[id] = e
	src.outputData[srcPort] = append(src.outputData[srcPort], id)
	dst.inputData[dstPort] = id
	return r
}

// ConnectExec connects an exec output to an exec input. Multiple exec
// inputs may converge on one slot (spec.md's resolved Open Question a), but
// one exec output may only ever drive a single destination.
func (g *Graph) ConnectExec(srcNode string, srcPort int, dstNode string, dstPort int) *Result {
	r := NewResult()
	src, ok := g.nodes[srcNode]
	if !ok {
		r.AddEntry(CodeUnknown, fmt.Sprintf("unknown source node %q", srcNode), nil)
		return r
	}
	dst, ok := g.nodes[dstNode]
	if !ok {
		r.AddEntry(CodeUnknown, fmt.Sprintf("unknown destination node %q", dstNode), nil)
		return r
	}
	if srcPort < 0 || srcPort >= len(src.outputExec) {
		r.AddEntry(CodeUnknown, fmt.Sprintf("node %q has no exec output %d", srcNode, srcPort), nil)
		return r
	}
	if dstPort < 0 || dstPort >= len(dst.inputExec) {
		r.AddEntry(CodeUnknown, fmt.Sprintf("node %q has no exec input %d", dstNode, dstPort), nil)
		return r
	}
	if src.outputExec[srcPort] >= 0 {
		g.removeEdge(src.outputExec[srcPort])
	}
	id := g.nextEdgeID
	g.nextEdgeID++
	e := &Edge{ID: id, Kind: EdgeExec, SrcNode: srcNode, SrcPort: srcPort, DstNode: dstNode, DstPort: dstPort}
	g.edges[id] = e
	src.outputExec[srcPort] = id
	dst.inputExec[dstPort] = append(dst.inputExec[dstPort], id)
	return r
}

// DisconnectData removes whatever edge feeds the given data input, if any.
func (g *Graph) DisconnectData(nodeID string, port int) {
	n, ok := g.nodes[nodeID]
	if !ok || port < 0 || port >= len(n.inputData) || n.inputData[port] < 0 {
		return
	}
	g.removeEdge(n.inputData[port])
}

// DisconnectExec removes whatever edge leaves the given exec output, if any.
func (g *Graph) DisconnectExec(nodeID string, port int) {
	n, ok := g.nodes[nodeID]
	if !ok || port < 0 || port >= len(n.outputExec) || n.outputExec[port] < 0 {
		return
	}
	g.removeEdge(n.outputExec[port])
}

// context returns the owning Context, if this Graph is reachable from one
// through its GraphFunction/GraphModule back-references, or nil for a
// standalone Graph built outside a module (ConnectData then only accepts
// exactly-equal types, since there is no Context to ask for a converter).
func (g *Graph) context() *Context {
	if g.Function == nil || g.Function.owner == nil {
		return nil
	}
	return g.Function.owner.ctx
}

// PureDependencyCycle walks the pure-data subgraph (edges whose source node
// is a pure NodeType) and reports the first cycle it finds, if any. Exec
// edges and edges sourced from impure nodes tolerate cycles at the graph
// level (control flow can legitimately loop); only a cycle among pure nodes
// feeding each other's data inputs is ill-formed, since materializing one
// would never terminate.
func (g *Graph) PureDependencyCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.nodes))
	var path []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		path = append(path, id)
		n := g.nodes[id]
		if n.Type.Pure() {
			for i := range n.inputData {
				e := n.DataInputEdge(i)
				if e == nil {
					continue
				}
				dep := e.SrcNode
				switch color[dep] {
				case white:
					if visit(dep) {
						return true
					}
				case gray:
					cycle = append(append([]string{}, path...), dep)
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return false
	}

	for _, id := range g.nodeOrder {
		if color[id] == white {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}

// DrawDOT renders the graph as Graphviz DOT, the way visualization.go draws
// a langgraphgo StateGraph.
func (g *Graph) DrawDOT() string {
	var sb strings.Builder
	sb.WriteString("digraph {\n")
	for _, id := range g.nodeOrder {
		n := g.nodes[id]
		label := fmt.Sprintf("%s\\n%s:%s", n.ID, n.Type.Module(), n.Type.Name())
		sb.WriteString(fmt.Sprintf("  %q [label=%q];\n", id, label))
	}
	for _, e := range g.Edges() {
		style := ""
		if e.Kind == EdgeData {
			style = " [style=dashed]"
		}
		sb.WriteString(fmt.Sprintf("  %q -> %q%s;\n", e.SrcNode, e.DstNode, style))
	}
	sb.WriteString("}\n")
	return sb.String()
}

// DrawMermaid renders the graph as a Mermaid flowchart.
func (g *Graph) DrawMermaid() string {
	var sb strings.Builder
	sb.WriteString("flowchart TD\n")
	for _, id := range g.nodeOrder {
		n := g.nodes[id]
		sb.WriteString(fmt.Sprintf("    %s[\"%s: %s\"]\n", sanitizeID(id), id, n.Type.Name()))
	}
	for _, e := range g.Edges() {
		arrow := "-->"
		if e.Kind == EdgeData {
			arrow = "-.->"
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", sanitizeID(e.SrcNode), arrow, sanitizeID(e.DstNode)))
	}
	return sb.String()
}

// DrawASCII walks the exec-edge tree from every node with no exec input,
// printing an indented tree the way visualization.go's DrawASCII does,
// guarding against cycles with a visited set.
func (g *Graph) DrawASCII() string {
	var sb strings.Builder
	visited := make(map[string]bool)

	var roots []string
	for _, id := range g.nodeOrder {
		n := g.nodes[id]
		hasExecIn := false
		for _, edges := range n.inputExec {
			if len(edges) > 0 {
				hasExecIn = true
				break
			}
		}
		if !hasExecIn {
			roots = append(roots, id)
		}
	}

	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(id)
		sb.WriteByte('\n')
		if visited[id] {
			return
		}
		visited[id] = true
		n := g.nodes[id]
		for i := range n.outputExec {
			if e := n.ExecOutputEdge(i); e != nil {
				walk(e.DstNode, depth+1)
			}
		}
	}
	for _, id := range roots {
		walk(id, 0)
	}
	return sb.String()
}

func sanitizeID(id string) string {
	return strings.NewReplacer("-", "_", ".", "_", ":", "_").Replace(id)
}
