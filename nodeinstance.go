package chi

// EdgeKind distinguishes a data connection from an exec connection.
type EdgeKind int

const (
	EdgeData EdgeKind = iota
	EdgeExec
)

func (k EdgeKind) String() string {
	if k == EdgeExec {
		return "exec"
	}
	return "data"
}

// Edge is a single connection between two node ports, owned centrally by
// the Graph rather than by the nodes it touches. spec.md §9 flags this
// explicitly: a per-node pointer-to-neighbor representation risks dangling
// references on node removal, so the Graph keeps one authoritative edge
// table and nodes only ever hold edge IDs into it.
type Edge struct {
	ID      int
	Kind    EdgeKind
	SrcNode string
	SrcPort int
	DstNode string
	DstPort int

	// Converter is set on a data edge whose endpoint DataTypes differ: the
	// synthetic pure node FunctionCompiler materializes between the source
	// value and the destination slot, per spec.md's converter mechanism.
	// Nil for every exec edge and for a data edge connecting equal types.
	Converter NodeType
}

// NodeInstance is one placed node in a Graph: an ID, a position (for editor
// round-tripping; the compiler only copies it into debug locations), a
// NodeType, and
// the edge IDs attached to each of its ports.
type NodeInstance struct {
	ID   string
	X, Y float64
	Type NodeType

	// inputData[i] holds the edge ID feeding data input i, or -1 if
	// unconnected.
	inputData []int
	// outputData[i] holds every edge ID fed by data output i (data outputs
	// can fan out to many consumers).
	outputData [][]int
	// inputExec[i] holds every edge ID arriving at exec input i. spec.md's
	// resolved Open Question (a) says a single shared block serves all
	// edges converging on one exec-input slot, so fan-in here is legal.
	inputExec [][]int
	// outputExec[i] holds the single edge ID leaving exec output i, or -1.
	outputExec []int

	graph *Graph
}

func newNodeInstance(id string, nt NodeType) *NodeInstance {
	n := &NodeInstance{ID: id, Type: nt}
	n.inputData = make([]int, len(nt.DataInputs()))
	for i := range n.inputData {
		n.inputData[i] = -1
	}
	n.outputData = make([][]int, len(nt.DataOutputs()))
	n.inputExec = make([][]int, len(nt.ExecInputs()))
	n.outputExec = make([]int, len(nt.ExecOutputs()))
	for i := range n.outputExec {
		n.outputExec[i] = -1
	}
	return n
}

// DataInputEdge returns the edge feeding data input i, or nil if
// unconnected.
func (n *NodeInstance) DataInputEdge(i int) *Edge {
	if i < 0 || i >= len(n.inputData) || n.inputData[i] < 0 {
		return nil
	}
	return n.graph.edges[n.inputData[i]]
}

// DataOutputEdges returns every edge fed by data output i.
func (n *NodeInstance) DataOutputEdges(i int) []*Edge {
	if i < 0 || i >= len(n.outputData) {
		return nil
	}
	out := make([]*Edge, 0, len(n.outputData[i]))
	for _, id := range n.outputData[i] {
		out = append(out, n.graph.edges[id])
	}
	return out
}

// ExecInputEdges returns every edge arriving at exec input i.
func (n *NodeInstance) ExecInputEdges(i int) []*Edge {
	if i < 0 || i >= len(n.inputExec) {
		return nil
	}
	out := make([]*Edge, 0, len(n.inputExec[i]))
	for _, id := range n.inputExec[i] {
		out = append(out, n.graph.edges[id])
	}
	return out
}

// ExecOutputEdge returns the edge leaving exec output i, or nil.
func (n *NodeInstance) ExecOutputEdge(i int) *Edge {
	if i < 0 || i >= len(n.outputExec) || n.outputExec[i] < 0 {
		return nil
	}
	return n.graph.edges[n.outputExec[i]]
}
