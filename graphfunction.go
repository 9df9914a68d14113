package chi

import "fmt"

// GraphFunction is one user-defined function inside a GraphModule: a
// signature (data/exec inputs and outputs) plus the Graph implementing it.
// Its entry and exit nodes are ordinary nodes in that Graph — an
// EntryNodeType and ExitNodeType instance — located by ID.
type GraphFunction struct {
	Name        string
	Description string

	dataInputs  []NamedDataType
	dataOutputs []NamedDataType
	execInputs  []string
	execOutputs []string

	Graph *Graph

	EntryID string
	ExitID  string

	owner *GraphModule
}

// NewGraphFunction creates an empty GraphFunction owned by mod.
func NewGraphFunction(mod *GraphModule, name string) *GraphFunction {
	gf := &GraphFunction{Name: name, owner: mod}
	gf.Graph = NewGraph()
	gf.Graph.Function = gf
	return gf
}

func (gf *GraphFunction) DataInputs() []NamedDataType  { return append([]NamedDataType{}, gf.dataInputs...) }
func (gf *GraphFunction) DataOutputs() []NamedDataType { return append([]NamedDataType{}, gf.dataOutputs...) }
func (gf *GraphFunction) ExecInputs() []string         { return append([]string{}, gf.execInputs...) }
func (gf *GraphFunction) ExecOutputs() []string        { return append([]string{}, gf.execOutputs...) }

// SetSignature replaces the function's ports wholesale. It is the
// caller's job to keep the Entry/Exit node types in sync; nothing here
// regenerates them from these slices.
func (gf *GraphFunction) SetSignature(dataIn, dataOut []NamedDataType, execIn, execOut []string) {
	gf.dataInputs = dataIn
	gf.dataOutputs = dataOut
	gf.execInputs = execIn
	gf.execOutputs = execOut
}

// EntryNode returns the Graph's designated entry node, if set and present.
func (gf *GraphFunction) EntryNode() (*NodeInstance, bool) {
	if gf.EntryID == "" {
		return nil, false
	}
	return gf.Graph.Node(gf.EntryID)
}

// ExitNode returns the Graph's designated exit node, if set and present.
func (gf *GraphFunction) ExitNode() (*NodeInstance, bool) {
	if gf.ExitID == "" {
		return nil, false
	}
	return gf.Graph.Node(gf.ExitID)
}

// jsonConnection is the on-disk shape of one connection entry. Per the
// convention verified against the original's Graph.cpp constructor
// (connectData(..., InputNodeID/InputConnectionID, ..., OutputNodeID/
// OutputConnectionID)), "input" names the SOURCE node/port and "output"
// names the SINK node/port — the reverse of what the field names suggest
// out of context.
type jsonConnection struct {
	Type   string `json:"type"`
	Input  [2]any `json:"input"`
	Output [2]any `json:"output"`
}

type jsonNode struct {
	Type     string         `json:"type"`
	Data     map[string]any `json:"data,omitempty"`
	Location [2]float64     `json:"location"`
}

type jsonPort struct {
	Label string `json:"label"`
	Type  string `json:"type"`
}

type jsonGraph struct {
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	DataInputs  []jsonPort          `json:"data_inputs"`
	DataOutputs []jsonPort          `json:"data_outputs"`
	ExecInputs  []string            `json:"exec_inputs"`
	ExecOutputs []string            `json:"exec_outputs"`
	Nodes       map[string]jsonNode `json:"nodes"`
	Connections []jsonConnection    `json:"connections"`
	EntryID     string              `json:"entry,omitempty"`
	ExitID      string              `json:"exit,omitempty"`
}

func portPair(arr [2]any) (string, int, error) {
	id, ok := arr[0].(string)
	if !ok {
		return "", 0, fmt.Errorf("chi: connection endpoint node id must be a string, got %v", arr[0])
	}
	var port int
	switch p := arr[1].(type) {
	case float64:
		port = int(p)
	case int:
		port = p
	default:
		return "", 0, fmt.Errorf("chi: connection endpoint port must be a number, got %v", arr[1])
	}
	return id, port, nil
}
