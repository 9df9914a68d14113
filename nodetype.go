package chi

import "github.com/chigraph/chi/backend"

// CodegenParams carries everything a NodeType's Codegen needs to emit its
// instructions into one already-allocated basic block. IO holds, in order,
// one Value per data input (already loaded) followed by one pointer Value
// per data output (to be stored into) — the calling convention
// ExitNodeType and EntryNodeType's original C++ codegen both rely on
// ("ret_start = f->arg_size() - io.size()"). OutputBlocks holds one
// destination per exec output, in declaration order; a pure node's
// OutputBlocks has exactly one entry.
type CodegenParams struct {
	ExecInputID  int
	Location     backend.DebugLoc
	IO           []backend.Value
	Block        *backend.BasicBlock
	OutputBlocks []*backend.BasicBlock
	Builder      *backend.Builder
	BackendCtx   *backend.Context
	Module       *backend.Module
}

// NodeType describes a kind of node that can appear in a Graph: its data and
// exec ports, whether it is pure, and how it lowers to backend
// instructions. Every concrete node type (LangModule builtins,
// GraphFunction-derived call nodes, GraphStruct make/break nodes) implements
// this interface.
type NodeType interface {
	// Module returns the full name of the module that owns this node type.
	Module() string
	// Name returns the node type's unqualified name.
	Name() string
	// Description returns a human-readable summary, surfaced by docgen.
	Description() string

	DataInputs() []NamedDataType
	DataOutputs() []NamedDataType
	ExecInputs() []string
	ExecOutputs() []string

	// Pure reports whether this node type has no exec ports: a single
	// implicit input/output pair, materialized on demand per spec.md's
	// pure-node inlining rule (Stage D).
	Pure() bool

	// Codegen emits this node instance's instructions into params.Block,
	// terminating the block with a branch to the appropriate entry of
	// params.OutputBlocks (or CreateRet, for ExitNodeType).
	Codegen(params CodegenParams) *Result

	// Clone returns a deep-enough copy suitable for a fresh NodeInstance;
	// node types carrying construction-time parameters (BinaryOperationNodeType's
	// DataType+BinOp, ConstIntNodeType's literal default) must copy them.
	Clone() NodeType

	// ToJSON returns the "data" payload this node type contributes to a
	// serialized NodeInstance, matching each LangModule type's toJSON in
	// the original (e.g. the literal value for ConstIntNodeType, the
	// data/exec descriptor arrays for EntryNodeType/ExitNodeType).
	ToJSON() (map[string]any, error)
}

// nodeTypeBase factors the fields/accessors every concrete NodeType shares,
// the way the original's NodeType base class does.
type nodeTypeBase struct {
	module      string
	name        string
	description string
	dataIns     []NamedDataType
	dataOuts    []NamedDataType
	execIns     []string
	execOuts    []string
	pure        bool
}

func (b *nodeTypeBase) Module() string                { return b.module }
func (b *nodeTypeBase) Name() string                  { return b.name }
func (b *nodeTypeBase) Description() string           { return b.description }
func (b *nodeTypeBase) DataInputs() []NamedDataType   { return append([]NamedDataType{}, b.dataIns...) }
func (b *nodeTypeBase) DataOutputs() []NamedDataType  { return append([]NamedDataType{}, b.dataOuts...) }
func (b *nodeTypeBase) ExecInputs() []string          { return append([]string{}, b.execIns...) }
func (b *nodeTypeBase) ExecOutputs() []string         { return append([]string{}, b.execOuts...) }
func (b *nodeTypeBase) Pure() bool                    { return b.pure }

func (b *nodeTypeBase) clone() nodeTypeBase {
	return nodeTypeBase{
		module:      b.module,
		name:        b.name,
		description: b.description,
		dataIns:     append([]NamedDataType{}, b.dataIns...),
		dataOuts:    append([]NamedDataType{}, b.dataOuts...),
		execIns:     append([]string{}, b.execIns...),
		execOuts:    append([]string{}, b.execOuts...),
		pure:        b.pure,
	}
}
