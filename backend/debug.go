package backend

// DebugLoc attaches a compiled instruction back to the NodeInstance and
// graph-function it was emitted for, the backend counterpart of an
// llvm.DebugLoc built from a DILocation. FunctionCompiler Stage G tags every
// instruction it emits with one of these.
type DebugLoc struct {
	NodeID   string
	Function string
	X, Y     float64
}

// DebugVar records that a stack slot (from CreateAlloca) corresponds to a
// named, typed source-level value — a data input, output, or local — the
// backend counterpart of an llvm.DILocalVariable plus its dbg.declare.
type DebugVar struct {
	Name  string
	Type  Type
	Slot  Value
	NodeID string
}
