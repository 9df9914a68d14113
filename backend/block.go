package backend

// Instr is one emitted instruction. The IR is intentionally untyped beyond
// this — chi only ever walks it for verification and textual dumping, never
// for optimization.
type Instr struct {
	Op       string
	Result   Value // nil for void instructions (store, br, condbr, switch, ret)
	Operands []Value
	Targets  []*BasicBlock // branch/switch/condbr destinations, in order
	Loc      *DebugLoc
}

// BasicBlock is a single-entry sequence of instructions ending in exactly
// one terminator (CreateBr, CreateCondBr, CreateSwitch, or CreateRet).
type BasicBlock struct {
	Name   string
	Fn     *Function
	Instrs []*Instr
}

// Terminator returns the block's terminating instruction, or nil if the
// block has not been terminated yet.
func (b *BasicBlock) Terminator() *Instr {
	if len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	switch last.Op {
	case "br", "condbr", "switch", "ret":
		return last
	default:
		return nil
	}
}

// Terminated reports whether the block already ends in a terminator.
func (b *BasicBlock) Terminated() bool { return b.Terminator() != nil }

// Function is a single compiled GraphFunction target: a name, a parameter
// list, a return type, and the basic blocks the FunctionCompiler emits into
// it. Parameter order follows spec.md's calling convention: the exec-input
// selector first, then one argument per data input, then one pointer
// argument per data output (the "return slots" the original passes by
// pointer rather than via a struct return).
type Function struct {
	Name       string
	Params     []*param
	RetType    Type
	Blocks     []*BasicBlock
	debugVars  []*DebugVar
	mod        *Module
	ssaCounter int

	// External marks a function declared via Module.DeclareExternal: a
	// callable signature with no body, left behind when
	// Context.CompileModule runs with LinkDependencies false. Verify does
	// not require an external function to have basic blocks.
	External bool
}

// Param returns the i'th parameter as a Value.
func (f *Function) Param(i int) Value { return f.Params[i] }

// AppendBlock creates a new named basic block at the end of the function.
func (f *Function) AppendBlock(name string) *BasicBlock {
	b := &BasicBlock{Name: f.blockName(name), Fn: f}
	f.Blocks = append(f.Blocks, b)
	return b
}

func (f *Function) blockName(base string) string {
	name := base
	n := 1
	for f.hasBlock(name) {
		name = base + itoa(int64(n))
		n++
	}
	return name
}

func (f *Function) hasBlock(name string) bool {
	for _, b := range f.Blocks {
		if b.Name == name {
			return true
		}
	}
	return false
}

func (f *Function) nextSSA() string {
	f.ssaCounter++
	return "v" + itoa(int64(f.ssaCounter))
}

// AddDebugVar records a stack-slot-to-source-variable mapping, the backend
// counterpart of an llvm.dbg.declare.
func (f *Function) AddDebugVar(dv *DebugVar) { f.debugVars = append(f.debugVars, dv) }

// DebugVars returns every debug variable attached to this function.
func (f *Function) DebugVars() []*DebugVar { return f.debugVars }
