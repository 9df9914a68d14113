package chi

import (
	"fmt"

	"github.com/chigraph/chi/backend"
)

// FunctionCompiler lowers one GraphFunction's Graph into a backend.Function
// inside an already-created backend.Module, following the seven stages
// named in spec.md §4.6:
//
//	A. Validate the graph (entry/exit present, required inputs connected,
//	   no cyclic pure-data dependency).
//	B. Lay out one basic block per (node, exec-input-slot) pair.
//	C. Allocate stack storage for every node's data outputs in the
//	   function's entry block.
//	D. Materialize pure nodes on demand, memoized per (node, block).
//	E. Walk the exec graph from the entry node, emitting each node's
//	   Codegen into its block and wiring branches to the blocks its exec
//	   outputs target.
//	F. Route any exec output left unconnected to the default exit path.
//	G. Tag every instruction emitted for a node (including those of the
//	   pure nodes materialized into its block) with that node's source
//	   location, and every impure node's data-output slot with a DebugVar.
type FunctionCompiler struct {
	ctx *Context
	mod *backend.Module
	gf  *GraphFunction

	bctx    *backend.Context
	fn      *backend.Function
	builder *backend.Builder

	// blocks maps "<nodeID>#<execInputIndex>" to the block that exec
	// input slot dispatches into.
	blocks map[string]*backend.BasicBlock

	// dataSlots[nodeID][i] is the stack pointer backing data output i of
	// the named (impure) node.
	dataSlots map[string][]backend.Value

	// pureCache[nodeID][block] memoizes a pure node's materialized output
	// values within one block, per spec.md's pure-node inlining rule
	// (Stage D): a pure node may be referenced by more than one consumer
	// in the same block and must only be evaluated once there.
	pureCache map[string]map[*backend.BasicBlock][]backend.Value

	defaultExit *backend.BasicBlock
}

// NewFunctionCompiler creates a compiler for gf, to emit into mod.
func NewFunctionCompiler(ctx *Context, mod *backend.Module, gf *GraphFunction) *FunctionCompiler {
	return &FunctionCompiler{
		ctx:       ctx,
		mod:       mod,
		gf:        gf,
		bctx:      ctx.Backend(),
		blocks:    make(map[string]*backend.BasicBlock),
		dataSlots: make(map[string][]backend.Value),
		pureCache: make(map[string]map[*backend.BasicBlock][]backend.Value),
	}
}

// Compile runs all seven stages and returns the accumulated diagnostics.
// On success, the compiled backend.Function has been added to fc.mod under
// fc.gf.Name.
func (fc *FunctionCompiler) Compile() *Result {
	r := NewResult()

	// Stage A: validate.
	if validateRes := fc.validate(); !validateRes.Success {
		return validateRes
	}

	entry, ok := fc.gf.EntryNode()
	if !ok {
		r.AddEntry(CodeInvalidSignature, fmt.Sprintf("graph %q has no entry node", fc.gf.Name), map[string]any{"Function": fc.gf.Name})
		return r
	}
	exit, hasExit := fc.gf.ExitNode()

	// Build the backend.Function signature: [execSelector, dataIns..., dataOutPtrs...].
	paramTypes := []backend.Type{fc.bctx.I32()}
	paramNames := []string{"exec"}
	for _, in := range fc.gf.DataInputs() {
		paramTypes = append(paramTypes, in.Type.Backend())
		paramNames = append(paramNames, in.Label)
	}
	for _, out := range fc.gf.DataOutputs() {
		paramTypes = append(paramTypes, fc.bctx.PointerTo(out.Type.Backend()))
		paramNames = append(paramNames, out.Label+"_out")
	}
	fn, err := fc.mod.DeclareFunction(fc.gf.Name, paramTypes, paramNames, fc.bctx.I32())
	if err != nil {
		r.AddEntry(CodeBackendError, err.Error(), map[string]any{"Function": fc.gf.Name})
		return r
	}
	fc.fn = fn
	fc.builder = fc.bctx.NewBuilder()

	// Stage B: one block per (node, exec-input-slot).
	prologue := fn.AppendBlock("entry")
	for _, n := range fc.gf.Graph.Nodes() {
		for i := range n.Type.ExecInputs() {
			key := execBlockKey(n.ID, i)
			fc.blocks[key] = fn.AppendBlock(n.ID + "_in")
		}
	}

	// Default exit: the exit node's first exec-input slot, per spec.md §9's
	// resolved Open Question (c) that unconnected exec outputs implicitly
	// route to the default exit path. If the exit node has no exec inputs,
	// synthesize a default exit that returns 0.
	if hasExit && len(exit.Type.ExecInputs()) > 0 {
		fc.defaultExit = fc.blocks[execBlockKey(exit.ID, 0)]
	} else {
		fc.defaultExit = fn.AppendBlock("default_exit")
		fc.builder.SetInsertPoint(fc.defaultExit)
		fc.builder.CreateRet(fc.ctx.ConstI32(0))
	}

	// Stage C: allocate data-output storage for every non-pure node.
	fc.builder.SetInsertPoint(prologue)
	for _, n := range fc.gf.Graph.Nodes() {
		if n.Type.Pure() {
			continue
		}
		outs := n.Type.DataOutputs()
		slots := make([]backend.Value, len(outs))
		for i, o := range outs {
			slots[i] = fc.builder.CreateAlloca(o.Type.Backend(), n.ID+"_out"+itoaFC(i))
			fc.builder.SetLoc(&backend.DebugLoc{NodeID: n.ID, Function: fc.gf.Name, X: n.X, Y: n.Y})
			fn.AddDebugVar(&backend.DebugVar{Name: o.Label, Type: o.Type.Backend(), Slot: slots[i], NodeID: n.ID})
		}
		fc.dataSlots[n.ID] = slots
	}
	// Stage E: emit the entry node's codegen, which stores the function's
	// data-input args into its own data-output slots and dispatches on
	// the exec selector arg. The entry node itself is the one node with
	// zero exec inputs that still needs a "home" block to run in once, so
	// it is emitted directly at the end of the prologue rather than from
	// an execBlockKey entry.
	entryOutBlocks := fc.outputBlocksFor(entry)
	entryParams := CodegenParams{
		Location:     backend.DebugLoc{NodeID: entry.ID, Function: fc.gf.Name, X: entry.X, Y: entry.Y},
		IO:           fc.ioFor(entry, prologue),
		Block:        prologue,
		OutputBlocks: entryOutBlocks,
		Builder:      fc.builder,
		BackendCtx:   fc.bctx,
		Module:       fc.mod,
	}
	if genRes := entry.Type.Codegen(entryParams); genRes != nil {
		r.Merge(genRes)
	}
	// Stage G: tag the entry node's instructions with its source location.
	for _, instr := range prologue.Instrs {
		if instr.Loc == nil {
			instr.Loc = &entryParams.Location
		}
	}

	// Emit every other impure node into its own exec-input block(s).
	for _, n := range fc.gf.Graph.Nodes() {
		if n.Type.Pure() || n.ID == entry.ID {
			continue
		}
		for execIdx := range n.Type.ExecInputs() {
			block := fc.blocks[execBlockKey(n.ID, execIdx)]
			fc.builder.SetInsertPoint(block)
			params := CodegenParams{
				ExecInputID:  execIdx,
				Location:     backend.DebugLoc{NodeID: n.ID, Function: fc.gf.Name, X: n.X, Y: n.Y},
				IO:           fc.ioFor(n, block),
				Block:        block,
				OutputBlocks: fc.outputBlocksFor(n),
				Builder:      fc.builder,
				BackendCtx:   fc.bctx,
				Module:       fc.mod,
			}
			if genRes := n.Type.Codegen(params); genRes != nil {
				r.Merge(genRes)
			}
			// Stage F: a node type that didn't terminate its block (most
			// don't on the no-exec-outputs path) falls through to the
			// default exit.
			if !block.Terminated() {
				fc.builder.SetInsertPoint(block)
				fc.builder.CreateBr(fc.defaultExit)
			}
			// Stage G: tag every instruction in the block (the node's own
			// and those of the pure nodes materialized for it) with the
			// node's source location.
			for _, instr := range block.Instrs {
				if instr.Loc == nil {
					instr.Loc = &params.Location
				}
			}
		}
	}

	if !prologue.Terminated() {
		// entry.Type.Codegen always terminates prologue via CreateSwitch;
		// this is a defensive fallback for a malformed entry node type.
		fc.builder.SetInsertPoint(prologue)
		fc.builder.CreateBr(fc.defaultExit)
	}

	return r
}

// validate implements Stage A.
func (fc *FunctionCompiler) validate() *Result {
	r := NewResult()
	if _, ok := fc.gf.EntryNode(); !ok {
		r.AddEntry(CodeInvalidSignature, fmt.Sprintf("graph %q has no entry node set", fc.gf.Name), map[string]any{"Function": fc.gf.Name})
	}
	if _, ok := fc.gf.ExitNode(); !ok {
		r.AddEntry(CodeInvalidSignature, fmt.Sprintf("graph %q has no exit node set", fc.gf.Name), map[string]any{"Function": fc.gf.Name})
	}
	if cycle := fc.gf.Graph.PureDependencyCycle(); cycle != nil {
		r.AddEntry(CodeCyclicPureDependency, fmt.Sprintf("cyclic pure dependency in %q: %v", fc.gf.Name, cycle), map[string]any{"Function": fc.gf.Name, "Cycle": cycle})
	}
	for _, n := range fc.gf.Graph.Nodes() {
		for i, in := range n.Type.DataInputs() {
			if n.DataInputEdge(i) == nil {
				r.AddEntry(CodeUnconnectedInput, fmt.Sprintf("node %q data input %q is unconnected", n.ID, in.Label), map[string]any{"Node ID": n.ID, "Input": in.Label})
			}
		}
	}
	return r
}

// ioFor builds the IO slice CodegenParams passes to n's Codegen: one Value
// per data input (materialized if its source is pure, loaded if not), then
// one pointer Value per data output.
func (fc *FunctionCompiler) ioFor(n *NodeInstance, block *backend.BasicBlock) []backend.Value {
	var io []backend.Value
	for i := range n.Type.DataInputs() {
		e := n.DataInputEdge(i)
		if e == nil {
			io = append(io, nil)
			continue
		}
		src, _ := fc.gf.Graph.Node(e.SrcNode)
		val := fc.valueFor(src, e.SrcPort, block)
		if e.Converter != nil {
			val = fc.convert(e.Converter, val, block)
		}
		io = append(io, val)
	}
	if n.Type.Pure() {
		// A pure node's single implicit output is the caller's to store;
		// give it a fresh slot per materialization site.
		for _, o := range n.Type.DataOutputs() {
			io = append(io, fc.builder.CreateAlloca(o.Type.Backend(), n.ID+"_pure"))
		}
	} else {
		io = append(io, fc.dataSlots[n.ID]...)
	}
	return io
}

// valueFor returns the value produced by node n's data output port in
// block, materializing n (Stage D) if it is pure and memoizing the result
// for this block.
func (fc *FunctionCompiler) valueFor(n *NodeInstance, port int, block *backend.BasicBlock) backend.Value {
	if !n.Type.Pure() {
		slot := fc.dataSlots[n.ID][port]
		return fc.builder.CreateLoad(slot, "")
	}
	if byBlock, ok := fc.pureCache[n.ID]; ok {
		if vals, ok := byBlock[block]; ok {
			return vals[port]
		}
	}
	io := fc.ioFor(n, block)
	params := CodegenParams{
		Location:     backend.DebugLoc{NodeID: n.ID, Function: fc.gf.Name, X: n.X, Y: n.Y},
		IO:           io,
		Block:        block,
		OutputBlocks: []*backend.BasicBlock{block},
		Builder:      fc.builder,
		BackendCtx:   fc.bctx,
		Module:       fc.mod,
	}
	n.Type.Codegen(params)
	// Pure codegen always ends with CreateBr(outputBlocks[0]) per every
	// LangModule literal/op node; since outputBlocks[0] == block here,
	// that br would self-terminate the block. Pure nodes never actually
	// need a terminator (they fall through), so trim it back off.
	unterminate(block)

	outs := io[len(n.Type.DataInputs()):]
	vals := make([]backend.Value, len(outs))
	for i, ptr := range outs {
		vals[i] = fc.builder.CreateLoad(ptr, "")
	}
	if fc.pureCache[n.ID] == nil {
		fc.pureCache[n.ID] = make(map[*backend.BasicBlock][]backend.Value)
	}
	fc.pureCache[n.ID][block] = vals
	return vals[port]
}

// convert materializes a converter node inline in block, emitting it the
// same way valueFor materializes any other pure node: no memoization is
// needed since a data input has exactly one source edge, so a given
// converter instance is only ever read from the one block its consumer
// occupies.
func (fc *FunctionCompiler) convert(converter NodeType, in backend.Value, block *backend.BasicBlock) backend.Value {
	out := converter.DataOutputs()[0]
	outPtr := fc.builder.CreateAlloca(out.Type.Backend(), "conv")
	params := CodegenParams{
		IO:           []backend.Value{in, outPtr},
		Block:        block,
		OutputBlocks: []*backend.BasicBlock{block},
		Builder:      fc.builder,
		BackendCtx:   fc.bctx,
		Module:       fc.mod,
	}
	converter.Codegen(params)
	unterminate(block)
	return fc.builder.CreateLoad(outPtr, "")
}

// outputBlocksFor resolves n's exec outputs to destination blocks,
// implementing Stage F: an unconnected exec output routes to the default
// exit.
func (fc *FunctionCompiler) outputBlocksFor(n *NodeInstance) []*backend.BasicBlock {
	outs := make([]*backend.BasicBlock, len(n.Type.ExecOutputs()))
	for i := range outs {
		e := n.ExecOutputEdge(i)
		if e == nil {
			outs[i] = fc.defaultExit
			continue
		}
		outs[i] = fc.blocks[execBlockKey(e.DstNode, e.DstPort)]
	}
	return outs
}

func execBlockKey(nodeID string, execInputIdx int) string {
	return fmt.Sprintf("%s#%d", nodeID, execInputIdx)
}

func itoaFC(i int) string {
	return fmt.Sprintf("%d", i)
}

// unterminate removes a block's terminator so more instructions can follow
// it within the same pure-materialization pass. Only ever used right after
// a pure node type's Codegen call, which this package fully controls.
func unterminate(b *backend.BasicBlock) {
	if b.Terminated() {
		b.Instrs = b.Instrs[:len(b.Instrs)-1]
	}
}
