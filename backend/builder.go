package backend

import "fmt"

// BinOp names an arithmetic binary operation, dispatched by the caller based
// on operand type (integer vs. float), mirroring LangModule's
// BinaryOperationNodeType.
type BinOp int

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
)

// CmpOp names a comparison, mirroring LangModule's CompareNodeType.
type CmpOp int

const (
	CmpLt CmpOp = iota
	CmpGt
	CmpLe
	CmpGe
	CmpEq
	CmpNeq
)

// Builder emits instructions into one basic block at a time, the way
// llvm.IRBuilder does. SetInsertPoint switches which block subsequent
// Create* calls append to.
type Builder struct {
	ctx *Context
	cur *BasicBlock
}

// NewBuilder creates a builder with no insert point set.
func (c *Context) NewBuilder() *Builder { return &Builder{ctx: c} }

// SetInsertPoint directs subsequent Create* calls to append to b.
func (bld *Builder) SetInsertPoint(b *BasicBlock) { bld.cur = b }

func (bld *Builder) block() *BasicBlock {
	if bld.cur == nil {
		panic("backend: builder has no insert point set")
	}
	if bld.cur.Terminated() {
		panic(fmt.Sprintf("backend: block %q is already terminated", bld.cur.Name))
	}
	return bld.cur
}

func (bld *Builder) emit(instr *Instr) Value {
	b := bld.block()
	b.Instrs = append(b.Instrs, instr)
	return instr.Result
}

// CreateAlloca reserves a stack slot of type ty, returning a pointer value.
func (bld *Builder) CreateAlloca(ty Type, name string) Value {
	fn := bld.block().Fn
	res := &instrValue{ty: &PointerType{Elem: ty}, name: fn.nextSSA()}
	bld.emit(&Instr{Op: "alloca", Result: res})
	return res
}

// CreateStore writes val into the pointer ptr.
func (bld *Builder) CreateStore(val, ptr Value) {
	bld.emit(&Instr{Op: "store", Operands: []Value{val, ptr}})
}

// CreateLoad reads the pointer ptr.
func (bld *Builder) CreateLoad(ptr Value, name string) Value {
	pt, ok := ptr.Type().(*PointerType)
	if !ok {
		panic("backend: CreateLoad on non-pointer value")
	}
	fn := bld.block().Fn
	res := &instrValue{ty: pt.Elem, name: fn.nextSSA()}
	bld.emit(&Instr{Op: "load", Result: res, Operands: []Value{ptr}})
	return res
}

// CreateBr terminates the current block with an unconditional branch.
func (bld *Builder) CreateBr(dst *BasicBlock) {
	bld.emit(&Instr{Op: "br", Targets: []*BasicBlock{dst}})
}

// CreateCondBr terminates the current block with a two-way branch on cond,
// the instruction LangModule's IfNodeType lowers to.
func (bld *Builder) CreateCondBr(cond Value, thenBB, elseBB *BasicBlock) {
	bld.emit(&Instr{Op: "condbr", Operands: []Value{cond}, Targets: []*BasicBlock{thenBB, elseBB}})
}

// CreateSwitch terminates the current block with an n-way branch on sel,
// the instruction EntryNodeType lowers the exec-ID argument to. cases[i]
// is the destination for selector value i; def is used for any value
// outside that range.
func (bld *Builder) CreateSwitch(sel Value, def *BasicBlock, cases []*BasicBlock) {
	targets := append([]*BasicBlock{def}, cases...)
	bld.emit(&Instr{Op: "switch", Operands: []Value{sel}, Targets: targets})
}

// CreateRet terminates the current block by returning val, the instruction
// ExitNodeType lowers the fired exec-input's index to.
func (bld *Builder) CreateRet(val Value) {
	var ops []Value
	if val != nil {
		ops = []Value{val}
	}
	bld.emit(&Instr{Op: "ret", Operands: ops})
}

// CreateBinOp emits an integer or float arithmetic instruction depending on
// lhs's type, matching BinaryOperationNodeType's dispatch on
// mType.unqualifiedName().
func (bld *Builder) CreateBinOp(op BinOp, lhs, rhs Value, name string) (Value, error) {
	if lhs.Type().Kind() != rhs.Type().Kind() {
		return nil, mismatchErr("binop", lhs.Type(), rhs.Type())
	}
	fn := bld.block().Fn
	res := &instrValue{ty: lhs.Type(), name: fn.nextSSA()}
	mnemonic := map[BinOp]string{BinAdd: "add", BinSub: "sub", BinMul: "mul", BinDiv: "div"}[op]
	if lhs.Type().Kind() == KindFloat {
		mnemonic = "f" + mnemonic
	}
	bld.emit(&Instr{Op: mnemonic, Result: res, Operands: []Value{lhs, rhs}})
	return res, nil
}

// CreateCmp emits an integer or float comparison depending on lhs's type,
// matching CompareNodeType's dispatch. The result is always i1.
func (bld *Builder) CreateCmp(op CmpOp, lhs, rhs Value, name string) (Value, error) {
	if lhs.Type().Kind() != rhs.Type().Kind() {
		return nil, mismatchErr("cmp", lhs.Type(), rhs.Type())
	}
	fn := bld.block().Fn
	res := &instrValue{ty: bld.ctx.i1, name: fn.nextSSA()}
	mnemonics := map[CmpOp]string{CmpLt: "lt", CmpGt: "gt", CmpLe: "le", CmpGe: "ge", CmpEq: "eq", CmpNeq: "neq"}
	prefix := "icmp"
	if lhs.Type().Kind() == KindFloat {
		prefix = "fcmp"
	}
	bld.emit(&Instr{Op: prefix + "." + mnemonics[op], Result: res, Operands: []Value{lhs, rhs}})
	return res, nil
}

// CreateSIToFP converts a signed integer to float, matching
// IntToFloatNodeType.
func (bld *Builder) CreateSIToFP(val Value, name string) Value {
	fn := bld.block().Fn
	res := &instrValue{ty: bld.ctx.f64, name: fn.nextSSA()}
	bld.emit(&Instr{Op: "sitofp", Result: res, Operands: []Value{val}})
	return res
}

// CreateFPToSI converts a float to signed integer, matching
// FloatToIntNodeType.
func (bld *Builder) CreateFPToSI(val Value, name string) Value {
	fn := bld.block().Fn
	res := &instrValue{ty: bld.ctx.i32, name: fn.nextSSA()}
	bld.emit(&Instr{Op: "fptosi", Result: res, Operands: []Value{val}})
	return res
}

// CreateSExt sign-extends an integer to a wider integer type.
func (bld *Builder) CreateSExt(val Value, to Type, name string) Value {
	fn := bld.block().Fn
	res := &instrValue{ty: to, name: fn.nextSSA()}
	bld.emit(&Instr{Op: "sext", Result: res, Operands: []Value{val}})
	return res
}

// CreateTrunc truncates an integer to a narrower integer type.
func (bld *Builder) CreateTrunc(val Value, to Type, name string) Value {
	fn := bld.block().Fn
	res := &instrValue{ty: to, name: fn.nextSSA()}
	bld.emit(&Instr{Op: "trunc", Result: res, Operands: []Value{val}})
	return res
}

// CreateGlobalString interns s in the block's module and returns an i8*
// value, matching StringLiteralNodeType's CreateGlobalString + GEP pair
// (collapsed here since this IR has no separate GEP instruction).
func (bld *Builder) CreateGlobalString(s string) Value {
	return bld.block().Fn.mod.GlobalString(s)
}

// CreateCall emits a call to callee with args, matching cross-module call
// nodes (GraphModule-derived NodeType.Codegen).
func (bld *Builder) CreateCall(callee *Function, args []Value, name string) Value {
	var res Value
	if callee.RetType != nil && callee.RetType.Kind() != KindVoid {
		fn := bld.block().Fn
		res = &instrValue{ty: callee.RetType, name: fn.nextSSA()}
	}
	instr := &Instr{Op: "call:" + callee.Name, Result: res, Operands: append([]Value{}, args...)}
	bld.emit(instr)
	return res
}

// CreateFieldPtr returns a pointer to field index i of the struct value
// structPtr points to — the backend's collapsed stand-in for LLVM's GEP
// instruction, since this IR has no notion of address computation beyond
// "pointer to a named field of a named struct".
func (bld *Builder) CreateFieldPtr(structPtr Value, st *StructType, field int) (Value, error) {
	pt, ok := structPtr.Type().(*PointerType)
	if !ok {
		return nil, fmt.Errorf("backend: CreateFieldPtr on non-pointer value")
	}
	actual, ok := pt.Elem.(*StructType)
	if !ok || actual != st {
		return nil, fmt.Errorf("backend: CreateFieldPtr type mismatch")
	}
	if field < 0 || field >= len(st.Fields) {
		return nil, fmt.Errorf("backend: struct %q has no field %d", st.Name, field)
	}
	fn := bld.block().Fn
	res := &instrValue{ty: &PointerType{Elem: st.Fields[field].Type}, name: fn.nextSSA()}
	bld.emit(&Instr{Op: "fieldptr:" + itoa(int64(field)), Result: res, Operands: []Value{structPtr}})
	return res, nil
}

// SetLoc attaches a debug location to the last instruction emitted in the
// current block, the builder counterpart of IRBuilder::SetCurrentDebugLocation
// used per §4.6 Stage G.
func (bld *Builder) SetLoc(loc *DebugLoc) {
	b := bld.block()
	if len(b.Instrs) == 0 {
		return
	}
	b.Instrs[len(b.Instrs)-1].Loc = loc
}
