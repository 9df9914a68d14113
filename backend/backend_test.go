package backend_test

import (
	"testing"

	"github.com/chigraph/chi/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_Primitives(t *testing.T) {
	ctx := backend.NewContext()
	assert.Equal(t, backend.KindInt, ctx.I1().Kind())
	assert.Equal(t, backend.KindInt, ctx.I32().Kind())
	assert.Equal(t, backend.KindInt, ctx.I64().Kind())
	assert.Equal(t, backend.KindFloat, ctx.Float().Kind())
	assert.Equal(t, backend.KindVoid, ctx.Void().Kind())
	assert.Equal(t, backend.KindPointer, ctx.I8Ptr().Kind())
	assert.True(t, backend.IsNumeric(ctx.I1()))
	assert.True(t, backend.IsNumeric(ctx.I32()))
	assert.True(t, backend.IsNumeric(ctx.Float()))
	assert.False(t, backend.IsNumeric(ctx.I8Ptr()))
}

func TestContext_PointerTo(t *testing.T) {
	ctx := backend.NewContext()
	p := ctx.PointerTo(ctx.I32())
	require.Equal(t, backend.KindPointer, p.Kind())
	assert.Equal(t, "i32*", p.String())
}

func TestContext_DeclareStruct(t *testing.T) {
	ctx := backend.NewContext()
	fields := []backend.StructField{{Name: "x", Type: ctx.I32()}, {Name: "y", Type: ctx.Float()}}
	st, err := ctx.DeclareStruct("Point", fields)
	require.NoError(t, err)
	assert.Equal(t, 0, st.FieldIndex("x"))
	assert.Equal(t, 1, st.FieldIndex("y"))
	assert.Equal(t, -1, st.FieldIndex("z"))

	// redeclaring the same name returns the existing type rather than erroring
	again, err := ctx.DeclareStruct("Point", nil)
	require.NoError(t, err)
	assert.Same(t, st, again)
}

// buildIdentityFunction builds a trivial one-block function: it stores its
// single i32 parameter straight to its single i32 output pointer and
// returns, the same shape FunctionCompiler emits for a pass-through node.
func buildIdentityFunction(t *testing.T, ctx *backend.Context, mod *backend.Module) *backend.Function {
	t.Helper()
	fn, err := mod.DeclareFunction("identity", []backend.Type{ctx.I32(), ctx.PointerTo(ctx.I32())}, []string{"x", "outY"}, ctx.Void())
	require.NoError(t, err)
	entry := fn.AppendBlock("entry")
	b := ctx.NewBuilder()
	b.SetInsertPoint(entry)
	b.CreateStore(fn.Param(0), fn.Param(1))
	b.CreateRet(nil)
	return fn
}

func TestBuilder_StoreLoadRoundTrip(t *testing.T) {
	ctx := backend.NewContext()
	mod := ctx.NewModule("test")
	fn, err := mod.DeclareFunction("roundtrip", nil, nil, ctx.Void())
	require.NoError(t, err)
	entry := fn.AppendBlock("entry")
	b := ctx.NewBuilder()
	b.SetInsertPoint(entry)

	slot := b.CreateAlloca(ctx.I32(), "slot")
	require.Equal(t, backend.KindPointer, slot.Type().Kind())
	b.CreateStore(ctx.ConstInt(ctx.I32(), 42), slot)
	loaded := b.CreateLoad(slot, "v")
	assert.Equal(t, backend.KindInt, loaded.Type().Kind())
	b.CreateRet(nil)

	require.NoError(t, mod.Verify())
}

func TestBuilder_BinOpRequiresMatchingKinds(t *testing.T) {
	ctx := backend.NewContext()
	mod := ctx.NewModule("test")
	fn, err := mod.DeclareFunction("mismatch", nil, nil, ctx.Void())
	require.NoError(t, err)
	entry := fn.AppendBlock("entry")
	b := ctx.NewBuilder()
	b.SetInsertPoint(entry)

	_, err = b.CreateBinOp(backend.BinAdd, ctx.ConstInt(ctx.I32(), 1), ctx.ConstFloat(1.5), "")
	assert.Error(t, err)
}

func TestBuilder_BinOpFloatDispatch(t *testing.T) {
	ctx := backend.NewContext()
	mod := ctx.NewModule("test")
	fn, err := mod.DeclareFunction("addf", nil, nil, ctx.Void())
	require.NoError(t, err)
	entry := fn.AppendBlock("entry")
	b := ctx.NewBuilder()
	b.SetInsertPoint(entry)

	sum, err := b.CreateBinOp(backend.BinAdd, ctx.ConstFloat(1), ctx.ConstFloat(2), "sum")
	require.NoError(t, err)
	assert.Equal(t, backend.KindFloat, sum.Type().Kind())
	b.CreateRet(nil)
}

func TestBuilder_CmpAlwaysReturnsI1(t *testing.T) {
	ctx := backend.NewContext()
	mod := ctx.NewModule("test")
	fn, err := mod.DeclareFunction("cmp", nil, nil, ctx.Void())
	require.NoError(t, err)
	entry := fn.AppendBlock("entry")
	b := ctx.NewBuilder()
	b.SetInsertPoint(entry)

	lt, err := b.CreateCmp(backend.CmpLt, ctx.ConstFloat(1), ctx.ConstFloat(2), "lt")
	require.NoError(t, err)
	assert.Equal(t, backend.KindInt, lt.Type().Kind())
	b.CreateRet(nil)
}

func TestBuilder_ConversionRoundTrip(t *testing.T) {
	ctx := backend.NewContext()
	mod := ctx.NewModule("test")
	fn, err := mod.DeclareFunction("convround", nil, nil, ctx.Void())
	require.NoError(t, err)
	entry := fn.AppendBlock("entry")
	b := ctx.NewBuilder()
	b.SetInsertPoint(entry)

	asFloat := b.CreateSIToFP(ctx.ConstInt(ctx.I32(), 3), "")
	assert.Same(t, ctx.Float(), asFloat.Type())
	backToInt := b.CreateFPToSI(asFloat, "")
	assert.Same(t, ctx.I32(), backToInt.Type())
	widened := b.CreateSExt(ctx.ConstInt(ctx.I1(), 1), ctx.I32(), "")
	assert.Same(t, ctx.I32(), widened.Type())
	narrowed := b.CreateTrunc(widened, ctx.I1(), "")
	assert.Same(t, ctx.I1(), narrowed.Type())
	b.CreateRet(nil)
}

func TestBuilder_CreateFieldPtr(t *testing.T) {
	ctx := backend.NewContext()
	st, err := ctx.DeclareStruct("Pair", []backend.StructField{{Name: "a", Type: ctx.I32()}, {Name: "b", Type: ctx.I32()}})
	require.NoError(t, err)
	mod := ctx.NewModule("test")
	fn, err := mod.DeclareFunction("field", []backend.Type{ctx.PointerTo(st)}, []string{"p"}, ctx.Void())
	require.NoError(t, err)
	entry := fn.AppendBlock("entry")
	b := ctx.NewBuilder()
	b.SetInsertPoint(entry)

	ptr, err := b.CreateFieldPtr(fn.Param(0), st, 1)
	require.NoError(t, err)
	pt, ok := ptr.Type().(*backend.PointerType)
	require.True(t, ok)
	assert.Same(t, ctx.I32(), pt.Elem)

	_, err = b.CreateFieldPtr(fn.Param(0), st, 5)
	assert.Error(t, err)

	b.CreateRet(nil)
}

func TestBuilder_GlobalStringInterning(t *testing.T) {
	ctx := backend.NewContext()
	mod := ctx.NewModule("test")
	fn, err := mod.DeclareFunction("strs", nil, nil, ctx.Void())
	require.NoError(t, err)
	entry := fn.AppendBlock("entry")
	b := ctx.NewBuilder()
	b.SetInsertPoint(entry)

	a := b.CreateGlobalString("hello")
	c := b.CreateGlobalString("hello")
	d := mod.GlobalString("hello")
	assert.Same(t, a, c)
	assert.Same(t, a, d)
	b.CreateRet(nil)
}

func TestBuilder_CreateCall(t *testing.T) {
	ctx := backend.NewContext()
	mod := ctx.NewModule("test")
	callee, err := mod.DeclareFunction("callee", []backend.Type{ctx.I32()}, []string{"x"}, ctx.I32())
	require.NoError(t, err)
	ce := callee.AppendBlock("entry")
	cb := ctx.NewBuilder()
	cb.SetInsertPoint(ce)
	cb.CreateRet(callee.Param(0))

	caller, err := mod.DeclareFunction("caller", nil, nil, ctx.Void())
	require.NoError(t, err)
	centry := caller.AppendBlock("entry")
	bld := ctx.NewBuilder()
	bld.SetInsertPoint(centry)
	result := bld.CreateCall(callee, []backend.Value{ctx.ConstInt(ctx.I32(), 7)}, "r")
	require.NotNil(t, result)
	assert.Same(t, ctx.I32(), result.Type())
	bld.CreateRet(nil)

	require.NoError(t, mod.Verify())
}

func TestBuilder_CreateCallVoidReturnsNil(t *testing.T) {
	ctx := backend.NewContext()
	mod := ctx.NewModule("test")
	callee, err := mod.DeclareFunction("noop", nil, nil, ctx.Void())
	require.NoError(t, err)
	ce := callee.AppendBlock("entry")
	cb := ctx.NewBuilder()
	cb.SetInsertPoint(ce)
	cb.CreateRet(nil)

	caller, err := mod.DeclareFunction("caller", nil, nil, ctx.Void())
	require.NoError(t, err)
	centry := caller.AppendBlock("entry")
	bld := ctx.NewBuilder()
	bld.SetInsertPoint(centry)
	result := bld.CreateCall(callee, nil, "")
	assert.Nil(t, result)
	bld.CreateRet(nil)
}

func TestBuilder_PanicsWithoutInsertPoint(t *testing.T) {
	ctx := backend.NewContext()
	b := ctx.NewBuilder()
	assert.Panics(t, func() {
		b.CreateRet(nil)
	})
}

func TestBuilder_PanicsOnDoubleTerminate(t *testing.T) {
	ctx := backend.NewContext()
	mod := ctx.NewModule("test")
	fn, err := mod.DeclareFunction("f", nil, nil, ctx.Void())
	require.NoError(t, err)
	entry := fn.AppendBlock("entry")
	b := ctx.NewBuilder()
	b.SetInsertPoint(entry)
	b.CreateRet(nil)
	assert.Panics(t, func() {
		b.CreateRet(nil)
	})
}

func TestModule_Verify_UnterminatedBlockFails(t *testing.T) {
	ctx := backend.NewContext()
	mod := ctx.NewModule("test")
	fn, err := mod.DeclareFunction("f", nil, nil, ctx.Void())
	require.NoError(t, err)
	fn.AppendBlock("entry")
	assert.Error(t, mod.Verify())
}

func TestModule_Verify_NoBlocksFails(t *testing.T) {
	ctx := backend.NewContext()
	mod := ctx.NewModule("test")
	_, err := mod.DeclareFunction("f", nil, nil, ctx.Void())
	require.NoError(t, err)
	assert.Error(t, mod.Verify())
}

func TestModule_Verify_BranchToOwnFunctionPasses(t *testing.T) {
	ctx := backend.NewContext()
	mod := ctx.NewModule("test")
	fn, err := mod.DeclareFunction("f", nil, nil, ctx.Void())
	require.NoError(t, err)
	entry := fn.AppendBlock("entry")
	exit := fn.AppendBlock("exit")
	b := ctx.NewBuilder()
	b.SetInsertPoint(entry)
	b.CreateBr(exit)
	b.SetInsertPoint(exit)
	b.CreateRet(nil)
	assert.NoError(t, mod.Verify())
}

func TestModule_DeclareFunction_DuplicateNameErrors(t *testing.T) {
	ctx := backend.NewContext()
	mod := ctx.NewModule("test")
	_, err := mod.DeclareFunction("dup", nil, nil, ctx.Void())
	require.NoError(t, err)
	_, err = mod.DeclareFunction("dup", nil, nil, ctx.Void())
	assert.Error(t, err)
}

func TestModule_Link(t *testing.T) {
	ctx := backend.NewContext()
	a := ctx.NewModule("a")
	b := ctx.NewModule("b")
	buildIdentityFunction(t, ctx, b)
	b.GlobalString("shared")

	require.NoError(t, a.Link(b))
	_, ok := a.Function("identity")
	assert.True(t, ok)
	assert.True(t, b.Invalidated())

	// operating on the invalidated module is rejected
	_, err := b.DeclareFunction("anything", nil, nil, ctx.Void())
	assert.Error(t, err)
}

func TestModule_Link_ConflictingFunctionNamesErrors(t *testing.T) {
	ctx := backend.NewContext()
	a := ctx.NewModule("a")
	b := ctx.NewModule("b")
	_, err := a.DeclareFunction("shared", nil, nil, ctx.Void())
	require.NoError(t, err)
	_, err = b.DeclareFunction("shared", nil, nil, ctx.Void())
	require.NoError(t, err)
	assert.Error(t, a.Link(b))
}

func TestModule_Link_DoubleLinkErrors(t *testing.T) {
	ctx := backend.NewContext()
	a := ctx.NewModule("a")
	b := ctx.NewModule("b")
	c := ctx.NewModule("c")
	require.NoError(t, a.Link(b))
	assert.Error(t, c.Link(b))
}

func TestFunction_AppendBlock_UniquifiesNames(t *testing.T) {
	ctx := backend.NewContext()
	mod := ctx.NewModule("test")
	fn, err := mod.DeclareFunction("f", nil, nil, ctx.Void())
	require.NoError(t, err)
	b1 := fn.AppendBlock("loop")
	b2 := fn.AppendBlock("loop")
	assert.Equal(t, "loop", b1.Name)
	assert.Equal(t, "loop1", b2.Name)
}

func TestDebugVar_RoundTrip(t *testing.T) {
	ctx := backend.NewContext()
	mod := ctx.NewModule("test")
	fn, err := mod.DeclareFunction("f", nil, nil, ctx.Void())
	require.NoError(t, err)
	entry := fn.AppendBlock("entry")
	b := ctx.NewBuilder()
	b.SetInsertPoint(entry)
	slot := b.CreateAlloca(ctx.I32(), "x")
	fn.AddDebugVar(&backend.DebugVar{Name: "x", Type: ctx.I32(), Slot: slot, NodeID: "n1"})
	b.CreateRet(nil)

	vars := fn.DebugVars()
	require.Len(t, vars, 1)
	assert.Equal(t, "x", vars[0].Name)
	assert.Equal(t, "n1", vars[0].NodeID)
}

func TestBuilder_SetLoc(t *testing.T) {
	ctx := backend.NewContext()
	mod := ctx.NewModule("test")
	fn, err := mod.DeclareFunction("f", nil, nil, ctx.Void())
	require.NoError(t, err)
	entry := fn.AppendBlock("entry")
	b := ctx.NewBuilder()
	b.SetInsertPoint(entry)
	b.CreateAlloca(ctx.I32(), "x")
	b.SetLoc(&backend.DebugLoc{NodeID: "n1", Function: "f", X: 10, Y: 20})
	b.CreateRet(nil)

	require.Len(t, entry.Instrs, 2)
	require.NotNil(t, entry.Instrs[0].Loc)
	assert.Equal(t, "n1", entry.Instrs[0].Loc.NodeID)
	assert.Nil(t, entry.Instrs[1].Loc)
}

func TestModule_DeclareExternal(t *testing.T) {
	ctx := backend.NewContext()
	mod := ctx.NewModule("test")
	ext, err := mod.DeclareExternal("helper", []backend.Type{ctx.I32()}, ctx.I32())
	require.NoError(t, err)
	assert.True(t, ext.External)
	assert.Empty(t, ext.Blocks)

	// redeclaring the same name returns the existing declaration
	again, err := mod.DeclareExternal("helper", nil, ctx.Void())
	require.NoError(t, err)
	assert.Same(t, ext, again)
}

func TestModule_Verify_SkipsExternalFunctions(t *testing.T) {
	ctx := backend.NewContext()
	mod := ctx.NewModule("test")
	_, err := mod.DeclareExternal("helper", nil, ctx.Void())
	require.NoError(t, err)
	assert.NoError(t, mod.Verify())
}

func TestModule_Dump(t *testing.T) {
	ctx := backend.NewContext()
	mod := ctx.NewModule("test")
	buildIdentityFunction(t, ctx, mod)
	_, err := mod.DeclareExternal("helper", nil, ctx.Void())
	require.NoError(t, err)

	dump := mod.Dump()
	assert.Contains(t, dump, "define")
	assert.Contains(t, dump, "identity")
	assert.Contains(t, dump, "declare")
	assert.Contains(t, dump, "helper")
}

func TestConstants(t *testing.T) {
	ctx := backend.NewContext()
	i := ctx.ConstInt(ctx.I32(), -5)
	ci, ok := i.(interface{ IntVal() int64 })
	require.True(t, ok)
	assert.Equal(t, int64(-5), ci.IntVal())

	f := ctx.ConstFloat(3.5)
	cf, ok := f.(interface{ FloatVal() float64 })
	require.True(t, ok)
	assert.Equal(t, 3.5, cf.FloatVal())

	tru := ctx.ConstBool(true)
	assert.Equal(t, backend.KindInt, tru.Type().Kind())
}
