package chi

import (
	"fmt"

	"github.com/chigraph/chi/backend"
)

// LangModule is the always-present builtin module ("lang") providing the
// primitive types (i32, i1, float, i8*) and the node types every graph
// needs to exist at all: control flow (if), the function boundary
// (entry/exit), literals, numeric conversion, arithmetic, and comparison.
// Every node type's codegen below mirrors LangModule.cpp instruction for
// instruction.
type LangModule struct {
	ctx   *Context
	types map[string]DataType
	deps  []string
}

// NewLangModule constructs the lang module bound to bctx's primitive
// backend types.
func NewLangModule(ctx *Context, bctx *backend.Context) *LangModule {
	m := &LangModule{ctx: ctx, types: make(map[string]DataType)}
	m.types["i32"] = NewDataType("lang", "i32", bctx.I32())
	m.types["i1"] = NewDataType("lang", "i1", bctx.I1())
	m.types["float"] = NewDataType("lang", "float", bctx.Float())
	m.types["i8*"] = NewDataType("lang", "i8*", bctx.I8Ptr())
	return m
}

func (m *LangModule) FullName() string { return "lang" }

func (m *LangModule) TypeFromName(name string) (DataType, bool) {
	t, ok := m.types[name]
	return t, ok
}

func (m *LangModule) TypeNames() []string {
	return []string{"i32", "i1", "float", "i8*"}
}

func (m *LangModule) Dependencies() []string       { return append([]string{}, m.deps...) }
func (m *LangModule) AddDependency(fullName string) { m.deps = append(m.deps, fullName) }

func (m *LangModule) GenerateModule(ctx *Context) (*ModuleIR, *Result) {
	// lang has no GraphFunctions of its own to lower; its node types
	// codegen directly into whatever function references them.
	return &ModuleIR{FullName: "lang", Backend: ctx.backend.NewModule("lang")}, NewResult()
}

func (m *LangModule) NodeTypeNames() []string {
	return []string{
		"if", "entry", "exit",
		"const-int", "const-float", "const-bool", "strliteral",
		"inttofloat", "floattoint",
		"i32+i32", "i32-i32", "i32*i32", "i32/i32",
		"float+float", "float-float", "float*float", "float/float",
		"i32<i32", "i32>i32", "i32<=i32", "i32>=i32", "i32==i32", "i32!=i32",
		"float<float", "float>float", "float<=float", "float>=float", "float==float", "float!=float",
	}
}

// NodeTypeFromName satisfies the Module interface for node types that need
// no per-instance JSON parameters. Node types that do (entry, exit, the
// literal nodes) should be constructed via NodeTypeFromNameJSON instead;
// this is only a convenience for generic Module callers.
func (m *LangModule) NodeTypeFromName(name string) (NodeType, bool) {
	nt, r := m.NodeTypeFromNameJSON(name, nil)
	return nt, r.Success
}

// NodeTypeFromNameJSON constructs a fresh instance of the named builtin
// node type. data carries whatever per-instance parameters that node type
// needs (entry/exit's port lists, the literal nodes' values); it may be nil
// for node types that don't need one.
func (m *LangModule) NodeTypeFromNameJSON(name string, data map[string]any) (NodeType, *Result) {
	r := NewResult()
	i32, f64, i1, i8p := m.types["i32"], m.types["float"], m.types["i1"], m.types["i8*"]

	switch name {
	case "if":
		return newIfNodeType(i1), r
	case "entry":
		return m.entryNodeTypeFromJSON(data, r)
	case "exit":
		return m.exitNodeTypeFromJSON(data, r)
	case "const-int":
		v := int32(0)
		if n, ok := data["value"].(float64); ok {
			v = int32(n)
		}
		return newConstIntNodeType(i32, v), r
	case "const-float":
		v := 0.0
		if n, ok := data["value"].(float64); ok {
			v = n
		}
		return newConstFloatNodeType(f64, v), r
	case "const-bool":
		v := false
		if b, ok := data["value"].(bool); ok {
			v = b
		}
		return newConstBoolNodeType(i1, v), r
	case "strliteral":
		s := ""
		if str, ok := data["value"].(string); ok {
			s = str
		}
		return newStringLiteralNodeType(i8p, s), r
	case "inttofloat":
		return newIntToFloatNodeType(i32, f64), r
	case "floattoint":
		return newFloatToIntNodeType(f64, i32), r
	case "i32+i32":
		return newBinaryOpNodeType(i32, backend.BinAdd), r
	case "i32-i32":
		return newBinaryOpNodeType(i32, backend.BinSub), r
	case "i32*i32":
		return newBinaryOpNodeType(i32, backend.BinMul), r
	case "i32/i32":
		return newBinaryOpNodeType(i32, backend.BinDiv), r
	case "float+float":
		return newBinaryOpNodeType(f64, backend.BinAdd), r
	case "float-float":
		return newBinaryOpNodeType(f64, backend.BinSub), r
	case "float*float":
		return newBinaryOpNodeType(f64, backend.BinMul), r
	case "float/float":
		return newBinaryOpNodeType(f64, backend.BinDiv), r
	case "i32<i32":
		return newCompareNodeType(i32, backend.CmpLt, i1), r
	case "i32>i32":
		return newCompareNodeType(i32, backend.CmpGt, i1), r
	case "i32<=i32":
		return newCompareNodeType(i32, backend.CmpLe, i1), r
	case "i32>=i32":
		return newCompareNodeType(i32, backend.CmpGe, i1), r
	case "i32==i32":
		return newCompareNodeType(i32, backend.CmpEq, i1), r
	case "i32!=i32":
		return newCompareNodeType(i32, backend.CmpNeq, i1), r
	case "float<float":
		return newCompareNodeType(f64, backend.CmpLt, i1), r
	case "float>float":
		return newCompareNodeType(f64, backend.CmpGt, i1), r
	case "float<=float":
		return newCompareNodeType(f64, backend.CmpLe, i1), r
	case "float>=float":
		return newCompareNodeType(f64, backend.CmpGe, i1), r
	case "float==float":
		return newCompareNodeType(f64, backend.CmpEq, i1), r
	case "float!=float":
		return newCompareNodeType(f64, backend.CmpNeq, i1), r
	}
	r.AddEntry(CodeUnknownNodeType, fmt.Sprintf("lang has no node type %q", name), map[string]any{
		"Module": "lang", "Requested Node Type": name,
	})
	return nil, r
}

func (m *LangModule) entryNodeTypeFromJSON(data map[string]any, r *Result) (NodeType, *Result) {
	var dataOuts []NamedDataType
	if raw, ok := data["data"].([]any); ok {
		for _, item := range raw {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			for label, qt := range obj {
				qts, _ := qt.(string)
				mod, tname, err := ParseQualifiedName(qts)
				if err != nil {
					r.AddEntry("WUKN", "entry data entry has a malformed qualified type", map[string]any{"Given": qts})
					continue
				}
				ty, ok := m.ctx.TypeFromModule(mod, tname)
				if !ok {
					r.AddEntry(CodeUnknownType, fmt.Sprintf("unknown type %s:%s", mod, tname), nil)
					continue
				}
				dataOuts = append(dataOuts, NamedDataType{Label: label, Type: ty})
			}
		}
	} else {
		r.AddEntry("WUKN", "Data for lang:entry must have a data element", map[string]any{"Data JSON": data})
	}
	var execOuts []string
	if raw, ok := data["exec"].([]any); ok {
		for _, o := range raw {
			if s, ok := o.(string); ok {
				execOuts = append(execOuts, s)
			}
		}
	} else {
		r.AddEntry("WUKN", "Data for lang:entry must have an exec element", map[string]any{"Data JSON": data})
	}
	return newEntryNodeType(dataOuts, execOuts), r
}

func (m *LangModule) exitNodeTypeFromJSON(data map[string]any, r *Result) (NodeType, *Result) {
	var dataIns []NamedDataType
	if raw, ok := data["data"].([]any); ok {
		for _, item := range raw {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			for label, qt := range obj {
				qts, _ := qt.(string)
				mod, tname, err := ParseQualifiedName(qts)
				if err != nil {
					r.AddEntry("WUKN", "exit data entry has a malformed qualified type", map[string]any{"Given": qts})
					continue
				}
				ty, ok := m.ctx.TypeFromModule(mod, tname)
				if !ok {
					r.AddEntry(CodeUnknownType, fmt.Sprintf("unknown type %s:%s", mod, tname), nil)
					continue
				}
				dataIns = append(dataIns, NamedDataType{Label: label, Type: ty})
			}
		}
	} else {
		r.AddEntry("WUKN", "Data for lang:exit must have a data element", map[string]any{"Data JSON": data})
	}
	var execIns []string
	if raw, ok := data["exec"].([]any); ok {
		for _, o := range raw {
			if s, ok := o.(string); ok {
				execIns = append(execIns, s)
			}
		}
	} else {
		r.AddEntry("WUKN", "Data for lang:exit must have an exec element", map[string]any{"Data JSON": data})
	}
	return newExitNodeType(dataIns, execIns), r
}

// --- if ---

type ifNodeType struct{ nodeTypeBase }

func newIfNodeType(i1 DataType) *ifNodeType {
	return &ifNodeType{nodeTypeBase{
		module: "lang", name: "if", description: "Branches on a boolean condition.",
		dataIns: []NamedDataType{{Label: "condition", Type: i1}},
		execIns: []string{""}, execOuts: []string{"True", "False"},
	}}
}

func (n *ifNodeType) Clone() NodeType { c := *n; c.nodeTypeBase = n.nodeTypeBase.clone(); return &c }
func (n *ifNodeType) ToJSON() (map[string]any, error) { return nil, nil }

func (n *ifNodeType) Codegen(p CodegenParams) *Result {
	r := NewResult()
	if len(p.IO) != 1 || len(p.OutputBlocks) != 2 {
		r.AddErrorf(CodeBackendError, "if: expected 1 io value and 2 output blocks")
		return r
	}
	p.Builder.CreateCondBr(p.IO[0], p.OutputBlocks[0], p.OutputBlocks[1])
	return r
}

// --- entry ---

type entryNodeType struct{ nodeTypeBase }

func newEntryNodeType(dataOuts []NamedDataType, execOuts []string) *entryNodeType {
	return &entryNodeType{nodeTypeBase{
		module: "lang", name: "entry", description: "The function's single entry point.",
		dataOuts: dataOuts, execOuts: execOuts,
	}}
}

func (n *entryNodeType) Clone() NodeType { c := *n; c.nodeTypeBase = n.nodeTypeBase.clone(); return &c }

func (n *entryNodeType) ToJSON() (map[string]any, error) {
	data := make([]any, len(n.dataOuts))
	for i, d := range n.dataOuts {
		data[i] = map[string]any{d.Label: d.Type.QualifiedName()}
	}
	return map[string]any{"data": data, "exec": append([]string{}, n.execOuts...)}, nil
}

func (n *entryNodeType) Codegen(p CodegenParams) *Result {
	r := NewResult()
	fn := p.Block.Fn
	// args: [execInputID, dataOut0, dataOut1, ...]; store each into its io
	// output slot, skipping arg 0.
	for i := range n.dataOuts {
		p.Builder.CreateStore(fn.Param(1+i), p.IO[i])
	}
	cases := make([]*backend.BasicBlock, len(n.execOuts))
	copy(cases, p.OutputBlocks)
	def := p.OutputBlocks[0]
	p.Builder.CreateSwitch(fn.Param(0), def, cases)
	return r
}

// --- exit ---

type exitNodeType struct{ nodeTypeBase }

func newExitNodeType(dataIns []NamedDataType, execIns []string) *exitNodeType {
	return &exitNodeType{nodeTypeBase{
		module: "lang", name: "exit", description: "The function's return point.",
		dataIns: dataIns, execIns: execIns,
	}}
}

func (n *exitNodeType) Clone() NodeType { c := *n; c.nodeTypeBase = n.nodeTypeBase.clone(); return &c }

func (n *exitNodeType) ToJSON() (map[string]any, error) {
	data := make([]any, len(n.dataIns))
	for i, d := range n.dataIns {
		data[i] = map[string]any{d.Label: d.Type.QualifiedName()}
	}
	return map[string]any{"data": data, "exec": append([]string{}, n.execIns...)}, nil
}

func (n *exitNodeType) Codegen(p CodegenParams) *Result {
	r := NewResult()
	fn := p.Block.Fn
	retStart := len(fn.Params) - len(n.dataIns)
	for i := range n.dataIns {
		p.Builder.CreateStore(p.IO[i], fn.Param(retStart+i))
	}
	p.Builder.CreateRet(p.BackendCtx.ConstInt(p.BackendCtx.I32(), int64(p.ExecInputID)))
	return r
}

// --- literals ---

type constIntNodeType struct {
	nodeTypeBase
	value int32
}

func newConstIntNodeType(i32 DataType, v int32) *constIntNodeType {
	return &constIntNodeType{nodeTypeBase{
		module: "lang", name: "const-int", description: "A constant i32 literal.",
		dataOuts: []NamedDataType{{Type: i32}}, pure: true,
	}, v}
}

func (n *constIntNodeType) Clone() NodeType {
	c := *n
	c.nodeTypeBase = n.nodeTypeBase.clone()
	return &c
}
func (n *constIntNodeType) ToJSON() (map[string]any, error) { return map[string]any{"value": n.value}, nil }
func (n *constIntNodeType) Codegen(p CodegenParams) *Result {
	r := NewResult()
	p.Builder.CreateStore(p.BackendCtx.ConstInt(p.BackendCtx.I32(), int64(n.value)), p.IO[0])
	p.Builder.CreateBr(p.OutputBlocks[0])
	return r
}

type constFloatNodeType struct {
	nodeTypeBase
	value float64
}

func newConstFloatNodeType(f64 DataType, v float64) *constFloatNodeType {
	return &constFloatNodeType{nodeTypeBase{
		module: "lang", name: "const-float", description: "A constant float literal.",
		dataOuts: []NamedDataType{{Type: f64}}, pure: true,
	}, v}
}

func (n *constFloatNodeType) Clone() NodeType {
	c := *n
	c.nodeTypeBase = n.nodeTypeBase.clone()
	return &c
}
func (n *constFloatNodeType) ToJSON() (map[string]any, error) { return map[string]any{"value": n.value}, nil }
func (n *constFloatNodeType) Codegen(p CodegenParams) *Result {
	r := NewResult()
	p.Builder.CreateStore(p.BackendCtx.ConstFloat(n.value), p.IO[0])
	p.Builder.CreateBr(p.OutputBlocks[0])
	return r
}

type constBoolNodeType struct {
	nodeTypeBase
	value bool
}

func newConstBoolNodeType(i1 DataType, v bool) *constBoolNodeType {
	return &constBoolNodeType{nodeTypeBase{
		module: "lang", name: "const-bool", description: "A constant boolean literal.",
		dataOuts: []NamedDataType{{Type: i1}}, pure: true,
	}, v}
}

func (n *constBoolNodeType) Clone() NodeType {
	c := *n
	c.nodeTypeBase = n.nodeTypeBase.clone()
	return &c
}
func (n *constBoolNodeType) ToJSON() (map[string]any, error) { return map[string]any{"value": n.value}, nil }
func (n *constBoolNodeType) Codegen(p CodegenParams) *Result {
	r := NewResult()
	p.Builder.CreateStore(p.BackendCtx.ConstBool(n.value), p.IO[0])
	p.Builder.CreateBr(p.OutputBlocks[0])
	return r
}

type stringLiteralNodeType struct {
	nodeTypeBase
	value string
}

func newStringLiteralNodeType(i8p DataType, v string) *stringLiteralNodeType {
	return &stringLiteralNodeType{nodeTypeBase{
		module: "lang", name: "strliteral", description: "A constant string literal.",
		dataOuts: []NamedDataType{{Type: i8p}}, pure: true,
	}, v}
}

func (n *stringLiteralNodeType) Clone() NodeType {
	c := *n
	c.nodeTypeBase = n.nodeTypeBase.clone()
	return &c
}
func (n *stringLiteralNodeType) ToJSON() (map[string]any, error) { return map[string]any{"value": n.value}, nil }
func (n *stringLiteralNodeType) Codegen(p CodegenParams) *Result {
	r := NewResult()
	p.Builder.CreateStore(p.Builder.CreateGlobalString(n.value), p.IO[0])
	p.Builder.CreateBr(p.OutputBlocks[0])
	return r
}

// --- conversions ---

type intToFloatNodeType struct{ nodeTypeBase }

func newIntToFloatNodeType(i32, f64 DataType) *intToFloatNodeType {
	return &intToFloatNodeType{nodeTypeBase{
		module: "lang", name: "inttofloat", description: "Converts an i32 to a float.",
		dataIns: []NamedDataType{{Type: i32}}, dataOuts: []NamedDataType{{Type: f64}}, pure: true,
	}}
}

func (n *intToFloatNodeType) Clone() NodeType { c := *n; c.nodeTypeBase = n.nodeTypeBase.clone(); return &c }
func (n *intToFloatNodeType) ToJSON() (map[string]any, error) { return nil, nil }
func (n *intToFloatNodeType) Codegen(p CodegenParams) *Result {
	r := NewResult()
	p.Builder.CreateStore(p.Builder.CreateSIToFP(p.IO[0], ""), p.IO[1])
	p.Builder.CreateBr(p.OutputBlocks[0])
	return r
}

type floatToIntNodeType struct{ nodeTypeBase }

func newFloatToIntNodeType(f64, i32 DataType) *floatToIntNodeType {
	return &floatToIntNodeType{nodeTypeBase{
		module: "lang", name: "floattoint", description: "Converts a float to an i32.",
		dataIns: []NamedDataType{{Type: f64}}, dataOuts: []NamedDataType{{Type: i32}}, pure: true,
	}}
}

func (n *floatToIntNodeType) Clone() NodeType { c := *n; c.nodeTypeBase = n.nodeTypeBase.clone(); return &c }
func (n *floatToIntNodeType) ToJSON() (map[string]any, error) { return nil, nil }
func (n *floatToIntNodeType) Codegen(p CodegenParams) *Result {
	r := NewResult()
	p.Builder.CreateStore(p.Builder.CreateFPToSI(p.IO[0], ""), p.IO[1])
	p.Builder.CreateBr(p.OutputBlocks[0])
	return r
}

// converterNodeType is the synthetic pure node Context.ConverterNodeType
// inserts on a typed data edge whose endpoints differ, per spec.md's
// createConverterNodeType and the Open Question it resolves: only the three
// numeric lang kinds {i1, i32, float} convert, dispatched the same way
// binaryOpNodeType and compareNodeType dispatch, on UnqualifiedName rather
// than backend.Kind (which conflates every integer width).
type converterNodeType struct {
	nodeTypeBase
	from, to string // UnqualifiedName of the two lang kinds, e.g. "i32", "float"
}

func newConverterNodeType(from, to DataType) *converterNodeType {
	return &converterNodeType{
		nodeTypeBase: nodeTypeBase{
			module:      "lang",
			name:        "convert-" + from.UnqualifiedName() + "-" + to.UnqualifiedName(),
			description: fmt.Sprintf("Converts a %s to a %s.", from.UnqualifiedName(), to.UnqualifiedName()),
			dataIns:     []NamedDataType{{Type: from}},
			dataOuts:    []NamedDataType{{Type: to}},
			pure:        true,
		},
		from: from.UnqualifiedName(),
		to:   to.UnqualifiedName(),
	}
}

func (n *converterNodeType) Clone() NodeType { c := *n; c.nodeTypeBase = n.nodeTypeBase.clone(); return &c }
func (n *converterNodeType) ToJSON() (map[string]any, error) { return nil, nil }

func (n *converterNodeType) Codegen(p CodegenParams) *Result {
	r := NewResult()
	var out backend.Value
	switch {
	case n.from == "i1" && n.to == "i32":
		out = p.Builder.CreateSExt(p.IO[0], p.BackendCtx.I32(), "")
	case n.from == "i32" && n.to == "i1":
		out = p.Builder.CreateTrunc(p.IO[0], p.BackendCtx.I1(), "")
	case n.from == "i1" && n.to == "float":
		out = p.Builder.CreateSIToFP(p.Builder.CreateSExt(p.IO[0], p.BackendCtx.I32(), ""), "")
	case n.from == "float" && n.to == "i1":
		out = p.Builder.CreateTrunc(p.Builder.CreateFPToSI(p.IO[0], ""), p.BackendCtx.I1(), "")
	case n.from == "i32" && n.to == "float":
		out = p.Builder.CreateSIToFP(p.IO[0], "")
	case n.from == "float" && n.to == "i32":
		out = p.Builder.CreateFPToSI(p.IO[0], "")
	default:
		r.AddErrorf(CodeTypeMismatch, "no converter from %s to %s", n.from, n.to)
		return r
	}
	p.Builder.CreateStore(out, p.IO[1])
	p.Builder.CreateBr(p.OutputBlocks[0])
	return r
}

// createConverterNodeType returns a pure node type converting from to to, or
// nil if the pair isn't one of the three numeric lang kinds, or is an
// identity pair (identity is not a converter, per spec.md's DESIGN NOTES).
func createConverterNodeType(from, to DataType) NodeType {
	numeric := map[string]bool{"i1": true, "i32": true, "float": true}
	if from.UnqualifiedName() == to.UnqualifiedName() {
		return nil
	}
	if !numeric[from.UnqualifiedName()] || !numeric[to.UnqualifiedName()] {
		return nil
	}
	return newConverterNodeType(from, to)
}

// --- binary arithmetic ---

type binaryOpNodeType struct {
	nodeTypeBase
	op BinOpAlias
}

// BinOpAlias re-exports backend.BinOp at the chi level so node-type
// construction code doesn't need to import backend just for the enum.
type BinOpAlias = backend.BinOp

func newBinaryOpNodeType(ty DataType, op backend.BinOp) *binaryOpNodeType {
	sym := map[backend.BinOp]string{backend.BinAdd: "+", backend.BinSub: "-", backend.BinMul: "*", backend.BinDiv: "/"}[op]
	name := ty.UnqualifiedName() + sym + ty.UnqualifiedName()
	return &binaryOpNodeType{nodeTypeBase{
		module: "lang", name: name, description: name,
		dataIns:  []NamedDataType{{Label: "a", Type: ty}, {Label: "b", Type: ty}},
		dataOuts: []NamedDataType{{Type: ty}},
		pure:     true,
	}, op}
}

func (n *binaryOpNodeType) Clone() NodeType { c := *n; c.nodeTypeBase = n.nodeTypeBase.clone(); return &c }
func (n *binaryOpNodeType) ToJSON() (map[string]any, error) { return nil, nil }
func (n *binaryOpNodeType) Codegen(p CodegenParams) *Result {
	r := NewResult()
	res, err := p.Builder.CreateBinOp(n.op, p.IO[0], p.IO[1], "")
	if err != nil {
		r.AddErrorf(CodeTypeMismatch, "%v", err)
		return r
	}
	p.Builder.CreateStore(res, p.IO[2])
	p.Builder.CreateBr(p.OutputBlocks[0])
	return r
}

// --- comparisons ---

type compareNodeType struct {
	nodeTypeBase
	op backend.CmpOp
}

func newCompareNodeType(ty DataType, op backend.CmpOp, i1 DataType) *compareNodeType {
	sym := map[backend.CmpOp]string{
		backend.CmpLt: "<", backend.CmpGt: ">", backend.CmpLe: "<=",
		backend.CmpGe: ">=", backend.CmpEq: "==", backend.CmpNeq: "!=",
	}[op]
	name := ty.UnqualifiedName() + sym + ty.UnqualifiedName()
	return &compareNodeType{nodeTypeBase{
		module: "lang", name: name, description: name,
		dataIns:  []NamedDataType{{Label: "a", Type: ty}, {Label: "b", Type: ty}},
		dataOuts: []NamedDataType{{Type: i1}},
		pure:     true,
	}, op}
}

func (n *compareNodeType) Clone() NodeType { c := *n; c.nodeTypeBase = n.nodeTypeBase.clone(); return &c }
func (n *compareNodeType) ToJSON() (map[string]any, error) { return nil, nil }
func (n *compareNodeType) Codegen(p CodegenParams) *Result {
	r := NewResult()
	res, err := p.Builder.CreateCmp(n.op, p.IO[0], p.IO[1], "")
	if err != nil {
		r.AddErrorf(CodeTypeMismatch, "%v", err)
		return r
	}
	p.Builder.CreateStore(res, p.IO[2])
	p.Builder.CreateBr(p.OutputBlocks[0])
	return r
}
