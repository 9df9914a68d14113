package chi

import (
	"fmt"

	"github.com/chigraph/chi/backend"
)

// GraphStruct is a user-defined product type: a named, ordered list of
// fields. Declaring one implicitly contributes two pure node types to its
// owning module — "make-<name>" (fields in, struct out) and
// "break-<name>" (struct in, fields out) — the same synthesis the original
// performs for struct literals.
type GraphStruct struct {
	Name   string
	Fields []NamedDataType
	owner  *GraphModule
}

// NewGraphStruct creates a struct declaration owned by mod.
func NewGraphStruct(mod *GraphModule, name string, fields []NamedDataType) *GraphStruct {
	return &GraphStruct{Name: name, Fields: fields, owner: mod}
}

// DataType returns the DataType this struct declares, backed by a
// backend.StructType built from its fields. A struct with no fields is
// rejected.
func (gs *GraphStruct) DataType(bctx *backend.Context) (DataType, error) {
	if len(gs.Fields) == 0 {
		return DataType{}, fmt.Errorf("chi: struct %q has no fields", gs.Name)
	}
	fields := make([]backend.StructField, len(gs.Fields))
	for i, f := range gs.Fields {
		if !f.Type.Valid() {
			return DataType{}, fmt.Errorf("chi: struct %q field %q has no backend type", gs.Name, f.Label)
		}
		fields[i] = backend.StructField{Name: f.Label, Type: f.Type.Backend()}
	}
	st, err := bctx.DeclareStruct(gs.owner.FullName()+":"+gs.Name, fields)
	if err != nil {
		return DataType{}, err
	}
	return NewDataType(gs.owner.FullName(), gs.Name, st), nil
}

// makeNodeType synthesizes the "make-<name>" node type: one data input per
// field, one data output of the struct type, pure.
type makeNodeType struct {
	nodeTypeBase
	gs *GraphStruct
}

func newMakeNodeType(gs *GraphStruct, structType DataType) *makeNodeType {
	return &makeNodeType{
		nodeTypeBase: nodeTypeBase{
			module:      gs.owner.FullName(),
			name:        "make-" + gs.Name,
			description: "Constructs a " + gs.Name + " from its fields.",
			dataIns:     append([]NamedDataType{}, gs.Fields...),
			dataOuts:    []NamedDataType{{Label: gs.Name, Type: structType}},
			pure:        true,
		},
		gs: gs,
	}
}

func (n *makeNodeType) Clone() NodeType {
	c := *n
	c.nodeTypeBase = n.nodeTypeBase.clone()
	return &c
}

func (n *makeNodeType) ToJSON() (map[string]any, error) { return nil, nil }

func (n *makeNodeType) Codegen(p CodegenParams) *Result {
	r := NewResult()
	structPtr := p.IO[len(n.dataIns)]
	st, ok := structPtrElem(structPtr)
	if !ok {
		r.AddErrorf(CodeBackendError, "make-%s: output is not a pointer to a struct", n.gs.Name)
		return r
	}
	for i := range n.dataIns {
		fieldPtr, err := p.Builder.CreateFieldPtr(structPtr, st, i)
		if err != nil {
			r.AddErrorf(CodeBackendError, "make-%s: %v", n.gs.Name, err)
			return r
		}
		p.Builder.CreateStore(p.IO[i], fieldPtr)
	}
	p.Builder.CreateBr(p.OutputBlocks[0])
	return r
}

// breakNodeType synthesizes the "break-<name>" node type: one data input of
// the struct type, one data output per field, pure.
type breakNodeType struct {
	nodeTypeBase
	gs *GraphStruct
}

func newBreakNodeType(gs *GraphStruct, structType DataType) *breakNodeType {
	return &breakNodeType{
		nodeTypeBase: nodeTypeBase{
			module:      gs.owner.FullName(),
			name:        "break-" + gs.Name,
			description: "Decomposes a " + gs.Name + " into its fields.",
			dataIns:     []NamedDataType{{Label: gs.Name, Type: structType}},
			dataOuts:    append([]NamedDataType{}, gs.Fields...),
			pure:        true,
		},
		gs: gs,
	}
}

func (n *breakNodeType) Clone() NodeType {
	c := *n
	c.nodeTypeBase = n.nodeTypeBase.clone()
	return &c
}

func (n *breakNodeType) ToJSON() (map[string]any, error) { return nil, nil }

func (n *breakNodeType) Codegen(p CodegenParams) *Result {
	r := NewResult()
	in := p.IO[0]
	st, ok := structElem(in)
	if !ok {
		r.AddErrorf(CodeBackendError, "break-%s: input is not a struct value", n.gs.Name)
		return r
	}
	tmp := p.Builder.CreateAlloca(st, "brk")
	p.Builder.CreateStore(in, tmp)
	for i := range n.dataOuts {
		fieldPtr, err := p.Builder.CreateFieldPtr(tmp, st, i)
		if err != nil {
			r.AddErrorf(CodeBackendError, "break-%s: %v", n.gs.Name, err)
			return r
		}
		loaded := p.Builder.CreateLoad(fieldPtr, n.dataOuts[i].Label)
		p.Builder.CreateStore(loaded, p.IO[len(n.dataIns)+i])
	}
	p.Builder.CreateBr(p.OutputBlocks[0])
	return r
}

func structPtrElem(v backend.Value) (*backend.StructType, bool) {
	pt, ok := v.Type().(*backend.PointerType)
	if !ok {
		return nil, false
	}
	st, ok := pt.Elem.(*backend.StructType)
	return st, ok
}

func structElem(v backend.Value) (*backend.StructType, bool) {
	st, ok := v.Type().(*backend.StructType)
	return st, ok
}
