package chi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/chigraph/chi/backend"
	"github.com/chigraph/chi/modulecache"
)

// ModuleSource is the narrow collaborator the Context consults to fetch a
// module's raw JSON by full name. Filesystem discovery, workspace walking,
// and remote VCS fetch are all out of scope and live entirely behind this
// interface, supplied by the embedding application.
type ModuleSource interface {
	Fetch(ctx context.Context, fullName string) ([]byte, error)
}

// ErrModuleNotFound is returned by a ModuleSource when it has no JSON for
// the requested full name.
var ErrModuleNotFound = fmt.Errorf("chi: module not found")

// MemorySource is a trivial in-memory ModuleSource, handy for tests and for
// embedding chi without a real workspace.
type MemorySource map[string][]byte

func (s MemorySource) Fetch(_ context.Context, fullName string) ([]byte, error) {
	data, ok := s[fullName]
	if !ok {
		return nil, ErrModuleNotFound
	}
	return data, nil
}

// Logger is the leveled logging interface Context accepts, matching the
// shape of the teacher's log.Logger so a kataras/golog-backed
// implementation (chilog.New) can be dropped in directly.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}

// Context owns the module registry and orchestrates compilation: it is the
// single point of entry for loading modules, resolving cross-module
// type/node-type references, and driving FunctionCompiler to produce
// backend IR, optionally through a modulecache.Cache.
type Context struct {
	backend *backend.Context

	modules map[string]Module
	order   []string

	source ModuleSource
	cache  modulecache.Cache
	log    Logger

	lang *LangModule

	converters map[[2]string]NodeType

	// compiled memoizes the in-process compile result per module full
	// name, so a CompileModule call with UseCache set returns the
	// identical backend handle on a repeat call within the same Context
	// lifetime (spec.md §8 scenario 6, §5's "compiled at most once per
	// Context lifetime unless explicitly invalidated").
	compiled map[string]*ModuleIR

	// constI32s, constF64s, constTrue/constFalse back Context's
	// ConstI32/ConstF64/ConstBool helpers (spec.md §4.1): cached backend
	// constant handles, interned on first use.
	constI32s           map[int32]backend.Value
	constF64s           map[float64]backend.Value
	constTrue, constFalse backend.Value
}

// ContextOption configures a new Context.
type ContextOption func(*Context)

// WithModuleSource sets the collaborator used to fetch module JSON by full
// name.
func WithModuleSource(s ModuleSource) ContextOption { return func(c *Context) { c.source = s } }

// WithCache sets the compile cache backing this Context.
func WithCache(cache modulecache.Cache) ContextOption { return func(c *Context) { c.cache = cache } }

// WithLogger sets the logger this Context reports diagnostics through.
func WithLogger(l Logger) ContextOption { return func(c *Context) { c.log = l } }

// NewContext constructs a Context with its backend.Context and "lang"
// module already installed — chi has no notion of a Context without lang,
// matching the original's Context always constructing a LangModule.
func NewContext(opts ...ContextOption) *Context {
	c := &Context{
		modules:    make(map[string]Module),
		log:        noopLogger{},
		converters: make(map[[2]string]NodeType),
		compiled:   make(map[string]*ModuleIR),
		constI32s:  make(map[int32]backend.Value),
		constF64s:  make(map[float64]backend.Value),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.backend = backend.NewContext()
	c.lang = NewLangModule(c, c.backend)
	c.modules["lang"] = c.lang
	c.order = append(c.order, "lang")
	if c.cache == nil {
		c.cache = modulecache.NewMemory()
	}
	return c
}

// Backend exposes the owned backend.Context. Node-type codegen and tests
// use this to build constants and types outside of a live compile.
func (c *Context) Backend() *backend.Context { return c.backend }

// ModuleByFullName returns a previously loaded module.
func (c *Context) ModuleByFullName(fullName string) (Module, bool) {
	m, ok := c.modules[fullName]
	return m, ok
}

// Modules returns every loaded module in load order.
func (c *Context) Modules() []Module {
	out := make([]Module, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.modules[name])
	}
	return out
}

// AddModule registers an already-constructed Module (e.g. a GraphModule
// built programmatically rather than loaded from JSON). It returns false if
// a module with that full name is already registered, matching the
// original's addModule.
func (c *Context) AddModule(m Module) bool {
	if _, exists := c.modules[m.FullName()]; exists {
		return false
	}
	c.modules[m.FullName()] = m
	c.order = append(c.order, m.FullName())
	c.log.Infof("module %q added", m.FullName())
	return true
}

// UnloadModule removes a module from the registry and invalidates the
// Context's compile cache entry for it.
func (c *Context) UnloadModule(fullName string) {
	delete(c.modules, fullName)
	delete(c.compiled, fullName)
	for i, n := range c.order {
		if n == fullName {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	_ = c.cache.Invalidate(context.Background(), fullName)
}

// TypeFromModule resolves a type by owning module and unqualified name,
// the cross-module lookup every type reference in a loaded JSON module
// goes through.
func (c *Context) TypeFromModule(moduleName, typeName string) (DataType, bool) {
	m, ok := c.modules[moduleName]
	if !ok {
		return DataType{}, false
	}
	return m.TypeFromName(typeName)
}

// NodeTypeFromModule resolves a node type by owning module and unqualified
// name, with the JSON "data" payload forwarded to modules whose node types
// need per-instance parameters.
func (c *Context) NodeTypeFromModule(moduleName, typeName string, data map[string]any) (NodeType, *Result) {
	r := NewResult()
	m, ok := c.modules[moduleName]
	if !ok {
		r.AddEntry(CodeUnknownModule, fmt.Sprintf("unknown module %q", moduleName), map[string]any{"Module": moduleName})
		return nil, r
	}
	if lm, ok := m.(*LangModule); ok {
		return lm.NodeTypeFromNameJSON(typeName, data)
	}
	nt, ok := m.NodeTypeFromName(typeName)
	if !ok {
		r.AddEntry(CodeUnknownNodeType, fmt.Sprintf("unknown node type %s:%s", moduleName, typeName), map[string]any{
			"Module": moduleName, "Requested Node Type": typeName,
		})
		return nil, r
	}
	return nt.Clone(), r
}

// ConverterNodeType returns the synthetic pure node type that converts
// from's DataType to to's, consulting and then populating the Context's
// converter-cache, so the NodeType is created once per pair and inserted
// before returning; every lookup for the same pair returns a fresh clone of
// that one cached NodeType. Returns ok=false if no converter exists for this
// pair.
func (c *Context) ConverterNodeType(from, to DataType) (nt NodeType, ok bool) {
	key := [2]string{from.QualifiedName(), to.QualifiedName()}
	if cached, found := c.converters[key]; found {
		return cached.Clone(), true
	}
	nt = createConverterNodeType(from, to)
	if nt == nil {
		return nil, false
	}
	c.converters[key] = nt
	return nt.Clone(), true
}

// ConstI32 returns a cached i32 constant handle for v, interning it on
// first use so repeated lookups return the identical backend.Value,
// matching spec.md §4.1's constI32 helper.
func (c *Context) ConstI32(v int32) backend.Value {
	if cached, ok := c.constI32s[v]; ok {
		return cached
	}
	val := c.backend.ConstInt(c.backend.I32(), int64(v))
	c.constI32s[v] = val
	return val
}

// ConstF64 returns a cached float constant handle for v, matching spec.md
// §4.1's constF64 helper.
func (c *Context) ConstF64(v float64) backend.Value {
	if cached, ok := c.constF64s[v]; ok {
		return cached
	}
	val := c.backend.ConstFloat(v)
	c.constF64s[v] = val
	return val
}

// ConstBool returns a cached i1 constant handle for v, matching spec.md
// §4.1's constBool helper. There are only two possible values, so they are
// interned lazily the first time each is requested.
func (c *Context) ConstBool(v bool) backend.Value {
	if v {
		if c.constTrue == nil {
			c.constTrue = c.backend.ConstBool(true)
		}
		return c.constTrue
	}
	if c.constFalse == nil {
		c.constFalse = c.backend.ConstBool(false)
	}
	return c.constFalse
}

// FindInstancesOfType scans every loaded GraphModule's functions' graphs
// for NodeInstances whose NodeType is the one named moduleName:typeName,
// matching spec.md §4.1's findInstancesOfType. LangModule exports no
// GraphFunctions, so only GraphModules are scanned.
func (c *Context) FindInstancesOfType(moduleName, typeName string) []*NodeInstance {
	var out []*NodeInstance
	for _, name := range c.order {
		gm, ok := c.modules[name].(*GraphModule)
		if !ok {
			continue
		}
		for _, gf := range gm.functions {
			for _, n := range gf.Graph.Nodes() {
				if n.Type.Module() == moduleName && n.Type.Name() == typeName {
					out = append(out, n)
				}
			}
		}
	}
	return out
}

// LoadModule fetches fullName's JSON via the configured ModuleSource (if
// not already loaded), recursively loads its dependencies first (so
// dependency cycles are caught as CodeDependencyCycle rather than infinite
// recursion), and registers the resulting GraphModule.
func (c *Context) LoadModule(ctx context.Context, fullName string) (Module, *Result) {
	r := NewResult()
	if m, ok := c.modules[fullName]; ok {
		return m, r
	}
	if c.source == nil {
		r.AddEntry(CodeIO, "no ModuleSource configured", nil)
		return nil, r
	}
	return c.loadModuleChain(ctx, fullName, map[string]bool{})
}

func (c *Context) loadModuleChain(ctx context.Context, fullName string, inProgress map[string]bool) (Module, *Result) {
	r := NewResult()
	if m, ok := c.modules[fullName]; ok {
		return m, r
	}
	if inProgress[fullName] {
		r.AddEntry(CodeDependencyCycle, fmt.Sprintf("dependency cycle at module %q", fullName), map[string]any{"Module": fullName})
		return nil, r
	}
	inProgress[fullName] = true

	raw, err := c.source.Fetch(ctx, fullName)
	if err != nil {
		r.AddEntry(CodeIO, fmt.Sprintf("failed to fetch module %q: %v", fullName, err), map[string]any{"Module": fullName})
		return nil, r
	}

	deps, depRes := PeekDependencies(raw)
	r.Merge(depRes)
	if !r.Success {
		return nil, r
	}
	for _, dep := range deps {
		if _, loadRes := c.loadModuleChain(ctx, dep, inProgress); !loadRes.Success {
			r.Merge(loadRes)
			return nil, r
		}
	}

	gm, _, parseRes := ParseGraphModuleJSONWithContext(c, fullName, raw)
	r.Merge(parseRes)
	if !r.Success {
		return nil, r
	}
	gm.raw = raw
	for _, dep := range deps {
		gm.AddDependency(dep)
	}
	c.modules[fullName] = gm
	c.order = append(c.order, fullName)
	c.log.Infof("module %q loaded", fullName)
	return gm, r
}

// ContentHash returns the cache key chi computes for a module's raw JSON
// source, per spec.md's "cache invalidation compares a content hash".
func ContentHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// CompileSettings configures Context.CompileModule, matching spec.md
// §4.1's compileModule(mod, settings: {UseCache, LinkDependencies}).
type CompileSettings struct {
	// UseCache consults the configured modulecache.Cache (and Context's
	// own in-process compile memo) before recompiling, and populates both
	// after a successful compile.
	UseCache bool
	// LinkDependencies copies every dependency's function and global
	// definitions into the compiled module (backend.Module.Link). When
	// false, dependency functions are left as external declarations
	// (backend.Module.DeclareExternal) callable from the importing
	// module but defined only in the dependency's own backend.Module.
	LinkDependencies bool
}

// DefaultCompileSettings reproduces the behavior CompileModule had before
// settings existed: consult the cache and fully link dependencies.
var DefaultCompileSettings = CompileSettings{UseCache: true, LinkDependencies: true}

// CompileModule lowers the named module (and, if it is a GraphModule, every
// GraphFunction inside it) to a backend.Module, consulting and then
// populating the compile cache per settings. Dependencies are compiled
// (and, per settings.LinkDependencies, linked in) first, matching spec.md
// §4.1 compileModule.
func (c *Context) CompileModule(ctx context.Context, fullName string, settings CompileSettings) (*backend.Module, *Result) {
	r := NewResult()
	m, ok := c.modules[fullName]
	if !ok {
		r.AddEntry(CodeUnknownModule, fmt.Sprintf("unknown module %q", fullName), map[string]any{"Module": fullName})
		return nil, r
	}
	ir, compileRes := c.compileModuleRec(ctx, m, settings, map[string]bool{})
	r.Merge(compileRes)
	if ir == nil {
		return nil, r
	}
	return ir.Backend, r
}

func (c *Context) compileModuleRec(ctx context.Context, m Module, settings CompileSettings, visiting map[string]bool) (*ModuleIR, *Result) {
	r := NewResult()
	fullName := m.FullName()
	if visiting[fullName] {
		r.AddEntry(CodeDependencyCycle, fmt.Sprintf("dependency cycle compiling %q", fullName), map[string]any{"Module": fullName})
		return nil, r
	}
	visiting[fullName] = true
	defer delete(visiting, fullName)

	gm, cacheable := m.(*GraphModule)
	cacheable = cacheable && len(gm.raw) > 0
	var contentHash string
	if cacheable {
		contentHash = ContentHash(gm.raw)
	}

	if settings.UseCache {
		// Step 1: the in-process memo is authoritative within one Context
		// lifetime and returns the identical backend handle (spec.md §8
		// scenario idempotence). A persisted modulecache.Cache hit is a
		// weaker, cross-process signal: it tells us the content hasn't
		// changed since some prior run, but since this run's Context
		// never serialized a reconstructable *backend.Module into it, a
		// hit there only gets logged, not returned — the in-process memo
		// or a fresh compile is still what's handed back.
		if ir, ok := c.compiled[fullName]; ok {
			c.log.Debugf("module %q served from in-process compile cache", fullName)
			return ir, r
		}
		if cacheable {
			if entry, found, err := c.cache.Get(ctx, fullName, contentHash); err == nil && found {
				c.log.Debugf("module %q: persisted cache has a fresh entry (content hash %s)", fullName, entry.ContentHash)
			}
		}
	}

	c.log.Infof("compiling module %q", fullName)
	ir, genRes := m.GenerateModule(c)
	r.Merge(genRes)
	if !r.Success {
		c.log.Errorf("module %q failed to compile: %s", fullName, r)
		return nil, r
	}

	for _, dep := range m.Dependencies() {
		depMod, ok := c.modules[dep]
		if !ok {
			r.AddEntry(CodeUnknownModule, fmt.Sprintf("unknown dependency %q of %q", dep, fullName), nil)
			continue
		}
		depIR, depRes := c.compileModuleRec(ctx, depMod, settings, visiting)
		r.Merge(depRes)
		if !depRes.Success {
			continue
		}
		if settings.LinkDependencies {
			if err := ir.Backend.Link(depIR.Backend); err != nil {
				r.AddEntry(CodeBackendError, err.Error(), map[string]any{"Module": fullName})
				continue
			}
			// spec.md §9: "modules transferred into a linker invalidate
			// the source module handle — honor that by removing the
			// source from the compile cache upon link."
			delete(c.compiled, dep)
			_ = c.cache.Invalidate(ctx, dep)
		} else {
			for _, fn := range depIR.Backend.Functions() {
				if _, err := ir.Backend.DeclareExternal(fn.Name, declarationParamTypes(fn), fn.RetType); err != nil {
					r.AddEntry(CodeBackendError, err.Error(), map[string]any{"Module": fullName})
				}
			}
		}
	}

	if err := ir.Backend.Verify(); err != nil {
		r.AddEntry(CodeBackendError, err.Error(), map[string]any{"Module": fullName})
	}
	c.log.Infof("module %q compiled", fullName)

	// spec.md §8 scenario 6: a failed compile (e.g. CyclicPureDependency)
	// leaves no entry in the compile cache for the owning module.
	if settings.UseCache && r.Success {
		c.compiled[fullName] = ir
		if cacheable {
			entry := &modulecache.Entry{
				FullName:    fullName,
				ContentHash: contentHash,
				IR:          []byte(ir.Backend.Dump()),
				CompiledAt:  time.Now(),
			}
			if err := c.cache.Put(ctx, entry); err != nil {
				c.log.Warnf("module %q: failed to populate compile cache: %v", fullName, err)
			}
		}
	}
	return ir, r
}

// declarationParamTypes extracts fn's parameter types, for declaring the
// same signature as an external function in another backend.Module.
func declarationParamTypes(fn *backend.Function) []backend.Type {
	out := make([]backend.Type, len(fn.Params))
	for i := range out {
		out[i] = fn.Param(i).Type()
	}
	return out
}

// UseCache reports whether a modulecache.Cache is configured for this
// Context, i.e. whether settings.UseCache has anything beyond the
// in-process compile memo to consult.
func (c *Context) UseCache() bool { return c.cache != nil }
