// Package chi implements the Chigraph visual dataflow language core: typed
// modules, node/graph data structures, a dependency-ordered module loader,
// and a graph-to-backend-IR function compiler.
//
// # Quick Start
//
// Install the package:
//
//	go get github.com/chigraph/chi
//
// A Context owns the backend.Context (chi's LLVM-IR-shaped backend) and the
// registry of loaded modules, starting with the always-present "lang"
// module:
//
//	ctx := chi.NewContext(
//		chi.WithModuleSource(chi.MemorySource{"myapp/math": mathModuleJSON}),
//	)
//	mod, res := ctx.LoadModule(context.Background(), "myapp/math")
//	if !res.Success {
//		log.Fatal(res)
//	}
//	backendMod, res := ctx.CompileModule(context.Background(), "myapp/math", chi.DefaultCompileSettings)
//
// # Core Concepts
//
// # Modules and types
//
// A Module is the unit of compilation: it exports data types and node
// types, and declares the other modules it depends on. "lang" is the
// builtin module providing primitive types (i32, i1, float, i8*) and the
// control-flow/arithmetic/literal node types every graph needs. A
// GraphModule is a module whose functions and struct types are themselves
// authored as graphs, loaded from the on-disk JSON shape that
// ParseGraphModuleJSON reads and GraphModule.ToJSON writes.
//
// # Graphs
//
// A GraphFunction pairs a signature (data/exec inputs and outputs) with a
// Graph: a node/edge structure where every edge is owned centrally by the
// Graph rather than threaded through per-node pointers, so removing a node
// can never leave a dangling reference in a neighbor.
//
//	g := gf.Graph
//	n, res := g.InsertNode("add1", addNodeType, 0, 0)
//	res = g.ConnectData("add1", 0, "mul1", 0)
//
// # Compilation
//
// FunctionCompiler lowers one GraphFunction's Graph into a backend.Function,
// following the calling convention [execSelector, dataInputs...,
// dataOutputPointers...] and materializing pure nodes on demand, memoized
// per basic block.
//
// # Ambient packages
//
// backend/ is chi's own LLVM-IR-shaped intermediate representation:
// typed values, basic blocks, a builder, and structural verification.
//
// modulecache/ caches compiled module IR keyed by a content hash of the
// module's source JSON, with in-memory, SQLite, Redis, and PostgreSQL
// backends.
//
// chilog/ provides the leveled logging Context reports diagnostics
// through.
//
// docgen/ renders a Module's exported types and node types as sanitized
// HTML documentation, generated from Markdown.
//
// # License
//
// This project is licensed under the MIT License.
package chi
