// Package backend implements the small IR the chi compiler core emits into.
//
// chigraph's original implementation lowers graphs straight to LLVM IR; no
// Go LLVM binding is available to this implementation (see the project's
// DESIGN.md for why), so this package plays the role the spec assigns to
// "the IR backend": it owns typed values, basic blocks, functions and
// modules, and a builder that knows how to emit the handful of instructions
// the node catalog in package chi actually needs (stores, loads, branches, a
// switch, casts, binary/compare ops, calls, and global string constants).
//
// A backend.Context owns every Type and must outlive every Module, Function,
// Value and Builder created from it, mirroring the ownership rule chigraph
// places on its LLVMContext.
package backend
