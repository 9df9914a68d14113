// Package chilog provides the leveled logging implementation chi.Context
// reports diagnostics through: module loads, compile starts/failures, and
// cache hits. The default is a no-op, so embedding chi costs nothing until a
// Logger is attached with chi.WithLogger.
package chilog
