package backend

import (
	"fmt"
	"strings"
)

// Dump renders m as readable text: one line per declared/defined function,
// one label per block, one line per instruction. It is a diagnostic
// format, not a parseable one — chi never reconstructs a Module from it,
// only from recompiling the owning GraphModule's own Functions. This is
// the payload modulecache.Entry.IR stores: a persisted record that a
// module compiled cleanly, readable for inspection across processes,
// without attempting to round-trip the live backend handles a
// process-local compile cache instead holds.
func (m *Module) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "; module %s\n", m.Name)
	for _, fn := range m.Functions() {
		if fn.External {
			fmt.Fprintf(&b, "declare %s %s(%d params)\n", fn.RetType, fn.Name, len(fn.Params))
			continue
		}
		fmt.Fprintf(&b, "define %s %s(%d params) {\n", fn.RetType, fn.Name, len(fn.Params))
		for _, blk := range fn.Blocks {
			fmt.Fprintf(&b, "%s:\n", blk.Name)
			for _, instr := range blk.Instrs {
				if instr.Result != nil {
					fmt.Fprintf(&b, "  %s = %s\n", instr.Result, instr.Op)
				} else {
					fmt.Fprintf(&b, "  %s\n", instr.Op)
				}
			}
		}
		b.WriteString("}\n")
	}
	return b.String()
}
