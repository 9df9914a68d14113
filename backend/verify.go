package backend

import "fmt"

// Verify performs the structural verification spec.md §4.1 step 5 asks for
// before a module is handed back to the caller: every block in every
// function must end in a terminator, and every branch target must belong to
// the same function it is referenced from. It does not attempt dataflow or
// type verification beyond what the builder already enforces at emission
// time.
func (m *Module) Verify() error {
	for _, fn := range m.Functions() {
		if fn.External {
			continue
		}
		if len(fn.Blocks) == 0 {
			return fmt.Errorf("backend: function %q has no basic blocks", fn.Name)
		}
		blockSet := make(map[*BasicBlock]bool, len(fn.Blocks))
		for _, b := range fn.Blocks {
			blockSet[b] = true
		}
		for _, b := range fn.Blocks {
			term := b.Terminator()
			if term == nil {
				return fmt.Errorf("backend: function %q block %q is not terminated", fn.Name, b.Name)
			}
			for _, t := range term.Targets {
				if !blockSet[t] {
					return fmt.Errorf("backend: function %q block %q branches to a block from another function", fn.Name, b.Name)
				}
			}
		}
	}
	return nil
}
