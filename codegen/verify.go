package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/pontaoski/kalei/errors"
	"golang.org/x/exp/slices"
)

// verify checks the structural rules the lowering relies on: a function has
// a body, every block is terminated, and every callee belongs to the module
// with matching arity.
func verify(m *ir.Module, fn *ir.Func) error {
	var problems []string

	if len(fn.Blocks) == 0 {
		problems = append(problems, "function has no body")
	}

	for _, b := range fn.Blocks {
		if b.Term == nil {
			problems = append(problems, fmt.Sprintf("block %s has no terminator", b.Name()))
		}

		for _, inst := range b.Insts {
			call, ok := inst.(*ir.InstCall)
			if !ok {
				continue
			}
			callee, ok := call.Callee.(*ir.Func)
			if !ok {
				problems = append(problems, fmt.Sprintf("block %s calls a non-function", b.Name()))
				continue
			}
			if !slices.Contains(m.Funcs, callee) {
				problems = append(problems, fmt.Sprintf("call to %s, which is not in the module", callee.Name()))
			}
			if len(callee.Params) != len(call.Args) {
				problems = append(problems, fmt.Sprintf("call to %s with %d arguments, want %d", callee.Name(), len(call.Args), len(callee.Params)))
			}
		}
	}

	if len(problems) > 0 {
		return errors.VerifyError{Function: fn.Name(), Problems: problems}
	}
	return nil
}
