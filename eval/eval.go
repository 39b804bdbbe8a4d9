package eval

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/value"
)

// Extern supplies the body of a function the module only declares.
type Extern func(args []float64) float64

var ErrStepLimit = errors.New("eval: step limit exceeded")

const maxDepth = 10000

// Machine runs functions of a lowered module directly. It understands the
// instructions the code generator emits and nothing more.
type Machine struct {
	Module   *ir.Module
	Externs  map[string]Extern
	MaxSteps int

	steps int
}

func New(m *ir.Module) *Machine {
	return &Machine{
		Module:   m,
		Externs:  map[string]Extern{},
		MaxSteps: 10000000,
	}
}

// Builtins implements the builtin prototypes, writing their output to w.
func Builtins(w io.Writer) map[string]Extern {
	return map[string]Extern{
		"putchard": func(args []float64) float64 {
			fmt.Fprintf(w, "%c", rune(args[0]))
			return 0
		},
		"printd": func(args []float64) float64 {
			fmt.Fprintf(w, "%f\n", args[0])
			return 0
		},
	}
}

func (m *Machine) Call(name string, args ...float64) (float64, error) {
	for _, fn := range m.Module.Funcs {
		if fn.Name() == name {
			m.steps = 0
			return m.call(fn, args, 0)
		}
	}
	return 0, fmt.Errorf("eval: no function named %s", name)
}

type frame struct {
	vals map[value.Value]float64
	mem  map[*ir.InstAlloca]float64
}

func (f *frame) get(v value.Value) (float64, error) {
	if c, ok := v.(*constant.Float); ok {
		if c.NaN {
			return math.NaN(), nil
		}
		x, _ := c.X.Float64()
		return x, nil
	}

	x, ok := f.vals[v]
	if !ok {
		return 0, fmt.Errorf("eval: %s used before it was computed", v.Ident())
	}
	return x, nil
}

func (f *frame) slot(v value.Value) (*ir.InstAlloca, error) {
	slot, ok := v.(*ir.InstAlloca)
	if !ok {
		return nil, fmt.Errorf("eval: %s is not a stack slot", v.Ident())
	}
	return slot, nil
}

func target(v interface{}) (*ir.Block, error) {
	b, ok := v.(*ir.Block)
	if !ok {
		return nil, fmt.Errorf("eval: branch to %T", v)
	}
	return b, nil
}

func (m *Machine) call(fn *ir.Func, args []float64, depth int) (float64, error) {
	if len(args) != len(fn.Params) {
		return 0, fmt.Errorf("eval: %s takes %d arguments, got %d", fn.Name(), len(fn.Params), len(args))
	}

	if len(fn.Blocks) == 0 {
		ext, ok := m.Externs[fn.Name()]
		if !ok {
			return 0, fmt.Errorf("eval: %s is declared but has no body", fn.Name())
		}
		return ext(args), nil
	}

	if depth > maxDepth {
		return 0, fmt.Errorf("eval: call depth exceeded in %s", fn.Name())
	}

	f := &frame{
		vals: map[value.Value]float64{},
		mem:  map[*ir.InstAlloca]float64{},
	}
	for i, param := range fn.Params {
		f.vals[param] = args[i]
	}

	block := fn.Blocks[0]
	for {
		for _, inst := range block.Insts {
			m.steps++
			if m.MaxSteps > 0 && m.steps > m.MaxSteps {
				return 0, ErrStepLimit
			}
			if err := m.exec(f, inst, depth); err != nil {
				return 0, err
			}
		}

		var err error
		switch term := block.Term.(type) {
		case *ir.TermRet:
			if term.X == nil {
				return 0, nil
			}
			return f.get(term.X)
		case *ir.TermBr:
			block, err = target(term.Target)
		case *ir.TermCondBr:
			var cond float64
			if cond, err = f.get(term.Cond); err != nil {
				return 0, err
			}
			if cond != 0 {
				block, err = target(term.TargetTrue)
			} else {
				block, err = target(term.TargetFalse)
			}
		default:
			return 0, fmt.Errorf("eval: unsupported terminator %T in %s", block.Term, fn.Name())
		}
		if err != nil {
			return 0, err
		}
	}
}

func (m *Machine) binary(f *frame, x, y value.Value, op func(x, y float64) float64) (float64, error) {
	l, err := f.get(x)
	if err != nil {
		return 0, err
	}
	r, err := f.get(y)
	if err != nil {
		return 0, err
	}
	return op(l, r), nil
}

func (m *Machine) exec(f *frame, inst ir.Instruction, depth int) (err error) {
	switch inst := inst.(type) {
	case *ir.InstAlloca:
		f.mem[inst] = 0
	case *ir.InstStore:
		slot, err := f.slot(inst.Dst)
		if err != nil {
			return err
		}
		if f.mem[slot], err = f.get(inst.Src); err != nil {
			return err
		}
	case *ir.InstLoad:
		slot, err := f.slot(inst.Src)
		if err != nil {
			return err
		}
		f.vals[inst] = f.mem[slot]
	case *ir.InstFAdd:
		f.vals[inst], err = m.binary(f, inst.X, inst.Y, func(x, y float64) float64 { return x + y })
	case *ir.InstFSub:
		f.vals[inst], err = m.binary(f, inst.X, inst.Y, func(x, y float64) float64 { return x - y })
	case *ir.InstFMul:
		f.vals[inst], err = m.binary(f, inst.X, inst.Y, func(x, y float64) float64 { return x * y })
	case *ir.InstFCmp:
		f.vals[inst], err = m.binary(f, inst.X, inst.Y, func(x, y float64) float64 {
			if fcmp(inst.Pred, x, y) {
				return 1
			}
			return 0
		})
	case *ir.InstUIToFP:
		f.vals[inst], err = f.get(inst.From)
	case *ir.InstCall:
		callee, ok := inst.Callee.(*ir.Func)
		if !ok {
			return fmt.Errorf("eval: indirect call through %s", inst.Callee.Ident())
		}
		args := make([]float64, len(inst.Args))
		for i, arg := range inst.Args {
			if args[i], err = f.get(arg); err != nil {
				return err
			}
		}
		f.vals[inst], err = m.call(callee, args, depth+1)
	default:
		return fmt.Errorf("eval: unsupported instruction %T", inst)
	}
	return err
}

func fcmp(pred enum.FPred, x, y float64) bool {
	unordered := math.IsNaN(x) || math.IsNaN(y)

	switch pred {
	case enum.FPredFalse:
		return false
	case enum.FPredTrue:
		return true
	case enum.FPredORD:
		return !unordered
	case enum.FPredUNO:
		return unordered
	case enum.FPredOEQ:
		return !unordered && x == y
	case enum.FPredONE:
		return !unordered && x != y
	case enum.FPredOLT:
		return !unordered && x < y
	case enum.FPredOLE:
		return !unordered && x <= y
	case enum.FPredOGT:
		return !unordered && x > y
	case enum.FPredOGE:
		return !unordered && x >= y
	case enum.FPredUEQ:
		return unordered || x == y
	case enum.FPredUNE:
		return unordered || x != y
	case enum.FPredULT:
		return unordered || x < y
	case enum.FPredULE:
		return unordered || x <= y
	case enum.FPredUGT:
		return unordered || x > y
	case enum.FPredUGE:
		return unordered || x >= y
	}
	return false
}
