package codegen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/value"
	"github.com/pontaoski/kalei/ast"
	"github.com/pontaoski/kalei/errors"
	"golang.org/x/exp/slices"
)

// Context carries all lowering state for one module. It is not safe for
// concurrent use.
type Context struct {
	Module *ir.Module

	// names maps each variable in scope to its stack slot. It is flat: a
	// block that shadows a name saves the outer slot and puts it back on
	// exit.
	names map[string]*ir.InstAlloca

	// protos remembers every prototype seen so calls can declare a callee
	// that has not been lowered yet.
	protos map[string]ast.Prototype

	fn     *ir.Func
	block  *ir.Block
	locals map[string]int
}

func NewContext(moduleName string) *Context {
	m := ir.NewModule()
	m.SourceFilename = moduleName

	c := &Context{
		Module: m,
		names:  map[string]*ir.InstAlloca{},
		protos: map[string]ast.Prototype{},
	}
	addBuiltins(c)

	return c
}

// Lower lowers a whole parse tree. Every prototype is made known up front so
// a function can call one defined further down. A definition that fails to
// lower is dropped and reported; the rest of the tree is still lowered.
func Lower(tree ast.AST, moduleName string) (*ir.Module, []error) {
	c := NewContext(moduleName)

	for _, tl := range tree.Toplevels {
		switch v := tl.(type) {
		case ast.Function:
			c.Declare(v.Proto)
		case ast.Extern:
			c.Declare(v.Prototype)
		}
	}

	var errs []error
	for _, tl := range tree.Toplevels {
		var err error
		switch v := tl.(type) {
		case ast.Function:
			_, err = c.LowerFunction(v)
		case ast.Extern:
			_, err = c.LowerExtern(v)
		default:
			panic("unhandled")
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	return c.Module, errs
}

// Declare caches proto without emitting anything. The first prototype seen
// for a name wins.
func (c *Context) Declare(proto ast.Prototype) {
	if _, ok := c.protos[proto.Name]; !ok {
		c.protos[proto.Name] = proto
	}
}

func (c *Context) lookupFunction(name string) *ir.Func {
	idx := slices.IndexFunc(c.Module.Funcs, func(fn *ir.Func) bool {
		return fn.Name() == name
	})
	if idx < 0 {
		return nil
	}
	return c.Module.Funcs[idx]
}

// function resolves a callee: a function already in the module, else a
// cached prototype declared on first use.
func (c *Context) function(name string) (*ir.Func, error) {
	if fn := c.lookupFunction(name); fn != nil {
		return fn, nil
	}
	if proto, ok := c.protos[name]; ok {
		return c.LowerPrototype(proto)
	}
	return nil, errors.ScopeError{Kind: errors.UnknownFunction, Name: name}
}

func duplicateParam(params []string) (string, bool) {
	for i, param := range params {
		if slices.Contains(params[:i], param) {
			return param, true
		}
	}
	return "", false
}

// LowerPrototype declares proto in the module, or returns the existing
// function of that name if the arities agree.
func (c *Context) LowerPrototype(proto ast.Prototype) (*ir.Func, error) {
	if name, ok := duplicateParam(proto.Params); ok {
		return nil, errors.DuplicateParameter{Function: proto.Name, Name: name}
	}

	if fn := c.lookupFunction(proto.Name); fn != nil {
		if len(fn.Params) != len(proto.Params) {
			return nil, errors.SignatureMismatch{
				Name:       proto.Name,
				Declared:   len(fn.Params),
				Redeclared: len(proto.Params),
			}
		}
		return fn, nil
	}

	return c.declareFunction(proto), nil
}

func (c *Context) LowerExtern(e ast.Extern) (*ir.Func, error) {
	fn, err := c.LowerPrototype(e.Prototype)
	if err != nil {
		return nil, err
	}
	c.protos[e.Name] = e.Prototype
	return fn, nil
}

func (c *Context) LowerFunction(f ast.Function) (*ir.Func, error) {
	proto := f.Proto

	existing := c.lookupFunction(proto.Name)
	if existing != nil && len(existing.Blocks) != 0 {
		return nil, errors.RedefinitionError{Name: proto.Name}
	}

	fn, err := c.LowerPrototype(proto)
	if err != nil {
		return nil, err
	}
	c.protos[proto.Name] = proto

	c.fn = fn
	c.locals = map[string]int{}
	c.names = map[string]*ir.InstAlloca{}
	defer func() {
		c.fn = nil
		c.block = nil
	}()

	for i, param := range fn.Params {
		param.SetName(proto.Params[i])
		c.locals[proto.Params[i]] = 1
	}

	c.setInsertPoint(c.newBlock("entry"))

	// Parameters live in slots like any other variable.
	for i, param := range fn.Params {
		slot := c.slot(proto.Params[i])
		c.store(param, slot)
		c.names[proto.Params[i]] = slot
	}

	if err := c.lowerCompound(f.Body); err != nil {
		c.discard(fn, existing != nil)
		return nil, err
	}

	if c.block.Term == nil {
		c.block.NewRet(c.constant(0))
	}

	if err := verify(c.Module, fn); err != nil {
		c.discard(fn, existing != nil)
		return nil, err
	}

	return fn, nil
}

// discard throws away a half-built function. A function that was declared
// before its definition started stays behind as a bare declaration, since
// other functions may already call it.
func (c *Context) discard(fn *ir.Func, keepDeclaration bool) {
	if keepDeclaration {
		fn.Blocks = nil
		return
	}

	if idx := slices.Index(c.Module.Funcs, fn); idx >= 0 {
		c.Module.Funcs = slices.Delete(c.Module.Funcs, idx, idx+1)
	}
}

type binding struct {
	name  string
	slot  *ir.InstAlloca
	bound bool
}

func (c *Context) lowerCompound(block ast.Compound) error {
	var shadowed []binding

	// Put back the outer bindings in reverse, so a name declared twice in
	// one block ends up bound to what it was before the block.
	defer func() {
		for i := len(shadowed) - 1; i >= 0; i-- {
			old := shadowed[i]
			if old.bound {
				c.names[old.name] = old.slot
			} else {
				delete(c.names, old.name)
			}
		}
	}()

	for _, decl := range block.Declarations {
		val := c.constant(0)
		if decl.Init != nil {
			var err error
			if val, err = c.lowerExpression(decl.Init); err != nil {
				return err
			}
		}

		slot := c.slot(decl.Name)
		c.store(val, slot)

		old, bound := c.names[decl.Name]
		shadowed = append(shadowed, binding{decl.Name, old, bound})
		c.names[decl.Name] = slot
	}

	for _, stat := range block.Statements {
		if err := c.lowerStatement(stat); err != nil {
			return err
		}
	}

	return nil
}

func (c *Context) lowerStatement(s ast.Statement) error {
	switch stat := s.(type) {
	case ast.Assignment:
		_, err := c.assign(stat.To, stat.Value)
		return err
	case ast.Return:
		val, err := c.lowerExpression(stat.Value)
		if err != nil {
			return err
		}
		c.block.NewRet(val)

		// Anything after a return is unreachable but still needs a block.
		c.setInsertPoint(c.newBlock("afterret"))
		return nil
	case ast.If:
		return c.lowerIf(stat)
	case ast.While:
		return c.lowerWhile(stat)
	}

	panic("unhandled")
}

func (c *Context) lowerIf(stat ast.If) error {
	cond, err := c.lowerExpression(stat.Condition)
	if err != nil {
		return err
	}
	cond = c.truthy(cond, "ifcond")

	thenBloc := c.newBlock("then")
	elseBloc := c.detachedBlock("else")
	mergeBloc := c.detachedBlock("ifcont")

	c.block.NewCondBr(cond, thenBloc, elseBloc)

	c.setInsertPoint(thenBloc)
	if err := c.lowerCompound(stat.Then); err != nil {
		return err
	}
	c.branchTo(mergeBloc)

	c.appendBlock(elseBloc)
	c.setInsertPoint(elseBloc)
	if err := c.lowerCompound(stat.Else); err != nil {
		return err
	}
	c.branchTo(mergeBloc)

	// Both arms are statements, so nothing flows into the merge block and
	// no phi is needed.
	c.appendBlock(mergeBloc)
	c.setInsertPoint(mergeBloc)

	return nil
}

func (c *Context) lowerWhile(stat ast.While) error {
	checkBloc := c.newBlock("check")
	loopBloc := c.detachedBlock("loop")
	afterBloc := c.detachedBlock("afterloop")

	c.block.NewBr(checkBloc)

	// The condition is tested before every iteration, the first included.
	c.setInsertPoint(checkBloc)
	cond, err := c.lowerExpression(stat.Condition)
	if err != nil {
		return err
	}
	cond = c.truthy(cond, "whilecond")
	c.block.NewCondBr(cond, loopBloc, afterBloc)

	c.appendBlock(loopBloc)
	c.setInsertPoint(loopBloc)
	if err := c.lowerCompound(stat.Body); err != nil {
		return err
	}
	c.branchTo(checkBloc)

	c.appendBlock(afterBloc)
	c.setInsertPoint(afterBloc)

	return nil
}

func (c *Context) lowerExpression(e ast.Expression) (value.Value, error) {
	switch expr := e.(type) {
	case ast.Number:
		return c.constant(float64(expr)), nil
	case ast.Variable:
		slot, ok := c.names[string(expr)]
		if !ok {
			return nil, errors.ScopeError{Kind: errors.UnknownVariable, Name: string(expr)}
		}
		return c.load(slot, string(expr)), nil
	case ast.Binary:
		return c.lowerBinary(expr)
	case ast.Call:
		return c.lowerCall(expr)
	}

	panic("unhandled")
}

// assign stores the value of expr into the slot bound to name and yields
// the stored value.
func (c *Context) assign(name string, expr ast.Expression) (value.Value, error) {
	val, err := c.lowerExpression(expr)
	if err != nil {
		return nil, err
	}

	slot, ok := c.names[name]
	if !ok {
		return nil, errors.ScopeError{Kind: errors.UnknownVariable, Name: name}
	}

	c.store(val, slot)
	return val, nil
}

func (c *Context) lowerBinary(expr ast.Binary) (value.Value, error) {
	// The left side of '=' names a slot, it is not evaluated.
	if expr.Op == '=' {
		to, ok := expr.LHS.(ast.Variable)
		if !ok {
			return nil, errors.StructuralError{Message: "destination of '=' must be a variable"}
		}
		return c.assign(string(to), expr.RHS)
	}

	l, err := c.lowerExpression(expr.LHS)
	if err != nil {
		return nil, err
	}
	r, err := c.lowerExpression(expr.RHS)
	if err != nil {
		return nil, err
	}

	switch expr.Op {
	case '+':
		inst := c.block.NewFAdd(l, r)
		inst.SetName(c.localName("addtmp"))
		return inst, nil
	case '-':
		inst := c.block.NewFSub(l, r)
		inst.SetName(c.localName("subtmp"))
		return inst, nil
	case '*':
		inst := c.block.NewFMul(l, r)
		inst.SetName(c.localName("multmp"))
		return inst, nil
	case '<':
		cmp := c.block.NewFCmp(enum.FPredULT, l, r)
		cmp.SetName(c.localName("cmptmp"))
		inst := c.block.NewUIToFP(cmp, double)
		inst.SetName(c.localName("booltmp"))
		return inst, nil
	}

	return nil, errors.InvalidOperator{Op: expr.Op}
}

func (c *Context) lowerCall(expr ast.Call) (value.Value, error) {
	fn, err := c.function(expr.Callee)
	if err != nil {
		return nil, err
	}

	if len(fn.Params) != len(expr.Arguments) {
		return nil, errors.ArityError{
			Callee:   expr.Callee,
			Expected: len(fn.Params),
			Got:      len(expr.Arguments),
		}
	}

	var args []value.Value
	for _, arg := range expr.Arguments {
		val, err := c.lowerExpression(arg)
		if err != nil {
			return nil, err
		}
		args = append(args, val)
	}

	return c.call(fn, args), nil
}
