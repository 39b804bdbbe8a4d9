package codegen

import (
	"strconv"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/pontaoski/kalei/ast"
)

// Every value in the language is a double.
var double = types.Double

// localName hands out function-unique names for locals and block labels,
// which share a namespace in LLVM. Repeats get a ".N" suffix; identifiers in
// source can't contain a dot, so suffixed names never collide with them.
func (c *Context) localName(base string) string {
	n := c.locals[base]
	c.locals[base] = n + 1
	if n == 0 {
		return base
	}
	return base + "." + strconv.Itoa(n)
}

func (c *Context) constant(v float64) value.Value {
	return constant.NewFloat(double, v)
}

// slot allocates a stack slot in the entry block, after any slots already
// there, so every alloca sits ahead of the code that uses it.
func (c *Context) slot(name string) *ir.InstAlloca {
	alloca := ir.NewAlloca(double)
	alloca.SetName(c.localName(name))

	entry := c.fn.Blocks[0]
	at := 0
	for at < len(entry.Insts) {
		if _, ok := entry.Insts[at].(*ir.InstAlloca); !ok {
			break
		}
		at++
	}

	entry.Insts = append(entry.Insts, nil)
	copy(entry.Insts[at+1:], entry.Insts[at:])
	entry.Insts[at] = alloca

	return alloca
}

func (c *Context) load(slot *ir.InstAlloca, name string) value.Value {
	inst := c.block.NewLoad(double, slot)
	inst.SetName(c.localName(name))
	return inst
}

func (c *Context) store(v value.Value, slot *ir.InstAlloca) {
	c.block.NewStore(v, slot)
}

func (c *Context) truthy(v value.Value, name string) value.Value {
	inst := c.block.NewFCmp(enum.FPredONE, v, c.constant(0))
	inst.SetName(c.localName(name))
	return inst
}

func (c *Context) call(fn *ir.Func, args []value.Value) value.Value {
	inst := c.block.NewCall(fn, args...)
	inst.SetName(c.localName("calltmp"))
	return inst
}

// detachedBlock creates a block that is not yet part of the current
// function; appendBlock places it once everything before it is emitted.
func (c *Context) detachedBlock(label string) *ir.Block {
	return ir.NewBlock(c.localName(label))
}

func (c *Context) appendBlock(b *ir.Block) {
	b.Parent = c.fn
	c.fn.Blocks = append(c.fn.Blocks, b)
}

func (c *Context) newBlock(label string) *ir.Block {
	b := c.detachedBlock(label)
	c.appendBlock(b)
	return b
}

func (c *Context) setInsertPoint(b *ir.Block) {
	c.block = b
}

// branchTo ends the current block with a jump to target unless the block
// already ended.
func (c *Context) branchTo(target *ir.Block) {
	if c.block.Term == nil {
		c.block.NewBr(target)
	}
}

func (c *Context) declareFunction(proto ast.Prototype) *ir.Func {
	params := make([]*ir.Param, len(proto.Params))
	for i, name := range proto.Params {
		params[i] = ir.NewParam(name, double)
	}

	return c.Module.NewFunc(proto.Name, double, params...)
}
