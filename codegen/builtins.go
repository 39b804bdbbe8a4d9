package codegen

import "github.com/pontaoski/kalei/ast"

// Builtins are callable without an extern. The evaluator supplies their
// bodies; a native build has to link them in.
var Builtins = []ast.Prototype{
	{Name: "putchard", Params: []string{"c"}},
	{Name: "printd", Params: []string{"x"}},
}

func addBuiltins(c *Context) {
	for _, proto := range Builtins {
		c.Declare(proto)
	}
}
