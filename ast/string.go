package ast

import (
	"fmt"
	"strconv"
	"strings"
)

func exprToString(e Expression) string {
	if e == nil {
		return ""
	}

	switch v := e.(type) {
	case Number:
		return strconv.FormatFloat(float64(v), 'g', -1, 64)
	case Variable:
		return string(v)
	case Binary:
		return fmt.Sprintf("(%s %c %s)", exprToString(v.LHS), v.Op, exprToString(v.RHS))
	case Call:
		var args []string
		for _, arg := range v.Arguments {
			args = append(args, exprToString(arg))
		}
		return fmt.Sprintf("%s(%s)", v.Callee, strings.Join(args, ", "))
	}

	panic("unhandled")
}

// String renders binary expressions fully parenthesised, so the result shows
// how the parser grouped them.
func (v Binary) String() string { return exprToString(v) }
func (v Call) String() string   { return exprToString(v) }

func (v Assignment) String() string {
	return fmt.Sprintf("%s = %s;", v.To, exprToString(v.Value))
}

func (v Return) String() string {
	return fmt.Sprintf("return %s;", exprToString(v.Value))
}

func (v If) String() string {
	return fmt.Sprintf("if (%s) %s else %s", exprToString(v.Condition), v.Then, v.Else)
}

func (v While) String() string {
	return fmt.Sprintf("while (%s) %s", exprToString(v.Condition), v.Body)
}

func (c Compound) String() string {
	var sb strings.Builder
	sb.WriteString("{")

	if len(c.Declarations) > 0 {
		var decls []string
		for _, decl := range c.Declarations {
			if decl.Init == nil {
				decls = append(decls, decl.Name)
				continue
			}
			decls = append(decls, decl.Name+" = "+exprToString(decl.Init))
		}
		fmt.Fprintf(&sb, " int %s;", strings.Join(decls, ", "))
	}

	for _, stat := range c.Statements {
		fmt.Fprintf(&sb, " %s", stat)
	}

	sb.WriteString(" }")
	return sb.String()
}

func (p Prototype) String() string {
	var params []string
	for _, param := range p.Params {
		params = append(params, "int "+param)
	}
	return fmt.Sprintf("%s(%s)", p.Name, strings.Join(params, ", "))
}

func (f Function) String() string {
	return fmt.Sprintf("def %s %s", f.Proto, f.Body)
}

func (e Extern) String() string {
	return fmt.Sprintf("extern %s", e.Prototype)
}

func (a AST) String() string {
	var lines []string
	for _, tl := range a.Toplevels {
		lines = append(lines, fmt.Sprint(tl))
	}
	return strings.Join(lines, "\n")
}
