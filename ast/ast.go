package ast

type Expression interface {
	is_Expression()
}

type Number float64

func (v Number) is_Expression() {}

// Variable is resolved against the scope table when lowered, not when parsed.
type Variable string

func (v Variable) is_Expression() {}

type Binary struct {
	Op  rune
	LHS Expression
	RHS Expression
}

func (v Binary) is_Expression() {}

type Call struct {
	Callee    string
	Arguments []Expression
}

func (v Call) is_Expression() {}

type Statement interface {
	is_Statement()
}

type Assignment struct {
	To    string
	Value Expression
}

func (v Assignment) is_Statement() {}

type Return struct {
	Value Expression
}

func (v Return) is_Statement() {}

type If struct {
	Condition Expression
	Then      Compound
	Else      Compound
}

func (v If) is_Statement() {}

type While struct {
	Condition Expression
	Body      Compound
}

func (v While) is_Statement() {}

// VarDecl declares a local. A nil Init means the local starts at zero.
type VarDecl struct {
	Name string
	Init Expression
}

// Compound is a braced block: its declarations are bound before any of its
// statements run and go out of scope when the block ends.
type Compound struct {
	Declarations []VarDecl
	Statements   []Statement
}

type Prototype struct {
	Name   string
	Params []string
}

type TopLevel interface {
	is_TopLevel()
}

type Function struct {
	Proto Prototype
	Body  Compound
}

func (v Function) is_TopLevel() {}

type Extern struct {
	Prototype
}

func (v Extern) is_TopLevel() {}

type AST struct {
	Toplevels []TopLevel
}
