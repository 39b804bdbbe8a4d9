package errors

import (
	"fmt"
	"strings"

	"github.com/pontaoski/kalei/types"
)

// ParseError is a missing or unexpected token. Message is fixed per grammar
// rule; Got and Location say what the parser found instead.
type ParseError struct {
	Message  string
	Got      types.Token
	Location types.Span
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%s, got %s. %s", e.Message, e.Got, e.Location)
}

type ScopeKind int

const (
	UnknownVariable ScopeKind = iota
	UnknownFunction
)

type ScopeError struct {
	Kind ScopeKind
	Name string
}

func (e ScopeError) Error() string {
	if e.Kind == UnknownFunction {
		return fmt.Sprintf("unknown function referenced: %s", e.Name)
	}
	return fmt.Sprintf("unknown variable name: %s", e.Name)
}

type ArityError struct {
	Callee   string
	Expected int
	Got      int
}

func (e ArityError) Error() string {
	return fmt.Sprintf("incorrect # arguments passed to %s: expected %d, got %d", e.Callee, e.Expected, e.Got)
}

type RedefinitionError struct {
	Name string
}

func (e RedefinitionError) Error() string {
	return fmt.Sprintf("function %s cannot be redefined", e.Name)
}

type StructuralError struct {
	Message string
}

func (e StructuralError) Error() string {
	return e.Message
}

type DuplicateParameter struct {
	Function string
	Name     string
}

func (e DuplicateParameter) Error() string {
	return fmt.Sprintf("parameter %s specified more than once in %s", e.Name, e.Function)
}

type SignatureMismatch struct {
	Name       string
	Declared   int
	Redeclared int
}

func (e SignatureMismatch) Error() string {
	return fmt.Sprintf("function %s declared with %d parameters, redeclared with %d", e.Name, e.Declared, e.Redeclared)
}

type InvalidOperator struct {
	Op rune
}

func (e InvalidOperator) Error() string {
	return fmt.Sprintf("invalid binary operator '%c'", e.Op)
}

type VerifyError struct {
	Function string
	Problems []string
}

func (e VerifyError) Error() string {
	return fmt.Sprintf("function %s failed verification: %s", e.Function, strings.Join(e.Problems, "; "))
}
