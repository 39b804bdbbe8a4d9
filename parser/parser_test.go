package parser

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/alecthomas/repr"
	"github.com/pontaoski/kalei/ast"
	"github.com/pontaoski/kalei/errors"
	"github.com/pontaoski/kalei/lexer"
	"github.com/ztrue/tracerr"
)

func newParser(src string) *Parser {
	return NewParser(lexer.NewLexer(strings.NewReader(src), "test.kl"))
}

func parse(t *testing.T, src string) ast.AST {
	t.Helper()

	tree, errs := newParser(src).Parse()
	if len(errs) > 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	return tree
}

// parseErr runs fn against a fresh parser and returns the ParseError it raised.
func parseErr(t *testing.T, src string, fn func(p *Parser)) (perr errors.ParseError) {
	t.Helper()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("parsing %q did not fail", src)
		}
		var ok bool
		if perr, ok = r.(errors.ParseError); !ok {
			t.Fatalf("parsing %q panicked with %v", src, r)
		}
	}()

	fn(newParser(src))
	return
}

func TestExpressionPrecedence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a + b * c", "(a + (b * c))"},
		{"a * b + c", "((a * b) + c)"},
		{"(a + b) * c", "((a + b) * c)"},
		{"a - b - c", "((a - b) - c)"},
		{"a < b + 1", "(a < (b + 1))"},
		{"a = b = 3", "(a = (b = 3))"},
		{"a = b + c = d", "(a = ((b + c) = d))"},
		{"x = y < z * 2 - 1", "(x = (y < ((z * 2) - 1)))"},
		{"f(a, b * 2) + g()", "(f(a, (b * 2)) + g())"},
		{"((1))", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr := newParser(tt.input).parseExpression()
			if got := fmt.Sprint(expr); got != tt.expected {
				t.Errorf("parseExpression(%q) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExpressionTree(t *testing.T) {
	got := newParser("a + b * c").parseExpression()
	expected := ast.Binary{
		Op:  '+',
		LHS: ast.Variable("a"),
		RHS: ast.Binary{Op: '*', LHS: ast.Variable("b"), RHS: ast.Variable("c")},
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("got %s, want %s", repr.String(got), repr.String(expected))
	}

	got = newParser("(a + b) * c").parseExpression()
	expected = ast.Binary{
		Op:  '*',
		LHS: ast.Binary{Op: '+', LHS: ast.Variable("a"), RHS: ast.Variable("b")},
		RHS: ast.Variable("c"),
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("got %s, want %s", repr.String(got), repr.String(expected))
	}

	got = newParser("a = b = 3").parseExpression()
	expected = ast.Binary{
		Op:  '=',
		LHS: ast.Variable("a"),
		RHS: ast.Binary{Op: '=', LHS: ast.Variable("b"), RHS: ast.Number(3)},
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("got %s, want %s", repr.String(got), repr.String(expected))
	}
}

func TestDefinition(t *testing.T) {
	tree := parse(t, `
# adds its arguments, counting down b
def add(int a, int b) {
	int r = a, i;
	while (0 < b) {
		r = r + 1;
		b = b - 1;
	}
	if (r < 0) { return 0; } else { i = r; }
	return i;
}
`)

	expected := ast.AST{Toplevels: []ast.TopLevel{
		ast.Function{
			Proto: ast.Prototype{Name: "add", Params: []string{"a", "b"}},
			Body: ast.Compound{
				Declarations: []ast.VarDecl{
					{Name: "r", Init: ast.Variable("a")},
					{Name: "i"},
				},
				Statements: []ast.Statement{
					ast.While{
						Condition: ast.Binary{Op: '<', LHS: ast.Number(0), RHS: ast.Variable("b")},
						Body: ast.Compound{Statements: []ast.Statement{
							ast.Assignment{To: "r", Value: ast.Binary{Op: '+', LHS: ast.Variable("r"), RHS: ast.Number(1)}},
							ast.Assignment{To: "b", Value: ast.Binary{Op: '-', LHS: ast.Variable("b"), RHS: ast.Number(1)}},
						}},
					},
					ast.If{
						Condition: ast.Binary{Op: '<', LHS: ast.Variable("r"), RHS: ast.Number(0)},
						Then:      ast.Compound{Statements: []ast.Statement{ast.Return{Value: ast.Number(0)}}},
						Else:      ast.Compound{Statements: []ast.Statement{ast.Assignment{To: "i", Value: ast.Variable("r")}}},
					},
					ast.Return{Value: ast.Variable("i")},
				},
			},
		},
	}}

	if !reflect.DeepEqual(tree, expected) {
		t.Errorf("got %s\nwant %s", repr.String(tree), repr.String(expected))
	}
}

func TestExternAndEmptyBodies(t *testing.T) {
	tree := parse(t, "extern putchard(int c); extern now() def nothing() { }")

	expected := ast.AST{Toplevels: []ast.TopLevel{
		ast.Extern{Prototype: ast.Prototype{Name: "putchard", Params: []string{"c"}}},
		ast.Extern{Prototype: ast.Prototype{Name: "now"}},
		ast.Function{Proto: ast.Prototype{Name: "nothing"}},
	}}

	if !reflect.DeepEqual(tree, expected) {
		t.Errorf("got %s\nwant %s", repr.String(tree), repr.String(expected))
	}
}

func TestPrototypeErrors(t *testing.T) {
	tests := []struct {
		input   string
		message string
	}{
		{"(int a)", "expected function name in prototype"},
		{"f int a)", "expected '(' in prototype"},
		{"f(a)", "expected 'int' before parameter name"},
		{"f(int)", "expected parameter name in prototype"},
		{"f(int a int b)", "expected ')' or ',' in prototype"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			perr := parseErr(t, tt.input, func(p *Parser) { p.parsePrototype() })
			if perr.Message != tt.message {
				t.Errorf("got %q, want %q", perr.Message, tt.message)
			}
		})
	}
}

func TestStatementErrors(t *testing.T) {
	tests := []struct {
		input   string
		message string
	}{
		{"x = 1; }", "expected '{' to open a block"},
		{"{ int ; }", "expected variable name in declaration"},
		{"{ int a b; }", "expected ',' or ';' in declaration list"},
		{"{ if (a) { } }", "expected else"},
		{"{ if a { } else { } }", "expected '(' after if"},
		{"{ while (a { } }", "expected ')' after while condition"},
		{"{ x 1; }", "expected '=' in assignment"},
		{"{ x = 1 }", "expected ';' after assignment"},
		{"{ return 1 }", "expected ';' after return"},
		{"{ x = f(1 2); }", "expected ')' or ',' in argument list"},
		{"{ x = ; }", "unknown token when expecting an expression"},
		{"{ x = 1; ; }", "expected '}' to close a block"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			perr := parseErr(t, tt.input, func(p *Parser) { p.parseCompoundStat() })
			if perr.Message != tt.message {
				t.Errorf("got %q, want %q", perr.Message, tt.message)
			}
		})
	}
}

func TestStatListStopsWithoutConsuming(t *testing.T) {
	p := newParser("x = 1; return x; 42")
	stats := p.parseStatList()

	if len(stats) != 2 {
		t.Fatalf("got %d statements, want 2", len(stats))
	}
	if p.cur.Num != 42 {
		t.Errorf("statement list consumed its terminator, current token is %s", p.cur)
	}
}

func TestRecovery(t *testing.T) {
	tree, errs := newParser(`
def broken(int a { return a; }
def good(int a) { return a; }
1 + 2;
extern ok(int x)
`).Parse()

	if len(errs) == 0 {
		t.Fatalf("expected parse errors")
	}

	first, ok := tracerr.Unwrap(errs[0]).(errors.ParseError)
	if !ok {
		t.Fatalf("got %T, want errors.ParseError", tracerr.Unwrap(errs[0]))
	}
	if first.Message != "expected ')' or ',' in prototype" {
		t.Errorf("got %q", first.Message)
	}
	if first.Location.From.Line != 2 {
		t.Errorf("error reported at %s", first.Location)
	}

	var names []string
	for _, tl := range tree.Toplevels {
		switch v := tl.(type) {
		case ast.Function:
			names = append(names, "def "+v.Proto.Name)
		case ast.Extern:
			names = append(names, "extern "+v.Name)
		}
	}
	if strings.Join(names, ",") != "def good,extern ok" {
		t.Errorf("recovered toplevels %v", names)
	}

	foundTopLevel := false
	for _, err := range errs {
		if perr, ok := tracerr.Unwrap(err).(errors.ParseError); ok && strings.HasPrefix(perr.Message, "top-level statements") {
			foundTopLevel = true
		}
	}
	if !foundTopLevel {
		t.Errorf("bare top-level expression was not rejected: %v", errs)
	}
}
