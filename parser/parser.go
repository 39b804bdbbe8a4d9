package parser

import (
	"github.com/pontaoski/kalei/ast"
	"github.com/pontaoski/kalei/errors"
	"github.com/pontaoski/kalei/lexer"
	"github.com/pontaoski/kalei/types"
	"github.com/ztrue/tracerr"
)

// binopPrecedence holds the precedence of every binary operator. Higher
// binds tighter.
var binopPrecedence = map[rune]int{
	'=': 2,
	'<': 10,
	'+': 20,
	'-': 20,
	'*': 40,
}

var rightAssociative = map[rune]bool{
	'=': true,
}

type Parser struct {
	l    *lexer.Lexer
	cur  types.Token
	ast  ast.AST
	errs []error
}

func NewParser(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	p.next()
	return p
}

// Parse reads top-level definitions and externs until end of input. A
// definition that fails to parse is reported in the returned errors and
// skipped by advancing a single token; parsing carries on after it.
func (p *Parser) Parse() (ast.AST, []error) {
	for {
		switch {
		case p.cur.Kind == types.EOF:
			if err := p.l.Err(); err != nil {
				p.errs = append(p.errs, tracerr.Wrap(err))
			}
			return p.ast, p.errs
		case p.cur.Is(';'):
			p.next()
		case p.cur.Kind == types.DEF:
			p.handle(p.parseDefinition)
		case p.cur.Kind == types.EXTERN:
			p.handle(p.parseExtern)
		default:
			p.handle(p.parseTopLevelStatement)
		}
	}
}

func (p *Parser) handle(parse func() ast.TopLevel) {
	defer func() {
		if r := recover(); r != nil {
			perr, ok := r.(errors.ParseError)
			if !ok {
				panic(r)
			}
			p.errs = append(p.errs, tracerr.Wrap(perr))
			p.next()
		}
	}()

	p.ast.Toplevels = append(p.ast.Toplevels, parse())
}

func (p *Parser) next() types.Token {
	p.cur = p.l.Lex()
	return p.cur
}

func (p *Parser) unexpected(msg string) errors.ParseError {
	return errors.ParseError{
		Message:  msg,
		Got:      p.cur,
		Location: p.cur.Location,
	}
}

func (p *Parser) expect(c rune, msg string) {
	if !p.cur.Is(c) {
		panic(p.unexpected(msg))
	}
	p.next()
}

// precedence returns the precedence of the pending binary operator, or -1 if
// the current token is not one.
func (p *Parser) precedence() int {
	if p.cur.Kind != types.CHAR {
		return -1
	}
	prec, ok := binopPrecedence[p.cur.Char]
	if !ok {
		return -1
	}
	return prec
}

func (p *Parser) parseNumberExpr() ast.Expression {
	num := ast.Number(p.cur.Num)
	p.next()
	return num
}

func (p *Parser) parseParenExpr() ast.Expression {
	p.next() // eat '('
	expr := p.parseExpression()
	p.expect(')', "expected ')'")
	return expr
}

func (p *Parser) parseIdentifierExpr() ast.Expression {
	name := p.cur.Lit
	p.next()

	if !p.cur.Is('(') {
		return ast.Variable(name)
	}
	p.next() // eat '('

	var args []ast.Expression
	if !p.cur.Is(')') {
		for {
			args = append(args, p.parseExpression())

			if p.cur.Is(')') {
				break
			}
			if !p.cur.Is(',') {
				panic(p.unexpected("expected ')' or ',' in argument list"))
			}
			p.next()
		}
	}
	p.next() // eat ')'

	return ast.Call{
		Callee:    name,
		Arguments: args,
	}
}

func (p *Parser) parsePrimary() ast.Expression {
	switch {
	case p.cur.Kind == types.IDENT:
		return p.parseIdentifierExpr()
	case p.cur.Kind == types.NUMBER:
		return p.parseNumberExpr()
	case p.cur.Is('('):
		return p.parseParenExpr()
	}

	panic(p.unexpected("unknown token when expecting an expression"))
}

// parseBinOpRHS folds operators of at least minPrec into lhs. An operator
// that binds tighter than the one just consumed takes the right operand as
// its own left operand; '=' also does so at equal precedence, which makes it
// right-associative while everything else associates to the left.
func (p *Parser) parseBinOpRHS(minPrec int, lhs ast.Expression) ast.Expression {
	for {
		prec := p.precedence()
		if prec < minPrec {
			return lhs
		}

		op := p.cur.Char
		p.next()

		rhs := p.parsePrimary()

		for {
			next := p.precedence()
			if next > prec {
				rhs = p.parseBinOpRHS(prec+1, rhs)
			} else if next == prec && rightAssociative[op] {
				rhs = p.parseBinOpRHS(prec, rhs)
			} else {
				break
			}
		}

		lhs = ast.Binary{
			Op:  op,
			LHS: lhs,
			RHS: rhs,
		}
	}
}

func (p *Parser) parseExpression() ast.Expression {
	lhs := p.parsePrimary()
	return p.parseBinOpRHS(0, lhs)
}

func (p *Parser) parsePrototype() ast.Prototype {
	if p.cur.Kind != types.IDENT {
		panic(p.unexpected("expected function name in prototype"))
	}
	proto := ast.Prototype{Name: p.cur.Lit}
	p.next()

	p.expect('(', "expected '(' in prototype")

	if !p.cur.Is(')') {
		for {
			if p.cur.Kind != types.INT {
				panic(p.unexpected("expected 'int' before parameter name"))
			}
			p.next()

			if p.cur.Kind != types.IDENT {
				panic(p.unexpected("expected parameter name in prototype"))
			}
			proto.Params = append(proto.Params, p.cur.Lit)
			p.next()

			if p.cur.Is(')') {
				break
			}
			if !p.cur.Is(',') {
				panic(p.unexpected("expected ')' or ',' in prototype"))
			}
			p.next()
		}
	}
	p.next() // eat ')'

	return proto
}

func (p *Parser) parseCompoundStat() ast.Compound {
	p.expect('{', "expected '{' to open a block")

	var block ast.Compound
	if p.cur.Kind == types.INT {
		p.next()
		for {
			if p.cur.Kind != types.IDENT {
				panic(p.unexpected("expected variable name in declaration"))
			}
			decl := ast.VarDecl{Name: p.cur.Lit}
			p.next()

			if p.cur.Is('=') {
				p.next()
				decl.Init = p.parseExpression()
			}
			block.Declarations = append(block.Declarations, decl)

			if p.cur.Is(';') {
				break
			}
			if !p.cur.Is(',') {
				panic(p.unexpected("expected ',' or ';' in declaration list"))
			}
			p.next()
		}
		p.next() // eat ';'
	}

	block.Statements = p.parseStatList()

	p.expect('}', "expected '}' to close a block")
	return block
}

// parseStatList stops at the first token that cannot start a statement,
// without consuming it.
func (p *Parser) parseStatList() (stats []ast.Statement) {
	for {
		switch p.cur.Kind {
		case types.IF:
			stats = append(stats, p.parseIfStat())
		case types.WHILE:
			stats = append(stats, p.parseWhileStat())
		case types.RETURN:
			stats = append(stats, p.parseReturnStat())
		case types.IDENT:
			stats = append(stats, p.parseAssignmentStat())
		default:
			return
		}
	}
}

func (p *Parser) parseCondition(keyword string) ast.Expression {
	p.expect('(', "expected '(' after "+keyword)
	cond := p.parseExpression()
	p.expect(')', "expected ')' after "+keyword+" condition")
	return cond
}

func (p *Parser) parseIfStat() ast.Statement {
	p.next() // eat 'if'
	cond := p.parseCondition("if")
	then := p.parseCompoundStat()

	if p.cur.Kind != types.ELSE {
		panic(p.unexpected("expected else"))
	}
	p.next()

	return ast.If{
		Condition: cond,
		Then:      then,
		Else:      p.parseCompoundStat(),
	}
}

func (p *Parser) parseWhileStat() ast.Statement {
	p.next() // eat 'while'
	cond := p.parseCondition("while")

	return ast.While{
		Condition: cond,
		Body:      p.parseCompoundStat(),
	}
}

func (p *Parser) parseAssignmentStat() ast.Statement {
	name := p.cur.Lit
	p.next()

	p.expect('=', "expected '=' in assignment")
	value := p.parseExpression()
	p.expect(';', "expected ';' after assignment")

	return ast.Assignment{
		To:    name,
		Value: value,
	}
}

func (p *Parser) parseReturnStat() ast.Statement {
	p.next() // eat 'return'
	value := p.parseExpression()
	p.expect(';', "expected ';' after return")

	return ast.Return{Value: value}
}

func (p *Parser) parseDefinition() ast.TopLevel {
	p.next() // eat 'def'
	proto := p.parsePrototype()

	return ast.Function{
		Proto: proto,
		Body:  p.parseCompoundStat(),
	}
}

func (p *Parser) parseExtern() ast.TopLevel {
	p.next() // eat 'extern'
	return ast.Extern{Prototype: p.parsePrototype()}
}

func (p *Parser) parseTopLevelStatement() ast.TopLevel {
	panic(p.unexpected("top-level statements are not supported, expected def or extern"))
}
