package types

import (
	"fmt"
)

type Position struct {
	Line     int
	Column   int
	Filename string
}

type Span struct {
	From Position
	To   Position
}

type TokenKind int

const (
	EOF TokenKind = iota

	DEF
	EXTERN
	IF
	THEN
	ELSE
	WHILE
	RETURN
	INT

	IDENT
	NUMBER

	// CHAR is any other single character; the character is in Token.Char.
	CHAR
)

var keywords = map[string]TokenKind{
	"def":    DEF,
	"extern": EXTERN,
	"if":     IF,
	"then":   THEN,
	"else":   ELSE,
	"while":  WHILE,
	"return": RETURN,
	"int":    INT,
}

// Keyword returns the keyword kind for lit, if lit is one.
func Keyword(lit string) (TokenKind, bool) {
	kind, ok := keywords[lit]
	return kind, ok
}

func (t TokenKind) String() string {
	data := map[TokenKind]string{
		EOF:    "EOF",
		DEF:    "DEF",
		EXTERN: "EXTERN",
		IF:     "IF",
		THEN:   "THEN",
		ELSE:   "ELSE",
		WHILE:  "WHILE",
		RETURN: "RETURN",
		INT:    "INT",
		IDENT:  "IDENT",
		NUMBER: "NUMBER",
		CHAR:   "CHAR",
	}
	return data[t]
}

func (p Position) String() string {
	if p.Filename == "" {
		p.Filename = "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

func (s Span) String() string {
	return fmt.Sprintf("%s-%d:%d", s.From, s.To.Line, s.To.Column)
}

func SingleCharSpan(p Position) Span {
	return Span{p, p}
}

type Token struct {
	Kind     TokenKind
	Location Span

	// Lit is the source text of an IDENT, NUMBER or keyword.
	Lit  string
	Num  float64
	Char rune
}

// Is reports whether t is the single character c.
func (t Token) Is(c rune) bool {
	return t.Kind == CHAR && t.Char == c
}

func (t Token) String() string {
	switch t.Kind {
	case CHAR:
		return fmt.Sprintf("'%c'", t.Char)
	case IDENT, NUMBER:
		return fmt.Sprintf("%s %q", t.Kind, t.Lit)
	}
	return t.Kind.String()
}
