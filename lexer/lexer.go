package lexer

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/pontaoski/kalei/types"
)

const eof rune = -1

// Lexer turns source text into tokens one Lex call at a time. It holds the
// last character read between calls, so a Lexer cannot be rewound.
type Lexer struct {
	pos      types.Position
	reader   *bufio.Reader
	lastChar rune
	err      error
}

func NewLexer(reader io.Reader, filename string) *Lexer {
	return &Lexer{
		pos:      types.Position{Line: 1, Column: 0, Filename: filename},
		reader:   bufio.NewReader(reader),
		lastChar: ' ',
	}
}

// Err returns the first read error other than io.EOF. The token stream ends
// at such an error just as it does at end of input.
func (l *Lexer) Err() error {
	return l.err
}

func (l *Lexer) newline() {
	l.pos.Line++
	l.pos.Column = 0
}

func (l *Lexer) read() {
	if l.lastChar == eof {
		return
	}
	if l.lastChar == '\n' {
		l.newline()
	}

	r, _, err := l.reader.ReadRune()
	if err != nil {
		if err != io.EOF {
			l.err = err
		}
		l.lastChar = eof
		return
	}

	l.pos.Column++
	l.lastChar = r
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func firstChar(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
}

func otherChar(r rune) bool {
	return firstChar(r) || isDigit(r)
}

func numberChar(r rune) bool {
	return isDigit(r) || r == '.'
}

// lexWhile consumes characters while pred holds, starting at lastChar.
func (l *Lexer) lexWhile(pred func(rune) bool) (types.Span, string) {
	var sb strings.Builder
	span := types.SingleCharSpan(l.pos)

	for pred(l.lastChar) {
		sb.WriteRune(l.lastChar)
		span.To = l.pos
		l.read()
	}

	return span, sb.String()
}

// strtod parses the longest numeric prefix of lit the way C's strtod does:
// "1.2.3" is 1.2 and a lone "." is 0.
func strtod(lit string) float64 {
	if i := strings.IndexByte(lit, '.'); i >= 0 {
		if j := strings.IndexByte(lit[i+1:], '.'); j >= 0 {
			lit = lit[:i+1+j]
		}
	}

	v, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return v
		}
		return 0
	}
	return v
}

func (l *Lexer) Lex() types.Token {
	for unicode.IsSpace(l.lastChar) {
		l.read()
	}

	switch {
	case firstChar(l.lastChar):
		span, lit := l.lexWhile(otherChar)
		if kind, ok := types.Keyword(lit); ok {
			return types.Token{Kind: kind, Location: span, Lit: lit}
		}
		return types.Token{Kind: types.IDENT, Location: span, Lit: lit}
	case numberChar(l.lastChar):
		span, lit := l.lexWhile(numberChar)
		return types.Token{Kind: types.NUMBER, Location: span, Lit: lit, Num: strtod(lit)}
	case l.lastChar == '#':
		for l.lastChar != eof && l.lastChar != '\n' && l.lastChar != '\r' {
			l.read()
		}
		if l.lastChar != eof {
			return l.Lex()
		}
	}

	if l.lastChar == eof {
		return types.Token{Kind: types.EOF, Location: types.SingleCharSpan(l.pos)}
	}

	tok := types.Token{
		Kind:     types.CHAR,
		Location: types.SingleCharSpan(l.pos),
		Char:     l.lastChar,
	}
	l.read()

	return tok
}

// LexToEOF drains the lexer. The EOF token is not included.
func (l *Lexer) LexToEOF() (ret []types.Token) {
	t := l.Lex()
	for t.Kind != types.EOF {
		ret = append(ret, t)
		t = l.Lex()
	}
	return
}
