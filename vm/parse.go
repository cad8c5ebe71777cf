package vm

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Text format: lexer, parser and formatter
// ---------------------------------------------------------------------------

// Position is a location in program text.
type Position struct {
	Offset int // byte offset, 0-based
	Line   int // 1-based
	Column int // 1-based, in runes
}

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenLParen
	tokenRParen
	tokenWord
)

type token struct {
	typ  tokenType
	text string
	pos  Position
}

func (t token) describe() string {
	switch t.typ {
	case tokenEOF:
		return "end of input"
	case tokenLParen:
		return `"("`
	case tokenRParen:
		return `")"`
	}
	return `"` + t.text + `"`
}

// lexer splits program text into parentheses and words. Anything that is not
// whitespace or a parenthesis belongs to a word.
type lexer struct {
	input string
	off   int
	line  int
	col   int
}

func newLexer(input string) *lexer {
	return &lexer{input: input, line: 1, col: 1}
}

func (l *lexer) peekRune() (rune, int) {
	if l.off >= len(l.input) {
		return 0, 0
	}
	return utf8.DecodeRuneInString(l.input[l.off:])
}

func (l *lexer) advance(r rune, size int) {
	l.off += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

func (l *lexer) position() Position {
	return Position{Offset: l.off, Line: l.line, Column: l.col}
}

func (l *lexer) next() token {
	for {
		r, size := l.peekRune()
		if size == 0 || !unicode.IsSpace(r) {
			break
		}
		l.advance(r, size)
	}

	pos := l.position()
	r, size := l.peekRune()
	switch {
	case size == 0:
		return token{typ: tokenEOF, pos: pos}
	case r == '(':
		l.advance(r, size)
		return token{typ: tokenLParen, text: "(", pos: pos}
	case r == ')':
		l.advance(r, size)
		return token{typ: tokenRParen, text: ")", pos: pos}
	}

	start := l.off
	for {
		r, size := l.peekRune()
		if size == 0 || unicode.IsSpace(r) || r == '(' || r == ')' {
			break
		}
		l.advance(r, size)
	}
	return token{typ: tokenWord, text: l.input[start:l.off], pos: pos}
}

type parser struct {
	table *InstructionTable
	lex   *lexer
	tok   token
}

// Parse reads exactly one Code expression from src.
func (t *InstructionTable) Parse(src string) (Code, error) {
	p := &parser{table: t, lex: newLexer(src)}
	p.tok = p.lex.next()

	code, err := p.parseCode()
	if err != nil {
		return Code{}, err
	}
	if p.tok.typ != tokenEOF {
		return Code{}, p.errorf("end of input")
	}
	return code, nil
}

// MustParse is Parse for tests and static programs; it panics on error.
func (t *InstructionTable) MustParse(src string) Code {
	code, err := t.Parse(src)
	if err != nil {
		panic(err)
	}
	return code
}

func (p *parser) errorf(expected string) *ParseError {
	return &ParseError{Pos: p.tok.pos, Expected: expected, Found: p.tok.describe()}
}

func (p *parser) parseCode() (Code, error) {
	switch p.tok.typ {
	case tokenLParen:
		p.tok = p.lex.next()
		var children []Code
		for p.tok.typ != tokenRParen {
			if p.tok.typ == tokenEOF {
				return Code{}, p.errorf(`")"`)
			}
			child, err := p.parseCode()
			if err != nil {
				return Code{}, err
			}
			children = append(children, child)
		}
		p.tok = p.lex.next()
		return newListOwned(children), nil

	case tokenWord:
		code, ok := p.table.parseToken(p.tok.text)
		if !ok {
			return Code{}, p.errorf("instruction or literal")
		}
		p.tok = p.lex.next()
		return code, nil
	}
	return Code{}, p.errorf("code")
}

// Format renders c in the text format accepted by Parse.
func (t *InstructionTable) Format(c Code) string {
	var sb strings.Builder
	t.format(&sb, c)
	return sb.String()
}

func (t *InstructionTable) format(sb *strings.Builder, c Code) {
	if c.IsList() {
		sb.WriteString("(")
		for _, child := range c.data.list {
			sb.WriteByte(' ')
			t.format(sb, child)
		}
		sb.WriteString(" )")
		return
	}

	inst, ok := t.Instruction(c.op)
	switch {
	case !ok:
		sb.WriteString("<invalid opcode>")
	case inst.Format != nil:
		sb.WriteString(inst.Format(c.data))
	default:
		sb.WriteString(inst.Name)
	}
}
