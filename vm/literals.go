package vm

import (
	"encoding/base64"
	"encoding/binary"
	"math"
	"strconv"
	"strings"
)

// Names of the literal instructions. They are registered after every other
// base instruction, the name literal last of all, because it accepts any
// token.
const (
	BoolLiteralName    = "BOOL.LITERALVALUE"
	FloatLiteralName   = "FLOAT.LITERALVALUE"
	IntegerLiteralName = "INTEGER.LITERALVALUE"
	NameLiteralName    = "NAME.LITERALVALUE"
)

func literalInstructions() []Instruction {
	return []Instruction{
		{
			Name:   BoolLiteralName,
			Tags:   []string{TagBool, TagLiteral},
			Parse:  parseBool,
			Random: func(e *Engine) Data { return BoolData(e.rng.IntN(2) == 1) },
			Execute: func(e *Engine, d Data) error {
				e.boolStack.Push(d.Bool())
				return nil
			},
			Format: func(d Data) string { return formatBool(d.Bool()) },
		},
		{
			Name:   FloatLiteralName,
			Tags:   []string{TagFloat, TagLiteral},
			Parse:  parseFloat,
			Random: func(e *Engine) Data { return FloatData(e.randomFloat()) },
			Execute: func(e *Engine, d Data) error {
				e.floatStack.Push(d.Float())
				return nil
			},
			Format: func(d Data) string { return FormatFloat(d.Float()) },
		},
		{
			Name:   IntegerLiteralName,
			Tags:   []string{TagInteger, TagLiteral},
			Parse:  parseInteger,
			Random: func(e *Engine) Data { return IntegerData(e.randomInteger()) },
			Execute: func(e *Engine, d Data) error {
				e.integerStack.Push(d.Integer())
				return nil
			},
			Format: func(d Data) string { return strconv.FormatInt(d.Integer(), 10) },
		},
		{
			Name:   NameLiteralName,
			Tags:   []string{TagName, TagLiteral},
			Parse:  parseName,
			Random: func(e *Engine) Data { return NameData(e.randomName()) },
			Execute: func(e *Engine, d Data) error {
				name := d.Name()
				if e.quoteNextName {
					e.quoteNextName = false
					e.nameStack.Push(name)
					return nil
				}
				if def, ok := e.bindings[name]; ok {
					e.execStack.Push(def)
					return nil
				}
				e.nameStack.Push(name)
				return nil
			},
			Format: func(d Data) string { return d.Name() },
		},
	}
}

// ---------------------------------------------------------------------------
// Token parsers
// ---------------------------------------------------------------------------

func parseBool(token string) (Data, bool) {
	switch token {
	case "TRUE":
		return BoolData(true), true
	case "FALSE":
		return BoolData(false), true
	}
	return NoData, false
}

func formatBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// scanDigits returns the number of leading ASCII digits in s.
func scanDigits(s string) int {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	return n
}

func skipSign(s string) string {
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		return s[1:]
	}
	return s
}

// parseFloat accepts [sign] digits "." digits [("e"|"E") [sign] digits].
func parseFloat(token string) (Data, bool) {
	rest := skipSign(token)
	n := scanDigits(rest)
	if n == 0 || n >= len(rest) || rest[n] != '.' {
		return NoData, false
	}
	rest = rest[n+1:]
	n = scanDigits(rest)
	if n == 0 {
		return NoData, false
	}
	rest = rest[n:]
	if rest != "" {
		if rest[0] != 'e' && rest[0] != 'E' {
			return NoData, false
		}
		rest = skipSign(rest[1:])
		n = scanDigits(rest)
		if n == 0 || n != len(rest) {
			return NoData, false
		}
	}
	f, err := strconv.ParseFloat(token, 64)
	if err != nil || math.IsInf(f, 0) {
		return NoData, false
	}
	return FloatData(f), true
}

// parseInteger accepts [sign] digits within the int64 range.
func parseInteger(token string) (Data, bool) {
	digits := skipSign(token)
	if digits == "" || scanDigits(digits) != len(digits) {
		return NoData, false
	}
	i, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return NoData, false
	}
	return IntegerData(i), true
}

// parseName accepts any token. The lexer has already excluded whitespace and
// parentheses.
func parseName(token string) (Data, bool) {
	if token == "" {
		return NoData, false
	}
	return NameData(token), true
}

// FormatFloat renders f so that it always reads back as a float literal: the
// shortest round-trip digits, with a decimal point.
func FormatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mantissa, exp, _ := strings.Cut(s, "e")
		if !strings.Contains(mantissa, ".") {
			mantissa += ".0"
		}
		return mantissa + "e" + exp
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// ---------------------------------------------------------------------------
// Ephemeral random constants
// ---------------------------------------------------------------------------

func (e *Engine) randomInteger() int64 {
	lo, hi := e.config.MinRandomInteger, e.config.MaxRandomInteger
	if hi < lo {
		return lo
	}
	span := uint64(hi-lo) + 1
	if span == 0 {
		return int64(e.rng.Uint64())
	}
	return lo + int64(e.rng.Uint64N(span))
}

func (e *Engine) randomFloat() float64 {
	lo, hi := e.config.MinRandomFloat, e.config.MaxRandomFloat
	if hi <= lo {
		return lo
	}
	return lo + e.rng.Float64()*(hi-lo)
}

// randomName returns a fresh name of the form RND.<base64 of 64 random bits>.
func (e *Engine) randomName() string {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], e.rng.Uint64())
	return "RND." + base64.StdEncoding.EncodeToString(buf[:])
}
