package vm

import (
	"errors"
	"math"
	"testing"
)

func TestParseFormatRoundTrip(t *testing.T) {
	tests := []string{
		"A",
		"( )",
		"( A B )",
		"( ( TRUE 0.012345 -12784 a_name ) BOOL.AND )",
		"( CODE.QUOTE ( 1 ( 2 ( 3 ) ) ) EXEC.DO*RANGE FLOAT.SUM )",
		"( 1.0e-7 2.5e21 -0.0 )",
	}

	for _, src := range tests {
		code := mustParse(t, src)
		formatted := testTable.Format(code)
		again := mustParse(t, formatted)
		if !again.Equal(code) {
			t.Errorf("round trip of %q via %q changed the tree", src, formatted)
		}
	}
}

func TestFloatFormatIsCanonical(t *testing.T) {
	tests := []struct {
		src, want string
	}{
		{"1.50", "1.5"},
		{"2.000", "2.0"},
		{"1.0E5", "100000.0"},
		{"-0.50e1", "-5.0"},
		{"1.0e-7", "1.0e-07"},
	}
	for _, tt := range tests {
		got := testTable.Format(mustParse(t, tt.src))
		if got != tt.want {
			t.Errorf("Format(%s) = %s, want %s", tt.src, got, tt.want)
		}
		if again := testTable.Format(mustParse(t, got)); again != got {
			t.Errorf("Format is not stable for %s: %s then %s", tt.src, got, again)
		}
	}
}

func TestParseLiteralKinds(t *testing.T) {
	tests := []struct {
		src  string
		inst string
		kind DataKind
	}{
		{"TRUE", BoolLiteralName, DataBool},
		{"FALSE", BoolLiteralName, DataBool},
		{"12", IntegerLiteralName, DataInteger},
		{"-12", IntegerLiteralName, DataInteger},
		{"1.5", FloatLiteralName, DataFloat},
		{"-1.5e3", FloatLiteralName, DataFloat},
		{"1.", NameLiteralName, DataName},
		{".5", NameLiteralName, DataName},
		{"BOOL.AND", "BOOL.AND", DataNone},
		{"bool.and", NameLiteralName, DataName},
		{"99999999999999999999", NameLiteralName, DataName},
	}

	for _, tt := range tests {
		code := mustParse(t, tt.src)
		if got := testTable.Name(code.Opcode()); got != tt.inst {
			t.Errorf("Parse(%q) instruction = %s, want %s", tt.src, got, tt.inst)
		}
		if got := code.Data().Kind(); got != tt.kind {
			t.Errorf("Parse(%q) kind = %v, want %v", tt.src, got, tt.kind)
		}
	}
}

func TestParseWhitespace(t *testing.T) {
	a := mustParse(t, "(A(B\tC)\n)")
	b := mustParse(t, "( A ( B C ) )")
	if !a.Equal(b) {
		t.Error("parentheses should delimit words without surrounding spaces")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src      string
		expected string
		line     int
		column   int
	}{
		{"", "code", 1, 1},
		{")", "code", 1, 1},
		{"( A", `")"`, 1, 4},
		{"( A ) B", "end of input", 1, 7},
		{"( A\n  ( B )\n", `")"`, 3, 1},
	}

	for _, tt := range tests {
		_, err := testTable.Parse(tt.src)
		var perr *ParseError
		if !errors.As(err, &perr) {
			t.Errorf("Parse(%q) error = %v, want *ParseError", tt.src, err)
			continue
		}
		if perr.Expected != tt.expected {
			t.Errorf("Parse(%q) expected = %s, want %s", tt.src, perr.Expected, tt.expected)
		}
		if perr.Pos.Line != tt.line || perr.Pos.Column != tt.column {
			t.Errorf("Parse(%q) position = %d:%d, want %d:%d", tt.src, perr.Pos.Line, perr.Pos.Column, tt.line, tt.column)
		}
	}
}

func TestUnknownWordWithoutNameLiteral(t *testing.T) {
	table := NewInstructionTable()
	if err := RegisterBaseInstructions(table); err != nil {
		t.Fatal(err)
	}
	_, err := table.Parse("( BOOL.AND SOMETHING )")
	var perr *ParseError
	if !errors.As(err, &perr) || perr.Expected != "instruction or literal" {
		t.Errorf("error = %v, want an instruction-or-literal parse error", err)
	}
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0"},
		{1, "1.0"},
		{-2.5, "-2.5"},
		{0.012345, "0.012345"},
		{1e-7, "1.0e-07"},
		{2.5e21, "2.5e+21"},
	}
	for _, tt := range tests {
		if got := FormatFloat(tt.in); got != tt.want {
			t.Errorf("FormatFloat(%v) = %s, want %s", tt.in, got, tt.want)
		}
		data, ok := parseFloat(tt.want)
		if !ok || data.Float() != tt.in {
			t.Errorf("parseFloat(%s) = %v, %v, want %v", tt.want, data.Float(), ok, tt.in)
		}
	}
	if got := FormatFloat(math.Inf(1)); got != "+Inf" {
		t.Errorf("FormatFloat(+Inf) = %s", got)
	}
}
