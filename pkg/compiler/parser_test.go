package compiler

import (
	"testing"

	"github.com/nalgeon/be"
)

func parseSource(t *testing.T, src string) []Stmt {
	t.Helper()
	tokens, err := Lex(src)
	be.Err(t, err, nil)
	stmts, err := Parse(tokens)
	be.Err(t, err, nil)
	return stmts
}

func TestParseStatements(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Precedence", "a = 2 + 1 > 3 - 1;", "a = ((2 + 1) > (3 - 1))"},
		{"Left associative", "a = 10 - 3 - 2;", "a = ((10 - 3) - 2)"},
		{"Multiplication binds tighter", "a = 1 + 2 * 3;", "a = (1 + (2 * 3))"},
		{"Parentheses", "a = (1 + 2) * 3;", "a = ((1 + 2) * 3)"},
		{"Array target", "dst[i + 1] = src[i];", "dst[(i + 1)] = src[i]"},
		{"Call statement", "put(1, x);", "put(1, x)"},
		{"Register", "register out: u8 @ 0x0200;", "register out: u8 @ 0x0200"},
		{"Memory pointer", "memory buf: *u8 @ 0x0400;", "memory buf: *u8 @ 0x0400"},
		{"Const", "const n: u16 = 3 + 2;", "const n: u16 = (3 + 2)"},
		{"If else", "if x == 1 then y = 2; else y = 3; end", "if (x == 1) then [y = 2] else [y = 3] end"},
		{"While break", "while 1 do break; end", "while 1 do [break] end"},
		{"Goto", "goto main;", "goto main"},
		{"Inline asm", `inline_asm "NOP";`, `inline_asm "NOP"`},
		{"Org", "org 0x8000;", "org 0x8000"},
		{"String value", `p = "hi";`, `p = "hi"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmts := parseSource(t, tt.input)
			be.Equal(t, len(stmts), 1)
			be.Equal(t, stmts[0].String(), tt.want)
		})
	}
}

func TestParseFunction(t *testing.T) {
	src := `
def add(a: u8, b: u16): u16
    # local
    var t: u16 = a + b;
    return t;
end
`
	stmts := parseSource(t, src)
	be.Equal(t, len(stmts), 1)

	fn, ok := stmts[0].(*DeclareFunction)
	be.True(t, ok)
	be.Equal(t, fn.Name, "add")
	be.Equal(t, len(fn.Params), 2)
	be.True(t, fn.Params[1].Type.Equal(U16Type))
	be.True(t, fn.ReturnType.Equal(U16Type))
	be.Equal(t, len(fn.Body), 3)

	_, isComment := fn.Body[0].(*Comment)
	be.True(t, isComment)
	be.Equal(t, fn.Body[1].String(), "var t: u16 = (a + b)")
	be.Equal(t, fn.Body[2].String(), "return t")
}

func TestParsePointerTypes(t *testing.T) {
	stmts := parseSource(t, "def f(p: **u8): void return; end")
	fn := stmts[0].(*DeclareFunction)
	be.Equal(t, fn.Params[0].Type.String(), "**u8")
	be.True(t, fn.ReturnType.IsVoid())
}

func TestParseTags(t *testing.T) {
	stmts := parseSource(t, "x = 1;\n  y = x + 2;")
	be.Equal(t, stmts[0].Tag(), SourceTag{Unit: 0, Offset: 0})
	be.Equal(t, stmts[1].Tag(), SourceTag{Unit: 0, Offset: 9})

	assign := stmts[1].(*Assignment)
	be.Equal(t, assign.Value.Tag(), SourceTag{Unit: 0, Offset: 13})
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  ErrorKind
		msg   string
	}{
		{"Literal target", "5 = x;", InvalidLvalue, "cannot assign"},
		{"Expression target", "a + 1 = x;", InvalidLvalue, "cannot assign"},
		{"Missing semicolon", "x = 1", ParseError, "expected SEMICOLON"},
		{"Missing end", "while 1 do x = 1;", ParseError, "unexpected end of input"},
		{"Nested def", "def f(): void def g(): void end end", ParseError, "only allowed at top level"},
		{"Nested org", "def f(): void org 0x10; end", ParseError, "only allowed at top level"},
		{"Bad type", "var x: u32;", ParseError, "expected a type"},
		{"Bare expression", "x + 1;", ParseError, "expected '=' or a call"},
		{"Missing address", "register r: u8;", ParseError, "expected AT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Lex(tt.input)
			be.Err(t, err, nil)
			_, err = Parse(tokens)
			be.Err(t, err, tt.msg)
			be.True(t, HasKind(err, tt.kind))
		})
	}
}
