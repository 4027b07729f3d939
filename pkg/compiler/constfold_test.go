package compiler

import (
	"testing"

	"github.com/nalgeon/be"
)

func TestFoldConstants(t *testing.T) {
	tests := []struct {
		name  string
		decl  string
		value uint16
	}{
		{"Literal", "const c: u8 = 5;", 5},
		{"Hex", "const c: u16 = 0xBEEF;", 0xBEEF},
		{"Sum", "const c: u8 = 3 + 2 + 10;", 15},
		{"Carry into high byte", "const c: u16 = 0x00FF + 0x0001;", 0x0100},
		{"u8 wraps", "const c: u8 = 250 + 10;", 4},
		{"u8 underflow", "const c: u8 = 2 - 3;", 0xFF},
		{"u16 underflow", "const c: u16 = 0 - 1;", 0xFFFF},
		{"Multiply", "const c: u8 = 7 * 3;", 21},
		{"Multiply wraps", "const c: u8 = 16 * 16;", 0},
		{"Divide", "const c: u16 = 1000 / 7;", 142},
		{"Comparison true", "const c: u8 = 3 > 2;", 1},
		{"Comparison false", "const c: u8 = 3 <= 2;", 0},
		{"Parentheses", "const c: u8 = (1 + 2) * 3;", 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, diags := checkUnits(t, tt.decl)
			be.Equal(t, len(diags), 0)
			sym, ok := prog.Symbols.Global("c")
			be.True(t, ok)
			be.Equal(t, sym.Value, tt.value)
		})
	}
}

func TestFoldChainedConstants(t *testing.T) {
	prog, diags := checkUnits(t, `
const a: u8 = 5;
const b: u8 = a + 10;
const c: u8 = b - a - 7;
`)
	be.Equal(t, len(diags), 0)

	b, _ := prog.Symbols.Global("b")
	c, _ := prog.Symbols.Global("c")
	be.Equal(t, b.Value, uint16(15))
	be.Equal(t, c.Value, uint16(3))
}

func TestFoldLocalConstant(t *testing.T) {
	prog, diags := checkUnits(t, `
const base: u16 = 0x0300;
def f(): u16
    const off: u16 = base + 4;
    return off;
end
`)
	be.Equal(t, len(diags), 0)

	ret := prog.Functions[0].Decl.Body[1].(*Return)
	sym, ok := prog.Resolve(ret.Value)
	be.True(t, ok)
	be.Equal(t, sym.Kind, SymConst)
	be.Equal(t, sym.Value, uint16(0x0304))
}

func TestFoldErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind ErrorKind
		msg  string
	}{
		{
			name: "Storage read",
			src:  "memory a: u8 @ 0x10; const c: u8 = a;",
			kind: ConstantNotFoldable, msg: "not a compile-time constant",
		},
		{
			name: "Forward reference",
			src:  "const c: u8 = d; const d: u8 = 1;",
			kind: ConstantNotFoldable, msg: "constant c",
		},
		{
			name: "Division by zero",
			src:  "const c: u8 = 10 / 0;",
			kind: ConstantNotFoldable, msg: "division by zero",
		},
		{
			name: "Call",
			src:  "def f(): u8 return 1; end\nconst c: u8 = f();",
			kind: ConstantNotFoldable, msg: "not a compile-time constant",
		},
		{
			name: "Too wide",
			src:  "const c: u8 = 256;",
			kind: TypeMismatch, msg: "256 does not fit in u8",
		},
		{
			name: "Pointer constant",
			src:  "const c: *u8 = 1;",
			kind: TypeMismatch, msg: "must be u8 or u16",
		},
		{
			name: "Wide value",
			src:  "memory w: u16 @ 0x10; const c: u8 = w;",
			kind: TypeMismatch, msg: "constant c is u8 but its value is u16",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, diags := checkUnits(t, tt.src)
			be.True(t, HasKind(diags, tt.kind))
			be.Err(t, diags, tt.msg)
		})
	}
}

func TestApplyOp(t *testing.T) {
	v, err := applyOp(PLUS, 0xFF, 0x01, 0xFF)
	be.Err(t, err, nil)
	be.Equal(t, v, uint16(0))

	v, err = applyOp(NOT_EQ, 1, 2, 0xFFFF)
	be.Err(t, err, nil)
	be.Equal(t, v, uint16(1))

	_, err = applyOp(SLASH, 1, 0, 0xFF)
	be.Err(t, err, errDivideByZero)

	_, err = applyOp(ASSIGN, 1, 2, 0xFF)
	be.Err(t, err, errNotConstant)
}
