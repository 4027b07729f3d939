package compiler

import (
	"fmt"
	"testing"

	"github.com/nalgeon/be"
)

// checkUnits parses every source as its own unit and runs the checker.
func checkUnits(t *testing.T, srcs ...string) (*Program, Diagnostics) {
	t.Helper()
	var units []*Unit
	for i, src := range srcs {
		u := newUnit(fmt.Sprintf("unit%d", i), src)
		tokens, err := lexUnit(i, src)
		be.Err(t, err, nil)
		u.Stmts, err = parseUnit(i, tokens)
		be.Err(t, err, nil)
		units = append(units, u)
	}
	return Check(units)
}

func TestCheckValidProgram(t *testing.T) {
	src := `
register out: u8 @ 0x0200;
memory wide: u16 @ 0x0210;
memory buf: *u8 @ 0x0300;
const limit: u8 = 10;

def add(a: u8, b: u16): u16
    var sum: u16 = a + b;
    return sum;
end

def main(): void
    var i: u8 = 0;
    while i < limit do
        buf[i] = i + 1;
        i = i + 1;
    end
    wide = add(out, 0x1234);
    if wide == 0 then
        goto main;
    end
end
`
	prog, diags := checkUnits(t, src)
	be.Equal(t, len(diags), 0)
	be.Equal(t, len(prog.Functions), 2)
	be.Equal(t, len(prog.Layout), 2)
	be.Equal(t, len(prog.TopLevel), 4)
	be.True(t, prog.Origin == nil)
}

func TestCheckDiagnostics(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind ErrorKind
		msg  string
	}{
		{
			name: "Unknown name",
			src:  "register r: u8 @ 0x10; r = missing;",
			kind: UnknownName, msg: "missing is not declared",
		},
		{
			name: "Unknown assignment target",
			src:  "x = 1;",
			kind: UnknownName, msg: "x is not declared",
		},
		{
			name: "Unknown function",
			src:  "nothing();",
			kind: UnknownName, msg: "function nothing is not declared",
		},
		{
			name: "Duplicate function",
			src:  "def f(): void return; end\ndef f(): void return; end",
			kind: DuplicateDeclaration, msg: "f is already declared as a function",
		},
		{
			name: "Duplicate parameter",
			src:  "def f(a: u8, a: u8): void return; end",
			kind: DuplicateDeclaration, msg: "parameter a of f is declared twice",
		},
		{
			name: "Duplicate local",
			src:  "def f(): void var a: u8; var a: u16; end",
			kind: DuplicateDeclaration, msg: "a is already declared",
		},
		{
			name: "Narrowing assignment",
			src:  "memory a: u8 @ 0x10; memory b: u16 @ 0x12; a = b;",
			kind: TypeMismatch, msg: "cannot assign u16 to u8 a",
		},
		{
			name: "Literal too wide",
			src:  "memory a: u8 @ 0x10; a = 300;",
			kind: TypeMismatch, msg: "300 does not fit in u8",
		},
		{
			name: "Arity",
			src:  "def f(a: u8): u8 return a; end\nmemory r: u8 @ 0x10; r = f(1, 2);",
			kind: ArityMismatch, msg: "f takes 1 arguments, got 2",
		},
		{
			name: "Argument type",
			src:  "def f(a: u8): u8 return a; end\nmemory w: u16 @ 0x10; memory r: u8 @ 0x12; r = f(w);",
			kind: TypeMismatch, msg: "argument 1 of f must be u8, got u16",
		},
		{
			name: "Void as value",
			src:  "def f(): void return; end\nmemory r: u8 @ 0x10; r = f();",
			kind: TypeMismatch, msg: "void function f used as a value",
		},
		{
			name: "Return value from void",
			src:  "def f(): void return 1; end",
			kind: TypeMismatch, msg: "void function f cannot return a value",
		},
		{
			name: "Missing return value",
			src:  "def f(): u8 return; end",
			kind: TypeMismatch, msg: "f must return a u8 value",
		},
		{
			name: "Return outside function",
			src:  "return;",
			kind: TypeMismatch, msg: "return outside of a function",
		},
		{
			name: "Break outside loop",
			src:  "def f(): void break; end",
			kind: BreakOutsideLoop, msg: "break outside of a while loop",
		},
		{
			name: "Break inside if outside loop",
			src:  "def f(): void if 1 then break; end end",
			kind: BreakOutsideLoop, msg: "break outside",
		},
		{
			name: "Assign to constant",
			src:  "const c: u8 = 1; c = 2;",
			kind: InvalidLvalue, msg: "cannot assign to constant c",
		},
		{
			name: "Assign to array",
			src:  "memory buf: *u8 @ 0x0400; buf = 1;",
			kind: InvalidLvalue, msg: "names an array at $0400",
		},
		{
			name: "Index non-pointer",
			src:  "memory a: u8 @ 0x10; a[0] = 1;",
			kind: TypeMismatch, msg: "a is not a pointer",
		},
		{
			name: "Top-level var",
			src:  "var x: u8 = 1;",
			kind: UnsupportedFeature, msg: "top-level var x",
		},
		{
			name: "Void storage",
			src:  "memory v: void @ 0x10;",
			kind: TypeMismatch, msg: "v cannot have type void",
		},
		{
			name: "Goto unknown",
			src:  "goto nowhere;",
			kind: UnknownName, msg: "goto target nowhere",
		},
		{
			name: "Goto storage",
			src:  "memory a: u8 @ 0x10; goto a;",
			kind: TypeMismatch, msg: "goto target a is a storage",
		},
		{
			name: "Function as value",
			src:  "def f(): u8 return 1; end\nmemory a: u8 @ 0x10; a = f;",
			kind: TypeMismatch, msg: "function f used as a value",
		},
		{
			name: "Pointer arithmetic",
			src:  "memory p: *u8 @ 0x10; memory a: u8 @ 0x12; a = p + 1;",
			kind: TypeMismatch, msg: "operator + needs u8 or u16 operands",
		},
		{
			name: "Pointer condition",
			src:  `def f(): void if "x" then return; end end`,
			kind: TypeMismatch, msg: "condition must be u8 or u16",
		},
		{
			name: "Reserved function name",
			src:  "def __halt(): void return; end",
			kind: UnsupportedFeature, msg: "function name __halt is reserved",
		},
		{
			name: "Generated label name",
			src:  "def __L0(): void return; end",
			kind: UnsupportedFeature, msg: "function name __L0 is reserved",
		},
		{
			name: "Accumulator function name",
			src:  "def a(): void return; end",
			kind: UnsupportedFeature, msg: "function name a is the accumulator",
		},
		{
			name: "Upper accumulator function name",
			src:  "def A(): void return; end\nA();",
			kind: UnsupportedFeature, msg: "function name A is the accumulator",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, diags := checkUnits(t, tt.src)
			be.True(t, diags.HasErrors())
			be.True(t, HasKind(diags, tt.kind))
			be.Err(t, diags, tt.msg)
		})
	}
}

func TestCheckKeepsGoing(t *testing.T) {
	src := `
memory a: u8 @ 0x10;
a = missing;
b = 1;
def f(): void break; end
`
	_, diags := checkUnits(t, src)
	be.Equal(t, len(diags.Errors()), 3)
}

func TestCheckOverlapIsWarning(t *testing.T) {
	src := `
memory wide: u16 @ 0x10;
register low: u8 @ 0x11;
memory far: u8 @ 0x12;
`
	_, diags := checkUnits(t, src)
	be.True(t, !diags.HasErrors())
	be.Equal(t, len(diags.Warnings()), 1)
	be.Equal(t, diags[0].Kind, AddressOverlap)
	be.Equal(t, diags[0].Message, "low @ $0011 overlaps wide @ $0010")
}

func TestCheckAcrossUnits(t *testing.T) {
	first := `
memory out: u8 @ 0x0200;
out = helper(2);
`
	second := `
def helper(x: u8): u8
    return x + shared;
end
const shared: u8 = 40;
`
	prog, diags := checkUnits(t, first, second)
	be.Equal(t, len(diags), 0)

	sym, ok := prog.Symbols.Global("helper")
	be.True(t, ok)
	be.Equal(t, sym.Kind, SymFunction)
	be.Equal(t, sym.Tag.Unit, 1)
}

func TestCheckDuplicateAcrossUnits(t *testing.T) {
	_, diags := checkUnits(t, "memory x: u8 @ 0x10;", "def x(): void return; end")
	be.True(t, HasKind(diags, DuplicateDeclaration))
	be.Equal(t, diags[0].Tag.Unit, 1)
}

func TestCheckFrameLayout(t *testing.T) {
	src := `
def f(a: u8, b: u16): u8
    var c: u8 = 1;
    var d: *u8;
    return c;
end
`
	prog, diags := checkUnits(t, src)
	be.Equal(t, len(diags), 0)

	fn := prog.Functions[0]
	be.Equal(t, fn.Frame.Size, 6)
	be.Equal(t, len(fn.Params), 2)

	offsets := make(map[string]int)
	for _, slot := range fn.Frame.Slots {
		offsets[slot.Name] = slot.Offset
	}
	be.Equal(t, offsets, map[string]int{"a": 0, "b": 1, "c": 3, "d": 4})
}

func TestCheckLeadingOrg(t *testing.T) {
	prog, diags := checkUnits(t, "# entry\norg 0x8000;\ndef main(): void return; end\norg 0x9000;\ndef g(): void return; end")
	be.Equal(t, len(diags), 0)
	be.True(t, prog.Origin != nil)
	be.Equal(t, *prog.Origin, uint16(0x8000))
	be.Equal(t, len(prog.Layout), 3)

	_, isOrg := prog.Layout[1].(*Org)
	be.True(t, isOrg)
}

func TestCheckLiteralTyping(t *testing.T) {
	src := `
memory w: u16 @ 0x10;
memory b: u8 @ 0x12;
w = b + 300;
`
	prog, diags := checkUnits(t, src)
	be.Equal(t, len(diags), 0)

	assign := prog.TopLevel[2].(*Assignment)
	sum := assign.Value.(*BinaryOp)
	be.True(t, prog.TypeOf(sum).Equal(U16Type))
	be.True(t, prog.TypeOf(sum.Left).Equal(U8Type))
	be.True(t, prog.TypeOf(sum.Right).Equal(U16Type))

	sym, ok := prog.Resolve(sum.Left)
	be.True(t, ok)
	be.Equal(t, sym.Name, "b")
}
