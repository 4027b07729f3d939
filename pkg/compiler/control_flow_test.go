package compiler

import (
	"testing"

	"github.com/nalgeon/be"
)

func TestWhileLoops(t *testing.T) {
	tests := []struct {
		name  string
		start string
		want  byte
	}{
		{"Counts up", "0", 10},
		{"False on entry", "20", 20},
		{"Boundary", "10", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := `
memory out: u8 @ 0x4000;
def main(): void
    var i: u8 = ` + tt.start + `;
    while i < 10 do
        i = i + 1;
    end
    out = i;
end
`
			c, _ := runSource(t, src, nil)
			be.Equal(t, c.ReadByte(0x4000), tt.want)
		})
	}
}

func TestBreak(t *testing.T) {
	src := `
memory out: u8 @ 0x4000;
memory outer: u8 @ 0x4001;
def main(): void
    var i: u8 = 0;
    var n: u8 = 0;
    while 1 do
        i = i + 1;
        if i == 7 then
            break;
        end
    end
    while n < 3 do
        while 1 do
            break;
        end
        n = n + 1;
    end
    out = i;
    outer = n;
end
`
	c, _ := runSource(t, src, nil)
	be.Equal(t, c.ReadByte(0x4000), byte(7))
	be.Equal(t, c.ReadByte(0x4001), byte(3))
}

func TestConditionals(t *testing.T) {
	src := `
memory a: u8 @ 0x4000;
memory b: u8 @ 0x4001;
memory c: u8 @ 0x4002;
def pick(v: u8): u8
    if v == 5 then
        return 6;
    else
        return 5;
    end
    return 0;
end
def main(): void
    a = pick(5);
    b = pick(1);
    if a != b then
        c = 1;
    end
    if a < b then
        c = 99;
    end
end
`
	m, _ := runSource(t, src, nil)
	be.Equal(t, m.ReadByte(0x4000), byte(6))
	be.Equal(t, m.ReadByte(0x4001), byte(5))
	be.Equal(t, m.ReadByte(0x4002), byte(1))
}

func TestComparisons(t *testing.T) {
	tests := []struct {
		expr string
		want byte
	}{
		{"x < y", 1},
		{"y < x", 0},
		{"x < x", 0},
		{"x > y", 0},
		{"y > x", 1},
		{"x <= x", 1},
		{"y <= x", 0},
		{"x >= x", 1},
		{"x >= y", 0},
		{"x == x", 1},
		{"x != y", 1},
		{"x == y", 0},
		{"wx < wy", 1},
		{"wy < wx", 0},
		{"wy >= wx", 1},
		{"wx == wy", 0},
		{"wx != wy", 1},
		{"x < wy", 1},
		{"wy > 0x01FF", 1},
		{"wx == 0x0102", 1},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			src := `
memory out: u8 @ 0x4000;
memory x: u8 @ 0x10;
memory y: u8 @ 0x11;
memory wx: u16 @ 0x12;
memory wy: u16 @ 0x14;
x = 3;
y = 200;
wx = 0x0102;
wy = 0x0201;
out = ` + tt.expr + `;
`
			c, _ := runSource(t, src, nil)
			be.Equal(t, c.ReadByte(0x4000), tt.want)
		})
	}
}

func TestArithmetic(t *testing.T) {
	src := `
memory a: u16 @ 0x4010;
memory b: u16 @ 0x4012;
memory c: u16 @ 0x4014;
memory d: u16 @ 0x4016;
memory x: u8 @ 0x4020;
memory y: u8 @ 0x4021;
memory z: u16 @ 0x4022;
const k: u8 = 3 + 2 + 10;

a = 0x00FF;
b = 0x0001;
c = a + b;
d = c - 1 - b;
x = 250;
x = x + 10;
y = 2 - k;
z = x + 0x0100;
`
	m, _ := runSource(t, src, nil)
	be.Equal(t, m.Read16(0x4014), uint16(0x0100))
	be.Equal(t, m.Read16(0x4016), uint16(0x00FE))
	be.Equal(t, m.ReadByte(0x4020), byte(4))
	be.Equal(t, m.ReadByte(0x4021), byte(0xF3))
	be.Equal(t, m.Read16(0x4022), uint16(0x0104))
}

func TestNestedExpressions(t *testing.T) {
	src := `
memory out: u8 @ 0x4000;
memory w: u16 @ 0x4002;
def main(): void
    var a: u8 = 10;
    var b: u8 = 4;
    out = (a - b) - (b - (a - 9));
    w = (a + 0x0100) - (b + (a - 1));
end
`
	c, _ := runSource(t, src, nil)
	be.Equal(t, c.ReadByte(0x4000), byte(3))
	be.Equal(t, c.Read16(0x4002), uint16(0x00FD))
}

func TestArrays(t *testing.T) {
	src := `
memory dst: *u8 @ 0x4100;
memory n: u8 @ 0x4000;

def copy(src: *u8): u8
    var i: u8 = 0;
    while src[i] != 0 do
        dst[i] = src[i];
        i = i + 1;
    end
    dst[i] = 0;
    return i;
end

def main(): void
    n = copy("hello");
    dst[n + 1] = dst[0];
end
`
	c, _ := runSource(t, src, nil)
	be.Equal(t, c.ReadByte(0x4000), byte(5))
	be.Equal(t, string(c.Memory[0x4100:0x4105]), "hello")
	be.Equal(t, c.ReadByte(0x4105), byte(0))
	be.Equal(t, c.ReadByte(0x4106), byte('h'))
}

func TestGoto(t *testing.T) {
	src := `
memory out: u8 @ 0x4000;
def finish(): void
    out = out + 1;
    inline_asm "    JMP __halt";
end
def main(): void
    out = 41;
    goto finish;
end
`
	c, _ := runSource(t, src, nil)
	be.Equal(t, c.ReadByte(0x4000), byte(42))
}

func TestInlineAsm(t *testing.T) {
	src := `
memory out: u8 @ 0x4000;
inline_asm "    LDA #$2A\n    STA $4000";
`
	c, _ := runSource(t, src, nil)
	be.Equal(t, c.ReadByte(0x4000), byte(42))
}
