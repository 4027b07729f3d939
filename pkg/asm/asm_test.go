package asm

import (
	"errors"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func TestHelperFunctions(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"abc", true},
		{"_abc", true},
		{"abc1", true},
		{"1abc", false},
		{"", false},
		{"ab-c", false},
	}
	for _, tc := range tests {
		if got := isIdentifier(tc.input); got != tc.want {
			t.Errorf("isIdentifier(%q) = %v; want %v", tc.input, got, tc.want)
		}
	}

	nums := []struct {
		input string
		want  uint16
	}{
		{"$FF", 0xFF},
		{"0x1234", 0x1234},
		{"%1010", 10},
		{"42", 42},
	}
	for _, tc := range nums {
		got, ok, err := parseNumber(tc.input)
		be.Err(t, err, nil)
		be.True(t, ok)
		be.Equal(t, got, tc.want)
	}
	_, ok, _ := parseNumber("label")
	be.True(t, !ok)
}

func TestAddressingModes(t *testing.T) {
	tests := []struct {
		line string
		want []byte
	}{
		{"NOP", []byte{0xEA}},
		{"ASL", []byte{0x0A}},
		{"ASL A", []byte{0x0A}},
		{"LDA #$01", []byte{0xA9, 0x01}},
		{"LDA $10", []byte{0xA5, 0x10}},
		{"LDA $10,X", []byte{0xB5, 0x10}},
		{"LDX $10,Y", []byte{0xB6, 0x10}},
		{"LDA $10,Y", []byte{0xB9, 0x10, 0x00}},
		{"LDA $1234", []byte{0xAD, 0x34, 0x12}},
		{"LDA $1234,X", []byte{0xBD, 0x34, 0x12}},
		{"STA ($08),Y", []byte{0x91, 0x08}},
		{"LDA ($08, X)", []byte{0xA1, 0x08}},
		{"JMP ($1234)", []byte{0x6C, 0x34, 0x12}},
		{"lda #%00000011", []byte{0xA9, 0x03}},
	}
	for _, tc := range tests {
		image, _, _, err := Assemble(tc.line)
		if err != nil {
			t.Fatalf("Assemble(%q): %v", tc.line, err)
		}
		if string(image) != string(tc.want) {
			t.Errorf("Assemble(%q) = % X; want % X", tc.line, image, tc.want)
		}
	}
}

func TestLabelsAndExpressions(t *testing.T) {
	code := `
.ORG $0200
start:
    LDA #<msg
    LDA #>msg
    JMP end
end:
    LDA msg+1
    JMP end
msg:
    .BYTE $41, $42
`
	image, _, labels, err := Assemble(code)
	be.Err(t, err, nil)
	be.Equal(t, labels["start"], uint16(0x0200))
	be.Equal(t, labels["end"], uint16(0x0207))
	be.Equal(t, labels["msg"], uint16(0x020D))

	// forward reference assembles absolute even though msg is known later
	want := []byte{
		0xA9, 0x0D,
		0xA9, 0x02,
		0x4C, 0x07, 0x02,
		0xAD, 0x0E, 0x02,
		0x4C, 0x07, 0x02,
		0x41, 0x42,
	}
	be.Equal(t, image[0x200:], want)
}

func TestLabelsAreCaseSensitive(t *testing.T) {
	_, _, labels, err := Assemble("Loop:\nloop:\n    JMP Loop")
	be.Err(t, err, nil)
	be.Equal(t, len(labels), 2)

	_, _, _, err = Assemble("loop:\n    JMP LOOP")
	be.Err(t, err, "undefined label")
}

func TestBranches(t *testing.T) {
	code := `
top:
    DEX
    BNE top
    BEQ done
    NOP
done:
    RTS
`
	image, _, _, err := Assemble(code)
	be.Err(t, err, nil)
	be.Equal(t, image, []byte{0xCA, 0xD0, 0xFD, 0xF0, 0x01, 0xEA, 0x60})

	far := "BNE far\n" + strings.Repeat("NOP\n", 200) + "far:\n"
	_, _, _, err = Assemble(far)
	be.Err(t, err, "branch out of range")
}

func TestDirectives(t *testing.T) {
	code := `
.ORG $10
    .WORD $1234, here
here:
    .STRING "Hi; there"
`
	image, _, _, err := Assemble(code)
	be.Err(t, err, nil)
	be.Equal(t, image[0x10:0x14], []byte{0x34, 0x12, 0x14, 0x00})
	be.Equal(t, string(image[0x14:]), "Hi; there\x00")
}

func TestSegments(t *testing.T) {
	code := `
    .ORG $0200
    LDA #$01
    RTS
    .ORG $0300
    .BYTE $01, $02
    .ORG $FFFA
    .WORD $0200, $0200, $0200
`
	a := NewAssembler()
	_, _, _, err := a.Assemble(code)
	be.Err(t, err, nil)
	be.Equal(t, a.Segments(), []Segment{
		{Start: 0x0200, End: 0x0203},
		{Start: 0x0300, End: 0x0302},
		{Start: 0xFFFA, End: 0x10000},
	})
}

func TestErrors(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"FOO", "unknown instruction"},
		{"a:\na:", "duplicate label"},
		{".ORG $100\n.ORG $80", "cannot move origin backward"},
		{"JMP nowhere", "undefined label"},
		{"STA #$01", "does not support"},
		{".BYTE $100", "out of range"},
		{".ORG", ".ORG expects"},
		{"LDA #$1G", "invalid number"},
	}
	for _, tc := range tests {
		_, _, _, err := Assemble(tc.code)
		be.Err(t, err, tc.want)
	}
}

func TestErrorLine(t *testing.T) {
	tests := []struct {
		code string
		line int
	}{
		{"    LDA #$01\n    .ORG $0100\n    RTS\n    .ORG $0080", 4},
		{"start:\n    NOP\n    JMP nowhere", 3},
	}
	for _, tc := range tests {
		_, _, _, err := Assemble(tc.code)
		var lerr *LineError
		be.True(t, errors.As(err, &lerr))
		be.Equal(t, lerr.Line, tc.line)
	}
}

func TestAssembleSourceMap(t *testing.T) {
	code := `; comment
    LDA #$01

label:
    STA $0300
.ORG $0010
    RTS
    .BYTE 1, 2
`
	_, sourceMap, _, err := Assemble(code)
	be.Err(t, err, nil)

	want := map[uint16]int{
		0x0000: 2,
		0x0002: 5,
		0x0010: 7,
		0x0011: 8,
	}
	be.Equal(t, sourceMap, want)
}
