package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"hasselc/pkg/cpu"
)

// Assembler is a two-pass 6502 assembler. Pass 1 assigns addresses and fixes
// the addressing mode of every instruction; pass 2 emits bytes. A zero-page
// mode is chosen only when the operand value is already known in pass 1, so
// forward references always assemble to the absolute form.
type Assembler struct {
	labels   map[string]uint16
	modes    map[int]cpu.Mode
	segments []Segment
	line     int // line being processed, for LineError
}

// LineError is an assembly failure together with the 1-based line of the
// source text it occurred on.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string { return e.Err.Error() }

func (e *LineError) Unwrap() error { return e.Err }

// Segment is a run of emitted bytes [Start, End) between .ORG directives.
type Segment struct {
	Start, End int
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operand  string
}

func NewAssembler() *Assembler {
	return &Assembler{
		labels: make(map[string]uint16),
		modes:  make(map[int]cpu.Mode),
	}
}

// Assemble returns a memory image starting at address 0, the line that
// produced each emitted address, and the label table.
func Assemble(code string) ([]byte, map[uint16]int, map[string]uint16, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) ([]byte, map[uint16]int, map[string]uint16, error) {
	lines := strings.Split(code, "\n")

	if err := a.pass1(lines); err != nil {
		return nil, nil, nil, &LineError{Line: a.line, Err: err}
	}

	image, sourceMap, err := a.pass2(lines)
	if err != nil {
		return nil, nil, nil, &LineError{Line: a.line, Err: err}
	}
	return image, sourceMap, a.labels, nil
}

// Segments returns the address ranges the last Assemble call filled, in
// address order.
func (a *Assembler) Segments() []Segment {
	return a.segments
}

func (a *Assembler) closeSegment(start, end int) {
	if end > start {
		a.segments = append(a.segments, Segment{Start: start, End: end})
	}
}

func (a *Assembler) pass1(lines []string) error {
	var address uint32

	for i, raw := range lines {
		lineNo := i + 1
		a.line = lineNo
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return err
		}

		for _, lbl := range p.labels {
			if address > 0xFFFF {
				return fmt.Errorf("label '%s' on line %d points past addressable memory", lbl, lineNo)
			}
			if _, exists := a.labels[lbl]; exists {
				return fmt.Errorf("duplicate label '%s' on line %d", lbl, lineNo)
			}
			a.labels[lbl] = uint16(address)
		}

		if p.mnemonic == "" {
			continue
		}

		var length uint32
		switch p.mnemonic {
		case ".ORG":
			target, known, err := a.evaluate(p.operand, lineNo)
			if err != nil {
				return err
			}
			if !known {
				return fmt.Errorf(".ORG needs a value known on line %d: %s", lineNo, p.operand)
			}
			if uint32(target) < address {
				return fmt.Errorf("cannot move origin backward on line %d", lineNo)
			}
			address = uint32(target)
			continue
		case ".STRING":
			// one byte per character plus the terminator
			length = uint32(len(p.operand) + 1)
		case ".BYTE":
			length = uint32(len(splitList(p.operand)))
		case ".WORD":
			length = uint32(2 * len(splitList(p.operand)))
		default:
			mode, _, err := a.resolveMode(p, lineNo)
			if err != nil {
				return err
			}
			a.modes[lineNo] = mode
			length = uint32(mode.Size())
		}

		if address+length > 65536 {
			return fmt.Errorf("program too large near line %d", lineNo)
		}
		address += length
	}

	return nil
}

func (a *Assembler) pass2(lines []string) ([]byte, map[uint16]int, error) {
	program := make([]byte, 0)
	sourceMap := make(map[uint16]int)
	a.segments = nil
	segStart := 0

	for i, raw := range lines {
		lineNo := i + 1
		a.line = lineNo
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, nil, err
		}

		if p.mnemonic == "" {
			continue
		}

		if p.mnemonic == ".ORG" {
			target, err := a.value(p.operand, lineNo)
			if err != nil {
				return nil, nil, err
			}
			a.closeSegment(segStart, len(program))
			if padding := int(target) - len(program); padding > 0 {
				program = append(program, make([]byte, padding)...)
			}
			segStart = len(program)
			continue
		}

		sourceMap[uint16(len(program))] = lineNo

		switch p.mnemonic {
		case ".STRING":
			for _, r := range p.operand {
				program = append(program, byte(r))
			}
			program = append(program, 0x00)
			continue

		case ".BYTE":
			for _, item := range splitList(p.operand) {
				val, err := a.value(item, lineNo)
				if err != nil {
					return nil, nil, err
				}
				if val > 0xFF {
					return nil, nil, fmt.Errorf(".BYTE value out of range on line %d: %s", lineNo, item)
				}
				program = append(program, byte(val))
			}
			continue

		case ".WORD":
			for _, item := range splitList(p.operand) {
				val, err := a.value(item, lineNo)
				if err != nil {
					return nil, nil, err
				}
				program = append(program, byte(val&0xFF), byte(val>>8))
			}
			continue
		}

		mode := a.modes[lineNo]
		opcode := cpu.Opcodes[p.mnemonic][mode]
		here := uint16(len(program))
		program = append(program, opcode)

		_, expr := splitOperand(p.operand)
		switch mode {
		case cpu.Implied, cpu.Accumulator:
		case cpu.Relative:
			target, err := a.value(expr, lineNo)
			if err != nil {
				return nil, nil, err
			}
			offset := int(target) - int(here) - 2
			if offset < -128 || offset > 127 {
				return nil, nil, fmt.Errorf("branch out of range on line %d: %s", lineNo, expr)
			}
			program = append(program, byte(int8(offset)))
		default:
			val, err := a.value(expr, lineNo)
			if err != nil {
				return nil, nil, err
			}
			if mode.Size() == 2 {
				if val > 0xFF {
					return nil, nil, fmt.Errorf("operand out of range on line %d: %s", lineNo, expr)
				}
				program = append(program, byte(val))
			} else {
				program = append(program, byte(val&0xFF), byte(val>>8))
			}
		}
	}

	a.closeSegment(segStart, len(program))
	return program, sourceMap, nil
}

// resolveMode picks the addressing mode of an instruction line. The second
// result reports whether the operand value was known.
func (a *Assembler) resolveMode(p parsedLine, lineNo int) (cpu.Mode, bool, error) {
	modes, ok := cpu.Opcodes[p.mnemonic]
	if !ok {
		return 0, false, fmt.Errorf("unknown instruction on line %d: %s", lineNo, p.mnemonic)
	}

	syntax, expr := splitOperand(p.operand)
	var mode cpu.Mode
	known := true

	switch syntax {
	case syntaxNone:
		mode = cpu.Implied
		if _, ok := modes[cpu.Implied]; !ok {
			mode = cpu.Accumulator
		}
	case syntaxAccumulator:
		mode = cpu.Accumulator
	case syntaxImmediate:
		mode = cpu.Immediate
	case syntaxIndirect:
		mode = cpu.Indirect
	case syntaxIndirectX:
		mode = cpu.IndirectX
	case syntaxIndirectY:
		mode = cpu.IndirectY
	default:
		if _, ok := modes[cpu.Relative]; ok && syntax == syntaxPlain {
			mode = cpu.Relative
			break
		}
		val, ok, err := a.evaluate(expr, lineNo)
		if err != nil {
			return 0, false, err
		}
		known = ok
		small := ok && val < 0x100
		mode = pickDirect(syntax, small, modes)
	}

	if _, ok := modes[mode]; !ok {
		return 0, false, fmt.Errorf("%s does not support %s addressing on line %d", p.mnemonic, mode, lineNo)
	}
	return mode, known, nil
}

func pickDirect(syntax operandSyntax, small bool, modes map[cpu.Mode]byte) cpu.Mode {
	zp, full := cpu.ZeroPage, cpu.Absolute
	switch syntax {
	case syntaxIndexX:
		zp, full = cpu.ZeroPageX, cpu.AbsoluteX
	case syntaxIndexY:
		zp, full = cpu.ZeroPageY, cpu.AbsoluteY
	}
	if _, ok := modes[zp]; ok && small {
		return zp
	}
	if _, ok := modes[full]; !ok {
		return zp
	}
	return full
}

type operandSyntax int

const (
	syntaxNone operandSyntax = iota
	syntaxAccumulator
	syntaxImmediate
	syntaxPlain
	syntaxIndexX
	syntaxIndexY
	syntaxIndirect
	syntaxIndirectX
	syntaxIndirectY
)

// splitOperand classifies operand text and strips the addressing syntax,
// leaving the value expression.
func splitOperand(text string) (operandSyntax, string) {
	text = strings.TrimSpace(text)
	compact := strings.ReplaceAll(text, " ", "")
	upper := strings.ToUpper(compact)

	switch {
	case text == "":
		return syntaxNone, ""
	case upper == "A":
		return syntaxAccumulator, ""
	case strings.HasPrefix(text, "#"):
		return syntaxImmediate, strings.TrimSpace(text[1:])
	case strings.HasPrefix(upper, "(") && strings.HasSuffix(upper, "),Y"):
		return syntaxIndirectY, compact[1 : len(compact)-3]
	case strings.HasPrefix(upper, "(") && strings.HasSuffix(upper, ",X)"):
		return syntaxIndirectX, compact[1 : len(compact)-3]
	case strings.HasPrefix(upper, "(") && strings.HasSuffix(upper, ")"):
		return syntaxIndirect, strings.TrimSpace(text[1 : len(text)-1])
	case strings.HasSuffix(upper, ",X"):
		return syntaxIndexX, strings.TrimSpace(text[:strings.LastIndex(text, ",")])
	case strings.HasSuffix(upper, ",Y"):
		return syntaxIndexY, strings.TrimSpace(text[:strings.LastIndex(text, ",")])
	}
	return syntaxPlain, text
}

// value evaluates expr in pass 2, where every label must be defined.
func (a *Assembler) value(expr string, lineNo int) (uint16, error) {
	val, known, err := a.evaluate(expr, lineNo)
	if err != nil {
		return 0, err
	}
	if !known {
		return 0, fmt.Errorf("undefined label in '%s' on line %d", expr, lineNo)
	}
	return val, nil
}

// evaluate computes a sum of terms with an optional < (low byte) or > (high
// byte) prefix. known is false when a label is not defined yet.
func (a *Assembler) evaluate(expr string, lineNo int) (val uint16, known bool, err error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, false, fmt.Errorf("missing operand on line %d", lineNo)
	}

	selector := byte(0)
	if expr[0] == '<' || expr[0] == '>' {
		selector = expr[0]
		expr = strings.TrimSpace(expr[1:])
	}

	known = true
	sign := 1
	var total int
	start := 0
	for i := 0; i <= len(expr); i++ {
		if i < len(expr) && expr[i] != '+' && expr[i] != '-' {
			continue
		}
		if i == 0 {
			// leading sign
			if expr[0] == '-' {
				sign = -1
			}
			start = 1
			continue
		}
		term := strings.TrimSpace(expr[start:i])
		v, ok, err := a.term(term, lineNo)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			known = false
		}
		total += sign * int(v)
		if i < len(expr) && expr[i] == '-' {
			sign = -1
		} else {
			sign = 1
		}
		start = i + 1
	}

	val = uint16(total)
	switch selector {
	case '<':
		val &= 0xFF
	case '>':
		val >>= 8
	}
	return val, known, nil
}

func (a *Assembler) term(term string, lineNo int) (uint16, bool, error) {
	if term == "" {
		return 0, false, fmt.Errorf("malformed expression on line %d", lineNo)
	}
	if v, ok, err := parseNumber(term); ok {
		if err != nil {
			return 0, false, fmt.Errorf("invalid number '%s' on line %d", term, lineNo)
		}
		return v, true, nil
	}
	if !isIdentifier(term) {
		return 0, false, fmt.Errorf("invalid operand '%s' on line %d", term, lineNo)
	}
	addr, ok := a.labels[term]
	return addr, ok, nil
}

// parseNumber accepts $hex, 0xhex, %binary and decimal. ok is false when
// term is not numeric at all.
func parseNumber(term string) (v uint16, ok bool, err error) {
	var digits string
	base := 10
	switch {
	case strings.HasPrefix(term, "$"):
		digits, base = term[1:], 16
	case strings.HasPrefix(term, "0x"), strings.HasPrefix(term, "0X"):
		digits, base = term[2:], 16
	case strings.HasPrefix(term, "%"):
		digits, base = term[1:], 2
	case term[0] >= '0' && term[0] <= '9':
		digits = term
	default:
		return 0, false, nil
	}
	n, err := strconv.ParseUint(digits, base, 16)
	return uint16(n), true, err
}

func splitList(operand string) []string {
	var out []string
	for _, item := range strings.Split(operand, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	// .STRING keeps its quoted text verbatim, including ; and spaces.
	idx := strings.Index(strings.ToUpper(raw), ".STRING")
	if semicolon := strings.Index(raw, ";"); semicolon != -1 && semicolon < idx {
		idx = -1
	}
	if idx != -1 {
		pre := raw[:idx]
		if colonIdx := strings.Index(pre, ":"); colonIdx != -1 {
			if label := strings.TrimSpace(pre[:colonIdx]); label != "" {
				p.labels = append(p.labels, label)
			}
		}
		opening := strings.Index(raw, "\"")
		closing := strings.LastIndex(raw, "\"")
		if opening != -1 && closing != -1 && opening != closing {
			p.mnemonic = ".STRING"
			content := raw[opening+1 : closing]
			if unquoted, err := strconv.Unquote(`"` + content + `"`); err == nil {
				p.operand = unquoted
			} else {
				p.operand = content
			}
			return p, nil
		}
		return p, fmt.Errorf("invalid string literal on line %d", lineNo)
	}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			break
		}

		beforeColon := strings.TrimSpace(line[:colon])
		if strings.ContainsAny(beforeColon, " \t") {
			break
		}
		if !isIdentifier(beforeColon) {
			return p, fmt.Errorf("invalid label '%s' on line %d", beforeColon, lineNo)
		}

		p.labels = append(p.labels, beforeColon)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	mnemonic, operand, _ := strings.Cut(line, " ")
	if tab := strings.IndexByte(mnemonic, '\t'); tab != -1 {
		operand = mnemonic[tab+1:] + " " + operand
		mnemonic = mnemonic[:tab]
	}
	p.mnemonic = strings.ToUpper(mnemonic)
	p.operand = strings.TrimSpace(operand)

	if p.mnemonic == ".ORG" && p.operand == "" {
		return p, fmt.Errorf(".ORG expects exactly one operand on line %d", lineNo)
	}

	return p, nil
}

func stripComments(line string) string {
	if semicolon := strings.Index(line, ";"); semicolon >= 0 {
		return line[:semicolon]
	}
	return line
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}
