package cpu

import (
	"errors"
	"fmt"
)

// Status register bits.
const (
	FlagC byte = 1 << 0
	FlagZ byte = 1 << 1
	FlagI byte = 1 << 2
	FlagD byte = 1 << 3
	FlagB byte = 1 << 4
	FlagU byte = 1 << 5
	FlagV byte = 1 << 6
	FlagN byte = 1 << 7
)

// Vector addresses.
const (
	VectorNMI   uint16 = 0xFFFA
	VectorReset uint16 = 0xFFFC
	VectorIRQ   uint16 = 0xFFFE
)

// ErrStepLimit is returned by RunUntilDone when the program is still
// running after the step budget.
var ErrStepLimit = errors.New("step limit reached")

// CPU is a 6502 without decimal mode or cycle timing. It halts when an
// instruction leaves PC unchanged (JMP to itself) or on BRK.
type CPU struct {
	A, X, Y uint8
	SP      uint8
	PC      uint16

	N, V, Z, C, I, D bool

	Memory [65536]byte

	Halted bool
	// Fault is set when the CPU stopped on an illegal opcode.
	Fault error
	Steps uint64
}

func NewCPU() *CPU {
	return &CPU{SP: 0xFD, I: true}
}

// Load copies an image into memory starting at address 0.
func (c *CPU) Load(image []byte) {
	copy(c.Memory[:], image)
}

// Reset starts execution at the address held in the reset vector.
func (c *CPU) Reset() {
	c.PC = c.Read16(VectorReset)
	c.SP = 0xFD
	c.I = true
	c.Halted = false
	c.Fault = nil
	c.Steps = 0
}

func (c *CPU) ReadByte(addr uint16) byte {
	return c.Memory[addr]
}

func (c *CPU) WriteByte(addr uint16, val byte) {
	c.Memory[addr] = val
}

// Read16 reads a little-endian word.
func (c *CPU) Read16(addr uint16) uint16 {
	return uint16(c.Memory[addr]) | uint16(c.Memory[addr+1])<<8
}

// Write16 writes a little-endian word.
func (c *CPU) Write16(addr uint16, val uint16) {
	c.Memory[addr] = byte(val)
	c.Memory[addr+1] = byte(val >> 8)
}

func (c *CPU) fetch() byte {
	b := c.Memory[c.PC]
	c.PC++
	return b
}

func (c *CPU) fetch16() uint16 {
	lo := c.fetch()
	hi := c.fetch()
	return uint16(lo) | uint16(hi)<<8
}

func (c *CPU) push(b byte) {
	c.Memory[0x0100|uint16(c.SP)] = b
	c.SP--
}

func (c *CPU) pull() byte {
	c.SP++
	return c.Memory[0x0100|uint16(c.SP)]
}

// zpWord reads a pointer from page zero; the high byte wraps within it.
func (c *CPU) zpWord(zp uint8) uint16 {
	return uint16(c.Memory[zp]) | uint16(c.Memory[uint8(zp+1)])<<8
}

// Status packs the flags into the P register layout.
func (c *CPU) Status() byte {
	p := FlagU
	set := func(cond bool, bit byte) {
		if cond {
			p |= bit
		}
	}
	set(c.C, FlagC)
	set(c.Z, FlagZ)
	set(c.I, FlagI)
	set(c.D, FlagD)
	set(c.V, FlagV)
	set(c.N, FlagN)
	return p
}

func (c *CPU) setStatus(p byte) {
	c.C = p&FlagC != 0
	c.Z = p&FlagZ != 0
	c.I = p&FlagI != 0
	c.D = p&FlagD != 0
	c.V = p&FlagV != 0
	c.N = p&FlagN != 0
}

func (c *CPU) setZN(v byte) {
	c.Z = v == 0
	c.N = v&0x80 != 0
}

// address resolves the operand address for mode, consuming operand bytes.
func (c *CPU) address(mode Mode) uint16 {
	switch mode {
	case Immediate:
		a := c.PC
		c.PC++
		return a
	case ZeroPage:
		return uint16(c.fetch())
	case ZeroPageX:
		return uint16(c.fetch() + c.X)
	case ZeroPageY:
		return uint16(c.fetch() + c.Y)
	case Absolute:
		return c.fetch16()
	case AbsoluteX:
		return c.fetch16() + uint16(c.X)
	case AbsoluteY:
		return c.fetch16() + uint16(c.Y)
	case Indirect:
		ptr := c.fetch16()
		// the high byte is read from the same page
		hi := (ptr & 0xFF00) | uint16(uint8(ptr)+1)
		return uint16(c.Memory[ptr]) | uint16(c.Memory[hi])<<8
	case IndirectX:
		return c.zpWord(c.fetch() + c.X)
	case IndirectY:
		return c.zpWord(c.fetch()) + uint16(c.Y)
	case Relative:
		off := int8(c.fetch())
		return c.PC + uint16(off)
	}
	return 0
}

func (c *CPU) adc(v byte) {
	var carry uint16
	if c.C {
		carry = 1
	}
	sum := uint16(c.A) + uint16(v) + carry
	r := byte(sum)
	c.V = (^(c.A ^ v))&(c.A^r)&0x80 != 0
	c.C = sum > 0xFF
	c.A = r
	c.setZN(r)
}

func (c *CPU) compare(reg, v byte) {
	c.C = reg >= v
	c.setZN(reg - v)
}

// shift applies a read-modify-write operation to A or memory.
func (c *CPU) shift(mode Mode, addr uint16, f func(byte) byte) {
	if mode == Accumulator {
		c.A = f(c.A)
		c.setZN(c.A)
		return
	}
	v := f(c.Memory[addr])
	c.Memory[addr] = v
	c.setZN(v)
}

func (c *CPU) branch(cond bool, target uint16) {
	if cond {
		c.PC = target
	}
}

// Step executes one instruction.
func (c *CPU) Step() {
	if c.Halted {
		return
	}

	start := c.PC
	code := c.fetch()
	op := Decode[code]
	if op == nil {
		c.Fault = fmt.Errorf("illegal opcode $%02X at $%04X", code, start)
		c.Halted = true
		return
	}
	c.Steps++

	var addr uint16
	if op.Mode != Implied && op.Mode != Accumulator {
		addr = c.address(op.Mode)
	}

	switch op.Mnemonic {
	case "LDA":
		c.A = c.Memory[addr]
		c.setZN(c.A)
	case "LDX":
		c.X = c.Memory[addr]
		c.setZN(c.X)
	case "LDY":
		c.Y = c.Memory[addr]
		c.setZN(c.Y)
	case "STA":
		c.Memory[addr] = c.A
	case "STX":
		c.Memory[addr] = c.X
	case "STY":
		c.Memory[addr] = c.Y

	case "ADC":
		c.adc(c.Memory[addr])
	case "SBC":
		c.adc(^c.Memory[addr])
	case "AND":
		c.A &= c.Memory[addr]
		c.setZN(c.A)
	case "ORA":
		c.A |= c.Memory[addr]
		c.setZN(c.A)
	case "EOR":
		c.A ^= c.Memory[addr]
		c.setZN(c.A)
	case "BIT":
		m := c.Memory[addr]
		c.Z = c.A&m == 0
		c.N = m&0x80 != 0
		c.V = m&0x40 != 0
	case "CMP":
		c.compare(c.A, c.Memory[addr])
	case "CPX":
		c.compare(c.X, c.Memory[addr])
	case "CPY":
		c.compare(c.Y, c.Memory[addr])

	case "INC":
		c.Memory[addr]++
		c.setZN(c.Memory[addr])
	case "DEC":
		c.Memory[addr]--
		c.setZN(c.Memory[addr])
	case "INX":
		c.X++
		c.setZN(c.X)
	case "INY":
		c.Y++
		c.setZN(c.Y)
	case "DEX":
		c.X--
		c.setZN(c.X)
	case "DEY":
		c.Y--
		c.setZN(c.Y)

	case "ASL":
		c.shift(op.Mode, addr, func(v byte) byte {
			c.C = v&0x80 != 0
			return v << 1
		})
	case "LSR":
		c.shift(op.Mode, addr, func(v byte) byte {
			c.C = v&0x01 != 0
			return v >> 1
		})
	case "ROL":
		c.shift(op.Mode, addr, func(v byte) byte {
			var in byte
			if c.C {
				in = 1
			}
			c.C = v&0x80 != 0
			return v<<1 | in
		})
	case "ROR":
		c.shift(op.Mode, addr, func(v byte) byte {
			var in byte
			if c.C {
				in = 0x80
			}
			c.C = v&0x01 != 0
			return v>>1 | in
		})

	case "BCC":
		c.branch(!c.C, addr)
	case "BCS":
		c.branch(c.C, addr)
	case "BEQ":
		c.branch(c.Z, addr)
	case "BNE":
		c.branch(!c.Z, addr)
	case "BMI":
		c.branch(c.N, addr)
	case "BPL":
		c.branch(!c.N, addr)
	case "BVC":
		c.branch(!c.V, addr)
	case "BVS":
		c.branch(c.V, addr)

	case "JMP":
		c.PC = addr
	case "JSR":
		ret := c.PC - 1
		c.push(byte(ret >> 8))
		c.push(byte(ret))
		c.PC = addr
	case "RTS":
		lo := c.pull()
		hi := c.pull()
		c.PC = (uint16(lo) | uint16(hi)<<8) + 1
	case "RTI":
		c.setStatus(c.pull())
		lo := c.pull()
		hi := c.pull()
		c.PC = uint16(lo) | uint16(hi)<<8
	case "BRK":
		c.Halted = true
		return

	case "PHA":
		c.push(c.A)
	case "PLA":
		c.A = c.pull()
		c.setZN(c.A)
	case "PHP":
		c.push(c.Status() | FlagB)
	case "PLP":
		c.setStatus(c.pull())

	case "TAX":
		c.X = c.A
		c.setZN(c.X)
	case "TAY":
		c.Y = c.A
		c.setZN(c.Y)
	case "TXA":
		c.A = c.X
		c.setZN(c.A)
	case "TYA":
		c.A = c.Y
		c.setZN(c.A)
	case "TSX":
		c.X = c.SP
		c.setZN(c.X)
	case "TXS":
		c.SP = c.X

	case "CLC":
		c.C = false
	case "SEC":
		c.C = true
	case "CLI":
		c.I = false
	case "SEI":
		c.I = true
	case "CLD":
		c.D = false
	case "SED":
		c.D = true
	case "CLV":
		c.V = false
	case "NOP":
	}

	if c.PC == start {
		c.Halted = true
	}
}

// Run executes until the CPU halts.
func (c *CPU) Run() {
	for !c.Halted {
		c.Step()
	}
}

// RunUntilDone executes at most maxSteps instructions. It returns the fault
// if the CPU stopped on an illegal opcode and ErrStepLimit if it is still
// running.
func (c *CPU) RunUntilDone(maxSteps int) error {
	for i := 0; i < maxSteps && !c.Halted; i++ {
		c.Step()
	}
	if !c.Halted {
		return ErrStepLimit
	}
	return c.Fault
}
