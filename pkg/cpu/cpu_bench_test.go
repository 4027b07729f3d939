package cpu

import "testing"

// BenchmarkCPU_NOP measures the raw dispatch overhead of the Step loop.
func BenchmarkCPU_NOP(b *testing.B) {
	const nopCount = 1000

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		c := NewCPU()
		for j := 0; j < nopCount; j++ {
			c.Memory[0x0200+j] = 0xEA
		}
		c.Memory[0x0200+nopCount] = 0x00
		c.Write16(VectorReset, 0x0200)
		c.Reset()
		c.Run()
	}
}

// BenchmarkCPU_Loop measures a counted loop with a compare and branch.
func BenchmarkCPU_Loop(b *testing.B) {
	program := []byte{
		0xA2, 0x00, // LDX #$00
		0xA0, 0x00, // outer: LDY #$00
		0xC8,       // inner: INY
		0xD0, 0xFD, // BNE inner
		0xE8,       // INX
		0xE0, 0x40, // CPX #$40
		0xD0, 0xF6, // BNE outer
		0x00,
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		c := NewCPU()
		copy(c.Memory[0x0200:], program)
		c.Write16(VectorReset, 0x0200)
		c.Reset()
		c.Run()
	}
}
