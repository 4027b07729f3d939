package compiler

import (
	"testing"

	"hasselc/pkg/cpu"
)

const benchSource = `
memory out: u8 @ 0x4000;
memory buf: *u8 @ 0x4100;

def fib(n: u8): u8
    if n < 2 then
        return n;
    end
    return fib(n - 1) + fib(n - 2);
end

def fill(n: u8): void
    var i: u8 = 0;
    while i < n do
        buf[i] = i;
        i = i + 1;
    end
end

def main(): void
    fill(100);
    out = fib(10);
end
`

func BenchmarkCompile(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := Compile(benchSource, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLex(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := Lex(benchSource); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCompileAndRun(b *testing.B) {
	out, err := Compile(benchSource, nil)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c := cpu.NewCPU()
		c.Load(out.Image)
		c.Reset()
		if err := c.RunUntilDone(1_000_000); err != nil {
			b.Fatal(err)
		}
	}
}
