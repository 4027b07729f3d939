package testcase

import (
	"testing"

	"github.com/nalgeon/be"
)

func TestExtractTestCases(t *testing.T) {
	md := "# Suite\n\nSome prose.\n\n" +
		"## Test: store\n\n" +
		"```hassel\nmemory out: u8 @ 0x4000;\nout = 5;\n```\n\n" +
		"```memory\n0x4000 = 5\n$4001:u16 = 0x0100\n```\n\n" +
		"```asm-contains\nSTA $4000\n```\n\n" +
		"## Test: bad\n\n" +
		"```hassel\nx = 1;\n```\n\n" +
		"```hassel-unit\ndef helper(): void\nend\n```\n\n" +
		"```toml\n[output]\nentry = \"\"\n```\n\n" +
		"```compile-error\nUnknownName\n```\n"

	cases, err := ExtractTestCases(md)
	be.Err(t, err, nil)
	be.Equal(t, len(cases), 2)

	store := cases[0]
	be.Equal(t, store.Name, "store")
	be.Equal(t, store.Input, "memory out: u8 @ 0x4000;\nout = 5;\n")
	be.Equal(t, len(store.Assertions), 2)
	be.True(t, !store.ExpectsFailure())

	checks, err := ParseMemory(store.Assertions[0])
	be.Err(t, err, nil)
	be.Equal(t, checks, []MemoryCheck{
		{Addr: 0x4000, Value: 5},
		{Addr: 0x4001, Wide: true, Value: 0x0100},
	})
	be.Equal(t, store.Assertions[1].Lines(), []string{"STA $4000"})

	bad := cases[1]
	be.Equal(t, len(bad.Units), 1)
	be.Equal(t, bad.Config, "[output]\nentry = \"\"\n")
	be.True(t, bad.ExpectsFailure())
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		name string
		md   string
		want string
	}{
		{"outside", "```hassel\nx = 1;\n```\n", "outside of test case"},
		{"no input", "## Test: a\n\n```memory\n0 = 0\n```\n", "has no input fence"},
		{"no assertion", "## Test: a\n\n```hassel\nx = 1;\n```\n", "has no assertion fences"},
		{"unknown", "## Test: a\n\n```hassel\nx = 1;\n```\n\n```rust\nfn\n```\n", "unknown fence language"},
		{"twice", "## Test: a\n\n```hassel\nx\n```\n\n```hassel\ny\n```\n", "multiple input fences"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ExtractTestCases(tc.md)
			be.Err(t, err, tc.want)
		})
	}
}

func TestParseMemoryErrors(t *testing.T) {
	for _, content := range []string{"0x10", "0x10 = 300", "0x10:u32 = 1", "zz = 1"} {
		_, err := ParseMemory(Assertion{Type: AssertionTypeMemory, Content: content})
		if err == nil {
			t.Errorf("ParseMemory(%q): expected an error", content)
		}
	}
}
