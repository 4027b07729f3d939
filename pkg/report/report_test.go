package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/nalgeon/be"

	"hasselc/pkg/compiler"
)

func failingUnits(t *testing.T, src string) ([]*compiler.Unit, compiler.Diagnostics) {
	t.Helper()
	c := compiler.New(nil)
	if err := c.ParseUnit("main.hsl", src); err != nil {
		t.Fatalf("ParseUnit: %v", err)
	}
	_, diags := c.Check()
	return c.Units(), diags
}

func TestDiagnosticRendering(t *testing.T) {
	units, diags := failingUnits(t, "def main(): void\n    x = 1;\nend\n")
	be.True(t, diags.HasErrors())

	var buf bytes.Buffer
	r := NewReporter(&buf, LogLevelVerbose)
	r.Diagnostics(units, diags)
	out := buf.String()

	be.True(t, strings.Contains(out, "UnknownName Error"))
	be.True(t, strings.Contains(out, "main.hsl:2:5"))
	be.True(t, strings.Contains(out, "2 |     x = 1;"))

	// the caret sits under the x
	lines := strings.Split(out, "\n")
	var caret string
	for _, l := range lines {
		if strings.HasPrefix(l, "  | ") {
			caret = l
		}
	}
	be.True(t, strings.HasPrefix(caret, "  |     "))
	be.True(t, strings.Contains(caret, "^"))

	errs, warns := r.Counts()
	be.Equal(t, errs, 1)
	be.Equal(t, warns, 0)
}

func TestWarningsRespectLevel(t *testing.T) {
	src := "memory a: u16 @ 0x10;\nmemory b: u8 @ 0x11;\n"
	units, diags := failingUnits(t, src)
	be.True(t, !diags.HasErrors())
	be.Equal(t, len(diags.Warnings()), 1)

	var buf bytes.Buffer
	r := NewReporter(&buf, LogLevelError)
	r.Diagnostics(units, diags)
	be.Equal(t, buf.String(), "")

	_, warns := r.Counts()
	be.Equal(t, warns, 1)

	r = NewReporter(&buf, LogLevelWarning)
	r.Diagnostics(units, diags)
	be.True(t, strings.Contains(buf.String(), "AddressOverlap Warning"))
}

func TestMessages(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, LogLevelWarning)
	r.Info("Build", "hidden at this level")
	r.Warning("Config", "no hasselc.toml found")
	r.Error("Emulator", errors.New("step limit reached"))
	out := buf.String()

	be.True(t, !strings.Contains(out, "hidden"))
	be.True(t, strings.Contains(out, "no hasselc.toml found"))
	be.True(t, strings.Contains(out, "step limit reached"))

	buf.Reset()
	r.Summary()
	be.True(t, strings.Contains(buf.String(), "1 error(s), 1 warning(s)"))
}

func TestParseLogLevel(t *testing.T) {
	for name, want := range map[string]LogLevel{
		"silent":  LogLevelSilent,
		"error":   LogLevelError,
		"warn":    LogLevelWarning,
		"verbose": LogLevelVerbose,
	} {
		got, ok := ParseLogLevel(name)
		be.True(t, ok)
		be.Equal(t, got, want)
	}
	_, ok := ParseLogLevel("loud")
	be.True(t, !ok)
}
