// Package report renders compiler diagnostics and status messages for the
// terminal.
package report

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"hasselc/pkg/compiler"
)

var (
	SuccessColorFG = pterm.FgLightGreen
	SuccessStyleBG = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
	WarnColorFG    = pterm.FgYellow
	WarnStyleBG    = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	ErrorColorFG   = pterm.FgRed
	ErrorStyleBG   = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	InfoColorFG    = SuccessColorFG
	InfoStyleBG    = SuccessStyleBG
)

// LogLevel selects which messages a Reporter prints.
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelWarning
	LogLevelVerbose
)

// ParseLogLevel maps a --loglevel value to a LogLevel.
func ParseLogLevel(name string) (LogLevel, bool) {
	switch name {
	case "silent":
		return LogLevelSilent, true
	case "error":
		return LogLevelError, true
	case "warn":
		return LogLevelWarning, true
	case "verbose":
		return LogLevelVerbose, true
	}
	return 0, false
}

const bannerWidth = 50

// Reporter writes messages to W, filtered by Level, and counts what it saw.
type Reporter struct {
	W     io.Writer
	Level LogLevel

	errors   int
	warnings int
}

func NewReporter(w io.Writer, level LogLevel) *Reporter {
	return &Reporter{W: w, Level: level}
}

var std = NewReporter(os.Stdout, LogLevelVerbose)

// SetLogLevel changes the level of the package-level reporter.
func SetLogLevel(level LogLevel) { std.Level = level }

// PrintErrorMessage prints a standard Go error to the console
func PrintErrorMessage(tag string, err error) { std.Error(tag, err) }

// PrintWarningMessage prints a warning message to the console
func PrintWarningMessage(tag, msg string) { std.Warning(tag, msg) }

// PrintInfoMessage prints an informational message to the user
func PrintInfoMessage(tag, msg string) { std.Info(tag, msg) }

// PrintDiagnostics prints every diagnostic through the package-level reporter.
func PrintDiagnostics(units []*compiler.Unit, ds compiler.Diagnostics) {
	std.Diagnostics(units, ds)
}

func (r *Reporter) Error(tag string, err error) {
	r.errors++
	if r.Level < LogLevelError {
		return
	}
	fmt.Fprint(r.W, ErrorStyleBG.Sprint(tag))
	fmt.Fprintln(r.W, ErrorColorFG.Sprint(" "+err.Error()))
}

func (r *Reporter) Warning(tag, msg string) {
	r.warnings++
	if r.Level < LogLevelWarning {
		return
	}
	fmt.Fprint(r.W, WarnStyleBG.Sprint(tag))
	fmt.Fprintln(r.W, WarnColorFG.Sprint(" "+msg))
}

func (r *Reporter) Info(tag, msg string) {
	if r.Level < LogLevelVerbose {
		return
	}
	fmt.Fprint(r.W, InfoStyleBG.Sprint(tag))
	fmt.Fprintln(r.W, InfoColorFG.Sprint(" "+msg))
}

// Diagnostics renders each entry in order.
func (r *Reporter) Diagnostics(units []*compiler.Unit, ds compiler.Diagnostics) {
	for _, d := range ds {
		r.Diagnostic(units, d)
	}
}

// Diagnostic renders d with a banner, the message, and the offending source
// line with a caret under the column.
func (r *Reporter) Diagnostic(units []*compiler.Unit, d *compiler.Diagnostic) {
	if d.IsWarning() {
		r.warnings++
		if r.Level < LogLevelWarning {
			return
		}
	} else {
		r.errors++
		if r.Level < LogLevelError {
			return
		}
	}

	var unit *compiler.Unit
	if d.Tag.Unit >= 0 && d.Tag.Unit < len(units) {
		unit = units[d.Tag.Unit]
	}

	r.banner(d, unit)
	fmt.Fprintln(r.W, d.Message)

	if unit != nil {
		r.codeSelection(unit, d.Tag.Offset)
	}
}

// banner prints the line on top of every diagnostic
func (r *Reporter) banner(d *compiler.Diagnostic, unit *compiler.Unit) {
	fmt.Fprint(r.W, "\n-- ")

	label := d.Kind.String() + " Error"
	style := ErrorStyleBG
	if d.IsWarning() {
		label = d.Kind.String() + " Warning"
		style = WarnStyleBG
	}
	fmt.Fprint(r.W, style.Sprint(label))

	where := fmt.Sprintf("unit %d", d.Tag.Unit)
	if unit != nil {
		row, col := unit.Position(d.Tag.Offset)
		where = fmt.Sprintf("%s:%d:%d", unit.Name, row, col)
	}

	dashCount := bannerWidth - len(label) - len(where) - 2
	if dashCount < 3 {
		dashCount = 3
	}
	fmt.Fprint(r.W, " "+strings.Repeat("-", dashCount)+" ")
	fmt.Fprintln(r.W, InfoColorFG.Sprint(where))
}

func (r *Reporter) codeSelection(unit *compiler.Unit, offset int) {
	row, col := unit.Position(offset)
	line := unit.Line(row)

	// tabs count as one column but print as four spaces
	prefix := col - 1
	if prefix > len(line) {
		prefix = len(line)
	}
	caretPad := len(strings.ReplaceAll(line[:prefix], "\t", "    "))
	line = strings.ReplaceAll(line, "\t", "    ")

	numWidth := len(strconv.Itoa(row))
	fmt.Fprintln(r.W)
	fmt.Fprintf(r.W, "%-"+strconv.Itoa(numWidth)+"d | %s\n", row, line)
	fmt.Fprint(r.W, strings.Repeat(" ", numWidth), " | ")
	fmt.Fprintln(r.W, strings.Repeat(" ", caretPad)+ErrorColorFG.Sprint("^"))
}

// Counts returns how many errors and warnings were reported, including those
// hidden by the log level.
func (r *Reporter) Counts() (errors, warnings int) {
	return r.errors, r.warnings
}

// Summary prints the totals the way a build finishes.
func (r *Reporter) Summary() {
	if r.Level < LogLevelVerbose && r.errors == 0 {
		return
	}
	switch {
	case r.errors > 0:
		fmt.Fprint(r.W, "\n"+ErrorStyleBG.Sprint("Failed"))
		fmt.Fprintln(r.W, ErrorColorFG.Sprintf(" %d error(s), %d warning(s)", r.errors, r.warnings))
	case r.warnings > 0:
		fmt.Fprint(r.W, "\n"+WarnStyleBG.Sprint("Done"))
		fmt.Fprintln(r.W, WarnColorFG.Sprintf(" %d warning(s)", r.warnings))
	default:
		fmt.Fprint(r.W, "\n"+SuccessStyleBG.Sprint("Done"))
		fmt.Fprintln(r.W, SuccessColorFG.Sprint(" no problems"))
	}
}
