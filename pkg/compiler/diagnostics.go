package compiler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a diagnostic.
type ErrorKind int

const (
	LexError             ErrorKind = iota // unrecognized token
	ParseError                            // grammar violation
	DuplicateDeclaration                  // name already bound in scope
	UnknownName                           // reference to an undeclared identifier
	TypeMismatch                          // operand/assignment/argument/return disagreement
	ArityMismatch                         // wrong argument count
	InvalidLvalue                         // assignment target is not a name or array index
	BreakOutsideLoop                      // break with no enclosing while
	UnsupportedFeature                    // recognized but not lowered by the generator
	ConstantNotFoldable                   // const initializer is not literal-derivable
	AddressOverlap                        // two fixed-address storages share bytes (warning)
)

var errorKindNames = [...]string{
	LexError:             "LexError",
	ParseError:           "ParseError",
	DuplicateDeclaration: "DuplicateDeclaration",
	UnknownName:          "UnknownName",
	TypeMismatch:         "TypeMismatch",
	ArityMismatch:        "ArityMismatch",
	InvalidLvalue:        "InvalidLvalue",
	BreakOutsideLoop:     "BreakOutsideLoop",
	UnsupportedFeature:   "UnsupportedFeature",
	ConstantNotFoldable:  "ConstantNotFoldable",
	AddressOverlap:       "AddressOverlap",
}

func (k ErrorKind) String() string {
	if int(k) >= 0 && int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// ParseErrorKind looks up a kind by its String() name.
func ParseErrorKind(name string) (ErrorKind, bool) {
	for k, n := range errorKindNames {
		if n == name {
			return ErrorKind(k), true
		}
	}
	return 0, false
}

// Severity separates fatal diagnostics from warnings.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic is a single problem found in a compilation unit.
type Diagnostic struct {
	Kind     ErrorKind
	Severity Severity
	Tag      SourceTag
	Message  string
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("unit %d offset %d: %s: %s", d.Tag.Unit, d.Tag.Offset, d.Kind, d.Message)
}

// IsWarning reports whether the diagnostic lets compilation continue.
func (d *Diagnostic) IsWarning() bool {
	return d.Severity == SeverityWarning
}

func newDiagnostic(kind ErrorKind, tag SourceTag, format string, args ...any) *Diagnostic {
	return &Diagnostic{Kind: kind, Severity: SeverityError, Tag: tag, Message: fmt.Sprintf(format, args...)}
}

// Diagnostics accumulates problems across a phase. It implements error so a
// failed phase can return the whole list.
type Diagnostics []*Diagnostic

func (ds Diagnostics) Error() string {
	lines := make([]string, 0, len(ds))
	for _, d := range ds {
		lines = append(lines, d.Error())
	}
	return strings.Join(lines, "\n")
}

func (ds *Diagnostics) errorf(kind ErrorKind, tag SourceTag, format string, args ...any) {
	*ds = append(*ds, newDiagnostic(kind, tag, format, args...))
}

func (ds *Diagnostics) warnf(kind ErrorKind, tag SourceTag, format string, args ...any) {
	d := newDiagnostic(kind, tag, format, args...)
	d.Severity = SeverityWarning
	*ds = append(*ds, d)
}

// HasErrors reports whether any entry is fatal.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if !d.IsWarning() {
			return true
		}
	}
	return false
}

// Errors returns only the fatal entries.
func (ds Diagnostics) Errors() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if !d.IsWarning() {
			out = append(out, d)
		}
	}
	return out
}

// Warnings returns only the non-fatal entries.
func (ds Diagnostics) Warnings() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.IsWarning() {
			out = append(out, d)
		}
	}
	return out
}

// DiagnosticsOf extracts the diagnostics carried by err, if any.
func DiagnosticsOf(err error) Diagnostics {
	var ds Diagnostics
	if errors.As(err, &ds) {
		return ds
	}
	var d *Diagnostic
	if errors.As(err, &d) {
		return Diagnostics{d}
	}
	return nil
}

// HasKind reports whether err carries a diagnostic of the given kind.
func HasKind(err error, kind ErrorKind) bool {
	for _, d := range DiagnosticsOf(err) {
		if d.Kind == kind {
			return true
		}
	}
	return false
}
