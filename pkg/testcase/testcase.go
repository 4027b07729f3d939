// Package testcase extracts end-to-end compiler tests from Markdown files.
//
// A test starts at a heading "Test: <name>". It holds one `hassel` fence
// with the program, optionally more `hassel-unit` fences linked after it and
// a `toml` fence with build configuration, and at least one assertion fence.
package testcase

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// InputType is the language of an input fence.
type InputType string

const (
	InputTypeProgram InputType = "hassel"
	InputTypeUnit    InputType = "hassel-unit"
	InputTypeConfig  InputType = "toml"
)

// AssertionType is the language of an assertion fence.
type AssertionType string

const (
	AssertionTypeMemory       AssertionType = "memory"        // ADDR[:u16] = VALUE per line
	AssertionTypeCompileError AssertionType = "compile-error" // diagnostic kind names
	AssertionTypeWarning      AssertionType = "warning"       // warning kind names
	AssertionTypeAsmContains  AssertionType = "asm-contains"  // lines that must appear
	AssertionTypeAsmExcludes  AssertionType = "asm-excludes"  // lines that must not appear
)

// Assertion is one assertion fence.
type Assertion struct {
	Type    AssertionType
	Content string
	Line    int
}

// Lines returns the non-blank, trimmed lines of the fence.
func (a Assertion) Lines() []string {
	var out []string
	for _, l := range strings.Split(a.Content, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// TestCase is one test extracted from Markdown.
type TestCase struct {
	Name       string
	Input      string   // the program unit
	Units      []string // further units, compiled after Input
	Config     string   // TOML text, empty for defaults
	Assertions []Assertion
}

// ExpectsFailure reports whether the test asserts a compile error.
func (tc *TestCase) ExpectsFailure() bool {
	for _, a := range tc.Assertions {
		if a.Type == AssertionTypeCompileError {
			return true
		}
	}
	return false
}

// MemoryCheck is one line of a memory assertion.
type MemoryCheck struct {
	Addr  uint16
	Wide  bool // compare a little-endian word
	Value uint16
}

func (m MemoryCheck) String() string {
	if m.Wide {
		return fmt.Sprintf("$%04X:u16 = %d", m.Addr, m.Value)
	}
	return fmt.Sprintf("$%04X = %d", m.Addr, m.Value)
}

// ExtractTestCases parses a Markdown document and extracts every test case.
func ExtractTestCases(markdownContent string) ([]TestCase, error) {
	md := goldmark.New()
	source := []byte(markdownContent)

	doc := md.Parser().Parse(text.NewReader(source))

	var testCases []TestCase
	var current *TestCase

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := node.(type) {
		case *ast.Heading:
			headingText := extractTextFromNode(n, source)
			if !strings.HasPrefix(headingText, "Test: ") {
				return ast.WalkContinue, nil
			}
			if current != nil {
				if err := validateTestCase(current); err != nil {
					return ast.WalkStop, err
				}
				testCases = append(testCases, *current)
			}
			current = &TestCase{Name: strings.TrimPrefix(headingText, "Test: ")}

		case *ast.FencedCodeBlock:
			language := string(n.Language(source))
			content := extractCodeBlockContent(n, source)
			lineNum := getLineNumber(n, source)

			if current == nil {
				if isInputFence(language) || isAssertionFence(language) {
					return ast.WalkStop, fmt.Errorf("line %d: %s fence found outside of test case", lineNum, language)
				}
				return ast.WalkContinue, nil
			}

			switch {
			case language == string(InputTypeProgram):
				if current.Input != "" {
					return ast.WalkStop, fmt.Errorf("line %d: multiple input fences found in test '%s'", lineNum, current.Name)
				}
				current.Input = content
			case language == string(InputTypeUnit):
				current.Units = append(current.Units, content)
			case language == string(InputTypeConfig):
				current.Config = content
			case isAssertionFence(language):
				current.Assertions = append(current.Assertions, Assertion{
					Type:    AssertionType(language),
					Content: strings.TrimRight(content, "\n"),
					Line:    lineNum,
				})
			case language != "":
				return ast.WalkStop, fmt.Errorf("line %d: unknown fence language '%s' in test '%s'", lineNum, language, current.Name)
			}
		}

		return ast.WalkContinue, nil
	})

	if err != nil {
		return nil, fmt.Errorf("error walking markdown AST: %w", err)
	}

	if current != nil {
		if err := validateTestCase(current); err != nil {
			return nil, err
		}
		testCases = append(testCases, *current)
	}

	return testCases, nil
}

// ParseMemory reads the lines of a memory assertion. Addresses and values
// accept decimal, 0x hex and $ hex.
func ParseMemory(a Assertion) ([]MemoryCheck, error) {
	var checks []MemoryCheck
	for _, line := range a.Lines() {
		lhs, rhs, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: expected ADDR = VALUE, got %q", a.Line, line)
		}
		lhs = strings.TrimSpace(lhs)

		var check MemoryCheck
		if addr, width, ok := strings.Cut(lhs, ":"); ok {
			if strings.TrimSpace(width) != "u16" {
				return nil, fmt.Errorf("line %d: unknown width %q", a.Line, width)
			}
			check.Wide = true
			lhs = strings.TrimSpace(addr)
		}

		addr, err := parseValue(lhs)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad address %q: %w", a.Line, lhs, err)
		}
		val, err := parseValue(strings.TrimSpace(rhs))
		if err != nil {
			return nil, fmt.Errorf("line %d: bad value %q: %w", a.Line, rhs, err)
		}
		if !check.Wide && val > 0xFF {
			return nil, fmt.Errorf("line %d: value %d does not fit a byte; use ADDR:u16", a.Line, val)
		}
		check.Addr, check.Value = addr, val
		checks = append(checks, check)
	}
	return checks, nil
}

func parseValue(s string) (uint16, error) {
	if strings.HasPrefix(s, "$") {
		s = "0x" + s[1:]
	}
	v, err := strconv.ParseUint(s, 0, 16)
	return uint16(v), err
}

func extractTextFromNode(node ast.Node, source []byte) string {
	var buf bytes.Buffer

	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if text, ok := n.(*ast.Text); ok {
				buf.Write(text.Segment.Value(source))
			}
		}
		return ast.WalkContinue, nil
	})

	return buf.String()
}

func extractCodeBlockContent(codeBlock *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer

	for i := 0; i < codeBlock.Lines().Len(); i++ {
		line := codeBlock.Lines().At(i)
		buf.Write(line.Value(source))
	}

	return buf.String()
}

func isInputFence(language string) bool {
	switch InputType(language) {
	case InputTypeProgram, InputTypeUnit, InputTypeConfig:
		return true
	}
	return false
}

func isAssertionFence(language string) bool {
	switch AssertionType(language) {
	case AssertionTypeMemory, AssertionTypeCompileError, AssertionTypeWarning,
		AssertionTypeAsmContains, AssertionTypeAsmExcludes:
		return true
	}
	return false
}

// validateTestCase ensures a test case has both input and at least one assertion
func validateTestCase(tc *TestCase) error {
	if tc.Input == "" {
		return fmt.Errorf("test '%s' has no input fence", tc.Name)
	}
	if len(tc.Assertions) == 0 {
		return fmt.Errorf("test '%s' has no assertion fences", tc.Name)
	}
	return nil
}

// getLineNumber calculates the line number of a given AST node
func getLineNumber(node ast.Node, source []byte) int {
	if node.Lines().Len() == 0 {
		return 1
	}
	startPos := node.Lines().At(0).Start
	return bytes.Count(source[:startPos], []byte("\n")) + 1
}
