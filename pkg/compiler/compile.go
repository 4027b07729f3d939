package compiler

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tliron/commonlog"

	"hasselc/pkg/asm"
	"hasselc/pkg/config"
)

var log = commonlog.GetLogger("hasselc.compiler")

// Unit is one parsed source file.
type Unit struct {
	Name   string
	Source string
	Stmts  []Stmt

	lineStarts []int
}

func newUnit(name, src string) *Unit {
	u := &Unit{Name: name, Source: src, lineStarts: []int{0}}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			u.lineStarts = append(u.lineStarts, i+1)
		}
	}
	return u
}

// Position converts a byte offset to a 1-based row and column.
func (u *Unit) Position(offset int) (row, col int) {
	i := sort.Search(len(u.lineStarts), func(i int) bool { return u.lineStarts[i] > offset }) - 1
	if i < 0 {
		i = 0
	}
	return i + 1, offset - u.lineStarts[i] + 1
}

// Line returns the text of a 1-based row without its newline.
func (u *Unit) Line(row int) string {
	if row < 1 || row > len(u.lineStarts) {
		return ""
	}
	start := u.lineStarts[row-1]
	end := len(u.Source)
	if row < len(u.lineStarts) {
		end = u.lineStarts[row] - 1
	}
	return strings.TrimRight(u.Source[start:end], "\r")
}

// Output is the result of a successful compilation.
type Output struct {
	Asm       string
	Image     []byte            // memory image starting at address 0
	SourceMap map[uint16]string // instruction address -> unit:row:col
	Labels    map[string]uint16
	Warnings  Diagnostics
	Program   *Program
}

// LabelsByAddress lists label names in address order.
func (o *Output) LabelsByAddress() []string {
	names := make([]string, 0, len(o.Labels))
	for name := range o.Labels {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if o.Labels[names[i]] != o.Labels[names[j]] {
			return o.Labels[names[i]] < o.Labels[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// Compiler links any number of units into one program.
type Compiler struct {
	cfg        *config.Config
	units      []*Unit
	optimizers []Optimizer
	parseDiags Diagnostics // failures from ParseUnit; Compile refuses to run
}

// New returns a compiler for cfg; nil selects config.Default().
func New(cfg *config.Config) *Compiler {
	if cfg == nil {
		cfg = config.Default()
	}
	c := &Compiler{cfg: cfg}
	if cfg.Optimize.DeadFunctions {
		c.Use(DeadFunctions{Entry: cfg.Output.Entry})
	}
	return c
}

// Use appends an optimization pass.
func (c *Compiler) Use(opt Optimizer) {
	c.optimizers = append(c.optimizers, opt)
}

// Units returns the parsed units in order.
func (c *Compiler) Units() []*Unit { return c.units }

// Describe renders a source tag as unit:row:col.
func (c *Compiler) Describe(tag SourceTag) string {
	if tag.Unit < 0 || tag.Unit >= len(c.units) {
		return tag.String()
	}
	u := c.units[tag.Unit]
	row, col := u.Position(tag.Offset)
	return fmt.Sprintf("%s:%d:%d", u.Name, row, col)
}

// ParseUnit lexes and parses src as the next unit. The unit is kept even
// when parsing fails so its diagnostics can be rendered, and a later
// Compile returns the same failure.
func (c *Compiler) ParseUnit(name, src string) error {
	id := len(c.units)
	u := newUnit(name, src)
	c.units = append(c.units, u)

	log.Debugf("lexing %s", name)
	tokens, err := lexUnit(id, src)
	if err != nil {
		return c.parseFailed(id, err)
	}
	log.Debugf("parsing %s (%d tokens)", name, len(tokens))
	stmts, err := parseUnit(id, tokens)
	if err != nil {
		return c.parseFailed(id, err)
	}
	u.Stmts = stmts
	return nil
}

func (c *Compiler) parseFailed(id int, err error) Diagnostics {
	ds := DiagnosticsOf(err)
	if len(ds) == 0 {
		ds = Diagnostics{newDiagnostic(ParseError, SourceTag{Unit: id}, "%v", err)}
	}
	c.parseDiags = append(c.parseDiags, ds...)
	return ds
}

// Check resolves and type checks the parsed units without generating code.
func (c *Compiler) Check() (*Program, Diagnostics) {
	log.Debugf("checking %d units", len(c.units))
	return Check(c.units)
}

// Compile checks, optimizes, generates and assembles every parsed unit.
// Failures are returned as Diagnostics; warnings travel in the Output.
func (c *Compiler) Compile() (*Output, error) {
	if len(c.parseDiags) > 0 {
		return nil, c.parseDiags
	}
	prog, diags := c.Check()
	if diags.HasErrors() {
		return nil, diags
	}

	for _, opt := range c.optimizers {
		log.Debugf("running %s", opt.Name())
		opt.Optimize(prog)
	}

	log.Debugf("generating code for %d functions", len(prog.Functions))
	text, lineSrc, err := Generate(prog, c.cfg)
	if err != nil {
		return nil, append(DiagnosticsOf(err), diags...)
	}

	assembler := asm.NewAssembler()
	image, addrLines, labels, err := assembler.Assemble(text)
	if err != nil {
		var lerr *asm.LineError
		if errors.As(err, &lerr) {
			if tag, ok := lineSrc[lerr.Line]; ok {
				return nil, append(Diagnostics{newDiagnostic(UnsupportedFeature, tag, "%v", lerr.Err)}, diags...)
			}
		}
		return nil, fmt.Errorf("assembly error: %w", err)
	}
	checkCodeOverlaps(prog.Storages, assembler.Segments(), &diags)

	sourceMap := make(map[uint16]string, len(addrLines))
	for addr, line := range addrLines {
		if tag, ok := lineSrc[line]; ok {
			sourceMap[addr] = c.Describe(tag)
		}
	}

	log.Infof("compiled %d units: %d bytes, %d warnings", len(c.units), len(image), len(diags))
	return &Output{
		Asm:       text,
		Image:     image,
		SourceMap: sourceMap,
		Labels:    labels,
		Warnings:  diags.Warnings(),
		Program:   prog,
	}, nil
}

// checkCodeOverlaps warns about fixed storage that shares bytes with the
// assembled image; a store there overwrites code or data.
func checkCodeOverlaps(storages []*Symbol, segments []asm.Segment, diags *Diagnostics) {
	for _, sym := range storages {
		lo, hi := storageSpan(sym)
		for _, seg := range segments {
			if lo < seg.End && seg.Start < hi {
				diags.warnf(AddressOverlap, sym.Tag, "%s @ $%04X overlaps the program at $%04X-$%04X", sym.Name, sym.Address, seg.Start, seg.End-1)
				break
			}
		}
	}
}

// Compile builds a single source unit with cfg (nil for defaults).
func Compile(src string, cfg *config.Config) (*Output, error) {
	c := New(cfg)
	if err := c.ParseUnit("main", src); err != nil {
		return nil, err
	}
	return c.Compile()
}
