package compiler

import (
	"fmt"
	"strings"

	"hasselc/pkg/config"
)

// CodeGen walks a checked Program and emits 6502 assembly source text.
//
// Every expression leaves its value in the work area W (W+1 holds the high
// byte of 16-bit values). Binary operations load their right operand into T.
// Locals live in a software frame in page zero reached through X = FP.
type CodeGen struct {
	prog *Program
	cfg  *config.Config

	out       strings.Builder
	lines     int
	lineSrc   map[int]SourceTag // assembly line -> statement it belongs to
	inStmt    bool
	current   SourceTag
	nextLabel int

	stringPool  map[string]string // text -> label
	stringOrder []string

	loopStack []string // end labels of the enclosing while loops
	fn        *Function
	diags     Diagnostics

	fp, ret, w, t, ptr uint8
}

func newCodeGen(prog *Program, cfg *config.Config) *CodeGen {
	return &CodeGen{
		prog:       prog,
		cfg:        cfg,
		lineSrc:    make(map[int]SourceTag),
		stringPool: make(map[string]string),
		fp:         cfg.Frame.Pointer,
		ret:        cfg.ZeroPage.Ret,
		w:          cfg.ZeroPage.Work,
		t:          cfg.ZeroPage.Operand,
		ptr:        cfg.ZeroPage.Pointer,
	}
}

func (cg *CodeGen) newLabel() string {
	l := fmt.Sprintf("__L%d", cg.nextLabel)
	cg.nextLabel++
	return l
}

func (cg *CodeGen) stringLabel(text string) string {
	if l, ok := cg.stringPool[text]; ok {
		return l
	}
	l := fmt.Sprintf("__S%d", len(cg.stringOrder))
	cg.stringPool[text] = l
	cg.stringOrder = append(cg.stringOrder, text)
	return l
}

func (cg *CodeGen) emit(text string) {
	cg.out.WriteString(text)
	cg.out.WriteByte('\n')
	cg.lines++
	if cg.inStmt {
		cg.lineSrc[cg.lines] = cg.current
	}
}

func (cg *CodeGen) line(format string, args ...any) {
	cg.emit("    " + fmt.Sprintf(format, args...))
}

func (cg *CodeGen) label(name string) {
	cg.emit(name + ":")
}

func (cg *CodeGen) comment(format string, args ...any) {
	cg.emit("; " + fmt.Sprintf(format, args...))
}

func zp(addr uint8) string { return fmt.Sprintf("$%02X", addr) }

func abs(addr uint16) string {
	if addr < 0x100 {
		return fmt.Sprintf("$%02X", addr)
	}
	return fmt.Sprintf("$%04X", addr)
}

func (cg *CodeGen) unsupported(n Node, format string, args ...any) {
	cg.diags.errorf(UnsupportedFeature, n.Tag(), format, args...)
}

// sourceComment precedes every statement with its unit, position and text.
func (cg *CodeGen) sourceComment(s Stmt) {
	tag := s.Tag()
	cg.current = tag
	if tag.Unit < 0 || tag.Unit >= len(cg.prog.Units) {
		return
	}
	u := cg.prog.Units[tag.Unit]
	row, col := u.Position(tag.Offset)
	cg.comment("%s:%d:%d: %s", u.Name, row, col, strings.TrimSpace(u.Line(row)))
}

// genEnv lets the folder see constants through the resolution side table,
// so local constants and shadowing are honoured.
type genEnv struct {
	cg *CodeGen
}

func (ge genEnv) constValue(n *Name) (uint16, bool) {
	sym, ok := ge.cg.prog.refs[n]
	if !ok || sym.Kind != SymConst {
		return 0, false
	}
	return sym.Value, true
}

func (ge genEnv) typeOf(e Expr) Type { return ge.cg.prog.types[e] }

func (cg *CodeGen) typeOf(e Expr) Type { return cg.prog.types[e] }

// foldExpr reports the value of e when it is a compile-time constant.
func (cg *CodeGen) foldExpr(e Expr) (uint16, bool) {
	v, err := fold(e, genEnv{cg})
	return v, err == nil
}

//  Frame addressing

// frameSize is the frame size of the function being generated; the init
// block has none.
func (cg *CodeGen) frameSize() int {
	if cg.fn == nil {
		return 0
	}
	return cg.fn.Frame.Size
}

// slotDisp is the zero-page displacement of a frame slot from FP, which
// points at the top of the current frame.
func (cg *CodeGen) slotDisp(sym *Symbol) uint8 {
	return uint8((sym.Offset - cg.frameSize()) & 0xFF)
}

//  Leaves

// isLeaf reports whether e can be loaded without using W.
func (cg *CodeGen) isLeaf(e Expr) bool {
	if _, ok := cg.foldExpr(e); ok {
		return true
	}
	switch n := e.(type) {
	case *Text:
		return true
	case *Name:
		_, ok := cg.prog.refs[n]
		return ok
	}
	return false
}

// loadLeaf stores the leaf e into dst (and dst+1 when width is 2). Narrow
// values are zero-extended.
func (cg *CodeGen) loadLeaf(e Expr, dst uint8, width int) {
	src := cg.typeOf(e)
	if v, ok := cg.foldExpr(e); ok {
		cg.line("LDA #$%02X", v&0xFF)
		cg.line("STA %s", zp(dst))
		if width == 2 {
			cg.line("LDA #$%02X", v>>8)
			cg.line("STA %s", zp(dst+1))
		}
		return
	}

	switch n := e.(type) {
	case *Text:
		l := cg.stringLabel(n.Value)
		cg.line("LDA #<%s", l)
		cg.line("STA %s", zp(dst))
		cg.line("LDA #>%s", l)
		cg.line("STA %s", zp(dst+1))
		return

	case *Name:
		cg.loadSymbol(cg.prog.refs[n], src, dst, width)
	}
}

// loadSymbol stores the value of a bound name into dst.
func (cg *CodeGen) loadSymbol(sym *Symbol, src Type, dst uint8, width int) {
	switch {
	case sym.Kind == SymConst:
		cg.line("LDA #$%02X", sym.Value&0xFF)
		cg.line("STA %s", zp(dst))
		if width == 2 {
			cg.line("LDA #$%02X", sym.Value>>8)
			cg.line("STA %s", zp(dst+1))
		}
	case sym.IsArray():
		cg.line("LDA #$%02X", sym.Address&0xFF)
		cg.line("STA %s", zp(dst))
		cg.line("LDA #$%02X", sym.Address>>8)
		cg.line("STA %s", zp(dst+1))
	case sym.Kind == SymStorage:
		cg.line("LDA %s", abs(sym.Address))
		cg.line("STA %s", zp(dst))
		if width == 2 {
			if src.Wide() {
				cg.line("LDA %s", abs(sym.Address+1))
			} else {
				cg.line("LDA #$00")
			}
			cg.line("STA %s", zp(dst+1))
		}
	case sym.Kind == SymLocal:
		d := cg.slotDisp(sym)
		cg.line("LDX %s", zp(cg.fp))
		cg.line("LDA $%02X,X", d)
		cg.line("STA %s", zp(dst))
		if width == 2 {
			if src.Wide() {
				cg.line("LDA $%02X,X", d+1)
			} else {
				cg.line("LDA #$00")
			}
			cg.line("STA %s", zp(dst+1))
		}
	}
}

// widen zero-extends W when a narrow value feeds a 16-bit operation.
func (cg *CodeGen) widen(from Type, width int) {
	if width == 2 && !from.Wide() {
		cg.line("LDA #$00")
		cg.line("STA %s", zp(cg.w+1))
	}
}

// copyPair copies one or two bytes between zero-page areas.
func (cg *CodeGen) copyPair(src, dst uint8, width int) {
	cg.line("LDA %s", zp(src))
	cg.line("STA %s", zp(dst))
	if width == 2 {
		cg.line("LDA %s", zp(src+1))
		cg.line("STA %s", zp(dst+1))
	}
}

//  Expressions

// genExpr evaluates e into W.
func (cg *CodeGen) genExpr(e Expr) {
	if cg.isLeaf(e) {
		cg.loadLeaf(e, cg.w, cg.typeOf(e).Size())
		return
	}
	switch n := e.(type) {
	case *ArrayIndex:
		if !cg.genAddress(n) {
			return
		}
		cg.line("LDY #$00")
		cg.line("LDA (%s),Y", zp(cg.ptr))
		cg.line("STA %s", zp(cg.w))

	case *BinaryOp:
		cg.genBinary(n)

	case *CallFunction:
		cg.genCall(n)
		ret := cg.typeOf(n)
		if !ret.IsVoid() {
			cg.copyPair(cg.ret, cg.w, ret.Size())
		}

	default:
		cg.unsupported(e, "cannot generate code for %s", e)
	}
}

// genAddress computes the element address of n into PTR.
func (cg *CodeGen) genAddress(n *ArrayIndex) bool {
	sym := cg.prog.refs[n]
	if sym.Type.Elem.Size() != 1 {
		cg.unsupported(n, "indexing %s: elements of type %s are not supported, only u8", n.Array, *sym.Type.Elem)
		return false
	}

	cg.genExpr(n.Index)
	cg.widen(cg.typeOf(n.Index), 2)

	cg.loadSymbol(sym, sym.Type, cg.t, 2)

	cg.line("CLC")
	cg.line("LDA %s", zp(cg.w))
	cg.line("ADC %s", zp(cg.t))
	cg.line("STA %s", zp(cg.ptr))
	cg.line("LDA %s", zp(cg.w+1))
	cg.line("ADC %s", zp(cg.t+1))
	cg.line("STA %s", zp(cg.ptr+1))
	return true
}

// genOperands leaves the left operand in W and the right one in T, both
// extended to width. A composite right operand is evaluated with the left
// value saved on the hardware stack.
func (cg *CodeGen) genOperands(n *BinaryOp, width int) {
	cg.genExpr(n.Left)
	cg.widen(cg.typeOf(n.Left), width)

	if cg.isLeaf(n.Right) {
		cg.loadLeaf(n.Right, cg.t, width)
		return
	}

	cg.line("LDA %s", zp(cg.w))
	cg.line("PHA")
	if width == 2 {
		cg.line("LDA %s", zp(cg.w+1))
		cg.line("PHA")
	}
	cg.genExpr(n.Right)
	cg.widen(cg.typeOf(n.Right), width)
	cg.copyPair(cg.w, cg.t, width)
	if width == 2 {
		cg.line("PLA")
		cg.line("STA %s", zp(cg.w+1))
	}
	cg.line("PLA")
	cg.line("STA %s", zp(cg.w))
}

// genBinary lowers + and - through the carry chain and the comparisons to
// a 0/1 value in W.
func (cg *CodeGen) genBinary(n *BinaryOp) {
	if n.Op == STAR || n.Op == SLASH {
		cg.unsupported(n, "operator %s is only supported on constants", n.Op.Symbol())
		return
	}

	opType := promote(cg.typeOf(n.Left), cg.typeOf(n.Right))
	width := opType.Size()
	cg.genOperands(n, width)

	switch n.Op {
	case PLUS, MINUS:
		op, carry := "ADC", "CLC"
		if n.Op == MINUS {
			op, carry = "SBC", "SEC"
		}
		cg.line("%s", carry)
		cg.line("LDA %s", zp(cg.w))
		cg.line("%s %s", op, zp(cg.t))
		cg.line("STA %s", zp(cg.w))
		if width == 2 {
			cg.line("LDA %s", zp(cg.w+1))
			cg.line("%s %s", op, zp(cg.t+1))
			cg.line("STA %s", zp(cg.w+1))
		}

	case EQUALS, NOT_EQ:
		differ := cg.newLabel()
		end := cg.newLabel()
		eq, ne := 1, 0
		if n.Op == NOT_EQ {
			eq, ne = 0, 1
		}
		cg.line("LDA %s", zp(cg.w))
		cg.line("CMP %s", zp(cg.t))
		cg.line("BNE %s", differ)
		if width == 2 {
			cg.line("LDA %s", zp(cg.w+1))
			cg.line("CMP %s", zp(cg.t+1))
			cg.line("BNE %s", differ)
		}
		cg.line("LDA #$%02X", eq)
		cg.line("JMP %s", end)
		cg.label(differ)
		cg.line("LDA #$%02X", ne)
		cg.label(end)
		cg.line("STA %s", zp(cg.w))

	case LESS, GREATER, LESS_EQ, GREATER_EQ:
		// a < b and a >= b subtract b from a; > and <= swap the operands.
		a, b := cg.w, cg.t
		if n.Op == GREATER || n.Op == LESS_EQ {
			a, b = b, a
		}
		branch := "BCC" // borrow: a < b
		if n.Op == GREATER_EQ || n.Op == LESS_EQ {
			branch = "BCS"
		}
		yes := cg.newLabel()
		end := cg.newLabel()
		cg.line("SEC")
		cg.line("LDA %s", zp(a))
		cg.line("SBC %s", zp(b))
		if width == 2 {
			cg.line("LDA %s", zp(a+1))
			cg.line("SBC %s", zp(b+1))
		}
		cg.line("%s %s", branch, yes)
		cg.line("LDA #$00")
		cg.line("JMP %s", end)
		cg.label(yes)
		cg.line("LDA #$01")
		cg.label(end)
		cg.line("STA %s", zp(cg.w))
	}
}

// paramOffsets returns the frame offset of each parameter of fn.
func paramOffsets(decl *DeclareFunction) []int {
	offs := make([]int, len(decl.Params))
	off := 0
	for i, p := range decl.Params {
		offs[i] = off
		off += p.Type.Size()
	}
	return offs
}

// genCall evaluates the arguments left to right onto the hardware stack,
// pops them into the callee's parameter slots above the current frame and
// calls the function. The result stays in RET.
func (cg *CodeGen) genCall(n *CallFunction) {
	sym := cg.prog.refs[n]
	decl := sym.Func.Decl

	for i, a := range n.Args {
		width := decl.Params[i].Type.Size()
		cg.genExpr(a)
		cg.widen(cg.typeOf(a), width)
		cg.line("LDA %s", zp(cg.w))
		cg.line("PHA")
		if width == 2 {
			cg.line("LDA %s", zp(cg.w+1))
			cg.line("PHA")
		}
	}

	if len(n.Args) > 0 {
		offs := paramOffsets(decl)
		cg.line("LDX %s", zp(cg.fp))
		for i := len(n.Args) - 1; i >= 0; i-- {
			if decl.Params[i].Type.Size() == 2 {
				cg.line("PLA")
				cg.line("STA $%02X,X", uint8(offs[i]+1))
			}
			cg.line("PLA")
			cg.line("STA $%02X,X", uint8(offs[i]))
		}
	}
	cg.line("JSR %s", decl.Name)
}

// genCondition evaluates e and jumps to falseLabel when it is zero. The
// short branch only skips the JMP, so bodies of any size stay reachable.
func (cg *CodeGen) genCondition(e Expr, falseLabel string) {
	cg.genExpr(e)
	body := cg.newLabel()
	cg.line("LDA %s", zp(cg.w))
	if cg.typeOf(e).Wide() {
		cg.line("ORA %s", zp(cg.w+1))
	}
	cg.line("BNE %s", body)
	cg.line("JMP %s", falseLabel)
	cg.label(body)
}

//  Statements

// store writes W into the named binding.
func (cg *CodeGen) store(sym *Symbol) {
	switch sym.Kind {
	case SymStorage:
		cg.line("LDA %s", zp(cg.w))
		cg.line("STA %s", abs(sym.Address))
		if sym.Type.Wide() {
			cg.line("LDA %s", zp(cg.w+1))
			cg.line("STA %s", abs(sym.Address+1))
		}
	case SymLocal:
		d := cg.slotDisp(sym)
		cg.line("LDX %s", zp(cg.fp))
		cg.line("LDA %s", zp(cg.w))
		cg.line("STA $%02X,X", d)
		if sym.Type.Wide() {
			cg.line("LDA %s", zp(cg.w+1))
			cg.line("STA $%02X,X", d+1)
		}
	}
}

func (cg *CodeGen) epilogue() {
	if size := cg.frameSize(); size > 0 {
		cg.line("LDA %s", zp(cg.fp))
		cg.line("SEC")
		cg.line("SBC #$%02X", size)
		cg.line("STA %s", zp(cg.fp))
	}
	cg.line("RTS")
}

func (cg *CodeGen) genBlock(stmts []Stmt) {
	for _, s := range stmts {
		cg.genStmt(s)
	}
}

func (cg *CodeGen) genStmt(s Stmt) {
	saved, savedIn := cg.current, cg.inStmt
	cg.inStmt = false
	cg.sourceComment(s)
	cg.inStmt = true
	defer func() { cg.current, cg.inStmt = saved, savedIn }()

	switch n := s.(type) {
	case *Comment, *DeclareConst, *DeclareStorage:

	case *DeclareVariable:
		if n.Value == nil {
			return
		}
		cg.genExpr(n.Value)
		cg.store(cg.prog.refs[n])

	case *Assignment:
		switch target := n.Target.(type) {
		case *Name:
			cg.genExpr(n.Value)
			cg.store(cg.prog.refs[target])
		case *ArrayIndex:
			cg.genExpr(n.Value)
			cg.line("LDA %s", zp(cg.w))
			cg.line("PHA")
			if !cg.genAddress(target) {
				return
			}
			cg.line("PLA")
			cg.line("LDY #$00")
			cg.line("STA (%s),Y", zp(cg.ptr))
		}

	case *CallStatement:
		cg.genCall(n.Call)

	case *Conditional:
		end := cg.newLabel()
		if n.Else == nil {
			cg.genCondition(n.Condition, end)
			cg.genBlock(n.Then)
		} else {
			els := cg.newLabel()
			cg.genCondition(n.Condition, els)
			cg.genBlock(n.Then)
			cg.line("JMP %s", end)
			cg.label(els)
			cg.genBlock(n.Else)
		}
		cg.label(end)

	case *WhileLoop:
		top := cg.newLabel()
		end := cg.newLabel()
		cg.label(top)
		cg.genCondition(n.Condition, end)
		cg.loopStack = append(cg.loopStack, end)
		cg.genBlock(n.Body)
		cg.loopStack = cg.loopStack[:len(cg.loopStack)-1]
		cg.line("JMP %s", top)
		cg.label(end)

	case *Break:
		cg.line("JMP %s", cg.loopStack[len(cg.loopStack)-1])

	case *Return:
		if n.Value != nil {
			cg.genExpr(n.Value)
			cg.copyPair(cg.w, cg.ret, cg.fn.Decl.ReturnType.Size())
		}
		cg.epilogue()

	case *GoTo:
		cg.line("JMP %s", n.Label)

	case *InlineAsm:
		for _, l := range strings.Split(n.Text, "\n") {
			cg.emit(l)
		}

	default:
		cg.unsupported(s, "cannot generate code for %s", s)
	}
}

func (cg *CodeGen) genFunction(fn *Function) {
	cg.fn = fn
	defer func() { cg.fn = nil }()

	// The frame must fit in page zero above the frame base.
	if limit := min(0x100-int(cg.cfg.Frame.Base), 0xFF); fn.Frame.Size > limit {
		cg.unsupported(fn.Decl, "frame of %s needs %d bytes, at most %d fit above $%02X", fn.Decl.Name, fn.Frame.Size, limit, cg.cfg.Frame.Base)
	}

	cg.emit("")
	cg.label(fn.Decl.Name)
	if size := fn.Frame.Size; size > 0 {
		cg.line("LDA %s", zp(cg.fp))
		cg.line("CLC")
		cg.line("ADC #$%02X", size)
		cg.line("STA %s", zp(cg.fp))
	}
	cg.genBlock(fn.Decl.Body)
	cg.epilogue()
}

// genData emits every distinct text literal with a zero terminator.
func (cg *CodeGen) genData() {
	if len(cg.stringOrder) == 0 {
		return
	}
	cg.emit("")
	cg.comment("text data")
	for _, text := range cg.stringOrder {
		parts := make([]string, 0, len(text)+1)
		for i := 0; i < len(text); i++ {
			parts = append(parts, fmt.Sprintf("$%02X", text[i]))
		}
		parts = append(parts, "$00")
		cg.label(cg.stringPool[text])
		cg.line(".BYTE %s", strings.Join(parts, ", "))
	}
}

// Generate lowers prog to assembly. It returns the text, the statement each
// assembly line belongs to, and any UnsupportedFeature diagnostics.
func Generate(prog *Program, cfg *config.Config) (string, map[int]SourceTag, error) {
	cg := newCodeGen(prog, cfg)

	origin := cfg.Output.Origin
	if prog.Origin != nil {
		origin = *prog.Origin
	}
	cg.line(".ORG $%04X", origin)
	cg.label("__init")
	if cfg.Frame.Init {
		cg.line("LDA #$%02X", cfg.Frame.Base)
		cg.line("STA %s", zp(cg.fp))
	}
	cg.genBlock(prog.TopLevel)
	if entry, ok := prog.Symbols.Global(cfg.Output.Entry); ok && entry.Kind == SymFunction {
		cg.line("JSR %s", entry.Name)
	}
	cg.label("__halt")
	cg.line("JMP __halt")

	placed := origin
	for _, item := range prog.Layout {
		switch n := item.(type) {
		case *Org:
			if n.Address < placed {
				cg.unsupported(n, "org $%04X is below the code already placed at $%04X", n.Address, placed)
			}
			placed = n.Address
			cg.emit("")
			cg.line(".ORG $%04X", n.Address)
			// an org inside code placed earlier fails in the assembler on this line
			cg.lineSrc[cg.lines] = n.Src
		case *DeclareFunction:
			if sym, ok := prog.refs[n]; ok {
				cg.genFunction(sym.Func)
			}
		}
	}

	cg.genData()

	if cfg.Output.Vectors {
		cg.emit("")
		cg.comment("NMI, RESET, IRQ")
		cg.line(".ORG $FFFA")
		cg.line(".WORD __init")
		cg.line(".WORD __init")
		cg.line(".WORD __init")
	}

	if cg.diags.HasErrors() {
		return "", nil, cg.diags
	}
	return cg.out.String(), cg.lineSrc, nil
}
