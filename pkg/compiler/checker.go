package compiler

import "strings"

// Program is the checked, linked form of every unit: the symbol table,
// the resolution side tables and the placement order the generator follows.
type Program struct {
	Units     []*Unit
	Symbols   *SymbolTable
	Functions []*Function // declaration order across units
	Layout    []Stmt      // *Org and *DeclareFunction in placement order
	TopLevel  []Stmt      // everything else, run by the init block
	Origin    *uint16     // leading org of the first unit
	Storages  []*Symbol   // every fixed binding, local ones included

	types map[Expr]Type
	refs  map[Node]*Symbol
}

// TypeOf returns the type the checker assigned to e.
func (p *Program) TypeOf(e Expr) Type { return p.types[e] }

// Resolve returns the symbol a name-bearing node was bound to.
func (p *Program) Resolve(n Node) (*Symbol, bool) {
	sym, ok := p.refs[n]
	return sym, ok
}

// Checker resolves names, assigns frame slots, folds constants and
// validates types. It keeps going after an error so one run reports as
// much as possible.
type Checker struct {
	prog     *Program
	syms     *SymbolTable
	diags    Diagnostics
	storages []*Symbol
	pending  map[*Symbol]bool // global consts not folded yet
	loops    int
}

func newChecker(units []*Unit) *Checker {
	syms := NewSymbolTable()
	return &Checker{
		prog: &Program{
			Units:   units,
			Symbols: syms,
			types:   make(map[Expr]Type),
			refs:    make(map[Node]*Symbol),
		},
		syms:    syms,
		pending: make(map[*Symbol]bool),
	}
}

// Check runs the resolver and type checker over the units in order. The
// returned diagnostics may hold warnings even when the program is usable;
// the program must not be generated when diags.HasErrors().
func Check(units []*Unit) (*Program, Diagnostics) {
	c := newChecker(units)
	c.collect()
	c.foldGlobals()
	for _, u := range units {
		for _, s := range u.Stmts {
			switch n := s.(type) {
			case *DeclareFunction:
				if sym, ok := c.prog.refs[n]; ok {
					c.checkFunction(sym.Func)
				}
			case *Org:
			default:
				c.checkStmt(s)
			}
		}
	}
	checkOverlaps(c.storages, &c.diags)
	c.prog.Storages = c.storages
	return c.prog, c.diags
}

func (c *Checker) constValue(n *Name) (uint16, bool) {
	sym, ok := c.prog.refs[n]
	if !ok || sym.Kind != SymConst || c.pending[sym] {
		return 0, false
	}
	return sym.Value, true
}

func (c *Checker) typeOf(e Expr) Type { return c.prog.types[e] }

// collect binds every global name of every unit before any body is
// checked, so calls may refer forward and across units.
func (c *Checker) collect() {
	for ui, u := range c.prog.Units {
		leading := ui == 0
		for _, s := range u.Stmts {
			switch n := s.(type) {
			case *Comment:
				continue
			case *Org:
				if leading && c.prog.Origin == nil {
					addr := n.Address
					c.prog.Origin = &addr
				} else {
					c.prog.Layout = append(c.prog.Layout, n)
				}
			case *DeclareFunction:
				c.declareFunction(n)
			case *DeclareStorage:
				c.declareStorage(n, true)
				c.prog.TopLevel = append(c.prog.TopLevel, n)
			case *DeclareConst:
				c.declareConst(n)
				c.prog.TopLevel = append(c.prog.TopLevel, n)
			default:
				c.prog.TopLevel = append(c.prog.TopLevel, n)
			}
			leading = false
		}
	}
}

func (c *Checker) duplicate(tag SourceTag, name string, prev *Symbol) {
	c.diags.errorf(DuplicateDeclaration, tag, "%s is already declared as a %s", name, prev.Kind)
}

func (c *Checker) declareFunction(n *DeclareFunction) {
	// Function names become assembly labels.
	switch {
	case strings.HasPrefix(n.Name, "__"):
		c.diags.errorf(UnsupportedFeature, n.Src, "function name %s is reserved for generated labels", n.Name)
	case strings.EqualFold(n.Name, "a"):
		c.diags.errorf(UnsupportedFeature, n.Src, "function name %s is the accumulator operand in assembly", n.Name)
	}
	fn := &Function{Decl: n}
	sym := &Symbol{Name: n.Name, Kind: SymFunction, Type: n.ReturnType, Tag: n.Src, Func: fn}
	if prev, ok := c.syms.Declare(sym); !ok {
		c.duplicate(n.Src, n.Name, prev)
		return
	}
	c.prog.refs[n] = sym
	c.prog.Functions = append(c.prog.Functions, fn)
	c.prog.Layout = append(c.prog.Layout, n)
}

func (c *Checker) declareStorage(n *DeclareStorage, global bool) {
	if containsVoid(n.Decl.Type) {
		c.diags.errorf(TypeMismatch, n.Src, "%s cannot have type %s", n.Decl.Name, n.Decl.Type)
		return
	}
	sym := &Symbol{
		Name: n.Decl.Name, Kind: SymStorage, Type: n.Decl.Type, Tag: n.Src,
		Address: n.Address, Register: n.Register,
	}
	var prev *Symbol
	var ok bool
	if global {
		prev, ok = c.syms.Declare(sym)
	} else {
		prev, ok = c.syms.DeclareLocal(sym)
	}
	if !ok {
		c.duplicate(n.Src, n.Decl.Name, prev)
		return
	}
	c.prog.refs[n] = sym
	c.storages = append(c.storages, sym)
}

func (c *Checker) declareConst(n *DeclareConst) {
	sym := &Symbol{Name: n.Decl.Name, Kind: SymConst, Type: n.Decl.Type, Tag: n.Src}
	if prev, ok := c.syms.Declare(sym); !ok {
		c.duplicate(n.Src, n.Decl.Name, prev)
		return
	}
	c.prog.refs[n] = sym
	c.pending[sym] = true
}

// foldGlobals evaluates global constants in declaration order. A constant
// may only use constants declared before it.
func (c *Checker) foldGlobals() {
	for _, u := range c.prog.Units {
		for _, s := range u.Stmts {
			n, ok := s.(*DeclareConst)
			if !ok {
				continue
			}
			if sym, ok := c.prog.refs[n]; ok {
				c.foldConst(n, sym)
			}
		}
	}
}

// foldConst checks the initializer against the declared type and stores the
// folded value in sym.
func (c *Checker) foldConst(n *DeclareConst, sym *Symbol) bool {
	if !n.Decl.Type.IsNumeric() {
		c.diags.errorf(TypeMismatch, n.Src, "constant %s must be u8 or u16, not %s", n.Decl.Name, n.Decl.Type)
		return false
	}
	want := n.Decl.Type
	t, ok := c.checkExpr(n.Value, &want)
	if !ok {
		return false
	}
	if !t.Equal(want) {
		c.diags.errorf(TypeMismatch, n.Value.Tag(), "constant %s is %s but its value is %s", n.Decl.Name, want, t)
		return false
	}
	v, err := fold(n.Value, c)
	if err != nil {
		c.diags.errorf(ConstantNotFoldable, n.Value.Tag(), "constant %s: %v", n.Decl.Name, err)
		return false
	}
	sym.Value = v
	delete(c.pending, sym)
	return true
}

func (c *Checker) checkFunction(fn *Function) {
	decl := fn.Decl
	c.syms.EnterFunction(fn)
	defer c.syms.ExitFunction()

	if decl.ReturnType.IsPointer() && containsVoid(decl.ReturnType) {
		c.diags.errorf(TypeMismatch, decl.Src, "function %s cannot return %s", decl.Name, decl.ReturnType)
	}
	for _, p := range decl.Params {
		if containsVoid(p.Type) {
			c.diags.errorf(TypeMismatch, decl.Src, "parameter %s of %s cannot have type %s", p.Name, decl.Name, p.Type)
			continue
		}
		sym, ok := c.syms.Allocate(p.Name, p.Type, decl.Src)
		if !ok {
			c.diags.errorf(DuplicateDeclaration, decl.Src, "parameter %s of %s is declared twice", p.Name, decl.Name)
			continue
		}
		fn.Params = append(fn.Params, sym)
	}

	c.loops = 0
	for _, s := range decl.Body {
		c.checkStmt(s)
	}
}

func (c *Checker) checkBlock(stmts []Stmt) {
	for _, s := range stmts {
		c.checkStmt(s)
	}
}

// checkCondition requires a numeric condition.
func (c *Checker) checkCondition(e Expr) {
	t, ok := c.checkExpr(e, nil)
	if ok && !t.IsNumeric() {
		c.diags.errorf(TypeMismatch, e.Tag(), "condition must be u8 or u16, not %s", t)
	}
}

func (c *Checker) checkStmt(s Stmt) {
	switch n := s.(type) {
	case *Comment, *InlineAsm:

	case *DeclareConst:
		if !c.syms.InFunction() {
			return // folded by foldGlobals
		}
		sym := &Symbol{Name: n.Decl.Name, Kind: SymConst, Type: n.Decl.Type, Tag: n.Src}
		if !c.foldConst(n, sym) {
			return
		}
		if prev, ok := c.syms.DeclareLocal(sym); !ok {
			c.duplicate(n.Src, n.Decl.Name, prev)
			return
		}
		c.prog.refs[n] = sym

	case *DeclareStorage:
		if c.syms.InFunction() {
			c.declareStorage(n, false)
		}

	case *DeclareVariable:
		if !c.syms.InFunction() {
			c.diags.errorf(UnsupportedFeature, n.Src, "top-level var %s has no frame; declare it with memory", n.Decl.Name)
			return
		}
		if containsVoid(n.Decl.Type) {
			c.diags.errorf(TypeMismatch, n.Src, "variable %s cannot have type %s", n.Decl.Name, n.Decl.Type)
			return
		}
		if n.Value != nil {
			want := n.Decl.Type
			if t, ok := c.checkExpr(n.Value, &want); ok && !t.Equal(want) {
				c.diags.errorf(TypeMismatch, n.Value.Tag(), "cannot initialize %s %s with %s", want, n.Decl.Name, t)
			}
		}
		sym, ok := c.syms.Allocate(n.Decl.Name, n.Decl.Type, n.Src)
		if !ok {
			c.duplicate(n.Src, n.Decl.Name, sym)
			return
		}
		c.prog.refs[n] = sym

	case *Assignment:
		target, ok := c.checkLvalue(n.Target)
		if !ok {
			// still look at the value for further diagnostics
			c.checkExpr(n.Value, nil)
			return
		}
		if t, ok := c.checkExpr(n.Value, &target); ok && !t.Equal(target) {
			c.diags.errorf(TypeMismatch, n.Value.Tag(), "cannot assign %s to %s %s", t, target, n.Target)
		}

	case *CallStatement:
		c.checkCall(n.Call, true)

	case *Conditional:
		c.checkCondition(n.Condition)
		c.checkBlock(n.Then)
		c.checkBlock(n.Else)

	case *WhileLoop:
		c.checkCondition(n.Condition)
		c.loops++
		c.checkBlock(n.Body)
		c.loops--

	case *Break:
		if c.loops == 0 {
			c.diags.errorf(BreakOutsideLoop, n.Src, "break outside of a while loop")
		}

	case *Return:
		fn := c.syms.CurrentFunction()
		if fn == nil {
			c.diags.errorf(TypeMismatch, n.Src, "return outside of a function")
			return
		}
		ret := fn.Decl.ReturnType
		switch {
		case n.Value == nil && !ret.IsVoid():
			c.diags.errorf(TypeMismatch, n.Src, "%s must return a %s value", fn.Decl.Name, ret)
		case n.Value != nil && ret.IsVoid():
			c.diags.errorf(TypeMismatch, n.Src, "void function %s cannot return a value", fn.Decl.Name)
			c.checkExpr(n.Value, nil)
		case n.Value != nil:
			if t, ok := c.checkExpr(n.Value, &ret); ok && !t.Equal(ret) {
				c.diags.errorf(TypeMismatch, n.Value.Tag(), "%s returns %s, not %s", fn.Decl.Name, ret, t)
			}
		}

	case *GoTo:
		sym, ok := c.syms.Lookup(n.Label)
		if !ok {
			c.diags.errorf(UnknownName, n.Src, "goto target %s is not declared", n.Label)
			return
		}
		if sym.Kind != SymFunction {
			c.diags.errorf(TypeMismatch, n.Src, "goto target %s is a %s, not a function", n.Label, sym.Kind)
			return
		}
		c.prog.refs[n] = sym

	case *DeclareFunction, *Org:
		c.diags.errorf(ParseError, s.Tag(), "%s is only allowed at top level", s)
	}
}

// checkLvalue resolves an assignment target and returns its type.
func (c *Checker) checkLvalue(e Expr) (Type, bool) {
	switch n := e.(type) {
	case *Name:
		sym, ok := c.syms.Lookup(n.Name)
		if !ok {
			c.diags.errorf(UnknownName, n.Src, "%s is not declared", n.Name)
			return Type{}, false
		}
		switch {
		case sym.Kind == SymConst:
			c.diags.errorf(InvalidLvalue, n.Src, "cannot assign to constant %s", n.Name)
			return Type{}, false
		case sym.Kind == SymFunction:
			c.diags.errorf(InvalidLvalue, n.Src, "cannot assign to function %s", n.Name)
			return Type{}, false
		case sym.IsArray():
			c.diags.errorf(InvalidLvalue, n.Src, "%s names an array at $%04X and cannot be assigned", n.Name, sym.Address)
			return Type{}, false
		}
		c.prog.refs[n] = sym
		c.prog.types[n] = sym.Type
		return sym.Type, true
	case *ArrayIndex:
		return c.checkExpr(n, nil)
	}
	c.diags.errorf(InvalidLvalue, e.Tag(), "cannot assign to %s", e)
	return Type{}, false
}

// checkExpr types e. want is the type the context expects, used to give
// untyped number literals their type; nil means no context. The returned
// flag is false when an error was already reported for e.
func (c *Checker) checkExpr(e Expr, want *Type) (Type, bool) {
	t, ok := c.exprType(e, want)
	if ok {
		c.prog.types[e] = t
	}
	return t, ok
}

func (c *Checker) exprType(e Expr, want *Type) (Type, bool) {
	switch n := e.(type) {
	case *Number:
		if want == nil {
			return literalType(n.Value), true
		}
		switch {
		case want.IsPointer():
			return *want, true
		case want.IsNumeric():
			if !fits(n.Value, *want) {
				c.diags.errorf(TypeMismatch, n.Src, "%d does not fit in %s", n.Value, *want)
				return Type{}, false
			}
			return *want, true
		}
		return literalType(n.Value), true

	case *Text:
		return PointerTo(U8Type), true

	case *Name:
		sym, ok := c.syms.Lookup(n.Name)
		if !ok {
			c.diags.errorf(UnknownName, n.Src, "%s is not declared", n.Name)
			return Type{}, false
		}
		if sym.Kind == SymFunction {
			c.diags.errorf(TypeMismatch, n.Src, "function %s used as a value", n.Name)
			return Type{}, false
		}
		c.prog.refs[n] = sym
		return sym.Type, true

	case *ArrayIndex:
		sym, ok := c.syms.Lookup(n.Array)
		if !ok {
			c.diags.errorf(UnknownName, n.Src, "%s is not declared", n.Array)
			return Type{}, false
		}
		if sym.Kind == SymFunction || sym.Kind == SymConst || !sym.Type.IsPointer() {
			c.diags.errorf(TypeMismatch, n.Src, "%s is not a pointer and cannot be indexed", n.Array)
			return Type{}, false
		}
		if it, ok := c.checkExpr(n.Index, nil); ok && !it.IsNumeric() {
			c.diags.errorf(TypeMismatch, n.Index.Tag(), "index of %s must be u8 or u16, not %s", n.Array, it)
			return Type{}, false
		}
		c.prog.refs[n] = sym
		return *sym.Type.Elem, true

	case *BinaryOp:
		return c.checkBinary(n, want)

	case *CallFunction:
		return c.checkCall(n, false)
	}
	c.diags.errorf(ParseError, e.Tag(), "unexpected expression %s", e)
	return Type{}, false
}

func isLiteral(e Expr) bool {
	_, ok := e.(*Number)
	return ok
}

// literalContext is the type an untyped literal operand takes next to a
// typed operand of type other, given the outer arithmetic context.
func literalContext(other Type, ctx *Type) *Type {
	if !other.IsNumeric() {
		return ctx
	}
	t := other
	if ctx != nil && ctx.Kind == KindU16 {
		t = U16Type
	}
	return &t
}

func (c *Checker) checkBinary(n *BinaryOp, want *Type) (Type, bool) {
	var ctx *Type
	if !n.Op.isComparison() && want != nil && want.IsNumeric() {
		ctx = want
	}

	var lt, rt Type
	var lok, rok bool
	switch lLit, rLit := isLiteral(n.Left), isLiteral(n.Right); {
	case lLit && !rLit:
		rt, rok = c.checkExpr(n.Right, ctx)
		lt, lok = c.checkExpr(n.Left, literalContext(rt, ctx))
	case rLit && !lLit:
		lt, lok = c.checkExpr(n.Left, ctx)
		rt, rok = c.checkExpr(n.Right, literalContext(lt, ctx))
	default:
		lt, lok = c.checkExpr(n.Left, ctx)
		rt, rok = c.checkExpr(n.Right, ctx)
		if lLit && rLit && lok && rok && !lt.Equal(rt) {
			p := promote(lt, rt)
			c.prog.types[n.Left], c.prog.types[n.Right] = p, p
			lt, rt = p, p
		}
	}
	if !lok || !rok {
		return Type{}, false
	}
	if !lt.IsNumeric() || !rt.IsNumeric() {
		c.diags.errorf(TypeMismatch, n.Src, "operator %s needs u8 or u16 operands, got %s and %s", n.Op.Symbol(), lt, rt)
		return Type{}, false
	}
	if n.Op.isComparison() {
		return U8Type, true
	}
	return promote(lt, rt), true
}

// checkCall validates a call. Void results are only allowed in statement
// position.
func (c *Checker) checkCall(n *CallFunction, statement bool) (Type, bool) {
	sym, ok := c.syms.Lookup(n.Name)
	if !ok {
		c.diags.errorf(UnknownName, n.Src, "function %s is not declared", n.Name)
		for _, a := range n.Args {
			c.checkExpr(a, nil)
		}
		return Type{}, false
	}
	if sym.Kind != SymFunction {
		c.diags.errorf(TypeMismatch, n.Src, "%s is a %s, not a function", n.Name, sym.Kind)
		return Type{}, false
	}
	c.prog.refs[n] = sym

	params := sym.Func.Decl.Params
	good := true
	if len(n.Args) != len(params) {
		c.diags.errorf(ArityMismatch, n.Src, "%s takes %d arguments, got %d", n.Name, len(params), len(n.Args))
		good = false
	}
	for i, a := range n.Args {
		if i >= len(params) {
			c.checkExpr(a, nil)
			continue
		}
		want := params[i].Type
		t, ok := c.checkExpr(a, &want)
		if !ok {
			good = false
			continue
		}
		if !t.Equal(want) {
			c.diags.errorf(TypeMismatch, a.Tag(), "argument %d of %s must be %s, got %s", i+1, n.Name, want, t)
			good = false
		}
	}

	ret := sym.Func.Decl.ReturnType
	if !statement && ret.IsVoid() {
		c.diags.errorf(TypeMismatch, n.Src, "void function %s used as a value", n.Name)
		return Type{}, false
	}
	return ret, good || statement
}
