package compiler

import (
	"fmt"
	"strings"
)

// SourceTag locates a node: the compilation unit it came from and the byte
// offset of its first token. It is only ever used for diagnostics.
type SourceTag struct {
	Unit   int
	Offset int
}

func (t SourceTag) String() string { return fmt.Sprintf("%d:%d", t.Unit, t.Offset) }

// Node is implemented by every AST node.
type Node interface {
	Tag() SourceTag
	String() string
}

//  Expression nodes

// Expr is implemented by every node that produces a value.
// genExpr always leaves the result in the work register W.
type Expr interface {
	Node
	exprNode()
}

// Number is an integer literal; its type comes from context.
//
//	x = 10;
//	    ^^  Number{Value: 10}
type Number struct {
	Src   SourceTag
	Value uint16
}

func (*Number) exprNode() {}
func (n *Number) Tag() SourceTag { return n.Src }
func (n *Number) String() string { return fmt.Sprintf("%d", n.Value) }

// Text is a string literal; it evaluates to the address of its bytes.
type Text struct {
	Src   SourceTag
	Value string
}

func (*Text) exprNode() {}
func (t *Text) Tag() SourceTag { return t.Src }
func (t *Text) String() string { return fmt.Sprintf("%q", t.Value) }

// Name is a read of a named binding.
//
//	return x;
//	       ^  Name{Name: "x"}
type Name struct {
	Src  SourceTag
	Name string
}

func (*Name) exprNode() {}
func (n *Name) Tag() SourceTag { return n.Src }
func (n *Name) String() string { return n.Name }

// ArrayIndex reads one element through a pointer-typed binding.
//
//	dst[i]
//	^^^ ^
//	|   Index
//	Array
type ArrayIndex struct {
	Src   SourceTag
	Array string
	Index Expr
}

func (*ArrayIndex) exprNode() {}
func (a *ArrayIndex) Tag() SourceTag { return a.Src }
func (a *ArrayIndex) String() string { return fmt.Sprintf("%s[%s]", a.Array, a.Index) }

// BinaryOp represents Left Op Right.
//
//	x + 1
//	^ ^ ^
//	| | |
//	| | Right
//	| Op
//	Left
type BinaryOp struct {
	Src   SourceTag
	Op    TokenType
	Left  Expr
	Right Expr
}

func (*BinaryOp) exprNode() {}
func (b *BinaryOp) Tag() SourceTag { return b.Src }
func (b *BinaryOp) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op.Symbol(), b.Right)
}

// CallFunction represents name(args).
type CallFunction struct {
	Src  SourceTag
	Name string
	Args []Expr
}

func (*CallFunction) exprNode() {}
func (c *CallFunction) Tag() SourceTag { return c.Src }
func (c *CallFunction) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.Name, strings.Join(args, ", "))
}

//  Statement nodes

// Stmt is implemented by every node that performs an action.
type Stmt interface {
	Node
	stmtNode()
}

// NameType pairs a declared name with its type.
type NameType struct {
	Name string
	Type Type
}

func (nt NameType) String() string { return fmt.Sprintf("%s: %s", nt.Name, nt.Type) }

// Comment is a '#' line kept as a no-op statement.
type Comment struct {
	Src  SourceTag
	Text string
}

func (*Comment) stmtNode() {}
func (c *Comment) Tag() SourceTag { return c.Src }
func (c *Comment) String() string { return "# " + c.Text }

// DeclareConst binds a compile-time constant.
type DeclareConst struct {
	Src   SourceTag
	Decl  NameType
	Value Expr
}

func (*DeclareConst) stmtNode() {}
func (d *DeclareConst) Tag() SourceTag { return d.Src }
func (d *DeclareConst) String() string {
	return fmt.Sprintf("const %s = %s", d.Decl, d.Value)
}

// DeclareVariable allocates a frame slot. Value may be nil.
type DeclareVariable struct {
	Src   SourceTag
	Decl  NameType
	Value Expr
}

func (*DeclareVariable) stmtNode() {}
func (d *DeclareVariable) Tag() SourceTag { return d.Src }
func (d *DeclareVariable) String() string {
	if d.Value == nil {
		return fmt.Sprintf("var %s", d.Decl)
	}
	return fmt.Sprintf("var %s = %s", d.Decl, d.Value)
}

// DeclareStorage binds a name to a fixed absolute address. Register marks
// the `register` spelling; both spellings share semantics.
type DeclareStorage struct {
	Src      SourceTag
	Decl     NameType
	Address  uint16
	Register bool
}

func (*DeclareStorage) stmtNode() {}
func (d *DeclareStorage) Tag() SourceTag { return d.Src }
func (d *DeclareStorage) String() string {
	kw := "memory"
	if d.Register {
		kw = "register"
	}
	return fmt.Sprintf("%s %s @ 0x%04X", kw, d.Decl, d.Address)
}

// Assignment stores Value into Target, which is a *Name or *ArrayIndex.
type Assignment struct {
	Src    SourceTag
	Target Expr
	Value  Expr
}

func (*Assignment) stmtNode() {}
func (a *Assignment) Tag() SourceTag { return a.Src }
func (a *Assignment) String() string { return fmt.Sprintf("%s = %s", a.Target, a.Value) }

// CallStatement is a function call whose result (if any) is discarded.
type CallStatement struct {
	Src  SourceTag
	Call *CallFunction
}

func (*CallStatement) stmtNode() {}
func (c *CallStatement) Tag() SourceTag { return c.Src }
func (c *CallStatement) String() string { return c.Call.String() }

// Conditional is if/then with an optional else branch.
type Conditional struct {
	Src       SourceTag
	Condition Expr
	Then      []Stmt
	Else      []Stmt
}

func (*Conditional) stmtNode() {}
func (c *Conditional) Tag() SourceTag { return c.Src }
func (c *Conditional) String() string {
	if c.Else == nil {
		return fmt.Sprintf("if %s then %v end", c.Condition, c.Then)
	}
	return fmt.Sprintf("if %s then %v else %v end", c.Condition, c.Then, c.Else)
}

// WhileLoop repeats Body while Condition is non-zero.
type WhileLoop struct {
	Src       SourceTag
	Condition Expr
	Body      []Stmt
}

func (*WhileLoop) stmtNode() {}
func (w *WhileLoop) Tag() SourceTag { return w.Src }
func (w *WhileLoop) String() string { return fmt.Sprintf("while %s do %v end", w.Condition, w.Body) }

// Break leaves the innermost while loop.
type Break struct {
	Src SourceTag
}

func (*Break) stmtNode() {}
func (b *Break) Tag() SourceTag { return b.Src }
func (*Break) String() string { return "break" }

// Return leaves the enclosing function; Value is nil for `return;`.
type Return struct {
	Src   SourceTag
	Value Expr
}

func (*Return) stmtNode() {}
func (r *Return) Tag() SourceTag { return r.Src }
func (r *Return) String() string {
	if r.Value == nil {
		return "return"
	}
	return fmt.Sprintf("return %s", r.Value)
}

// GoTo jumps to the entry label of a function without calling it.
type GoTo struct {
	Src   SourceTag
	Label string
}

func (*GoTo) stmtNode() {}
func (g *GoTo) Tag() SourceTag { return g.Src }
func (g *GoTo) String() string { return "goto " + g.Label }

// DeclareFunction is `def name(params): type ... end`.
type DeclareFunction struct {
	Src        SourceTag
	Name       string
	Params     []NameType
	ReturnType Type
	Body       []Stmt
}

func (*DeclareFunction) stmtNode() {}
func (f *DeclareFunction) Tag() SourceTag { return f.Src }
func (f *DeclareFunction) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.String()
	}
	return fmt.Sprintf("def %s(%s): %s %v end", f.Name, strings.Join(params, ", "), f.ReturnType, f.Body)
}

// Org fixes the placement address of the code that follows.
type Org struct {
	Src     SourceTag
	Address uint16
}

func (*Org) stmtNode() {}
func (o *Org) Tag() SourceTag { return o.Src }
func (o *Org) String() string { return fmt.Sprintf("org 0x%04X", o.Address) }

// InlineAsm is emitted into the instruction stream verbatim.
type InlineAsm struct {
	Src  SourceTag
	Text string
}

func (*InlineAsm) stmtNode() {}
func (a *InlineAsm) Tag() SourceTag { return a.Src }
func (a *InlineAsm) String() string { return fmt.Sprintf("inline_asm %q", a.Text) }
