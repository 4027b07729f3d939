package compiler

import (
	"regexp"
)

// Optimizer is a pass over a checked program, run before generation. Passes
// may drop or reorder code but must keep the program's behaviour.
type Optimizer interface {
	Name() string
	Optimize(prog *Program)
}

// DeadFunctions removes functions that can never run.
type DeadFunctions struct {
	// Entry is the function the init block calls, if it exists.
	Entry string
}

func (DeadFunctions) Name() string { return "dead-functions" }

var asmIdent = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// Optimize drops every function not reachable from a root. Roots are the
// entry function, calls made by top-level statements, every goto target and
// every identifier mentioned in inline assembly.
func (d DeadFunctions) Optimize(prog *Program) {
	funcs := make(map[string]*Function)
	for _, fn := range prog.Functions {
		funcs[fn.Decl.Name] = fn
	}

	reachable := make(map[string]bool)
	var worklist []string

	addReachable := func(name string) {
		if _, ok := funcs[name]; ok && !reachable[name] {
			reachable[name] = true
			worklist = append(worklist, name)
		}
	}

	addReachable(d.Entry)
	roots := make(map[string]bool)
	findCallsBlock(prog.TopLevel, roots)
	for name := range roots {
		addReachable(name)
	}

	for len(worklist) > 0 {
		curr := worklist[0]
		worklist = worklist[1:]

		calls := make(map[string]bool)
		findCallsBlock(funcs[curr].Decl.Body, calls)
		for call := range calls {
			addReachable(call)
		}
	}

	var kept []*Function
	for _, fn := range prog.Functions {
		if reachable[fn.Decl.Name] {
			kept = append(kept, fn)
		} else {
			log.Debugf("dropping unreachable function %s", fn.Decl.Name)
		}
	}
	prog.Functions = kept

	var layout []Stmt
	for _, s := range prog.Layout {
		if f, ok := s.(*DeclareFunction); ok && !reachable[f.Name] {
			continue
		}
		layout = append(layout, s)
	}
	prog.Layout = layout
}

// findCallsExpr recursively extracts function call names from an expression.
func findCallsExpr(e Expr, calls map[string]bool) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *CallFunction:
		calls[n.Name] = true
		for _, arg := range n.Args {
			findCallsExpr(arg, calls)
		}
	case *BinaryOp:
		findCallsExpr(n.Left, calls)
		findCallsExpr(n.Right, calls)
	case *ArrayIndex:
		findCallsExpr(n.Index, calls)
	case *Number, *Text, *Name:
		// No function calls here
	}
}

func findCallsBlock(stmts []Stmt, calls map[string]bool) {
	for _, s := range stmts {
		findCallsStmt(s, calls)
	}
}

// findCallsStmt collects every function a statement may transfer control
// to: calls, goto targets and names used by inline assembly.
func findCallsStmt(s Stmt, calls map[string]bool) {
	switch n := s.(type) {
	case *DeclareVariable:
		findCallsExpr(n.Value, calls)
	case *Assignment:
		findCallsExpr(n.Target, calls)
		findCallsExpr(n.Value, calls)
	case *CallStatement:
		findCallsExpr(n.Call, calls)
	case *Return:
		findCallsExpr(n.Value, calls)
	case *Conditional:
		findCallsExpr(n.Condition, calls)
		findCallsBlock(n.Then, calls)
		findCallsBlock(n.Else, calls)
	case *WhileLoop:
		findCallsExpr(n.Condition, calls)
		findCallsBlock(n.Body, calls)
	case *GoTo:
		calls[n.Label] = true
	case *InlineAsm:
		for _, ident := range asmIdent.FindAllString(n.Text, -1) {
			calls[ident] = true
		}
	}
}
