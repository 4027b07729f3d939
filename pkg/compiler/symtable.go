package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// SymbolKind is the binding kind of a name.
type SymbolKind int

const (
	SymFunction SymbolKind = iota
	SymStorage             // register or memory binding at a fixed address
	SymConst               // folded compile-time constant
	SymLocal               // parameter or local frame slot
)

func (k SymbolKind) String() string {
	switch k {
	case SymFunction:
		return "function"
	case SymStorage:
		return "storage"
	case SymConst:
		return "const"
	case SymLocal:
		return "local"
	}
	return fmt.Sprintf("SymbolKind(%d)", int(k))
}

// Symbol is one binding. Which fields are meaningful depends on Kind.
type Symbol struct {
	Name string
	Kind SymbolKind
	Type Type // value type; return type for functions
	Tag  SourceTag

	Address  uint16 // SymStorage
	Register bool   // SymStorage declared with `register`
	Value    uint16 // SymConst
	Offset   int    // SymLocal: offset from the frame base
	Func     *Function
}

// IsArray reports whether the symbol names an array located at its own
// address: fixed storage of pointer type.
func (s *Symbol) IsArray() bool {
	return s.Kind == SymStorage && s.Type.IsPointer()
}

// Function is the signature and frame layout of one declared function.
// Frame.Size is final once the checker has walked the body.
type Function struct {
	Decl   *DeclareFunction
	Params []*Symbol
	Frame  Frame
}

// Frame is the static layout of one activation.
type Frame struct {
	Size  int
	Slots []*Symbol // parameters first, then locals, in declaration order
}

// SymbolTable is the flat global namespace plus, while a function body is
// being checked, one transient local scope consulted first.
type SymbolTable struct {
	globals map[string]*Symbol
	order   []*Symbol

	locals map[string]*Symbol
	fn     *Function
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{globals: make(map[string]*Symbol)}
}

// Declare adds a global binding. It returns the existing symbol and false
// when the name is already bound.
func (s *SymbolTable) Declare(sym *Symbol) (*Symbol, bool) {
	if prev, ok := s.globals[sym.Name]; ok {
		return prev, false
	}
	s.globals[sym.Name] = sym
	s.order = append(s.order, sym)
	return sym, true
}

// EnterFunction opens the local scope of fn. Parameters are allocated
// separately with Allocate so duplicates can be reported.
func (s *SymbolTable) EnterFunction(fn *Function) {
	s.locals = make(map[string]*Symbol)
	s.fn = fn
	fn.Frame = Frame{}
}

// ExitFunction discards the local scope; the frame stays with the function.
func (s *SymbolTable) ExitFunction() {
	s.locals = nil
	s.fn = nil
}

// InFunction reports whether a local scope is open.
func (s *SymbolTable) InFunction() bool { return s.fn != nil }

// CurrentFunction returns the function whose body is being checked.
func (s *SymbolTable) CurrentFunction() *Function { return s.fn }

// Allocate reserves the next frame slot for name. Offsets grow
// monotonically from zero.
func (s *SymbolTable) Allocate(name string, t Type, tag SourceTag) (*Symbol, bool) {
	if prev, ok := s.locals[name]; ok {
		return prev, false
	}
	sym := &Symbol{Name: name, Kind: SymLocal, Type: t, Tag: tag, Offset: s.fn.Frame.Size}
	s.fn.Frame.Size += t.Size()
	s.fn.Frame.Slots = append(s.fn.Frame.Slots, sym)
	s.locals[name] = sym
	return sym, true
}

// DeclareLocal binds a non-slot symbol (local register/memory or const) in
// the current function scope.
func (s *SymbolTable) DeclareLocal(sym *Symbol) (*Symbol, bool) {
	if prev, ok := s.locals[sym.Name]; ok {
		return prev, false
	}
	s.locals[sym.Name] = sym
	return sym, true
}

// Lookup resolves name, checking the local scope first.
func (s *SymbolTable) Lookup(name string) (*Symbol, bool) {
	if s.locals != nil {
		if sym, ok := s.locals[name]; ok {
			return sym, true
		}
	}
	sym, ok := s.globals[name]
	return sym, ok
}

// Global resolves name in the global namespace only.
func (s *SymbolTable) Global(name string) (*Symbol, bool) {
	sym, ok := s.globals[name]
	return sym, ok
}

// Globals returns the global bindings in declaration order.
func (s *SymbolTable) Globals() []*Symbol {
	return s.order
}

// Storages returns every fixed-address binding in declaration order.
func (s *SymbolTable) Storages() []*Symbol {
	var out []*Symbol
	for _, sym := range s.order {
		if sym.Kind == SymStorage {
			out = append(out, sym)
		}
	}
	return out
}

// storageSpan is the byte range [lo, hi) occupied by a fixed binding.
// Array bindings occupy at least their first element.
func storageSpan(sym *Symbol) (lo, hi int) {
	size := sym.Type.Size()
	if sym.IsArray() {
		size = sym.Type.Elem.Size()
	}
	if size == 0 {
		size = 1
	}
	return int(sym.Address), int(sym.Address) + size
}

// checkOverlaps warns about every pair of fixed bindings whose byte ranges
// intersect. Aliasing stays legal.
func checkOverlaps(storages []*Symbol, diags *Diagnostics) {
	for i, a := range storages {
		alo, ahi := storageSpan(a)
		for _, b := range storages[i+1:] {
			blo, bhi := storageSpan(b)
			if alo < bhi && blo < ahi {
				diags.warnf(AddressOverlap, b.Tag, "%s @ $%04X overlaps %s @ $%04X", b.Name, b.Address, a.Name, a.Address)
			}
		}
	}
}

func (s *SymbolTable) String() string {
	var sb strings.Builder
	sb.WriteString("Globals:\n")

	names := make([]string, 0, len(s.globals))
	for name := range s.globals {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sym := s.globals[name]
		switch sym.Kind {
		case SymFunction:
			sb.WriteString(fmt.Sprintf("  %-12s function -> %s, frame %d\n", name, sym.Type, sym.Func.Frame.Size))
			for _, slot := range sym.Func.Frame.Slots {
				sb.WriteString(fmt.Sprintf("      %-8s %-5s +%d\n", slot.Name, slot.Type, slot.Offset))
			}
		case SymStorage:
			sb.WriteString(fmt.Sprintf("  %-12s %-8s @ $%04X\n", name, sym.Type, sym.Address))
		case SymConst:
			sb.WriteString(fmt.Sprintf("  %-12s const %s = %d\n", name, sym.Type, sym.Value))
		}
	}
	return sb.String()
}
