package compiler

import "fmt"

// TypeKind is the tag of a Type.
type TypeKind int

const (
	KindU8 TypeKind = iota
	KindU16
	KindVoid
	KindPointer
)

// Type is one of U8, U16, Void or Pointer(Elem). Values are compared with
// Equal, never with ==, because pointer types nest.
type Type struct {
	Kind TypeKind
	Elem *Type // pointee, only for KindPointer
}

var (
	U8Type   = Type{Kind: KindU8}
	U16Type  = Type{Kind: KindU16}
	VoidType = Type{Kind: KindVoid}
)

// PointerTo builds Pointer(elem).
func PointerTo(elem Type) Type {
	return Type{Kind: KindPointer, Elem: &elem}
}

// Equal reports structural equality: Pointer(U8) != Pointer(U16).
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	if t.Kind != KindPointer {
		return true
	}
	return t.Elem.Equal(*o.Elem)
}

// Size returns the number of storage units a value of t occupies.
func (t Type) Size() int {
	switch t.Kind {
	case KindU8:
		return 1
	case KindU16, KindPointer:
		return 2
	}
	return 0
}

// IsNumeric reports whether t is U8 or U16.
func (t Type) IsNumeric() bool { return t.Kind == KindU8 || t.Kind == KindU16 }

// IsPointer reports whether t is a pointer.
func (t Type) IsPointer() bool { return t.Kind == KindPointer }

// IsVoid reports whether t is Void.
func (t Type) IsVoid() bool { return t.Kind == KindVoid }

// Wide reports whether a value of t needs the high byte of W.
func (t Type) Wide() bool { return t.Size() == 2 }

func (t Type) String() string {
	switch t.Kind {
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindVoid:
		return "void"
	case KindPointer:
		return "*" + t.Elem.String()
	}
	return fmt.Sprintf("Type(%d)", int(t.Kind))
}

// promote returns the result type of an arithmetic operation on a and b.
func promote(a, b Type) Type {
	if a.Kind == KindU16 || b.Kind == KindU16 {
		return U16Type
	}
	return U8Type
}

// fits reports whether the literal v can be typed as t.
func fits(v uint16, t Type) bool {
	switch t.Kind {
	case KindU8:
		return v <= 0xFF
	case KindU16:
		return true
	}
	return false
}

// literalType is the type of an untyped number with no context.
func literalType(v uint16) Type {
	if v <= 0xFF {
		return U8Type
	}
	return U16Type
}

// containsVoid reports whether Void appears anywhere inside a pointer chain
// or as the type itself.
func containsVoid(t Type) bool {
	for {
		switch t.Kind {
		case KindVoid:
			return true
		case KindPointer:
			t = *t.Elem
		default:
			return false
		}
	}
}
