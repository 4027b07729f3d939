package compiler

import "errors"

var (
	errNotConstant  = errors.New("not a compile-time constant")
	errDivideByZero = errors.New("division by zero")
)

// foldEnv supplies what the folder needs: the value of a name bound to a
// constant and the type recorded for each subexpression.
type foldEnv interface {
	constValue(n *Name) (uint16, bool)
	typeOf(e Expr) Type
}

// maskFor returns the value mask for arithmetic of type t.
func maskFor(t Type) uint16 {
	if t.Kind == KindU8 {
		return 0xFF
	}
	return 0xFFFF
}

// fold evaluates e from literals and constants only. Operations wrap to the
// width of their operand type, so folded values equal what the generated
// code would compute. Comparisons yield 0 or 1.
func fold(e Expr, env foldEnv) (uint16, error) {
	switch n := e.(type) {
	case *Number:
		return n.Value, nil

	case *Name:
		if v, ok := env.constValue(n); ok {
			return v, nil
		}
		return 0, errNotConstant

	case *BinaryOp:
		l, err := fold(n.Left, env)
		if err != nil {
			return 0, err
		}
		r, err := fold(n.Right, env)
		if err != nil {
			return 0, err
		}
		mask := maskFor(promote(env.typeOf(n.Left), env.typeOf(n.Right)))
		return applyOp(n.Op, l&mask, r&mask, mask)
	}
	return 0, errNotConstant
}

func applyOp(op TokenType, l, r, mask uint16) (uint16, error) {
	b := func(v bool) uint16 {
		if v {
			return 1
		}
		return 0
	}
	switch op {
	case PLUS:
		return (l + r) & mask, nil
	case MINUS:
		return (l - r) & mask, nil
	case STAR:
		return (l * r) & mask, nil
	case SLASH:
		if r == 0 {
			return 0, errDivideByZero
		}
		return (l / r) & mask, nil
	case EQUALS:
		return b(l == r), nil
	case NOT_EQ:
		return b(l != r), nil
	case LESS:
		return b(l < r), nil
	case GREATER:
		return b(l > r), nil
	case LESS_EQ:
		return b(l <= r), nil
	case GREATER_EQ:
		return b(l >= r), nil
	}
	return 0, errNotConstant
}
