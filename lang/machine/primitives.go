package machine

import (
	"github.com/westhood/pylisp/lang/compiler"
	"github.com/westhood/pylisp/lang/value"
)

// Truthy implements the truthiness rule resolved in DESIGN.md: only Nil is
// false, every other value (including integer/float zero) is true.
func Truthy(v value.Value) bool {
	_, isNil := v.(value.NilValue)
	return !isNil
}

// trueValue and falseValue are the values produced by the comparison
// primitives, since the value set has no distinct boolean type; see
// DESIGN.md's resolution of this gap.
var (
	trueValue  value.Value = value.Integer(1)
	falseValue value.Value = value.Nil
)

func boolValue(b bool) value.Value {
	if b {
		return trueValue
	}
	return falseValue
}

// applyBinOp implements the BINOP instruction's primitive table, per
// spec.md §4.4 ("Numeric semantics").
func applyBinOp(id compiler.BinOpID, a, b value.Value) (value.Value, error) {
	switch id {
	case compiler.BinAdd:
		return numericOp(id, a, b, func(x, y int64) int64 { return x + y }, func(x, y float64) float64 { return x + y })
	case compiler.BinSub:
		return numericOp(id, a, b, func(x, y int64) int64 { return x - y }, func(x, y float64) float64 { return x - y })
	case compiler.BinMul:
		return numericOp(id, a, b, func(x, y int64) int64 { return x * y }, func(x, y float64) float64 { return x * y })
	case compiler.BinDiv:
		af, aok := toFloat(a)
		bf, bok := toFloat(b)
		if !aok {
			return nil, &TypeMismatchError{Op: "/", Want: "number", Got: a.Type()}
		}
		if !bok {
			return nil, &TypeMismatchError{Op: "/", Want: "number", Got: b.Type()}
		}
		return value.Float(af / bf), nil
	case compiler.BinEq:
		return boolValue(value.Equal(a, b)), nil
	case compiler.BinGt:
		af, aok := toFloat(a)
		bf, bok := toFloat(b)
		if !aok {
			return nil, &TypeMismatchError{Op: ">", Want: "number", Got: a.Type()}
		}
		if !bok {
			return nil, &TypeMismatchError{Op: ">", Want: "number", Got: b.Type()}
		}
		return boolValue(af > bf), nil
	case compiler.BinCons:
		return value.NewPair(a, b), nil
	default:
		return nil, &UnknownPrimitiveError{ID: int(id)}
	}
}

// numericOp applies intFn when both operands are Integer, otherwise
// promotes to float and applies floatFn, per the "integer operands stay
// integer under +, -, *; ... mixed int/float promote to float" rule.
func numericOp(id compiler.BinOpID, a, b value.Value, intFn func(int64, int64) int64, floatFn func(float64, float64) float64) (value.Value, error) {
	ai, aIsInt := a.(value.Integer)
	bi, bIsInt := b.(value.Integer)
	if aIsInt && bIsInt {
		return value.Integer(intFn(int64(ai), int64(bi))), nil
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok {
		return nil, &TypeMismatchError{Op: id.String(), Want: "number", Got: a.Type()}
	}
	if !bok {
		return nil, &TypeMismatchError{Op: id.String(), Want: "number", Got: b.Type()}
	}
	return value.Float(floatFn(af, bf)), nil
}

func toFloat(v value.Value) (float64, bool) {
	switch n := v.(type) {
	case value.Integer:
		return float64(n), true
	case value.Float:
		return float64(n), true
	default:
		return 0, false
	}
}

// applyUnOp implements the UNOP instruction's primitive table.
func applyUnOp(id compiler.UnOpID, a value.Value) (value.Value, error) {
	switch id {
	case compiler.UnNegate:
		switch n := a.(type) {
		case value.Integer:
			return -n, nil
		case value.Float:
			return -n, nil
		default:
			return nil, &TypeMismatchError{Op: "negate", Want: "number", Got: a.Type()}
		}
	case compiler.UnCar:
		p, ok := a.(*value.Pair)
		if !ok {
			return nil, &TypeMismatchError{Op: "car", Want: "pair", Got: a.Type()}
		}
		return p.Head, nil
	case compiler.UnCdr:
		p, ok := a.(*value.Pair)
		if !ok {
			return nil, &TypeMismatchError{Op: "cdr", Want: "pair", Got: a.Type()}
		}
		return p.Tail, nil
	default:
		return nil, &UnknownPrimitiveError{ID: int(id)}
	}
}
