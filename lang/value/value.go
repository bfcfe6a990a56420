// Package value implements the tagged runtime value union shared by the
// compiler (for constant-pool literals) and the virtual machine (for
// everything a running program can produce or manipulate).
package value

import (
	"fmt"
	"strconv"
)

// Value is implemented by every runtime value the machine can push onto an
// operand stack or store in a local, upvalue or global.
type Value interface {
	// String returns the printed representation of the value, using the
	// dotted-pair notation for improper lists.
	String() string
	// Type returns a short human-readable type name, used in error messages.
	Type() string
}

// Undefined is the value produced by forms that have no useful result (such
// as define) and occupies constant-pool index 0.
type Undefined struct{}

func (Undefined) String() string { return "#<undefined>" }
func (Undefined) Type() string   { return "undefined" }

// TheUndefined is the single shared Undefined instance.
var TheUndefined = Undefined{}

// NilValue is the empty list / "nil" sentinel. It terminates proper lists
// and is the only value that is falsy, per the resolved Open Question
// recorded in DESIGN.md.
type NilValue struct{}

func (NilValue) String() string { return "()" }
func (NilValue) Type() string   { return "nil" }

// Nil is the single shared NilValue instance.
var Nil = NilValue{}

// Integer is a fixed-precision whole number.
type Integer int64

func (i Integer) String() string { return strconv.FormatInt(int64(i), 10) }
func (Integer) Type() string     { return "integer" }

// Float is a floating point number.
type Float float64

func (f Float) String() string { return strconv.FormatFloat(float64(f), 'g', -1, 64) }
func (Float) Type() string     { return "float" }

// String is an immutable text value.
type String string

func (s String) String() string { return string(s) }
func (String) Type() string     { return "string" }

// Quoted returns the value printed the way a reader would need to see it
// back, i.e. with surrounding double quotes. Used by the debug trace.
func (s String) Quoted() string { return strconv.Quote(string(s)) }

// Symbol is an interned identifier, used both as a first-class value (the
// result of quoting an identifier) and as the key under which globals live
// in the host environment.
type Symbol string

func (s Symbol) String() string { return string(s) }
func (Symbol) Type() string     { return "symbol" }

// HostFn wraps an opaque host-provided callable. The embedding host (out of
// scope for this module, see internal/host for a minimal stand-in) is
// responsible for supplying these.
type HostFn struct {
	Name string
	Fn   func(args []Value) ([]Value, error)
}

func (h *HostFn) String() string { return fmt.Sprintf("#<host-fn %s>", h.Name) }
func (*HostFn) Type() string     { return "host-fn" }

// Equal reports whether a and b are equal under Scheme's structural
// equality: pairs compare element-wise, scalars compare by value, an Integer
// and a Float are equal when their numeric values are, and values of any
// other two distinct types are never equal to each other.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case NilValue:
		_, ok := b.(NilValue)
		return ok
	case Undefined:
		_, ok := b.(Undefined)
		return ok
	case Integer:
		switch bv := b.(type) {
		case Integer:
			return av == bv
		case Float:
			return Float(av) == bv
		}
		return false
	case Float:
		switch bv := b.(type) {
		case Integer:
			return av == Float(bv)
		case Float:
			return av == bv
		}
		return false
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Symbol:
		bv, ok := b.(Symbol)
		return ok && av == bv
	case *Pair:
		bv, ok := b.(*Pair)
		if !ok {
			return false
		}
		return Equal(av.Head, bv.Head) && Equal(av.Tail, bv.Tail)
	default:
		// Closures, continuations and host functions compare by identity.
		return a == b
	}
}
