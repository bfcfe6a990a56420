// Package host supplies a minimal embedding environment — display, list
// and assert — so that example programs and end-to-end tests have
// something to call. The real embedding host that owns these primitives
// is out of scope (see spec.md §1's Non-goals); this package exists only
// to exercise machine.Thread's CALL path against *value.HostFn.
package host

import (
	"fmt"
	"io"

	"github.com/westhood/pylisp/lang/value"
)

// Env builds the global bindings for the primitives this package provides,
// writing display's output to w.
func Env(w io.Writer) map[string]value.Value {
	return map[string]value.Value{
		"display": &value.HostFn{Name: "display", Fn: display(w)},
		"list":    &value.HostFn{Name: "list", Fn: list},
		"assert":  &value.HostFn{Name: "assert", Fn: assertFn},
	}
}

func display(w io.Writer) func([]value.Value) ([]value.Value, error) {
	return func(args []value.Value) ([]value.Value, error) {
		for i, a := range args {
			if i > 0 {
				fmt.Fprint(w, " ")
			}
			fmt.Fprint(w, a.String())
		}
		fmt.Fprintln(w)
		return []value.Value{value.TheUndefined}, nil
	}
}

func list(args []value.Value) ([]value.Value, error) {
	return []value.Value{value.NewList(args...)}, nil
}

// AssertionError is raised by the assert primitive when its arguments
// don't match.
type AssertionError struct {
	Got, Want value.Value
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: got %s, want %s", e.Got.String(), e.Want.String())
}

// assertFn implements the two argument conventions every end-to-end
// scenario in spec.md §8 relies on: `(assert actual expected)` compares the
// two values for structural equality, and `(assert expr)` treats expr as a
// plain truthiness check (only Nil is false, per the resolved truthiness
// Open Question).
func assertFn(args []value.Value) ([]value.Value, error) {
	switch len(args) {
	case 1:
		if _, falsy := args[0].(value.NilValue); falsy {
			return nil, &AssertionError{Got: args[0], Want: value.Integer(1)}
		}
	case 2:
		if !value.Equal(args[0], args[1]) {
			return nil, &AssertionError{Got: args[0], Want: args[1]}
		}
	default:
		return nil, fmt.Errorf("assert: expected 1 or 2 arguments, got %d", len(args))
	}
	return []value.Value{value.TheUndefined}, nil
}
