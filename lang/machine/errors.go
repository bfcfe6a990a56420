package machine

import (
	"fmt"

	"github.com/westhood/pylisp/lang/compiler"
)

// UndefinedLocalError is raised by LOAD_LOCAL when the slot was never
// assigned.
type UndefinedLocalError struct{ Slot int }

func (e *UndefinedLocalError) Error() string {
	return fmt.Sprintf("local variable referenced before assignment: slot %d", e.Slot)
}

// UnboundGlobalError is raised by LOAD_GLOBAL when the symbol is absent
// from the host environment.
type UnboundGlobalError struct{ Name string }

func (e *UnboundGlobalError) Error() string {
	return fmt.Sprintf("unbound global: %s", e.Name)
}

// ArityMismatchError is raised when a call supplies the wrong number of
// arguments for a closure's prototype.
type ArityMismatchError struct {
	Name     string
	Want     int
	Got      int
	Variadic bool
}

func (e *ArityMismatchError) Error() string {
	name := e.Name
	if name == "" {
		name = "<anonymous>"
	}
	if e.Variadic {
		return fmt.Sprintf("%s requires at least %d arguments, got %d", name, e.Want, e.Got)
	}
	return fmt.Sprintf("%s requires exactly %d arguments, got %d", name, e.Want, e.Got)
}

// TypeMismatchError is raised when BINOP/UNOP (or CALL) is applied to a
// value its operation rejects.
type TypeMismatchError struct {
	Op   string
	Got  string
	Want string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Op, e.Want, e.Got)
}

// UnknownPrimitiveError is raised when a BINOP/UNOP operand does not name a
// registered primitive; this is a compiler bug, treated as fatal.
type UnknownPrimitiveError struct{ ID int }

func (e *UnknownPrimitiveError) Error() string {
	return fmt.Sprintf("unknown primitive operator id: %d", e.ID)
}

// UnknownOpcodeError is raised when dispatch encounters an opcode outside
// the enumeration; fatal, as it indicates a corrupt or hand-authored
// program.
type UnknownOpcodeError struct{ Op compiler.Opcode }

func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("unknown opcode: %s", e.Op)
}
