// Package compiler implements the code generator and the constant pool /
// function prototype data structures described in spec.md §2-4. It compiles
// a lang/ast syntax tree into the bytecode program consumed by lang/machine.
package compiler

import "fmt"

// Opcode is the bytecode instruction set of spec.md §4.1. Each instruction
// carries exactly one Instruction.Arg operand; unused operands are zero.
type Opcode uint8

const (
	LOAD_LOCAL Opcode = iota
	SET_LOCAL
	LOAD_GLOBAL
	SET_GLOBAL
	LOAD_UPVAR
	SET_UPVAR
	LOAD_VARG
	LOAD_CONST
	BINOP
	UNOP
	CALL
	TAIL_CALL
	RET
	JUMP
	TEST
	POP
	CLOSE_UPVAR
	BUILD_CLOSURE
	BUILD_CONTINUATION
	HALT

	opcodeMax = HALT
)

var opcodeNames = [...]string{
	LOAD_LOCAL:          "load_local",
	SET_LOCAL:           "set_local",
	LOAD_GLOBAL:         "load_global",
	SET_GLOBAL:          "set_global",
	LOAD_UPVAR:          "load_upvar",
	SET_UPVAR:           "set_upvar",
	LOAD_VARG:           "load_varg",
	LOAD_CONST:          "load_const",
	BINOP:               "binop",
	UNOP:                "unop",
	CALL:                "call",
	TAIL_CALL:           "tail_call",
	RET:                 "ret",
	JUMP:                "jump",
	TEST:                "test",
	POP:                 "pop",
	CLOSE_UPVAR:         "close_upvar",
	BUILD_CLOSURE:       "build_closure",
	BUILD_CONTINUATION:  "build_continuation",
	HALT:                "halt",
}

var reverseOpcodeNames = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		m[name] = Opcode(op)
	}
	return m
}()

func (op Opcode) String() string {
	if op <= opcodeMax {
		if name := opcodeNames[op]; name != "" {
			return name
		}
	}
	return fmt.Sprintf("illegal opcode (%d)", op)
}

// OpcodeByName looks up an Opcode by its assembly mnemonic, for use by Asm.
func OpcodeByName(name string) (Opcode, bool) {
	op, ok := reverseOpcodeNames[name]
	return op, ok
}

// BinOpID identifies which primitive the BINOP instruction applies.
type BinOpID uint8

const (
	BinAdd BinOpID = iota
	BinSub
	BinMul
	BinDiv
	BinEq
	BinGt
	BinCons
)

var binOpNames = [...]string{
	BinAdd:  "+",
	BinSub:  "-",
	BinMul:  "*",
	BinDiv:  "/",
	BinEq:   "=",
	BinGt:   ">",
	BinCons: "cons",
}

func (id BinOpID) String() string {
	if int(id) < len(binOpNames) {
		return binOpNames[id]
	}
	return fmt.Sprintf("illegal binop (%d)", id)
}

// BinOpByName looks up a BinOpID by its surface symbol, used by the code
// generator to recognize primitive applications per spec.md §4.2.
func BinOpByName(name string) (BinOpID, bool) {
	for id, n := range binOpNames {
		if n == name {
			return BinOpID(id), true
		}
	}
	return 0, false
}

// UnOpID identifies which primitive the UNOP instruction applies.
type UnOpID uint8

const (
	UnNegate UnOpID = iota
	UnCar
	UnCdr
)

var unOpNames = [...]string{
	UnNegate: "negate",
	UnCar:    "car",
	UnCdr:    "cdr",
}

func (id UnOpID) String() string {
	if int(id) < len(unOpNames) {
		return unOpNames[id]
	}
	return fmt.Sprintf("illegal unop (%d)", id)
}

// unOpSurfaceNames maps the surface operator spelling to its UnOpID; "-"
// used as a unary operator is `negate`.
var unOpSurfaceNames = map[string]UnOpID{
	"negate": UnNegate,
	"-":      UnNegate,
	"car":    UnCar,
	"cdr":    UnCdr,
}

// UnOpByName looks up a UnOpID by its surface symbol.
func UnOpByName(name string) (UnOpID, bool) {
	id, ok := unOpSurfaceNames[name]
	return id, ok
}
