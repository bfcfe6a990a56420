package compiler

import "github.com/westhood/pylisp/lang/resolver"

// Instruction is one bytecode instruction: an Opcode plus the single
// operand it needs (a local/upvalue/constant index, a jump offset, or a
// BinOpID/UnOpID packed into Arg). Unlike the teacher's byte-packed varint
// encoding (lang/compiler/opcode.go in mna-nenuphar), instructions here are
// fixed-width slice entries — see DESIGN.md for why: this language's jump
// targets are defined over instruction positions, not byte offsets, so a
// slice of structs avoids a decode pass entirely.
type Instruction struct {
	Op  Opcode
	Arg int32
}

// Prototype is a compiled function body: everything the VM needs to start a
// new call frame, per spec.md §3 ("Function Prototype").
type Prototype struct {
	// Name is the defining symbol's name, or "" for an anonymous lambda or
	// the top-level program body. Used only for disassembly and diagnostics.
	Name string

	// Argc is the number of required fixed parameters.
	Argc int
	// IsVariadic reports whether the last formal is a rest parameter.
	IsVariadic bool

	Instructions []Instruction

	// UpvalueDescriptors describes how to populate this prototype's upvalue
	// vector at closure-creation time.
	UpvalueDescriptors []resolver.UpvalueDesc

	// MaxLocals is the local-slot high-water mark computed by the resolver.
	MaxLocals int
}
