package compiler

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/westhood/pylisp/lang/resolver"
	"github.com/westhood/pylisp/lang/value"
)

// Asm and Disasm implement the human-readable bytecode format described in
// spec.md §6 ("Debug trace format") and §2's note that this module bypasses
// the out-of-scope S-expression reader the way nenuphar's own test suite
// bypasses its parser with .asm fixtures (lang/compiler/asm.go there). The
// format differs from nenuphar's in one respect: instructions here are not
// byte-packed, so jump operands are written and read as the literal
// relative offset the generator computed, with no address/index
// translation pass.
//
// Format:
//
//	pool:
//		constants:
//			int 42
//			float 3.5
//			string "hi"
//			symbol foo
//
//	function: NAME ARGC [+variadic]
//		upvalues:
//			local SLOT DEPTH
//			rest
//			outer PARENT
//		code:
//			load_const 0
//			ret 1
//
// The last function section is the program entry, matching Pool's
// "last appended prototype is the entry" convention.

var sectionKeywords = map[string]bool{
	"pool:":      true,
	"constants:": true,
	"function:":  true,
	"upvalues:":  true,
	"code:":      true,
}

// Asm parses the textual format into a ready-to-run Pool.
func Asm(src []byte) (*Pool, error) {
	a := &asmParser{s: bufio.NewScanner(bytes.NewReader(src))}
	a.s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fields := a.next()
	if len(fields) == 0 || fields[0] != "pool:" {
		return nil, fmt.Errorf("asm: expected pool: section")
	}
	a.pool = &Pool{literals: []value.Value{value.TheUndefined}}

	fields = a.next()
	fields = a.constants(fields)
	if a.err != nil {
		return nil, a.err
	}

	for len(fields) > 0 && fields[0] == "function:" {
		fields = a.function(fields)
		if a.err != nil {
			return nil, a.err
		}
	}

	if len(fields) > 0 {
		return nil, fmt.Errorf("asm: unexpected section: %s", fields[0])
	}
	if len(a.pool.prototypes) == 0 {
		return nil, fmt.Errorf("asm: pool has no functions")
	}
	return a.pool, nil
}

type asmParser struct {
	s       *bufio.Scanner
	rawLine string
	pool    *Pool
	err     error
}

func (a *asmParser) next() []string {
	a.rawLine = ""
	if a.err != nil {
		return nil
	}
	for a.s.Scan() {
		line := a.s.Text()
		fields := strings.Fields(line)
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		for i, f := range fields {
			if strings.HasPrefix(f, "#") {
				fields = fields[:i]
				break
			}
		}
		a.rawLine = line
		return fields
	}
	a.err = a.s.Err()
	return nil
}

func (a *asmParser) constants(fields []string) []string {
	if a.err != nil || len(fields) == 0 || fields[0] != "constants:" {
		return fields
	}
	for fields = a.next(); len(fields) > 0 && !sectionKeywords[fields[0]]; fields = a.next() {
		if len(fields) < 2 {
			a.err = fmt.Errorf("asm: invalid constant line: %q", a.rawLine)
			return fields
		}
		switch fields[0] {
		case "int":
			n, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				a.err = fmt.Errorf("asm: invalid int constant: %w", err)
				return fields
			}
			a.pool.AddLiteral(value.Integer(n))
		case "float":
			f, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				a.err = fmt.Errorf("asm: invalid float constant: %w", err)
				return fields
			}
			a.pool.AddLiteral(value.Float(f))
		case "string":
			rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(a.rawLine), fields[0]))
			q, err := strconv.QuotedPrefix(rest)
			var s string
			if err == nil {
				s, err = strconv.Unquote(q)
			}
			if err != nil {
				a.err = fmt.Errorf("asm: invalid string constant: %w", err)
				return fields
			}
			a.pool.AddLiteral(value.String(s))
		case "symbol":
			a.pool.AddLiteral(value.Symbol(fields[1]))
		default:
			a.err = fmt.Errorf("asm: unknown constant kind: %s", fields[0])
			return fields
		}
	}
	return fields
}

func (a *asmParser) function(fields []string) []string {
	if len(fields) < 3 {
		a.err = fmt.Errorf("asm: invalid function header: %q", a.rawLine)
		return nil
	}
	name := fields[1]
	argc, err := strconv.Atoi(fields[2])
	if err != nil {
		a.err = fmt.Errorf("asm: invalid argc: %w", err)
		return nil
	}
	variadic := false
	for _, f := range fields[3:] {
		if f == "+variadic" {
			variadic = true
		}
	}

	proto := &Prototype{Name: name, Argc: argc, IsVariadic: variadic}

	fields = a.next()
	fields = a.upvalues(proto, fields)
	fields = a.code(proto, fields)
	if a.err != nil {
		return nil
	}

	a.pool.AddPrototype(proto)
	return fields
}

func (a *asmParser) upvalues(proto *Prototype, fields []string) []string {
	if a.err != nil || len(fields) == 0 || fields[0] != "upvalues:" {
		return fields
	}
	for fields = a.next(); len(fields) > 0 && !sectionKeywords[fields[0]]; fields = a.next() {
		switch fields[0] {
		case "local":
			if len(fields) != 3 {
				a.err = fmt.Errorf("asm: invalid local upvalue: %q", a.rawLine)
				return fields
			}
			slot, err1 := strconv.Atoi(fields[1])
			depth, err2 := strconv.Atoi(fields[2])
			if err1 != nil || err2 != nil {
				a.err = fmt.Errorf("asm: invalid local upvalue operands: %q", a.rawLine)
				return fields
			}
			proto.UpvalueDescriptors = append(proto.UpvalueDescriptors, resolver.UpvalueDesc{Kind: resolver.FromLocal, Slot: slot, Depth: depth})
		case "rest":
			proto.UpvalueDescriptors = append(proto.UpvalueDescriptors, resolver.UpvalueDesc{Kind: resolver.FromRest})
		case "outer":
			if len(fields) != 2 {
				a.err = fmt.Errorf("asm: invalid outer upvalue: %q", a.rawLine)
				return fields
			}
			parent, err := strconv.Atoi(fields[1])
			if err != nil {
				a.err = fmt.Errorf("asm: invalid outer upvalue operand: %q", a.rawLine)
				return fields
			}
			proto.UpvalueDescriptors = append(proto.UpvalueDescriptors, resolver.UpvalueDesc{Kind: resolver.FromOuter, Parent: parent})
		default:
			a.err = fmt.Errorf("asm: unknown upvalue kind: %s", fields[0])
			return fields
		}
	}
	return fields
}

func (a *asmParser) code(proto *Prototype, fields []string) []string {
	if a.err != nil || len(fields) == 0 || fields[0] != "code:" {
		a.err = fmt.Errorf("asm: expected code: section for function %s", proto.Name)
		return fields
	}
	maxSlot := -1
	for fields = a.next(); len(fields) > 0 && !sectionKeywords[fields[0]]; fields = a.next() {
		op, ok := OpcodeByName(fields[0])
		if !ok {
			a.err = fmt.Errorf("asm: unknown opcode: %s", fields[0])
			return fields
		}
		arg := 0
		if needsOperand(op) {
			if len(fields) < 2 {
				a.err = fmt.Errorf("asm: opcode %s requires an operand", fields[0])
				return fields
			}
			var err error
			arg, err = decodeOperand(op, fields[1])
			if err != nil {
				a.err = err
				return fields
			}
		}
		if op == LOAD_LOCAL || op == SET_LOCAL {
			if arg > maxSlot {
				maxSlot = arg
			}
		}
		proto.Instructions = append(proto.Instructions, Instruction{Op: op, Arg: int32(arg)})
	}
	if proto.MaxLocals <= maxSlot {
		proto.MaxLocals = maxSlot + 1
	}
	return fields
}

func needsOperand(op Opcode) bool {
	switch op {
	case LOAD_VARG, HALT, BUILD_CONTINUATION:
		return false
	}
	return true
}

func decodeOperand(op Opcode, s string) (int, error) {
	if op == BINOP {
		if id, ok := BinOpByName(s); ok {
			return int(id), nil
		}
		return 0, fmt.Errorf("asm: unknown binop: %s", s)
	}
	if op == UNOP {
		if id, ok := UnOpByName(s); ok {
			return int(id), nil
		}
		return 0, fmt.Errorf("asm: unknown unop: %s", s)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("asm: invalid operand %q: %w", s, err)
	}
	return n, nil
}

// Disasm writes pool to the textual format Asm reads back, annotating
// LOAD_CONST and LOAD_GLOBAL with the printed literal value and BINOP/UNOP
// with the symbolic operator name, per spec.md §6's debug trace format.
// The constants section has no syntax for pairs or nil, so a pool holding
// such a literal (as produced by quote) is rejected with an error.
func Disasm(pool *Pool) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("pool:\n")
	if len(pool.literals) > 1 {
		buf.WriteString("\tconstants:\n")
		for i, lit := range pool.literals {
			if i == 0 {
				continue // reserved Undefined slot, never re-emitted
			}
			switch v := lit.(type) {
			case value.Integer:
				fmt.Fprintf(&buf, "\t\tint %d\t# %03d\n", int64(v), i)
			case value.Float:
				fmt.Fprintf(&buf, "\t\tfloat %g\t# %03d\n", float64(v), i)
			case value.String:
				fmt.Fprintf(&buf, "\t\tstring %q\t# %03d\n", string(v), i)
			case value.Symbol:
				fmt.Fprintf(&buf, "\t\tsymbol %s\t# %03d\n", string(v), i)
			default:
				return nil, fmt.Errorf("disasm: unsupported literal type at index %d: %T", i, lit)
			}
		}
	}
	buf.WriteString("\n")

	for pi, proto := range pool.prototypes {
		if pi > 0 {
			buf.WriteString("\n")
		}
		name := proto.Name
		if name == "" {
			name = fmt.Sprintf("fn%d", pi)
		}
		fmt.Fprintf(&buf, "function: %s %d", name, proto.Argc)
		if proto.IsVariadic {
			buf.WriteString(" +variadic")
		}
		buf.WriteString("\n")

		if len(proto.UpvalueDescriptors) > 0 {
			buf.WriteString("\tupvalues:\n")
			for i, uv := range proto.UpvalueDescriptors {
				switch uv.Kind {
				case resolver.FromLocal:
					fmt.Fprintf(&buf, "\t\tlocal %d %d\t# %03d\n", uv.Slot, uv.Depth, i)
				case resolver.FromRest:
					fmt.Fprintf(&buf, "\t\trest\t# %03d\n", i)
				case resolver.FromOuter:
					fmt.Fprintf(&buf, "\t\touter %d\t# %03d\n", uv.Parent, i)
				}
			}
		}

		buf.WriteString("\tcode:\n")
		for i, ins := range proto.Instructions {
			writeInstruction(&buf, pool, ins, i)
		}
	}

	return buf.Bytes(), nil
}

// printedLiteral renders v the way a reader would need to see it back,
// per spec.md §6's debug trace format: strings are quoted, everything else
// prints as its ordinary String().
func printedLiteral(v value.Value) string {
	if s, ok := v.(value.String); ok {
		return s.Quoted()
	}
	return v.String()
}

func writeInstruction(buf *bytes.Buffer, pool *Pool, ins Instruction, idx int) {
	switch ins.Op {
	case BINOP:
		fmt.Fprintf(buf, "\t\tbinop %s\t# %03d\n", BinOpID(ins.Arg), idx)
	case UNOP:
		fmt.Fprintf(buf, "\t\tunop %s\t# %03d\n", UnOpID(ins.Arg), idx)
	case LOAD_CONST, LOAD_GLOBAL, SET_GLOBAL:
		comment := ""
		if int(ins.Arg) < len(pool.literals) {
			comment = "\t# " + printedLiteral(pool.literals[ins.Arg])
		}
		fmt.Fprintf(buf, "\t\t%s %d%s\t# %03d\n", ins.Op, ins.Arg, comment, idx)
	case LOAD_VARG, HALT, BUILD_CONTINUATION:
		fmt.Fprintf(buf, "\t\t%s\t# %03d\n", ins.Op, idx)
	default:
		fmt.Fprintf(buf, "\t\t%s %d\t# %03d\n", ins.Op, ins.Arg, idx)
	}
}
