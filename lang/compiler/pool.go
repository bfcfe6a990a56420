package compiler

import "github.com/westhood/pylisp/lang/value"

// Pool is the constant pool of one compiled program: the deduplicated
// literal table shared by every prototype, plus the append-only table of
// prototypes themselves, per spec.md §3 ("Constant Pool").
//
// Index 0 of the literal table always holds value.TheUndefined, reserved so
// that a zeroed Instruction.Arg never aliases a meaningful literal by
// accident.
type Pool struct {
	literals   []value.Value
	prototypes []*Prototype
}

// NewPool creates an empty Pool with its reserved index 0 slot populated.
func NewPool() *Pool {
	return &Pool{literals: []value.Value{value.TheUndefined}}
}

// AddLiteral interns v into the literal table, returning its index. A
// second request for a value.Equal literal returns the same index rather
// than appending a duplicate.
func (p *Pool) AddLiteral(v value.Value) int {
	for i, existing := range p.literals {
		if value.Equal(existing, v) {
			return i
		}
	}
	p.literals = append(p.literals, v)
	return len(p.literals) - 1
}

// AddPrototype appends proto to the prototype table, always growing it:
// prototypes are never deduplicated, since two syntactically identical
// lambdas at different call sites are still distinct closures.
func (p *Pool) AddPrototype(proto *Prototype) int {
	p.prototypes = append(p.prototypes, proto)
	return len(p.prototypes) - 1
}

// Literal returns the literal stored at index i.
func (p *Pool) Literal(i int) value.Value { return p.literals[i] }

// Literals returns the full literal table, in index order.
func (p *Pool) Literals() []value.Value { return p.literals }

// Prototype returns the prototype stored at index i.
func (p *Pool) Prototype(i int) *Prototype { return p.prototypes[i] }

// Prototypes returns the full prototype table, in index order.
func (p *Pool) Prototypes() []*Prototype { return p.prototypes }

// NumGlobals returns the length of the literal table. Every global name is
// interned there as a value.Symbol literal, so this is an upper bound on the
// number of global symbol slots; the count also includes the reserved index
// 0 and every non-symbol literal.
func (p *Pool) NumGlobals() int { return len(p.literals) }
