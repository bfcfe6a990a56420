package value

import "strings"

// Pair is a cons cell: the immutable head/tail building block of Scheme
// lists. Proper lists are chains of Pairs terminated by Nil; any other tail
// makes the list improper and it prints with dotted notation.
type Pair struct {
	Head Value
	Tail Value
}

func (Pair) Type() string { return "pair" }

// NewPair allocates a new cons cell.
func NewPair(head, tail Value) *Pair { return &Pair{Head: head, Tail: tail} }

// NewList builds a proper list from the given elements, in order.
func NewList(elems ...Value) Value {
	var out Value = Nil
	for i := len(elems) - 1; i >= 0; i-- {
		out = NewPair(elems[i], out)
	}
	return out
}

// String renders the pair using standard list notation when the tail chain
// is a proper list, and dotted notation otherwise, e.g. "(1 2 3)" or
// "(1 2 . 3)".
func (p *Pair) String() string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(p.Head.String())

	cur := p.Tail
	for {
		switch t := cur.(type) {
		case NilValue:
			b.WriteByte(')')
			return b.String()
		case *Pair:
			b.WriteByte(' ')
			b.WriteString(t.Head.String())
			cur = t.Tail
		default:
			b.WriteString(" . ")
			b.WriteString(cur.String())
			b.WriteByte(')')
			return b.String()
		}
	}
}
