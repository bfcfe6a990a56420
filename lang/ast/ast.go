// Package ast defines the boundary syntax tree the compiler consumes. It is
// intentionally minimal: the text tokenizer, the S-expression reader, and
// the surface-syntax rewriter that desugars "(define (f x) …)" and detects
// dotted-rest parameter lists are external collaborators, out of scope for
// this module (spec.md §1). This package exists only so the compiler has a
// concrete type to walk; nothing here performs scanning or rewriting.
package ast

import "fmt"

// TokenKind tags a leaf Node.
type TokenKind uint8

const (
	// Keyword is one of the fixed special-form keywords the compiler
	// recognizes: begin, if, let, lambda, lambda_v, define, call/cc, quote.
	Keyword TokenKind = iota
	Ident
	Number
	Str
)

func (k TokenKind) String() string {
	switch k {
	case Keyword:
		return "keyword"
	case Ident:
		return "symbol"
	case Number:
		return "number"
	case Str:
		return "string"
	default:
		return fmt.Sprintf("tokenkind(%d)", k)
	}
}

// Node is either a leaf token (Atom) or an ordered sequence of children
// (List), exactly as described in spec.md §6 ("External Interfaces").
type Node interface {
	isNode()
}

// Atom is a leaf: a keyword, identifier, number or string literal.
type Atom struct {
	Kind TokenKind

	// Lit is the literal identifier/keyword spelling (Ident, Keyword) or the
	// original textual spelling of a Number/Str (for diagnostics).
	Lit string

	// Int, Float and IsFloat describe a Number atom's numeric value.
	Int     int64
	Float   float64
	IsFloat bool

	// Str is the decoded contents of a Str atom (no surrounding quotes,
	// escapes already resolved).
	Str string
}

func (*Atom) isNode() {}

// Sym returns a new Ident atom.
func Sym(name string) *Atom { return &Atom{Kind: Ident, Lit: name} }

// Kw returns a new Keyword atom.
func Kw(name string) *Atom { return &Atom{Kind: Keyword, Lit: name} }

// Int returns a new integer Number atom.
func Int(v int64) *Atom { return &Atom{Kind: Number, Int: v} }

// Flt returns a new float Number atom.
func Flt(v float64) *Atom { return &Atom{Kind: Number, Float: v, IsFloat: true} }

// Txt returns a new Str atom.
func Txt(s string) *Atom { return &Atom{Kind: Str, Str: s} }

// List is an ordered sequence of child nodes, e.g. the parsed form of
// "(if p t f)" is a List of four Atoms/Lists: the keyword "if" and the
// three sub-expressions.
type List struct {
	Children []Node
}

func (*List) isNode() {}

// L is a convenience constructor for a List of the given children.
func L(children ...Node) *List { return &List{Children: children} }
