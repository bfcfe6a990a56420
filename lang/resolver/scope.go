package resolver

import "fmt"

// Kind classifies how an identifier reference resolves, per spec.md §4.3.
type Kind uint8

const (
	// Undefined is never actually returned by Resolve; it exists only as the
	// zero value for a Binding that failed to resolve.
	Undefined Kind = iota
	// Global is a reference to the host environment, either because the name
	// was declared with a top-level define or because no lexical binding
	// was found for it at all.
	Global
	// Local is a reference to a slot in the current prototype.
	Local
	// Rest is a reference to the variadic tail parameter of the current
	// prototype.
	Rest
	// Upvalue is a reference to a binding captured from an enclosing
	// prototype.
	Upvalue
)

func (k Kind) String() string {
	switch k {
	case Global:
		return "global"
	case Local:
		return "local"
	case Rest:
		return "rest"
	case Upvalue:
		return "upvalue"
	default:
		return fmt.Sprintf("undefined(%d)", k)
	}
}

// Binding is the result of adding or resolving a name.
type Binding struct {
	Kind Kind
	// Index is the constant-pool index (Global), the local slot (Local), or
	// the upvalue index (Upvalue). Unused for Rest.
	Index int
}

// UpvalueKind classifies one entry of a prototype's upvalue descriptor list.
type UpvalueKind uint8

const (
	// FromLocal captures a slot of the immediately enclosing prototype.
	FromLocal UpvalueKind = iota
	// FromRest captures the immediately enclosing prototype's rest parameter.
	FromRest
	// FromOuter shares an upvalue already captured by the immediately
	// enclosing prototype (chains the capture through an intermediate
	// function that doesn't itself reference the binding).
	FromOuter
)

// UpvalueDesc is one entry of a Prototype's upvalue descriptor list, as
// described in spec.md §3 ("Function Prototype").
type UpvalueDesc struct {
	Kind UpvalueKind
	// Slot and Depth are set for FromLocal: the local slot and the scope
	// depth that anchors the upvalue in the defining frame.
	Slot, Depth int
	// Parent is set for FromOuter: the index into the immediately enclosing
	// prototype's own upvalue list to share.
	Parent int
}

// binding is the resolver's internal record for one name visible in one
// lexical scope.
type binding struct {
	kind  Kind
	index int
}

// funcScope holds the per-prototype compile-time state: the local slot
// counter and the upvalue descriptor list being built for it.
type funcScope struct {
	parent    *funcScope
	nextSlot  int
	maxLocals int
	upvalues  []UpvalueDesc
}

// lexScope is one pushed block (function body, let body, or the top-level
// program body). Several lexScopes may share the same owning funcScope
// (nested lets inside one lambda).
type lexScope struct {
	parent *lexScope
	owner  *funcScope
	depth  int
	isRoot bool
	names  map[string]*binding
}
