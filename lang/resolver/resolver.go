// Package resolver implements the symbol resolver / scope table described in
// spec.md §4.3: it maintains the lexical-scope stack during compilation,
// classifies each identifier reference as global, local, variadic-rest, or
// upvalue, and synthesizes upvalue chains through intermediate prototypes.
//
// Unlike github.com/mna/nenuphar's lang/resolver, which runs as a pass
// wholly separate from code generation (needed there for goto/label
// resolution with whole-block lookahead), this resolver is driven live by
// the code generator: it has no tree-walking entry point of its own,
// because the language it serves has no forward-reference scoping puzzles
// — see DESIGN.md.
package resolver

import "fmt"

// DuplicateBindingError is returned by Table.Add and Table.AddRest when name
// is already bound in the current (non-global) scope.
type DuplicateBindingError struct{ Name string }

func (e *DuplicateBindingError) Error() string {
	return fmt.Sprintf("already declared in this scope: %s", e.Name)
}

// Table is the compile-time scope stack for one program. It is shared by
// every prototype compiled for that program, since upvalue synthesis must
// see across prototype boundaries.
type Table struct {
	addGlobal func(name string) int

	curFunc   *funcScope
	cur       *lexScope
	nextDepth int
	slotMarks []int // per-pushed-scope snapshot of owner.nextSlot, for release on pop
}

// NewTable creates a resolver Table. addGlobal is called whenever a name is
// classified as global for the first time it is added (via Add at the root
// scope) or referenced without any lexical binding; it must return the
// constant-pool index holding that symbol name (idempotent — the same name
// always yields the same index, per the constant pool's literal dedup
// rule).
func NewTable(addGlobal func(name string) int) *Table {
	return &Table{addGlobal: addGlobal}
}

// PushFunction starts a new prototype's scope. root must be true exactly
// once, for the top-level program's own implicit function.
func (t *Table) PushFunction(root bool) {
	t.curFunc = &funcScope{parent: t.curFunc}
	t.pushScope(root)
}

// PopFunction closes the current prototype's scope and returns the final
// local-slot high-water mark and the upvalue descriptor list synthesized
// for it.
func (t *Table) PopFunction() (maxLocals int, upvalues []UpvalueDesc) {
	fs := t.curFunc
	t.popScope()
	t.curFunc = fs.parent
	return fs.maxLocals, fs.upvalues
}

// PushScope starts a new let-style block scope within the current
// prototype and returns its scope depth, used later to emit CLOSE_UPVAR.
func (t *Table) PushScope() int {
	t.pushScope(false)
	return t.cur.depth
}

// PopScope closes the current block scope, releasing the local slots it
// allocated (the high-water mark is never lowered).
func (t *Table) PopScope() {
	t.popScope()
}

// pushScope is the shared implementation for PushFunction and PushScope.
func (t *Table) pushScope(root bool) {
	t.nextDepth++
	t.cur = &lexScope{
		parent: t.cur,
		owner:  t.curFunc,
		depth:  t.nextDepth,
		isRoot: root,
		names:  make(map[string]*binding),
	}
	t.slotMarks = append(t.slotMarks, t.curFunc.nextSlot)
}

// popScope pops the current lexScope and releases any local slots it
// opened back to the prototype's free-slot counter, per spec.md §4.2's
// `let` rule ("decrement next_free by n; max_locals unchanged").
func (t *Table) popScope() {
	mark := t.slotMarks[len(t.slotMarks)-1]
	t.slotMarks = t.slotMarks[:len(t.slotMarks)-1]
	t.cur.owner.nextSlot = mark
	t.cur = t.cur.parent
}

// AtGlobalScope reports whether the current scope is the program's single
// root scope, where `define` creates a Global binding instead of a Local
// one.
func (t *Table) AtGlobalScope() bool { return t.cur.isRoot }

// CurrentDepth returns the scope depth of the innermost currently pushed
// scope, used to tag CLOSE_UPVAR.
func (t *Table) CurrentDepth() int { return t.cur.depth }

// Add binds name in the current scope: as a Global if the current scope is
// the root scope, or as a fresh Local slot otherwise. Redeclaring a name
// already bound in a non-root scope is a DuplicateBindingError; redeclaring
// a name at the root scope rebinds it (ordinary top-level `define` re-use,
// see DESIGN.md Open Question resolution).
func (t *Table) Add(name string) (Binding, error) {
	if t.cur.isRoot {
		idx := t.addGlobal(name)
		t.cur.names[name] = &binding{kind: Global, index: idx}
		return Binding{Kind: Global, Index: idx}, nil
	}

	if _, exists := t.cur.names[name]; exists {
		return Binding{}, &DuplicateBindingError{Name: name}
	}

	fs := t.cur.owner
	slot := fs.nextSlot
	fs.nextSlot++
	if fs.nextSlot > fs.maxLocals {
		fs.maxLocals = fs.nextSlot
	}
	t.cur.names[name] = &binding{kind: Local, index: slot}
	return Binding{Kind: Local, Index: slot}, nil
}

// AddRest binds name as the variadic tail parameter of the current
// prototype.
func (t *Table) AddRest(name string) (Binding, error) {
	if _, exists := t.cur.names[name]; exists {
		return Binding{}, &DuplicateBindingError{Name: name}
	}
	t.cur.names[name] = &binding{kind: Rest}
	return Binding{Kind: Rest}, nil
}

// Resolve classifies a reference to name, implementing spec.md §4.3's
// resolve algorithm including upvalue-chain synthesis. LOAD and SET forms
// use the same classification; the caller (the code generator) picks the
// opcode.
func (t *Table) Resolve(name string) Binding {
	for ls := t.cur; ls != nil; ls = ls.parent {
		b, ok := ls.names[name]
		if !ok {
			continue
		}
		switch b.kind {
		case Global:
			return Binding{Kind: Global, Index: b.index}
		case Upvalue:
			if ls.owner == t.curFunc {
				return Binding{Kind: Upvalue, Index: b.index}
			}
			// Cached for an enclosing prototype's upvalue list, not this
			// one's: keep searching for the defining scope.
			continue
		case Local, Rest:
			if ls.owner == t.curFunc {
				return Binding{Kind: b.kind, Index: b.index}
			}
			return t.synthesizeUpvalue(name, ls)
		}
	}

	// Not found anywhere: treat as global.
	idx := t.addGlobal(name)
	return Binding{Kind: Global, Index: idx}
}

// synthesizeUpvalue implements the upvalue-chain synthesis rule of
// spec.md §4.3 step 5.
func (t *Table) synthesizeUpvalue(name string, defining *lexScope) Binding {
	// Collect the lexScope chain from the current scope outward, up to and
	// including the defining scope.
	var chain []*lexScope
	for ls := t.cur; ; ls = ls.parent {
		chain = append(chain, ls)
		if ls == defining {
			break
		}
	}

	// Derive the distinct prototypes traversed, inward-to-outward order,
	// collapsing consecutive scopes owned by the same prototype.
	var funcs []*funcScope
	for _, ls := range chain {
		if len(funcs) == 0 || funcs[len(funcs)-1] != ls.owner {
			funcs = append(funcs, ls.owner)
		}
	}
	// Drop the outermost: that's where the symbol lives as a local/rest.
	funcs = funcs[:len(funcs)-1]
	// Reverse: now runs from the defining prototype's immediate inner child,
	// outward to the current prototype.
	for i, j := 0, len(funcs)-1; i < j; i, j = i+1, j-1 {
		funcs[i], funcs[j] = funcs[j], funcs[i]
	}

	definingBinding := defining.names[name]

	parentIdx := -1
	idxByFunc := make(map[*funcScope]int, len(funcs))
	for i, fs := range funcs {
		var desc UpvalueDesc
		if i == 0 {
			if definingBinding.kind == Rest {
				desc = UpvalueDesc{Kind: FromRest}
			} else {
				desc = UpvalueDesc{Kind: FromLocal, Slot: definingBinding.index, Depth: defining.depth}
			}
		} else {
			desc = UpvalueDesc{Kind: FromOuter, Parent: parentIdx}
		}
		fs.upvalues = append(fs.upvalues, desc)
		parentIdx = len(fs.upvalues) - 1
		idxByFunc[fs] = parentIdx
	}

	// Cache: every currently-live scope owned by one of these prototypes
	// (other than the defining one) now resolves directly to the upvalue.
	for _, ls := range chain {
		if ls == defining {
			continue
		}
		if idx, ok := idxByFunc[ls.owner]; ok {
			ls.names[name] = &binding{kind: Upvalue, index: idx}
		}
	}

	return Binding{Kind: Upvalue, Index: idxByFunc[t.curFunc]}
}
