package machine

import "github.com/westhood/pylisp/lang/value"

// Upvalue is the indirection cell described in spec.md §3 ("Upvalue
// (runtime)"): OPEN while it reads and writes through a live frame slot (or
// that frame's rest parameter), CLOSED once it owns its value directly.
type Upvalue struct {
	open   bool
	frame  *Frame
	slot   int
	depth  int
	isRest bool
	closed value.Value
}

func newLocalUpvalue(fr *Frame, slot, depth int) *Upvalue {
	return &Upvalue{open: true, frame: fr, slot: slot, depth: depth}
}

func newRestUpvalue(fr *Frame, depth int) *Upvalue {
	return &Upvalue{open: true, frame: fr, isRest: true, depth: depth}
}

// Get reads the current value through the upvalue.
func (u *Upvalue) Get() value.Value {
	if !u.open {
		return u.closed
	}
	if u.isRest {
		return u.frame.Varargs
	}
	return u.frame.Locals[u.slot]
}

// Set writes through the upvalue.
func (u *Upvalue) Set(v value.Value) {
	if !u.open {
		u.closed = v
		return
	}
	if u.isRest {
		u.frame.Varargs = v
		return
	}
	u.frame.Locals[u.slot] = v
}

// close transitions the upvalue to CLOSED, capturing its current value.
// Closing is idempotent, per spec.md §3.
func (u *Upvalue) close() {
	if !u.open {
		return
	}
	u.closed = u.Get()
	u.open = false
	u.frame = nil
}
