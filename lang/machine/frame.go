package machine

import (
	"github.com/westhood/pylisp/lang/compiler"
	"github.com/westhood/pylisp/lang/value"
)

// Frame is one activation record, per spec.md §3 ("Frame (runtime)").
type Frame struct {
	Proto    *compiler.Prototype
	Upvalues []*Upvalue // the upvalue vector this frame's closure was built with

	Locals  []value.Value
	Stack   []value.Value
	Varargs value.Value // the variadic rest-list; value.Nil if the prototype is not variadic

	PC      int
	SavedPC int // index of the CALL/TAIL_CALL instruction to resume after, in the caller

	ToBeForked bool // set on the parent of a just-captured continuation's top frame

	// anchored caches the OPEN upvalues created against this frame by
	// BUILD_CLOSURE, so that two closures capturing the same local or rest
	// parameter share one Upvalue object, per spec.md §3 ("A single upvalue
	// may be shared by multiple closures").
	anchored      []*Upvalue
	localUpvalues map[int]*Upvalue
	restUpvalue   *Upvalue
}

// newFrame builds a fresh activation for proto, binding args to its
// parameters and validating arity per spec.md §4.4's CALL semantics.
func newFrame(proto *compiler.Prototype, upvalues []*Upvalue, args []value.Value) (*Frame, error) {
	if proto.IsVariadic {
		if len(args) < proto.Argc {
			return nil, &ArityMismatchError{Name: proto.Name, Want: proto.Argc, Got: len(args), Variadic: true}
		}
	} else if len(args) != proto.Argc {
		return nil, &ArityMismatchError{Name: proto.Name, Want: proto.Argc, Got: len(args)}
	}

	locals := make([]value.Value, proto.MaxLocals)
	copy(locals, args[:proto.Argc])

	varargs := value.Value(value.Nil)
	if proto.IsVariadic {
		varargs = value.NewList(args[proto.Argc:]...)
	}

	return &Frame{
		Proto:    proto,
		Upvalues: upvalues,
		Locals:   locals,
		Varargs:  varargs,
	}, nil
}

func (f *Frame) push(v value.Value) { f.Stack = append(f.Stack, v) }

func (f *Frame) pop() value.Value {
	n := len(f.Stack) - 1
	v := f.Stack[n]
	f.Stack = f.Stack[:n]
	return v
}

// anchoredLocal returns (creating if necessary) the shared upvalue anchored
// to this frame's local slot.
func (f *Frame) anchoredLocal(slot, depth int) *Upvalue {
	if f.localUpvalues == nil {
		f.localUpvalues = make(map[int]*Upvalue)
	}
	if u, ok := f.localUpvalues[slot]; ok {
		return u
	}
	u := newLocalUpvalue(f, slot, depth)
	f.localUpvalues[slot] = u
	f.anchored = append(f.anchored, u)
	return u
}

// anchoredRest returns (creating if necessary) the shared upvalue anchored
// to this frame's rest parameter.
func (f *Frame) anchoredRest(depth int) *Upvalue {
	if f.restUpvalue != nil {
		return f.restUpvalue
	}
	u := newRestUpvalue(f, depth)
	f.restUpvalue = u
	f.anchored = append(f.anchored, u)
	return u
}

// closeAll closes every still-OPEN upvalue anchored to this frame,
// implementing RET's "all depths in this frame" resolution of the
// CLOSE_UPVAR ambiguity (see DESIGN.md).
func (f *Frame) closeAll() {
	for _, u := range f.anchored {
		u.close()
	}
}

// closeDepth closes every still-OPEN upvalue anchored to this frame whose
// scope depth equals depth, implementing the CLOSE_UPVAR instruction.
func (f *Frame) closeDepth(depth int) {
	for _, u := range f.anchored {
		if u.open && u.depth == depth {
			u.close()
		}
	}
}

// clone produces an independent copy of f for continuation frame-chain
// forking (spec.md §4.5): fresh locals and operand stack, shared prototype
// and upvalue vector.
func (f *Frame) clone() *Frame {
	return &Frame{
		Proto:    f.Proto,
		Upvalues: f.Upvalues,
		Locals:   append([]value.Value(nil), f.Locals...),
		Stack:    append([]value.Value(nil), f.Stack...),
		Varargs:  f.Varargs,
		PC:       f.PC,
		SavedPC:  f.SavedPC,
		// anchored/localUpvalues/restUpvalue are intentionally not copied:
		// the clone starts with no upvalues anchored to it yet. Upvalues
		// already anchored to the original frame keep pointing at the
		// original, which is exactly the "closure escaping from one
		// timeline is observably shared by the other" requirement.
	}
}
