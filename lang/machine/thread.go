package machine

import (
	"fmt"
	"io"
	"os"

	"github.com/dolthub/swiss"

	"github.com/westhood/pylisp/lang/compiler"
	"github.com/westhood/pylisp/lang/resolver"
	"github.com/westhood/pylisp/lang/value"
)

// Thread is the virtual machine described in spec.md §4.4: one constant
// pool, one host environment, and a frame chain executed by a single
// cooperative dispatch loop (spec.md §5 — no preemption, no parallelism).
//
// Unlike nenuphar's machine.Thread, which recurses through Go's own call
// stack for every Scheme-level call (run() calling Call() calling run()
// again), this Thread's dispatch loop is iterative over an explicit frame
// slice: spec.md requires proper tail calls and first-class continuations,
// both of which need control over the frame chain that a Go-recursive
// design can't give without stack depth proportional to call depth.
type Thread struct {
	Name string

	Stdout io.Writer

	// TraceOut is where SetDebug's instruction trace is written; defaults
	// to os.Stderr so it doesn't interleave with a program's own display
	// output on Stdout.
	TraceOut io.Writer

	pool    *compiler.Pool
	globals *swiss.Map[string, value.Value]
	frames  []*Frame

	debug bool
	steps int64
}

// NewThread creates a Thread ready to run pool, seeded with the given host
// environment bindings (host callables and/or predefined global values),
// per spec.md §6's "VM host interface".
func NewThread(pool *compiler.Pool, env map[string]value.Value) *Thread {
	g := swiss.NewMap[string, value.Value](uint32(len(env)))
	for name, v := range env {
		g.Put(name, v)
	}
	return &Thread{
		Name:     "pylisp",
		Stdout:   os.Stdout,
		TraceOut: os.Stderr,
		pool:     pool,
		globals:  g,
	}
}

// SetDebug toggles instruction tracing to TraceOut (or to Stdout when
// TraceOut is nil), implementing spec.md §6's turn_debug(bool).
func (th *Thread) SetDebug(on bool) { th.debug = on }

// Global returns the current value bound to name in the host environment,
// if any.
func (th *Thread) Global(name string) (value.Value, bool) { return th.globals.Get(name) }

// SetGlobal binds name in the host environment, as SET_GLOBAL does from
// inside a running program.
func (th *Thread) SetGlobal(name string, v value.Value) { th.globals.Put(name, v) }

// Run loads the pool's entry prototype (its last-appended one, per
// spec.md §3) as the root frame and executes until the dispatch loop halts,
// matching spec.md §6's start().
func (th *Thread) Run() error {
	protos := th.pool.Prototypes()
	entry := protos[len(protos)-1]

	root, err := newFrame(entry, nil, nil)
	if err != nil {
		return err
	}
	th.frames = []*Frame{root}

	for len(th.frames) > 0 {
		fr := th.frames[len(th.frames)-1]

		if fr.PC >= len(fr.Proto.Instructions) {
			if len(th.frames) == 1 {
				// The top-level prototype has no RET; running past the end
				// of its instructions is normal termination.
				return nil
			}
			return fmt.Errorf("pc ran off the end of a non-toplevel function %q", fr.Proto.Name)
		}

		ins := fr.Proto.Instructions[fr.PC]
		fr.PC++

		if th.debug {
			th.trace(fr, ins)
		}

		if err := th.step(fr, ins); err != nil {
			return err
		}
	}
	return nil
}

// step executes one instruction against fr, the current top frame. It may
// grow or shrink th.frames (CALL/TAIL_CALL/RET/BUILD_CONTINUATION).
func (th *Thread) step(fr *Frame, ins compiler.Instruction) error {
	switch ins.Op {
	case compiler.LOAD_LOCAL:
		v := fr.Locals[ins.Arg]
		if v == nil {
			return &UndefinedLocalError{Slot: int(ins.Arg)}
		}
		fr.push(v)

	case compiler.SET_LOCAL:
		fr.Locals[ins.Arg] = fr.pop()

	case compiler.LOAD_GLOBAL:
		name := string(th.pool.Literal(int(ins.Arg)).(value.Symbol))
		v, ok := th.globals.Get(name)
		if !ok {
			return &UnboundGlobalError{Name: name}
		}
		fr.push(v)

	case compiler.SET_GLOBAL:
		name := string(th.pool.Literal(int(ins.Arg)).(value.Symbol))
		th.globals.Put(name, fr.pop())

	case compiler.LOAD_UPVAR:
		fr.push(fr.Upvalues[ins.Arg].Get())

	case compiler.SET_UPVAR:
		fr.Upvalues[ins.Arg].Set(fr.pop())

	case compiler.LOAD_VARG:
		fr.push(fr.Varargs)

	case compiler.LOAD_CONST:
		fr.push(th.pool.Literal(int(ins.Arg)))

	case compiler.BINOP:
		b, a := fr.pop(), fr.pop()
		v, err := applyBinOp(compiler.BinOpID(ins.Arg), a, b)
		if err != nil {
			return err
		}
		fr.push(v)

	case compiler.UNOP:
		a := fr.pop()
		v, err := applyUnOp(compiler.UnOpID(ins.Arg), a)
		if err != nil {
			return err
		}
		fr.push(v)

	case compiler.CALL:
		return th.call(fr, int(ins.Arg), false)

	case compiler.TAIL_CALL:
		return th.call(fr, int(ins.Arg), true)

	case compiler.RET:
		return th.ret(int(ins.Arg))

	case compiler.JUMP:
		jumpPC := fr.PC - 1
		fr.PC = jumpPC + int(ins.Arg)

	case compiler.TEST:
		jumpPC := fr.PC - 1
		if !Truthy(fr.pop()) {
			fr.PC = jumpPC + int(ins.Arg)
		}

	case compiler.POP:
		for i := 0; i < int(ins.Arg); i++ {
			fr.pop()
		}

	case compiler.CLOSE_UPVAR:
		fr.closeDepth(int(ins.Arg))

	case compiler.BUILD_CLOSURE:
		th.buildClosure(fr, int(ins.Arg))

	case compiler.BUILD_CONTINUATION:
		th.buildContinuation()

	case compiler.HALT:
		th.frames = nil

	default:
		return &UnknownOpcodeError{Op: ins.Op}
	}
	return nil
}

// call implements CALL and TAIL_CALL, dispatching by callee kind per
// spec.md §4.4.
func (th *Thread) call(fr *Frame, argc int, tail bool) error {
	args := make([]value.Value, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = fr.pop()
	}
	callee := fr.pop()
	callPC := fr.PC - 1

	switch c := callee.(type) {
	case *Closure:
		newFr, err := newFrame(c.Proto, c.Upvalues, args)
		if err != nil {
			return err
		}
		if tail {
			newFr.SavedPC = fr.SavedPC
			th.frames[len(th.frames)-1] = newFr
		} else {
			fr.SavedPC = callPC
			th.frames = append(th.frames, newFr)
		}

	case *Continuation:
		if len(args) != 1 {
			return &ArityMismatchError{Name: "continuation", Want: 1, Got: len(args)}
		}
		th.frames = c.Frames
		top := th.frames[len(th.frames)-1]
		top.PC = top.SavedPC + 1
		top.push(args[0])

	case *value.HostFn:
		results, err := c.Fn(args)
		if err != nil {
			return err
		}
		for _, v := range results {
			fr.push(v)
		}

	default:
		return &TypeMismatchError{Op: "call", Want: "callable", Got: callee.Type()}
	}
	return nil
}

// ret implements RET n, including the upvalue-closing and continuation
// re-forking it triggers per spec.md §4.4 and §4.5.
func (th *Thread) ret(n int) error {
	if n != 0 && n != 1 {
		return fmt.Errorf("ret: operand must be 0 or 1, got %d", n)
	}
	last := len(th.frames) - 1
	fr := th.frames[last]

	var results []value.Value
	if n == 1 {
		results = []value.Value{fr.pop()}
	}

	fr.closeAll()
	th.frames = th.frames[:last]
	if len(th.frames) == 0 {
		return nil
	}

	if th.frames[len(th.frames)-1].ToBeForked {
		newChain, _ := forkChain(th.frames)
		th.frames = newChain
	}

	newTop := th.frames[len(th.frames)-1]
	newTop.PC = newTop.SavedPC + 1
	for _, v := range results {
		newTop.push(v)
	}
	return nil
}

// buildClosure implements BUILD_CLOSURE const.
func (th *Thread) buildClosure(fr *Frame, constIdx int) {
	proto := th.pool.Prototype(constIdx)
	upvals := make([]*Upvalue, len(proto.UpvalueDescriptors))
	for i, d := range proto.UpvalueDescriptors {
		switch d.Kind {
		case resolver.FromLocal:
			upvals[i] = fr.anchoredLocal(d.Slot, d.Depth)
		case resolver.FromRest:
			upvals[i] = fr.anchoredRest(d.Depth)
		case resolver.FromOuter:
			upvals[i] = fr.Upvalues[d.Parent]
		}
	}
	fr.push(&Closure{Proto: proto, Upvalues: upvals})
}

// buildContinuation implements BUILD_CONTINUATION. The compiled form of
// `(call/cc e)` is `<compile e>; BUILD_CONTINUATION; CALL 1`.
//
// The closure for e is on top of the stack when this runs. It is popped off
// before forking, so the captured snapshot's operand stack has nothing left
// over from the call/cc call site — resuming the continuation later needs
// only to push its single argument, exactly as if CALL 1 had returned it.
// The closure is
// then pushed back, along with the continuation, onto the chain that keeps
// executing, so the following CALL 1 sees both its callee and its one
// argument.
//
// The captured frame's SavedPC is set to the current PC, i.e. the index of
// the CALL 1 that follows — fetch-then-increment already advanced PC past
// BUILD_CONTINUATION by the time this runs, so invoking the continuation
// later (PC = SavedPC + 1) resumes one past that CALL 1, per §4.5's "sentinel
// saved_pc ... pointing one past the capture site."
func (th *Thread) buildContinuation() {
	cur := th.frames[len(th.frames)-1]
	callSitePC := cur.PC
	closure := cur.pop()

	newChain, captured := forkChain(th.frames)
	captured[len(captured)-1].SavedPC = callSitePC

	th.frames = newChain
	top := th.frames[len(th.frames)-1]
	top.push(closure)
	top.push(&Continuation{Frames: captured})
}

// printedLiteral renders v the way a reader would need to see it back, per
// spec.md §6's debug trace format.
func printedLiteral(v value.Value) string {
	if s, ok := v.(value.String); ok {
		return s.Quoted()
	}
	return v.String()
}

func (th *Thread) trace(fr *Frame, ins compiler.Instruction) {
	w := th.TraceOut
	if w == nil {
		w = th.Stdout
	}
	switch ins.Op {
	case compiler.BINOP:
		fmt.Fprintf(w, "%s %s\n", ins.Op, compiler.BinOpID(ins.Arg))
	case compiler.UNOP:
		fmt.Fprintf(w, "%s %s\n", ins.Op, compiler.UnOpID(ins.Arg))
	case compiler.LOAD_CONST, compiler.LOAD_GLOBAL:
		fmt.Fprintf(w, "%s %d\t# %s\n", ins.Op, ins.Arg, printedLiteral(th.pool.Literal(int(ins.Arg))))
	default:
		fmt.Fprintf(w, "%s %d\n", ins.Op, ins.Arg)
	}
}
