package machine

import (
	"fmt"

	"github.com/westhood/pylisp/lang/compiler"
)

// Closure is a runtime pairing of a prototype with the upvalue vector
// captured for it, per spec.md §3.
type Closure struct {
	Proto    *compiler.Prototype
	Upvalues []*Upvalue
}

func (c *Closure) String() string {
	if c.Proto.Name != "" {
		return fmt.Sprintf("#<closure %s>", c.Proto.Name)
	}
	return fmt.Sprintf("#<closure %p>", c)
}

func (*Closure) Type() string { return "closure" }

// Continuation is a first-class snapshot of a frame chain captured at a
// call/cc site, per spec.md §3 ("Continuation (runtime)").
type Continuation struct {
	Frames []*Frame
}

func (c *Continuation) String() string { return fmt.Sprintf("#<continuation %p>", c) }
func (*Continuation) Type() string     { return "continuation" }
