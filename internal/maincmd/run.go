package maincmd

import (
	"context"
	"os"

	"github.com/mna/mainer"

	"github.com/westhood/pylisp/internal/host"
	"github.com/westhood/pylisp/lang/compiler"
	"github.com/westhood/pylisp/lang/machine"
)

func (c *Cmd) Run(_ context.Context, stdio mainer.Stdio, args []string) error {
	src, err := os.ReadFile(args[0])
	if err != nil {
		return printError(stdio, err)
	}

	pool, err := compiler.Asm(src)
	if err != nil {
		return printError(stdio, err)
	}

	th := machine.NewThread(pool, host.Env(stdio.Stdout))
	th.Stdout = stdio.Stdout
	if c.Trace {
		th.SetDebug(true)
		th.TraceOut = stdio.Stderr
	}

	if err := th.Run(); err != nil {
		return printError(stdio, err)
	}
	return nil
}
