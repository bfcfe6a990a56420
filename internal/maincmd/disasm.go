package maincmd

import (
	"context"
	"os"

	"github.com/mna/mainer"

	"github.com/westhood/pylisp/lang/compiler"
)

func (c *Cmd) Disasm(_ context.Context, stdio mainer.Stdio, args []string) error {
	src, err := os.ReadFile(args[0])
	if err != nil {
		return printError(stdio, err)
	}

	pool, err := compiler.Asm(src)
	if err != nil {
		return printError(stdio, err)
	}

	out, err := compiler.Disasm(pool)
	if err != nil {
		return printError(stdio, err)
	}

	_, err = stdio.Stdout.Write(out)
	return err
}
