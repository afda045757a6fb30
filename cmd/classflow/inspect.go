package main

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/urfave/cli/v2"

	"github.com/classflow/classflow/cmd/utils"
	"github.com/classflow/classflow/core/classfile"
)

var (
	poolFlag = &cli.BoolFlag{
		Name:  "pool",
		Usage: "Dump the constant pool only",
	}
	depthFlag = &cli.IntFlag{
		Name:  "depth",
		Usage: "Maximum nesting depth of the dump",
		Value: 4,
	}

	inspectCommand = &cli.Command{
		Action:    withSession(inspect),
		Name:      "inspect",
		Usage:     "Dump the parsed model of class files",
		ArgsUsage: "<class|dir|jar>...",
		Flags:     sessionFlags(poolFlag, depthFlag),
		Description: `
Dumps the in-memory model of each class: the whole class by default, the
constant pool with --pool, or the selected method bodies with --method.`,
	}
)

func inspect(ctx *cli.Context, s *session) error {
	utils.CheckExclusive(ctx, poolFlag, utils.MethodFlag)
	dumper := spew.ConfigState{
		Indent:                  "  ",
		MaxDepth:                ctx.Int(depthFlag.Name),
		DisablePointerAddresses: true,
		DisableCapacities:       true,
		SortKeys:                true,
	}
	w := ctx.App.Writer
	for _, cf := range s.classes {
		fmt.Fprintln(w, headerColor(cf.QualifiedName()))
		switch {
		case ctx.Bool(poolFlag.Name):
			cf.Pool.Entries(func(index int, e classfile.Entry) {
				fmt.Fprintf(w, "#%-5d %-18v %s\n", index, e.Tag(), e)
			})
		case s.filter != "":
			for _, m := range s.methods(cf) {
				fmt.Fprintln(w, m)
				dumper.Fdump(w, m.Code().Instructions())
			}
		default:
			dumper.Fdump(w, cf)
		}
	}
	return nil
}
