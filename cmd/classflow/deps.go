package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/classflow/classflow/core/analysis"
	"github.com/classflow/classflow/core/classfile"
	"github.com/classflow/classflow/log"
)

var depsCommand = &cli.Command{
	Action:    withSession(deps),
	Name:      "deps",
	Usage:     "Show the stack producers and consumers of every instruction",
	ArgsUsage: "<class|dir|jar>...",
	Flags:     sessionFlags(),
	Description: `
Simulates the operand stack of every selected method and lists, per
instruction, which instructions produced each consumed argument and which
instructions consume the produced value. Results are memoized in the
configured dependency cache.`,
}

func deps(ctx *cli.Context, s *session) error {
	a, err := s.Analyzer()
	if err != nil {
		return err
	}
	w := ctx.App.Writer
	failed := 0
	for _, cf := range s.classes {
		for _, m := range s.methods(cf) {
			d, err := a.StackDependencies(cf, m)
			if err != nil {
				if !a.Config().BestEffort {
					return err
				}
				log.Error("Stack analysis failed", "class", cf.Name(), "method", m, "err", err)
				failed++
				continue
			}
			writeDeps(w, cf, m, d)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d methods could not be analyzed", failed)
	}
	return nil
}

func formatProducers(p []int) string {
	parts := make([]string, len(p))
	for i, v := range p {
		if v == analysis.NoProducer {
			parts[i] = "exc"
		} else {
			parts[i] = strconv.Itoa(v)
		}
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func writeDeps(w io.Writer, cf *classfile.ClassFile, m *classfile.MethodInfo, d *analysis.StackDependencies) {
	code := m.Code()
	fmt.Fprintln(w, headerColor(methodTitle(cf, m)))
	table := newTable(w, "#", "Instruction", "Arguments", "Consumers")
	for i := 0; i < code.Len(); i++ {
		args := make([]string, d.NumArguments(i))
		for arg := range args {
			args[arg] = formatProducers(d.Producers(i, arg))
		}
		consumers := joinInts(d.Consumers(i))
		if !d.Reachable(i) {
			consumers = "unreachable"
		}
		table.Append([]string{strconv.Itoa(i), mnemonic(code.Instruction(i)), strings.Join(args, " "), consumers})
	}
	table.Render()
	fmt.Fprintf(w, "computed max_stack=%d declared=%d\n\n", d.MaxStack, code.MaxStack())
}
