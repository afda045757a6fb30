package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/classflow/classflow/cmd/utils"
	"github.com/classflow/classflow/core/analysis"
	"github.com/classflow/classflow/core/classfile"
)

var loopsCommand = &cli.Command{
	Action:    withSession(loops),
	Name:      "loops",
	Usage:     "List the loops of every method",
	ArgsUsage: "<class|dir|jar>...",
	Flags:     sessionFlags(utils.PathsFlag),
	Description: `
Lists every backward branch that closes a loop with its header and shape.
With --paths the paths through each loop iteration are enumerated.`,
}

func loops(ctx *cli.Context, s *session) error {
	a, err := s.Analyzer()
	if err != nil {
		return err
	}
	w := ctx.App.Writer
	withPaths := ctx.Bool(utils.PathsFlag.Name)
	for _, cf := range s.classes {
		for _, m := range s.methods(cf) {
			if err := writeLoops(w, a, cf, m, withPaths); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeLoops(w io.Writer, a *analysis.Analyzer, cf *classfile.ClassFile, m *classfile.MethodInfo, withPaths bool) error {
	l := a.Loops(cf, m)
	all := l.All()
	if len(all) == 0 {
		return nil
	}
	fmt.Fprintln(w, headerColor(methodTitle(cf, m)))
	table := newTable(w, "Branch", "Header", "Kind", "Body")
	for _, loop := range all {
		body, err := l.Body(loop.Branch)
		if err != nil {
			return err
		}
		table.Append([]string{strconv.Itoa(loop.Branch), strconv.Itoa(loop.Header), loop.Kind.String(), strconv.Itoa(len(body))})
	}
	table.Render()

	if withPaths {
		for _, loop := range all {
			set, err := a.LoopPaths(cf, m, loop.Branch)
			if err != nil {
				return err
			}
			writePaths(w, set)
		}
	}
	fmt.Fprintln(w)
	return nil
}

func writePaths(w io.Writer, set *analysis.PathSet) {
	fmt.Fprintf(w, "loop %d -> %d: %d paths", set.Branch, set.Header, len(set.Paths))
	if set.Truncated {
		fmt.Fprint(w, " (truncated)")
	}
	fmt.Fprintln(w)
	for i, p := range set.Paths {
		forks := make([]string, len(p.Forks))
		for j, f := range p.Forks {
			forks[j] = fmt.Sprintf("%d>%d", f.At, f.Took)
		}
		fmt.Fprintf(w, "  %d: %s  end=%s@%d", i, joinInts(p.Instructions), p.End, p.Last)
		if len(forks) > 0 {
			fmt.Fprintf(w, "  forks=%s", strings.Join(forks, ","))
		}
		fmt.Fprintln(w)
	}
}
