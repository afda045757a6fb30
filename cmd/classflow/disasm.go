package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/classflow/classflow/core/analysis"
	"github.com/classflow/classflow/core/classfile"
	"github.com/classflow/classflow/core/opcodes"
)

var disasmCommand = &cli.Command{
	Action:    withSession(disasm),
	Name:      "disasm",
	Usage:     "Disassemble method bodies",
	ArgsUsage: "<class|dir|jar>...",
	Flags:     sessionFlags(),
	Description: `
Prints every instruction with its sequence index, byte offset, source line,
static stack effect and incoming branches, followed by the exception table.`,
}

var (
	branchColor = color.New(color.FgYellow).SprintFunc()
	invokeColor = color.New(color.FgCyan).SprintFunc()
	exitColor   = color.New(color.FgRed).SprintFunc()
	headerColor = color.New(color.Bold).SprintFunc()
)

func mnemonic(ins *classfile.Instruction) string {
	text := ins.String()
	switch ins.Info().Kind {
	case opcodes.KindIf, opcodes.KindGoto, opcodes.KindSwitch, opcodes.KindSubroutine:
		return branchColor(text)
	case opcodes.KindInvoke:
		return invokeColor(text)
	case opcodes.KindReturn, opcodes.KindThrow, opcodes.KindRet:
		return exitColor(text)
	}
	return text
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetColumnSeparator(" ")
	table.SetHeaderLine(false)
	return table
}

func disasm(ctx *cli.Context, s *session) error {
	w := ctx.App.Writer
	for _, cf := range s.classes {
		for _, m := range s.methods(cf) {
			writeDisasm(w, cf, m)
		}
	}
	return nil
}

func writeDisasm(w io.Writer, cf *classfile.ClassFile, m *classfile.MethodInfo) {
	code := m.Code()
	loops := analysis.NewLoops(code)
	fmt.Fprintln(w, headerColor(methodTitle(cf, m)))

	table := newTable(w, "#", "Offset", "Line", "Instruction", "Pops", "Pushes", "From", "Branch")
	for i := 0; i < code.Len(); i++ {
		ins := code.Instruction(i)
		line := ""
		if n, ok := code.LineNumberOf(i); ok {
			line = strconv.Itoa(n)
		}
		from := ""
		if code.HasIncoming(i) {
			from = joinInts(toInts(code.Incoming(i)))
		}
		if code.IsHandlerEntry(i) {
			from = joinNonEmpty(from, "handler")
		}
		kind := ""
		if ins.IsBranch() {
			kind = loops.Kind(i).String()
		}
		table.Append([]string{
			strconv.Itoa(i),
			strconv.Itoa(ins.Offset()),
			line,
			mnemonic(ins),
			strconv.Itoa(ins.Pops()),
			strconv.Itoa(ins.Pushes()),
			from,
			kind,
		})
	}
	table.Render()

	if len(code.Handlers) > 0 {
		handlers := newTable(w, "Start", "End", "Handler", "Catch")
		for _, h := range code.Handlers {
			catch := h.CatchName()
			if catch == "" {
				catch = "any"
			}
			handlers.Append([]string{strconv.Itoa(h.Start), strconv.Itoa(h.End), strconv.Itoa(h.Handler), catch})
		}
		handlers.Render()
	}
	fmt.Fprintln(w)
}

func toInts(s []int32) []int {
	out := make([]int, len(s))
	for i, v := range s {
		out[i] = int(v)
	}
	return out
}

func joinInts(s []int) string {
	out := ""
	for i, v := range s {
		if i > 0 {
			out += ","
		}
		out += strconv.Itoa(v)
	}
	return out
}

func joinNonEmpty(a, b string) string {
	if a == "" {
		return b
	}
	return a + "," + b
}
