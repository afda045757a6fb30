package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"
	"github.com/willf/bitset"

	"github.com/classflow/classflow/cmd/utils"
	"github.com/classflow/classflow/core/classfile"
)

var cfgCommand = &cli.Command{
	Action:    withSession(drawCFG),
	Name:      "cfg",
	Usage:     "Render the control flow graph of methods as DOT or SVG",
	ArgsUsage: "<class|dir|jar>...",
	Flags:     sessionFlags(utils.OutputFlag, utils.FormatFlag, utils.TitleFlag),
	Description: `
Splits every selected method into basic blocks and writes one cluster per
method. Exception edges are dashed. SVG output needs the graphviz dot tool.`,
}

// maxBlockLines caps the instructions printed inside one node.
const maxBlockLines = 16

type basicBlock struct {
	start, end int // [start, end)
}

// basicBlocks splits code at branch targets, handler entries and after
// every instruction that does not simply fall through.
func basicBlocks(code *classfile.Code) ([]basicBlock, []int) {
	n := code.Len()
	leaders := bitset.New(uint(n))
	leaders.Set(0)
	for i := 0; i < n; i++ {
		if code.HasIncoming(i) || code.IsHandlerEntry(i) {
			leaders.Set(uint(i))
		}
		op := code.Instruction(i).Op
		if (op.IsBranch() || !op.FallsThrough()) && i+1 < n {
			leaders.Set(uint(i + 1))
		}
	}
	var blocks []basicBlock
	blockOf := make([]int, n)
	for start, ok := leaders.NextSet(0); ok; {
		next, more := leaders.NextSet(start + 1)
		end := uint(n)
		if more {
			end = next
		}
		for i := start; i < end; i++ {
			blockOf[i] = len(blocks)
		}
		blocks = append(blocks, basicBlock{int(start), int(end)})
		start, ok = next, more
	}
	return blocks, blockOf
}

func buildDOT(cf *classfile.ClassFile, methods []*classfile.MethodInfo, title string) []byte {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	fmt.Fprintln(w, "digraph CFG {")
	fmt.Fprintln(w, "  node [shape=box, fontname=\"monospace\"];")
	if title == "" {
		title = cf.Name()
	}
	fmt.Fprintf(w, "  labelloc=\"t\";\n  label=\"%s\";\n", escapeDOT(title))

	for mi, m := range methods {
		code := m.Code()
		blocks, blockOf := basicBlocks(code)
		node := func(b int) string { return fmt.Sprintf("m%d_b%d", mi, b) }

		fmt.Fprintf(w, "  subgraph cluster_m%d {\n", mi)
		fmt.Fprintf(w, "    label=\"%s\";\n", escapeDOT(m.String()))
		// Nodes
		for bi, bb := range blocks {
			var label strings.Builder
			fmt.Fprintf(&label, "B%d [%d,%d)\\l", bi, bb.start, bb.end)
			for i := bb.start; i < bb.end; i++ {
				if i-bb.start == maxBlockLines {
					fmt.Fprintf(&label, "... %d more\\l", bb.end-i)
					break
				}
				fmt.Fprintf(&label, "%d: %s\\l", i, code.Instruction(i))
			}
			shape := ""
			if code.IsHandlerEntry(bb.start) {
				shape = ", style=rounded"
			}
			fmt.Fprintf(w, "    %s [label=\"%s\"%s];\n", node(bi), escapeDOT(label.String()), shape)
		}
		// Edges
		for bi, bb := range blocks {
			for _, s := range code.Successors(bb.end - 1) {
				fmt.Fprintf(w, "    %s -> %s;\n", node(bi), node(blockOf[s]))
			}
		}
		for _, h := range code.Handlers {
			seen := make(map[int]bool)
			for i := h.Start; i < h.End; i++ {
				if b := blockOf[i]; !seen[b] {
					seen[b] = true
					catch := h.CatchName()
					if catch == "" {
						catch = "any"
					}
					fmt.Fprintf(w, "    %s -> %s [style=dashed, label=\"%s\"];\n", node(b), node(blockOf[h.Handler]), escapeDOT(catch))
				}
			}
		}
		fmt.Fprintln(w, "  }")
	}
	fmt.Fprintln(w, "}")
	w.Flush()
	return buf.Bytes()
}

func escapeDOT(s string) string {
	// Keep backslash sequences (like \l) intact so Graphviz can interpret them.
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// graphFormat picks the output format from --format, then from the --out
// extension, defaulting to dot.
func graphFormat(format, out string) (string, error) {
	if format == "" && out != "" && strings.ToLower(filepath.Ext(out)) == ".svg" {
		format = "svg"
	}
	if format == "" {
		format = "dot"
	}
	if format != "dot" && format != "svg" {
		return "", fmt.Errorf("unknown format %q (use dot or svg)", format)
	}
	return format, nil
}

func renderSVG(dot []byte) ([]byte, error) {
	if _, err := exec.LookPath("dot"); err != nil {
		return nil, errors.New("dot not found in PATH; install graphviz or choose --format=dot")
	}
	var svgOut bytes.Buffer
	cmd := exec.Command("dot", "-Tsvg")
	cmd.Stdin = bytes.NewReader(dot)
	cmd.Stdout = &svgOut
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("dot render: %w", err)
	}
	return svgOut.Bytes(), nil
}

func drawCFG(ctx *cli.Context, s *session) error {
	out := ctx.String(utils.OutputFlag.Name)
	format, err := graphFormat(ctx.String(utils.FormatFlag.Name), out)
	if err != nil {
		return err
	}
	var graphs [][]byte
	for _, cf := range s.classes {
		methods := s.methods(cf)
		if len(methods) == 0 {
			continue
		}
		graph := buildDOT(cf, methods, ctx.String(utils.TitleFlag.Name))
		if format == "svg" {
			if graph, err = renderSVG(graph); err != nil {
				return err
			}
		}
		graphs = append(graphs, graph)
	}
	if len(graphs) == 0 {
		return errors.New("no methods selected")
	}
	var w io.Writer = ctx.App.Writer
	if out != "" {
		if len(graphs) > 1 {
			return fmt.Errorf("%d classes selected, --out takes one graph", len(graphs))
		}
		return os.WriteFile(out, graphs[0], 0o644)
	}
	for _, g := range graphs {
		if _, err := w.Write(g); err != nil {
			return err
		}
	}
	return nil
}
