package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/classflow/classflow/cmd/utils"
	"github.com/classflow/classflow/core/classfile"
	"github.com/classflow/classflow/core/classpath"
	"github.com/classflow/classflow/log"
)

var roundtripCommand = &cli.Command{
	Action:    roundtrip,
	Name:      "roundtrip",
	Usage:     "Parse and re-encode class files",
	ArgsUsage: "<class|dir|jar>...",
	Flags:     append(allConfigFlags(), utils.OutputFlag, utils.AnnotateIOFlag),
	Description: `
Parses every class file and encodes it again. Without a stack margin and
without --io the output must equal the input byte for byte; any difference
is reported and fails the command. With --out the encoded classes are
written below the given directory.`,
}

type roundtripResult struct {
	origin   string
	class    string
	in, out  int
	mismatch int // first differing offset, -1 when identical
}

func roundtrip(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return errNoInput
	}
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	var lookup classfile.ClassLookup
	if entries := utils.SplitAndTrim(ctx.String(utils.ClassPathFlag.Name)); len(entries) > 0 {
		path := classpath.New(cfg.ClassPath)
		if err := path.Load(entries...); err != nil {
			return err
		}
		lookup = path
	}
	var (
		annotate = ctx.Bool(utils.AnnotateIOFlag.Name)
		outDir   = ctx.String(utils.OutputFlag.Name)
		opts     = classfile.WriteOptions{StackMargin: cfg.Write.StackMargin}
		exact    = opts.StackMargin == 0 && !annotate
		results  []roundtripResult
	)
	err = classpath.Walk(ctx.Args().Slice(), func(origin string, data []byte) error {
		cf, err := classfile.Parse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", origin, err)
		}
		if annotate {
			if _, err := cf.AnnotateIO(lookup); err != nil {
				return err
			}
		}
		enc, err := cf.Encode(opts)
		if err != nil {
			return err
		}
		res := roundtripResult{origin: origin, class: cf.Name(), in: len(data), out: len(enc), mismatch: firstDiff(data, enc)}
		results = append(results, res)
		if outDir != "" {
			path := filepath.Join(outDir, filepath.FromSlash(cf.Name())+".class")
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, enc, 0o644); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	table := newTable(ctx.App.Writer, "Class", "In", "Out", "Result")
	failures := 0
	for _, r := range results {
		status := "identical"
		if r.mismatch >= 0 {
			status = "rewritten"
			if exact {
				status = exitColor("differs at " + strconv.Itoa(r.mismatch))
				failures++
				log.Warn("Round trip mismatch", "origin", r.origin, "offset", r.mismatch)
			}
		}
		table.Append([]string{r.class, strconv.Itoa(r.in), strconv.Itoa(r.out), status})
	}
	table.Render()
	if failures > 0 {
		return fmt.Errorf("%d of %d classes did not round trip", failures, len(results))
	}
	return nil
}

// firstDiff returns the first offset at which a and b differ, or -1.
func firstDiff(a, b []byte) int {
	if bytes.Equal(a, b) {
		return -1
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
