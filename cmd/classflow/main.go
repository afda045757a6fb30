// classflow is the command-line front end of the class file toolkit.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rcrowley/go-metrics"
	"github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"

	"github.com/classflow/classflow/cmd/utils"
	"github.com/classflow/classflow/internal/debug"
)

func newApp() *cli.App {
	app := &cli.App{
		Name:                 "classflow",
		Usage:                "JVM class file parser and bytecode analyzer",
		EnableBashCompletion: true,
		Copyright:            "Copyright 2024 The classflow Authors",
	}
	app.Flags = append([]cli.Flag{utils.ConfigFileFlag, utils.MetricsFlag}, debug.Flags...)
	app.Commands = []*cli.Command{
		disasmCommand,
		depsCommand,
		loopsCommand,
		cfgCommand,
		roundtripCommand,
		inspectCommand,
		cacheCommand,
		dumpConfigCommand,
	}
	app.Before = func(ctx *cli.Context) error {
		if err := debug.Setup(ctx); err != nil {
			return err
		}
		if ctx.Bool("nocolor") {
			color.NoColor = true
		}
		return nil
	}
	app.After = func(ctx *cli.Context) error {
		if ctx.Bool(utils.MetricsFlag.Name) {
			metrics.WriteOnce(metrics.DefaultRegistry, ctx.App.ErrWriter)
		}
		debug.Exit()
		return nil
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
