// Package debug wires the logging and tracing command line flags.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/slog"

	"github.com/classflow/classflow/log"
)

const loggingCategory = "LOGGING AND DEBUGGING"

var (
	verbosityFlag = &cli.IntFlag{
		Name:     "verbosity",
		Usage:    "Logging verbosity: 0=crit, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
		Value:    3,
		Category: loggingCategory,
	}
	logjsonFlag = &cli.BoolFlag{
		Name:     "log.json",
		Usage:    "Format logs with JSON",
		Category: loggingCategory,
	}
	logFileFlag = &cli.StringFlag{
		Name:     "log.file",
		Usage:    "Write logs to a file",
		Category: loggingCategory,
	}
	logRotateHoursFlag = &cli.UintFlag{
		Name:     "log.rotatehours",
		Usage:    "Number of hours to split log files, 0 disables rotation",
		Value:    0,
		Category: loggingCategory,
	}
	logBufferFlag = &cli.Int64Flag{
		Name:     "log.buffer",
		Usage:    "Number of log lines buffered by the file writer",
		Value:    4096,
		Category: loggingCategory,
	}
	nocolorFlag = &cli.BoolFlag{
		Name:     "nocolor",
		Usage:    "Disable colored terminal output",
		Category: loggingCategory,
	}
	traceFlag = &cli.StringFlag{
		Name:     "trace",
		Usage:    "Write execution trace to the given file",
		Category: loggingCategory,
	}
)

// Flags holds all command-line flags required for debugging.
var Flags = []cli.Flag{
	verbosityFlag,
	logjsonFlag,
	logFileFlag,
	logRotateHoursFlag,
	logBufferFlag,
	nocolorFlag,
	traceFlag,
}

// Handler is the global tracing handle.
var Handler = new(HandlerT)

var fileWriter *log.AsyncFileWriter

// Setup initializes logging and tracing based on the CLI flags.
// It should be called as early as possible in the program.
func Setup(ctx *cli.Context) error {
	level := log.FromLegacyLevel(ctx.Int(verbosityFlag.Name))

	var output io.Writer = os.Stderr
	useColor := false
	if logFile := ctx.String(logFileFlag.Name); logFile != "" {
		if err := validateLogLocation(filepath.Dir(logFile)); err != nil {
			return fmt.Errorf("failed to initialize file logger: %v", err)
		}
		fileWriter = log.NewAsyncFileWriter(logFile, ctx.Int64(logBufferFlag.Name), ctx.Uint(logRotateHoursFlag.Name))
		if err := fileWriter.Start(); err != nil {
			return err
		}
		output = fileWriter
	} else if !ctx.Bool(nocolorFlag.Name) {
		useColor = (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())) && os.Getenv("TERM") != "dumb"
		if useColor {
			output = colorable.NewColorableStderr()
		}
	}

	var handler slog.Handler
	if ctx.Bool(logjsonFlag.Name) {
		handler = log.JSONHandlerWithLevel(output, level)
	} else {
		handler = log.NewTerminalHandlerWithLevel(output, level, useColor)
	}
	log.SetDefault(log.NewLogger(handler))

	if traceFile := ctx.String(traceFlag.Name); traceFile != "" {
		if err := Handler.StartGoTrace(traceFile); err != nil {
			return err
		}
	}
	return nil
}

// Exit stops all running profiles, flushing their output to the
// respective file.
func Exit() {
	Handler.StopGoTrace()
	if fileWriter != nil {
		fileWriter.Stop()
		fileWriter = nil
	}
}

func validateLogLocation(path string) error {
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return fmt.Errorf("error creating the directory: %w", err)
	}
	// Check if the path is writable by trying to create a temporary file
	tmp := filepath.Join(path, "tmp")
	if f, err := os.Create(tmp); err != nil {
		return err
	} else {
		f.Close()
	}
	return os.Remove(tmp)
}
