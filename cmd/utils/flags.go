// Package utils contains internal helper functions for classflow commands.
package utils

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/classflow/classflow/core/analysis"
	"github.com/classflow/classflow/core/classpath"
	"github.com/classflow/classflow/core/depcache"
	"github.com/classflow/classflow/log"
)

// Flag categories shown in the help output.
const (
	ClassPathCategory = "CLASS PATH"
	AnalysisCategory  = "ANALYSIS"
	CacheCategory     = "DEPENDENCY CACHE"
	OutputCategory    = "OUTPUT"
)

// These are all the command line flags we support.
// If you add to this list, please remember to include the
// flag in the appropriate command definition.
//
// The flags are defined here so their names and help texts
// are the same for all commands.

var (
	ConfigFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}

	// Class path settings
	ClassPathFlag = &cli.StringFlag{
		Name:     "classpath",
		Aliases:  []string{"cp"},
		Usage:    "Directories and jars used to resolve referenced classes, separated by the OS path list separator or commas",
		Category: ClassPathCategory,
	}
	WorkersFlag = &cli.IntFlag{
		Name:     "workers",
		Usage:    "Number of class files parsed concurrently (0 = derived from the file count)",
		Category: ClassPathCategory,
	}
	KeepGoingFlag = &cli.BoolFlag{
		Name:     "keepgoing",
		Usage:    "Skip unreadable class files instead of failing",
		Category: ClassPathCategory,
	}

	// Analysis settings
	BestEffortFlag = &cli.BoolFlag{
		Name:     "analysis.besteffort",
		Usage:    "Drop paths that reach a join point with a different stack depth instead of failing",
		Category: AnalysisCategory,
	}
	MaxLoopPathsFlag = &cli.IntFlag{
		Name:     "analysis.maxpaths",
		Usage:    "Maximum number of paths enumerated per loop",
		Value:    analysis.DefaultConfig.MaxLoopPaths,
		Category: AnalysisCategory,
	}
	MaxStepsFlag = &cli.IntFlag{
		Name:     "analysis.maxsteps",
		Usage:    "Maximum number of instructions simulated per method",
		Value:    analysis.DefaultConfig.MaxSteps,
		Category: AnalysisCategory,
	}
	MethodFlag = &cli.StringFlag{
		Name:     "method",
		Usage:    "Only process methods with this name, or name and descriptor (e.g. main([Ljava/lang/String;)V)",
		Category: AnalysisCategory,
	}

	// Cache settings
	CacheEngineFlag = &cli.StringFlag{
		Name:     "cache.engine",
		Usage:    "Backing store for analysis results (memory, pebble, leveldb, bbolt)",
		Value:    depcache.DefaultConfig.Engine,
		Category: CacheCategory,
	}
	CacheDirFlag = &cli.StringFlag{
		Name:     "cache.dir",
		Usage:    "Directory of a persistent analysis cache",
		Category: CacheCategory,
	}
	CacheCleanFlag = &cli.IntFlag{
		Name:     "cache.clean",
		Usage:    "Megabytes of memory allocated to the clean cache in front of the store",
		Value:    depcache.DefaultConfig.CleanMB,
		Category: CacheCategory,
	}
	CacheLevelDBFlag = &cli.IntFlag{
		Name:     "cache.leveldb",
		Usage:    "Megabytes of block cache used by the leveldb engine",
		Value:    depcache.DefaultConfig.CacheMB,
		Category: CacheCategory,
	}
	CacheHandlesFlag = &cli.IntFlag{
		Name:     "cache.handles",
		Usage:    "Number of open files used by the leveldb engine",
		Value:    depcache.DefaultConfig.Handles,
		Category: CacheCategory,
	}
	CacheReadOnlyFlag = &cli.BoolFlag{
		Name:     "cache.readonly",
		Usage:    "Open the persistent cache read-only",
		Category: CacheCategory,
	}
	CacheEntriesFlag = &cli.IntFlag{
		Name:     "cache.entries",
		Usage:    "Number of analyzed methods kept in the in-process LRU",
		Value:    4096,
		Category: CacheCategory,
	}

	// Output settings
	OutputFlag = &cli.StringFlag{
		Name:     "out",
		Usage:    "Output file or directory (stdout when empty)",
		Category: OutputCategory,
	}
	FormatFlag = &cli.StringFlag{
		Name:     "format",
		Usage:    "Graph output format: dot or svg (inferred from --out when omitted)",
		Category: OutputCategory,
	}
	TitleFlag = &cli.StringFlag{
		Name:     "title",
		Usage:    "Graph title",
		Category: OutputCategory,
	}
	StackMarginFlag = &cli.IntFlag{
		Name:     "write.stackmargin",
		Usage:    "Slots added to every max_stack when writing class files",
		Category: OutputCategory,
	}
	PathsFlag = &cli.BoolFlag{
		Name:     "paths",
		Usage:    "Enumerate the paths through every loop",
		Category: OutputCategory,
	}
	AnnotateIOFlag = &cli.BoolFlag{
		Name:     "io",
		Usage:    "Attach IOInstructions attributes before writing",
		Category: OutputCategory,
	}
	MetricsFlag = &cli.BoolFlag{
		Name:     "metrics",
		Usage:    "Print the collected metrics on exit",
		Category: OutputCategory,
	}
)

var (
	// ClassPathFlags configure class loading.
	ClassPathFlags = []cli.Flag{
		ClassPathFlag,
		WorkersFlag,
		KeepGoingFlag,
	}
	// AnalysisFlags configure the stack dependency and loop analyses.
	AnalysisFlags = []cli.Flag{
		BestEffortFlag,
		MaxLoopPathsFlag,
		MaxStepsFlag,
	}
	// CacheFlags configure the analysis cache.
	CacheFlags = []cli.Flag{
		CacheEngineFlag,
		CacheDirFlag,
		CacheCleanFlag,
		CacheLevelDBFlag,
		CacheHandlesFlag,
		CacheReadOnlyFlag,
		CacheEntriesFlag,
	}
)

// Fatalf formats a message to standard error and exits the program.
// The message is also printed to standard output if standard error
// is redirected to a different file.
func Fatalf(format string, args ...interface{}) {
	w := io.MultiWriter(os.Stdout, os.Stderr)
	if runtime.GOOS == "windows" {
		// The SameFile check below doesn't work on Windows.
		w = os.Stdout
	} else {
		outf, _ := os.Stdout.Stat()
		errf, _ := os.Stderr.Stat()
		if outf != nil && errf != nil && os.SameFile(outf, errf) {
			w = os.Stderr
		}
	}
	fmt.Fprintf(w, "Fatal: "+format+"\n", args...)
	os.Exit(1)
}

// SplitAndTrim splits input separated by the OS path list separator or
// commas and trims excessive white space from the substrings.
func SplitAndTrim(input string) (ret []string) {
	l := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == os.PathListSeparator
	})
	for _, r := range l {
		if r = strings.TrimSpace(r); r != "" {
			ret = append(ret, r)
		}
	}
	return ret
}

// SetClassPathConfig applies class path flags to the config.
func SetClassPathConfig(ctx *cli.Context, cfg *classpath.Config) {
	if ctx.IsSet(WorkersFlag.Name) {
		cfg.Workers = ctx.Int(WorkersFlag.Name)
	}
	if ctx.IsSet(KeepGoingFlag.Name) {
		cfg.KeepGoing = ctx.Bool(KeepGoingFlag.Name)
	}
}

// SetAnalysisConfig applies analysis flags to the config.
func SetAnalysisConfig(ctx *cli.Context, cfg *analysis.Config) {
	if ctx.IsSet(BestEffortFlag.Name) {
		cfg.BestEffort = ctx.Bool(BestEffortFlag.Name)
	}
	if ctx.IsSet(MaxLoopPathsFlag.Name) {
		cfg.MaxLoopPaths = ctx.Int(MaxLoopPathsFlag.Name)
	}
	if ctx.IsSet(MaxStepsFlag.Name) {
		cfg.MaxSteps = ctx.Int(MaxStepsFlag.Name)
	}
}

// SetCacheConfig applies cache flags to the config.
func SetCacheConfig(ctx *cli.Context, cfg *depcache.Config) {
	if ctx.IsSet(CacheEngineFlag.Name) {
		cfg.Engine = ctx.String(CacheEngineFlag.Name)
	}
	if ctx.IsSet(CacheDirFlag.Name) {
		cfg.Directory = ctx.String(CacheDirFlag.Name)
	}
	if ctx.IsSet(CacheCleanFlag.Name) {
		cfg.CleanMB = ctx.Int(CacheCleanFlag.Name)
	}
	if ctx.IsSet(CacheLevelDBFlag.Name) {
		cfg.CacheMB = ctx.Int(CacheLevelDBFlag.Name)
	}
	if ctx.IsSet(CacheHandlesFlag.Name) {
		cfg.Handles = ctx.Int(CacheHandlesFlag.Name)
	}
	if ctx.IsSet(CacheReadOnlyFlag.Name) {
		cfg.ReadOnly = ctx.Bool(CacheReadOnlyFlag.Name)
	}
	if cfg.Engine != depcache.EngineMemory && cfg.Directory == "" {
		log.Warn("Persistent cache engine without a directory, falling back to memory", "engine", cfg.Engine)
		cfg.Engine = depcache.EngineMemory
	}
}

// CheckExclusive verifies that only a single instance of the provided flags was
// set by the user. Each flag might optionally be followed by a string type to
// specialize it further.
func CheckExclusive(ctx *cli.Context, args ...interface{}) {
	set := make([]string, 0, 1)
	for i := 0; i < len(args); i++ {
		// Make sure the next argument is a flag and skip if not set
		flag, ok := args[i].(cli.Flag)
		if !ok {
			panic(fmt.Sprintf("invalid argument, not cli.Flag type: %T", args[i]))
		}
		// Check if next arg extends current and expand its name if so
		name := flag.Names()[0]

		if i+1 < len(args) {
			switch option := args[i+1].(type) {
			case string:
				// Extended flag check, make sure value set doesn't conflict with passed in option
				if ctx.String(flag.Names()[0]) == option {
					name += "=" + option
					set = append(set, "--"+name)
				}
				// shift arguments and continue
				i++
				continue

			case cli.Flag:
			default:
				panic(fmt.Sprintf("invalid argument, not cli.Flag or string extension: %T", args[i+1]))
			}
		}
		// Mark the flag if it's set
		if ctx.IsSet(flag.Names()[0]) {
			set = append(set, "--"+name)
		}
	}
	if len(set) > 1 {
		Fatalf("Flags %v can't be used at the same time", strings.Join(set, ", "))
	}
}
