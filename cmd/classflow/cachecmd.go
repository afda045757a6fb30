package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/classflow/classflow/cmd/utils"
	"github.com/classflow/classflow/core/depcache"
	"github.com/classflow/classflow/log"
)

var (
	cacheCommand = &cli.Command{
		Name:  "cache",
		Usage: "Maintain a persistent dependency cache",
		Subcommands: []*cli.Command{
			cacheStatsCommand,
			cacheDropCommand,
		},
	}
	cacheStatsCommand = &cli.Command{
		Action: cacheStats,
		Name:   "stats",
		Usage:  "Print the entry count and engine statistics",
		Flags:  utils.CacheFlags,
	}
	cacheDropCommand = &cli.Command{
		Action:    cacheDrop,
		Name:      "drop",
		Usage:     "Delete the cached results of classes",
		ArgsUsage: "<class>...",
		Flags:     utils.CacheFlags,
		Description: `
Removes every cached method result of the named classes, given as internal
(java/lang/String) or dotted (java.lang.String) names.`,
	}
)

func openCache(ctx *cli.Context) (*depcache.Store, error) {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Cache.Engine == depcache.EngineMemory {
		return nil, errors.New("no persistent cache configured, set --cache.engine and --cache.dir")
	}
	return depcache.Open(cfg.Cache)
}

func cacheStats(ctx *cli.Context) error {
	store, err := openCache(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	count, err := store.Count()
	if err != nil {
		return err
	}
	stats, err := store.Stat()
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "entries: %d\n%s\n", count, stats)
	return nil
}

func cacheDrop(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return errors.New("no classes given")
	}
	store, err := openCache(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, class := range ctx.Args().Slice() {
		class = strings.ReplaceAll(class, ".", "/")
		n, err := store.DropClass(class)
		if err != nil {
			return err
		}
		log.InfoIf(n > 0, "Dropped cached results", "class", class, "methods", n)
	}
	return nil
}
