package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"

	"github.com/classflow/classflow/cmd/utils"
	"github.com/classflow/classflow/core/analysis"
	"github.com/classflow/classflow/core/classpath"
	"github.com/classflow/classflow/core/depcache"
)

var dumpConfigCommand = &cli.Command{
	Action:      dumpConfig,
	Name:        "dumpconfig",
	Usage:       "Export configuration values in a TOML format",
	ArgsUsage:   "<dumpfile (optional)>",
	Flags:       allConfigFlags(),
	Description: `Export configuration values in TOML format (to stdout by default).`,
}

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://pkg.go.dev/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

type writeConfig struct {
	StackMargin int
}

type classflowConfig struct {
	ClassPath    classpath.Config
	Analysis     analysis.Config
	Cache        depcache.Config
	CacheEntries int
	Write        writeConfig
}

func defaultConfig() classflowConfig {
	return classflowConfig{
		Analysis:     analysis.DefaultConfig,
		Cache:        depcache.DefaultConfig,
		CacheEntries: utils.CacheEntriesFlag.Value,
	}
}

func loadConfig(file string, cfg *classflowConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig loads the configuration file, if any, and applies the
// command line flags on top of it.
func makeConfig(ctx *cli.Context) (classflowConfig, error) {
	cfg := defaultConfig()
	if file := ctx.String(utils.ConfigFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, err
		}
	}
	utils.SetClassPathConfig(ctx, &cfg.ClassPath)
	utils.SetAnalysisConfig(ctx, &cfg.Analysis)
	utils.SetCacheConfig(ctx, &cfg.Cache)
	if ctx.IsSet(utils.CacheEntriesFlag.Name) {
		cfg.CacheEntries = ctx.Int(utils.CacheEntriesFlag.Name)
	}
	if ctx.IsSet(utils.StackMarginFlag.Name) {
		cfg.Write.StackMargin = ctx.Int(utils.StackMarginFlag.Name)
	}
	return cfg, nil
}

func allConfigFlags() []cli.Flag {
	flags := []cli.Flag{utils.StackMarginFlag}
	flags = append(flags, utils.ClassPathFlags...)
	flags = append(flags, utils.AnalysisFlags...)
	return append(flags, utils.CacheFlags...)
}

// dumpConfig is the dumpconfig command.
func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}

	dump := os.Stdout
	if ctx.NArg() > 0 {
		dump, err = os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer dump.Close()
	}
	_, err = dump.Write(out)
	return err
}
