package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classflow/classflow/core/classfile"
	"github.com/classflow/classflow/core/depcache"
)

func TestDumpAndLoadConfig(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.toml")
	_, err := run(t, "dumpconfig", "--analysis.besteffort", "--cache.engine", "leveldb", "--cache.dir", "/var/cache/classflow", "--workers", "6", file)
	require.NoError(t, err)

	var cfg classflowConfig
	require.NoError(t, loadConfig(file, &cfg))
	assert.True(t, cfg.Analysis.BestEffort)
	assert.Equal(t, depcache.EngineLevelDB, cfg.Cache.Engine)
	assert.Equal(t, "/var/cache/classflow", cfg.Cache.Directory)
	assert.Equal(t, 6, cfg.ClassPath.Workers)
	assert.Equal(t, defaultConfig().CacheEntries, cfg.CacheEntries)
}

func TestLoadConfigUnknownField(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(file, []byte("[Cache]\nEngin = \"pebble\"\n"), 0o644))
	var cfg classflowConfig
	err := loadConfig(file, &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Engin")
	assert.Contains(t, err.Error(), file)
}

func TestConfigFileFeedsCommands(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(file, []byte("[Write]\nStackMargin = 3\n"), 0o644))

	out := t.TempDir()
	_, err := run(t, "--config", file, "roundtrip", "--out", out, writeSample(t))
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(out, "demo", "Sample.class"))
	require.NoError(t, err)
	cf, err := classfile.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, uint16(5), cf.Method("add", "(II)I").Code().MaxStack())
}

func TestSelectMethods(t *testing.T) {
	cf := sampleClass(t)
	assert.Len(t, selectMethods(cf, ""), 2)
	assert.Len(t, selectMethods(cf, "add"), 1)
	assert.Len(t, selectMethods(cf, "count()V"), 1)
	assert.Empty(t, selectMethods(cf, "count()I"))
}

func TestGraphFormat(t *testing.T) {
	for _, tt := range []struct {
		format, out, want string
	}{
		{"", "", "dot"},
		{"", "g.SVG", "svg"},
		{"", "g.dot", "dot"},
		{"dot", "g.svg", "dot"},
	} {
		got, err := graphFormat(tt.format, tt.out)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "format %q out %q", tt.format, tt.out)
	}
	_, err := graphFormat("png", "")
	assert.Error(t, err)
}

func TestBasicBlocks(t *testing.T) {
	cf := sampleClass(t)
	blocks, blockOf := basicBlocks(cf.Method("count", "()V").Code())
	assert.Equal(t, []basicBlock{{0, 3}, {3, 4}, {4, 7}, {7, 8}}, blocks)
	assert.Equal(t, []int{0, 0, 0, 1, 2, 2, 2, 3}, blockOf)
}
