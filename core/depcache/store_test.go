package depcache

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classflow/classflow/core/analysis"
	"github.com/classflow/classflow/core/classfile"
	"github.com/classflow/classflow/core/opcodes"
	"github.com/classflow/classflow/ethdb"
	"github.com/classflow/classflow/ethdb/memorydb"
)

func addMethod(t *testing.T) (*classfile.ClassFile, *classfile.MethodInfo) {
	t.Helper()
	cf, err := classfile.NewClassFile("demo/Adder", "java/lang/Object")
	require.NoError(t, err)
	code, err := classfile.NewCode(cf.Pool, 2, 2, []*classfile.Instruction{
		classfile.NewInstruction(opcodes.ILOAD_0),
		classfile.NewInstruction(opcodes.ILOAD_1),
		classfile.NewInstruction(opcodes.DUP),
		classfile.NewInstruction(opcodes.POP),
		classfile.NewInstruction(opcodes.IADD),
		classfile.NewInstruction(opcodes.IRETURN),
	})
	require.NoError(t, err)
	m, err := cf.AddMethod(classfile.AccStatic, "add", "(II)I", code)
	require.NoError(t, err)
	return cf, m
}

func analyzed(t *testing.T) (analysis.MethodKey, *analysis.StackDependencies) {
	cf, m := addMethod(t)
	deps, err := analysis.Analyze(m.Code(), analysis.DefaultConfig)
	require.NoError(t, err)
	return analysis.KeyFor(cf, m), deps
}

func TestEncodeRoundTrip(t *testing.T) {
	_, deps := analyzed(t)
	enc, err := encode(deps)
	require.NoError(t, err)
	assert.Equal(t, byte(encodeVersion), enc[0])

	dec, err := decode(enc)
	require.NoError(t, err)
	if diff := cmp.Diff(deps, dec, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("decoded dependencies differ (-want +got):\n%s", diff)
	}

	enc[0] = 9
	_, err = decode(enc)
	assert.True(t, errors.Is(err, errBadVersion))
}

func TestMemoryStore(t *testing.T) {
	key, deps := analyzed(t)
	db := memorydb.New()
	s := New(db, 1)
	defer s.Close()

	_, ok := s.Get(key)
	assert.False(t, ok)

	s.Put(key, deps)
	assert.Equal(t, 1, db.Len())

	got, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, deps.Producers(4, 1), got.Producers(4, 1))

	// Served from the persisted copy once the clean cache is gone.
	s.clean.Reset()
	got, ok = s.Get(key)
	require.True(t, ok)
	assert.Equal(t, deps.Consumers(1), got.Consumers(1))

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDropClass(t *testing.T) {
	key, deps := analyzed(t)
	s := New(memorydb.New(), 0)
	defer s.Close()

	other := key
	other.Class = "demo/AdderTwo"
	s.Put(key, deps)
	s.Put(other, deps)

	timed := ethdb.DeleteTimer.Count()
	n, err := s.DropClass("demo/Adder")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, timed+1, ethdb.DeleteTimer.Count())

	_, ok := s.Get(key)
	assert.False(t, ok)
	_, ok = s.Get(other)
	assert.True(t, ok)
}

func TestPersistentEngines(t *testing.T) {
	for _, engine := range []string{EnginePebble, EngineLevelDB, EngineBBolt} {
		t.Run(engine, func(t *testing.T) {
			key, deps := analyzed(t)
			cfg := Config{Engine: engine, Directory: t.TempDir(), CleanMB: 1, CacheMB: 16, Handles: 16}

			s, err := Open(cfg)
			require.NoError(t, err)
			s.Put(key, deps)

			// A second writer is refused while the first holds the lock.
			_, err = Open(cfg)
			assert.True(t, errors.Is(err, errLocked))
			require.NoError(t, s.Close())

			s, err = Open(cfg)
			require.NoError(t, err)
			defer s.Close()
			got, ok := s.Get(key)
			require.True(t, ok)
			if diff := cmp.Diff(deps, got, cmpopts.EquateEmpty()); diff != "" {
				t.Fatalf("reloaded dependencies differ (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(Config{Engine: "rocks", Directory: t.TempDir()})
	assert.True(t, errors.Is(err, errUnknownEngine))

	_, err = Open(Config{Engine: EnginePebble})
	assert.Error(t, err)

	s, err := Open(Config{})
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}

func TestAnalyzerUsesStore(t *testing.T) {
	cf, m := addMethod(t)
	s := New(memorydb.New(), 1)
	defer s.Close()

	a := analysis.NewAnalyzer(s, analysis.DefaultConfig)
	first, err := a.StackDependencies(cf, m)
	require.NoError(t, err)

	// The second lookup decodes a fresh copy from the store.
	second, err := a.StackDependencies(cf, m)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, first.Producers(5, 0), second.Producers(5, 0))
}
