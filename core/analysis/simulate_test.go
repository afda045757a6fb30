package analysis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classflow/classflow/core/classfile"
	"github.com/classflow/classflow/core/opcodes"
)

func TestIntegerAddition(t *testing.T) {
	_, m := method(t, "(II)I",
		op(opcodes.ILOAD_0),
		op(opcodes.ILOAD_1),
		op(opcodes.IADD),
		op(opcodes.IRETURN),
	)
	deps := analyze(t, m)

	assert.Equal(t, []int{0}, deps.Producers(2, 0))
	assert.Equal(t, []int{1}, deps.Producers(2, 1))
	assert.Equal(t, []int{2}, deps.Producers(3, 0))
	assert.Equal(t, 2, deps.NumArguments(2))
	assert.Equal(t, 2, deps.FirstConsumer(0))
	assert.Equal(t, NoConsumer, deps.SecondConsumer(0))
	assert.Equal(t, NoConsumer, deps.FirstConsumer(3))
	assert.Nil(t, deps.Producers(2, 2))
	assert.Equal(t, 2, deps.MaxStack)
}

// checkRelations asserts that producers and consumers mirror each other and
// that no value has more than two consumers.
func checkRelations(t *testing.T, deps *StackDependencies) {
	t.Helper()
	for i := 0; i < deps.Len(); i++ {
		for a := 0; a < deps.NumArguments(i); a++ {
			for _, p := range deps.Producers(i, a) {
				if p != NoProducer {
					assert.Contains(t, deps.Consumers(p), i, "producer %d of %d/%d", p, i, a)
				}
			}
		}
		assert.LessOrEqual(t, len(deps.Consumers(i)), 2, "consumers of %d", i)
		for _, c := range deps.Consumers(i) {
			var found bool
			for a := 0; a < deps.NumArguments(c); a++ {
				for _, p := range deps.Producers(c, a) {
					found = found || p == i
				}
			}
			assert.True(t, found, "consumer %d does not list %d", c, i)
		}
	}
}

func TestDupRegistersTwoConsumers(t *testing.T) {
	cf, err := classfile.NewClassFile("demo/Subject", "java/lang/Object")
	require.NoError(t, err)
	class, err := cf.Pool.AddClassInfo("demo/Thing")
	require.NoError(t, err)
	ctor, err := cf.Pool.AddMethodrefInfo("demo/Thing", "<init>", "()V")
	require.NoError(t, err)
	m := addMethod(t, cf, "make", "()Ldemo/Thing;",
		classfile.NewRef(opcodes.NEW, class),
		op(opcodes.DUP),
		classfile.NewRef(opcodes.INVOKESPECIAL, ctor),
		op(opcodes.ARETURN),
	)
	deps := analyze(t, m)
	checkRelations(t, deps)

	// The dup consumes the new object and pushes its copy on top.
	assert.Equal(t, 1, deps.FirstConsumer(0))
	assert.Equal(t, 3, deps.SecondConsumer(0))
	assert.Equal(t, []int{0}, deps.Producers(1, 0))
	assert.Equal(t, []int{1}, deps.Producers(2, 0))
	assert.Equal(t, []int{0}, deps.Producers(3, 0))
	assert.Equal(t, []int{2}, deps.Consumers(1))
}

func TestRepeatedDupKeepsTwoConsumers(t *testing.T) {
	_, m := method(t, "(I)V",
		op(opcodes.ILOAD_0),      // 0
		op(opcodes.DUP),          // 1
		op(opcodes.DUP),          // 2
		local(opcodes.ISTORE, 1), // 3
		local(opcodes.ISTORE, 2), // 4
		local(opcodes.ISTORE, 3), // 5
		op(opcodes.RETURN),       // 6
	)
	deps := analyze(t, m)
	checkRelations(t, deps)

	assert.Equal(t, []int{1, 5}, deps.Consumers(0))
	assert.Equal(t, []int{2, 4}, deps.Consumers(1))
	assert.Equal(t, []int{3}, deps.Consumers(2))
	assert.Equal(t, []int{1}, deps.Producers(2, 0))
	assert.Equal(t, 4, deps.SecondConsumer(1))
	assert.Equal(t, 3, deps.MaxStack)
}

func TestMergedProducers(t *testing.T) {
	_, m := method(t, "(I)I",
		op(opcodes.ILOAD_0),
		branch(opcodes.IFEQ, 4),
		op(opcodes.ICONST_1),
		branch(opcodes.GOTO, 5),
		op(opcodes.ICONST_2),
		op(opcodes.IRETURN),
	)
	deps := analyze(t, m)

	assert.Equal(t, []int{2, 4}, deps.Producers(5, 0))
	assert.Equal(t, []int{5}, deps.Consumers(2))
	assert.Equal(t, []int{5}, deps.Consumers(4))
	assert.Equal(t, []int{0}, deps.Producers(1, 0))
}

func TestHandlerEntryHasNoProducer(t *testing.T) {
	_, m := method(t, "()V",
		op(opcodes.ICONST_1),
		local(opcodes.ISTORE, 0),
		op(opcodes.RETURN),
		local(opcodes.ASTORE, 1),
		op(opcodes.RETURN),
	)
	m.Code().Handlers = []*classfile.ExceptionHandler{{Start: 0, End: 2, Handler: 3}}
	deps := analyze(t, m)

	assert.Equal(t, []int{NoProducer}, deps.Producers(3, 0))
	assert.True(t, deps.Reachable(3))
	assert.True(t, deps.Reachable(4))
}

// synchronized (this) {} as javac emits it: the monitor-exit handler
// protects its own entry.
func TestSelfCoveringHandler(t *testing.T) {
	_, m := method(t, "()V",
		op(opcodes.ALOAD_0),      // 0
		op(opcodes.DUP),          // 1
		op(opcodes.ASTORE_1),     // 2
		op(opcodes.MONITORENTER), // 3
		op(opcodes.ALOAD_1),      // 4
		op(opcodes.MONITOREXIT),  // 5
		op(opcodes.RETURN),       // 6
		op(opcodes.ASTORE_2),     // 7
		op(opcodes.ALOAD_1),      // 8
		op(opcodes.MONITOREXIT),  // 9
		op(opcodes.ALOAD_2),      // 10
		op(opcodes.ATHROW),       // 11
	)
	m.Code().Handlers = []*classfile.ExceptionHandler{
		{Start: 4, End: 6, Handler: 7},
		{Start: 7, End: 10, Handler: 7},
	}
	deps := analyze(t, m)
	checkRelations(t, deps)

	assert.Equal(t, []int{1}, deps.Producers(2, 0))
	assert.Equal(t, []int{0}, deps.Producers(3, 0))
	assert.Equal(t, []int{NoProducer}, deps.Producers(7, 0))
	assert.Equal(t, []int{8}, deps.Producers(9, 0))
	assert.Equal(t, []int{10}, deps.Producers(11, 0))
	assert.True(t, deps.Reachable(11))
}

func TestWideValueShuffles(t *testing.T) {
	_, m := method(t, "(J)J",
		op(opcodes.LLOAD_0),
		op(opcodes.DUP2),
		op(opcodes.LADD),
		op(opcodes.LRETURN),
	)
	deps := analyze(t, m)
	checkRelations(t, deps)
	assert.Equal(t, []int{0}, deps.Producers(2, 0))
	assert.Equal(t, []int{1}, deps.Producers(2, 1))
	assert.Equal(t, []int{0}, deps.Producers(1, 0))
	assert.Equal(t, 1, deps.NumArguments(1))
	assert.Equal(t, 4, deps.MaxStack)
}

func TestChainedDuplication(t *testing.T) {
	// The second dup2 sees a copy made by the first one and must treat it
	// as a long, taking the single-value form.
	_, m := method(t, "()J",
		op(opcodes.LCONST_0), // 0
		op(opcodes.DUP2),     // 1
		op(opcodes.DUP2),     // 2
		op(opcodes.POP2),     // 3
		op(opcodes.POP2),     // 4
		op(opcodes.LRETURN),  // 5
	)
	deps := analyze(t, m)
	checkRelations(t, deps)
	assert.Equal(t, []int{1, 5}, deps.Consumers(0))
	assert.Equal(t, []int{2, 4}, deps.Consumers(1))
	assert.Equal(t, []int{3}, deps.Consumers(2))
	assert.Equal(t, []int{1}, deps.Producers(2, 0))
	assert.Equal(t, 1, deps.NumArguments(2))
	assert.Equal(t, 1, deps.NumArguments(3))
	assert.Equal(t, 6, deps.MaxStack)
}

func TestSwapAndInsertForms(t *testing.T) {
	_, m := method(t, "()I",
		op(opcodes.ICONST_1), // 0
		op(opcodes.ICONST_2), // 1
		op(opcodes.SWAP),     // 2
		op(opcodes.DUP_X1),   // 3
		op(opcodes.POP),      // 4
		op(opcodes.ISUB),     // 5
		op(opcodes.POP),      // 6
		op(opcodes.ICONST_3), // 7
		op(opcodes.IRETURN),  // 8
	)
	deps := analyze(t, m)
	checkRelations(t, deps)

	// swap: [0 1] -> [1 0]; dup_x1: [1 0] -> [3 1 0]
	assert.Equal(t, 0, deps.NumArguments(2))
	assert.Equal(t, []int{0}, deps.Producers(3, 0))
	assert.Equal(t, 1, deps.NumArguments(3))
	assert.Equal(t, []int{0}, deps.Producers(4, 0))
	assert.Equal(t, []int{3}, deps.Producers(5, 0))
	assert.Equal(t, []int{1}, deps.Producers(5, 1))
	assert.Equal(t, []int{5}, deps.Producers(6, 0))
	assert.Equal(t, []int{3, 4}, deps.Consumers(0))
	assert.Equal(t, []int{5}, deps.Consumers(1))
	assert.Equal(t, []int{5}, deps.Consumers(3))
}

func TestDup2X2Forms(t *testing.T) {
	// Form 1: four category-1 values.
	_, m := method(t, "()V",
		op(opcodes.ICONST_0), op(opcodes.ICONST_1), op(opcodes.ICONST_2), op(opcodes.ICONST_3),
		op(opcodes.DUP2_X2),
		op(opcodes.POP), op(opcodes.POP), op(opcodes.POP), op(opcodes.POP), op(opcodes.POP), op(opcodes.POP),
		op(opcodes.RETURN),
	)
	deps := analyze(t, m)
	checkRelations(t, deps)
	// [0 1 2 3] -> [4 4 0 1 2 3], popped top down.
	assert.Equal(t, []int{2}, deps.Producers(4, 0))
	assert.Equal(t, []int{3}, deps.Producers(4, 1))
	assert.Equal(t, []int{3}, deps.Producers(5, 0))
	assert.Equal(t, []int{2}, deps.Producers(6, 0))
	assert.Equal(t, []int{1}, deps.Producers(7, 0))
	assert.Equal(t, []int{0}, deps.Producers(8, 0))
	assert.Equal(t, []int{4}, deps.Producers(9, 0))
	assert.Equal(t, []int{4}, deps.Producers(10, 0))
	assert.Equal(t, []int{9, 10}, deps.Consumers(4))

	// Form 4: two category-2 values.
	_, m = method(t, "()V",
		op(opcodes.LCONST_0), op(opcodes.DCONST_1),
		op(opcodes.DUP2_X2),
		op(opcodes.POP2), op(opcodes.POP2), op(opcodes.POP2),
		op(opcodes.RETURN),
	)
	deps = analyze(t, m)
	checkRelations(t, deps)
	assert.Equal(t, []int{1}, deps.Producers(2, 0))
	assert.Equal(t, []int{1}, deps.Producers(3, 0))
	assert.Equal(t, []int{0}, deps.Producers(4, 0))
	assert.Equal(t, []int{2}, deps.Producers(5, 0))
	assert.Equal(t, 6, deps.MaxStack)
}

func TestDupInLoopTerminates(t *testing.T) {
	// The dup consumes its own copy on the second trip round the loop.
	_, m := method(t, "()V",
		op(opcodes.ICONST_1),    // 0
		op(opcodes.DUP),         // 1
		op(opcodes.SWAP),        // 2
		op(opcodes.POP),         // 3
		branch(opcodes.GOTO, 1), // 4
	)
	deps := analyze(t, m)
	assert.Equal(t, []int{0, 1}, deps.Producers(1, 0))
	assert.Equal(t, []int{0, 1}, deps.Producers(3, 0))
}

func TestSubroutine(t *testing.T) {
	_, m := method(t, "()V",
		branch(opcodes.JSR, 2),
		op(opcodes.RETURN),
		local(opcodes.ASTORE, 0),
		local(opcodes.RET, 0),
	)
	deps := analyze(t, m)
	assert.Equal(t, []int{0}, deps.Producers(2, 0))
	for i := 0; i < 4; i++ {
		assert.True(t, deps.Reachable(i), "instruction %d", i)
	}
}

func TestUnreachableCode(t *testing.T) {
	_, m := method(t, "()V",
		op(opcodes.RETURN),
		op(opcodes.NOP),
		op(opcodes.RETURN),
	)
	deps := analyze(t, m)
	assert.True(t, deps.Reachable(0))
	assert.False(t, deps.Reachable(1))
}

func depthMismatchMethod(t *testing.T) *classfile.MethodInfo {
	_, m := method(t, "(I)V",
		op(opcodes.ILOAD_0),
		branch(opcodes.IFEQ, 3),
		op(opcodes.ICONST_1),
		op(opcodes.RETURN),
	)
	return m
}

func TestStrictJoinMismatch(t *testing.T) {
	m := depthMismatchMethod(t)
	_, err := Analyze(m.Code(), DefaultConfig)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDepthMismatch))

	var ie *InconsistencyError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 3, ie.Instruction)
	assert.Equal(t, opcodes.RETURN, ie.Opcode)
}

func TestBestEffortJoinMismatch(t *testing.T) {
	m := depthMismatchMethod(t)
	cfg := DefaultConfig
	cfg.BestEffort = true
	deps, err := Analyze(m.Code(), cfg)
	require.NoError(t, err)
	assert.True(t, deps.Reachable(3))
}

func TestStackUnderflow(t *testing.T) {
	_, m := method(t, "()I",
		op(opcodes.IADD),
		op(opcodes.IRETURN),
	)
	_, err := Analyze(m.Code(), DefaultConfig)
	assert.True(t, errors.Is(err, ErrStackUnderflow))

	_, m = method(t, "()V", op(opcodes.SWAP), op(opcodes.RETURN))
	_, err = Analyze(m.Code(), DefaultConfig)
	assert.True(t, errors.Is(err, ErrStackUnderflow))
}

func TestFallOffEnd(t *testing.T) {
	_, m := method(t, "()V", op(opcodes.NOP))
	_, err := Analyze(m.Code(), DefaultConfig)
	assert.True(t, errors.Is(err, ErrFallOff))
}

func TestLoopTerminates(t *testing.T) {
	_, m := method(t, "(I)I",
		op(opcodes.ICONST_0),     // 0
		local(opcodes.ISTORE, 1), // 1
		op(opcodes.ILOAD_0),      // 2
		branch(opcodes.IFLE, 6),  // 3
		iinc(0, -1),              // 4
		branch(opcodes.GOTO, 2),  // 5
		local(opcodes.ILOAD, 1),  // 6
		op(opcodes.IRETURN),      // 7
	)
	deps := analyze(t, m)
	assert.Equal(t, []int{2}, deps.Producers(3, 0))
	assert.Equal(t, []int{6}, deps.Producers(7, 0))
}
