package analysis

import (
	"encoding/binary"
	"fmt"

	"github.com/classflow/classflow/core/classfile"
	"github.com/classflow/classflow/core/opcodes"
	"github.com/classflow/classflow/log"
)

// shuffleForm is one stack transformation of a shuffler over the top n
// values (bottom first). Values listed in dup are consumed by the shuffler,
// which pushes itself as their copy; out gives the resulting order, where k
// is the original value k and copy(k) its duplicate. With consume set the
// values are popped and out is empty.
type shuffleForm struct {
	n       int
	dup     []int
	out     []int
	consume bool
}

func copyOf(k int) int { return -1 - k }

var (
	formPop1    = shuffleForm{n: 1, consume: true}
	formPop2    = shuffleForm{n: 2, consume: true}
	formDup     = shuffleForm{n: 1, dup: []int{0}, out: []int{0, copyOf(0)}}
	formDupX1   = shuffleForm{n: 2, dup: []int{1}, out: []int{copyOf(1), 0, 1}}
	formDupX2   = shuffleForm{n: 3, dup: []int{2}, out: []int{copyOf(2), 0, 1, 2}}
	formDup2    = shuffleForm{n: 2, dup: []int{0, 1}, out: []int{0, 1, copyOf(0), copyOf(1)}}
	formDup2X1  = shuffleForm{n: 3, dup: []int{1, 2}, out: []int{copyOf(1), copyOf(2), 0, 1, 2}}
	formDup2X2  = shuffleForm{n: 4, dup: []int{2, 3}, out: []int{copyOf(2), copyOf(3), 0, 1, 2, 3}}
	formDup2X2b = shuffleForm{n: 3, dup: []int{1, 2}, out: []int{copyOf(1), copyOf(2), 0, 1, 2}} // v1 v2 cat1, v3 cat2
	formSwap    = shuffleForm{n: 2, out: []int{1, 0}}
)

type pending struct {
	at    int
	stack []int
}

// simulation runs the producer-index stack over one method.
type simulation struct {
	code  *classfile.Code
	cfg   Config
	deps  *StackDependencies
	join  []bool
	seen  []map[string]struct{}
	depth []int
	width []int8 // category of the copies pushed by each dup, 0 until run
	work  []pending
	steps int
}

var skippedPaths = &log.EveryN{N: 100}

// Analyze computes the stack dependencies of code without caching.
func Analyze(code *classfile.Code, cfg Config) (*StackDependencies, error) {
	cfg = cfg.withDefaults()
	n := code.Len()
	s := &simulation{
		code:  code,
		cfg:   cfg,
		deps:  newStackDependencies(n),
		join:  make([]bool, n),
		seen:  make([]map[string]struct{}, n),
		depth: make([]int, n),
		width: make([]int8, n),
	}
	for i := 0; i < n; i++ {
		s.join[i] = i == 0 || code.HasIncoming(i) || code.IsHandlerEntry(i) ||
			code.Instruction(i-1).Info().Kind == opcodes.KindSubroutine
	}
	if n == 0 {
		return s.deps, nil
	}
	s.work = append(s.work, pending{at: 0})
	for k := len(code.Handlers) - 1; k >= 0; k-- {
		s.work = append(s.work, pending{at: code.Handlers[k].Handler, stack: []int{NoProducer}})
	}
	for len(s.work) > 0 {
		p := s.work[len(s.work)-1]
		s.work = s.work[:len(s.work)-1]
		if err := s.walk(p.at, p.stack); err != nil {
			return nil, err
		}
	}
	return s.deps, nil
}

func (s *simulation) fail(i int, err error, format string, args ...interface{}) error {
	return &InconsistencyError{
		Instruction: i,
		Opcode:      s.code.Instruction(i).Op,
		Reason:      fmt.Sprintf(format, args...),
		Err:         err,
	}
}

// walk follows one path from instruction i until it ends, branches away or
// reaches a join point in an already seen state.
func (s *simulation) walk(i int, stack []int) error {
	for {
		if s.steps++; s.steps > s.cfg.MaxSteps {
			return s.fail(i, ErrBudget, "%d steps", s.cfg.MaxSteps)
		}
		if s.join[i] {
			ok, err := s.arrive(i, stack)
			if !ok || err != nil {
				return err
			}
		}
		s.deps.Reached[i] = true

		ins := s.code.Instruction(i)
		info := ins.Info()
		var err error
		if info.Kind == opcodes.KindShuffle {
			stack, err = s.shuffle(i, ins, stack)
		} else {
			stack, err = s.execute(i, ins, stack)
		}
		if err != nil {
			if s.cfg.BestEffort {
				log.WarnBy(skippedPaths, "Dropping inconsistent path", "inst", i, "op", ins.Op, "err", err)
				return nil
			}
			return err
		}
		s.trackMaxStack(stack)

		switch info.Kind {
		case opcodes.KindReturn, opcodes.KindThrow, opcodes.KindRet:
			return nil
		case opcodes.KindGoto:
			s.push(ins.Target, stack)
			return nil
		case opcodes.KindSwitch:
			for _, t := range s.code.Successors(i) {
				s.push(t, stack)
			}
			return nil
		case opcodes.KindSubroutine:
			// The subroutine sees the return address; the continuation after
			// ret does not.
			s.push(i+1, stack[:len(stack)-1])
			s.push(ins.Target, stack)
			return nil
		case opcodes.KindIf:
			s.push(ins.Target, stack)
		}
		if i+1 >= s.code.Len() {
			return s.fail(i, ErrFallOff, "")
		}
		i++
	}
}

func (s *simulation) push(at int, stack []int) {
	if at >= s.code.Len() {
		return
	}
	s.work = append(s.work, pending{at: at, stack: append([]int(nil), stack...)})
}

// arrive records the state reaching join point i and reports whether the
// walk should continue from it.
func (s *simulation) arrive(i int, stack []int) (bool, error) {
	key := stackKey(stack)
	seen := s.seen[i]
	if seen == nil {
		s.seen[i] = map[string]struct{}{key: {}}
		s.depth[i] = len(stack)
		return true, nil
	}
	if _, ok := seen[key]; ok {
		return false, nil
	}
	if len(stack) != s.depth[i] {
		if !s.cfg.BestEffort {
			return false, s.fail(i, ErrDepthMismatch, "have %d values, first arrival had %d", len(stack), s.depth[i])
		}
		log.WarnBy(skippedPaths, "Skipping join with mismatched depth", "inst", i, "depth", len(stack), "want", s.depth[i])
		return false, nil
	}
	seen[key] = struct{}{}
	return true, nil
}

func stackKey(stack []int) string {
	buf := make([]byte, 0, 2*len(stack))
	for _, v := range stack {
		buf = binary.AppendVarint(buf, int64(v))
	}
	return string(buf)
}

// category returns the stack width of a value produced by p. A duplicate
// has the width of the value it copied.
func (s *simulation) category(p int) int {
	if p == NoProducer {
		return 1
	}
	if w := s.width[p]; w != 0 {
		return int(w)
	}
	return s.code.Instruction(p).Category()
}

func (s *simulation) trackMaxStack(stack []int) {
	slots := 0
	for _, p := range stack {
		slots += s.category(p)
	}
	if slots > s.deps.MaxStack {
		s.deps.MaxStack = slots
	}
}

// execute applies an ordinary instruction: its K arguments come off the
// stack into slots K-1..0 and its own result, if any, goes on.
func (s *simulation) execute(i int, ins *classfile.Instruction, stack []int) ([]int, error) {
	k := ins.Pops()
	if k > len(stack) {
		return nil, s.fail(i, ErrStackUnderflow, "needs %d values, have %d", k, len(stack))
	}
	base := len(stack) - k
	for a, p := range stack[base:] {
		s.deps.addProducer(i, a, p)
		s.deps.addConsumer(p, i)
	}
	stack = stack[:base]
	if ins.Pushes() > 0 {
		stack = append(stack, i)
	}
	return stack, nil
}

// shuffle applies pop, dup and swap forms. Popped and duplicated values are
// consumed by the shuffler and moved values keep their producer. Copies
// carry the shuffler's own index, so the original and the copy each have
// their own consumer.
func (s *simulation) shuffle(i int, ins *classfile.Instruction, stack []int) ([]int, error) {
	// cat returns the category of the k-th value from the top, 1-based.
	var underflow bool
	cat := func(k int) int {
		if k > len(stack) {
			underflow = true
			return 1
		}
		return s.category(stack[len(stack)-k])
	}

	var form shuffleForm
	switch ins.Op {
	case opcodes.POP:
		form = formPop1
	case opcodes.POP2:
		form = formPop2
		if cat(1) == 2 {
			form = formPop1
		}
	case opcodes.DUP:
		form = formDup
	case opcodes.DUP_X1:
		form = formDupX1
	case opcodes.DUP_X2:
		form = formDupX2
		if cat(2) == 2 {
			form = formDupX1
		}
	case opcodes.DUP2:
		form = formDup2
		if cat(1) == 2 {
			form = formDup
		}
	case opcodes.DUP2_X1:
		form = formDup2X1
		if cat(1) == 2 {
			form = formDupX1
		}
	case opcodes.DUP2_X2:
		switch {
		case cat(1) == 2 && cat(2) == 2:
			form = formDupX1
		case cat(1) == 2:
			form = formDupX2
		case cat(3) == 2:
			form = formDup2X2b
		default:
			form = formDup2X2
		}
	case opcodes.SWAP:
		form = formSwap
	default:
		panic(fmt.Sprintf("analysis: %v is not a stack shuffler", ins.Op))
	}
	if underflow || form.n > len(stack) {
		return nil, s.fail(i, ErrStackUnderflow, "needs %d values, have %d", form.n, len(stack))
	}

	base := len(stack) - form.n
	vals := append([]int(nil), stack[base:]...)
	stack = stack[:base]
	if form.consume {
		for a, p := range vals {
			s.deps.addProducer(i, a, p)
			s.deps.addConsumer(p, i)
		}
		return stack, nil
	}
	for a, k := range form.dup {
		s.deps.addProducer(i, a, vals[k])
		s.deps.addConsumer(vals[k], i)
	}
	if len(form.dup) > 0 && s.width[i] == 0 {
		// Every duplicated value of one form has the same width.
		s.width[i] = int8(s.category(vals[form.dup[0]]))
	}
	for _, k := range form.out {
		if k < 0 {
			stack = append(stack, i)
		} else {
			stack = append(stack, vals[k])
		}
	}
	return stack, nil
}
