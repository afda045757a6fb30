package analysis

import (
	"sync"

	"github.com/willf/bitset"

	"github.com/classflow/classflow/core/classfile"
	"github.com/classflow/classflow/core/opcodes"
)

// BranchKind is the source-level shape suggested by a branch.
type BranchKind uint8

const (
	NotBranch BranchKind = iota
	BranchIf
	BranchSwitch
	BranchWhile
	BranchFor
	BranchGoto
	BranchSubroutine
)

var branchKindNames = [...]string{
	NotBranch:        "",
	BranchIf:         "if",
	BranchSwitch:     "switch",
	BranchWhile:      "while",
	BranchFor:        "for",
	BranchGoto:       "goto",
	BranchSubroutine: "jsr",
}

func (k BranchKind) String() string { return branchKindNames[k] }

// IsLoop reports whether k closes a loop.
func (k BranchKind) IsLoop() bool { return k == BranchWhile || k == BranchFor }

const (
	loopUnknown int8 = iota
	loopYes
	loopNo
)

// Loops answers loop questions about one method. Results are computed on
// demand and cached per branch. It is safe for concurrent use.
type Loops struct {
	code *classfile.Code

	lock  sync.Mutex
	state []int8
	paths map[pathsKey]*PathSet
}

type pathsKey struct{ branch, limit int }

// Loop is one back edge.
type Loop struct {
	Branch int
	Header int
	Kind   BranchKind
}

// NewLoops returns the loop analysis of code.
func NewLoops(code *classfile.Code) *Loops {
	return &Loops{
		code:  code,
		state: make([]int8, code.Len()),
		paths: make(map[pathsKey]*PathSet),
	}
}

// IsLoop reports whether instruction b is a back edge: a branch whose target
// precedes it and from whose target b is reachable.
func (l *Loops) IsLoop(b int) bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.isLoop(b)
}

func (l *Loops) isLoop(b int) bool {
	switch l.state[b] {
	case loopYes:
		return true
	case loopNo:
		return false
	}
	ins := l.code.Instruction(b)
	kind := ins.Info().Kind
	loop := (kind == opcodes.KindIf || kind == opcodes.KindGoto) &&
		ins.Target <= b && l.reaches(ins.Target, b)
	if loop {
		l.state[b] = loopYes
	} else {
		l.state[b] = loopNo
	}
	return loop
}

// reaches walks the successor graph from src looking for dst.
func (l *Loops) reaches(src, dst int) bool {
	visited := bitset.New(uint(l.code.Len()))
	stack := []int{src}
	visited.Set(uint(src))
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if i == dst {
			return true
		}
		for _, s := range l.code.Successors(i) {
			if !visited.Test(uint(s)) {
				visited.Set(uint(s))
				stack = append(stack, s)
			}
		}
	}
	return false
}

// Kind classifies instruction b.
func (l *Loops) Kind(b int) BranchKind {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.kind(b)
}

func (l *Loops) kind(b int) BranchKind {
	ins := l.code.Instruction(b)
	switch ins.Info().Kind {
	case opcodes.KindSwitch:
		return BranchSwitch
	case opcodes.KindSubroutine:
		return BranchSubroutine
	case opcodes.KindIf, opcodes.KindGoto:
		if l.isLoop(b) {
			if l.isForShaped(ins.Target, b) {
				return BranchFor
			}
			return BranchWhile
		}
		if ins.Info().Kind == opcodes.KindGoto {
			return BranchGoto
		}
		return BranchIf
	}
	return NotBranch
}

// isForShaped looks for the jump-to-test that precedes a for loop body: an
// unconditional jump just before the header landing in (header, branch].
func (l *Loops) isForShaped(header, b int) bool {
	if header == 0 {
		return false
	}
	prev := l.code.Instruction(header - 1)
	if prev.Op != opcodes.GOTO && prev.Op != opcodes.GOTO_W {
		return false
	}
	return prev.Target > header && prev.Target <= b
}

// All returns every loop of the method in instruction order.
func (l *Loops) All() []Loop {
	l.lock.Lock()
	defer l.lock.Unlock()

	var out []Loop
	for b := 0; b < l.code.Len(); b++ {
		if l.isLoop(b) {
			out = append(out, Loop{Branch: b, Header: l.code.Instruction(b).Target, Kind: l.kind(b)})
		}
	}
	return out
}

// Body returns the instructions of the loop closed by b: every instruction
// in [header, b] reachable from the header without leaving that range.
func (l *Loops) Body(b int) ([]int, error) {
	if !l.IsLoop(b) {
		return nil, ErrNotLoop
	}
	header := l.code.Instruction(b).Target
	visited := bitset.New(uint(l.code.Len()))
	stack := []int{header}
	visited.Set(uint(header))
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, s := range l.code.Successors(i) {
			if s >= header && s <= b && !visited.Test(uint(s)) {
				visited.Set(uint(s))
				stack = append(stack, s)
			}
		}
	}
	out := make([]int, 0, visited.Count())
	for i, ok := visited.NextSet(0); ok; i, ok = visited.NextSet(i + 1) {
		out = append(out, int(i))
	}
	return out, nil
}
