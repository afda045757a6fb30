package classfile

import (
	"sort"

	"github.com/classflow/classflow/core/opcodes"
)

// Incoming returns the sequence indices of the branches targeting
// instruction i, ascending. The slice aliases internal storage.
func (c *Code) Incoming(i int) []int32 {
	return c.inEdges[c.inStart[i]:c.inStart[i+1]]
}

// HasIncoming reports whether any branch targets instruction i.
func (c *Code) HasIncoming(i int) bool {
	return c.inStart[i] != c.inStart[i+1]
}

// Successors returns the instructions control may reach next from i,
// excluding exception edges. Conditional branches list the fall-through
// first; switches list the default first; jsr lists the subroutine and then
// the instruction it returns to.
func (c *Code) Successors(i int) []int {
	ins := c.insts[i]
	next := i + 1
	info := ins.Info()
	switch info.Kind {
	case opcodes.KindReturn, opcodes.KindThrow, opcodes.KindRet:
		return nil
	case opcodes.KindGoto:
		return []int{ins.Target}
	case opcodes.KindIf:
		out := make([]int, 0, 2)
		if next < len(c.insts) {
			out = append(out, next)
		}
		if ins.Target != next {
			out = append(out, ins.Target)
		}
		return out
	case opcodes.KindSubroutine:
		out := []int{ins.Target}
		if next < len(c.insts) && next != ins.Target {
			out = append(out, next)
		}
		return out
	case opcodes.KindSwitch:
		seen := make(map[int]struct{}, len(ins.Switch.Targets)+1)
		out := make([]int, 0, len(ins.Switch.Targets)+1)
		for _, t := range ins.Targets() {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				out = append(out, t)
			}
		}
		return out
	}
	if next < len(c.insts) {
		return []int{next}
	}
	return nil
}

// Predecessors returns the instructions that may transfer control to i:
// the previous instruction when it falls through, every branch targeting i
// and, when i starts an exception handler, every instruction the handler
// protects. The result is ascending and duplicate free.
func (c *Code) Predecessors(i int) []int {
	set := make(map[int]struct{})
	if i > 0 && c.insts[i-1].Op.FallsThrough() {
		set[i-1] = struct{}{}
	}
	if i > 0 && c.insts[i-1].Info().Kind == opcodes.KindSubroutine {
		set[i-1] = struct{}{}
	}
	for _, b := range c.Incoming(i) {
		set[int(b)] = struct{}{}
	}
	for _, h := range c.Handlers {
		if h.Handler != i {
			continue
		}
		for j := h.Start; j < h.End; j++ {
			set[j] = struct{}{}
		}
	}
	out := make([]int, 0, len(set))
	for j := range set {
		out = append(out, j)
	}
	sort.Ints(out)
	return out
}
