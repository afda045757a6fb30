package analysis

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// PathEnd says why a loop path stopped.
type PathEnd uint8

const (
	EndHeader   PathEnd = iota // back at the loop header
	EndRevisit                 // reached an instruction already on the path
	EndExit                    // left the loop range
	EndTerminal                // return, throw or ret
)

func (e PathEnd) String() string {
	switch e {
	case EndHeader:
		return "header"
	case EndRevisit:
		return "revisit"
	case EndExit:
		return "exit"
	case EndTerminal:
		return "terminal"
	}
	return "unknown"
}

// Fork records the successor a path took at a branch.
type Fork struct {
	At   int
	Took int
}

// LoopPath is one walk through a loop iteration.
type LoopPath struct {
	Instructions []int
	Forks        []Fork
	End          PathEnd
	Last         int // the instruction that ended the path
}

// PathSet holds the enumerated paths of one loop.
type PathSet struct {
	Header    int
	Branch    int
	Paths     []LoopPath
	Truncated bool
}

type pathWalk struct {
	at      int
	visited mapset.Set[int]
	path    LoopPath
}

func (w *pathWalk) fork(at, took int) *pathWalk {
	return &pathWalk{
		at:      took,
		visited: w.visited.Clone(),
		path: LoopPath{
			Instructions: append([]int(nil), w.path.Instructions...),
			Forks:        append(append([]Fork(nil), w.path.Forks...), Fork{At: at, Took: took}),
		},
	}
}

// Paths enumerates the distinct paths through one iteration of the loop
// closed by b, depth first from the header, forking at every branch. At
// most limit paths are returned. Results are cached per branch and limit
// and must not be modified.
func (l *Loops) Paths(b int, limit int) (*PathSet, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if !l.isLoop(b) {
		return nil, ErrNotLoop
	}
	key := pathsKey{b, limit}
	if set, ok := l.paths[key]; ok {
		return set, nil
	}
	set := l.enumerate(b, limit)
	l.paths[key] = set
	return set, nil
}

func (l *Loops) enumerate(b int, limit int) *PathSet {
	header := l.code.Instruction(b).Target
	set := &PathSet{Header: header, Branch: b}

	work := []*pathWalk{{at: header, visited: mapset.NewThreadUnsafeSet[int]()}}
	for len(work) > 0 {
		if len(set.Paths) >= limit {
			set.Truncated = true
			break
		}
		w := work[len(work)-1]
		work = work[:len(work)-1]
		for {
			i := w.at
			w.path.Last = i
			if i == header && len(w.path.Instructions) > 0 {
				w.path.End = EndHeader
				break
			}
			if i < header || i > b {
				w.path.End = EndExit
				break
			}
			if !w.visited.Add(i) {
				w.path.End = EndRevisit
				break
			}
			w.path.Instructions = append(w.path.Instructions, i)
			succ := l.code.Successors(i)
			if len(succ) == 0 {
				w.path.End = EndTerminal
				break
			}
			if len(succ) > 1 {
				for k := len(succ) - 1; k >= 1; k-- {
					work = append(work, w.fork(i, succ[k]))
				}
				w.path.Forks = append(w.path.Forks, Fork{At: i, Took: succ[0]})
			}
			w.at = succ[0]
		}
		set.Paths = append(set.Paths, w.path)
	}
	return set
}
