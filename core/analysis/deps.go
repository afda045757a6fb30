package analysis

import "sort"

// StackDependencies is the producer/consumer relation of one method. All
// values are sequence indices into the method's instructions.
type StackDependencies struct {
	// ArgProducers[i][a] lists the instructions that may have produced
	// argument a of instruction i, ascending. NoProducer stands for the
	// thrown exception at a handler entry.
	ArgProducers [][][]int `cbor:"1,keyasint"`

	// ValueConsumers[i] lists the instructions that consume the value
	// produced by i, ascending.
	ValueConsumers [][]int `cbor:"2,keyasint"`

	Reached  []bool `cbor:"3,keyasint"`
	MaxStack int    `cbor:"4,keyasint"` // in slots
}

func newStackDependencies(n int) *StackDependencies {
	return &StackDependencies{
		ArgProducers:   make([][][]int, n),
		ValueConsumers: make([][]int, n),
		Reached:        make([]bool, n),
	}
}

// Len returns the number of instructions covered.
func (d *StackDependencies) Len() int { return len(d.Reached) }

// NumArguments returns how many stack values instruction i was seen to take.
func (d *StackDependencies) NumArguments(i int) int { return len(d.ArgProducers[i]) }

// Producers returns the possible producers of argument arg of instruction i.
func (d *StackDependencies) Producers(i, arg int) []int {
	if arg < 0 || arg >= len(d.ArgProducers[i]) {
		return nil
	}
	return d.ArgProducers[i][arg]
}

// Consumers returns every consumer of the value produced by i.
func (d *StackDependencies) Consumers(i int) []int { return d.ValueConsumers[i] }

// FirstConsumer returns the lowest-indexed consumer of i, or NoConsumer.
func (d *StackDependencies) FirstConsumer(i int) int {
	if len(d.ValueConsumers[i]) == 0 {
		return NoConsumer
	}
	return d.ValueConsumers[i][0]
}

// SecondConsumer returns the second consumer of i, or NoConsumer.
func (d *StackDependencies) SecondConsumer(i int) int {
	if len(d.ValueConsumers[i]) < 2 {
		return NoConsumer
	}
	return d.ValueConsumers[i][1]
}

// Reachable reports whether the simulation executed instruction i.
func (d *StackDependencies) Reachable(i int) bool { return d.Reached[i] }

func (d *StackDependencies) addProducer(i, arg, producer int) {
	for len(d.ArgProducers[i]) <= arg {
		d.ArgProducers[i] = append(d.ArgProducers[i], nil)
	}
	d.ArgProducers[i][arg] = insertSorted(d.ArgProducers[i][arg], producer)
}

func (d *StackDependencies) addConsumer(producer, consumer int) {
	if producer == NoProducer {
		return
	}
	d.ValueConsumers[producer] = insertSorted(d.ValueConsumers[producer], consumer)
}

func insertSorted(s []int, v int) []int {
	k := sort.SearchInts(s, v)
	if k < len(s) && s[k] == v {
		return s
	}
	s = append(s, 0)
	copy(s[k+1:], s[k:])
	s[k] = v
	return s
}
