package analysis

import (
	"errors"
	"fmt"

	"github.com/classflow/classflow/core/opcodes"
)

// NoProducer marks the synthetic stack slot holding the thrown exception at
// the start of a handler.
const NoProducer = -1

// NoConsumer is returned by the consumer accessors when a value is never
// consumed.
const NoConsumer = -1

var (
	ErrStackUnderflow = errors.New("operand stack underflow")
	ErrDepthMismatch  = errors.New("stack depth differs at join point")
	ErrFallOff        = errors.New("control falls off the end of the code")
	ErrBudget         = errors.New("analysis step budget exhausted")
	ErrNotLoop        = errors.New("branch is not a loop")
)

// InconsistencyError reports a simulation state that well-formed bytecode
// cannot reach.
type InconsistencyError struct {
	Class       string
	Method      string
	Instruction int
	Opcode      opcodes.Opcode
	Reason      string
	Err         error
}

func (e *InconsistencyError) Error() string {
	where := fmt.Sprintf("instruction %d (%v)", e.Instruction, e.Opcode)
	if e.Method != "" {
		where = fmt.Sprintf("%s.%s %s", e.Class, e.Method, where)
	}
	if e.Reason == "" {
		return fmt.Sprintf("%s: %v", where, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", where, e.Err, e.Reason)
}

func (e *InconsistencyError) Unwrap() error { return e.Err }
