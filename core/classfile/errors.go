package classfile

import (
	"errors"
	"fmt"
)

var (
	// ErrCodeTooLong is returned when a code array would exceed 65535 bytes.
	ErrCodeTooLong = errors.New("code length exceeds 65535 bytes")

	// ErrPoolOverflow is returned when the constant pool would exceed 65535 slots.
	ErrPoolOverflow = errors.New("constant pool exceeds 65535 entries")

	// ErrStringTooLong is returned when a string constant would encode to
	// more than 65535 bytes of modified UTF-8.
	ErrStringTooLong = errors.New("string constant exceeds 65535 encoded bytes")

	// ErrBranchOutOfRange is returned when a branch target is not an
	// instruction of the method or its offset does not fit the encoding.
	ErrBranchOutOfRange = errors.New("branch target out of range")

	// ErrFrozen is returned when linking a class after TrimToSize.
	ErrFrozen = errors.New("class file is frozen")
)

// FormatError reports malformed class file bytes.
type FormatError struct {
	Offset int
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed class file at offset %d: %s", e.Offset, e.Reason)
}

func formatErrorf(offset int, format string, args ...interface{}) *FormatError {
	return &FormatError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

// SpecError reports a class file limit violated by a class or method. Err is
// one of the Err sentinels above, possibly wrapped with more detail.
type SpecError struct {
	Class  string
	Method string
	Err    error
}

func (e *SpecError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("class %s: %v", e.Class, e.Err)
	}
	return fmt.Sprintf("class %s method %s: %v", e.Class, e.Method, e.Err)
}

func (e *SpecError) Unwrap() error { return e.Err }

// withContext fills in class and method names on SpecErrors that were
// raised below the class level.
func withContext(err error, class, method string) error {
	var se *SpecError
	if errors.As(err, &se) {
		if se.Class == "" {
			se.Class = class
		}
		if se.Method == "" {
			se.Method = method
		}
		return err
	}
	if errors.Is(err, ErrCodeTooLong) || errors.Is(err, ErrPoolOverflow) ||
		errors.Is(err, ErrStringTooLong) || errors.Is(err, ErrBranchOutOfRange) {
		return &SpecError{Class: class, Method: method, Err: err}
	}
	return err
}
