package classfile

import (
	"fmt"

	"github.com/classflow/classflow/core/opcodes"
)

// MethodDescriptor is a parsed method descriptor such as (IJLjava/lang/String;)V.
type MethodDescriptor struct {
	Args   []string
	Return string
}

// ParseMethodDescriptor splits desc into argument and return field
// descriptors.
func ParseMethodDescriptor(desc string) (MethodDescriptor, error) {
	var md MethodDescriptor
	if len(desc) == 0 || desc[0] != '(' {
		return md, fmt.Errorf("invalid method descriptor %q", desc)
	}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		n, err := fieldDescriptorLen(desc[i:])
		if err != nil {
			return md, fmt.Errorf("invalid method descriptor %q: %w", desc, err)
		}
		md.Args = append(md.Args, desc[i:i+n])
		i += n
	}
	if i >= len(desc) {
		return md, fmt.Errorf("invalid method descriptor %q: missing ')'", desc)
	}
	md.Return = desc[i+1:]
	if md.Return != "V" {
		if n, err := fieldDescriptorLen(md.Return); err != nil || n != len(md.Return) {
			return md, fmt.Errorf("invalid method descriptor %q: bad return type", desc)
		}
	}
	return md, nil
}

func fieldDescriptorLen(s string) (int, error) {
	i := 0
	for i < len(s) && s[i] == '[' {
		i++
	}
	if i >= len(s) {
		return 0, fmt.Errorf("truncated field descriptor")
	}
	switch s[i] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return i + 1, nil
	case 'L':
		for j := i + 1; j < len(s); j++ {
			if s[j] == ';' {
				return j + 1, nil
			}
		}
		return 0, fmt.Errorf("unterminated class name in %q", s)
	}
	return 0, fmt.Errorf("unexpected %q in field descriptor", s[i])
}

// TypeCode maps a field descriptor to the stack type it occupies: one of
// opcodes.TypeInt, TypeLong, TypeFloat, TypeDouble, TypeRef, or TypeNone for
// void.
func TypeCode(desc string) byte {
	if desc == "" {
		return opcodes.TypeNone
	}
	switch desc[0] {
	case 'Z', 'B', 'C', 'S', 'I':
		return opcodes.TypeInt
	case 'J':
		return opcodes.TypeLong
	case 'F':
		return opcodes.TypeFloat
	case 'D':
		return opcodes.TypeDouble
	case 'L', '[':
		return opcodes.TypeRef
	}
	return opcodes.TypeNone
}

// ArgumentSlots returns the number of local variable slots the arguments
// occupy, not counting the receiver.
func (md MethodDescriptor) ArgumentSlots() int {
	n := 0
	for _, a := range md.Args {
		n += opcodes.Category(TypeCode(a))
	}
	return n
}
