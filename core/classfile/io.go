package classfile

import (
	"github.com/classflow/classflow/core/opcodes"
)

// ClassLookup resolves an internal class name to a loaded class. It returns
// nil for unknown classes.
type ClassLookup interface {
	LookupClass(name string) *ClassFile
}

// Stream classes whose methods count as input or output, together with
// their subclasses.
var (
	outputClasses = map[string]struct{}{
		"java/io/PrintStream":  {},
		"java/io/Writer":       {},
		"java/io/OutputStream": {},
	}
	inputClasses = map[string]struct{}{
		"java/io/InputStream": {},
		"java/io/Reader":      {},
		"java/util/Scanner":   {},
	}
	outputMethods = map[string]struct{}{
		"print": {}, "println": {}, "printf": {}, "format": {}, "write": {}, "append": {},
	}
	inputMethods = map[string]struct{}{
		"read": {}, "readLine": {}, "next": {}, "nextLine": {}, "nextInt": {},
		"nextLong": {}, "nextDouble": {}, "nextFloat": {}, "nextBoolean": {}, "hasNext": {}, "hasNextLine": {},
	}
)

// maxHierarchyDepth bounds superclass walks in case of cyclic lookups.
const maxHierarchyDepth = 64

// derivesFrom reports whether class is one of roots or a subclass of one,
// following superclasses through lookup. A nil lookup only matches roots.
func derivesFrom(lookup ClassLookup, class string, roots map[string]struct{}) bool {
	for depth := 0; class != "" && depth < maxHierarchyDepth; depth++ {
		if _, ok := roots[class]; ok {
			return true
		}
		if lookup == nil {
			return false
		}
		cf := lookup.LookupClass(class)
		if cf == nil {
			return false
		}
		class = cf.SuperName()
	}
	return false
}

// IsOutputCall reports whether ins invokes an output method of a
// PrintStream, Writer or OutputStream.
func IsOutputCall(ins *Instruction, lookup ClassLookup) bool {
	return isStreamCall(ins, lookup, outputClasses, outputMethods)
}

// IsInputCall reports whether ins invokes a read method of an InputStream,
// Reader or Scanner.
func IsInputCall(ins *Instruction, lookup ClassLookup) bool {
	return isStreamCall(ins, lookup, inputClasses, inputMethods)
}

func isStreamCall(ins *Instruction, lookup ClassLookup, classes, methods map[string]struct{}) bool {
	if ins.Op != opcodes.INVOKEVIRTUAL && ins.Op != opcodes.INVOKEINTERFACE {
		return false
	}
	ref := ins.Member()
	if ref == nil {
		return false
	}
	if _, ok := methods[ref.Name()]; !ok {
		return false
	}
	return derivesFrom(lookup, ref.ClassName(), classes)
}

// ComputeIOInstructions returns the sequence indices of the input and output
// calls in code.
func ComputeIOInstructions(code *Code, lookup ClassLookup) []int {
	var out []int
	for i, ins := range code.insts {
		if IsOutputCall(ins, lookup) || IsInputCall(ins, lookup) {
			out = append(out, i)
		}
	}
	return out
}

// AnnotateIO computes the IO instructions of every method body of cf and
// stores them in an IOInstructions attribute on the code attribute,
// replacing an earlier one. It returns the number of annotated methods.
func (cf *ClassFile) AnnotateIO(lookup ClassLookup) (int, error) {
	name, err := cf.Pool.AddUTF8Info(AttrIOInstructions)
	if err != nil {
		return 0, cf.specError("", err)
	}
	annotated := 0
	for _, m := range cf.Methods {
		code := m.Code()
		if code == nil {
			continue
		}
		attr := &IOInstructionsAttribute{attrName: attrName{name}, Instructions: ComputeIOInstructions(code, lookup)}
		replaced := false
		for i, a := range code.Attributes {
			if a.Name() == AttrIOInstructions {
				code.Attributes[i] = attr
				replaced = true
				break
			}
		}
		if !replaced {
			code.Attributes = append(code.Attributes, attr)
		}
		annotated++
	}
	return annotated, nil
}
