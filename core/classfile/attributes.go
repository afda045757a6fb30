package classfile

import (
	"fmt"
)

// Attribute names with a typed representation.
const (
	AttrCode               = "Code"
	AttrExceptions         = "Exceptions"
	AttrInnerClasses       = "InnerClasses"
	AttrSourceFile         = "SourceFile"
	AttrLineNumberTable    = "LineNumberTable"
	AttrLocalVariableTable = "LocalVariableTable"
	AttrIOInstructions     = "IOInstructions"
)

// Attribute is a named attribute of a class, field, method or code
// attribute.
type Attribute interface {
	Name() string
	// Len returns the payload length in bytes, excluding the 6 byte header.
	Length() int

	nameEntry() *UTF8Info
	write(w *writer, ctx *attrContext)
}

type attrContext struct {
	pool        *ConstantPool
	class       string
	method      string
	code        *Code
	stackMargin int
}

type attrName struct {
	NameEntry *UTF8Info
}

func (a *attrName) Name() string         { return a.NameEntry.Value }
func (a *attrName) nameEntry() *UTF8Info { return a.NameEntry }

// attributesLen returns the serialized size of an attribute list, count
// field included.
func attributesLen(attrs []Attribute) int {
	n := 2
	for _, a := range attrs {
		n += 6 + a.Length()
	}
	return n
}

func readAttributes(r *reader, ctx *attrContext) ([]Attribute, error) {
	count := int(r.u2())
	if r.err != nil {
		return nil, r.err
	}
	attrs := make([]Attribute, 0, count)
	for i := 0; i < count; i++ {
		at := r.offset()
		name, err := poolEntry[*UTF8Info](ctx.pool, r.u2())
		if r.err != nil {
			return nil, r.err
		}
		if err != nil {
			return nil, formatErrorf(at, "attribute name: %v", err)
		}
		length := int(r.u4())
		payload := r.bytes(length)
		if r.err != nil {
			return nil, r.err
		}
		a, err := parseAttribute(name, payload, at+6, ctx)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}

func parseAttribute(name *UTF8Info, payload []byte, base int, ctx *attrContext) (Attribute, error) {
	r := newSubReader(payload, base)
	var a Attribute
	switch {
	case name.Value == AttrCode && ctx.method != "" && ctx.code == nil:
		c, err := parseCode(name, r, ctx)
		if err != nil {
			return nil, err
		}
		a = c
	case name.Value == AttrExceptions:
		a = readExceptions(name, r, ctx.pool)
	case name.Value == AttrInnerClasses:
		a = readInnerClasses(name, r, ctx.pool)
	case name.Value == AttrSourceFile:
		a = readSourceFile(name, r, ctx.pool)
	case name.Value == AttrLineNumberTable && ctx.code != nil:
		a = readLineNumbers(name, r, ctx.code)
	case name.Value == AttrLocalVariableTable && ctx.code != nil:
		a = readLocalVariables(name, r, ctx)
	case name.Value == AttrIOInstructions && ctx.code != nil:
		a = readIOInstructions(name, r, ctx.code)
	default:
		return &UnknownAttribute{attrName: attrName{name}, Data: payload}, nil
	}
	if r.err != nil {
		if fe, ok := r.err.(*FormatError); ok {
			fe.Reason = name.Value + ": " + fe.Reason
		}
		return nil, r.err
	}
	if r.remaining() != 0 {
		return nil, formatErrorf(r.offset(), "%s: %d trailing bytes", name.Value, r.remaining())
	}
	return a, nil
}

func writeAttributes(w *writer, attrs []Attribute, ctx *attrContext) {
	w.u2(uint16(len(attrs)))
	for _, a := range attrs {
		w.u2(ctx.pool.indexOf(a.nameEntry()))
		w.u4(uint32(a.Length()))
		a.write(w, ctx)
	}
}

// poolRef reads a u2 index and resolves it to an entry of type T, recording
// a format error on mismatch. Index 0 yields the zero value when optional.
func poolRef[T Entry](r *reader, p *ConstantPool, optional bool) T {
	var zero T
	at := r.offset()
	idx := r.u2()
	if r.err != nil || (optional && idx == 0) {
		return zero
	}
	e, err := poolEntry[T](p, idx)
	if err != nil {
		r.err = formatErrorf(at, "%v", err)
	}
	return e
}

// UnknownAttribute keeps the payload of an attribute without a typed
// representation and writes it back verbatim.
type UnknownAttribute struct {
	attrName
	Data []byte
}

func (a *UnknownAttribute) Length() int                       { return len(a.Data) }
func (a *UnknownAttribute) write(w *writer, ctx *attrContext) { w.bytes(a.Data) }

// ExceptionsAttribute lists the checked exceptions a method declares.
type ExceptionsAttribute struct {
	attrName
	Exceptions []*ClassInfo
}

func readExceptions(name *UTF8Info, r *reader, p *ConstantPool) *ExceptionsAttribute {
	a := &ExceptionsAttribute{attrName: attrName{name}}
	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		a.Exceptions = append(a.Exceptions, poolRef[*ClassInfo](r, p, false))
	}
	return a
}

func (a *ExceptionsAttribute) Length() int { return 2 + 2*len(a.Exceptions) }

func (a *ExceptionsAttribute) write(w *writer, ctx *attrContext) {
	w.u2(uint16(len(a.Exceptions)))
	for _, c := range a.Exceptions {
		w.u2(ctx.pool.indexOf(c))
	}
}

type InnerClass struct {
	Inner *ClassInfo
	Outer *ClassInfo // nil for local and anonymous classes
	Name  *UTF8Info  // nil for anonymous classes
	Flags uint16
}

type InnerClassesAttribute struct {
	attrName
	Classes []InnerClass
}

func readInnerClasses(name *UTF8Info, r *reader, p *ConstantPool) *InnerClassesAttribute {
	a := &InnerClassesAttribute{attrName: attrName{name}}
	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		a.Classes = append(a.Classes, InnerClass{
			Inner: poolRef[*ClassInfo](r, p, false),
			Outer: poolRef[*ClassInfo](r, p, true),
			Name:  poolRef[*UTF8Info](r, p, true),
			Flags: r.u2(),
		})
	}
	return a
}

func (a *InnerClassesAttribute) Length() int { return 2 + 8*len(a.Classes) }

func (a *InnerClassesAttribute) write(w *writer, ctx *attrContext) {
	w.u2(uint16(len(a.Classes)))
	for _, c := range a.Classes {
		w.u2(ctx.pool.indexOf(c.Inner))
		w.u2(optionalIndex(ctx.pool, c.Outer))
		w.u2(optionalIndex(ctx.pool, c.Name))
		w.u2(c.Flags)
	}
}

func optionalIndex[T Entry](p *ConstantPool, e T) uint16 {
	var zero T
	if any(e) == any(zero) {
		return 0
	}
	return p.indexOf(e)
}

type SourceFileAttribute struct {
	attrName
	File *UTF8Info
}

func readSourceFile(name *UTF8Info, r *reader, p *ConstantPool) *SourceFileAttribute {
	return &SourceFileAttribute{attrName: attrName{name}, File: poolRef[*UTF8Info](r, p, false)}
}

func (a *SourceFileAttribute) Length() int { return 2 }

func (a *SourceFileAttribute) write(w *writer, ctx *attrContext) {
	w.u2(ctx.pool.indexOf(a.File))
}

// LineNumber maps the instruction at sequence index Start to a source line.
type LineNumber struct {
	Start int
	Line  uint16
}

type LineNumberTableAttribute struct {
	attrName
	Lines []LineNumber
}

func readLineNumbers(name *UTF8Info, r *reader, code *Code) *LineNumberTableAttribute {
	a := &LineNumberTableAttribute{attrName: attrName{name}}
	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		at := r.offset()
		pc := int(r.u2())
		line := r.u2()
		idx, ok := code.indexAt(pc)
		if !ok && r.err == nil {
			r.err = formatErrorf(at, "line number start %d is not an instruction", pc)
		}
		a.Lines = append(a.Lines, LineNumber{Start: idx, Line: line})
	}
	return a
}

func (a *LineNumberTableAttribute) Length() int { return 2 + 4*len(a.Lines) }

func (a *LineNumberTableAttribute) write(w *writer, ctx *attrContext) {
	w.u2(uint16(len(a.Lines)))
	for _, l := range a.Lines {
		w.u2(uint16(ctx.code.offsetOf(l.Start)))
		w.u2(l.Line)
	}
}

// LocalVariable describes a named local slot live over instructions
// [Start, End).
type LocalVariable struct {
	Start, End int
	Name       *UTF8Info
	Descriptor *UTF8Info
	Slot       uint16
}

type LocalVariableTableAttribute struct {
	attrName
	Variables []LocalVariable
}

func readLocalVariables(name *UTF8Info, r *reader, ctx *attrContext) *LocalVariableTableAttribute {
	a := &LocalVariableTableAttribute{attrName: attrName{name}}
	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		at := r.offset()
		pc, length := int(r.u2()), int(r.u2())
		v := LocalVariable{
			Name:       poolRef[*UTF8Info](r, ctx.pool, false),
			Descriptor: poolRef[*UTF8Info](r, ctx.pool, false),
			Slot:       r.u2(),
		}
		var ok1, ok2 bool
		v.Start, ok1 = ctx.code.indexAt(pc)
		v.End, ok2 = ctx.code.indexAt(pc + length)
		if (!ok1 || !ok2) && r.err == nil {
			r.err = formatErrorf(at, "local variable range [%d, %d) is not on instruction boundaries", pc, pc+length)
		}
		a.Variables = append(a.Variables, v)
	}
	return a
}

func (a *LocalVariableTableAttribute) Length() int { return 2 + 10*len(a.Variables) }

func (a *LocalVariableTableAttribute) write(w *writer, ctx *attrContext) {
	w.u2(uint16(len(a.Variables)))
	for _, v := range a.Variables {
		start := ctx.code.offsetOf(v.Start)
		w.u2(uint16(start))
		w.u2(uint16(ctx.code.offsetOf(v.End) - start))
		w.u2(ctx.pool.indexOf(v.Name))
		w.u2(ctx.pool.indexOf(v.Descriptor))
		w.u2(v.Slot)
	}
}

// IOInstructionsAttribute lists the sequence indices of instructions that
// perform input or output. Layout: u2 count, then count u2 indices.
type IOInstructionsAttribute struct {
	attrName
	Instructions []int
}

func readIOInstructions(name *UTF8Info, r *reader, code *Code) *IOInstructionsAttribute {
	a := &IOInstructionsAttribute{attrName: attrName{name}}
	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		at := r.offset()
		idx := int(r.u2())
		if idx >= code.Len() && r.err == nil {
			r.err = formatErrorf(at, "instruction index %d out of range", idx)
		}
		a.Instructions = append(a.Instructions, idx)
	}
	return a
}

func (a *IOInstructionsAttribute) Length() int { return 2 + 2*len(a.Instructions) }

func (a *IOInstructionsAttribute) write(w *writer, ctx *attrContext) {
	w.u2(uint16(len(a.Instructions)))
	for _, i := range a.Instructions {
		w.u2(uint16(i))
	}
}

func (a *IOInstructionsAttribute) String() string {
	return fmt.Sprintf("IOInstructions%v", a.Instructions)
}
