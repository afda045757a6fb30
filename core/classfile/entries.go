package classfile

import (
	"fmt"
	"strconv"
)

// Tag identifies the kind of a constant pool entry.
type Tag uint8

const (
	TagPadding            Tag = 0
	TagUTF8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldref           Tag = 9
	TagMethodref          Tag = 10
	TagInterfaceMethodref Tag = 11
	TagNameAndType        Tag = 12
	TagMethodHandle       Tag = 15
	TagMethodType         Tag = 16
	TagInvokeDynamic      Tag = 18
)

func (t Tag) String() string {
	switch t {
	case TagPadding:
		return "Padding"
	case TagUTF8:
		return "Utf8"
	case TagInteger:
		return "Integer"
	case TagFloat:
		return "Float"
	case TagLong:
		return "Long"
	case TagDouble:
		return "Double"
	case TagClass:
		return "Class"
	case TagString:
		return "String"
	case TagFieldref:
		return "Fieldref"
	case TagMethodref:
		return "Methodref"
	case TagInterfaceMethodref:
		return "InterfaceMethodref"
	case TagNameAndType:
		return "NameAndType"
	case TagMethodHandle:
		return "MethodHandle"
	case TagMethodType:
		return "MethodType"
	case TagInvokeDynamic:
		return "InvokeDynamic"
	}
	return "Tag(" + strconv.Itoa(int(t)) + ")"
}

// Entry is one constant pool slot. Entries link to each other directly once
// the pool is resolved; indices are recomputed through IndexOf on write.
type Entry interface {
	Tag() Tag
	String() string

	resolve(p *ConstantPool) error
	write(w *writer, p *ConstantPool)
}

// UTF8Info holds a string constant. The original modified UTF-8 bytes are
// kept so parsed entries are written back unchanged.
type UTF8Info struct {
	Value string
	raw   []byte
}

func (e *UTF8Info) Tag() Tag                     { return TagUTF8 }
func (e *UTF8Info) String() string               { return e.Value }
func (e *UTF8Info) resolve(p *ConstantPool) error { return nil }

func (e *UTF8Info) encodedLen() int {
	if e.raw != nil {
		return len(e.raw)
	}
	return modifiedUTF8Len(e.Value)
}

func (e *UTF8Info) write(w *writer, p *ConstantPool) {
	b := e.raw
	if b == nil {
		b = encodeModifiedUTF8(e.Value)
	}
	w.u1(uint8(TagUTF8))
	w.u2(uint16(len(b)))
	w.bytes(b)
}

type IntegerInfo struct{ Value int32 }

func (e *IntegerInfo) Tag() Tag                     { return TagInteger }
func (e *IntegerInfo) String() string               { return strconv.FormatInt(int64(e.Value), 10) }
func (e *IntegerInfo) resolve(p *ConstantPool) error { return nil }
func (e *IntegerInfo) write(w *writer, p *ConstantPool) {
	w.u1(uint8(TagInteger))
	w.s4(e.Value)
}

type FloatInfo struct{ Value float32 }

func (e *FloatInfo) Tag() Tag                     { return TagFloat }
func (e *FloatInfo) String() string               { return strconv.FormatFloat(float64(e.Value), 'g', -1, 32) + "f" }
func (e *FloatInfo) resolve(p *ConstantPool) error { return nil }
func (e *FloatInfo) write(w *writer, p *ConstantPool) {
	w.u1(uint8(TagFloat))
	w.f4(e.Value)
}

type LongInfo struct{ Value int64 }

func (e *LongInfo) Tag() Tag                     { return TagLong }
func (e *LongInfo) String() string               { return strconv.FormatInt(e.Value, 10) + "L" }
func (e *LongInfo) resolve(p *ConstantPool) error { return nil }
func (e *LongInfo) write(w *writer, p *ConstantPool) {
	w.u1(uint8(TagLong))
	w.u8(uint64(e.Value))
}

type DoubleInfo struct{ Value float64 }

func (e *DoubleInfo) Tag() Tag                     { return TagDouble }
func (e *DoubleInfo) String() string               { return strconv.FormatFloat(e.Value, 'g', -1, 64) + "d" }
func (e *DoubleInfo) resolve(p *ConstantPool) error { return nil }
func (e *DoubleInfo) write(w *writer, p *ConstantPool) {
	w.u1(uint8(TagDouble))
	w.f8(e.Value)
}

// ClassInfo names a class or interface in internal form (java/lang/Object).
type ClassInfo struct {
	Name *UTF8Info

	nameIndex uint16
}

func (e *ClassInfo) Tag() Tag       { return TagClass }
func (e *ClassInfo) String() string { return e.Name.Value }

// ClassName returns the internal name, e.g. java/io/PrintStream.
func (e *ClassInfo) ClassName() string { return e.Name.Value }

func (e *ClassInfo) resolve(p *ConstantPool) (err error) {
	e.Name, err = poolEntry[*UTF8Info](p, e.nameIndex)
	return err
}

func (e *ClassInfo) write(w *writer, p *ConstantPool) {
	w.u1(uint8(TagClass))
	w.u2(p.indexOf(e.Name))
}

type StringInfo struct {
	Value *UTF8Info

	valueIndex uint16
}

func (e *StringInfo) Tag() Tag       { return TagString }
func (e *StringInfo) String() string { return strconv.Quote(e.Value.Value) }

func (e *StringInfo) resolve(p *ConstantPool) (err error) {
	e.Value, err = poolEntry[*UTF8Info](p, e.valueIndex)
	return err
}

func (e *StringInfo) write(w *writer, p *ConstantPool) {
	w.u1(uint8(TagString))
	w.u2(p.indexOf(e.Value))
}

// MemberRefInfo is a Fieldref, Methodref or InterfaceMethodref entry.
type MemberRefInfo struct {
	Class       *ClassInfo
	NameAndType *NameAndTypeInfo

	tag        Tag
	classIndex uint16
	natIndex   uint16
}

func (e *MemberRefInfo) Tag() Tag { return e.tag }

func (e *MemberRefInfo) String() string {
	return e.Class.ClassName() + "." + e.Name() + ":" + e.Descriptor()
}

func (e *MemberRefInfo) ClassName() string  { return e.Class.ClassName() }
func (e *MemberRefInfo) Name() string       { return e.NameAndType.Name.Value }
func (e *MemberRefInfo) Descriptor() string { return e.NameAndType.Descriptor.Value }

// IsField reports whether the entry references a field.
func (e *MemberRefInfo) IsField() bool { return e.tag == TagFieldref }

func (e *MemberRefInfo) resolve(p *ConstantPool) (err error) {
	if e.Class, err = poolEntry[*ClassInfo](p, e.classIndex); err != nil {
		return err
	}
	e.NameAndType, err = poolEntry[*NameAndTypeInfo](p, e.natIndex)
	return err
}

func (e *MemberRefInfo) write(w *writer, p *ConstantPool) {
	w.u1(uint8(e.tag))
	w.u2(p.indexOf(e.Class))
	w.u2(p.indexOf(e.NameAndType))
}

type NameAndTypeInfo struct {
	Name       *UTF8Info
	Descriptor *UTF8Info

	nameIndex uint16
	descIndex uint16
}

func (e *NameAndTypeInfo) Tag() Tag       { return TagNameAndType }
func (e *NameAndTypeInfo) String() string { return e.Name.Value + ":" + e.Descriptor.Value }

func (e *NameAndTypeInfo) resolve(p *ConstantPool) (err error) {
	if e.Name, err = poolEntry[*UTF8Info](p, e.nameIndex); err != nil {
		return err
	}
	e.Descriptor, err = poolEntry[*UTF8Info](p, e.descIndex)
	return err
}

func (e *NameAndTypeInfo) write(w *writer, p *ConstantPool) {
	w.u1(uint8(TagNameAndType))
	w.u2(p.indexOf(e.Name))
	w.u2(p.indexOf(e.Descriptor))
}

type MethodHandleInfo struct {
	Kind      uint8
	Reference *MemberRefInfo

	refIndex uint16
}

func (e *MethodHandleInfo) Tag() Tag { return TagMethodHandle }

func (e *MethodHandleInfo) String() string {
	return fmt.Sprintf("MethodHandle(%d, %s)", e.Kind, e.Reference)
}

func (e *MethodHandleInfo) resolve(p *ConstantPool) (err error) {
	e.Reference, err = poolEntry[*MemberRefInfo](p, e.refIndex)
	return err
}

func (e *MethodHandleInfo) write(w *writer, p *ConstantPool) {
	w.u1(uint8(TagMethodHandle))
	w.u1(e.Kind)
	w.u2(p.indexOf(e.Reference))
}

type MethodTypeInfo struct {
	Descriptor *UTF8Info

	descIndex uint16
}

func (e *MethodTypeInfo) Tag() Tag       { return TagMethodType }
func (e *MethodTypeInfo) String() string { return "MethodType(" + e.Descriptor.Value + ")" }

func (e *MethodTypeInfo) resolve(p *ConstantPool) (err error) {
	e.Descriptor, err = poolEntry[*UTF8Info](p, e.descIndex)
	return err
}

func (e *MethodTypeInfo) write(w *writer, p *ConstantPool) {
	w.u1(uint8(TagMethodType))
	w.u2(p.indexOf(e.Descriptor))
}

type InvokeDynamicInfo struct {
	BootstrapMethod uint16
	NameAndType     *NameAndTypeInfo

	natIndex uint16
}

func (e *InvokeDynamicInfo) Tag() Tag { return TagInvokeDynamic }

func (e *InvokeDynamicInfo) String() string {
	return fmt.Sprintf("InvokeDynamic(#%d, %s)", e.BootstrapMethod, e.NameAndType)
}

func (e *InvokeDynamicInfo) Name() string       { return e.NameAndType.Name.Value }
func (e *InvokeDynamicInfo) Descriptor() string { return e.NameAndType.Descriptor.Value }

func (e *InvokeDynamicInfo) resolve(p *ConstantPool) (err error) {
	e.NameAndType, err = poolEntry[*NameAndTypeInfo](p, e.natIndex)
	return err
}

func (e *InvokeDynamicInfo) write(w *writer, p *ConstantPool) {
	w.u1(uint8(TagInvokeDynamic))
	w.u2(e.BootstrapMethod)
	w.u2(p.indexOf(e.NameAndType))
}

// paddingInfo fills the slot after a Long or Double. It is never written.
type paddingInfo struct {
	owner Entry
}

func (e *paddingInfo) Tag() Tag                          { return TagPadding }
func (e *paddingInfo) String() string                    { return "(padding)" }
func (e *paddingInfo) resolve(p *ConstantPool) error      { return nil }
func (e *paddingInfo) write(w *writer, p *ConstantPool) {}
