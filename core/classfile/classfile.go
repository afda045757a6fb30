package classfile

import (
	"io"
	"strings"
)

// Magic is the first four bytes of every class file.
const Magic = 0xCAFEBABE

// Access flags.
const (
	AccPublic       = 0x0001
	AccPrivate      = 0x0002
	AccProtected    = 0x0004
	AccStatic       = 0x0008
	AccFinal        = 0x0010
	AccSuper        = 0x0020
	AccSynchronized = 0x0020
	AccNative       = 0x0100
	AccInterface    = 0x0200
	AccAbstract     = 0x0400
)

// ClassFile is a parsed class. The hierarchy links are filled in by the
// caller once all related classes are loaded and are frozen by TrimToSize.
type ClassFile struct {
	Minor, Major uint16
	Pool         *ConstantPool
	AccessFlags  uint16
	This         *ClassInfo
	Super        *ClassInfo // nil only for java/lang/Object
	Interfaces   []*ClassInfo
	Fields       []*FieldInfo
	Methods      []*MethodInfo
	Attributes   []Attribute

	superclass   *ClassFile
	subclasses   []*ClassFile
	implementors []*ClassFile
	frozen       bool
}

// Member holds what fields and methods have in common.
type Member struct {
	AccessFlags uint16
	Name        *UTF8Info
	Descriptor  *UTF8Info
	Attributes  []Attribute
}

func (m *Member) String() string { return m.Name.Value + m.Descriptor.Value }

// Attribute returns the first attribute called name, or nil.
func (m *Member) Attribute(name string) Attribute {
	for _, a := range m.Attributes {
		if a.Name() == name {
			return a
		}
	}
	return nil
}

type FieldInfo struct {
	Member
}

type MethodInfo struct {
	Member
}

// Code returns the method body, or nil for abstract and native methods.
func (m *MethodInfo) Code() *Code {
	c, _ := m.Attribute(AttrCode).(*Code)
	return c
}

// IsStatic reports whether the method has no receiver.
func (m *MethodInfo) IsStatic() bool { return m.AccessFlags&AccStatic != 0 }

// NewClassFile returns an empty class named name extending super. An empty
// super leaves the class without a superclass.
func NewClassFile(name, super string) (*ClassFile, error) {
	cf := &ClassFile{Major: 52, Pool: NewConstantPool(), AccessFlags: AccPublic | AccSuper}
	var err error
	if cf.This, err = cf.Pool.AddClassInfo(name); err != nil {
		return nil, err
	}
	if super != "" {
		if cf.Super, err = cf.Pool.AddClassInfo(super); err != nil {
			return nil, err
		}
	}
	return cf, nil
}

// AddMethod appends a method. code may be nil for methods without a body.
func (cf *ClassFile) AddMethod(flags uint16, name, descriptor string, code *Code) (*MethodInfo, error) {
	n, err := cf.Pool.AddUTF8Info(name)
	if err != nil {
		return nil, cf.specError(name+descriptor, err)
	}
	d, err := cf.Pool.AddUTF8Info(descriptor)
	if err != nil {
		return nil, cf.specError(name+descriptor, err)
	}
	m := &MethodInfo{Member{AccessFlags: flags, Name: n, Descriptor: d}}
	if code != nil {
		m.Attributes = append(m.Attributes, code)
	}
	cf.Methods = append(cf.Methods, m)
	return m, nil
}

// Parse decodes a complete class file.
func Parse(data []byte) (*ClassFile, error) {
	r := newReader(data)
	if magic := r.u4(); r.err == nil && magic != Magic {
		return nil, formatErrorf(0, "bad magic 0x%08x", magic)
	}
	cf := &ClassFile{}
	cf.Minor = r.u2()
	cf.Major = r.u2()
	if r.err != nil {
		return nil, r.err
	}
	pool, err := readPool(r)
	if err != nil {
		return nil, err
	}
	cf.Pool = pool
	cf.AccessFlags = r.u2()
	cf.This = poolRef[*ClassInfo](r, pool, false)
	cf.Super = poolRef[*ClassInfo](r, pool, true)
	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		cf.Interfaces = append(cf.Interfaces, poolRef[*ClassInfo](r, pool, false))
	}
	if r.err != nil {
		return nil, r.err
	}
	ctx := &attrContext{pool: pool, class: cf.Name()}

	n = int(r.u2())
	for i := 0; i < n; i++ {
		m, err := readMember(r, ctx, false)
		if err != nil {
			return nil, err
		}
		cf.Fields = append(cf.Fields, &FieldInfo{m})
	}
	n = int(r.u2())
	for i := 0; i < n; i++ {
		m, err := readMember(r, ctx, true)
		if err != nil {
			return nil, err
		}
		cf.Methods = append(cf.Methods, &MethodInfo{m})
	}
	if cf.Attributes, err = readAttributes(r, ctx); err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, formatErrorf(r.offset(), "%d trailing bytes", r.remaining())
	}
	return cf, nil
}

// ParseReader reads r to the end and parses the result. Read errors are
// returned unmodified.
func ParseReader(r io.Reader) (*ClassFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func readMember(r *reader, ctx *attrContext, method bool) (Member, error) {
	var m Member
	m.AccessFlags = r.u2()
	m.Name = poolRef[*UTF8Info](r, ctx.pool, false)
	m.Descriptor = poolRef[*UTF8Info](r, ctx.pool, false)
	if r.err != nil {
		return m, r.err
	}
	mctx := *ctx
	if method {
		mctx.method = m.String()
	}
	attrs, err := readAttributes(r, &mctx)
	if err != nil {
		return m, err
	}
	m.Attributes = attrs
	return m, nil
}

// Name returns the internal name of the class.
func (cf *ClassFile) Name() string {
	if cf.This == nil || cf.This.Name == nil {
		return ""
	}
	return cf.This.ClassName()
}

// QualifiedName returns the dotted name, e.g. java.lang.String.
func (cf *ClassFile) QualifiedName() string {
	return strings.ReplaceAll(cf.Name(), "/", ".")
}

// SuperName returns the internal name of the superclass, or "".
func (cf *ClassFile) SuperName() string {
	if cf.Super == nil {
		return ""
	}
	return cf.Super.ClassName()
}

// InterfaceNames returns the internal names of the direct superinterfaces.
func (cf *ClassFile) InterfaceNames() []string {
	out := make([]string, len(cf.Interfaces))
	for i, c := range cf.Interfaces {
		out[i] = c.ClassName()
	}
	return out
}

func (cf *ClassFile) IsInterface() bool { return cf.AccessFlags&AccInterface != 0 }

// SourceFile returns the SourceFile attribute value, or "".
func (cf *ClassFile) SourceFile() string {
	for _, a := range cf.Attributes {
		if sf, ok := a.(*SourceFileAttribute); ok {
			return sf.File.Value
		}
	}
	return ""
}

// Method returns the method with the given name and descriptor, or nil.
func (cf *ClassFile) Method(name, descriptor string) *MethodInfo {
	for _, m := range cf.Methods {
		if m.Name.Value == name && m.Descriptor.Value == descriptor {
			return m
		}
	}
	return nil
}

// SetMethodInstructions replaces the body of m; see Code.SetInstructions.
// Limit violations are reported as *SpecError naming the class and method.
func (cf *ClassFile) SetMethodInstructions(m *MethodInfo, insts []*Instruction) error {
	code := m.Code()
	if code == nil {
		return &SpecError{Class: cf.Name(), Method: m.String(), Err: ErrBranchOutOfRange}
	}
	if err := code.SetInstructions(insts); err != nil {
		return withContext(err, cf.Name(), m.String())
	}
	return nil
}

func (cf *ClassFile) specError(method string, err error) error {
	return withContext(err, cf.Name(), method)
}

// Superclass returns the linked superclass, if any.
func (cf *ClassFile) Superclass() *ClassFile { return cf.superclass }

// Subclasses returns the linked direct subclasses.
func (cf *ClassFile) Subclasses() []*ClassFile { return cf.subclasses }

// Implementors returns the linked classes that directly implement this
// interface.
func (cf *ClassFile) Implementors() []*ClassFile { return cf.implementors }

func (cf *ClassFile) SetSuperclass(super *ClassFile) error {
	if cf.frozen {
		return ErrFrozen
	}
	cf.superclass = super
	return nil
}

func (cf *ClassFile) SetSubclasses(subs []*ClassFile) error {
	if cf.frozen {
		return ErrFrozen
	}
	cf.subclasses = subs
	return nil
}

func (cf *ClassFile) SetImplementors(impls []*ClassFile) error {
	if cf.frozen {
		return ErrFrozen
	}
	cf.implementors = impls
	return nil
}

// TrimToSize releases spare slice capacity and freezes the hierarchy links.
func (cf *ClassFile) TrimToSize() {
	cf.Interfaces = trim(cf.Interfaces)
	cf.Fields = trim(cf.Fields)
	cf.Methods = trim(cf.Methods)
	cf.Attributes = trim(cf.Attributes)
	cf.subclasses = trim(cf.subclasses)
	cf.implementors = trim(cf.implementors)
	for _, m := range cf.Methods {
		m.Attributes = trim(m.Attributes)
		if c := m.Code(); c != nil {
			c.Handlers = trim(c.Handlers)
			c.Attributes = trim(c.Attributes)
		}
	}
	cf.frozen = true
}

// Frozen reports whether TrimToSize has been called.
func (cf *ClassFile) Frozen() bool { return cf.frozen }

func trim[T any](s []T) []T {
	if len(s) == cap(s) {
		return s
	}
	return append(make([]T, 0, len(s)), s...)
}
