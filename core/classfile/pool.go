package classfile

import (
	"fmt"
	"math"
	"strconv"
)

// MaxPoolSize is the largest slot count a constant pool may have, slot 0
// included.
const MaxPoolSize = 65535

// MaxUTF8Length is the largest encoded length of a UTF8 entry.
const MaxUTF8Length = 65535

// ConstantPool is the table of constants shared by one class file. Slot 0 is
// reserved and every Long or Double occupies two slots.
type ConstantPool struct {
	entries []Entry
	index   map[Entry]int
	keys    map[string]int
}

// NewConstantPool returns an empty pool holding only the reserved slot.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{
		entries: []Entry{nil},
		index:   make(map[Entry]int),
		keys:    make(map[string]int),
	}
}

// ReadPool decodes a constant pool from the start of data and returns the
// number of bytes consumed.
func ReadPool(data []byte) (*ConstantPool, int, error) {
	r := newReader(data)
	p, err := readPool(r)
	if err != nil {
		return nil, r.pos, err
	}
	return p, r.pos, nil
}

func readPool(r *reader) (*ConstantPool, error) {
	start := r.offset()
	count := int(r.u2())
	if r.err != nil {
		return nil, r.err
	}
	if count == 0 {
		return nil, formatErrorf(start, "constant pool count is zero")
	}
	p := &ConstantPool{
		entries: make([]Entry, 1, count),
		index:   make(map[Entry]int, count),
		keys:    make(map[string]int, count),
	}
	for slot := 1; slot < count; slot++ {
		at := r.offset()
		e := readEntry(r)
		if r.err != nil {
			return nil, r.err
		}
		p.register(e)
		if e.Tag() == TagLong || e.Tag() == TagDouble {
			slot++
			if slot >= count {
				return nil, formatErrorf(at, "%v entry in last constant pool slot", e.Tag())
			}
			p.register(&paddingInfo{owner: e})
		}
	}
	if err := p.resolveDependencies(); err != nil {
		return nil, err
	}
	return p, nil
}

func readEntry(r *reader) Entry {
	at := r.offset()
	tag := Tag(r.u1())
	switch tag {
	case TagUTF8:
		n := int(r.u2())
		raw := r.bytes(n)
		s, ok := decodeModifiedUTF8(raw)
		if !ok && r.err == nil {
			r.err = formatErrorf(at, "invalid modified UTF-8 string")
		}
		return &UTF8Info{Value: s, raw: raw}
	case TagInteger:
		return &IntegerInfo{Value: r.s4()}
	case TagFloat:
		return &FloatInfo{Value: r.f4()}
	case TagLong:
		return &LongInfo{Value: int64(r.u8())}
	case TagDouble:
		return &DoubleInfo{Value: r.f8()}
	case TagClass:
		return &ClassInfo{nameIndex: r.u2()}
	case TagString:
		return &StringInfo{valueIndex: r.u2()}
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
		return &MemberRefInfo{tag: tag, classIndex: r.u2(), natIndex: r.u2()}
	case TagNameAndType:
		return &NameAndTypeInfo{nameIndex: r.u2(), descIndex: r.u2()}
	case TagMethodHandle:
		return &MethodHandleInfo{Kind: r.u1(), refIndex: r.u2()}
	case TagMethodType:
		return &MethodTypeInfo{descIndex: r.u2()}
	case TagInvokeDynamic:
		return &InvokeDynamicInfo{BootstrapMethod: r.u2(), natIndex: r.u2()}
	}
	if r.err == nil {
		r.err = formatErrorf(at, "unknown constant pool tag %d", tag)
	}
	return nil
}

// resolveDependencies turns the raw indices of every entry into direct
// links. It runs after all entries are read since entries may reference
// later slots.
func (p *ConstantPool) resolveDependencies() error {
	for i, e := range p.entries {
		if e == nil {
			continue
		}
		if err := e.resolve(p); err != nil {
			return fmt.Errorf("constant pool entry #%d: %w", i, err)
		}
	}
	// Keys depend on resolved links.
	for i, e := range p.entries {
		if e == nil {
			continue
		}
		if k := entryKey(e); k != "" {
			if _, ok := p.keys[k]; !ok {
				p.keys[k] = i
			}
		}
	}
	return nil
}

func (p *ConstantPool) register(e Entry) int {
	i := len(p.entries)
	p.entries = append(p.entries, e)
	p.index[e] = i
	return i
}

// poolEntry fetches the entry at index and checks its type.
func poolEntry[T Entry](p *ConstantPool, index uint16) (T, error) {
	var zero T
	e := p.Get(int(index))
	if e == nil {
		return zero, &FormatError{Offset: -1, Reason: "invalid constant pool index " + strconv.Itoa(int(index))}
	}
	v, ok := e.(T)
	if !ok {
		return zero, &FormatError{Offset: -1, Reason: fmt.Sprintf("constant pool index %d is %v, want %T", index, e.Tag(), zero)}
	}
	return v, nil
}

// Len returns the slot count including the reserved slot 0.
func (p *ConstantPool) Len() int { return len(p.entries) }

// Get returns the entry at slot i, or nil for slot 0 and out of range slots.
// Padding slots return a placeholder whose tag is TagPadding.
func (p *ConstantPool) Get(i int) Entry {
	if i <= 0 || i >= len(p.entries) {
		return nil
	}
	return p.entries[i]
}

// IndexOf returns the slot of e, compared by identity, or 0 when e is not in
// the pool.
func (p *ConstantPool) IndexOf(e Entry) int {
	if e == nil {
		return 0
	}
	return p.index[e]
}

func (p *ConstantPool) indexOf(e Entry) uint16 {
	return uint16(p.IndexOf(e))
}

// Entries calls fn for every non-padding entry in slot order.
func (p *ConstantPool) Entries(fn func(index int, e Entry)) {
	for i, e := range p.entries {
		if e == nil || e.Tag() == TagPadding {
			continue
		}
		fn(i, e)
	}
}

// Size returns the serialized length in bytes, count field included.
func (p *ConstantPool) Size() int {
	w := newWriter(0)
	p.write(w)
	return w.len()
}

// checkStrings fails on the first UTF8 entry too long to encode.
func (p *ConstantPool) checkStrings() error {
	for i, e := range p.entries {
		if u, ok := e.(*UTF8Info); ok && u.encodedLen() > MaxUTF8Length {
			return fmt.Errorf("pool entry %d: %w", i, ErrStringTooLong)
		}
	}
	return nil
}

func (p *ConstantPool) write(w *writer) {
	w.u2(uint16(len(p.entries)))
	for _, e := range p.entries[1:] {
		e.write(w, p)
	}
}

// Bytes returns the serialized pool, count field included.
func (p *ConstantPool) Bytes() []byte {
	w := newWriter(16 * len(p.entries))
	p.write(w)
	return w.buf
}

func entryKey(e Entry) string {
	switch e := e.(type) {
	case *UTF8Info:
		return "1:" + e.Value
	case *IntegerInfo:
		return "3:" + strconv.FormatInt(int64(e.Value), 10)
	case *FloatInfo:
		return "4:" + strconv.FormatUint(uint64(math.Float32bits(e.Value)), 16)
	case *LongInfo:
		return "5:" + strconv.FormatInt(e.Value, 10)
	case *DoubleInfo:
		return "6:" + strconv.FormatUint(math.Float64bits(e.Value), 16)
	case *ClassInfo:
		return "7:" + e.Name.Value
	case *StringInfo:
		return "8:" + e.Value.Value
	case *MemberRefInfo:
		return strconv.Itoa(int(e.tag)) + ":" + e.String()
	case *NameAndTypeInfo:
		return "12:" + e.String()
	}
	return ""
}

func (p *ConstantPool) existing(key string) Entry {
	if i, ok := p.keys[key]; ok {
		return p.entries[i]
	}
	return nil
}

func (p *ConstantPool) add(e Entry) (Entry, error) {
	key := entryKey(e)
	if old := p.existing(key); old != nil {
		return old, nil
	}
	slots := 1
	if e.Tag() == TagLong || e.Tag() == TagDouble {
		slots = 2
	}
	if len(p.entries)+slots > MaxPoolSize {
		return nil, ErrPoolOverflow
	}
	i := p.register(e)
	if slots == 2 {
		p.register(&paddingInfo{owner: e})
	}
	if key != "" {
		p.keys[key] = i
	}
	return e, nil
}

// AddUTF8Info returns the entry for s, appending one if none exists.
func (p *ConstantPool) AddUTF8Info(s string) (*UTF8Info, error) {
	if modifiedUTF8Len(s) > MaxUTF8Length {
		return nil, &SpecError{Err: ErrStringTooLong}
	}
	e, err := p.add(&UTF8Info{Value: s})
	if err != nil {
		return nil, err
	}
	return e.(*UTF8Info), nil
}

func (p *ConstantPool) AddIntegerInfo(v int32) (*IntegerInfo, error) {
	e, err := p.add(&IntegerInfo{Value: v})
	if err != nil {
		return nil, err
	}
	return e.(*IntegerInfo), nil
}

func (p *ConstantPool) AddFloatInfo(v float32) (*FloatInfo, error) {
	e, err := p.add(&FloatInfo{Value: v})
	if err != nil {
		return nil, err
	}
	return e.(*FloatInfo), nil
}

func (p *ConstantPool) AddLongInfo(v int64) (*LongInfo, error) {
	e, err := p.add(&LongInfo{Value: v})
	if err != nil {
		return nil, err
	}
	return e.(*LongInfo), nil
}

func (p *ConstantPool) AddDoubleInfo(v float64) (*DoubleInfo, error) {
	e, err := p.add(&DoubleInfo{Value: v})
	if err != nil {
		return nil, err
	}
	return e.(*DoubleInfo), nil
}

// AddClassInfo returns the class entry for an internal name, appending the
// name and the class entry as needed.
func (p *ConstantPool) AddClassInfo(name string) (*ClassInfo, error) {
	if e := p.existing("7:" + name); e != nil {
		return e.(*ClassInfo), nil
	}
	utf, err := p.AddUTF8Info(name)
	if err != nil {
		return nil, err
	}
	e, err := p.add(&ClassInfo{Name: utf})
	if err != nil {
		return nil, err
	}
	return e.(*ClassInfo), nil
}

func (p *ConstantPool) AddStringInfo(s string) (*StringInfo, error) {
	if e := p.existing("8:" + s); e != nil {
		return e.(*StringInfo), nil
	}
	utf, err := p.AddUTF8Info(s)
	if err != nil {
		return nil, err
	}
	e, err := p.add(&StringInfo{Value: utf})
	if err != nil {
		return nil, err
	}
	return e.(*StringInfo), nil
}

func (p *ConstantPool) AddNameAndTypeInfo(name, descriptor string) (*NameAndTypeInfo, error) {
	if e := p.existing("12:" + name + ":" + descriptor); e != nil {
		return e.(*NameAndTypeInfo), nil
	}
	n, err := p.AddUTF8Info(name)
	if err != nil {
		return nil, err
	}
	d, err := p.AddUTF8Info(descriptor)
	if err != nil {
		return nil, err
	}
	e, err := p.add(&NameAndTypeInfo{Name: n, Descriptor: d})
	if err != nil {
		return nil, err
	}
	return e.(*NameAndTypeInfo), nil
}

func (p *ConstantPool) addMemberRef(tag Tag, class, name, descriptor string) (*MemberRefInfo, error) {
	c, err := p.AddClassInfo(class)
	if err != nil {
		return nil, err
	}
	nat, err := p.AddNameAndTypeInfo(name, descriptor)
	if err != nil {
		return nil, err
	}
	e, err := p.add(&MemberRefInfo{tag: tag, Class: c, NameAndType: nat})
	if err != nil {
		return nil, err
	}
	return e.(*MemberRefInfo), nil
}

func (p *ConstantPool) AddFieldrefInfo(class, name, descriptor string) (*MemberRefInfo, error) {
	return p.addMemberRef(TagFieldref, class, name, descriptor)
}

func (p *ConstantPool) AddMethodrefInfo(class, name, descriptor string) (*MemberRefInfo, error) {
	return p.addMemberRef(TagMethodref, class, name, descriptor)
}

func (p *ConstantPool) AddInterfaceMethodrefInfo(class, name, descriptor string) (*MemberRefInfo, error) {
	return p.addMemberRef(TagInterfaceMethodref, class, name, descriptor)
}
