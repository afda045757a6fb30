package classfile

import (
	"io"
)

// WriteOptions controls class file encoding.
type WriteOptions struct {
	// StackMargin is added to every max_stack, saturating at 65535. Zero
	// reproduces parsed input byte for byte.
	StackMargin int
}

// Bytes encodes the class file with default options.
func (cf *ClassFile) Bytes() ([]byte, error) {
	return cf.Encode(WriteOptions{})
}

// Encode serializes the class file.
func (cf *ClassFile) Encode(opts WriteOptions) ([]byte, error) {
	if cf.Pool.Len() > MaxPoolSize {
		return nil, &SpecError{Class: cf.Name(), Err: ErrPoolOverflow}
	}
	if err := cf.Pool.checkStrings(); err != nil {
		return nil, &SpecError{Class: cf.Name(), Err: err}
	}
	w := newWriter(cf.Size())
	w.u4(Magic)
	w.u2(cf.Minor)
	w.u2(cf.Major)
	cf.Pool.write(w)
	w.u2(cf.AccessFlags)
	w.u2(cf.Pool.indexOf(cf.This))
	w.u2(optionalIndex(cf.Pool, cf.Super))
	w.u2(uint16(len(cf.Interfaces)))
	for _, c := range cf.Interfaces {
		w.u2(cf.Pool.indexOf(c))
	}
	ctx := &attrContext{pool: cf.Pool, class: cf.Name(), stackMargin: opts.StackMargin}
	w.u2(uint16(len(cf.Fields)))
	for _, f := range cf.Fields {
		writeMember(w, &f.Member, ctx)
	}
	w.u2(uint16(len(cf.Methods)))
	for _, m := range cf.Methods {
		writeMember(w, &m.Member, ctx)
	}
	writeAttributes(w, cf.Attributes, ctx)
	return w.buf, nil
}

// WriteTo writes the encoded class file to w.
func (cf *ClassFile) WriteTo(w io.Writer) (int64, error) {
	b, err := cf.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// Size returns the encoded length in bytes.
func (cf *ClassFile) Size() int {
	n := 4 + 2 + 2 + cf.Pool.Size() + 2 + 2 + 2 + 2 + 2*len(cf.Interfaces)
	n += 2
	for _, f := range cf.Fields {
		n += 6 + attributesLen(f.Attributes)
	}
	n += 2
	for _, m := range cf.Methods {
		n += 6 + attributesLen(m.Attributes)
	}
	return n + attributesLen(cf.Attributes)
}

func writeMember(w *writer, m *Member, ctx *attrContext) {
	w.u2(m.AccessFlags)
	w.u2(ctx.pool.indexOf(m.Name))
	w.u2(ctx.pool.indexOf(m.Descriptor))
	writeAttributes(w, m.Attributes, ctx)
}
