package classpath

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classflow/classflow/core/classfile"
	"github.com/classflow/classflow/core/opcodes"
)

func newClass(t *testing.T, name, super string, ifaces ...string) *classfile.ClassFile {
	t.Helper()
	cf, err := classfile.NewClassFile(name, super)
	require.NoError(t, err)
	for _, iface := range ifaces {
		ci, err := cf.Pool.AddClassInfo(iface)
		require.NoError(t, err)
		cf.Interfaces = append(cf.Interfaces, ci)
	}
	return cf
}

func classBytes(t *testing.T, cf *classfile.ClassFile) []byte {
	t.Helper()
	b, err := cf.Bytes()
	require.NoError(t, err)
	return b
}

func writeClass(t *testing.T, dir string, cf *classfile.ClassFile) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(cf.Name())+".class")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, classBytes(t, cf), 0o644))
}

func writeJar(t *testing.T, path string, classes ...*classfile.ClassFile) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	zw := zip.NewWriter(f)
	_, err = zw.Create("META-INF/")
	require.NoError(t, err)
	w, err := zw.Create("META-INF/MANIFEST.MF")
	require.NoError(t, err)
	_, err = w.Write([]byte("Manifest-Version: 1.0\n"))
	require.NoError(t, err)
	for _, cf := range classes {
		w, err := zw.Create(cf.Name() + ".class")
		require.NoError(t, err)
		_, err = w.Write(classBytes(t, cf))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func names(classes []*classfile.ClassFile) []string {
	out := make([]string, len(classes))
	for i, cf := range classes {
		out[i] = cf.Name()
	}
	return out
}

func TestLoadDirectoryAndJar(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, newClass(t, "app/Shape", "java/lang/Object"))
	writeClass(t, dir, newClass(t, "app/Circle", "app/Shape", "app/Drawable"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("not a class"), 0o644))

	jar := filepath.Join(t.TempDir(), "lib.jar")
	iface := newClass(t, "app/Drawable", "java/lang/Object")
	iface.AccessFlags |= classfile.AccInterface | classfile.AccAbstract
	writeJar(t, jar, iface, newClass(t, "app/Square", "app/Shape", "app/Drawable"))

	cp := New(Config{Workers: 2})
	require.NoError(t, cp.Load(dir, jar))
	assert.Equal(t, []string{"app/Circle", "app/Drawable", "app/Shape", "app/Square"}, cp.Names())
	assert.Equal(t, jar+"!/app/Square.class", cp.Origin("app.Square"))

	require.NoError(t, cp.Link())
	assert.True(t, cp.Linked())

	shape := cp.LookupClass("app/Shape")
	require.NotNil(t, shape)
	assert.Nil(t, shape.Superclass(), "java/lang/Object is not on the path")
	assert.Equal(t, []string{"app/Circle", "app/Square"}, names(shape.Subclasses()))
	assert.True(t, shape.Frozen())

	drawable := cp.LookupClass("app.Drawable")
	require.NotNil(t, drawable)
	assert.True(t, drawable.IsInterface())
	assert.Equal(t, []string{"app/Circle", "app/Square"}, names(drawable.Implementors()))

	circle := cp.LookupClass("app/Circle")
	assert.Same(t, shape, circle.Superclass())
	assert.Empty(t, circle.Subclasses())

	assert.Nil(t, cp.LookupClass("app/Missing"))
	assert.Equal(t, []string{"app/Circle", "app/Drawable", "app/Shape", "app/Square"}, names(cp.Classes()))
}

func TestLinkIsFinal(t *testing.T) {
	cp := New(Config{})
	require.NoError(t, cp.Add(newClass(t, "a/A", "java/lang/Object")))
	require.NoError(t, cp.Link())
	require.NoError(t, cp.Link())
	assert.ErrorIs(t, cp.Add(newClass(t, "a/B", "a/A")), ErrLinked)
	assert.Equal(t, 1, cp.Len())
}

func TestFirstDefinitionWins(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writeClass(t, first, newClass(t, "a/A", "java/lang/Object"))
	writeClass(t, second, newClass(t, "a/A", "a/Base"))

	cp := New(Config{})
	require.NoError(t, cp.Load(first))
	require.NoError(t, cp.Load(second))
	assert.Equal(t, 1, cp.Len())
	assert.Equal(t, "java/lang/Object", cp.LookupClass("a/A").SuperName())
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, newClass(t, "ok/Good", "java/lang/Object"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Bad.class"), []byte{0xca, 0xfe}, 0o644))

	strict := New(Config{})
	err := strict.Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bad.class")

	lenient := New(Config{KeepGoing: true})
	err = lenient.Load(dir)
	require.Error(t, err)
	assert.Equal(t, []string{"ok/Good"}, lenient.Names())

	assert.Error(t, New(Config{}).Load(filepath.Join(dir, "nope")))

	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, nil, 0o644))
	assert.ErrorIs(t, New(Config{}).Load(txt), errUnsupported)
}

// A subclass of PrintStream on the class path makes its print methods
// count as output calls.
func TestLookupDrivesIOAnnotation(t *testing.T) {
	cp := New(Config{})
	require.NoError(t, cp.Add(newClass(t, "app/LogStream", "java/io/PrintStream")))

	cf := newClass(t, "app/Main", "java/lang/Object")
	ref, err := cf.Pool.AddMethodrefInfo("app/LogStream", "println", "(I)V")
	require.NoError(t, err)
	code, err := classfile.NewCode(cf.Pool, 2, 1, []*classfile.Instruction{
		classfile.NewLocal(opcodes.ALOAD, 0),
		classfile.NewInstruction(opcodes.ICONST_1),
		classfile.NewRef(opcodes.INVOKEVIRTUAL, ref),
		classfile.NewInstruction(opcodes.RETURN),
	})
	require.NoError(t, err)
	_, err = cf.AddMethod(classfile.AccPublic|classfile.AccStatic, "run", "(Lapp/LogStream;)V", code)
	require.NoError(t, err)

	assert.Empty(t, classfile.ComputeIOInstructions(code, nil))
	assert.Equal(t, []int{2}, classfile.ComputeIOInstructions(code, cp))
}

func TestWalk(t *testing.T) {
	dir := t.TempDir()
	a := newClass(t, "w/A", "java/lang/Object")
	writeClass(t, dir, a)
	jar := filepath.Join(t.TempDir(), "w.jar")
	writeJar(t, jar, newClass(t, "w/B", "w/A"))

	var origins []string
	err := Walk([]string{dir, jar}, func(origin string, data []byte) error {
		origins = append(origins, origin)
		_, err := classfile.Parse(data)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "w", "A.class"), jar + "!/w/B.class"}, origins)

	stop := assert.AnError
	err = Walk([]string{dir, jar}, func(string, []byte) error { return stop })
	assert.ErrorIs(t, err, stop)
}
