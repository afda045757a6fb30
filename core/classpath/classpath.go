// Package classpath loads class files from directories and jars and links
// them into a class hierarchy.
package classpath

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	pkgerrors "github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"
	"golang.org/x/exp/maps"

	"github.com/classflow/classflow/common/gopool"
	"github.com/classflow/classflow/core/classfile"
	"github.com/classflow/classflow/log"
)

var (
	loadedMeter = metrics.NewRegisteredMeter("classpath/loaded", nil)
	failedMeter = metrics.NewRegisteredMeter("classpath/failed", nil)
	loadTimer   = metrics.NewRegisteredTimer("classpath/load", nil)
)

var (
	// ErrLinked is returned when classes are added after Link.
	ErrLinked = errors.New("classpath already linked")

	errUnsupported = errors.New("unsupported class path entry")
)

// Config holds the loader settings.
type Config struct {
	// Workers bounds the number of class files parsed at once. Zero picks a
	// count from the number of files.
	Workers int

	// KeepGoing records parse failures and continues with the remaining
	// files instead of failing the whole load.
	KeepGoing bool
}

// source is one class file waiting to be parsed.
type source struct {
	origin string
	open   func() ([]byte, error)
}

// ClassPath is a set of loaded classes keyed by internal name. It is safe
// for concurrent lookups.
type ClassPath struct {
	cfg Config
	log log.Logger

	lock    sync.RWMutex
	classes map[string]*classfile.ClassFile
	origins map[string]string
	linked  bool
}

// New returns an empty class path.
func New(cfg Config) *ClassPath {
	return &ClassPath{
		cfg:     cfg,
		log:     log.New("module", "classpath"),
		classes: make(map[string]*classfile.ClassFile),
		origins: make(map[string]string),
	}
}

// Load reads every class reachable from paths. A path may be a directory,
// which is walked recursively, a .jar or .zip archive, or a single .class
// file. With KeepGoing set the returned error joins all parse failures and
// the successfully parsed classes are still added.
func (cp *ClassPath) Load(paths ...string) error {
	var sources []source
	for _, path := range paths {
		found, err := collect(path)
		if err != nil {
			return err
		}
		sources = append(sources, found...)
	}
	return cp.parse(sources)
}

// Walk calls fn with the raw bytes of every class file reachable from
// paths, in discovery order, without parsing them.
func Walk(paths []string, fn func(origin string, data []byte) error) error {
	for _, path := range paths {
		sources, err := collect(path)
		if err != nil {
			return err
		}
		for _, src := range sources {
			data, err := src.open()
			if err != nil {
				return pkgerrors.Wrapf(err, "read %s", src.origin)
			}
			if err := fn(src.origin, data); err != nil {
				return err
			}
		}
	}
	return nil
}

func collect(path string) ([]source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	switch {
	case info.IsDir():
		return collectDir(path)
	case isArchive(path):
		return collectArchive(path)
	case strings.HasSuffix(path, ".class"):
		return []source{fileSource(path)}, nil
	}
	return nil, pkgerrors.Wrap(errUnsupported, path)
}

func isArchive(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".jar" || ext == ".zip"
}

func fileSource(path string) source {
	return source{origin: path, open: func() ([]byte, error) { return os.ReadFile(path) }}
}

func collectDir(root string) ([]source, error) {
	var out []source
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isClassEntry(d.Name()) {
			out = append(out, fileSource(path))
		}
		return nil
	})
	return out, err
}

func isClassEntry(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, ".class") && base != "module-info.class" && base != "package-info.class"
}

// collectArchive lists the class entries of a jar. The archive is read
// fully so that entries can be parsed concurrently without an open file.
func collectArchive(path string) ([]source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "open archive %s", path)
	}
	var out []source
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !isClassEntry(f.Name) {
			continue
		}
		f := f
		out = append(out, source{
			origin: path + "!/" + f.Name,
			open: func() ([]byte, error) {
				rc, err := f.Open()
				if err != nil {
					return nil, err
				}
				defer rc.Close()
				return io.ReadAll(rc)
			},
		})
	}
	return out, nil
}

func (cp *ClassPath) parse(sources []source) error {
	if len(sources) == 0 {
		return nil
	}
	defer func(start time.Time) { loadTimer.UpdateSince(start) }(time.Now())

	workers := cp.cfg.Workers
	if workers <= 0 {
		workers = gopool.Threads(len(sources))
	}
	pool, err := gopool.NewPool(workers)
	if err != nil {
		return err
	}
	defer pool.Release()

	parsed := make([]*classfile.ClassFile, len(sources))
	errs := make([]error, len(sources))
	err = pool.Run(len(sources), func(i int) {
		// The decoder panics on opcodes it has no table entry for.
		defer func() {
			if p := recover(); p != nil {
				errs[i] = pkgerrors.Errorf("load %s: %v", sources[i].origin, p)
			}
		}()
		data, err := sources[i].open()
		if err == nil {
			parsed[i], err = classfile.Parse(data)
		}
		if err != nil {
			errs[i] = pkgerrors.Wrapf(err, "load %s", sources[i].origin)
		}
	})
	if err != nil {
		return err
	}

	var failures []error
	for i, cf := range parsed {
		if errs[i] != nil {
			failedMeter.Mark(1)
			if !cp.cfg.KeepGoing {
				return errs[i]
			}
			cp.log.Warn("Skipping unreadable class", "origin", sources[i].origin, "err", errs[i])
			failures = append(failures, errs[i])
			continue
		}
		if err := cp.add(cf, sources[i].origin); err != nil {
			return err
		}
	}
	cp.log.Debug("Loaded classes", "files", len(sources), "failed", len(failures), "workers", workers)
	return errors.Join(failures...)
}

// Add registers an already parsed class.
func (cp *ClassPath) Add(cf *classfile.ClassFile) error {
	return cp.add(cf, "")
}

func (cp *ClassPath) add(cf *classfile.ClassFile, origin string) error {
	cp.lock.Lock()
	defer cp.lock.Unlock()

	if cp.linked {
		return ErrLinked
	}
	name := cf.Name()
	if prev, ok := cp.origins[name]; ok {
		// The first definition on the path wins, as with a JVM class loader.
		cp.log.Debug("Shadowed class definition", "class", name, "kept", prev, "ignored", origin)
		return nil
	}
	cp.classes[name] = cf
	cp.origins[name] = origin
	loadedMeter.Mark(1)
	return nil
}

// Len returns the number of loaded classes.
func (cp *ClassPath) Len() int {
	cp.lock.RLock()
	defer cp.lock.RUnlock()
	return len(cp.classes)
}

// LookupClass returns the class with the given internal or dotted name, or
// nil when it is not loaded.
func (cp *ClassPath) LookupClass(name string) *classfile.ClassFile {
	cp.lock.RLock()
	defer cp.lock.RUnlock()
	return cp.classes[strings.ReplaceAll(name, ".", "/")]
}

// Origin returns where the named class was loaded from.
func (cp *ClassPath) Origin(name string) string {
	cp.lock.RLock()
	defer cp.lock.RUnlock()
	return cp.origins[strings.ReplaceAll(name, ".", "/")]
}

// Names returns the internal names of all loaded classes, sorted.
func (cp *ClassPath) Names() []string {
	cp.lock.RLock()
	defer cp.lock.RUnlock()
	names := maps.Keys(cp.classes)
	sort.Strings(names)
	return names
}

// Classes returns all loaded classes ordered by name.
func (cp *ClassPath) Classes() []*classfile.ClassFile {
	names := cp.Names()
	cp.lock.RLock()
	defer cp.lock.RUnlock()
	out := make([]*classfile.ClassFile, len(names))
	for i, name := range names {
		out[i] = cp.classes[name]
	}
	return out
}

// Link sets the superclass, subclass and implementor links of every loaded
// class, then trims and freezes them. Classes outside the path are left
// unlinked. The first pass resolves superclasses and gathers the reverse
// edges; the second pass installs them. Link is idempotent.
func (cp *ClassPath) Link() error {
	cp.lock.Lock()
	defer cp.lock.Unlock()

	if cp.linked {
		return nil
	}
	var (
		subs    = make(map[string]mapset.Set[*classfile.ClassFile])
		impls   = make(map[string]mapset.Set[*classfile.ClassFile])
		missing = mapset.NewThreadUnsafeSet[string]()
	)
	gather := func(into map[string]mapset.Set[*classfile.ClassFile], parent string, cf *classfile.ClassFile) {
		if _, ok := cp.classes[parent]; !ok {
			missing.Add(parent)
			return
		}
		set, ok := into[parent]
		if !ok {
			set = mapset.NewThreadUnsafeSet[*classfile.ClassFile]()
			into[parent] = set
		}
		set.Add(cf)
	}
	for _, cf := range cp.classes {
		if super := cf.SuperName(); super != "" {
			if err := cf.SetSuperclass(cp.classes[super]); err != nil {
				return pkgerrors.Wrapf(err, "link %s", cf.Name())
			}
			gather(subs, super, cf)
		}
		for _, iface := range cf.InterfaceNames() {
			gather(impls, iface, cf)
		}
	}
	for name, cf := range cp.classes {
		if set, ok := subs[name]; ok {
			if err := cf.SetSubclasses(sortedByName(set)); err != nil {
				return pkgerrors.Wrapf(err, "link %s", name)
			}
		}
		if set, ok := impls[name]; ok {
			if err := cf.SetImplementors(sortedByName(set)); err != nil {
				return pkgerrors.Wrapf(err, "link %s", name)
			}
		}
	}
	for _, cf := range cp.classes {
		cf.TrimToSize()
	}
	cp.linked = true
	cp.log.Debug("Linked class path", "classes", len(cp.classes), "external", missing.Cardinality())
	return nil
}

// Linked reports whether Link has run.
func (cp *ClassPath) Linked() bool {
	cp.lock.RLock()
	defer cp.lock.RUnlock()
	return cp.linked
}

func sortedByName(set mapset.Set[*classfile.ClassFile]) []*classfile.ClassFile {
	out := set.ToSlice()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
