package analysis

import (
	"encoding/binary"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/crypto/sha3"

	"github.com/classflow/classflow/core/classfile"
)

// MethodKey identifies one method body. CodeHash covers the code array and
// the exception table, so an instrumented method gets a fresh key.
type MethodKey struct {
	Class      string
	Name       string
	Descriptor string
	CodeHash   [32]byte
}

// KeyFor builds the cache key of m in class cf.
func KeyFor(cf *classfile.ClassFile, m *classfile.MethodInfo) MethodKey {
	key := MethodKey{
		Class:      cf.Name(),
		Name:       m.Name.Value,
		Descriptor: m.Descriptor.Value,
	}
	if code := m.Code(); code != nil {
		key.CodeHash = CodeHash(code)
	}
	return key
}

// CodeHash returns the keccak256 hash of the code array followed by the
// exception table in sequence indices.
func CodeHash(code *classfile.Code) (h [32]byte) {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(code.Bytecode())
	var buf [12]byte
	for _, eh := range code.Handlers {
		binary.BigEndian.PutUint32(buf[0:], uint32(eh.Start))
		binary.BigEndian.PutUint32(buf[4:], uint32(eh.End))
		binary.BigEndian.PutUint32(buf[8:], uint32(eh.Handler))
		hasher.Write(buf[:])
		hasher.Write([]byte(eh.CatchName()))
	}
	hasher.Sum(h[:0])
	return h
}

func (k MethodKey) String() string {
	return k.Class + "." + k.Name + k.Descriptor + "@" + hex.EncodeToString(k.CodeHash[:4])
}

// Cache memoizes stack dependencies per method. Implementations must be
// safe for concurrent use.
type Cache interface {
	Get(key MethodKey) (*StackDependencies, bool)
	Put(key MethodKey, deps *StackDependencies)
}

// MemoryCache is an in-memory LRU Cache.
type MemoryCache struct {
	lru *lru.Cache
}

// NewMemoryCache returns a cache holding at most size methods.
func NewMemoryCache(size int) (*MemoryCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{lru: c}, nil
}

func (c *MemoryCache) Get(key MethodKey) (*StackDependencies, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*StackDependencies), true
}

func (c *MemoryCache) Put(key MethodKey, deps *StackDependencies) {
	c.lru.Add(key, deps)
}

// Len returns the number of cached methods.
func (c *MemoryCache) Len() int { return c.lru.Len() }

// Purge drops every entry.
func (c *MemoryCache) Purge() { c.lru.Purge() }

// TieredCache consults its tiers in order. A hit in a lower tier is copied
// into the tiers above it; puts go to every tier.
type TieredCache []Cache

func (t TieredCache) Get(key MethodKey) (*StackDependencies, bool) {
	for i, c := range t {
		if deps, ok := c.Get(key); ok {
			for _, upper := range t[:i] {
				upper.Put(key, deps)
			}
			return deps, true
		}
	}
	return nil, false
}

func (t TieredCache) Put(key MethodKey, deps *StackDependencies) {
	for _, c := range t {
		c.Put(key, deps)
	}
}
