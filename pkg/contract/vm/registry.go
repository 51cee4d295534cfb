package vm

import (
	"fmt"
	"strings"

	"github.com/Czone-League/nuls/pkg/contract/code"
	"github.com/bluele/gcache"
	"github.com/ethereum/go-ethereum/common"
)

const DefaultCodeCacheSize = 256

// NewCodeCache returns a decode cache for contract packages keyed by code
// hash. One cache may back every Registry of a process.
func NewCodeCache(size int) gcache.Cache {
	if size <= 0 {
		size = DefaultCodeCacheSize
	}
	return gcache.New(size).LRU().Build()
}

type methodKey struct {
	class, name, desc string
}

// Resolved is a method together with the class that declares it.
type Resolved struct {
	Class  *code.Class
	Method *code.Method
	// Owner is the contract-level name of the class declaring Method.
	Owner string
}

// Registry maps class names to definitions for one tracker lineage. It is
// append-only; classes are immutable once registered. Contract classes are
// registered under "<code hash>/<name>", system classes under their bare
// name.
//
// Child trackers share their parent's Registry, and a class registered by a
// child stays registered when the child is discarded. That is harmless: a
// name always maps to the same definition because the code hash is part of
// the name, so registering it again from any tracker is a no-op. Discarded
// work can warm the registry but cannot change what it resolves. A Registry
// is not safe for concurrent use; trackers of one lineage run sequentially.
type Registry struct {
	code    gcache.Cache
	order   []string
	classes map[string]*code.Class
	memo    map[methodKey]*Resolved
}

func NewRegistry(codeCache gcache.Cache) *Registry {
	if codeCache == nil {
		codeCache = NewCodeCache(0)
	}
	r := &Registry{
		code:    codeCache,
		classes: make(map[string]*code.Class),
		memo:    make(map[methodKey]*Resolved),
	}
	for _, c := range systemClasses {
		r.Register(c.Name, c)
	}
	return r
}

// QualifiedName is the registry name of a class of the contract whose code
// hashes to h.
func QualifiedName(h common.Hash, class string) string {
	if IsSystemClass(class) {
		return class
	}
	return h.Hex() + "/" + class
}

// Register adds c under name unless name is taken; the registered class is
// returned either way.
func (r *Registry) Register(name string, c *code.Class) *code.Class {
	if old, ok := r.classes[name]; ok {
		return old
	}
	r.classes[name] = c
	r.order = append(r.order, name)
	return c
}

func (r *Registry) Lookup(name string) (*code.Class, bool) {
	c, ok := r.classes[name]
	return c, ok
}

// Names lists registered classes in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Package decodes raw contract code, sharing decoded packages through the
// code cache.
func (r *Registry) Package(raw []byte) (*code.Package, common.Hash, error) {
	h := code.HashBytes(raw)
	if v, err := r.code.Get(h); err == nil {
		return v.(*code.Package), h, nil
	}
	p, err := code.Decode(raw)
	if err != nil {
		return nil, h, err
	}
	for _, c := range p.Classes {
		if IsSystemClass(c.Name) {
			return nil, h, fmt.Errorf("%w: class %s shadows a system class", code.ErrInvalidClass, c.Name)
		}
	}
	r.code.Set(h, p)
	return p, h, nil
}

func (r *Registry) resolved(k methodKey) (*Resolved, bool) {
	m, ok := r.memo[k]
	return m, ok
}

func (r *Registry) remember(k methodKey, m *Resolved) {
	r.memo[k] = m
}

func IsSystemClass(name string) bool {
	return strings.HasPrefix(name, code.SystemPrefix)
}
