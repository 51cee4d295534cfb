package vm

import (
	"github.com/Czone-League/nuls/pkg/address"
	"github.com/Czone-League/nuls/pkg/contract/code"
	"github.com/Czone-League/nuls/pkg/contract/state"
	"github.com/ethereum/go-ethereum/common"
)

// MethodArea loads and resolves the classes of one contract for one
// invocation. Class definitions come from the lineage Registry; static
// initialization state lives in the heap, so it commits and rolls back with
// the invocation that triggered it.
type MethodArea struct {
	reg      *Registry
	contract address.Address
	codeHash common.Hash
	pkg      *code.Package
	heap     *state.Heap
}

// NewMethodArea binds a registry to the contract at addr, whose code is read
// from heap.
func NewMethodArea(reg *Registry, addr address.Address, heap *state.Heap) (*MethodArea, error) {
	v, err := heap.Get(state.MetaKey(addr, state.CodeField), code.String)
	if err != nil {
		return nil, err
	}
	if v.Str == "" {
		return nil, fault(FaultLoad, "no contract at %s", addr)
	}
	pkg, h, err := reg.Package([]byte(v.Str))
	if err != nil {
		return nil, fault(FaultLoad, "contract %s: %v", addr, err)
	}
	return &MethodArea{reg: reg, contract: addr, codeHash: h, pkg: pkg, heap: heap}, nil
}

func (m *MethodArea) Contract() address.Address {
	return m.contract
}

func (m *MethodArea) Package() *code.Package {
	return m.pkg
}

func (m *MethodArea) CodeHash() common.Hash {
	return m.codeHash
}

// lookup registers the definition of name without initializing it.
func (m *MethodArea) lookup(name string) (*code.Class, bool) {
	qname := QualifiedName(m.codeHash, name)
	if c, ok := m.reg.Lookup(qname); ok {
		return c, true
	}
	c := m.pkg.Class(name)
	if c == nil {
		return nil, false
	}
	return m.reg.Register(qname, c), true
}

// LoadClass returns the class called name, running its static
// initialization through e the first time the contract uses it.
func (m *MethodArea) LoadClass(e *Engine, name string) *code.Class {
	c, ok := m.lookup(name)
	if !ok {
		throw(FaultLoad, "class %s not found", name)
	}
	if IsSystemClass(name) {
		return c
	}
	marker := state.ClinitKey(m.contract, name)
	if m.heap.Has(marker) {
		return c
	}
	e.meter.charge(CostLoadClass)
	m.heap.Set(marker, code.BoolValue(true))

	if c.Super != "" {
		m.LoadClass(e, c.Super)
	}
	for _, i := range c.Interfaces {
		m.LoadClass(e, i)
	}
	for _, f := range c.Fields {
		if f.Static && !f.Final {
			m.heap.Set(state.StaticKey(m.contract, c.Name, f.Name), f.Type.Default())
		}
	}
	if clinit := c.Method(code.ClinitName, code.ClinitDesc); clinit != nil && clinit.Static {
		e.execute(&Resolved{Class: c, Method: clinit, Owner: name}, nil)
	}
	return c
}

// Initialized reports whether the static initializer of name has run.
func (m *MethodArea) Initialized(name string) bool {
	if IsSystemClass(name) {
		return true
	}
	return m.heap.Has(state.ClinitKey(m.contract, name))
}

// LoadMethod resolves name+desc starting at class: the class itself, then
// its super chain, then the interfaces of each class in that chain from the
// most derived one, depth first in declaration order. Abstract declarations
// never match. It returns nil when nothing matches.
func (m *MethodArea) LoadMethod(class, name, desc string) *Resolved {
	key := methodKey{QualifiedName(m.codeHash, class), name, desc}
	if r, ok := m.reg.resolved(key); ok {
		return r
	}
	r := m.resolve(class, func(meth *code.Method) bool {
		return meth.Name == name && meth.Desc == desc
	})
	m.reg.remember(key, r)
	return r
}

// FindMethod resolves a method by name and argument count, for callers that
// do not know the descriptor. The first match in resolution order wins.
func (m *MethodArea) FindMethod(class, name string, argc int) *Resolved {
	return m.resolve(class, func(meth *code.Method) bool {
		return meth.Name == name && len(meth.Args()) == argc
	})
}

func (m *MethodArea) resolve(class string, match func(*code.Method) bool) *Resolved {
	var chain []string
	for name := class; name != ""; {
		c := m.superStep(chain, name)
		if r := m.declared(c, name, match); r != nil {
			return r
		}
		chain = append(chain, name)
		name = c.Super
	}
	seen := make(map[string]bool)
	for _, name := range chain {
		c, _ := m.lookup(name)
		for _, i := range c.Interfaces {
			if r := m.resolveInterface(i, match, seen); r != nil {
				return r
			}
		}
	}
	return nil
}

func (m *MethodArea) resolveInterface(name string, match func(*code.Method) bool, seen map[string]bool) *Resolved {
	if seen[name] {
		return nil
	}
	seen[name] = true
	c, ok := m.lookup(name)
	if !ok {
		throw(FaultLoad, "interface %s not found", name)
	}
	if r := m.declared(c, name, match); r != nil {
		return r
	}
	for _, i := range c.Interfaces {
		if r := m.resolveInterface(i, match, seen); r != nil {
			return r
		}
	}
	return nil
}

func (m *MethodArea) declared(c *code.Class, name string, match func(*code.Method) bool) *Resolved {
	for _, meth := range c.Methods {
		if !meth.Abstract && match(meth) {
			return &Resolved{Class: c, Method: meth, Owner: name}
		}
	}
	return nil
}

// Methods lists the callable contract methods visible on class in
// resolution order, one per name and descriptor. Static initializers and
// system classes are left out.
func (m *MethodArea) Methods(class string) (out []*Resolved, err error) {
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(*Fault)
			if !ok {
				panic(r)
			}
			out, err = nil, f
		}
	}()

	seen := make(map[string]bool)
	visit := func(c *code.Class, name string) {
		if IsSystemClass(name) {
			return
		}
		for _, meth := range c.Methods {
			if meth.Name == code.ClinitName || meth.Abstract || seen[meth.String()] {
				continue
			}
			seen[meth.String()] = true
			out = append(out, &Resolved{Class: c, Method: meth, Owner: name})
		}
	}
	var chain []string
	for name := class; name != ""; {
		c := m.superStep(chain, name)
		visit(c, name)
		chain = append(chain, name)
		name = c.Super
	}
	done := make(map[string]bool)
	var walk func(string)
	walk = func(name string) {
		if done[name] {
			return
		}
		done[name] = true
		c, ok := m.lookup(name)
		if !ok {
			throw(FaultLoad, "interface %s not found", name)
		}
		visit(c, name)
		for _, i := range c.Interfaces {
			walk(i)
		}
	}
	for _, name := range chain {
		c, _ := m.lookup(name)
		for _, i := range c.Interfaces {
			walk(i)
		}
	}
	return out, nil
}

// IsAssignable reports whether class sub is target or derives from it.
func (m *MethodArea) IsAssignable(sub, target string) bool {
	if target == code.ObjectClass {
		return true
	}
	seen := make(map[string]bool)
	work := []string{sub}
	for len(work) > 0 {
		name := work[len(work)-1]
		work = work[:len(work)-1]
		if name == target {
			return true
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		c, ok := m.lookup(name)
		if !ok {
			continue
		}
		for i := len(c.Interfaces) - 1; i >= 0; i-- {
			work = append(work, c.Interfaces[i])
		}
		if c.Super != "" {
			work = append(work, c.Super)
		}
	}
	return false
}

// Field finds the declaration of field name on class or its super chain.
func (m *MethodArea) Field(class, name string) (*code.Field, string) {
	var chain []string
	for cn := class; cn != ""; {
		c := m.superStep(chain, cn)
		if f := c.Field(name); f != nil {
			return f, cn
		}
		chain = append(chain, cn)
		cn = c.Super
	}
	return nil, ""
}

// superStep looks up the next class of a super chain walk, faulting when
// the class is missing or already on the chain.
func (m *MethodArea) superStep(chain []string, name string) *code.Class {
	for _, prev := range chain {
		if prev == name {
			throw(FaultLoad, "cyclic super chain at %s", name)
		}
	}
	c, ok := m.lookup(name)
	if !ok {
		throw(FaultLoad, "class %s not found", name)
	}
	return c
}
