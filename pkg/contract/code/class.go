package code

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/sha3"
)

const (
	// SystemPrefix starts the names of classes provided by the runtime
	SystemPrefix = "nvm/"
	ObjectClass  = "nvm/Object"

	InitName   = "<init>"
	ClinitName = "<clinit>"
	ClinitDesc = "()V"
)

var (
	ErrNoMain       = errors.New("main class not found")
	ErrDuplicate    = errors.New("duplicate definition")
	ErrInvalidClass = errors.New("invalid class")
)

type Field struct {
	Name   string `cbor:"1,keyasint" json:"name"`
	Type   Type   `cbor:"2,keyasint" json:"type"`
	Static bool   `cbor:"3,keyasint,omitempty" json:"static,omitempty"`
	Final  bool   `cbor:"4,keyasint,omitempty" json:"final,omitempty"`
}

type Method struct {
	Name      string        `cbor:"1,keyasint" json:"name"`
	Desc      string        `cbor:"2,keyasint" json:"desc"`
	Static    bool          `cbor:"3,keyasint,omitempty" json:"static,omitempty"`
	Native    bool          `cbor:"4,keyasint,omitempty" json:"native,omitempty"`
	Abstract  bool          `cbor:"5,keyasint,omitempty" json:"abstract,omitempty"`
	MaxLocals int           `cbor:"6,keyasint,omitempty" json:"maxLocals,omitempty"`
	Code      []Instruction `cbor:"7,keyasint,omitempty" json:"code,omitempty"`

	// filled by Validate
	args []Type
	ret  Type
}

// Args returns the argument types of m.
func (m *Method) Args() []Type {
	if m.ret == "" {
		args, _, _ := ParseMethodDescriptor(m.Desc)
		return args
	}
	return m.args
}

func (m *Method) ReturnType() Type {
	if m.ret == "" {
		_, ret, _ := ParseMethodDescriptor(m.Desc)
		return ret
	}
	return m.ret
}

func (m *Method) String() string {
	return m.Name + m.Desc
}

type Class struct {
	Name       string    `cbor:"1,keyasint" json:"name"`
	Super      string    `cbor:"2,keyasint,omitempty" json:"super,omitempty"`
	Interfaces []string  `cbor:"3,keyasint,omitempty" json:"interfaces,omitempty"`
	Interface  bool      `cbor:"4,keyasint,omitempty" json:"interface,omitempty"`
	Fields     []*Field  `cbor:"5,keyasint,omitempty" json:"fields,omitempty"`
	Methods    []*Method `cbor:"6,keyasint,omitempty" json:"methods,omitempty"`
}

// Method returns the method declared by c itself, or nil.
func (c *Class) Method(name, desc string) *Method {
	for _, m := range c.Methods {
		if m.Name == name && m.Desc == desc {
			return m
		}
	}
	return nil
}

// Field returns the field declared by c itself, or nil.
func (c *Class) Field(name string) *Field {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (c *Class) validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidClass)
	}
	fields := make(map[string]bool)
	for i, f := range c.Fields {
		if f == nil {
			return fmt.Errorf("%w: %s: nil field #%d", ErrInvalidClass, c.Name, i)
		}
		if fields[f.Name] {
			return fmt.Errorf("%w: field %s.%s", ErrDuplicate, c.Name, f.Name)
		}
		fields[f.Name] = true
		if !f.Type.Valid() || f.Type == Void {
			return fmt.Errorf("%w: field %s.%s has type %q", ErrInvalidClass, c.Name, f.Name, f.Type)
		}
	}
	methods := make(map[string]bool)
	for i, m := range c.Methods {
		if m == nil {
			return fmt.Errorf("%w: %s: nil method #%d", ErrInvalidClass, c.Name, i)
		}
		if methods[m.String()] {
			return fmt.Errorf("%w: method %s.%s", ErrDuplicate, c.Name, m)
		}
		methods[m.String()] = true
		args, ret, err := ParseMethodDescriptor(m.Desc)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", c.Name, m.Name, err)
		}
		m.args, m.ret = args, ret
		if err := m.validate(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Method) validate(c *Class) error {
	if m.Abstract || m.Native {
		if len(m.Code) > 0 {
			return fmt.Errorf("%w: %s.%s has a body", ErrInvalidClass, c.Name, m)
		}
		return nil
	}
	if len(m.Code) == 0 {
		return fmt.Errorf("%w: %s.%s has no body", ErrInvalidClass, c.Name, m)
	}
	params := len(m.args)
	if !m.Static {
		params++
	}
	if m.MaxLocals < params {
		return fmt.Errorf("%w: %s.%s needs %d locals", ErrInvalidClass, c.Name, m, params)
	}
	for pc, in := range m.Code {
		if !in.Op.Valid() {
			return fmt.Errorf("%w: %s.%s@%d: bad opcode %d", ErrInvalidClass, c.Name, m, pc, in.Op)
		}
		if in.Op.IsJump() && (in.Arg < 0 || in.Arg >= len(m.Code)) {
			return fmt.Errorf("%w: %s.%s@%d: jump out of range", ErrInvalidClass, c.Name, m, pc)
		}
		if (in.Op == LOAD || in.Op == STORE) && (in.Arg < 0 || in.Arg >= m.MaxLocals) {
			return fmt.Errorf("%w: %s.%s@%d: local %d out of range", ErrInvalidClass, c.Name, m, pc, in.Arg)
		}
	}
	return nil
}

// Package is the code of one contract: its classes and the main class.
type Package struct {
	Main    string   `cbor:"1,keyasint" json:"main"`
	Classes []*Class `cbor:"2,keyasint" json:"classes"`
}

func (p *Package) Class(name string) *Class {
	for _, c := range p.Classes {
		if c != nil && c.Name == name {
			return c
		}
	}
	return nil
}

// Validate checks the structural well-formedness of every class and that the
// super and interface references form no cycle.
func (p *Package) Validate() error {
	seen := make(map[string]bool)
	for i, c := range p.Classes {
		if c == nil {
			return fmt.Errorf("%w: nil class #%d", ErrInvalidClass, i)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: class %s", ErrDuplicate, c.Name)
		}
		seen[c.Name] = true
		if err := c.validate(); err != nil {
			return err
		}
	}
	if p.Class(p.Main) == nil {
		return fmt.Errorf("%w: %q", ErrNoMain, p.Main)
	}
	for _, c := range p.Classes {
		for _, ref := range append([]string{c.Super}, c.Interfaces...) {
			if ref != "" && !strings.HasPrefix(ref, SystemPrefix) && p.Class(ref) == nil {
				return fmt.Errorf("%w: %s refers to unknown class %s", ErrInvalidClass, c.Name, ref)
			}
		}
	}
	return p.checkHierarchy()
}

// checkHierarchy rejects packages whose classes extend or implement
// themselves, directly or through other classes of the package. System
// classes are leaves of the graph.
func (p *Package) checkHierarchy() error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(p.Classes))
	var visit func(c *Class) error
	visit = func(c *Class) error {
		switch state[c.Name] {
		case visiting:
			return fmt.Errorf("%w: cyclic hierarchy through %s", ErrInvalidClass, c.Name)
		case done:
			return nil
		}
		state[c.Name] = visiting
		for _, ref := range append([]string{c.Super}, c.Interfaces...) {
			if next := p.Class(ref); next != nil {
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		state[c.Name] = done
		return nil
	}
	for _, c := range p.Classes {
		if err := visit(c); err != nil {
			return err
		}
	}
	return nil
}

// Encode returns the canonical CBOR encoding of p.
func (p *Package) Encode() ([]byte, error) {
	return encMode.Marshal(p)
}

// Hash is the SHA3-256 of the canonical encoding; it identifies the code.
func (p *Package) Hash() (common.Hash, error) {
	b, err := p.Encode()
	if err != nil {
		return common.Hash{}, err
	}
	return HashBytes(b), nil
}

func HashBytes(b []byte) common.Hash {
	return common.Hash(sha3.Sum256(b))
}

// Decode parses and validates a CBOR encoded package.
func Decode(b []byte) (*Package, error) {
	var p Package
	if err := cbor.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodeJSON parses and validates the JSON form used by tooling.
func DecodeJSON(b []byte) (*Package, error) {
	var p Package
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func NewPackage(main string, classes ...*Class) *Package {
	return &Package{Main: main, Classes: classes}
}
