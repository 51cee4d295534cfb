package code

import (
	"fmt"
	"strconv"
)

// ClassBuilder assembles a class in Go code.
type ClassBuilder struct {
	class   *Class
	methods []*MethodBuilder
}

func NewClassBuilder(name string) *ClassBuilder {
	return &ClassBuilder{class: &Class{Name: name, Super: ObjectClass}}
}

// NewInterfaceBuilder starts an interface; interfaces have no super class.
func NewInterfaceBuilder(name string, supers ...string) *ClassBuilder {
	return &ClassBuilder{class: &Class{Name: name, Interface: true, Interfaces: supers}}
}

func (b *ClassBuilder) Extends(super string) *ClassBuilder {
	b.class.Super = super
	return b
}

func (b *ClassBuilder) Implements(ifaces ...string) *ClassBuilder {
	b.class.Interfaces = append(b.class.Interfaces, ifaces...)
	return b
}

func (b *ClassBuilder) Field(name string, t Type) *ClassBuilder {
	b.class.Fields = append(b.class.Fields, &Field{Name: name, Type: t})
	return b
}

func (b *ClassBuilder) StaticField(name string, t Type, final bool) *ClassBuilder {
	b.class.Fields = append(b.class.Fields, &Field{Name: name, Type: t, Static: true, Final: final})
	return b
}

// Method starts an instance method; slot 0 holds this.
func (b *ClassBuilder) Method(name, desc string) *MethodBuilder {
	return b.method(&Method{Name: name, Desc: desc})
}

func (b *ClassBuilder) StaticMethod(name, desc string) *MethodBuilder {
	return b.method(&Method{Name: name, Desc: desc, Static: true})
}

func (b *ClassBuilder) AbstractMethod(name, desc string) *ClassBuilder {
	b.class.Methods = append(b.class.Methods, &Method{Name: name, Desc: desc, Abstract: true})
	return b
}

func (b *ClassBuilder) NativeMethod(name, desc string, static bool) *ClassBuilder {
	b.class.Methods = append(b.class.Methods, &Method{Name: name, Desc: desc, Native: true, Static: static})
	return b
}

func (b *ClassBuilder) method(m *Method) *MethodBuilder {
	b.class.Methods = append(b.class.Methods, m)
	mb := &MethodBuilder{method: m}
	b.methods = append(b.methods, mb)
	return mb
}

// Build finalizes every method and validates the class.
func (b *ClassBuilder) Build() (*Class, error) {
	for _, mb := range b.methods {
		if err := mb.finish(); err != nil {
			return nil, err
		}
	}
	if err := b.class.validate(); err != nil {
		return nil, err
	}
	return b.class, nil
}

// MustBuild is Build for statically known classes.
func (b *ClassBuilder) MustBuild() *Class {
	c, err := b.Build()
	if err != nil {
		panic(err)
	}
	return c
}

// Label is a jump target that may be marked after it is referenced.
type Label struct {
	pos  int
	refs []int
}

// MethodBuilder emits the body of one method.
type MethodBuilder struct {
	method *Method
	labels []*Label
}

func (m *MethodBuilder) emit(in Instruction) *MethodBuilder {
	m.method.Code = append(m.method.Code, in)
	return m
}

func (m *MethodBuilder) Op(op Opcode) *MethodBuilder {
	return m.emit(Instruction{Op: op})
}

// Locals reserves n local slots in total, parameters included.
func (m *MethodBuilder) Locals(n int) *MethodBuilder {
	m.method.MaxLocals = n
	return m
}

func (m *MethodBuilder) PushInt(i uint64) *MethodBuilder {
	return m.emit(Instruction{Op: PUSH_INT, Name: strconv.FormatUint(i, 10)})
}

// PushWord pushes a decimal literal of up to 256 bits.
func (m *MethodBuilder) PushWord(dec string) *MethodBuilder {
	return m.emit(Instruction{Op: PUSH_INT, Name: dec})
}

func (m *MethodBuilder) PushStr(s string) *MethodBuilder {
	return m.emit(Instruction{Op: PUSH_STR, Name: s})
}

func (m *MethodBuilder) Load(slot int) *MethodBuilder {
	return m.emit(Instruction{Op: LOAD, Arg: slot})
}

func (m *MethodBuilder) Store(slot int) *MethodBuilder {
	return m.emit(Instruction{Op: STORE, Arg: slot})
}

func (m *MethodBuilder) GetField(class, name string) *MethodBuilder {
	return m.emit(Instruction{Op: GETFIELD, Class: class, Name: name})
}

func (m *MethodBuilder) PutField(class, name string) *MethodBuilder {
	return m.emit(Instruction{Op: PUTFIELD, Class: class, Name: name})
}

func (m *MethodBuilder) GetStatic(class, name string) *MethodBuilder {
	return m.emit(Instruction{Op: GETSTATIC, Class: class, Name: name})
}

func (m *MethodBuilder) PutStatic(class, name string) *MethodBuilder {
	return m.emit(Instruction{Op: PUTSTATIC, Class: class, Name: name})
}

func (m *MethodBuilder) New(class string) *MethodBuilder {
	return m.emit(Instruction{Op: NEW, Class: class})
}

func (m *MethodBuilder) MGet(t Type) *MethodBuilder {
	return m.emit(Instruction{Op: MGET, Desc: string(t)})
}

func (m *MethodBuilder) CheckCast(t Type) *MethodBuilder {
	return m.emit(Instruction{Op: CHECKCAST, Desc: string(t)})
}

func (m *MethodBuilder) Invoke(op Opcode, class, name, desc string) *MethodBuilder {
	return m.emit(Instruction{Op: op, Class: class, Name: name, Desc: desc})
}

func (m *MethodBuilder) Emit(event string, argc int) *MethodBuilder {
	return m.emit(Instruction{Op: EMIT, Name: event, Arg: argc})
}

func (m *MethodBuilder) NewLabel() *Label {
	l := &Label{pos: -1}
	m.labels = append(m.labels, l)
	return l
}

// Mark binds l to the next instruction.
func (m *MethodBuilder) Mark(l *Label) *MethodBuilder {
	l.pos = len(m.method.Code)
	return m
}

func (m *MethodBuilder) Jump(op Opcode, l *Label) *MethodBuilder {
	l.refs = append(l.refs, len(m.method.Code))
	return m.emit(Instruction{Op: op})
}

func (m *MethodBuilder) finish() error {
	for _, l := range m.labels {
		if l.pos < 0 && len(l.refs) > 0 {
			return fmt.Errorf("%s: unmarked label", m.method)
		}
		for _, ref := range l.refs {
			m.method.Code[ref].Arg = l.pos
		}
	}
	params := len(m.method.Args())
	if !m.method.Static {
		params++
	}
	if m.method.MaxLocals < params {
		m.method.MaxLocals = params
	}
	for _, in := range m.method.Code {
		if (in.Op == LOAD || in.Op == STORE) && in.Arg >= m.method.MaxLocals {
			m.method.MaxLocals = in.Arg + 1
		}
	}
	return nil
}
