package code

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Czone-League/nuls/pkg/address"
)

// Type is a field or argument type descriptor.
type Type string

const (
	Void   Type = "V"
	Bool   Type = "Z"
	Int    Type = "I"
	String Type = "S"
	Addr   Type = "A"
	Map    Type = "M"
)

var ErrDescriptor = errors.New("invalid descriptor")

// ObjectType returns the descriptor of a reference to class.
func ObjectType(class string) Type {
	return Type("L" + class + ";")
}

func (t Type) IsObject() bool {
	return len(t) > 2 && t[0] == 'L' && t[len(t)-1] == ';'
}

// IsRef reports whether values of t are heap references.
func (t Type) IsRef() bool {
	return t == Map || t.IsObject()
}

// ClassName returns the class of an object type, or "".
func (t Type) ClassName() string {
	if !t.IsObject() {
		return ""
	}
	return string(t[1 : len(t)-1])
}

func (t Type) Valid() bool {
	switch t {
	case Void, Bool, Int, String, Addr, Map:
		return true
	}
	return t.IsObject()
}

// Default is the value a never-written cell of type t holds.
func (t Type) Default() Value {
	switch t {
	case Bool:
		return BoolValue(false)
	case Int:
		return Uint64Value(0)
	case String:
		return StringValue("")
	case Addr:
		return AddressValue(address.Undef)
	}
	return Null()
}

// Accepts reports whether v may be stored in a slot of type t.
func (t Type) Accepts(v Value) bool {
	switch t {
	case Bool:
		return v.Kind == KindBool
	case Int:
		return v.Kind == KindInt
	case String:
		return v.Kind == KindString
	case Addr:
		return v.Kind == KindAddress
	case Map:
		return v.Kind == KindNull || v.Kind == KindMap
	}
	if t.IsObject() {
		return v.Kind == KindNull || v.Kind == KindRef
	}
	return false
}

// ParseMethodDescriptor splits "(AI)Z" into argument types and return type.
func ParseMethodDescriptor(desc string) ([]Type, Type, error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, "", fmt.Errorf("%w: %q", ErrDescriptor, desc)
	}
	end := strings.IndexByte(desc, ')')
	if end < 0 {
		return nil, "", fmt.Errorf("%w: %q", ErrDescriptor, desc)
	}
	args, err := parseTypes(desc[1:end])
	if err != nil {
		return nil, "", fmt.Errorf("%w: %q", ErrDescriptor, desc)
	}
	ret := Type(desc[end+1:])
	if !ret.Valid() {
		return nil, "", fmt.Errorf("%w: %q", ErrDescriptor, desc)
	}
	return args, ret, nil
}

// MethodDescriptor is the inverse of ParseMethodDescriptor.
func MethodDescriptor(args []Type, ret Type) string {
	var b strings.Builder
	b.WriteByte('(')
	for _, a := range args {
		b.WriteString(string(a))
	}
	b.WriteByte(')')
	b.WriteString(string(ret))
	return b.String()
}

func parseTypes(s string) ([]Type, error) {
	var ts []Type
	for len(s) > 0 {
		switch s[0] {
		case 'Z', 'I', 'S', 'A', 'M':
			ts = append(ts, Type(s[:1]))
			s = s[1:]
		case 'L':
			end := strings.IndexByte(s, ';')
			if end < 2 {
				return nil, ErrDescriptor
			}
			ts = append(ts, Type(s[:end+1]))
			s = s[end+1:]
		default:
			return nil, ErrDescriptor
		}
	}
	return ts, nil
}
