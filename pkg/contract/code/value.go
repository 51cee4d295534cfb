package code

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Czone-League/nuls/pkg/address"
	"github.com/fxamacker/cbor/v2"
	"github.com/holiman/uint256"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindString
	KindAddress
	KindRef
	KindMap
)

var kindNames = [...]string{"null", "bool", "int", "string", "address", "ref", "map"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a single operand, local or heap cell.
type Value struct {
	Kind Kind
	Bool bool
	Int  uint256.Int
	Str  string
	Addr address.Address
	// Ref is the object id of KindRef and KindMap values.
	Ref uint64
}

func Null() Value {
	return Value{}
}

func BoolValue(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

func IntValue(i *uint256.Int) Value {
	return Value{Kind: KindInt, Int: *i}
}

func Uint64Value(i uint64) Value {
	v := Value{Kind: KindInt}
	v.Int.SetUint64(i)
	return v
}

func StringValue(s string) Value {
	return Value{Kind: KindString, Str: s}
}

func AddressValue(a address.Address) Value {
	return Value{Kind: KindAddress, Addr: a}
}

func RefValue(id uint64) Value {
	return Value{Kind: KindRef, Ref: id}
}

func MapValue(id uint64) Value {
	return Value{Kind: KindMap, Ref: id}
}

// IsZero reports whether v equals the default of its type. Zero cells are
// never stored.
func (v Value) IsZero() bool {
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return !v.Bool
	case KindInt:
		return v.Int.IsZero()
	case KindString:
		return v.Str == ""
	case KindAddress:
		return v.Addr.IsZero()
	}
	return v.Ref == 0
}

func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == o.Bool
	case KindInt:
		return v.Int.Eq(&o.Int)
	case KindString:
		return v.Str == o.Str
	case KindAddress:
		return v.Addr == o.Addr
	case KindRef, KindMap:
		return v.Ref == o.Ref
	}
	return true
}

func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return v.Int.Dec()
	case KindString:
		return v.Str
	case KindAddress:
		return v.Addr.String()
	case KindRef, KindMap:
		return fmt.Sprintf("%s@%d", v.Kind, v.Ref)
	}
	return "null"
}

type wireValue struct {
	_    struct{} `cbor:",toarray"`
	Kind Kind
	Data []byte
}

var encMode, _ = cbor.CoreDetEncOptions().EncMode()

func (v Value) payload() []byte {
	switch v.Kind {
	case KindBool:
		if v.Bool {
			return []byte{1}
		}
		return []byte{0}
	case KindInt:
		return v.Int.Bytes()
	case KindString:
		return []byte(v.Str)
	case KindAddress:
		return v.Addr.Bytes()
	case KindRef, KindMap:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, v.Ref)
		return buf
	}
	return nil
}

// MarshalCBOR encodes v canonically; equal values encode to equal bytes.
func (v Value) MarshalCBOR() ([]byte, error) {
	return encMode.Marshal(wireValue{Kind: v.Kind, Data: v.payload()})
}

func (v *Value) UnmarshalCBOR(b []byte) error {
	var w wireValue
	if err := cbor.Unmarshal(b, &w); err != nil {
		return err
	}
	nv := Value{Kind: w.Kind}
	switch w.Kind {
	case KindNull:
	case KindBool:
		if len(w.Data) != 1 || w.Data[0] > 1 {
			return fmt.Errorf("invalid bool value %x", w.Data)
		}
		nv.Bool = w.Data[0] == 1
	case KindInt:
		if len(w.Data) > 32 {
			return fmt.Errorf("int value overflows 256 bits")
		}
		nv.Int.SetBytes(w.Data)
	case KindString:
		nv.Str = string(w.Data)
	case KindAddress:
		a, err := address.NewFromBytes(w.Data)
		if err != nil {
			return err
		}
		nv.Addr = a
	case KindRef, KindMap:
		if len(w.Data) != 8 {
			return fmt.Errorf("invalid reference %x", w.Data)
		}
		nv.Ref = binary.BigEndian.Uint64(w.Data)
	default:
		return fmt.Errorf("unknown value kind %d", w.Kind)
	}
	*v = nv
	return nil
}

// Bytes is the canonical encoding of v.
func (v Value) Bytes() []byte {
	b, err := v.MarshalCBOR()
	if err != nil {
		panic(err)
	}
	return b
}

func DecodeValue(b []byte) (Value, error) {
	var v Value
	err := v.UnmarshalCBOR(b)
	return v, err
}

type jsonValue struct {
	Kind  string `json:"kind"`
	Value any    `json:"value,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	jv := jsonValue{Kind: v.Kind.String()}
	switch v.Kind {
	case KindNull:
	case KindBool:
		jv.Value = v.Bool
	case KindRef, KindMap:
		jv.Value = v.Ref
	default:
		jv.Value = v.String()
	}
	return json.Marshal(jv)
}

// ParseArg decodes a textual call argument into a value of type t.
func ParseArg(t Type, s string) (Value, error) {
	switch t {
	case Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Null(), fmt.Errorf("invalid bool argument %q", s)
		}
		return BoolValue(b), nil
	case Int:
		i, err := uint256.FromDecimal(strings.TrimSpace(s))
		if err != nil {
			return Null(), fmt.Errorf("invalid int argument %q: %w", s, err)
		}
		return IntValue(i), nil
	case String:
		return StringValue(s), nil
	case Addr:
		a, err := address.Parse(s)
		if err != nil {
			return Null(), err
		}
		return AddressValue(a), nil
	}
	if t.IsRef() && (s == "" || s == "null") {
		return Null(), nil
	}
	return Null(), fmt.Errorf("cannot pass argument of type %s", t)
}

// ParseArgs decodes args against the argument types of desc.
func ParseArgs(desc string, args []string) ([]Value, error) {
	ts, _, err := ParseMethodDescriptor(desc)
	if err != nil {
		return nil, err
	}
	if len(ts) != len(args) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", desc, len(ts), len(args))
	}
	vs := make([]Value, len(args))
	for i, t := range ts {
		if vs[i], err = ParseArg(t, args[i]); err != nil {
			return nil, err
		}
	}
	return vs, nil
}
