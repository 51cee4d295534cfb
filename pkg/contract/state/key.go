package state

import (
	"encoding/binary"
	"errors"

	"github.com/Czone-League/nuls/pkg/address"
	"github.com/Czone-League/nuls/pkg/contract/code"
)

// Object 0 of every contract holds its statics and meta cells.
const StaticObject uint64 = 0

const (
	CodeField       = "$code"
	StatusField     = "$status"
	MainField       = "$main"
	CreatorField    = "$creator"
	NextObjectField = "$nextObject"
	ClassField      = "$class"
	clinitPrefix    = "$clinit/"
	mapEntryPrefix  = "#"
)

const keyHeaderSize = address.Length + 8

var ErrInvalidKey = errors.New("invalid state key")

// Key addresses one heap cell.
type Key struct {
	Address address.Address
	Object  uint64
	Field   string
}

// Bytes encodes k as address | object (big endian) | field.
func (k Key) Bytes() []byte {
	buf := make([]byte, keyHeaderSize+len(k.Field))
	copy(buf, k.Address[:])
	binary.BigEndian.PutUint64(buf[address.Length:], k.Object)
	copy(buf[keyHeaderSize:], k.Field)
	return buf
}

func (k Key) String() string {
	return string(k.Bytes())
}

func KeyFromBytes(b []byte) (Key, error) {
	if len(b) < keyHeaderSize {
		return Key{}, ErrInvalidKey
	}
	var k Key
	copy(k.Address[:], b[:address.Length])
	k.Object = binary.BigEndian.Uint64(b[address.Length:keyHeaderSize])
	k.Field = string(b[keyHeaderSize:])
	return k, nil
}

func MetaKey(addr address.Address, field string) Key {
	return Key{Address: addr, Object: StaticObject, Field: field}
}

func StaticKey(addr address.Address, class, field string) Key {
	return Key{Address: addr, Object: StaticObject, Field: class + "." + field}
}

// FieldKey addresses an instance field; fields are qualified by their
// declaring class so shadowed names never collide.
func FieldKey(addr address.Address, obj uint64, class, field string) Key {
	return Key{Address: addr, Object: obj, Field: class + "." + field}
}

func ClassKey(addr address.Address, obj uint64) Key {
	return Key{Address: addr, Object: obj, Field: ClassField}
}

func ClinitKey(addr address.Address, class string) Key {
	return MetaKey(addr, clinitPrefix+class)
}

func MapEntryKey(addr address.Address, m uint64, key code.Value) Key {
	return Key{Address: addr, Object: m, Field: mapEntryPrefix + string(key.Bytes())}
}
