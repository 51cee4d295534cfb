package store

import (
	"encoding/binary"
)

const mapTag = 'm'

type kvReadWriter interface {
	Del([]byte) error
	Set([]byte, []byte) error
	Get([]byte) ([]byte, error)
}

type kvIterable interface {
	kvReadWriter
	NewIterator([]byte, []byte) Iterator
}

// MapPrefix returns the key prefix shared by every entry of map m. The name
// is length prefixed so that one map name can never be a prefix of another.
func MapPrefix(m []byte) []byte {
	buf := make([]byte, 1+4+len(m))
	buf[0] = mapTag
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(m)))
	copy(buf[5:], m)
	return buf
}

// MapKey returns the raw key of entry k in map m.
func MapKey(m, k []byte) []byte {
	p := MapPrefix(m)
	key := make([]byte, len(p)+len(k))
	copy(key, p)
	copy(key[len(p):], k)
	return key
}

func Mset(rw kvReadWriter, m, k, v []byte) error {
	return rw.Set(MapKey(m, k), v)
}

func Mget(rw kvReadWriter, m, k []byte) ([]byte, error) {
	return rw.Get(MapKey(m, k))
}

func Mdel(rw kvReadWriter, m, k []byte) error {
	return rw.Del(MapKey(m, k))
}

// Mkvs collects all entries of map m in key order.
func Mkvs(db kvIterable, m []byte) ([][]byte, [][]byte, error) {
	prefix := MapPrefix(m)
	itr := db.NewIterator(prefix, nil)
	defer itr.Release()

	var ks, vs [][]byte
	for itr.Next() {
		ks = append(ks, itr.Key()[len(prefix):])
		vs = append(vs, itr.Value())
	}
	if err := itr.Error(); err != nil {
		return nil, nil, err
	}
	return ks, vs, nil
}

func Mkeys(db kvIterable, m []byte) ([][]byte, error) {
	ks, _, err := Mkvs(db, m)
	return ks, err
}

func Mvals(db kvIterable, m []byte) ([][]byte, error) {
	_, vs, err := Mkvs(db, m)
	return vs, err
}

func Mclear(db kvIterable, m []byte) error {
	ks, err := Mkeys(db, m)
	if err != nil {
		return err
	}
	for _, k := range ks {
		if err := Mdel(db, m, k); err != nil {
			return err
		}
	}
	return nil
}
