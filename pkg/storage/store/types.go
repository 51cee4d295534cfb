package store

//go:generate mockgen -source=types.go -destination=store_mock.go -package=store

import "errors"

var (
	NotExist  = errors.New("NotExist")
	OutOfSize = errors.New("Out of Size")
)

// DB is the external key-value store the contract VM persists into. Besides
// plain keys it offers named maps (areas) that share one keyspace.
type DB interface {
	Sync() error

	Close() error
	// kv
	Del([]byte) error
	Set([]byte, []byte) error
	Get([]byte) ([]byte, error)

	// map
	Mclear([]byte) error
	Mdel([]byte, []byte) error
	Mkeys([]byte) ([][]byte, error)
	Mvals([]byte) ([][]byte, error)
	Mset([]byte, []byte, []byte) error
	Mget([]byte, []byte) ([]byte, error)
	Mkvs([]byte) ([][]byte, [][]byte, error)

	NewTransaction() Transaction
	NewIterator([]byte, []byte) Iterator
}

// Transaction buffers writes until Commit; reads observe its own writes.
type Transaction interface {
	Commit() error
	Cancel() error

	// kv
	Del([]byte) error
	Set([]byte, []byte) error
	Get([]byte) ([]byte, error)

	// map
	Mdel([]byte, []byte) error
	Mset([]byte, []byte, []byte) error
	Mget([]byte, []byte) ([]byte, error)
}

// Iterator walks keys in binary-alphabetical order. Next must be called
// before the first Key/Value.
type Iterator interface {
	Next() bool

	Error() error

	Key() []byte

	Value() []byte

	Release()
}
