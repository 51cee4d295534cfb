// Package bg implements store.DB on top of badger.
package bg

import (
	"errors"

	"github.com/Czone-League/nuls/pkg/storage/store"
	"github.com/dgraph-io/badger"
)

// New wraps an opened badger database.
func New(db *badger.DB) store.DB {
	return &bgStore{db}
}

// Open opens (or creates) a badger database in dir.
func Open(dir string) (store.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

func (db *bgStore) Sync() error {
	return db.db.Sync()
}

func (db *bgStore) Close() error {
	return db.db.Close()
}

func (db *bgStore) Del(k []byte) error {
	return db.db.Update(func(tx *badger.Txn) error {
		return tx.Delete(k)
	})
}

func (db *bgStore) Set(k, v []byte) error {
	return db.db.Update(func(tx *badger.Txn) error {
		return tx.Set(k, v)
	})
}

func (db *bgStore) Get(k []byte) ([]byte, error) {
	var v []byte
	err := db.db.View(func(tx *badger.Txn) error {
		var err error
		v, err = get(tx, k)
		return err
	})
	return v, err
}

func (db *bgStore) Mclear(m []byte) error {
	return store.Mclear(db, m)
}

func (db *bgStore) Mdel(m, k []byte) error {
	return store.Mdel(db, m, k)
}

func (db *bgStore) Mkeys(m []byte) ([][]byte, error) {
	return store.Mkeys(db, m)
}

func (db *bgStore) Mvals(m []byte) ([][]byte, error) {
	return store.Mvals(db, m)
}

func (db *bgStore) Mset(m, k, v []byte) error {
	return store.Mset(db, m, k, v)
}

func (db *bgStore) Mget(m, k []byte) ([]byte, error) {
	return store.Mget(db, m, k)
}

func (db *bgStore) Mkvs(m []byte) ([][]byte, [][]byte, error) {
	return store.Mkvs(db, m)
}

func (db *bgStore) NewTransaction() store.Transaction {
	return &bgTransaction{db.db.NewTransaction(true)}
}

func (tx *bgTransaction) Commit() error {
	return tx.tx.Commit()
}

func (tx *bgTransaction) Cancel() error {
	tx.tx.Discard()
	return nil
}

func (tx *bgTransaction) Del(k []byte) error {
	return tx.tx.Delete(k)
}

func (tx *bgTransaction) Set(k, v []byte) error {
	return tx.tx.Set(k, v)
}

func (tx *bgTransaction) Get(k []byte) ([]byte, error) {
	return get(tx.tx, k)
}

func (tx *bgTransaction) Mdel(m, k []byte) error {
	return store.Mdel(tx, m, k)
}

func (tx *bgTransaction) Mset(m, k, v []byte) error {
	return store.Mset(tx, m, k, v)
}

func (tx *bgTransaction) Mget(m, k []byte) ([]byte, error) {
	return store.Mget(tx, m, k)
}

func get(tx *badger.Txn, k []byte) ([]byte, error) {
	item, err := tx.Get(k)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.NotExist
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}
