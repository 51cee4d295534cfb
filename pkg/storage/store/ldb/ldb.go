// Package ldb implements store.DB on top of goleveldb.
package ldb

import (
	"bytes"
	"errors"

	"github.com/Czone-League/nuls/pkg/storage/store"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

type ldbStore struct {
	db *leveldb.DB
}

type ldbTransaction struct {
	tx *leveldb.Transaction
}

type ldbIterator struct {
	itr iterator.Iterator
}

// New wraps an opened leveldb database.
func New(db *leveldb.DB) store.DB {
	return &ldbStore{db}
}

// Open opens (or creates) a leveldb database in dir.
func Open(dir string) (store.DB, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// OpenMemory returns a database that lives only in memory.
func OpenMemory() (store.DB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// Sync is a no-op: every write already goes through the journal.
func (db *ldbStore) Sync() error {
	return nil
}

func (db *ldbStore) Close() error {
	return db.db.Close()
}

func (db *ldbStore) Del(k []byte) error {
	return db.db.Delete(k, nil)
}

func (db *ldbStore) Set(k, v []byte) error {
	return db.db.Put(k, v, nil)
}

func (db *ldbStore) Get(k []byte) ([]byte, error) {
	return notExist(db.db.Get(k, nil))
}

func (db *ldbStore) Mclear(m []byte) error {
	return store.Mclear(db, m)
}

func (db *ldbStore) Mdel(m, k []byte) error {
	return store.Mdel(db, m, k)
}

func (db *ldbStore) Mkeys(m []byte) ([][]byte, error) {
	return store.Mkeys(db, m)
}

func (db *ldbStore) Mvals(m []byte) ([][]byte, error) {
	return store.Mvals(db, m)
}

func (db *ldbStore) Mset(m, k, v []byte) error {
	return store.Mset(db, m, k, v)
}

func (db *ldbStore) Mget(m, k []byte) ([]byte, error) {
	return store.Mget(db, m, k)
}

func (db *ldbStore) Mkvs(m []byte) ([][]byte, [][]byte, error) {
	return store.Mkvs(db, m)
}

// NewTransaction opens a leveldb transaction. It panics if one cannot be
// opened, which only happens once the database is closed.
func (db *ldbStore) NewTransaction() store.Transaction {
	tx, err := db.db.OpenTransaction()
	if err != nil {
		panic(err)
	}
	return &ldbTransaction{tx}
}

func (db *ldbStore) NewIterator(prefix []byte, start []byte) store.Iterator {
	r := util.BytesPrefix(prefix)
	if bytes.Compare(start, r.Start) > 0 {
		r.Start = start
	}
	return &ldbIterator{db.db.NewIterator(r, nil)}
}

func (tx *ldbTransaction) Commit() error {
	return tx.tx.Commit()
}

func (tx *ldbTransaction) Cancel() error {
	tx.tx.Discard()
	return nil
}

func (tx *ldbTransaction) Del(k []byte) error {
	return tx.tx.Delete(k, nil)
}

func (tx *ldbTransaction) Set(k, v []byte) error {
	return tx.tx.Put(k, v, nil)
}

func (tx *ldbTransaction) Get(k []byte) ([]byte, error) {
	return notExist(tx.tx.Get(k, nil))
}

func (tx *ldbTransaction) Mdel(m, k []byte) error {
	return store.Mdel(tx, m, k)
}

func (tx *ldbTransaction) Mset(m, k, v []byte) error {
	return store.Mset(tx, m, k, v)
}

func (tx *ldbTransaction) Mget(m, k []byte) ([]byte, error) {
	return store.Mget(tx, m, k)
}

func (itr *ldbIterator) Next() bool {
	return itr.itr.Next()
}

func (itr *ldbIterator) Error() error {
	return itr.itr.Error()
}

func (itr *ldbIterator) Key() []byte {
	return append([]byte{}, itr.itr.Key()...)
}

func (itr *ldbIterator) Value() []byte {
	return append([]byte{}, itr.itr.Value()...)
}

func (itr *ldbIterator) Release() {
	itr.itr.Release()
}

func notExist(v []byte, err error) ([]byte, error) {
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, store.NotExist
	}
	return v, err
}
