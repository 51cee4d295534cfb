package bg

import (
	"testing"

	"github.com/Czone-League/nuls/pkg/storage/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) store.DB {
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestKV(t *testing.T) {
	assert := assert.New(t)
	db := newTestDB(t)

	_, err := db.Get([]byte("a"))
	assert.Equal(store.NotExist, err)

	assert.NoError(db.Set([]byte("a"), []byte("1")))
	v, err := db.Get([]byte("a"))
	assert.NoError(err)
	assert.Equal([]byte("1"), v)

	assert.NoError(db.Del([]byte("a")))
	_, err = db.Get([]byte("a"))
	assert.Equal(store.NotExist, err)
	assert.NoError(db.Sync())
}

func TestMap(t *testing.T) {
	assert := assert.New(t)
	db := newTestDB(t)

	assert.NoError(db.Mset([]byte("area"), []byte("b"), []byte("2")))
	assert.NoError(db.Mset([]byte("area"), []byte("a"), []byte("1")))
	assert.NoError(db.Mset([]byte("areaX"), []byte("c"), []byte("3")))

	ks, vs, err := db.Mkvs([]byte("area"))
	assert.NoError(err)
	assert.Equal([][]byte{[]byte("a"), []byte("b")}, ks)
	assert.Equal([][]byte{[]byte("1"), []byte("2")}, vs)

	assert.NoError(db.Mdel([]byte("area"), []byte("a")))
	ks, err = db.Mkeys([]byte("area"))
	assert.NoError(err)
	assert.Equal([][]byte{[]byte("b")}, ks)

	assert.NoError(db.Mclear([]byte("area")))
	ks, err = db.Mkeys([]byte("area"))
	assert.NoError(err)
	assert.Empty(ks)

	v, err := db.Mget([]byte("areaX"), []byte("c"))
	assert.NoError(err)
	assert.Equal([]byte("3"), v)
}

func TestTransaction(t *testing.T) {
	assert := assert.New(t)
	db := newTestDB(t)

	tx := db.NewTransaction()
	assert.NoError(tx.Mset([]byte("m"), []byte("k"), []byte("v")))
	v, err := tx.Mget([]byte("m"), []byte("k"))
	assert.NoError(err)
	assert.Equal([]byte("v"), v)
	assert.NoError(tx.Cancel())

	_, err = db.Mget([]byte("m"), []byte("k"))
	assert.Equal(store.NotExist, err)

	tx = db.NewTransaction()
	assert.NoError(tx.Set([]byte("k"), []byte("v")))
	assert.NoError(tx.Commit())

	v, err = db.Get([]byte("k"))
	assert.NoError(err)
	assert.Equal([]byte("v"), v)
}

func TestIteratorStart(t *testing.T) {
	assert := assert.New(t)
	db := newTestDB(t)

	for _, k := range []string{"p1", "p2", "p3", "q1"} {
		assert.NoError(db.Set([]byte(k), []byte(k)))
	}

	itr := db.NewIterator([]byte("p"), []byte("p2"))
	defer itr.Release()

	var got []string
	for itr.Next() {
		got = append(got, string(itr.Key()))
	}
	assert.NoError(itr.Error())
	assert.Equal([]string{"p2", "p3"}, got)
}
