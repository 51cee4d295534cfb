package state

import (
	"testing"

	"github.com/Czone-League/nuls/pkg/address"
	"github.com/Czone-League/nuls/pkg/contract/code"
	"github.com/Czone-League/nuls/pkg/storage/store"
	"github.com/Czone-League/nuls/pkg/storage/store/ldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var testAddr = address.Address{0xaa, 0xbb}

func newTestDatabase(t *testing.T) (*Database, store.DB) {
	db, err := ldb.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewDatabase(db, 16, nil), db
}

func TestKeyBytes(t *testing.T) {
	assert := assert.New(t)

	k := FieldKey(testAddr, 3, "Token", "owner")
	maybe, err := KeyFromBytes(k.Bytes())
	assert.NoError(err)
	assert.Equal(k, maybe)

	assert.NotEqual(StaticKey(testAddr, "A", "x").Bytes(), FieldKey(testAddr, 1, "A", "x").Bytes())
	assert.NotEqual(MapEntryKey(testAddr, 2, code.Uint64Value(1)).Bytes(), MapEntryKey(testAddr, 2, code.StringValue("1")).Bytes())

	_, err = KeyFromBytes([]byte{1, 2})
	assert.ErrorIs(err, ErrInvalidKey)
}

func TestEmptyRoot(t *testing.T) {
	assert := assert.New(t)
	d, _ := newTestDatabase(t)

	assert.Equal(EmptyRoot, Root(nil))
	ok, err := d.HasState(EmptyRoot)
	assert.NoError(err)
	assert.True(ok)

	a := NewArena(d)
	h, err := a.Open(EmptyRoot)
	assert.NoError(err)
	assert.Equal(EmptyRoot, a.Hash(h))
}

func TestSnapshotLayering(t *testing.T) {
	assert := assert.New(t)
	d, _ := newTestDatabase(t)
	a := NewArena(d)

	top, err := a.Open(EmptyRoot)
	require.NoError(t, err)
	k1 := MetaKey(testAddr, "x")
	k2 := MetaKey(testAddr, "y")

	heap := a.Heap(top)
	heap.Set(k1, code.Uint64Value(1))
	before := a.Hash(top)

	child := a.Child(top)
	ch := a.Heap(child)
	v, err := ch.Get(k1, code.Int)
	assert.NoError(err)
	assert.True(v.Equal(code.Uint64Value(1)))

	ch.Set(k1, code.Uint64Value(2))
	ch.Set(k2, code.StringValue("s"))

	v, _ = heap.Get(k1, code.Int)
	assert.True(v.Equal(code.Uint64Value(1)))
	assert.False(heap.Has(k2))

	a.Discard(child)
	assert.False(a.Live(child))
	assert.Equal(before, a.Hash(top))

	child = a.Child(top)
	a.Heap(child).Set(k2, code.StringValue("s"))
	a.Merge(child)
	v, _ = heap.Get(k2, code.String)
	assert.Equal("s", v.Str)
	v, _ = heap.Get(k1, code.Int)
	assert.True(v.Equal(code.Uint64Value(1)))
	assert.NotEqual(before, a.Hash(top))

	assert.Panics(func() { a.Get(child, k1) })
}

func TestRootReferentialTransparency(t *testing.T) {
	assert := assert.New(t)
	d, _ := newTestDatabase(t)
	a := NewArena(d)

	h1, _ := a.Open(EmptyRoot)
	h2, _ := a.Open(EmptyRoot)
	k1 := MetaKey(testAddr, "x")
	k2 := MetaKey(testAddr, "y")

	a.Heap(h1).Set(k1, code.Uint64Value(5))
	a.Heap(h1).Set(k2, code.BoolValue(true))

	a.Heap(h2).Set(k2, code.BoolValue(true))
	a.Heap(h2).Set(k1, code.Uint64Value(9))
	a.Heap(h2).Set(k1, code.Uint64Value(5))
	assert.Equal(a.Hash(h1), a.Hash(h2))

	a.Heap(h2).Set(MetaKey(testAddr, "z"), code.Uint64Value(0))
	assert.Equal(a.Hash(h1), a.Hash(h2))

	a.Heap(h1).Set(k2, code.BoolValue(false))
	a.Heap(h2).Set(k2, code.Null())
	assert.Equal(a.Hash(h1), a.Hash(h2))
}

func TestDatabaseCommit(t *testing.T) {
	assert := assert.New(t)
	d, db := newTestDatabase(t)
	a := NewArena(d)
	k := StaticKey(testAddr, "Token", "supply")

	h, _ := a.Open(EmptyRoot)
	a.Heap(h).Set(k, code.Uint64Value(100))
	want := a.Hash(h)
	root1, err := a.Commit(h)
	assert.NoError(err)
	assert.Equal(want, root1)
	assert.False(a.Live(h))

	h, err = a.Open(root1)
	assert.NoError(err)
	a.Heap(h).Set(k, code.Uint64Value(0))
	root2, err := a.Commit(h)
	assert.NoError(err)
	assert.Equal(EmptyRoot, root2)

	fresh := NewDatabase(db, 4, nil)
	b, err := fresh.Get(root1, k)
	assert.NoError(err)
	v, err := code.DecodeValue(b)
	assert.NoError(err)
	assert.True(v.Equal(code.Uint64Value(100)))

	_, err = fresh.Flatten(want)
	assert.NoError(err)
}

func TestUnknownRoot(t *testing.T) {
	assert := assert.New(t)
	d, _ := newTestDatabase(t)

	var bogus [32]byte
	bogus[0] = 1
	_, err := NewArena(d).Open(bogus)
	assert.ErrorIs(err, ErrUnknownRoot)
	assert.ErrorIs(d.SetHead(bogus), ErrUnknownRoot)
}

func TestHead(t *testing.T) {
	assert := assert.New(t)
	d, _ := newTestDatabase(t)

	head, err := d.Head()
	assert.NoError(err)
	assert.Equal(EmptyRoot, head)

	root, err := d.Commit(EmptyRoot, map[string][]byte{MetaKey(testAddr, "x").String(): code.Uint64Value(1).Bytes()})
	assert.NoError(err)
	assert.NoError(d.SetHead(root))
	head, err = d.Head()
	assert.NoError(err)
	assert.Equal(root, head)
}

func TestCommitWritePattern(t *testing.T) {
	assert := assert.New(t)
	ctrl := gomock.NewController(t)
	db := store.NewMockDB(ctrl)
	tx := store.NewMockTransaction(ctrl)
	d := NewDatabase(db, 4, nil)

	delta := map[string][]byte{MetaKey(testAddr, "x").String(): code.Uint64Value(1).Bytes()}
	root := Root(delta)

	db.EXPECT().Mget(LayerArea, root.Bytes()).Return(nil, store.NotExist)
	db.EXPECT().NewTransaction().Return(tx)
	tx.EXPECT().Mset(LayerArea, root.Bytes(), gomock.Any()).Return(nil)
	tx.EXPECT().Commit().Return(nil)

	got, err := d.Commit(EmptyRoot, delta)
	assert.NoError(err)
	assert.Equal(root, got)

	// same state again: no layer written
	db.EXPECT().Mget(LayerArea, root.Bytes()).Return([]byte{1}, nil)
	got, err = d.Commit(EmptyRoot, delta)
	assert.NoError(err)
	assert.Equal(root, got)

	// no-op delta on top of root
	got, err = d.Commit(root, nil)
	assert.NoError(err)
	assert.Equal(root, got)
}
