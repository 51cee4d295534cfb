package state

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Czone-League/nuls/pkg/logger"
	"github.com/Czone-League/nuls/pkg/storage/store"
	"github.com/bluele/gcache"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
	"github.com/golang/snappy"
	"go.uber.org/zap"
)

var (
	LayerArea = []byte("state_layer")
	HeadKey   = []byte("state_head")
)

var ErrUnknownRoot = errors.New("unknown state root")

const DefaultCacheSize = 64

// layer is the persisted difference between a root and its parent.
type layer struct {
	_       struct{} `cbor:",toarray"`
	Parent  common.Hash
	Entries []layerEntry
}

// layerEntry with an empty Value deletes the key.
type layerEntry struct {
	_     struct{} `cbor:",toarray"`
	Key   []byte
	Value []byte
}

var layerEncMode, _ = cbor.CoreDetEncOptions().EncMode()

// Database keeps committed states in the external store. Every root is
// stored as a layer on top of its parent; Flatten rebuilds the full cell
// set of a root and caches it.
type Database struct {
	db     store.DB
	cache  gcache.Cache
	logger *zap.Logger
}

func NewDatabase(db store.DB, cacheSize int, lg *zap.Logger) *Database {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	if lg == nil {
		lg = logger.With(zap.String("module", "state"))
	}
	d := &Database{db: db, logger: lg}
	d.cache = gcache.New(cacheSize).LRU().LoaderFunc(func(key interface{}) (interface{}, error) {
		return d.load(key.(common.Hash))
	}).Build()
	return d
}

func (d *Database) readLayer(root common.Hash) (*layer, error) {
	blob, err := d.db.Mget(LayerArea, root.Bytes())
	if errors.Is(err, store.NotExist) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoot, root)
	}
	if err != nil {
		return nil, err
	}
	raw, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, fmt.Errorf("state layer %s: %w", root, err)
	}
	var l layer
	if err := cbor.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("state layer %s: %w", root, err)
	}
	return &l, nil
}

func (d *Database) load(root common.Hash) (map[string][]byte, error) {
	if root == EmptyRoot {
		return map[string][]byte{}, nil
	}
	l, err := d.readLayer(root)
	if err != nil {
		return nil, err
	}
	parent, err := d.Flatten(l.Parent)
	if err != nil {
		return nil, err
	}
	cells := make(map[string][]byte, len(parent)+len(l.Entries))
	for k, v := range parent {
		cells[k] = v
	}
	for _, e := range l.Entries {
		if len(e.Value) == 0 {
			delete(cells, string(e.Key))
		} else {
			cells[string(e.Key)] = e.Value
		}
	}
	return cells, nil
}

// Flatten returns every cell visible at root. The map is shared and must
// not be modified.
func (d *Database) Flatten(root common.Hash) (map[string][]byte, error) {
	v, err := d.cache.Get(root)
	if err != nil {
		return nil, err
	}
	return v.(map[string][]byte), nil
}

func (d *Database) HasState(root common.Hash) (bool, error) {
	if root == EmptyRoot {
		return true, nil
	}
	_, err := d.db.Mget(LayerArea, root.Bytes())
	if errors.Is(err, store.NotExist) {
		return false, nil
	}
	return err == nil, err
}

// Get reads one committed cell; a missing cell yields nil.
func (d *Database) Get(root common.Hash, k Key) ([]byte, error) {
	cells, err := d.Flatten(root)
	if err != nil {
		return nil, err
	}
	return cells[k.String()], nil
}

// Commit persists delta on top of parent and returns the new root.
func (d *Database) Commit(parent common.Hash, delta map[string][]byte) (common.Hash, error) {
	base, err := d.Flatten(parent)
	if err != nil {
		return common.Hash{}, err
	}
	cells := make(map[string][]byte, len(base)+len(delta))
	for k, v := range base {
		cells[k] = v
	}
	entries := make([]layerEntry, 0, len(delta))
	for k, v := range delta {
		old, ok := base[k]
		switch {
		case len(v) == 0 && !ok:
			continue
		case len(v) == 0:
			delete(cells, k)
		case ok && string(old) == string(v):
			continue
		default:
			cells[k] = v
		}
		entries = append(entries, layerEntry{Key: []byte(k), Value: v})
	}
	root := Root(cells)
	if root == parent {
		return root, nil
	}
	if ok, err := d.HasState(root); err != nil {
		return common.Hash{}, err
	} else if ok {
		return root, nil
	}

	sort.Slice(entries, func(i, j int) bool {
		return string(entries[i].Key) < string(entries[j].Key)
	})
	raw, err := layerEncMode.Marshal(&layer{Parent: parent, Entries: entries})
	if err != nil {
		return common.Hash{}, err
	}
	tx := d.db.NewTransaction()
	if err := tx.Mset(LayerArea, root.Bytes(), snappy.Encode(nil, raw)); err != nil {
		tx.Cancel()
		return common.Hash{}, err
	}
	if err := tx.Commit(); err != nil {
		return common.Hash{}, err
	}
	d.cache.Set(root, cells)
	d.logger.Debug("state committed", zap.Stringer("parent", parent), zap.Stringer("root", root), zap.Int("entries", len(entries)))
	return root, nil
}

// Head returns the latest root recorded with SetHead.
func (d *Database) Head() (common.Hash, error) {
	v, err := d.db.Get(HeadKey)
	if errors.Is(err, store.NotExist) {
		return EmptyRoot, nil
	}
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(v), nil
}

func (d *Database) SetHead(root common.Hash) error {
	if ok, err := d.HasState(root); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRoot, root)
	}
	return d.db.Set(HeadKey, root.Bytes())
}
