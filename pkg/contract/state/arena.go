package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Handle references a snapshot node inside an Arena.
type Handle int

const NoHandle Handle = -1

var ErrDeadSnapshot = errors.New("snapshot discarded or merged")

type node struct {
	parent Handle
	// set on root nodes only
	root  common.Hash
	base  map[string][]byte
	delta map[string][]byte
	live  bool
}

// Arena holds the snapshot nodes of one tracker lineage. Each node owns only
// its pending writes; reads fall through to the parent and finally to the
// committed state the root node is bound to. An Arena is not safe for
// concurrent use.
type Arena struct {
	db    *Database
	nodes []*node
}

func NewArena(db *Database) *Arena {
	return &Arena{db: db}
}

// Open creates a root node bound to the committed state at root.
func (a *Arena) Open(root common.Hash) (Handle, error) {
	base, err := a.db.Flatten(root)
	if err != nil {
		return NoHandle, err
	}
	return a.add(&node{parent: NoHandle, root: root, base: base}), nil
}

// Child creates a node layered on parent.
func (a *Arena) Child(parent Handle) Handle {
	a.node(parent)
	return a.add(&node{parent: parent})
}

func (a *Arena) add(n *node) Handle {
	n.live = true
	n.delta = make(map[string][]byte)
	a.nodes = append(a.nodes, n)
	return Handle(len(a.nodes) - 1)
}

func (a *Arena) node(h Handle) *node {
	if h < 0 || int(h) >= len(a.nodes) || !a.nodes[h].live {
		panic(fmt.Errorf("%w: %d", ErrDeadSnapshot, h))
	}
	return a.nodes[h]
}

func (a *Arena) Live(h Handle) bool {
	return h >= 0 && int(h) < len(a.nodes) && a.nodes[h].live
}

func (a *Arena) Parent(h Handle) Handle {
	return a.node(h).parent
}

// Get returns the visible encoding of k at h, or nil when k is unset.
func (a *Arena) Get(h Handle, k Key) []byte {
	ks := k.String()
	for n := a.node(h); ; n = a.nodes[n.parent] {
		if v, ok := n.delta[ks]; ok {
			return v
		}
		if n.parent == NoHandle {
			return n.base[ks]
		}
	}
}

// Set writes into h's own delta. A nil value deletes the cell.
func (a *Arena) Set(h Handle, k Key, v []byte) {
	a.node(h).delta[k.String()] = v
}

// Merge folds child into its parent, child entries winning, and retires it.
func (a *Arena) Merge(child Handle) {
	n := a.node(child)
	if n.parent == NoHandle {
		panic("merge of a root snapshot")
	}
	p := a.node(n.parent)
	for k, v := range n.delta {
		p.delta[k] = v
	}
	a.retire(n)
}

// Discard drops h and its pending writes.
func (a *Arena) Discard(h Handle) {
	a.retire(a.node(h))
}

func (a *Arena) retire(n *node) {
	n.live = false
	n.delta = nil
	n.base = nil
}

// BaseRoot returns the committed root the chain of h is bound to.
func (a *Arena) BaseRoot(h Handle) common.Hash {
	n := a.node(h)
	for n.parent != NoHandle {
		n = a.nodes[n.parent]
	}
	return n.root
}

// Delta returns the pending writes of h and all its ancestors, innermost
// winning.
func (a *Arena) Delta(h Handle) map[string][]byte {
	var chain []*node
	for n := a.node(h); ; n = a.nodes[n.parent] {
		chain = append(chain, n)
		if n.parent == NoHandle {
			break
		}
	}
	delta := make(map[string][]byte)
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].delta {
			delta[k] = v
		}
	}
	return delta
}

// Hash is the root of every cell visible at h.
func (a *Arena) Hash(h Handle) common.Hash {
	delta := a.Delta(h)
	if len(delta) == 0 {
		return a.BaseRoot(h)
	}
	var base map[string][]byte
	for n := a.node(h); ; n = a.nodes[n.parent] {
		if n.parent == NoHandle {
			base = n.base
			break
		}
	}
	cells := make(map[string][]byte, len(base)+len(delta))
	for k, v := range base {
		cells[k] = v
	}
	for k, v := range delta {
		if len(v) == 0 {
			delete(cells, k)
		} else {
			cells[k] = v
		}
	}
	return Root(cells)
}

// Commit persists the root node h and retires it.
func (a *Arena) Commit(h Handle) (common.Hash, error) {
	n := a.node(h)
	if n.parent != NoHandle {
		panic("commit of a child snapshot")
	}
	root, err := a.db.Commit(n.root, n.delta)
	if err != nil {
		return common.Hash{}, err
	}
	a.retire(n)
	return root, nil
}
