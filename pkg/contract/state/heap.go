package state

import (
	"fmt"

	"github.com/Czone-League/nuls/pkg/contract/code"
)

// Heap is a typed view of one snapshot.
type Heap struct {
	arena  *Arena
	handle Handle
}

func (a *Arena) Heap(h Handle) *Heap {
	a.node(h)
	return &Heap{arena: a, handle: h}
}

func (h *Heap) Handle() Handle {
	return h.handle
}

// Get returns the value of k, or the default of t when k was never written.
func (h *Heap) Get(k Key, t code.Type) (code.Value, error) {
	b := h.arena.Get(h.handle, k)
	if len(b) == 0 {
		return t.Default(), nil
	}
	v, err := code.DecodeValue(b)
	if err != nil {
		return code.Null(), fmt.Errorf("cell %x: %w", k.Bytes(), err)
	}
	if !t.Accepts(v) {
		return code.Null(), fmt.Errorf("cell %x holds %s, want %s", k.Bytes(), v.Kind, t)
	}
	return v, nil
}

// Has reports whether k holds a non-default value.
func (h *Heap) Has(k Key) bool {
	return len(h.arena.Get(h.handle, k)) > 0
}

// Set stores v at k. Default values are stored as deletions, so a cell reset
// to its default is indistinguishable from one never written.
func (h *Heap) Set(k Key, v code.Value) {
	if v.IsZero() {
		h.arena.Set(h.handle, k, nil)
		return
	}
	h.arena.Set(h.handle, k, v.Bytes())
}
