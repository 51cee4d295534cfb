package state

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/trie"
)

// EmptyRoot is the root of a state without any cell.
var EmptyRoot = types.EmptyRootHash

type hashedEntry struct {
	hash  []byte
	value []byte
}

// Root commits to a set of cells. Cells are inserted into a stack trie under
// keccak(key) in hash order, so the result only depends on the set itself.
func Root(cells map[string][]byte) common.Hash {
	entries := make([]hashedEntry, 0, len(cells))
	for k, v := range cells {
		if len(v) == 0 {
			continue
		}
		entries = append(entries, hashedEntry{crypto.Keccak256([]byte(k)), v})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].hash, entries[j].hash) < 0
	})

	st := trie.NewStackTrie(nil)
	for _, e := range entries {
		if err := st.Update(e.hash, e.value); err != nil {
			panic(err)
		}
	}
	return st.Hash()
}
