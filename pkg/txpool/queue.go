package txpool

import (
	"container/heap"
	"sort"

	"github.com/Czone-League/nuls/pkg/address"
)

// senderQueue is one sender's transactions sorted by nonce.
type senderQueue []*Transaction

func (q senderQueue) insert(tx *Transaction) senderQueue {
	i := sort.Search(len(q), func(i int) bool { return q[i].Nonce >= tx.Nonce })
	if i < len(q) && q[i].Nonce == tx.Nonce {
		q[i] = tx
		return q
	}
	q = append(q, nil)
	copy(q[i+1:], q[i:])
	q[i] = tx
	return q
}

func (q senderQueue) find(nonce uint64) *Transaction {
	i := sort.Search(len(q), func(i int) bool { return q[i].Nonce >= nonce })
	if i < len(q) && q[i].Nonce == nonce {
		return q[i]
	}
	return nil
}

type head struct {
	tx  *Transaction
	seq uint64
}

// heads orders the next transaction of every sender by price, earlier
// arrivals first on equal price.
type heads []head

func (h heads) Len() int { return len(h) }
func (h heads) Less(i, j int) bool {
	if h[i].tx.Price() != h[j].tx.Price() {
		return h[i].tx.Price() > h[j].tx.Price()
	}
	return h[i].seq < h[j].seq
}
func (h heads) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *heads) Push(x interface{}) { *h = append(*h, x.(head)) }
func (h *heads) Pop() interface{} {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}

// order interleaves the sender queues: nonces stay ascending per sender and
// the highest priced ready transaction goes first.
func order(queues map[address.Address]senderQueue, seq map[*Transaction]uint64, limit int) []*Transaction {
	h := make(heads, 0, len(queues))
	rest := make(map[address.Address]senderQueue, len(queues))
	for sender, q := range queues {
		if len(q) == 0 {
			continue
		}
		h = append(h, head{tx: q[0], seq: seq[q[0]]})
		rest[sender] = q[1:]
	}
	heap.Init(&h)

	var out []*Transaction
	for h.Len() > 0 && len(out) < limit {
		top := h[0].tx
		out = append(out, top)
		sender := top.Sender()
		if q := rest[sender]; len(q) > 0 && q[0].Nonce == top.Nonce+1 {
			h[0] = head{tx: q[0], seq: seq[q[0]]}
			rest[sender] = q[1:]
			heap.Fix(&h, 0)
		} else {
			heap.Pop(&h)
		}
	}
	return out
}
