package txpool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Czone-League/nuls/pkg/address"
	"github.com/Czone-League/nuls/pkg/logger"
	"go.uber.org/zap"
)

const (
	pendingLimit = 100
	poolCap      = 10000
)

var (
	ErrPoolFull    = errors.New("pool is full, please try again later")
	ErrNonceTooLow = errors.New("nonce too low")
	ErrUnderpriced = errors.New("replacement transaction underpriced")
	ErrNoSuchNonce = errors.New("no transaction with this nonce")
)

// Pool holds contract transactions until they are packed into a block.
// Transactions of one sender come out in nonce order; across senders the
// higher price goes first.
type Pool struct {
	mu     sync.Mutex
	queues map[address.Address]senderQueue
	seq    map[*Transaction]uint64
	next   uint64
	size   int
	cap    int
	nonces NonceReader

	logger *zap.Logger
}

// NewPool Create transaction pool
func NewPool(cfg Config) *Pool {
	p := &Pool{
		queues: make(map[address.Address]senderQueue),
		seq:    make(map[*Transaction]uint64),
		cap:    cfg.Capacity,
		nonces: cfg.Nonces,
	}
	if p.cap <= 0 {
		p.cap = poolCap
	}
	if cfg.Logger != nil {
		p.logger = cfg.Logger
	} else {
		p.logger = logger.With(zap.String("module", "txpool"))
	}
	return p
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// Add queues tx. A transaction reusing a queued sender and nonce replaces
// the queued one only if it pays a higher price.
func (p *Pool) Add(tx *Transaction) error {
	if err := tx.check(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	sender := tx.Sender()
	if p.nonces != nil {
		if want := p.nonces.GetNonce(sender); tx.Nonce < want {
			return fmt.Errorf("%w: transaction nonce(%d) < chain nonce(%d)", ErrNonceTooLow, tx.Nonce, want)
		}
	}

	q := p.queues[sender]
	if old := q.find(tx.Nonce); old != nil {
		if old.Price() >= tx.Price() {
			return fmt.Errorf("%w: price(%d) <= queued price(%d)", ErrUnderpriced, tx.Price(), old.Price())
		}
		delete(p.seq, old)
		p.size--
	} else if p.size >= p.cap {
		return ErrPoolFull
	}

	p.queues[sender] = q.insert(tx)
	p.seq[tx] = p.next
	p.next++
	p.size++
	p.logger.Debug("transaction queued", zap.Stringer("tx", tx))
	return nil
}

// Pending removes and returns up to pendingLimit transactions in packing
// order. Transactions behind a nonce gap stay queued.
func (p *Pool) Pending() []*Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := order(p.queues, p.seq, pendingLimit)
	for _, tx := range out {
		p.drop(tx)
	}
	return out
}

// Remove drops the queued transaction of sender with nonce.
func (p *Pool) Remove(sender address.Address, nonce uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx := p.queues[sender].find(nonce)
	if tx == nil {
		return ErrNoSuchNonce
	}
	p.drop(tx)
	return nil
}

func (p *Pool) drop(tx *Transaction) {
	sender := tx.Sender()
	q := p.queues[sender]
	for i, queued := range q {
		if queued == tx {
			q = append(q[:i], q[i+1:]...)
			break
		}
	}
	if len(q) == 0 {
		delete(p.queues, sender)
	} else {
		p.queues[sender] = q
	}
	delete(p.seq, tx)
	p.size--
}
