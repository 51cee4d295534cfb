package ledger

import (
	"fmt"
	"sync"

	"github.com/Czone-League/nuls/pkg/address"
	"github.com/Czone-League/nuls/pkg/logger"
	"github.com/Czone-League/nuls/pkg/storage/store"
	"github.com/Czone-League/nuls/pkg/util/math"
	"go.uber.org/zap"
)

type Config struct {
	Store store.DB
	// IsContract reports whether an address holds a contract; nil accepts
	// every non-zero address.
	IsContract func(address.Address) bool

	Logger *zap.Logger
}

// BalanceManager caches the balance of every contract address holding coins
// in UTXOArea.
type BalanceManager struct {
	mu         sync.Mutex
	db         store.DB
	isContract func(address.Address) bool
	balances   map[address.Address]Balance

	logger *zap.Logger
}

func NewBalanceManager(cfg Config) (*BalanceManager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be empty")
	}
	m := &BalanceManager{
		db:         cfg.Store,
		isContract: cfg.IsContract,
		balances:   make(map[address.Address]Balance),
	}
	if cfg.Logger != nil {
		m.logger = cfg.Logger
	} else {
		m.logger = logger.With(zap.String("module", "ledger"))
	}
	return m, nil
}

// Init rebuilds the cache from the stored coins.
func (m *BalanceManager) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.entries()
	if err != nil {
		return err
	}
	balances := make(map[address.Address]Balance)
	for _, e := range entries {
		if err := fold(balances, balances, e.Coin, true); err != nil {
			return err
		}
	}
	m.balances = balances
	return nil
}

// entries decodes every stored coin, skipping undecodable records.
func (m *BalanceManager) entries() ([]Entry, error) {
	ks, vs, err := m.db.Mkvs(UTXOArea)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(ks))
	for i := range ks {
		c, err := DecodeCoin(vs[i])
		if err != nil {
			m.logger.Error("decode contract coin", zap.Error(err), zap.Binary("key", ks[i]))
			continue
		}
		out = append(out, Entry{Key: ks[i], Coin: c})
	}
	return out, nil
}

// fold credits or debits c to the balance of its owner in staged, starting
// from the balance in base when staged has none yet.
func fold(base, staged map[address.Address]Balance, c *Coin, credit bool) error {
	b, ok := staged[c.Owner]
	if !ok {
		b = base[c.Owner]
	}
	amount := &b.Usable
	if !c.Usable() {
		amount = &b.Locked
	}
	var (
		v   uint64
		err error
		op  = "+"
	)
	if credit {
		v, err = math.AddUint64Overflow(*amount, c.Amount)
	} else {
		v, err = math.SubUint64Overflow(*amount, c.Amount)
		op = "-"
	}
	if err != nil {
		return fmt.Errorf("%v: %s %s %d", err, c.Owner, op, c.Amount)
	}
	*amount = v
	staged[c.Owner] = b
	return nil
}

func (m *BalanceManager) check(addr address.Address) error {
	if addr.IsZero() {
		return ErrInvalidAddress
	}
	if m.isContract != nil && !m.isContract(addr) {
		return ErrNotContract
	}
	return nil
}

// GetBalance returns the cached balance of a contract; an address without
// coins has a zero balance.
func (m *BalanceManager) GetBalance(addr address.Address) (Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(addr); err != nil {
		return Balance{}, err
	}
	return m.balances[addr], nil
}

// Refresh stores the added coins, deletes the spent ones and updates the
// cached balances of their owners. The new balances are computed before
// anything is written; on any error neither the store nor the cache
// changes.
func (m *BalanceManager) Refresh(add, del []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := make(map[address.Address]Balance)
	for _, e := range add {
		if err := fold(m.balances, staged, e.Coin, true); err != nil {
			return err
		}
	}
	for _, e := range del {
		if err := fold(m.balances, staged, e.Coin, false); err != nil {
			return err
		}
	}

	tx := m.db.NewTransaction()
	for _, e := range add {
		v, err := e.Coin.Bytes()
		if err != nil {
			tx.Cancel()
			return err
		}
		if err := tx.Mset(UTXOArea, e.Key, v); err != nil {
			tx.Cancel()
			return err
		}
	}
	for _, e := range del {
		if err := tx.Mdel(UTXOArea, e.Key); err != nil {
			tx.Cancel()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	for addr, b := range staged {
		if b == (Balance{}) {
			delete(m.balances, addr)
			continue
		}
		m.balances[addr] = b
	}
	return nil
}

// RemoveBalance deletes every coin owned by addr, typically after the
// contract was stopped, and returns the removed coins.
func (m *BalanceManager) RemoveBalance(addr address.Address) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(addr); err != nil {
		return nil, err
	}
	entries, err := m.entries()
	if err != nil {
		return nil, err
	}

	var removed []Entry
	tx := m.db.NewTransaction()
	for _, e := range entries {
		if e.Coin.Owner != addr {
			continue
		}
		if err := tx.Mdel(UTXOArea, e.Key); err != nil {
			tx.Cancel()
			return nil, err
		}
		removed = append(removed, e)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	delete(m.balances, addr)
	m.logger.Info("removed contract balance", zap.Stringer("contract", addr), zap.Int("coins", len(removed)))
	return removed, nil
}

// CoinsByAddress returns the coins owned by addr.
func (m *BalanceManager) CoinsByAddress(addr address.Address) ([]Entry, error) {
	entries, err := m.entries()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range entries {
		if e.Coin.Owner == addr {
			out = append(out, e)
		}
	}
	return out, nil
}
