// Package ledger keeps the balances held by contract addresses. Balances
// live beside the contract state, not inside it: they never feed the state
// root.
package ledger

import (
	"errors"

	"github.com/Czone-League/nuls/pkg/address"
	"github.com/fxamacker/cbor/v2"
)

// UTXOArea is the store map holding contract coins, keyed by outpoint.
var UTXOArea = []byte("contract_utxo")

var (
	ErrInvalidAddress = errors.New("invalid contract address")
	ErrNotContract    = errors.New("address is not a contract")
)

// Coin is an unspent output owned by a contract. A coin with a non-zero
// LockTime is locked.
type Coin struct {
	_        struct{} `cbor:",toarray"`
	Owner    address.Address
	Amount   uint64
	LockTime uint64
}

func (c *Coin) Usable() bool {
	return c.LockTime == 0
}

func (c *Coin) Bytes() ([]byte, error) {
	return cbor.Marshal(c)
}

func DecodeCoin(b []byte) (*Coin, error) {
	c := new(Coin)
	if err := cbor.Unmarshal(b, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Entry is a coin together with its outpoint key.
type Entry struct {
	Key  []byte
	Coin *Coin
}

type Balance struct {
	Usable uint64 `json:"usable"`
	Locked uint64 `json:"locked"`
}

func (b Balance) Total() uint64 {
	return b.Usable + b.Locked
}
