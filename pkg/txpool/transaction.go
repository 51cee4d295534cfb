package txpool

import (
	"errors"
	"fmt"

	"github.com/Czone-League/nuls/pkg/address"
	"github.com/Czone-League/nuls/pkg/contract/program"
)

var ErrMalformed = errors.New("transaction must carry exactly one of create, call or stop")

// Transaction is a contract transaction waiting to be applied to a block.
type Transaction struct {
	Nonce  uint64                 `json:"nonce"`
	Create *program.ProgramCreate `json:"create,omitempty"`
	Call   *program.ProgramCall   `json:"call,omitempty"`
	Stop   *program.ProgramStop   `json:"stop,omitempty"`
}

func (tx *Transaction) check() error {
	n := 0
	for _, set := range []bool{tx.Create != nil, tx.Call != nil, tx.Stop != nil} {
		if set {
			n++
		}
	}
	if n != 1 {
		return ErrMalformed
	}
	return nil
}

func (tx *Transaction) Sender() address.Address {
	switch {
	case tx.Create != nil:
		return tx.Create.Sender
	case tx.Call != nil:
		return tx.Call.Sender
	case tx.Stop != nil:
		return tx.Stop.Sender
	}
	return address.Undef
}

// Price is the offered price per unit of cost; stops carry none.
func (tx *Transaction) Price() uint64 {
	switch {
	case tx.Create != nil:
		return tx.Create.Price
	case tx.Call != nil:
		return tx.Call.Price
	}
	return 0
}

func (tx *Transaction) String() string {
	switch {
	case tx.Create != nil:
		return fmt.Sprintf("create{sender:%s nonce:%d price:%d}", tx.Sender(), tx.Nonce, tx.Price())
	case tx.Call != nil:
		return fmt.Sprintf("call{sender:%s nonce:%d price:%d contract:%s method:%s}",
			tx.Sender(), tx.Nonce, tx.Price(), tx.Call.ContractAddress, tx.Call.MethodName)
	case tx.Stop != nil:
		return fmt.Sprintf("stop{sender:%s nonce:%d contract:%s}", tx.Sender(), tx.Nonce, tx.Stop.ContractAddress)
	}
	return "malformed"
}

// Apply runs tx in its own child of block. The child is committed when the
// program succeeds and discarded otherwise, so block only ever absorbs
// successful transactions.
func Apply(block *program.Tracker, tx *Transaction) (*program.ProgramResult, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}
	child, err := block.StartTracking()
	if err != nil {
		return nil, err
	}

	var res *program.ProgramResult
	switch {
	case tx.Create != nil:
		req := *tx.Create
		req.Nonce = tx.Nonce
		res, err = child.Create(&req)
	case tx.Call != nil:
		res, err = child.Call(tx.Call)
	default:
		res, err = child.Stop(tx.Stop)
	}
	if err != nil || !res.Success {
		if derr := child.Discard(); derr != nil && err == nil {
			err = derr
		}
		return res, err
	}
	return res, child.Commit()
}

// ApplyAll applies txs in order and returns one result per transaction.
func ApplyAll(block *program.Tracker, txs []*Transaction) ([]*program.ProgramResult, error) {
	out := make([]*program.ProgramResult, 0, len(txs))
	for _, tx := range txs {
		res, err := Apply(block, tx)
		if err != nil {
			return out, fmt.Errorf("%s: %w", tx, err)
		}
		out = append(out, res)
	}
	return out, nil
}
