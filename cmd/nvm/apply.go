package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Czone-League/nuls/pkg/address"
	"github.com/Czone-League/nuls/pkg/contract/program"
	"github.com/Czone-League/nuls/pkg/logger"
	"github.com/Czone-League/nuls/pkg/txpool"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var Apply = cli.Command{
	Action:    apply,
	Name:      "apply",
	Usage:     "applies a batch of contract transactions as one block",
	ArgsUsage: "<batch.json>",
	Flags:     []cli.Flag{numberFlag},
}

// batchEntry is one transaction of a batch file. Code paths are relative to
// the batch file.
type batchEntry struct {
	Kind     string   `json:"kind"`
	Nonce    uint64   `json:"nonce"`
	Sender   string   `json:"sender"`
	Price    uint64   `json:"price"`
	Limit    uint64   `json:"limit"`
	Code     string   `json:"code"`
	Contract string   `json:"contract"`
	Method   string   `json:"method"`
	Desc     string   `json:"desc"`
	Args     []string `json:"args"`
}

func (b *batchEntry) transaction(dir string, number uint64) (*txpool.Transaction, error) {
	from, err := address.Parse(b.Sender)
	if err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	contract, err := address.Parse(b.Contract)
	if err != nil {
		return nil, fmt.Errorf("contract: %w", err)
	}

	tx := &txpool.Transaction{Nonce: b.Nonce}
	switch b.Kind {
	case "create":
		path := b.Code
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		raw, err := readCode(path)
		if err != nil {
			return nil, err
		}
		tx.Create = &program.ProgramCreate{
			ContractAddress: contract,
			Sender:          from,
			Price:           b.Price,
			ResourceLimit:   b.Limit,
			Number:          number,
			Code:            raw,
			Args:            b.Args,
		}
	case "call":
		tx.Call = &program.ProgramCall{
			ContractAddress: contract,
			Sender:          from,
			Price:           b.Price,
			ResourceLimit:   b.Limit,
			Number:          number,
			MethodName:      b.Method,
			MethodDesc:      b.Desc,
			Args:            b.Args,
		}
	case "stop":
		tx.Stop = &program.ProgramStop{ContractAddress: contract, Sender: from, Number: number}
	default:
		return nil, fmt.Errorf("unknown transaction kind %q", b.Kind)
	}
	return tx, nil
}

func apply(ctx *cli.Context) error {
	if ctx.Args().Len() != 1 {
		return fmt.Errorf("missing batch file")
	}
	path := ctx.Args().Get(0)
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var entries []batchEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	pool := txpool.NewPool(txpool.Config{Capacity: len(entries)})
	for i := range entries {
		tx, err := entries[i].transaction(filepath.Dir(path), ctx.Uint64(numberFlag.Name))
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if err := pool.Add(tx); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	root, err := e.root(ctx)
	if err != nil {
		return err
	}
	block, err := e.exec.Begin(root)
	if err != nil {
		return err
	}

	var (
		results []*program.ProgramResult
		stopped []address.Address
	)
	for txs := pool.Pending(); len(txs) > 0; txs = pool.Pending() {
		rs, err := txpool.ApplyAll(block, txs)
		if err != nil {
			block.Discard()
			return err
		}
		for i, res := range rs {
			if res.Success && txs[i].Stop != nil {
				stopped = append(stopped, txs[i].Stop.ContractAddress)
			}
		}
		results = append(results, rs...)
	}
	if n := pool.Len(); n > 0 {
		logger.Warn("transactions left behind a nonce gap", zap.Int("count", n))
	}

	newRoot, err := seal(block, e.state, e.ledger, stopped)
	if err != nil {
		return err
	}
	return printJSON(ctx, struct {
		Root    string                   `json:"root"`
		Results []*program.ProgramResult `json:"results"`
	}{newRoot.Hex(), results})
}
