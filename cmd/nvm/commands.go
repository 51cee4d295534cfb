package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Czone-League/nuls/pkg/address"
	"github.com/Czone-League/nuls/pkg/contract/code"
	"github.com/Czone-League/nuls/pkg/contract/program"
	"github.com/urfave/cli/v2"
)

var Deploy = cli.Command{
	Action:    deploy,
	Name:      "deploy",
	Usage:     "deploys a contract package and runs its constructor",
	ArgsUsage: "<code file (.json or cbor)> [constructor args...]",
	Flags:     []cli.Flag{senderFlag, nonceFlag, priceFlag, limitFlag, numberFlag},
}

var Call = cli.Command{
	Action:    call,
	Name:      "call",
	Usage:     "invokes a contract method",
	ArgsUsage: "<contract> <method> [args...]",
	Flags:     []cli.Flag{senderFlag, priceFlag, limitFlag, numberFlag, descFlag},
}

var Stop = cli.Command{
	Action:    stop,
	Name:      "stop",
	Usage:     "stops a contract and releases its balance",
	ArgsUsage: "<contract>",
	Flags:     []cli.Flag{senderFlag, numberFlag},
}

var Methods = cli.Command{
	Action:    methods,
	Name:      "methods",
	Usage:     "lists the callable methods of a contract",
	ArgsUsage: "<contract>",
}

var Root = cli.Command{
	Action: root,
	Name:   "root",
	Usage:  "prints the recorded head state root",
}

var Balance = cli.Command{
	Action:    balance,
	Name:      "balance",
	Usage:     "prints the balance held by a contract",
	ArgsUsage: "<contract>",
}

// readCode loads a package from a JSON or CBOR file and returns its
// canonical encoding.
func readCode(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pkg *code.Package
	if strings.EqualFold(filepath.Ext(path), ".json") {
		pkg, err = code.DecodeJSON(raw)
	} else {
		pkg, err = code.Decode(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pkg.Encode()
}

func contractArg(ctx *cli.Context) (address.Address, error) {
	if ctx.Args().Len() < 1 {
		return address.Undef, fmt.Errorf("missing contract address")
	}
	return address.Parse(ctx.Args().Get(0))
}

func sender(ctx *cli.Context) (address.Address, error) {
	a, err := address.Parse(ctx.String(senderFlag.Name))
	if err != nil {
		return address.Undef, fmt.Errorf("sender: %w", err)
	}
	return a, nil
}

func deploy(ctx *cli.Context) error {
	if ctx.Args().Len() < 1 {
		return fmt.Errorf("missing code file")
	}
	raw, err := readCode(ctx.Args().Get(0))
	if err != nil {
		return err
	}
	from, err := sender(ctx)
	if err != nil {
		return err
	}

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := e.run(ctx, func(tr *program.Tracker) (*program.ProgramResult, error) {
		return tr.Create(&program.ProgramCreate{
			Sender:        from,
			Nonce:         ctx.Uint64(nonceFlag.Name),
			Price:         ctx.Uint64(priceFlag.Name),
			ResourceLimit: ctx.Uint64(limitFlag.Name),
			Number:        ctx.Uint64(numberFlag.Name),
			Code:          raw,
			Args:          ctx.Args().Slice()[1:],
		})
	})
	if err != nil {
		return err
	}
	return printJSON(ctx, res)
}

func call(ctx *cli.Context) error {
	contract, err := contractArg(ctx)
	if err != nil {
		return err
	}
	if ctx.Args().Len() < 2 {
		return fmt.Errorf("missing method name")
	}
	from, err := sender(ctx)
	if err != nil {
		return err
	}

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := e.run(ctx, func(tr *program.Tracker) (*program.ProgramResult, error) {
		return tr.Call(&program.ProgramCall{
			ContractAddress: contract,
			Sender:          from,
			Price:           ctx.Uint64(priceFlag.Name),
			ResourceLimit:   ctx.Uint64(limitFlag.Name),
			Number:          ctx.Uint64(numberFlag.Name),
			MethodName:      ctx.Args().Get(1),
			MethodDesc:      ctx.String(descFlag.Name),
			Args:            ctx.Args().Slice()[2:],
		})
	})
	if err != nil {
		return err
	}
	return printJSON(ctx, res)
}

func stop(ctx *cli.Context) error {
	contract, err := contractArg(ctx)
	if err != nil {
		return err
	}
	from, err := sender(ctx)
	if err != nil {
		return err
	}

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := e.run(ctx, func(tr *program.Tracker) (*program.ProgramResult, error) {
		return tr.Stop(&program.ProgramStop{
			ContractAddress: contract,
			Sender:          from,
			Number:          ctx.Uint64(numberFlag.Name),
		})
	})
	if err != nil {
		return err
	}
	if res.Success {
		if _, err := e.ledger.RemoveBalance(contract); err != nil {
			return fmt.Errorf("remove balance of %s: %w", contract, err)
		}
	}
	return printJSON(ctx, res)
}

func methods(ctx *cli.Context) error {
	contract, err := contractArg(ctx)
	if err != nil {
		return err
	}
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	r, err := e.root(ctx)
	if err != nil {
		return err
	}
	tr, err := e.exec.Begin(r)
	if err != nil {
		return err
	}
	defer tr.Discard()

	list, err := tr.Method(contract)
	if err != nil {
		return err
	}
	return printJSON(ctx, list)
}

func root(ctx *cli.Context) error {
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	r, err := e.state.Head()
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, r.Hex())
	return nil
}

func balance(ctx *cli.Context) error {
	contract, err := contractArg(ctx)
	if err != nil {
		return err
	}
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	b, err := e.ledger.GetBalance(contract)
	if err != nil {
		return err
	}
	return printJSON(ctx, b)
}
