// Command nvm deploys and runs contracts against a local state store.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "path of the yaml configuration file",
	}
	dataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "directory of the state store, overrides the configuration",
	}
	engineFlag = &cli.StringFlag{
		Name:  "engine",
		Usage: "store engine, badger or leveldb",
	}
	rootFlag = &cli.StringFlag{
		Name:  "root",
		Usage: "state root to execute on instead of the recorded head",
	}

	senderFlag = &cli.StringFlag{
		Name:     "sender",
		Usage:    "address of the transaction sender",
		Required: true,
	}
	nonceFlag = &cli.Uint64Flag{
		Name:  "nonce",
		Usage: "sender nonce used to derive the contract address",
	}
	priceFlag = &cli.Uint64Flag{
		Name:  "price",
		Usage: "price per unit of cost",
		Value: 25,
	}
	limitFlag = &cli.Uint64Flag{
		Name:  "limit",
		Usage: "resource limit, 0 for the configured default",
	}
	numberFlag = &cli.Uint64Flag{
		Name:  "number",
		Usage: "block number visible to the contract",
	}
	descFlag = &cli.StringFlag{
		Name:  "desc",
		Usage: "method descriptor, e.g. (AI)Z",
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "nvm",
		Usage: "contract virtual machine tool",
		Flags: []cli.Flag{configFlag, dataDirFlag, engineFlag, rootFlag},
		Commands: []*cli.Command{
			&Deploy,
			&Call,
			&Stop,
			&Methods,
			&Root,
			&Balance,
			&Apply,
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
