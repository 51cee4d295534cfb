package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Czone-League/nuls/pkg/address"
	"github.com/Czone-League/nuls/pkg/config"
	"github.com/Czone-League/nuls/pkg/contract/ledger"
	"github.com/Czone-League/nuls/pkg/contract/program"
	"github.com/Czone-League/nuls/pkg/contract/state"
	"github.com/Czone-League/nuls/pkg/logger"
	"github.com/Czone-League/nuls/pkg/storage/store"
	"github.com/Czone-League/nuls/pkg/storage/store/bg"
	"github.com/Czone-League/nuls/pkg/storage/store/ldb"
	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

type env struct {
	cfg    *config.CfgInfo
	db     store.DB
	state  *state.Database
	exec   *program.Executor
	ledger *ledger.BalanceManager
}

func loadConfig(ctx *cli.Context) (*config.CfgInfo, error) {
	cfg := config.DefaultConfig()
	if path := ctx.String(configFlag.Name); path != "" {
		var err error
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if dir := ctx.String(dataDirFlag.Name); dir != "" {
		cfg.StoreConfig.Path = dir
	}
	if engine := ctx.String(engineFlag.Name); engine != "" {
		cfg.StoreConfig.Engine = engine
	}
	return cfg, nil
}

func openStore(sc *config.StoreConfig) (store.DB, error) {
	switch sc.Engine {
	case config.EngineBadger:
		return bg.Open(sc.Path)
	case config.EngineLevelDB:
		return ldb.Open(sc.Path)
	}
	return nil, fmt.Errorf("unknown store engine %q", sc.Engine)
}

func openEnv(ctx *cli.Context) (*env, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	if ctx.String(configFlag.Name) != "" {
		if err := logger.InitLogger(cfg.LogConfig); err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}

	db, err := openStore(cfg.StoreConfig)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	sdb := state.NewDatabase(db, cfg.CacheConfig.StateCacheSize, nil)
	x, err := program.NewExecutor(sdb, program.Config{
		VM:            cfg.VMConfig,
		CodeCacheSize: cfg.CacheConfig.CodeCacheSize,
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	lm, err := ledger.NewBalanceManager(ledger.Config{Store: db})
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := lm.Init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load contract balances: %w", err)
	}
	return &env{cfg: cfg, db: db, state: sdb, exec: x, ledger: lm}, nil
}

func (e *env) Close() error {
	return errors.Join(e.db.Sync(), e.db.Close(), logger.Sync())
}

// root resolves --root, falling back to the recorded head.
func (e *env) root(ctx *cli.Context) (common.Hash, error) {
	if s := ctx.String(rootFlag.Name); s != "" {
		return common.HexToHash(s), nil
	}
	return e.state.Head()
}

// run executes fn in a transaction tracker nested in a block tracker, the
// way a block applies one contract transaction, and records the new head
// when fn succeeds.
func (e *env) run(ctx *cli.Context, fn func(*program.Tracker) (*program.ProgramResult, error)) (*program.ProgramResult, error) {
	root, err := e.root(ctx)
	if err != nil {
		return nil, err
	}
	block, err := e.exec.Begin(root)
	if err != nil {
		return nil, err
	}
	tx, err := block.StartTracking()
	if err != nil {
		return nil, err
	}

	res, err := fn(tx)
	if err != nil || !res.Success {
		if derr := block.Discard(); derr != nil {
			logger.Error("discard tracker", zap.Error(derr))
		}
		return res, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	if _, err := seal(block, e.state, e.ledger, nil); err != nil {
		return nil, err
	}
	return res, nil
}

type blockTracker interface {
	Commit() error
	Root() (common.Hash, error)
}

type headStore interface {
	SetHead(common.Hash) error
}

type balanceRemover interface {
	RemoveBalance(address.Address) ([]ledger.Entry, error)
}

// seal commits block and records its root as the new head. Only then are
// the ledger balances of the stopped contracts removed, so a block that
// never becomes the head keeps them.
func seal(block blockTracker, heads headStore, balances balanceRemover, stopped []address.Address) (common.Hash, error) {
	if err := block.Commit(); err != nil {
		return common.Hash{}, err
	}
	newRoot, err := block.Root()
	if err != nil {
		return common.Hash{}, err
	}
	if err := heads.SetHead(newRoot); err != nil {
		return common.Hash{}, err
	}
	logger.Info("new head", zap.Stringer("root", newRoot))
	for _, addr := range stopped {
		if _, err := balances.RemoveBalance(addr); err != nil {
			logger.Error("remove balance", zap.Error(err), zap.Stringer("contract", addr))
		}
	}
	return newRoot, nil
}

func printJSON(ctx *cli.Context, v interface{}) error {
	enc := json.NewEncoder(ctx.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
