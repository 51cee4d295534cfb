// Package program runs contract programs inside trackers: transactional
// scopes over one committed state root.
package program

import (
	"errors"
	"fmt"

	"github.com/Czone-League/nuls/pkg/contract/state"
	"github.com/Czone-League/nuls/pkg/contract/vm"
	"github.com/Czone-League/nuls/pkg/logger"
	"github.com/bluele/gcache"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var (
	ErrNotOpen     = errors.New("tracker is not open")
	ErrChildOpen   = errors.New("tracker has an open child")
	ErrUnknownRoot = state.ErrUnknownRoot
	ErrNoContract  = errors.New("no contract at address")
)

type Config struct {
	VM            *vm.Config
	CodeCacheSize int

	Logger *zap.Logger
}

// Executor opens trackers over a state database. It is safe for concurrent
// use; the trackers it returns are not.
type Executor struct {
	db     *state.Database
	vmCfg  *vm.Config
	code   gcache.Cache
	logger *zap.Logger
}

func NewExecutor(db *state.Database, cfg Config) (*Executor, error) {
	if db == nil {
		return nil, fmt.Errorf("state database cannot be empty")
	}
	x := &Executor{
		db:    db,
		vmCfg: cfg.VM,
		code:  vm.NewCodeCache(cfg.CodeCacheSize),
	}
	if x.vmCfg == nil {
		x.vmCfg = vm.DefaultConfig()
	}
	if cfg.Logger != nil {
		x.logger = cfg.Logger
	} else {
		x.logger = logger.With(zap.String("module", "program"))
	}
	return x, nil
}

// Begin opens a top-level tracker on the committed state at prevRoot.
func (x *Executor) Begin(prevRoot common.Hash) (*Tracker, error) {
	arena := state.NewArena(x.db)
	h, err := arena.Open(prevRoot)
	if err != nil {
		return nil, err
	}
	return &Tracker{
		x:      x,
		lin:    &lineage{arena: arena, reg: vm.NewRegistry(x.code)},
		handle: h,
		status: Open,
		logger: x.logger,
	}, nil
}
