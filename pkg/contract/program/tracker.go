package program

import (
	"github.com/Czone-League/nuls/pkg/address"
	"github.com/Czone-League/nuls/pkg/contract/code"
	"github.com/Czone-League/nuls/pkg/contract/state"
	"github.com/Czone-League/nuls/pkg/contract/vm"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const (
	stopHookName = "_authorizeStop"
	stopHookDesc = "(A)Z"
)

// Values of the $status cell of a contract.
var (
	contractActive  = code.Uint64Value(1)
	contractStopped = code.Uint64Value(2)
)

// lineage is shared by a top-level tracker and all its descendants.
type lineage struct {
	arena *state.Arena
	reg   *vm.Registry
}

// Tracker is a transactional scope: it sees the state of its parent (or of
// the root it was opened on) plus its own writes, and either commits them
// or discards them. A tracker and its descendants must be driven from one
// goroutine.
type Tracker struct {
	x      *Executor
	lin    *lineage
	parent *Tracker
	child  *Tracker
	handle state.Handle
	status Status
	root   common.Hash
	logger *zap.Logger
}

func (t *Tracker) Status() Status {
	return t.status
}

func (t *Tracker) usable() error {
	if t.status != Open {
		return ErrNotOpen
	}
	if t.child != nil {
		return ErrChildOpen
	}
	return nil
}

// StartTracking opens a child tracker layered on t. t rejects mutations
// until the child is committed or discarded.
func (t *Tracker) StartTracking() (*Tracker, error) {
	if err := t.usable(); err != nil {
		return nil, err
	}
	c := &Tracker{
		x:      t.x,
		lin:    t.lin,
		parent: t,
		handle: t.lin.arena.Child(t.handle),
		status: Open,
		logger: t.logger,
	}
	t.child = c
	return c, nil
}

// Commit merges a child into its parent, or persists a top-level tracker
// and fixes its root.
func (t *Tracker) Commit() error {
	if err := t.usable(); err != nil {
		return err
	}
	arena := t.lin.arena
	if t.parent != nil {
		t.root = arena.Hash(t.handle)
		arena.Merge(t.handle)
		t.parent.child = nil
	} else {
		root, err := arena.Commit(t.handle)
		if err != nil {
			return err
		}
		t.root = root
		t.logger.Info("tracker committed", zap.Stringer("root", root))
	}
	t.status = Committed
	return nil
}

// Discard drops the writes of t and of any open descendant. Discarding a
// discarded tracker is a no-op.
func (t *Tracker) Discard() error {
	switch t.status {
	case Discarded:
		return nil
	case Committed:
		return ErrNotOpen
	}
	if t.child != nil {
		if err := t.child.Discard(); err != nil {
			return err
		}
	}
	t.lin.arena.Discard(t.handle)
	if t.parent != nil {
		t.parent.child = nil
	}
	t.status = Discarded
	return nil
}

// Root is the state root visible to t: computed on demand while open, fixed
// once committed.
func (t *Tracker) Root() (common.Hash, error) {
	switch t.status {
	case Open:
		return t.lin.arena.Hash(t.handle), nil
	case Committed:
		return t.root, nil
	}
	return common.Hash{}, ErrNotOpen
}

// invocation runs fn in a fresh snapshot on top of t, merging the snapshot
// on success and dropping it on failure.
func (t *Tracker) invocation(ctx vm.Context, fn func(h *state.Heap, e func(*vm.MethodArea) *vm.Engine) vm.ExecutionResult) vm.ExecutionResult {
	arena := t.lin.arena
	h := arena.Child(t.handle)
	heap := arena.Heap(h)
	res := fn(heap, func(area *vm.MethodArea) *vm.Engine {
		return vm.NewEngine(t.x.vmCfg, area, heap, ctx)
	})
	if res.Success {
		arena.Merge(h)
	} else {
		arena.Discard(h)
	}
	return res
}

func failure(kind vm.FaultKind, msg string) vm.ExecutionResult {
	return vm.ExecutionResult{ErrorKind: kind, ErrorMessage: msg}
}

// Create deploys a contract and runs its constructor. On failure t is left
// unchanged.
func (t *Tracker) Create(req *ProgramCreate) (*ProgramResult, error) {
	if err := t.usable(); err != nil {
		return nil, err
	}
	out := &ProgramResult{ContractAddress: req.ContractAddress, Price: req.Price}

	pkg, hash, err := t.lin.reg.Package(req.Code)
	if err != nil {
		out.ExecutionResult = failure(vm.FaultLoad, err.Error())
		return out, nil
	}
	if out.ContractAddress.IsZero() {
		out.ContractAddress = address.NewContractAddress(req.Sender, req.Nonce, hash)
	}
	addr := out.ContractAddress
	ctx := vm.Context{
		Contract: addr,
		Sender:   req.Sender,
		Price:    req.Price,
		Number:   req.Number,
		Limit:    req.ResourceLimit,
	}

	out.ExecutionResult = t.invocation(ctx, func(heap *state.Heap, engine func(*vm.MethodArea) *vm.Engine) vm.ExecutionResult {
		if heap.Has(state.MetaKey(addr, state.CodeField)) {
			return failure(vm.FaultLogic, "contract "+addr.String()+" already exists")
		}
		heap.Set(state.MetaKey(addr, state.CodeField), code.StringValue(string(req.Code)))
		heap.Set(state.MetaKey(addr, state.StatusField), contractActive)
		heap.Set(state.MetaKey(addr, state.MainField), code.StringValue(pkg.Main))
		heap.Set(state.MetaKey(addr, state.CreatorField), code.AddressValue(req.Sender))

		area, err := vm.NewMethodArea(t.lin.reg, addr, heap)
		if err != nil {
			return failure(vm.FaultLoad, err.Error())
		}
		e := engine(area)
		return e.Run(func() code.Value {
			this := code.RefValue(e.Alloc(pkg.Main))
			area.LoadClass(e, pkg.Main)
			ctor := constructor(area.Package().Class(pkg.Main), len(req.Args))
			if ctor == nil {
				if len(req.Args) > 0 {
					vm.Throw(vm.FaultResolution, "%s has no constructor taking %d arguments", pkg.Main, len(req.Args))
				}
				return code.Null()
			}
			args := parseArgs(ctor.Method.Desc, req.Args)
			return e.Exec(ctor, this, args)
		})
	})
	t.logger.Debug("create", zap.Stringer("contract", addr), zap.Bool("success", out.Success),
		zap.Uint64("cost", out.Cost), zap.String("error", out.ErrorMessage))
	return out, nil
}

func constructor(c *code.Class, argc int) *vm.Resolved {
	for _, m := range c.Methods {
		if m.Name == code.InitName && !m.Static && len(m.Args()) == argc {
			return &vm.Resolved{Class: c, Method: m, Owner: c.Name}
		}
	}
	return nil
}

func parseArgs(desc string, args []string) []code.Value {
	vals, err := code.ParseArgs(desc, args)
	if err != nil {
		vm.Throw(vm.FaultLogic, "%v", err)
	}
	return vals
}

// contract binds a method area to a deployed, active contract.
func (t *Tracker) contract(heap *state.Heap, addr address.Address) (*vm.MethodArea, string, *vm.Fault) {
	area, err := vm.NewMethodArea(t.lin.reg, addr, heap)
	if err != nil {
		if f, ok := err.(*vm.Fault); ok {
			return nil, "", f
		}
		return nil, "", &vm.Fault{Kind: vm.FaultLoad, Msg: err.Error()}
	}
	st, err := heap.Get(state.MetaKey(addr, state.StatusField), code.Int)
	if err != nil {
		return nil, "", &vm.Fault{Kind: vm.FaultLoad, Msg: err.Error()}
	}
	if st.Equal(contractStopped) {
		return nil, "", &vm.Fault{Kind: vm.FaultLogic, Msg: "contract " + addr.String() + " is stopped"}
	}
	return area, area.Package().Main, nil
}

// Call invokes a method of a deployed contract. On failure t is left
// unchanged.
func (t *Tracker) Call(req *ProgramCall) (*ProgramResult, error) {
	if err := t.usable(); err != nil {
		return nil, err
	}
	out := &ProgramResult{ContractAddress: req.ContractAddress, Price: req.Price}
	ctx := vm.Context{
		Contract: req.ContractAddress,
		Sender:   req.Sender,
		Price:    req.Price,
		Number:   req.Number,
		Limit:    req.ResourceLimit,
	}

	out.ExecutionResult = t.invocation(ctx, func(heap *state.Heap, engine func(*vm.MethodArea) *vm.Engine) vm.ExecutionResult {
		area, main, f := t.contract(heap, req.ContractAddress)
		if f != nil {
			return failure(f.Kind, f.Msg)
		}
		e := engine(area)
		return e.Run(func() code.Value {
			area.LoadClass(e, main)
			var r *vm.Resolved
			if req.MethodDesc == "" {
				r = area.FindMethod(main, req.MethodName, len(req.Args))
			} else {
				r = area.LoadMethod(main, req.MethodName, req.MethodDesc)
			}
			if r == nil || r.Method.Name == code.InitName || r.Method.Name == code.ClinitName {
				vm.Throw(vm.FaultResolution, "method %s%s not found", req.MethodName, req.MethodDesc)
			}
			return e.Exec(r, code.RefValue(vm.ContractObject), parseArgs(r.Method.Desc, req.Args))
		})
	})
	t.logger.Debug("call", zap.Stringer("contract", req.ContractAddress), zap.String("method", req.MethodName),
		zap.Bool("success", out.Success), zap.Uint64("cost", out.Cost), zap.String("error", out.ErrorMessage))
	return out, nil
}

// Stop deactivates a contract when its _authorizeStop(A)Z method returns
// true for the sender.
func (t *Tracker) Stop(req *ProgramStop) (*ProgramResult, error) {
	if err := t.usable(); err != nil {
		return nil, err
	}
	out := &ProgramResult{ContractAddress: req.ContractAddress}
	ctx := vm.Context{
		Contract: req.ContractAddress,
		Sender:   req.Sender,
		Number:   req.Number,
	}

	out.ExecutionResult = t.invocation(ctx, func(heap *state.Heap, engine func(*vm.MethodArea) *vm.Engine) vm.ExecutionResult {
		area, main, f := t.contract(heap, req.ContractAddress)
		if f != nil {
			return failure(f.Kind, f.Msg)
		}
		e := engine(area)
		return e.Run(func() code.Value {
			area.LoadClass(e, main)
			r := area.LoadMethod(main, stopHookName, stopHookDesc)
			if r == nil {
				vm.Throw(vm.FaultResolution, "%s does not define %s%s", main, stopHookName, stopHookDesc)
			}
			ok := e.Exec(r, code.RefValue(vm.ContractObject), []code.Value{code.AddressValue(req.Sender)})
			if !ok.Bool {
				vm.Throw(vm.FaultLogic, "%s is not allowed to stop %s", req.Sender, req.ContractAddress)
			}
			heap.Set(state.MetaKey(req.ContractAddress, state.StatusField), contractStopped)
			return ok
		})
	})
	t.logger.Debug("stop", zap.Stringer("contract", req.ContractAddress), zap.Bool("success", out.Success),
		zap.String("error", out.ErrorMessage))
	return out, nil
}

// Method lists the callable methods of the contract at addr.
func (t *Tracker) Method(addr address.Address) ([]*ProgramMethod, error) {
	if t.status != Open {
		return nil, ErrNotOpen
	}
	area, err := vm.NewMethodArea(t.lin.reg, addr, t.lin.arena.Heap(t.handle))
	if err != nil {
		return nil, ErrNoContract
	}
	rs, err := area.Methods(area.Package().Main)
	if err != nil {
		return nil, err
	}
	out := make([]*ProgramMethod, 0, len(rs))
	for _, r := range rs {
		m := &ProgramMethod{
			Name:       r.Method.Name,
			Desc:       r.Method.Desc,
			ReturnType: string(r.Method.ReturnType()),
			Static:     r.Method.Static,
			Owner:      r.Owner,
		}
		for _, a := range r.Method.Args() {
			m.Args = append(m.Args, string(a))
		}
		out = append(out, m)
	}
	return out, nil
}
