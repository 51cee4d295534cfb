package vm

import (
	"fmt"

	"github.com/Czone-League/nuls/pkg/address"
	"github.com/Czone-League/nuls/pkg/contract/code"
	"github.com/Czone-League/nuls/pkg/contract/state"
	"github.com/Czone-League/nuls/pkg/logger"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// ContractObject is the object id of the contract instance itself.
const ContractObject uint64 = 1

// mapClass tags map objects in the heap.
const mapClass = "$map"

// Context carries the transaction inputs visible to a contract.
type Context struct {
	Contract address.Address
	Sender   address.Address
	Price    uint64
	Number   uint64
	Limit    uint64
}

type frame struct {
	res    *Resolved
	pc     int
	locals []code.Value
	stack  []code.Value
}

// Engine interprets the methods of one contract against one heap. An Engine
// serves a single invocation and is not safe for concurrent use.
type Engine struct {
	cfg    *Config
	area   *MethodArea
	heap   *state.Heap
	ctx    Context
	meter  meter
	frames []*frame
	events []Event
	logger *zap.Logger
}

func NewEngine(cfg *Config, area *MethodArea, heap *state.Heap, ctx Context) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	lg := cfg.Logger
	if lg == nil {
		lg = logger.With(zap.String("module", "vm"))
	}
	return &Engine{
		cfg:    cfg,
		area:   area,
		heap:   heap,
		ctx:    ctx,
		meter:  meter{limit: cfg.Limit(ctx.Limit)},
		logger: lg,
	}
}

func (e *Engine) Area() *MethodArea {
	return e.area
}

// Cost is the resource consumed so far.
func (e *Engine) Cost() uint64 {
	return e.meter.used
}

// Run executes fn inside the fault boundary: any Fault, or any runtime
// panic caused by malformed code, becomes a failed result.
func (e *Engine) Run(fn func() code.Value) (res ExecutionResult) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		f, ok := r.(*Fault)
		if !ok {
			f = fault(FaultLogic, "%v", r)
		}
		e.frames = nil
		e.events = nil
		e.logger.Debug("invocation failed", zap.Stringer("contract", e.ctx.Contract),
			zap.String("kind", string(f.Kind)), zap.String("msg", f.Msg), zap.Uint64("cost", e.meter.used))
		res = failed(f, e.meter.used)
	}()

	ret := fn()
	return ExecutionResult{
		Success:     true,
		ReturnValue: ret,
		Cost:        e.meter.used,
		Events:      e.events,
	}
}

// Invoke runs a resolved method with this (ignored for static methods) and
// args.
func (e *Engine) Invoke(r *Resolved, this code.Value, args []code.Value) ExecutionResult {
	return e.Run(func() code.Value {
		return e.call(r, this, args)
	})
}

// Call loads class, resolves the method and invokes it. An empty desc
// selects the first method named name taking len(args) arguments.
func (e *Engine) Call(class, name, desc string, this code.Value, args []code.Value) ExecutionResult {
	return e.Run(func() code.Value {
		e.area.LoadClass(e, class)
		var r *Resolved
		if desc == "" {
			r = e.area.FindMethod(class, name, len(args))
		} else {
			r = e.area.LoadMethod(class, name, desc)
		}
		if r == nil {
			throw(FaultResolution, "method %s.%s%s not found", class, name, desc)
		}
		return e.call(r, this, args)
	})
}

// Exec runs r like Invoke but without a fault boundary; it must be called
// from a function passed to Run.
func (e *Engine) Exec(r *Resolved, this code.Value, args []code.Value) code.Value {
	return e.call(r, this, args)
}

func (e *Engine) call(r *Resolved, this code.Value, args []code.Value) code.Value {
	if !r.Method.Static {
		if this.Kind != code.KindRef || this.Ref == 0 {
			throw(FaultLogic, "%s.%s needs a receiver", r.Owner, r.Method)
		}
		args = append([]code.Value{this}, args...)
	}
	return e.execute(r, args)
}

// execute runs r to completion on top of the current frames.
func (e *Engine) execute(r *Resolved, args []code.Value) code.Value {
	e.checkArgs(r, args)
	if r.Method.Native {
		return e.native(r, args)
	}
	base := len(e.frames)
	e.push(r, args)
	return e.loop(base)
}

func (e *Engine) checkArgs(r *Resolved, args []code.Value) {
	types := r.Method.Args()
	off := 0
	if !r.Method.Static {
		off = 1
	}
	if len(args) != len(types)+off {
		throw(FaultLogic, "%s.%s takes %d arguments, got %d", r.Owner, r.Method, len(types), len(args)-off)
	}
	for i, t := range types {
		if !t.Accepts(args[i+off]) {
			throw(FaultLogic, "%s.%s argument %d: %s is not %s", r.Owner, r.Method, i, args[i+off].Kind, t)
		}
	}
}

func (e *Engine) native(r *Resolved, args []code.Value) code.Value {
	fn, ok := natives[nativeKey(r.Owner, r.Method.Name, r.Method.Desc)]
	if !ok {
		throw(FaultLoad, "native %s.%s not bound", r.Owner, r.Method)
	}
	return fn(e, args)
}

func (e *Engine) push(r *Resolved, args []code.Value) {
	if len(e.frames) >= e.cfg.MaxCallDepth {
		throw(FaultDepth, "call depth %d exceeded", e.cfg.MaxCallDepth)
	}
	locals := make([]code.Value, r.Method.MaxLocals)
	copy(locals, args)
	e.frames = append(e.frames, &frame{res: r, locals: locals})
}

func (e *Engine) emit(name string, args []code.Value) {
	e.events = append(e.events, Event{Contract: e.ctx.Contract, Name: name, Args: args})
}

func (f *frame) pop() code.Value {
	if len(f.stack) == 0 {
		throw(FaultLogic, "%s.%s@%d: stack underflow", f.res.Owner, f.res.Method, f.pc)
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

func (e *Engine) pushValue(f *frame, v code.Value) {
	if len(f.stack) >= e.cfg.MaxStackSize {
		throw(FaultLogic, "%s.%s@%d: stack overflow", f.res.Owner, f.res.Method, f.pc)
	}
	f.stack = append(f.stack, v)
}

func (f *frame) popKind(k code.Kind) code.Value {
	v := f.pop()
	if v.Kind != k {
		throw(FaultLogic, "%s.%s@%d: expected %s, got %s", f.res.Owner, f.res.Method, f.pc, k, v.Kind)
	}
	return v
}

func (f *frame) popInt() *uint256.Int {
	v := f.popKind(code.KindInt)
	return &v.Int
}

// popRef pops a non-null object or map reference.
func (f *frame) popRef(k code.Kind) uint64 {
	v := f.pop()
	if v.Kind == code.KindNull {
		throw(FaultLogic, "%s.%s@%d: null reference", f.res.Owner, f.res.Method, f.pc)
	}
	if v.Kind != k {
		throw(FaultLogic, "%s.%s@%d: expected %s, got %s", f.res.Owner, f.res.Method, f.pc, k, v.Kind)
	}
	return v.Ref
}

func (f *frame) String() string {
	return fmt.Sprintf("%s.%s@%d", f.res.Owner, f.res.Method, f.pc)
}

// Alloc creates a heap object of class and returns its id. Ids are dense per
// contract and start at ContractObject.
func (e *Engine) Alloc(class string) uint64 {
	k := state.MetaKey(e.ctx.Contract, state.NextObjectField)
	next, err := e.heap.Get(k, code.Int)
	if err != nil {
		throw(FaultLoad, "%v", err)
	}
	id := next.Int.Uint64()
	if id < ContractObject {
		id = ContractObject
	}
	e.heap.Set(k, code.Uint64Value(id+1))
	e.heap.Set(state.ClassKey(e.ctx.Contract, id), code.StringValue(class))
	return id
}

// classOf returns the runtime class of object id.
func (e *Engine) classOf(id uint64) string {
	v, err := e.heap.Get(state.ClassKey(e.ctx.Contract, id), code.String)
	if err != nil {
		throw(FaultLoad, "%v", err)
	}
	if v.Str == "" {
		throw(FaultLogic, "dangling reference %d", id)
	}
	return v.Str
}

func (e *Engine) read(k state.Key, t code.Type) code.Value {
	v, err := e.heap.Get(k, t)
	if err != nil {
		throw(FaultLoad, "%v", err)
	}
	return v
}
