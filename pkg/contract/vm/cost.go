package vm

import (
	"github.com/Czone-League/nuls/pkg/contract/code"
	"github.com/Czone-League/nuls/pkg/util/math"
)

const (
	CostBase      = 1
	CostRead      = 20
	CostWrite     = 50
	CostAlloc     = 30
	CostInvoke    = 10
	CostEmit      = 10
	CostEmitArg   = 2
	CostLoadClass = 100
	// CostByte is charged per byte of every string a contract creates or
	// stores.
	CostByte = 1
)

var opCost [256]uint64

func init() {
	for i := range opCost {
		opCost[i] = CostBase
	}
	for _, op := range []code.Opcode{code.GETSTATIC, code.GETFIELD, code.MGET, code.MHAS} {
		opCost[op] = CostRead
	}
	for _, op := range []code.Opcode{code.PUTSTATIC, code.PUTFIELD, code.MPUT, code.MDEL} {
		opCost[op] = CostWrite
	}
	for _, op := range []code.Opcode{code.NEW, code.NEWMAP} {
		opCost[op] = CostAlloc
	}
	for _, op := range []code.Opcode{code.INVOKESTATIC, code.INVOKEVIRTUAL, code.INVOKESPECIAL} {
		opCost[op] = CostInvoke
	}
	opCost[code.EMIT] = CostEmit
}

// chargeString prices a string of n bytes before it is built, faulting
// when it would exceed the configured maximum.
func (e *Engine) chargeString(n int) {
	if max := e.cfg.MaxStringSize; max > 0 && n > max {
		throw(FaultLogic, "string of %d bytes exceeds the %d byte limit", n, max)
	}
	e.meter.charge(uint64(n) * CostByte)
}

// chargeStored prices the string payload of a value written to the heap.
func (e *Engine) chargeStored(v code.Value) {
	if v.Kind == code.KindString {
		e.meter.charge(uint64(len(v.Str)) * CostByte)
	}
}

// meter counts consumed cost against a fixed limit.
type meter struct {
	used  uint64
	limit uint64
}

func (m *meter) charge(c uint64) {
	used, err := math.AddUint64Overflow(m.used, c)
	if err != nil || used > m.limit {
		m.used = m.limit
		throw(FaultExhausted, "resource limit %d exceeded", m.limit)
	}
	m.used = used
}
