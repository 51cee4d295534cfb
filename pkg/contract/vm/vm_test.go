package vm

import (
	"testing"

	"github.com/Czone-League/nuls/pkg/address"
	"github.com/Czone-League/nuls/pkg/contract/code"
	"github.com/Czone-League/nuls/pkg/contract/state"
	"github.com/Czone-League/nuls/pkg/storage/store/ldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testContract = address.Address{0xc0, 0x01}
	testSender   = address.Address{0x5e, 0x4d}
)

type fixture struct {
	t      *testing.T
	arena  *state.Arena
	handle state.Handle
	reg    *Registry
	cfg    *Config
}

func newFixture(t *testing.T, classes ...*code.Class) *fixture {
	db, err := ldb.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	arena := state.NewArena(state.NewDatabase(db, 0, nil))
	h, err := arena.Open(state.EmptyRoot)
	require.NoError(t, err)

	raw, err := code.NewPackage(classes[0].Name, classes...).Encode()
	require.NoError(t, err)
	arena.Heap(h).Set(state.MetaKey(testContract, state.CodeField), code.StringValue(string(raw)))

	return &fixture{t: t, arena: arena, handle: h, reg: NewRegistry(nil), cfg: DefaultConfig()}
}

func (fx *fixture) engineAt(h state.Handle, limit uint64) *Engine {
	heap := fx.arena.Heap(h)
	area, err := NewMethodArea(fx.reg, testContract, heap)
	require.NoError(fx.t, err)
	return NewEngine(fx.cfg, area, heap, Context{
		Contract: testContract,
		Sender:   testSender,
		Price:    25,
		Number:   7,
		Limit:    limit,
	})
}

func (fx *fixture) engine() *Engine {
	return fx.engineAt(fx.handle, 1000000)
}

func hierarchy() []*code.Class {
	j := code.NewInterfaceBuilder("J")
	j.Method("deep", "()I").PushInt(3).Op(code.RETURNVALUE)

	i := code.NewInterfaceBuilder("I", "J")
	i.Method("hello", "()I").PushInt(7).Op(code.RETURNVALUE)

	a := code.NewClassBuilder("A")
	a.Method("which", "()S").PushStr("A").Op(code.RETURNVALUE)
	a.StaticMethod("callWhich", "(LA;)S").
		Load(0).Invoke(code.INVOKEVIRTUAL, "A", "which", "()S").Op(code.RETURNVALUE)

	b := code.NewClassBuilder("B").Extends("A").AbstractMethod("hello", "()I")
	b.Method("which", "()S").PushStr("B").Op(code.RETURNVALUE)

	c := code.NewClassBuilder("C").Extends("B").Implements("I")
	c.Method("which", "()S").PushStr("C").Op(code.RETURNVALUE)

	return []*code.Class{c.MustBuild(), b.MustBuild(), a.MustBuild(), i.MustBuild(), j.MustBuild()}
}

func TestResolutionOrder(t *testing.T) {
	assert := assert.New(t)
	fx := newFixture(t, hierarchy()...)
	area := fx.engine().Area()

	assert.Equal("C", area.LoadMethod("C", "which", "()S").Owner)
	assert.Equal("B", area.LoadMethod("B", "which", "()S").Owner)
	assert.Equal("I", area.LoadMethod("C", "hello", "()I").Owner)
	assert.Equal("J", area.LoadMethod("C", "deep", "()I").Owner)
	assert.Nil(area.LoadMethod("C", "nope", "()V"))
	assert.Nil(area.LoadMethod("B", "hello", "()I"))

	assert.Same(area.LoadMethod("C", "hello", "()I"), area.LoadMethod("C", "hello", "()I"))

	assert.Equal("I", area.FindMethod("C", "hello", 0).Owner)
	assert.Nil(area.FindMethod("C", "hello", 1))

	methods, err := area.Methods("C")
	require.NoError(t, err)
	var names []string
	for _, r := range methods {
		names = append(names, r.Owner+"."+r.Method.String())
	}
	assert.Equal([]string{"C.which()S", "A.callWhich(LA;)S", "I.hello()I", "J.deep()I"}, names)
}

func TestVirtualDispatch(t *testing.T) {
	assert := assert.New(t)
	fx := newFixture(t, hierarchy()...)
	e := fx.engine()

	var obj uint64
	res := e.Run(func() code.Value {
		obj = e.Alloc("C")
		return code.Null()
	})
	require.True(t, res.Success)
	assert.Equal(ContractObject, obj)

	res = e.Call("A", "callWhich", "(LA;)S", code.Null(), []code.Value{code.RefValue(obj)})
	assert.True(res.Success, res.ErrorMessage)
	assert.Equal("C", res.ReturnValue.Str)

	res = e.Call("C", "hello", "()I", code.RefValue(obj), nil)
	assert.True(res.Success, res.ErrorMessage)
	assert.Equal(uint64(7), res.ReturnValue.Int.Uint64())

	res = e.Call("C", "hello", "()I", code.Null(), nil)
	assert.Equal(FaultLogic, res.ErrorKind)
}

func counterClass() *code.Class {
	cb := code.NewClassBuilder("Cnt").
		StaticField("inits", code.Int, false).
		StaticField("LIMIT", code.Int, true)
	cb.StaticMethod(code.ClinitName, code.ClinitDesc).
		GetStatic("Cnt", "inits").PushInt(1).Op(code.ADD).PutStatic("Cnt", "inits").
		PushInt(5).PutStatic("Cnt", "LIMIT").
		Op(code.RETURN)
	cb.StaticMethod("get", "()I").GetStatic("Cnt", "inits").Op(code.RETURNVALUE)
	cb.StaticMethod("limit", "()I").GetStatic("Cnt", "LIMIT").Op(code.RETURNVALUE)
	cb.StaticMethod("setLimit", "()V").PushInt(9).PutStatic("Cnt", "LIMIT").Op(code.RETURN)
	return cb.MustBuild()
}

func TestStaticInitOnce(t *testing.T) {
	assert := assert.New(t)
	fx := newFixture(t, counterClass())
	e := fx.engine()

	var first, second *code.Class
	res := e.Run(func() code.Value {
		first = e.Area().LoadClass(e, "Cnt")
		second = e.Area().LoadClass(e, "Cnt")
		return code.Null()
	})
	assert.True(res.Success, res.ErrorMessage)
	assert.Same(first, second)

	res = e.Call("Cnt", "get", "()I", code.Null(), nil)
	assert.Equal(uint64(1), res.ReturnValue.Int.Uint64())

	e = fx.engine()
	res = e.Call("Cnt", "get", "()I", code.Null(), nil)
	assert.Equal(uint64(1), res.ReturnValue.Int.Uint64())
	res = e.Call("Cnt", "limit", "()I", code.Null(), nil)
	assert.Equal(uint64(5), res.ReturnValue.Int.Uint64())

	res = e.Call("Cnt", "setLimit", "()V", code.Null(), nil)
	assert.False(res.Success)
	assert.Equal(FaultLogic, res.ErrorKind)
}

func TestStaticInitRollsBack(t *testing.T) {
	assert := assert.New(t)
	fx := newFixture(t, counterClass())
	before := fx.arena.Hash(fx.handle)

	child := fx.arena.Child(fx.handle)
	e := fx.engineAt(child, 1000000)
	res := e.Call("Cnt", "get", "()I", code.Null(), nil)
	assert.True(res.Success, res.ErrorMessage)
	assert.True(e.Area().Initialized("Cnt"))
	fx.arena.Discard(child)

	assert.False(fx.engine().Area().Initialized("Cnt"))
	assert.Equal(before, fx.arena.Hash(fx.handle))
}

func labClasses() []*code.Class {
	cb := code.NewClassBuilder("Lab")
	spin := cb.StaticMethod("spin", "()V")
	top := spin.NewLabel()
	spin.Mark(top).Jump(code.JUMP, top)

	cb.StaticMethod("rec", "()V").Invoke(code.INVOKESTATIC, "Lab", "rec", "()V").Op(code.RETURN)
	cb.StaticMethod("under", "()I").PushInt(1).PushInt(2).Op(code.SUB).Op(code.RETURNVALUE)
	cb.StaticMethod("div", "()I").PushInt(1).PushInt(0).Op(code.DIV).Op(code.RETURNVALUE)
	cb.StaticMethod("big", "()I").
		PushWord("115792089237316195423570985008687907853269984665640564039457584007913129639935").
		PushInt(1).Op(code.ADD).Op(code.RETURNVALUE)
	cb.StaticMethod("fire", "(I)V").Load(0).PushStr("x").Emit("Fired", 2).Op(code.RETURN)
	cb.StaticMethod("who", "()A").Invoke(code.INVOKESTATIC, "nvm/Msg", "sender", "()A").Op(code.RETURNVALUE)
	cb.StaticMethod("block", "()I").Invoke(code.INVOKESTATIC, "nvm/Block", "number", "()I").Op(code.RETURNVALUE)
	cb.StaticMethod("check", "(Z)V").Load(0).PushStr("denied").
		Invoke(code.INVOKESTATIC, "nvm/Utils", "require", "(ZS)V").Op(code.RETURN)
	cb.StaticMethod("fail", "()V").PushStr("nope").Op(code.REVERT)
	cb.StaticMethod("boxed", "()I").
		New("Box").Op(code.DUP).PushInt(42).PutField("Box", "v").
		GetField("Box", "v").Op(code.RETURNVALUE)
	cb.StaticMethod("mapGet", "()I").
		Op(code.NEWMAP).Store(0).
		Load(0).PushStr("k").PushInt(5).Op(code.MPUT).
		Load(0).PushStr("k").MGet(code.Int).Op(code.RETURNVALUE)
	cb.StaticMethod("mapDel", "()Z").
		Op(code.NEWMAP).Store(0).
		Load(0).PushStr("k").PushInt(5).Op(code.MPUT).
		Load(0).PushStr("k").Op(code.MDEL).
		Load(0).PushStr("k").Op(code.MHAS).Op(code.RETURNVALUE)

	br := cb.StaticMethod("small", "(I)S")
	big := br.NewLabel()
	br.Load(0).PushInt(10).Op(code.LT).Jump(code.JUMP_IF_FALSE, big).
		PushStr("small").Op(code.RETURNVALUE).
		Mark(big).PushStr("big").Op(code.RETURNVALUE)

	grow := cb.StaticMethod("grow", "(I)S")
	loop, done := grow.NewLabel(), grow.NewLabel()
	grow.PushStr("x").Store(1).
		Mark(loop).PushInt(0).Load(0).Op(code.LT).Jump(code.JUMP_IF_FALSE, done).
		Load(1).Op(code.DUP).Op(code.CONCAT).Store(1).
		Load(0).PushInt(1).Op(code.SUB).Store(0).
		Jump(code.JUMP, loop).
		Mark(done).Load(1).Op(code.RETURNVALUE)
	cb.StaticMethod("join", "(SS)S").Load(0).Load(1).
		Invoke(code.INVOKESTATIC, "nvm/Utils", "concat", "(SS)S").Op(code.RETURNVALUE)

	box := code.NewClassBuilder("Box").Field("v", code.Int)
	return []*code.Class{cb.MustBuild(), box.MustBuild()}
}

func TestExhaustion(t *testing.T) {
	assert := assert.New(t)
	fx := newFixture(t, labClasses()...)

	res := fx.engineAt(fx.handle, 1000).Call("Lab", "spin", "()V", code.Null(), nil)
	assert.False(res.Success)
	assert.Equal(FaultExhausted, res.ErrorKind)
	assert.Equal(uint64(1000), res.Cost)
	before := fx.arena.Hash(fx.handle)

	// the caller discards the invocation snapshot, so only the cost is lost
	child := fx.arena.Child(fx.handle)
	res = fx.engineAt(child, 1000).Call("Lab", "spin", "()V", code.Null(), nil)
	assert.Equal(FaultExhausted, res.ErrorKind)
	fx.arena.Discard(child)
	assert.Equal(before, fx.arena.Hash(fx.handle))
}

func TestStringGrowth(t *testing.T) {
	assert := assert.New(t)
	fx := newFixture(t, labClasses()...)

	small := fx.engine().Call("Lab", "grow", "(I)S", code.Null(), []code.Value{code.Uint64Value(4)})
	require.True(t, small.Success, small.ErrorMessage)
	assert.Len(small.ReturnValue.Str, 16)
	larger := fx.engine().Call("Lab", "grow", "(I)S", code.Null(), []code.Value{code.Uint64Value(5)})
	require.True(t, larger.Success, larger.ErrorMessage)
	// one more doubling pays for the 32 bytes it builds
	assert.GreaterOrEqual(larger.Cost-small.Cost, uint64(32*CostByte))

	res := fx.engine().Call("Lab", "grow", "(I)S", code.Null(), []code.Value{code.Uint64Value(24)})
	assert.False(res.Success)
	assert.Equal(FaultLogic, res.ErrorKind)
	assert.Contains(res.ErrorMessage, "byte limit")

	fx.cfg.MaxStringSize = 0
	res = fx.engineAt(fx.handle, 100000).Call("Lab", "grow", "(I)S", code.Null(), []code.Value{code.Uint64Value(24)})
	assert.Equal(FaultExhausted, res.ErrorKind)
	assert.Equal(uint64(100000), res.Cost)

	fx.cfg.MaxStringSize = 8
	res = fx.engine().Call("Lab", "join", "(SS)S", code.Null(), []code.Value{code.StringValue("abcd"), code.StringValue("efgh")})
	assert.True(res.Success, res.ErrorMessage)
	res = fx.engine().Call("Lab", "join", "(SS)S", code.Null(), []code.Value{code.StringValue("abcd"), code.StringValue("efghi")})
	assert.Equal(FaultLogic, res.ErrorKind)
}

func TestCallDepth(t *testing.T) {
	assert := assert.New(t)
	fx := newFixture(t, labClasses()...)
	fx.cfg.MaxCallDepth = 8

	res := fx.engine().Call("Lab", "rec", "()V", code.Null(), nil)
	assert.False(res.Success)
	assert.Equal(FaultDepth, res.ErrorKind)
}

func TestArithmeticFaults(t *testing.T) {
	assert := assert.New(t)
	fx := newFixture(t, labClasses()...)

	for _, name := range []string{"under", "div", "big"} {
		res := fx.engine().Call("Lab", name, "()I", code.Null(), nil)
		assert.False(res.Success, name)
		assert.Equal(FaultLogic, res.ErrorKind, name)
	}
}

func TestEventsAndNatives(t *testing.T) {
	assert := assert.New(t)
	fx := newFixture(t, labClasses()...)

	res := fx.engine().Call("Lab", "fire", "", code.Null(), []code.Value{code.Uint64Value(1)})
	assert.True(res.Success, res.ErrorMessage)
	require.Len(t, res.Events, 1)
	assert.Equal("Fired", res.Events[0].Name)
	assert.Equal(testContract, res.Events[0].Contract)
	assert.True(res.Events[0].Args[0].Equal(code.Uint64Value(1)))
	assert.Equal("x", res.Events[0].Args[1].Str)
	assert.Equal(uint64(1+1+len("x")*CostByte+CostEmit+2*CostEmitArg+1+CostLoadClass), res.Cost)

	res = fx.engine().Call("Lab", "fire", "(I)V", code.Null(), []code.Value{code.StringValue("1")})
	assert.Equal(FaultLogic, res.ErrorKind)

	res = fx.engine().Call("Lab", "who", "()A", code.Null(), nil)
	assert.Equal(testSender, res.ReturnValue.Addr)

	res = fx.engine().Call("Lab", "block", "()I", code.Null(), nil)
	assert.Equal(uint64(7), res.ReturnValue.Int.Uint64())

	res = fx.engine().Call("Lab", "check", "(Z)V", code.Null(), []code.Value{code.BoolValue(true)})
	assert.True(res.Success, res.ErrorMessage)

	res = fx.engine().Call("Lab", "check", "(Z)V", code.Null(), []code.Value{code.BoolValue(false)})
	assert.Equal(FaultLogic, res.ErrorKind)
	assert.Equal("denied", res.ErrorMessage)

	res = fx.engine().Call("Lab", "fail", "()V", code.Null(), nil)
	assert.Equal("nope", res.ErrorMessage)
	assert.Empty(res.Events)
}

func TestObjectsAndMaps(t *testing.T) {
	assert := assert.New(t)
	fx := newFixture(t, labClasses()...)

	res := fx.engine().Call("Lab", "boxed", "()I", code.Null(), nil)
	assert.True(res.Success, res.ErrorMessage)
	assert.Equal(uint64(42), res.ReturnValue.Int.Uint64())

	res = fx.engine().Call("Lab", "mapGet", "()I", code.Null(), nil)
	assert.True(res.Success, res.ErrorMessage)
	assert.Equal(uint64(5), res.ReturnValue.Int.Uint64())

	res = fx.engine().Call("Lab", "mapDel", "()Z", code.Null(), nil)
	assert.True(res.Success, res.ErrorMessage)
	assert.False(res.ReturnValue.Bool)

	res = fx.engine().Call("Lab", "small", "(I)S", code.Null(), []code.Value{code.Uint64Value(3)})
	assert.Equal("small", res.ReturnValue.Str)
	res = fx.engine().Call("Lab", "small", "(I)S", code.Null(), []code.Value{code.Uint64Value(30)})
	assert.Equal("big", res.ReturnValue.Str)
}

func TestLoadAndResolutionFaults(t *testing.T) {
	assert := assert.New(t)
	fx := newFixture(t, labClasses()...)

	res := fx.engine().Call("Nope", "x", "()V", code.Null(), nil)
	assert.Equal(FaultLoad, res.ErrorKind)

	res = fx.engine().Call("Lab", "nope", "()V", code.Null(), nil)
	assert.Equal(FaultResolution, res.ErrorKind)

	_, err := NewMethodArea(fx.reg, testSender, fx.arena.Heap(fx.handle))
	assert.Error(err)
}

func TestCyclicDefinitionsTerminate(t *testing.T) {
	assert := assert.New(t)
	fx := newFixture(t, labClasses()...)
	e := fx.engine()
	area := e.Area()

	// definitions that bypassed package validation
	h := area.CodeHash()
	for _, c := range []*code.Class{
		code.NewClassBuilder("Loop1").Extends("Loop2").MustBuild(),
		code.NewClassBuilder("Loop2").Extends("Loop1").MustBuild(),
		code.NewInterfaceBuilder("R1", "R2").MustBuild(),
		code.NewInterfaceBuilder("R2", "R1").MustBuild(),
		code.NewClassBuilder("Ring").Implements("R1").MustBuild(),
	} {
		fx.reg.Register(QualifiedName(h, c.Name), c)
	}

	res := e.Run(func() code.Value {
		area.LoadMethod("Loop1", "missing", "()V")
		return code.Null()
	})
	assert.Equal(FaultLoad, res.ErrorKind)

	res = e.Run(func() code.Value {
		area.Field("Loop2", "missing")
		return code.Null()
	})
	assert.Equal(FaultLoad, res.ErrorKind)

	_, err := area.Methods("Loop1")
	assert.Error(err)

	assert.False(area.IsAssignable("Loop1", "Lab"))
	assert.True(area.IsAssignable("Loop1", "Loop2"))
	assert.True(area.IsAssignable("Ring", "R2"))
	assert.False(area.IsAssignable("Ring", "Lab"))
	assert.Nil(area.FindMethod("Ring", "missing", 0))

	methods, err := area.Methods("Ring")
	assert.NoError(err)
	assert.Empty(methods)
}

func TestRegistrySharesSystemClasses(t *testing.T) {
	assert := assert.New(t)

	r1, r2 := NewRegistry(nil), NewRegistry(nil)
	o1, ok := r1.Lookup(code.ObjectClass)
	assert.True(ok)
	o2, _ := r2.Lookup(code.ObjectClass)
	assert.Same(o1, o2)
	assert.Equal([]string{code.ObjectClass, MsgClass, BlockClass, UtilsClass}, r1.Names())

	c := code.NewClassBuilder("X").MustBuild()
	assert.Same(c, r1.Register("h/X", c))
	assert.Same(c, r1.Register("h/X", code.NewClassBuilder("X").MustBuild()))
}
