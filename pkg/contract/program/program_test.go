package program

import (
	"testing"

	"github.com/Czone-League/nuls/pkg/address"
	"github.com/Czone-League/nuls/pkg/contract/code"
	"github.com/Czone-League/nuls/pkg/contract/state"
	"github.com/Czone-League/nuls/pkg/contract/vm"
	"github.com/Czone-League/nuls/pkg/storage/store/ldb"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner = address.Address{0x0a}
	alice = address.Address{0x0b}
)

const token = "Token"

func tokenPackage(t *testing.T) []byte {
	cb := code.NewClassBuilder(token).
		Field("balances", code.Map).
		Field("totalSupply", code.Int).
		Field("owner", code.Addr)

	cb.Method(code.InitName, "()V").
		Load(0).Invoke(code.INVOKESPECIAL, code.ObjectClass, code.InitName, "()V").
		Load(0).Op(code.NEWMAP).PutField(token, "balances").
		Load(0).Invoke(code.INVOKESTATIC, vm.MsgClass, "sender", "()A").PutField(token, "owner").
		Op(code.RETURN)

	cb.Method("mint", "(AI)V").
		Invoke(code.INVOKESTATIC, vm.MsgClass, "sender", "()A").
		Load(0).GetField(token, "owner").Op(code.EQ).
		PushStr("only owner can mint").Op(code.REQUIRE).
		Load(0).GetField(token, "balances").Load(1).
		Load(0).GetField(token, "balances").Load(1).MGet(code.Int).
		Load(2).Op(code.ADD).Op(code.MPUT).
		Load(0).
		Load(0).GetField(token, "totalSupply").Load(2).Op(code.ADD).
		PutField(token, "totalSupply").
		Load(1).Load(2).Emit("Mint", 2).
		Op(code.RETURN)

	cb.Method("balanceOf", "(A)I").
		Load(0).GetField(token, "balances").Load(1).MGet(code.Int).
		Op(code.RETURNVALUE)

	cb.Method("transfer", "(AI)Z").
		Load(0).GetField(token, "balances").
		Invoke(code.INVOKESTATIC, vm.MsgClass, "sender", "()A").MGet(code.Int).Store(3).
		Load(3).Load(2).Op(code.GE).PushStr("insufficient balance").Op(code.REQUIRE).
		Load(0).GetField(token, "balances").
		Invoke(code.INVOKESTATIC, vm.MsgClass, "sender", "()A").
		Load(3).Load(2).Op(code.SUB).Op(code.MPUT).
		Load(0).GetField(token, "balances").Load(1).
		Load(0).GetField(token, "balances").Load(1).MGet(code.Int).
		Load(2).Op(code.ADD).Op(code.MPUT).
		Invoke(code.INVOKESTATIC, vm.MsgClass, "sender", "()A").Load(1).Load(2).Emit("Transfer", 3).
		Op(code.PUSH_TRUE).Op(code.RETURNVALUE)

	cb.Method("_authorizeStop", "(A)Z").
		Load(1).Load(0).GetField(token, "owner").Op(code.EQ).
		Op(code.RETURNVALUE)

	cb.Method("totalSupply", "()I").
		Load(0).GetField(token, "totalSupply").Op(code.RETURNVALUE)

	burn := cb.Method("burnForever", "()V")
	top := burn.NewLabel()
	burn.Load(0).PushInt(0).PutField(token, "totalSupply").
		Mark(top).Jump(code.JUMP, top)

	raw, err := code.NewPackage(token, cb.MustBuild()).Encode()
	require.NoError(t, err)
	return raw
}

func newExecutor(t *testing.T) *Executor {
	db, err := ldb.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	x, err := NewExecutor(state.NewDatabase(db, 0, nil), Config{})
	require.NoError(t, err)
	return x
}

// deploy commits a fresh Token contract on top of the empty state.
func deploy(t *testing.T, x *Executor) (address.Address, common.Hash) {
	top, err := x.Begin(state.EmptyRoot)
	require.NoError(t, err)
	tx, err := top.StartTracking()
	require.NoError(t, err)

	res, err := tx.Create(&ProgramCreate{Sender: owner, Nonce: 1, Price: 25, Code: tokenPackage(t)})
	require.NoError(t, err)
	require.True(t, res.Success, res.ErrorMessage)
	require.NoError(t, tx.Commit())
	require.NoError(t, top.Commit())

	root, err := top.Root()
	require.NoError(t, err)
	return res.ContractAddress, root
}

func call(t *testing.T, tr *Tracker, contract, sender address.Address, method string, args ...string) *ProgramResult {
	res, err := tr.Call(&ProgramCall{
		ContractAddress: contract,
		Sender:          sender,
		MethodName:      method,
		Args:            args,
	})
	require.NoError(t, err)
	return res
}

func TestTokenLifecycle(t *testing.T) {
	assert := assert.New(t)
	x := newExecutor(t)
	contract, root1 := deploy(t, x)
	assert.NotEqual(state.EmptyRoot, root1)
	assert.False(contract.IsZero())

	top, err := x.Begin(root1)
	require.NoError(t, err)
	res := call(t, top, contract, owner, "mint", owner.String(), "1000")
	require.True(t, res.Success, res.ErrorMessage)
	require.Len(t, res.Events, 1)
	assert.Equal("Mint", res.Events[0].Name)
	assert.Equal(contract, res.Events[0].Contract)
	assert.Equal(uint64(1000), res.Events[0].Args[1].Int.Uint64())
	assert.NotZero(res.Cost)
	require.NoError(t, top.Commit())
	root2, err := top.Root()
	require.NoError(t, err)
	assert.NotEqual(root1, root2)

	view, err := x.Begin(root2)
	require.NoError(t, err)
	res = call(t, view, contract, alice, "balanceOf", owner.String())
	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(uint64(1000), res.ReturnValue.Int.Uint64())

	res = call(t, view, contract, owner, "transfer", alice.String(), "400")
	require.True(t, res.Success, res.ErrorMessage)
	assert.True(res.ReturnValue.Bool)
	assert.Equal("Transfer", res.Events[0].Name)

	res = call(t, view, contract, alice, "balanceOf", alice.String())
	assert.Equal(uint64(400), res.ReturnValue.Int.Uint64())
	res = call(t, view, contract, alice, "balanceOf", owner.String())
	assert.Equal(uint64(600), res.ReturnValue.Int.Uint64())

	res = call(t, view, contract, alice, "transfer", owner.String(), "401")
	assert.False(res.Success)
	assert.Equal(vm.FaultLogic, res.ErrorKind)
	assert.Equal("insufficient balance", res.ErrorMessage)
	assert.Empty(res.Events)

	res = call(t, view, contract, alice, "mint", alice.String(), "1")
	assert.Equal(vm.FaultLogic, res.ErrorKind)

	// the older root still sees the pre-mint state
	old, err := x.Begin(root1)
	require.NoError(t, err)
	res = call(t, old, contract, alice, "balanceOf", owner.String())
	assert.True(res.Success)
	assert.True(res.ReturnValue.Int.IsZero())
	require.NoError(t, old.Discard())
	require.NoError(t, view.Discard())
}

func TestChildIsolation(t *testing.T) {
	assert := assert.New(t)
	x := newExecutor(t)
	contract, root := deploy(t, x)

	top, err := x.Begin(root)
	require.NoError(t, err)

	child, err := top.StartTracking()
	require.NoError(t, err)
	_, err = top.Call(&ProgramCall{ContractAddress: contract, Sender: owner, MethodName: "totalSupply"})
	assert.Equal(ErrChildOpen, err)
	_, err = top.StartTracking()
	assert.Equal(ErrChildOpen, err)
	assert.Equal(ErrChildOpen, top.Commit())

	res := call(t, child, contract, owner, "mint", owner.String(), "5")
	require.True(t, res.Success, res.ErrorMessage)
	res = call(t, child, contract, owner, "totalSupply")
	assert.Equal(uint64(5), res.ReturnValue.Int.Uint64())

	require.NoError(t, child.Discard())
	assert.Equal(Discarded, child.Status())
	assert.NoError(child.Discard())
	_, err = child.Root()
	assert.Equal(ErrNotOpen, err)

	res = call(t, top, contract, owner, "totalSupply")
	assert.True(res.ReturnValue.Int.IsZero())
	r, err := top.Root()
	require.NoError(t, err)
	assert.Equal(root, r)

	child, err = top.StartTracking()
	require.NoError(t, err)
	call(t, child, contract, owner, "mint", owner.String(), "7")
	childRoot, err := child.Root()
	require.NoError(t, err)
	require.NoError(t, child.Commit())
	assert.Equal(ErrNotOpen, child.Commit())
	assert.Equal(ErrNotOpen, child.Discard())
	committed, err := child.Root()
	require.NoError(t, err)
	assert.Equal(childRoot, committed)

	r, err = top.Root()
	require.NoError(t, err)
	assert.Equal(childRoot, r)
	res = call(t, top, contract, owner, "totalSupply")
	assert.Equal(uint64(7), res.ReturnValue.Int.Uint64())
}

func TestDiscardCascades(t *testing.T) {
	assert := assert.New(t)
	x := newExecutor(t)
	_, root := deploy(t, x)

	top, err := x.Begin(root)
	require.NoError(t, err)
	child, err := top.StartTracking()
	require.NoError(t, err)
	grand, err := child.StartTracking()
	require.NoError(t, err)

	require.NoError(t, top.Discard())
	assert.Equal(Discarded, child.Status())
	assert.Equal(Discarded, grand.Status())
	_, err = grand.Call(&ProgramCall{})
	assert.Equal(ErrNotOpen, err)
}

func TestDeterministicRoots(t *testing.T) {
	assert := assert.New(t)
	x := newExecutor(t)
	contract, root := deploy(t, x)

	roots := make([]common.Hash, 2)
	for i := range roots {
		tr, err := x.Begin(root)
		require.NoError(t, err)
		call(t, tr, contract, owner, "mint", alice.String(), "9")
		call(t, tr, contract, alice, "transfer", owner.String(), "4")
		roots[i], err = tr.Root()
		require.NoError(t, err)
		require.NoError(t, tr.Discard())
	}
	assert.Equal(roots[0], roots[1])

	other := newExecutor(t)
	_, otherRoot := deploy(t, other)
	assert.Equal(root, otherRoot)
}

func TestDiscardedChildKeepsRegistryHarmless(t *testing.T) {
	assert := assert.New(t)
	x := newExecutor(t)

	top, err := x.Begin(state.EmptyRoot)
	require.NoError(t, err)
	child, err := top.StartTracking()
	require.NoError(t, err)
	res, err := child.Create(&ProgramCreate{Sender: owner, Nonce: 1, Price: 25, Code: tokenPackage(t)})
	require.NoError(t, err)
	require.True(t, res.Success, res.ErrorMessage)
	require.NoError(t, child.Discard())

	// the classes the child registered resolve exactly as a fresh load would
	again, err := top.StartTracking()
	require.NoError(t, err)
	res, err = again.Create(&ProgramCreate{Sender: owner, Nonce: 1, Price: 25, Code: tokenPackage(t)})
	require.NoError(t, err)
	require.True(t, res.Success, res.ErrorMessage)
	require.NoError(t, again.Commit())
	require.NoError(t, top.Commit())
	root, err := top.Root()
	require.NoError(t, err)

	_, fresh := deploy(t, newExecutor(t))
	assert.Equal(fresh, root)
}

func TestExhaustionLeavesNoTrace(t *testing.T) {
	assert := assert.New(t)
	x := newExecutor(t)
	contract, root := deploy(t, x)

	tr, err := x.Begin(root)
	require.NoError(t, err)
	call(t, tr, contract, owner, "mint", owner.String(), "50")
	before, err := tr.Root()
	require.NoError(t, err)

	res, err := tr.Call(&ProgramCall{
		ContractAddress: contract,
		Sender:          owner,
		ResourceLimit:   5000,
		MethodName:      "burnForever",
	})
	require.NoError(t, err)
	assert.False(res.Success)
	assert.Equal(vm.FaultExhausted, res.ErrorKind)
	assert.Equal(uint64(5000), res.Cost)

	after, err := tr.Root()
	require.NoError(t, err)
	assert.Equal(before, after)
	res = call(t, tr, contract, owner, "totalSupply")
	assert.Equal(uint64(50), res.ReturnValue.Int.Uint64())
}

func TestStop(t *testing.T) {
	assert := assert.New(t)
	x := newExecutor(t)
	contract, root := deploy(t, x)

	tr, err := x.Begin(root)
	require.NoError(t, err)

	res, err := tr.Stop(&ProgramStop{ContractAddress: contract, Sender: alice})
	require.NoError(t, err)
	assert.False(res.Success)
	assert.Equal(vm.FaultLogic, res.ErrorKind)
	assert.True(call(t, tr, contract, alice, "totalSupply").Success)

	res, err = tr.Stop(&ProgramStop{ContractAddress: contract, Sender: owner})
	require.NoError(t, err)
	require.True(t, res.Success, res.ErrorMessage)

	res = call(t, tr, contract, alice, "totalSupply")
	assert.False(res.Success)
	assert.Equal(vm.FaultLogic, res.ErrorKind)
	assert.Contains(res.ErrorMessage, "stopped")

	res, err = tr.Stop(&ProgramStop{ContractAddress: contract, Sender: owner})
	require.NoError(t, err)
	assert.False(res.Success)
}

func TestCallFailures(t *testing.T) {
	assert := assert.New(t)
	x := newExecutor(t)
	contract, root := deploy(t, x)

	tr, err := x.Begin(root)
	require.NoError(t, err)

	res := call(t, tr, address.Address{0xee}, owner, "totalSupply")
	assert.Equal(vm.FaultLoad, res.ErrorKind)

	res = call(t, tr, contract, owner, "nope")
	assert.Equal(vm.FaultResolution, res.ErrorKind)

	res = call(t, tr, contract, owner, code.InitName)
	assert.Equal(vm.FaultResolution, res.ErrorKind)

	res = call(t, tr, contract, owner, "mint", "not-an-address", "1")
	assert.Equal(vm.FaultLogic, res.ErrorKind)

	res, err = tr.Call(&ProgramCall{
		ContractAddress: contract,
		Sender:          owner,
		MethodName:      "balanceOf",
		MethodDesc:      "(A)I",
		Args:            []string{owner.String()},
	})
	require.NoError(t, err)
	assert.True(res.Success, res.ErrorMessage)

	r, err := tr.Root()
	require.NoError(t, err)
	assert.Equal(root, r)
}

func TestCreateFailures(t *testing.T) {
	assert := assert.New(t)
	x := newExecutor(t)
	contract, root := deploy(t, x)

	tr, err := x.Begin(root)
	require.NoError(t, err)

	res, err := tr.Create(&ProgramCreate{ContractAddress: contract, Sender: owner, Code: tokenPackage(t)})
	require.NoError(t, err)
	assert.False(res.Success)
	assert.Equal(vm.FaultLogic, res.ErrorKind)

	res, err = tr.Create(&ProgramCreate{Sender: owner, Nonce: 2, Code: []byte("garbage")})
	require.NoError(t, err)
	assert.Equal(vm.FaultLoad, res.ErrorKind)

	res, err = tr.Create(&ProgramCreate{Sender: owner, Nonce: 3, Code: tokenPackage(t), Args: []string{"1"}})
	require.NoError(t, err)
	assert.Equal(vm.FaultResolution, res.ErrorKind)

	r, err := tr.Root()
	require.NoError(t, err)
	assert.Equal(root, r)

	res, err = tr.Create(&ProgramCreate{Sender: owner, Nonce: 4, Code: tokenPackage(t)})
	require.NoError(t, err)
	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(address.NewContractAddress(owner, 4, code.HashBytes(tokenPackage(t))), res.ContractAddress)
	assert.NotEqual(contract, res.ContractAddress)
}

func TestCreateRejectsMalformedCode(t *testing.T) {
	assert := assert.New(t)
	x := newExecutor(t)

	tr, err := x.Begin(state.EmptyRoot)
	require.NoError(t, err)

	a := code.NewClassBuilder("A").Extends("B")
	a.Method(code.InitName, "()V").Op(code.RETURN)
	b := code.NewClassBuilder("B").Extends("A")
	b.Method("ping", "()I").PushInt(1).Op(code.RETURNVALUE)
	cyclic, err := code.NewPackage("A", a.MustBuild(), b.MustBuild()).Encode()
	require.NoError(t, err)

	nilClass, err := (&code.Package{Main: "A", Classes: []*code.Class{nil}}).Encode()
	require.NoError(t, err)

	nilMethod, err := (&code.Package{Main: "A", Classes: []*code.Class{{Name: "A", Methods: []*code.Method{nil}}}}).Encode()
	require.NoError(t, err)

	for i, raw := range [][]byte{cyclic, nilClass, nilMethod} {
		var res *ProgramResult
		assert.NotPanics(func() {
			res, err = tr.Create(&ProgramCreate{Sender: owner, Nonce: uint64(i), Code: raw})
		})
		require.NoError(t, err)
		assert.False(res.Success)
		assert.Equal(vm.FaultLoad, res.ErrorKind)
	}

	r, err := tr.Root()
	require.NoError(t, err)
	assert.Equal(state.EmptyRoot, r)
}

func TestMethodListing(t *testing.T) {
	assert := assert.New(t)
	x := newExecutor(t)
	contract, root := deploy(t, x)

	tr, err := x.Begin(root)
	require.NoError(t, err)

	methods, err := tr.Method(contract)
	require.NoError(t, err)
	byName := make(map[string]*ProgramMethod)
	for _, m := range methods {
		byName[m.Name] = m
	}
	require.Contains(t, byName, "transfer")
	assert.Equal([]string{"A", "I"}, byName["transfer"].Args)
	assert.Equal("Z", byName["transfer"].ReturnType)
	assert.Equal(token, byName["transfer"].Owner)
	assert.Contains(byName, "balanceOf")
	assert.NotContains(byName, code.ClinitName)

	_, err = tr.Method(alice)
	assert.Equal(ErrNoContract, err)
}

func TestUnknownRoot(t *testing.T) {
	x := newExecutor(t)
	_, err := x.Begin(common.HexToHash("0x1234"))
	assert.ErrorIs(t, err, ErrUnknownRoot)
}
