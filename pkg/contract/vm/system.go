package vm

import (
	"github.com/Czone-League/nuls/pkg/contract/code"
)

const (
	MsgClass   = "nvm/Msg"
	BlockClass = "nvm/Block"
	UtilsClass = "nvm/Utils"
)

// NativeFunc implements a native method. Receiver, if any, is args[0].
type NativeFunc func(e *Engine, args []code.Value) code.Value

var (
	systemClasses []*code.Class
	natives       = make(map[string]NativeFunc)
)

func nativeKey(class, name, desc string) string {
	return class + "." + name + desc
}

func init() {
	object := code.NewClassBuilder(code.ObjectClass).
		Extends("").
		NativeMethod(code.InitName, "()V", false)
	msg := code.NewClassBuilder(MsgClass).
		NativeMethod("sender", "()A", true).
		NativeMethod("address", "()A", true).
		NativeMethod("price", "()I", true)
	block := code.NewClassBuilder(BlockClass).
		NativeMethod("number", "()I", true)
	utils := code.NewClassBuilder(UtilsClass).
		NativeMethod("revert", "(S)V", true).
		NativeMethod("require", "(ZS)V", true).
		NativeMethod("concat", "(SS)S", true).
		NativeMethod("toString", "(I)S", true)
	for _, b := range []*code.ClassBuilder{object, msg, block, utils} {
		systemClasses = append(systemClasses, b.MustBuild())
	}

	natives[nativeKey(code.ObjectClass, code.InitName, "()V")] = func(e *Engine, args []code.Value) code.Value {
		return code.Null()
	}
	natives[nativeKey(MsgClass, "sender", "()A")] = func(e *Engine, args []code.Value) code.Value {
		return code.AddressValue(e.ctx.Sender)
	}
	natives[nativeKey(MsgClass, "address", "()A")] = func(e *Engine, args []code.Value) code.Value {
		return code.AddressValue(e.ctx.Contract)
	}
	natives[nativeKey(MsgClass, "price", "()I")] = func(e *Engine, args []code.Value) code.Value {
		return code.Uint64Value(e.ctx.Price)
	}
	natives[nativeKey(BlockClass, "number", "()I")] = func(e *Engine, args []code.Value) code.Value {
		return code.Uint64Value(e.ctx.Number)
	}
	natives[nativeKey(UtilsClass, "revert", "(S)V")] = func(e *Engine, args []code.Value) code.Value {
		throw(FaultLogic, "%s", args[0].Str)
		return code.Null()
	}
	natives[nativeKey(UtilsClass, "require", "(ZS)V")] = func(e *Engine, args []code.Value) code.Value {
		if !args[0].Bool {
			throw(FaultLogic, "%s", args[1].Str)
		}
		return code.Null()
	}
	natives[nativeKey(UtilsClass, "concat", "(SS)S")] = func(e *Engine, args []code.Value) code.Value {
		e.chargeString(len(args[0].Str) + len(args[1].Str))
		return code.StringValue(args[0].Str + args[1].Str)
	}
	natives[nativeKey(UtilsClass, "toString", "(I)S")] = func(e *Engine, args []code.Value) code.Value {
		s := args[0].Int.Dec()
		e.chargeString(len(s))
		return code.StringValue(s)
	}
}
