package vm

import (
	"github.com/Czone-League/nuls/pkg/contract/code"
	"github.com/Czone-League/nuls/pkg/contract/state"
	"github.com/holiman/uint256"
)

// loop runs frames until the stack shrinks back to base and returns the
// value left by the outermost returning frame.
func (e *Engine) loop(base int) code.Value {
	for {
		f := e.frames[len(e.frames)-1]
		body := f.res.Method.Code
		if f.pc >= len(body) {
			throw(FaultLogic, "%s: fell off the end of the method", f)
		}
		in := body[f.pc]
		e.meter.charge(opCost[in.Op])
		f.pc++

		switch in.Op {
		case code.NOP:

		case code.PUSH_INT:
			i, err := uint256.FromDecimal(in.Name)
			if err != nil {
				throw(FaultLogic, "%s: bad literal %q", f, in.Name)
			}
			e.pushValue(f, code.IntValue(i))
		case code.PUSH_STR:
			e.chargeString(len(in.Name))
			e.pushValue(f, code.StringValue(in.Name))
		case code.PUSH_TRUE:
			e.pushValue(f, code.BoolValue(true))
		case code.PUSH_FALSE:
			e.pushValue(f, code.BoolValue(false))
		case code.PUSH_NULL:
			e.pushValue(f, code.Null())

		case code.LOAD:
			e.pushValue(f, f.locals[in.Arg])
		case code.STORE:
			f.locals[in.Arg] = f.pop()
		case code.POP:
			f.pop()
		case code.DUP:
			v := f.pop()
			e.pushValue(f, v)
			e.pushValue(f, v)
		case code.SWAP:
			b, a := f.pop(), f.pop()
			e.pushValue(f, b)
			e.pushValue(f, a)

		case code.ADD, code.SUB, code.MUL, code.DIV, code.MOD:
			e.pushValue(f, code.IntValue(arith(f, in.Op)))

		case code.EQ, code.NE:
			b, a := f.pop(), f.pop()
			eq := a.Equal(b) || (a.IsZero() && b.IsZero() && refKinds(a, b))
			e.pushValue(f, code.BoolValue(eq == (in.Op == code.EQ)))
		case code.LT, code.GT, code.LE, code.GE:
			b, a := f.popInt(), f.popInt()
			var r bool
			switch in.Op {
			case code.LT:
				r = a.Lt(b)
			case code.GT:
				r = a.Gt(b)
			case code.LE:
				r = !a.Gt(b)
			case code.GE:
				r = !a.Lt(b)
			}
			e.pushValue(f, code.BoolValue(r))
		case code.NOT:
			e.pushValue(f, code.BoolValue(!f.popKind(code.KindBool).Bool))
		case code.AND, code.OR:
			b, a := f.popKind(code.KindBool).Bool, f.popKind(code.KindBool).Bool
			if in.Op == code.AND {
				e.pushValue(f, code.BoolValue(a && b))
			} else {
				e.pushValue(f, code.BoolValue(a || b))
			}
		case code.CONCAT:
			b, a := f.popKind(code.KindString), f.popKind(code.KindString)
			e.chargeString(len(a.Str) + len(b.Str))
			e.pushValue(f, code.StringValue(a.Str+b.Str))

		case code.JUMP:
			f.pc = in.Arg
		case code.JUMP_IF_FALSE:
			if !f.popKind(code.KindBool).Bool {
				f.pc = in.Arg
			}
		case code.JUMP_IF_TRUE:
			if f.popKind(code.KindBool).Bool {
				f.pc = in.Arg
			}

		case code.GETSTATIC:
			fd, owner := e.staticField(f, in)
			e.pushValue(f, e.read(state.StaticKey(e.ctx.Contract, owner, fd.Name), fd.Type))
		case code.PUTSTATIC:
			fd, owner := e.staticField(f, in)
			v := f.pop()
			e.checkStore(f, fd, owner, v)
			e.chargeStored(v)
			e.heap.Set(state.StaticKey(e.ctx.Contract, owner, fd.Name), v)
		case code.GETFIELD:
			fd, owner := e.instanceField(f, in)
			obj := f.popRef(code.KindRef)
			e.pushValue(f, e.read(state.FieldKey(e.ctx.Contract, obj, owner, fd.Name), fd.Type))
		case code.PUTFIELD:
			fd, owner := e.instanceField(f, in)
			v := f.pop()
			obj := f.popRef(code.KindRef)
			e.checkStore(f, fd, owner, v)
			e.chargeStored(v)
			e.heap.Set(state.FieldKey(e.ctx.Contract, obj, owner, fd.Name), v)
		case code.THIS:
			if f.res.Method.Static {
				throw(FaultLogic, "%s: no receiver in a static method", f)
			}
			e.pushValue(f, f.locals[0])
		case code.NEW:
			c := e.area.LoadClass(e, in.Class)
			if c.Interface || IsSystemClass(in.Class) {
				throw(FaultLogic, "%s: cannot instantiate %s", f, in.Class)
			}
			e.pushValue(f, code.RefValue(e.Alloc(in.Class)))
		case code.NEWMAP:
			e.pushValue(f, code.MapValue(e.Alloc(mapClass)))

		case code.MGET:
			k := e.mapKey(f)
			m := f.popRef(code.KindMap)
			e.pushValue(f, e.read(state.MapEntryKey(e.ctx.Contract, m, k), code.Type(in.Desc)))
		case code.MPUT:
			v := f.pop()
			k := e.mapKey(f)
			m := f.popRef(code.KindMap)
			if v.Kind == code.KindNull {
				throw(FaultLogic, "%s: null map value", f)
			}
			e.chargeStored(k)
			e.chargeStored(v)
			e.heap.Set(state.MapEntryKey(e.ctx.Contract, m, k), v)
		case code.MHAS:
			k := e.mapKey(f)
			m := f.popRef(code.KindMap)
			e.pushValue(f, code.BoolValue(e.heap.Has(state.MapEntryKey(e.ctx.Contract, m, k))))
		case code.MDEL:
			k := e.mapKey(f)
			m := f.popRef(code.KindMap)
			e.heap.Set(state.MapEntryKey(e.ctx.Contract, m, k), code.Null())

		case code.INVOKESTATIC, code.INVOKEVIRTUAL, code.INVOKESPECIAL:
			e.invoke(f, in)

		case code.RETURN, code.RETURNVALUE:
			ret := code.Null()
			rt := f.res.Method.ReturnType()
			if in.Op == code.RETURNVALUE {
				ret = f.pop()
				if !rt.Accepts(ret) {
					throw(FaultLogic, "%s: returns %s, declared %s", f, ret.Kind, rt)
				}
			} else if rt != code.Void {
				throw(FaultLogic, "%s: missing return value", f)
			}
			e.frames = e.frames[:len(e.frames)-1]
			if len(e.frames) == base {
				return ret
			}
			if rt != code.Void {
				caller := e.frames[len(e.frames)-1]
				e.pushValue(caller, ret)
			}

		case code.EMIT:
			if in.Arg < 0 || in.Arg > len(f.stack) {
				throw(FaultLogic, "%s: stack underflow", f)
			}
			e.meter.charge(uint64(in.Arg) * CostEmitArg)
			args := make([]code.Value, in.Arg)
			for i := in.Arg - 1; i >= 0; i-- {
				args[i] = f.pop()
			}
			e.emit(in.Name, args)
		case code.REVERT:
			throw(FaultLogic, "%s", f.popKind(code.KindString).Str)
		case code.REQUIRE:
			msg := f.popKind(code.KindString)
			if !f.popKind(code.KindBool).Bool {
				throw(FaultLogic, "%s", msg.Str)
			}
		case code.CHECKCAST:
			v := f.pop()
			e.checkCast(f, code.Type(in.Desc), v)
			e.pushValue(f, v)

		default:
			throw(FaultLoad, "%s: unknown opcode %s", f, in.Op)
		}
	}
}

func arith(f *frame, op code.Opcode) *uint256.Int {
	b, a := f.popInt(), f.popInt()
	r := new(uint256.Int)
	var overflow bool
	switch op {
	case code.ADD:
		_, overflow = r.AddOverflow(a, b)
	case code.SUB:
		_, overflow = r.SubOverflow(a, b)
	case code.MUL:
		_, overflow = r.MulOverflow(a, b)
	case code.DIV, code.MOD:
		if b.IsZero() {
			throw(FaultLogic, "%s: division by zero", f)
		}
		if op == code.DIV {
			r.Div(a, b)
		} else {
			r.Mod(a, b)
		}
	}
	if overflow {
		throw(FaultLogic, "%s: %s overflows", f, op)
	}
	return r
}

func refKinds(a, b code.Value) bool {
	isRef := func(v code.Value) bool {
		return v.Kind == code.KindNull || v.Kind == code.KindRef || v.Kind == code.KindMap
	}
	return isRef(a) && isRef(b)
}

// mapKey pops a map key; keys are scalar values.
func (e *Engine) mapKey(f *frame) code.Value {
	k := f.pop()
	switch k.Kind {
	case code.KindBool, code.KindInt, code.KindString, code.KindAddress:
		return k
	}
	throw(FaultLogic, "%s: %s cannot be a map key", f, k.Kind)
	return k
}

func (e *Engine) staticField(f *frame, in code.Instruction) (*code.Field, string) {
	e.area.LoadClass(e, in.Class)
	fd, owner := e.area.Field(in.Class, in.Name)
	if fd == nil || !fd.Static {
		throw(FaultLogic, "%s: no static field %s.%s", f, in.Class, in.Name)
	}
	return fd, owner
}

func (e *Engine) instanceField(f *frame, in code.Instruction) (*code.Field, string) {
	fd, owner := e.area.Field(in.Class, in.Name)
	if fd == nil || fd.Static {
		throw(FaultLogic, "%s: no field %s.%s", f, in.Class, in.Name)
	}
	return fd, owner
}

// checkStore enforces the declared type; final fields may only be written
// by the initializers of their declaring class.
func (e *Engine) checkStore(f *frame, fd *code.Field, owner string, v code.Value) {
	if !fd.Type.Accepts(v) {
		throw(FaultLogic, "%s: cannot store %s in %s.%s of type %s", f, v.Kind, owner, fd.Name, fd.Type)
	}
	if fd.Final {
		init := code.InitName
		if fd.Static {
			init = code.ClinitName
		}
		if f.res.Owner != owner || f.res.Method.Name != init {
			throw(FaultLogic, "%s: %s.%s is final", f, owner, fd.Name)
		}
	}
}

func (e *Engine) checkCast(f *frame, t code.Type, v code.Value) {
	if !t.Valid() || t == code.Void || !t.Accepts(v) {
		throw(FaultLogic, "%s: %s is not %s", f, v.Kind, t)
	}
	if t.IsObject() && v.Kind == code.KindRef {
		if cls := e.classOf(v.Ref); !e.area.IsAssignable(cls, t.ClassName()) {
			throw(FaultLogic, "%s: %s is not a %s", f, cls, t.ClassName())
		}
	}
}

func (e *Engine) invoke(f *frame, in code.Instruction) {
	types, _, err := code.ParseMethodDescriptor(in.Desc)
	if err != nil {
		throw(FaultLoad, "%s: %v", f, err)
	}
	if len(f.stack) < len(types) {
		throw(FaultLogic, "%s: stack underflow", f)
	}
	args := make([]code.Value, len(types))
	for i := len(types) - 1; i >= 0; i-- {
		args[i] = f.pop()
	}

	var r *Resolved
	switch in.Op {
	case code.INVOKESTATIC:
		e.area.LoadClass(e, in.Class)
		r = e.area.LoadMethod(in.Class, in.Name, in.Desc)
		if r != nil && !r.Method.Static {
			throw(FaultLogic, "%s: %s.%s%s is not static", f, in.Class, in.Name, in.Desc)
		}
	case code.INVOKEVIRTUAL, code.INVOKESPECIAL:
		recv := f.popRef(code.KindRef)
		args = append([]code.Value{code.RefValue(recv)}, args...)
		class := in.Class
		if in.Op == code.INVOKEVIRTUAL {
			class = e.classOf(recv)
			if !e.area.IsAssignable(class, in.Class) {
				throw(FaultLogic, "%s: %s is not a %s", f, class, in.Class)
			}
		}
		e.area.LoadClass(e, class)
		r = e.area.LoadMethod(class, in.Name, in.Desc)
		if r != nil && r.Method.Static {
			throw(FaultLogic, "%s: %s.%s%s is static", f, class, in.Name, in.Desc)
		}
	}
	if r == nil {
		throw(FaultResolution, "%s: method %s.%s%s not found", f, in.Class, in.Name, in.Desc)
	}

	e.checkArgs(r, args)
	if r.Method.Native {
		ret := e.native(r, args)
		if r.Method.ReturnType() != code.Void {
			e.pushValue(f, ret)
		}
		return
	}
	e.push(r, args)
}
