// Copyright 2024 The pyrt Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pyrt

import "fmt"

const (
	notBaseExceptionMsg = "exceptions must be derived from BaseException, not %q"
	maxRecursionDepth    = 1000
)

// Frame represents one activation of a code object: the value stack,
// fastlocals/cell arrays, and the bookkeeping the dispatch loop needs to
// execute a Code's instruction stream (spec.md §3's Frame data-model
// entry). Unlike grumpy's Frame, this one is NOT a Python-visible basis
// type: spec.md §1 lists "frame" among the external-collaborator types
// this runtime doesn't itself model as a Python object (only its
// interface is specified), and traceback.go's tb_frame already returns
// None on that basis. So Frame here is a plain Go struct: no embedded
// Object, no FrameType, no attr tags.
type Frame struct {
	*threadState
	back *Frame

	code     *Code
	globals  *Dict
	// locals is non-nil for non-optimized code (module top-level, class
	// bodies): LOAD_NAME/STORE_NAME/DELETE_NAME address it directly,
	// falling back to globals then builtins. nil for ordinary function
	// frames, which use fastlocals/cells instead (spec.md's "fastlocals
	// array" model for CodeFlagOptimized code).
	locals     *Dict
	fastlocals []*Object
	cells      []*Cell
	funcName   string

	stack []*Object
	lasti int
	lineno int

	// yieldPC records where a suspended generator/coroutine frame should
	// resume (the instruction right after the YIELD_VALUE that suspended
	// it).
	yieldPC int
	// pendingExc holds the exception an unwind just landed on, consumed by
	// the PUSH_EXC_INFO instruction at the handler's entry point.
	pendingExc *BaseException
	// pendingKwNames holds the keyword-argument names tuple set by the
	// KW_NAMES instruction immediately preceding a CALL.
	pendingKwNames *Tuple

	depth      int
	frameCache *Frame
	taken      bool
}

// NewRootFrame creates a Frame that is the bottom of a new stack.
func NewRootFrame() *Frame {
	f := &Frame{}
	f.pushFrame(nil)
	return f
}

// newChildFrame creates a new Frame whose parent frame is back, raising
// RecursionError if the call stack has grown too deep (spec.md §7's
// "System-level failures: recursion limit exceeded").
func newChildFrame(back *Frame) *Frame {
	f := back.frameCache
	if f == nil {
		f = &Frame{}
	} else {
		back.frameCache, f.back = f.back, nil
		f.stack = f.stack[:0]
		f.lasti, f.lineno, f.yieldPC = 0, 0, 0
		f.pendingExc = nil
		f.pendingKwNames = nil
	}
	f.pushFrame(back)
	return f
}

func (f *Frame) release() {
	if !f.taken {
		f.frameCache, f.back = f, f.frameCache
		f.globals, f.locals, f.code = nil, nil, nil
		f.fastlocals, f.cells = nil, nil
	} else if f.back != nil {
		f.back.taken = true
	}
}

// pushFrame adds f to the top of the stack, above back.
func (f *Frame) pushFrame(back *Frame) {
	f.back = back
	if back == nil {
		f.threadState = newThreadState()
		f.depth = 0
	} else {
		f.threadState = back.threadState
		f.depth = back.depth + 1
	}
}

// Globals returns the globals dict for this frame.
func (f *Frame) Globals() *Dict {
	return f.globals
}

// SetLineno sets the current line number for the frame.
func (f *Frame) SetLineno(lineno int) {
	f.lineno = lineno
}

func (f *Frame) push(o *Object) {
	f.stack = append(f.stack, o)
}

func (f *Frame) pop() *Object {
	n := len(f.stack) - 1
	o := f.stack[n]
	f.stack[n] = nil
	f.stack = f.stack[:n]
	return o
}

func (f *Frame) top() *Object {
	return f.stack[len(f.stack)-1]
}

func (f *Frame) nth(fromTop int) *Object {
	return f.stack[len(f.stack)-1-fromTop]
}

// popN pops the top n values off the stack in push order (oldest first).
func (f *Frame) popN(n int) Args {
	start := len(f.stack) - n
	out := make(Args, n)
	copy(out, f.stack[start:])
	for i := start; i < len(f.stack); i++ {
		f.stack[i] = nil
	}
	f.stack = f.stack[:start]
	return out
}

// Raise creates an exception and sets the exc info indicator in a way that
// is compatible with the Python raise statement. If typ, inst and tb are
// all nil then the currently active exception and traceback according to
// ExcInfo are used. Raise returns the exception to propagate. Ported
// near-verbatim from grumpy's Frame.Raise (language-neutral mechanics).
func (f *Frame) Raise(typ *Object, inst *Object, tb *Object) *BaseException {
	if typ == nil && inst == nil && tb == nil {
		exc, excTraceback := f.ExcInfo()
		if exc != nil {
			typ = exc.ToObject()
		}
		if excTraceback != nil {
			tb = excTraceback.ToObject()
		}
	}
	if typ == nil {
		typ = None
	}
	if inst == nil {
		inst = None
	}
	if tb == nil {
		tb = None
	}
	if typ.isInstance(TypeType) {
		t := toTypeUnsafe(typ)
		if !t.isSubclass(BaseExceptionType) {
			return f.RaiseType(TypeErrorType, fmt.Sprintf(notBaseExceptionMsg, t.Name()))
		}
		if !inst.isInstance(t) {
			var args Args
			if inst.isInstance(TupleType) {
				args = toTupleUnsafe(inst).elems
			} else if inst != None {
				args = []*Object{inst}
			}
			var raised *BaseException
			if inst, raised = typ.Call(f, args, nil); raised != nil {
				return raised
			}
		}
	} else if inst == None {
		inst = typ
	} else {
		return f.RaiseType(TypeErrorType, "instance exception may not have a separate value")
	}
	if !inst.isInstance(BaseExceptionType) {
		return f.RaiseType(TypeErrorType, fmt.Sprintf(notBaseExceptionMsg, inst.typ.Name()))
	}
	e := toBaseExceptionUnsafe(inst)
	var traceback *Traceback
	if tb == None {
		traceback = newTraceback(f, nil)
	} else if tb.isInstance(TracebackType) {
		traceback = toTracebackUnsafe(tb)
	} else {
		return f.RaiseType(TypeErrorType, "raise: arg 3 must be a traceback or None")
	}
	e.Traceback = traceback
	f.RestoreExc(e, traceback)
	FireRaise(f, f.code, f.lasti, e.ToObject())
	return e
}

// RaiseType constructs a new object of type t, passing a single str
// argument built from msg and throws the constructed object.
func (f *Frame) RaiseType(t *Type, msg string) *BaseException {
	return f.Raise(t.ToObject(), NewStr(msg).ToObject(), nil)
}

// ExcInfo returns the exception currently being handled by f's thread and
// the associated traceback.
func (f *Frame) ExcInfo() (*BaseException, *Traceback) {
	return f.threadState.excValue, f.threadState.excTraceback
}

// RestoreExc assigns the exception currently being handled by f's thread
// and the associated traceback. The previously set values are returned.
func (f *Frame) RestoreExc(e *BaseException, tb *Traceback) (*BaseException, *Traceback) {
	f.threadState.excValue, e = e, f.threadState.excValue
	f.threadState.excTraceback, tb = tb, f.threadState.excTraceback
	return e, tb
}

func (f *Frame) reprEnter(o *Object) bool {
	if f.threadState.reprState[o] {
		return true
	}
	if f.threadState.reprState == nil {
		f.threadState.reprState = map[*Object]bool{}
	}
	f.threadState.reprState[o] = true
	return false
}

func (f *Frame) reprLeave(o *Object) {
	delete(f.threadState.reprState, o)
}

// MakeArgs returns an Args slice with the given length. The slice may have
// been previously used, but all elements will be set to nil.
func (f *Frame) MakeArgs(n int) Args {
	if n == 0 {
		return nil
	}
	if n > argsCacheArgc {
		return make(Args, n)
	}
	numEntries := len(f.threadState.argsCache)
	if numEntries == 0 {
		return make(Args, n, argsCacheArgc)
	}
	args := f.threadState.argsCache[numEntries-1]
	f.threadState.argsCache = f.threadState.argsCache[:numEntries-1]
	return args[:n]
}

// FreeArgs clears the elements of args and returns it to the system.
func (f *Frame) FreeArgs(args Args) {
	if cap(args) < argsCacheArgc {
		return
	}
	numEntries := len(f.threadState.argsCache)
	if numEntries >= argsCacheSize {
		return
	}
	for i := len(args) - 1; i >= 0; i-- {
		args[i] = nil
	}
	f.threadState.argsCache = f.threadState.argsCache[:numEntries+1]
	f.threadState.argsCache[numEntries] = args
}

// unwind looks up the exception-table entry covering pc (spec.md §4.4's
// "no runtime block stack" unwind algorithm), truncates the value stack to
// the recorded depth, optionally preserves lasti, and stashes raised for
// the handler's PUSH_EXC_INFO to pick up. Returns the handler's target
// offset and true if one covers pc, or (0, false) if the exception
// propagates out of this frame entirely.
func (f *Frame) unwind(pc int, raised *BaseException) (int, bool) {
	entry := f.code.excTable.Lookup(pc)
	if entry == nil {
		FirePyUnwind(f, f.code, pc, raised.ToObject())
		return 0, false
	}
	if entry.depth <= len(f.stack) {
		f.stack = f.stack[:entry.depth]
	}
	if entry.preserveLasti {
		f.lasti = pc
	}
	f.pendingExc = raised
	return entry.target, true
}

// dispatch runs the frame's code from the beginning to completion (a plain
// function call, module body, or class body).
func (f *Frame) dispatch() (*Object, *BaseException) {
	val, raised, _ := f.run(0, nil, false)
	return val, raised
}

// resume continues a suspended generator/coroutine frame, sending
// sendValue in as the result of the YIELD_VALUE expression that paused it.
// Returns (value, nil, true) on a further yield, (value, nil, false) on
// completion (return), or (nil, raised, false) on an escaping exception.
func (f *Frame) resume(sendValue *Object) (*Object, *BaseException, bool) {
	return f.run(f.yieldPC, sendValue, true)
}

// throwInto raises exc inside a suspended generator frame at its resume
// point, used by generator.throw().
func (f *Frame) throwInto(exc *BaseException) (*Object, *BaseException, bool) {
	if raised := FirePyThrow(f, f.code, f.yieldPC, exc.ToObject()); raised != nil {
		exc = raised
	}
	if target, ok := f.unwind(f.yieldPC, exc); ok {
		return f.run(target, nil, true)
	}
	return nil, exc, false
}

func unaryPos(f *Frame, o *Object) (*Object, *BaseException) {
	pos := o.typ.slots.Pos
	if pos == nil {
		return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("bad operand type for unary +: '%s'", o.typ.Name()))
	}
	return pos.Fn(f, o)
}

func unaryNot(f *Frame, o *Object) (*Object, *BaseException) {
	truthy, raised := IsTrue(f, o)
	if raised != nil {
		return nil, raised
	}
	return GetBool(!truthy).ToObject(), nil
}

func binOpApply(f *Frame, op BinOp, v, w *Object) (*Object, *BaseException) {
	switch op {
	case BinOpAdd:
		return Add(f, v, w)
	case BinOpSub:
		return Sub(f, v, w)
	case BinOpMul:
		return Mul(f, v, w)
	case BinOpTrueDiv:
		return TrueDiv(f, v, w)
	case BinOpFloorDiv:
		return FloorDiv(f, v, w)
	case BinOpMod:
		return Mod(f, v, w)
	case BinOpPow:
		return Pow(f, v, w)
	case BinOpLShift:
		return LShift(f, v, w)
	case BinOpRShift:
		return RShift(f, v, w)
	case BinOpAnd:
		return And(f, v, w)
	case BinOpOr:
		return Or(f, v, w)
	case BinOpXor:
		return Xor(f, v, w)
	}
	return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("unsupported operand type(s) for @: '%s' and '%s'", v.typ.Name(), w.typ.Name()))
}

// inplaceOpApply tries the dedicated in-place slot for Add/Sub/Mul (the
// only ones slots.go defines, matching most of CPython's own built-in
// immutable types) and falls back to the plain binary operator otherwise
// -- a deliberate simplification documented in DESIGN.md rather than
// extending slots.go with nine more rarely-overridden i-dunders.
func inplaceOpApply(f *Frame, op BinOp, v, w *Object) (*Object, *BaseException) {
	switch op {
	case BinOpAdd:
		return IAdd(f, v, w)
	case BinOpSub:
		return ISub(f, v, w)
	case BinOpMul:
		return IMul(f, v, w)
	}
	return binOpApply(f, op, v, w)
}

func stopIterationValue(exc *BaseException) *Object {
	if exc.Args != nil && len(exc.Args.elems) > 0 {
		return exc.Args.elems[0]
	}
	return None
}

// run is the frame's bytecode dispatch loop (spec.md §4.4): a closed
// instruction set executed over a value stack, using EXTENDED_ARG
// accumulation for wide operands and the exception table (not a runtime
// block stack) to find unwind targets.
func (f *Frame) run(startPC int, sendValue *Object, resuming bool) (*Object, *BaseException, bool) {
	if f.depth >= maxRecursionDepth {
		return nil, f.RaiseType(RecursionErrorType, "maximum recursion depth exceeded"), false
	}
	code := f.code
	pc := startPC
	if resuming {
		f.push(sendValue)
	}
	lastLine := -1
	for {
		if pc >= len(code.code) {
			return None, nil, false
		}
		instrPC := pc
		op, arg, nextPC := decodeInstr(code.code, pc)

		if line := code.lineTable.LineForOffset(instrPC); line >= 0 && line != lastLine {
			f.lineno, lastLine = line, line
			if raised := FireLine(f, code, instrPC, line); raised != nil {
				if target, ok := f.unwind(instrPC, raised); ok {
					pc = target
					continue
				}
				return nil, raised, false
			}
		}
		f.lasti = instrPC
		if raised := FireInstruction(f, code, instrPC); raised != nil {
			if target, ok := f.unwind(instrPC, raised); ok {
				pc = target
				continue
			}
			return nil, raised, false
		}

		var raised *BaseException
		jumped := false

		switch op {
		case NOP, INSTRUMENTED_LINE:
		case RESUME:
			if instrPC == 0 && !resuming {
				raised = FirePyStart(f, code, instrPC)
			} else {
				raised = FirePyResume(f, code, instrPC)
			}

		case LOAD_CONST:
			f.push(code.consts[arg])
		case POP_TOP:
			f.pop()
		case DUP_TOP:
			f.push(f.top())
		case DUP_TOP_TWO:
			a, b := f.nth(1), f.nth(0)
			f.push(a)
			f.push(b)
		case ROT_TWO:
			n := len(f.stack)
			f.stack[n-1], f.stack[n-2] = f.stack[n-2], f.stack[n-1]
		case ROT_THREE:
			n := len(f.stack)
			f.stack[n-1], f.stack[n-2], f.stack[n-3] = f.stack[n-2], f.stack[n-3], f.stack[n-1]
		case ROT_FOUR:
			n := len(f.stack)
			f.stack[n-1], f.stack[n-2], f.stack[n-3], f.stack[n-4] = f.stack[n-2], f.stack[n-3], f.stack[n-4], f.stack[n-1]
		case SWAP:
			n := len(f.stack)
			j := n - 1 - arg
			f.stack[n-1], f.stack[j] = f.stack[j], f.stack[n-1]

		case LOAD_FAST:
			v := f.fastlocals[arg]
			if raised = CheckLocal(f, v, code.varnames[arg]); raised == nil {
				f.push(v)
			}
		case STORE_FAST:
			f.fastlocals[arg] = f.pop()
		case DELETE_FAST:
			if raised = CheckLocal(f, f.fastlocals[arg], code.varnames[arg]); raised == nil {
				f.fastlocals[arg] = UnboundLocal
			}

		case LOAD_DEREF, LOAD_CLOSURE:
			cell := f.cells[arg]
			if op == LOAD_CLOSURE {
				f.push(cell.ToObject())
			} else if v := cell.Get(); v == nil || v == UnboundLocal {
				raised = f.RaiseType(NameErrorType, fmt.Sprintf("free variable '%s' referenced before assignment", cellOrFreeName(code, arg)))
			} else {
				f.push(v)
			}
		case STORE_DEREF:
			f.cells[arg].Set(f.pop())
		case DELETE_DEREF:
			f.cells[arg].Set(UnboundLocal)

		case LOAD_GLOBAL:
			name := code.names[arg]
			var v *Object
			if v, raised = f.globals.GetItemString(f, name); raised == nil {
				if v == nil {
					v, raised = Builtins.GetItemString(f, name)
				}
				if raised == nil {
					if v == nil {
						raised = f.RaiseType(NameErrorType, fmt.Sprintf("name '%s' is not defined", name))
					} else {
						f.push(v)
					}
				}
			}
		case STORE_GLOBAL:
			raised = f.globals.SetItemString(f, code.names[arg], f.pop())
		case DELETE_GLOBAL:
			var ok bool
			if ok, raised = f.globals.DelItemString(f, code.names[arg]); raised == nil && !ok {
				raised = f.RaiseType(NameErrorType, fmt.Sprintf("name '%s' is not defined", code.names[arg]))
			}

		case LOAD_NAME:
			name := code.names[arg]
			var v *Object
			ns := f.locals
			if ns == nil {
				ns = f.globals
			}
			if v, raised = ns.GetItemString(f, name); raised == nil && v == nil && ns != f.globals {
				v, raised = f.globals.GetItemString(f, name)
			}
			if raised == nil && v == nil {
				v, raised = Builtins.GetItemString(f, name)
			}
			if raised == nil {
				if v == nil {
					raised = f.RaiseType(NameErrorType, fmt.Sprintf("name '%s' is not defined", name))
				} else {
					f.push(v)
				}
			}
		case STORE_NAME:
			ns := f.locals
			if ns == nil {
				ns = f.globals
			}
			raised = ns.SetItemString(f, code.names[arg], f.pop())
		case DELETE_NAME:
			ns := f.locals
			if ns == nil {
				ns = f.globals
			}
			var ok bool
			if ok, raised = ns.DelItemString(f, code.names[arg]); raised == nil && !ok {
				raised = f.RaiseType(NameErrorType, fmt.Sprintf("name '%s' is not defined", code.names[arg]))
			}

		case LOAD_ATTR:
			obj := f.pop()
			var v *Object
			if v, raised = GetAttr(f, obj, NewStr(code.names[arg]), nil); raised == nil {
				f.push(v)
			}
		case STORE_ATTR:
			owner := f.pop()
			value := f.pop()
			raised = SetAttr(f, owner, NewStr(code.names[arg]), value)
		case DELETE_ATTR:
			owner := f.pop()
			raised = DelAttr(f, owner, NewStr(code.names[arg]))

		case BINARY_SUBSCR:
			key := f.pop()
			obj := f.pop()
			var v *Object
			if v, raised = GetItem(f, obj, key); raised == nil {
				f.push(v)
			}
		case STORE_SUBSCR:
			key := f.pop()
			obj := f.pop()
			value := f.pop()
			raised = SetItem(f, obj, key, value)
		case DELETE_SUBSCR:
			key := f.pop()
			obj := f.pop()
			raised = DelItem(f, obj, key)

		case UNPACK_SEQUENCE:
			raised = f.unpackSequence(arg)
		case UNPACK_EX:
			raised = f.unpackEx(arg & 0xff, arg>>8)

		case UNARY_OP:
			o := f.pop()
			var v *Object
			switch UnaryOp(arg) {
			case UnaryOpNot:
				v, raised = unaryNot(f, o)
			case UnaryOpNegative:
				v, raised = Neg(f, o)
			case UnaryOpPositive:
				v, raised = unaryPos(f, o)
			case UnaryOpInvert:
				v, raised = Invert(f, o)
			}
			if raised == nil {
				f.push(v)
			}
		case BINARY_OP:
			w := f.pop()
			v := f.pop()
			var r *Object
			if r, raised = binOpApply(f, BinOp(arg), v, w); raised == nil {
				f.push(r)
			}
		case INPLACE_OP:
			w := f.pop()
			v := f.pop()
			var r *Object
			if r, raised = inplaceOpApply(f, BinOp(arg), v, w); raised == nil {
				f.push(r)
			}
		case COMPARE_OP:
			w := f.pop()
			v := f.pop()
			var r *Object
			if r, raised = compareRich(f, compareOp(arg), v, w); raised == nil {
				f.push(r)
			}
		case IS_OP:
			w := f.pop()
			v := f.pop()
			same := v == w
			if arg != 0 {
				same = !same
			}
			f.push(GetBool(same).ToObject())
		case CONTAINS_OP:
			container := f.pop()
			value := f.pop()
			var ok bool
			if ok, raised = Contains(f, container, value); raised == nil {
				if arg != 0 {
					ok = !ok
				}
				f.push(GetBool(ok).ToObject())
			}

		case BUILD_TUPLE:
			f.push(NewTuple(f.popN(arg)...).ToObject())
		case BUILD_LIST:
			f.push(NewList(f.popN(arg)...).ToObject())
		case BUILD_SET:
			elems := f.popN(arg)
			s := NewSet()
			for _, e := range elems {
				if _, raised = s.Add(f, e); raised != nil {
					break
				}
			}
			if raised == nil {
				f.push(s.ToObject())
			}
		case BUILD_MAP:
			vals := f.popN(arg * 2)
			d := NewDict()
			for i := 0; i < len(vals); i += 2 {
				if raised = d.SetItem(f, vals[i], vals[i+1]); raised != nil {
					break
				}
			}
			if raised == nil {
				f.push(d.ToObject())
			}
		case LIST_EXTEND:
			iterable := f.pop()
			lst := toListUnsafe(f.nth(arg - 1))
			raised = extendList(f, lst, iterable)
		case SET_UPDATE:
			iterable := f.pop()
			raised = toSetUnsafe(f.nth(arg - 1)).Update(f, iterable)
		case DICT_UPDATE, DICT_MERGE:
			iterable := f.pop()
			raised = toDictUnsafe(f.nth(arg - 1)).Update(f, iterable)
		case LIST_APPEND:
			value := f.pop()
			toListUnsafe(f.nth(arg - 1)).Append(value)
		case SET_ADD:
			value := f.pop()
			_, raised = toSetUnsafe(f.nth(arg - 1)).Add(f, value)
		case MAP_ADD:
			value := f.pop()
			key := f.pop()
			raised = toDictUnsafe(f.nth(arg - 1)).SetItem(f, key, value)
		case BUILD_SLICE:
			var step *Object = None
			if arg == 3 {
				step = f.pop()
			}
			stop := f.pop()
			start := f.pop()
			f.push((&Slice{Object: Object{typ: SliceType}, start: start, stop: stop, step: step}).ToObject())
		case BUILD_STRING:
			parts := f.popN(arg)
			s := ""
			for _, p := range parts {
				s += toStrUnsafe(p).Value()
			}
			f.push(NewStr(s).ToObject())
		case FORMAT_VALUE:
			// Simplification: a format spec (flag 0x4, pushed above the
			// value) is popped and ignored, and conversion flags (!r/!s/!a)
			// aren't modeled; this renders the plain str() form.
			if arg&0x4 != 0 {
				f.pop() // discard format spec
			}
			v := f.pop()
			var s *Str
			if s, raised = Str(f, v); raised == nil {
				f.push(s.ToObject())
			}

		case JUMP_FORWARD, JUMP_BACKWARD:
			pc = arg
			jumped = true
		case POP_JUMP_IF_TRUE, POP_JUMP_IF_FALSE:
			cond := f.pop()
			var truthy bool
			if truthy, raised = IsTrue(f, cond); raised == nil {
				want := op == POP_JUMP_IF_TRUE
				if truthy == want {
					FireBranchLeft(f, code, instrPC, arg)
					pc = arg
				} else {
					FireBranchRight(f, code, instrPC, nextPC)
					pc = nextPC
				}
				jumped = true
			}
		case JUMP_IF_TRUE_OR_POP, JUMP_IF_FALSE_OR_POP:
			cond := f.top()
			var truthy bool
			if truthy, raised = IsTrue(f, cond); raised == nil {
				want := op == JUMP_IF_TRUE_OR_POP
				if truthy == want {
					pc = arg
				} else {
					f.pop()
					pc = nextPC
				}
				jumped = true
			}
		case GET_ITER:
			obj := f.pop()
			var it *Object
			if it, raised = Iter(f, obj); raised == nil {
				f.push(it)
			}
		case GET_YIELD_FROM_ITER:
			obj := f.top()
			if obj.typ.slots.Iter == nil {
				f.pop()
				var it *Object
				if it, raised = Iter(f, obj); raised == nil {
					f.push(it)
				}
			}
		case FOR_ITER:
			iterator := f.top()
			var v *Object
			v, raised = Next(f, iterator)
			if raised != nil && raised.isInstance(StopIterationType) {
				f.RestoreExc(nil, nil)
				f.pop()
				pc = arg
				jumped = true
				raised = nil
			} else if raised == nil {
				f.push(v)
			}

		case RETURN_VALUE:
			val := f.pop()
			if raised = FirePyReturn(f, code, instrPC, val); raised == nil {
				return val, nil, false
			}
		case YIELD_VALUE:
			val := f.pop()
			if raised = FirePyYield(f, code, instrPC, val); raised == nil {
				f.yieldPC = nextPC
				return val, nil, true
			}
		case YIELD_FROM:
			// Simplification, documented in DESIGN.md: drains the
			// sub-iterator to completion within this single dispatch
			// rather than suspending the outer frame per delegated value
			// (true PEP 380 delegation). spec.md's seed suite only
			// exercises plain generator suspend/resume, not delegation.
			subIter := f.pop()
			var result *Object = None
			for {
				var v *Object
				v, raised = Next(f, subIter)
				if raised != nil {
					if raised.isInstance(StopIterationType) {
						result = stopIterationValue(raised)
						f.RestoreExc(nil, nil)
						raised = nil
					}
					break
				}
				_ = v
			}
			if raised == nil {
				f.push(result)
			}
		case RAISE_VARARGS:
			var cause, inst *Object
			switch arg {
			case 0:
				cur, _ := f.ExcInfo()
				if cur == nil {
					raised = f.RaiseType(RuntimeErrorType, "No active exception to re-raise")
				} else {
					raised = f.Raise(cur.ToObject(), nil, nil)
				}
			case 1:
				inst = f.pop()
				raised = f.Raise(inst, nil, nil)
			case 2:
				cause = f.pop()
				inst = f.pop()
				raised = f.Raise(inst, nil, nil)
				if raised != nil && cause != None {
					raised.Cause = cause
					raised.SuppressContext = true
				}
			}
		case RERAISE:
			excObj := f.pop()
			exc := toBaseExceptionUnsafe(excObj)
			if arg&1 != 0 {
				// preserve_lasti bit: lasti already set at catch time.
			}
			FireReraise(f, code, instrPC, excObj)
			raised = exc

		case MAKE_FUNCTION:
			raised = f.makeFunction(arg)

		case KW_NAMES:
			f.pendingKwNames = toTupleUnsafe(code.consts[arg])
		case CALL:
			raised = f.call(instrPC, arg)
		case CALL_FUNCTION_EX:
			var kwargsObj *Object
			if arg&1 != 0 {
				kwargsObj = f.pop()
			}
			argsObj := f.pop()
			callable := f.pop()
			var result *Object
			if result, raised = Invoke(f, callable, nil, argsObj, nil, kwargsObj); raised == nil {
				f.push(result)
			}

		case PUSH_EXC_INFO:
			old, _ := f.ExcInfo()
			oldObj := None
			if old != nil {
				oldObj = old.ToObject()
			}
			f.push(oldObj)
			newExc := f.pendingExc
			f.pendingExc = nil
			if newExc != nil {
				f.RestoreExc(newExc, newExc.Traceback)
				FireExceptionHandled(f, code, instrPC, newExc.ToObject())
				f.push(newExc.ToObject())
			} else {
				f.push(None)
			}
		case POP_EXCEPT:
			f.pop() // the handled exception, already consumed by user code
			prevObj := f.pop()
			if prevObj == None {
				f.RestoreExc(nil, nil)
			} else {
				prev := toBaseExceptionUnsafe(prevObj)
				f.RestoreExc(prev, prev.Traceback)
			}
		case CHECK_EXC_MATCH:
			excType := f.pop()
			excVal := f.top()
			var ok bool
			if ok, raised = IsInstance(f, excVal, excType); raised == nil {
				f.push(GetBool(ok).ToObject())
			}
		case WITH_EXCEPT_START:
			// Stack: [..., exit_bound, prev_exc, exc] as PUSH_EXC_INFO
			// left it; exit_bound is called as exit_bound(type, exc, tb).
			val := f.nth(0)
			exitFunc := f.nth(2)
			typ, tb := None, None
			if val != None {
				typ = val.Type().ToObject()
				if t := toBaseExceptionUnsafe(val).Traceback; t != nil {
					tb = t.ToObject()
				}
			}
			var result *Object
			if result, raised = exitFunc.Call(f, Args{typ, val, tb}, nil); raised == nil {
				f.push(result)
			}

		case IMPORT_NAME:
			fromlist := f.pop()
			level := f.pop()
			var mod *Object
			if mod, raised = importName(f, code.names[arg], f.globals, fromlist, level); raised == nil {
				f.push(mod)
			}
		case IMPORT_FROM:
			mod := f.top()
			var v *Object
			if v, raised = GetAttr(f, mod, NewStr(code.names[arg]), nil); raised == nil {
				f.push(v)
			}
		case IMPORT_STAR:
			mod := f.pop()
			ns := f.locals
			if ns == nil {
				ns = f.globals
			}
			raised = importStar(f, mod, ns)

		case LOAD_BUILD_CLASS:
			var v *Object
			if v, raised = Builtins.GetItemString(f, "__build_class__"); raised == nil {
				f.push(v)
			}
		case SETUP_ANNOTATIONS:
			ns := f.locals
			if ns == nil {
				ns = f.globals
			}
			var existing *Object
			if existing, raised = ns.GetItemString(f, "__annotations__"); raised == nil && existing == nil {
				raised = ns.SetItemString(f, "__annotations__", NewDict().ToObject())
			}

		default:
			raised = f.RaiseType(SystemErrorType, fmt.Sprintf("bad opcode %s at offset %d", op, instrPC))
		}

		if raised != nil {
			if target, ok := f.unwind(instrPC, raised); ok {
				pc = target
				continue
			}
			return nil, raised, false
		}
		if !jumped {
			pc = nextPC
		}
	}
}

func cellOrFreeName(c *Code, idx int) string {
	if idx < len(c.cellvars) {
		return c.cellvars[idx]
	}
	i := idx - len(c.cellvars)
	if i < len(c.freevars) {
		return c.freevars[i]
	}
	return "?"
}

func extendList(f *Frame, lst *List, iterable *Object) *BaseException {
	it, raised := Iter(f, iterable)
	if raised != nil {
		return raised
	}
	for {
		v, raised := Next(f, it)
		if raised != nil {
			if raised.isInstance(StopIterationType) {
				f.RestoreExc(nil, nil)
				return nil
			}
			return raised
		}
		lst.Append(v)
	}
}

// unpackSequence implements UNPACK_SEQUENCE: pop a sequence and push its n
// elements in reverse order so the following n STORE_* instructions assign
// them left to right.
func (f *Frame) unpackSequence(n int) *BaseException {
	seq := f.pop()
	values, raised := drainExactly(f, seq, n, false)
	if raised != nil {
		return raised
	}
	for i := n - 1; i >= 0; i-- {
		f.push(values[i])
	}
	return nil
}

// unpackEx implements UNPACK_EX for starred assignment targets like
// "a, *b, c = seq": before elements are bound first, after elements last,
// with the star list capturing everything in between.
func (f *Frame) unpackEx(before, after int) *BaseException {
	seq := f.pop()
	it, raised := Iter(f, seq)
	if raised != nil {
		return raised
	}
	head := make([]*Object, 0, before)
	for i := 0; i < before; i++ {
		v, raised := Next(f, it)
		if raised != nil {
			if raised.isInstance(StopIterationType) {
				f.RestoreExc(nil, nil)
				return f.RaiseType(ValueErrorType, fmt.Sprintf("not enough values to unpack (expected at least %d)", before+after))
			}
			return raised
		}
		head = append(head, v)
	}
	var rest []*Object
	for {
		v, raised := Next(f, it)
		if raised != nil {
			if raised.isInstance(StopIterationType) {
				f.RestoreExc(nil, nil)
				break
			}
			return raised
		}
		rest = append(rest, v)
	}
	if len(rest) < after {
		return f.RaiseType(ValueErrorType, fmt.Sprintf("not enough values to unpack (expected at least %d)", before+after))
	}
	tailStart := len(rest) - after
	tail := rest[tailStart:]
	star := NewList(rest[:tailStart]...)
	for i := after - 1; i >= 0; i-- {
		f.push(tail[i])
	}
	f.push(star.ToObject())
	for i := before - 1; i >= 0; i-- {
		f.push(head[i])
	}
	return nil
}

// drainExactly pulls exactly n items from seq's iterator, raising
// ValueError if there are too few or too many.
func drainExactly(f *Frame, seq *Object, n int, _ bool) ([]*Object, *BaseException) {
	it, raised := Iter(f, seq)
	if raised != nil {
		return nil, raised
	}
	values := make([]*Object, 0, n)
	for i := 0; i < n; i++ {
		v, raised := Next(f, it)
		if raised != nil {
			if raised.isInstance(StopIterationType) {
				f.RestoreExc(nil, nil)
				return nil, f.RaiseType(ValueErrorType, fmt.Sprintf("not enough values to unpack (expected %d, got %d)", n, i))
			}
			return nil, raised
		}
		values = append(values, v)
	}
	if _, raised := Next(f, it); raised == nil {
		return nil, f.RaiseType(ValueErrorType, fmt.Sprintf("too many values to unpack (expected %d)", n))
	} else if !raised.isInstance(StopIterationType) {
		return nil, raised
	} else {
		f.RestoreExc(nil, nil)
	}
	return values, nil
}

// makeFunction implements MAKE_FUNCTION. flags bit 0 = defaults tuple
// present, bit 1 = kwdefaults dict present, bit 2 = closure tuple present.
// Annotations aren't modeled (the compiler never emits them), matching the
// rest of this codebase's scope.
func (f *Frame) makeFunction(flags int) *BaseException {
	codeObj := toCodeUnsafe(f.pop())
	var closure []*Cell
	if flags&4 != 0 {
		closureTuple := toTupleUnsafe(f.pop())
		closure = make([]*Cell, len(closureTuple.elems))
		for i, e := range closureTuple.elems {
			closure[i] = toCellUnsafe(e)
		}
	}
	var kwDefaults *Dict
	if flags&2 != 0 {
		kwDefaults = toDictUnsafe(f.pop())
	}
	var defaults []*Object
	if flags&1 != 0 {
		d := toTupleUnsafe(f.pop())
		defaults = append([]*Object{}, d.elems...)
	}
	fun := NewFunction(codeObj, f.globals)
	fun.defaults = defaults
	fun.kwDefaults = kwDefaults
	fun.closure = closure
	f.push(fun.ToObject())
	return nil
}

// call implements CALL: pop a callable and its (positional ++ keyword)
// arguments, splitting them using any pending KW_NAMES tuple.
func (f *Frame) call(pc, argc int) *BaseException {
	allArgs := f.popN(argc)
	callable := f.pop()
	positional := allArgs
	var kwargs KWArgs
	if f.pendingKwNames != nil {
		names := f.pendingKwNames
		f.pendingKwNames = nil
		nkw := names.Len()
		split := argc - nkw
		positional = allArgs[:split]
		kwVals := allArgs[split:]
		kwargs = make(KWArgs, nkw)
		for i := 0; i < nkw; i++ {
			kwargs[i] = KWArg{Name: toStrUnsafe(names.GetItem(i)).Value(), Value: kwVals[i]}
		}
	}
	var arg0 *Object = None
	if len(positional) > 0 {
		arg0 = positional[0]
	}
	if raised := FireCall(f, f.code, pc, callable, arg0); raised != nil {
		return raised
	}
	result, raised := callable.Call(f, positional, kwargs)
	if raised != nil {
		return raised
	}
	f.push(result)
	return nil
}
