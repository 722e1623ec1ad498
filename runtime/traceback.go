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

import (
	"fmt"
	"reflect"
)

// Traceback represents Python 'traceback' objects: a singly linked list,
// outermost frame first (the node for the original raise point is last),
// recording the points an exception passed through on its way up the call
// stack. Grumpy has no equivalent — its frames are compiled ahead of time
// to native Go closures and never accumulate this kind of history — so
// this is designed directly from the tb_frame / tb_lasti / tb_lineno /
// tb_next contract. frame.go's Raise makes the first node with
// newTraceback(f, nil), and code.go's finish prepends a node for each
// calling frame the exception propagates into.
type Traceback struct {
	Object
	frame  *Frame
	lasti  int
	lineno int
	next   *Traceback
}

func toTracebackUnsafe(o *Object) *Traceback {
	return (*Traceback)(o.toPointer())
}

// ToObject upcasts t to an Object.
func (t *Traceback) ToObject() *Object {
	return &t.Object
}

// TracebackType corresponds to the Python type 'traceback'.
var TracebackType = newBasisType("traceback", reflect.TypeOf(Traceback{}), toTracebackUnsafe, ObjectType)

// newTraceback captures f's current execution point as a new traceback
// node and chains it onto next, the traceback already accumulated by
// frames further down the call stack (nil at the point of the original
// raise).
func newTraceback(f *Frame, next *Traceback) *Traceback {
	return &Traceback{
		Object: Object{typ: TracebackType},
		frame:  f,
		lasti:  f.lasti,
		lineno: f.lineno,
		next:   next,
	}
}

// Next returns the next traceback entry in the chain, or nil at the
// innermost entry, the frame where the exception was raised.
func (t *Traceback) Next() *Traceback {
	return t.next
}

// Lineno returns the source line active in t's frame when it was captured.
func (t *Traceback) Lineno() int {
	return t.lineno
}

func tracebackGetFrame(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	// 'frame' is an external collaborator per spec.md's scope note, not a
	// type this runtime models as a Python-visible object, so tb_frame has
	// no faithful representation to hand back; None is the honest answer.
	return None, nil
}

func tracebackGetLasti(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	t := toTracebackUnsafe(args[0])
	return NewInt(t.lasti).ToObject(), nil
}

func tracebackGetLineno(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	t := toTracebackUnsafe(args[0])
	return NewInt(t.lineno).ToObject(), nil
}

func tracebackGetNext(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	t := toTracebackUnsafe(args[0])
	if t.next == nil {
		return None, nil
	}
	return t.next.ToObject(), nil
}

func tracebackSetNext(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	t := toTracebackUnsafe(args[0])
	value := args[1]
	if value == None {
		t.next = nil
		return None, nil
	}
	if !value.isInstance(TracebackType) {
		return nil, f.RaiseType(TypeErrorType, "tb_next must be a traceback or None")
	}
	t.next = toTracebackUnsafe(value)
	return None, nil
}

func tracebackRepr(f *Frame, o *Object) (*Object, *BaseException) {
	t := toTracebackUnsafe(o)
	return NewStr(fmt.Sprintf("<traceback object at line %d>", t.lineno)).ToObject(), nil
}

func initTracebackType(dict map[string]*Object) {
	TracebackType.flags &^= typeFlagInstantiable | typeFlagBasetype
	dict["tb_frame"] = newProperty(newBuiltinFunction("tb_frame", tracebackGetFrame).ToObject(), nil, nil).ToObject()
	dict["tb_lasti"] = newProperty(newBuiltinFunction("tb_lasti", tracebackGetLasti).ToObject(), nil, nil).ToObject()
	dict["tb_lineno"] = newProperty(newBuiltinFunction("tb_lineno", tracebackGetLineno).ToObject(), nil, nil).ToObject()
	dict["tb_next"] = newProperty(
		newBuiltinFunction("tb_next", tracebackGetNext).ToObject(),
		newBuiltinFunction("tb_next", tracebackSetNext).ToObject(),
		nil).ToObject()
	TracebackType.slots.Repr = &unaryOpSlot{tracebackRepr}
}
