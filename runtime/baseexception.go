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

import "reflect"

// BaseException represents Python 'BaseException' objects.
type BaseException struct {
	Object
	// Args, Cause, Context and SuppressContext are exported (unlike most
	// basis fields) because their Python attributes are assignable, and
	// read-write struct field descriptors write back via reflect, which
	// requires an exported field.
	Args *Tuple `attr:"args" attr_mode:"rw"`
	// Cause and Context implement PEP 3134 exception chaining: Cause is set
	// explicitly by "raise ... from ...", Context is captured automatically
	// when an exception is raised while another is already being handled.
	Cause   *Object `attr:"__cause__" attr_mode:"rw"`
	Context *Object `attr:"__context__" attr_mode:"rw"`
	// SuppressContext mirrors __suppress_context__: set when "raise ... from
	// None" requests that the implicit context not be printed in tracebacks.
	SuppressContext bool `attr:"__suppress_context__" attr_mode:"rw"`
	// Traceback accumulates via frame.go's Raise/RaiseType as the exception
	// unwinds, one newTraceback(f, ...) node per frame it passes through.
	Traceback *Traceback `attr:"__traceback__" attr_mode:"rw"`
}

func toBaseExceptionUnsafe(o *Object) *BaseException {
	return (*BaseException)(o.toPointer())
}

// ToObject upcasts e to an Object.
func (e *BaseException) ToObject() *Object {
	return &e.Object
}

// BaseExceptionType corresponds to the Python type 'BaseException'.
var BaseExceptionType = newBasisType("BaseException", reflect.TypeOf(BaseException{}), toBaseExceptionUnsafe, ObjectType)

func baseExceptionInit(f *Frame, o *Object, args Args, kwargs KWArgs) (*Object, *BaseException) {
	e := toBaseExceptionUnsafe(o)
	e.Args = NewTuple(args.makeCopy()...)
	e.Cause = None
	e.Context = None
	return None, nil
}

func baseExceptionRepr(f *Frame, o *Object) (*Object, *BaseException) {
	e := toBaseExceptionUnsafe(o)
	argsString := "()"
	if e.Args != nil {
		s, raised := Repr(f, e.Args.ToObject())
		if raised != nil {
			return nil, raised
		}
		argsString = s.Value()
	}
	name, raised := o.typ.FullName(f)
	if raised != nil {
		return nil, raised
	}
	return NewStr(name + argsString).ToObject(), nil
}

func baseExceptionStr(f *Frame, o *Object) (*Object, *BaseException) {
	e := toBaseExceptionUnsafe(o)
	if e.Args == nil || len(e.Args.elems) == 0 {
		return NewStr("").ToObject(), nil
	}
	if len(e.Args.elems) == 1 {
		s, raised := ToStr(f, e.Args.elems[0])
		return s.ToObject(), raised
	}
	s, raised := ToStr(f, e.Args.ToObject())
	return s.ToObject(), raised
}

func initBaseExceptionType(dict map[string]*Object) {
	BaseExceptionType.slots.Init = &initSlot{baseExceptionInit}
	BaseExceptionType.slots.Repr = &unaryOpSlot{baseExceptionRepr}
	BaseExceptionType.slots.Str = &unaryOpSlot{baseExceptionStr}
}
