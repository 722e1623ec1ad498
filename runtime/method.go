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

// Method represents Python 3 bound method objects ('method' in Python 3;
// grumpy's Python 2 'instancemethod' also covered the unbound case, which
// Python 3 dropped — accessing a function through a class now yields the
// plain function (see functionGet), so self here is never None.
type Method struct {
	Object
	function *Object
	self     *Object
	class    *Type
	name     string `attr:"__name__"`
}

func toMethodUnsafe(o *Object) *Method {
	return (*Method)(o.toPointer())
}

// ToObject upcasts m to an Object.
func (m *Method) ToObject() *Object {
	return &m.Object
}

// MethodType is the object representing the Python 'method' type.
var MethodType = newBasisType("method", reflect.TypeOf(Method{}), toMethodUnsafe, ObjectType)

func methodInit(f *Frame, o *Object, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkFunctionArgs(f, "__init__", args, ObjectType, ObjectType, TypeType); raised != nil {
		return nil, raised
	}
	m := toMethodUnsafe(o)
	m.function = args[0]
	m.self = args[1]
	m.class = toTypeUnsafe(args[2])
	name, raised := GetAttr(f, m.function, internedName, nil)
	if raised != nil {
		return nil, raised
	}
	m.name = toStrUnsafe(name).Value()
	return None, nil
}

func methodCall(f *Frame, callable *Object, args Args, kwargs KWArgs) (*Object, *BaseException) {
	m := toMethodUnsafe(callable)
	methodArgs := make(Args, len(args)+1)
	methodArgs[0] = m.self
	copy(methodArgs[1:], args)
	return m.function.Call(f, methodArgs, kwargs)
}

func methodRepr(f *Frame, o *Object) (*Object, *BaseException) {
	m := toMethodUnsafe(o)
	repr, raised := Repr(f, m.self)
	if raised != nil {
		return nil, raised
	}
	s := fmt.Sprintf("<bound method %s.%s of %s>", m.class.Name(), m.name, repr.Value())
	return NewStr(s).ToObject(), nil
}

func initMethodType(map[string]*Object) {
	// Not a base type (bound methods aren't subclassable), but instantiable
	// must stay set: functionGet/classMethodGet construct instances via
	// MethodType.Call, which routes through the inherited objectNew and
	// would otherwise reject itself. Grumpy's instancemethod clears both
	// flags (its own "TODO: Should be instantiable" admits the mismatch).
	MethodType.flags &^= typeFlagBasetype
	MethodType.slots.Call = &callSlot{methodCall}
	MethodType.slots.Init = &initSlot{methodInit}
	MethodType.slots.Repr = &unaryOpSlot{methodRepr}
}
