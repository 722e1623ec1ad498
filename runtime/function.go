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

var (
	// FunctionType is the object representing the Python 'function' type.
	FunctionType = newBasisType("function", reflect.TypeOf(Function{}), toFunctionUnsafe, ObjectType)
	// StaticMethodType is the object representing the Python
	// 'staticmethod' type.
	StaticMethodType = newBasisType("staticmethod", reflect.TypeOf(staticMethod{}), toStaticMethodUnsafe, ObjectType)
	// ClassMethodType is the object representing the Python 'classmethod'
	// type.
	ClassMethodType = newBasisType("classmethod", reflect.TypeOf(classMethod{}), toClassMethodUnsafe, ObjectType)
)

// Args represent positional parameters in a call to a Python function.
type Args []*Object

func (a Args) makeCopy() Args {
	result := make(Args, len(a))
	copy(result, a)
	return result
}

// KWArg represents a keyword argument in a call to a Python function.
type KWArg struct {
	Name  string
	Value *Object
}

// KWArgs represents a list of keyword parameters in a call to a Python
// function.
type KWArgs []KWArg

// String returns a string representation of k, e.g. for debugging.
func (k KWArgs) String() string {
	return k.makeDict().String()
}

func (k KWArgs) get(name string, def *Object) *Object {
	for _, kwarg := range k {
		if kwarg.Name == name {
			return kwarg.Value
		}
	}
	return def
}

func (k KWArgs) makeDict() *Dict {
	m := map[string]*Object{}
	for _, kw := range k {
		m[kw.Name] = kw.Value
	}
	return newStringDict(m)
}

// Func is a Go function underlying a builtin Python function object.
type Func func(f *Frame, args Args, kwargs KWArgs) (*Object, *BaseException)

// Function represents Python 'function' objects. A Function either wraps a
// native Go Func (builtins) or a compiled Code object plus the globals dict
// it closes over (spec.md §4.2's MAKE_FUNCTION).
type Function struct {
	Object
	fn      Func
	name    string `attr:"__name__"`
	code    *Code  `attr:"__code__"`
	globals *Dict  `attr:"__globals__"`
	// defaults and kwDefaults hold the default values bound at
	// MAKE_FUNCTION time for positional-or-keyword and keyword-only
	// parameters respectively (spec.md §4.2's "default value tuple").
	defaults   []*Object
	kwDefaults *Dict
	// closure holds the *Cell values captured from an enclosing scope,
	// indexed in the same order as the code object's freevars table.
	closure []*Cell
}

// NewFunction creates a function object for compiled code c, closing over
// globals and (optionally) defaults/closure cells captured at the
// MAKE_FUNCTION instruction that created it.
func NewFunction(c *Code, globals *Dict) *Function {
	return &Function{Object: Object{typ: FunctionType, dict: NewDict()}, name: c.name, code: c, globals: globals}
}

// newBuiltinFunction returns a function object with the given name that
// invokes fn when called.
func newBuiltinFunction(name string, fn Func) *Function {
	return &Function{Object: Object{typ: FunctionType, dict: NewDict()}, fn: fn, name: name}
}

func toFunctionUnsafe(o *Object) *Function {
	return (*Function)(o.toPointer())
}

// ToObject upcasts f to an Object.
func (f *Function) ToObject() *Object {
	return &f.Object
}

// Name returns f's name.
func (f *Function) Name() string {
	return f.name
}

func functionCall(f *Frame, callable *Object, args Args, kwargs KWArgs) (*Object, *BaseException) {
	fun := toFunctionUnsafe(callable)
	if fun.code == nil {
		return fun.fn(f, args, kwargs)
	}
	return fun.code.Eval(f, fun.globals, fun, args, kwargs)
}

func functionGet(f *Frame, desc, instance *Object, owner *Type) (*Object, *BaseException) {
	if instance == nil || instance == None {
		return desc, nil
	}
	args := f.MakeArgs(3)
	args[0] = desc
	args[1] = instance
	args[2] = owner.ToObject()
	ret, raised := MethodType.Call(f, args, nil)
	f.FreeArgs(args)
	return ret, raised
}

func functionRepr(_ *Frame, o *Object) (*Object, *BaseException) {
	fun := toFunctionUnsafe(o)
	return NewStr(fmt.Sprintf("<function %s at %p>", fun.Name(), fun)).ToObject(), nil
}

// functionGetDefaults implements __defaults__, the tuple of default values
// bound to a function's positional-or-keyword parameters at MAKE_FUNCTION
// time, or None if it has none (inspect.signature relies on this).
func functionGetDefaults(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkMethodArgs(f, "__defaults__", args, FunctionType); raised != nil {
		return nil, raised
	}
	fun := toFunctionUnsafe(args[0])
	if fun.defaults == nil {
		return None, nil
	}
	return NewTuple(fun.defaults...).ToObject(), nil
}

// functionGetKwDefaults implements __kwdefaults__, the dict of default
// values bound to a function's keyword-only parameters, or None if it has
// none.
func functionGetKwDefaults(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkMethodArgs(f, "__kwdefaults__", args, FunctionType); raised != nil {
		return nil, raised
	}
	fun := toFunctionUnsafe(args[0])
	if fun.kwDefaults == nil {
		return None, nil
	}
	return fun.kwDefaults.ToObject(), nil
}

// functionGetClosure implements __closure__: the tuple of *Cell objects a
// nested function captured from its enclosing scope, or None for a
// function with no free variables.
func functionGetClosure(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkMethodArgs(f, "__closure__", args, FunctionType); raised != nil {
		return nil, raised
	}
	fun := toFunctionUnsafe(args[0])
	if len(fun.closure) == 0 {
		return None, nil
	}
	cells := make([]*Object, len(fun.closure))
	for i, c := range fun.closure {
		cells[i] = c.ToObject()
	}
	return NewTuple(cells...).ToObject(), nil
}

func newReadOnlyFunctionProperty(name string, get Func) *Object {
	return newProperty(newBuiltinFunction(name, get).ToObject(), nil, nil).ToObject()
}

func initFunctionType(dict map[string]*Object) {
	FunctionType.flags &^= typeFlagInstantiable | typeFlagBasetype
	dict["__defaults__"] = newReadOnlyFunctionProperty("__get_function___defaults__", functionGetDefaults)
	dict["__kwdefaults__"] = newReadOnlyFunctionProperty("__get_function___kwdefaults__", functionGetKwDefaults)
	dict["__closure__"] = newReadOnlyFunctionProperty("__get_function___closure__", functionGetClosure)
	FunctionType.slots.Call = &callSlot{functionCall}
	FunctionType.slots.Get = &getSlot{functionGet}
	FunctionType.slots.Repr = &unaryOpSlot{functionRepr}
}

// staticMethod represents Python 'staticmethod' objects.
type staticMethod struct {
	Object
	callable *Object
}

func newStaticMethod(callable *Object) *staticMethod {
	return &staticMethod{Object{typ: StaticMethodType}, callable}
}

func toStaticMethodUnsafe(o *Object) *staticMethod {
	return (*staticMethod)(o.toPointer())
}

// ToObject upcasts m to an Object.
func (m *staticMethod) ToObject() *Object {
	return &m.Object
}

func staticMethodGet(f *Frame, desc, _ *Object, _ *Type) (*Object, *BaseException) {
	m := toStaticMethodUnsafe(desc)
	if m.callable == nil {
		return nil, f.RaiseType(RuntimeErrorType, "uninitialized staticmethod object")
	}
	return m.callable, nil
}

func staticMethodInit(f *Frame, o *Object, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkFunctionArgs(f, "__init__", args, ObjectType); raised != nil {
		return nil, raised
	}
	toStaticMethodUnsafe(o).callable = args[0]
	return None, nil
}

func initStaticMethodType(map[string]*Object) {
	StaticMethodType.slots.Get = &getSlot{staticMethodGet}
	StaticMethodType.slots.Init = &initSlot{staticMethodInit}
}

// classMethod represents Python 'classmethod' objects.
type classMethod struct {
	Object
	callable *Object
}

func newClassMethod(callable *Object) *classMethod {
	return &classMethod{Object{typ: ClassMethodType}, callable}
}

func toClassMethodUnsafe(o *Object) *classMethod {
	return (*classMethod)(o.toPointer())
}

// ToObject upcasts m to an Object.
func (m *classMethod) ToObject() *Object {
	return &m.Object
}

func classMethodGet(f *Frame, desc, _ *Object, owner *Type) (*Object, *BaseException) {
	m := toClassMethodUnsafe(desc)
	if m.callable == nil {
		return nil, f.RaiseType(RuntimeErrorType, "uninitialized classmethod object")
	}
	args := f.MakeArgs(3)
	args[0] = m.callable
	args[1] = owner.ToObject()
	args[2] = args[1]
	ret, raised := MethodType.Call(f, args, nil)
	f.FreeArgs(args)
	return ret, raised
}

func classMethodInit(f *Frame, o *Object, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkFunctionArgs(f, "__init__", args, ObjectType); raised != nil {
		return nil, raised
	}
	toClassMethodUnsafe(o).callable = args[0]
	return None, nil
}

func initClassMethodType(map[string]*Object) {
	ClassMethodType.slots.Get = &getSlot{classMethodGet}
	ClassMethodType.slots.Init = &initSlot{classMethodInit}
}
