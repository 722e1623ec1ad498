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

// This file holds the handful of singleton objects that don't warrant their
// own file: None, NotImplemented, Ellipsis, and the UnboundLocal sentinel
// used by generated code for as-yet-unassigned locals (spec.md §4.4).

var (
	// EllipsisType is the object representing the Python 'ellipsis' type.
	EllipsisType = newSimpleType("ellipsis", ObjectType)
	// Ellipsis is the singleton ellipsis object representing the Python
	// '...' literal.
	Ellipsis = &Object{typ: EllipsisType}
	// NoneType is the object representing the Python 'NoneType' type.
	NoneType = newSimpleType("NoneType", ObjectType)
	// None is the singleton NoneType object representing the Python 'None'
	// object.
	None = &Object{typ: NoneType}
	// NotImplementedType is the object representing the Python
	// 'NotImplementedType' type.
	NotImplementedType = newSimpleType("NotImplementedType", ObjectType)
	// NotImplemented is the singleton NotImplementedType object returned by
	// binary operator slots that don't support the operand types given.
	NotImplemented = newObject(NotImplementedType)

	unboundLocalType = newSimpleType("UnboundLocalType", ObjectType)
	// UnboundLocal is the sentinel value held by a frame's local variable
	// slots before they are first assigned. Reading one raises
	// UnboundLocalError (spec.md §4.4); it is never visible to Python code.
	UnboundLocal = newObject(unboundLocalType)
)

func ellipsisRepr(*Frame, *Object) (*Object, *BaseException) {
	return NewStr("Ellipsis").ToObject(), nil
}

func noneRepr(*Frame, *Object) (*Object, *BaseException) {
	return NewStr("None").ToObject(), nil
}

func notImplementedRepr(*Frame, *Object) (*Object, *BaseException) {
	return NewStr("NotImplemented").ToObject(), nil
}

func initEllipsisType(map[string]*Object) {
	EllipsisType.flags &^= typeFlagInstantiable | typeFlagBasetype
	EllipsisType.slots.Repr = &unaryOpSlot{ellipsisRepr}
}

func initNoneType(map[string]*Object) {
	NoneType.flags &^= typeFlagInstantiable | typeFlagBasetype
	NoneType.slots.Repr = &unaryOpSlot{noneRepr}
}

func initNotImplementedType(map[string]*Object) {
	NotImplementedType.flags &^= typeFlagInstantiable | typeFlagBasetype
	NotImplementedType.slots.Repr = &unaryOpSlot{notImplementedRepr}
}

func initUnboundLocalType(map[string]*Object) {
	unboundLocalType.flags &^= typeFlagInstantiable | typeFlagBasetype
}
