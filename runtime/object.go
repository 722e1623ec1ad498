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
	"sync/atomic"
	"unsafe"
)

var (
	objectBasis = reflect.TypeOf(Object{})

	// ObjectType is the object representing the Python 'object' type.
	//
	// Constructed by hand rather than via newBasisType to avoid an
	// initialization cycle between TypeType and ObjectType.
	ObjectType = &Type{
		name:  "object",
		basis: objectBasis,
		flags: typeFlagDefault,
		slots: typeSlots{Basis: &basisSlot{objectBasisFunc}},
	}
)

// Object is the header embedded as the first field of every Python value's
// Go representation. It plays the role spec.md's "heap object" plays in the
// data model: a type pointer, an optional per-instance attribute dict, and
// an optional weakref record. There is deliberately no refcount field here;
// ownership is delegated to the host Go runtime's garbage collector (see
// DESIGN.md's cycle-collector entry for why that substitution preserves the
// liveness invariant spec.md §8 requires).
type Object struct {
	typ  *Type `attr:"__class__"`
	dict *Dict
	ref  *WeakRef
}

func newObject(t *Type) *Object {
	var dict *Dict
	if t != ObjectType {
		dict = NewDict()
	}
	o := (*Object)(unsafe.Pointer(reflect.New(t.basis).Pointer()))
	o.typ = t
	o.setDict(dict)
	return o
}

// Call invokes the callable Python object o with the given positional and
// keyword args. args must be non-nil (but may be empty); kwargs may be nil.
func (o *Object) Call(f *Frame, args Args, kwargs KWArgs) (*Object, *BaseException) {
	call := o.Type().slots.Call
	if call == nil {
		return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("'%s' object is not callable", o.Type().Name()))
	}
	return call.Fn(f, o, args, kwargs)
}

// Dict returns o's instance attribute dict, a.k.a. __dict__. May be nil.
func (o *Object) Dict() *Dict {
	p := (*unsafe.Pointer)(unsafe.Pointer(&o.dict))
	return (*Dict)(atomic.LoadPointer(p))
}

func (o *Object) setDict(d *Dict) {
	p := (*unsafe.Pointer)(unsafe.Pointer(&o.dict))
	atomic.StorePointer(p, unsafe.Pointer(d))
}

// String renders o for Go-level debugging (fmt, logrus fields, and the
// like); it is not the Python str() protocol, which lives in core.go's Str
// dispatch function.
func (o *Object) String() string {
	if o == nil {
		return "nil"
	}
	s, raised := Str(NewRootFrame(), o)
	if raised != nil {
		return fmt.Sprintf("<%s object (str raised %s)>", o.typ.Name(), raised.typ.Name())
	}
	return s.Value()
}

// Type returns the Python type of o.
func (o *Object) Type() *Type {
	return o.typ
}

func (o *Object) toPointer() unsafe.Pointer {
	return unsafe.Pointer(o)
}

func (o *Object) isInstance(t *Type) bool {
	return o.typ.isSubclass(t)
}

func objectBasisFunc(o *Object) reflect.Value {
	return reflect.ValueOf(o).Elem()
}

func objectDelAttr(f *Frame, o *Object, name *Str) *BaseException {
	desc, raised := o.typ.mroLookup(f, name)
	if raised != nil {
		return raised
	}
	if desc != nil {
		if del := desc.Type().slots.Delete; del != nil {
			return del.Fn(f, desc, o)
		}
	}
	deleted := false
	if d := o.Dict(); d != nil {
		deleted, raised = d.DelItem(f, name.ToObject())
		if raised != nil {
			return raised
		}
	}
	if !deleted {
		return f.RaiseType(AttributeErrorType, fmt.Sprintf("'%s' object has no attribute '%s'", o.typ.Name(), name.Value()))
	}
	return nil
}

// objectGetAttribute implements the descriptor-invoking attribute lookup
// algorithm from spec.md §4.1: data descriptor in the MRO, then instance
// dict, then non-data descriptor, then plain class attribute, else
// AttributeError (the __getattr__ fallback is layered on top by GetAttr in
// core.go).
func objectGetAttribute(f *Frame, o *Object, name *Str) (*Object, *BaseException) {
	var typeGet *getSlot
	typeAttr, raised := o.typ.mroLookup(f, name)
	if raised != nil {
		return nil, raised
	}
	if typeAttr != nil {
		typeGet = typeAttr.typ.slots.Get
		if typeGet != nil && (typeAttr.typ.slots.Set != nil || typeAttr.typ.slots.Delete != nil) {
			return typeGet.Fn(f, typeAttr, o, o.Type())
		}
	}
	if d := o.Dict(); d != nil {
		value, raised := d.GetItem(f, name.ToObject())
		if value != nil || raised != nil {
			return value, raised
		}
	}
	if typeGet != nil {
		return typeGet.Fn(f, typeAttr, o, o.Type())
	}
	if typeAttr != nil {
		return typeAttr, nil
	}
	return nil, f.RaiseType(AttributeErrorType, fmt.Sprintf("'%s' object has no attribute '%s'", o.typ.Name(), name.Value()))
}

func objectHash(f *Frame, o *Object) (*Object, *BaseException) {
	return NewInt(int(uintptr(o.toPointer()))).ToObject(), nil
}

func objectNew(f *Frame, t *Type, _ Args, _ KWArgs) (*Object, *BaseException) {
	if t.flags&typeFlagInstantiable == 0 {
		return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("cannot create '%s' instances", t.Name()))
	}
	return newObject(t), nil
}

func objectSetAttr(f *Frame, o *Object, name *Str, value *Object) *BaseException {
	if typeAttr, raised := o.typ.mroLookup(f, name); raised != nil {
		return raised
	} else if typeAttr != nil {
		if typeSet := typeAttr.typ.slots.Set; typeSet != nil {
			return typeSet.Fn(f, typeAttr, o, value)
		}
	}
	if d := o.Dict(); d != nil {
		if raised := d.SetItem(f, name.ToObject(), value); raised == nil || !raised.isInstance(KeyErrorType) {
			return raised
		}
	}
	return f.RaiseType(AttributeErrorType, fmt.Sprintf("'%s' object has no attribute '%s'", o.typ.Name(), name.Value()))
}

func objectRepr(f *Frame, o *Object) (*Object, *BaseException) {
	return NewStr(fmt.Sprintf("<%s object at %p>", o.typ.Name(), o)).ToObject(), nil
}

func objectEq(f *Frame, v, w *Object) (*Object, *BaseException) {
	if v == w {
		return True.ToObject(), nil
	}
	return NotImplemented, nil
}

func objectNE(f *Frame, v, w *Object) (*Object, *BaseException) {
	eq, raised := objectEq(f, v, w)
	if raised != nil {
		return nil, raised
	}
	if eq == NotImplemented {
		return NotImplemented, nil
	}
	return GetBool(!toBoolUnsafe(eq).Value()).ToObject(), nil
}

func initObjectType(dict map[string]*Object) {
	ObjectType.typ = TypeType
	dict["__dict__"] = newProperty(newBuiltinFunction("_get_dict", objectGetDict).ToObject(), newBuiltinFunction("_set_dict", objectSetDict).ToObject(), nil).ToObject()
	ObjectType.slots.DelAttr = &delAttrSlot{objectDelAttr}
	ObjectType.slots.Eq = &binaryOpSlot{objectEq}
	ObjectType.slots.NE = &binaryOpSlot{objectNE}
	ObjectType.slots.GetAttribute = &getAttributeSlot{objectGetAttribute}
	ObjectType.slots.Hash = &unaryOpSlot{objectHash}
	ObjectType.slots.New = &newSlot{objectNew}
	ObjectType.slots.Repr = &unaryOpSlot{objectRepr}
	ObjectType.slots.SetAttr = &setAttrSlot{objectSetAttr}
}

func objectGetDict(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkMethodArgs(f, "_get_dict", args, ObjectType); raised != nil {
		return nil, raised
	}
	o := args[0]
	d := o.Dict()
	if d == nil {
		return nil, f.RaiseType(AttributeErrorType, fmt.Sprintf("'%s' object has no attribute '__dict__'", o.typ.Name()))
	}
	return d.ToObject(), nil
}

func objectSetDict(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkMethodArgs(f, "_set_dict", args, ObjectType, DictType); raised != nil {
		return nil, raised
	}
	o := args[0]
	if o.Type() == ObjectType {
		return nil, f.RaiseType(AttributeErrorType, fmt.Sprintf("'%s' object has no attribute '__dict__'", o.typ.Name()))
	}
	o.setDict(toDictUnsafe(args[1]))
	return None, nil
}
