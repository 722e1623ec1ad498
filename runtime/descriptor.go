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

// Property represents Python 'property' objects: a descriptor built from up
// to three callables invoked on get/set/delete (spec.md §4.1 descriptor
// protocol).
type Property struct {
	Object
	get, set, del *Object
}

func newProperty(get, set, del *Object) *Property {
	return &Property{Object: Object{typ: PropertyType}, get: get, set: set, del: del}
}

func toPropertyUnsafe(o *Object) *Property {
	return (*Property)(o.toPointer())
}

// ToObject upcasts p to an Object.
func (p *Property) ToObject() *Object {
	return &p.Object
}

// PropertyType corresponds to the Python type 'property'.
var PropertyType = newBasisType("property", reflect.TypeOf(Property{}), toPropertyUnsafe, ObjectType)

func propertyDelete(f *Frame, desc, instance *Object) *BaseException {
	p := toPropertyUnsafe(desc)
	if p.del == nil {
		return f.RaiseType(AttributeErrorType, "can't delete attribute")
	}
	_, raised := p.del.Call(f, Args{instance}, nil)
	return raised
}

func propertyGet(f *Frame, desc, instance *Object, owner *Type) (*Object, *BaseException) {
	p := toPropertyUnsafe(desc)
	if instance == nil {
		return desc, nil
	}
	if p.get == nil {
		return nil, f.RaiseType(AttributeErrorType, "unreadable attribute")
	}
	return p.get.Call(f, Args{instance}, nil)
}

func propertyInit(f *Frame, o *Object, args Args, kwargs KWArgs) (*Object, *BaseException) {
	expectedTypes := []*Type{ObjectType, ObjectType, ObjectType}
	argc := len(args)
	if argc < len(expectedTypes) {
		expectedTypes = expectedTypes[:argc]
	}
	if raised := checkMethodArgs(f, "__init__", args, expectedTypes...); raised != nil {
		return nil, raised
	}
	p := toPropertyUnsafe(o)
	if argc > 0 {
		p.get = args[0]
	}
	if argc > 1 {
		p.set = args[1]
	}
	if argc > 2 {
		p.del = args[2]
	}
	return None, nil
}

func propertySet(f *Frame, desc, instance, value *Object) *BaseException {
	p := toPropertyUnsafe(desc)
	if p.set == nil {
		return f.RaiseType(AttributeErrorType, "can't set attribute")
	}
	_, raised := p.set.Call(f, Args{instance, value}, nil)
	return raised
}

func initPropertyType(dict map[string]*Object) {
	PropertyType.slots.Delete = &deleteSlot{propertyDelete}
	PropertyType.slots.Get = &getSlot{propertyGet}
	PropertyType.slots.Init = &initSlot{propertyInit}
	PropertyType.slots.Set = &setSlot{propertySet}
}

// fieldDescriptorMode distinguishes read-only struct-field descriptors
// (grumpy's original behavior) from read-write ones: the latter allow
// Python-level assignment to write back into the Go struct field via
// reflect, used for attributes like BaseException.args that user code can
// reassign after construction.
type fieldDescriptorMode int

const (
	fieldDescriptorRO fieldDescriptorMode = iota
	fieldDescriptorRW
)

// makeStructFieldDescriptor builds a property-like descriptor exposing the
// named field of t's basis struct under propertyName, honoring mode to
// decide whether Python code may assign to it.
func makeStructFieldDescriptor(t *Type, fieldName, propertyName string, mode fieldDescriptorMode) *Object {
	field, ok := t.basis.FieldByName(fieldName)
	if !ok {
		logFatal(fmt.Sprintf("no field %q on basis %s", fieldName, t.basis))
	}
	getName := fmt.Sprintf("__get_%s_%s__", t.name, propertyName)
	getFunc := newBuiltinFunction(getName, func(f *Frame, args Args, kwargs KWArgs) (*Object, *BaseException) {
		if raised := checkMethodArgs(f, getName, args, t); raised != nil {
			return nil, raised
		}
		v := t.slots.Basis.Fn(args[0]).FieldByIndex(field.Index)
		return WrapNative(f, v)
	}).ToObject()
	var setFunc *Object
	if mode == fieldDescriptorRW {
		setName := fmt.Sprintf("__set_%s_%s__", t.name, propertyName)
		setFunc = newBuiltinFunction(setName, func(f *Frame, args Args, kwargs KWArgs) (*Object, *BaseException) {
			if raised := checkMethodArgs(f, setName, args, t, ObjectType); raised != nil {
				return nil, raised
			}
			fieldValue := t.slots.Basis.Fn(args[0]).FieldByIndex(field.Index)
			if raised := setNativeField(f, fieldValue, args[1]); raised != nil {
				return nil, raised
			}
			return None, nil
		}).ToObject()
	}
	return newProperty(getFunc, setFunc, nil).ToObject()
}

// setNativeField assigns the Python value val into the Go struct field fv,
// the inverse of WrapNative for the small set of field kinds this codebase's
// attr-tagged struct fields actually use.
func setNativeField(f *Frame, fv reflect.Value, val *Object) *BaseException {
	switch fv.Kind() {
	case reflect.String:
		s, raised := ToStr(f, val)
		if raised != nil {
			return raised
		}
		fv.SetString(s.Value())
		return nil
	case reflect.Bool:
		b, raised := IsTrue(f, val)
		if raised != nil {
			return raised
		}
		fv.SetBool(b)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, raised := ToIntValue(f, val)
		if raised != nil {
			return raised
		}
		fv.SetInt(int64(i))
		return nil
	}
	if fv.Type() == reflect.TypeOf((*Object)(nil)) {
		fv.Set(reflect.ValueOf(val))
		return nil
	}
	if fv.Kind() == reflect.Ptr {
		if basisType, ok := basisTypes[fv.Type().Elem()]; ok {
			if val == None {
				fv.Set(reflect.Zero(fv.Type()))
				return nil
			}
			if !val.isInstance(basisType) {
				return f.RaiseType(TypeErrorType, fmt.Sprintf("expected %s, got %s", basisType.name, val.typ.name))
			}
			fv.Set(reflect.NewAt(fv.Type().Elem(), val.toPointer()))
			return nil
		}
	}
	return f.RaiseType(TypeErrorType, fmt.Sprintf("cannot assign to field of type %s", fv.Type()))
}
