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

type typeFlag int

const (
	// typeFlagInstantiable is set when instances can be created via
	// __new__. NoneType and friends clear this bit since Go has no
	// tp_new == NULL equivalent.
	typeFlagInstantiable typeFlag = 1 << iota
	// typeFlagBasetype is set when the type may be used as a base class.
	typeFlagBasetype typeFlag = 1 << iota
	typeFlagDefault           = typeFlagInstantiable | typeFlagBasetype
)

// Type represents Python 'type' objects: spec.md §3's "type object". Bases
// are stored in user declaration order; mro holds the C3 linearisation
// computed once at class-creation time (spec.md §4.1).
type Type struct {
	Object
	name  string `attr:"__name__"`
	basis reflect.Type
	bases []*Type
	mro   []*Type
	flags typeFlag
	slots typeSlots
}

var basisTypes = map[reflect.Type]*Type{
	objectBasis: ObjectType,
	typeBasis:   TypeType,
}

// newClass creates a Python type with the given name, bases and class dict,
// equivalent to the three-argument form of Python's type() builtin.
func newClass(f *Frame, meta *Type, name string, bases []*Type, dict *Dict) (*Type, *BaseException) {
	if len(bases) == 0 {
		return nil, f.RaiseType(TypeErrorType, "class must have base classes")
	}
	var basis reflect.Type
	for _, base := range bases {
		if base.flags&typeFlagBasetype == 0 {
			return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("type '%s' is not an acceptable base type", base.Name()))
		}
		basis = basisSelect(basis, base.basis)
	}
	if basis == nil {
		return nil, f.RaiseType(TypeErrorType, "class layout error")
	}
	t := newType(meta, name, basis, bases, dict)
	slotsValue := reflect.ValueOf(&t.slots).Elem()
	for i := 0; i < numSlots; i++ {
		dictFunc, raised := dict.GetItemString(f, slotNames[i])
		if raised != nil {
			return nil, raised
		}
		if dictFunc != nil {
			slotField := slotsValue.Field(i)
			slotValue := reflect.New(slotField.Type().Elem())
			if slotValue.Interface().(slot).wrapCallable(dictFunc) {
				slotField.Set(slotValue)
			}
		}
	}
	if err := prepareType(t); err != "" {
		return nil, f.RaiseType(TypeErrorType, err)
	}
	mod, raised := dict.GetItemString(f, "__module__")
	if raised != nil {
		return nil, raised
	}
	if mod == nil {
		if raised := dict.SetItemString(f, "__module__", builtinStr.ToObject()); raised != nil {
			return nil, raised
		}
	}
	return t, nil
}

func newType(meta *Type, name string, basis reflect.Type, bases []*Type, dict *Dict) *Type {
	return &Type{Object: Object{typ: meta, dict: dict}, name: name, basis: basis, bases: bases, flags: typeFlagDefault}
}

func newBasisType(name string, basis reflect.Type, basisFunc interface{}, base *Type) *Type {
	if _, ok := basisTypes[basis]; ok {
		logFatal(fmt.Sprintf("type for basis already exists: %s", basis))
	}
	if basis.Kind() != reflect.Struct || basis.NumField() == 0 {
		logFatal(fmt.Sprintf("invalid basis for type %q", name))
	}
	if basis.Field(0).Type != base.basis {
		logFatal(fmt.Sprintf("1st field of basis must be base type's basis, not %s", basis.Field(0).Type))
	}
	basisFuncValue := reflect.ValueOf(basisFunc)
	t := newType(TypeType, name, basis, []*Type{base}, nil)
	t.slots.Basis = &basisSlot{func(o *Object) reflect.Value {
		return basisFuncValue.Call([]reflect.Value{reflect.ValueOf(o)})[0].Elem()
	}}
	basisTypes[basis] = t
	return t
}

func newSimpleType(name string, base *Type) *Type {
	return newType(TypeType, name, base.basis, []*Type{base}, nil)
}

type builtinTypeInit func(map[string]*Object)

// prepareBuiltinType populates dict with struct field descriptors and slot
// wrappers for a builtin type, then finalizes its MRO and slot table.
func prepareBuiltinType(typ *Type, init builtinTypeInit) {
	dict := map[string]*Object{"__module__": builtinStr.ToObject()}
	if init != nil {
		init(dict)
	}
	if basis := typ.basis; basisTypes[basis] == typ {
		numFields := basis.NumField()
		for i := 0; i < numFields; i++ {
			field := basis.Field(i)
			if attr := field.Tag.Get("attr"); attr != "" {
				mode := fieldDescriptorRO
				if field.Tag.Get("attr_mode") == "rw" {
					mode = fieldDescriptorRW
				}
				dict[attr] = makeStructFieldDescriptor(typ, field.Name, attr, mode)
			}
		}
	}
	slotsValue := reflect.ValueOf(&typ.slots).Elem()
	for i := 0; i < numSlots; i++ {
		slotField := slotsValue.Field(i)
		if !slotField.IsNil() {
			if fun := slotField.Interface().(slot).makeCallable(typ, slotNames[i]); fun != nil {
				dict[slotNames[i]] = fun
			}
		}
	}
	typ.setDict(newStringDict(dict))
	if err := prepareType(typ); err != "" {
		logFatal(err)
	}
}

// prepareType computes typ's MRO and inherits flags/slots from its bases,
// implementing the "slot inheritance" algorithm from spec.md §4.1.
func prepareType(typ *Type) string {
	typ.mro = mroCalc(typ)
	if typ.mro == nil {
		return fmt.Sprintf("cannot create a consistent method resolution order (MRO) for bases of %s", typ.name)
	}
	for _, base := range typ.mro {
		if base.flags&typeFlagInstantiable == 0 {
			typ.flags &^= typeFlagInstantiable
		}
		if base.flags&typeFlagBasetype == 0 {
			typ.flags &^= typeFlagBasetype
		}
	}
	slotsValue := reflect.ValueOf(&typ.slots).Elem()
	for i := 0; i < numSlots; i++ {
		slotField := slotsValue.Field(i)
		if slotField.IsNil() {
			for _, base := range typ.mro {
				baseSlot := reflect.ValueOf(base.slots).Field(i)
				if !baseSlot.IsNil() {
					slotField.Set(baseSlot)
					break
				}
			}
		}
	}
	return ""
}

// mroMerge implements the C3 linearisation merge step (spec.md §4.1).
// Precondition: at least one of seqs is non-empty.
func mroMerge(seqs [][]*Type) []*Type {
	var res []*Type
	numSeqs := len(seqs)
	hasNonEmpty := true
	for hasNonEmpty {
		var cand *Type
		for i := 0; i < numSeqs && cand == nil; i++ {
			seq := seqs[i]
			if len(seq) == 0 {
				continue
			}
			cand = seq[0]
		RejectCandidate:
			for _, seq := range seqs {
				for j := 1; j < len(seq); j++ {
					if seq[j] == cand {
						cand = nil
						break RejectCandidate
					}
				}
			}
		}
		if cand == nil {
			return nil
		}
		res = append(res, cand)
		hasNonEmpty = false
		for i, seq := range seqs {
			if len(seq) > 0 {
				if seq[0] == cand {
					seqs[i] = seq[1:]
				}
				if len(seqs[i]) > 0 {
					hasNonEmpty = true
				}
			}
		}
	}
	return res
}

func mroCalc(t *Type) []*Type {
	seqs := [][]*Type{{t}}
	for _, b := range t.bases {
		seqs = append(seqs, b.mro)
	}
	seqs = append(seqs, t.bases)
	return mroMerge(seqs)
}

func toTypeUnsafe(o *Object) *Type {
	return (*Type)(o.toPointer())
}

// ToObject upcasts t to an Object.
func (t *Type) ToObject() *Object {
	return &t.Object
}

// Name returns t's short (unqualified) name.
func (t *Type) Name() string {
	return t.name
}

// FullName returns t's fully qualified name, including __module__, the way
// tracebacks render exception types.
func (t *Type) FullName(f *Frame) (string, *BaseException) {
	moduleAttr, raised := t.Dict().GetItemString(f, "__module__")
	if raised != nil {
		return "", raised
	}
	if moduleAttr != nil && moduleAttr.isInstance(StrType) {
		if s := toStrUnsafe(moduleAttr).Value(); s != "builtins" {
			return fmt.Sprintf("%s.%s", s, t.name), nil
		}
	}
	return t.name, nil
}

func (t *Type) isSubclass(super *Type) bool {
	for _, b := range t.mro {
		if b == super {
			return true
		}
	}
	return false
}

func (t *Type) mroLookup(f *Frame, name *Str) (*Object, *BaseException) {
	for _, base := range t.mro {
		v, raised := base.Dict().GetItem(f, name.ToObject())
		if v != nil || raised != nil {
			return v, raised
		}
	}
	return nil, nil
}

var typeBasis = reflect.TypeOf(Type{})

func typeBasisFunc(o *Object) reflect.Value {
	return reflect.ValueOf(toTypeUnsafe(o)).Elem()
}

// TypeType is the object representing the Python 'type' type.
//
// Constructed by hand since newType depends on TypeType already existing.
var TypeType = &Type{
	name:  "type",
	basis: typeBasis,
	bases: []*Type{ObjectType},
	flags: typeFlagDefault,
	slots: typeSlots{Basis: &basisSlot{typeBasisFunc}},
}

func typeCall(f *Frame, callable *Object, args Args, kwargs KWArgs) (*Object, *BaseException) {
	t := toTypeUnsafe(callable)
	newFunc := t.slots.New
	if newFunc == nil {
		return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("cannot create '%s' instances", t.Name()))
	}
	o, raised := newFunc.Fn(f, t, args, kwargs)
	if raised != nil {
		return nil, raised
	}
	if init := o.Type().slots.Init; init != nil {
		if _, raised := init.Fn(f, o, args, kwargs); raised != nil {
			return nil, raised
		}
	}
	return o, nil
}

// typeGetAttribute mirrors objectGetAttribute but looks up class attributes
// via MRO rather than an instance dict, and consults the metaclass for
// descriptors (spec.md §4.1).
func typeGetAttribute(f *Frame, o *Object, name *Str) (*Object, *BaseException) {
	t := toTypeUnsafe(o)
	var metaGet *getSlot
	metaType := t.typ
	metaAttr, raised := metaType.mroLookup(f, name)
	if raised != nil {
		return nil, raised
	}
	if metaAttr != nil {
		metaGet = metaAttr.typ.slots.Get
		if metaGet != nil && (metaAttr.typ.slots.Set != nil || metaAttr.typ.slots.Delete != nil) {
			return metaGet.Fn(f, metaAttr, t.ToObject(), metaType)
		}
	}
	attr, raised := t.mroLookup(f, name)
	if raised != nil {
		return nil, raised
	}
	if attr != nil {
		if get := attr.typ.slots.Get; get != nil {
			return get.Fn(f, attr, None, t)
		}
		return attr, nil
	}
	if metaGet != nil {
		return metaGet.Fn(f, metaAttr, t.ToObject(), metaType)
	}
	if metaAttr != nil {
		return metaAttr, nil
	}
	return nil, f.RaiseType(AttributeErrorType, fmt.Sprintf("type object '%s' has no attribute '%s'", t.Name(), name.Value()))
}

func typeNew(f *Frame, t *Type, args Args, kwargs KWArgs) (*Object, *BaseException) {
	switch len(args) {
	case 0:
		return nil, f.RaiseType(TypeErrorType, "type() takes 1 or 3 arguments")
	case 1:
		return args[0].typ.ToObject(), nil
	}
	if raised := checkMethodArgs(f, "__new__", args, StrType, TupleType, DictType); raised != nil {
		return nil, raised
	}
	name := toStrUnsafe(args[0]).Value()
	bases := toTupleUnsafe(args[1]).elems
	dict := toDictUnsafe(args[2])
	baseTypes := make([]*Type, len(bases))
	meta := t
	for i, o := range bases {
		if !o.isInstance(TypeType) {
			return nil, f.RaiseType(TypeErrorType, "bases must be types")
		}
		if o.typ.isSubclass(meta) {
			meta = o.typ
		} else if !meta.isSubclass(o.typ) {
			return nil, f.RaiseType(TypeErrorType, "metaclass conflict: the metaclass of a derived class must be a (non-strict) subclass of the metaclasses of all its bases")
		}
		baseTypes[i] = toTypeUnsafe(o)
	}
	ret, raised := newClass(f, meta, name, baseTypes, dict)
	if raised != nil {
		return nil, raised
	}
	return ret.ToObject(), nil
}

func typeRepr(f *Frame, o *Object) (*Object, *BaseException) {
	s, raised := toTypeUnsafe(o).FullName(f)
	if raised != nil {
		return nil, raised
	}
	return NewStr(fmt.Sprintf("<class '%s'>", s)).ToObject(), nil
}

func initTypeType(map[string]*Object) {
	TypeType.typ = TypeType
	TypeType.slots.Call = &callSlot{typeCall}
	TypeType.slots.GetAttribute = &getAttributeSlot{typeGetAttribute}
	TypeType.slots.New = &newSlot{typeNew}
	TypeType.slots.Repr = &unaryOpSlot{typeRepr}
}

// basisParent returns basis's immediate ancestor basis type (its first
// field), or nil at the root (objectBasis).
func basisParent(basis reflect.Type) reflect.Type {
	if basis == objectBasis {
		return nil
	}
	return basis.Field(0).Type
}

// basisSelect returns whichever of b1, b2 is the more derived basis, or nil
// if neither is an ancestor of the other. b1 may be nil, in which case b2
// is always returned.
func basisSelect(b1, b2 reflect.Type) reflect.Type {
	if b1 == nil {
		return b2
	}
	for basis := b1; basis != nil; basis = basisParent(basis) {
		if basis == b2 {
			return b1
		}
	}
	for basis := b2; basis != nil; basis = basisParent(basis) {
		if basis == b1 {
			return b2
		}
	}
	return nil
}
