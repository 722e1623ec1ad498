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
	"bytes"
	"fmt"
	"reflect"

	"github.com/dolthub/swiss"
)

var (
	// DictType is the object representing the Python 'dict' type.
	DictType              = newBasisType("dict", reflect.TypeOf(Dict{}), toDictUnsafe, ObjectType)
	dictItemIteratorType  = newBasisType("dict_itemiterator", reflect.TypeOf(dictItemIterator{}), toDictItemIteratorUnsafe, ObjectType)
	dictKeyIteratorType   = newBasisType("dict_keyiterator", reflect.TypeOf(dictKeyIterator{}), toDictKeyIteratorUnsafe, ObjectType)
	dictValueIteratorType = newBasisType("dict_valueiterator", reflect.TypeOf(dictValueIterator{}), toDictValueIteratorUnsafe, ObjectType)
)

// dictEntry is one key/value pair. Entries within a hash-collision chain are
// compared with the Python-level __eq__ slot, not Go ==, since swiss.Map's
// own key comparison only ever sees the int64 hash bucket.
type dictEntry struct {
	hash  int64
	key   *Object
	value *Object
}

// Dict represents Python 'dict' objects. The hash table itself is backed by
// github.com/dolthub/swiss's SIMD-friendly open-addressing map, keyed by
// the Python-computed hash; entries that collide on hash are chained in a
// short slice and disambiguated with Eq, preserving Python's "hash then
// eq" lookup semantics on top of a table that only knows about int64 keys.
type Dict struct {
	Object
	table *swiss.Map[int64, []*dictEntry]
	// mutex serializes structural mutation. Reentrant because hash/eq
	// computation during lookup may recursively call back into SetItem or
	// DelItem (e.g. via a custom __hash__ or __eq__).
	mutex recursiveMutex
	// version is incremented on every structural mutation, used to detect
	// concurrent modification during iteration (PEP 509's rationale).
	version int64
	length  int
}

// NewDict returns an empty Dict.
func NewDict() *Dict {
	return &Dict{Object: Object{typ: DictType}, table: swiss.NewMap[int64, []*dictEntry](8)}
}

func newStringDict(items map[string]*Object) *Dict {
	d := NewDict()
	for key, value := range items {
		h := int64(hashString(key))
		d.table.Put(h, append(d.table.GetOrZero(h), &dictEntry{h, NewStr(key).ToObject(), value}))
		d.length++
	}
	return d
}

func toDictUnsafe(o *Object) *Dict {
	return (*Dict)(o.toPointer())
}

// ToObject upcasts d to an Object.
func (d *Dict) ToObject() *Object {
	return &d.Object
}

// Len returns the number of entries in d.
func (d *Dict) Len() int {
	return d.length
}

func (d *Dict) incVersion() {
	d.version++
}

// lookup returns the chain slot index (or -1) and the chain itself for key
// within its hash bucket. Caller must hold d.mutex.
func (d *Dict) lookup(f *Frame, hash int64, key *Object) (int, []*dictEntry, *BaseException) {
	chain, _ := d.table.Get(hash)
	for i, e := range chain {
		if e.hash == hash {
			eq, raised := Eq(f, e.key, key)
			if raised != nil {
				return -1, chain, raised
			}
			ok, raised := IsTrue(f, eq)
			if raised != nil {
				return -1, chain, raised
			}
			if ok {
				return i, chain, nil
			}
		}
	}
	return -1, chain, nil
}

// GetItem looks up key in d, returning the associated value or nil if key is
// not present.
func (d *Dict) GetItem(f *Frame, key *Object) (*Object, *BaseException) {
	hashObj, raised := Hash(f, key)
	if raised != nil {
		return nil, raised
	}
	d.mutex.Lock(f)
	idx, chain, raised := d.lookup(f, int64(hashObj.Value()), key)
	d.mutex.Unlock(f)
	if raised != nil {
		return nil, raised
	}
	if idx < 0 {
		return nil, nil
	}
	return chain[idx].value, nil
}

// GetItemString looks up key in d, returning the associated value or nil if
// key is not present in d.
func (d *Dict) GetItemString(f *Frame, key string) (*Object, *BaseException) {
	return d.GetItem(f, NewStr(key).ToObject())
}

// SetItem associates value with key in d.
func (d *Dict) SetItem(f *Frame, key, value *Object) *BaseException {
	hashObj, raised := Hash(f, key)
	if raised != nil {
		return raised
	}
	hash := int64(hashObj.Value())
	d.mutex.Lock(f)
	defer d.mutex.Unlock(f)
	idx, chain, raised := d.lookup(f, hash, key)
	if raised != nil {
		return raised
	}
	if idx >= 0 {
		chain[idx].value = value
	} else {
		chain = append(chain, &dictEntry{hash, key, value})
		d.length++
		d.incVersion()
	}
	d.table.Put(hash, chain)
	return nil
}

// SetItemString associates value with key in d.
func (d *Dict) SetItemString(f *Frame, key string, value *Object) *BaseException {
	return d.SetItem(f, NewStr(key).ToObject(), value)
}

// DelItem removes the entry associated with key from d. It returns true if an
// item was removed, or false if it was not present.
func (d *Dict) DelItem(f *Frame, key *Object) (bool, *BaseException) {
	hashObj, raised := Hash(f, key)
	if raised != nil {
		return false, raised
	}
	hash := int64(hashObj.Value())
	d.mutex.Lock(f)
	defer d.mutex.Unlock(f)
	idx, chain, raised := d.lookup(f, hash, key)
	if raised != nil {
		return false, raised
	}
	if idx < 0 {
		return false, nil
	}
	chain = append(chain[:idx], chain[idx+1:]...)
	if len(chain) == 0 {
		d.table.Delete(hash)
	} else {
		d.table.Put(hash, chain)
	}
	d.length--
	d.incVersion()
	return true, nil
}

// DelItemString removes the entry associated with key from d.
func (d *Dict) DelItemString(f *Frame, key string) (bool, *BaseException) {
	return d.DelItem(f, NewStr(key).ToObject())
}

// Pop looks up key in d, returning and removing the associated value if it
// exists, or nil if key is not present.
func (d *Dict) Pop(f *Frame, key *Object) (*Object, *BaseException) {
	v, raised := d.GetItem(f, key)
	if raised != nil || v == nil {
		return nil, raised
	}
	if _, raised := d.DelItem(f, key); raised != nil {
		return nil, raised
	}
	return v, nil
}

// entries returns a snapshot slice of every entry in d. Caller must hold
// d.mutex for a consistent view, or tolerate iterating a stale snapshot.
func (d *Dict) entries() []*dictEntry {
	var all []*dictEntry
	d.table.Iter(func(_ int64, chain []*dictEntry) bool {
		all = append(all, chain...)
		return false
	})
	return all
}

// Keys returns a list containing all the keys in d.
func (d *Dict) Keys(f *Frame) *List {
	d.mutex.Lock(f)
	entries := d.entries()
	d.mutex.Unlock(f)
	keys := make([]*Object, len(entries))
	for i, e := range entries {
		keys[i] = e.key
	}
	return NewList(keys...)
}

// Update copies the items from the mapping or sequence of 2-tuples o into d.
func (d *Dict) Update(f *Frame, o *Object) (raised *BaseException) {
	var iter *Object
	if o.isInstance(DictType) {
		d2 := toDictUnsafe(o)
		d2.mutex.Lock(f)
		entries := d2.entries()
		d2.mutex.Unlock(f)
		for _, e := range entries {
			if raised := d.SetItem(f, e.key, e.value); raised != nil {
				return raised
			}
		}
		return nil
	}
	iter, raised = Iter(f, o)
	if raised != nil {
		return raised
	}
	return seqForEach(f, iter, func(item *Object) *BaseException {
		return seqApply(f, item, func(elems []*Object, _ bool) *BaseException {
			if numElems := len(elems); numElems != 2 {
				format := "dictionary update sequence element has length %d; 2 is required"
				return f.RaiseType(ValueErrorType, fmt.Sprintf(format, numElems))
			}
			return d.SetItem(f, elems[0], elems[1])
		})
	})
}

func dictsAreEqual(f *Frame, d1, d2 *Dict) (bool, *BaseException) {
	if d1 == d2 {
		return true, nil
	}
	d1.mutex.Lock(f)
	entries := d1.entries()
	v1 := d1.version
	len1 := d1.length
	d1.mutex.Unlock(f)
	d2.mutex.Lock(f)
	v2 := d2.version
	len2 := d2.length
	d2.mutex.Unlock(f)
	if len1 != len2 {
		return false, nil
	}
	result := true
	for _, e := range entries {
		if !result {
			break
		}
		v, raised := d2.GetItem(f, e.key)
		if raised != nil {
			return false, raised
		}
		if v == nil {
			result = false
			continue
		}
		eq, raised := Eq(f, e.value, v)
		if raised != nil {
			return false, raised
		}
		result, raised = IsTrue(f, eq)
		if raised != nil {
			return false, raised
		}
	}
	if d1.version != v1 || d2.version != v2 {
		return false, f.RaiseType(RuntimeErrorType, "dictionary changed during iteration")
	}
	return result, nil
}

func dictClear(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkMethodArgs(f, "clear", args, DictType); raised != nil {
		return nil, raised
	}
	d := toDictUnsafe(args[0])
	d.mutex.Lock(f)
	d.table = swiss.NewMap[int64, []*dictEntry](8)
	d.length = 0
	d.incVersion()
	d.mutex.Unlock(f)
	return None, nil
}

func dictContains(f *Frame, seq, value *Object) (*Object, *BaseException) {
	item, raised := toDictUnsafe(seq).GetItem(f, value)
	if raised != nil {
		return nil, raised
	}
	return GetBool(item != nil).ToObject(), nil
}

func dictCopy(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkMethodArgs(f, "copy", args, DictType); raised != nil {
		return nil, raised
	}
	return DictType.Call(f, args, nil)
}

func dictDelItem(f *Frame, o, key *Object) *BaseException {
	deleted, raised := toDictUnsafe(o).DelItem(f, key)
	if raised != nil {
		return raised
	}
	if !deleted {
		return raiseKeyError(f, key)
	}
	return nil
}

func dictEq(f *Frame, v, w *Object) (*Object, *BaseException) {
	if !w.isInstance(DictType) {
		return NotImplemented, nil
	}
	eq, raised := dictsAreEqual(f, toDictUnsafe(v), toDictUnsafe(w))
	if raised != nil {
		return nil, raised
	}
	return GetBool(eq).ToObject(), nil
}

func dictGet(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	expectedTypes := []*Type{DictType, ObjectType, ObjectType}
	argc := len(args)
	if argc == 2 {
		expectedTypes = expectedTypes[:2]
	}
	if raised := checkMethodArgs(f, "get", args, expectedTypes...); raised != nil {
		return nil, raised
	}
	item, raised := toDictUnsafe(args[0]).GetItem(f, args[1])
	if raised == nil && item == nil {
		item = None
		if argc > 2 {
			item = args[2]
		}
	}
	return item, raised
}

func dictItems(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkMethodArgs(f, "items", args, DictType); raised != nil {
		return nil, raised
	}
	d := toDictUnsafe(args[0])
	d.mutex.Lock(f)
	entries := d.entries()
	d.mutex.Unlock(f)
	items := make([]*Object, len(entries))
	for i, e := range entries {
		items[i] = NewTuple2(e.key, e.value).ToObject()
	}
	return NewList(items...).ToObject(), nil
}

func dictKeys(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkMethodArgs(f, "keys", args, DictType); raised != nil {
		return nil, raised
	}
	return toDictUnsafe(args[0]).Keys(f).ToObject(), nil
}

func dictGetItem(f *Frame, o, key *Object) (*Object, *BaseException) {
	item, raised := toDictUnsafe(o).GetItem(f, key)
	if raised != nil {
		return nil, raised
	}
	if item == nil {
		return nil, raiseKeyError(f, key)
	}
	return item, nil
}

func dictInit(f *Frame, o *Object, args Args, kwargs KWArgs) (*Object, *BaseException) {
	var expectedTypes []*Type
	argc := len(args)
	if argc > 0 {
		expectedTypes = []*Type{ObjectType}
	}
	if raised := checkFunctionArgs(f, "__init__", args, expectedTypes...); raised != nil {
		return nil, raised
	}
	d := toDictUnsafe(o)
	if argc > 0 {
		if raised := d.Update(f, args[0]); raised != nil {
			return nil, raised
		}
	}
	for _, kwarg := range kwargs {
		if raised := d.SetItemString(f, kwarg.Name, kwarg.Value); raised != nil {
			return nil, raised
		}
	}
	return None, nil
}

func dictIter(f *Frame, o *Object) (*Object, *BaseException) {
	d := toDictUnsafe(o)
	d.mutex.Lock(f)
	entries := d.entries()
	version := d.version
	d.mutex.Unlock(f)
	return &dictKeyIterator{Object: Object{typ: dictKeyIteratorType}, entries: entries, dict: d, version: version}, nil
}

func dictLen(f *Frame, o *Object) (*Object, *BaseException) {
	return NewInt(toDictUnsafe(o).Len()).ToObject(), nil
}

func dictNE(f *Frame, v, w *Object) (*Object, *BaseException) {
	if !w.isInstance(DictType) {
		return NotImplemented, nil
	}
	eq, raised := dictsAreEqual(f, toDictUnsafe(v), toDictUnsafe(w))
	if raised != nil {
		return nil, raised
	}
	return GetBool(!eq).ToObject(), nil
}

func dictNew(f *Frame, t *Type, _ Args, _ KWArgs) (*Object, *BaseException) {
	d := toDictUnsafe(newObject(t))
	d.table = swiss.NewMap[int64, []*dictEntry](8)
	return d.ToObject(), nil
}

func dictPop(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	expectedTypes := []*Type{DictType, ObjectType, ObjectType}
	argc := len(args)
	if argc == 2 {
		expectedTypes = expectedTypes[:2]
	}
	if raised := checkMethodArgs(f, "pop", args, expectedTypes...); raised != nil {
		return nil, raised
	}
	key := args[1]
	d := toDictUnsafe(args[0])
	item, raised := d.Pop(f, key)
	if raised == nil && item == nil {
		if argc > 2 {
			item = args[2]
		} else {
			raised = raiseKeyError(f, key)
		}
	}
	return item, raised
}

func dictPopItem(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkMethodArgs(f, "popitem", args, DictType); raised != nil {
		return nil, raised
	}
	d := toDictUnsafe(args[0])
	d.mutex.Lock(f)
	entries := d.entries()
	if len(entries) == 0 {
		d.mutex.Unlock(f)
		return nil, f.RaiseType(KeyErrorType, "popitem(): dictionary is empty")
	}
	e := entries[len(entries)-1]
	d.mutex.Unlock(f)
	if _, raised := d.DelItem(f, e.key); raised != nil {
		return nil, raised
	}
	return NewTuple2(e.key, e.value).ToObject(), nil
}

func dictRepr(f *Frame, o *Object) (*Object, *BaseException) {
	d := toDictUnsafe(o)
	if f.reprEnter(d.ToObject()) {
		return NewStr("{...}").ToObject(), nil
	}
	defer f.reprLeave(d.ToObject())
	d.mutex.Lock(f)
	entries := d.entries()
	d.mutex.Unlock(f)
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, e := range entries {
		if i > 0 {
			buf.WriteString(", ")
		}
		s, raised := Repr(f, e.key)
		if raised != nil {
			return nil, raised
		}
		buf.WriteString(s.Value())
		buf.WriteString(": ")
		if s, raised = Repr(f, e.value); raised != nil {
			return nil, raised
		}
		buf.WriteString(s.Value())
	}
	buf.WriteString("}")
	return NewStr(buf.String()).ToObject(), nil
}

func dictSetDefault(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	argc := len(args)
	if argc == 1 {
		return nil, f.RaiseType(TypeErrorType, "setdefault expected at least 1 arguments, got 0")
	}
	if argc > 3 {
		return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("setdefault expected at most 2 arguments, got %v", argc-1))
	}
	expectedTypes := []*Type{DictType, ObjectType, ObjectType}
	if argc == 2 {
		expectedTypes = expectedTypes[:2]
	}
	if raised := checkMethodArgs(f, "setdefault", args, expectedTypes...); raised != nil {
		return nil, raised
	}
	d := toDictUnsafe(args[0])
	key := args[1]
	value := None
	if argc > 2 {
		value = args[2]
	}
	existing, raised := d.GetItem(f, key)
	if raised != nil {
		return nil, raised
	}
	if existing != nil {
		return existing, nil
	}
	if raised := d.SetItem(f, key, value); raised != nil {
		return nil, raised
	}
	return value, nil
}

func dictSetItem(f *Frame, o, key, value *Object) *BaseException {
	return toDictUnsafe(o).SetItem(f, key, value)
}

func dictUpdate(f *Frame, args Args, kwargs KWArgs) (*Object, *BaseException) {
	expectedTypes := []*Type{DictType, ObjectType}
	argc := len(args)
	if argc == 1 {
		expectedTypes = expectedTypes[:1]
	}
	if raised := checkMethodArgs(f, "update", args, expectedTypes...); raised != nil {
		return nil, raised
	}
	d := toDictUnsafe(args[0])
	if argc > 1 {
		if raised := d.Update(f, args[1]); raised != nil {
			return nil, raised
		}
	}
	for _, kwarg := range kwargs {
		if raised := d.SetItemString(f, kwarg.Name, kwarg.Value); raised != nil {
			return nil, raised
		}
	}
	return None, nil
}

func dictValues(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkMethodArgs(f, "values", args, DictType); raised != nil {
		return nil, raised
	}
	d := toDictUnsafe(args[0])
	d.mutex.Lock(f)
	entries := d.entries()
	d.mutex.Unlock(f)
	values := make([]*Object, len(entries))
	for i, e := range entries {
		values[i] = e.value
	}
	return NewList(values...).ToObject(), nil
}

func initDictType(dict map[string]*Object) {
	dict["clear"] = newBuiltinFunction("clear", dictClear).ToObject()
	dict["copy"] = newBuiltinFunction("copy", dictCopy).ToObject()
	dict["get"] = newBuiltinFunction("get", dictGet).ToObject()
	dict["items"] = newBuiltinFunction("items", dictItems).ToObject()
	dict["keys"] = newBuiltinFunction("keys", dictKeys).ToObject()
	dict["pop"] = newBuiltinFunction("pop", dictPop).ToObject()
	dict["popitem"] = newBuiltinFunction("popitem", dictPopItem).ToObject()
	dict["setdefault"] = newBuiltinFunction("setdefault", dictSetDefault).ToObject()
	dict["update"] = newBuiltinFunction("update", dictUpdate).ToObject()
	dict["values"] = newBuiltinFunction("values", dictValues).ToObject()
	DictType.slots.Contains = &binaryOpSlot{dictContains}
	DictType.slots.Eq = &binaryOpSlot{dictEq}
	DictType.slots.GetItem = &binaryOpSlot{dictGetItem}
	DictType.slots.Hash = &unaryOpSlot{hashNotImplemented}
	DictType.slots.Init = &initSlot{dictInit}
	DictType.slots.Iter = &unaryOpSlot{dictIter}
	DictType.slots.Len = &unaryOpSlot{dictLen}
	DictType.slots.NE = &binaryOpSlot{dictNE}
	DictType.slots.New = &newSlot{dictNew}
	DictType.slots.Repr = &unaryOpSlot{dictRepr}
	DictType.slots.SetItem = &setItemSlot{dictSetItem}
}

type dictItemIterator struct {
	Object
	entries []*dictEntry
	dict    *Dict
	version int64
	index   int
}

func toDictItemIteratorUnsafe(o *Object) *dictItemIterator {
	return (*dictItemIterator)(o.toPointer())
}

func (iter *dictItemIterator) ToObject() *Object { return &iter.Object }

func dictItemIteratorIter(f *Frame, o *Object) (*Object, *BaseException) { return o, nil }

func dictItemIteratorNext(f *Frame, o *Object) (*Object, *BaseException) {
	iter := toDictItemIteratorUnsafe(o)
	e, raised := dictIteratorAdvance(f, iter.dict, iter.version, &iter.index, iter.entries)
	if raised != nil {
		return nil, raised
	}
	return NewTuple2(e.key, e.value).ToObject(), nil
}

func initDictItemIteratorType(map[string]*Object) {
	dictItemIteratorType.flags &^= typeFlagBasetype | typeFlagInstantiable
	dictItemIteratorType.slots.Iter = &unaryOpSlot{dictItemIteratorIter}
	dictItemIteratorType.slots.Next = &unaryOpSlot{dictItemIteratorNext}
}

type dictKeyIterator struct {
	Object
	entries []*dictEntry
	dict    *Dict
	version int64
	index   int
}

func toDictKeyIteratorUnsafe(o *Object) *dictKeyIterator {
	return (*dictKeyIterator)(o.toPointer())
}

func (iter *dictKeyIterator) ToObject() *Object { return &iter.Object }

func dictKeyIteratorIter(f *Frame, o *Object) (*Object, *BaseException) { return o, nil }

func dictKeyIteratorNext(f *Frame, o *Object) (*Object, *BaseException) {
	iter := toDictKeyIteratorUnsafe(o)
	e, raised := dictIteratorAdvance(f, iter.dict, iter.version, &iter.index, iter.entries)
	if raised != nil {
		return nil, raised
	}
	return e.key, nil
}

func initDictKeyIteratorType(map[string]*Object) {
	dictKeyIteratorType.flags &^= typeFlagBasetype | typeFlagInstantiable
	dictKeyIteratorType.slots.Iter = &unaryOpSlot{dictKeyIteratorIter}
	dictKeyIteratorType.slots.Next = &unaryOpSlot{dictKeyIteratorNext}
}

type dictValueIterator struct {
	Object
	entries []*dictEntry
	dict    *Dict
	version int64
	index   int
}

func toDictValueIteratorUnsafe(o *Object) *dictValueIterator {
	return (*dictValueIterator)(o.toPointer())
}

func (iter *dictValueIterator) ToObject() *Object { return &iter.Object }

func dictValueIteratorIter(f *Frame, o *Object) (*Object, *BaseException) { return o, nil }

func dictValueIteratorNext(f *Frame, o *Object) (*Object, *BaseException) {
	iter := toDictValueIteratorUnsafe(o)
	e, raised := dictIteratorAdvance(f, iter.dict, iter.version, &iter.index, iter.entries)
	if raised != nil {
		return nil, raised
	}
	return e.value, nil
}

func initDictValueIteratorType(map[string]*Object) {
	dictValueIteratorType.flags &^= typeFlagBasetype | typeFlagInstantiable
	dictValueIteratorType.slots.Iter = &unaryOpSlot{dictValueIteratorIter}
	dictValueIteratorType.slots.Next = &unaryOpSlot{dictValueIteratorNext}
}

func raiseKeyError(f *Frame, key *Object) *BaseException {
	s, raised := ToStr(f, key)
	if raised == nil {
		raised = f.RaiseType(KeyErrorType, s.Value())
	}
	return raised
}

// dictIteratorAdvance returns the next entry from a pre-taken snapshot,
// raising RuntimeError if d has been structurally modified since the
// snapshot was taken (matching CPython's "dictionary changed size during
// iteration" behavior).
func dictIteratorAdvance(f *Frame, d *Dict, version int64, index *int, entries []*dictEntry) (*dictEntry, *BaseException) {
	if d.version != version {
		return nil, f.RaiseType(RuntimeErrorType, "dictionary changed size during iteration")
	}
	if *index >= len(entries) {
		return nil, f.Raise(StopIterationType.ToObject(), nil, nil)
	}
	e := entries[*index]
	*index++
	return e, nil
}
