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

// ByteArray represents Python 3's mutable 'bytearray' type, the mutable
// counterpart to Bytes. Its locking discipline (a single RWMutex guarding
// the backing slice, read-locked for read ops and write-locked for
// mutations) is grumpy's list.go pattern (List's own mutex field) carried
// over onto a byte slice instead of an []*Object slice.

import (
	"bytes"
	"fmt"
	"reflect"
	"sync"
)

// ByteArrayType is the object representing the Python 'bytearray' type.
var ByteArrayType = newBasisType("bytearray", reflect.TypeOf(ByteArray{}), toByteArrayUnsafe, ObjectType)

// ByteArray represents Python 'bytearray' objects.
type ByteArray struct {
	Object
	mutex sync.RWMutex
	value []byte
}

// NewByteArray returns a new ByteArray holding a copy of value.
func NewByteArray(value []byte) *ByteArray {
	b := &ByteArray{Object: Object{typ: ByteArrayType}}
	b.value = append([]byte(nil), value...)
	return b
}

func toByteArrayUnsafe(o *Object) *ByteArray {
	return (*ByteArray)(o.toPointer())
}

// ToObject upcasts b to an Object.
func (b *ByteArray) ToObject() *Object {
	return &b.Object
}

// Value returns a copy of the bytes held by b.
func (b *ByteArray) Value() []byte {
	b.mutex.RLock()
	v := append([]byte(nil), b.value...)
	b.mutex.RUnlock()
	return v
}

// Decode produces a Str from b's bytes using the given encoding, via the
// codec registry (codecs.go).
func (b *ByteArray) Decode(f *Frame, encoding, errors string) (*Str, *BaseException) {
	s, raised := DecodeBytes(f, b.Value(), encoding, errors)
	if raised != nil {
		return nil, raised
	}
	return NewStr(s), nil
}

func byteArrayAdd(f *Frame, v, w *Object) (*Object, *BaseException) {
	wb, raised := asByteSlice(f, w)
	if raised != nil {
		return nil, raised
	}
	vbArr := toByteArrayUnsafe(v)
	vbArr.mutex.RLock()
	result := make([]byte, 0, len(vbArr.value)+len(wb))
	result = append(result, vbArr.value...)
	result = append(result, wb...)
	vbArr.mutex.RUnlock()
	return NewByteArray(result).ToObject(), nil
}

func byteArrayIAdd(f *Frame, v, w *Object) (*Object, *BaseException) {
	wb, raised := asByteSlice(f, w)
	if raised != nil {
		return nil, raised
	}
	b := toByteArrayUnsafe(v)
	b.mutex.Lock()
	b.value = append(b.value, wb...)
	b.mutex.Unlock()
	return v, nil
}

// asByteSlice extracts the raw bytes from a Bytes or ByteArray argument,
// raising TypeError for anything else - the shared argument contract for
// bytearray's concatenation operators.
func asByteSlice(f *Frame, o *Object) ([]byte, *BaseException) {
	switch {
	case o.isInstance(BytesType):
		return toBytesUnsafe(o).value, nil
	case o.isInstance(ByteArrayType):
		return toByteArrayUnsafe(o).Value(), nil
	}
	return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("can't concat %s to bytearray", o.typ.Name()))
}

func byteArrayCompare(v *ByteArray, w *Object, ltResult, eqResult, gtResult *Int) *Object {
	var wb []byte
	switch {
	case w.isInstance(BytesType):
		wb = toBytesUnsafe(w).value
	case w.isInstance(ByteArrayType):
		wb = toByteArrayUnsafe(w).Value()
	default:
		return NotImplemented
	}
	switch bytes.Compare(v.Value(), wb) {
	case -1:
		return ltResult.ToObject()
	case 0:
		return eqResult.ToObject()
	default:
		return gtResult.ToObject()
	}
}

func byteArrayEq(f *Frame, v, w *Object) (*Object, *BaseException) {
	return byteArrayCompare(toByteArrayUnsafe(v), w, False, True, False), nil
}

func byteArrayNE(f *Frame, v, w *Object) (*Object, *BaseException) {
	return byteArrayCompare(toByteArrayUnsafe(v), w, True, False, True), nil
}

func byteArrayLT(f *Frame, v, w *Object) (*Object, *BaseException) {
	return byteArrayCompare(toByteArrayUnsafe(v), w, True, False, False), nil
}

func byteArrayLE(f *Frame, v, w *Object) (*Object, *BaseException) {
	return byteArrayCompare(toByteArrayUnsafe(v), w, True, True, False), nil
}

func byteArrayGT(f *Frame, v, w *Object) (*Object, *BaseException) {
	return byteArrayCompare(toByteArrayUnsafe(v), w, False, False, True), nil
}

func byteArrayGE(f *Frame, v, w *Object) (*Object, *BaseException) {
	return byteArrayCompare(toByteArrayUnsafe(v), w, False, True, True), nil
}

func byteArrayContains(f *Frame, o, value *Object) (*Object, *BaseException) {
	vb, raised := asByteSlice(f, value)
	if raised != nil {
		return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("a bytes-like object is required, not '%s'", value.typ.Name()))
	}
	return GetBool(bytes.Contains(toByteArrayUnsafe(o).Value(), vb)).ToObject(), nil
}

func byteArrayDelItem(f *Frame, o, key *Object) *BaseException {
	b := toByteArrayUnsafe(o)
	b.mutex.Lock()
	defer b.mutex.Unlock()
	numElems := len(b.value)
	if key.isInstance(SliceType) {
		start, stop, step, numSliceElems, raised := toSliceUnsafe(key).calcSlice(f, numElems)
		if raised != nil {
			return raised
		}
		if step == 1 {
			copy(b.value[start:numElems-numSliceElems], b.value[stop:numElems])
		} else {
			j := 0
			for i := start; i != stop; i += step {
				next := i + step
				if next > numElems {
					next = numElems
				}
				copy(b.value[i-j:next-j-1], b.value[i+1:next])
				j++
			}
		}
		b.value = b.value[:numElems-numSliceElems]
		return nil
	}
	if key.typ.slots.Index == nil {
		return f.RaiseType(TypeErrorType, fmt.Sprintf("bytearray indices must be integers, not %s", key.typ.Name()))
	}
	index, raised := IndexInt(f, key)
	if raised != nil {
		return raised
	}
	i, raised := seqCheckedIndex(f, numElems, index)
	if raised != nil {
		return raised
	}
	b.value = append(b.value[:i], b.value[i+1:]...)
	return nil
}

func byteArrayGetItem(f *Frame, o, key *Object) (*Object, *BaseException) {
	b := toByteArrayUnsafe(o)
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	switch {
	case key.typ.slots.Index != nil:
		index, raised := IndexInt(f, key)
		if raised != nil {
			return nil, raised
		}
		index, raised = seqCheckedIndex(f, len(b.value), index)
		if raised != nil {
			return nil, raised
		}
		return NewInt(int(b.value[index])).ToObject(), nil
	case key.isInstance(SliceType):
		slice := toSliceUnsafe(key)
		start, stop, step, sliceLen, raised := slice.calcSlice(f, len(b.value))
		if raised != nil {
			return nil, raised
		}
		result := make([]byte, 0, sliceLen)
		for j := start; j != stop; j += step {
			result = append(result, b.value[j])
		}
		return NewByteArray(result).ToObject(), nil
	}
	return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("bytearray indices must be integers or slice, not %s", key.typ.Name()))
}

func byteArraySetItem(f *Frame, o, key, value *Object) *BaseException {
	b := toByteArrayUnsafe(o)
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if key.typ.slots.Index != nil {
		index, raised := IndexInt(f, key)
		if raised != nil {
			return raised
		}
		i, raised := seqCheckedIndex(f, len(b.value), index)
		if raised != nil {
			return raised
		}
		n, raised := ToIntValue(f, value)
		if raised != nil {
			return raised
		}
		if n < 0 || n > 255 {
			return f.RaiseType(ValueErrorType, "byte must be in range(0, 256)")
		}
		b.value[i] = byte(n)
		return nil
	}
	return f.RaiseType(TypeErrorType, fmt.Sprintf("bytearray indices must be integers, not %s", key.typ.Name()))
}

func byteArrayHash(f *Frame, o *Object) (*Object, *BaseException) {
	return nil, f.RaiseType(TypeErrorType, "unhashable type: 'bytearray'")
}

func byteArrayLen(f *Frame, o *Object) (*Object, *BaseException) {
	b := toByteArrayUnsafe(o)
	b.mutex.RLock()
	n := len(b.value)
	b.mutex.RUnlock()
	return NewInt(n).ToObject(), nil
}

func byteArrayMul(f *Frame, v, w *Object) (*Object, *BaseException) {
	b := toByteArrayUnsafe(v)
	b.mutex.RLock()
	n, ok, raised := strRepeatCount(f, len(b.value), w)
	value := append([]byte(nil), b.value...)
	b.mutex.RUnlock()
	if raised != nil {
		return nil, raised
	}
	if !ok {
		return NotImplemented, nil
	}
	return NewByteArray(bytes.Repeat(value, n)).ToObject(), nil
}

func byteArrayIMul(f *Frame, v, w *Object) (*Object, *BaseException) {
	b := toByteArrayUnsafe(v)
	b.mutex.Lock()
	n, ok, raised := strRepeatCount(f, len(b.value), w)
	if raised == nil && ok {
		b.value = bytes.Repeat(b.value, n)
	}
	b.mutex.Unlock()
	if raised != nil {
		return nil, raised
	}
	if !ok {
		return NotImplemented, nil
	}
	return v, nil
}

func byteArrayRepr(f *Frame, o *Object) (*Object, *BaseException) {
	b := toByteArrayUnsafe(o).Value()
	var buf bytes.Buffer
	buf.WriteString("bytearray(b'")
	for _, c := range b {
		switch c {
		case '\\':
			buf.WriteString(`\\`)
		case '\'':
			buf.WriteString(`\'`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if c < 0x20 || c >= 0x7f {
				fmt.Fprintf(&buf, `\x%02x`, c)
			} else {
				buf.WriteByte(c)
			}
		}
	}
	buf.WriteString("')")
	return NewStr(buf.String()).ToObject(), nil
}

func byteArrayNew(f *Frame, t *Type, args Args, kwargs KWArgs) (*Object, *BaseException) {
	b, raised := bytesNew(f, BytesType, args, kwargs)
	if raised != nil {
		return nil, raised
	}
	result := toByteArrayUnsafe(newObject(t))
	result.value = append([]byte(nil), toBytesUnsafe(b).value...)
	return result.ToObject(), nil
}

func byteArrayIter(f *Frame, o *Object) (*Object, *BaseException) {
	return newSeqIterator(o), nil
}

func byteArrayAppend(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkMethodArgs(f, "append", args, ByteArrayType, IntType); raised != nil {
		return nil, raised
	}
	n := toIntUnsafe(args[1]).Value()
	if n < 0 || n > 255 {
		return nil, f.RaiseType(ValueErrorType, "byte must be in range(0, 256)")
	}
	b := toByteArrayUnsafe(args[0])
	b.mutex.Lock()
	b.value = append(b.value, byte(n))
	b.mutex.Unlock()
	return None, nil
}

func byteArrayExtend(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkMethodArgs(f, "extend", args, ByteArrayType, ObjectType); raised != nil {
		return nil, raised
	}
	more, raised := toBytesValue(f, args[1])
	if raised != nil {
		return nil, raised
	}
	b := toByteArrayUnsafe(args[0])
	b.mutex.Lock()
	b.value = append(b.value, more...)
	b.mutex.Unlock()
	return None, nil
}

func byteArrayDecode(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	expectedTypes := []*Type{ByteArrayType, StrType, StrType}
	argc := len(args)
	if argc >= 1 && argc < 3 {
		expectedTypes = expectedTypes[:argc]
	}
	if raised := checkMethodArgs(f, "decode", args, expectedTypes...); raised != nil {
		return nil, raised
	}
	encoding := EncodeDefault
	if argc > 1 {
		encoding = toStrUnsafe(args[1]).Value()
	}
	errors := EncodeStrict
	if argc > 2 {
		errors = toStrUnsafe(args[2]).Value()
	}
	s, raised := toByteArrayUnsafe(args[0]).Decode(f, encoding, errors)
	if raised != nil {
		return nil, raised
	}
	return s.ToObject(), nil
}

func initByteArrayType(dict map[string]*Object) {
	dict["append"] = newBuiltinFunction("append", byteArrayAppend).ToObject()
	dict["decode"] = newBuiltinFunction("decode", byteArrayDecode).ToObject()
	dict["extend"] = newBuiltinFunction("extend", byteArrayExtend).ToObject()
	ByteArrayType.slots.Add = &binaryOpSlot{byteArrayAdd}
	ByteArrayType.slots.Contains = &binaryOpSlot{byteArrayContains}
	ByteArrayType.slots.DelItem = &delItemSlot{byteArrayDelItem}
	ByteArrayType.slots.Eq = &binaryOpSlot{byteArrayEq}
	ByteArrayType.slots.GE = &binaryOpSlot{byteArrayGE}
	ByteArrayType.slots.GetItem = &binaryOpSlot{byteArrayGetItem}
	ByteArrayType.slots.GT = &binaryOpSlot{byteArrayGT}
	ByteArrayType.slots.Hash = &unaryOpSlot{byteArrayHash}
	ByteArrayType.slots.IAdd = &binaryOpSlot{byteArrayIAdd}
	ByteArrayType.slots.IMul = &binaryOpSlot{byteArrayIMul}
	ByteArrayType.slots.Iter = &unaryOpSlot{byteArrayIter}
	ByteArrayType.slots.LE = &binaryOpSlot{byteArrayLE}
	ByteArrayType.slots.Len = &unaryOpSlot{byteArrayLen}
	ByteArrayType.slots.LT = &binaryOpSlot{byteArrayLT}
	ByteArrayType.slots.Mul = &binaryOpSlot{byteArrayMul}
	ByteArrayType.slots.NE = &binaryOpSlot{byteArrayNE}
	ByteArrayType.slots.New = &newSlot{byteArrayNew}
	ByteArrayType.slots.Repr = &unaryOpSlot{byteArrayRepr}
	ByteArrayType.slots.RMul = &binaryOpSlot{byteArrayMul}
	ByteArrayType.slots.SetItem = &setItemSlot{byteArraySetItem}
	ByteArrayType.slots.Str = &unaryOpSlot{byteArrayRepr}
}
