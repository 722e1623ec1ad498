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

// Bytes represents Python 3's immutable 'bytes' type: a sequence of small
// ints (0-255), distinct from the text type Str (spec.md §1 lists bytes
// among the built-in types this runtime dispatches through directly).
// grumpy never needed this type — its Python 2 Str already played the
// byte-sequence role — so this file generalizes grumpy's str.go byte-level
// operations (hashing, comparison, slicing) onto a dedicated type, built
// with the stdlib bytes package rather than grumpy's hand-rolled loops
// where the two are equivalent.

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"reflect"
	"unicode"
)

// BytesType is the object representing the Python 'bytes' type.
var BytesType = newBasisType("bytes", reflect.TypeOf(Bytes{}), toBytesUnsafe, ObjectType)

// Bytes represents Python 'bytes' objects.
type Bytes struct {
	Object
	value []byte
}

// NewBytes returns a new Bytes holding value. Ownership of value passes to
// the result; callers must not mutate it afterward (bytes is immutable).
func NewBytes(value []byte) *Bytes {
	return &Bytes{Object: Object{typ: BytesType}, value: value}
}

func toBytesUnsafe(o *Object) *Bytes {
	return (*Bytes)(o.toPointer())
}

// ToObject upcasts b to an Object.
func (b *Bytes) ToObject() *Object {
	return &b.Object
}

// Value returns the raw bytes held by b. Callers must not mutate the
// returned slice.
func (b *Bytes) Value() []byte {
	return b.value
}

// Decode produces a Str from b's bytes using the given encoding, via the
// codec registry (codecs.go).
func (b *Bytes) Decode(f *Frame, encoding, errors string) (*Str, *BaseException) {
	s, raised := DecodeBytes(f, b.value, encoding, errors)
	if raised != nil {
		return nil, raised
	}
	return NewStr(s), nil
}

func bytesAdd(f *Frame, v, w *Object) (*Object, *BaseException) {
	if !w.isInstance(BytesType) {
		return NotImplemented, nil
	}
	vb, wb := toBytesUnsafe(v).value, toBytesUnsafe(w).value
	if len(vb)+len(wb) < 0 {
		return nil, f.RaiseType(OverflowErrorType, errResultTooLarge)
	}
	result := make([]byte, 0, len(vb)+len(wb))
	result = append(result, vb...)
	result = append(result, wb...)
	return NewBytes(result).ToObject(), nil
}

func bytesCompare(v, w *Object, ltResult, eqResult, gtResult *Int) *Object {
	if v == w {
		return eqResult.ToObject()
	}
	if !w.isInstance(BytesType) {
		return NotImplemented
	}
	switch bytes.Compare(toBytesUnsafe(v).value, toBytesUnsafe(w).value) {
	case -1:
		return ltResult.ToObject()
	case 0:
		return eqResult.ToObject()
	default:
		return gtResult.ToObject()
	}
}

func bytesEq(f *Frame, v, w *Object) (*Object, *BaseException) {
	return bytesCompare(v, w, False, True, False), nil
}

func bytesNE(f *Frame, v, w *Object) (*Object, *BaseException) {
	return bytesCompare(v, w, True, False, True), nil
}

func bytesLT(f *Frame, v, w *Object) (*Object, *BaseException) {
	return bytesCompare(v, w, True, False, False), nil
}

func bytesLE(f *Frame, v, w *Object) (*Object, *BaseException) {
	return bytesCompare(v, w, True, True, False), nil
}

func bytesGT(f *Frame, v, w *Object) (*Object, *BaseException) {
	return bytesCompare(v, w, False, False, True), nil
}

func bytesGE(f *Frame, v, w *Object) (*Object, *BaseException) {
	return bytesCompare(v, w, False, True, True), nil
}

func bytesContains(f *Frame, o, value *Object) (*Object, *BaseException) {
	if !value.isInstance(BytesType) {
		return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("a bytes-like object is required, not '%s'", value.typ.Name()))
	}
	return GetBool(bytes.Contains(toBytesUnsafe(o).value, toBytesUnsafe(value).value)).ToObject(), nil
}

func bytesGetItem(f *Frame, o, key *Object) (*Object, *BaseException) {
	b := toBytesUnsafe(o).value
	switch {
	case key.typ.slots.Index != nil:
		index, raised := IndexInt(f, key)
		if raised != nil {
			return nil, raised
		}
		index, raised = seqCheckedIndex(f, len(b), index)
		if raised != nil {
			return nil, raised
		}
		return NewInt(int(b[index])).ToObject(), nil
	case key.isInstance(SliceType):
		slice := toSliceUnsafe(key)
		start, stop, step, sliceLen, raised := slice.calcSlice(f, len(b))
		if raised != nil {
			return nil, raised
		}
		if step == 1 {
			return NewBytes(append([]byte(nil), b[start:stop]...)).ToObject(), nil
		}
		result := make([]byte, 0, sliceLen)
		for j := start; j != stop; j += step {
			result = append(result, b[j])
		}
		return NewBytes(result).ToObject(), nil
	}
	return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("byte indices must be integers or slice, not %s", key.typ.Name()))
}

func bytesHash(f *Frame, o *Object) (*Object, *BaseException) {
	return NewInt(hashString(string(toBytesUnsafe(o).value))).ToObject(), nil
}

func bytesLen(f *Frame, o *Object) (*Object, *BaseException) {
	return NewInt(len(toBytesUnsafe(o).value)).ToObject(), nil
}

func bytesMul(f *Frame, v, w *Object) (*Object, *BaseException) {
	b := toBytesUnsafe(v).value
	n, ok, raised := strRepeatCount(f, len(b), w)
	if raised != nil {
		return nil, raised
	}
	if !ok {
		return NotImplemented, nil
	}
	return NewBytes(bytes.Repeat(b, n)).ToObject(), nil
}

func bytesRepr(f *Frame, o *Object) (*Object, *BaseException) {
	b := toBytesUnsafe(o).value
	var buf bytes.Buffer
	buf.WriteByte('b')
	buf.WriteByte('\'')
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
	buf.WriteByte('\'')
	return NewStr(buf.String()).ToObject(), nil
}

// toBytesValue coerces a bytes-constructor argument (an iterable of ints in
// 0..255, or anything else exposing the buffer-like contract this runtime
// models as "is a Bytes") into a raw byte slice, per spec.md's bytes()
// constructor contract.
func toBytesValue(f *Frame, o *Object) ([]byte, *BaseException) {
	if o.isInstance(BytesType) {
		return append([]byte(nil), toBytesUnsafe(o).value...), nil
	}
	var out []byte
	raised := seqForEach(f, o, func(elem *Object) *BaseException {
		if !elem.isInstance(IntType) {
			return f.RaiseType(TypeErrorType, "an integer is required")
		}
		v := toIntUnsafe(elem).Value()
		if v < 0 || v > 255 {
			return f.RaiseType(ValueErrorType, "bytes must be in range(0, 256)")
		}
		out = append(out, byte(v))
		return nil
	})
	if raised != nil {
		return nil, raised
	}
	return out, nil
}

func bytesNew(f *Frame, t *Type, args Args, kwargs KWArgs) (*Object, *BaseException) {
	if t != BytesType {
		b, raised := bytesNew(f, BytesType, args, kwargs)
		if raised != nil {
			return nil, raised
		}
		result := toBytesUnsafe(newObject(t))
		result.value = toBytesUnsafe(b).value
		return result.ToObject(), nil
	}
	var encoding, errors string
	var rest Args
	for _, kw := range kwargs {
		switch kw.Name {
		case "encoding":
			if !kw.Value.isInstance(StrType) {
				return nil, f.RaiseType(TypeErrorType, "encoding must be a string")
			}
			encoding = toStrUnsafe(kw.Value).Value()
		case "errors":
			if !kw.Value.isInstance(StrType) {
				return nil, f.RaiseType(TypeErrorType, "errors must be a string")
			}
			errors = toStrUnsafe(kw.Value).Value()
		default:
			return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("bytes() got an unexpected keyword argument '%s'", kw.Name))
		}
	}
	rest = args
	switch len(rest) {
	case 0:
		if encoding != "" {
			return nil, f.RaiseType(TypeErrorType, "encoding without a string argument")
		}
		return NewBytes(nil).ToObject(), nil
	case 1:
		arg := rest[0]
		if arg.isInstance(StrType) {
			if encoding == "" {
				return nil, f.RaiseType(TypeErrorType, "string argument without an encoding")
			}
			if errors == "" {
				errors = EncodeStrict
			}
			b, raised := toStrUnsafe(arg).Encode(f, encoding, errors)
			if raised != nil {
				return nil, raised
			}
			return b.ToObject(), nil
		}
		if arg.isInstance(IntType) {
			n := toIntUnsafe(arg).Value()
			if n < 0 {
				return nil, f.RaiseType(ValueErrorType, "negative count")
			}
			return NewBytes(make([]byte, n)).ToObject(), nil
		}
		b, raised := toBytesValue(f, arg)
		if raised != nil {
			return nil, raised
		}
		return NewBytes(b).ToObject(), nil
	default:
		return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("bytes() takes at most 1 argument (%d given)", len(rest)))
	}
}

func bytesDecode(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	expectedTypes := []*Type{BytesType, StrType, StrType}
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
	s, raised := toBytesUnsafe(args[0]).Decode(f, encoding, errors)
	if raised != nil {
		return nil, raised
	}
	return s.ToObject(), nil
}

func bytesHex(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkMethodArgs(f, "hex", args, BytesType); raised != nil {
		return nil, raised
	}
	return NewStr(hex.EncodeToString(toBytesUnsafe(args[0]).value)).ToObject(), nil
}

func bytesJoin(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkMethodArgs(f, "join", args, BytesType, ObjectType); raised != nil {
		return nil, raised
	}
	sep := toBytesUnsafe(args[0]).value
	var parts [][]byte
	raised := seqForEach(f, args[1], func(elem *Object) *BaseException {
		if !elem.isInstance(BytesType) {
			return f.RaiseType(TypeErrorType, fmt.Sprintf("sequence item: expected a bytes-like object, %s found", elem.typ.Name()))
		}
		parts = append(parts, toBytesUnsafe(elem).value)
		return nil
	})
	if raised != nil {
		return nil, raised
	}
	return NewBytes(bytes.Join(parts, sep)).ToObject(), nil
}

func bytesSplit(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	expectedTypes := []*Type{BytesType, BytesType, IntType}
	argc := len(args)
	if argc == 1 || argc == 2 {
		expectedTypes = expectedTypes[:argc]
	}
	if raised := checkMethodArgs(f, "split", args, expectedTypes...); raised != nil {
		return nil, raised
	}
	b := toBytesUnsafe(args[0]).value
	maxSplit := -1
	if argc > 2 {
		if n := toIntUnsafe(args[2]).Value(); n >= 0 {
			maxSplit = n
		}
	}
	var parts [][]byte
	if argc > 1 {
		sep := toBytesUnsafe(args[1]).value
		if len(sep) == 0 {
			return nil, f.RaiseType(ValueErrorType, "empty separator")
		}
		parts = bytes.SplitN(b, sep, maxSplitN(maxSplit))
	} else {
		parts = bytes.Fields(b)
	}
	elems := make([]*Object, len(parts))
	for i, p := range parts {
		elems[i] = NewBytes(append([]byte(nil), p...)).ToObject()
	}
	return NewList(elems...).ToObject(), nil
}

func maxSplitN(maxSplit int) int {
	if maxSplit < 0 {
		return -1
	}
	return maxSplit + 1
}

func bytesStrip(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	return bytesTrim(f, args, "strip", bytes.TrimFunc)
}

func bytesLStrip(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	return bytesTrim(f, args, "lstrip", bytes.TrimLeftFunc)
}

func bytesRStrip(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	return bytesTrim(f, args, "rstrip", bytes.TrimRightFunc)
}

func bytesTrim(f *Frame, args Args, name string, trim func([]byte, func(rune) bool) []byte) (*Object, *BaseException) {
	expectedTypes := []*Type{BytesType, BytesType}
	argc := len(args)
	if argc == 1 {
		expectedTypes = expectedTypes[:1]
	}
	if raised := checkMethodArgs(f, name, args, expectedTypes...); raised != nil {
		return nil, raised
	}
	b := toBytesUnsafe(args[0]).value
	if argc == 1 || args[1] == None {
		return NewBytes(trim(b, unicode.IsSpace)).ToObject(), nil
	}
	cutset := toBytesUnsafe(args[1]).value
	return NewBytes(trim(b, func(r rune) bool { return bytes.ContainsRune(cutset, r) })).ToObject(), nil
}

func bytesStartsWith(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkMethodArgs(f, "startswith", args, BytesType, BytesType); raised != nil {
		return nil, raised
	}
	return GetBool(bytes.HasPrefix(toBytesUnsafe(args[0]).value, toBytesUnsafe(args[1]).value)).ToObject(), nil
}

func bytesEndsWith(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkMethodArgs(f, "endswith", args, BytesType, BytesType); raised != nil {
		return nil, raised
	}
	return GetBool(bytes.HasSuffix(toBytesUnsafe(args[0]).value, toBytesUnsafe(args[1]).value)).ToObject(), nil
}

func bytesFind(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkMethodArgs(f, "find", args, BytesType, BytesType); raised != nil {
		return nil, raised
	}
	return NewInt(bytes.Index(toBytesUnsafe(args[0]).value, toBytesUnsafe(args[1]).value)).ToObject(), nil
}

func bytesIndex(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkMethodArgs(f, "index", args, BytesType, BytesType); raised != nil {
		return nil, raised
	}
	i := bytes.Index(toBytesUnsafe(args[0]).value, toBytesUnsafe(args[1]).value)
	if i == -1 {
		return nil, f.RaiseType(ValueErrorType, "subsection not found")
	}
	return NewInt(i).ToObject(), nil
}

func bytesCount(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkMethodArgs(f, "count", args, BytesType, BytesType); raised != nil {
		return nil, raised
	}
	return NewInt(bytes.Count(toBytesUnsafe(args[0]).value, toBytesUnsafe(args[1]).value)).ToObject(), nil
}

func bytesReplace(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	expectedTypes := []*Type{BytesType, BytesType, BytesType, IntType}
	argc := len(args)
	if argc == 3 {
		expectedTypes = expectedTypes[:3]
	}
	if raised := checkMethodArgs(f, "replace", args, expectedTypes...); raised != nil {
		return nil, raised
	}
	n := -1
	if argc > 3 {
		n = toIntUnsafe(args[3]).Value()
	}
	result := bytes.Replace(toBytesUnsafe(args[0]).value, toBytesUnsafe(args[1]).value, toBytesUnsafe(args[2]).value, n)
	return NewBytes(result).ToObject(), nil
}

func bytesUpper(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkMethodArgs(f, "upper", args, BytesType); raised != nil {
		return nil, raised
	}
	b := toBytesUnsafe(args[0]).value
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = toUpper(c)
	}
	return NewBytes(out).ToObject(), nil
}

func bytesLower(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkMethodArgs(f, "lower", args, BytesType); raised != nil {
		return nil, raised
	}
	b := toBytesUnsafe(args[0]).value
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = toLower(c)
	}
	return NewBytes(out).ToObject(), nil
}

func initBytesType(dict map[string]*Object) {
	dict["decode"] = newBuiltinFunction("decode", bytesDecode).ToObject()
	dict["hex"] = newBuiltinFunction("hex", bytesHex).ToObject()
	dict["join"] = newBuiltinFunction("join", bytesJoin).ToObject()
	dict["split"] = newBuiltinFunction("split", bytesSplit).ToObject()
	dict["strip"] = newBuiltinFunction("strip", bytesStrip).ToObject()
	dict["lstrip"] = newBuiltinFunction("lstrip", bytesLStrip).ToObject()
	dict["rstrip"] = newBuiltinFunction("rstrip", bytesRStrip).ToObject()
	dict["startswith"] = newBuiltinFunction("startswith", bytesStartsWith).ToObject()
	dict["endswith"] = newBuiltinFunction("endswith", bytesEndsWith).ToObject()
	dict["find"] = newBuiltinFunction("find", bytesFind).ToObject()
	dict["index"] = newBuiltinFunction("index", bytesIndex).ToObject()
	dict["count"] = newBuiltinFunction("count", bytesCount).ToObject()
	dict["replace"] = newBuiltinFunction("replace", bytesReplace).ToObject()
	dict["upper"] = newBuiltinFunction("upper", bytesUpper).ToObject()
	dict["lower"] = newBuiltinFunction("lower", bytesLower).ToObject()
	BytesType.slots.Add = &binaryOpSlot{bytesAdd}
	BytesType.slots.Contains = &binaryOpSlot{bytesContains}
	BytesType.slots.Eq = &binaryOpSlot{bytesEq}
	BytesType.slots.GE = &binaryOpSlot{bytesGE}
	BytesType.slots.GetItem = &binaryOpSlot{bytesGetItem}
	BytesType.slots.GT = &binaryOpSlot{bytesGT}
	BytesType.slots.Hash = &unaryOpSlot{bytesHash}
	BytesType.slots.Iter = &unaryOpSlot{bytesIter}
	BytesType.slots.LE = &binaryOpSlot{bytesLE}
	BytesType.slots.Len = &unaryOpSlot{bytesLen}
	BytesType.slots.LT = &binaryOpSlot{bytesLT}
	BytesType.slots.Mul = &binaryOpSlot{bytesMul}
	BytesType.slots.NE = &binaryOpSlot{bytesNE}
	BytesType.slots.New = &newSlot{bytesNew}
	BytesType.slots.Repr = &unaryOpSlot{bytesRepr}
	BytesType.slots.RMul = &binaryOpSlot{bytesMul}
	BytesType.slots.Str = &unaryOpSlot{bytesRepr}
}

func bytesIter(f *Frame, o *Object) (*Object, *BaseException) {
	return newSeqIterator(o), nil
}
