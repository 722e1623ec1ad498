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
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
)

// marshal implements spec.md §6's code-object serialisation: a versioned
// tagged-record format mapping each field of §3's Code object to a typed
// payload, with constants serialised recursively (a const pool entry may
// itself be a nested code object, from a nested function or class body).
// Every value and the top-level Code record both lead with a one-byte tag;
// an unrecognised tag fails the load with ValueError rather than guessing
// at a payload shape.

const (
	marshalMagic   = "PYC1"
	marshalVersion = 1
)

// Value tags. Grouped loosely by payload shape; the groupings aren't load
// bearing, just a naming convenience.
const (
	tagNone byte = iota
	tagTrue
	tagFalse
	tagEllipsis
	tagSmallInt // signed varint
	tagBigInt   // sign byte + length-prefixed big-endian magnitude
	tagFloat    // 8 bytes, IEEE 754 binary64, big-endian
	tagStr      // length-prefixed UTF-8
	tagTuple    // count + recursive values
	tagFrozenSet
	tagCode // nested code object, same record shape as the top-level one
)

// Dump serialises c into spec.md §6's marshal format. The result can be
// handed back to Load to reconstruct an equal code object (spec.md §8's
// marshal round-trip property).
func Dump(c *Code) []byte {
	buf := []byte(marshalMagic)
	buf = append(buf, marshalVersion)
	return dumpCode(buf, c)
}

func dumpCode(buf []byte, c *Code) []byte {
	buf = append(buf, tagCode)
	buf = appendUnsignedVarint(buf, c.argCount)
	buf = appendUnsignedVarint(buf, c.posOnlyCount)
	buf = appendUnsignedVarint(buf, c.kwOnlyCount)
	buf = appendUnsignedVarint(buf, c.nLocals)
	buf = appendUnsignedVarint(buf, c.stackSize)
	buf = appendUnsignedVarint(buf, int(c.flags))
	buf = dumpString(buf, c.name)
	buf = dumpString(buf, c.qualname)
	buf = dumpString(buf, c.filename)
	buf = appendUnsignedVarint(buf, c.firstLineno)
	buf = dumpBytes(buf, c.code)
	buf = appendUnsignedVarint(buf, len(c.consts))
	for _, o := range c.consts {
		buf = dumpValue(buf, o)
	}
	buf = dumpStrings(buf, c.names)
	buf = dumpStrings(buf, c.varnames)
	buf = dumpStrings(buf, c.cellvars)
	buf = dumpStrings(buf, c.freevars)
	buf = appendUnsignedVarint(buf, len(c.cell2arg))
	for _, v := range c.cell2arg {
		buf = appendSignedVarint(buf, v)
	}
	lineTableBytes := EncodeLineTable(c.firstLineno, c.lineTable.entries)
	buf = dumpBytes(buf, lineTableBytes)
	excTableBytes := EncodeExceptionTable(c.excTable.entries)
	buf = dumpBytes(buf, excTableBytes)
	return buf
}

func dumpString(buf []byte, s string) []byte {
	buf = appendUnsignedVarint(buf, len(s))
	return append(buf, s...)
}

func dumpBytes(buf []byte, b []byte) []byte {
	buf = appendUnsignedVarint(buf, len(b))
	return append(buf, b...)
}

func dumpStrings(buf []byte, strs []string) []byte {
	buf = appendUnsignedVarint(buf, len(strs))
	for _, s := range strs {
		buf = dumpString(buf, s)
	}
	return buf
}

// dumpValue appends the tagged encoding of a single constant-pool entry.
// The closed set of tags mirrors the literal forms the compiler can ever
// place in a constant pool (spec.md §4.3): singletons, numbers, strings,
// immutable containers of the same, and nested code objects.
func dumpValue(buf []byte, o *Object) []byte {
	switch {
	case o == None:
		return append(buf, tagNone)
	case o == True.ToObject():
		return append(buf, tagTrue)
	case o == False.ToObject():
		return append(buf, tagFalse)
	case o == Ellipsis:
		return append(buf, tagEllipsis)
	case o.isInstance(IntType):
		i := toIntUnsafe(o)
		if i.big == nil {
			buf = append(buf, tagSmallInt)
			return appendSignedVarint(buf, i.small)
		}
		buf = append(buf, tagBigInt)
		sign := byte(0)
		if i.big.Sign() < 0 {
			sign = 1
		}
		buf = append(buf, sign)
		mag := new(big.Int).Abs(i.big).Bytes()
		return dumpBytes(buf, mag)
	case o.isInstance(FloatType):
		buf = append(buf, tagFloat)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(toFloatUnsafe(o).Value()))
		return append(buf, b[:]...)
	case o.isInstance(StrType):
		buf = append(buf, tagStr)
		return dumpString(buf, toStrUnsafe(o).Value())
	case o.isInstance(TupleType):
		t := toTupleUnsafe(o)
		buf = append(buf, tagTuple)
		buf = appendUnsignedVarint(buf, len(t.elems))
		for _, e := range t.elems {
			buf = dumpValue(buf, e)
		}
		return buf
	case o.isInstance(FrozenSetType):
		fs := toFrozenSetUnsafe(o)
		entries := fs.dict.entries()
		buf = append(buf, tagFrozenSet)
		buf = appendUnsignedVarint(buf, len(entries))
		for _, e := range entries {
			if e == nil {
				continue
			}
			buf = dumpValue(buf, e.key)
		}
		return buf
	case o.isInstance(CodeType):
		return dumpCode(buf, toCodeUnsafe(o))
	default:
		panic(fmt.Sprintf("marshal: cannot serialise constant of type %s", o.typ.Name()))
	}
}

// Load reconstructs a Code object from Dump's output, per spec.md §6. A
// malformed header or an unrecognised tag anywhere in the stream fails with
// ValueError rather than panicking the interpreter on untrusted input.
func Load(f *Frame, data []byte) (*Code, *BaseException) {
	if len(data) < len(marshalMagic)+1 || string(data[:len(marshalMagic)]) != marshalMagic {
		return nil, f.RaiseType(ValueErrorType, "marshal: bad magic number")
	}
	i := len(marshalMagic)
	if data[i] != marshalVersion {
		return nil, f.RaiseType(ValueErrorType, fmt.Sprintf("marshal: unsupported version %d", data[i]))
	}
	i++
	c, _, raised := loadCodeAt(f, data, i)
	if raised != nil {
		return nil, raised
	}
	return c, nil
}

func loadCodeAt(f *Frame, data []byte, i int) (*Code, int, *BaseException) {
	if i >= len(data) || data[i] != tagCode {
		return nil, 0, f.RaiseType(ValueErrorType, "marshal: expected code record")
	}
	i++
	var raised *BaseException
	readUvarint := func() int {
		v, n := decodeUnsignedVarint(data[i:])
		i += n
		return v
	}
	readSvarint := func() int {
		v, n := decodeSignedVarint(data[i:])
		i += n
		return v
	}
	readString := func() (string, *BaseException) {
		if raised != nil {
			return "", raised
		}
		n := readUvarint()
		if i+n > len(data) {
			return "", f.RaiseType(ValueErrorType, "marshal: truncated string")
		}
		s := string(data[i : i+n])
		i += n
		return s, nil
	}
	readBytes := func() ([]byte, *BaseException) {
		n := readUvarint()
		if i+n > len(data) {
			return nil, f.RaiseType(ValueErrorType, "marshal: truncated byte string")
		}
		b := append([]byte(nil), data[i:i+n]...)
		i += n
		return b, nil
	}
	readStrings := func() ([]string, *BaseException) {
		n := readUvarint()
		out := make([]string, n)
		for j := 0; j < n; j++ {
			s, raised := readString()
			if raised != nil {
				return nil, raised
			}
			out[j] = s
		}
		return out, nil
	}

	argCount := readUvarint()
	posOnlyCount := readUvarint()
	kwOnlyCount := readUvarint()
	nLocals := readUvarint()
	stackSize := readUvarint()
	flags := CodeFlag(readUvarint())
	name, raised := readString()
	if raised != nil {
		return nil, 0, raised
	}
	qualname, raised := readString()
	if raised != nil {
		return nil, 0, raised
	}
	filename, raised := readString()
	if raised != nil {
		return nil, 0, raised
	}
	firstLineno := readUvarint()
	code, raised := readBytes()
	if raised != nil {
		return nil, 0, raised
	}
	numConsts := readUvarint()
	consts := make([]*Object, numConsts)
	for j := 0; j < numConsts; j++ {
		v, next, raised := loadValueAt(f, data, i)
		if raised != nil {
			return nil, 0, raised
		}
		consts[j] = v
		i = next
	}
	names, raised := readStrings()
	if raised != nil {
		return nil, 0, raised
	}
	varnames, raised := readStrings()
	if raised != nil {
		return nil, 0, raised
	}
	cellvars, raised := readStrings()
	if raised != nil {
		return nil, 0, raised
	}
	freevars, raised := readStrings()
	if raised != nil {
		return nil, 0, raised
	}
	numCell2arg := readUvarint()
	cell2arg := make([]int, numCell2arg)
	for j := range cell2arg {
		cell2arg[j] = readSvarint()
	}
	lineTableBytes, raised := readBytes()
	if raised != nil {
		return nil, 0, raised
	}
	excTableBytes, raised := readBytes()
	if raised != nil {
		return nil, 0, raised
	}
	c := NewCode(name, qualname, filename, firstLineno, argCount, posOnlyCount,
		kwOnlyCount, nLocals, stackSize, flags, code, consts, names, varnames,
		cellvars, freevars, cell2arg, lineTableBytes, excTableBytes)
	return c, i, nil
}

// loadValueAt decodes one tagged constant starting at data[i], returning the
// value and the offset just past it.
func loadValueAt(f *Frame, data []byte, i int) (*Object, int, *BaseException) {
	if i >= len(data) {
		return nil, 0, f.RaiseType(ValueErrorType, "marshal: truncated constant")
	}
	tag := data[i]
	i++
	switch tag {
	case tagNone:
		return None, i, nil
	case tagTrue:
		return True.ToObject(), i, nil
	case tagFalse:
		return False.ToObject(), i, nil
	case tagEllipsis:
		return Ellipsis, i, nil
	case tagSmallInt:
		v, n := decodeSignedVarint(data[i:])
		return NewInt(v).ToObject(), i + n, nil
	case tagBigInt:
		if i >= len(data) {
			return nil, 0, f.RaiseType(ValueErrorType, "marshal: truncated integer")
		}
		sign := data[i]
		i++
		n, consumed := decodeUnsignedVarint(data[i:])
		i += consumed
		if i+n > len(data) {
			return nil, 0, f.RaiseType(ValueErrorType, "marshal: truncated integer")
		}
		mag := new(big.Int).SetBytes(data[i : i+n])
		i += n
		if sign == 1 {
			mag.Neg(mag)
		}
		return NewIntFromBig(mag).ToObject(), i, nil
	case tagFloat:
		if i+8 > len(data) {
			return nil, 0, f.RaiseType(ValueErrorType, "marshal: truncated float")
		}
		bits := binary.BigEndian.Uint64(data[i : i+8])
		return NewFloat(math.Float64frombits(bits)).ToObject(), i + 8, nil
	case tagStr:
		n, consumed := decodeUnsignedVarint(data[i:])
		i += consumed
		if i+n > len(data) {
			return nil, 0, f.RaiseType(ValueErrorType, "marshal: truncated string")
		}
		s := string(data[i : i+n])
		return NewStr(s).ToObject(), i + n, nil
	case tagTuple:
		n, consumed := decodeUnsignedVarint(data[i:])
		i += consumed
		elems := make([]*Object, n)
		for j := 0; j < n; j++ {
			v, next, raised := loadValueAt(f, data, i)
			if raised != nil {
				return nil, 0, raised
			}
			elems[j] = v
			i = next
		}
		return NewTuple(elems...).ToObject(), i, nil
	case tagFrozenSet:
		n, consumed := decodeUnsignedVarint(data[i:])
		i += consumed
		fs := &FrozenSet{Object: Object{typ: FrozenSetType}, dict: NewDict()}
		for j := 0; j < n; j++ {
			v, next, raised := loadValueAt(f, data, i)
			if raised != nil {
				return nil, 0, raised
			}
			if raised := fs.dict.SetItem(f, v, None); raised != nil {
				return nil, 0, raised
			}
			i = next
		}
		return fs.ToObject(), i, nil
	case tagCode:
		c, next, raised := loadCodeAt(f, data, i-1)
		if raised != nil {
			return nil, 0, raised
		}
		return c.ToObject(), next, nil
	default:
		return nil, 0, f.RaiseType(ValueErrorType, fmt.Sprintf("marshal: unknown constant tag %d", tag))
	}
}
