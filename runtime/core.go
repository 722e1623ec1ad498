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
	"os"
	"reflect"

	"github.com/sirupsen/logrus"
)

// Log is the package-level structured logger used wherever CPython (and
// the teacher runtime) would call a bare log.Fatal for an interpreter
// invariant violation: a torn code object, an impossible MRO, a dispatch
// on a missing slot that prepareType should have inherited. PYTHONVERBOSE
// (-v) raises its level; see internal/config.
var Log = logrus.New()

func init() {
	Log.SetOutput(os.Stderr)
	Log.SetLevel(logrus.WarnLevel)
}

var logFatal = func(msg string) { Log.Fatal(msg) }

// Add returns the result of adding v and w according to __add__/__radd__.
func Add(f *Frame, v, w *Object) (*Object, *BaseException) {
	return binaryOp(f, v, w, v.typ.slots.Add, v.typ.slots.RAdd, w.typ.slots.RAdd, "+")
}

// Sub returns the result of subtracting w from v according to
// __sub__/__rsub__.
func Sub(f *Frame, v, w *Object) (*Object, *BaseException) {
	return binaryOp(f, v, w, v.typ.slots.Sub, v.typ.slots.RSub, w.typ.slots.RSub, "-")
}

// Mul returns the result of multiplying v and w according to
// __mul__/__rmul__.
func Mul(f *Frame, v, w *Object) (*Object, *BaseException) {
	return binaryOp(f, v, w, v.typ.slots.Mul, v.typ.slots.RMul, w.typ.slots.RMul, "*")
}

// Mod returns v % w according to __mod__/__rmod__.
func Mod(f *Frame, v, w *Object) (*Object, *BaseException) {
	return binaryOp(f, v, w, v.typ.slots.Mod, v.typ.slots.RMod, w.typ.slots.RMod, "%%")
}

// Pow returns v ** w according to __pow__/__rpow__.
func Pow(f *Frame, v, w *Object) (*Object, *BaseException) {
	return binaryOp(f, v, w, v.typ.slots.Pow, v.typ.slots.RPow, w.typ.slots.RPow, "** or pow()")
}

// TrueDiv returns v / w according to __truediv__/__rtruediv__.
func TrueDiv(f *Frame, v, w *Object) (*Object, *BaseException) {
	return binaryOp(f, v, w, v.typ.slots.TrueDiv, v.typ.slots.RTrueDiv, w.typ.slots.RTrueDiv, "/")
}

// FloorDiv returns v // w according to __floordiv__/__rfloordiv__.
func FloorDiv(f *Frame, v, w *Object) (*Object, *BaseException) {
	return binaryOp(f, v, w, v.typ.slots.FloorDiv, v.typ.slots.RFloorDiv, w.typ.slots.RFloorDiv, "//")
}

// LShift returns v << w according to __lshift__/__rlshift__.
func LShift(f *Frame, v, w *Object) (*Object, *BaseException) {
	return binaryOp(f, v, w, v.typ.slots.LShift, v.typ.slots.RLShift, w.typ.slots.RLShift, "<<")
}

// RShift returns v >> w according to __rshift__/__rrshift__.
func RShift(f *Frame, v, w *Object) (*Object, *BaseException) {
	return binaryOp(f, v, w, v.typ.slots.RShift, v.typ.slots.RRShift, w.typ.slots.RRShift, ">>")
}

// And returns the bitwise v & w according to __and__/__rand__.
func And(f *Frame, v, w *Object) (*Object, *BaseException) {
	return binaryOp(f, v, w, v.typ.slots.And, v.typ.slots.RAnd, w.typ.slots.RAnd, "&")
}

// Or returns the bitwise v | w according to __or__/__ror__.
func Or(f *Frame, v, w *Object) (*Object, *BaseException) {
	return binaryOp(f, v, w, v.typ.slots.Or, v.typ.slots.ROr, w.typ.slots.ROr, "|")
}

// Xor returns the bitwise v ^ w according to __xor__/__rxor__.
func Xor(f *Frame, v, w *Object) (*Object, *BaseException) {
	return binaryOp(f, v, w, v.typ.slots.Xor, v.typ.slots.RXor, w.typ.slots.RXor, "^")
}

// IAdd returns v.__iadd__(w) if defined, else falls back to Add.
func IAdd(f *Frame, v, w *Object) (*Object, *BaseException) {
	return inplaceOp(f, v, w, v.typ.slots.IAdd, Add)
}

// ISub returns v.__isub__(w) if defined, else falls back to Sub.
func ISub(f *Frame, v, w *Object) (*Object, *BaseException) {
	return inplaceOp(f, v, w, v.typ.slots.ISub, Sub)
}

// IMul returns v.__imul__(w) if defined, else falls back to Mul.
func IMul(f *Frame, v, w *Object) (*Object, *BaseException) {
	return inplaceOp(f, v, w, v.typ.slots.IMul, Mul)
}

// Neg returns the result of o.__neg__, equivalent to "-o".
func Neg(f *Frame, o *Object) (*Object, *BaseException) {
	neg := o.typ.slots.Neg
	if neg == nil {
		return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("bad operand type for unary -: '%s'", o.typ.Name()))
	}
	return neg.Fn(f, o)
}

// Invert returns the result of o.__invert__, equivalent to "~o".
func Invert(f *Frame, o *Object) (*Object, *BaseException) {
	invert := o.typ.slots.Invert
	if invert == nil {
		return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("bad operand type for unary ~: '%s'", o.typ.Name()))
	}
	return invert.Fn(f, o)
}

// Abs returns the result of o.__abs__, equivalent to "abs(o)".
func Abs(f *Frame, o *Object) (*Object, *BaseException) {
	abs := o.typ.slots.Abs
	if abs == nil {
		return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("bad operand type for abs(): '%s'", o.typ.Name()))
	}
	return abs.Fn(f, o)
}

// Assert raises AssertionError if cond is not truthy.
func Assert(f *Frame, cond *Object, msg *Object) *BaseException {
	result, raised := IsTrue(f, cond)
	if raised == nil && !result {
		if msg == nil {
			raised = f.Raise(AssertionErrorType.ToObject(), nil, nil)
		} else {
			var s *Str
			s, raised = ToStr(f, msg)
			if raised == nil {
				raised = f.RaiseType(AssertionErrorType, s.Value())
			}
		}
	}
	return raised
}

// Contains checks whether value is present in seq, equivalent to the Python
// expression "value in seq".
func Contains(f *Frame, seq, value *Object) (bool, *BaseException) {
	if contains := seq.typ.slots.Contains; contains != nil {
		ret, raised := contains.Fn(f, seq, value)
		if raised != nil {
			return false, raised
		}
		return IsTrue(f, ret)
	}
	iter, raised := Iter(f, seq)
	if raised != nil {
		return false, raised
	}
	o, raised := Next(f, iter)
	for ; raised == nil; o, raised = Next(f, iter) {
		eq, raised := Eq(f, o, value)
		if raised != nil {
			return false, raised
		}
		if ret, raised := IsTrue(f, eq); raised != nil {
			return false, raised
		} else if ret {
			return true, nil
		}
	}
	if !raised.isInstance(StopIterationType) {
		return false, raised
	}
	f.RestoreExc(nil, nil)
	return false, nil
}

// DelAttr removes the named attribute of o.
func DelAttr(f *Frame, o *Object, name *Str) *BaseException {
	delAttr := o.typ.slots.DelAttr
	if delAttr == nil {
		return f.RaiseType(AttributeErrorType, fmt.Sprintf("'%s' object has no attribute '%s'", o.typ.Name(), name.Value()))
	}
	return delAttr.Fn(f, o, name)
}

// DelVar removes the named variable from namespace (e.g. a module globals
// dict), raising NameError if absent.
func DelVar(f *Frame, namespace *Dict, name *Str) *BaseException {
	deleted, raised := namespace.DelItem(f, name.ToObject())
	if raised != nil {
		return raised
	}
	if !deleted {
		return f.RaiseType(NameErrorType, fmt.Sprintf("name '%s' is not defined", name.Value()))
	}
	return nil
}

// DelItem performs "del o[key]".
func DelItem(f *Frame, o, key *Object) *BaseException {
	delItem := o.typ.slots.DelItem
	if delItem == nil {
		return f.RaiseType(TypeErrorType, fmt.Sprintf("'%s' object does not support item deletion", o.typ.Name()))
	}
	return delItem.Fn(f, o, key)
}

// Eq returns the equality of v and w according to __eq__, falling back to
// identity comparison (spec.md §4.1's "identity-equal objects are equal by
// default").
func Eq(f *Frame, v, w *Object) (*Object, *BaseException) {
	r, raised := compareRich(f, compareOpEq, v, w)
	if raised != nil {
		return nil, raised
	}
	if r != NotImplemented {
		return r, nil
	}
	return GetBool(v == w).ToObject(), nil
}

// FormatException returns a single-line "Type: message\n" string for e.
func FormatException(f *Frame, e *BaseException) (string, *BaseException) {
	s, raised := ToStr(f, e.ToObject())
	if raised != nil {
		return "", raised
	}
	if len(s.Value()) == 0 {
		return e.typ.Name() + "\n", nil
	}
	return fmt.Sprintf("%s: %s\n", e.typ.Name(), s.Value()), nil
}

// GE returns the result of v >= w.
func GE(f *Frame, v, w *Object) (*Object, *BaseException) {
	r, raised := compareRich(f, compareOpGE, v, w)
	if raised != nil {
		return nil, raised
	}
	if r != NotImplemented {
		return r, nil
	}
	return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("'>=' not supported between instances of '%s' and '%s'", v.typ.Name(), w.typ.Name()))
}

// GetItem returns the result of o[key].
func GetItem(f *Frame, o, key *Object) (*Object, *BaseException) {
	getItem := o.typ.slots.GetItem
	if getItem == nil {
		return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("'%s' object is not subscriptable", o.typ.Name()))
	}
	return getItem.Fn(f, o, key)
}

// GetAttr returns the named attribute of o, or def if non-nil and o has no
// such attribute, equivalent to "getattr(o, name, def)".
func GetAttr(f *Frame, o *Object, name *Str, def *Object) (*Object, *BaseException) {
	getAttribute := o.typ.slots.GetAttribute
	if getAttribute == nil {
		msg := fmt.Sprintf("'%s' object has no attribute '%s'", o.typ.Name(), name.Value())
		return nil, f.RaiseType(AttributeErrorType, msg)
	}
	result, raised := getAttribute.Fn(f, o, name)
	if raised != nil && raised.isInstance(AttributeErrorType) && def != nil {
		f.RestoreExc(nil, nil)
		result, raised = def, nil
	}
	return result, raised
}

// GT returns the result of v > w.
func GT(f *Frame, v, w *Object) (*Object, *BaseException) {
	r, raised := compareRich(f, compareOpGT, v, w)
	if raised != nil {
		return nil, raised
	}
	if r != NotImplemented {
		return r, nil
	}
	return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("'>' not supported between instances of '%s' and '%s'", v.typ.Name(), w.typ.Name()))
}

// LE returns the result of v <= w.
func LE(f *Frame, v, w *Object) (*Object, *BaseException) {
	r, raised := compareRich(f, compareOpLE, v, w)
	if raised != nil {
		return nil, raised
	}
	if r != NotImplemented {
		return r, nil
	}
	return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("'<=' not supported between instances of '%s' and '%s'", v.typ.Name(), w.typ.Name()))
}

// LT returns the result of v < w.
func LT(f *Frame, v, w *Object) (*Object, *BaseException) {
	r, raised := compareRich(f, compareOpLT, v, w)
	if raised != nil {
		return nil, raised
	}
	if r != NotImplemented {
		return r, nil
	}
	return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("'<' not supported between instances of '%s' and '%s'", v.typ.Name(), w.typ.Name()))
}

// NE returns the non-equality of v and w according to __ne__.
func NE(f *Frame, v, w *Object) (*Object, *BaseException) {
	r, raised := compareRich(f, compareOpNE, v, w)
	if raised != nil {
		return nil, raised
	}
	if r != NotImplemented {
		return r, nil
	}
	return GetBool(v != w).ToObject(), nil
}

// Hash returns the hash of o according to __hash__.
func Hash(f *Frame, o *Object) (*Int, *BaseException) {
	hash := o.typ.slots.Hash
	if hash == nil {
		_, raised := hashNotImplemented(f, o)
		return nil, raised
	}
	h, raised := hash.Fn(f, o)
	if raised != nil {
		return nil, raised
	}
	if !h.isInstance(IntType) {
		return nil, f.RaiseType(TypeErrorType, "__hash__ method should return an integer")
	}
	return toIntUnsafe(h), nil
}

// IsInstance reports whether o is an instance of classinfo (a type or tuple
// of types), equivalent to "isinstance(o, classinfo)".
func IsInstance(f *Frame, o *Object, classinfo *Object) (bool, *BaseException) {
	return IsSubclass(f, o.typ.ToObject(), classinfo)
}

// IsSubclass reports whether the type o is a subclass of classinfo (a type
// or tuple of types), equivalent to "issubclass(o, classinfo)".
func IsSubclass(f *Frame, o *Object, classinfo *Object) (bool, *BaseException) {
	if !o.isInstance(TypeType) {
		return false, f.RaiseType(TypeErrorType, "issubclass() arg 1 must be a class")
	}
	t := toTypeUnsafe(o)
	errorMsg := "issubclass() arg 2 must be a class, a tuple of classes, or a union"
	if classinfo.isInstance(TypeType) {
		return t.isSubclass(toTypeUnsafe(classinfo)), nil
	}
	if !classinfo.isInstance(TupleType) {
		return false, f.RaiseType(TypeErrorType, errorMsg)
	}
	for _, elem := range toTupleUnsafe(classinfo).elems {
		if !elem.isInstance(TypeType) {
			return false, f.RaiseType(TypeErrorType, errorMsg)
		}
		if t.isSubclass(toTypeUnsafe(elem)) {
			return true, nil
		}
	}
	return false, nil
}

// IsTrue returns the truthiness of o according to __bool__, falling back to
// __len__ != 0, falling back to True.
func IsTrue(f *Frame, o *Object) (bool, *BaseException) {
	switch o {
	case True.ToObject():
		return true, nil
	case False.ToObject(), None:
		return false, nil
	}
	boolSlot := o.typ.slots.Bool
	if boolSlot != nil {
		r, raised := boolSlot.Fn(f, o)
		if raised != nil {
			return false, raised
		}
		if r.isInstance(BoolType) {
			return r == True.ToObject(), nil
		}
		return false, f.RaiseType(TypeErrorType, fmt.Sprintf("__bool__ should return bool, returned %s", r.typ.Name()))
	}
	if o.typ.slots.Len != nil {
		l, raised := Len(f, o)
		if raised != nil {
			return false, raised
		}
		return l.Value() != 0, nil
	}
	return true, nil
}

// Iter returns an iterator for o, equivalent to "iter(o)".
func Iter(f *Frame, o *Object) (*Object, *BaseException) {
	iter := o.typ.slots.Iter
	if iter != nil {
		return iter.Fn(f, o)
	}
	if o.typ.slots.GetItem != nil {
		return newSeqIterator(o), nil
	}
	return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("'%s' object is not iterable", o.typ.Name()))
}

// Len returns the length of the given sequence or mapping object.
func Len(f *Frame, o *Object) (*Int, *BaseException) {
	lenSlot := o.typ.slots.Len
	if lenSlot == nil {
		return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("object of type '%s' has no len()", o.typ.Name()))
	}
	r, raised := lenSlot.Fn(f, o)
	if raised != nil {
		return nil, raised
	}
	if !r.isInstance(IntType) {
		return nil, f.RaiseType(TypeErrorType, "__len__ should return an integer")
	}
	return toIntUnsafe(r), nil
}

// Index returns o converted according to its __index__ slot, or o itself
// if o is already an int.
func Index(f *Frame, o *Object) (*Object, *BaseException) {
	if o.isInstance(IntType) {
		return o, nil
	}
	index := o.typ.slots.Index
	if index == nil {
		return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("'%s' object cannot be interpreted as an integer", o.typ.Name()))
	}
	i, raised := index.Fn(f, o)
	if raised != nil {
		return nil, raised
	}
	if !i.isInstance(IntType) {
		return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("__index__ returned non-int (type %s)", i.typ.Name()))
	}
	return i, nil
}

// IndexInt converts o to a Go int via its __index__ slot.
func IndexInt(f *Frame, o *Object) (int, *BaseException) {
	i, raised := Index(f, o)
	if raised != nil {
		return 0, raised
	}
	return toIntUnsafe(i).Value(), nil
}

// Invoke calls callable with args plus the elements of varargs (if non-nil)
// and keywords plus the entries of kwargs (if non-nil), implementing
// CALL's *args/**kwargs expansion.
func Invoke(f *Frame, callable *Object, args Args, varargs *Object, keywords KWArgs, kwargs *Object) (*Object, *BaseException) {
	if varargs != nil {
		raised := seqApply(f, varargs, func(elems []*Object, _ bool) *BaseException {
			numArgs := len(args)
			packed := make([]*Object, numArgs+len(elems))
			copy(packed, args)
			copy(packed[numArgs:], elems)
			args = packed
			return nil
		})
		if raised != nil {
			return nil, raised
		}
	}
	if kwargs != nil {
		if !kwargs.isInstance(DictType) {
			return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("argument after ** must be a mapping, not %s", kwargs.typ.Name()))
		}
		kwargsDict := toDictUnsafe(kwargs)
		numKeywords := len(keywords)
		numKwargs, raised := Len(f, kwargs)
		if raised != nil {
			return nil, raised
		}
		packed := make(KWArgs, numKeywords, numKeywords+numKwargs.Value())
		copy(packed, keywords)
		raised = seqForEach(f, kwargs, func(o *Object) *BaseException {
			if !o.isInstance(StrType) {
				return f.RaiseType(TypeErrorType, "keywords must be strings")
			}
			s := toStrUnsafe(o).Value()
			for _, kw := range keywords {
				if kw.Name == s {
					return f.RaiseType(TypeErrorType, fmt.Sprintf("got multiple values for keyword argument '%s'", s))
				}
			}
			item, raised := kwargsDict.GetItem(f, o)
			if raised != nil {
				return raised
			}
			if item == nil {
				return raiseKeyError(f, o)
			}
			packed = append(packed, KWArg{Name: s, Value: item})
			return nil
		})
		if raised != nil {
			return nil, raised
		}
		keywords = packed
	}
	return callable.Call(f, args, keywords)
}

// Next advances the given iterator, equivalent to "next(iter)".
func Next(f *Frame, iter *Object) (*Object, *BaseException) {
	next := iter.typ.slots.Next
	if next == nil {
		return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("'%s' object is not an iterator", iter.typ.Name()))
	}
	return next.Fn(f, iter)
}

// Print implements the print() builtin: str()-ify args, join with spaces,
// write to stdout.
func Print(f *Frame, args Args, nl bool) *BaseException {
	for i, arg := range args {
		if i > 0 {
			fmt.Print(" ")
		}
		s, raised := ToStr(f, arg)
		if raised != nil {
			return raised
		}
		fmt.Print(s.Value())
	}
	if nl {
		fmt.Println()
	}
	return nil
}

// Repr returns a printable representation of o, equivalent to "repr(o)".
func Repr(f *Frame, o *Object) (*Str, *BaseException) {
	repr := o.typ.slots.Repr
	if repr == nil {
		s, raised := o.typ.FullName(f)
		if raised != nil {
			return nil, raised
		}
		return NewStr(fmt.Sprintf("<%s object at %p>", s, o)), nil
	}
	r, raised := repr.Fn(f, o)
	if raised != nil {
		return nil, raised
	}
	if !r.isInstance(StrType) {
		return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("__repr__ returned non-string (type %s)", r.typ.Name()))
	}
	return toStrUnsafe(r), nil
}

// Str returns the str() of o, falling back to repr() when __str__ is
// absent (object's default str delegates to its __repr__).
func Str(f *Frame, o *Object) (*Str, *BaseException) {
	strSlot := o.typ.slots.Str
	if strSlot == nil {
		return Repr(f, o)
	}
	r, raised := strSlot.Fn(f, o)
	if raised != nil {
		return nil, raised
	}
	if !r.isInstance(StrType) {
		return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("__str__ returned non-string (type %s)", r.typ.Name()))
	}
	return toStrUnsafe(r), nil
}

// ResolveGlobal looks up name in f's module globals, falling back to the
// builtins module, raising NameError if absent from both (spec.md §4.4's
// LOAD_GLOBAL semantics).
func ResolveGlobal(f *Frame, name *Str) (*Object, *BaseException) {
	if value, raised := f.Globals().GetItem(f, name.ToObject()); raised != nil || value != nil {
		return value, raised
	}
	value, raised := Builtins.GetItem(f, name.ToObject())
	if raised != nil {
		return nil, raised
	}
	if value == nil {
		return nil, f.RaiseType(NameErrorType, fmt.Sprintf("name '%s' is not defined", name.Value()))
	}
	return value, nil
}

// CheckLocal validates that a fast-local slot has been bound, raising
// UnboundLocalError (spec.md §4.4) if it still holds the unbound sentinel.
func CheckLocal(f *Frame, value *Object, name string) *BaseException {
	if value == UnboundLocal {
		return f.RaiseType(UnboundLocalErrorType, fmt.Sprintf("local variable '%s' referenced before assignment", name))
	}
	return nil
}

// SetAttr sets the named attribute of o to value.
func SetAttr(f *Frame, o *Object, name *Str, value *Object) *BaseException {
	setAttr := o.typ.slots.SetAttr
	if setAttr == nil {
		return f.RaiseType(AttributeErrorType, fmt.Sprintf("'%s' object has no attribute '%s'", o.typ.Name(), name.Value()))
	}
	return setAttr.Fn(f, o, name, value)
}

// SetItem performs "o[key] = value".
func SetItem(f *Frame, o, key, value *Object) *BaseException {
	setItem := o.typ.slots.SetItem
	if setItem == nil {
		return f.RaiseType(TypeErrorType, fmt.Sprintf("'%s' object does not support item assignment", o.typ.Name()))
	}
	return setItem.Fn(f, o, key, value)
}

// StartThread runs callable in a new goroutine, used by the `threading`
// module surface (spec.md treats the full stdlib as out of scope, but the
// frame interpreter itself needs a bare thread-start primitive for
// generators run under `asyncio`-style drivers during tests).
func StartThread(callable *Object) {
	go func() {
		f := NewRootFrame()
		if _, raised := callable.Call(f, nil, nil); raised != nil {
			s, err := FormatException(f, raised)
			if err != nil {
				s = err.String()
			}
			fmt.Fprint(os.Stderr, s)
		}
	}()
}

// ToNative converts o to a native Go value via its __native__ slot, used
// by the marshal and codec layers to cross the Go/Python boundary.
func ToNative(f *Frame, o *Object) (reflect.Value, *BaseException) {
	if native := o.typ.slots.Native; native != nil {
		return reflect.ValueOf(native.Fn(o)), nil
	}
	return reflect.ValueOf(o), nil
}

// ToStr is a convenience wrapper for "str(o)" that also validates the
// __str__ protocol contract.
func ToStr(f *Frame, o *Object) (*Str, *BaseException) {
	return Str(f, o)
}

const errUnsupportedOperand = "unsupported operand type(s) for %s: '%s' and '%s'"

// binaryOp implements spec.md §4.1's binary-operator dispatch rule: try the
// left operand's slot, then the right operand's reflected slot (preferring
// w's reflected slot first when type(w) is a strict subclass of type(v)
// and overrides it), else TypeError.
func binaryOp(f *Frame, v, w *Object, op, vrop, wrop *binaryOpSlot, opName string) (*Object, *BaseException) {
	if v.typ != w.typ && w.typ.isSubclass(v.typ) {
		if wrop != nil && wrop != vrop {
			r, raised := wrop.Fn(f, w, v)
			if raised != nil {
				return nil, raised
			}
			if r != NotImplemented {
				return r, nil
			}
		}
	}
	if op != nil {
		r, raised := op.Fn(f, v, w)
		if raised != nil {
			return nil, raised
		}
		if r != NotImplemented {
			return r, nil
		}
	}
	if wrop != nil {
		r, raised := wrop.Fn(f, w, v)
		if raised != nil {
			return nil, raised
		}
		if r != NotImplemented {
			return r, nil
		}
	}
	return nil, f.RaiseType(TypeErrorType, fmt.Sprintf(errUnsupportedOperand, opName, v.typ.Name(), w.typ.Name()))
}

func inplaceOp(f *Frame, v, w *Object, slot *binaryOpSlot, fallback func(*Frame, *Object, *Object) (*Object, *BaseException)) (*Object, *BaseException) {
	if slot != nil {
		r, raised := slot.Fn(f, v, w)
		if raised != nil {
			return nil, raised
		}
		if r != NotImplemented {
			return r, nil
		}
	}
	return fallback(f, v, w)
}

type compareOp int

const (
	compareOpLT compareOp = iota
	compareOpLE
	compareOpEq
	compareOpNE
	compareOpGE
	compareOpGT
)

var compareOpSwapped = []compareOp{compareOpGT, compareOpGE, compareOpEq, compareOpNE, compareOpLE, compareOpLT}

func (op compareOp) swapped() compareOp { return compareOpSwapped[op] }

func (op compareOp) slot(t *Type) *binaryOpSlot {
	switch op {
	case compareOpLT:
		return t.slots.LT
	case compareOpLE:
		return t.slots.LE
	case compareOpEq:
		return t.slots.Eq
	case compareOpNE:
		return t.slots.NE
	case compareOpGE:
		return t.slots.GE
	case compareOpGT:
		return t.slots.GT
	}
	panic(fmt.Sprintf("invalid compareOp value: %d", op))
}

func compareRich(f *Frame, op compareOp, v, w *Object) (*Object, *BaseException) {
	if v.typ != w.typ && w.typ.isSubclass(v.typ) {
		slot := op.swapped().slot(w.typ)
		if slot != nil {
			r, raised := slot.Fn(f, w, v)
			if raised != nil {
				return nil, raised
			}
			if r != NotImplemented {
				return r, nil
			}
		}
	}
	slot := op.slot(v.typ)
	if slot != nil {
		r, raised := slot.Fn(f, v, w)
		if raised != nil {
			return nil, raised
		}
		if r != NotImplemented {
			return r, nil
		}
	}
	slot = op.swapped().slot(w.typ)
	if slot != nil {
		return slot.Fn(f, w, v)
	}
	return NotImplemented, nil
}

func checkFunctionArgs(f *Frame, function string, args Args, types ...*Type) *BaseException {
	if len(args) != len(types) {
		return f.RaiseType(TypeErrorType, fmt.Sprintf("%s() takes %d arguments but %d were given", function, len(types), len(args)))
	}
	for i, t := range types {
		if !args[i].isInstance(t) {
			return f.RaiseType(TypeErrorType, fmt.Sprintf("%s() requires a '%s' object but received a '%s'", function, t.Name(), args[i].typ.Name()))
		}
	}
	return nil
}

func checkMethodArgs(f *Frame, method string, args Args, types ...*Type) *BaseException {
	if len(args) != len(types) {
		return f.RaiseType(TypeErrorType, fmt.Sprintf("'%s' of '%s' requires %d arguments", method, types[0].Name(), len(types)))
	}
	for i, t := range types {
		if !args[i].isInstance(t) {
			return f.RaiseType(TypeErrorType, fmt.Sprintf("'%s' requires a '%s' object but received a '%s'", method, t.Name(), args[i].typ.Name()))
		}
	}
	return nil
}

func hashNotImplemented(f *Frame, o *Object) (*Object, *BaseException) {
	return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("unhashable type: '%s'", o.typ.Name()))
}
