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
	"math"
	"os"
	"reflect"
	"sync"
)

var (
	// Builtins contains all of the Python built-in identifiers, populated
	// by the package init() below once every builtin type's dict has been
	// prepared.
	Builtins = NewDict()
	// builtinStr holds the Python 3 dunder module name ("builtins"; Python 2
	// called it "__builtin__" as grumpy's builtinStr does) stamped onto
	// every builtin type's __module__ attribute by prepareBuiltinType.
	builtinStr = NewStr("builtins")
	// ExceptionTypes contains every builtin exception type, appended to by
	// initBuiltinType as it walks the registry below.
	ExceptionTypes []*Type
)

// callIterator backs the two-argument form of iter(callable, sentinel):
// each call to next() invokes callable and raises StopIteration once the
// result compares equal to sentinel. Grounded on seqIterator's mutex/index
// pattern in seq.go, since grumpy itself never implemented this form.
type callIterator struct {
	Object
	mutex    sync.Mutex
	callable *Object
	sentinel *Object
	done     bool
}

func newCallIterator(callable, sentinel *Object) *Object {
	iter := &callIterator{Object: Object{typ: callIteratorType}, callable: callable, sentinel: sentinel}
	return &iter.Object
}

func toCallIteratorUnsafe(o *Object) *callIterator {
	return (*callIterator)(o.toPointer())
}

var callIteratorType = newBasisType("callable_iterator", reflect.TypeOf(callIterator{}), toCallIteratorUnsafe, ObjectType)

func callIteratorIter(f *Frame, o *Object) (*Object, *BaseException) { return o, nil }

func callIteratorNext(f *Frame, o *Object) (*Object, *BaseException) {
	i := toCallIteratorUnsafe(o)
	i.mutex.Lock()
	defer i.mutex.Unlock()
	if i.done {
		return nil, f.Raise(StopIterationType.ToObject(), nil, nil)
	}
	item, raised := i.callable.Call(f, nil, nil)
	if raised != nil {
		return nil, raised
	}
	eq, raised := Eq(f, item, i.sentinel)
	if raised != nil {
		return nil, raised
	}
	isEq, raised := IsTrue(f, eq)
	if raised != nil {
		return nil, raised
	}
	if isEq {
		i.done = true
		return nil, f.Raise(StopIterationType.ToObject(), nil, nil)
	}
	return item, nil
}

func initCallIteratorType(map[string]*Object) {
	callIteratorType.flags &^= typeFlagBasetype | typeFlagInstantiable
	callIteratorType.slots.Iter = &unaryOpSlot{callIteratorIter}
	callIteratorType.slots.Next = &unaryOpSlot{callIteratorNext}
}

type typeState int

const (
	typeStateNotReady typeState = iota
	typeStateInitializing
	typeStateReady
)

type builtinTypeInfo struct {
	state  typeState
	init   builtinTypeInit
	global bool
}

// builtinTypes is the registry of every type defined by this package. Each
// entry's init func (if any) populates its dict with the methods/slots that
// can't be expressed as struct field descriptors; global marks types that
// should also appear as a name in the 'builtins' namespace.
var builtinTypes = map[*Type]*builtinTypeInfo{
	ArithmeticErrorType:           {global: true},
	AssertionErrorType:            {global: true},
	AttributeErrorType:            {global: true},
	BaseExceptionType:             {init: initBaseExceptionType, global: true},
	BlockingIOErrorType:           {global: true},
	BoolType:                      {init: initBoolType, global: true},
	ByteArrayType:                 {init: initByteArrayType, global: true},
	BrokenPipeErrorType:           {global: true},
	BufferErrorType:               {global: true},
	BytesType:                     {init: initBytesType, global: true},
	BytesWarningType:              {global: true},
	callIteratorType:              {init: initCallIteratorType},
	CellType:                      {init: initCellType},
	ChildProcessErrorType:         {global: true},
	ClassMethodType:               {init: initClassMethodType, global: true},
	CodeType:                      {init: initCodeType},
	ConnectionAbortedErrorType:    {global: true},
	ConnectionErrorType:           {global: true},
	ConnectionRefusedErrorType:    {global: true},
	ConnectionResetErrorType:      {global: true},
	DeprecationWarningType:        {global: true},
	dictItemIteratorType:          {init: initDictItemIteratorType},
	dictKeyIteratorType:           {init: initDictKeyIteratorType},
	dictValueIteratorType:         {init: initDictValueIteratorType},
	DictType:                      {init: initDictType, global: true},
	EllipsisType:                  {init: initEllipsisType, global: true},
	EOFErrorType:                  {global: true},
	ExceptionType:                 {global: true},
	FileExistsErrorType:           {global: true},
	FileNotFoundErrorType:         {global: true},
	FloatingPointErrorType:        {global: true},
	FloatType:                     {init: initFloatType, global: true},
	FrozenSetType:                 {init: initFrozenSetType, global: true},
	FunctionType:                  {init: initFunctionType},
	FutureWarningType:             {global: true},
	GeneratorExitType:             {global: true},
	GeneratorType:                 {init: initGeneratorType},
	ImportErrorType:               {global: true},
	ImportWarningType:             {global: true},
	IndentationErrorType:          {global: true},
	IndexErrorType:                {global: true},
	IntType:                       {init: initIntType, global: true},
	InterruptedErrorType:          {global: true},
	IsADirectoryErrorType:         {global: true},
	KeyboardInterruptType:         {global: true},
	KeyErrorType:                  {global: true},
	listIteratorType:              {init: initListIteratorType},
	ListType:                      {init: initListType, global: true},
	LookupErrorType:               {global: true},
	MemoryErrorType:               {global: true},
	MethodType:                    {init: initMethodType},
	ModuleNotFoundErrorType:       {global: true},
	ModuleType:                    {init: initModuleType},
	monitoringSentinelType:        {},
	NameErrorType:                 {global: true},
	NoneType:                      {init: initNoneType, global: true},
	NotADirectoryErrorType:        {global: true},
	NotImplementedErrorType:       {global: true},
	NotImplementedType:            {init: initNotImplementedType, global: true},
	ObjectType:                    {init: initObjectType, global: true},
	OSErrorType:                   {global: true},
	OverflowErrorType:             {global: true},
	PendingDeprecationWarningType: {global: true},
	PermissionErrorType:           {global: true},
	ProcessLookupErrorType:        {global: true},
	PropertyType:                  {init: initPropertyType, global: true},
	RecursionErrorType:            {global: true},
	ReferenceErrorType:            {global: true},
	ResourceWarningType:           {global: true},
	RuntimeErrorType:              {global: true},
	RuntimeWarningType:            {global: true},
	seqIteratorType:               {init: initSeqIteratorType},
	SetType:                       {init: initSetType, global: true},
	SliceType:                     {init: initSliceType, global: true},
	StaticMethodType:              {init: initStaticMethodType, global: true},
	StopAsyncIterationType:        {global: true},
	StopIterationType:             {global: true},
	StrType:                       {init: initStrType, global: true},
	SyntaxErrorType:               {global: true},
	TracebackType:                 {init: initTracebackType},
	SyntaxWarningType:             {global: true},
	SystemErrorType:               {global: true},
	SystemExitType:                {init: initSystemExitType, global: true},
	TabErrorType:                  {global: true},
	TimeoutErrorType:              {global: true},
	TupleType:                     {init: initTupleType, global: true},
	TypeErrorType:                 {global: true},
	TypeType:                      {init: initTypeType, global: true},
	UnboundLocalErrorType:         {global: true},
	unboundLocalType:              {init: initUnboundLocalType},
	UnicodeDecodeErrorType:        {global: true},
	UnicodeEncodeErrorType:        {global: true},
	UnicodeErrorType:              {global: true},
	UnicodeWarningType:            {global: true},
	UserWarningType:               {global: true},
	ValueErrorType:                {global: true},
	WarningType:                   {global: true},
	WeakRefType:                   {init: initWeakRefType},
	ZeroDivisionErrorType:         {global: true},
}

// initBuiltinType finalizes typ's dict and MRO (via prepareBuiltinType),
// first recursing into its bases. The state field breaks cycles: grumpy's
// version of this function is ported unchanged since the type graph being
// walked (not the language being compiled) is what drives it.
func initBuiltinType(typ *Type, info *builtinTypeInfo) {
	if info.state == typeStateReady {
		return
	}
	if info.state == typeStateInitializing {
		logFatal(fmt.Sprintf("cycle in type initialization for: %s", typ.name))
	}
	info.state = typeStateInitializing
	for _, base := range typ.bases {
		baseInfo, ok := builtinTypes[base]
		if !ok {
			logFatal(fmt.Sprintf("base type not registered for: %s", typ.name))
		}
		initBuiltinType(base, baseInfo)
	}
	prepareBuiltinType(typ, info.init)
	info.state = typeStateReady
	if typ.isSubclass(BaseExceptionType) {
		ExceptionTypes = append(ExceptionTypes, typ)
	}
}

func checkFunctionVarArgs(f *Frame, function string, args Args, types ...*Type) *BaseException {
	if len(args) <= len(types) {
		return checkFunctionArgs(f, function, args, types...)
	}
	return checkFunctionArgs(f, function, args[:len(types)], types...)
}

func builtinAbs(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkFunctionArgs(f, "abs", args, ObjectType); raised != nil {
		return nil, raised
	}
	return Abs(f, args[0])
}

func builtinAll(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkFunctionArgs(f, "all", args, ObjectType); raised != nil {
		return nil, raised
	}
	pred := func(o *Object) (bool, *BaseException) {
		ret, raised := IsTrue(f, o)
		if raised != nil {
			return false, raised
		}
		return !ret, nil
	}
	foundFalseItem, raised := seqFindFirst(f, args[0], pred)
	if raised != nil {
		return nil, raised
	}
	return GetBool(!foundFalseItem).ToObject(), nil
}

func builtinAny(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkFunctionArgs(f, "any", args, ObjectType); raised != nil {
		return nil, raised
	}
	pred := func(o *Object) (bool, *BaseException) {
		ret, raised := IsTrue(f, o)
		if raised != nil {
			return false, raised
		}
		return ret, nil
	}
	foundTrueItem, raised := seqFindFirst(f, args[0], pred)
	if raised != nil {
		return nil, raised
	}
	return GetBool(foundTrueItem).ToObject(), nil
}

// numberToBase implements the builtins "bin", "hex", and "oct". base must be
// between 2 and 36. pyrt's unified Int (backed by math/big) makes this
// simpler than grumpy's Int/Long split: there's only ever one case.
func numberToBase(prefix string, base int, o *Object) string {
	z := toIntUnsafe(o).BigValue()
	s := z.Text(base)
	if len(s) > 0 && s[0] == '-' {
		return "-" + prefix + s[1:]
	}
	return prefix + s
}

func builtinBin(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkFunctionArgs(f, "bin", args, ObjectType); raised != nil {
		return nil, raised
	}
	index, raised := Index(f, args[0])
	if raised != nil {
		return nil, raised
	}
	if index == nil {
		return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("%s object cannot be interpreted as an index", args[0].typ.Name()))
	}
	return NewStr(numberToBase("0b", 2, index)).ToObject(), nil
}

func builtinHex(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkFunctionArgs(f, "hex", args, ObjectType); raised != nil {
		return nil, raised
	}
	index, raised := Index(f, args[0])
	if raised != nil {
		return nil, raised
	}
	if index == nil {
		return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("%s object cannot be interpreted as an index", args[0].typ.Name()))
	}
	return NewStr(numberToBase("0x", 16, index)).ToObject(), nil
}

func builtinOct(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkFunctionArgs(f, "oct", args, ObjectType); raised != nil {
		return nil, raised
	}
	index, raised := Index(f, args[0])
	if raised != nil {
		return nil, raised
	}
	if index == nil {
		return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("%s object cannot be interpreted as an index", args[0].typ.Name()))
	}
	return NewStr(numberToBase("0o", 8, index)).ToObject(), nil
}

func builtinCallable(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkFunctionArgs(f, "callable", args, ObjectType); raised != nil {
		return nil, raised
	}
	if args[0].Type().slots.Call == nil {
		return False.ToObject(), nil
	}
	return True.ToObject(), nil
}

func builtinChr(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkFunctionArgs(f, "chr", args, IntType); raised != nil {
		return nil, raised
	}
	i := toIntUnsafe(args[0]).Value()
	if i < 0 || i > 0x10FFFF {
		return nil, f.RaiseType(ValueErrorType, "chr() arg not in range(0x110000)")
	}
	return NewStr(string(rune(i))).ToObject(), nil
}

func builtinDelAttr(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkFunctionArgs(f, "delattr", args, ObjectType, StrType); raised != nil {
		return nil, raised
	}
	return None, DelAttr(f, args[0], toStrUnsafe(args[1]))
}

func builtinDivMod(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkFunctionArgs(f, "divmod", args, ObjectType, ObjectType); raised != nil {
		return nil, raised
	}
	q, raised := FloorDiv(f, args[0], args[1])
	if raised != nil {
		return nil, raised
	}
	r, raised := Mod(f, args[0], args[1])
	if raised != nil {
		return nil, raised
	}
	return NewTuple2(q, r).ToObject(), nil
}

func builtinGetAttr(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	expectedTypes := []*Type{ObjectType, StrType, ObjectType}
	argc := len(args)
	if argc == 2 {
		expectedTypes = expectedTypes[:2]
	}
	if raised := checkFunctionArgs(f, "getattr", args, expectedTypes...); raised != nil {
		return nil, raised
	}
	var def *Object
	if argc == 3 {
		def = args[2]
	}
	return GetAttr(f, args[0], toStrUnsafe(args[1]), def)
}

func builtinHasAttr(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkFunctionArgs(f, "hasattr", args, ObjectType, StrType); raised != nil {
		return nil, raised
	}
	if _, raised := GetAttr(f, args[0], toStrUnsafe(args[1]), nil); raised != nil {
		if raised.isInstance(AttributeErrorType) {
			return False.ToObject(), nil
		}
		return nil, raised
	}
	return True.ToObject(), nil
}

func builtinHash(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkFunctionArgs(f, "hash", args, ObjectType); raised != nil {
		return nil, raised
	}
	h, raised := Hash(f, args[0])
	if raised != nil {
		return nil, raised
	}
	return h.ToObject(), nil
}

func builtinID(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkFunctionArgs(f, "id", args, ObjectType); raised != nil {
		return nil, raised
	}
	return NewInt(int(uintptr(args[0].toPointer()))).ToObject(), nil
}

func builtinIsInstance(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkFunctionArgs(f, "isinstance", args, ObjectType, ObjectType); raised != nil {
		return nil, raised
	}
	ret, raised := IsInstance(f, args[0], args[1])
	if raised != nil {
		return nil, raised
	}
	return GetBool(ret).ToObject(), nil
}

func builtinIsSubclass(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkFunctionArgs(f, "issubclass", args, ObjectType, ObjectType); raised != nil {
		return nil, raised
	}
	ret, raised := IsSubclass(f, args[0], args[1])
	if raised != nil {
		return nil, raised
	}
	return GetBool(ret).ToObject(), nil
}

func builtinIter(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	expectedTypes := []*Type{ObjectType, ObjectType}
	argc := len(args)
	if argc == 1 {
		expectedTypes = expectedTypes[:1]
	}
	if raised := checkFunctionArgs(f, "iter", args, expectedTypes...); raised != nil {
		return nil, raised
	}
	if argc == 1 {
		return Iter(f, args[0])
	}
	sentinel := args[1]
	return newCallIterator(args[0], sentinel), nil
}

func builtinLen(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkFunctionArgs(f, "len", args, ObjectType); raised != nil {
		return nil, raised
	}
	l, raised := Len(f, args[0])
	if raised != nil {
		return nil, raised
	}
	return l.ToObject(), nil
}

// initIters returns a slice of Iter() results, one per item.
func initIters(f *Frame, items []*Object) ([]*Object, *BaseException) {
	iters := make([]*Object, len(items))
	for i, arg := range items {
		iter, raised := Iter(f, arg)
		if raised != nil {
			return nil, raised
		}
		iters[i] = iter
	}
	return iters, nil
}

// zipLongest returns the list of aggregated elements from each of the
// iterables. If the iterables are of uneven length, missing values are
// filled in with None.
func zipLongest(f *Frame, args Args) ([][]*Object, *BaseException) {
	argc := len(args)
	result := make([][]*Object, 0, 2)
	iters, raised := initIters(f, args)
	if raised != nil {
		return nil, raised
	}
	for {
		noItems := true
		elems := make([]*Object, argc)
		for i, iter := range iters {
			if iter == nil {
				continue
			}
			elem, raised := Next(f, iter)
			if raised != nil {
				if raised.isInstance(StopIterationType) {
					iters[i] = nil
					elems[i] = None
					continue
				}
				return nil, raised
			}
			elems[i] = elem
			noItems = false
		}
		if noItems {
			break
		}
		result = append(result, elems)
	}
	return result, nil
}

func builtinMapFn(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	argc := len(args)
	if argc < 2 {
		return nil, f.RaiseType(TypeErrorType, "map() requires at least two args")
	}
	result := make([]*Object, 0, 2)
	z, raised := zipLongest(f, args[1:])
	if raised != nil {
		return nil, raised
	}
	for _, tuple := range z {
		if args[0] == None {
			if argc == 2 {
				result = append(result, tuple[0])
			} else {
				result = append(result, NewTuple(tuple...).ToObject())
			}
		} else {
			ret, raised := args[0].Call(f, tuple, nil)
			if raised != nil {
				return nil, raised
			}
			result = append(result, ret)
		}
	}
	return NewList(result...).ToObject(), nil
}

func builtinMinMax(f *Frame, doMax bool, args Args, kwargs KWArgs) (*Object, *BaseException) {
	name := "min"
	if doMax {
		name = "max"
	}
	if raised := checkFunctionVarArgs(f, name, args, ObjectType); raised != nil {
		return nil, raised
	}
	keyFunc := kwargs.get("key", nil)
	var selected, selectedKey *Object
	partialFunc := func(o *Object) (raised *BaseException) {
		oKey := o
		if keyFunc != nil {
			oKey, raised = keyFunc.Call(f, Args{o}, nil)
			if raised != nil {
				return raised
			}
		}
		sel := true
		if selected != nil {
			result, raised := LT(f, selectedKey, oKey)
			if raised != nil {
				return raised
			}
			lt, raised := IsTrue(f, result)
			if raised != nil {
				return raised
			}
			sel = doMax && lt || !doMax && !lt
		}
		if sel {
			selected = o
			selectedKey = oKey
		}
		return nil
	}
	if len(args) == 1 {
		if raised := seqForEach(f, args[0], partialFunc); raised != nil {
			return nil, raised
		}
		if selected == nil {
			return nil, f.RaiseType(ValueErrorType, fmt.Sprintf("%s() arg is an empty sequence", name))
		}
	} else {
		for _, arg := range args {
			if raised := partialFunc(arg); raised != nil {
				return nil, raised
			}
		}
	}
	return selected, nil
}

func builtinMax(f *Frame, args Args, kwargs KWArgs) (*Object, *BaseException) {
	return builtinMinMax(f, true, args, kwargs)
}

func builtinMin(f *Frame, args Args, kwargs KWArgs) (*Object, *BaseException) {
	return builtinMinMax(f, false, args, kwargs)
}

func builtinNext(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	expectedTypes := []*Type{ObjectType, ObjectType}
	argc := len(args)
	if argc == 1 {
		expectedTypes = expectedTypes[:1]
	}
	if raised := checkFunctionArgs(f, "next", args, expectedTypes...); raised != nil {
		return nil, raised
	}
	ret, raised := Next(f, args[0])
	if raised != nil {
		if argc == 2 && raised.isInstance(StopIterationType) {
			return args[1], nil
		}
		return nil, raised
	}
	return ret, nil
}

func builtinOrd(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	const lenMsg = "ord() expected a character, but string of length %d found"
	if raised := checkFunctionArgs(f, "ord", args, StrType); raised != nil {
		return nil, raised
	}
	s := []rune(toStrUnsafe(args[0]).Value())
	if numChars := len(s); numChars != 1 {
		return nil, f.RaiseType(TypeErrorType, fmt.Sprintf(lenMsg, numChars))
	}
	return NewInt(int(s[0])).ToObject(), nil
}

func builtinPrint(f *Frame, args Args, kwargs KWArgs) (*Object, *BaseException) {
	sep := " "
	end := "\n"
	out := os.Stdout
	for _, kwarg := range kwargs {
		switch kwarg.Name {
		case "sep":
			kwsep, raised := ToStr(f, kwarg.Value)
			if raised != nil {
				return nil, raised
			}
			sep = kwsep.Value()
		case "end":
			kwend, raised := ToStr(f, kwarg.Value)
			if raised != nil {
				return nil, raised
			}
			end = kwend.Value()
		case "file":
			// TODO: map sys.stdout/sys.stderr-like objects to the
			// corresponding os.File once module.go/sys exist.
		case "flush":
		default:
			return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("print() got an unexpected keyword argument '%s'", kwarg.Name))
		}
	}
	for i, arg := range args {
		if i > 0 {
			fmt.Fprint(out, sep)
		}
		s, raised := ToStr(f, arg)
		if raised != nil {
			return nil, raised
		}
		fmt.Fprint(out, s.Value())
	}
	fmt.Fprint(out, end)
	return None, nil
}

func builtinRepr(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkFunctionArgs(f, "repr", args, ObjectType); raised != nil {
		return nil, raised
	}
	s, raised := Repr(f, args[0])
	if raised != nil {
		return nil, raised
	}
	return s.ToObject(), nil
}

// builtinRound implements Python 3 round() semantics: with no ndigits it
// returns an int using round-half-to-even, matching CPython (unlike Python
// 2, which always returned a float).
func builtinRound(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	argc := len(args)
	expectedTypes := []*Type{ObjectType, ObjectType}
	if argc == 1 {
		expectedTypes = expectedTypes[:1]
	}
	if raised := checkFunctionArgs(f, "round", args, expectedTypes...); raised != nil {
		return nil, raised
	}
	number, isFloat := floatCoerce(args[0])
	if !isFloat {
		return nil, f.RaiseType(TypeErrorType, "a float is required")
	}
	if argc == 1 {
		if math.IsNaN(number) || math.IsInf(number, 0) {
			return nil, f.RaiseType(OverflowErrorType, "cannot convert float infinity to integer")
		}
		return NewInt(int(math.RoundToEven(number))).ToObject(), nil
	}
	ndigits, raised := IndexInt(f, args[1])
	if raised != nil {
		return nil, raised
	}
	if math.IsNaN(number) || math.IsInf(number, 0) || number == 0.0 {
		return NewFloat(number).ToObject(), nil
	}
	neg := number < 0
	if neg {
		number = -number
	}
	pow := math.Pow(10.0, float64(ndigits))
	result := math.RoundToEven(number*pow) / pow
	if neg {
		result = -result
	}
	return NewFloat(result).ToObject(), nil
}

func builtinSetAttr(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkFunctionArgs(f, "setattr", args, ObjectType, StrType, ObjectType); raised != nil {
		return nil, raised
	}
	return None, SetAttr(f, args[0], toStrUnsafe(args[1]), args[2])
}

// builtinSorted implements Python 3's sorted(iterable, key=None,
// reverse=False).
func builtinSorted(f *Frame, args Args, kwargs KWArgs) (*Object, *BaseException) {
	if raised := checkFunctionArgs(f, "sorted", args, ObjectType); raised != nil {
		return nil, raised
	}
	key, reverse, raised := parseSortKwargs(f, kwargs)
	if raised != nil {
		return nil, raised
	}
	result, raised := ListType.Call(f, Args{args[0]}, nil)
	if raised != nil {
		return nil, raised
	}
	if raised := toListUnsafe(result).Sort(f, key, reverse); raised != nil {
		return nil, raised
	}
	return result, nil
}

func builtinSum(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	argc := len(args)
	expectedTypes := []*Type{ObjectType, ObjectType}
	if argc == 1 {
		expectedTypes = expectedTypes[:1]
	}
	if raised := checkFunctionArgs(f, "sum", args, expectedTypes...); raised != nil {
		return nil, raised
	}
	var result *Object
	if argc > 1 {
		result = args[1]
	} else {
		result = NewInt(0).ToObject()
	}
	raised := seqForEach(f, args[0], func(o *Object) (raised *BaseException) {
		result, raised = Add(f, result, o)
		return raised
	})
	if raised != nil {
		return nil, raised
	}
	return result, nil
}

func builtinZip(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	argc := len(args)
	if argc == 0 {
		return NewList().ToObject(), nil
	}
	result := make([]*Object, 0, 2)
	iters, raised := initIters(f, args)
	if raised != nil {
		return nil, raised
	}
Outer:
	for {
		elems := make([]*Object, argc)
		for i, iter := range iters {
			elem, raised := Next(f, iter)
			if raised != nil {
				if raised.isInstance(StopIterationType) {
					break Outer
				}
				return nil, raised
			}
			elems[i] = elem
		}
		result = append(result, NewTuple(elems...).ToObject())
	}
	return NewList(result...).ToObject(), nil
}

func init() {
	builtinMap := map[string]*Object{
		"__build_class__": newBuiltinFunction("__build_class__", builtinBuildClass).ToObject(),
		"__debug__":      False.ToObject(),
		"abs":            newBuiltinFunction("abs", builtinAbs).ToObject(),
		"all":            newBuiltinFunction("all", builtinAll).ToObject(),
		"any":            newBuiltinFunction("any", builtinAny).ToObject(),
		"bin":            newBuiltinFunction("bin", builtinBin).ToObject(),
		"callable":       newBuiltinFunction("callable", builtinCallable).ToObject(),
		"chr":            newBuiltinFunction("chr", builtinChr).ToObject(),
		"delattr":        newBuiltinFunction("delattr", builtinDelAttr).ToObject(),
		"divmod":         newBuiltinFunction("divmod", builtinDivMod).ToObject(),
		"Ellipsis":       Ellipsis,
		"False":          False.ToObject(),
		"getattr":        newBuiltinFunction("getattr", builtinGetAttr).ToObject(),
		"hasattr":        newBuiltinFunction("hasattr", builtinHasAttr).ToObject(),
		"hash":           newBuiltinFunction("hash", builtinHash).ToObject(),
		"hex":            newBuiltinFunction("hex", builtinHex).ToObject(),
		"id":             newBuiltinFunction("id", builtinID).ToObject(),
		"isinstance":     newBuiltinFunction("isinstance", builtinIsInstance).ToObject(),
		"issubclass":     newBuiltinFunction("issubclass", builtinIsSubclass).ToObject(),
		"iter":           newBuiltinFunction("iter", builtinIter).ToObject(),
		"len":            newBuiltinFunction("len", builtinLen).ToObject(),
		"map":            newBuiltinFunction("map", builtinMapFn).ToObject(),
		"max":            newBuiltinFunction("max", builtinMax).ToObject(),
		"min":            newBuiltinFunction("min", builtinMin).ToObject(),
		"next":           newBuiltinFunction("next", builtinNext).ToObject(),
		"None":           None,
		"NotImplemented": NotImplemented,
		"oct":            newBuiltinFunction("oct", builtinOct).ToObject(),
		"ord":            newBuiltinFunction("ord", builtinOrd).ToObject(),
		"print":          newBuiltinFunction("print", builtinPrint).ToObject(),
		"repr":           newBuiltinFunction("repr", builtinRepr).ToObject(),
		"round":          newBuiltinFunction("round", builtinRound).ToObject(),
		"setattr":        newBuiltinFunction("setattr", builtinSetAttr).ToObject(),
		"sorted":         newBuiltinFunction("sorted", builtinSorted).ToObject(),
		"sum":            newBuiltinFunction("sum", builtinSum).ToObject(),
		"True":           True.ToObject(),
		"zip":            newBuiltinFunction("zip", builtinZip).ToObject(),
	}
	// Two-phase init, as in grumpy: prepare every registered type (each
	// recursing into its bases first so a subtype's MRO computation never
	// observes a half-built base), then surface the global ones by name.
	for typ, info := range builtinTypes {
		initBuiltinType(typ, info)
		if info.global {
			builtinMap[typ.name] = typ.ToObject()
		}
	}
	for name := range builtinMap {
		InternStr(name)
	}
	Builtins = newStringDict(builtinMap)
}
