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

import "reflect"

// Python 3 collapsed Python 2's StandardError into a direct child of
// Exception (actually it removed StandardError outright), so unlike
// grumpy's hierarchy every one of these hangs off ExceptionType directly
// rather than through an intermediate StandardErrorType.
var (
	// ArithmeticErrorType corresponds to the Python type 'ArithmeticError'.
	ArithmeticErrorType = newSimpleType("ArithmeticError", ExceptionType)
	// AssertionErrorType corresponds to the Python type 'AssertionError'.
	AssertionErrorType = newSimpleType("AssertionError", ExceptionType)
	// AttributeErrorType corresponds to the Python type 'AttributeError'.
	AttributeErrorType = newSimpleType("AttributeError", ExceptionType)
	// BlockingIOErrorType corresponds to the Python type 'BlockingIOError'.
	BlockingIOErrorType = newSimpleType("BlockingIOError", OSErrorType)
	// BrokenPipeErrorType corresponds to the Python type 'BrokenPipeError'.
	BrokenPipeErrorType = newSimpleType("BrokenPipeError", ConnectionErrorType)
	// BufferErrorType corresponds to the Python type 'BufferError'.
	BufferErrorType = newSimpleType("BufferError", ExceptionType)
	// BytesWarningType corresponds to the Python type 'BytesWarning'.
	BytesWarningType = newSimpleType("BytesWarning", WarningType)
	// ChildProcessErrorType corresponds to the Python type
	// 'ChildProcessError'.
	ChildProcessErrorType = newSimpleType("ChildProcessError", OSErrorType)
	// ConnectionAbortedErrorType corresponds to the Python type
	// 'ConnectionAbortedError'.
	ConnectionAbortedErrorType = newSimpleType("ConnectionAbortedError", ConnectionErrorType)
	// ConnectionErrorType corresponds to the Python type 'ConnectionError'.
	ConnectionErrorType = newSimpleType("ConnectionError", OSErrorType)
	// ConnectionRefusedErrorType corresponds to the Python type
	// 'ConnectionRefusedError'.
	ConnectionRefusedErrorType = newSimpleType("ConnectionRefusedError", ConnectionErrorType)
	// ConnectionResetErrorType corresponds to the Python type
	// 'ConnectionResetError'.
	ConnectionResetErrorType = newSimpleType("ConnectionResetError", ConnectionErrorType)
	// DeprecationWarningType corresponds to the Python type
	// 'DeprecationWarning'.
	DeprecationWarningType = newSimpleType("DeprecationWarning", WarningType)
	// EOFErrorType corresponds to the Python type 'EOFError'.
	EOFErrorType = newSimpleType("EOFError", ExceptionType)
	// ExceptionType corresponds to the Python type 'Exception'.
	ExceptionType = newSimpleType("Exception", BaseExceptionType)
	// FileExistsErrorType corresponds to the Python type 'FileExistsError'.
	FileExistsErrorType = newSimpleType("FileExistsError", OSErrorType)
	// FileNotFoundErrorType corresponds to the Python type
	// 'FileNotFoundError'.
	FileNotFoundErrorType = newSimpleType("FileNotFoundError", OSErrorType)
	// FloatingPointErrorType corresponds to the Python type
	// 'FloatingPointError'.
	FloatingPointErrorType = newSimpleType("FloatingPointError", ArithmeticErrorType)
	// FutureWarningType corresponds to the Python type 'FutureWarning'.
	FutureWarningType = newSimpleType("FutureWarning", WarningType)
	// GeneratorExitType corresponds to the Python type 'GeneratorExit'. It
	// descends from BaseException directly, not Exception, so a bare
	// "except Exception" doesn't accidentally swallow generator cleanup.
	GeneratorExitType = newSimpleType("GeneratorExit", BaseExceptionType)
	// ImportErrorType corresponds to the Python type 'ImportError'.
	ImportErrorType = newSimpleType("ImportError", ExceptionType)
	// ImportWarningType corresponds to the Python type 'ImportWarning'.
	ImportWarningType = newSimpleType("ImportWarning", WarningType)
	// IndentationErrorType corresponds to the Python type
	// 'IndentationError'.
	IndentationErrorType = newSimpleType("IndentationError", SyntaxErrorType)
	// IndexErrorType corresponds to the Python type 'IndexError'.
	IndexErrorType = newSimpleType("IndexError", LookupErrorType)
	// InterruptedErrorType corresponds to the Python type
	// 'InterruptedError'.
	InterruptedErrorType = newSimpleType("InterruptedError", OSErrorType)
	// IsADirectoryErrorType corresponds to the Python type
	// 'IsADirectoryError'.
	IsADirectoryErrorType = newSimpleType("IsADirectoryError", OSErrorType)
	// KeyboardInterruptType corresponds to the Python type
	// 'KeyboardInterrupt'.
	KeyboardInterruptType = newSimpleType("KeyboardInterrupt", BaseExceptionType)
	// KeyErrorType corresponds to the Python type 'KeyError'.
	KeyErrorType = newSimpleType("KeyError", LookupErrorType)
	// LookupErrorType corresponds to the Python type 'LookupError'.
	LookupErrorType = newSimpleType("LookupError", ExceptionType)
	// MemoryErrorType corresponds to the Python type 'MemoryError'.
	MemoryErrorType = newSimpleType("MemoryError", ExceptionType)
	// ModuleNotFoundErrorType corresponds to the Python type
	// 'ModuleNotFoundError', a 3.6+ subclass of ImportError.
	ModuleNotFoundErrorType = newSimpleType("ModuleNotFoundError", ImportErrorType)
	// NameErrorType corresponds to the Python type 'NameError'.
	NameErrorType = newSimpleType("NameError", ExceptionType)
	// NotADirectoryErrorType corresponds to the Python type
	// 'NotADirectoryError'.
	NotADirectoryErrorType = newSimpleType("NotADirectoryError", OSErrorType)
	// NotImplementedErrorType corresponds to the Python type
	// 'NotImplementedError'.
	NotImplementedErrorType = newSimpleType("NotImplementedError", RuntimeErrorType)
	// OSErrorType corresponds to the Python type 'OSError'. Python 3 folded
	// EnvironmentError and IOError into OSError as aliases; pyrt only
	// defines the canonical name.
	OSErrorType = newSimpleType("OSError", ExceptionType)
	// OverflowErrorType corresponds to the Python type 'OverflowError'.
	OverflowErrorType = newSimpleType("OverflowError", ArithmeticErrorType)
	// PendingDeprecationWarningType corresponds to the Python type
	// 'PendingDeprecationWarning'.
	PendingDeprecationWarningType = newSimpleType("PendingDeprecationWarning", WarningType)
	// PermissionErrorType corresponds to the Python type 'PermissionError'.
	PermissionErrorType = newSimpleType("PermissionError", OSErrorType)
	// ProcessLookupErrorType corresponds to the Python type
	// 'ProcessLookupError'.
	ProcessLookupErrorType = newSimpleType("ProcessLookupError", OSErrorType)
	// RecursionErrorType corresponds to the Python type 'RecursionError', a
	// 3.5+ subclass of RuntimeError raised when the interpreter stack depth
	// exceeds sys.getrecursionlimit().
	RecursionErrorType = newSimpleType("RecursionError", RuntimeErrorType)
	// ReferenceErrorType corresponds to the Python type 'ReferenceError'.
	ReferenceErrorType = newSimpleType("ReferenceError", ExceptionType)
	// ResourceWarningType corresponds to the Python type 'ResourceWarning',
	// added in Python 3.2 for unclosed-file/socket finalizer diagnostics.
	ResourceWarningType = newSimpleType("ResourceWarning", WarningType)
	// RuntimeErrorType corresponds to the Python type 'RuntimeError'.
	RuntimeErrorType = newSimpleType("RuntimeError", ExceptionType)
	// RuntimeWarningType corresponds to the Python type 'RuntimeWarning'.
	RuntimeWarningType = newSimpleType("RuntimeWarning", WarningType)
	// StopAsyncIterationType corresponds to the Python type
	// 'StopAsyncIteration', the async counterpart of StopIteration added in
	// Python 3.5.
	StopAsyncIterationType = newSimpleType("StopAsyncIteration", ExceptionType)
	// StopIterationType corresponds to the Python type 'StopIteration'.
	StopIterationType = newSimpleType("StopIteration", ExceptionType)
	// SyntaxErrorType corresponds to the Python type 'SyntaxError'.
	SyntaxErrorType = newSimpleType("SyntaxError", ExceptionType)
	// SyntaxWarningType corresponds to the Python type 'SyntaxWarning'.
	SyntaxWarningType = newSimpleType("SyntaxWarning", WarningType)
	// SystemErrorType corresponds to the Python type 'SystemError'.
	SystemErrorType = newSimpleType("SystemError", ExceptionType)
	// SystemExitType corresponds to the Python type 'SystemExit'.
	SystemExitType = newSimpleType("SystemExit", BaseExceptionType)
	// TabErrorType corresponds to the Python type 'TabError', raised for
	// inconsistent tab/space indentation.
	TabErrorType = newSimpleType("TabError", IndentationErrorType)
	// TimeoutErrorType corresponds to the Python type 'TimeoutError'.
	TimeoutErrorType = newSimpleType("TimeoutError", OSErrorType)
	// TypeErrorType corresponds to the Python type 'TypeError'.
	TypeErrorType = newSimpleType("TypeError", ExceptionType)
	// UnboundLocalErrorType corresponds to the Python type
	// 'UnboundLocalError'.
	UnboundLocalErrorType = newSimpleType("UnboundLocalError", NameErrorType)
	// UnicodeErrorType corresponds to the Python type 'UnicodeError'.
	UnicodeErrorType = newSimpleType("UnicodeError", ValueErrorType)
	// UnicodeWarningType corresponds to the Python type 'UnicodeWarning'.
	UnicodeWarningType = newSimpleType("UnicodeWarning", WarningType)
	// UserWarningType corresponds to the Python type 'UserWarning'.
	UserWarningType = newSimpleType("UserWarning", WarningType)
	// ValueErrorType corresponds to the Python type 'ValueError'.
	ValueErrorType = newSimpleType("ValueError", ExceptionType)
	// WarningType corresponds to the Python type 'Warning'.
	WarningType = newSimpleType("Warning", ExceptionType)
	// ZeroDivisionErrorType corresponds to the Python type
	// 'ZeroDivisionError'.
	ZeroDivisionErrorType = newSimpleType("ZeroDivisionError", ArithmeticErrorType)
)

func systemExitInit(f *Frame, o *Object, args Args, kwargs KWArgs) (*Object, *BaseException) {
	baseExceptionInit(f, o, args, kwargs)
	code := None
	if len(args) > 0 {
		code = args[0]
	}
	if raised := SetAttr(f, o, NewStr("code"), code); raised != nil {
		return nil, raised
	}
	return None, nil
}

func initSystemExitType(map[string]*Object) {
	SystemExitType.slots.Init = &initSlot{systemExitInit}
}

// unicodeError carries structured context about a failing codec call that
// UnicodeDecodeError and UnicodeEncodeError both expose (spec.md's codecs
// module raises these with encoding/object/start/end/reason populated so
// `except UnicodeDecodeError as e: e.reason` works).
type unicodeError struct {
	BaseException
	Encoding *Str    `attr:"encoding" attr_mode:"rw"`
	Object   *Object `attr:"object" attr_mode:"rw"`
	Start    *Int    `attr:"start" attr_mode:"rw"`
	End      *Int    `attr:"end" attr_mode:"rw"`
	Reason   *Str    `attr:"reason" attr_mode:"rw"`
}

func toUnicodeErrorUnsafe(o *Object) *unicodeError {
	return (*unicodeError)(o.toPointer())
}

// UnicodeDecodeErrorType corresponds to the Python type
// 'UnicodeDecodeError'.
var UnicodeDecodeErrorType = newBasisType("UnicodeDecodeError", reflect.TypeOf(unicodeError{}), toUnicodeErrorUnsafe, UnicodeErrorType)

// UnicodeEncodeErrorType corresponds to the Python type
// 'UnicodeEncodeError'.
var UnicodeEncodeErrorType = newBasisType("UnicodeEncodeError", reflect.TypeOf(unicodeError{}), toUnicodeErrorUnsafe, UnicodeErrorType)

func newUnicodeError(t *Type, encoding, obj string, start, end int, reason string) *BaseException {
	o := newObject(t)
	u := toUnicodeErrorUnsafe(o)
	u.Args = NewTuple()
	u.Cause = None
	u.Context = None
	u.Encoding = NewStr(encoding)
	u.Object = NewStr(obj).ToObject()
	u.Start = NewInt(start)
	u.End = NewInt(end)
	u.Reason = NewStr(reason)
	return toBaseExceptionUnsafe(o)
}

// raiseUnicodeDecodeError raises a UnicodeDecodeError describing a failed
// bytes-to-str decode at the given byte offsets.
func raiseUnicodeDecodeError(f *Frame, encoding, obj string, start, end int, reason string) *BaseException {
	exc := newUnicodeError(UnicodeDecodeErrorType, encoding, obj, start, end, reason)
	return f.Raise(exc.ToObject(), nil, nil)
}

// raiseUnicodeEncodeError raises a UnicodeEncodeError describing a failed
// str-to-bytes encode at the given character offsets.
func raiseUnicodeEncodeError(f *Frame, encoding, obj string, start, end int, reason string) *BaseException {
	exc := newUnicodeError(UnicodeEncodeErrorType, encoding, obj, start, end, reason)
	return f.Raise(exc.ToObject(), nil, nil)
}
