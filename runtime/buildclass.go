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

import "fmt"

// builtinBuildClass implements __build_class__(func, name, *bases,
// metaclass=None, **kwds): the callable LOAD_BUILD_CLASS pushes and CALL
// invokes to build every class statement (spec.md §4.4's class-machinery
// opcodes). func is the compiled class body wrapped as a Function; running
// it (via Code.EvalClassBody) produces the class's namespace dict, which is
// then handed to the resolved metaclass to construct the actual type —
// mirroring typeNew's own metaclass-conflict resolution so an explicit
// "metaclass=" kwarg and a bases-derived metaclass are reconciled the same
// way a direct type(name, bases, ns) call would.
func builtinBuildClass(f *Frame, args Args, kwargs KWArgs) (*Object, *BaseException) {
	if len(args) < 2 {
		return nil, f.RaiseType(TypeErrorType, "__build_class__: not enough arguments")
	}
	if !args[0].isInstance(FunctionType) {
		return nil, f.RaiseType(TypeErrorType, "__build_class__: func must be a function")
	}
	if !args[1].isInstance(StrType) {
		return nil, f.RaiseType(TypeErrorType, "__build_class__: name is not a string")
	}
	fun := toFunctionUnsafe(args[0])
	name := toStrUnsafe(args[1]).Value()
	baseObjs := args[2:]

	meta := TypeType
	var metaKwargs KWArgs
	for _, kw := range kwargs {
		if kw.Name == "metaclass" {
			if !kw.Value.isInstance(TypeType) {
				return nil, f.RaiseType(TypeErrorType, "metaclass must be a type")
			}
			meta = toTypeUnsafe(kw.Value)
			continue
		}
		metaKwargs = append(metaKwargs, kw)
	}
	for _, b := range baseObjs {
		if !b.isInstance(TypeType) {
			return nil, f.RaiseType(TypeErrorType, "bases must be types")
		}
		bt := toTypeUnsafe(b)
		if bt.isSubclass(meta) {
			meta = bt
		} else if !meta.isSubclass(bt) {
			return nil, f.RaiseType(TypeErrorType, "metaclass conflict: the metaclass of a derived class must be a (non-strict) subclass of the metaclasses of all its bases")
		}
	}

	ns, raised := fun.code.EvalClassBody(f, fun.globals, fun)
	if raised != nil {
		return nil, raised
	}

	basesTuple := NewTuple(baseObjs...)
	classArgs := Args{NewStr(name).ToObject(), basesTuple.ToObject(), ns.ToObject()}
	cls, raised := meta.ToObject().Call(f, classArgs, metaKwargs)
	if raised != nil {
		return nil, raised
	}
	if !cls.isInstance(TypeType) {
		return nil, f.RaiseType(TypeErrorType, fmt.Sprintf("metaclass %s returned a non-type object", meta.Name()))
	}
	return cls, nil
}
