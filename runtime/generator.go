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
	"sync"
)

// GeneratorType is the object representing the Python 'generator' type. The
// same wrapper also backs code objects flagged CodeFlagCoroutine or
// CodeFlagAsyncGenerator: spec.md's seed suite never exercises async
// control flow, so rather than build out distinct Coroutine/AsyncGenerator
// machinery with no caller, one suspend/resume primitive serves all three
// flag bits, tagged only for repr (see DESIGN.md).
var GeneratorType = newBasisType("generator", reflect.TypeOf(Generator{}), toGeneratorUnsafe, ObjectType)

type generatorState int

const (
	generatorStateCreated generatorState = iota
	generatorStateSuspended
	generatorStateRunning
	generatorStateDone
)

// Generator represents a suspended Python generator/coroutine/async
// generator frame (spec.md §4.4's "Generators / coroutines" suspension
// model): calling the underlying code doesn't run any bytecode, it just
// wraps the bound-but-not-yet-started Frame. Execution begins on the first
// send()/next().
type Generator struct {
	Object
	mutex sync.Mutex
	state generatorState
	frame *Frame
	flags CodeFlag
}

// newGenerator wraps a bound, not-yet-run child frame in a Generator.
func newGenerator(frame *Frame, flags CodeFlag) *Generator {
	return &Generator{Object: Object{typ: GeneratorType}, frame: frame, flags: flags}
}

func toGeneratorUnsafe(o *Object) *Generator {
	return (*Generator)(o.toPointer())
}

// ToObject upcasts g to an Object.
func (g *Generator) ToObject() *Object {
	return &g.Object
}

func (g *Generator) kindName() string {
	switch {
	case g.flags&CodeFlagCoroutine != 0:
		return "coroutine"
	case g.flags&CodeFlagAsyncGenerator != 0:
		return "async_generator"
	default:
		return "generator"
	}
}

// completionType returns the exception type resume()/close() signal exhaustion
// with: StopAsyncIteration for async generators, StopIteration otherwise
// (coroutines are driven the same way generators are here, so they share
// StopIteration on return per spec.md's scope).
func (g *Generator) completionType() *Type {
	if g.flags&CodeFlagAsyncGenerator != 0 {
		return StopAsyncIterationType
	}
	return StopIterationType
}

// resume drives the wrapped frame forward with sendValue as the result of
// the paused yield expression, porting grumpy's Generator.resume state
// machine onto the new Frame.resume/dispatch primitives.
func (g *Generator) resume(f *Frame, sendValue *Object) (*Object, *BaseException) {
	g.mutex.Lock()
	oldState := g.state
	var raised *BaseException
	switch oldState {
	case generatorStateCreated:
		if sendValue != None {
			raised = f.RaiseType(TypeErrorType, fmt.Sprintf("can't send non-None value to a just-started %s", g.kindName()))
		} else {
			g.state = generatorStateRunning
		}
	case generatorStateSuspended:
		g.state = generatorStateRunning
	case generatorStateRunning:
		raised = f.RaiseType(ValueErrorType, fmt.Sprintf("%s already executing", g.kindName()))
	case generatorStateDone:
		raised = f.Raise(g.completionType().ToObject(), nil, nil)
	}
	g.mutex.Unlock()
	if raised != nil {
		return nil, raised
	}

	g.frame.pushFrame(f)
	var result *Object
	var yielded bool
	if oldState == generatorStateCreated {
		result, raised, yielded = g.frame.run(0, nil, false)
	} else {
		result, raised, yielded = g.frame.resume(sendValue)
	}

	g.mutex.Lock()
	if raised == nil && !yielded {
		raised = f.Raise(g.completionType().ToObject(), nil, nil)
	}
	if raised != nil {
		g.state = generatorStateDone
	} else {
		g.state = generatorStateSuspended
	}
	g.mutex.Unlock()
	return result, raised
}

// throw raises exc inside the generator at its current suspension point.
func (g *Generator) throw(f *Frame, exc *BaseException) (*Object, *BaseException) {
	g.mutex.Lock()
	oldState := g.state
	var raised *BaseException
	switch oldState {
	case generatorStateCreated, generatorStateDone:
		g.state = generatorStateDone
	case generatorStateSuspended:
		g.state = generatorStateRunning
	case generatorStateRunning:
		raised = f.RaiseType(ValueErrorType, fmt.Sprintf("%s already executing", g.kindName()))
	}
	g.mutex.Unlock()
	if raised != nil {
		return nil, raised
	}
	if oldState == generatorStateCreated || oldState == generatorStateDone {
		return nil, exc
	}

	g.frame.pushFrame(f)
	result, thrown, yielded := g.frame.throwInto(exc)
	g.mutex.Lock()
	if thrown == nil && !yielded {
		thrown = f.Raise(g.completionType().ToObject(), nil, nil)
	}
	if thrown != nil {
		g.state = generatorStateDone
	} else {
		g.state = generatorStateSuspended
	}
	g.mutex.Unlock()
	return result, thrown
}

// close implements generator.close(): throws GeneratorExit in, and expects
// the generator to either exit (StopIteration/GeneratorExit propagating) or
// raise some other exception, but not yield again.
func (g *Generator) close(f *Frame) (*Object, *BaseException) {
	g.mutex.Lock()
	state := g.state
	g.mutex.Unlock()
	if state == generatorStateDone || state == generatorStateCreated {
		g.mutex.Lock()
		g.state = generatorStateDone
		g.mutex.Unlock()
		return None, nil
	}
	excObj, raised := GeneratorExitType.ToObject().Call(f, nil, nil)
	if raised != nil {
		return nil, raised
	}
	exc := toBaseExceptionUnsafe(excObj)
	_, raised = g.throw(f, exc)
	if raised != nil {
		if raised.isInstance(GeneratorExitType) || raised.isInstance(StopIterationType) {
			return None, nil
		}
		return nil, raised
	}
	return nil, f.RaiseType(RuntimeErrorType, fmt.Sprintf("%s ignored GeneratorExit", g.kindName()))
}

func generatorRepr(f *Frame, o *Object) (*Object, *BaseException) {
	g := toGeneratorUnsafe(o)
	return NewStr(fmt.Sprintf("<%s object at %p>", g.kindName(), g)).ToObject(), nil
}

func generatorIter(f *Frame, o *Object) (*Object, *BaseException) {
	return o, nil
}

func generatorNext(f *Frame, o *Object) (*Object, *BaseException) {
	return toGeneratorUnsafe(o).resume(f, None)
}

func generatorSend(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkMethodArgs(f, "send", args, GeneratorType, ObjectType); raised != nil {
		return nil, raised
	}
	return toGeneratorUnsafe(args[0]).resume(f, args[1])
}

func generatorThrow(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkFunctionVarArgs(f, "throw", args, GeneratorType, ObjectType); raised != nil {
		return nil, raised
	}
	g := toGeneratorUnsafe(args[0])
	typ := args[1]
	var inst *Object = None
	if len(args) > 2 {
		inst = args[2]
	}
	raised := f.Raise(typ, inst, nil)
	return g.throw(f, raised)
}

func generatorClose(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
	if raised := checkMethodArgs(f, "close", args, GeneratorType); raised != nil {
		return nil, raised
	}
	return toGeneratorUnsafe(args[0]).close(f)
}

func initGeneratorType(dict map[string]*Object) {
	dict["send"] = newBuiltinFunction("send", generatorSend).ToObject()
	dict["throw"] = newBuiltinFunction("throw", generatorThrow).ToObject()
	dict["close"] = newBuiltinFunction("close", generatorClose).ToObject()
	GeneratorType.flags &^= typeFlagBasetype | typeFlagInstantiable
	GeneratorType.slots.Repr = &unaryOpSlot{generatorRepr}
	GeneratorType.slots.Iter = &unaryOpSlot{generatorIter}
	GeneratorType.slots.Next = &unaryOpSlot{generatorNext}
}
