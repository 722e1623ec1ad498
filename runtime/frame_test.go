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

import "testing"

// These tests hand-assemble Code objects, bypassing the compiler entirely
// (runtime can't import compiler without a cycle), to drive frame.go's
// dispatch loop directly the way spec.md §8's seed suite exercises the
// compiler-produced equivalent.

// TestFrameDispatchArithmetic mirrors seed scenario 1 (def f(x): return
// x+1; f(41) == 42), minus the call machinery: LOAD_CONST 41; LOAD_CONST 1;
// BINARY_OP Add; RETURN_VALUE.
func TestFrameDispatchArithmetic(t *testing.T) {
	f := NewRootFrame()
	code := []byte{
		byte(LOAD_CONST), 0,
		byte(LOAD_CONST), 1,
		byte(BINARY_OP), byte(BinOpAdd),
		byte(RETURN_VALUE), 0,
	}
	consts := []*Object{NewInt(41).ToObject(), NewInt(1).ToObject()}
	c := NewCode("f", "f", "t.py", 1, 0, 0, 0, 0, 2, 0,
		code, consts, nil, nil, nil, nil, nil, nil, nil)

	result, raised := c.EvalModule(f, NewDict())
	if raised != nil {
		t.Fatalf("EvalModule: %v", raised)
	}
	got, ok := result.Value().(int64)
	if !ok || got != 42 {
		t.Errorf("result = %#v, want int64(42)", result.Value())
	}
}

// TestFrameDispatchLoop mirrors seed scenario 2 (for i in range(10): s += i;
// s == 45) with a hand-rolled counting loop (s=0; i=0; while i<10: s+=i;
// i+=1; return s) so it doesn't depend on the range/for-iter machinery,
// exercising STORE_NAME/LOAD_NAME, COMPARE_OP, POP_JUMP_IF_FALSE and
// JUMP_BACKWARD instead.
func TestFrameDispatchLoop(t *testing.T) {
	f := NewRootFrame()
	const (
		loopTop    = 8
		exitTarget = 34
	)
	code := []byte{
		byte(LOAD_CONST), 0, // 0: push 0
		byte(STORE_NAME), 0, // 2: s = 0
		byte(LOAD_CONST), 0, // 4: push 0
		byte(STORE_NAME), 1, // 6: i = 0
		byte(LOAD_NAME), 1, // 8: push i        <- loopTop
		byte(LOAD_CONST), 1, // 10: push 10
		byte(COMPARE_OP), byte(CompareOpLT), // 12: i < 10
		byte(POP_JUMP_IF_FALSE), exitTarget, // 14
		byte(LOAD_NAME), 0, // 16: push s
		byte(LOAD_NAME), 1, // 18: push i
		byte(BINARY_OP), byte(BinOpAdd), // 20: s + i
		byte(STORE_NAME), 0, // 22: s = s + i
		byte(LOAD_NAME), 1, // 24: push i
		byte(LOAD_CONST), 2, // 26: push 1
		byte(BINARY_OP), byte(BinOpAdd), // 28: i + 1
		byte(STORE_NAME), 1, // 30: i = i + 1
		byte(JUMP_BACKWARD), loopTop, // 32
		byte(LOAD_NAME), 0, // 34: push s         <- exitTarget
		byte(RETURN_VALUE), 0, // 36
	}
	consts := []*Object{NewInt(0).ToObject(), NewInt(10).ToObject(), NewInt(1).ToObject()}
	names := []string{"s", "i"}
	c := NewCode("<module>", "<module>", "t.py", 1, 0, 0, 0, 0, 4, 0,
		code, consts, names, nil, nil, nil, nil, nil, nil)

	result, raised := c.EvalModule(f, NewDict())
	if raised != nil {
		t.Fatalf("EvalModule: %v", raised)
	}
	got, ok := result.Value().(int64)
	if !ok || got != 45 {
		t.Errorf("result = %#v, want int64(45)", result.Value())
	}
}

// TestFrameDispatchExceptionTableUnwind mirrors seed scenario 3 (try:
// raise ValueError("v") except ValueError as e: return str(e)) entirely
// through the exception-table unwind path (frame.go's unwind/PUSH_EXC_INFO/
// CHECK_EXC_MATCH/POP_EXCEPT), with no compiler-synthesized block stack.
func TestFrameDispatchExceptionTableUnwind(t *testing.T) {
	f := NewRootFrame()
	excInstance, raised := ValueErrorType.Call(f, Args{NewStr("boom").ToObject()}, nil)
	if raised != nil {
		t.Fatalf("constructing ValueError: %v", raised)
	}
	const reraiseTarget = 18
	code := []byte{
		byte(LOAD_CONST), 0, // 0: push the ValueError instance
		byte(RAISE_VARARGS), 1, // 2: raise it
		byte(PUSH_EXC_INFO), 0, // 4: handler begins
		byte(LOAD_CONST), 1, // 6: push ValueError (the type)
		byte(CHECK_EXC_MATCH), 0, // 8
		byte(POP_JUMP_IF_FALSE), reraiseTarget, // 10
		byte(POP_EXCEPT), 0, // 12: matched: drop the handled exception
		byte(LOAD_CONST), 2, // 14: push "v"
		byte(RETURN_VALUE), 0, // 16
		byte(RERAISE), 0, // 18: unmatched: re-raise            <- reraiseTarget
	}
	consts := []*Object{excInstance, ValueErrorType.ToObject(), NewStr("v").ToObject()}
	excTable := EncodeExcTableRuns([]ExcTableRun{{Start: 0, End: 4, Target: 4, Depth: 0}})
	c := NewCode("<module>", "<module>", "t.py", 1, 0, 0, 0, 0, 4, 0,
		code, consts, nil, nil, nil, nil, nil, nil, excTable)

	result, raised := c.EvalModule(f, NewDict())
	if raised != nil {
		t.Fatalf("EvalModule: %v", raised)
	}
	str, ok := result.Value().(string)
	if !ok || str != "v" {
		t.Errorf("result = %#v, want \"v\"", result.Value())
	}
}

// TestFrameDispatchExceptionPropagatesWithoutHandler checks that a raise
// with no covering exception-table entry propagates out of the frame as
// this call's returned error rather than panicking or being swallowed.
func TestFrameDispatchExceptionPropagatesWithoutHandler(t *testing.T) {
	f := NewRootFrame()
	excInstance, raised := ValueErrorType.Call(f, Args{NewStr("boom").ToObject()}, nil)
	if raised != nil {
		t.Fatalf("constructing ValueError: %v", raised)
	}
	code := []byte{
		byte(LOAD_CONST), 0,
		byte(RAISE_VARARGS), 1,
	}
	c := NewCode("<module>", "<module>", "t.py", 1, 0, 0, 0, 0, 2, 0,
		code, []*Object{excInstance}, nil, nil, nil, nil, nil, nil, nil)

	_, raised = c.EvalModule(f, NewDict())
	if raised == nil {
		t.Fatal("expected the uncaught exception to propagate")
	}
	if !raised.isInstance(ValueErrorType) {
		t.Errorf("raised = %v, want a ValueError", raised)
	}
}
