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
	"testing"

	"github.com/google/go-cmp/cmp"
)

// codeSnapshot flattens the fields of a Code object that spec.md §8's
// round-trip property quantifies over ("a code object equal field-by-field
// to the original") into a plain, exported-field struct go-cmp can diff
// directly, sidestepping *Object identity (const pool entries are distinct
// pointers after a round trip even when equal by value) and Code's
// unexported fields.
type codeSnapshot struct {
	Name, Qualname, Filename                       string
	FirstLineno, ArgCount, PosOnlyCount, KwOnlyCount int
	NLocals, StackSize                             int
	Flags                                          CodeFlag
	Code                                            []byte
	ConstReprs                                      []string
	Names, Varnames, Cellvars, Freevars            []string
	Cell2Arg                                        []int
}

func snapshotCode(t *testing.T, f *Frame, c *Code) codeSnapshot {
	t.Helper()
	reprs := make([]string, len(c.consts))
	for i, v := range c.consts {
		r, raised := Repr(f, v)
		if raised != nil {
			t.Fatalf("repr of const %d failed: %v", i, raised)
		}
		reprs[i] = r.Value()
	}
	return codeSnapshot{
		Name: c.name, Qualname: c.qualname, Filename: c.filename,
		FirstLineno: c.firstLineno, ArgCount: c.argCount,
		PosOnlyCount: c.posOnlyCount, KwOnlyCount: c.kwOnlyCount,
		NLocals: c.nLocals, StackSize: c.stackSize, Flags: c.flags,
		Code: c.code, ConstReprs: reprs,
		Names: c.names, Varnames: c.varnames,
		Cellvars: c.cellvars, Freevars: c.freevars,
		Cell2Arg: c.cell2arg,
	}
}

// A small hand-assembled code object: LOAD_CONST 0 ("hello"); LOAD_CONST 1
// (42); BINARY_OP Add; RETURN_VALUE. Exercises str and int constants, a
// non-trivial line table and an exception-table entry, so the round trip
// covers more than the all-zeros case.
func sampleCode() *Code {
	code := []byte{
		byte(LOAD_CONST), 0,
		byte(LOAD_CONST), 1,
		byte(BINARY_OP), byte(BinOpAdd),
		byte(RETURN_VALUE), 0,
	}
	consts := []*Object{NewStr("hello").ToObject(), NewInt(42).ToObject()}
	lineTable := EncodeLineRuns(3, []LineRun{
		{Length: 3, Line: 3, EndLine: 3, Col: 4, EndCol: 9, HasColumns: true},
		{Length: 1, Line: 4, EndLine: 4, HasColumns: false},
	})
	excTable := EncodeExcTableRuns([]ExcTableRun{
		{Start: 0, End: 6, Target: 6, Depth: 0, PreserveLasti: false},
	})
	return NewCode("f", "<module>.f", "sample.py", 3,
		1, 0, 0, 2, 4, CodeFlagOptimized,
		code, consts, []string{"g"}, []string{"x"}, nil, nil, nil,
		lineTable, excTable)
}

func TestMarshalRoundTripFieldEquality(t *testing.T) {
	f := NewRootFrame()
	original := sampleCode()
	data := Dump(original)

	loaded, raised := Load(f, data)
	if raised != nil {
		t.Fatalf("Load failed: %v", raised)
	}

	want := snapshotCode(t, f, original)
	got := snapshotCode(t, f, loaded)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round-tripped code object differs (-want +got):\n%s", diff)
	}
}

func TestMarshalRoundTripNestedCode(t *testing.T) {
	f := NewRootFrame()
	inner := sampleCode()
	outer := NewCode("outer", "<module>.outer", "sample.py", 1,
		0, 0, 0, 0, 2, 0,
		[]byte{byte(RETURN_VALUE), 0}, []*Object{inner.ToObject()},
		nil, nil, nil, nil, nil, nil, nil)

	loaded, raised := Load(f, Dump(outer))
	if raised != nil {
		t.Fatalf("Load failed: %v", raised)
	}
	if len(loaded.consts) != 1 || !loaded.consts[0].isInstance(CodeType) {
		t.Fatalf("expected a single nested code constant, got %#v", loaded.consts)
	}
	want := snapshotCode(t, f, inner)
	got := snapshotCode(t, f, toCodeUnsafe(loaded.consts[0]))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round-tripped nested code object differs (-want +got):\n%s", diff)
	}
}

func TestMarshalRejectsBadMagic(t *testing.T) {
	f := NewRootFrame()
	_, raised := Load(f, []byte("NOPE"))
	if raised == nil {
		t.Fatal("expected Load to reject data with a bad magic header")
	}
}
