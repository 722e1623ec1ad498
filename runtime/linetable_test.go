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

// TestLineTableSingleCover checks spec.md §8's line-table property: for
// every instruction offset in range, exactly one record covers it, and
// walking from the start reaches it with a well-defined position.
func TestLineTableSingleCover(t *testing.T) {
	runs := []LineRun{
		{Length: 2, Line: 10, EndLine: 10, Col: 0, EndCol: 5, HasColumns: true},
		{Length: 3, Line: 11, EndLine: 11, HasColumns: false},
		{Length: 1, Line: 13, EndLine: 14, Col: 2, EndCol: 9, HasColumns: true},
	}
	lt := DecodeLineTable(10, EncodeLineRuns(10, runs))

	numInstrs := 0
	for _, r := range runs {
		numInstrs += r.Length
	}
	wantLines := []int{10, 10, 11, 11, 11, 13}
	if len(wantLines) != numInstrs {
		t.Fatalf("test setup bug: %d instructions but %d expected lines", numInstrs, len(wantLines))
	}

	for i := 0; i < numInstrs; i++ {
		pc := i * instrWidth
		covers := 0
		for _, e := range lt.entries {
			if pc >= e.start && pc < e.start+e.length*instrWidth {
				covers++
			}
		}
		if covers != 1 {
			t.Errorf("offset %d covered by %d records, want exactly 1", pc, covers)
		}
		if line := lt.LineForOffset(pc); line != wantLines[i] {
			t.Errorf("offset %d: LineForOffset() = %d, want %d", pc, line, wantLines[i])
		}
		if _, ok := lt.PositionForOffset(pc); !ok {
			t.Errorf("offset %d: PositionForOffset() reported no coverage", pc)
		}
	}

	if line := lt.LineForOffset(numInstrs * instrWidth); line != -1 {
		t.Errorf("offset past the end: LineForOffset() = %d, want -1", line)
	}
}

// TestLineTableNoColumnMarker checks that a run with no column information
// (which EncodeLineRuns writes as a kind-14 record with zero column fields)
// round-trips with hasColumns false rather than fabricating zero columns.
func TestLineTableNoColumnMarker(t *testing.T) {
	runs := []LineRun{{Length: 1, Line: 42, EndLine: 42, HasColumns: false}}
	lt := DecodeLineTable(42, EncodeLineRuns(42, runs))
	pos, ok := lt.PositionForOffset(0)
	if !ok {
		t.Fatal("expected offset 0 to be covered")
	}
	if pos.hasColumns {
		t.Errorf("expected no column info, got columns [%d:%d]", pos.col, pos.endCol)
	}
	if pos.line != 42 {
		t.Errorf("line = %d, want 42", pos.line)
	}
}
