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

// TestExceptionTableNonOverlap checks spec.md §8's exception-table
// property directly against the entries a round trip produces: for any
// pair of entries, one ends at or before the other starts, except when one
// is nested entirely inside the other (an inner try block inside an outer
// one), which this runtime represents by emitting the inner entry first so
// Lookup's first-match-wins scan finds the most specific handler.
func TestExceptionTableNonOverlap(t *testing.T) {
	runs := []ExcTableRun{
		{Start: 0, End: 20, Target: 20, Depth: 0},  // outer try
		{Start: 4, End: 10, Target: 18, Depth: 1},  // nested inner try
		{Start: 24, End: 30, Target: 30, Depth: 0}, // disjoint try
	}
	et := DecodeExceptionTable(EncodeExcTableRuns(runs))

	overlaps := func(a, b *excTableEntry) bool {
		disjoint := a.end <= b.start || b.end <= a.start
		nested := (a.start <= b.start && b.end <= a.end) || (b.start <= a.start && a.end <= b.end)
		return !disjoint && !nested
	}
	for i := range et.entries {
		for j := i + 1; j < len(et.entries); j++ {
			if overlaps(&et.entries[i], &et.entries[j]) {
				t.Errorf("entries %d and %d overlap without nesting: %+v / %+v", i, j, et.entries[i], et.entries[j])
			}
		}
	}

	// Lookup must find the innermost (first-listed) entry for a pc shared
	// by the outer and nested entries.
	if e := et.Lookup(5); e == nil || e.target != 18 {
		t.Errorf("Lookup(5) = %+v, want target 18 (the nested entry)", e)
	}
	// A pc only the outer entry covers.
	if e := et.Lookup(15); e == nil || e.target != 20 {
		t.Errorf("Lookup(15) = %+v, want target 20 (the outer entry)", e)
	}
	// A pc no entry covers.
	if e := et.Lookup(21); e != nil {
		t.Errorf("Lookup(21) = %+v, want nil", e)
	}
}

func TestExceptionTablePreserveLastiRoundTrips(t *testing.T) {
	runs := []ExcTableRun{
		{Start: 0, End: 10, Target: 10, Depth: 2, PreserveLasti: true},
	}
	et := DecodeExceptionTable(EncodeExcTableRuns(runs))
	e := et.Lookup(0)
	if e == nil {
		t.Fatal("expected entry covering pc 0")
	}
	if !e.preserveLasti {
		t.Error("preserveLasti bit lost across encode/decode")
	}
	if e.depth != 2 {
		t.Errorf("depth = %d, want 2", e.depth)
	}
}
