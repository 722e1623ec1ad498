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

// position is the decoded source location a line-table record maps one
// run of instruction offsets to. hasColumns is false when a record carries
// no column information.
type position struct {
	line, endLine, col, endCol int
	hasColumns                 bool
}

// lineTableEntry is one decoded run: [start, start+length) all share pos.
type lineTableEntry struct {
	start, length int
	pos           position
}

// LineTable is the decoded form of a code object's byte-packed line table
// (spec.md §6): a sequence of variable-length records, each describing a
// run of consecutive instruction offsets sharing a source position. Every
// instruction position in a well-formed code object is covered by exactly
// one record (spec.md §4.2's invariant and §8's corresponding property).
type LineTable struct {
	entries []lineTableEntry
}

// lineTable encoding kinds (spec.md §6's 14 closed kinds). Kinds 0-9 pack a
// same-line, same-span run with small column offsets into one following
// byte; kinds 10-12 encode a same-line run with a one-line delta of
// 0/1/2 and two explicit column bytes; kind 13 carries no column info, only
// a signed varint line delta; kind 14 is the fully general form.
const (
	ltKindShortColumnBase = 0 // kinds 0-9
	ltKindShortColumnMax  = 9
	ltKindOneLineBase     = 10 // kinds 10-12, one-line delta = kind-10
	ltKindOneLineMax      = 12
	ltKindNoColumn        = 13
	ltKindGeneral         = 14
)

// EncodeLineTable packs entries (each already holding an absolute line and,
// optionally, column span) into the compact varint format described in
// spec.md §6, relative to firstLineno. It always emits the fully general
// kind-14 record per run: a correct, if not maximally compact, encoding —
// the compiler's finalisation stage (spec.md §4.3) is the only caller, and
// correctness of the round trip matters far more than shaving bytes here.
func EncodeLineTable(firstLineno int, runs []lineTableEntry) []byte {
	var buf []byte
	prevLine := firstLineno
	for _, r := range runs {
		length := r.length
		for length > 0 {
			chunk := length
			if chunk > 8 {
				chunk = 8
			}
			header := byte(0x80 | (ltKindGeneral << 3) | (chunk - 1))
			buf = append(buf, header)
			buf = appendSignedVarint(buf, r.pos.line-prevLine)
			prevLine = r.pos.line
			if r.pos.hasColumns {
				buf = appendUnsignedVarint(buf, r.pos.endLine-r.pos.line)
				buf = appendUnsignedVarint(buf, r.pos.col+1)
				buf = appendUnsignedVarint(buf, r.pos.endCol+1)
			} else {
				buf = appendUnsignedVarint(buf, 0)
				buf = appendUnsignedVarint(buf, 0)
				buf = appendUnsignedVarint(buf, 0)
			}
			length -= chunk
		}
	}
	return buf
}

// LineRun is an exported line-table run descriptor for producers outside
// this package (the compiler) to build with, since lineTableEntry and
// position are internal implementation details not otherwise reachable
// from compiler.go.
type LineRun struct {
	Length                     int
	Line, EndLine, Col, EndCol int
	HasColumns                 bool
}

// EncodeLineRuns is EncodeLineTable for callers outside this package.
func EncodeLineRuns(firstLineno int, runs []LineRun) []byte {
	entries := make([]lineTableEntry, len(runs))
	for i, r := range runs {
		entries[i] = lineTableEntry{
			length: r.Length,
			pos:    position{line: r.Line, endLine: r.EndLine, col: r.Col, endCol: r.EndCol, hasColumns: r.HasColumns},
		}
	}
	return EncodeLineTable(firstLineno, entries)
}

// DecodeLineTable parses the byte-packed format of spec.md §6 into a
// queryable LineTable, starting from the code object's first-line-number
// field (the first record's line delta is relative to it).
func DecodeLineTable(firstLineno int, data []byte) *LineTable {
	lt := &LineTable{}
	pc := 0
	offset := 0
	line := firstLineno
	for i := 0; i < len(data); {
		header := data[i]
		i++
		kind := (header >> 3) & 0xf
		length := int(header&0x7) + 1
		var pos position
		switch {
		case kind <= ltKindShortColumnMax:
			col := int(data[i])
			i++
			pos = position{line: line, endLine: line, col: col, endCol: col, hasColumns: true}
		case kind <= ltKindOneLineMax:
			line += int(kind - ltKindOneLineBase)
			endCol := int(data[i])
			col := int(data[i+1])
			i += 2
			pos = position{line: line, endLine: line, col: col, endCol: endCol, hasColumns: true}
		case kind == ltKindNoColumn:
			delta, n := decodeSignedVarint(data[i:])
			i += n
			line += delta
			pos = position{line: line, endLine: line, hasColumns: false}
		default: // ltKindGeneral
			lineDelta, n := decodeSignedVarint(data[i:])
			i += n
			line += lineDelta
			endLineDelta, n := decodeUnsignedVarint(data[i:])
			i += n
			col, n := decodeUnsignedVarint(data[i:])
			i += n
			endCol, n := decodeUnsignedVarint(data[i:])
			i += n
			pos = position{line: line, endLine: line + endLineDelta, hasColumns: col != 0 || endCol != 0}
			if pos.hasColumns {
				pos.col, pos.endCol = col-1, endCol-1
			}
		}
		lt.entries = append(lt.entries, lineTableEntry{start: offset, length: length, pos: pos})
		offset += length * instrWidth
		pc++
	}
	return lt
}

// LineForOffset returns the source line covering instruction offset pc, or
// -1 if pc is out of range (a torn code object, an interpreter invariant
// violation per spec.md §7's "Interpreter invariants" category).
func (lt *LineTable) LineForOffset(pc int) int {
	for _, e := range lt.entries {
		if pc >= e.start && pc < e.start+e.length*instrWidth {
			return e.pos.line
		}
	}
	return -1
}

// PositionForOffset returns the full (line, endLine, col, endCol) tuple
// covering pc, and whether column information is present.
func (lt *LineTable) PositionForOffset(pc int) (position, bool) {
	for _, e := range lt.entries {
		if pc >= e.start && pc < e.start+e.length*instrWidth {
			return e.pos, true
		}
	}
	return position{}, false
}

func appendUnsignedVarint(buf []byte, v int) []byte {
	u := uint(v)
	for u >= 0x80 {
		buf = append(buf, byte(u&0x7f)|0x80)
		u >>= 7
	}
	return append(buf, byte(u))
}

func appendSignedVarint(buf []byte, v int) []byte {
	// Zigzag-encode so small negative deltas stay small varints.
	u := uint((v << 1) ^ (v >> 63))
	return appendUnsignedVarint(buf, int(u))
}

func decodeUnsignedVarint(data []byte) (int, int) {
	var result uint
	var shift uint
	var i int
	for {
		b := data[i]
		result |= uint(b&0x7f) << shift
		i++
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return int(result), i
}

func decodeSignedVarint(data []byte) (int, int) {
	u, n := decodeUnsignedVarint(data)
	v := (u >> 1) ^ -(u & 1)
	return v, n
}
