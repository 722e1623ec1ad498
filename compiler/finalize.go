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

package compiler

import (
	"fmt"

	pyrt "github.com/pyrt-dev/pyrt/runtime"
)

// neededWidth returns how many instrWidth-sized units (the instruction
// itself plus however many EXTENDED_ARG prefixes) are needed to hold arg,
// per spec.md §4.4's EXTENDED_ARG-widening scheme: each prefix contributes
// one more byte of high-order bits, the final unit's low byte carries the
// rest.
func neededWidth(arg int) int {
	width := 1
	v := arg >> 8
	for v > 0 {
		width++
		v >>= 8
	}
	return width
}

// resolveJumps assigns a byte offset to every block and resolves every
// jump instruction's arg to its target's absolute offset (Frame.run's jump
// opcodes — JUMP_FORWARD/BACKWARD, the POP_JUMP_IF_* family,
// JUMP_IF_*_OR_POP, FOR_ITER — all treat arg as an absolute pc, not a
// relative delta). Widening one instruction with EXTENDED_ARG can push a
// later block's offset past another instruction's own width threshold, so
// widths are found by iterating to a fixed point rather than in one pass
// (spec.md §4.3 stage 4).
func resolveJumps(blocks []*block) error {
	widths := make([][]int, len(blocks))
	for i, b := range blocks {
		widths[i] = make([]int, len(b.instrs))
		for j, ins := range b.instrs {
			if ins.target == nil {
				widths[i][j] = neededWidth(ins.arg)
			} else {
				widths[i][j] = 1
			}
		}
	}
	layout := func() {
		offset := 0
		for i, b := range blocks {
			b.offset = offset
			for j := range b.instrs {
				offset += widths[i][j] * pyrt.InstrWidth
			}
		}
	}
	for iter := 0; ; iter++ {
		layout()
		changed := false
		for i, b := range blocks {
			for j, ins := range b.instrs {
				if ins.target == nil {
					continue
				}
				if need := neededWidth(ins.target.offset); need > widths[i][j] {
					widths[i][j] = need
					changed = true
				}
			}
		}
		if !changed {
			break
		}
		if iter > len(blocks)+8 {
			return fmt.Errorf("compiler: jump widening did not converge")
		}
	}
	layout()
	for _, b := range blocks {
		for j := range b.instrs {
			if b.instrs[j].target != nil {
				b.instrs[j].arg = b.instrs[j].target.offset
			}
		}
	}
	return nil
}

// assemble packs every block's instructions into the final byte stream.
// Each instruction's width (1 plus however many EXTENDED_ARG prefixes) is
// recomputed fresh from its final arg — resolveJumps's fixed point already
// converged on exactly this width for every instruction, jump or not.
func assemble(blocks []*block) []byte {
	var buf []byte
	for _, b := range blocks {
		for _, ins := range b.instrs {
			width := neededWidth(ins.arg)
			for shift := (width - 1) * 8; shift > 0; shift -= 8 {
				buf = pyrt.MakeInstr(buf, pyrt.EXTENDED_ARG, byte(ins.arg>>uint(shift)))
			}
			buf = pyrt.MakeInstr(buf, ins.op, byte(ins.arg))
		}
	}
	return buf
}

// instrOffset returns the absolute byte offset of the idx'th instruction in
// b, assuming resolveJumps has already run (so every earlier instruction's
// final width is recoverable from its arg).
func instrOffset(b *block, idx int) int {
	offset := b.offset
	for _, ins := range b.instrs[:idx] {
		offset += neededWidth(ins.arg) * pyrt.InstrWidth
	}
	return offset
}

// buildLineRuns walks the final instruction layout in order, merging
// consecutive instructions that share a source line into one run. A run's
// Length counts instrWidth-sized units (including any EXTENDED_ARG prefix
// units), matching runtime/linetable.go's DecodeLineTable offset math,
// since Frame.run only ever looks up a logical instruction's group-start
// offset — the position of its first EXTENDED_ARG prefix, if any.
func buildLineRuns(blocks []*block) []pyrt.LineRun {
	var runs []pyrt.LineRun
	for _, b := range blocks {
		for _, ins := range b.instrs {
			width := neededWidth(ins.arg)
			if len(runs) > 0 && runs[len(runs)-1].Line == ins.line {
				runs[len(runs)-1].Length += width
				continue
			}
			runs = append(runs, pyrt.LineRun{Length: width, Line: ins.line, EndLine: ins.line})
		}
	}
	return runs
}

// buildExcRuns resolves each pending protected region into the byte
// offsets and entry stack depth the exception table (runtime/exctable.go)
// needs: [start,end) in the final instruction stream, the handler target's
// offset, and the depth to truncate the stack to on unwind — computed by
// computeStackDepth and recovered here via depthAtMark (spec.md §4.4's
// exception-table replacement for a runtime block stack).
func buildExcRuns(regions []excRegion) ([]pyrt.ExcTableRun, error) {
	runs := make([]pyrt.ExcTableRun, len(regions))
	for i, r := range regions {
		depth, err := depthAtMark(r.start)
		if err != nil {
			return nil, err
		}
		runs[i] = pyrt.ExcTableRun{
			Start:         instrOffset(r.start.b, r.start.idx),
			End:           instrOffset(r.end.b, r.end.idx),
			Target:        r.target.offset,
			Depth:         depth,
			PreserveLasti: r.preserveLasti,
		}
	}
	return runs, nil
}
