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

// stackEffect returns the (pop, push) pair for an instruction whose effect
// doesn't depend on which edge out of its block is taken — every opcode
// except the conditional-jump/FOR_ITER family below, whose two outgoing
// edges pop a different number of values and are handled directly in
// computeStackDepth's walk. CALL/MAKE_FUNCTION/CALL_FUNCTION_EX encode
// their pop count in the arg, also computed here since it doesn't vary by
// edge.
//
// Grounded one-for-one on runtime/frame.go's interpreter loop — every case
// here mirrors the push()/pop() calls the matching case in Frame.run makes.
func stackEffect(ins instr) (pop, push int) {
	switch ins.op {
	case pyrt.NOP, pyrt.INSTRUMENTED_LINE, pyrt.RESUME,
		pyrt.DELETE_FAST, pyrt.DELETE_DEREF, pyrt.DELETE_GLOBAL, pyrt.DELETE_NAME,
		pyrt.ROT_TWO, pyrt.ROT_THREE, pyrt.ROT_FOUR, pyrt.SWAP,
		pyrt.KW_NAMES, pyrt.SETUP_ANNOTATIONS, pyrt.JUMP_FORWARD, pyrt.JUMP_BACKWARD,
		pyrt.GET_YIELD_FROM_ITER:
		return 0, 0

	case pyrt.LOAD_CONST, pyrt.LOAD_FAST, pyrt.LOAD_DEREF, pyrt.LOAD_CLOSURE,
		pyrt.LOAD_GLOBAL, pyrt.LOAD_NAME, pyrt.LOAD_BUILD_CLASS:
		return 0, 1
	case pyrt.DUP_TOP:
		return 0, 1
	case pyrt.DUP_TOP_TWO:
		return 0, 2

	case pyrt.POP_TOP, pyrt.STORE_FAST, pyrt.STORE_DEREF, pyrt.STORE_GLOBAL,
		pyrt.STORE_NAME, pyrt.DELETE_ATTR, pyrt.IMPORT_STAR:
		return 1, 0

	case pyrt.LOAD_ATTR:
		return 1, 1
	case pyrt.STORE_ATTR:
		return 2, 0
	case pyrt.BINARY_SUBSCR:
		return 2, 1
	case pyrt.STORE_SUBSCR:
		return 3, 0
	case pyrt.DELETE_SUBSCR:
		return 2, 0

	case pyrt.UNPACK_SEQUENCE:
		return 1, ins.arg
	case pyrt.UNPACK_EX:
		return 1, (ins.arg&0xff)+(ins.arg>>8)+1

	case pyrt.UNARY_OP:
		return 1, 1
	case pyrt.BINARY_OP, pyrt.INPLACE_OP, pyrt.COMPARE_OP, pyrt.IS_OP, pyrt.CONTAINS_OP:
		return 2, 1

	case pyrt.BUILD_TUPLE, pyrt.BUILD_LIST, pyrt.BUILD_SET:
		return ins.arg, 1
	case pyrt.BUILD_MAP:
		return ins.arg * 2, 1
	case pyrt.LIST_EXTEND, pyrt.SET_UPDATE, pyrt.DICT_UPDATE, pyrt.DICT_MERGE,
		pyrt.LIST_APPEND, pyrt.SET_ADD:
		return 1, 0
	case pyrt.MAP_ADD:
		return 2, 0
	case pyrt.BUILD_SLICE:
		if ins.arg == 3 {
			return 3, 1
		}
		return 2, 1
	case pyrt.BUILD_STRING:
		return ins.arg, 1
	case pyrt.FORMAT_VALUE:
		if ins.arg&0x4 != 0 {
			return 2, 1
		}
		return 1, 1

	case pyrt.GET_ITER:
		return 1, 1

	case pyrt.RETURN_VALUE:
		return 1, 0
	case pyrt.YIELD_VALUE:
		// The value a resumed generator is sent back occupies the same
		// slot the yielded value vacated (Frame.run's "resuming: push
		// sendValue" re-fills it before continuing at nextPC) — net
		// effect across the suspend point is pop-1-push-1, same as any
		// other expression.
		return 1, 1
	case pyrt.YIELD_FROM:
		return 1, 1
	case pyrt.RAISE_VARARGS:
		return ins.arg, 0
	case pyrt.RERAISE:
		return 1, 0

	case pyrt.MAKE_FUNCTION:
		pop := 1
		if ins.arg&1 != 0 {
			pop++
		}
		if ins.arg&2 != 0 {
			pop++
		}
		if ins.arg&4 != 0 {
			pop++
		}
		return pop, 1
	case pyrt.CALL:
		return ins.arg + 1, 1
	case pyrt.CALL_FUNCTION_EX:
		pop := 2
		if ins.arg&1 != 0 {
			pop++
		}
		return pop, 1

	case pyrt.PUSH_EXC_INFO:
		return 0, 2
	case pyrt.POP_EXCEPT:
		return 2, 0
	case pyrt.CHECK_EXC_MATCH:
		return 1, 1
	case pyrt.WITH_EXCEPT_START:
		return 0, 1

	case pyrt.IMPORT_NAME:
		return 2, 1
	case pyrt.IMPORT_FROM:
		return 0, 1

	default:
		return 0, 0
	}
}

// computeStackDepth runs the forward dataflow of spec.md §4.3 stage 4: walk
// every block reachable from the entry block (blocks[0]) and every
// exception-table target, track the value-stack depth at each point, and
// return the maximum depth reached — the code object's declared stackSize.
//
// A block's entry depth is pinned the first time some predecessor (normal
// fall-through, a jump, or an exception-table target) reaches it; every
// subsequent predecessor must agree, since a well-formed compilation never
// produces two control-flow paths into the same point with different stack
// shapes (spec.md §7's "stack consistent on every path" interpreter
// invariant) — a mismatch here means a compiler bug, not a source-level
// user error, hence the plain Go error rather than a diagnosed compile
// error type.
func computeStackDepth(blocks []*block, regions []excRegion) (int, error) {
	if len(blocks) == 0 {
		return 0, nil
	}
	blockIdx := make(map[*block]int, len(blocks))
	for i, b := range blocks {
		b.depthKnown = false
		blockIdx[b] = i
	}

	maxDepth := 0
	var setEntry func(b *block, depth int) error
	var walk func(b *block, entry int) error

	setEntry = func(b *block, depth int) error {
		if b.depthKnown {
			if b.stackDepth != depth {
				return fmt.Errorf("compiler: inconsistent stack depth entering block (have %d, want %d)", b.stackDepth, depth)
			}
			return nil
		}
		b.stackDepth = depth
		b.depthKnown = true
		return walk(b, depth)
	}

	walk = func(b *block, entry int) error {
		depth := entry
		if depth > maxDepth {
			maxDepth = depth
		}
		for i, ins := range b.instrs {
			switch ins.op {
			case pyrt.POP_JUMP_IF_TRUE, pyrt.POP_JUMP_IF_FALSE:
				depth--
				if depth > maxDepth {
					maxDepth = depth
				}
				if err := setEntry(ins.target, depth); err != nil {
					return err
				}
				continue
			case pyrt.JUMP_IF_TRUE_OR_POP, pyrt.JUMP_IF_FALSE_OR_POP:
				// Taking the jump leaves the tested value on the stack;
				// falling through pops it.
				if err := setEntry(ins.target, depth); err != nil {
					return err
				}
				depth--
				continue
			case pyrt.FOR_ITER:
				// StopIteration path (jump): the iterator itself is
				// popped, one below entry depth. Continuation path
				// (fallthrough): the iterator stays and the yielded
				// value is pushed, one above entry depth.
				if err := setEntry(ins.target, depth-1); err != nil {
					return err
				}
				depth++
				if depth > maxDepth {
					maxDepth = depth
				}
				continue
			case pyrt.JUMP_FORWARD, pyrt.JUMP_BACKWARD:
				return setEntry(ins.target, depth)
			case pyrt.RETURN_VALUE, pyrt.RERAISE, pyrt.RAISE_VARARGS:
				return nil
			}
			pop, push := stackEffect(ins)
			depth -= pop
			if depth < 0 {
				return fmt.Errorf("compiler: stack underflow at instruction %d (%s) in block", i, ins.op)
			}
			depth += push
			if depth > maxDepth {
				maxDepth = depth
			}
		}
		// Fell off the end of the block with no terminating instruction:
		// control falls through to the next block in layout order.
		idx := blockIdx[b]
		if idx+1 < len(blocks) {
			return setEntry(blocks[idx+1], depth)
		}
		return nil
	}

	if err := setEntry(blocks[0], 0); err != nil {
		return 0, err
	}

	// Exception-table targets are reached out-of-band (Frame.unwind jumps
	// there directly, truncating the stack to the region's recorded depth
	// rather than falling through or jumping from another block), so they
	// need their own dataflow seed.
	for _, r := range regions {
		depth, err := depthAtMark(r.start)
		if err != nil {
			return 0, err
		}
		if err := setEntry(r.target, depth); err != nil {
			return 0, err
		}
	}
	return maxDepth, nil
}

// depthAtMark recovers the stack depth at an arbitrary point inside a block
// already assigned an entry depth by computeStackDepth, by replaying
// instructions up to m.idx. Protected regions always open/close at a
// straight-line point within a block (pushRegion/popRegion bracket a mark
// taken between statements, never mid-expression), so no conditional-jump/
// FOR_ITER branch point is ever among the instructions replayed here.
// finalize.go's buildExcRuns reuses this to find each region's start depth.
func depthAtMark(m regionMark) (int, error) {
	if !m.b.depthKnown {
		return 0, fmt.Errorf("compiler: exception region start block never reached by the entry walk")
	}
	depth := m.b.stackDepth
	for _, ins := range m.b.instrs[:m.idx] {
		pop, push := stackEffect(ins)
		depth += push - pop
	}
	return depth, nil
}
