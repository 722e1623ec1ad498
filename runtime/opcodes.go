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

// Opcode identifies one instruction in a code object's packed instruction
// stream (spec.md §4.4's closed instruction set). The instruction stream is
// a sequence of fixed-width (opcode, arg) units, one byte each; an operand
// wider than a byte is built up by one or more preceding EXTENDED_ARG units
// contributing their arg as the high-order bits (spec.md §3, §4.4).
type Opcode uint8

const (
	NOP Opcode = iota
	EXTENDED_ARG

	// Stack manipulation.
	LOAD_CONST
	POP_TOP
	DUP_TOP
	DUP_TOP_TWO
	ROT_TWO
	ROT_THREE
	ROT_FOUR
	SWAP

	// Name access.
	LOAD_FAST
	STORE_FAST
	DELETE_FAST
	LOAD_DEREF
	STORE_DEREF
	DELETE_DEREF
	LOAD_CLOSURE
	LOAD_GLOBAL
	STORE_GLOBAL
	DELETE_GLOBAL
	LOAD_NAME
	STORE_NAME
	DELETE_NAME

	// Attribute access. This runtime collapses CPython's LOAD_METHOD /
	// CALL_METHOD fast path into plain LOAD_ATTR + CALL: the descriptor
	// protocol already produces a bound Method object on instance access
	// (see function.go's functionGet), so the extra self-slot bookkeeping
	// is a pure performance optimisation with no observable semantics,
	// and spec.md §4.4 itself calls it an "optionally encoded" variant.
	LOAD_ATTR
	STORE_ATTR
	DELETE_ATTR

	// Subscript.
	BINARY_SUBSCR
	STORE_SUBSCR
	DELETE_SUBSCR

	// Sequence unpacking (assignment targets like "a, b, *c = seq").
	UNPACK_SEQUENCE
	UNPACK_EX

	// Operators. BINARY_OP/INPLACE_OP/UNARY_OP/COMPARE_OP take the
	// specific operation as their arg (a BinOp/CompareOp/UnaryOp value);
	// IS_OP and CONTAINS_OP take 0/1 to select the non-negated/negated
	// form ("is" vs "is not", "in" vs "not in").
	UNARY_OP
	BINARY_OP
	INPLACE_OP
	COMPARE_OP
	IS_OP
	CONTAINS_OP

	// Containers.
	BUILD_TUPLE
	BUILD_LIST
	BUILD_SET
	BUILD_MAP
	LIST_EXTEND
	SET_UPDATE
	DICT_UPDATE
	DICT_MERGE
	LIST_APPEND
	SET_ADD
	MAP_ADD
	BUILD_SLICE
	BUILD_STRING
	FORMAT_VALUE

	// Control flow.
	JUMP_FORWARD
	JUMP_BACKWARD
	POP_JUMP_IF_TRUE
	POP_JUMP_IF_FALSE
	JUMP_IF_TRUE_OR_POP
	JUMP_IF_FALSE_OR_POP
	GET_ITER
	FOR_ITER
	RETURN_VALUE
	YIELD_VALUE
	GET_YIELD_FROM_ITER
	YIELD_FROM
	RAISE_VARARGS
	RERAISE

	// Function machinery.
	MAKE_FUNCTION
	CALL
	KW_NAMES
	CALL_FUNCTION_EX

	// Exception machinery.
	PUSH_EXC_INFO
	POP_EXCEPT
	CHECK_EXC_MATCH
	WITH_EXCEPT_START

	// Import.
	IMPORT_NAME
	IMPORT_FROM
	IMPORT_STAR

	// Class machinery.
	LOAD_BUILD_CLASS
	SETUP_ANNOTATIONS

	// Monitoring (spec.md §4.6): RESUME is dual-purpose, firing PY_START
	// the first time a frame runs and PY_RESUME on every later resumption
	// of a generator/coroutine; INSTRUMENTED_LINE is a no-op the
	// dispatcher treats as a LINE event trigger point.
	RESUME
	INSTRUMENTED_LINE

	numOpcodes
)

var opcodeNames = [numOpcodes]string{
	NOP: "NOP", EXTENDED_ARG: "EXTENDED_ARG",
	LOAD_CONST: "LOAD_CONST", POP_TOP: "POP_TOP", DUP_TOP: "DUP_TOP",
	DUP_TOP_TWO: "DUP_TOP_TWO", ROT_TWO: "ROT_TWO", ROT_THREE: "ROT_THREE",
	ROT_FOUR: "ROT_FOUR", SWAP: "SWAP",
	LOAD_FAST: "LOAD_FAST", STORE_FAST: "STORE_FAST", DELETE_FAST: "DELETE_FAST",
	LOAD_DEREF: "LOAD_DEREF", STORE_DEREF: "STORE_DEREF", DELETE_DEREF: "DELETE_DEREF",
	LOAD_CLOSURE: "LOAD_CLOSURE",
	LOAD_GLOBAL:  "LOAD_GLOBAL", STORE_GLOBAL: "STORE_GLOBAL", DELETE_GLOBAL: "DELETE_GLOBAL",
	LOAD_NAME: "LOAD_NAME", STORE_NAME: "STORE_NAME", DELETE_NAME: "DELETE_NAME",
	LOAD_ATTR: "LOAD_ATTR", STORE_ATTR: "STORE_ATTR", DELETE_ATTR: "DELETE_ATTR",
	BINARY_SUBSCR: "BINARY_SUBSCR", STORE_SUBSCR: "STORE_SUBSCR", DELETE_SUBSCR: "DELETE_SUBSCR",
	UNPACK_SEQUENCE: "UNPACK_SEQUENCE", UNPACK_EX: "UNPACK_EX",
	UNARY_OP: "UNARY_OP", BINARY_OP: "BINARY_OP", INPLACE_OP: "INPLACE_OP",
	COMPARE_OP: "COMPARE_OP", IS_OP: "IS_OP", CONTAINS_OP: "CONTAINS_OP",
	BUILD_TUPLE: "BUILD_TUPLE", BUILD_LIST: "BUILD_LIST", BUILD_SET: "BUILD_SET", BUILD_MAP: "BUILD_MAP",
	LIST_EXTEND: "LIST_EXTEND", SET_UPDATE: "SET_UPDATE", DICT_UPDATE: "DICT_UPDATE", DICT_MERGE: "DICT_MERGE",
	LIST_APPEND: "LIST_APPEND", SET_ADD: "SET_ADD", MAP_ADD: "MAP_ADD",
	BUILD_SLICE: "BUILD_SLICE", BUILD_STRING: "BUILD_STRING", FORMAT_VALUE: "FORMAT_VALUE",
	JUMP_FORWARD: "JUMP_FORWARD", JUMP_BACKWARD: "JUMP_BACKWARD",
	POP_JUMP_IF_TRUE: "POP_JUMP_IF_TRUE", POP_JUMP_IF_FALSE: "POP_JUMP_IF_FALSE",
	JUMP_IF_TRUE_OR_POP: "JUMP_IF_TRUE_OR_POP", JUMP_IF_FALSE_OR_POP: "JUMP_IF_FALSE_OR_POP",
	GET_ITER: "GET_ITER", FOR_ITER: "FOR_ITER", RETURN_VALUE: "RETURN_VALUE",
	YIELD_VALUE: "YIELD_VALUE", GET_YIELD_FROM_ITER: "GET_YIELD_FROM_ITER", YIELD_FROM: "YIELD_FROM",
	RAISE_VARARGS: "RAISE_VARARGS", RERAISE: "RERAISE",
	MAKE_FUNCTION: "MAKE_FUNCTION", CALL: "CALL", KW_NAMES: "KW_NAMES", CALL_FUNCTION_EX: "CALL_FUNCTION_EX",
	PUSH_EXC_INFO: "PUSH_EXC_INFO", POP_EXCEPT: "POP_EXCEPT", CHECK_EXC_MATCH: "CHECK_EXC_MATCH",
	WITH_EXCEPT_START: "WITH_EXCEPT_START",
	IMPORT_NAME:        "IMPORT_NAME", IMPORT_FROM: "IMPORT_FROM", IMPORT_STAR: "IMPORT_STAR",
	LOAD_BUILD_CLASS: "LOAD_BUILD_CLASS", SETUP_ANNOTATIONS: "SETUP_ANNOTATIONS",
	RESUME: "RESUME", INSTRUMENTED_LINE: "INSTRUMENTED_LINE",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return "BAD_OPCODE"
}

// BinOp selects the operation for BINARY_OP/INPLACE_OP.
type BinOp int

const (
	BinOpAdd BinOp = iota
	BinOpSub
	BinOpMul
	BinOpTrueDiv
	BinOpFloorDiv
	BinOpMod
	BinOpPow
	BinOpLShift
	BinOpRShift
	BinOpAnd
	BinOpOr
	BinOpXor
	BinOpMatMul
)

// UnaryOp selects the operation for UNARY_OP.
type UnaryOp int

const (
	UnaryOpNot UnaryOp = iota
	UnaryOpNegative
	UnaryOpPositive
	UnaryOpInvert
)

// CompareOp selects the operation for COMPARE_OP. It's an exported alias
// for core.go's compareOp so that the compiler package — which can only
// see exported identifiers in this package — can emit a matching operand;
// BinOp/UnaryOp above are exported for the identical reason.
type CompareOp = compareOp

const (
	CompareOpLT = compareOpLT
	CompareOpLE = compareOpLE
	CompareOpEq = compareOpEq
	CompareOpNE = compareOpNE
	CompareOpGE = compareOpGE
	CompareOpGT = compareOpGT
)

// instrWidth is the size in bytes of a single (opcode, arg) unit.
const instrWidth = 2

// InstrWidth is instrWidth for producers outside this package (the
// compiler's finalisation stage needs it to lay out EXTENDED_ARG-widened
// instructions).
const InstrWidth = instrWidth

// MakeInstr packs an opcode/arg pair into instrWidth bytes, appending to
// buf and returning the result; arg must fit in a byte — wider operands are
// expressed as one or more preceding EXTENDED_ARG units by the caller (the
// compiler's finalisation stage, spec.md §4.3).
func MakeInstr(buf []byte, op Opcode, arg byte) []byte {
	return append(buf, byte(op), arg)
}

// decodeInstr reads the (opcode, arg) unit at pc, folding in any
// accumulated EXTENDED_ARG prefix bits, and returns the opcode, the full
// argument and the pc of the next instruction.
func decodeInstr(code []byte, pc int) (Opcode, int, int) {
	arg := 0
	for {
		op := Opcode(code[pc])
		arg = arg<<8 | int(code[pc+1])
		pc += instrWidth
		if op != EXTENDED_ARG {
			return op, arg, pc
		}
	}
}
