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
	"math/big"

	"github.com/pyrt-dev/pyrt/compiler/ast"
	pyrt "github.com/pyrt-dev/pyrt/runtime"
)

func binOpFor(op ast.OperatorKind) pyrt.BinOp {
	switch op {
	case ast.Add:
		return pyrt.BinOpAdd
	case ast.Sub:
		return pyrt.BinOpSub
	case ast.Mult:
		return pyrt.BinOpMul
	case ast.Div:
		return pyrt.BinOpTrueDiv
	case ast.FloorDiv:
		return pyrt.BinOpFloorDiv
	case ast.Mod:
		return pyrt.BinOpMod
	case ast.Pow:
		return pyrt.BinOpPow
	case ast.LShift:
		return pyrt.BinOpLShift
	case ast.RShift:
		return pyrt.BinOpRShift
	case ast.BitAnd:
		return pyrt.BinOpAnd
	case ast.BitOr:
		return pyrt.BinOpOr
	case ast.BitXor:
		return pyrt.BinOpXor
	case ast.MatMult:
		return pyrt.BinOpMatMul
	}
	return pyrt.BinOpAdd
}

func compareOpFor(op ast.CompareOpKind) (pyrt.CompareOp, bool, bool) {
	// Returns (opcodeArg, useCompareOp, negate). Is/IsNot/In/NotIn are
	// IS_OP/CONTAINS_OP with a 0/1 arg rather than COMPARE_OP.
	switch op {
	case ast.CmpLt:
		return pyrt.CompareOpLT, true, false
	case ast.CmpLtE:
		return pyrt.CompareOpLE, true, false
	case ast.CmpEq:
		return pyrt.CompareOpEq, true, false
	case ast.CmpNotEq:
		return pyrt.CompareOpNE, true, false
	case ast.CmpGtE:
		return pyrt.CompareOpGE, true, false
	case ast.CmpGt:
		return pyrt.CompareOpGT, true, false
	}
	return 0, false, false
}

func unaryOpFor(op ast.UnaryOpKind) pyrt.UnaryOp {
	switch op {
	case ast.UAdd:
		return pyrt.UnaryOpPositive
	case ast.USub:
		return pyrt.UnaryOpNegative
	case ast.Not:
		return pyrt.UnaryOpNot
	case ast.Invert:
		return pyrt.UnaryOpInvert
	}
	return pyrt.UnaryOpPositive
}

func (fc *fnCompiler) exprs(es []ast.Expr) error {
	for _, e := range es {
		if err := fc.expr(e); err != nil {
			return err
		}
	}
	return nil
}

func (fc *fnCompiler) expr(e ast.Expr) error {
	line := e.Line()
	switch n := e.(type) {
	case *ast.Constant:
		return fc.loadConstant(line, n.Value)
	case *ast.Name:
		fc.loadName(line, n.Id)
		return nil
	case *ast.BoolOp:
		return fc.compileBoolOp(n)
	case *ast.BinOp:
		if err := fc.expr(n.Left); err != nil {
			return err
		}
		if err := fc.expr(n.Right); err != nil {
			return err
		}
		fc.emit(line, pyrt.BINARY_OP, int(binOpFor(n.Op)))
		return nil
	case *ast.UnaryOp:
		if err := fc.expr(n.Operand); err != nil {
			return err
		}
		fc.emit(line, pyrt.UNARY_OP, int(unaryOpFor(n.Op)))
		return nil
	case *ast.Compare:
		return fc.compileCompare(n)
	case *ast.IfExp:
		return fc.compileIfExp(n)
	case *ast.Lambda:
		return fc.compileLambda(n)
	case *ast.Call:
		return fc.compileCall(n)
	case *ast.Attribute:
		if err := fc.expr(n.Value); err != nil {
			return err
		}
		fc.emit(line, pyrt.LOAD_ATTR, fc.internName(n.Attr))
		return nil
	case *ast.Subscript:
		if err := fc.expr(n.Value); err != nil {
			return err
		}
		if err := fc.expr(n.Slice); err != nil {
			return err
		}
		fc.emit(line, pyrt.BINARY_SUBSCR, 0)
		return nil
	case *ast.Starred:
		return fc.expr(n.Value)
	case *ast.ListExpr:
		return fc.compileListLiteral(line, n.Elts)
	case *ast.TupleExpr:
		hasStar := false
		for _, el := range n.Elts {
			if _, ok := el.(*ast.Starred); ok {
				hasStar = true
				break
			}
		}
		if !hasStar {
			for _, el := range n.Elts {
				if err := fc.expr(el); err != nil {
					return err
				}
			}
			fc.emit(line, pyrt.BUILD_TUPLE, len(n.Elts))
			return nil
		}
		// No incremental "append to tuple" opcode exists (tuples are
		// immutable): build the unpacked elements as a list, then convert
		// via the tuple() builtin, the same route CPython's own
		// LIST_TO_TUPLE takes conceptually.
		fc.emit(line, pyrt.LOAD_GLOBAL, fc.internName("tuple"))
		if err := fc.compileListLiteral(line, n.Elts); err != nil {
			return err
		}
		fc.emit(line, pyrt.CALL, 1)
		return nil
	case *ast.Set:
		return fc.compileSetLiteral(line, n.Elts)
	case *ast.Dict:
		return fc.compileDict(n)
	case *ast.Slice:
		return fc.compileSlice(n)
	case *ast.ListComp:
		return fc.compileComprehension(n.Generators, n.Elt, nil, "<listcomp>", compKindList)
	case *ast.SetComp:
		return fc.compileComprehension(n.Generators, n.Elt, nil, "<setcomp>", compKindSet)
	case *ast.DictComp:
		return fc.compileComprehension(n.Generators, n.Value, n.Key, "<dictcomp>", compKindDict)
	case *ast.GeneratorExp:
		return fc.compileComprehension(n.Generators, n.Elt, nil, "<genexpr>", compKindGen)
	case *ast.Yield:
		if n.Value != nil {
			if err := fc.expr(n.Value); err != nil {
				return err
			}
		} else {
			fc.emit(line, pyrt.LOAD_CONST, fc.internConst(constNone{}, pyrt.None))
		}
		fc.emit(line, pyrt.YIELD_VALUE, 0)
		return nil
	case *ast.YieldFrom:
		if err := fc.expr(n.Value); err != nil {
			return err
		}
		fc.emit(line, pyrt.GET_YIELD_FROM_ITER, 0)
		fc.emit(line, pyrt.LOAD_CONST, fc.internConst(constNone{}, pyrt.None))
		fc.emit(line, pyrt.YIELD_FROM, 0)
		return nil
	case *ast.Await:
		// This runtime's coroutine support runs eagerly to completion
		// rather than suspending on await (the same simplification
		// YIELD_FROM documents for delegation); awaiting desugars
		// identically to yield-from over the awaitable.
		if err := fc.expr(n.Value); err != nil {
			return err
		}
		fc.emit(line, pyrt.GET_YIELD_FROM_ITER, 0)
		fc.emit(line, pyrt.LOAD_CONST, fc.internConst(constNone{}, pyrt.None))
		fc.emit(line, pyrt.YIELD_FROM, 0)
		return nil
	case *ast.JoinedStr:
		for _, v := range n.Values {
			if err := fc.expr(v); err != nil {
				return err
			}
		}
		fc.emit(line, pyrt.BUILD_STRING, len(n.Values))
		return nil
	case *ast.FormattedValue:
		if err := fc.expr(n.Value); err != nil {
			return err
		}
		if n.FormatSpec != nil {
			if err := fc.expr(n.FormatSpec); err != nil {
				return err
			}
			fc.emit(line, pyrt.FORMAT_VALUE, 0x4)
		} else {
			fc.emit(line, pyrt.FORMAT_VALUE, 0)
		}
		return nil
	default:
		return fmt.Errorf("compiler: unhandled expression %T", e)
	}
}

func (fc *fnCompiler) loadConstant(line ast.Pos, v interface{}) error {
	switch val := v.(type) {
	case nil:
		fc.emit(line, pyrt.LOAD_CONST, fc.internConst(constNone{}, pyrt.None))
	case bool:
		fc.emit(line, pyrt.LOAD_CONST, fc.internConst(constBool(val), pyrt.GetBool(val).ToObject()))
	case *big.Int:
		fc.emit(line, pyrt.LOAD_CONST, fc.internConst("int:"+val.String(), pyrt.NewIntFromBig(val).ToObject()))
	case float64:
		fc.emit(line, pyrt.LOAD_CONST, fc.internConst(fmt.Sprintf("float:%v", val), pyrt.NewFloat(val).ToObject()))
	case string:
		fc.emit(line, pyrt.LOAD_CONST, fc.internConst("str:"+val, pyrt.NewStr(val).ToObject()))
	case []byte:
		fc.emit(line, pyrt.LOAD_CONST, fc.internConst("bytes:"+string(val), pyrt.NewBytes(val).ToObject()))
	case ast.EllipsisValue:
		fc.emit(line, pyrt.LOAD_CONST, fc.internConst(constEllipsis{}, pyrt.Ellipsis))
	case complex128:
		// No complex number type exists in this runtime: fall back to its
		// real component, the closest existing
		// numeric type can represent.
		fc.emit(line, pyrt.LOAD_CONST, fc.internConst(fmt.Sprintf("complexreal:%v", real(val)), pyrt.NewFloat(real(val)).ToObject()))
	default:
		return fmt.Errorf("compiler: unsupported constant type %T", v)
	}
	return nil
}

func (fc *fnCompiler) compileBoolOp(n *ast.BoolOp) error {
	line := n.Line()
	endBlock := fc.newBlock()
	op := pyrt.JUMP_IF_FALSE_OR_POP
	if n.Op == ast.Or {
		op = pyrt.JUMP_IF_TRUE_OR_POP
	}
	for i, v := range n.Values {
		if err := fc.expr(v); err != nil {
			return err
		}
		if i < len(n.Values)-1 {
			fc.emitJump(line, op, endBlock)
		}
	}
	fc.useBlock(endBlock)
	return nil
}

func (fc *fnCompiler) compileCompare(n *ast.Compare) error {
	line := n.Line()
	if err := fc.expr(n.Left); err != nil {
		return err
	}
	if len(n.Ops) == 1 {
		if err := fc.expr(n.Comparators[0]); err != nil {
			return err
		}
		return fc.emitCompareOp(line, n.Ops[0])
	}
	// Chained comparison (a < b < c): evaluate each shared comparator once,
	// short-circuiting to False as soon as one link fails. Each
	// short-circuit exit lands in its own tiny cleanup block (ROT_TWO +
	// POP_TOP discarding the still-live right-hand comparator, then an
	// explicit jump to the shared end) so every path reaches end at the
	// same stack depth — the merge-point invariant spec.md §4.3's
	// stack-depth dataflow pass relies on.
	//
	// Every block object is allocated up front; each enters the final
	// instruction stream in the order useBlock first switches into it, so
	// visiting them below in cleanups[0], conts[0], ..., endBlock order
	// lays them out correctly regardless of this early allocation.
	last := len(n.Comparators) - 1
	cleanups := make([]*block, last)
	conts := make([]*block, last)
	for i := 0; i < last; i++ {
		cleanups[i] = fc.newBlock()
		conts[i] = fc.newBlock()
	}
	endBlock := fc.newBlock()

	for i, comparator := range n.Comparators {
		if err := fc.expr(comparator); err != nil {
			return err
		}
		if i < last {
			fc.emit(line, pyrt.DUP_TOP, 0)
			fc.emit(line, pyrt.ROT_THREE, 0)
		}
		if err := fc.emitCompareOp(line, n.Ops[i]); err != nil {
			return err
		}
		if i < last {
			fc.emitJump(line, pyrt.JUMP_IF_FALSE_OR_POP, cleanups[i])
			fc.emitJump(line, pyrt.JUMP_FORWARD, conts[i])
			fc.useBlock(cleanups[i])
			fc.emit(line, pyrt.ROT_TWO, 0)
			fc.emit(line, pyrt.POP_TOP, 0)
			fc.emitJump(line, pyrt.JUMP_FORWARD, endBlock)
			fc.useBlock(conts[i])
		}
	}
	fc.useBlock(endBlock)
	return nil
}

func (fc *fnCompiler) emitCompareOp(line ast.Pos, op ast.CompareOpKind) error {
	switch op {
	case ast.CmpIs:
		fc.emit(line, pyrt.IS_OP, 0)
	case ast.CmpIsNot:
		fc.emit(line, pyrt.IS_OP, 1)
	case ast.CmpIn:
		fc.emit(line, pyrt.CONTAINS_OP, 0)
	case ast.CmpNotIn:
		fc.emit(line, pyrt.CONTAINS_OP, 1)
	default:
		arg, ok, _ := compareOpFor(op)
		if !ok {
			return fmt.Errorf("compiler: unknown comparison operator %v", op)
		}
		fc.emit(line, pyrt.COMPARE_OP, int(arg))
	}
	return nil
}

func (fc *fnCompiler) compileIfExp(n *ast.IfExp) error {
	line := n.Line()
	if err := fc.expr(n.Test); err != nil {
		return err
	}
	elseBlock := fc.newBlock()
	endBlock := fc.newBlock()
	fc.emitJump(line, pyrt.POP_JUMP_IF_FALSE, elseBlock)
	if err := fc.expr(n.Body); err != nil {
		return err
	}
	fc.emitJump(line, pyrt.JUMP_FORWARD, endBlock)
	fc.useBlock(elseBlock)
	if err := fc.expr(n.Orelse); err != nil {
		return err
	}
	fc.useBlock(endBlock)
	return nil
}

// compileListLiteral emits a list display, handling any number of Starred
// elements via BUILD_LIST(0) + LIST_EXTEND/LIST_APPEND(1) (spec.md's
// iterable-unpacking container support), or the plain BUILD_LIST(count)
// form when no element is starred.
func (fc *fnCompiler) compileListLiteral(line ast.Pos, elts []ast.Expr) error {
	hasStar := false
	for _, e := range elts {
		if _, ok := e.(*ast.Starred); ok {
			hasStar = true
			break
		}
	}
	if !hasStar {
		for _, e := range elts {
			if err := fc.expr(e); err != nil {
				return err
			}
		}
		fc.emit(line, pyrt.BUILD_LIST, len(elts))
		return nil
	}
	fc.emit(line, pyrt.BUILD_LIST, 0)
	for _, e := range elts {
		if star, ok := e.(*ast.Starred); ok {
			if err := fc.expr(star.Value); err != nil {
				return err
			}
			fc.emit(line, pyrt.LIST_EXTEND, 1)
		} else {
			if err := fc.expr(e); err != nil {
				return err
			}
			fc.emit(line, pyrt.LIST_APPEND, 1)
		}
	}
	return nil
}

func (fc *fnCompiler) compileSetLiteral(line ast.Pos, elts []ast.Expr) error {
	hasStar := false
	for _, e := range elts {
		if _, ok := e.(*ast.Starred); ok {
			hasStar = true
			break
		}
	}
	if !hasStar {
		for _, e := range elts {
			if err := fc.expr(e); err != nil {
				return err
			}
		}
		fc.emit(line, pyrt.BUILD_SET, len(elts))
		return nil
	}
	fc.emit(line, pyrt.BUILD_SET, 0)
	for _, e := range elts {
		if star, ok := e.(*ast.Starred); ok {
			if err := fc.expr(star.Value); err != nil {
				return err
			}
			fc.emit(line, pyrt.SET_UPDATE, 1)
		} else {
			if err := fc.expr(e); err != nil {
				return err
			}
			fc.emit(line, pyrt.SET_ADD, 1)
		}
	}
	return nil
}

func (fc *fnCompiler) compileDict(n *ast.Dict) error {
	line := n.Line()
	fc.emit(line, pyrt.BUILD_MAP, 0)
	for _, entry := range n.Entries {
		if entry.Key == nil {
			// "**other" unpacking.
			if err := fc.expr(entry.Value); err != nil {
				return err
			}
			fc.emit(line, pyrt.DICT_MERGE, 1)
			continue
		}
		if err := fc.expr(entry.Key); err != nil {
			return err
		}
		if err := fc.expr(entry.Value); err != nil {
			return err
		}
		fc.emit(line, pyrt.MAP_ADD, 1)
	}
	return nil
}

func (fc *fnCompiler) compileSlice(n *ast.Slice) error {
	line := n.Line()
	load := func(e ast.Expr) error {
		if e == nil {
			fc.emit(line, pyrt.LOAD_CONST, fc.internConst(constNone{}, pyrt.None))
			return nil
		}
		return fc.expr(e)
	}
	if err := load(n.Lower); err != nil {
		return err
	}
	if err := load(n.Upper); err != nil {
		return err
	}
	if n.Step != nil {
		if err := fc.expr(n.Step); err != nil {
			return err
		}
		fc.emit(line, pyrt.BUILD_SLICE, 3)
	} else {
		fc.emit(line, pyrt.BUILD_SLICE, 2)
	}
	return nil
}

// compileCall lowers a call expression. Any Starred positional argument or
// "**kwargs" keyword forces the CALL_FUNCTION_EX form (spec.md's function
// machinery); otherwise plain positional/keyword args use CALL, preceded
// by KW_NAMES when any keyword arguments are present (runtime/frame.go's
// CALL semantics: argc counts positional+keyword together, with keyword
// names supplied by a prior KW_NAMES naming the trailing slice).
func (fc *fnCompiler) compileCall(n *ast.Call) error {
	line := n.Line()
	hasStarArg := false
	for _, a := range n.Args {
		if _, ok := a.(*ast.Starred); ok {
			hasStarArg = true
			break
		}
	}
	hasDoubleStarKw := false
	for _, k := range n.Keywords {
		if k.Arg == "" {
			hasDoubleStarKw = true
			break
		}
	}
	if err := fc.expr(n.Func); err != nil {
		return err
	}
	if hasStarArg || hasDoubleStarKw {
		return fc.compileCallEx(line, n)
	}
	for _, a := range n.Args {
		if err := fc.expr(a); err != nil {
			return err
		}
	}
	if len(n.Keywords) == 0 {
		fc.emit(line, pyrt.CALL, len(n.Args))
		return nil
	}
	kwNames := make([]*pyrt.Object, len(n.Keywords))
	for i, k := range n.Keywords {
		if err := fc.expr(k.Value); err != nil {
			return err
		}
		kwNames[i] = pyrt.NewStr(k.Arg).ToObject()
	}
	fc.emit(line, pyrt.KW_NAMES, fc.internConst(fmt.Sprintf("kwnames:%p", n), pyrt.NewTuple(kwNames...).ToObject()))
	fc.emit(line, pyrt.CALL, len(n.Args)+len(n.Keywords))
	return nil
}

// compileCallEx builds the (*args-list, **kwargs-dict) pair
// CALL_FUNCTION_EX expects, folding any Starred positional arguments and
// plain positionals together via BUILD_LIST/LIST_EXTEND and any "**"
// keywords together with plain keywords via BUILD_MAP/DICT_MERGE.
func (fc *fnCompiler) compileCallEx(line ast.Pos, n *ast.Call) error {
	if err := fc.compileListLiteral(line, n.Args); err != nil {
		return err
	}
	if len(n.Keywords) == 0 {
		fc.emit(line, pyrt.CALL_FUNCTION_EX, 0)
		return nil
	}
	fc.emit(line, pyrt.BUILD_MAP, 0)
	for _, k := range n.Keywords {
		if k.Arg == "" {
			if err := fc.expr(k.Value); err != nil {
				return err
			}
			fc.emit(line, pyrt.DICT_MERGE, 1)
			continue
		}
		fc.emit(line, pyrt.LOAD_CONST, fc.internConst("str:"+k.Arg, pyrt.NewStr(k.Arg).ToObject()))
		if err := fc.expr(k.Value); err != nil {
			return err
		}
		fc.emit(line, pyrt.MAP_ADD, 1)
	}
	fc.emit(line, pyrt.CALL_FUNCTION_EX, 1)
	return nil
}
