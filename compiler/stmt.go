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

	"github.com/pyrt-dev/pyrt/compiler/ast"
	pyrt "github.com/pyrt-dev/pyrt/runtime"
)

// nextChildScope returns the symtab scope for the next nested
// function/class/lambda/comprehension encountered while walking fc's
// body, in lock-step with symtab.go's identical traversal order (both
// passes visit statements/expressions in the same left-to-right order,
// so positional correlation is exact without needing an AST-node-keyed
// side table).
func (fc *fnCompiler) nextChildScope() *scope {
	s := fc.scope.children[fc.childIdx]
	fc.childIdx++
	return s
}

func (fc *fnCompiler) stmt(st ast.Stmt) error {
	line := st.Line()
	switch n := st.(type) {
	case *ast.FunctionDef:
		return fc.compileFunctionDef(n)
	case *ast.ClassDef:
		return fc.compileClassDef(n)
	case *ast.Return:
		if n.Value != nil {
			if err := fc.expr(n.Value); err != nil {
				return err
			}
		} else {
			fc.emit(line, pyrt.LOAD_CONST, fc.internConst(constNone{}, pyrt.None))
		}
		fc.emit(line, pyrt.RETURN_VALUE, 0)
	case *ast.Delete:
		for _, t := range n.Targets {
			if err := fc.compileDelTarget(t); err != nil {
				return err
			}
		}
	case *ast.Assign:
		if err := fc.expr(n.Value); err != nil {
			return err
		}
		for i, t := range n.Targets {
			if i < len(n.Targets)-1 {
				fc.emit(line, pyrt.DUP_TOP, 0)
			}
			if err := fc.compileAssignTarget(t); err != nil {
				return err
			}
		}
	case *ast.AugAssign:
		return fc.compileAugAssign(n)
	case *ast.AnnAssign:
		if n.Value != nil {
			if err := fc.expr(n.Value); err != nil {
				return err
			}
			if err := fc.compileAssignTarget(n.Target); err != nil {
				return err
			}
		}
		if name, ok := n.Target.(*ast.Name); ok && (fc.scope.kind == scopeModule || fc.scope.kind == scopeClass) {
			fc.ensureAnnotations(line)
			// __annotations__[name] = <annotation expr>: BINARY_SUBSCR's
			// store counterpart STORE_SUBSCR pops (value, container, key).
			if err := fc.expr(n.Annotation); err != nil {
				return err
			}
			fc.loadName(line, "__annotations__")
			fc.emit(line, pyrt.LOAD_CONST, fc.internConst(constStrKey(name.Id), pyrt.NewStr(name.Id).ToObject()))
			fc.emit(line, pyrt.STORE_SUBSCR, 0)
		} else {
			fc.skipExprScopes(n.Annotation)
		}
	case *ast.For:
		return fc.compileFor(n)
	case *ast.While:
		return fc.compileWhile(n)
	case *ast.If:
		return fc.compileIf(n)
	case *ast.With:
		return fc.compileWith(n)
	case *ast.Raise:
		if n.Exc == nil {
			fc.emit(line, pyrt.RAISE_VARARGS, 0)
			return nil
		}
		if err := fc.expr(n.Exc); err != nil {
			return err
		}
		if n.Cause != nil {
			if err := fc.expr(n.Cause); err != nil {
				return err
			}
			fc.emit(line, pyrt.RAISE_VARARGS, 2)
		} else {
			fc.emit(line, pyrt.RAISE_VARARGS, 1)
		}
	case *ast.Try:
		return fc.compileTry(n)
	case *ast.Assert:
		return fc.compileAssert(n)
	case *ast.Import:
		return fc.compileImport(n)
	case *ast.ImportFrom:
		return fc.compileImportFrom(n)
	case *ast.Global, *ast.Nonlocal:
		// Pure compile-time declarations, fully consumed by symtab.go.
	case *ast.ExprStmt:
		if err := fc.expr(n.Value); err != nil {
			return err
		}
		fc.emit(line, pyrt.POP_TOP, 0)
	case *ast.Pass:
	case *ast.Break:
		lp, err := fc.currentLoop()
		if err != nil {
			return err
		}
		fc.emitJump(line, pyrt.JUMP_FORWARD, lp.breakTarget)
	case *ast.Continue:
		lp, err := fc.currentLoop()
		if err != nil {
			return err
		}
		fc.emitJump(line, pyrt.JUMP_BACKWARD, lp.continueTarget)
	default:
		return fmt.Errorf("compiler: unhandled statement %T", st)
	}
	return nil
}

func (fc *fnCompiler) ensureAnnotations(line ast.Pos) {
	if fc.annotationsEmitted {
		return
	}
	fc.annotationsEmitted = true
	fc.emit(line, pyrt.SETUP_ANNOTATIONS, 0)
}

func (fc *fnCompiler) stmts(body []ast.Stmt) error {
	for _, st := range body {
		if err := fc.stmt(st); err != nil {
			return err
		}
	}
	return nil
}

// compileAssignTarget emits the store half of an assignment; the value
// to be stored must already be on top of the stack.
func (fc *fnCompiler) compileAssignTarget(t ast.Expr) error {
	line := t.Line()
	switch n := t.(type) {
	case *ast.Name:
		return fc.storeName(line, n.Id)
	case *ast.Attribute:
		if err := fc.expr(n.Value); err != nil {
			return err
		}
		fc.emit(line, pyrt.STORE_ATTR, fc.internName(n.Attr))
		return nil
	case *ast.Subscript:
		if err := fc.expr(n.Value); err != nil {
			return err
		}
		if err := fc.expr(n.Slice); err != nil {
			return err
		}
		fc.emit(line, pyrt.STORE_SUBSCR, 0)
		return nil
	case *ast.TupleExpr:
		return fc.compileUnpackTargets(line, n.Elts)
	case *ast.ListExpr:
		return fc.compileUnpackTargets(line, n.Elts)
	case *ast.Starred:
		return fc.compileAssignTarget(n.Value)
	default:
		return fmt.Errorf("compiler: invalid assignment target %T", t)
	}
}

// compileUnpackTargets emits UNPACK_SEQUENCE (no starred element present)
// or UNPACK_EX (exactly one Starred element, spec.md's starred-assignment
// support), then stores each resulting value left to right.
func (fc *fnCompiler) compileUnpackTargets(line ast.Pos, elts []ast.Expr) error {
	starIdx := -1
	for i, e := range elts {
		if _, ok := e.(*ast.Starred); ok {
			starIdx = i
			break
		}
	}
	if starIdx < 0 {
		fc.emit(line, pyrt.UNPACK_SEQUENCE, len(elts))
	} else {
		before := starIdx
		after := len(elts) - starIdx - 1
		fc.emit(line, pyrt.UNPACK_EX, before|(after<<8))
	}
	for _, e := range elts {
		if err := fc.compileAssignTarget(e); err != nil {
			return err
		}
	}
	return nil
}

func (fc *fnCompiler) compileDelTarget(t ast.Expr) error {
	line := t.Line()
	switch n := t.(type) {
	case *ast.Name:
		return fc.deleteName(line, n.Id)
	case *ast.Attribute:
		if err := fc.expr(n.Value); err != nil {
			return err
		}
		fc.emit(line, pyrt.DELETE_ATTR, fc.internName(n.Attr))
		return nil
	case *ast.Subscript:
		if err := fc.expr(n.Value); err != nil {
			return err
		}
		if err := fc.expr(n.Slice); err != nil {
			return err
		}
		fc.emit(line, pyrt.DELETE_SUBSCR, 0)
		return nil
	case *ast.TupleExpr, *ast.ListExpr:
		var elts []ast.Expr
		if tp, ok := n0(t); ok {
			elts = tp
		}
		for _, e := range elts {
			if err := fc.compileDelTarget(e); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("compiler: invalid delete target %T", t)
	}
}

func n0(t ast.Expr) ([]ast.Expr, bool) {
	switch n := t.(type) {
	case *ast.TupleExpr:
		return n.Elts, true
	case *ast.ListExpr:
		return n.Elts, true
	}
	return nil, false
}

// storeName emits the correct store opcode for name given its resolved
// binding class in the current scope (spec.md §4.3/§4.4's name-access
// instruction family: STORE_FAST for locals in optimized scopes,
// STORE_NAME for module/class-body scopes, STORE_GLOBAL, STORE_DEREF for
// cells/frees).
func (fc *fnCompiler) storeName(line ast.Pos, name string) error {
	switch fc.scope.resolved[name] {
	case nameLocal:
		if fc.scope.kind == scopeModule || fc.scope.kind == scopeClass {
			fc.emit(line, pyrt.STORE_NAME, fc.internName(name))
		} else {
			fc.emit(line, pyrt.STORE_FAST, fc.internVarname(name))
		}
	case nameCell:
		fc.emit(line, pyrt.STORE_DEREF, fc.derefIndex(name))
	case nameFree:
		fc.emit(line, pyrt.STORE_DEREF, fc.derefIndex(name))
	case nameGlobal, nameImplicitGlobal:
		fc.emit(line, pyrt.STORE_GLOBAL, fc.internName(name))
	}
	return nil
}

func (fc *fnCompiler) deleteName(line ast.Pos, name string) error {
	switch fc.scope.resolved[name] {
	case nameLocal:
		if fc.scope.kind == scopeModule || fc.scope.kind == scopeClass {
			fc.emit(line, pyrt.DELETE_NAME, fc.internName(name))
		} else {
			fc.emit(line, pyrt.DELETE_FAST, fc.internVarname(name))
		}
	case nameCell:
		fc.emit(line, pyrt.DELETE_DEREF, fc.derefIndex(name))
	case nameFree:
		fc.emit(line, pyrt.DELETE_DEREF, fc.derefIndex(name))
	case nameGlobal, nameImplicitGlobal:
		fc.emit(line, pyrt.DELETE_GLOBAL, fc.internName(name))
	}
	return nil
}

// derefIndex returns the *_DEREF/LOAD_CLOSURE operand for name: the
// runtime addresses a frame's cells as cellvars followed by freevars
// (runtime/code.go's makeCells), so a freevar's slot sits after every
// cellvar's.
func (fc *fnCompiler) derefIndex(name string) int {
	if i, ok := fc.cellIdx[name]; ok {
		return i
	}
	return len(fc.cellvars) + fc.internFreevar(name)
}

func (fc *fnCompiler) loadName(line ast.Pos, name string) {
	switch fc.scope.resolved[name] {
	case nameLocal:
		if fc.scope.kind == scopeModule || fc.scope.kind == scopeClass {
			fc.emit(line, pyrt.LOAD_NAME, fc.internName(name))
		} else {
			fc.emit(line, pyrt.LOAD_FAST, fc.internVarname(name))
		}
	case nameCell:
		fc.emit(line, pyrt.LOAD_DEREF, fc.derefIndex(name))
	case nameFree:
		fc.emit(line, pyrt.LOAD_DEREF, fc.derefIndex(name))
	case nameGlobal:
		fc.emit(line, pyrt.LOAD_GLOBAL, fc.internName(name))
	case nameImplicitGlobal:
		if fc.scope.kind == scopeModule {
			fc.emit(line, pyrt.LOAD_NAME, fc.internName(name))
		} else {
			fc.emit(line, pyrt.LOAD_GLOBAL, fc.internName(name))
		}
	}
}

func (fc *fnCompiler) compileAugAssign(n *ast.AugAssign) error {
	line := n.Line()
	// Load the current value (possibly duplicating the container/key or
	// object/attr first so the store half doesn't re-evaluate them).
	switch t := n.Target.(type) {
	case *ast.Name:
		fc.loadName(line, t.Id)
		if err := fc.expr(n.Value); err != nil {
			return err
		}
		fc.emitAugBinOp(line, n.Op)
		return fc.storeName(line, t.Id)
	case *ast.Attribute:
		if err := fc.expr(t.Value); err != nil {
			return err
		}
		fc.emit(line, pyrt.DUP_TOP, 0)
		fc.emit(line, pyrt.LOAD_ATTR, fc.internName(t.Attr))
		if err := fc.expr(n.Value); err != nil {
			return err
		}
		fc.emitAugBinOp(line, n.Op)
		fc.emit(line, pyrt.ROT_TWO, 0)
		fc.emit(line, pyrt.STORE_ATTR, fc.internName(t.Attr))
		return nil
	case *ast.Subscript:
		if err := fc.expr(t.Value); err != nil {
			return err
		}
		if err := fc.expr(t.Slice); err != nil {
			return err
		}
		fc.emit(line, pyrt.DUP_TOP_TWO, 0)
		fc.emit(line, pyrt.BINARY_SUBSCR, 0)
		if err := fc.expr(n.Value); err != nil {
			return err
		}
		fc.emitAugBinOp(line, n.Op)
		fc.emit(line, pyrt.ROT_THREE, 0)
		fc.emit(line, pyrt.STORE_SUBSCR, 0)
		return nil
	default:
		return fmt.Errorf("compiler: invalid augmented-assignment target %T", n.Target)
	}
}

func (fc *fnCompiler) emitAugBinOp(line ast.Pos, op ast.OperatorKind) {
	fc.emit(line, pyrt.BINARY_OP, int(binOpFor(op)))
}

func (fc *fnCompiler) compileFor(n *ast.For) error {
	line := n.Line()
	if err := fc.expr(n.Iter); err != nil {
		return err
	}
	fc.emit(line, pyrt.GET_ITER, 0)
	loopBlock := fc.newBlock()
	bodyBlock := fc.newBlock()
	elseBlock := fc.newBlock()
	endBlock := fc.newBlock()
	fc.useBlock(loopBlock)
	fc.emitJump(line, pyrt.FOR_ITER, elseBlock)
	fc.useBlock(bodyBlock)
	if err := fc.compileAssignTarget(n.Target); err != nil {
		return err
	}
	fc.enterLoop(endBlock, loopBlock)
	if err := fc.stmts(n.Body); err != nil {
		return err
	}
	fc.exitLoop()
	fc.emitJump(line, pyrt.JUMP_BACKWARD, loopBlock)
	fc.useBlock(elseBlock)
	if err := fc.stmts(n.Orelse); err != nil {
		return err
	}
	fc.useBlock(endBlock)
	return nil
}

func (fc *fnCompiler) compileWhile(n *ast.While) error {
	line := n.Line()
	condBlock := fc.newBlock()
	bodyBlock := fc.newBlock()
	elseBlock := fc.newBlock()
	endBlock := fc.newBlock()
	fc.useBlock(condBlock)
	if err := fc.expr(n.Test); err != nil {
		return err
	}
	fc.emitJump(line, pyrt.POP_JUMP_IF_FALSE, elseBlock)
	fc.useBlock(bodyBlock)
	fc.enterLoop(endBlock, condBlock)
	if err := fc.stmts(n.Body); err != nil {
		return err
	}
	fc.exitLoop()
	fc.emitJump(line, pyrt.JUMP_BACKWARD, condBlock)
	fc.useBlock(elseBlock)
	if err := fc.stmts(n.Orelse); err != nil {
		return err
	}
	fc.useBlock(endBlock)
	return nil
}

func (fc *fnCompiler) compileIf(n *ast.If) error {
	line := n.Line()
	if err := fc.expr(n.Test); err != nil {
		return err
	}
	elseBlock := fc.newBlock()
	endBlock := fc.newBlock()
	fc.emitJump(line, pyrt.POP_JUMP_IF_FALSE, elseBlock)
	if err := fc.stmts(n.Body); err != nil {
		return err
	}
	if len(n.Orelse) > 0 {
		fc.emitJump(line, pyrt.JUMP_FORWARD, endBlock)
	}
	fc.useBlock(elseBlock)
	if err := fc.stmts(n.Orelse); err != nil {
		return err
	}
	fc.useBlock(endBlock)
	return nil
}

// compileWith lowers a with-statement's single or chained items
// recursively, each becoming a PUSH_EXC_INFO-guarded region that calls
// __exit__ via WITH_EXCEPT_START on the way out (spec.md §4.4's exception
// machinery, grounded on runtime/frame.go's WITH_EXCEPT_START handling).
func (fc *fnCompiler) compileWith(n *ast.With) error {
	return fc.compileWithItems(n.Items, n.Body)
}

// compileWithItems lowers one with-item via explicit __enter__/__exit__
// attribute protocol (this runtime has no dedicated BEFORE_WITH/
// LOAD_METHOD fast path, per opcodes.go's note that LOAD_ATTR+CALL stands
// in for CPython's method-call shortcut everywhere). Stack shape while the
// body runs: [..., exit_bound]; WITH_EXCEPT_START (runtime/frame.go) reads
// exit_bound from under the pushed exception info without popping it, so
// it must stay below the protected region's recorded entry depth.
func (fc *fnCompiler) compileWithItems(items []ast.WithItem, body []ast.Stmt) error {
	if len(items) == 0 {
		return fc.stmts(body)
	}
	it := items[0]
	line := it.ContextExpr.Line()
	if err := fc.expr(it.ContextExpr); err != nil {
		return err
	}
	fc.emit(line, pyrt.DUP_TOP, 0)
	fc.emit(line, pyrt.LOAD_ATTR, fc.internName("__exit__"))
	fc.emit(line, pyrt.ROT_TWO, 0)
	fc.emit(line, pyrt.LOAD_ATTR, fc.internName("__enter__"))
	fc.emit(line, pyrt.CALL, 0)
	// Stack: [exit_bound, enter_result].
	handlerBlock := fc.newBlock()
	endBlock := fc.newBlock()
	if it.OptionalVars != nil {
		if err := fc.compileAssignTarget(it.OptionalVars); err != nil {
			return err
		}
	} else {
		fc.emit(line, pyrt.POP_TOP, 0)
	}
	fc.pushRegion(handlerBlock)
	if err := fc.compileWithItems(items[1:], body); err != nil {
		return err
	}
	fc.popRegion()
	// Normal exit: call exit_bound(None, None, None), discard result.
	fc.emit(line, pyrt.LOAD_CONST, fc.internConst(constNone{}, pyrt.None))
	fc.emit(line, pyrt.LOAD_CONST, fc.internConst(constNone{}, pyrt.None))
	fc.emit(line, pyrt.LOAD_CONST, fc.internConst(constNone{}, pyrt.None))
	fc.emit(line, pyrt.CALL, 3)
	fc.emit(line, pyrt.POP_TOP, 0)
	fc.emitJump(line, pyrt.JUMP_FORWARD, endBlock)

	fc.useBlock(handlerBlock)
	fc.emit(line, pyrt.PUSH_EXC_INFO, 0)
	fc.emit(line, pyrt.WITH_EXCEPT_START, 0)
	reraiseBlock := fc.newBlock()
	suppressBlock := fc.newBlock()
	fc.emitJump(line, pyrt.POP_JUMP_IF_TRUE, suppressBlock)
	fc.useBlock(reraiseBlock)
	fc.emit(line, pyrt.RERAISE, 1)
	fc.useBlock(suppressBlock)
	fc.emit(line, pyrt.POP_EXCEPT, 0)
	fc.emit(line, pyrt.POP_TOP, 0) // exit_bound
	fc.useBlock(endBlock)
	return nil
}

func (fc *fnCompiler) compileTry(n *ast.Try) error {
	line := n.Line()
	bodyBlock := fc.newBlock()
	handlerBlock := fc.newBlock()
	elseBlock := fc.newBlock()
	finallyBlock := fc.newBlock()
	endBlock := fc.newBlock()

	hasFinally := len(n.Finalbody) > 0
	fc.useBlock(bodyBlock)
	fc.pushRegion(handlerBlock)
	if err := fc.stmts(n.Body); err != nil {
		return err
	}
	fc.popRegion()
	fc.emitJump(line, pyrt.JUMP_FORWARD, elseBlock)

	fc.useBlock(handlerBlock)
	fc.emit(line, pyrt.PUSH_EXC_INFO, 0)
	for _, h := range n.Handlers {
		nextBlock := fc.newBlock()
		if h.Type != nil {
			if err := fc.expr(h.Type); err != nil {
				return err
			}
			fc.emit(line, pyrt.CHECK_EXC_MATCH, 0)
			fc.emitJump(line, pyrt.POP_JUMP_IF_FALSE, nextBlock)
		}
		// The exception stays on the stack for POP_EXCEPT, which pops it
		// together with the saved previous exception; a named handler
		// binds a copy.
		if h.Name != "" {
			fc.emit(line, pyrt.DUP_TOP, 0)
			fc.storeName(line, h.Name)
		}
		if err := fc.stmts(h.Body); err != nil {
			return err
		}
		if h.Name != "" {
			fc.deleteName(line, h.Name)
		}
		fc.emit(line, pyrt.POP_EXCEPT, 0)
		if hasFinally {
			fc.emitJump(line, pyrt.JUMP_FORWARD, finallyBlock)
		} else {
			fc.emitJump(line, pyrt.JUMP_FORWARD, endBlock)
		}
		fc.useBlock(nextBlock)
	}
	// No handler matched. Without a finally clause the exception is
	// re-raised; with one, the exception info is popped and the finally
	// body runs, and the exception is not re-raised afterward.
	if hasFinally {
		fc.emit(line, pyrt.POP_EXCEPT, 0)
		fc.emitJump(line, pyrt.JUMP_FORWARD, finallyBlock)
	} else {
		fc.emit(line, pyrt.RERAISE, 0)
	}

	fc.useBlock(elseBlock)
	if err := fc.stmts(n.Orelse); err != nil {
		return err
	}
	if hasFinally {
		fc.emitJump(line, pyrt.JUMP_FORWARD, finallyBlock)
		fc.useBlock(finallyBlock)
		if err := fc.stmts(n.Finalbody); err != nil {
			return err
		}
	}
	fc.useBlock(endBlock)
	return nil
}

func (fc *fnCompiler) compileAssert(n *ast.Assert) error {
	line := n.Line()
	if err := fc.expr(n.Test); err != nil {
		return err
	}
	failBlock := fc.newBlock()
	okBlock := fc.newBlock()
	fc.emitJump(line, pyrt.POP_JUMP_IF_TRUE, okBlock)
	fc.useBlock(failBlock)
	fc.emit(line, pyrt.LOAD_GLOBAL, fc.internName("AssertionError"))
	if n.Msg != nil {
		if err := fc.expr(n.Msg); err != nil {
			return err
		}
		fc.emit(line, pyrt.CALL, 1)
	}
	fc.emit(line, pyrt.RAISE_VARARGS, 1)
	fc.useBlock(okBlock)
	return nil
}

func (fc *fnCompiler) compileImport(n *ast.Import) error {
	line := n.Line()
	for _, a := range n.Names {
		fc.emit(line, pyrt.LOAD_CONST, fc.internConst(constIntKey(0), pyrt.NewInt(0).ToObject()))
		fc.emit(line, pyrt.LOAD_CONST, fc.internConst(constNone{}, pyrt.None))
		fc.emit(line, pyrt.IMPORT_NAME, fc.internName(a.Name))
		if a.AsName != "" {
			// Binding "import a.b as c" binds the fully resolved
			// submodule; plain "import a.b" binds the top-level package,
			// matching CPython's IMPORT_NAME/STORE_NAME pairing rule.
			fc.storeName(line, a.AsName)
		} else {
			top := a.Name
			for i, c := range a.Name {
				if c == '.' {
					top = a.Name[:i]
					break
				}
			}
			fc.storeName(line, top)
		}
	}
	return nil
}

func (fc *fnCompiler) compileImportFrom(n *ast.ImportFrom) error {
	line := n.Line()
	fc.emit(line, pyrt.LOAD_CONST, fc.internConst(constIntKey(n.Level), pyrt.NewInt(n.Level).ToObject()))
	fromlist := make([]*pyrt.Object, len(n.Names))
	for i, a := range n.Names {
		fromlist[i] = pyrt.NewStr(a.Name).ToObject()
	}
	fc.emit(line, pyrt.LOAD_CONST, fc.internConst(constTupleKey{"fromlist", n.Module}, pyrt.NewTuple(fromlist...).ToObject()))
	fc.emit(line, pyrt.IMPORT_NAME, fc.internName(n.Module))
	for _, a := range n.Names {
		if a.Name == "*" {
			fc.emit(line, pyrt.IMPORT_STAR, 0)
			continue
		}
		fc.emit(line, pyrt.IMPORT_FROM, fc.internName(a.Name))
		name := a.AsName
		if name == "" {
			name = a.Name
		}
		fc.storeName(line, name)
	}
	// The module object stays on the stack across the IMPORT_FROM loads
	// above and is popped once they are done; IMPORT_STAR has already
	// popped it.
	if len(n.Names) != 1 || n.Names[0].Name != "*" {
		fc.emit(line, pyrt.POP_TOP, 0)
	}
	return nil
}

type constIntKey int64
type constStrKey string
type constTupleKey struct {
	kind   string
	detail string
}
