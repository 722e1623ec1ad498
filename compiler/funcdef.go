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

// compKind selects the synthetic name and element-building strategy for
// compileComprehension's generated nested scope.
type compKind int

const (
	compKindList compKind = iota
	compKindSet
	compKindDict
	compKindGen
)

// childQualname builds the dotted qualified name a nested function/class
// reports as __qualname__, following CPython's "<locals>" marker for
// anything nested inside a function body.
func (fc *fnCompiler) childQualname(name string) string {
	if fc.qualname == "" {
		return name
	}
	switch fc.scope.kind {
	case scopeFunction, scopeLambda:
		return fc.qualname + ".<locals>." + name
	default:
		return fc.qualname + "." + name
	}
}

// pushDefaults evaluates a function's default and keyword-default
// expressions in fc (the enclosing scope — defaults are bound once, at
// def time, not per call) and leaves the resulting tuple/dict, if any, on
// the stack. Must run before fc.nextChildScope() is called for the
// function's own body scope: symtab.go's arguments() visits Defaults and
// KwDefaults before creating that scope, so any lambda/comprehension
// nested inside a default expression occupies a fc.scope.children slot
// ahead of it.
func (fc *fnCompiler) pushDefaults(line ast.Pos, args *ast.Arguments) (flags int, err error) {
	if args == nil {
		return 0, nil
	}
	if len(args.Defaults) > 0 {
		for _, d := range args.Defaults {
			if err := fc.expr(d); err != nil {
				return 0, err
			}
		}
		fc.emit(line, pyrt.BUILD_TUPLE, len(args.Defaults))
		flags |= 1
	}
	hasKwDefault := false
	for _, d := range args.KwDefaults {
		if d != nil {
			hasKwDefault = true
			break
		}
	}
	if hasKwDefault {
		fc.emit(line, pyrt.BUILD_MAP, 0)
		for i, d := range args.KwDefaults {
			if d == nil {
				continue
			}
			name := args.KwOnlyArgs[i].Name
			fc.emit(line, pyrt.LOAD_CONST, fc.internConst(constStrKey(name), pyrt.NewStr(name).ToObject()))
			if err := fc.expr(d); err != nil {
				return 0, err
			}
			fc.emit(line, pyrt.MAP_ADD, 1)
		}
		flags |= 2
	}
	return flags, nil
}

// skipAnnotations walks an argument list's and return value's annotation
// expressions purely to keep fc.childIdx in lock-step with symtab.go's
// arguments(), without emitting any bytecode for them: this runtime's
// MAKE_FUNCTION has no flag bit for an annotations dict (frame.go's
// makeFunction only reads bits 0/1/2), so function/parameter annotations
// are parsed and name-resolved but never materialized at runtime.
func (fc *fnCompiler) skipAnnotations(args *ast.Arguments, returns ast.Expr) {
	fc.skipExprScopes(returns)
	if args == nil {
		return
	}
	walk := func(as []ast.Arg) {
		for _, a := range as {
			fc.skipExprScopes(a.Annotation)
		}
	}
	walk(args.PosOnlyArgs)
	walk(args.Args)
	walk(args.KwOnlyArgs)
	if args.Vararg != nil {
		fc.skipExprScopes(args.Vararg.Annotation)
	}
	if args.Kwarg != nil {
		fc.skipExprScopes(args.Kwarg.Annotation)
	}
}

// skipExprScopes recurses through e exactly the way symtabBuilder.expr
// does, consuming one fc.nextChildScope() slot for every scope-creating
// construct it passes (Lambda, comprehensions) without compiling any of
// it — used for contexts (annotations) whose values this compiler never
// evaluates at runtime but whose nested scopes symtab.go still recorded.
func (fc *fnCompiler) skipExprScopes(e ast.Expr) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *ast.BoolOp:
		for _, v := range n.Values {
			fc.skipExprScopes(v)
		}
	case *ast.BinOp:
		fc.skipExprScopes(n.Left)
		fc.skipExprScopes(n.Right)
	case *ast.UnaryOp:
		fc.skipExprScopes(n.Operand)
	case *ast.Lambda:
		if _, err := fc.pushDefaultsDiscard(n.Args); err != nil {
			_ = err // annotations are never evaluated; defaults here are walked only to advance childIdx
		}
		fc.nextChildScope()
	case *ast.IfExp:
		fc.skipExprScopes(n.Test)
		fc.skipExprScopes(n.Body)
		fc.skipExprScopes(n.Orelse)
	case *ast.Dict:
		for _, entry := range n.Entries {
			fc.skipExprScopes(entry.Key)
			fc.skipExprScopes(entry.Value)
		}
	case *ast.Set:
		for _, el := range n.Elts {
			fc.skipExprScopes(el)
		}
	case *ast.ListComp, *ast.SetComp, *ast.DictComp, *ast.GeneratorExp:
		fc.nextChildScope()
	case *ast.Await:
		fc.skipExprScopes(n.Value)
	case *ast.Yield:
		fc.skipExprScopes(n.Value)
	case *ast.YieldFrom:
		fc.skipExprScopes(n.Value)
	case *ast.Compare:
		fc.skipExprScopes(n.Left)
		for _, c := range n.Comparators {
			fc.skipExprScopes(c)
		}
	case *ast.Call:
		fc.skipExprScopes(n.Func)
		for _, a := range n.Args {
			fc.skipExprScopes(a)
		}
		for _, k := range n.Keywords {
			fc.skipExprScopes(k.Value)
		}
	case *ast.Attribute:
		fc.skipExprScopes(n.Value)
	case *ast.Subscript:
		fc.skipExprScopes(n.Value)
		fc.skipExprScopes(n.Slice)
	case *ast.Starred:
		fc.skipExprScopes(n.Value)
	case *ast.ListExpr:
		for _, el := range n.Elts {
			fc.skipExprScopes(el)
		}
	case *ast.TupleExpr:
		for _, el := range n.Elts {
			fc.skipExprScopes(el)
		}
	case *ast.Slice:
		fc.skipExprScopes(n.Lower)
		fc.skipExprScopes(n.Upper)
		fc.skipExprScopes(n.Step)
	case *ast.JoinedStr:
		for _, v := range n.Values {
			fc.skipExprScopes(v)
		}
	case *ast.FormattedValue:
		fc.skipExprScopes(n.Value)
		fc.skipExprScopes(n.FormatSpec)
	}
}

// pushDefaultsDiscard walks a nested lambda's own default expressions for
// the sole purpose of advancing childIdx past any further nested scopes
// they contain; it never emits instructions.
func (fc *fnCompiler) pushDefaultsDiscard(args *ast.Arguments) (int, error) {
	if args == nil {
		return 0, nil
	}
	for _, d := range args.Defaults {
		fc.skipExprScopes(d)
	}
	for _, d := range args.KwDefaults {
		fc.skipExprScopes(d)
	}
	return 0, nil
}

// emitClosureCodeAndMake pushes sub's closure cells (if it captures any
// free variables from fc) and its compiled Code constant, then emits
// MAKE_FUNCTION with extraFlags (already covering defaults/kwdefaults,
// pushed earlier by pushDefaults) combined with the closure bit.
func (fc *fnCompiler) emitClosureCodeAndMake(line ast.Pos, sub *fnCompiler, code *pyrt.Code, extraFlags int) {
	flags := extraFlags
	if len(sub.freevars) > 0 {
		for _, name := range sub.freevars {
			fc.emit(line, pyrt.LOAD_CLOSURE, fc.derefIndex(name))
		}
		fc.emit(line, pyrt.BUILD_TUPLE, len(sub.freevars))
		flags |= 4
	}
	fc.emit(line, pyrt.LOAD_CONST, fc.internConst(fmt.Sprintf("code:%p", sub), code.ToObject()))
	fc.emit(line, pyrt.MAKE_FUNCTION, flags)
}

// bodyHasYield reports whether body contains a yield/yield-from at this
// function's own nesting level (not inside a nested def/lambda, which
// would have its own, independently-detected generator-ness).
func bodyHasYield(body []ast.Stmt) bool {
	found := false
	var walkStmt func(ast.Stmt)
	var walkExpr func(ast.Expr)
	walkExpr = func(e ast.Expr) {
		if e == nil || found {
			return
		}
		switch n := e.(type) {
		case *ast.Yield, *ast.YieldFrom:
			found = true
		case *ast.BoolOp:
			for _, v := range n.Values {
				walkExpr(v)
			}
		case *ast.BinOp:
			walkExpr(n.Left)
			walkExpr(n.Right)
		case *ast.UnaryOp:
			walkExpr(n.Operand)
		case *ast.IfExp:
			walkExpr(n.Test)
			walkExpr(n.Body)
			walkExpr(n.Orelse)
		case *ast.Dict:
			for _, entry := range n.Entries {
				walkExpr(entry.Key)
				walkExpr(entry.Value)
			}
		case *ast.Set:
			for _, el := range n.Elts {
				walkExpr(el)
			}
		case *ast.Await:
			walkExpr(n.Value)
		case *ast.Compare:
			walkExpr(n.Left)
			for _, c := range n.Comparators {
				walkExpr(c)
			}
		case *ast.Call:
			walkExpr(n.Func)
			for _, a := range n.Args {
				walkExpr(a)
			}
			for _, k := range n.Keywords {
				walkExpr(k.Value)
			}
		case *ast.Attribute:
			walkExpr(n.Value)
		case *ast.Subscript:
			walkExpr(n.Value)
			walkExpr(n.Slice)
		case *ast.Starred:
			walkExpr(n.Value)
		case *ast.ListExpr:
			for _, el := range n.Elts {
				walkExpr(el)
			}
		case *ast.TupleExpr:
			for _, el := range n.Elts {
				walkExpr(el)
			}
		case *ast.Slice:
			walkExpr(n.Lower)
			walkExpr(n.Upper)
			walkExpr(n.Step)
		case *ast.JoinedStr:
			for _, v := range n.Values {
				walkExpr(v)
			}
		case *ast.FormattedValue:
			walkExpr(n.Value)
			walkExpr(n.FormatSpec)
		}
	}
	walkStmt = func(st ast.Stmt) {
		if st == nil || found {
			return
		}
		switch n := st.(type) {
		case *ast.Return:
			walkExpr(n.Value)
		case *ast.Delete:
		case *ast.Assign:
			walkExpr(n.Value)
		case *ast.AugAssign:
			walkExpr(n.Value)
		case *ast.AnnAssign:
			walkExpr(n.Value)
		case *ast.For:
			walkExpr(n.Iter)
			for _, s := range n.Body {
				walkStmt(s)
			}
			for _, s := range n.Orelse {
				walkStmt(s)
			}
		case *ast.While:
			walkExpr(n.Test)
			for _, s := range n.Body {
				walkStmt(s)
			}
			for _, s := range n.Orelse {
				walkStmt(s)
			}
		case *ast.If:
			walkExpr(n.Test)
			for _, s := range n.Body {
				walkStmt(s)
			}
			for _, s := range n.Orelse {
				walkStmt(s)
			}
		case *ast.With:
			for _, it := range n.Items {
				walkExpr(it.ContextExpr)
			}
			for _, s := range n.Body {
				walkStmt(s)
			}
		case *ast.Raise:
			walkExpr(n.Exc)
		case *ast.Try:
			for _, s := range n.Body {
				walkStmt(s)
			}
			for _, h := range n.Handlers {
				for _, s := range h.Body {
					walkStmt(s)
				}
			}
			for _, s := range n.Orelse {
				walkStmt(s)
			}
			for _, s := range n.Finalbody {
				walkStmt(s)
			}
		case *ast.Assert:
			walkExpr(n.Test)
		case *ast.ExprStmt:
			walkExpr(n.Value)
		}
	}
	for _, st := range body {
		walkStmt(st)
		if found {
			break
		}
	}
	return found
}

func (fc *fnCompiler) compileFunctionDef(n *ast.FunctionDef) error {
	line := n.Line()
	for _, d := range n.DecoratorList {
		if err := fc.expr(d); err != nil {
			return err
		}
	}
	fc.skipExprScopes(n.Returns)
	defaultFlags, err := fc.pushDefaults(line, n.Args)
	if err != nil {
		return err
	}
	fc.skipAnnotations(n.Args, nil)

	childScope := fc.nextChildScope()
	sub := newFnCompiler(fc, childScope, fc.filename, n.Name, fc.childQualname(n.Name))
	sub.firstLineno = int(line)
	sub.argCount = len(n.Args.PosOnlyArgs) + len(n.Args.Args)
	sub.posOnlyCount = len(n.Args.PosOnlyArgs)
	sub.kwOnlyCount = len(n.Args.KwOnlyArgs)
	if n.Args.Vararg != nil {
		sub.flags |= pyrt.CodeFlagVarArgs
	}
	if n.Args.Kwarg != nil {
		sub.flags |= pyrt.CodeFlagVarKeywords
	}
	if n.IsAsync {
		sub.flags |= pyrt.CodeFlagCoroutine
	} else if bodyHasYield(n.Body) {
		sub.flags |= pyrt.CodeFlagGenerator
	}
	if err := sub.compileBody(n.Body); err != nil {
		return err
	}
	code, err := sub.finish()
	if err != nil {
		return err
	}

	fc.emitClosureCodeAndMake(line, sub, code, defaultFlags)

	for range n.DecoratorList {
		fc.emit(line, pyrt.CALL, 1)
	}
	return fc.storeName(line, n.Name)
}

func (fc *fnCompiler) compileClassDef(n *ast.ClassDef) error {
	line := n.Line()
	for _, d := range n.DecoratorList {
		if err := fc.expr(d); err != nil {
			return err
		}
	}

	// __build_class__'s calling convention wants bases/keywords pushed
	// after the class's code object and name, but symtab.go visits
	// decorators, then bases, then keywords, then the class body's own
	// scope (see the matching comment there) - so their nested scopes,
	// if any (a generator expression used as a base, say), must be
	// drawn from fc.scope.children now, before nextChildScope() below
	// claims the class body's scope. Compile them into a scratch block
	// that's never registered into fc.blocks, then splice its
	// instructions back in once the code object and name are in place.
	// Plain bases/keywords (by far the common case - names, attributes,
	// calls) never switch fc.cur, so this splice is exact; a base or
	// keyword expression that itself needs internal control-flow blocks
	// (a boolop, ternary, or comprehension used directly as a base) is
	// not specially handled and is assumed not to occur.
	scratch := &block{}
	real := fc.cur
	fc.cur = scratch
	for _, base := range n.Bases {
		if err := fc.expr(base); err != nil {
			fc.cur = real
			return err
		}
	}
	kwNames := make([]*pyrt.Object, len(n.Keywords))
	for i, k := range n.Keywords {
		if err := fc.expr(k.Value); err != nil {
			fc.cur = real
			return err
		}
		kwNames[i] = pyrt.NewStr(k.Arg).ToObject()
	}
	fc.cur = real

	fc.emit(line, pyrt.LOAD_BUILD_CLASS, 0)

	childScope := fc.nextChildScope()
	sub := newFnCompiler(fc, childScope, fc.filename, n.Name, fc.childQualname(n.Name))
	sub.firstLineno = int(line)
	if err := sub.compileBody(n.Body); err != nil {
		return err
	}
	code, err := sub.finish()
	if err != nil {
		return err
	}
	fc.emitClosureCodeAndMake(line, sub, code, 0)

	fc.emit(line, pyrt.LOAD_CONST, fc.internConst(constStrKey(n.Name), pyrt.NewStr(n.Name).ToObject()))
	fc.cur.instrs = append(fc.cur.instrs, scratch.instrs...)

	argc := 2 + len(n.Bases)
	if len(n.Keywords) == 0 {
		fc.emit(line, pyrt.CALL, argc)
	} else {
		fc.emit(line, pyrt.KW_NAMES, fc.internConst(fmt.Sprintf("kwnames:%p", n), pyrt.NewTuple(kwNames...).ToObject()))
		fc.emit(line, pyrt.CALL, argc+len(n.Keywords))
	}
	for range n.DecoratorList {
		fc.emit(line, pyrt.CALL, 1)
	}
	return fc.storeName(line, n.Name)
}

func (fc *fnCompiler) compileLambda(n *ast.Lambda) error {
	line := n.Line()
	defaultFlags, err := fc.pushDefaults(line, n.Args)
	if err != nil {
		return err
	}

	childScope := fc.nextChildScope()
	sub := newFnCompiler(fc, childScope, fc.filename, "<lambda>", fc.childQualname("<lambda>"))
	sub.firstLineno = int(line)
	sub.argCount = len(n.Args.PosOnlyArgs) + len(n.Args.Args)
	sub.posOnlyCount = len(n.Args.PosOnlyArgs)
	sub.kwOnlyCount = len(n.Args.KwOnlyArgs)
	if n.Args.Vararg != nil {
		sub.flags |= pyrt.CodeFlagVarArgs
	}
	if n.Args.Kwarg != nil {
		sub.flags |= pyrt.CodeFlagVarKeywords
	}
	sub.emit(line, pyrt.RESUME, 0)
	if err := sub.expr(n.Body); err != nil {
		return err
	}
	sub.emit(line, pyrt.RETURN_VALUE, 0)
	code, err := sub.finish()
	if err != nil {
		return err
	}

	fc.emitClosureCodeAndMake(line, sub, code, defaultFlags)
	return nil
}

// compileComprehension lowers a list/set/dict/generator comprehension
// into a call to a freshly built nested function whose sole positional
// parameter is the outermost iterable (CPython's ".0" convention — see
// newFnCompilerWithLeadingParams), invoked immediately with that iterable
// evaluated in the enclosing scope.
func (fc *fnCompiler) compileComprehension(gens []ast.Comprehension, elt, key ast.Expr, name string, kind compKind) error {
	line := gens[0].Iter.Line()
	if err := fc.expr(gens[0].Iter); err != nil {
		return err
	}
	fc.emit(line, pyrt.GET_ITER, 0)

	childScope := fc.nextChildScope()
	sub := newFnCompilerWithLeadingParams(fc, childScope, fc.filename, name, fc.childQualname(name), []string{".0"})
	sub.firstLineno = int(line)
	sub.argCount = 1
	sub.posOnlyCount = 1
	if kind == compKindGen {
		sub.flags |= pyrt.CodeFlagGenerator
	}
	sub.emit(line, pyrt.RESUME, 0)

	switch kind {
	case compKindList:
		sub.emit(line, pyrt.BUILD_LIST, 0)
	case compKindSet:
		sub.emit(line, pyrt.BUILD_SET, 0)
	case compKindDict:
		sub.emit(line, pyrt.BUILD_MAP, 0)
	}

	if err := sub.compileComprehensionBody(gens, 0, func() error {
		switch kind {
		case compKindList:
			if err := sub.expr(elt); err != nil {
				return err
			}
			sub.emit(line, pyrt.LIST_APPEND, len(gens)+1)
		case compKindSet:
			if err := sub.expr(elt); err != nil {
				return err
			}
			sub.emit(line, pyrt.SET_ADD, len(gens)+1)
		case compKindDict:
			if err := sub.expr(key); err != nil {
				return err
			}
			if err := sub.expr(elt); err != nil {
				return err
			}
			sub.emit(line, pyrt.MAP_ADD, len(gens)+1)
		case compKindGen:
			if err := sub.expr(elt); err != nil {
				return err
			}
			sub.emit(line, pyrt.YIELD_VALUE, 0)
			sub.emit(line, pyrt.POP_TOP, 0)
		}
		return nil
	}); err != nil {
		return err
	}

	if kind == compKindGen {
		sub.emit(line, pyrt.LOAD_CONST, sub.internConst(constNone{}, pyrt.None))
	}
	sub.emit(line, pyrt.RETURN_VALUE, 0)
	code, err := sub.finish()
	if err != nil {
		return err
	}

	fc.emitClosureCodeAndMake(line, sub, code, 0)
	fc.emit(line, pyrt.ROT_TWO, 0) // stack: [..., iter, func] -> [..., func, iter]
	fc.emit(line, pyrt.CALL, 1)
	return nil
}

// compileComprehensionBody recursively lowers the nested for/if chain of
// a comprehension's generators: FOR_ITER loops wrapping narrowing IF
// tests, bottoming out in emitElt once every generator clause is
// satisfied. Called on the comprehension's own nested fnCompiler (sub),
// never on the enclosing one.
func (fc *fnCompiler) compileComprehensionBody(gens []ast.Comprehension, idx int, emitElt func() error) error {
	g := gens[idx]
	line := g.Target.Line()
	if idx > 0 {
		if err := fc.expr(g.Iter); err != nil {
			return err
		}
		fc.emit(line, pyrt.GET_ITER, 0)
	} else {
		fc.emit(line, pyrt.LOAD_FAST, fc.internVarname(".0"))
	}

	loopBlock := fc.newBlock()
	bodyBlock := fc.newBlock()
	endBlock := fc.newBlock()
	fc.useBlock(loopBlock)
	fc.emitJump(line, pyrt.FOR_ITER, endBlock)
	fc.useBlock(bodyBlock)
	if err := fc.compileAssignTarget(g.Target); err != nil {
		return err
	}
	for _, cond := range g.Ifs {
		if err := fc.expr(cond); err != nil {
			return err
		}
		fc.emitJump(cond.Line(), pyrt.POP_JUMP_IF_FALSE, loopBlock)
	}
	if idx == len(gens)-1 {
		if err := emitElt(); err != nil {
			return err
		}
	} else {
		if err := fc.compileComprehensionBody(gens, idx+1, emitElt); err != nil {
			return err
		}
	}
	fc.emitJump(line, pyrt.JUMP_BACKWARD, loopBlock)
	fc.useBlock(endBlock)
	return nil
}
