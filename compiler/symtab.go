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

// symtab.go implements spec.md §4.3 stage 2: one pass recording, per
// scope, every name's resolution class (local/cell/free/global/implicit
// global), grounded on CPython's symtable.c two-pass design (build scope
// trees bottom-up while recording raw bindings/uses, then resolve cell
// and free vars by checking whether a child scope needs a name this scope
// binds). grumpy never needed this pass — it was handed already-compiled
// code objects — so this is new code written in this repo's idiom rather
// than an adaptation of a teacher file.

import (
	"fmt"

	"github.com/pyrt-dev/pyrt/compiler/ast"
)

type scopeKind int

const (
	scopeModule scopeKind = iota
	scopeFunction
	scopeClass
	scopeLambda
)

// symbol records everything learned about one name within one scope
// during pass 1.
type symbol struct {
	bound      bool // assigned, def'd, imported, or a parameter
	used       bool
	global     bool // declared "global"
	nonlocal   bool // declared "nonlocal"
	param      bool
}

// nameKind is a resolved name's binding class (spec.md §4.3 stage 2).
type nameKind int

const (
	nameLocal nameKind = iota
	nameCell
	nameFree
	nameGlobal
	nameImplicitGlobal
)

// scope is one node of the compile-time scope tree: one per module,
// function, class, lambda, or comprehension body.
type scope struct {
	kind     scopeKind
	parent   *scope
	children []*scope
	symbols  map[string]*symbol
	// resolved is filled in by resolve(), after pass 1 has visited every
	// scope in the tree.
	resolved map[string]nameKind
	// order preserves first-encountered order for varnames/cellvars
	// tables, which must be deterministic across compiles.
	order []string
}

func newScope(kind scopeKind, parent *scope) *scope {
	s := &scope{kind: kind, parent: parent, symbols: map[string]*symbol{}}
	if parent != nil {
		parent.children = append(parent.children, s)
	}
	return s
}

func (s *scope) entry(name string) *symbol {
	sym, ok := s.symbols[name]
	if !ok {
		sym = &symbol{}
		s.symbols[name] = sym
		s.order = append(s.order, name)
	}
	return sym
}

func (s *scope) bind(name string) { s.entry(name).bound = true }
func (s *scope) use(name string)  { s.entry(name).used = true }

func (s *scope) declareGlobal(name string) error {
	sym := s.entry(name)
	if sym.param {
		return fmt.Errorf("name %q is parameter and global", name)
	}
	sym.global = true
	return nil
}

func (s *scope) declareNonlocal(name string) error {
	if s.parent == nil {
		return fmt.Errorf("nonlocal declaration %q not allowed at module level", name)
	}
	sym := s.entry(name)
	if sym.param {
		return fmt.Errorf("name %q is parameter and nonlocal", name)
	}
	sym.nonlocal = true
	return nil
}

// buildSymtab runs pass 1 (recording raw bindings/uses while building the
// scope tree) then pass 2 (resolve, below) over the whole module.
func buildSymtab(mod *ast.Module) (*scope, error) {
	root := newScope(scopeModule, nil)
	b := &symtabBuilder{}
	if err := b.stmts(root, mod.Body); err != nil {
		return nil, err
	}
	resolve(root)
	return root, nil
}

type symtabBuilder struct{}

func (b *symtabBuilder) stmts(s *scope, stmts []ast.Stmt) error {
	for _, st := range stmts {
		if err := b.stmt(s, st); err != nil {
			return err
		}
	}
	return nil
}

func (b *symtabBuilder) stmt(s *scope, st ast.Stmt) error {
	switch n := st.(type) {
	case *ast.FunctionDef:
		s.bind(n.Name)
		for _, d := range n.DecoratorList {
			if err := b.expr(s, d); err != nil {
				return err
			}
		}
		if n.Returns != nil {
			if err := b.expr(s, n.Returns); err != nil {
				return err
			}
		}
		if err := b.arguments(s, n.Args); err != nil {
			return err
		}
		fs := newScope(scopeFunction, s)
		b.bindParams(fs, n.Args)
		return b.stmts(fs, n.Body)
	case *ast.ClassDef:
		s.bind(n.Name)
		// Visited in the same order codegen evaluates them (decorators
		// before the class object is built, then bases, then keywords as
		// part of the __build_class__ call), so nextChildScope's draw
		// order in compileClassDef lines up with the children this
		// visitation appends to s.
		for _, d := range n.DecoratorList {
			if err := b.expr(s, d); err != nil {
				return err
			}
		}
		for _, e := range n.Bases {
			if err := b.expr(s, e); err != nil {
				return err
			}
		}
		for _, k := range n.Keywords {
			if err := b.expr(s, k.Value); err != nil {
				return err
			}
		}
		cs := newScope(scopeClass, s)
		return b.stmts(cs, n.Body)
	case *ast.Return:
		if n.Value != nil {
			return b.expr(s, n.Value)
		}
	case *ast.Delete:
		for _, t := range n.Targets {
			if err := b.expr(s, t); err != nil {
				return err
			}
		}
	case *ast.Assign:
		if err := b.expr(s, n.Value); err != nil {
			return err
		}
		for _, t := range n.Targets {
			if err := b.expr(s, t); err != nil {
				return err
			}
		}
	case *ast.AugAssign:
		if err := b.expr(s, n.Target); err != nil {
			return err
		}
		return b.expr(s, n.Value)
	case *ast.AnnAssign:
		if n.Value != nil {
			if err := b.expr(s, n.Value); err != nil {
				return err
			}
		}
		if err := b.expr(s, n.Target); err != nil {
			return err
		}
		return b.expr(s, n.Annotation)
	case *ast.For:
		if err := b.expr(s, n.Iter); err != nil {
			return err
		}
		if err := b.expr(s, n.Target); err != nil {
			return err
		}
		if err := b.stmts(s, n.Body); err != nil {
			return err
		}
		return b.stmts(s, n.Orelse)
	case *ast.While:
		if err := b.expr(s, n.Test); err != nil {
			return err
		}
		if err := b.stmts(s, n.Body); err != nil {
			return err
		}
		return b.stmts(s, n.Orelse)
	case *ast.If:
		if err := b.expr(s, n.Test); err != nil {
			return err
		}
		if err := b.stmts(s, n.Body); err != nil {
			return err
		}
		return b.stmts(s, n.Orelse)
	case *ast.With:
		for _, it := range n.Items {
			if err := b.expr(s, it.ContextExpr); err != nil {
				return err
			}
			if it.OptionalVars != nil {
				if err := b.expr(s, it.OptionalVars); err != nil {
					return err
				}
			}
		}
		return b.stmts(s, n.Body)
	case *ast.Raise:
		if n.Exc != nil {
			if err := b.expr(s, n.Exc); err != nil {
				return err
			}
		}
		if n.Cause != nil {
			return b.expr(s, n.Cause)
		}
	case *ast.Try:
		if err := b.stmts(s, n.Body); err != nil {
			return err
		}
		for _, h := range n.Handlers {
			if h.Type != nil {
				if err := b.expr(s, h.Type); err != nil {
					return err
				}
			}
			if h.Name != "" {
				s.bind(h.Name)
			}
			if err := b.stmts(s, h.Body); err != nil {
				return err
			}
		}
		if err := b.stmts(s, n.Orelse); err != nil {
			return err
		}
		return b.stmts(s, n.Finalbody)
	case *ast.Assert:
		if err := b.expr(s, n.Test); err != nil {
			return err
		}
		if n.Msg != nil {
			return b.expr(s, n.Msg)
		}
	case *ast.Import:
		for _, a := range n.Names {
			name := a.AsName
			if name == "" {
				name = a.Name
				for i, c := range name {
					if c == '.' {
						name = name[:i]
						break
					}
				}
			}
			s.bind(name)
		}
	case *ast.ImportFrom:
		for _, a := range n.Names {
			name := a.AsName
			if name == "" {
				name = a.Name
			}
			s.bind(name)
		}
	case *ast.Global:
		for _, name := range n.Names {
			if err := s.declareGlobal(name); err != nil {
				return err
			}
		}
	case *ast.Nonlocal:
		for _, name := range n.Names {
			if err := s.declareNonlocal(name); err != nil {
				return err
			}
		}
	case *ast.ExprStmt:
		return b.expr(s, n.Value)
	case *ast.Pass, *ast.Break, *ast.Continue:
		// No names.
	default:
		return fmt.Errorf("symtab: unhandled statement %T", st)
	}
	return nil
}

func (b *symtabBuilder) bindParams(s *scope, args *ast.Arguments) {
	bindOne := func(a ast.Arg) {
		sym := s.entry(a.Name)
		sym.bound = true
		sym.param = true
	}
	for _, a := range args.PosOnlyArgs {
		bindOne(a)
	}
	for _, a := range args.Args {
		bindOne(a)
	}
	if args.Vararg != nil {
		bindOne(*args.Vararg)
	}
	for _, a := range args.KwOnlyArgs {
		bindOne(a)
	}
	if args.Kwarg != nil {
		bindOne(*args.Kwarg)
	}
}

func (b *symtabBuilder) arguments(s *scope, args *ast.Arguments) error {
	for _, e := range args.Defaults {
		if err := b.expr(s, e); err != nil {
			return err
		}
	}
	for _, e := range args.KwDefaults {
		if e != nil {
			if err := b.expr(s, e); err != nil {
				return err
			}
		}
	}
	annotated := append(append([]ast.Arg{}, args.PosOnlyArgs...), args.Args...)
	annotated = append(annotated, args.KwOnlyArgs...)
	if args.Vararg != nil {
		annotated = append(annotated, *args.Vararg)
	}
	if args.Kwarg != nil {
		annotated = append(annotated, *args.Kwarg)
	}
	for _, a := range annotated {
		if a.Annotation != nil {
			if err := b.expr(s, a.Annotation); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *symtabBuilder) comprehension(s *scope, kind scopeKind, elt, key ast.Expr, gens []ast.Comprehension) (*scope, error) {
	// The outermost iterable is evaluated in the enclosing scope
	// (CPython's rule so that "[x for x in y]" doesn't require y to
	// exist in the comprehension's own hidden scope), before that scope
	// is created, the same order compileComprehension draws child scopes.
	if err := b.expr(s, gens[0].Iter); err != nil {
		return nil, err
	}
	cs := newScope(kind, s)
	for i, g := range gens {
		if i > 0 {
			if err := b.expr(cs, g.Iter); err != nil {
				return nil, err
			}
		}
		if err := b.expr(cs, g.Target); err != nil {
			return nil, err
		}
		for _, cond := range g.Ifs {
			if err := b.expr(cs, cond); err != nil {
				return nil, err
			}
		}
	}
	if key != nil {
		if err := b.expr(cs, key); err != nil {
			return nil, err
		}
	}
	if err := b.expr(cs, elt); err != nil {
		return nil, err
	}
	return cs, nil
}

func (b *symtabBuilder) expr(s *scope, e ast.Expr) error {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *ast.BoolOp:
		return b.exprs(s, n.Values)
	case *ast.BinOp:
		if err := b.expr(s, n.Left); err != nil {
			return err
		}
		return b.expr(s, n.Right)
	case *ast.UnaryOp:
		return b.expr(s, n.Operand)
	case *ast.Lambda:
		if err := b.arguments(s, n.Args); err != nil {
			return err
		}
		ls := newScope(scopeLambda, s)
		b.bindParams(ls, n.Args)
		return b.expr(ls, n.Body)
	case *ast.IfExp:
		if err := b.expr(s, n.Test); err != nil {
			return err
		}
		if err := b.expr(s, n.Body); err != nil {
			return err
		}
		return b.expr(s, n.Orelse)
	case *ast.Dict:
		for _, entry := range n.Entries {
			if entry.Key != nil {
				if err := b.expr(s, entry.Key); err != nil {
					return err
				}
			}
			if err := b.expr(s, entry.Value); err != nil {
				return err
			}
		}
	case *ast.Set:
		return b.exprs(s, n.Elts)
	case *ast.ListComp:
		_, err := b.comprehension(s, scopeFunction, n.Elt, nil, n.Generators)
		return err
	case *ast.SetComp:
		_, err := b.comprehension(s, scopeFunction, n.Elt, nil, n.Generators)
		return err
	case *ast.DictComp:
		_, err := b.comprehension(s, scopeFunction, n.Value, n.Key, n.Generators)
		return err
	case *ast.GeneratorExp:
		_, err := b.comprehension(s, scopeFunction, n.Elt, nil, n.Generators)
		return err
	case *ast.Await:
		return b.expr(s, n.Value)
	case *ast.Yield:
		if n.Value != nil {
			return b.expr(s, n.Value)
		}
	case *ast.YieldFrom:
		return b.expr(s, n.Value)
	case *ast.Compare:
		if err := b.expr(s, n.Left); err != nil {
			return err
		}
		return b.exprs(s, n.Comparators)
	case *ast.Call:
		if err := b.expr(s, n.Func); err != nil {
			return err
		}
		if err := b.exprs(s, n.Args); err != nil {
			return err
		}
		for _, k := range n.Keywords {
			if err := b.expr(s, k.Value); err != nil {
				return err
			}
		}
	case *ast.Constant:
		// No names.
	case *ast.Attribute:
		return b.expr(s, n.Value)
	case *ast.Subscript:
		if err := b.expr(s, n.Value); err != nil {
			return err
		}
		return b.expr(s, n.Slice)
	case *ast.Starred:
		return b.expr(s, n.Value)
	case *ast.Name:
		if n.Ctx == ast.Load {
			s.use(n.Id)
		} else {
			s.bind(n.Id)
		}
	case *ast.ListExpr:
		return b.exprs(s, n.Elts)
	case *ast.TupleExpr:
		return b.exprs(s, n.Elts)
	case *ast.Slice:
		if n.Lower != nil {
			if err := b.expr(s, n.Lower); err != nil {
				return err
			}
		}
		if n.Upper != nil {
			if err := b.expr(s, n.Upper); err != nil {
				return err
			}
		}
		if n.Step != nil {
			return b.expr(s, n.Step)
		}
	case *ast.JoinedStr:
		return b.exprs(s, n.Values)
	case *ast.FormattedValue:
		if err := b.expr(s, n.Value); err != nil {
			return err
		}
		if n.FormatSpec != nil {
			return b.expr(s, n.FormatSpec)
		}
	default:
		return fmt.Errorf("symtab: unhandled expression %T", e)
	}
	return nil
}

func (b *symtabBuilder) exprs(s *scope, es []ast.Expr) error {
	for _, e := range es {
		if err := b.expr(s, e); err != nil {
			return err
		}
	}
	return nil
}

// resolve is pass 2: walk the scope tree computing each name's binding
// class. A name bound in a function scope and referenced by some
// descendant function scope becomes a cell; a name referenced by a
// function scope but not bound there is free if some ancestor function
// scope binds it, else global. Class scopes never contribute cells
// (CPython: a class body's locals never become an enclosing closure's
// cells) and never see through to an enclosing function's locals for
// plain name lookup (they fall through to global instead), matching
// Python's rule that methods don't implicitly see class-body locals.
func resolve(root *scope) {
	root.resolved = map[string]nameKind{}
	for name, sym := range root.symbols {
		_ = sym
		root.resolved[name] = nameGlobal
	}
	for _, child := range root.children {
		resolveChild(child)
	}
	markCells(root)
}

func resolveChild(s *scope) {
	s.resolved = map[string]nameKind{}
	for name, sym := range s.symbols {
		switch {
		case sym.global:
			s.resolved[name] = nameGlobal
		case sym.nonlocal:
			s.resolved[name] = nameFree
		case sym.bound && s.kind != scopeClass:
			s.resolved[name] = nameLocal
		case sym.bound:
			// Class-body bindings live in the class namespace dict, not
			// fastlocals; treated as local for code-gen purposes (STORE_NAME
			// semantics), never as a cell candidate.
			s.resolved[name] = nameLocal
		default:
			if enclosingFunctionBinds(s.parent, name) {
				s.resolved[name] = nameFree
			} else {
				s.resolved[name] = nameImplicitGlobal
			}
		}
	}
	for _, child := range s.children {
		resolveChild(child)
	}
}

// enclosingFunctionBinds reports whether some ancestor function (or
// lambda/comprehension) scope of s binds name, skipping over class
// scopes per Python's lexical-scoping rule.
func enclosingFunctionBinds(s *scope, name string) bool {
	for s != nil {
		if s.kind != scopeClass && s.kind != scopeModule {
			if sym, ok := s.symbols[name]; ok && sym.bound && !sym.global {
				return true
			}
		}
		s = s.parent
	}
	return false
}

// markCells promotes any local whose name some descendant function scope
// resolved as free into a cell, recursively.
func markCells(s *scope) {
	for _, child := range s.children {
		markCells(child)
		if child.kind == scopeClass {
			continue
		}
		for name, kind := range child.resolved {
			if kind != nameFree {
				continue
			}
			if cur, ok := s.resolved[name]; ok && cur == nameLocal {
				s.resolved[name] = nameCell
			}
		}
	}
}
