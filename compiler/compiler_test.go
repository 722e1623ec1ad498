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
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pyrt-dev/pyrt/compiler/ast"
	pyrt "github.com/pyrt-dev/pyrt/runtime"
)

func constInt(v int64) *ast.Constant {
	return &ast.Constant{Value: big.NewInt(v)}
}

func name(id string, ctx ast.ExprContext) *ast.Name {
	return &ast.Name{Id: id, Ctx: ctx}
}

// evalModule compiles mod and runs it as a module body, returning its
// globals, the way runtime/import.go's importOne does for a real import.
func evalModule(t *testing.T, mod *ast.Module, modName string) *pyrt.Dict {
	t.Helper()
	code, err := Compile(mod, "<test>", modName)
	require.NoError(t, err)
	f := pyrt.NewRootFrame()
	globals := pyrt.NewDict()
	_, raised := code.EvalModule(f, globals)
	require.Nil(t, raised, "module raised")
	return globals
}

func globalStr(t *testing.T, f *pyrt.Frame, g *pyrt.Dict, key string) string {
	t.Helper()
	o, raised := g.GetItemString(f, key)
	require.Nil(t, raised)
	require.NotNil(t, o, "global %q not set", key)
	s, raised := pyrt.Str(f, o)
	require.Nil(t, raised)
	return s.Value()
}

func TestCompileSimpleAssign(t *testing.T) {
	mod := &ast.Module{
		Body: []ast.Stmt{
			&ast.Assign{
				Targets: []ast.Expr{name("x", ast.Store)},
				Value: &ast.BinOp{
					Left:  constInt(1),
					Op:    ast.Add,
					Right: constInt(2),
				},
			},
		},
	}
	g := evalModule(t, mod, "<module>")
	require.Equal(t, "3", globalStr(t, pyrt.NewRootFrame(), g, "x"))
}

func TestCompileIfElse(t *testing.T) {
	mod := &ast.Module{
		Body: []ast.Stmt{
			&ast.Assign{
				Targets: []ast.Expr{name("x", ast.Store)},
				Value:   constInt(0),
			},
			&ast.If{
				Test: &ast.Compare{
					Left:        constInt(1),
					Ops:         []ast.CompareOpKind{ast.CmpLt},
					Comparators: []ast.Expr{constInt(2)},
				},
				Body: []ast.Stmt{
					&ast.Assign{
						Targets: []ast.Expr{name("x", ast.Store)},
						Value:   constInt(10),
					},
				},
				Orelse: []ast.Stmt{
					&ast.Assign{
						Targets: []ast.Expr{name("x", ast.Store)},
						Value:   constInt(20),
					},
				},
			},
		},
	}
	g := evalModule(t, mod, "<module>")
	require.Equal(t, "10", globalStr(t, pyrt.NewRootFrame(), g, "x"))
}

func TestCompileFunctionCall(t *testing.T) {
	// def add(a, b): return a + b
	// result = add(3, 4)
	addDef := &ast.FunctionDef{
		Name: "add",
		Args: &ast.Arguments{
			Args: []ast.Arg{{Name: "a"}, {Name: "b"}},
		},
		Body: []ast.Stmt{
			&ast.Return{
				Value: &ast.BinOp{
					Left:  name("a", ast.Load),
					Op:    ast.Add,
					Right: name("b", ast.Load),
				},
			},
		},
	}
	mod := &ast.Module{
		Body: []ast.Stmt{
			addDef,
			&ast.Assign{
				Targets: []ast.Expr{name("result", ast.Store)},
				Value: &ast.Call{
					Func: name("add", ast.Load),
					Args: []ast.Expr{constInt(3), constInt(4)},
				},
			},
		},
	}
	g := evalModule(t, mod, "<module>")
	require.Equal(t, "7", globalStr(t, pyrt.NewRootFrame(), g, "result"))
}

func TestCompileClassDefWithDecoratorAndBase(t *testing.T) {
	// base = object
	// def deco(cls): return cls
	//
	// @deco
	// class C(object):
	//     pass
	decoDef := &ast.FunctionDef{
		Name: "deco",
		Args: &ast.Arguments{Args: []ast.Arg{{Name: "cls"}}},
		Body: []ast.Stmt{
			&ast.Return{Value: name("cls", ast.Load)},
		},
	}
	classDef := &ast.ClassDef{
		Name:          "C",
		Bases:         []ast.Expr{name("object", ast.Load)},
		DecoratorList: []ast.Expr{name("deco", ast.Load)},
		Body: []ast.Stmt{
			&ast.Pass{},
		},
	}
	mod := &ast.Module{Body: []ast.Stmt{decoDef, classDef}}
	code, err := Compile(mod, "<test>", "<module>")
	require.NoError(t, err)

	f := pyrt.NewRootFrame()
	globals := pyrt.NewDict()
	globals.SetItemString(f, "object", pyrt.ObjectType.ToObject())
	_, raised := code.EvalModule(f, globals)
	require.Nil(t, raised, "module raised")

	o, raised := globals.GetItemString(f, "C")
	require.Nil(t, raised)
	require.NotNil(t, o)
	isClass, raised := pyrt.IsInstance(f, o, pyrt.TypeType.ToObject())
	require.Nil(t, raised)
	require.True(t, isClass, "C should be a class object")
}

func TestCompileForLoopAccumulates(t *testing.T) {
	// total = 0
	// for i in (1, 2, 3):
	//     total = total + i
	mod := &ast.Module{
		Body: []ast.Stmt{
			&ast.Assign{
				Targets: []ast.Expr{name("total", ast.Store)},
				Value:   constInt(0),
			},
			&ast.For{
				Target: name("i", ast.Store),
				Iter: &ast.TupleExpr{
					Elts: []ast.Expr{constInt(1), constInt(2), constInt(3)},
					Ctx:  ast.Load,
				},
				Body: []ast.Stmt{
					&ast.Assign{
						Targets: []ast.Expr{name("total", ast.Store)},
						Value: &ast.BinOp{
							Left:  name("total", ast.Load),
							Op:    ast.Add,
							Right: name("i", ast.Load),
						},
					},
				},
			},
		},
	}
	g := evalModule(t, mod, "<module>")
	require.Equal(t, "6", globalStr(t, pyrt.NewRootFrame(), g, "total"))
}
