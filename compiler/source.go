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

// ParseFunc turns Python source text into a parsed module. spec.md §1 keeps
// the source-to-AST parser itself out of this specification's scope ("only
// their interfaces specified in §6") — this package defines the AST that
// such a parser must produce (the ast sub-package) but ships no tokenizer
// or grammar of its own. ParseSource is the seam a hosting parser plugs
// into; left nil, CompileSource reports that plainly instead of pretending
// source files can be run.
type ParseFunc func(source []byte, filename string) (*ast.Module, error)

// ParseSource is the injected parser entry point, set by whatever external
// package provides one. cmd/pygo ships without a parser, so an import that
// falls back to compiling a .py source file surfaces the "no parser
// registered" error below rather than succeeding partially.
var ParseSource ParseFunc

// CompileSource adapts Compile to runtime.CompileFunc's byte-oriented
// signature, so cmd/pygo can assign it directly to pyrt.CompileSource at
// startup (runtime/import.go's doc comment on CompileFunc anticipates
// exactly this wiring). It parses source via ParseSource and then runs the
// result through Compile; a nil ParseSource or a parse/compile failure is
// reported as a SyntaxError, matching spec.md §4.5's "compilation error ->
// SyntaxError" failure semantics for the import protocol.
func CompileSource(source []byte, filename, moduleName string) (*pyrt.Code, *pyrt.BaseException) {
	if ParseSource == nil {
		return nil, pyrt.NewRootFrame().RaiseType(pyrt.SyntaxErrorType,
			fmt.Sprintf("no parser registered, can't compile '%s'", filename))
	}
	mod, err := ParseSource(source, filename)
	if err != nil {
		return nil, pyrt.NewRootFrame().RaiseType(pyrt.SyntaxErrorType, err.Error())
	}
	code, err := Compile(mod, filename, moduleName)
	if err != nil {
		return nil, pyrt.NewRootFrame().RaiseType(pyrt.SyntaxErrorType, err.Error())
	}
	return code, nil
}
