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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pyrt-dev/pyrt/compiler/ast"
	pyrt "github.com/pyrt-dev/pyrt/runtime"
)

func TestCompileSourceReportsMissingParser(t *testing.T) {
	saved := ParseSource
	ParseSource = nil
	defer func() { ParseSource = saved }()

	_, raised := CompileSource([]byte("x = 1"), "script.py", "__main__")
	require.NotNil(t, raised)
	f := pyrt.NewRootFrame()
	isSyntaxError, err := pyrt.IsInstance(f, raised.ToObject(), pyrt.SyntaxErrorType.ToObject())
	require.Nil(t, err)
	require.True(t, isSyntaxError)
}

func TestCompileSourceDelegatesToRegisteredParser(t *testing.T) {
	saved := ParseSource
	defer func() { ParseSource = saved }()
	ParseSource = func(source []byte, filename string) (*ast.Module, error) {
		if string(source) != "x = 1" {
			return nil, fmt.Errorf("unexpected source: %s", source)
		}
		return &ast.Module{
			Body: []ast.Stmt{
				&ast.Assign{
					Targets: []ast.Expr{name("x", ast.Store)},
					Value:   constInt(1),
				},
			},
		}, nil
	}

	code, raised := CompileSource([]byte("x = 1"), "script.py", "__main__")
	require.Nil(t, raised)
	require.NotNil(t, code)
}
