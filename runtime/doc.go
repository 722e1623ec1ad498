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

/*
Package pyrt is the core runtime of a hosted Python 3 implementation: the
object model, the bytecode code-object representation, the frame
interpreter, the import machinery, and sys.monitoring.

Data model

Every Python value is represented by a Go struct that embeds pyrt.Object
as its first field, so a *pyrt.Object pointer and a pointer to any such
struct are interchangeable via unsafe.Pointer (see toPointer/ToObject
throughout this package). Plain "object()" instances are just *Object;
richer types such as Str or Dict augment Object with extra fields.

Objects carry a pointer to their Type (itself a heap object) and,
optionally, a per-instance attribute dict. Reference ownership in pyrt
relies on Go's garbage collector rather than manual reference counting;
the design notes in DESIGN.md record why that substitution is safe for
every invariant spec.md's data model section requires.

Compiled code, not Go closures

Unlike a source-to-source transpiler, a pyrt.Code object holds a packed
bytecode instruction stream, a constant pool, name tables, a line table
and an exception table (see code.go, linetable.go, exctable.go). The
frame interpreter (frame.go) dispatches that instruction stream directly;
it does not call back into compiler-generated Go source.
*/
package pyrt
