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

import (
	"fmt"
	"reflect"
)

// Cell represents Python 'cell' objects: the indirection a closure captures
// a variable through, shared between the defining frame's cellvars slot and
// every nested function's matching freevars slot (spec.md §3's "cell/free
// array").
type Cell struct {
	Object
	value *Object
}

// newCell creates a cell holding value (UnboundLocal if not yet assigned).
func newCell(value *Object) *Cell {
	return &Cell{Object: Object{typ: CellType}, value: value}
}

func toCellUnsafe(o *Object) *Cell {
	return (*Cell)(o.toPointer())
}

// ToObject upcasts c to an Object.
func (c *Cell) ToObject() *Object {
	return &c.Object
}

// Get returns the cell's current contents.
func (c *Cell) Get() *Object {
	return c.value
}

// Set replaces the cell's contents.
func (c *Cell) Set(value *Object) {
	c.value = value
}

// CellType is the object representing the Python 'cell' type.
var CellType = newBasisType("cell", reflect.TypeOf(Cell{}), toCellUnsafe, ObjectType)

func cellRepr(f *Frame, o *Object) (*Object, *BaseException) {
	c := toCellUnsafe(o)
	if c.value == nil || c.value == UnboundLocal {
		return NewStr(fmt.Sprintf("<cell at %p: empty>", c)).ToObject(), nil
	}
	return NewStr(fmt.Sprintf("<cell at %p: %s object at %p>", c, c.value.typ.Name(), c.value)).ToObject(), nil
}

func initCellType(map[string]*Object) {
	CellType.flags &^= typeFlagInstantiable | typeFlagBasetype
	CellType.slots.Repr = &unaryOpSlot{cellRepr}
}
