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

// objectToObject is implemented by every basis struct embedding Object.
type objectToObject interface {
	ToObject() *Object
}

// WrapNative converts a reflect.Value obtained from a tagged basis struct
// field into the Python object it represents. Unlike grumpy's WrapNative,
// this one doesn't need to wrap arbitrary Go interop values in an opaque
// "native" type: every attr-tagged field in this codebase already holds
// either a *Object (or a type embedding Object, like *Type/*Str/*Dict/*Code)
// or a plain Go primitive (string, bool, int) that maps onto an existing
// Python primitive type directly.
func WrapNative(f *Frame, v reflect.Value) (*Object, *BaseException) {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return None, nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return None, nil
	}
	if v.Kind() == reflect.Ptr && v.IsNil() {
		return None, nil
	}
	iface := v.Interface()
	if iface == nil {
		return None, nil
	}
	if o, ok := iface.(objectToObject); ok {
		return o.ToObject(), nil
	}
	switch v.Kind() {
	case reflect.String:
		return NewStr(v.String()).ToObject(), nil
	case reflect.Bool:
		return GetBool(v.Bool()).ToObject(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NewInt(int(v.Int())).ToObject(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return NewInt(int(v.Uint())).ToObject(), nil
	case reflect.Float32, reflect.Float64:
		return NewFloat(v.Float()).ToObject(), nil
	}
	logFatal(fmt.Sprintf("WrapNative: unsupported field kind %s", v.Kind()))
	return nil, nil
}

func nativeTypeName(rtype reflect.Type) string {
	if t, ok := basisTypes[rtype]; ok {
		return t.name
	}
	return rtype.String()
}
