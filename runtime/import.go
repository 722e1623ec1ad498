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
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CompileFunc compiles Python source into a code object. The compiler
// package assigns this at program startup (cmd/pygo/main.go's init), since
// runtime can't import compiler (compiler imports runtime for *Code and the
// object model) without a cycle; this is the seam between them.
type CompileFunc func(source []byte, filename, moduleName string) (*Code, *BaseException)

// CompileSource is the injected compiler entry point. Left nil, import of
// any source file fails with ImportError — which is the state of this
// module before cmd/pygo wires up the compiler package.
var CompileSource CompileFunc

// FrozenModules holds precompiled code objects importable without touching
// the filesystem (spec.md §4.5 step 2's "frozen modules" search before the
// path-based search), keyed by fully-qualified module name. The runtime
// ships none itself; a host embedding this package populates it directly.
var FrozenModules = map[string]*Code{}

// SearchPaths is this process's sys.path equivalent: directories searched,
// in order, for "<name>.py" when a module isn't frozen or already cached.
var SearchPaths = []string{"."}

// DisableCodeCache skips the compiled-code LRU entirely (spec.md §6's -B /
// PYTHONDONTWRITEBYTECODE), forcing every non-frozen import to recompile
// from source. cmd/pygo sets this from config.Resolved.NoBytecodeCache.
var DisableCodeCache bool

var (
	importMutex sync.Mutex
	// codeCache memoizes compiled-from-source code objects keyed by
	// "path@mtime", bounded so long-lived embeddings don't grow this
	// without limit (spec.md §4.5's import protocol never requires this
	// cache — only the modules cache in SysModules must never evict a
	// live module — so an LRU eviction policy is safe here).
	codeCache, _ = lru.New[string, *Code](256)
)

// importModuleFile locates name.py on SearchPaths, returning its path, or
// "" if not found anywhere.
func importModuleFile(name string) string {
	rel := strings.ReplaceAll(name, ".", string(filepath.Separator)) + ".py"
	for _, dir := range SearchPaths {
		path := filepath.Join(dir, rel)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// loadCode returns the compiled code object for module name, consulting the
// frozen table, then the compiled-code LRU, then compiling path from
// scratch (spec.md §4.5 step 2).
func loadCode(f *Frame, name, path string) (*Code, *BaseException) {
	if c, ok := FrozenModules[name]; ok {
		return c, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, f.RaiseType(ImportErrorType, fmt.Sprintf("can't open file '%s': %s", path, err))
	}
	key := fmt.Sprintf("%s@%d", path, info.ModTime().UnixNano())
	if !DisableCodeCache {
		if c, ok := codeCache.Get(key); ok {
			return c, nil
		}
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, f.RaiseType(ImportErrorType, fmt.Sprintf("can't read file '%s': %s", path, err))
	}
	if CompileSource == nil {
		return nil, f.RaiseType(ImportErrorType, fmt.Sprintf("no compiler registered, can't import '%s'", name))
	}
	code, raised := CompileSource(source, path, name)
	if raised != nil {
		return nil, raised
	}
	if !DisableCodeCache {
		codeCache.Add(key, code)
	}
	return code, nil
}

// importOne implements spec.md §4.5 steps 1-4 for a single, already fully
// qualified (dot-joined) module name: consult SysModules, otherwise locate
// and compile the module, install it into SysModules before running its
// body (so a cyclic import observes a partially initialized module rather
// than recursing), execute the body, and remove it from the cache again if
// execution raises. Ported from grumpy's importOne, generalized since this
// runtime locates and compiles source dynamically instead of dispatching to
// an ahead-of-time Go package registry.
func importOne(f *Frame, name string) (*Object, *BaseException) {
	importMutex.Lock()
	o, raised := SysModules.GetItemString(f, name)
	var path string
	if raised == nil && o == nil {
		if _, frozen := FrozenModules[name]; !frozen {
			path = importModuleFile(name)
			if path == "" {
				raised = f.RaiseType(ModuleNotFoundErrorType, fmt.Sprintf("No module named '%s'", name))
			}
		}
		if raised == nil {
			filename := path
			if filename == "" {
				filename = fmt.Sprintf("<frozen %s>", name)
			}
			o = newModule(name, filename).ToObject()
			raised = SysModules.SetItemString(f, name, o)
		}
	}
	importMutex.Unlock()
	if raised != nil {
		return nil, raised
	}
	if !o.isInstance(ModuleType) {
		return o, nil
	}
	m := toModuleUnsafe(o)
	m.mutex.Lock(f)
	if m.state == moduleStateNew {
		m.state = moduleStateInitializing
		code, raised := loadCode(f, name, path)
		if raised == nil {
			_, raised = code.EvalModule(f, m.Dict())
		}
		if raised == nil {
			m.state = moduleStateReady
		} else {
			e, tb := f.ExcInfo()
			if _, delRaised := SysModules.DelItemString(f, name); delRaised != nil {
				f.RestoreExc(e, tb)
			}
		}
		m.mutex.Unlock(f)
		if raised != nil {
			return nil, raised
		}
	} else {
		m.mutex.Unlock(f)
	}
	o, raised = SysModules.GetItemString(f, name)
	if raised != nil {
		return nil, raised
	}
	if o == nil {
		return nil, f.RaiseType(ImportErrorType, fmt.Sprintf("Loaded module %s not found in sys.modules", name))
	}
	return o, nil
}

// resolveLevel turns a relative import's level (the number of leading dots
// in "from . import x" / "from .. import x") into an absolute module-name
// prefix, derived from the importing module's __package__ (spec.md §4.5
// doesn't detail relative-import resolution since it's an ordinary
// consequence of step 1's name normalisation; this follows CPython's
// __package__-walk).
func resolveLevel(f *Frame, globals *Dict, level int) (string, *BaseException) {
	if level == 0 {
		return "", nil
	}
	pkgObj, raised := globals.GetItemString(f, "__package__")
	if raised != nil {
		return "", raised
	}
	pkg := ""
	if pkgObj != nil && pkgObj != None {
		if !pkgObj.isInstance(StrType) {
			return "", f.RaiseType(TypeErrorType, "__package__ must be a string")
		}
		pkg = toStrUnsafe(pkgObj).Value()
	}
	parts := []string{}
	if pkg != "" {
		parts = strings.Split(pkg, ".")
	}
	up := level - 1
	if up > len(parts) {
		return "", f.RaiseType(ImportErrorType, "attempted relative import beyond top-level package")
	}
	if up > 0 {
		parts = parts[:len(parts)-up]
	}
	return strings.Join(parts, "."), nil
}

// importName implements the IMPORT_NAME opcode (spec.md §4.5 steps 1, 4,
// 5): import every dotted prefix of name, then return either the top-level
// package (a bare "import a.b.c" binds "a" in the caller) or, when fromlist
// is non-empty, the leaf module itself (so "from a.b import c" can look up
// attribute c on it, importing a.b.c as a submodule first if c isn't
// already an attribute).
func importName(f *Frame, name string, globals *Dict, fromlist, levelObj *Object) (*Object, *BaseException) {
	level := 0
	if levelObj != nil && levelObj.isInstance(IntType) {
		level = toIntUnsafe(levelObj).Value()
	}
	prefix, raised := resolveLevel(f, globals, level)
	if raised != nil {
		return nil, raised
	}
	fullName := name
	if prefix != "" {
		if name == "" {
			fullName = prefix
		} else {
			fullName = prefix + "." + name
		}
	}
	parts := strings.Split(fullName, ".")
	var top, leaf *Object
	for i := range parts {
		partName := strings.Join(parts[:i+1], ".")
		o, raised := importOne(f, partName)
		if raised != nil {
			return nil, raised
		}
		if i == 0 {
			top = o
		}
		if i > 0 && o.isInstance(ModuleType) {
			parent, raised := importOne(f, strings.Join(parts[:i], "."))
			if raised == nil {
				raised = SetAttr(f, parent, NewStr(parts[i]), o)
			}
			if raised != nil {
				return nil, raised
			}
		}
		leaf = o
	}
	hasFromlist := fromlist != nil && fromlist != None
	if hasFromlist {
		return leaf, nil
	}
	return top, nil
}

// importStar implements IMPORT_STAR: binds every public name from mod
// (those listed in __all__ if present, otherwise every non-underscore-
// prefixed attribute) into ns.
func importStar(f *Frame, mod *Object, ns *Dict) *BaseException {
	allAttr, raised := GetAttr(f, mod, NewStr("__all__"), None)
	if raised != nil {
		return raised
	}
	var names []string
	if allAttr != None {
		it, raised := Iter(f, allAttr)
		if raised != nil {
			return raised
		}
		for {
			v, raised := Next(f, it)
			if raised != nil {
				if raised.isInstance(StopIterationType) {
					f.RestoreExc(nil, nil)
					break
				}
				return raised
			}
			if !v.isInstance(StrType) {
				return f.RaiseType(TypeErrorType, "__all__ must contain only strings")
			}
			names = append(names, toStrUnsafe(v).Value())
		}
	} else if mod.isInstance(ModuleType) {
		for _, e := range toModuleUnsafe(mod).Dict().entries() {
			if e == nil || e.key == nil || !e.key.isInstance(StrType) {
				continue
			}
			name := toStrUnsafe(e.key).Value()
			if !strings.HasPrefix(name, "_") {
				names = append(names, name)
			}
		}
	}
	for _, name := range names {
		v, raised := GetAttr(f, mod, NewStr(name), nil)
		if raised != nil {
			return raised
		}
		if raised := ns.SetItemString(f, name, v); raised != nil {
			return raised
		}
	}
	return nil
}
