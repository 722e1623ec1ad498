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

// Package compiler lowers a parsed AST (package compiler/ast) into
// pyrt.Code objects, implementing spec.md §4.3: symbol-table pass
// (symtab.go), code generation into basic blocks (this file, stmt.go and
// expr.go), and finalisation — jump/EXTENDED_ARG resolution, stack-depth
// dataflow (stackdepth.go), and line/exception table emission
// (finalize.go).
//
// grumpy has no AST compiler of its own (it was fed already-compiled code
// objects produced by a separate Python-hosted tool), so this package has
// no direct teacher file to adapt; its structure instead follows spec.md
// §4.3's own stage breakdown, with the wire format it must produce
// grounded in runtime/opcodes.go, runtime/code.go, runtime/linetable.go and
// runtime/exctable.go.
package compiler

import (
	"fmt"

	"github.com/pyrt-dev/pyrt/compiler/ast"
	pyrt "github.com/pyrt-dev/pyrt/runtime"
)

// instr is one not-yet-finalised instruction: an opcode, an operand that
// may still need widening to an EXTENDED_ARG-prefixed form, an optional
// jump target block, and the source line it was generated from.
type instr struct {
	op     pyrt.Opcode
	arg    int
	target *block // nil unless op is a jump
	line   int
}

// block is one compile-time basic block (spec.md §4.3 stage 3): a
// straight-line run of instructions. Jumps target whole blocks, not raw
// offsets — offsets are assigned only during finalisation.
//
// Blocks are laid out in the final instruction stream in exactly the order
// useBlock first switches into each one (see useBlock) — not the order
// newBlock allocated them, since a forward jump's target is routinely
// allocated (to have a pointer to jump to) well before it is filled, with
// other blocks' content registered in between. This lets fall-through
// mean "next block in the list" with no separate linking/reordering pass,
// while still letting structured control flow pre-allocate jump targets
// wherever convenient.
type block struct {
	instrs []instr
	// offset is filled in during finalisation: the byte offset of this
	// block's first instruction.
	offset int
	// stackDepth is the dataflow-computed entry depth (stackdepth.go).
	stackDepth int
	depthKnown bool
	// registered reports whether this block has been entered into
	// fc.blocks yet (see useBlock); a block allocated early as a forward
	// jump target but not yet filled must not occupy a list slot until
	// it's actually reached.
	registered bool
}

// regionMark pins down one (block, instruction-index) position reached
// during codegen, used to delimit the byte range of a protected region for
// the exception table (finalize.go resolves it to a byte offset once
// block offsets are known).
type regionMark struct {
	b   *block
	idx int
}

// excRegion is a pending try/with protected region: instructions in
// [start,end) unwind to target at the stack depth recorded at start
// (spec.md §4.4's exception-table replacement for a runtime block stack).
type excRegion struct {
	start, end    regionMark
	target        *block
	preserveLasti bool
}

// loopInfo records a compile-time frame-block-stack entry for a loop
// (spec.md §4.3's "nested control structures push records"), giving
// break/continue their jump targets.
type loopInfo struct {
	breakTarget    *block
	continueTarget *block
}

// fnCompiler holds the state for compiling one code object (module,
// function, class body, lambda, or comprehension).
type fnCompiler struct {
	parent   *fnCompiler
	scope    *scope
	childIdx int
	filename string
	name     string
	qualname string

	blocks []*block
	cur    *block

	consts   []*pyrt.Object
	constKey map[interface{}]int
	names    []string
	nameIdx  map[string]int
	varnames []string
	varIdx   map[string]int
	cellvars []string
	cellIdx  map[string]int
	freevars []string
	freeIdx  map[string]int

	loops   []loopInfo
	regions []excRegion
	handlers []excHandlerPending

	firstLineno  int
	flags        pyrt.CodeFlag
	argCount     int
	posOnlyCount int
	kwOnlyCount  int

	annotationsEmitted bool
}

// excHandlerPending is the open (not-yet-closed) protected region stack
// fc.stmt/fc.expr consult when compiling a nested try/with.
type excHandlerPending struct {
	start  regionMark
	target *block
}

// Compile lowers an already-parsed module into a pyrt.Code object.
// CompileSource (source.go) wraps it for runtime/import.go's CompileSource
// seam.
func Compile(mod *ast.Module, filename, name string) (*pyrt.Code, error) {
	root, err := buildSymtab(mod)
	if err != nil {
		return nil, err
	}
	fc := newFnCompiler(nil, root, filename, name, name)
	if err := fc.compileBody(mod.Body); err != nil {
		return nil, err
	}
	return fc.finish()
}

func newFnCompiler(parent *fnCompiler, sc *scope, filename, name, qualname string) *fnCompiler {
	return newFnCompilerWithLeadingParams(parent, sc, filename, name, qualname, nil)
}

// newFnCompilerWithLeadingParams is newFnCompiler but reserves varnames[0:]
// for leadingParams before interning sc.order's locals. Comprehensions use
// this to give their synthetic outer-iterable parameter (CPython calls it
// ".0") the fixed slot 0, since symtab never sees it as a real symbol.
func newFnCompilerWithLeadingParams(parent *fnCompiler, sc *scope, filename, name, qualname string, leadingParams []string) *fnCompiler {
	fc := &fnCompiler{
		parent:      parent,
		scope:       sc,
		filename:    filename,
		name:        name,
		qualname:    qualname,
		constKey:    map[interface{}]int{},
		nameIdx:     map[string]int{},
		varIdx:      map[string]int{},
		cellIdx:     map[string]int{},
		freeIdx:     map[string]int{},
		firstLineno: 1,
	}
	fc.useBlock(fc.newBlock())
	switch sc.kind {
	case scopeFunction, scopeLambda:
		fc.flags |= pyrt.CodeFlagOptimized | pyrt.CodeFlagNewLocals
	case scopeClass:
		fc.flags |= pyrt.CodeFlagNewLocals
	}
	for _, n := range leadingParams {
		fc.internVarname(n)
	}
	// Assign varnames/cellvars/freevars tables up front, in first-use
	// order, so LOAD_FAST/LOAD_DEREF operands are stable while emitting.
	for _, n := range sc.order {
		switch sc.resolved[n] {
		case nameLocal:
			if sc.kind != scopeClass {
				fc.internVarname(n)
			}
		case nameCell:
			fc.internCellvar(n)
		case nameFree:
			fc.internFreevar(n)
		}
	}
	return fc
}

func (fc *fnCompiler) internVarname(n string) int {
	if i, ok := fc.varIdx[n]; ok {
		return i
	}
	i := len(fc.varnames)
	fc.varnames = append(fc.varnames, n)
	fc.varIdx[n] = i
	return i
}

func (fc *fnCompiler) internCellvar(n string) int {
	if i, ok := fc.cellIdx[n]; ok {
		return i
	}
	i := len(fc.cellvars)
	fc.cellvars = append(fc.cellvars, n)
	fc.cellIdx[n] = i
	return i
}

func (fc *fnCompiler) internFreevar(n string) int {
	if i, ok := fc.freeIdx[n]; ok {
		return i
	}
	i := len(fc.freevars)
	fc.freevars = append(fc.freevars, n)
	fc.freeIdx[n] = i
	return i
}

func (fc *fnCompiler) internName(n string) int {
	if i, ok := fc.nameIdx[n]; ok {
		return i
	}
	i := len(fc.names)
	fc.names = append(fc.names, n)
	fc.nameIdx[n] = i
	return i
}

// internConst adds (or reuses) a constant-pool slot for v, keyed on a
// hashable representation so identical literals share one slot — minor
// but matches CPython's const deduplication and keeps repeated literals
// in a loop body from bloating the pool.
func (fc *fnCompiler) internConst(key interface{}, v *pyrt.Object) int {
	if i, ok := fc.constKey[key]; ok {
		return i
	}
	i := len(fc.consts)
	fc.consts = append(fc.consts, v)
	fc.constKey[key] = i
	return i
}

// emit appends an instruction to the current block at the given source
// line. line takes ast.Pos directly (rather than forcing every call site
// to convert) since essentially every caller is emitting right after
// reading some node's Line().
func (fc *fnCompiler) emit(line ast.Pos, op pyrt.Opcode, arg int) {
	fc.cur.instrs = append(fc.cur.instrs, instr{op: op, arg: arg, line: int(line)})
}

func (fc *fnCompiler) emitJump(line ast.Pos, op pyrt.Opcode, target *block) {
	fc.cur.instrs = append(fc.cur.instrs, instr{op: op, target: target, line: int(line)})
}

// newBlock allocates a fresh, as yet unplaced block. It is not entered
// into fc.blocks until useBlock first switches into it — see useBlock.
func (fc *fnCompiler) newBlock() *block {
	return &block{}
}

// useBlock makes b the current block, registering it in fc.blocks the
// first time it becomes current. Registration (not allocation) order is
// what fixes a block's position in the final instruction stream, so
// fall-through from whatever was current is only ever implicit to the
// block a caller switches into immediately next — regardless of how many
// other blocks were newBlock'd (but not yet useBlock'd) in between, e.g.
// a jump target allocated early to back-patch a forward jump, then only
// filled in after a nested construct's own blocks have been registered.
func (fc *fnCompiler) useBlock(b *block) {
	if !b.registered {
		b.registered = true
		fc.blocks = append(fc.blocks, b)
	}
	fc.cur = b
}

func (fc *fnCompiler) mark() regionMark { return regionMark{b: fc.cur, idx: len(fc.cur.instrs)} }

// blockTerminated reports whether b's last instruction always transfers
// control away, so a caller must not assume fall-through reaches the next
// block.
func (fc *fnCompiler) blockTerminated(b *block) bool {
	if len(b.instrs) == 0 {
		return false
	}
	switch b.instrs[len(b.instrs)-1].op {
	case pyrt.RETURN_VALUE, pyrt.JUMP_FORWARD, pyrt.JUMP_BACKWARD, pyrt.RERAISE:
		return true
	}
	return false
}

func (fc *fnCompiler) enterLoop(breakTarget, continueTarget *block) {
	fc.loops = append(fc.loops, loopInfo{breakTarget, continueTarget})
}

func (fc *fnCompiler) exitLoop() {
	fc.loops = fc.loops[:len(fc.loops)-1]
}

func (fc *fnCompiler) currentLoop() (loopInfo, error) {
	if len(fc.loops) == 0 {
		return loopInfo{}, fmt.Errorf("'break'/'continue' outside loop")
	}
	return fc.loops[len(fc.loops)-1], nil
}

// pushRegion opens a protected region starting at the current position;
// compileTry/compileWithItems close it with popRegion.
func (fc *fnCompiler) pushRegion(target *block) {
	fc.handlers = append(fc.handlers, excHandlerPending{start: fc.mark(), target: target})
}

func (fc *fnCompiler) popRegion() {
	h := fc.handlers[len(fc.handlers)-1]
	fc.handlers = fc.handlers[:len(fc.handlers)-1]
	fc.regions = append(fc.regions, excRegion{start: h.start, end: fc.mark(), target: h.target})
}

// compileBody emits RESUME (spec.md §4.4/§4.6's frame-entry monitoring
// hook) then every statement of a scope's body, finishing with an
// implicit "return None" if control can fall off the end.
func (fc *fnCompiler) compileBody(body []ast.Stmt) error {
	fc.emit(ast.Pos(fc.firstLineno), pyrt.RESUME, 0)
	for _, st := range body {
		if err := fc.stmt(st); err != nil {
			return err
		}
	}
	if !fc.blockTerminated(fc.cur) {
		line := fc.firstLineno
		if len(fc.cur.instrs) > 0 {
			line = fc.cur.instrs[len(fc.cur.instrs)-1].line
		}
		fc.emit(ast.Pos(line), pyrt.LOAD_CONST, fc.internConst(constNone{}, pyrt.None))
		fc.emit(ast.Pos(line), pyrt.RETURN_VALUE, 0)
	}
	return nil
}

// constNone/constEllipsis are dedicated dedup keys for the two singleton
// constants that aren't comparable the way ints/strs are by value alone.
type constNone struct{}
type constEllipsis struct{}
type constBool bool

// finish runs finalisation (spec.md §4.3 stage 4) and builds the Code
// object.
func (fc *fnCompiler) finish() (*pyrt.Code, error) {
	if err := resolveJumps(fc.blocks); err != nil {
		return nil, err
	}
	code := assemble(fc.blocks)
	depth, err := computeStackDepth(fc.blocks, fc.regions)
	if err != nil {
		return nil, err
	}
	lineRuns := buildLineRuns(fc.blocks)
	excRuns, err := buildExcRuns(fc.regions)
	if err != nil {
		return nil, err
	}
	nLocals := len(fc.varnames)
	cell2arg := fc.cell2argTable()
	return pyrt.NewCode(
		fc.name, fc.qualname, fc.filename, fc.firstLineno,
		fc.argCount, fc.posOnlyCount, fc.kwOnlyCount, nLocals, depth, fc.flags,
		code, fc.consts, fc.names, fc.varnames, fc.cellvars, fc.freevars,
		cell2arg,
		pyrt.EncodeLineRuns(fc.firstLineno, lineRuns),
		pyrt.EncodeExcTableRuns(excRuns),
	), nil
}

// cell2argTable maps each cellvar to the argument index it captures (a
// parameter immediately closed over by a nested scope), or -1.
func (fc *fnCompiler) cell2argTable() []int {
	table := make([]int, len(fc.cellvars))
	any := false
	for i, name := range fc.cellvars {
		table[i] = -1
		for argi, argname := range fc.varnames[:fc.argCount] {
			if argname == name {
				table[i] = argi
				any = true
				break
			}
		}
	}
	if !any {
		return nil
	}
	return table
}
