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

// This file implements sys.monitoring (spec.md §4.6): a low-overhead event
// instrumentation API with up to 6 independent "tool" slots, each
// subscribing to a bitmask of event kinds either interpreter-wide or scoped
// to one code object. Grounded on RustPython's
// crates/vm/src/stdlib/sys/monitoring.rs, adapted from a single VM-global
// PyMutex<MonitoringState> to a package-level monitoringState guarded by its
// own sync.Mutex, with the re-entrancy guard moved onto threadState since Go
// has no ergonomic thread-local storage.

import (
	"fmt"
	"sync"
	"sync/atomic"
)

const (
	// ToolLimit is the number of independent sys.monitoring tool slots.
	ToolLimit = 6

	eventsCount       = 19
	localEventsCount  = 11
	ungroupedEvents   = 18
)

// Event bit positions, mirroring sys.monitoring.events.
const (
	EventPyStart uint32 = 1 << iota
	EventPyResume
	EventPyReturn
	EventPyYield
	EventCall
	EventLine
	EventInstruction
	EventJump
	EventBranchLeft
	EventBranchRight
	EventStopIteration
	EventRaise
	EventExceptionHandled
	EventPyUnwind
	EventPyThrow
	EventRerAise
	EventCReturn
	EventCRaise
	EventBranch
)

// EventRERAISE is the correctly-spelled alias of EventRerAise (Go vet
// complains about consecutive capitals in RERAISE, so the const above uses
// mixed case internally; external code should use this name).
const EventRERAISE = EventRerAise

const eventCReturnMask = EventCReturn | EventCRaise

var eventNames = [eventsCount]string{
	"PY_START", "PY_RESUME", "PY_RETURN", "PY_YIELD", "CALL", "LINE",
	"INSTRUCTION", "JUMP", "BRANCH_LEFT", "BRANCH_RIGHT", "STOP_ITERATION",
	"RAISE", "EXCEPTION_HANDLED", "PY_UNWIND", "PY_THROW", "RERAISE",
	"C_RETURN", "C_RAISE", "BRANCH",
}

type monitoringCallbackKey struct {
	tool  int
	event int
}

type monitoringLocalKey struct {
	tool int
	code *Code
}

type monitoringDisabledKey struct {
	code   *Code
	offset int
	tool   int
}

// monitoringState is the interpreter-wide sys.monitoring registry, shared by
// all threads through threadState.monitoring.
type monitoringState struct {
	mutex        sync.Mutex
	toolNames    [ToolLimit]string
	toolInUse    [ToolLimit]bool
	globalEvents [ToolLimit]uint32
	localEvents  map[monitoringLocalKey]uint32
	callbacks    map[monitoringCallbackKey]*Object
	disabled     map[monitoringDisabledKey]bool
	missing      *Object
}

func newMonitoringState() *monitoringState {
	return &monitoringState{
		localEvents: make(map[monitoringLocalKey]uint32),
		callbacks:   make(map[monitoringCallbackKey]*Object),
		disabled:    make(map[monitoringDisabledKey]bool),
	}
}

// globalMonitoring is the single interpreter-wide monitoring registry.
// globalMonitoringMask caches the OR of all tools' event masks so the frame
// dispatch loop can skip monitoring overhead with one atomic load when
// nothing is registered.
var (
	globalMonitoring     = newMonitoringState()
	globalMonitoringMask uint32
)

func (s *monitoringState) combinedEventsLocked() uint32 {
	var mask uint32
	for _, e := range s.globalEvents {
		mask |= e
	}
	for _, e := range s.localEvents {
		mask |= e
	}
	return mask
}

func (s *monitoringState) updateMaskLocked() {
	atomic.StoreUint32(&globalMonitoringMask, s.combinedEventsLocked())
}

func monitoringCheckValidTool(f *Frame, toolID int) *BaseException {
	if toolID < 0 || toolID >= ToolLimit {
		return f.RaiseType(ValueErrorType, fmt.Sprintf("invalid tool %d (must be between 0 and 5)", toolID))
	}
	return nil
}

func (s *monitoringState) checkToolInUse(f *Frame, tool int) *BaseException {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.toolInUse[tool] {
		return f.RaiseType(ValueErrorType, fmt.Sprintf("tool %d is not in use", tool))
	}
	return nil
}

func monitoringParseSingleEvent(f *Frame, event uint32) (int, *BaseException) {
	if bitCount(event) != 1 {
		return 0, f.RaiseType(ValueErrorType, "the callback can only be set for one event at a time")
	}
	eventID := trailingZeros(event)
	if eventID >= eventsCount {
		return 0, f.RaiseType(ValueErrorType, fmt.Sprintf("invalid event %d", event))
	}
	return eventID, nil
}

func bitCount(x uint32) int {
	n := 0
	for x != 0 {
		n++
		x &= x - 1
	}
	return n
}

func trailingZeros(x uint32) int {
	if x == 0 {
		return 32
	}
	n := 0
	for x&1 == 0 {
		n++
		x >>= 1
	}
	return n
}

func monitoringNormalizeEventSet(f *Frame, eventSet int, local bool) (uint32, *BaseException) {
	kind := "event set"
	if local {
		kind = "local event set"
	}
	if eventSet < 0 || eventSet >= (1<<eventsCount) {
		return 0, f.RaiseType(ValueErrorType, fmt.Sprintf("invalid %s 0x%x", kind, eventSet))
	}
	events := uint32(eventSet)
	if events&eventCReturnMask != 0 && events&EventCall != EventCall {
		return 0, f.RaiseType(ValueErrorType, "cannot set C_RETURN or C_RAISE events independently")
	}
	events &^= eventCReturnMask
	if events&EventBranch != 0 {
		events &^= EventBranch
		events |= EventBranchLeft | EventBranchRight
	}
	if local && events >= (1<<localEventsCount) {
		return 0, f.RaiseType(ValueErrorType, fmt.Sprintf("invalid local event set 0x%x", events))
	}
	return events, nil
}

func monitoringUseToolID(f *Frame, toolID int, name string) *BaseException {
	if raised := monitoringCheckValidTool(f, toolID); raised != nil {
		return raised
	}
	s := globalMonitoring
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.toolInUse[toolID] {
		return f.RaiseType(ValueErrorType, fmt.Sprintf("tool %d is already in use", toolID))
	}
	s.toolInUse[toolID] = true
	s.toolNames[toolID] = name
	return nil
}

func monitoringClearToolID(f *Frame, toolID int) *BaseException {
	if raised := monitoringCheckValidTool(f, toolID); raised != nil {
		return raised
	}
	s := globalMonitoring
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.toolInUse[toolID] {
		s.globalEvents[toolID] = 0
		for k := range s.localEvents {
			if k.tool == toolID {
				delete(s.localEvents, k)
			}
		}
		for k := range s.callbacks {
			if k.tool == toolID {
				delete(s.callbacks, k)
			}
		}
		for k := range s.disabled {
			if k.tool == toolID {
				delete(s.disabled, k)
			}
		}
	}
	s.updateMaskLocked()
	return nil
}

func monitoringFreeToolID(f *Frame, toolID int) *BaseException {
	if raised := monitoringClearToolID(f, toolID); raised != nil {
		return raised
	}
	s := globalMonitoring
	s.mutex.Lock()
	s.toolInUse[toolID] = false
	s.toolNames[toolID] = ""
	s.mutex.Unlock()
	return nil
}

func monitoringGetTool(f *Frame, toolID int) (*Object, *BaseException) {
	if raised := monitoringCheckValidTool(f, toolID); raised != nil {
		return nil, raised
	}
	s := globalMonitoring
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.toolInUse[toolID] {
		return None, nil
	}
	return NewStr(s.toolNames[toolID]).ToObject(), nil
}

func monitoringRegisterCallback(f *Frame, toolID int, event uint32, fn *Object) (*Object, *BaseException) {
	if raised := monitoringCheckValidTool(f, toolID); raised != nil {
		return nil, raised
	}
	eventID, raised := monitoringParseSingleEvent(f, event)
	if raised != nil {
		return nil, raised
	}
	s := globalMonitoring
	s.mutex.Lock()
	defer s.mutex.Unlock()
	key := monitoringCallbackKey{toolID, eventID}
	prev, ok := s.callbacks[key]
	if !ok {
		prev = None
	}
	if fn != None && fn != nil {
		s.callbacks[key] = fn
		if eventID == trailingZeros(EventBranch) {
			s.callbacks[monitoringCallbackKey{toolID, trailingZeros(EventBranchLeft)}] = fn
			s.callbacks[monitoringCallbackKey{toolID, trailingZeros(EventBranchRight)}] = fn
		}
	} else {
		delete(s.callbacks, key)
		if eventID == trailingZeros(EventBranch) {
			delete(s.callbacks, monitoringCallbackKey{toolID, trailingZeros(EventBranchLeft)})
			delete(s.callbacks, monitoringCallbackKey{toolID, trailingZeros(EventBranchRight)})
		}
	}
	return prev, nil
}

func monitoringGetEvents(f *Frame, toolID int) (uint32, *BaseException) {
	if raised := monitoringCheckValidTool(f, toolID); raised != nil {
		return 0, raised
	}
	s := globalMonitoring
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.globalEvents[toolID], nil
}

func monitoringSetEvents(f *Frame, toolID int, eventSet int) *BaseException {
	if raised := monitoringCheckValidTool(f, toolID); raised != nil {
		return raised
	}
	s := globalMonitoring
	if raised := s.checkToolInUse(f, toolID); raised != nil {
		return raised
	}
	normalized, raised := monitoringNormalizeEventSet(f, eventSet, false)
	if raised != nil {
		return raised
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.globalEvents[toolID] = normalized
	s.updateMaskLocked()
	return nil
}

func monitoringGetLocalEvents(f *Frame, toolID int, code *Code) (uint32, *BaseException) {
	if raised := monitoringCheckValidTool(f, toolID); raised != nil {
		return 0, raised
	}
	s := globalMonitoring
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.localEvents[monitoringLocalKey{toolID, code}], nil
}

func monitoringSetLocalEvents(f *Frame, toolID int, code *Code, eventSet int) *BaseException {
	if raised := monitoringCheckValidTool(f, toolID); raised != nil {
		return raised
	}
	s := globalMonitoring
	if raised := s.checkToolInUse(f, toolID); raised != nil {
		return raised
	}
	normalized, raised := monitoringNormalizeEventSet(f, eventSet, true)
	if raised != nil {
		return raised
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	key := monitoringLocalKey{toolID, code}
	if normalized == 0 {
		delete(s.localEvents, key)
	} else {
		s.localEvents[key] = normalized
	}
	s.updateMaskLocked()
	return nil
}

func monitoringRestartEvents() {
	s := globalMonitoring
	s.mutex.Lock()
	s.disabled = make(map[monitoringDisabledKey]bool)
	s.mutex.Unlock()
}

func monitoringAllEvents(f *Frame) (*Dict, *BaseException) {
	s := globalMonitoring
	s.mutex.Lock()
	defer s.mutex.Unlock()
	result := NewDict()
	for eventID, name := range eventNames[:ungroupedEvents] {
		bit := uint32(1) << uint(eventID)
		var toolsMask int
		for tool := 0; tool < ToolLimit; tool++ {
			if s.globalEvents[tool]&bit != 0 {
				toolsMask |= 1 << uint(tool)
			}
		}
		if toolsMask != 0 {
			if raised := result.SetItemString(f, name, NewInt(toolsMask).ToObject()); raised != nil {
				return nil, raised
			}
		}
	}
	return result, nil
}

// isDisableSentinel reports whether a callback's return value is the
// sys.monitoring.DISABLE sentinel.
func isDisableSentinel(o *Object) bool {
	return o != nil && o != None && o.typ == monitoringSentinelType
}

var monitoringSentinelType = newSimpleType("sys.monitoring._Sentinel", ObjectType)

// MonitoringDisable is the sys.monitoring.DISABLE sentinel a callback
// returns to suppress future delivery of a local event at its call site.
var MonitoringDisable = newObject(monitoringSentinelType)

// fireMonitoringEvent delivers event eventID (whose single bit is eventBit)
// for code/offset to every tool subscribed to it, short-circuiting when
// nothing is registered or this thread is already inside a callback.
func fireMonitoringEvent(f *Frame, eventID int, eventBit uint32, code *Code, offset int, args Args) *BaseException {
	if atomic.LoadUint32(&globalMonitoringMask)&eventBit == 0 {
		return nil
	}
	ts := f.threadState
	if ts.monitoringFiring {
		return nil
	}
	checkBit := eventBit
	if eventBit&eventCReturnMask != 0 {
		checkBit |= EventCall
	}
	s := globalMonitoring
	s.mutex.Lock()
	type cb struct {
		tool int
		fn   *Object
	}
	var callbacks []cb
	for tool := 0; tool < ToolLimit; tool++ {
		local := s.localEvents[monitoringLocalKey{tool, code}]
		if (s.globalEvents[tool]|local)&checkBit == 0 {
			continue
		}
		if s.disabled[monitoringDisabledKey{code, offset, tool}] {
			continue
		}
		if fn, ok := s.callbacks[monitoringCallbackKey{tool, eventID}]; ok {
			callbacks = append(callbacks, cb{tool, fn})
		}
	}
	s.mutex.Unlock()
	if len(callbacks) == 0 {
		return nil
	}
	ts.monitoringFiring = true
	defer func() { ts.monitoringFiring = false }()
	for _, c := range callbacks {
		result, raised := c.fn.Call(f, args, nil)
		if raised != nil {
			return raised
		}
		if isDisableSentinel(result) {
			if eventID >= localEventsCount {
				return f.RaiseType(ValueErrorType, fmt.Sprintf("cannot disable %s events", eventNames[eventID]))
			}
			s.mutex.Lock()
			s.disabled[monitoringDisabledKey{code, offset, c.tool}] = true
			s.mutex.Unlock()
		}
	}
	return nil
}

// FirePyStart fires PY_START at function entry.
func FirePyStart(f *Frame, code *Code, offset int) *BaseException {
	return fireMonitoringEvent(f, 0, EventPyStart, code, offset, Args{code.ToObject(), NewInt(offset).ToObject()})
}

// FirePyResume fires PY_RESUME when a generator or coroutine resumes.
func FirePyResume(f *Frame, code *Code, offset int) *BaseException {
	return fireMonitoringEvent(f, 1, EventPyResume, code, offset, Args{code.ToObject(), NewInt(offset).ToObject()})
}

// FirePyReturn fires PY_RETURN when a function returns normally.
func FirePyReturn(f *Frame, code *Code, offset int, retVal *Object) *BaseException {
	return fireMonitoringEvent(f, 2, EventPyReturn, code, offset, Args{code.ToObject(), NewInt(offset).ToObject(), retVal})
}

// FirePyYield fires PY_YIELD when a generator yields.
func FirePyYield(f *Frame, code *Code, offset int, retVal *Object) *BaseException {
	return fireMonitoringEvent(f, 3, EventPyYield, code, offset, Args{code.ToObject(), NewInt(offset).ToObject(), retVal})
}

// FireCall fires CALL when a function or method is invoked.
func FireCall(f *Frame, code *Code, offset int, callable, arg0 *Object) *BaseException {
	return fireMonitoringEvent(f, 4, EventCall, code, offset, Args{code.ToObject(), NewInt(offset).ToObject(), callable, arg0})
}

// FireCReturn fires C_RETURN when a builtin (Go-native) callable returns.
func FireCReturn(f *Frame, code *Code, offset int, callable, arg0 *Object) *BaseException {
	return fireMonitoringEvent(f, 16, EventCReturn, code, offset, Args{code.ToObject(), NewInt(offset).ToObject(), callable, arg0})
}

// FireCRaise fires C_RAISE when a builtin callable raises.
func FireCRaise(f *Frame, code *Code, offset int, callable, arg0 *Object) *BaseException {
	return fireMonitoringEvent(f, 17, EventCRaise, code, offset, Args{code.ToObject(), NewInt(offset).ToObject(), callable, arg0})
}

// FireLine fires LINE when execution reaches a new source line.
func FireLine(f *Frame, code *Code, offset, line int) *BaseException {
	return fireMonitoringEvent(f, 5, EventLine, code, offset, Args{code.ToObject(), NewInt(line).ToObject()})
}

// FireInstruction fires INSTRUCTION before each bytecode instruction.
func FireInstruction(f *Frame, code *Code, offset int) *BaseException {
	return fireMonitoringEvent(f, 6, EventInstruction, code, offset, Args{code.ToObject(), NewInt(offset).ToObject()})
}

// FireRaise fires RAISE when an exception is raised.
func FireRaise(f *Frame, code *Code, offset int, exc *Object) *BaseException {
	return fireMonitoringEvent(f, 11, EventRaise, code, offset, Args{code.ToObject(), NewInt(offset).ToObject(), exc})
}

// FireReraise fires RERAISE, suppressing duplicates since the last
// FireExceptionHandled on this thread.
func FireReraise(f *Frame, code *Code, offset int, exc *Object) *BaseException {
	ts := f.threadState
	if ts.monitoringReraisePending {
		return nil
	}
	ts.monitoringReraisePending = true
	return fireMonitoringEvent(f, 15, EventRerAise, code, offset, Args{code.ToObject(), NewInt(offset).ToObject(), exc})
}

// FireExceptionHandled fires EXCEPTION_HANDLED on entry to a handler.
func FireExceptionHandled(f *Frame, code *Code, offset int, exc *Object) *BaseException {
	f.threadState.monitoringReraisePending = false
	return fireMonitoringEvent(f, 12, EventExceptionHandled, code, offset, Args{code.ToObject(), NewInt(offset).ToObject(), exc})
}

// FirePyUnwind fires PY_UNWIND when an exception propagates out of a frame.
func FirePyUnwind(f *Frame, code *Code, offset int, exc *Object) *BaseException {
	f.threadState.monitoringReraisePending = false
	return fireMonitoringEvent(f, 13, EventPyUnwind, code, offset, Args{code.ToObject(), NewInt(offset).ToObject(), exc})
}

// FirePyThrow fires PY_THROW when throw() is sent to a generator/coroutine.
func FirePyThrow(f *Frame, code *Code, offset int, exc *Object) *BaseException {
	return fireMonitoringEvent(f, 14, EventPyThrow, code, offset, Args{code.ToObject(), NewInt(offset).ToObject(), exc})
}

// FireJump fires JUMP when a jump instruction executes.
func FireJump(f *Frame, code *Code, offset, destination int) *BaseException {
	return fireMonitoringEvent(f, 7, EventJump, code, offset, Args{code.ToObject(), NewInt(offset).ToObject(), NewInt(destination).ToObject()})
}

// FireBranchLeft fires BRANCH_LEFT when a conditional branch is taken.
func FireBranchLeft(f *Frame, code *Code, offset, destination int) *BaseException {
	return fireMonitoringEvent(f, 8, EventBranchLeft, code, offset, Args{code.ToObject(), NewInt(offset).ToObject(), NewInt(destination).ToObject()})
}

// FireBranchRight fires BRANCH_RIGHT when a conditional branch falls
// through.
func FireBranchRight(f *Frame, code *Code, offset, destination int) *BaseException {
	return fireMonitoringEvent(f, 9, EventBranchRight, code, offset, Args{code.ToObject(), NewInt(offset).ToObject(), NewInt(destination).ToObject()})
}

// newMonitoringModuleDict builds the function/constant dict for the
// sys.monitoring submodule (spec.md §4.6). Wired into sys's module object by
// import.go's bootstrap once the module machinery exists.
func newMonitoringModuleDict() map[string]*Object {
	events := NewDict()
	for i, name := range eventNames {
		events.SetItemString(nil, name, NewInt(int(1)<<uint(i)).ToObject())
	}
	events.SetItemString(nil, "NO_EVENTS", NewInt(0).ToObject())
	return map[string]*Object{
		"DEBUGGER_ID":  NewInt(0).ToObject(),
		"COVERAGE_ID":  NewInt(1).ToObject(),
		"PROFILER_ID":  NewInt(2).ToObject(),
		"OPTIMIZER_ID": NewInt(5).ToObject(),
		"DISABLE":      MonitoringDisable,
		"events":       events.ToObject(),
		"use_tool_id": newBuiltinFunction("use_tool_id", func(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
			if raised := checkFunctionArgs(f, "use_tool_id", args, IntType, StrType); raised != nil {
				return nil, raised
			}
			toolID, raised := ToIntValue(f, args[0])
			if raised != nil {
				return nil, raised
			}
			if raised := monitoringUseToolID(f, toolID, toStrUnsafe(args[1]).Value()); raised != nil {
				return nil, raised
			}
			return None, nil
		}).ToObject(),
		"clear_tool_id": newBuiltinFunction("clear_tool_id", func(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
			if raised := checkFunctionArgs(f, "clear_tool_id", args, IntType); raised != nil {
				return nil, raised
			}
			toolID, raised := ToIntValue(f, args[0])
			if raised != nil {
				return nil, raised
			}
			if raised := monitoringClearToolID(f, toolID); raised != nil {
				return nil, raised
			}
			return None, nil
		}).ToObject(),
		"free_tool_id": newBuiltinFunction("free_tool_id", func(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
			if raised := checkFunctionArgs(f, "free_tool_id", args, IntType); raised != nil {
				return nil, raised
			}
			toolID, raised := ToIntValue(f, args[0])
			if raised != nil {
				return nil, raised
			}
			if raised := monitoringFreeToolID(f, toolID); raised != nil {
				return nil, raised
			}
			return None, nil
		}).ToObject(),
		"get_tool": newBuiltinFunction("get_tool", func(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
			if raised := checkFunctionArgs(f, "get_tool", args, IntType); raised != nil {
				return nil, raised
			}
			toolID, raised := ToIntValue(f, args[0])
			if raised != nil {
				return nil, raised
			}
			return monitoringGetTool(f, toolID)
		}).ToObject(),
		"register_callback": newBuiltinFunction("register_callback", func(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
			if raised := checkFunctionArgs(f, "register_callback", args, IntType, IntType, ObjectType); raised != nil {
				return nil, raised
			}
			toolID, raised := ToIntValue(f, args[0])
			if raised != nil {
				return nil, raised
			}
			event, raised := ToIntValue(f, args[1])
			if raised != nil {
				return nil, raised
			}
			return monitoringRegisterCallback(f, toolID, uint32(event), args[2])
		}).ToObject(),
		"get_events": newBuiltinFunction("get_events", func(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
			if raised := checkFunctionArgs(f, "get_events", args, IntType); raised != nil {
				return nil, raised
			}
			toolID, raised := ToIntValue(f, args[0])
			if raised != nil {
				return nil, raised
			}
			events, raised := monitoringGetEvents(f, toolID)
			if raised != nil {
				return nil, raised
			}
			return NewInt(int(events)).ToObject(), nil
		}).ToObject(),
		"set_events": newBuiltinFunction("set_events", func(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
			if raised := checkFunctionArgs(f, "set_events", args, IntType, IntType); raised != nil {
				return nil, raised
			}
			toolID, raised := ToIntValue(f, args[0])
			if raised != nil {
				return nil, raised
			}
			eventSet, raised := ToIntValue(f, args[1])
			if raised != nil {
				return nil, raised
			}
			if raised := monitoringSetEvents(f, toolID, eventSet); raised != nil {
				return nil, raised
			}
			return None, nil
		}).ToObject(),
		"restart_events": newBuiltinFunction("restart_events", func(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
			monitoringRestartEvents()
			return None, nil
		}).ToObject(),
		"_all_events": newBuiltinFunction("_all_events", func(f *Frame, args Args, _ KWArgs) (*Object, *BaseException) {
			d, raised := monitoringAllEvents(f)
			if raised != nil {
				return nil, raised
			}
			return d.ToObject(), nil
		}).ToObject(),
	}
}
