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
	"sync"
	"sync/atomic"
	"unsafe"
)

const (
	argsCacheSize = 16
	argsCacheArgc = 6
)

// threadState holds the per-OS-thread state the interpreter needs: the
// current exception (spec.md §4.4's "active exception state"), repr
// recursion guards, and small object pools.
type threadState struct {
	reprState    map[*Object]bool
	excValue     *BaseException
	excTraceback *Traceback

	// argsCache is a small, per-thread LIFO cache for arg lists. Entries
	// have a fixed capacity so calls to functions with larger parameter
	// lists will be allocated afresh each time.
	argsCache []Args

	// frameCache is a local cache of allocated frames almost ready for
	// reuse, linked through Frame.back.
	frameCache *Frame

	// monitoring points at the interpreter-wide sys.monitoring registry
	// (globalMonitoring), shared by all threads; the combined event mask
	// that dispatch checks is the package-level globalMonitoringMask, read
	// atomically rather than through a lock.
	monitoring *monitoringState
	// monitoringFiring guards against a monitoring callback re-entering
	// the event dispatcher while it is already firing an event on this
	// thread.
	monitoringFiring bool
	// monitoringReraisePending tracks whether a RERAISE event has already
	// fired since the last EXCEPTION_HANDLED on this thread, so chained
	// cleanup handlers don't produce duplicate RERAISE events.
	monitoringReraisePending bool
}

func newThreadState() *threadState {
	return &threadState{argsCache: make([]Args, 0, argsCacheSize), monitoring: globalMonitoring}
}

// recursiveMutex implements a reentrant lock, similar to Python's RLock.
// Lock can be called multiple times for the same frame stack.
type recursiveMutex struct {
	mutex       sync.Mutex
	threadState *threadState
	count       int
}

func (m *recursiveMutex) Lock(f *Frame) {
	p := (*unsafe.Pointer)(unsafe.Pointer(&m.threadState))
	if (*threadState)(atomic.LoadPointer(p)) != f.threadState {
		m.mutex.Lock()
		atomic.StorePointer(p, unsafe.Pointer(f.threadState))
		m.count++
	} else {
		m.count++
	}
}

func (m *recursiveMutex) Unlock(f *Frame) {
	p := (*unsafe.Pointer)(unsafe.Pointer(&m.threadState))
	if (*threadState)(atomic.LoadPointer(p)) != f.threadState {
		logFatal("recursiveMutex.Unlock: frame did not match that passed to Lock")
	}
	if m.count <= 0 {
		logFatal("recursiveMutex.Unlock: Unlock called too many times")
	}
	m.count--
	if m.count == 0 {
		atomic.StorePointer(p, unsafe.Pointer(nil))
		m.mutex.Unlock()
	}
}

// TryableMutex is a mutex-like object that also supports TryLock(), used by
// the import machinery to implement per-module locks without deadlocking on
// circular imports (spec.md §4.5's cyclic-import seed scenario).
type TryableMutex struct {
	c chan bool
}

// NewTryableMutex returns a new, unlocked TryableMutex.
func NewTryableMutex() *TryableMutex {
	m := &TryableMutex{make(chan bool, 1)}
	m.Unlock()
	return m
}

// Lock blocks until the mutex is available and then acquires it.
func (m *TryableMutex) Lock() {
	<-m.c
}

// TryLock returns true and acquires a lock if the mutex is available,
// otherwise it returns false immediately.
func (m *TryableMutex) TryLock() bool {
	select {
	case <-m.c:
		return true
	default:
		return false
	}
}

// Unlock releases the mutex's lock.
func (m *TryableMutex) Unlock() {
	m.c <- true
}
