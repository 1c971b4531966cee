/*
   Copyright 2026 The Plinth Authors

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package plinth

import (
	"path/filepath"
	"runtime"

	"plinth.dev/plinth/kind"
)

// caller resolves the file name and line of the calling site, skip frames
// above the immediate caller. The file is reduced to its base name; full
// paths add noise to flattened messages without aiding diagnosis.
func caller(skip int) (string, int) {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "", 0
	}
	return filepath.Base(file), line
}

// here bundles the caller location with a message so constructors taking
// (file, line, msg) can be invoked with a single expression.
func here(skip int, msg string) (string, int, string) {
	file, line := caller(skip + 1)
	return file, line, msg
}

// NewKind creates a new setup error of a parameterizable kind in one step.
//
// It must succeed even when allocation is impossible: it never returns nil
// and falls back to the static fallback error rather than propagating an
// allocation failure while already reporting an error. An out-of-range kind
// is recorded as kind.Bug.
func NewKind(k kind.Kind, file string, line int, msg string) *Error {
	if !k.Valid() {
		k = kind.Bug
	}
	e := &Error{
		knd:  k,
		msg:  truncate(msg),
		file: truncate(file),
	}
	if line > 0 {
		e.line = line
	}
	e.rc.Init()
	e.setup = true
	return e
}

// NewBug creates a new setup error of kind Bug. Use it when the error
// indicates a buggy program, typically a violated precondition or call
// convention. Like NewKind it never fails.
func NewBug(file string, line int, msg string) *Error {
	return NewKind(kind.Bug, file, line, msg)
}

// NewStack stacks a given error into a new fatal error.
//
// It takes ownership of *pstack and nils the caller's pointer; the
// predecessor must be a setup error, which may carry a stack of its own.
// The temporal order of failures is preserved: the innermost cause sits at
// the deepest link. Like NewKind it never fails; a nil or unusable
// predecessor degrades into a plain fatal error.
func NewStack(pstack **Error, file string, line int, msg string) *Error {
	return newStackKind(kind.Fatal, pstack, file, line, msg)
}

// newStackKind is NewStack with a caller-chosen kind for the wrapper.
func newStackKind(k kind.Kind, pstack **Error, file string, line int, msg string) *Error {
	e := NewKind(k, file, line, msg)
	if pstack == nil || *pstack == nil {
		return e
	}
	s := *pstack
	*pstack = nil
	if ok, _ := IsSetup(s); !ok {
		s.discard()
		return e
	}
	e.stack = s
	return e
}

// NewLeak creates a new setup error of kind Leak located at the calling
// site. Leaks report leftover resources at teardown; they are safe to
// continue from. Like NewKind it never fails.
func NewLeak(msg string) *Error {
	file, line := caller(1)
	return NewKind(kind.Leak, file, line, msg)
}

// Demand checks a condition that must hold in every build. On failure it
// returns a new error of kind Bug located at the calling site; on success
// it returns nil. Use it on any condition the caller considers fatal.
func Demand(cond bool, msg string) *Error {
	if cond {
		return nil
	}
	return NewBug(here(1, msg))
}

// Wrap stacks a non-nil error into a new fatal error located at the calling
// site, taking ownership of the passed reference. Wrapping nil yields nil.
//
// This is the canonical propagation step: every non-nil error crossing a
// function boundary is stacked so the flattened chain reads as a call
// trace. Wrapping never downgrades severity; a fatal cause stays fatal.
func Wrap(err *Error, msg string) *Error {
	if err == nil {
		return nil
	}
	file, line := caller(1)
	return NewStack(&err, file, line, msg)
}

// WrapKind is Wrap with a caller-chosen kind for the wrapper, used when
// the propagation step itself classifies the failure, such as reporting a
// failed allocation as kind.Memory. Wrapping nil yields nil.
func WrapKind(k kind.Kind, err *Error, msg string) *Error {
	if err == nil {
		return nil
	}
	file, line := caller(1)
	return newStackKind(k, &err, file, line, msg)
}

// CollectLeak folds err into the accumulated leak *pcollect during
// teardown, so that a sequence of destroy calls can surface every leak
// while still completing.
//
// Fatal errors are not collected: they are returned to the caller, which
// must stop the teardown of the affected object. Anything else is merged
// into a single error of kind Leak with the earlier findings as its stack.
// A nil err is a successful step and changes nothing.
func CollectLeak(pcollect **Error, err *Error) *Error {
	if err == nil {
		return nil
	}
	if pcollect == nil {
		return NewBug(here(1, "CollectLeak: nil collection pointer"))
	}
	if ok, _ := IsFatal(err); ok {
		return err
	}
	file, line := caller(1)
	if *pcollect == nil {
		if ok, _ := IsLeak(err); ok {
			*pcollect = err
			return nil
		}
		*pcollect = newStackKind(kind.Leak, &err, file, line, "collected leak")
		return nil
	}
	flat := DestroyNoerr(&err)
	prev := *pcollect
	*pcollect = newStackKind(kind.Leak, &prev, file, line, flat)
	return nil
}
