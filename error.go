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
	"fmt"

	"plinth.dev/plinth/kind"
	"plinth.dev/plinth/refcount"
)

// BufSize bounds every textual message and flattened stack trace in bytes.
// Longer text is truncated, never overflowed.
const BufSize = 1024

// Error is the central failure value of the substrate.
//
// It carries:
//   - Kind: classification of the failure (see the kind package);
//   - Message: human-oriented description, bounded by BufSize;
//   - Location: filename and line number of the failure site;
//   - Stack: an owned reference to the predecessor error, i.e. the
//     underlying cause; the chain records cause history, innermost first.
//
// An Error passes through two phases. Freshly created it is NEW: the Set*
// methods may be called repeatedly (last write wins), the object has no
// valid reference count and must not be shared. Setup freezes the contents
// and moves the object into its SETUP phase: from then on only the
// reference count may change, and the error becomes shareable via Ref.
//
// "No error" is always the nil *Error, never an Error of some "ok" kind.
// Callers must check for nil before inspecting an error.
type Error struct {
	knd   kind.Kind
	msg   string
	file  string
	line  int
	stack *Error

	setup  bool
	static bool
	rc     refcount.Refcount
	ator   Mallocer
}

// fallback is the process-wide static error used when error reporting
// itself cannot allocate. It is never deallocated; reference operations on
// it are no-ops. This breaks the recursion of reporting an error about the
// failure to report an error.
var fallback = func() *Error {
	e := &Error{
		knd:    kind.Bug,
		msg:    "static fallback error: allocation failed while reporting",
		setup:  true,
		static: true,
	}
	e.rc.Init()
	return e
}()

// truncate enforces the BufSize bound on stored text.
func truncate(s string) string {
	if len(s) > BufSize {
		return s[:BufSize]
	}
	return s
}

// New creates an error in its NEW phase with default values: kind Fatal,
// empty message and location, no stack. The allocator is shared for the
// lifetime of the error and released on destruction; it may be nil, in
// which case the error draws storage from the runtime only.
//
// New fails only if the allocator capability itself fails. In that case it
// falls back to the static fallback error, so that error reporting never
// requires a successful allocation.
func New(ator Mallocer) (*Error, *Error) {
	e := &Error{knd: kind.Fatal}
	if ator != nil {
		if err := ator.Ref(); err != nil {
			return fallback, nil
		}
		e.ator = ator
	}
	return e, nil
}

// SetKind sets the kind of the error. The default kind is kind.Fatal.
// Legal only in the NEW phase.
func (e *Error) SetKind(k kind.Kind) *Error {
	if ok, reason := IsNew(e); !ok {
		return NewBug(here(1, "SetKind: "+reason))
	}
	if !k.Valid() {
		return NewBug(here(1, "SetKind: kind out of range"))
	}
	e.knd = k
	return nil
}

// SetMessage sets the message of the error. The default message is "".
// Text beyond BufSize bytes is truncated. Legal only in the NEW phase.
func (e *Error) SetMessage(msg string) *Error {
	if ok, reason := IsNew(e); !ok {
		return NewBug(here(1, "SetMessage: "+reason))
	}
	e.msg = truncate(msg)
	return nil
}

// SetLocation sets the filename and line number of the error.
// The default location is ("", 0). Legal only in the NEW phase.
func (e *Error) SetLocation(file string, line int) *Error {
	if ok, reason := IsNew(e); !ok {
		return NewBug(here(1, "SetLocation: "+reason))
	}
	if line < 0 {
		return NewBug(here(1, "SetLocation: negative line"))
	}
	e.file = truncate(file)
	e.line = line
	return nil
}

// SetStack sets the error to be the top of a stack of existing errors.
//
// The function takes ownership of *pstack (it does not add a reference)
// and nils the caller's pointer. The stack may be nil, otherwise it must be
// a setup error. Calling SetStack again releases the previously attached
// predecessor first. Wiring an error into its own ancestry is rejected as
// a bug; chains are never cyclic.
func (e *Error) SetStack(pstack **Error) *Error {
	if pstack == nil {
		return NewBug(here(1, "SetStack: nil stack pointer"))
	}
	if ok, reason := IsNew(e); !ok {
		return NewBug(here(1, "SetStack: "+reason))
	}
	s := *pstack
	*pstack = nil
	if s != nil {
		if ok, reason := IsSetup(s); !ok {
			return NewBug(here(1, "SetStack: "+reason))
		}
		// Cheap cycle guard: the new predecessor chain must not contain
		// the error under construction.
		for p := s; p != nil; p = p.stack {
			if p == e {
				return NewBug(here(1, "SetStack: cycle in error stack"))
			}
		}
	}
	if e.stack != nil {
		old := e.stack
		e.stack = nil
		if err := Unref(&old); err != nil {
			if ok, _ := IsFatal(err); ok {
				return err
			}
			// A leak in the replaced predecessor is reported by the
			// destruction path, not here.
			DestroyNoerr(&err)
		}
	}
	e.stack = s
	return nil
}

// Setup transitions the error from its NEW phase into its SETUP phase.
// The contents become immutable, the reference count is initialized to one,
// and the error becomes usable and shareable. No Set* call is legal after
// Setup.
func (e *Error) Setup() *Error {
	if ok, reason := IsNew(e); !ok {
		return NewBug(here(1, "Setup: "+reason))
	}
	e.rc.Init()
	e.setup = true
	return nil
}

// Ref adds a reference to a setup error. Referencing the static fallback
// error is a no-op.
func (e *Error) Ref() *Error {
	if e != nil && e.static {
		return nil
	}
	if ok, reason := IsSetup(e); !ok {
		return NewBug(here(1, "Ref: "+reason))
	}
	if err := e.rc.Ref(); err != nil {
		return NewBug(here(1, "Ref: "+err.Error()))
	}
	return nil
}

// Unref removes a reference from a setup error and nils the caller's
// pointer. When the last reference goes away the error is deallocated and
// its owned stack chain is released link by link; a leak surfacing from a
// link is returned but never aborts the unwind of its parent. Unrefing the
// static fallback error is a no-op.
func Unref(ep **Error) *Error {
	if ep == nil || *ep == nil {
		return NewBug(here(1, "Unref: nil error pointer"))
	}
	e := *ep
	*ep = nil
	if e.static {
		return nil
	}
	if ok, reason := IsSetup(e); !ok {
		return NewBug(here(1, "Unref: "+reason))
	}
	last, err := e.rc.Unref()
	if err != nil {
		return NewBug(here(1, "Unref: "+err.Error()))
	}
	if !last {
		return nil
	}
	return e.deallocate()
}

// deallocate tears down an error whose last reference is gone. Non-fatal
// trouble in subordinate objects is collected and returned; it never stops
// the teardown.
func (e *Error) deallocate() *Error {
	var leak *Error
	if e.stack != nil {
		s := e.stack
		e.stack = nil
		if err := Unref(&s); err != nil {
			if ok, _ := IsFatal(err); ok {
				return err
			}
			leak = err
		}
	}
	if e.ator != nil {
		ator := e.ator
		e.ator = nil
		if err := ator.Unref(); err != nil {
			if leak == nil {
				leak = err
			} else {
				DestroyNoerr(&err)
			}
		}
	}
	// Invalidate the object so dangling handles fail the predicates.
	e.setup = false
	e.msg = ""
	e.file = ""
	e.line = 0
	return leak
}

// Destroy takes an error with one remaining reference, deallocates it and
// nils the caller's pointer. Destroying an error that is multiply referenced
// is itself a reference leak: the reference is still consumed, but the
// object survives and an error of kind Leak is returned instead.
// Destroying the static fallback error is a no-op.
func Destroy(ep **Error) *Error {
	if ep == nil || *ep == nil {
		return NewBug(here(1, "Destroy: nil error pointer"))
	}
	e := *ep
	if !e.static && e.rc.Count() > 1 {
		file, line := caller(1)
		leak := NewKind(kind.Leak, file, line, fmt.Sprintf(
			"error destroyed with %d references outstanding", e.rc.Count()))
		*ep = nil
		if err := Unref(&e); err != nil {
			DestroyNoerr(&err)
		}
		return leak
	}
	return Unref(ep)
}

// DestroyNoerr destroys an error best-effort and returns the whole stack
// chain flattened into one human-readable string, outermost failure first.
// Any error occurring in the process, for example outstanding references,
// is ignored. Intended for the top of a call chain where there is nobody
// left to hand a further error to.
func DestroyNoerr(ep **Error) string {
	if ep == nil || *ep == nil {
		return ""
	}
	flat := (*ep).flatten()
	e := *ep
	*ep = nil
	if e.static {
		return flat
	}
	if err := Unref(&e); err != nil {
		err.discard()
	}
	return flat
}

// discard drops an error chain without reporting, for the rare paths where
// a secondary failure has nowhere to go.
func (e *Error) discard() {
	if e == nil || e.static {
		return
	}
	for p := e; p != nil; {
		next := p.stack
		p.stack = nil
		p.setup = false
		p = next
	}
}

// flatten renders the chain outer-first, bounded by BufSize.
func (e *Error) flatten() string {
	var out string
	for p := e; p != nil; p = p.stack {
		piece := p.format()
		if out == "" {
			out = piece
		} else {
			out = out + ": " + piece
		}
		if len(out) >= BufSize {
			break
		}
	}
	return truncate(out)
}

// format renders a single link as "kind (file:line) message", omitting the
// location when it was never set.
func (e *Error) format() string {
	if e.file == "" && e.line == 0 {
		return fmt.Sprintf("%s %s", e.knd, e.msg)
	}
	return fmt.Sprintf("%s (%s:%d) %s", e.knd, e.file, e.line, e.msg)
}

// Error implements the built-in error interface by flattening the chain.
// The receiver keeps all references; this is a read-only rendering.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.flatten()
}

// Unwrap exposes the predecessor to errors.Is / errors.As traversal.
//
// Unlike GetStack it returns a borrowed reference: the predecessor is only
// valid while the receiver is alive. Callers that need to outlive the
// receiver must use GetStack instead.
func (e *Error) Unwrap() error {
	if e == nil || e.stack == nil {
		return nil
	}
	return e.stack
}

// GetKind returns the kind of a setup error.
func (e *Error) GetKind() (kind.Kind, *Error) {
	if ok, reason := IsSetup(e); !ok {
		return kind.Fatal, NewBug(here(1, "GetKind: "+reason))
	}
	return e.knd, nil
}

// GetMessage returns the message of a setup error.
func (e *Error) GetMessage() (string, *Error) {
	if ok, reason := IsSetup(e); !ok {
		return "", NewBug(here(1, "GetMessage: "+reason))
	}
	return e.msg, nil
}

// GetLocation returns the filename and line number of a setup error.
func (e *Error) GetLocation() (string, int, *Error) {
	if ok, reason := IsSetup(e); !ok {
		return "", 0, NewBug(here(1, "GetLocation: "+reason))
	}
	return e.file, e.line, nil
}

// GetStack returns the next deepest error of the chain with an added
// reference, decoupling the predecessor's lifetime from the receiver.
// The caller must release the result with Unref when no longer needed.
// A nil result without error means the chain ends here.
func (e *Error) GetStack() (*Error, *Error) {
	if ok, reason := IsSetup(e); !ok {
		return nil, NewBug(here(1, "GetStack: "+reason))
	}
	if e.stack == nil {
		return nil, nil
	}
	if err := e.stack.Ref(); err != nil {
		return nil, err
	}
	return e.stack, nil
}
