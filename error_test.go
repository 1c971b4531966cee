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
	"strings"
	"testing"

	"plinth.dev/plinth/kind"
)

func TestLifecycle(t *testing.T) {
	e, ferr := New(nil)
	if ferr != nil {
		t.Fatalf("New: unexpected error %v", ferr)
	}
	if ok, reason := IsNew(e); !ok {
		t.Fatalf("fresh error not NEW: %s", reason)
	}
	if ok, _ := IsSetup(e); ok {
		t.Fatal("fresh error reports SETUP")
	}

	if err := e.SetKind(kind.Runtime); err != nil {
		t.Fatalf("SetKind: unexpected error %v", err)
	}
	if err := e.SetMessage("something happened"); err != nil {
		t.Fatalf("SetMessage: unexpected error %v", err)
	}
	if err := e.SetLocation("work.c", 42); err != nil {
		t.Fatalf("SetLocation: unexpected error %v", err)
	}
	if err := e.Setup(); err != nil {
		t.Fatalf("Setup: unexpected error %v", err)
	}
	if ok, reason := IsSetup(e); !ok {
		t.Fatalf("error not SETUP after Setup: %s", reason)
	}

	k, err := e.GetKind()
	if err != nil || k != kind.Runtime {
		t.Fatalf("GetKind = %v, %v; want runtime, nil", k, err)
	}
	msg, err := e.GetMessage()
	if err != nil || msg != "something happened" {
		t.Fatalf("GetMessage = %q, %v", msg, err)
	}
	file, line, err := e.GetLocation()
	if err != nil || file != "work.c" || line != 42 {
		t.Fatalf("GetLocation = %q, %d, %v", file, line, err)
	}

	if err := Unref(&e); err != nil {
		t.Fatalf("Unref: unexpected error %v", err)
	}
	if e != nil {
		t.Fatal("Unref did not nil the caller's handle")
	}
}

func TestSetAfterSetup(t *testing.T) {
	e := NewKind(kind.Runtime, "work.c", 1, "frozen")
	err := e.SetMessage("rewrite")
	if err == nil {
		t.Fatal("SetMessage after Setup succeeded")
	}
	if k, _ := err.GetKind(); k != kind.Bug {
		t.Fatalf("SetMessage after Setup: kind = %v, want bug", k)
	}
	DestroyNoerr(&err)
	if err := Destroy(&e); err != nil {
		t.Fatalf("Destroy: unexpected error %v", err)
	}
}

func TestDestroySingleReference(t *testing.T) {
	e := NewKind(kind.Runtime, "work.c", 1, "gone")
	if err := Destroy(&e); err != nil {
		t.Fatalf("Destroy with one reference: unexpected error %v", err)
	}
	if e != nil {
		t.Fatal("Destroy did not nil the caller's handle")
	}
}

func TestDestroyMultiplyReferenced(t *testing.T) {
	e := NewKind(kind.Runtime, "work.c", 1, "shared")
	if err := e.Ref(); err != nil {
		t.Fatalf("Ref: unexpected error %v", err)
	}
	h := e

	leak := Destroy(&e)
	if leak == nil {
		t.Fatal("Destroy with two references returned nil")
	}
	if ok, _ := IsLeak(leak); !ok {
		t.Fatalf("Destroy with two references: got %v, want a leak", leak)
	}
	if e != nil {
		t.Fatal("Destroy did not nil the caller's handle")
	}
	// the object itself survives under the second handle
	if ok, reason := IsSetup(h); !ok {
		t.Fatalf("object deallocated despite second reference: %s", reason)
	}

	DestroyNoerr(&leak)
	if err := Unref(&h); err != nil {
		t.Fatalf("final Unref: unexpected error %v", err)
	}
}

func TestStackRoundTrip(t *testing.T) {
	inner := NewKind(kind.Runtime, "inner.c", 7, "inner boom")
	outer := NewStack(&inner, "outer.c", 9, "while working")
	if inner != nil {
		t.Fatal("NewStack did not take ownership of the predecessor")
	}

	s, err := outer.GetStack()
	if err != nil {
		t.Fatalf("GetStack: unexpected error %v", err)
	}
	if s == nil {
		t.Fatal("GetStack returned no predecessor")
	}
	if k, _ := s.GetKind(); k != kind.Runtime {
		t.Fatalf("predecessor kind = %v, want runtime", k)
	}
	if msg, _ := s.GetMessage(); msg != "inner boom" {
		t.Fatalf("predecessor message = %q", msg)
	}
	if file, line, _ := s.GetLocation(); file != "inner.c" || line != 7 {
		t.Fatalf("predecessor location = %q:%d", file, line)
	}
	if err := Unref(&s); err != nil {
		t.Fatalf("Unref predecessor: unexpected error %v", err)
	}

	flat := DestroyNoerr(&outer)
	iOuter := strings.Index(flat, "while working")
	iInner := strings.Index(flat, "inner boom")
	if iOuter < 0 || iInner < 0 {
		t.Fatalf("flattened chain %q misses a message", flat)
	}
	if iOuter > iInner {
		t.Fatalf("flattened chain %q is not outer-first", flat)
	}
}

func TestSetStackReplacesPredecessor(t *testing.T) {
	e, _ := New(nil)
	first := NewKind(kind.Runtime, "a.c", 1, "first cause")
	second := NewKind(kind.Runtime, "b.c", 2, "second cause")

	if err := e.SetStack(&first); err != nil {
		t.Fatalf("SetStack: unexpected error %v", err)
	}
	if err := e.SetStack(&second); err != nil {
		t.Fatalf("second SetStack: unexpected error %v", err)
	}
	if first != nil || second != nil {
		t.Fatal("SetStack left a caller handle alive")
	}
	if err := e.Setup(); err != nil {
		t.Fatalf("Setup: unexpected error %v", err)
	}

	flat := DestroyNoerr(&e)
	if !strings.Contains(flat, "second cause") {
		t.Fatalf("flattened chain %q misses the attached cause", flat)
	}
	if strings.Contains(flat, "first cause") {
		t.Fatalf("flattened chain %q still carries the replaced cause", flat)
	}
}

func TestSetStackRejectsUnsetupPredecessor(t *testing.T) {
	e, _ := New(nil)
	raw, _ := New(nil)
	err := e.SetStack(&raw)
	if err == nil {
		t.Fatal("SetStack accepted a predecessor that is not setup")
	}
	if k, _ := err.GetKind(); k != kind.Bug {
		t.Fatalf("SetStack on unsetup predecessor: kind = %v, want bug", k)
	}
	DestroyNoerr(&err)
}

func TestTruncation(t *testing.T) {
	long := strings.Repeat("x", 2*BufSize)
	e := NewKind(kind.Runtime, "work.c", 1, long)
	msg, err := e.GetMessage()
	if err != nil {
		t.Fatalf("GetMessage: unexpected error %v", err)
	}
	if len(msg) != BufSize {
		t.Fatalf("stored message has %d bytes, want %d", len(msg), BufSize)
	}
	flat := DestroyNoerr(&e)
	if len(flat) > BufSize {
		t.Fatalf("flattened chain has %d bytes, exceeds %d", len(flat), BufSize)
	}
}

func TestPredicatesNeverFault(t *testing.T) {
	preds := map[string]func(*Error) (bool, string){
		"IsValid": IsValid,
		"IsNew":   IsNew,
		"IsSetup": IsSetup,
		"IsFatal": IsFatal,
		"IsLeak":  IsLeak,
	}
	for name, pred := range preds {
		ok, reason := pred(nil)
		if ok {
			t.Fatalf("%s(nil) = true", name)
		}
		if reason == "" {
			t.Fatalf("%s(nil) returned an empty reason", name)
		}
	}
}

func TestFatalAndLeakPredicates(t *testing.T) {
	tests := []struct {
		k         kind.Kind
		wantFatal bool
		wantLeak  bool
	}{
		{kind.Fatal, true, false},
		{kind.Bug, true, false},
		{kind.Memory, true, false},
		{kind.Network, true, false},
		{kind.Leak, false, true},
		{kind.Warning, false, false},
		{kind.Runtime, false, false},
	}
	for _, tt := range tests {
		e := NewKind(tt.k, "work.c", 1, "probe")
		if ok, _ := IsFatal(e); ok != tt.wantFatal {
			t.Fatalf("IsFatal on %v = %v, want %v", tt.k, ok, tt.wantFatal)
		}
		if ok, _ := IsLeak(e); ok != tt.wantLeak {
			t.Fatalf("IsLeak on %v = %v, want %v", tt.k, ok, tt.wantLeak)
		}
		if err := Destroy(&e); err != nil {
			t.Fatalf("Destroy: unexpected error %v", err)
		}
	}
}

// refRefusingMallocer refuses to be shared, forcing New onto the static
// fallback path.
type refRefusingMallocer struct{}

func (refRefusingMallocer) Malloc(int) ([]byte, *Error) { return nil, nil }
func (refRefusingMallocer) Free([]byte) *Error          { return nil }
func (refRefusingMallocer) Ref() *Error                 { return NewBug("mock.go", 1, "ref refused") }
func (refRefusingMallocer) Unref() *Error               { return nil }

func TestFallbackWhenAllocatorFails(t *testing.T) {
	e, ferr := New(refRefusingMallocer{})
	if ferr != nil {
		t.Fatalf("New with failing allocator returned error %v", ferr)
	}
	if ok, reason := IsSetup(e); !ok {
		t.Fatalf("fallback error not setup: %s", reason)
	}
	if k, _ := e.GetKind(); k != kind.Bug {
		t.Fatalf("fallback kind = %v, want bug", k)
	}
	// reference operations on the fallback are no-ops
	if err := e.Ref(); err != nil {
		t.Fatalf("Ref on fallback: unexpected error %v", err)
	}
	if err := Unref(&e); err != nil {
		t.Fatalf("Unref on fallback: unexpected error %v", err)
	}
	if e != nil {
		t.Fatal("Unref on fallback did not nil the handle")
	}
	// and the fallback is still there for the next failure
	again, _ := New(refRefusingMallocer{})
	if ok, _ := IsSetup(again); !ok {
		t.Fatal("fallback unusable after a previous release")
	}
}

func TestErrorInterface(t *testing.T) {
	inner := NewKind(kind.IO, "disk.c", 5, "short read")
	outer := NewStack(&inner, "work.c", 6, "loading input")

	text := outer.Error()
	if !strings.Contains(text, "short read") || !strings.Contains(text, "loading input") {
		t.Fatalf("Error() = %q misses part of the chain", text)
	}

	// Unwrap exposes the borrowed predecessor to the errors package.
	cause := outer.Unwrap()
	if cause == nil {
		t.Fatal("Unwrap returned nil despite a predecessor")
	}
	pe, ok := cause.(*Error)
	if !ok {
		t.Fatalf("Unwrap returned %T, want *Error", cause)
	}
	if k, _ := pe.GetKind(); k != kind.IO {
		t.Fatalf("unwrapped kind = %v, want io", k)
	}

	if err := Destroy(&outer); err != nil {
		t.Fatalf("Destroy: unexpected error %v", err)
	}
}
