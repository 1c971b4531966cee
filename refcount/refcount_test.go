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

package refcount

import (
	"errors"
	"testing"
)

func TestZeroValueNotValid(t *testing.T) {
	var rc Refcount
	if rc.IsValid() {
		t.Fatal("zero value reports valid")
	}
	if err := rc.Ref(); !errors.Is(err, ErrNotValid) {
		t.Fatalf("Ref on zero value: error = %v, want ErrNotValid", err)
	}
	if _, err := rc.Unref(); !errors.Is(err, ErrNotValid) {
		t.Fatalf("Unref on zero value: error = %v, want ErrNotValid", err)
	}
	if got := rc.Count(); got != 0 {
		t.Fatalf("Count on zero value = %d, want 0", got)
	}
}

func TestNilReceiver(t *testing.T) {
	var rc *Refcount
	if rc.IsValid() {
		t.Fatal("nil receiver reports valid")
	}
	if err := rc.Ref(); !errors.Is(err, ErrNotValid) {
		t.Fatalf("Ref on nil receiver: error = %v, want ErrNotValid", err)
	}
	if _, err := rc.Unref(); !errors.Is(err, ErrNotValid) {
		t.Fatalf("Unref on nil receiver: error = %v, want ErrNotValid", err)
	}
}

func TestRefUnrefCycle(t *testing.T) {
	var rc Refcount
	rc.Init()
	if !rc.IsValid() || rc.Count() != 1 {
		t.Fatalf("after Init: valid=%v count=%d, want valid with count 1",
			rc.IsValid(), rc.Count())
	}

	if err := rc.Ref(); err != nil {
		t.Fatalf("Ref: unexpected error %v", err)
	}
	if err := rc.Ref(); err != nil {
		t.Fatalf("Ref: unexpected error %v", err)
	}
	if got := rc.Count(); got != 3 {
		t.Fatalf("Count = %d, want 3", got)
	}

	for i := 0; i < 2; i++ {
		last, err := rc.Unref()
		if err != nil {
			t.Fatalf("Unref %d: unexpected error %v", i, err)
		}
		if last {
			t.Fatalf("Unref %d reported last with references remaining", i)
		}
	}

	last, err := rc.Unref()
	if err != nil {
		t.Fatalf("final Unref: unexpected error %v", err)
	}
	if !last {
		t.Fatal("final Unref did not report last")
	}
	if rc.IsValid() {
		t.Fatal("counter still valid after last Unref")
	}
}

func TestUnrefPastZero(t *testing.T) {
	var rc Refcount
	rc.Init()
	if _, err := rc.Unref(); err != nil {
		t.Fatalf("Unref: unexpected error %v", err)
	}
	if _, err := rc.Unref(); !errors.Is(err, ErrNotValid) {
		// the counter invalidates itself at zero
		t.Fatalf("Unref past zero: error = %v, want ErrNotValid", err)
	}
}

func TestReinitAfterTeardown(t *testing.T) {
	var rc Refcount
	rc.Init()
	if _, err := rc.Unref(); err != nil {
		t.Fatalf("Unref: unexpected error %v", err)
	}
	rc.Init()
	if !rc.IsValid() || rc.Count() != 1 {
		t.Fatalf("after re-Init: valid=%v count=%d, want valid with count 1",
			rc.IsValid(), rc.Count())
	}
}
