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

// Package refcount provides the counted-ownership primitive used by every
// shareable object in the plinth substrate.
//
// A Refcount is embedded in its owning object, never heap-allocated on its
// own. It is initialized to one live reference, incremented on share and
// decremented on release; Unref signals "this was the last reference" and
// the owner is then expected to tear itself down.
//
// The package is a leaf and reports failures through plain sentinel errors;
// owners translate them into structured errors of kind Bug. No object
// containing a Refcount may be mutated once any reference beyond the
// creator's exists, except through operations documented as safe under
// sharing.
package refcount

import "errors"

// magic marks an initialized Refcount. The validity predicate uses it to
// reject zero values and obviously corrupt memory.
const magic = 0x72656663

var (
	// ErrNotValid is returned when an operation is attempted on an
	// uninitialized or corrupted reference counter.
	ErrNotValid = errors.New("refcount: not initialized")

	// ErrZeroCount is returned when Unref is called on a counter that has
	// already dropped to zero. This is always a caller bug.
	ErrZeroCount = errors.New("refcount: count already zero")
)

// Refcount is an embedded reference counter.
//
// The zero value is not valid; call Init before use. All operations touch
// only the counter itself, never any other field of the owning object.
type Refcount struct {
	mark  int32
	count int32
}

// Init places the counter into its initial state of exactly one reference.
// Re-initializing a live counter is legal only after its count reached zero.
func (rc *Refcount) Init() {
	rc.mark = magic
	rc.count = 1
}

// IsValid reports whether the counter is initialized and carries at least
// one reference. It returns false cleanly on a nil receiver.
func (rc *Refcount) IsValid() bool {
	return rc != nil && rc.mark == magic && rc.count >= 1
}

// Ref adds one reference. It fails if the counter is not valid.
func (rc *Refcount) Ref() error {
	if !rc.IsValid() {
		return ErrNotValid
	}
	rc.count++
	return nil
}

// Unref removes one reference and reports whether the removed reference was
// the last one. When last is true, the caller owns the teardown of the
// containing object; the counter itself is invalidated.
func (rc *Refcount) Unref() (last bool, err error) {
	if rc == nil || rc.mark != magic {
		return false, ErrNotValid
	}
	if rc.count <= 0 {
		return false, ErrZeroCount
	}
	rc.count--
	if rc.count == 0 {
		rc.mark = 0
		return true, nil
	}
	return false, nil
}

// Count returns the current number of references, or 0 for an invalid
// counter. Intended for leak reporting and tests, not for control flow.
func (rc *Refcount) Count() int {
	if !rc.IsValid() {
		return 0
	}
	return int(rc.count)
}
