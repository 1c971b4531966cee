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

// Package array provides the ordered, indexable, appendable container used
// for internal bookkeeping throughout the substrate, with the same
// NEW → SETUP lifecycle and null-or-error return convention as every other
// shareable object.
//
// The backing storage is an ordinary Go slice; the container contributes
// the lifecycle, the reference count and the checked access on top of it.
package array

import (
	"fmt"

	"plinth.dev/plinth"
	"plinth.dev/plinth/refcount"
)

// Array is an ordered growable sequence of T with counted ownership.
type Array[T any] struct {
	rc    refcount.Refcount
	setup bool
	elems []T
}

// New creates an array in its NEW phase.
func New[T any]() (*Array[T], *plinth.Error) {
	ar := &Array[T]{}
	ar.rc.Init()
	return ar, nil
}

// IsValid reports whether ar is non-nil and internally consistent.
func IsValid[T any](ar *Array[T]) (bool, string) {
	if ar == nil {
		return false, "array is nil"
	}
	if !ar.rc.IsValid() {
		return false, "reference count not valid"
	}
	if !ar.setup && ar.elems != nil {
		return false, "elements before setup"
	}
	return true, ""
}

// IsNew reports whether ar is valid and still configurable.
func IsNew[T any](ar *Array[T]) (bool, string) {
	if ok, reason := IsValid(ar); !ok {
		return false, reason
	}
	if ar.setup {
		return false, "array already setup"
	}
	return true, ""
}

// IsSetup reports whether ar is valid and in its usage phase.
func IsSetup[T any](ar *Array[T]) (bool, string) {
	if ok, reason := IsValid(ar); !ok {
		return false, reason
	}
	if !ar.setup {
		return false, "array not setup"
	}
	return true, ""
}

// Setup transitions the array into its usage phase with zero elements.
func (ar *Array[T]) Setup() *plinth.Error {
	if ok, reason := IsNew(ar); !ok {
		return plinth.Demand(false, "Setup: "+reason)
	}
	ar.elems = make([]T, 0)
	ar.setup = true
	return nil
}

// Push appends one element at the end of the array.
func (ar *Array[T]) Push(v T) *plinth.Error {
	if ok, reason := IsSetup(ar); !ok {
		return plinth.Demand(false, "Push: "+reason)
	}
	ar.elems = append(ar.elems, v)
	return nil
}

// Index returns the element at position i, 0 ≤ i < Count.
func (ar *Array[T]) Index(i int) (T, *plinth.Error) {
	var zero T
	if ok, reason := IsSetup(ar); !ok {
		return zero, plinth.Demand(false, "Index: "+reason)
	}
	if i < 0 || i >= len(ar.elems) {
		return zero, plinth.Demand(false, fmt.Sprintf(
			"Index: %d out of range [0, %d)", i, len(ar.elems)))
	}
	return ar.elems[i], nil
}

// Pop removes and returns the last element.
func (ar *Array[T]) Pop() (T, *plinth.Error) {
	var zero T
	if ok, reason := IsSetup(ar); !ok {
		return zero, plinth.Demand(false, "Pop: "+reason)
	}
	n := len(ar.elems)
	if n == 0 {
		return zero, plinth.Demand(false, "Pop: array is empty")
	}
	v := ar.elems[n-1]
	ar.elems[n-1] = zero
	ar.elems = ar.elems[:n-1]
	return v, nil
}

// Resize changes the element count to n. Elements beyond n are dropped;
// growth appends zero values.
func (ar *Array[T]) Resize(n int) *plinth.Error {
	if ok, reason := IsSetup(ar); !ok {
		return plinth.Demand(false, "Resize: "+reason)
	}
	if n < 0 {
		return plinth.Demand(false, "Resize: negative count")
	}
	var zero T
	if n <= len(ar.elems) {
		for i := n; i < len(ar.elems); i++ {
			ar.elems[i] = zero
		}
		ar.elems = ar.elems[:n]
		return nil
	}
	for len(ar.elems) < n {
		ar.elems = append(ar.elems, zero)
	}
	return nil
}

// Count returns the number of elements of a setup array.
func (ar *Array[T]) Count() (int, *plinth.Error) {
	if ok, reason := IsSetup(ar); !ok {
		return 0, plinth.Demand(false, "Count: "+reason)
	}
	return len(ar.elems), nil
}

// Ref adds a reference to a setup array.
func (ar *Array[T]) Ref() *plinth.Error {
	if ok, reason := IsSetup(ar); !ok {
		return plinth.Demand(false, "Ref: "+reason)
	}
	if err := ar.rc.Ref(); err != nil {
		return plinth.Demand(false, "Ref: "+err.Error())
	}
	return nil
}

// Unref removes a reference and nils nothing; the caller drops its handle.
// The backing storage is released when the last reference goes away.
func (ar *Array[T]) Unref() *plinth.Error {
	if ok, reason := IsSetup(ar); !ok {
		return plinth.Demand(false, "Unref: "+reason)
	}
	last, err := ar.rc.Unref()
	if err != nil {
		return plinth.Demand(false, "Unref: "+err.Error())
	}
	if last {
		ar.elems = nil
		ar.setup = false
	}
	return nil
}

// Destroy takes an array with one remaining reference, releases it and
// nils the caller's pointer. Destroying a multiply referenced array
// consumes the reference and reports an error of kind Leak.
func Destroy[T any](ap **Array[T]) *plinth.Error {
	if ap == nil || *ap == nil {
		return plinth.Demand(false, "Destroy: nil array pointer")
	}
	ar := *ap
	*ap = nil
	var leak *plinth.Error
	if ar.rc.Count() > 1 {
		leak = plinth.NewLeak(fmt.Sprintf(
			"array destroyed with %d references outstanding", ar.rc.Count()))
	}
	if err := ar.Unref(); err != nil {
		if lerr := plinth.CollectLeak(&leak, err); lerr != nil {
			return lerr
		}
	}
	return leak
}
