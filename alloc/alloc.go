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

// Package alloc provides the canonical aligned allocator of the substrate.
//
// The Allocator hands out byte slices whose first element honors a
// configurable power-of-two alignment, tracks every live allocation, and
// reports allocations still outstanding at teardown as an error of kind
// Leak. It implements plinth.Mallocer and follows the substrate-wide
// NEW → SETUP lifecycle: configure with SetAlign, freeze with Setup, then
// Malloc/Free until the last reference is released.
//
// The allocator is designed for single-threaded use within one process or
// rank; the surrounding application coordinates across ranks at a higher
// level, never inside this layer.
package alloc

import (
	"fmt"
	"unsafe"

	"plinth.dev/plinth"
	"plinth.dev/plinth/refcount"
)

// Allocator is an aligned memory source with counted ownership.
// Create with New, configure while NEW, freeze with Setup.
type Allocator struct {
	rc     refcount.Refcount
	parent *Allocator
	align  int
	setup  bool

	// live maps the first byte of every outstanding allocation to the
	// backing block, which may be larger than the handed-out slice due to
	// alignment padding. Keeping the backing block referenced also pins it
	// for the garbage collector while unsafe consumers hold raw addresses.
	live    map[*byte][]byte
	nmalloc int64
	nfree   int64
}

var _ plinth.Mallocer = (*Allocator)(nil)

// New creates an allocator in its NEW phase. The parent, if non-nil, is
// shared for the lifetime of the new allocator; it must be setup. The
// default alignment is 0, meaning the runtime's natural alignment.
func New(parent *Allocator) (*Allocator, *plinth.Error) {
	a := &Allocator{}
	if parent != nil {
		if err := parent.Ref(); err != nil {
			return nil, plinth.Wrap(err, "alloc new: ref parent")
		}
		a.parent = parent
	}
	a.rc.Init()
	return a, nil
}

// IsValid reports whether a is non-nil and internally consistent, in
// either phase. It never faults; on bad input it returns false with a
// non-empty reason.
func IsValid(a *Allocator) (bool, string) {
	if a == nil {
		return false, "allocator is nil"
	}
	if !a.rc.IsValid() {
		return false, "reference count not valid"
	}
	if a.align < 0 || (a.align&(a.align-1)) != 0 {
		return false, "alignment not a power of two"
	}
	if a.setup && a.live == nil {
		return false, "setup allocator without accounting"
	}
	if a.nfree > a.nmalloc {
		return false, "more frees than allocations"
	}
	return true, ""
}

// IsNew reports whether a is valid and still configurable.
func IsNew(a *Allocator) (bool, string) {
	if ok, reason := IsValid(a); !ok {
		return false, reason
	}
	if a.setup {
		return false, "allocator already setup"
	}
	return true, ""
}

// IsSetup reports whether a is valid and in its usage phase.
func IsSetup(a *Allocator) (bool, string) {
	if ok, reason := IsValid(a); !ok {
		return false, reason
	}
	if !a.setup {
		return false, "allocator not setup"
	}
	return true, ""
}

// SetAlign sets the byte alignment of every subsequent Malloc. Zero keeps
// the runtime's natural alignment; any other value must be a power of two.
// Legal only in the NEW phase.
func (a *Allocator) SetAlign(align int) *plinth.Error {
	if ok, reason := IsNew(a); !ok {
		return plinth.Demand(false, "SetAlign: "+reason)
	}
	if align < 0 || (align&(align-1)) != 0 {
		return plinth.Demand(false, "SetAlign: alignment must be a power of two")
	}
	a.align = align
	return nil
}

// Setup transitions the allocator into its usage phase. Calling Setup a
// second time is a bug.
func (a *Allocator) Setup() *plinth.Error {
	if ok, reason := IsNew(a); !ok {
		return plinth.Demand(false, "Setup: "+reason)
	}
	a.live = make(map[*byte][]byte)
	a.setup = true
	return nil
}

// Malloc returns a slice of exactly size bytes whose first element honors
// the configured alignment. A size of zero yields a nil slice. The
// allocation stays accounted until the matching Free.
func (a *Allocator) Malloc(size int) ([]byte, *plinth.Error) {
	if ok, reason := IsSetup(a); !ok {
		return nil, plinth.Demand(false, "Malloc: "+reason)
	}
	if size < 0 {
		return nil, plinth.Demand(false, "Malloc: negative size")
	}
	if size == 0 {
		return nil, nil
	}
	block := make([]byte, size+a.align)
	p := block
	if a.align > 0 {
		addr := uintptr(unsafe.Pointer(&block[0]))
		shift := (uintptr(a.align) - addr%uintptr(a.align)) % uintptr(a.align)
		p = block[shift : shift+uintptr(size) : shift+uintptr(size)]
	} else {
		p = block[:size:size]
	}
	if plinth.Debugging {
		if err := plinth.AssertCheck(a.align == 0 ||
			uintptr(unsafe.Pointer(&p[0]))%uintptr(a.align) == 0,
			"allocation misses its alignment"); err != nil {
			return nil, err
		}
	}
	a.live[&p[0]] = block
	a.nmalloc++
	return p, nil
}

// Free returns an allocation to the allocator. Freeing a slice that was
// not obtained from this allocator, or freeing one twice, is a fatal error
// of kind Bug. Freeing a nil slice matches a zero-size Malloc and is a
// no-op.
func (a *Allocator) Free(p []byte) *plinth.Error {
	if ok, reason := IsSetup(a); !ok {
		return plinth.Demand(false, "Free: "+reason)
	}
	if len(p) == 0 {
		return nil
	}
	key := &p[0]
	if _, ok := a.live[key]; !ok {
		return plinth.Demand(false, "Free: pointer not allocated here or freed twice")
	}
	delete(a.live, key)
	a.nfree++
	return nil
}

// Ref adds a reference to a setup allocator.
func (a *Allocator) Ref() *plinth.Error {
	if ok, reason := IsSetup(a); !ok {
		return plinth.Demand(false, "Ref: "+reason)
	}
	if err := a.rc.Ref(); err != nil {
		return plinth.Demand(false, "Ref: "+err.Error())
	}
	return nil
}

// Unref removes a reference. When the last reference goes away the
// allocator tears down; allocations still outstanding at that point are
// reported as an error of kind Leak, and teardown completes regardless.
func (a *Allocator) Unref() *plinth.Error {
	if ok, reason := IsSetup(a); !ok {
		return plinth.Demand(false, "Unref: "+reason)
	}
	last, err := a.rc.Unref()
	if err != nil {
		return plinth.Demand(false, "Unref: "+err.Error())
	}
	if !last {
		return nil
	}
	return a.deallocate()
}

// deallocate finishes the allocator after its last reference is gone.
func (a *Allocator) deallocate() *plinth.Error {
	var leak *plinth.Error
	if n := len(a.live); n > 0 {
		leak = plinth.NewLeak(fmt.Sprintf(
			"allocator destroyed with %d allocations outstanding", n))
	}
	a.live = nil
	a.setup = false
	if a.parent != nil {
		parent := a.parent
		a.parent = nil
		if err := parent.Unref(); err != nil {
			if lerr := plinth.CollectLeak(&leak, err); lerr != nil {
				return lerr
			}
		}
	}
	return leak
}

// Destroy takes an allocator with one remaining reference, tears it down
// and nils the caller's pointer. Destroying a multiply referenced
// allocator consumes the reference and reports an error of kind Leak.
func Destroy(ap **Allocator) *plinth.Error {
	if ap == nil || *ap == nil {
		return plinth.Demand(false, "Destroy: nil allocator pointer")
	}
	a := *ap
	*ap = nil
	var leak *plinth.Error
	if a.rc.Count() > 1 {
		leak = plinth.NewLeak(fmt.Sprintf(
			"allocator destroyed with %d references outstanding", a.rc.Count()))
	}
	if err := a.Unref(); err != nil {
		if lerr := plinth.CollectLeak(&leak, err); lerr != nil {
			return lerr
		}
	}
	return leak
}

// Align returns the configured alignment of a setup allocator.
func (a *Allocator) Align() (int, *plinth.Error) {
	if ok, reason := IsSetup(a); !ok {
		return 0, plinth.Demand(false, "Align: "+reason)
	}
	return a.align, nil
}

// Counts returns the number of Malloc and Free calls served so far.
// The difference is the number of live allocations.
func (a *Allocator) Counts() (nmalloc, nfree int64, err *plinth.Error) {
	if ok, reason := IsSetup(a); !ok {
		return 0, 0, plinth.Demand(false, "Counts: "+reason)
	}
	return a.nmalloc, a.nfree, nil
}
