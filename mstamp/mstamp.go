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

// Package mstamp provides a stamp arena: an allocator for many equally
// sized elements that requests memory from its backing allocator in large
// contiguous stamps and carves elements out of them.
//
// Freed elements go onto a free list and are handed out again in LIFO
// order before any new stamp is requested. Recycled elements keep their
// last contents; the initzero option only governs the first-time carve
// from a fresh stamp. Teardown returns every stamp to the backing
// allocator in one sweep.
//
// The arena follows the substrate-wide NEW → SETUP lifecycle: configure
// with SetElemSize, SetStampSize and SetInitzero, freeze with Setup, then
// Alloc/Free until the last reference is released.
package mstamp

import (
	"fmt"

	"plinth.dev/plinth"
	"plinth.dev/plinth/array"
	"plinth.dev/plinth/kind"
	"plinth.dev/plinth/refcount"
)

// Mstamp is a stamp arena with counted ownership.
type Mstamp struct {
	rc    refcount.Refcount
	ator  plinth.Mallocer
	setup bool

	// parameters fixed by Setup
	initzero bool
	perStamp int
	esize    int
	ssize    int

	// usage-phase state
	scount   int
	cur      []byte
	curNext  int
	remember *array.Array[[]byte]
	freed    *array.Array[[]byte]
}

// New creates an arena in its NEW phase drawing stamps from ator. A nil
// ator means plain runtime allocation without accounting. A non-nil ator
// is shared for the lifetime of the arena.
func New(ator plinth.Mallocer) (*Mstamp, *plinth.Error) {
	mst := &Mstamp{}
	if ator != nil {
		if err := ator.Ref(); err != nil {
			return nil, plinth.Wrap(err, "mstamp new: ref allocator")
		}
		mst.ator = ator
	}
	var err *plinth.Error
	if mst.remember, err = array.New[[]byte](); err != nil {
		return nil, plinth.Wrap(err, "mstamp new: remember")
	}
	if mst.freed, err = array.New[[]byte](); err != nil {
		return nil, plinth.Wrap(err, "mstamp new: freed")
	}
	mst.rc.Init()
	return mst, nil
}

// IsValid reports whether mst is non-nil and internally consistent, in
// either phase. It never faults; on bad input it returns false with a
// non-empty reason.
func IsValid(mst *Mstamp) (bool, string) {
	if mst == nil {
		return false, "mstamp is nil"
	}
	if !mst.rc.IsValid() {
		return false, "reference count not valid"
	}
	if ok, reason := array.IsValid(mst.remember); !ok {
		return false, "remember: " + reason
	}
	if ok, reason := array.IsValid(mst.freed); !ok {
		return false, "freed: " + reason
	}
	if mst.esize < 0 || mst.ssize < 0 {
		return false, "negative size"
	}
	if !mst.setup {
		if mst.cur != nil {
			return false, "stamp before setup"
		}
	} else {
		if mst.cur == nil && mst.ssize != 0 {
			return false, "missing current stamp"
		}
		if mst.curNext >= mst.perStamp {
			return false, "element index out of range"
		}
	}
	return true, ""
}

// IsNew reports whether mst is valid and still configurable.
func IsNew(mst *Mstamp) (bool, string) {
	if ok, reason := IsValid(mst); !ok {
		return false, reason
	}
	if mst.setup {
		return false, "mstamp already setup"
	}
	return true, ""
}

// IsSetup reports whether mst is valid and in its usage phase.
func IsSetup(mst *Mstamp) (bool, string) {
	if ok, reason := IsValid(mst); !ok {
		return false, reason
	}
	if ok, reason := array.IsSetup(mst.remember); !ok {
		return false, "remember: " + reason
	}
	if ok, reason := array.IsSetup(mst.freed); !ok {
		return false, "freed: " + reason
	}
	if !mst.setup {
		return false, "mstamp not setup"
	}
	return true, ""
}

// SetElemSize sets the size of one element in bytes. Legal only in the
// NEW phase; the value is validated at Setup.
func (mst *Mstamp) SetElemSize(esize int) *plinth.Error {
	if ok, reason := IsNew(mst); !ok {
		return plinth.Demand(false, "SetElemSize: "+reason)
	}
	mst.esize = esize
	return nil
}

// SetStampSize sets the size of one stamp in bytes. Setup rounds it to a
// whole multiple of the element size, growing it to hold at least one
// element; zero requests a permanently empty degenerate arena. Legal only
// in the NEW phase.
func (mst *Mstamp) SetStampSize(ssize int) *plinth.Error {
	if ok, reason := IsNew(mst); !ok {
		return plinth.Demand(false, "SetStampSize: "+reason)
	}
	mst.ssize = ssize
	return nil
}

// SetInitzero chooses whether elements carved from a fresh stamp are
// zero-filled. Recycled elements are never cleared either way. Legal only
// in the NEW phase.
func (mst *Mstamp) SetInitzero(initzero bool) *plinth.Error {
	if ok, reason := IsNew(mst); !ok {
		return plinth.Demand(false, "SetInitzero: "+reason)
	}
	mst.initzero = initzero
	return nil
}

// Setup transitions the arena into its usage phase. The element size must
// be positive. The first stamp is allocated here so that a usable arena
// always has a current stamp; the degenerate zero stamp size never
// allocates.
func (mst *Mstamp) Setup() *plinth.Error {
	if ok, reason := IsNew(mst); !ok {
		return plinth.Demand(false, "Setup: "+reason)
	}
	if mst.esize <= 0 {
		return plinth.Demand(false, "Setup: element size must be positive")
	}
	mst.perStamp = mst.ssize / mst.esize
	if mst.perStamp < 1 {
		mst.perStamp = 1
	}
	if mst.ssize > 0 {
		mst.ssize = mst.perStamp * mst.esize
	}
	if err := mst.remember.Setup(); err != nil {
		return plinth.Wrap(err, "mstamp setup: remember")
	}
	if err := mst.freed.Setup(); err != nil {
		return plinth.Wrap(err, "mstamp setup: freed")
	}
	if mst.ssize > 0 {
		if err := mst.stampNew(); err != nil {
			return err
		}
	}
	mst.setup = true
	return nil
}

// stampNew requests one stamp from the backing allocator, remembers it
// and makes it current with the element index reset to zero.
func (mst *Mstamp) stampNew() *plinth.Error {
	var stamp []byte
	if mst.ator != nil {
		var err *plinth.Error
		if stamp, err = mst.ator.Malloc(mst.ssize); err != nil {
			return plinth.WrapKind(kind.Memory, err, "stamp allocation")
		}
	} else {
		stamp = make([]byte, mst.ssize)
	}
	if err := mst.remember.Push(stamp); err != nil {
		return plinth.Wrap(err, "remember stamp")
	}
	mst.cur = stamp
	mst.curNext = 0
	mst.scount++
	return nil
}

// Alloc checks out one element of ElemSize bytes.
//
// A previously freed element is reused first, in LIFO order and with its
// last contents intact. Otherwise the element is carved from the current
// stamp and zero-filled if initzero was set. Allocating from a degenerate
// arena of stamp size zero is a bug.
func (mst *Mstamp) Alloc() ([]byte, *plinth.Error) {
	if ok, reason := IsSetup(mst); !ok {
		return nil, plinth.Demand(false, "Alloc: "+reason)
	}
	if n, err := mst.freed.Count(); err != nil {
		return nil, plinth.Wrap(err, "Alloc: freed count")
	} else if n > 0 {
		elem, err := mst.freed.Pop()
		if err != nil {
			return nil, plinth.Wrap(err, "Alloc: freed pop")
		}
		return elem, nil
	}
	if mst.ssize == 0 {
		return nil, plinth.Demand(false, "Alloc: degenerate arena holds no elements")
	}
	off := mst.curNext * mst.esize
	elem := mst.cur[off : off+mst.esize : off+mst.esize]
	if mst.initzero {
		for i := range elem {
			elem[i] = 0
		}
	}
	mst.curNext++
	if mst.curNext == mst.perStamp {
		if err := mst.stampNew(); err != nil {
			return nil, err
		}
	}
	if plinth.Debugging {
		if err := plinth.AssertCheck(mst.curNext < mst.perStamp,
			"element index escaped the current stamp"); err != nil {
			return nil, err
		}
	}
	return elem, nil
}

// Free returns an element to the arena for future reuse. The element must
// have ElemSize bytes; beyond that the arena does not verify that it was
// obtained from this arena, which remains the caller's responsibility.
// The contents are kept as they are.
func (mst *Mstamp) Free(elem []byte) *plinth.Error {
	if ok, reason := IsSetup(mst); !ok {
		return plinth.Demand(false, "Free: "+reason)
	}
	if len(elem) != mst.esize {
		return plinth.Demand(false, fmt.Sprintf(
			"Free: element has %d bytes, want %d", len(elem), mst.esize))
	}
	if err := mst.freed.Push(elem); err != nil {
		return plinth.Wrap(err, "Free: freed push")
	}
	return nil
}

// ElemSize returns the element size in bytes of a setup arena.
func (mst *Mstamp) ElemSize() (int, *plinth.Error) {
	if ok, reason := IsSetup(mst); !ok {
		return 0, plinth.Demand(false, "ElemSize: "+reason)
	}
	return mst.esize, nil
}

// StampSize returns the stamp size in bytes of a setup arena, after
// rounding by Setup.
func (mst *Mstamp) StampSize() (int, *plinth.Error) {
	if ok, reason := IsSetup(mst); !ok {
		return 0, plinth.Demand(false, "StampSize: "+reason)
	}
	return mst.ssize, nil
}

// StampCount returns the number of stamps allocated so far.
func (mst *Mstamp) StampCount() (int, *plinth.Error) {
	if ok, reason := IsSetup(mst); !ok {
		return 0, plinth.Demand(false, "StampCount: "+reason)
	}
	return mst.scount, nil
}

// Ref adds a reference to a setup arena.
func (mst *Mstamp) Ref() *plinth.Error {
	if ok, reason := IsSetup(mst); !ok {
		return plinth.Demand(false, "Ref: "+reason)
	}
	if err := mst.rc.Ref(); err != nil {
		return plinth.Demand(false, "Ref: "+err.Error())
	}
	return nil
}

// Unref removes a reference. When the last reference goes away every
// stamp is returned to the backing allocator and the allocator reference
// is released. Leaks found in sub-objects are collected rather than
// blocking the rest of the teardown; a fatal error stops it.
func (mst *Mstamp) Unref() *plinth.Error {
	if ok, reason := IsSetup(mst); !ok {
		return plinth.Demand(false, "Unref: "+reason)
	}
	last, err := mst.rc.Unref()
	if err != nil {
		return plinth.Demand(false, "Unref: "+err.Error())
	}
	if !last {
		return nil
	}
	return mst.deallocate()
}

// deallocate finishes the arena after its last reference is gone.
func (mst *Mstamp) deallocate() *plinth.Error {
	var leak *plinth.Error
	n, err := mst.remember.Count()
	if err != nil {
		if lerr := plinth.CollectLeak(&leak, err); lerr != nil {
			return lerr
		}
		n = 0
	}
	for i := 0; i < n; i++ {
		stamp, err := mst.remember.Index(i)
		if err != nil {
			if lerr := plinth.CollectLeak(&leak, err); lerr != nil {
				return lerr
			}
			continue
		}
		if mst.ator != nil {
			if err := mst.ator.Free(stamp); err != nil {
				if lerr := plinth.CollectLeak(&leak, err); lerr != nil {
					return lerr
				}
			}
		}
	}
	if err := array.Destroy(&mst.remember); err != nil {
		if lerr := plinth.CollectLeak(&leak, err); lerr != nil {
			return lerr
		}
	}
	if err := array.Destroy(&mst.freed); err != nil {
		if lerr := plinth.CollectLeak(&leak, err); lerr != nil {
			return lerr
		}
	}
	mst.cur = nil
	mst.curNext = 0
	mst.setup = false
	if mst.ator != nil {
		ator := mst.ator
		mst.ator = nil
		if err := ator.Unref(); err != nil {
			if lerr := plinth.CollectLeak(&leak, err); lerr != nil {
				return lerr
			}
		}
	}
	return leak
}

// Destroy takes an arena with one remaining reference, tears it down and
// nils the caller's pointer. Destroying a multiply referenced arena
// consumes the reference and reports an error of kind Leak.
func Destroy(mp **Mstamp) *plinth.Error {
	if mp == nil || *mp == nil {
		return plinth.Demand(false, "Destroy: nil mstamp pointer")
	}
	mst := *mp
	*mp = nil
	var leak *plinth.Error
	if mst.rc.Count() > 1 {
		leak = plinth.NewLeak(fmt.Sprintf(
			"mstamp destroyed with %d references outstanding", mst.rc.Count()))
	}
	if err := mst.Unref(); err != nil {
		if lerr := plinth.CollectLeak(&leak, err); lerr != nil {
			return lerr
		}
	}
	return leak
}
