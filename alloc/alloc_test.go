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

package alloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plinth.dev/plinth"
)

func newSetup(t *testing.T, align int) *Allocator {
	t.Helper()
	a, err := New(nil)
	require.Nil(t, err)
	require.Nil(t, a.SetAlign(align))
	require.Nil(t, a.Setup())
	return a
}

func TestAlignedMalloc(t *testing.T) {
	a := newSetup(t, 16)

	for _, size := range []int{1, 8, 17, 1024} {
		p, err := a.Malloc(size)
		require.Nil(t, err)
		require.Len(t, p, size)
		addr := uintptr(unsafe.Pointer(&p[0]))
		assert.Zero(t, addr%16, "allocation of %d bytes not 16-aligned", size)
		require.Nil(t, a.Free(p))
	}

	require.Nil(t, Destroy(&a))
	assert.Nil(t, a)
}

func TestZeroSizeMalloc(t *testing.T) {
	a := newSetup(t, 0)

	p, err := a.Malloc(0)
	require.Nil(t, err)
	assert.Nil(t, p)
	require.Nil(t, a.Free(p))

	require.Nil(t, Destroy(&a))
}

func TestSetupTwice(t *testing.T) {
	a, err := New(nil)
	require.Nil(t, err)
	require.Nil(t, a.SetAlign(16))
	require.Nil(t, a.Setup())

	serr := a.Setup()
	require.NotNil(t, serr)
	ok, _ := plinth.IsFatal(serr)
	assert.True(t, ok, "second Setup did not fail fatally")
	plinth.DestroyNoerr(&serr)

	require.Nil(t, Destroy(&a))
}

func TestBadAlign(t *testing.T) {
	a, err := New(nil)
	require.Nil(t, err)
	for _, align := range []int{-1, 3, 24} {
		serr := a.SetAlign(align)
		require.NotNil(t, serr, "SetAlign(%d) accepted", align)
		plinth.DestroyNoerr(&serr)
	}
	require.Nil(t, a.Setup())
	require.Nil(t, Destroy(&a))
}

func TestForeignFree(t *testing.T) {
	a := newSetup(t, 0)

	ferr := a.Free(make([]byte, 8))
	require.NotNil(t, ferr)
	ok, _ := plinth.IsFatal(ferr)
	assert.True(t, ok, "foreign free did not fail fatally")
	plinth.DestroyNoerr(&ferr)

	require.Nil(t, Destroy(&a))
}

func TestDoubleFree(t *testing.T) {
	a := newSetup(t, 0)

	p, err := a.Malloc(8)
	require.Nil(t, err)
	require.Nil(t, a.Free(p))

	ferr := a.Free(p)
	require.NotNil(t, ferr)
	ok, _ := plinth.IsFatal(ferr)
	assert.True(t, ok, "double free did not fail fatally")
	plinth.DestroyNoerr(&ferr)

	require.Nil(t, Destroy(&a))
}

func TestLeakOnDestroy(t *testing.T) {
	a := newSetup(t, 0)

	_, err := a.Malloc(8)
	require.Nil(t, err)

	leak := Destroy(&a)
	require.NotNil(t, leak)
	ok, _ := plinth.IsLeak(leak)
	assert.True(t, ok, "outstanding allocation did not surface as a leak")
	plinth.DestroyNoerr(&leak)
}

func TestCounts(t *testing.T) {
	a := newSetup(t, 0)

	var ps [][]byte
	for i := 0; i < 4; i++ {
		p, err := a.Malloc(16)
		require.Nil(t, err)
		ps = append(ps, p)
	}
	require.Nil(t, a.Free(ps[0]))

	nmalloc, nfree, err := a.Counts()
	require.Nil(t, err)
	assert.Equal(t, int64(4), nmalloc)
	assert.Equal(t, int64(1), nfree)

	for _, p := range ps[1:] {
		require.Nil(t, a.Free(p))
	}
	require.Nil(t, Destroy(&a))
}

func TestParentSharing(t *testing.T) {
	parent := newSetup(t, 0)

	child, err := New(parent)
	require.Nil(t, err)
	require.Nil(t, child.Setup())

	// the child keeps the parent alive, so destroying the parent now
	// consumes the handle but reports a leak
	leak := Destroy(&parent)
	require.NotNil(t, leak)
	ok, _ := plinth.IsLeak(leak)
	assert.True(t, ok)
	plinth.DestroyNoerr(&leak)

	// tearing the child down releases the last parent reference cleanly
	require.Nil(t, Destroy(&child))
}

func TestPredicates(t *testing.T) {
	for name, pred := range map[string]func(*Allocator) (bool, string){
		"IsValid": IsValid,
		"IsNew":   IsNew,
		"IsSetup": IsSetup,
	} {
		ok, reason := pred(nil)
		assert.False(t, ok, "%s(nil)", name)
		assert.NotEmpty(t, reason, "%s(nil)", name)
	}

	a, err := New(nil)
	require.Nil(t, err)
	ok, _ := IsNew(a)
	assert.True(t, ok)
	ok, _ = IsSetup(a)
	assert.False(t, ok)

	require.Nil(t, a.Setup())
	ok, _ = IsSetup(a)
	assert.True(t, ok)
	require.Nil(t, Destroy(&a))
}
