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

// Mallocer is the allocator capability consumed by the error object and by
// the arena. It is an aligned memory source with its own reference count;
// whether it wraps a slab, a system allocator or a thread-confined pool is
// opaque to consumers.
//
// Every operation returns an *Error or nil, following the convention of the
// whole substrate. Free on a slice not obtained from the same Mallocer, or
// a second Free of the same slice, is a fatal error of kind Bug.
//
// The canonical implementation lives in the alloc package; consumers accept
// this interface so alternative sources can be substituted.
type Mallocer interface {
	// Malloc returns a slice of exactly size bytes honoring the source's
	// alignment. A size of zero yields a nil slice and no error.
	Malloc(size int) ([]byte, *Error)

	// Free returns a slice previously obtained from Malloc.
	Free(p []byte) *Error

	// Ref adds a reference to the allocator.
	Ref() *Error

	// Unref removes a reference. The caller must drop its own handle
	// afterwards; when the last reference goes away the allocator tears
	// down and may report outstanding allocations as a leak.
	Unref() *Error
}
