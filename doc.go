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

// Package plinth is a substrate for building reliable parallel numerical
// software: a uniform error-object protocol and a reference-counting
// ownership discipline, consumed by the arena allocator in
// plinth.dev/plinth/mstamp and the aligned allocator in
// plinth.dev/plinth/alloc.
//
// # Error protocol
//
// Errors propagate up the call stack as return values of type *Error.
// A nil result means total success with no leaked resource. A function
// that cannot maintain its invariants returns a non-nil *Error; the caller
// decides whether to keep propagating (Wrap and return), convert the error
// to a log line and continue, or abort at the top of the application.
//
// A function returning a non-fatal error, including a leak, has already
// released every resource it owns. A function returning a fatal error
// makes no such promise: the caller must treat all resources touched by
// the failed call as possibly still held. This only-if condition is
// one-way: it is correct to propagate a non-fatal error upward as fatal,
// and incorrect to propagate a fatal error upward as non-fatal.
//
// Library teardown reports leftover references or allocations as errors of
// kind Leak; these are deliberately non-fatal, so an application is free
// to treat leaks as fatal or merely log them.
//
// # Lifecycle and sharing
//
// Every shareable object in the substrate, the Error included, passes
// through two phases: a NEW phase in which it is configured through Set*
// calls, and a SETUP phase entered through Setup, after which the contents
// are frozen and only the reference count may change. Ownership transfer
// uses pointer-to-pointer functions (Unref, Destroy, NewStack) that nil
// the caller's handle.
//
// # Interop
//
// Error implements the built-in error interface and Unwrap, so substrate
// errors cross standard Go APIs and errors.Is / errors.As traversal
// without adaptation. Transport projections live in the grpcx and httpx
// subpackages.
package plinth
