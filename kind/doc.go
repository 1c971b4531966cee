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

// Package kind enumerates the error kinds of the plinth substrate.
//
// A kind answers the question "how bad is this, and what may the caller
// still rely on?". The kinds split into a fatal subset (Fatal, Bug, Memory,
// Network), after which the library makes no promise about resource
// consistency, and a non-fatal remainder (Warning, Runtime, Leak, IO, User)
// that is reported without corrupting library state.
//
// The package is deliberately a leaf: it depends on nothing inside the
// module so that every other package can classify errors without import
// concerns.
package kind
