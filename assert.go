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

// Debug-mode assertions. These mirror the always-on Demand/Wrap pair but
// vanish in regular builds: each helper tests the Debugging constant first,
// so the body is dead code unless the plinth_debug build tag is set.
//
// Callers that want argument evaluation eliminated as well should gate the
// whole call site:
//
//	if plinth.Debugging {
//		if ok, reason := alloc.IsSetup(a); !ok {
//			return plinth.NewBug(file, line, reason)
//		}
//	}

// AssertCheck is the debug-only variant of Demand. It returns an error of
// kind Bug when the condition fails in a debug build and nil otherwise.
func AssertCheck(cond bool, msg string) *Error {
	if !Debugging || cond {
		return nil
	}
	return NewBug(here(1, msg))
}

// AssertOK consumes the result of a query predicate in a debug build,
// turning a false answer into an error of kind Bug that carries the
// predicate's reason. In regular builds it always returns nil.
func AssertOK(ok bool, reason string, what string) *Error {
	if !Debugging || ok {
		return nil
	}
	return NewBug(here(1, what+": "+reason))
}

// AssertStack is the debug-only variant of Wrap: it stacks a non-nil error
// into a fatal error at the calling site. In regular builds the passed
// error is returned unchanged so no failure is ever dropped.
func AssertStack(err *Error, msg string) *Error {
	if !Debugging || err == nil {
		return err
	}
	file, line := caller(1)
	return NewStack(&err, file, line, msg)
}
