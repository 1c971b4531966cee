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

// The query predicates below must return cleanly on any input, including
// nil and half-torn-down objects. They never fault. On undefined input they
// return false together with a non-empty reason; on defined input they
// return the proper query result and an empty reason.

// IsValid reports whether e is non-nil and internally consistent. The error
// may be valid in both its NEW and SETUP phases.
func IsValid(e *Error) (bool, string) {
	if e == nil {
		return false, "error is nil"
	}
	if !e.knd.Valid() {
		return false, "kind out of range"
	}
	if len(e.msg) > BufSize || len(e.file) > BufSize {
		return false, "text exceeds buffer bound"
	}
	if e.line < 0 {
		return false, "negative line number"
	}
	if e.setup {
		if !e.rc.IsValid() {
			return false, "reference count not valid"
		}
	} else {
		if e.stack == nil {
			return true, ""
		}
	}
	if e.stack != nil {
		if ok, reason := IsSetup(e.stack); !ok {
			return false, "stack: " + reason
		}
	}
	return true, ""
}

// IsNew reports whether e is valid and not yet setup, i.e. still
// configurable and not shareable.
func IsNew(e *Error) (bool, string) {
	if ok, reason := IsValid(e); !ok {
		return false, reason
	}
	if e.setup {
		return false, "error already setup"
	}
	return true, ""
}

// IsSetup reports whether e is valid and in its usage phase.
func IsSetup(e *Error) (bool, string) {
	if ok, reason := IsValid(e); !ok {
		return false, reason
	}
	if !e.setup {
		return false, "error not setup"
	}
	return true, ""
}

// IsFatal reports whether e is setup and of a fatal kind, i.e. one of
// Fatal, Bug, Memory or Network. After a fatal error the caller must treat
// every resource touched by the failed call as possibly still held.
func IsFatal(e *Error) (bool, string) {
	if ok, reason := IsSetup(e); !ok {
		return false, reason
	}
	if !e.knd.IsFatal() {
		return false, "kind is not fatal"
	}
	return true, ""
}

// IsLeak reports whether e is setup and of kind Leak. A leak is safe to
// continue from, but the application owes a report.
func IsLeak(e *Error) (bool, string) {
	if ok, reason := IsSetup(e); !ok {
		return false, reason
	}
	if !e.knd.IsLeak() {
		return false, "kind is not leak"
	}
	return true, ""
}
