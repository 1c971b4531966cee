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

package kind

import (
	"encoding"
	"errors"
	"strings"
)

// Kind classifies an error condition.
//
// The set of kinds is fixed and small, so Kind is an integral enumeration
// rather than a free-form string. The zero value is Fatal: an error whose
// kind was never set explicitly is treated as the generic unsafe-to-continue
// failure, which is the conservative default.
//
// Fatality is a property of the kind, not of the individual error: see
// IsFatal for the exact subset.
type Kind int

const (
	// Fatal is the generic error indicating a failed program.
	// No promise is made about resource consistency after a fatal error.
	Fatal Kind = iota

	// Warning is a generic warning that is not a fatal error.
	Warning

	// Runtime is a generic runtime error that is recoverable.
	Runtime

	// Bug is a failed pre-/post-condition or assertion. It may also be a
	// violation of call convention. The program may be in an undefined state.
	Bug

	// Memory indicates an out-of-memory or related allocation error.
	// The memory subsystem may be in an undefined state.
	Memory

	// Network indicates a communication error, possibly unrecoverable.
	// The network subsystem is assumed dysfunctional.
	Network

	// Leak indicates a leftover allocation or reference count.
	// A leak is not considered fatal, but the application should report it.
	Leak

	// IO is an input/output error due to external reasons, for example
	// missing file permissions. The application should attempt to recover.
	IO

	// User is an interactive usage or configuration error. The application
	// must handle it cleanly without producing leaks or inconsistencies.
	User

	// last guards the range of valid enumeration values.
	last
)

// Count is the number of defined kinds. Useful for exhaustive tables.
const Count = int(last)

// names holds the canonical lowercase spelling of each kind.
// The order must match the constant declarations above.
var names = [...]string{
	Fatal:   "fatal",
	Warning: "warning",
	Runtime: "runtime",
	Bug:     "bug",
	Memory:  "memory",
	Network: "network",
	Leak:    "leak",
	IO:      "io",
	User:    "user",
}

// ErrKindInvalid is returned when a value cannot be parsed or validated
// as a kind.
//
// Having a dedicated sentinel error makes it easy for callers and tests to
// detect "this is about kind format" vs some other error.
var ErrKindInvalid = errors.New("plinth: invalid kind")

// Ensure Kind implements encoding.TextMarshaler / encoding.TextUnmarshaler
// so it can be embedded into larger config or API structs.
var (
	_ encoding.TextMarshaler   = (*Kind)(nil)
	_ encoding.TextUnmarshaler = (*Kind)(nil)
)

// Valid reports whether k is one of the defined enumeration values.
func (k Kind) Valid() bool {
	return k >= 0 && k < last
}

// IsFatal reports whether k belongs to the fatal subset.
//
// An error of a fatal kind makes no promise about resource consistency;
// the caller must stop using the affected objects. The fatal subset is
// exactly {Fatal, Bug, Memory, Network}. An application may implicitly
// treat any further condition as fatal, but the library never does.
func (k Kind) IsFatal() bool {
	switch k {
	case Fatal, Bug, Memory, Network:
		return true
	}
	return false
}

// IsLeak reports whether k is Leak. Symmetric companion to IsFatal for the
// one non-fatal kind the library itself produces.
func (k Kind) IsLeak() bool {
	return k == Leak
}

// String returns the canonical lowercase spelling of the kind.
// Out-of-range values yield "invalid".
func (k Kind) String() string {
	if !k.Valid() {
		return "invalid"
	}
	return names[k]
}

// Parse takes a user-provided string, normalizes it and resolves it to a
// Kind. It accepts any casing and surrounding whitespace.
func Parse(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range names {
		if s == name {
			return Kind(k), nil
		}
	}
	return Fatal, ErrKindInvalid
}

// MustParse is the panic-on-error variant of Parse. It is useful for
// declaring package-level values in init() or var blocks.
func MustParse(s string) Kind {
	k, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return k
}

// MarshalText implements encoding.TextMarshaler.
//
// It always returns the canonical string representation.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, ErrKindInvalid
	}
	return []byte(names[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
//
// It normalizes and validates the provided text before assigning.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
