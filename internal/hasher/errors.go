// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hasher

import (
	"errors"
	"fmt"
)

// Error kinds returned by Engine.Execute. Match with errors.Is.
var (
	// ErrInvalidParameters means the cost parameters are structurally invalid
	// for Argon2id. Caller error; derivation was not attempted.
	ErrInvalidParameters = errors.New("invalid argon2id parameters")

	// ErrInternal means the engine failed despite valid input, e.g. the salt
	// source failed or the self-verification did not round-trip.
	ErrInternal = errors.New("internal hashing failure")
)

// Error carries an error kind plus the underlying cause.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func invalidParams(format string, args ...any) error {
	return &Error{Kind: ErrInvalidParameters, Err: fmt.Errorf(format, args...)}
}

func internal(err error) error {
	return &Error{Kind: ErrInternal, Err: err}
}
