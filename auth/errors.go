// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package auth

import (
	"errors"
	"fmt"
)

// The error taxonomy of the orchestrator. Every error returned by an
// endpoint wraps exactly one of these roots, except an internal failure to
// sign the bearer token in AuthFinish, which wraps none. Transports map them
// to status codes with errors.Is: ErrInvalidRequest to 400, ErrUnauthorized
// to 401, ErrCapacityExceeded to 503.
var (
	// ErrInvalidRequest indicates a missing or malformed field, a wrong-size
	// byte string, or an invalid group element.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnauthorized indicates a failed MAC, a missing or expired session,
	// or a bearer token mismatch.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrCapacityExceeded indicates the pending-session table is full; the
	// caller may retry after a delay.
	ErrCapacityExceeded = errors.New("capacity exceeded")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidRequest}, args...)...)
}

func unauthorizedf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrUnauthorized}, args...)...)
}
