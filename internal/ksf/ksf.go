// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

// Package ksf provides the key stretching functions the client applies to
// the OPRF output before deriving the randomized password.
package ksf

import "golang.org/x/crypto/argon2"

// KSF stretches a secret input into length bytes.
type KSF interface {
	// Harden returns the stretched form of input, length bytes long.
	Harden(input []byte, length int) []byte
}

// Identity is the no-op KSF, for development and deterministic test runs.
type Identity struct{}

// Harden returns the input unchanged.
func (Identity) Harden(input []byte, _ int) []byte {
	return input
}

// Argon2id stretches with Argon2id and an empty salt. The uniqueness
// normally provided by a salt comes from the OPRF output itself, which is
// already bound to the credential's per-user OPRF key.
type Argon2id struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
}

// Harden returns the Argon2id digest of input, length bytes long.
func (a Argon2id) Harden(input []byte, length int) []byte {
	return argon2.IDKey(input, []byte{}, a.Iterations, a.MemoryKiB, a.Parallelism, uint32(length)) //nolint:gosec // length is a hash size.
}
