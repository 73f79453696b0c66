// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package internal

import (
	"crypto"
	"crypto/hmac"
	_ "crypto/sha256" // registers SHA-256
	_ "crypto/sha512" // registers SHA-384 and SHA-512
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KDF wraps HKDF over the configuration's hash function.
type KDF struct {
	id crypto.Hash
}

// NewKDF returns a KDF over the given hash function.
func NewKDF(id crypto.Hash) *KDF {
	return &KDF{id: id}
}

// Extract runs HKDF-Extract with the given salt over the input keying
// material, and returns a pseudorandom key of Size() bytes.
func (k *KDF) Extract(salt, ikm []byte) []byte {
	return hkdf.Extract(k.id.New, ikm, salt)
}

// Expand runs HKDF-Expand on the pseudorandom key and info, returning length
// bytes of output keying material.
func (k *KDF) Expand(key, info []byte, length int) []byte {
	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.Expand(k.id.New, key, info), out); err != nil {
		// Only reachable when length exceeds 255 hash lengths.
		panic(fmt.Errorf("hkdf expand: %w", err))
	}

	return out
}

// Size returns the output size of the underlying hash.
func (k *KDF) Size() int {
	return k.id.Size()
}

// Mac wraps HMAC over the configuration's hash function.
type Mac struct {
	id crypto.Hash
}

// NewMac returns a Mac over the given hash function.
func NewMac(id crypto.Hash) *Mac {
	return &Mac{id: id}
}

// MAC returns the HMAC of message under key.
func (m *Mac) MAC(key, message []byte) []byte {
	h := hmac.New(m.id.New, key)
	_, _ = h.Write(message)

	return h.Sum(nil)
}

// Equal compares two MACs in constant time.
func (m *Mac) Equal(a, b []byte) bool {
	return hmac.Equal(a, b)
}

// Size returns the byte length of a tag.
func (m *Mac) Size() int {
	return m.id.Size()
}

// Hash identifies the configuration's hash function and builds transcript
// hashers. It carries no hashing state, so a Configuration can be shared
// across concurrent protocol executions.
type Hash struct {
	id crypto.Hash
}

// NewHash returns a Hash over the given hash function.
func NewHash(id crypto.Hash) *Hash {
	return &Hash{id: id}
}

// Compute returns the digest of the concatenation of the inputs.
func (h *Hash) Compute(input ...[]byte) []byte {
	hasher := h.id.New()
	for _, in := range input {
		_, _ = hasher.Write(in)
	}

	return hasher.Sum(nil)
}

// New returns a fresh streaming hasher, used for the AKE transcript.
func (h *Hash) New() Transcript {
	return Transcript{h: h.id.New()}
}

// Size returns the output size of the hash.
func (h *Hash) Size() int {
	return h.id.Size()
}

// Transcript accumulates the AKE transcript and exposes intermediate sums.
type Transcript struct {
	h interface {
		Write(p []byte) (int, error)
		Sum(b []byte) []byte
	}
}

// Write appends inputs to the transcript.
func (t Transcript) Write(input ...[]byte) {
	for _, in := range input {
		_, _ = t.h.Write(in)
	}
}

// Sum returns the digest of everything written so far without resetting the
// transcript.
func (t Transcript) Sum() []byte {
	return t.h.Sum(nil)
}
