// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

// Package internal provides the runtime configuration and helpers shared by
// the protocol packages, and is not part of the public API.
package internal

import (
	cryptorand "crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/bytemare/ecc"

	"github.com/acheron-labs/opaque/internal/ksf"
	"github.com/acheron-labs/opaque/internal/oprf"
)

// NonceLength is the length used for protocol nonces (Nn).
const NonceLength = 32

// ErrConfigurationInvalidLength indicates the configuration encoding is of
// invalid length.
var ErrConfigurationInvalidLength = errors.New("invalid encoded configuration length")

// Configuration is the internal representation of the instance runtime
// parameters. It is immutable after construction and safe for concurrent use.
type Configuration struct {
	KDF          *KDF
	MAC          *Mac
	Hash         *Hash
	KSF          ksf.KSF
	Rand         io.Reader
	Context      []byte
	NonceLen     int
	EnvelopeSize int
	Group        ecc.Group
	OPRF         oprf.Identifier
}

// RandomBytes reads length random bytes from the configured source.
func (c *Configuration) RandomBytes(length int) []byte {
	return RandomBytes(c.Rand, length)
}

// RandomBytes reads length bytes from the given source, or from crypto/rand
// when the source is nil.
func RandomBytes(source io.Reader, length int) []byte {
	if source == nil {
		source = cryptorand.Reader
	}

	r := make([]byte, length)
	if _, err := io.ReadFull(source, r); err != nil {
		panic(fmt.Errorf("reading random bytes: %w", err))
	}

	return r
}
