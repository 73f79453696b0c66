// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

// Package opaque implements OPAQUE, an asymmetric password-authenticated key
// exchange protocol that is secure against pre-computation attacks, together
// with the RFC 9497 Oblivious Pseudorandom Function it builds on. It enables
// a client to authenticate to a server without ever revealing its password to
// the server. Protocol details can be found on the IETF RFC pages
// (https://datatracker.ietf.org/doc/rfc9807 and
// https://datatracker.ietf.org/doc/rfc9497).
package opaque

import (
	"crypto"
	"errors"
	"io"

	"github.com/bytemare/ecc"

	"github.com/acheron-labs/opaque/internal"
	"github.com/acheron-labs/opaque/internal/ake"
	"github.com/acheron-labs/opaque/internal/ksf"
	"github.com/acheron-labs/opaque/internal/oprf"
	"github.com/acheron-labs/opaque/message"
)

// Suite identifies a ciphersuite: a prime-order group with hash-to-curve
// capability paired with its hash function, used for both the OPRF and the
// AKE.
type Suite byte

const (
	// P256Sha256 identifies the NIST P-256 group and SHA-256.
	P256Sha256 = Suite(ecc.P256Sha256)

	// P384Sha384 identifies the NIST P-384 group and SHA-384.
	P384Sha384 = Suite(ecc.P384Sha384)

	// P521Sha512 identifies the NIST P-521 group and SHA-512.
	P521Sha512 = Suite(ecc.P521Sha512)
)

// NonceLength is the byte length of protocol nonces (Nn).
const NonceLength = internal.NonceLength

var errInvalidSuite = errors.New("invalid ciphersuite")

// Available returns whether the Suite is recognized in this implementation.
// This allows to fail early when working with multiple versions not using the
// same configuration.
func (s Suite) Available() bool {
	return s == P256Sha256 ||
		s == P384Sha384 ||
		s == P521Sha512
}

// Group returns the EC group used in the ciphersuite.
func (s Suite) Group() ecc.Group {
	return ecc.Group(s)
}

// OPRF returns the OPRF identifier used in the ciphersuite.
func (s Suite) OPRF() oprf.Identifier {
	return oprf.IDFromGroup(s.Group())
}

// Hash returns the ciphersuite's hash function.
func (s Suite) Hash() crypto.Hash {
	return s.OPRF().Hash()
}

// String returns the RFC 9497 suite name, e.g. "P256-SHA256".
func (s Suite) String() string {
	return s.OPRF().Name()
}

// ElementLength returns Npk, the byte length of a compressed group element.
func (s Suite) ElementLength() int {
	return s.Group().ElementLength()
}

// ScalarLength returns Nsk, the byte length of a serialized scalar.
func (s Suite) ScalarLength() int {
	return s.Group().ScalarLength()
}

// HashLength returns Nh, the output length of the suite hash.
func (s Suite) HashLength() int {
	return s.Hash().Size()
}

// KSFConfiguration parameterizes the client-side key stretching function.
// A zero MemoryKiB selects the identity KSF, for development and test runs
// only.
type KSFConfiguration struct {
	MemoryKiB   uint32 `json:"memoryKib"`
	Iterations  uint32 `json:"iterations"`
	Parallelism uint8  `json:"parallelism"`
}

// Argon2id returns whether the configuration selects Argon2id stretching.
func (k KSFConfiguration) Argon2id() bool {
	return k.MemoryKiB != 0
}

func (k KSFConfiguration) ksf() ksf.KSF {
	if !k.Argon2id() {
		return ksf.Identity{}
	}

	return ksf.Argon2id{
		MemoryKiB:   k.MemoryKiB,
		Iterations:  k.Iterations,
		Parallelism: k.Parallelism,
	}
}

// Configuration represents an OPAQUE configuration. It is immutable once
// clients and servers have been built from it.
type Configuration struct {
	// Rand is the random source; crypto/rand is used when nil. Injecting a
	// source pins nonces and seeds for test vectors.
	Rand io.Reader

	// Context is optional shared information to include in the AKE transcript.
	Context []byte

	// KSF parameterizes the client-side key stretching.
	KSF KSFConfiguration

	// Suite identifies the group and hash for the OPRF and the AKE.
	Suite Suite `json:"suite"`
}

// DefaultConfiguration returns a default configuration with strong parameters.
func DefaultConfiguration() *Configuration {
	return &Configuration{
		Suite: P256Sha256,
		KSF: KSFConfiguration{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: 4,
		},
		Context: nil,
		Rand:    nil,
	}
}

// Client returns a newly instantiated Client from the Configuration.
func (c *Configuration) Client() (*Client, error) {
	return NewClient(c)
}

// Server returns a newly instantiated Server from the Configuration.
func (c *Configuration) Server() (*Server, error) {
	return NewServer(c)
}

// GenerateOPRFSeed returns an OPRF seed valid in the given configuration.
func (c *Configuration) GenerateOPRFSeed() []byte {
	return internal.RandomBytes(c.Rand, c.Suite.HashLength())
}

// KeyGen returns a key pair in the AKE group.
func (c *Configuration) KeyGen() (secretKey, publicKey []byte) {
	return ake.KeyGen(c.Suite.Group())
}

// verify returns an error on the first non-compliant parameter, nil otherwise.
func (c *Configuration) verify() error {
	if !c.Suite.Available() || !c.Suite.OPRF().Available() {
		return errInvalidSuite
	}

	return nil
}

// toInternal builds the internal representation of the configuration
// parameters.
func (c *Configuration) toInternal() (*internal.Configuration, error) {
	if err := c.verify(); err != nil {
		return nil, err
	}

	mac := internal.NewMac(c.Suite.Hash())
	ip := &internal.Configuration{
		KDF:          internal.NewKDF(c.Suite.Hash()),
		MAC:          mac,
		Hash:         internal.NewHash(c.Suite.Hash()),
		KSF:          c.KSF.ksf(),
		Rand:         c.Rand,
		Context:      c.Context,
		NonceLen:     internal.NonceLength,
		EnvelopeSize: internal.NonceLength + mac.Size(),
		Group:        c.Suite.Group(),
		OPRF:         c.Suite.OPRF(),
	}

	return ip, nil
}

// Deserializer returns a pointer to a Deserializer structure allowing
// deserialization of messages in the given configuration.
func (c *Configuration) Deserializer() (*Deserializer, error) {
	conf, err := c.toInternal()
	if err != nil {
		return nil, err
	}

	return &Deserializer{conf: conf}, nil
}

// ClientRecord is a server-side structure enabling the storage of user
// relevant information.
type ClientRecord struct {
	*message.RegistrationRecord
	CredentialIdentifier []byte
	ClientIdentity       []byte
}

// RandomBytes returns random bytes of length len (wrapper for crypto/rand).
func RandomBytes(length int) []byte {
	return internal.RandomBytes(nil, length)
}
