// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

// Package oprf implements the Oblivious Pseudorandom Function from RFC 9497
// in its base mode (mode 0) over the NIST prime-order groups.
package oprf

import (
	"crypto"
	_ "crypto/sha256" // registers SHA-256
	_ "crypto/sha512" // registers SHA-384 and SHA-512

	"github.com/bytemare/ecc"

	"github.com/acheron-labs/opaque/internal/encoding"
	"github.com/acheron-labs/opaque/internal/tag"
)

// mode distinguishes between the OPRF base mode and the verifiable modes.
type mode byte

// base identifies the OPRF non-verifiable, base mode.
const base mode = iota

// Identifier identifies the OPRF ciphersuite to be used.
type Identifier ecc.Group

const (
	// P256Sha256 is the OPRF ciphersuite of the NIST P-256 group and SHA-256.
	P256Sha256 = Identifier(ecc.P256Sha256)

	// P384Sha384 is the OPRF ciphersuite of the NIST P-384 group and SHA-384.
	P384Sha384 = Identifier(ecc.P384Sha384)

	// P521Sha512 is the OPRF ciphersuite of the NIST P-521 group and SHA-512.
	P521Sha512 = Identifier(ecc.P521Sha512)

	maxDeriveKeyPairTries = 256
)

type suiteParams struct {
	name string
	hash crypto.Hash
}

var suites = map[Identifier]suiteParams{
	P256Sha256: {"P256-SHA256", crypto.SHA256},
	P384Sha384: {"P384-SHA384", crypto.SHA384},
	P521Sha512: {"P521-SHA512", crypto.SHA512},
}

// IDFromGroup returns the OPRF Identifier of the given group.
func IDFromGroup(g ecc.Group) Identifier {
	return Identifier(g)
}

// Available returns whether the Identifier is a registered ciphersuite.
func (i Identifier) Available() bool {
	_, ok := suites[i]
	return ok
}

// Group returns the group of the ciphersuite.
func (i Identifier) Group() ecc.Group {
	return ecc.Group(i)
}

// Name returns the RFC 9497 suite name, e.g. "P256-SHA256".
func (i Identifier) Name() string {
	return suites[i].name
}

// Hash returns the ciphersuite's hash function.
func (i Identifier) Hash() crypto.Hash {
	return suites[i].hash
}

// contextString is "OPRFV1-" || I2OSP(mode, 1) || "-" || suite name.
func (i Identifier) contextString() []byte {
	return encoding.Concatenate(
		[]byte(tag.OPRFVersionPrefix),
		encoding.I2OSP(int(base), 1),
		[]byte("-"),
		[]byte(suites[i].name),
	)
}

func (i Identifier) dst(prefix string) []byte {
	return encoding.Concat([]byte(prefix), i.contextString())
}

// HashToGroup maps the input to a group element with the suite's
// hash-to-group domain separation tag.
func (i Identifier) HashToGroup(input []byte) *ecc.Element {
	return i.Group().HashToGroup(input, i.dst(tag.OPRFPointPrefix))
}

// HashToScalar maps the input to a scalar with the suite's hash-to-scalar
// domain separation tag.
func (i Identifier) HashToScalar(input []byte) *ecc.Scalar {
	return i.Group().HashToScalar(input, i.dst(tag.OPRFScalarPrefix))
}

// Evaluate multiplies the blinded element by the private key.
func (i Identifier) Evaluate(privateKey *ecc.Scalar, blindedElement *ecc.Element) *ecc.Element {
	return blindedElement.Copy().Multiply(privateKey)
}

// DeriveKey maps seed and info to a non-zero private key, per the
// DeriveKeyPair procedure of RFC 9497.
func (i Identifier) DeriveKey(seed, info []byte) *ecc.Scalar {
	deriveInput := encoding.Concat(seed, encoding.EncodeVector(info))
	dst := i.dst(tag.DeriveKeyPairPrefix)

	for counter := 0; counter < maxDeriveKeyPairTries; counter++ {
		s := i.Group().HashToScalar(encoding.Concat(deriveInput, encoding.I2OSP(counter, 1)), dst)
		if !s.IsZero() {
			return s
		}
	}

	// Unreachable in practice: a zero scalar 256 times in a row.
	panic("DeriveKeyPair exceeded the retry limit")
}

// hash computes the suite hash over the concatenation of the inputs.
func (i Identifier) hash(input ...[]byte) []byte {
	h := suites[i].hash.New()
	for _, in := range input {
		_, _ = h.Write(in)
	}

	return h.Sum(nil)
}

// Client holds the transient blinding state of one OPRF execution.
type Client struct {
	blind *ecc.Scalar
	input []byte
	Identifier
}

// Client returns an OPRF client for the ciphersuite.
func (i Identifier) Client() *Client {
	return &Client{
		blind:      nil,
		input:      nil,
		Identifier: i,
	}
}

// Blind maps the input to the group and multiplies it with the blinding
// scalar, which is drawn at random when blind is nil.
func (c *Client) Blind(input []byte, blind *ecc.Scalar) *ecc.Element {
	if blind != nil {
		c.blind = blind.Copy()
	} else {
		c.blind = c.Group().NewScalar().Random()
	}

	c.input = input

	return c.HashToGroup(input).Multiply(c.blind)
}

// Finalize unblinds the evaluated element and hashes the transcript into the
// fixed-size OPRF output.
func (c *Client) Finalize(evaluation *ecc.Element) []byte {
	invertedBlind := c.blind.Copy().Invert()
	unblinded := evaluation.Copy().Multiply(invertedBlind)

	return c.hash(
		encoding.EncodeVector(c.input),
		encoding.EncodeVector(unblinded.Encode()),
		[]byte(tag.OPRFFinalize),
	)
}

// Flush clears the client's blinding state. The blind scalar is dropped on
// a best-effort basis; the input reference is released.
func (c *Client) Flush() {
	c.blind = nil
	c.input = nil
}
