// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package oprf

import (
	"bytes"
	"testing"

	"github.com/acheron-labs/opaque/internal/encoding"
	"github.com/acheron-labs/opaque/internal/tag"
)

var testSuites = []Identifier{P256Sha256, P384Sha384, P521Sha512}

func TestDomainSeparationTags(t *testing.T) {
	expected := map[Identifier]string{
		P256Sha256: "OPRFV1-\x00-P256-SHA256",
		P384Sha384: "OPRFV1-\x00-P384-SHA384",
		P521Sha512: "OPRFV1-\x00-P521-SHA512",
	}

	for id, context := range expected {
		if got := string(id.contextString()); got != context {
			t.Errorf("%s: context string %q, want %q", id.Name(), got, context)
		}

		if got := string(id.dst(tag.OPRFPointPrefix)); got != "HashToGroup-"+context {
			t.Errorf("%s: hash-to-group DST %q", id.Name(), got)
		}

		if got := string(id.dst(tag.OPRFScalarPrefix)); got != "HashToScalar-"+context {
			t.Errorf("%s: hash-to-scalar DST %q", id.Name(), got)
		}

		if got := string(id.dst(tag.DeriveKeyPairPrefix)); got != "DeriveKeyPair"+context {
			t.Errorf("%s: derive-key-pair DST %q", id.Name(), got)
		}
	}
}

// TestBlindIndependence: the protocol output must not depend on the blind.
func TestBlindIndependence(t *testing.T) {
	input := []byte("input datum")

	for _, id := range testSuites {
		t.Run(id.Name(), func(t *testing.T) {
			key := id.Group().NewScalar().Random()

			var outputs [][]byte

			for i := 0; i < 3; i++ {
				client := id.Client()
				blinded := client.Blind(input, nil)
				evaluated := id.Evaluate(key, blinded)
				outputs = append(outputs, client.Finalize(evaluated))
			}

			for i := 1; i < len(outputs); i++ {
				if !bytes.Equal(outputs[0], outputs[i]) {
					t.Fatal("output depends on the blinding scalar")
				}
			}

			if len(outputs[0]) != id.Hash().Size() {
				t.Errorf("output length %d, want %d", len(outputs[0]), id.Hash().Size())
			}
		})
	}
}

// TestDirectEvaluation: the blinded protocol must agree with the direct
// computation Hash(len(input) || input || len(N) || N || "Finalize") for
// N = key * HashToGroup(input).
func TestDirectEvaluation(t *testing.T) {
	input := []byte("input datum")

	for _, id := range testSuites {
		t.Run(id.Name(), func(t *testing.T) {
			key := id.Group().NewScalar().Random()

			client := id.Client()
			blinded := client.Blind(input, nil)
			output := client.Finalize(id.Evaluate(key, blinded))

			n := id.HashToGroup(input).Multiply(key)
			direct := id.hash(
				encoding.EncodeVector(input),
				encoding.EncodeVector(n.Encode()),
				[]byte(tag.OPRFFinalize),
			)

			if !bytes.Equal(output, direct) {
				t.Error("blinded evaluation does not match the direct computation")
			}
		})
	}
}

func TestFixedBlind(t *testing.T) {
	input := []byte("input datum")

	for _, id := range testSuites {
		t.Run(id.Name(), func(t *testing.T) {
			blind := id.Group().NewScalar().Random()

			c1 := id.Client()
			c2 := id.Client()

			b1 := c1.Blind(input, blind)
			b2 := c2.Blind(input, blind)

			if !bytes.Equal(b1.Encode(), b2.Encode()) {
				t.Error("identical blinds must produce identical blinded elements")
			}
		})
	}
}

func TestDeriveKey(t *testing.T) {
	seed := bytes.Repeat([]byte{0xa3}, 32)
	info := []byte("test key")

	for _, id := range testSuites {
		t.Run(id.Name(), func(t *testing.T) {
			k1 := id.DeriveKey(seed, info)
			k2 := id.DeriveKey(seed, info)

			if k1.IsZero() {
				t.Fatal("derived key is zero")
			}

			if !bytes.Equal(k1.Encode(), k2.Encode()) {
				t.Error("key derivation is not deterministic")
			}

			if bytes.Equal(k1.Encode(), id.DeriveKey(seed, []byte("other info")).Encode()) {
				t.Error("different info must yield different keys")
			}

			if len(k1.Encode()) != id.Group().ScalarLength() {
				t.Errorf("scalar length %d, want %d", len(k1.Encode()), id.Group().ScalarLength())
			}
		})
	}
}

func TestElementLengths(t *testing.T) {
	expected := map[Identifier]struct{ npk, nsk, nh int }{
		P256Sha256: {33, 32, 32},
		P384Sha384: {49, 48, 48},
		P521Sha512: {67, 66, 64},
	}

	for id, sizes := range expected {
		if got := id.Group().ElementLength(); got != sizes.npk {
			t.Errorf("%s: element length %d, want %d", id.Name(), got, sizes.npk)
		}

		if got := id.Group().ScalarLength(); got != sizes.nsk {
			t.Errorf("%s: scalar length %d, want %d", id.Name(), got, sizes.nsk)
		}

		if got := id.Hash().Size(); got != sizes.nh {
			t.Errorf("%s: hash length %d, want %d", id.Name(), got, sizes.nh)
		}
	}
}
