// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package ksf

import (
	"bytes"
	"testing"
)

func TestIdentity(t *testing.T) {
	input := []byte("oprf output")

	if !bytes.Equal(Identity{}.Harden(input, 32), input) {
		t.Error("identity KSF must return its input")
	}
}

func TestArgon2id(t *testing.T) {
	params := Argon2id{MemoryKiB: 8, Iterations: 1, Parallelism: 1}
	input := []byte("oprf output")

	out := params.Harden(input, 32)

	if len(out) != 32 {
		t.Fatalf("output length %d, want 32", len(out))
	}

	if bytes.Equal(out, input[:min(len(input), 32)]) {
		t.Error("stretched output equals the input")
	}

	if !bytes.Equal(out, params.Harden(input, 32)) {
		t.Error("stretching is not deterministic")
	}

	other := Argon2id{MemoryKiB: 16, Iterations: 1, Parallelism: 1}
	if bytes.Equal(out, other.Harden(input, 32)) {
		t.Error("parameters must influence the output")
	}
}
