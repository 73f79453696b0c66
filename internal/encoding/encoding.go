// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

// Package encoding provides the byte-string primitives used throughout the
// protocol: integer-to-octet-string conversion, concatenation, xor, and
// length-prefixed vectors.
package encoding

import (
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	errInputNegative  = errors.New("negative input")
	errInputLarge     = errors.New("input is too high for length")
	errLengthTooBig   = errors.New("requested length is too big")
	errInputEmpty     = errors.New("nil or empty input")
	errPrefixTooShort = errors.New("insufficient header length for decoding")
	errTotalTooShort  = errors.New("insufficient total length for decoding")
)

// I2OSP returns the big-endian encoding of value over length bytes.
// The supported lengths are 1 to 8; a value that does not fit the requested
// width is a programming error and panics.
func I2OSP(value, length int) []byte {
	if length <= 0 || length > 8 {
		panic(errLengthTooBig)
	}

	if value < 0 {
		panic(errInputNegative)
	}

	// The bound is computed in uint64 so length 4 and above cannot overflow.
	if length < 8 && uint64(value) >= uint64(1)<<(8*uint(length)) {
		panic(errInputLarge)
	}

	var out [8]byte
	binary.BigEndian.PutUint64(out[:], uint64(value))

	return out[8-length:]
}

// OS2IP returns the integer decoded from the big-endian input.
func OS2IP(input []byte) int {
	if len(input) == 0 {
		panic(errInputEmpty)
	}

	if len(input) > 8 {
		panic(errLengthTooBig)
	}

	var padded [8]byte
	copy(padded[8-len(input):], input)

	return int(binary.BigEndian.Uint64(padded[:])) //nolint:gosec // bounded by the 8-byte cap above.
}

// Concat returns the concatenation of a and b in a new buffer.
func Concat(a, b []byte) []byte {
	e := make([]byte, 0, len(a)+len(b))
	e = append(e, a...)
	e = append(e, b...)

	return e
}

// Concat3 returns the concatenation of a, b, and c in a new buffer.
func Concat3(a, b, c []byte) []byte {
	e := make([]byte, 0, len(a)+len(b)+len(c))
	e = append(e, a...)
	e = append(e, b...)
	e = append(e, c...)

	return e
}

// Concatenate returns the concatenation of all input byte strings.
func Concatenate(input ...[]byte) []byte {
	length := 0
	for _, in := range input {
		length += len(in)
	}

	e := make([]byte, 0, length)
	for _, in := range input {
		e = append(e, in...)
	}

	return e
}

// SuffixString returns the concatenation of the input byte string and the
// string argument.
func SuffixString(a []byte, b string) []byte {
	e := make([]byte, 0, len(a)+len(b))
	e = append(e, a...)
	e = append(e, b...)

	return e
}

// Xor returns a new buffer holding the byte-wise xor of a and b, which must
// be of the same length.
func Xor(a, b []byte) []byte {
	if len(a) != len(b) {
		panic("xor requires buffers of identical length")
	}

	out := make([]byte, len(a))
	for i, ai := range a {
		out[i] = ai ^ b[i]
	}

	return out
}

// CTEqual returns whether a and b hold the same bytes, in constant time for
// inputs of identical length.
func CTEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// EncodeVectorLen returns the input prefixed with its length over the given
// number of bytes.
func EncodeVectorLen(input []byte, length int) []byte {
	return Concat(I2OSP(len(input), length), input)
}

// EncodeVector returns the input prefixed with its length over 2 bytes.
func EncodeVector(input []byte) []byte {
	return EncodeVectorLen(input, 2)
}

func decodeVectorLen(input []byte, size int) (data []byte, offset int, err error) {
	if len(input) < size {
		return nil, 0, errPrefixTooShort
	}

	dataLen := OS2IP(input[0:size])
	offset = size + dataLen

	if len(input) < offset {
		return nil, 0, errTotalTooShort
	}

	return input[size:offset], offset, nil
}

// DecodeVector decodes the first 2-byte length-prefixed vector in input, and
// returns the offset of the trailing bytes.
func DecodeVector(input []byte) (data []byte, offset int, err error) {
	data, offset, err = decodeVectorLen(input, 2)
	if err != nil {
		return nil, 0, fmt.Errorf("decoding vector: %w", err)
	}

	return data, offset, nil
}

// Zeroize overwrites the input with zero bytes. Callers use it to drop
// password material as soon as it is no longer needed.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
