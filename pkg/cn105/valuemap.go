// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cn105

// ValueMap is a fixed, ordered mapping between setting values and their wire bytes.
//
// Lookups never fail: an unknown value encodes to the first wire code and an
// unknown wire byte decodes to the first value.
type ValueMap[T comparable] struct {
	values []T
	codes  []byte
}

// NewValueMap creates a map from parallel value and code slices.
// Panics if the slices differ in length or are empty.
func NewValueMap[T comparable](values []T, codes []byte) ValueMap[T] {
	if len(values) != len(codes) || len(values) == 0 {
		panic("cn105: value map needs matching, non-empty values and codes")
	}
	return ValueMap[T]{values: values, codes: codes}
}

// Index returns the position of v, or -1.
func (m ValueMap[T]) Index(v T) int {
	for i, candidate := range m.values {
		if candidate == v {
			return i
		}
	}
	return -1
}

// Contains reports whether v is part of the domain.
func (m ValueMap[T]) Contains(v T) bool {
	return m.Index(v) >= 0
}

// Encode returns the wire code for v.
func (m ValueMap[T]) Encode(v T) byte {
	if i := m.Index(v); i >= 0 {
		return m.codes[i]
	}
	return m.codes[0]
}

// Decode returns the value for wire byte b.
func (m ValueMap[T]) Decode(b byte) T {
	for i, code := range m.codes {
		if code == b {
			return m.values[i]
		}
	}
	return m.values[0]
}

// Normalize returns v if it is in the domain, otherwise the default value.
func (m ValueMap[T]) Normalize(v T) T {
	if m.Contains(v) {
		return v
	}
	return m.values[0]
}

// Default returns the index-0 value.
func (m ValueMap[T]) Default() T {
	return m.values[0]
}

// Values returns a copy of the value domain in table order.
func (m ValueMap[T]) Values() []T {
	out := make([]T, len(m.values))
	copy(out, m.values)
	return out
}

// Codes returns a copy of the wire codes in table order.
func (m ValueMap[T]) Codes() []byte {
	out := make([]byte, len(m.codes))
	copy(out, m.codes)
	return out
}

// Len returns the number of entries.
func (m ValueMap[T]) Len() int {
	return len(m.values)
}
