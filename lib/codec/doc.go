// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Keystone's standard CBOR encoding
// configuration.
//
// Keystone uses two serialization formats with a clear boundary:
//
//   - JSON for the durable token store and distribution bundles: the
//     per-token files and exported certificates are meant to be read
//     by humans and by external verifiers, so they stay in JSON.
//   - CBOR for backup snapshots: a snapshot packs the whole store
//     (token records plus key material) into a single compact binary
//     payload before compression and encryption.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every Keystone package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC
// 8949 §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations:
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
package codec
