// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

// Package network holds the in-memory state of one token hierarchy
// and implements issuance and verification over it.
//
// A Network is loaded from a store directory at Open and mutated only
// by issuance; verification reads the state without changing it. The
// design is single-threaded and synchronous: every operation runs to
// completion, and processes sharing a store directory do not observe
// each other's writes until they reload.
//
// Verification is evidence accumulation, not a single gate. A token
// can prove its legitimacy through the hash chain, through the
// master's cascaded signature, or through its issuer's signature —
// each path is independent, so verification still succeeds when some
// intermediate data is unavailable.
package network
