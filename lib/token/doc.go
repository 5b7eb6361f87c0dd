// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

// Package token defines the credential record for one node in the
// hierarchy: its identity, its hash link to the issuing token, and up
// to two RSA-PSS signatures (master and issuer) that give the token
// verification paths independent of the chain.
//
// A token is immutable after construction. Its content hash is
// computed exactly once and serves as the token's primary key; any
// later divergence between hash and content is tamper evidence for
// the verifier, never something to recompute away.
package token
