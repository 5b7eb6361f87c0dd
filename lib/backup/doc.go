// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

// Package backup creates and restores store snapshots. A snapshot
// captures every file of a store directory — token records and the
// keys/ subdirectory — into a single CBOR payload, compressed with
// zstd and optionally encrypted with an age scrypt passphrase.
//
// Unencrypted snapshots contain private key material in the clear,
// exactly like the store directory they capture; the encrypted form
// exists so snapshots can leave the machine.
package backup
