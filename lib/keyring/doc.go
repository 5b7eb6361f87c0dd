// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

// Package keyring generates, persists, and loads the RSA keypairs the
// token network signs with: one master pair, plus a lazily created
// pair for every node that issues tokens.
//
// Keys live as PEM files in the store's keys/ subdirectory. Private
// keys are stored unencrypted with 0600 permissions — a known
// limitation of the on-disk format, carried deliberately: changing it
// would break compatibility with existing stores. Protect the store
// directory itself.
//
// Loading degrades gracefully: a missing or corrupt key file removes
// only that signing capability (and the verification paths that depend
// on it), never the whole keyring.
package keyring
