// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists the token set as one JSON file per token in
// a store directory, and reloads it at startup. The store is the sole
// source of truth at process start; after that, the in-memory network
// state is authoritative and the store only receives writes.
//
// Loading is deliberately tolerant: unrecognized files are skipped and
// a corrupt or schema-incomplete token file excludes only that entry,
// never the rest of the store. Files are read in lexicographic name
// order, which makes root selection deterministic when a tampered
// store contains more than one root-shaped record: the first one in
// sorted order wins.
package store
