// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

// Package backup implements the "keystone backup" command group:
// creating and restoring store snapshots.
package backup
