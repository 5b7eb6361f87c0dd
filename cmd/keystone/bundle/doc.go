// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

// Package bundle implements the "keystone bundle" command group:
// exporting distribution bundles and checking their integrity.
package bundle
