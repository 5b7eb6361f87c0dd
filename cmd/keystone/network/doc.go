// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

// Package network implements the "keystone network" command group:
// store initialization, master creation, token issuance, verification,
// and inspection.
package network
