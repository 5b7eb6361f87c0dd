// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated identifier types for the token
// network. Identifiers are parsed once at the system boundary and
// carried as typed values afterwards, so downstream code never
// re-validates strings.
package ref
