// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

// Package wizard implements "keystone wizard": a guided terminal flow
// for standing up a token hierarchy. It walks the operator through
// choosing a store directory, creating the master token, and issuing
// the first node tokens, with the same validation and persistence as
// the individual network commands.
package wizard
