// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

// Package bundle builds distribution bundles: the self-contained file
// sets a node hands to an external verifier. A bundle carries the
// node's token record, the master public key (and the issuer's, when
// available), a README with verification instructions, and a manifest
// of BLAKE3 digests covering every file so tampering in transit is
// detectable.
//
// Bundles are plain directories so their contents stay inspectable;
// Pack and Unpack convert between a bundle directory and a single
// tar+lz4 archive for transfer.
package bundle
