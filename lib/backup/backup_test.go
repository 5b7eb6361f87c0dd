// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package backup

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/keystone-foundation/keystone/lib/network"
	"github.com/keystone-foundation/keystone/lib/ref"
)

func mustNodeID(t *testing.T, raw string) ref.NodeID {
	t.Helper()
	id, err := ref.ParseNodeID(raw)
	if err != nil {
		t.Fatalf("ParseNodeID(%q): %v", raw, err)
	}
	return id
}

// populatedStore builds a store with a root and one issued node, and
// returns its directory.
func populatedStore(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	n, err := network.Open(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("network.Open: %v", err)
	}
	if _, err := n.CreateMaster(mustNodeID(t, "root")); err != nil {
		t.Fatalf("CreateMaster: %v", err)
	}
	if _, err := n.Issue(mustNodeID(t, "root"), mustNodeID(t, "branch"), ""); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return dir
}

// restoredVerifies opens a restored store and checks the hierarchy
// still verifies end to end.
func restoredVerifies(t *testing.T, dir string) {
	t.Helper()
	n, err := network.Open(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("network.Open (restored): %v", err)
	}
	if n.Len() != 2 {
		t.Fatalf("restored store has %d tokens, want 2", n.Len())
	}
	report, err := n.VerifyHybrid(mustNodeID(t, "branch"))
	if err != nil {
		t.Fatalf("VerifyHybrid: %v", err)
	}
	if !report.Valid {
		t.Error("restored hierarchy should verify")
	}
}

func TestCreateRestore_Plain(t *testing.T) {
	storeDir := populatedStore(t)
	snapshotPath := filepath.Join(t.TempDir(), "store"+Suffix)

	if err := Create(storeDir, snapshotPath, ""); err != nil {
		t.Fatalf("Create: %v", err)
	}

	encrypted, err := Encrypted(snapshotPath)
	if err != nil {
		t.Fatalf("Encrypted: %v", err)
	}
	if encrypted {
		t.Error("snapshot without passphrase should not be encrypted")
	}

	destDir := filepath.Join(t.TempDir(), "restored")
	if err := Restore(snapshotPath, destDir, ""); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	restoredVerifies(t, destDir)

	// Private key permissions survive the round trip.
	info, err := os.Stat(filepath.Join(destDir, "keys", "master_private.pem"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("restored private key mode = %o, want 0600", info.Mode().Perm())
	}
}

func TestCreateRestore_Encrypted(t *testing.T) {
	storeDir := populatedStore(t)
	snapshotPath := filepath.Join(t.TempDir(), "store"+Suffix)

	if err := Create(storeDir, snapshotPath, "correct horse"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	encrypted, err := Encrypted(snapshotPath)
	if err != nil {
		t.Fatalf("Encrypted: %v", err)
	}
	if !encrypted {
		t.Fatal("snapshot with passphrase should be encrypted")
	}

	// No passphrase: refused before any decryption attempt.
	if err := Restore(snapshotPath, filepath.Join(t.TempDir(), "a"), ""); !errors.Is(err, ErrPassphraseRequired) {
		t.Errorf("Restore without passphrase = %v, want ErrPassphraseRequired", err)
	}

	// Wrong passphrase: decryption fails.
	if err := Restore(snapshotPath, filepath.Join(t.TempDir(), "b"), "wrong"); err == nil {
		t.Error("Restore with wrong passphrase should fail")
	}

	destDir := filepath.Join(t.TempDir(), "restored")
	if err := Restore(snapshotPath, destDir, "correct horse"); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	restoredVerifies(t, destDir)
}

func TestRestore_RefusesNonEmptyDestination(t *testing.T) {
	storeDir := populatedStore(t)
	snapshotPath := filepath.Join(t.TempDir(), "store"+Suffix)
	if err := Create(storeDir, snapshotPath, ""); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Restoring over the live store is the obvious mistake to refuse.
	if err := Restore(snapshotPath, storeDir, ""); !errors.Is(err, ErrNotEmpty) {
		t.Errorf("Restore into live store = %v, want ErrNotEmpty", err)
	}
}
