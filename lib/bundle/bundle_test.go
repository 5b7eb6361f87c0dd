// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/keystone-foundation/keystone/lib/keyring"
	"github.com/keystone-foundation/keystone/lib/network"
	"github.com/keystone-foundation/keystone/lib/ref"
	"github.com/keystone-foundation/keystone/lib/token"
)

func mustNodeID(t *testing.T, raw string) ref.NodeID {
	t.Helper()
	id, err := ref.ParseNodeID(raw)
	if err != nil {
		t.Fatalf("ParseNodeID(%q): %v", raw, err)
	}
	return id
}

// testNetwork builds a root -> branch hierarchy in a temp store.
func testNetwork(t *testing.T) *network.Network {
	t.Helper()
	n, err := network.Open(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("network.Open: %v", err)
	}
	if _, err := n.CreateMaster(mustNodeID(t, "root")); err != nil {
		t.Fatalf("CreateMaster: %v", err)
	}
	if _, err := n.Issue(mustNodeID(t, "root"), mustNodeID(t, "branch"), ""); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return n
}

func TestExportAndVerify(t *testing.T) {
	n := testNetwork(t)
	destDir := t.TempDir()

	dir, err := Export(n, mustNodeID(t, "branch"), destDir)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	for _, name := range []string{"branch_token.json", masterKeyName, "root_public.pem", readmeName, ManifestName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("bundle missing %s: %v", name, err)
		}
	}

	manifest, err := Verify(dir)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if manifest.NodeID.String() != "branch" {
		t.Errorf("manifest node = %v, want branch", manifest.NodeID)
	}
	if _, ok := manifest.Files[ManifestName]; ok {
		t.Error("manifest must not list itself")
	}

	// The bundled token record decodes back to the live token.
	tokenJSON, err := os.ReadFile(filepath.Join(dir, "branch_token.json"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var bundled token.Token
	if err := json.Unmarshal(tokenJSON, &bundled); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	live, _ := n.Get(mustNodeID(t, "branch"))
	if bundled.TokenHash != live.TokenHash {
		t.Error("bundled token hash differs from store")
	}

	// The bundled master key verifies the bundled token, standalone.
	masterPEM, err := os.ReadFile(filepath.Join(dir, masterKeyName))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	masterKey, err := keyring.ParsePublicPEM(masterPEM)
	if err != nil {
		t.Fatalf("ParsePublicPEM: %v", err)
	}
	if err := bundled.VerifyMasterSignature(masterKey); err != nil {
		t.Errorf("bundled token should verify against bundled key: %v", err)
	}
}

func TestExport_UnknownNode(t *testing.T) {
	n := testNetwork(t)
	if _, err := Export(n, mustNodeID(t, "ghost"), t.TempDir()); !errors.Is(err, network.ErrTokenNotFound) {
		t.Errorf("Export(ghost) = %v, want ErrTokenNotFound", err)
	}
}

func TestVerify_DetectsTamper(t *testing.T) {
	n := testNetwork(t)
	dir, err := Export(n, mustNodeID(t, "branch"), t.TempDir())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	path := filepath.Join(dir, "branch_token.json")
	if err := os.WriteFile(path, []byte(`{"tampered": true}`), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Verify(dir); !errors.Is(err, ErrDigestMismatch) {
		t.Errorf("Verify after tamper = %v, want ErrDigestMismatch", err)
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	n := testNetwork(t)
	dir, err := Export(n, mustNodeID(t, "branch"), t.TempDir())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	archivePath := filepath.Join(t.TempDir(), "branch"+ArchiveSuffix)
	if err := Pack(dir, archivePath); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	unpacked, err := Unpack(archivePath, t.TempDir())
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if filepath.Base(unpacked) != "branch_bundle" {
		t.Errorf("unpacked dir = %s, want branch_bundle", unpacked)
	}

	// Integrity survives the round trip.
	if _, err := Verify(unpacked); err != nil {
		t.Errorf("Verify after unpack: %v", err)
	}
}

func TestUnpack_RejectsTraversal(t *testing.T) {
	// Hand-build an archive with an escaping entry name.
	archivePath := filepath.Join(t.TempDir(), "evil"+ArchiveSuffix)
	if err := writeEvilArchive(archivePath); err != nil {
		t.Fatalf("writeEvilArchive: %v", err)
	}
	if _, err := Unpack(archivePath, t.TempDir()); err == nil {
		t.Error("Unpack should reject entries escaping the destination")
	}
}
