// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/keystone-foundation/keystone/lib/ref"
	"github.com/keystone-foundation/keystone/lib/token"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustNodeID(t *testing.T, raw string) ref.NodeID {
	t.Helper()
	id, err := ref.ParseNodeID(raw)
	if err != nil {
		t.Fatalf("ParseNodeID(%q): %v", raw, err)
	}
	return id
}

func newRoot(t *testing.T, id string) *token.Token {
	t.Helper()
	tok, err := token.New(token.Params{NodeID: mustNodeID(t, id)})
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}
	return tok
}

func newChild(t *testing.T, id string, issuer *token.Token) *token.Token {
	t.Helper()
	tok, err := token.New(token.Params{
		NodeID:          mustNodeID(t, id),
		IssuerTokenHash: issuer.TokenHash,
		IssuerID:        issuer.NodeID,
		MasterID:        issuer.MasterID,
		HierarchyLevel:  issuer.HierarchyLevel + 1,
	})
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}
	return tok
}

func TestSaveAndLoad(t *testing.T) {
	s, err := Open(t.TempDir(), discardLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	root := newRoot(t, "root")
	child := newChild(t, "child", root)
	for _, tok := range []*token.Token{root, child} {
		if err := s.Save(tok); err != nil {
			t.Fatalf("Save(%s): %v", tok.NodeID, err)
		}
	}

	result, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(result.Tokens) != 2 {
		t.Fatalf("loaded %d tokens, want 2", len(result.Tokens))
	}
	if result.Root == nil || result.Root.NodeID != root.NodeID {
		t.Errorf("Root = %v, want %v", result.Root, root.NodeID)
	}
	if len(result.Skipped) != 0 {
		t.Errorf("Skipped = %v, want none", result.Skipped)
	}

	got := result.Tokens[child.NodeID]
	if got.TokenHash != child.TokenHash || got.IssuerTokenHash != root.TokenHash {
		t.Error("reloaded child token lost its hash linkage")
	}
	if !reflect.DeepEqual(got.Paths(), child.Paths()) {
		t.Errorf("paths = %v, want %v", got.Paths(), child.Paths())
	}
}

func TestLoad_Idempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, discardLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	root := newRoot(t, "root")
	if err := s.Save(root); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(newChild(t, "child", root)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	first, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	second, err := s.Load()
	if err != nil {
		t.Fatalf("Load (second): %v", err)
	}
	if first.Root.NodeID != second.Root.NodeID {
		t.Error("root detection differs across loads")
	}
	if len(first.Tokens) != len(second.Tokens) {
		t.Error("token counts differ across loads")
	}
}

func TestLoad_SkipsCorruptAndForeignFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, discardLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Save(newRoot(t, "root")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A corrupt token file, a schema-incomplete one, and a foreign file.
	writeFile := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
	}
	writeFile("broken_token.json", "{ not json")
	writeFile("partial_token.json", `{"node_id": "partial"}`)
	writeFile("README.txt", "not a token store file")

	result, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(result.Tokens) != 1 {
		t.Errorf("loaded %d tokens, want 1 (the valid root)", len(result.Tokens))
	}
	if len(result.Skipped) != 2 {
		t.Fatalf("skipped %d records, want 2", len(result.Skipped))
	}
	for _, skipped := range result.Skipped {
		if !errors.Is(skipped.Err, ErrCorruptRecord) {
			t.Errorf("skip reason for %s = %v, want ErrCorruptRecord", skipped.File, skipped.Err)
		}
	}
}

func TestLoad_RootTieBreakIsLexicographic(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, discardLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	// Two root-shaped records; "alpha" sorts before "zeta" so it must
	// win regardless of write order.
	zeta := newRoot(t, "zeta")
	alpha := newRoot(t, "alpha")
	if err := s.Save(zeta); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(alpha); err != nil {
		t.Fatalf("Save: %v", err)
	}

	result, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if result.Root == nil || result.Root.NodeID.String() != "alpha" {
		t.Errorf("Root = %v, want alpha (lexicographic tie-break)", result.Root)
	}
	if len(result.Tokens) != 2 {
		t.Errorf("loaded %d tokens, want 2 (both roots stay loaded)", len(result.Tokens))
	}
}
