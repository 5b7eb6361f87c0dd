// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/keystone-foundation/keystone/lib/ref"
	"github.com/keystone-foundation/keystone/lib/token"
)

// TokenSuffix is the filename suffix for persisted token records.
const TokenSuffix = "_token.json"

// ErrCorruptRecord classifies a token file that could not be read or
// decoded. Load never fails on it; the record lands in the load
// result's Skipped list wrapping this sentinel.
var ErrCorruptRecord = errors.New("store: corrupt token record")

// Store is a directory-backed token store.
type Store struct {
	dir    string
	logger *slog.Logger
}

// Open ensures the store directory exists and returns a Store over it.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("store: creating %s: %w", dir, err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the store directory path.
func (s *Store) Dir() string { return s.dir }

// SkippedRecord describes one token file excluded during Load.
type SkippedRecord struct {
	File string
	Err  error
}

// LoadResult is the outcome of reading a store directory.
type LoadResult struct {
	// Tokens maps node IDs to their loaded tokens.
	Tokens map[ref.NodeID]*token.Token

	// Root is the registered root token: the first root-shaped record
	// in lexicographic filename order. Nil when the store has none.
	Root *token.Token

	// Skipped lists the records excluded as corrupt or conflicting.
	Skipped []SkippedRecord
}

// Load reads every token file in the store directory. Files that do
// not carry the token suffix are ignored; files that fail to decode
// are skipped individually and reported, wrapping ErrCorruptRecord.
func (s *Store) Load() (*LoadResult, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("store: reading %s: %w", s.dir, err)
	}

	result := &LoadResult{Tokens: make(map[ref.NodeID]*token.Token)}

	// os.ReadDir returns entries sorted by filename, which fixes the
	// root tie-break order.
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, TokenSuffix) {
			continue
		}

		loaded, err := s.loadFile(name)
		if err != nil {
			s.logger.Warn("skipping token record", "file", name, "error", err)
			result.Skipped = append(result.Skipped, SkippedRecord{File: name, Err: err})
			continue
		}

		if _, exists := result.Tokens[loaded.NodeID]; exists {
			err := fmt.Errorf("%w: duplicate record for node %s", ErrCorruptRecord, loaded.NodeID)
			s.logger.Warn("skipping token record", "file", name, "error", err)
			result.Skipped = append(result.Skipped, SkippedRecord{File: name, Err: err})
			continue
		}

		result.Tokens[loaded.NodeID] = loaded
		if loaded.IsRoot() && result.Root == nil {
			result.Root = loaded
		}
	}

	return result, nil
}

func (s *Store) loadFile(name string) (*token.Token, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	var loaded token.Token
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return &loaded, nil
}

// Save persists one token. The write goes through a temporary file and
// a rename, so a crash never leaves a half-written record behind.
func (s *Store) Save(t *token.Token) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encoding token %s: %w", t.NodeID, err)
	}
	data = append(data, '\n')

	final := filepath.Join(s.dir, t.NodeID.String()+TokenSuffix)
	temp := final + ".tmp"
	if err := os.WriteFile(temp, data, 0644); err != nil {
		return fmt.Errorf("store: writing token %s: %w", t.NodeID, err)
	}
	if err := os.Rename(temp, final); err != nil {
		os.Remove(temp)
		return fmt.Errorf("store: committing token %s: %w", t.NodeID, err)
	}
	return nil
}
