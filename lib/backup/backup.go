// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package backup

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"filippo.io/age"
	"github.com/klauspost/compress/zstd"

	"github.com/keystone-foundation/keystone/lib/codec"
)

// Suffix is the filename suffix for snapshot files.
const Suffix = ".snapshot"

// Errors returned by snapshot operations.
var (
	// ErrPassphraseRequired means the snapshot is encrypted and no
	// passphrase was supplied.
	ErrPassphraseRequired = errors.New("backup: snapshot is encrypted, passphrase required")

	// ErrNotEmpty means the restore destination already contains
	// files. Restoring over live state is refused; point at a fresh
	// directory instead.
	ErrNotEmpty = errors.New("backup: restore destination is not empty")
)

// ageMagic is the first line of every age-encrypted file.
var ageMagic = []byte("age-encryption.org/v1")

// snapshot is the CBOR payload: the full file set of one store
// directory, paths relative to its root.
type snapshot struct {
	CreatedAt string         `cbor:"created_at"`
	Files     []snapshotFile `cbor:"files"`
}

type snapshotFile struct {
	Path    string `cbor:"path"`
	Mode    uint32 `cbor:"mode"`
	Content []byte `cbor:"content"`
}

// zstdEncoder and zstdDecoder are reused across calls; both are safe
// for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("backup: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("backup: zstd decoder initialization failed: " + err.Error())
	}
}

// Create snapshots storeDir into destPath. An empty passphrase writes
// a compressed but unencrypted snapshot; a non-empty one wraps the
// compressed payload in age scrypt encryption.
func Create(storeDir, destPath, passphrase string) error {
	snap := snapshot{CreatedAt: time.Now().UTC().Format(time.RFC3339)}

	walkErr := filepath.WalkDir(storeDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		relative, err := filepath.Rel(storeDir, path)
		if err != nil {
			return err
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		snap.Files = append(snap.Files, snapshotFile{
			Path:    filepath.ToSlash(relative),
			Mode:    uint32(info.Mode().Perm()),
			Content: content,
		})
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("backup: reading %s: %w", storeDir, walkErr)
	}

	// Deterministic file order: same store contents, same payload.
	sort.Slice(snap.Files, func(i, j int) bool {
		return snap.Files[i].Path < snap.Files[j].Path
	})

	payload, err := codec.Marshal(snap)
	if err != nil {
		return fmt.Errorf("backup: encoding snapshot: %w", err)
	}
	compressed := zstdEncoder.EncodeAll(payload, nil)

	output := compressed
	if passphrase != "" {
		output, err = encrypt(compressed, passphrase)
		if err != nil {
			return err
		}
	}

	if err := os.WriteFile(destPath, output, 0600); err != nil {
		return fmt.Errorf("backup: writing %s: %w", destPath, err)
	}
	return nil
}

// Restore unpacks a snapshot into destDir, which must be empty or
// absent. File modes are restored as captured, so private keys come
// back 0600.
func Restore(snapshotPath, destDir, passphrase string) error {
	raw, err := os.ReadFile(snapshotPath)
	if err != nil {
		return fmt.Errorf("backup: reading %s: %w", snapshotPath, err)
	}

	if bytes.HasPrefix(raw, ageMagic) {
		if passphrase == "" {
			return ErrPassphraseRequired
		}
		raw, err = decrypt(raw, passphrase)
		if err != nil {
			return err
		}
	}

	payload, err := zstdDecoder.DecodeAll(raw, nil)
	if err != nil {
		return fmt.Errorf("backup: decompressing snapshot: %w", err)
	}
	var snap snapshot
	if err := codec.Unmarshal(payload, &snap); err != nil {
		return fmt.Errorf("backup: decoding snapshot: %w", err)
	}

	if err := ensureEmpty(destDir); err != nil {
		return err
	}

	for _, file := range snap.Files {
		target := filepath.Join(destDir, filepath.FromSlash(file.Path))
		if !filepath.IsLocal(filepath.FromSlash(file.Path)) {
			return fmt.Errorf("backup: unsafe path %q in snapshot", file.Path)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0700); err != nil {
			return fmt.Errorf("backup: creating %s: %w", filepath.Dir(target), err)
		}
		if err := os.WriteFile(target, file.Content, os.FileMode(file.Mode)); err != nil {
			return fmt.Errorf("backup: writing %s: %w", target, err)
		}
	}
	return nil
}

// Encrypted reports whether the file at path is an encrypted snapshot.
func Encrypted(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("backup: opening %s: %w", path, err)
	}
	defer file.Close()

	prefix := make([]byte, len(ageMagic))
	if _, err := io.ReadFull(file, prefix); err != nil {
		// Shorter than the magic: whatever it is, not encrypted.
		return false, nil
	}
	return bytes.Equal(prefix, ageMagic), nil
}

func encrypt(plaintext []byte, passphrase string) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("backup: preparing encryption: %w", err)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipient)
	if err != nil {
		return nil, fmt.Errorf("backup: creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("backup: encrypting snapshot: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("backup: finalizing encryption: %w", err)
	}
	return ciphertext.Bytes(), nil
}

func decrypt(ciphertext []byte, passphrase string) ([]byte, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("backup: preparing decryption: %w", err)
	}
	reader, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("backup: decrypting snapshot: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("backup: reading decrypted snapshot: %w", err)
	}
	return plaintext, nil
}

func ensureEmpty(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return os.MkdirAll(dir, 0700)
	}
	if err != nil {
		return fmt.Errorf("backup: reading %s: %w", dir, err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("%w: %s", ErrNotEmpty, dir)
	}
	return nil
}
