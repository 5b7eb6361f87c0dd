// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// ArchiveSuffix is the filename suffix for packed bundles.
const ArchiveSuffix = ".tar.lz4"

// Pack archives a bundle directory into a single lz4-compressed tar
// file at destPath. Entry names are relative to the bundle directory,
// prefixed with its base name, so unpacking recreates the directory.
func Pack(bundleDir, destPath string) (err error) {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("bundle: creating archive: %w", err)
	}
	defer func() {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
	}()

	lz4Writer := lz4.NewWriter(out)
	tarWriter := tar.NewWriter(lz4Writer)

	base := filepath.Base(bundleDir)
	walkErr := filepath.WalkDir(bundleDir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		relative, err := filepath.Rel(bundleDir, path)
		if err != nil {
			return err
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(filepath.Join(base, relative))
		if err := tarWriter.WriteHeader(header); err != nil {
			return err
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		_, err = io.Copy(tarWriter, file)
		return err
	})
	if walkErr != nil {
		return fmt.Errorf("bundle: archiving %s: %w", bundleDir, walkErr)
	}

	if err := tarWriter.Close(); err != nil {
		return fmt.Errorf("bundle: finalizing tar: %w", err)
	}
	if err := lz4Writer.Close(); err != nil {
		return fmt.Errorf("bundle: finalizing lz4 frame: %w", err)
	}
	return nil
}

// Unpack extracts a packed bundle under destDir and returns the path
// of the extracted bundle directory. Entry names that would escape
// destDir are rejected.
func Unpack(archivePath, destDir string) (string, error) {
	in, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("bundle: opening archive: %w", err)
	}
	defer in.Close()

	tarReader := tar.NewReader(lz4.NewReader(in))

	var bundleDir string
	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("bundle: reading archive: %w", err)
		}

		name := filepath.FromSlash(header.Name)
		if filepath.IsAbs(name) || strings.Contains(name, "..") {
			return "", fmt.Errorf("bundle: unsafe entry name %q", header.Name)
		}
		target := filepath.Join(destDir, name)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return "", fmt.Errorf("bundle: creating %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return "", fmt.Errorf("bundle: creating %s: %w", filepath.Dir(target), err)
			}
			if bundleDir == "" {
				bundleDir = filepath.Join(destDir, strings.Split(filepath.ToSlash(name), "/")[0])
			}
			if err := extractFile(tarReader, target, header.FileInfo().Mode()); err != nil {
				return "", err
			}
		default:
			return "", fmt.Errorf("bundle: unsupported entry type %d for %q", header.Typeflag, header.Name)
		}
	}

	if bundleDir == "" {
		return "", fmt.Errorf("bundle: archive %s contains no files", archivePath)
	}
	return bundleDir, nil
}

func extractFile(r io.Reader, target string, mode os.FileMode) (err error) {
	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("bundle: creating %s: %w", target, err)
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()
	if _, err := io.Copy(file, r); err != nil {
		return fmt.Errorf("bundle: extracting %s: %w", target, err)
	}
	return nil
}
