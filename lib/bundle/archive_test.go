// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"archive/tar"
	"os"

	"github.com/pierrec/lz4/v4"
)

// writeEvilArchive writes a tar+lz4 archive containing a single entry
// whose name climbs out of the extraction directory.
func writeEvilArchive(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	lz4Writer := lz4.NewWriter(out)
	tarWriter := tar.NewWriter(lz4Writer)

	payload := []byte("escape attempt")
	header := &tar.Header{
		Name:     "../outside.txt",
		Mode:     0644,
		Size:     int64(len(payload)),
		Typeflag: tar.TypeReg,
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}
	if _, err := tarWriter.Write(payload); err != nil {
		return err
	}
	if err := tarWriter.Close(); err != nil {
		return err
	}
	return lz4Writer.Close()
}
