// Package ioutils provides the file system helpers used when writing the
// database and the transcoded songs.
//
// This package contains functions for:
//   - Directory creation
//   - Atomic file replacement
//
// # Directories
//
//	err := ioutils.EnsureDir(afero.NewOsFs(), "./output/0000")
//
// # Atomic Writes
//
// WriteFileAtomic writes to a uniquely named temporary file next to the
// target and renames it into place, so readers never see a half-written
// file:
//
//	err := ioutils.WriteFileAtomic(afero.NewOsFs(), "./output/ST.DB", data)
package ioutils
