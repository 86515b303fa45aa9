// Package storage provides file access for the catalog file and its asset
// directory. Every write is atomic: temp file, fsync, rename.
package storage

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/starford/keycat/internal/models"
)

// Provider is the interface for asset directory operations. Paths are relative
// to the provider root.
type Provider interface {
	// List returns metadata for every file under dir.
	List(dir string) ([]models.FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Root returns the absolute provider root.
	Root() string
}

// Files reads and writes individual files by path, such as the catalog file.
type Files interface {
	ReadFile(path string) ([]byte, error)
	// WriteFile atomically replaces path with content. On failure the
	// previous file is left untouched.
	WriteFile(path string, content []byte) error
	Stat(path string) (models.FileMeta, error)
}

// Checksum returns the hex-encoded SHA-256 digest of data. Catalog reloads
// compare it to tell external edits from the store's own writes.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
