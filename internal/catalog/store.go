// Package catalog holds the in-memory, ordered collection of entries and
// orchestrates loading and saving it through the record codec.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/keycat/internal/apperr"
	"github.com/starford/keycat/internal/models"
	"github.com/starford/keycat/internal/record"
	"github.com/starford/keycat/internal/storage"
)

// DefaultPath is the catalog file used when none is configured.
const DefaultPath = "data.txt"

// Store is a single-writer catalog. It is not safe for concurrent use.
type Store struct {
	files  storage.Files
	logger *slog.Logger

	version  int
	entries  []models.Entry
	checksum string
	dirty    bool
}

// Option configures a Store.
type Option func(*Store)

// WithFiles sets the file backend (defaults to storage.Disk).
func WithFiles(f storage.Files) Option {
	return func(s *Store) { s.files = f }
}

// WithLogger sets the logger (defaults to slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New returns an empty catalog at the current format version.
func New(opts ...Option) *Store {
	s := &Store{
		files:   storage.Disk{},
		logger:  slog.Default(),
		version: record.CurrentVersion,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the whole catalog with the contents of path. Unsaved edits are
// discarded. On error the catalog is left unchanged.
func (s *Store) Load(path string) error {
	data, err := s.files.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("catalog: load %s: %w", path, apperr.ErrNotFound)
		}
		return fmt.Errorf("catalog: load %s: %w: %w", path, apperr.ErrIO, err)
	}
	version, entries, err := record.Read(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("catalog: load %s: %w", path, err)
	}

	s.version = version
	s.entries = entries
	s.checksum = storage.Checksum(data)
	s.dirty = false
	s.logger.Debug("catalog: loaded",
		slog.String("path", path),
		slog.Int("version", version),
		slog.Int("entries", len(entries)))
	return nil
}

// Save writes the catalog to path at the current format version. The write is
// atomic; on failure the previous file is untouched. An entry whose key is
// blank cannot be read back, so Save refuses the whole catalog with
// apperr.ErrInvalid before touching the file.
func (s *Store) Save(path string) error {
	for _, e := range s.entries {
		if strings.TrimSpace(e.Key) == "" {
			return fmt.Errorf("catalog: save %s: entry %s: %w: empty key", path, e.ID, apperr.ErrInvalid)
		}
	}
	var buf bytes.Buffer
	if err := record.Write(&buf, record.CurrentVersion, s.entries); err != nil {
		return fmt.Errorf("catalog: save %s: %w", path, err)
	}
	data := buf.Bytes()
	if err := s.files.WriteFile(path, data); err != nil {
		return fmt.Errorf("catalog: save %s: %w: %w", path, apperr.ErrIO, err)
	}
	s.version = record.CurrentVersion
	s.checksum = storage.Checksum(data)
	s.dirty = false
	s.logger.Debug("catalog: saved", slog.String("path", path), slog.Int("entries", len(s.entries)))
	return nil
}

// Reset empties the catalog.
func (s *Store) Reset() {
	s.version = record.CurrentVersion
	s.entries = nil
	s.checksum = ""
	s.dirty = false
}

// Upsert replaces the entry with the same id in place, or appends e.
func (s *Store) Upsert(e models.Entry) {
	e = e.Clone()
	s.dirty = true
	if i := s.index(e.ID); i >= 0 {
		s.entries[i].Key = e.Key
		s.entries[i].SetDescription(e.DescriptionRaw())
		return
	}
	s.entries = append(s.entries, e)
}

// Remove deletes the entry with id. Removing an absent id is a no-op.
func (s *Store) Remove(id uuid.UUID) {
	i := s.index(id)
	if i < 0 {
		return
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	s.dirty = true
}

// Entries returns a copy of the entries in catalog order.
func (s *Store) Entries() []models.Entry {
	out := make([]models.Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Clone()
	}
	return out
}

// Get returns the entry with id.
func (s *Store) Get(id uuid.UUID) (models.Entry, bool) {
	if i := s.index(id); i >= 0 {
		return s.entries[i].Clone(), true
	}
	return models.Entry{}, false
}

// FindByKey returns the first entry whose key equals key.
func (s *Store) FindByKey(key string) (models.Entry, bool) {
	for _, e := range s.entries {
		if e.Key == key {
			return e.Clone(), true
		}
	}
	return models.Entry{}, false
}

// Len returns the number of entries.
func (s *Store) Len() int { return len(s.entries) }

// Version returns the format version of the last loaded or saved file.
func (s *Store) Version() int { return s.version }

// Checksum returns the checksum of the bytes last loaded or saved.
func (s *Store) Checksum() string { return s.checksum }

// Dirty reports whether there are edits not yet saved.
func (s *Store) Dirty() bool { return s.dirty }

func (s *Store) index(id uuid.UUID) int {
	for i := range s.entries {
		if s.entries[i].ID == id {
			return i
		}
	}
	return -1
}
