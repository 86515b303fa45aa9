// Package entryservice serializes catalog access for the remote surfaces
// (REST API, MCP server, file watcher).
package entryservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/keycat/internal/apperr"
	"github.com/starford/keycat/internal/catalog"
	"github.com/starford/keycat/internal/models"
	"github.com/starford/keycat/internal/search"
	"github.com/starford/keycat/internal/storage"
)

// Event kinds passed to EventCallback.
const (
	EventCreated  = "created"
	EventUpdated  = "updated"
	EventDeleted  = "deleted"
	EventReloaded = "reloaded"
)

// EventCallback is notified after every successful change. id is uuid.Nil for
// EventReloaded.
type EventCallback func(kind string, id uuid.UUID)

// Service owns a catalog.Store and guards it with one mutex.
type Service struct {
	mu       sync.Mutex
	store    *catalog.Store
	files    storage.Files
	path     string
	autosave bool
	onEvent  EventCallback
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithAutosave saves the catalog after each mutation.
func WithAutosave(on bool) Option {
	return func(s *Service) { s.autosave = on }
}

// WithEventCallback registers the change listener.
func WithEventCallback(fn EventCallback) Option {
	return func(s *Service) { s.onEvent = fn }
}

// WithFiles sets the backend used to compare the file on disk with the loaded
// catalog. It should match the store's backend.
func WithFiles(f storage.Files) Option {
	return func(s *Service) { s.files = f }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a service for the catalog at path.
func New(store *catalog.Store, path string, opts ...Option) *Service {
	s := &Service{
		store:  store,
		files:  storage.Disk{},
		path:   path,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open loads the catalog. A missing file starts an empty catalog.
func (s *Service) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Load(s.path); err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		s.store.Reset()
		s.logger.Info("catalog file missing, starting empty", slog.String("path", s.path))
	}
	return nil
}

// Path returns the catalog file path.
func (s *Service) Path() string { return s.path }

// Checksum returns the checksum of the catalog bytes last loaded or saved.
func (s *Service) Checksum() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Checksum()
}

// List returns the entries matching query, ranked. An empty query lists the
// whole catalog in order.
func (s *Service) List(_ context.Context, query string, field search.Field) []models.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return search.Rank(s.store.Entries(), query, field)
}

// Get returns the entry with id.
func (s *Service) Get(_ context.Context, id uuid.UUID) (models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.store.Get(id)
	if !ok {
		return models.Entry{}, fmt.Errorf("entryservice: get %s: %w", id, apperr.ErrNotFound)
	}
	return e, nil
}

// FindByKey returns the first entry with key.
func (s *Service) FindByKey(_ context.Context, key string) (models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.store.FindByKey(key)
	if !ok {
		return models.Entry{}, fmt.Errorf("entryservice: find %q: %w", key, apperr.ErrNotFound)
	}
	return e, nil
}

// Create appends a new entry. Keys must be unique among entries created or
// renamed through the service.
func (s *Service) Create(_ context.Context, key, description string) (models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, description, err := validate(key, description)
	if err != nil {
		return models.Entry{}, fmt.Errorf("entryservice: create: %w", err)
	}
	if _, ok := s.store.FindByKey(key); ok {
		return models.Entry{}, fmt.Errorf("entryservice: create %q: %w", key, apperr.ErrAlreadyExists)
	}
	e := models.NewEntry(key, description)
	s.store.Upsert(e)
	if err := s.commit(EventCreated, e.ID); err != nil {
		return e, err
	}
	return e, nil
}

// Update replaces key and description of the entry with id, in place.
func (s *Service) Update(_ context.Context, id uuid.UUID, key, description string) (models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.store.Get(id)
	if !ok {
		return models.Entry{}, fmt.Errorf("entryservice: update %s: %w", id, apperr.ErrNotFound)
	}
	key, description, err := validate(key, description)
	if err != nil {
		return models.Entry{}, fmt.Errorf("entryservice: update: %w", err)
	}
	if other, ok := s.store.FindByKey(key); ok && other.ID != id {
		return models.Entry{}, fmt.Errorf("entryservice: update %q: %w", key, apperr.ErrAlreadyExists)
	}
	e.Key = key
	e.SetDescription(description)
	s.store.Upsert(e)
	if err := s.commit(EventUpdated, id); err != nil {
		return e, err
	}
	return e, nil
}

// Delete removes the entry with id.
func (s *Service) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.store.Get(id); !ok {
		return fmt.Errorf("entryservice: delete %s: %w", id, apperr.ErrNotFound)
	}
	s.store.Remove(id)
	return s.commit(EventDeleted, id)
}

// Save writes the catalog to its file.
func (s *Service) Save(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Save(s.path)
}

// Reload re-reads the catalog file, discarding unsaved edits.
func (s *Service) Reload(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Load(s.path); err != nil {
		return err
	}
	s.notify(EventReloaded, uuid.Nil)
	return nil
}

// ReloadIfChanged reloads when the file on disk differs from what was last
// loaded or saved. Unsaved edits are kept and the reload skipped. It reports
// whether a reload happened.
func (s *Service) ReloadIfChanged(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.files.ReadFile(s.path)
	if err != nil {
		return false, fmt.Errorf("entryservice: read %s: %w: %w", s.path, apperr.ErrIO, err)
	}
	if storage.Checksum(data) == s.store.Checksum() {
		return false, nil
	}
	if s.store.Dirty() {
		s.logger.Warn("catalog changed on disk with unsaved edits, not reloading", slog.String("path", s.path))
		return false, nil
	}
	if err := s.store.Load(s.path); err != nil {
		return false, err
	}
	s.logger.Info("catalog reloaded", slog.String("path", s.path), slog.Int("entries", s.store.Len()))
	s.notify(EventReloaded, uuid.Nil)
	return true, nil
}

// commit saves when autosave is on and then emits the event. Must hold mu.
func (s *Service) commit(kind string, id uuid.UUID) error {
	if s.autosave {
		if err := s.store.Save(s.path); err != nil {
			s.logger.Error("autosave failed", slog.String("path", s.path), slog.String("error", err.Error()))
			return fmt.Errorf("entryservice: autosave: %w", err)
		}
	}
	s.notify(kind, id)
	return nil
}

func (s *Service) notify(kind string, id uuid.UUID) {
	if s.onEvent != nil {
		s.onEvent(kind, id)
	}
}

func validate(key, description string) (string, string, error) {
	key, description = catalog.NormalizeFields(key, description)
	if err := catalog.ValidateEntry(key, description); err != nil {
		return "", "", fmt.Errorf("%w: %w", apperr.ErrInvalid, err)
	}
	return key, description, nil
}
