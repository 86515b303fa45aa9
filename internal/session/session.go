// Package session holds the state a UI update loop drives: the catalog, the
// modal stack, the entry editor and the search view.
package session

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/starford/keycat/internal/apperr"
	"github.com/starford/keycat/internal/catalog"
	"github.com/starford/keycat/internal/markup"
	"github.com/starford/keycat/internal/modal"
	"github.com/starford/keycat/internal/models"
	"github.com/starford/keycat/internal/search"
)

// Session is owned by a single UI loop. It is not safe for concurrent use.
type Session struct {
	store  *catalog.Store
	modals *modal.Stack[Action]
	ranker search.Ranker
	logger *slog.Logger

	path  string
	query string
	field search.Field
	draft *Draft
}

// Option configures a Session.
type Option func(*Session)

// WithStore sets the catalog store.
func WithStore(st *catalog.Store) Option {
	return func(s *Session) { s.store = st }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithRanker replaces the search strategy.
func WithRanker(r search.Ranker) Option {
	return func(s *Session) { s.ranker = r }
}

// WithField sets the initial search field.
func WithField(f search.Field) Option {
	return func(s *Session) { s.field = f }
}

// New returns a session over an empty catalog at catalog.DefaultPath.
func New(opts ...Option) *Session {
	s := &Session{
		modals: modal.NewStack[Action](),
		ranker: search.Ranker{Scorer: search.FuzzyScorer},
		logger: slog.Default(),
		path:   catalog.DefaultPath,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = catalog.New(catalog.WithLogger(s.logger))
	}
	return s
}

// Open loads path as the session's catalog. A missing file starts an empty
// catalog that saves to path. Any other failure also starts empty, shows an
// Error modal and is returned; the session then has no path, so an unreadable
// file is never overwritten by a later SaveCatalog without an explicit path.
func (s *Session) Open(path string) error {
	s.path = path
	err := s.store.Load(path)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperr.ErrNotFound):
		s.store.Reset()
		s.logger.Info("session: no catalog yet, starting empty", slog.String("path", path))
		return nil
	default:
		s.store.Reset()
		s.path = ""
		s.pushError("Could not open catalog", err)
		return err
	}
}

// Path returns the file the session loads from and saves to.
func (s *Session) Path() string { return s.path }

// Catalog returns the underlying store.
func (s *Session) Catalog() *catalog.Store { return s.store }

// Modals returns the modal stack for rendering.
func (s *Session) Modals() *modal.Stack[Action] { return s.modals }

// Apply executes a. Failures are shown as Error modals and returned.
func (s *Session) Apply(a Action) error {
	switch a := a.(type) {
	case DeleteEntry:
		return s.deleteEntry(a)
	case CommitDraft:
		return s.commitDraft()
	case LoadCatalog:
		return s.loadCatalog(a.Path)
	case SaveCatalog:
		return s.saveCatalog(a.Path)
	default:
		return fmt.Errorf("session: apply %T: %w", a, apperr.ErrInvalid)
	}
}

// Confirm dismisses the modal and returns its deferred action without
// running it.
func (s *Session) Confirm(id uuid.UUID) (Action, bool) {
	return s.dismiss(id, modal.Confirm)
}

// Cancel dismisses the modal through its cancel button.
func (s *Session) Cancel(id uuid.UUID) {
	s.dismiss(id, modal.Cancel)
}

// Close dismisses the modal without choosing.
func (s *Session) Close(id uuid.UUID) {
	s.dismiss(id, modal.Close)
}

func (s *Session) dismiss(id uuid.UUID, outcome modal.Outcome) (Action, bool) {
	var kind modal.Kind = -1
	for _, m := range s.modals.All() {
		if m.ID == id {
			kind = m.Kind
		}
	}
	a, ok := s.modals.Resolve(id, outcome)
	if kind == modal.KindEntryEditor && outcome != modal.Confirm {
		s.draft = nil
	}
	return a, ok
}

func (s *Session) deleteEntry(a DeleteEntry) error {
	e, ok := s.store.Get(a.ID)
	if !ok {
		err := fmt.Errorf("session: delete %s: %w", a.ID, apperr.ErrNotFound)
		s.pushError("Entry not found", err)
		return err
	}
	if !a.Checked {
		s.push(modal.New(modal.KindWarning,
			"Delete entry?",
			fmt.Sprintf("%q will be removed from the catalog.", e.Key),
			modal.WithAction[Action](DeleteEntry{ID: a.ID, Checked: true})))
		return nil
	}
	s.store.Remove(a.ID)
	s.logger.Debug("session: entry deleted", slog.String("id", a.ID.String()), slog.String("key", e.Key))
	return nil
}

func (s *Session) loadCatalog(path string) error {
	if path == "" {
		path = s.path
	}
	if path == "" {
		return s.noPath("load")
	}
	if err := s.store.Load(path); err != nil {
		s.pushError("Could not load catalog", err)
		return err
	}
	s.path = path
	return nil
}

func (s *Session) saveCatalog(path string) error {
	if path == "" {
		path = s.path
	}
	if path == "" {
		return s.noPath("save")
	}
	if err := s.store.Save(path); err != nil {
		s.pushError("Could not save catalog", err)
		return err
	}
	s.path = path
	return nil
}

func (s *Session) noPath(verb string) error {
	err := fmt.Errorf("session: %s: no catalog path: %w", verb, apperr.ErrInvalid)
	s.pushError("Choose a catalog file", err)
	return err
}

// OpenEditor starts editing the entry with id, or a new entry for uuid.Nil.
// It returns the id of the editor modal.
func (s *Session) OpenEditor(id uuid.UUID) (uuid.UUID, error) {
	d := Draft{ID: id}
	if id != uuid.Nil {
		e, ok := s.store.Get(id)
		if !ok {
			err := fmt.Errorf("session: edit %s: %w", id, apperr.ErrNotFound)
			s.pushError("Entry not found", err)
			return uuid.Nil, err
		}
		d.Key = e.Key
		d.Description = e.DescriptionRaw()
		d.Preview = e.Description()
	}
	s.draft = &d
	return s.pushEditor(), nil
}

// Draft returns a copy of the editor state.
func (s *Session) Draft() (Draft, bool) {
	if s.draft == nil {
		return Draft{}, false
	}
	return s.draft.clone(), true
}

// EditDraft changes one field of the open draft.
func (s *Session) EditDraft(field DraftField, value string) error {
	if s.draft == nil {
		return fmt.Errorf("session: edit draft: no open editor: %w", apperr.ErrInvalid)
	}
	s.draft.set(field, value)
	return nil
}

func (s *Session) commitDraft() error {
	if s.draft == nil {
		return fmt.Errorf("session: commit: no open editor: %w", apperr.ErrInvalid)
	}
	d := s.draft
	key, desc := catalog.NormalizeFields(d.Key, d.Description)
	if err := catalog.ValidateEntry(key, desc); err != nil {
		d.Errors = catalog.FieldErrors(err)
		_, d.KeyInvalid = d.Errors["key"]
		_, d.DescriptionInvalid = d.Errors["description"]
		s.pushEditor()
		return fmt.Errorf("session: commit: %w: %w", apperr.ErrInvalid, err)
	}

	var e models.Entry
	if d.ID == uuid.Nil {
		e = models.NewEntry(key, desc)
	} else {
		existing, ok := s.store.Get(d.ID)
		if !ok {
			s.draft = nil
			err := fmt.Errorf("session: commit %s: %w", d.ID, apperr.ErrNotFound)
			s.pushError("Entry not found", err)
			return err
		}
		e = existing
		e.Key = key
		e.SetDescription(desc)
	}
	s.store.Upsert(e)
	s.draft = nil
	s.logger.Debug("session: entry committed", slog.String("id", e.ID.String()), slog.String("key", e.Key))
	return nil
}

func (s *Session) pushEditor() uuid.UUID {
	title := "New entry"
	if s.draft.ID != uuid.Nil {
		title = "Edit entry"
	}
	return s.push(modal.New(modal.KindEntryEditor, title, s.draft.Key,
		modal.WithAction[Action](CommitDraft{})))
}

// SetQuery sets the live search query.
func (s *Session) SetQuery(q string) { s.query = q }

// Query returns the live search query.
func (s *Session) Query() string { return s.query }

// SetField selects the field the query matches.
func (s *Session) SetField(f search.Field) { s.field = f }

// Visible returns the entries to display for the current query.
func (s *Session) Visible() []models.Entry {
	return s.ranker.Rank(s.store.Entries(), s.query, s.field)
}

// ShowImage opens an Image modal for an image segment.
func (s *Session) ShowImage(seg markup.Segment) (uuid.UUID, error) {
	if seg.Kind != markup.KindImage {
		return uuid.Nil, fmt.Errorf("session: show image: %s segment: %w", seg.Kind, apperr.ErrInvalid)
	}
	return s.push(modal.New[Action](modal.KindImage, seg.Text, seg.Target)), nil
}

// Notify shows an Info modal.
func (s *Session) Notify(title, body string) uuid.UUID {
	return s.push(modal.New[Action](modal.KindInfo, title, body))
}

func (s *Session) pushError(title string, err error) {
	s.logger.Warn("session: "+title, slog.String("error", err.Error()))
	s.push(modal.New[Action](modal.KindError, title, err.Error()))
}

// push never fails: New always mints a fresh id.
func (s *Session) push(m modal.Modal[Action]) uuid.UUID {
	_ = s.modals.Push(m)
	return m.ID
}
