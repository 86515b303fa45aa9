// Package modal implements the stack of dialogs shown over the catalog view.
//
// A modal may carry a deferred action. The stack only stores it and hands it
// back when the modal is confirmed; running it is the caller's job.
package modal

import (
	"fmt"

	"github.com/google/uuid"
)

// DefaultWidth is the width used when a modal does not set one.
const DefaultWidth = 400

// Kind is the visual role of a modal.
type Kind int

// Modal kinds.
const (
	KindInfo Kind = iota
	KindWarning
	KindError
	KindEntryEditor
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindInfo:
		return "info"
	case KindWarning:
		return "warning"
	case KindError:
		return "error"
	case KindEntryEditor:
		return "entry_editor"
	case KindImage:
		return "image"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is how the user dismissed a modal.
type Outcome int

// Dismissal outcomes.
const (
	Confirm Outcome = iota
	Cancel
	Close
)

func (o Outcome) String() string {
	switch o {
	case Confirm:
		return "confirm"
	case Cancel:
		return "cancel"
	case Close:
		return "close"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Modal is one dialog. A is the deferred action type.
type Modal[A any] struct {
	ID          uuid.UUID
	Kind        Kind
	Title       string
	Body        string
	Width       int
	ShowConfirm bool
	ShowCancel  bool

	action    A
	hasAction bool
}

// Option configures a Modal.
type Option[A any] func(*Modal[A])

// WithWidth overrides the default width. Non-positive values are ignored.
func WithWidth[A any](w int) Option[A] {
	return func(m *Modal[A]) {
		if w > 0 {
			m.Width = w
		}
	}
}

// WithConfirm toggles the confirm button.
func WithConfirm[A any](show bool) Option[A] {
	return func(m *Modal[A]) { m.ShowConfirm = show }
}

// WithCancel toggles the cancel button.
func WithCancel[A any](show bool) Option[A] {
	return func(m *Modal[A]) { m.ShowCancel = show }
}

// WithAction attaches the action released when the modal is confirmed.
func WithAction[A any](a A) Option[A] {
	return func(m *Modal[A]) {
		m.action = a
		m.hasAction = true
	}
}

// New builds a modal with a fresh id and the button layout of its kind.
func New[A any](kind Kind, title, body string, opts ...Option[A]) Modal[A] {
	m := Modal[A]{
		ID:    uuid.New(),
		Kind:  kind,
		Title: title,
		Body:  body,
		Width: DefaultWidth,
	}
	switch kind {
	case KindWarning, KindEntryEditor:
		m.ShowConfirm, m.ShowCancel = true, true
	case KindImage:
	default:
		m.ShowConfirm = true
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Action returns the deferred action, if any.
func (m Modal[A]) Action() (A, bool) {
	return m.action, m.hasAction
}
