package modal

import (
	"errors"

	"github.com/google/uuid"
)

// ErrModalReused is returned when a modal id is pushed twice.
var ErrModalReused = errors.New("modal: id already used")

// Stack is a LIFO of modals. Only the top one receives input. It is not safe
// for concurrent use.
type Stack[A any] struct {
	items []Modal[A]
	used  map[uuid.UUID]struct{}
}

// NewStack returns an empty stack.
func NewStack[A any]() *Stack[A] {
	return &Stack[A]{used: make(map[uuid.UUID]struct{})}
}

// Push puts m on top. An id that is or was on this stack is rejected.
func (s *Stack[A]) Push(m Modal[A]) error {
	if s.used == nil {
		s.used = make(map[uuid.UUID]struct{})
	}
	if _, ok := s.used[m.ID]; ok {
		return ErrModalReused
	}
	s.used[m.ID] = struct{}{}
	s.items = append(s.items, m)
	return nil
}

// Top returns the modal receiving input.
func (s *Stack[A]) Top() (Modal[A], bool) {
	if len(s.items) == 0 {
		return Modal[A]{}, false
	}
	return s.items[len(s.items)-1], true
}

// Pop removes and returns the top modal.
func (s *Stack[A]) Pop() (Modal[A], bool) {
	m, ok := s.Top()
	if ok {
		s.items = s.items[:len(s.items)-1]
	}
	return m, ok
}

// PopByID removes the modal with id wherever it sits. Absent ids are a no-op.
func (s *Stack[A]) PopByID(id uuid.UUID) (Modal[A], bool) {
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i].ID == id {
			m := s.items[i]
			s.items = append(s.items[:i], s.items[i+1:]...)
			return m, true
		}
	}
	return Modal[A]{}, false
}

// Resolve dismisses the modal with id. Its action is returned only when the
// outcome is Confirm and one was attached; it is never run here.
func (s *Stack[A]) Resolve(id uuid.UUID, outcome Outcome) (A, bool) {
	var zero A
	m, ok := s.PopByID(id)
	if !ok || outcome != Confirm {
		return zero, false
	}
	return m.Action()
}

// Len returns the stack depth.
func (s *Stack[A]) Len() int { return len(s.items) }

// All returns the modals bottom to top, for rendering.
func (s *Stack[A]) All() []Modal[A] {
	out := make([]Modal[A], len(s.items))
	copy(out, s.items)
	return out
}
