package session

import "github.com/google/uuid"

// Action is a deferred step carried by a modal and released when it is
// confirmed. The set of variants is closed.
type Action interface {
	isAction()
}

// DeleteEntry removes an entry. With Checked unset it only asks for
// confirmation.
type DeleteEntry struct {
	ID      uuid.UUID
	Checked bool
}

// CommitDraft validates the open editor draft and stores it.
type CommitDraft struct{}

// LoadCatalog replaces the catalog with a file. An empty Path means the
// session's current file.
type LoadCatalog struct {
	Path string
}

// SaveCatalog writes the catalog. An empty Path means the session's current
// file.
type SaveCatalog struct {
	Path string
}

func (DeleteEntry) isAction() {}
func (CommitDraft) isAction() {}
func (LoadCatalog) isAction() {}
func (SaveCatalog) isAction() {}
