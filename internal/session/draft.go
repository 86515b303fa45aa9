package session

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/starford/keycat/internal/markup"
)

// DraftField names an editable field of the entry editor.
type DraftField int

// Editor fields.
const (
	DraftKey DraftField = iota
	DraftDescription
)

func (f DraftField) String() string {
	switch f {
	case DraftKey:
		return "key"
	case DraftDescription:
		return "description"
	default:
		return fmt.Sprintf("draft_field(%d)", int(f))
	}
}

// Draft is the state of the entry editor. A zero ID means a new entry.
type Draft struct {
	ID          uuid.UUID
	Key         string
	Description string

	KeyInvalid         bool
	DescriptionInvalid bool
	Errors             map[string]string

	// Preview is the parsed description, refreshed on every edit.
	Preview []markup.Segment
}

func (d *Draft) set(field DraftField, value string) {
	switch field {
	case DraftKey:
		d.Key = value
		d.KeyInvalid = false
		delete(d.Errors, "key")
	case DraftDescription:
		d.Description = value
		d.DescriptionInvalid = false
		delete(d.Errors, "description")
		d.Preview = markup.Parse(value)
	}
}

func (d Draft) clone() Draft {
	if d.Errors != nil {
		errs := make(map[string]string, len(d.Errors))
		for k, v := range d.Errors {
			errs[k] = v
		}
		d.Errors = errs
	}
	d.Preview = append([]markup.Segment(nil), d.Preview...)
	return d
}
