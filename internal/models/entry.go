// Package models defines the domain types for keycat.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/starford/keycat/internal/markup"
)

// Entry is one key/description record of the catalog.
//
// The raw description is authoritative; the segment view is re-derived from it
// on every change, so the two never disagree.
type Entry struct {
	ID  uuid.UUID
	Key string

	descriptionRaw string
	description    []markup.Segment
}

// NewEntry mints a new identity for key/description.
func NewEntry(key, descriptionRaw string) Entry {
	e := Entry{ID: uuid.New(), Key: key}
	e.SetDescription(descriptionRaw)
	return e
}

// DescriptionRaw returns the persisted description text.
func (e Entry) DescriptionRaw() string { return e.descriptionRaw }

// Description returns a copy of the parsed description.
func (e Entry) Description() []markup.Segment {
	if e.description == nil {
		return nil
	}
	out := make([]markup.Segment, len(e.description))
	copy(out, e.description)
	return out
}

// SetDescription replaces the raw description and re-parses it.
func (e *Entry) SetDescription(raw string) {
	e.descriptionRaw = raw
	e.description = markup.Parse(raw)
}

// WithDescription returns a copy of e with a new description.
func (e Entry) WithDescription(raw string) Entry {
	e.SetDescription(raw)
	return e
}

// SetSegments replaces the description with the serialized form of segs.
func (e *Entry) SetSegments(segs []markup.Segment) {
	e.SetDescription(markup.Serialize(segs))
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	e.description = e.Description()
	return e
}

type entryJSON struct {
	ID             uuid.UUID        `json:"id"`
	Key            string           `json:"key"`
	DescriptionRaw string           `json:"description_raw"`
	Description    []markup.Segment `json:"description"`
}

// MarshalJSON implements json.Marshaler.
func (e Entry) MarshalJSON() ([]byte, error) {
	segs := e.description
	if segs == nil {
		segs = []markup.Segment{}
	}
	return json.Marshal(entryJSON{
		ID:             e.ID,
		Key:            e.Key,
		DescriptionRaw: e.descriptionRaw,
		Description:    segs,
	})
}

// UnmarshalJSON implements json.Unmarshaler. The segment view is always
// rebuilt from description_raw.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var v entryJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	e.ID = v.ID
	e.Key = v.Key
	e.SetDescription(v.DescriptionRaw)
	return nil
}

// FileMeta is a lightweight description of a stored file.
type FileMeta struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
