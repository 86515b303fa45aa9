// Package apperr defines the error taxonomy shared by the catalog layers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrInvalid          = errors.New("invalid")
	ErrIO               = errors.New("i/o error")
	ErrMalformedVersion = errors.New("malformed version")
	ErrVersionTooNew    = errors.New("version too new")
	ErrMalformedRecord  = errors.New("malformed record")
)

// MalformedRecordError reports a catalog line that is not a KEY:DESCRIPTION
// record. Line is 1-based and counts the version line.
type MalformedRecordError struct {
	Line   int
	Text   string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("malformed record at line %d: %q", e.Line, e.Text)
	}
	return fmt.Sprintf("malformed record at line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// Is makes errors.Is(err, ErrMalformedRecord) match.
func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// RecordLine returns the line number carried by a malformed record error.
func RecordLine(err error) (int, bool) {
	var mre *MalformedRecordError
	if errors.As(err, &mre) {
		return mre.Line, true
	}
	return 0, false
}
