package catalog

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var singleLine = validation.Match(regexp.MustCompile(`^[^\r\n]*$`)).Error("must be a single line")

// NormalizeFields trims key and description the way the record codec does on
// read, so stored values survive a save/load cycle unchanged.
func NormalizeFields(key, description string) (string, string) {
	return strings.TrimSpace(key), strings.TrimSpace(description)
}

// ValidateEntry checks that key and description can be persisted. The result
// is a validation.Errors keyed by "key" and "description".
func ValidateEntry(key, description string) error {
	errs := validation.Errors{
		"key":         validation.Validate(key, validation.Required, singleLine),
		"description": validation.Validate(description, singleLine),
	}
	return errs.Filter()
}

// FieldErrors splits a ValidateEntry error into per-field messages.
func FieldErrors(err error) map[string]string {
	out := map[string]string{}
	var errs validation.Errors
	if errors.As(err, &errs) {
		for field, e := range errs {
			if e != nil {
				out[field] = e.Error()
			}
		}
	}
	return out
}
