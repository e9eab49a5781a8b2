// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidManifest is the sentinel error wrapped by ParseError.
	ErrInvalidManifest = errors.New("invalid manifest")
	// ErrInvalidModID is the sentinel error wrapped by InvalidModIDError.
	ErrInvalidModID = errors.New("invalid mod id")
	// ErrNoVersionFile is returned when a version_files.csv names no version file.
	ErrNoVersionFile = errors.New("no version file listed")
)

type (
	// ParseError reports a malformed document or a missing/invalid field.
	// Field is empty when the document as a whole could not be decoded.
	ParseError struct {
		Field  string
		Reason string
		Cause  error
	}

	// InvalidModIDError is returned when a ModID is empty or unsafe as a directory name.
	InvalidModIDError struct {
		Value  ModID
		Reason string
	}
)

// Error implements the error interface.
func (e *ParseError) Error() string {
	msg := "invalid manifest"
	if e.Field != "" {
		msg += ": field " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns both the sentinel and the underlying cause.
func (e *ParseError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrInvalidManifest, e.Cause}
	}
	return []error{ErrInvalidManifest}
}

// Error implements the error interface.
func (e *InvalidModIDError) Error() string {
	return fmt.Sprintf("invalid mod id %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidModID for errors.Is.
func (e *InvalidModIDError) Unwrap() error { return ErrInvalidModID }

func missingField(field string) *ParseError {
	return &ParseError{Field: field, Reason: "required"}
}

func invalidField(field, reason string) *ParseError {
	return &ParseError{Field: field, Reason: reason}
}
