// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"errors"
	"fmt"

	"github.com/modkit/modkit/pkg/manifest"
	"github.com/modkit/modkit/pkg/version"
)

// Error kinds reported by KindOf.
const (
	KindFormat          Kind = "format"
	KindCorrupt         Kind = "corrupt"
	KindSecurity        Kind = "security"
	KindManifest        Kind = "manifest"
	KindPolicy          Kind = "policy"
	KindFilesystem      Kind = "filesystem"
	KindVersionMismatch Kind = "version-mismatch"
	KindCanceled        Kind = "canceled"
	KindUnknown         Kind = "unknown"
)

var (
	// ErrUnsupportedFormat is returned when the archive is not one of the
	// supported formats.
	ErrUnsupportedFormat = errors.New("unsupported archive format")

	// ErrCorruptArchive is returned when the archive cannot be read.
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrPathTraversal is returned when an entry would land outside staging.
	ErrPathTraversal = errors.New("archive entry escapes the install directory")

	// ErrManifestNotFound is returned when the archive holds no mod manifest.
	ErrManifestNotFound = errors.New("archive contains no " + manifest.FileName)

	// ErrPolicyRejected is returned when the replace policy refuses the install.
	ErrPolicyRejected = errors.New("install rejected by replace policy")

	// ErrFilesystem is returned when staging or promotion fails on disk.
	ErrFilesystem = errors.New("filesystem operation failed")

	// ErrVersionMismatch is returned when the archive does not hold the
	// version the caller expected.
	ErrVersionMismatch = errors.New("archive version does not match")
)

type (
	// Kind classifies install failures for callers that report them.
	Kind string

	// SecurityError reports an archive entry rejected by the path guard.
	SecurityError struct {
		Entry  string
		Reason string
	}

	// PolicyError reports an install refused by the replace policy.
	PolicyError struct {
		ID       manifest.ModID
		Policy   Policy
		Staged   version.Version
		Existing version.Version
	}

	// FilesystemError reports a failed disk operation.
	FilesystemError struct {
		Op   string
		Path string
		Err  error
	}

	// VersionMismatchError reports an archive whose version differs from the
	// expected one.
	VersionMismatchError struct {
		ID       manifest.ModID
		Expected version.Version
		Actual   version.Version
	}
)

// Error implements the error interface.
func (e *SecurityError) Error() string {
	return fmt.Sprintf("unsafe archive entry %q: %s", e.Entry, e.Reason)
}

// Unwrap returns ErrPathTraversal.
func (e *SecurityError) Unwrap() error { return ErrPathTraversal }

// Error implements the error interface.
func (e *PolicyError) Error() string {
	if e.Existing.IsZero() && e.Policy == PolicyReject {
		return fmt.Sprintf("%s is already installed (policy %s)", e.ID, e.Policy)
	}
	return fmt.Sprintf("%s %s is already installed, archive has %s (policy %s)", e.ID, e.Existing, e.Staged, e.Policy)
}

// Unwrap returns ErrPolicyRejected.
func (e *PolicyError) Unwrap() error { return ErrPolicyRejected }

// Error implements the error interface.
func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns both ErrFilesystem and the underlying cause.
func (e *FilesystemError) Unwrap() []error { return []error{ErrFilesystem, e.Err} }

// Error implements the error interface.
func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("archive holds %s %s, expected %s", e.ID, e.Actual, e.Expected)
}

// Unwrap returns ErrVersionMismatch.
func (e *VersionMismatchError) Unwrap() error { return ErrVersionMismatch }

// KindOf classifies err. It returns the empty Kind for a nil error.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, ErrPathTraversal):
		return KindSecurity
	case errors.Is(err, ErrUnsupportedFormat):
		return KindFormat
	case errors.Is(err, ErrCorruptArchive):
		return KindCorrupt
	case errors.Is(err, ErrManifestNotFound), errors.Is(err, manifest.ErrInvalidManifest):
		return KindManifest
	case errors.Is(err, ErrPolicyRejected):
		return KindPolicy
	case errors.Is(err, ErrVersionMismatch):
		return KindVersionMismatch
	case errors.Is(err, ErrFilesystem):
		return KindFilesystem
	default:
		return KindUnknown
	}
}

func corrupt(err error) error {
	if err == nil || errors.Is(err, ErrCorruptArchive) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrCorruptArchive, err)
}

func fsError(op, path string, err error) error {
	return &FilesystemError{Op: op, Path: path, Err: err}
}
