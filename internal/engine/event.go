// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"errors"

	"github.com/modkit/modkit/internal/installer"
	"github.com/modkit/modkit/internal/registry"
	"github.com/modkit/modkit/internal/updatecheck"
)

// Event kinds.
const (
	EventAccepted  EventKind = "accepted"
	EventProgress  EventKind = "progress"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventSnapshot  EventKind = "snapshot"
)

// Failure kinds beyond installer.Kind.
const (
	FailInvalidCommand = "invalid-command"
	FailNotFound       = "not-found"
	FailNetwork        = "network"
	FailNoDownload     = "no-download"
	FailShutdown       = "shutdown"
)

// StageDownload is the progress stage of an update's download.
const StageDownload = "download"

// StageCheck is the progress stage of an update check batch.
const StageCheck = "check"

type (
	// EventKind names an event.
	EventKind string

	// Event is delivered to subscribers. Which fields are set depends on Kind.
	Event struct {
		Kind    EventKind
		Req     string
		Op      string
		Command CommandKind

		// Progress.
		Stage string
		Done  int64
		Total int64
		Entry string

		// Completed.
		Summary  string
		Mod      *registry.InstalledMod
		Outcomes []updatecheck.Outcome

		// Failed.
		FailKind string
		Message  string

		Snapshot *registry.Snapshot
	}
)

// FailureKind classifies err for a failed event.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return string(installer.KindCanceled)
	case errors.Is(err, ErrInvalidCommand):
		return FailInvalidCommand
	case errors.Is(err, ErrShutdown):
		return FailShutdown
	case errors.Is(err, ErrNoDownload):
		return FailNoDownload
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, ErrUnknownOperation):
		return FailNotFound
	case errors.Is(err, updatecheck.ErrFetch):
		return FailNetwork
	default:
		return string(installer.KindOf(err))
	}
}
