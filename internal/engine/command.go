// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"errors"
	"fmt"

	"github.com/modkit/modkit/internal/installer"
	"github.com/modkit/modkit/pkg/manifest"
)

// Command kinds.
const (
	CmdInstall      CommandKind = "install"
	CmdUpdate       CommandKind = "update"
	CmdUninstall    CommandKind = "uninstall"
	CmdCancel       CommandKind = "cancel"
	CmdCheckUpdates CommandKind = "check-updates"
	CmdSetEnabled   CommandKind = "set-enabled"
	CmdSnapshot     CommandKind = "snapshot"
)

// ErrInvalidCommand is the sentinel wrapped by CommandError.
var ErrInvalidCommand = errors.New("invalid command")

type (
	// CommandKind names a command.
	CommandKind string

	// Command is a request from a client. Which fields are read depends on
	// Kind.
	Command struct {
		Kind CommandKind
		// Req is the caller's correlation id, echoed on accepted and on
		// failures that happen before an operation exists.
		Req string

		// Archive is the path of the archive to install.
		Archive string
		Format  string
		Policy  string
		Enable  bool

		// ID is the target of update, uninstall and set-enabled.
		ID      manifest.ModID
		Enabled bool

		// IDs limits check-updates; empty means every installed mod.
		IDs []manifest.ModID

		// Op is the operation to cancel.
		Op string
	}

	// CommandError describes why a command was refused.
	CommandError struct {
		Kind   CommandKind
		Reason string
	}
)

// Error implements the error interface.
func (e *CommandError) Error() string {
	if e.Kind == "" {
		return "invalid command: " + e.Reason
	}
	return fmt.Sprintf("invalid %s command: %s", e.Kind, e.Reason)
}

// Unwrap returns ErrInvalidCommand for errors.Is.
func (e *CommandError) Unwrap() error { return ErrInvalidCommand }

// CommandKinds returns every command kind.
func CommandKinds() []CommandKind {
	return []CommandKind{CmdInstall, CmdUpdate, CmdUninstall, CmdCancel, CmdCheckUpdates, CmdSetEnabled, CmdSnapshot}
}

// Validate checks that c carries what its kind needs.
func (c Command) Validate() error {
	invalid := func(reason string) error {
		return &CommandError{Kind: c.Kind, Reason: reason}
	}
	switch c.Kind {
	case CmdInstall:
		if c.Archive == "" {
			return invalid("archive path is required")
		}
		if c.Format != "" {
			if _, err := installer.ParseFormat(c.Format); err != nil {
				return invalid(err.Error())
			}
		}
		if c.Policy != "" {
			if _, err := installer.ParsePolicy(c.Policy); err != nil {
				return invalid(err.Error())
			}
		}
	case CmdUpdate, CmdUninstall, CmdSetEnabled:
		if err := c.ID.Validate(); err != nil {
			return invalid(err.Error())
		}
	case CmdCheckUpdates:
		for _, id := range c.IDs {
			if err := id.Validate(); err != nil {
				return invalid(err.Error())
			}
		}
	case CmdCancel:
		if c.Op == "" {
			return invalid("operation id is required")
		}
	case CmdSnapshot:
	case "":
		return invalid("missing command kind")
	default:
		return invalid(fmt.Sprintf("unknown command kind %q", c.Kind))
	}
	return nil
}
