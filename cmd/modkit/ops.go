// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/modkit/modkit/internal/engine"
	"github.com/modkit/modkit/internal/issue"
)

const shutdownTimeout = 10 * time.Second

// OperationError is a failed engine operation as reported by its failed event.
type OperationError struct {
	Command engine.CommandKind
	Op      string
	// Kind is the engine failure kind, e.g. "policy" or "network".
	Kind    string
	Message string
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	return e.Message
}

// run dispatches cmd and blocks until its operation completes or fails.
// progress, when non-nil, receives the operation's progress events. If ctx
// ends first the operation is cancelled and its final event still awaited.
func (s *session) run(ctx context.Context, cmd engine.Command, progress func(engine.Event)) (engine.Event, error) {
	cmd.Req = uuid.NewString()
	final := make(chan engine.Event, 1)
	unsubscribe := s.engine.Subscribe(func(ev engine.Event) {
		if ev.Req != cmd.Req {
			return
		}
		switch ev.Kind {
		case engine.EventProgress:
			if progress != nil {
				progress(ev)
			}
		case engine.EventCompleted, engine.EventFailed:
			select {
			case final <- ev:
			default:
			}
		}
	})
	defer unsubscribe()

	op, err := s.engine.Dispatch(cmd)
	if err != nil {
		return engine.Event{}, err
	}

	var ev engine.Event
	select {
	case ev = <-final:
	case <-ctx.Done():
		s.logger.Info("interrupted, cancelling", "op", op)
		_ = s.engine.Cancel(op)
		ev = <-final
	}
	if ev.Kind == engine.EventFailed {
		return ev, &OperationError{Command: cmd.Kind, Op: ev.Op, Kind: ev.FailKind, Message: ev.Message}
	}
	return ev, nil
}

// operationFailure wraps err into an actionable error for operation on
// resource, attaching the issue guide matching its failure kind.
func operationFailure(operation, resource string, err error) error {
	ec := issue.NewErrorContext().
		WithOperation(operation).
		WithResource(resource).
		Wrap(err)

	var opErr *OperationError
	if errors.As(err, &opErr) {
		if guide := issue.ForKind(opErr.Kind); guide != nil {
			ec = ec.WithIssue(guide.Id())
		}
		if hint := failureHint(opErr.Kind); hint != "" {
			ec = ec.WithSuggestion(hint)
		}
	}
	return ec.BuildError()
}

func failureHint(kind string) string {
	switch kind {
	case "policy":
		return "Use --policy always-replace to overwrite the installed copy"
	case "format":
		return "Pass --format zip|tar|tar.gz|tar.xz|rar if the file extension is misleading"
	case "not-found":
		return "Run 'modkit list' to see installed mod ids"
	case "network":
		return "Check your connection and the mod's version file URL"
	case "no-download":
		return "Download the update manually from the mod's forum thread"
	case "invalid-command":
		return "Run the command with --help to see accepted values"
	default:
		return ""
	}
}
