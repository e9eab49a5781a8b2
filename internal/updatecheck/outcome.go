// SPDX-License-Identifier: MPL-2.0

package updatecheck

import (
	"time"

	"github.com/modkit/modkit/internal/registry"
	"github.com/modkit/modkit/pkg/manifest"
	"github.com/modkit/modkit/pkg/version"
)

// Outcome kinds.
const (
	// OutcomeNoChecker means the mod publishes no remote version document.
	OutcomeNoChecker OutcomeKind = "no-checker"
	OutcomeUpToDate  OutcomeKind = "up-to-date"
	// OutcomeUpdateAvailable means the remote version is newer.
	OutcomeUpdateAvailable OutcomeKind = "update-available"
	// OutcomeDifferentBuild means the versions are equal but the build
	// metadata differs.
	OutcomeDifferentBuild OutcomeKind = "different-build"
	// OutcomeLocalNewer means the installed version is ahead of the remote.
	OutcomeLocalNewer OutcomeKind = "local-newer"
	// OutcomeCheckFailed means the remote document could not be fetched or
	// parsed. Err holds the cause.
	OutcomeCheckFailed OutcomeKind = "check-failed"
)

type (
	// OutcomeKind classifies the result of an update check.
	OutcomeKind string

	// Outcome is the result of checking one mod.
	Outcome struct {
		ID     manifest.ModID
		Kind   OutcomeKind
		Local  version.Version
		Remote version.Version
		// Severity is set for OutcomeUpdateAvailable.
		Severity    version.Severity
		DownloadURL string
		CheckedAt   time.Time
		Err         error
	}
)

// OutcomeKinds returns every outcome kind.
func OutcomeKinds() []OutcomeKind {
	return []OutcomeKind{
		OutcomeNoChecker, OutcomeUpToDate, OutcomeUpdateAvailable,
		OutcomeDifferentBuild, OutcomeLocalNewer, OutcomeCheckFailed,
	}
}

// Classify compares the installed version with the remote one.
func Classify(local, remote version.Version) (OutcomeKind, version.Severity) {
	switch local.Compare(remote) {
	case version.Equal:
		if !local.SameBuild(remote) {
			return OutcomeDifferentBuild, version.SeverityNone
		}
		return OutcomeUpToDate, version.SeverityNone
	case version.Less:
		return OutcomeUpdateAvailable, version.Bump(local, remote)
	default:
		return OutcomeLocalNewer, version.SeverityNone
	}
}

// HasUpdate reports whether a newer remote version exists.
func (o Outcome) HasUpdate() bool {
	return o.Kind == OutcomeUpdateAvailable
}

// Summary is a short human-readable description of o.
func (o Outcome) Summary() string {
	switch o.Kind {
	case OutcomeUpdateAvailable:
		return o.Severity.String() + " update available: " + o.Local.String() + " -> " + o.Remote.String()
	case OutcomeUpToDate:
		return "up to date (" + o.Local.String() + ")"
	case OutcomeDifferentBuild:
		return "different build: local " + o.Local.String() + ", remote " + o.Remote.String()
	case OutcomeLocalNewer:
		return "installed " + o.Local.String() + " is newer than remote " + o.Remote.String()
	case OutcomeCheckFailed:
		if o.Err != nil {
			return "check failed: " + o.Err.Error()
		}
		return "check failed"
	default:
		return "no version checker"
	}
}

// RemoteInfo converts o into the form the registry records. Failed and
// checker-less outcomes carry no remote version.
func (o Outcome) RemoteInfo() registry.RemoteInfo {
	return registry.RemoteInfo{
		Version:     o.Remote,
		DownloadURL: o.DownloadURL,
		Outcome:     string(o.Kind),
		CheckedAt:   o.CheckedAt,
	}
}
