// SPDX-License-Identifier: MPL-2.0

package bridge

import (
	"fmt"

	"github.com/modkit/modkit/internal/engine"
	"github.com/modkit/modkit/internal/registry"
	"github.com/modkit/modkit/internal/updatecheck"
	"github.com/modkit/modkit/pkg/manifest"
)

// FailProtocol is the failure kind of frames that could not be decoded.
const FailProtocol = "protocol"

type (
	// InstallBody is the body of an install command.
	InstallBody struct {
		Archive string `cbor:"archive"`
		Format  string `cbor:"format,omitempty"`
		Policy  string `cbor:"policy,omitempty"`
		Enable  bool   `cbor:"enable,omitempty"`
	}

	// ModBody names a single mod (update, uninstall).
	ModBody struct {
		ID string `cbor:"id"`
	}

	// SetEnabledBody is the body of a set-enabled command.
	SetEnabledBody struct {
		ID      string `cbor:"id"`
		Enabled bool   `cbor:"enabled"`
	}

	// CheckUpdatesBody is the body of a check-updates command. No ids means
	// every installed mod.
	CheckUpdatesBody struct {
		IDs []string `cbor:"ids,omitempty"`
	}

	// ProgressBody is the body of a progress event.
	ProgressBody struct {
		Stage string `cbor:"stage"`
		Done  int64  `cbor:"done"`
		Total int64  `cbor:"total"`
		Entry string `cbor:"entry,omitempty"`
	}

	// CompletedBody is the body of a completed event.
	CompletedBody struct {
		Command  string        `cbor:"command"`
		Summary  string        `cbor:"summary"`
		Mod      *ModInfo      `cbor:"mod,omitempty"`
		Outcomes []OutcomeInfo `cbor:"outcomes,omitempty"`
	}

	// FailedBody is the body of a failed event.
	FailedBody struct {
		Command string `cbor:"command,omitempty"`
		Kind    string `cbor:"kind"`
		Message string `cbor:"message"`
	}

	// SnapshotBody is the body of a snapshot event.
	SnapshotBody struct {
		Mods        []ModInfo      `cbor:"mods"`
		Conflicts   []ConflictInfo `cbor:"conflicts"`
		GameVersion string         `cbor:"gameVersion,omitempty"`
		Generation  uint64         `cbor:"generation"`
	}

	// ModInfo is the wire form of an installed mod.
	ModInfo struct {
		ID            string   `cbor:"id"`
		Name          string   `cbor:"name"`
		Version       string   `cbor:"version"`
		Dir           string   `cbor:"dir"`
		Enabled       bool     `cbor:"enabled"`
		Author        string   `cbor:"author,omitempty"`
		Dependencies  []string `cbor:"dependencies,omitempty"`
		RemoteVersion string   `cbor:"remoteVersion,omitempty"`
		RemoteOutcome string   `cbor:"remoteOutcome,omitempty"`
	}

	// ConflictInfo is the wire form of a resolver conflict.
	ConflictInfo struct {
		Kind   string   `cbor:"kind"`
		ID     string   `cbor:"id"`
		Dir    string   `cbor:"dir"`
		Others []string `cbor:"others,omitempty"`
		Detail string   `cbor:"detail"`
	}

	// OutcomeInfo is the wire form of an update check outcome.
	OutcomeInfo struct {
		ID          string `cbor:"id"`
		Kind        string `cbor:"kind"`
		Local       string `cbor:"local,omitempty"`
		Remote      string `cbor:"remote,omitempty"`
		Severity    string `cbor:"severity,omitempty"`
		DownloadURL string `cbor:"downloadURL,omitempty"`
		Error       string `cbor:"error,omitempty"`
	}
)

// CommandEnvelope encodes cmd for the wire.
func CommandEnvelope(cmd engine.Command) (Envelope, error) {
	var body any
	switch cmd.Kind {
	case engine.CmdInstall:
		body = InstallBody{Archive: cmd.Archive, Format: cmd.Format, Policy: cmd.Policy, Enable: cmd.Enable}
	case engine.CmdUpdate, engine.CmdUninstall:
		body = ModBody{ID: string(cmd.ID)}
	case engine.CmdSetEnabled:
		body = SetEnabledBody{ID: string(cmd.ID), Enabled: cmd.Enabled}
	case engine.CmdCheckUpdates:
		ids := make([]string, len(cmd.IDs))
		for i, id := range cmd.IDs {
			ids[i] = string(id)
		}
		body = CheckUpdatesBody{IDs: ids}
	}
	return NewEnvelope(string(cmd.Kind), cmd.Req, cmd.Op, body)
}

// CommandFromEnvelope decodes a command frame. Field validation is left to
// the engine.
func CommandFromEnvelope(env Envelope) (engine.Command, error) {
	cmd := engine.Command{Kind: engine.CommandKind(env.Kind), Req: env.Req, Op: env.Op}
	switch cmd.Kind {
	case engine.CmdInstall:
		var b InstallBody
		if err := env.DecodeBody(&b); err != nil {
			return cmd, err
		}
		cmd.Archive, cmd.Format, cmd.Policy, cmd.Enable = b.Archive, b.Format, b.Policy, b.Enable
	case engine.CmdUpdate, engine.CmdUninstall:
		var b ModBody
		if err := env.DecodeBody(&b); err != nil {
			return cmd, err
		}
		cmd.ID = manifest.ModID(b.ID)
	case engine.CmdSetEnabled:
		var b SetEnabledBody
		if err := env.DecodeBody(&b); err != nil {
			return cmd, err
		}
		cmd.ID, cmd.Enabled = manifest.ModID(b.ID), b.Enabled
	case engine.CmdCheckUpdates:
		var b CheckUpdatesBody
		if err := env.DecodeBody(&b); err != nil {
			return cmd, err
		}
		for _, id := range b.IDs {
			cmd.IDs = append(cmd.IDs, manifest.ModID(id))
		}
	case engine.CmdCancel, engine.CmdSnapshot:
	default:
		return cmd, fmt.Errorf("%w: unknown command kind %q", ErrMalformedFrame, env.Kind)
	}
	return cmd, nil
}

// EventEnvelope encodes an engine event for the wire.
func EventEnvelope(ev engine.Event) (Envelope, error) {
	var body any
	switch ev.Kind {
	case engine.EventProgress:
		body = ProgressBody{Stage: ev.Stage, Done: ev.Done, Total: ev.Total, Entry: ev.Entry}
	case engine.EventCompleted:
		b := CompletedBody{Command: string(ev.Command), Summary: ev.Summary}
		if ev.Mod != nil {
			info := modInfo(*ev.Mod)
			b.Mod = &info
		}
		for _, o := range ev.Outcomes {
			b.Outcomes = append(b.Outcomes, outcomeInfo(o))
		}
		body = b
	case engine.EventFailed:
		body = FailedBody{Command: string(ev.Command), Kind: ev.FailKind, Message: ev.Message}
	case engine.EventSnapshot:
		if ev.Snapshot != nil {
			body = snapshotBody(*ev.Snapshot)
		}
	}
	return NewEnvelope(string(ev.Kind), ev.Req, ev.Op, body)
}

func snapshotBody(s registry.Snapshot) SnapshotBody {
	b := SnapshotBody{
		Mods:        make([]ModInfo, 0, len(s.Mods)),
		Conflicts:   make([]ConflictInfo, 0, len(s.Conflicts)),
		GameVersion: s.GameVersion.String(),
		Generation:  s.Generation,
	}
	for _, m := range s.Mods {
		b.Mods = append(b.Mods, modInfo(m))
	}
	for _, c := range s.Conflicts {
		b.Conflicts = append(b.Conflicts, ConflictInfo{
			Kind:   string(c.Kind),
			ID:     string(c.ID),
			Dir:    c.Dir,
			Others: c.Others,
			Detail: c.Detail,
		})
	}
	return b
}

func modInfo(m registry.InstalledMod) ModInfo {
	d := m.Descriptor
	info := ModInfo{
		ID:      string(m.ID()),
		Name:    d.DisplayName(),
		Version: d.Version.String(),
		Dir:     m.Dir,
		Enabled: m.Enabled,
		Author:  d.Author,
	}
	for _, dep := range d.Dependencies {
		info.Dependencies = append(info.Dependencies, string(dep.ID))
	}
	if m.Remote != nil {
		info.RemoteVersion, info.RemoteOutcome = m.Remote.Version.String(), m.Remote.Outcome
	}
	return info
}

func outcomeInfo(o updatecheck.Outcome) OutcomeInfo {
	info := OutcomeInfo{
		ID:          string(o.ID),
		Kind:        string(o.Kind),
		Local:       o.Local.String(),
		Remote:      o.Remote.String(),
		DownloadURL: o.DownloadURL,
	}
	if o.HasUpdate() {
		info.Severity = o.Severity.String()
	}
	if o.Err != nil {
		info.Error = o.Err.Error()
	}
	return info
}
