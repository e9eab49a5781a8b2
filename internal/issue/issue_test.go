// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"strings"
	"testing"
)

func allIds() []Id {
	return []Id{
		UnsupportedFormatId,
		CorruptArchiveId,
		UnsafeArchiveId,
		InvalidManifestId,
		PolicyRejectedId,
		FilesystemFailedId,
		VersionMismatchId,
		OperationCanceledId,
		NetworkFailedId,
		NoDownloadId,
		ModNotFoundId,
		ModsDirNotSetId,
		ConfigLoadFailedId,
		DependencyCycleId,
		BridgeRejectedId,
	}
}

func TestId_Constants(t *testing.T) {
	seen := make(map[Id]bool)
	for _, id := range allIds() {
		if seen[id] {
			t.Errorf("duplicate ID: %d", id)
		}
		seen[id] = true
	}

	if UnsupportedFormatId != 1 {
		t.Errorf("UnsupportedFormatId = %d, want 1", UnsupportedFormatId)
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		id       Id
		wantNil  bool
		contains string
	}{
		{UnsupportedFormatId, false, "Unsupported archive format"},
		{CorruptArchiveId, false, "could not be read"},
		{UnsafeArchiveId, false, "outside the mod folder"},
		{InvalidManifestId, false, "mod_info.json"},
		{PolicyRejectedId, false, "replace policy"},
		{FilesystemFailedId, false, "disk operation failed"},
		{VersionMismatchId, false, "different version"},
		{OperationCanceledId, false, "Operation canceled"},
		{NetworkFailedId, false, "update server"},
		{NoDownloadId, false, "No direct download"},
		{ModNotFoundId, false, "Mod not found"},
		{ModsDirNotSetId, false, "No mods folder"},
		{ConfigLoadFailedId, false, "Failed to load configuration"},
		{DependencyCycleId, false, "Dependency cycle"},
		{BridgeRejectedId, false, "refused the connection"},
		{Id(9999), true, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.contains, func(t *testing.T) {
			issue := Get(tt.id)

			if tt.wantNil {
				if issue != nil {
					t.Errorf("Get(%d) should return nil", tt.id)
				}
				return
			}

			if issue == nil {
				t.Fatalf("Get(%d) returned nil", tt.id)
			}
			if issue.Id() != tt.id {
				t.Errorf("issue.Id() = %d, want %d", issue.Id(), tt.id)
			}
			if !strings.Contains(string(issue.MarkdownMsg()), tt.contains) {
				t.Errorf("Get(%d).MarkdownMsg() should contain '%s'", tt.id, tt.contains)
			}
		})
	}
}

func TestForKind(t *testing.T) {
	tests := []struct {
		kind string
		want Id
	}{
		{"format", UnsupportedFormatId},
		{"corrupt", CorruptArchiveId},
		{"security", UnsafeArchiveId},
		{"manifest", InvalidManifestId},
		{"policy", PolicyRejectedId},
		{"filesystem", FilesystemFailedId},
		{"version-mismatch", VersionMismatchId},
		{"canceled", OperationCanceledId},
		{"network", NetworkFailedId},
		{"no-download", NoDownloadId},
		{"not-found", ModNotFoundId},
		{"unknown", 0},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			got := ForKind(tt.kind)
			if tt.want == 0 {
				if got != nil {
					t.Errorf("ForKind(%q) = %d, want nil", tt.kind, got.Id())
				}
				return
			}
			if got == nil || got.Id() != tt.want {
				t.Fatalf("ForKind(%q) = %v, want %d", tt.kind, got, tt.want)
			}
			if got.Kind() != tt.kind {
				t.Errorf("Kind() = %q, want %q", got.Kind(), tt.kind)
			}
		})
	}
}

func TestValues(t *testing.T) {
	issues := Values()

	if len(issues) != len(allIds()) {
		t.Fatalf("Values() returned %d issues, want %d", len(issues), len(allIds()))
	}

	for i, issue := range issues {
		if issue.Id() != Id(i+1) {
			t.Errorf("Values()[%d].Id() = %d, want sorted ids", i, issue.Id())
		}
		if issue.MarkdownMsg() == "" {
			t.Errorf("Issue %d has empty MarkdownMsg", issue.Id())
		}
	}
}

func TestIssue_Render(t *testing.T) {
	originalRender := render
	defer func() { render = originalRender }()

	var gotStyle string
	render = func(in string, stylePath string) (string, error) {
		gotStyle = stylePath
		return in, nil
	}

	for _, issue := range Values() {
		rendered, err := issue.Render("dark")
		if err != nil {
			t.Errorf("Issue %d failed to render: %v", issue.Id(), err)
		}
		if rendered != string(issue.MarkdownMsg()) {
			t.Errorf("Issue %d rendered unexpected content", issue.Id())
		}
	}
	if gotStyle != "dark" {
		t.Errorf("style = %q, want dark", gotStyle)
	}
}

func TestIssue_Render_Glamour(t *testing.T) {
	rendered, err := Get(PolicyRejectedId).Render("notty")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}
	if !strings.Contains(rendered, "replace policy") {
		t.Errorf("rendered guide lost its text:\n%s", rendered)
	}
}

func TestActionableError_GuideWrapped(t *testing.T) {
	err := NewErrorContext().
		WithOperation("install mod").
		WithIssue(PolicyRejectedId).
		Wrap(errors.New("rejected")).
		Build()

	if g := err.Guide(); g == nil || g.Id() != PolicyRejectedId {
		t.Fatalf("Guide() = %v, want policy issue", g)
	}
	if g := (&ActionableError{Operation: "list mods"}).Guide(); g != nil {
		t.Errorf("Guide() without issue = %d, want nil", g.Id())
	}
}
