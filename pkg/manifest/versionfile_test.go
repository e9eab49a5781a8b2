// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"testing"
)

func TestParseVersionFile(t *testing.T) {
	t.Parallel()

	vf, err := ParseVersionFile([]byte(`{
		"masterVersionFile": "https://raw.example.com/lazylib.version",
		"directDownloadURL": "https://dl.example.com/lazylib.zip",
		"modName": "LazyLib",
		"modThreadId": 5444,
		"modNexusId": "12",
		"modVersion": {"major": 2, "minor": 8, "patch": "b"}
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if vf.MasterURL != "https://raw.example.com/lazylib.version" {
		t.Errorf("MasterURL = %q", vf.MasterURL)
	}
	if vf.DirectDownloadURL != "https://dl.example.com/lazylib.zip" {
		t.Errorf("DirectDownloadURL = %q", vf.DirectDownloadURL)
	}
	if vf.ModName != "LazyLib" {
		t.Errorf("ModName = %q", vf.ModName)
	}
	if vf.ThreadID != "5444" || vf.NexusID != "12" {
		t.Errorf("ThreadID, NexusID = %q, %q", vf.ThreadID, vf.NexusID)
	}
	if got := vf.Version.Canonical(); got != "2.8.b" {
		t.Errorf("Version.Canonical() = %q, want %q", got, "2.8.b")
	}
}

func TestParseVersionFile_BuildKey(t *testing.T) {
	t.Parallel()

	vf, err := ParseVersionFile([]byte(`{"version": "1.4", "build": "nightly"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vf.Version.Build() != "nightly" {
		t.Errorf("Build() = %q, want %q", vf.Version.Build(), "nightly")
	}
	if vf.Version.Canonical() != "1.4" {
		t.Errorf("Canonical() = %q, want %q", vf.Version.Canonical(), "1.4")
	}
}

func TestParseVersionFile_MissingVersion(t *testing.T) {
	t.Parallel()

	_, err := ParseVersionFile([]byte(`{"modName": "x"}`))
	if !errors.Is(err, ErrInvalidManifest) {
		t.Fatalf("errors.Is(err, ErrInvalidManifest) = false for %v", err)
	}
}

func TestLocateVersionFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"standard", "version file\ndata/config/lazylib.version\n", "data/config/lazylib.version", nil},
		{"windows separators", "version file\r\ndata\\config\\x.version\r\n", "data/config/x.version", nil},
		{"extra columns", "version file,notes\n  x.version , ignored\n", "x.version", nil},
		{"blank rows skipped", "version file\n\n,\nx.version\n", "x.version", nil},
		{"header only", "version file\n", "", ErrNoVersionFile},
		{"empty", "", "", ErrNoVersionFile},
		{"escaping path", "version file\n../../etc/passwd\n", "", ErrInvalidManifest},
		{"absolute path", "version file\n/etc/passwd\n", "", ErrInvalidManifest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := LocateVersionFile([]byte(tt.input))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("LocateVersionFile() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("LocateVersionFile() = %q, want %q", got, tt.want)
			}
		})
	}
}
