// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestStagePath(t *testing.T) {
	t.Parallel()

	dir := filepath.Join("tmp", "staging")
	tests := []struct {
		name    string
		entry   string
		want    string
		wantErr bool
	}{
		{name: "plain", entry: "mod/mod_info.json", want: filepath.Join(dir, "mod", "mod_info.json")},
		{name: "inner dotdot", entry: "mod/../other/file", want: filepath.Join(dir, "other", "file")},
		{name: "backslashes", entry: `mod\data\x.csv`, want: filepath.Join(dir, "mod", "data", "x.csv")},
		{name: "root itself", entry: "./", want: ""},
		{name: "escape", entry: "../../escape", wantErr: true},
		{name: "escape after descent", entry: "mod/../../escape", wantErr: true},
		{name: "escape with backslashes", entry: `..\..\escape`, wantErr: true},
		{name: "absolute", entry: "/etc/passwd", wantErr: true},
		{name: "drive letter", entry: "C:/Windows/evil.dll", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := stagePath(dir, tt.entry)
			if tt.wantErr {
				var secErr *SecurityError
				if !errors.As(err, &secErr) || !errors.Is(err, ErrPathTraversal) {
					t.Fatalf("stagePath(%q) error = %v, want *SecurityError", tt.entry, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("stagePath(%q) = %q, want %q", tt.entry, got, tt.want)
			}
		})
	}
}
