// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

const testSchema = `
#Settings: {
	name:     string
	workers:  int & >=1
	enabled?: bool
}
`

type settings struct {
	Name    string `json:"name"`
	Workers int    `json:"workers"`
	Enabled bool   `json:"enabled"`
}

func TestParseAndDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		opts    []Option
		want    settings
		wantErr string
	}{
		{
			name: "valid",
			data: `name: "modkit", workers: 2, enabled: true`,
			want: settings{Name: "modkit", Workers: 2, Enabled: true},
		},
		{
			name: "optional field omitted",
			data: `name: "modkit", workers: 1`,
			want: settings{Name: "modkit", Workers: 1},
		},
		{
			name:    "constraint violated",
			data:    `name: "modkit", workers: 0`,
			wantErr: "workers",
		},
		{
			name:    "file name in message",
			data:    `name: 1, workers: 1`,
			opts:    []Option{WithFilename("config.cue")},
			wantErr: "config.cue",
		},
		{
			name:    "unknown field",
			data:    `name: "modkit", workers: 1, color: "red"`,
			wantErr: "color",
		},
		{
			name:    "syntax error",
			data:    `name: "modkit`,
			wantErr: "<input>",
		},
		{
			name:    "missing field when concrete",
			data:    `workers: 1`,
			wantErr: "name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseAndDecodeString[settings](testSchema, []byte(tt.data), "#Settings", tt.opts...)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want it to mention %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if *got != tt.want {
				t.Errorf("got %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestParseAndDecode_NonConcreteIntoMap(t *testing.T) {
	t.Parallel()

	got, err := ParseAndDecodeString[map[string]any](testSchema, []byte(`workers: 3`), "#Settings", WithConcrete(false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := (*got)["workers"]; !ok {
		t.Errorf("decoded map = %v, want workers", *got)
	}
}

func TestParseAndDecode_SizeLimit(t *testing.T) {
	t.Parallel()

	_, err := ParseAndDecodeString[settings](testSchema, []byte(`name: "xxxxxxxx"`), "#Settings", WithMaxFileSize(4))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("error = %v, want ErrFileTooLarge", err)
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := map[string][]string{
		"":                {},
		"install":         {"install"},
		"install.workers": {"install", "workers"},
		"mods[0].id":      {"mods", "0", "id"},
		"0":               {"0"},
	}
	for want, path := range tests {
		if got := formatPath(path); got != want {
			t.Errorf("formatPath(%v) = %q, want %q", path, got, want)
		}
	}
}

func TestFormatError_PlainError(t *testing.T) {
	t.Parallel()

	if FormatError(nil, "x.cue") != nil {
		t.Error("FormatError(nil) != nil")
	}
	err := FormatError(errors.New("boom"), "x.cue")
	if err == nil || err.Error() != "x.cue: boom" {
		t.Errorf("FormatError = %v", err)
	}
}
