// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"strings"
	"testing"

	"github.com/modkit/modkit/internal/config"
)

func TestList(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t, nil)
	ta.writeMod(t, "alpha", `{"id": "alpha", "name": "Alpha", "version": "1.0.0"}`)
	ta.writeMod(t, "alpha-old", `{"id": "alpha", "name": "Alpha", "version": "0.9"}`)
	ta.writeMod(t, "beta", `{
		# comments are tolerated
		"id": "beta", "name": "Béta Tools", "version": "2.1",
		"dependencies": [{"id": "gamma", "version": "1.0"}],
	}`)
	ta.writeMod(t, "broken", `{"name": "no id"}`)

	if err := ta.run(t, "list"); err != nil {
		t.Fatalf("list: %v\nstderr: %s", err, ta.stderr)
	}

	out := ta.stdout.String()
	for _, want := range []string{"alpha", "alpha-old", "Béta Tools", "duplicate-identity", "unmet-dependency", "3 mods", "2 conflicts"} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout missing %q:\n%s", want, out)
		}
	}
	if stderr := ta.stderr.String(); !strings.Contains(stderr, "manifest-invalid") {
		t.Errorf("stderr should warn about the broken manifest:\n%s", stderr)
	}
}

func TestList_Query(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t, nil)
	ta.writeMod(t, "alpha", `{"id": "alpha", "name": "Alpha", "version": "1.0.0"}`)
	ta.writeMod(t, "beta", `{"id": "beta", "name": "Béta Tools", "version": "2.1"}`)

	if err := ta.run(t, "list", "beta tools"); err != nil {
		t.Fatalf("list: %v", err)
	}
	out := ta.stdout.String()
	if !strings.Contains(out, "beta") || strings.Contains(out, "alpha") {
		t.Errorf("query should keep only beta:\n%s", out)
	}
}

func TestList_ConflictsOnly(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t, nil)
	ta.writeMod(t, "alpha", `{"id": "alpha", "version": "1.0.0"}`)

	if err := ta.run(t, "list", "--conflicts"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if out := ta.stdout.String(); !strings.Contains(out, "No conflicts") {
		t.Errorf("stdout = %q, want No conflicts", out)
	}
}

func TestList_StrictExitCode(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t, nil)
	ta.writeMod(t, "a", `{"id": "a", "version": "1", "dependencies": [{"id": "missing"}]}`)

	err := ta.run(t, "list", "--strict")
	if got := exitCode(err); got != ExitConflicts {
		t.Fatalf("exit code = %d (err %v), want %d", got, err, ExitConflicts)
	}
}

func TestList_GameVersionFlag(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t, nil)
	ta.writeMod(t, "old", `{"id": "old", "version": "1", "gameVersion": "0.95a"}`)

	if err := ta.run(t, "list", "--conflicts"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Contains(ta.stdout.String(), "incompatible-game-version") {
		t.Fatalf("unknown game version must not produce game conflicts:\n%s", ta.stdout)
	}

	ta2 := newTestApp(t, nil)
	ta2.writeMod(t, "old", `{"id": "old", "version": "1", "gameVersion": "0.95a"}`)
	if err := ta2.run(t, "--game-version", "0.97a", "list", "--conflicts"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(ta2.stdout.String(), "incompatible-game-version") {
		t.Errorf("expected a game version conflict:\n%s", ta2.stdout)
	}
}

func TestList_ModsDirErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "not configured",
			mutate: func(c *config.Config) { c.ModsDir = "" },
			want:   "mods directory not set",
		},
		{
			name:   "missing directory",
			mutate: func(c *config.Config) { c.ModsDir = c.ModsDir + "-missing" },
			want:   "open mod root",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ta := newTestApp(t, tt.mutate)
			err := ta.run(t, "list")
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(ta.stderr.String(), tt.want) {
				t.Errorf("stderr = %q, want it to contain %q", ta.stderr, tt.want)
			}
		})
	}
}

func TestList_VerboseShowsGuide(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t, func(c *config.Config) { c.ModsDir = "" })
	err := ta.run(t, "--verbose", "list")
	if got := exitCode(err); got != ExitUsage {
		t.Fatalf("exit code = %d, want %d", got, ExitUsage)
	}
	stderr := ta.stderr.String()
	if !strings.Contains(stderr, "--mods-dir") {
		t.Errorf("stderr should carry the suggestion:\n%s", stderr)
	}
	if !strings.Contains(stderr, "Error chain") {
		t.Errorf("verbose output should include the error chain:\n%s", stderr)
	}
}
