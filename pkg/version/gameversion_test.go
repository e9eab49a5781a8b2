// SPDX-License-Identifier: MPL-2.0

package version

import "testing"

func TestParseGameVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  GameVersion
		ok    bool
	}{
		{"0.95a-RC6", GameVersion{Major: "0", Minor: "95", RC: "6"}, true},
		{"0.95.1a-RC2", GameVersion{Major: "0", Minor: "95", Patch: "1", RC: "2"}, true},
		{"0.97a", GameVersion{Major: "0", Minor: "97"}, true},
		{"95a-RC6", GameVersion{Major: "0", Minor: "95", RC: "6"}, true},
		{"0.9.1a", GameVersion{Major: "0", Minor: "9", Patch: "1"}, true},
		{"0.95a-rc10", GameVersion{Major: "0", Minor: "95", RC: "10"}, true},
		{"", GameVersion{}, false},
		{"1.2.3.4", GameVersion{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, ok := ParseGameVersion(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseGameVersion(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("ParseGameVersion(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestGameVersion_Diff(t *testing.T) {
	t.Parallel()

	parse := func(s string) GameVersion {
		gv, ok := ParseGameVersion(s)
		if !ok {
			t.Fatalf("ParseGameVersion(%q) failed", s)
		}
		return gv
	}

	tests := []struct {
		mod, game string
		want      GameDiff
	}{
		{"0.95a", "0.95a-RC6", GameDiffNone},
		{"0.95a-RC5", "0.95a-RC6", GameDiffRC},
		{"0.95.1a", "0.95a-RC6", GameDiffNone},
		{"0.95.1a", "0.95.2a", GameDiffPatch},
		{"0.9a", "0.95a", GameDiffMinor},
	}

	for _, tt := range tests {
		if got := parse(tt.mod).Diff(parse(tt.game)); got != tt.want {
			t.Errorf("Diff(%q, %q) = %s, want %s", tt.mod, tt.game, got, tt.want)
		}
	}
}

func TestGameVersion_String(t *testing.T) {
	t.Parallel()

	gv := GameVersion{Major: "0", Minor: "95", Patch: "1", RC: "2"}
	if got := gv.String(); got != "0.95.1a-RC2" {
		t.Errorf("String() = %q, want %q", got, "0.95.1a-RC2")
	}
}
