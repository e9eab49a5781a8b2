// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"strings"

	"github.com/modkit/modkit/pkg/version"
)

// GameVersionReq is a manifest's declared game compatibility: either an exact
// release ("0.95a-RC6") or a constraint range (">=0.95a, <0.97a").
// The zero value accepts every game version.
type GameVersionReq struct {
	raw         string
	constraints version.Constraints
}

// ParseGameVersionReq parses a gameVersion field.
func ParseGameVersionReq(s string) (GameVersionReq, error) {
	raw := strings.TrimSpace(s)
	if raw == "" || raw == "*" {
		return GameVersionReq{raw: raw}, nil
	}
	if !version.IsConstraintExpr(raw) {
		return GameVersionReq{raw: raw}, nil
	}
	cs, err := version.ParseConstraints(raw)
	if err != nil {
		return GameVersionReq{}, err
	}
	return GameVersionReq{raw: raw, constraints: cs}, nil
}

// IsZero reports whether the requirement accepts everything.
func (r GameVersionReq) IsZero() bool {
	return r.raw == "" || r.raw == "*"
}

// IsRange reports whether the requirement is a constraint expression.
func (r GameVersionReq) IsRange() bool {
	return len(r.constraints) > 0
}

// String returns the requirement as written.
func (r GameVersionReq) String() string {
	return r.raw
}

// Allows reports whether game satisfies the requirement.
//
// An exact requirement matches any game release with the same major and minor
// components, since releases within a minor line (patches and release
// candidates) keep mod compatibility. When either side does not parse as a
// game release, the versions must compare equal. An unknown (zero) game
// version is always allowed.
func (r GameVersionReq) Allows(game version.Version) bool {
	if r.IsZero() || game.IsZero() {
		return true
	}
	if r.IsRange() {
		return r.constraints.Matches(game)
	}

	want, okWant := version.ParseGameVersion(r.raw)
	have, okHave := version.ParseGameVersion(game.String())
	if okWant && okHave {
		return want.Diff(have) < version.GameDiffMinor
	}
	return version.Parse(r.raw).Equal(game)
}
