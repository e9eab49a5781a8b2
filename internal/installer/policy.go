// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"fmt"

	"github.com/modkit/modkit/pkg/version"
)

// Replace policies applied when the archive's mod is already installed.
const (
	PolicyAlwaysReplace  Policy = "always-replace"
	PolicyReplaceIfNewer Policy = "replace-if-newer"
	PolicyReject         Policy = "reject"
)

// Policy decides whether an install may replace an existing one.
type Policy string

// ParsePolicy parses a policy name. The empty string yields
// PolicyReplaceIfNewer.
func ParsePolicy(s string) (Policy, error) {
	if s == "" {
		return PolicyReplaceIfNewer, nil
	}
	p := Policy(s)
	if err := p.Validate(); err != nil {
		return "", err
	}
	return p, nil
}

// Validate reports whether p is a known policy.
func (p Policy) Validate() error {
	switch p {
	case PolicyAlwaysReplace, PolicyReplaceIfNewer, PolicyReject:
		return nil
	default:
		return fmt.Errorf("unknown replace policy %q (want %s, %s or %s)", string(p), PolicyAlwaysReplace, PolicyReplaceIfNewer, PolicyReject)
	}
}

// allows reports whether staged may replace existing.
func (p Policy) allows(staged, existing version.Version) bool {
	switch p {
	case PolicyAlwaysReplace:
		return true
	case PolicyReplaceIfNewer:
		return staged.Compare(existing) == version.Greater
	default:
		return false
	}
}
