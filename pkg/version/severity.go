// SPDX-License-Identifier: MPL-2.0

package version

const (
	// SeverityNone means the versions are equal.
	SeverityNone Severity = iota
	// SeverityPatch means the first difference is at the third segment or later.
	SeverityPatch
	// SeverityMinor means the first difference is at the second segment.
	SeverityMinor
	// SeverityMajor means the first difference is at the first segment.
	SeverityMajor
)

// Severity classifies how far apart two versions are.
type Severity int

// String returns the lower-case severity name.
func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityPatch:
		return "patch"
	case SeverityMinor:
		return "minor"
	case SeverityMajor:
		return "major"
	default:
		return "unknown"
	}
}

// Bump reports the severity of moving from local to remote, based on the
// position of the first differing segment. The direction is not considered;
// callers compare first.
func Bump(local, remote Version) Severity {
	n := max(len(local.segs), len(remote.segs))
	for i := range n {
		if i < len(local.segs) && i < len(remote.segs) && compareSegments(local.segs[i], remote.segs[i]) == Equal {
			continue
		}
		switch i {
		case 0:
			return SeverityMajor
		case 1:
			return SeverityMinor
		default:
			return SeverityPatch
		}
	}
	return SeverityNone
}
