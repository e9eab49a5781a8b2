// SPDX-License-Identifier: MPL-2.0

// Package version implements the lenient version ordering used by game mods.
//
// Mod authors rarely follow semver. Versions such as "0.95a-RC6", "2.1.0b" or
// "1.2 beta 3" are common, so this package does not reject anything: every
// string parses, and any two versions can be ordered.
//
// # Segmentation
//
// A version string is split into segments at every transition between a run of
// digits and a run of non-digits. The separators '.', '-', '_' and whitespace
// delimit segments and are discarded. A '+' starts build metadata, which is kept
// as [Version.Build] but never affects ordering. A leading 'v' directly followed
// by a digit is dropped ("v1.2" is "1.2").
//
// # Ordering
//
// Segments are compared left to right:
//   - two numeric segments compare by numeric value (any length, leading zeros ignored)
//   - two textual segments compare lexicographically, case-insensitively
//   - a numeric segment outranks a textual one at the same position
//   - a missing segment ranks below any present segment, so "1.2.0" > "1.2"
//
// Two versions are [Equal] only when their normalized segment sequences are
// identical.
package version
