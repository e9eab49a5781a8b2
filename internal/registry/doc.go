// SPDX-License-Identifier: MPL-2.0

// Package registry holds the in-memory inventory of installed mods.
//
// A Scanner walks one level of the mod root and turns each directory into an
// InstalledMod or a Diagnostic. Resolve is a pure function that derives the
// conflict list from a set of mods and the game version. Registry glues the
// two together behind a single mutex: every mutation (rescan, enable toggle,
// install commit, uninstall, remote info update) re-runs the resolver before
// the lock is released, so a Snapshot is always consistent with its conflicts.
package registry
