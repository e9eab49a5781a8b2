// SPDX-License-Identifier: MPL-2.0

// Package installer turns a downloaded mod archive into an installed mod.
//
// An install runs in three phases. The archive is sniffed and extracted into a
// private staging directory under the mod root, with every entry path checked
// against traversal before anything is written. The staged tree is searched
// for its manifest and parsed. Finally, inside Registry.Commit, the replace
// policy is applied and the staged directory is promoted into place with a
// rename, backing up and restoring any previous installation on failure.
//
// Cancellation is honoured between archive entries and right before the
// commit. Once promotion starts it always runs to completion.
package installer
