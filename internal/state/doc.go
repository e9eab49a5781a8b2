// SPDX-License-Identifier: MPL-2.0

// Package state persists the small amount of per-mod-root state modkit keeps:
// the enabled set in enabled_mods.json (the file the game itself reads) and
// per-mod install metadata in <mod>/.modkit.json.
//
// All access goes through an afero.Fs so callers can substitute an in-memory
// filesystem. Writes replace files atomically by writing a sibling temp file
// and renaming it over the target.
package state
