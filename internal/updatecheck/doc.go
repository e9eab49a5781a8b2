// SPDX-License-Identifier: MPL-2.0

// Package updatecheck compares installed mods against the remote version
// documents their authors publish, and downloads the archives those documents
// point at.
//
// A single Check never returns an error: every problem, from a missing
// checker URL to an unreachable host, is folded into the Outcome so batch
// callers can report per-mod results.
package updatecheck
