// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for modkit.
//
// This package implements the Cobra command hierarchy for the modkit CLI:
// listing, installing and removing mods, update checks, load order, the
// progress/command bridge server and configuration management. Every
// command builds its services through an App, the composition root.
package cmd
