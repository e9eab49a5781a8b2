// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from $XDG_CONFIG_HOME/modkit/config.cue on Linux,
// ~/Library/Application Support/modkit/config.cue on macOS and
// %APPDATA%\modkit\config.cue on Windows, or from the file named with --config.
// It selects the game and mod directories, the default install policy, update
// check tuning, the bridge listen address and logging.
//
// The file is validated against the embedded CUE schema (config_schema.cue)
// before being merged over the built-in defaults. Environment variables with
// the MODKIT_ prefix override both, e.g. MODKIT_INSTALL_WORKERS=4.
package config
