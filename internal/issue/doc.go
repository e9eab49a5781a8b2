// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and
// suggestions. The issue catalog holds Markdown guides for the failure kinds
// modkit reports, rendered with glamour when the CLI runs with --verbose.
package issue
