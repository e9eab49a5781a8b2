// SPDX-License-Identifier: MPL-2.0

// Package engine coordinates long-running mod operations for a transport.
//
// A command is validated and, when accepted, assigned an operation id and
// run on its own goroutine. Its progress and its single terminal event
// (completed or failed) are delivered to every subscriber. Operations can be
// cancelled by id; cancellation is cooperative and never interrupts the final
// promotion of an install.
package engine
