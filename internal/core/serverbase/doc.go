// SPDX-License-Identifier: MPL-2.0

// Package serverbase is the lifecycle shared by modkit's long-running
// components: a single-use state machine (created, starting, running,
// stopping, stopped or failed), a cancellation context tied to it and
// bookkeeping for the goroutines a component spawns.
package serverbase
