// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by modkit's tests: a controllable
// clock, environment helpers that fail the test instead of returning errors,
// on-disk mod fixtures and in-memory archive builders for every format the
// installer accepts.
package testutil
