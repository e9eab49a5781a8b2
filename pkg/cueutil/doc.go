// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates CUE documents against an embedded schema and
// decodes them into Go values.
//
// The flow is always the same: compile the schema, compile the user document,
// unify it with a schema definition, validate, decode. Errors name the file
// and the JSON-style path of the offending field, for example
//
//	config.cue: install.workers: invalid value 0 (out of bound >=1)
package cueutil
