// SPDX-License-Identifier: MPL-2.0

// Package manifest parses mod manifests (mod_info.json) and version-checker
// documents (.version files) into typed descriptors.
//
// Hand-written mod metadata is rarely valid JSON. Parsing is a two-stage
// pipeline:
//
//  1. [Normalize] is a lenient lexer pass that removes '#', '//' and '/* */'
//     comments, escapes raw control characters inside strings, and inserts
//     commas that authors forgot between members written on separate lines.
//     The result is decoded with a JSON5 decoder into a generic tree, which
//     also accepts unquoted keys, single quotes and trailing commas.
//  2. Strict extraction pulls the recognized keys out of the tree with
//     explicit required-field checks. Unknown keys are ignored.
//
// Parsing is pure: no filesystem or network access happens here.
package manifest
