// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"cmp"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// ParseAndDecode validates data against the definition def of schema and
// decodes the result into a T.
func ParseAndDecode[T any](schema, data []byte, def string, opts ...Option) (*T, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	filename := cmp.Or(o.filename, "<input>")

	if err := CheckFileSize(data, o.maxFileSize, filename); err != nil {
		return nil, err
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileBytes(schema)
	if err := schemaValue.Err(); err != nil {
		return nil, fmt.Errorf("internal error: compiling schema: %w", err)
	}
	root := schemaValue.LookupPath(cue.ParsePath(def))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("internal error: schema has no %s: %w", def, err)
	}

	userValue := ctx.CompileBytes(data, cue.Filename(filename))
	if err := userValue.Err(); err != nil {
		return nil, FormatError(err, filename)
	}

	unified := root.Unify(userValue)
	if err := unified.Validate(cue.Concrete(o.concrete)); err != nil {
		return nil, FormatError(err, filename)
	}

	var out T
	if err := unified.Decode(&out); err != nil {
		return nil, FormatError(err, filename)
	}
	return &out, nil
}

// ParseAndDecodeString is ParseAndDecode with a string schema, the form
// go:embed produces most conveniently.
func ParseAndDecodeString[T any](schema string, data []byte, def string, opts ...Option) (*T, error) {
	return ParseAndDecode[T]([]byte(schema), data, def, opts...)
}
