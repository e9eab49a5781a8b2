// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/nwaples/rardecode/v2"
	"github.com/ulikunitz/xz"
)

// Entry types yielded by an Extractor.
const (
	EntryFile EntryType = iota
	EntryDir
	// EntryLink covers symlinks, hardlinks and device nodes. They are never
	// materialised.
	EntryLink
)

type (
	// EntryType distinguishes archive members.
	EntryType int

	// Entry is one archive member. Body is only valid during the emit call
	// and is nil for non-file entries.
	Entry struct {
		Name string
		Type EntryType
		Mode fs.FileMode
		Size int64
		Body io.Reader
	}

	// EmitFunc receives archive entries in archive order. Returning an error
	// stops extraction and that error is returned unchanged.
	EmitFunc func(Entry) error

	// Extractor reads one archive format.
	Extractor interface {
		Extract(ctx context.Context, r io.ReaderAt, size int64, emit EmitFunc) error
	}

	zipExtractor struct{}

	// tarExtractor reads a tar stream, optionally behind a decompressor.
	tarExtractor struct {
		decompress func(io.Reader) (io.ReadCloser, error)
	}

	rarExtractor struct{}

	// bodyReader tags read failures as archive corruption so they can be told
	// apart from write failures while copying.
	bodyReader struct {
		r io.Reader
	}
)

// ExtractorFor returns the extractor for f.
func ExtractorFor(f Format) (Extractor, error) {
	switch f {
	case FormatZip:
		return zipExtractor{}, nil
	case FormatRar:
		return rarExtractor{}, nil
	case FormatTar:
		return tarExtractor{}, nil
	case FormatTarGz:
		return tarExtractor{decompress: func(r io.Reader) (io.ReadCloser, error) {
			return gzip.NewReader(r)
		}}, nil
	case FormatTarXz:
		return tarExtractor{decompress: func(r io.Reader) (io.ReadCloser, error) {
			xr, err := xz.NewReader(r)
			if err != nil {
				return nil, err
			}
			return io.NopCloser(xr), nil
		}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
}

func (b bodyReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = corrupt(err)
	}
	return n, err
}

func (zipExtractor) Extract(ctx context.Context, r io.ReaderAt, size int64, emit EmitFunc) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return corrupt(err)
	}
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		mode := f.Mode()
		e := Entry{Name: f.Name, Mode: mode, Size: int64(f.UncompressedSize64)}
		switch {
		case mode.IsDir():
			e.Type = EntryDir
		case !mode.IsRegular():
			e.Type = EntryLink
		}
		if e.Type != EntryFile {
			if err := emit(e); err != nil {
				return err
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return corrupt(fmt.Errorf("%s: %w", f.Name, err))
		}
		e.Body = bodyReader{r: rc}
		err = emit(e)
		_ = rc.Close() // read-only
		if err != nil {
			return err
		}
	}
	return nil
}

func (x tarExtractor) Extract(ctx context.Context, r io.ReaderAt, size int64, emit EmitFunc) error {
	var src io.Reader = io.NewSectionReader(r, 0, size)
	if x.decompress != nil {
		rc, err := x.decompress(src)
		if err != nil {
			return corrupt(err)
		}
		defer func() { _ = rc.Close() }() // read-only
		src = rc
	}

	tr := tar.NewReader(src)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return corrupt(err)
		}

		e := Entry{Name: hdr.Name, Mode: hdr.FileInfo().Mode(), Size: hdr.Size}
		switch hdr.Typeflag {
		case tar.TypeReg:
			e.Body = bodyReader{r: tr}
		case tar.TypeDir:
			e.Type = EntryDir
		case tar.TypeXGlobalHeader:
			continue
		default:
			e.Type = EntryLink
		}
		if err := emit(e); err != nil {
			return err
		}
	}
}

func (rarExtractor) Extract(ctx context.Context, r io.ReaderAt, size int64, emit EmitFunc) error {
	rr, err := rardecode.NewReader(io.NewSectionReader(r, 0, size))
	if err != nil {
		return corrupt(err)
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return corrupt(err)
		}

		mode := hdr.Mode()
		e := Entry{Name: hdr.Name, Mode: mode, Size: hdr.UnPackedSize}
		switch {
		case hdr.IsDir:
			e.Type = EntryDir
		case mode&(fs.ModeSymlink|fs.ModeDevice|fs.ModeNamedPipe) != 0:
			e.Type = EntryLink
		default:
			e.Body = bodyReader{r: rr}
		}
		if err := emit(e); err != nil {
			return err
		}
	}
}
