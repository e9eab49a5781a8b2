// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/h2non/filetype"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// Supported archive formats.
const (
	FormatZip   Format = "zip"
	FormatRar   Format = "rar"
	FormatTar   Format = "tar"
	FormatTarGz Format = "tar.gz"
	FormatTarXz Format = "tar.xz"
)

const (
	// sniffLen covers the tar magic at offset 257.
	sniffLen       = 512
	tarMagicOffset = 257
)

// Format is an archive container format.
type Format string

// Formats returns every supported format.
func Formats() []Format {
	return []Format{FormatZip, FormatRar, FormatTar, FormatTarGz, FormatTarXz}
}

// ParseFormat accepts a format name or a file extension such as ".tgz".
// The empty string yields the empty Format.
func ParseFormat(s string) (Format, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")
	switch s {
	case "":
		return "", nil
	case "zip":
		return FormatZip, nil
	case "rar":
		return FormatRar, nil
	case "tar":
		return FormatTar, nil
	case "tar.gz", "tgz", "gz":
		return FormatTarGz, nil
	case "tar.xz", "txz", "xz":
		return FormatTarXz, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// FormatFromName guesses a format from a file name's extension. It returns
// the empty Format when the extension is not recognised.
func FormatFromName(name string) Format {
	lower := strings.ToLower(name)
	for _, ext := range []string{".tar.gz", ".tar.xz", ".tgz", ".txz", ".zip", ".rar", ".tar"} {
		if strings.HasSuffix(lower, ext) {
			f, _ := ParseFormat(ext)
			return f
		}
	}
	return ""
}

// Detect identifies the archive format from content. Compressed streams are
// peeked to confirm they hold a tar. hint is only used when the content is
// not recognised at all; a recognised but unsupported type is an error even
// when a hint is given.
func Detect(r io.ReaderAt, size int64, hint Format) (Format, error) {
	head := make([]byte, min(size, sniffLen))
	if _, err := r.ReadAt(head, 0); err != nil && err != io.EOF {
		return "", corrupt(err)
	}

	kind, _ := filetype.Match(head)
	switch kind.Extension {
	case "zip":
		return FormatZip, nil
	case "rar":
		return FormatRar, nil
	case "tar":
		return FormatTar, nil
	case "gz":
		gz, err := gzip.NewReader(io.NewSectionReader(r, 0, size))
		if err != nil {
			return "", corrupt(err)
		}
		defer func() { _ = gz.Close() }() // read-only
		if peekTar(gz) {
			return FormatTarGz, nil
		}
		return "", fmt.Errorf("%w: gzip stream does not contain a tar archive", ErrUnsupportedFormat)
	case "xz":
		xr, err := xz.NewReader(io.NewSectionReader(r, 0, size))
		if err != nil {
			return "", corrupt(err)
		}
		if peekTar(xr) {
			return FormatTarXz, nil
		}
		return "", fmt.Errorf("%w: xz stream does not contain a tar archive", ErrUnsupportedFormat)
	}

	if kind != filetype.Unknown {
		return "", fmt.Errorf("%w: content is %s", ErrUnsupportedFormat, kind.MIME.Value)
	}
	if hint != "" {
		return hint, nil
	}
	return "", ErrUnsupportedFormat
}

func peekTar(r io.Reader) bool {
	buf := make([]byte, sniffLen)
	n, _ := io.ReadFull(r, buf)
	if n <= tarMagicOffset+5 {
		return false
	}
	return bytes.HasPrefix(buf[tarMagicOffset:n], []byte("ustar"))
}
