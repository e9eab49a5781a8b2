// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
)

// Source is an archive to install.
type Source struct {
	// Name identifies the archive in logs, progress and install metadata.
	Name string
	open func() (io.ReaderAt, int64, io.Closer, error)
}

// FromFile reads the archive at path.
func FromFile(path string) Source {
	return Source{
		Name: filepath.Base(path),
		open: func() (io.ReaderAt, int64, io.Closer, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, 0, nil, fsError("open", path, err)
			}
			info, err := f.Stat()
			if err != nil {
				_ = f.Close()
				return nil, 0, nil, fsError("stat", path, err)
			}
			if !info.Mode().IsRegular() {
				_ = f.Close()
				return nil, 0, nil, fsError("open", path, errors.New("not a regular file"))
			}
			return f, info.Size(), f, nil
		},
	}
}

// FromBytes reads an archive held in memory.
func FromBytes(name string, data []byte) Source {
	return FromReaderAt(name, bytes.NewReader(data), int64(len(data)))
}

// FromReaderAt reads size bytes of archive from r. The caller keeps ownership
// of r.
func FromReaderAt(name string, r io.ReaderAt, size int64) Source {
	return Source{
		Name: name,
		open: func() (io.ReaderAt, int64, io.Closer, error) {
			return r, size, io.NopCloser(nil), nil
		},
	}
}

// FormatHint guesses the format from the source name.
func (s Source) FormatHint() Format {
	return FormatFromName(s.Name)
}
