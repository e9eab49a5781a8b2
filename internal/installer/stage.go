// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// DefaultMaxExtractBytes caps the total uncompressed size of one archive.
const DefaultMaxExtractBytes int64 = 8 << 30

// stager materialises archive entries below dir.
type stager struct {
	fs       afero.Fs
	dir      string
	maxBytes int64
	written  int64
	files    int
	skipped  []string
}

// stagePath maps an archive entry name onto a path below dir. It returns the
// empty string for names that refer to the staging root itself.
func stagePath(dir, name string) (string, error) {
	slashed := strings.ReplaceAll(name, `\`, "/")
	if path.IsAbs(slashed) || filepath.IsAbs(name) || hasVolume(slashed) {
		return "", &SecurityError{Entry: name, Reason: "absolute path"}
	}
	clean := path.Clean(slashed)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", &SecurityError{Entry: name, Reason: "path resolves outside the install directory"}
	}
	if clean == "." {
		return "", nil
	}
	return filepath.Join(dir, filepath.FromSlash(clean)), nil
}

// hasVolume reports a Windows drive prefix such as "C:".
func hasVolume(p string) bool {
	return len(p) >= 2 && p[1] == ':' && (p[0] >= 'a' && p[0] <= 'z' || p[0] >= 'A' && p[0] <= 'Z')
}

func (s *stager) emit(e Entry) error {
	// The guard runs for every entry, including the ones that are skipped.
	target, err := stagePath(s.dir, e.Name)
	if err != nil {
		return err
	}
	if target == "" {
		return nil
	}

	switch e.Type {
	case EntryLink:
		s.skipped = append(s.skipped, e.Name)
		return nil
	case EntryDir:
		if err := s.fs.MkdirAll(target, 0o755); err != nil {
			return fsError("mkdir", target, err)
		}
		return nil
	}

	if err := s.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fsError("mkdir", filepath.Dir(target), err)
	}
	perm := e.Mode.Perm()&0o755 | 0o600
	f, err := s.fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fsError("create", target, err)
	}

	remaining := s.maxBytes - s.written
	n, copyErr := io.Copy(f, io.LimitReader(e.Body, remaining+1))
	s.written += n
	closeErr := f.Close()

	switch {
	case errors.Is(copyErr, ErrCorruptArchive):
		return fmt.Errorf("%s: %w", e.Name, copyErr)
	case copyErr != nil:
		return fsError("write", target, copyErr)
	case n > remaining:
		return corrupt(fmt.Errorf("archive expands beyond %d bytes", s.maxBytes))
	case closeErr != nil:
		return fsError("close", target, closeErr)
	}
	s.files++
	return nil
}
