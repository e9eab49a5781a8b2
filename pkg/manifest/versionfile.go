// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/modkit/modkit/pkg/version"
)

// VersionFilesCSV is the path, relative to a mod directory, of the file that
// names the mod's local version file.
const VersionFilesCSV = "data/config/version/version_files.csv"

// VersionFile is a version-checker document. Mods ship a local copy; the
// copy at MasterURL is the authoritative remote one.
type VersionFile struct {
	MasterURL         string
	DirectDownloadURL string
	ModName           string
	ThreadID          string
	NexusID           string
	Version           version.Version
}

// ParseVersionFile decodes a version-checker document. The version may be
// given as modVersion, masterVersion or version, as a string or as a
// {major, minor, patch} object. An optional build key becomes build metadata.
func ParseVersionFile(data []byte) (*VersionFile, error) {
	tree, err := decodeTree(data)
	if err != nil {
		return nil, err
	}

	var (
		raw   any
		found bool
	)
	for _, key := range []string{"modVersion", "masterVersion", "version"} {
		if raw, found = lookup(tree, key); found {
			break
		}
	}
	if !found {
		return nil, missingField("modVersion")
	}
	v, ok := versionValue(raw)
	if !ok || v.IsZero() {
		return nil, invalidField("modVersion", "must be a version string or object")
	}
	if build := optionalString(tree, "build"); build != "" && v.Build() == "" {
		v = version.Parse(v.String() + "+" + build)
	}

	return &VersionFile{
		MasterURL:         optionalString(tree, "masterVersionFile"),
		DirectDownloadURL: optionalString(tree, "directDownloadURL"),
		ModName:           optionalString(tree, "modName"),
		ThreadID:          optionalString(tree, "modThreadId"),
		NexusID:           optionalString(tree, "modNexusId"),
		Version:           v,
	}, nil
}

// LocateVersionFile returns the version file path named by a
// version_files.csv: the first column of the first row after the header.
// The result is cleaned and slash-separated; paths escaping the mod
// directory are rejected.
func LocateVersionFile(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comment = '#'

	header := true
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return "", ErrNoVersionFile
		}
		if err != nil {
			return "", &ParseError{Field: VersionFilesCSV, Reason: "malformed csv", Cause: err}
		}
		if header {
			header = false
			continue
		}
		if len(rec) == 0 || strings.TrimSpace(rec[0]) == "" {
			continue
		}

		p := path.Clean(strings.ReplaceAll(strings.TrimSpace(rec[0]), `\`, "/"))
		if path.IsAbs(p) || p == ".." || strings.HasPrefix(p, "../") {
			return "", invalidField(VersionFilesCSV, "version file path escapes the mod directory")
		}
		return p, nil
	}
}
