// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/tar"
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io/fs"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/ulikunitz/xz"
)

// Entry is one member of a test archive. A name ending in "/" is a directory.
// Linkname, when set, makes the entry a symlink pointing at it.
type Entry struct {
	Name     string
	Body     string
	Mode     fs.FileMode
	Linkname string
}

// File is shorthand for a regular file entry.
func File(name, body string) Entry {
	return Entry{Name: name, Body: body}
}

// ModFiles returns the entries of a minimal mod laid out under prefix
// (which may be empty or end in "/").
func ModFiles(prefix, id, ver string) []Entry {
	return []Entry{
		File(prefix+"mod_info.json", `{"id": "`+id+`", "name": "`+id+`", "version": "`+ver+`"}`),
		File(prefix+"data/config/settings.json", `{}`),
		File(prefix+"jars/"+id+".jar", "PK-not-really-a-jar"),
	}
}

func (e Entry) mode() fs.FileMode {
	if e.Mode != 0 {
		return e.Mode
	}
	if isDirName(e.Name) {
		return fs.ModeDir | 0o755
	}
	return 0o644
}

// ZipArchive builds a zip archive in memory.
func ZipArchive(t testing.TB, entries ...Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.Name, Method: zip.Deflate}
		mode := e.mode()
		body := e.Body
		if e.Linkname != "" {
			mode = fs.ModeSymlink | 0o777
			body = e.Linkname
		}
		hdr.SetMode(mode)
		if isDirName(e.Name) {
			hdr.Method = zip.Store
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("zip header %s: %v", e.Name, err)
		}
		if !isDirName(e.Name) {
			if _, err := w.Write([]byte(body)); err != nil {
				t.Fatalf("zip write %s: %v", e.Name, err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// TarArchive builds an uncompressed tar archive in memory.
func TarArchive(t testing.TB, entries ...Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.Name, Mode: int64(e.mode().Perm())}
		switch {
		case e.Linkname != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.Linkname
		case isDirName(e.Name):
			hdr.Typeflag = tar.TypeDir
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.Body))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("tar header %s: %v", e.Name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.Body)); err != nil {
				t.Fatalf("tar write %s: %v", e.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	return buf.Bytes()
}

// TarGzArchive builds a gzip-compressed tar archive in memory.
func TarGzArchive(t testing.TB, entries ...Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(TarArchive(t, entries...)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

// TarXzArchive builds an xz-compressed tar archive in memory.
func TarXzArchive(t testing.TB, entries ...Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatalf("xz writer: %v", err)
	}
	if _, err := xw.Write(TarArchive(t, entries...)); err != nil {
		t.Fatalf("xz write: %v", err)
	}
	if err := xw.Close(); err != nil {
		t.Fatalf("xz close: %v", err)
	}
	return buf.Bytes()
}

// GzipBytes compresses data as a single gzip member.
func GzipBytes(t testing.TB, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

// RarArchive builds a RAR 4.x archive with every file stored uncompressed.
// Symlink entries are not supported and are written as regular files.
func RarArchive(t testing.TB, entries ...Entry) []byte {
	t.Helper()
	const (
		blockArchive = 0x73
		blockFile    = 0x74
		blockEnd     = 0x7b
		flagLong     = 0x8000
		flagDir      = 0x00e0
		hostMSDOS    = 0
		attrArchive  = 0x20
		attrDir      = 0x10
		methodStore  = 0x30
		unpackVer    = 20
	)

	var buf bytes.Buffer
	buf.Write([]byte{0x52, 0x61, 0x72, 0x21, 0x1a, 0x07, 0x00})

	// block writes a header whose CRC covers everything after the CRC field.
	block := func(htype byte, flags uint16, fields []byte) {
		hdr := make([]byte, 0, 7+len(fields))
		hdr = binary.LittleEndian.AppendUint16(hdr, 0)
		hdr = append(hdr, htype)
		hdr = binary.LittleEndian.AppendUint16(hdr, flags)
		hdr = binary.LittleEndian.AppendUint16(hdr, uint16(7+len(fields)))
		hdr = append(hdr, fields...)
		binary.LittleEndian.PutUint16(hdr, uint16(crc32.ChecksumIEEE(hdr[2:])))
		buf.Write(hdr)
	}

	block(blockArchive, 0, make([]byte, 6))

	for _, e := range entries {
		name := e.Name
		flags := uint16(flagLong)
		attr := uint32(attrArchive)
		body := []byte(e.Body)
		if isDirName(name) {
			name = name[:len(name)-1]
			flags |= flagDir
			attr = attrDir
			body = nil
		}

		var f []byte
		f = binary.LittleEndian.AppendUint32(f, uint32(len(body))) // packed size
		f = binary.LittleEndian.AppendUint32(f, uint32(len(body))) // unpacked size
		f = append(f, hostMSDOS)
		f = binary.LittleEndian.AppendUint32(f, crc32.ChecksumIEEE(body))
		f = binary.LittleEndian.AppendUint32(f, 0x5a210000) // 2025-01-01 00:00 DOS time
		f = append(f, unpackVer, methodStore)
		f = binary.LittleEndian.AppendUint16(f, uint16(len(name)))
		f = binary.LittleEndian.AppendUint32(f, attr)
		f = append(f, name...)
		block(blockFile, flags, f)
		buf.Write(body)
	}

	block(blockEnd, 0x4000, nil)
	return buf.Bytes()
}

func isDirName(name string) bool {
	return len(name) > 0 && name[len(name)-1] == '/'
}
