// SPDX-License-Identifier: MPL-2.0

package updatecheck

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"time"
)

const (
	// progressInterval is the minimum gap between two download progress
	// callbacks.
	progressInterval = 50 * time.Millisecond

	// maxDownloadBytes caps a mod archive download (4 GB).
	maxDownloadBytes = 4 << 30
)

type (
	// DownloadProgress reports bytes received. Total is -1 when the server
	// did not announce a length.
	DownloadProgress struct {
		Done  int64
		Total int64
	}

	// DownloadResult describes a finished download.
	DownloadResult struct {
		// FileName comes from Content-Disposition, else from the URL path.
		FileName string
		Bytes    int64
		SHA256   string
	}

	// progressWriter counts bytes, hashes them and throttles callbacks.
	progressWriter struct {
		hash     hash.Hash
		done     int64
		total    int64
		clock    Clock
		last     time.Time
		progress func(DownloadProgress)
	}
)

// Download streams the archive at rawURL into dst. progress, when non-nil,
// is called at most once per 50ms while data arrives and once more at the
// end. There is no overall timeout; ctx cancels the transfer.
func (c *Checker) Download(ctx context.Context, rawURL string, dst io.Writer, progress func(DownloadProgress)) (DownloadResult, error) {
	c.warnPlaintext(rawURL)
	resp, err := c.doRequest(ctx, rawURL)
	if err != nil {
		return DownloadResult{}, newFetchError(rawURL, 1, err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode != http.StatusOK {
		return DownloadResult{}, newFetchError(rawURL, 1, &statusError{code: resp.StatusCode})
	}

	pw := &progressWriter{
		hash:     sha256.New(),
		total:    resp.ContentLength,
		clock:    c.clock,
		last:     c.clock.Now(),
		progress: progress,
	}
	n, err := io.Copy(io.MultiWriter(dst, pw), io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return DownloadResult{}, newFetchError(rawURL, 1, err)
	}
	if n > maxDownloadBytes {
		return DownloadResult{}, newFetchError(rawURL, 1, fmt.Errorf("%w: over %d bytes", ErrTooLarge, int64(maxDownloadBytes)))
	}
	if pw.total >= 0 && n != pw.total {
		return DownloadResult{}, newFetchError(rawURL, 1, fmt.Errorf("%w: received %d of %d bytes", io.ErrUnexpectedEOF, n, pw.total))
	}
	pw.report()

	c.logger.Debug("downloaded", "url", redactURL(rawURL), "bytes", n)
	return DownloadResult{
		FileName: downloadName(resp),
		Bytes:    n,
		SHA256:   hex.EncodeToString(pw.hash.Sum(nil)),
	}, nil
}

func (w *progressWriter) Write(p []byte) (int, error) {
	_, _ = w.hash.Write(p) // hash.Hash writes never fail
	w.done += int64(len(p))
	if now := w.clock.Now(); now.Sub(w.last) >= progressInterval {
		w.last = now
		w.report()
	}
	return len(p), nil
}

func (w *progressWriter) report() {
	if w.progress != nil {
		w.progress(DownloadProgress{Done: w.done, Total: w.total})
	}
}

// downloadName picks a file name for the response, which callers use as a
// format hint.
func downloadName(resp *http.Response) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			return path.Base(params["filename"])
		}
	}
	u := resp.Request.URL
	if u == nil {
		return ""
	}
	if p, err := url.PathUnescape(u.Path); err == nil {
		if base := path.Base(p); base != "/" && base != "." {
			return base
		}
	}
	return ""
}
