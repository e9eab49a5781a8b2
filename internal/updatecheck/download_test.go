// SPDX-License-Identifier: MPL-2.0

package updatecheck

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/modkit/modkit/internal/testutil"
)

func TestDownload(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("modkit"), 64<<10)
	sum := sha256.Sum256(payload)
	srv := newDocServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="Alpha 1.1.zip"`)
		w.Header().Set("Content-Length", "393216")
		_, _ = w.Write(payload)
	})

	t.Run("frozen clock reports once", func(t *testing.T) {
		t.Parallel()

		var reports []DownloadProgress
		var buf bytes.Buffer
		c := newTestChecker(t, WithHTTPClient(srv.Client()), WithClock(testutil.NewFakeClock(time.Time{})))
		res, err := c.Download(context.Background(), srv.URL+"/dl?id=1", &buf, func(p DownloadProgress) {
			reports = append(reports, p)
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !bytes.Equal(buf.Bytes(), payload) {
			t.Error("downloaded bytes differ")
		}
		if res.Bytes != int64(len(payload)) || res.SHA256 != hex.EncodeToString(sum[:]) || res.FileName != "Alpha 1.1.zip" {
			t.Errorf("result = %+v", res)
		}
		if len(reports) != 1 || reports[0].Done != int64(len(payload)) || reports[0].Total != int64(len(payload)) {
			t.Errorf("reports = %+v, want a single final report", reports)
		}
	})

	t.Run("moving clock reports while streaming", func(t *testing.T) {
		t.Parallel()

		var reports []DownloadProgress
		clock := &steppingClock{now: time.Unix(0, 0), step: 60 * time.Millisecond}
		c := newTestChecker(t, WithHTTPClient(srv.Client()), WithClock(clock))
		if _, err := c.Download(context.Background(), srv.URL, &bytes.Buffer{}, func(p DownloadProgress) {
			reports = append(reports, p)
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(reports) < 2 {
			t.Fatalf("got %d reports, want intermediate ones", len(reports))
		}
		for i := 1; i < len(reports); i++ {
			if reports[i].Done < reports[i-1].Done {
				t.Errorf("progress went backwards: %+v", reports)
			}
		}
	})
}

func TestDownload_Errors(t *testing.T) {
	t.Parallel()

	srv := newDocServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	c := newTestChecker(t, WithHTTPClient(srv.Client()))

	_, err := c.Download(context.Background(), srv.URL+"/a.zip?key=secret", &bytes.Buffer{}, nil)
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Status != http.StatusForbidden {
		t.Fatalf("error = %v, want FetchError 403", err)
	}
	if strings.Contains(err.Error(), "secret") {
		t.Error("error leaks the query string")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Download(ctx, srv.URL, &bytes.Buffer{}, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled download error = %v", err)
	}
}

func TestDownloadName(t *testing.T) {
	t.Parallel()

	srv := newDocServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("x"))
	})
	c := newTestChecker(t, WithHTTPClient(srv.Client()))
	res, err := c.Download(context.Background(), srv.URL+"/files/Nexerelin%200.11.tar.gz", &bytes.Buffer{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FileName != "Nexerelin 0.11.tar.gz" {
		t.Errorf("FileName = %q", res.FileName)
	}
}
