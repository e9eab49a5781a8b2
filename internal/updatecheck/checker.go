// SPDX-License-Identifier: MPL-2.0

package updatecheck

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/modkit/modkit/internal/registry"
	"github.com/modkit/modkit/pkg/manifest"
)

const (
	// DefaultTimeout bounds one remote document fetch, retries included.
	DefaultTimeout = 500 * time.Millisecond

	// DefaultConcurrency is the number of checks CheckAll runs at once.
	DefaultConcurrency = 8

	// DefaultCacheTTL is how long a fetched document is reused.
	DefaultCacheTTL = 10 * time.Minute

	// DefaultUserAgent identifies modkit to mod hosts.
	DefaultUserAgent = "modkit"

	// maxDocumentBytes caps a remote version document (1 MB).
	maxDocumentBytes = 1 << 20

	retryInitialInterval = 20 * time.Millisecond
	retryMaxInterval     = 200 * time.Millisecond
)

type (
	// Clock supplies timestamps and drives progress throttling.
	Clock interface {
		Now() time.Time
	}

	// Checker fetches remote version documents and classifies mods against
	// them. It is safe for concurrent use.
	Checker struct {
		httpClient  *http.Client
		userAgent   string
		timeout     time.Duration
		concurrency int
		cacheTTL    time.Duration
		cache       *gocache.Cache
		clock       Clock
		logger      *log.Logger
	}

	// Option configures a Checker.
	Option func(*Checker)

	systemClock struct{}
)

func (systemClock) Now() time.Time { return time.Now() }

// WithHTTPClient sets the HTTP client, useful for tests and proxies.
func WithHTTPClient(c *http.Client) Option {
	return func(ch *Checker) {
		ch.httpClient = c
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(ch *Checker) {
		if ua != "" {
			ch.userAgent = ua
		}
	}
}

// WithTimeout bounds each document fetch, including retries.
func WithTimeout(d time.Duration) Option {
	return func(ch *Checker) {
		if d > 0 {
			ch.timeout = d
		}
	}
}

// WithConcurrency sets how many checks CheckAll runs in parallel.
func WithConcurrency(n int) Option {
	return func(ch *Checker) {
		if n > 0 {
			ch.concurrency = n
		}
	}
}

// WithCacheTTL sets how long fetched documents are reused. Zero disables
// caching.
func WithCacheTTL(d time.Duration) Option {
	return func(ch *Checker) {
		ch.cacheTTL = d
	}
}

// WithClock sets the clock used for timestamps and progress throttling.
func WithClock(c Clock) Option {
	return func(ch *Checker) {
		ch.clock = c
	}
}

// WithLogger sets the checker logger.
func WithLogger(l *log.Logger) Option {
	return func(ch *Checker) {
		ch.logger = l
	}
}

// New creates a Checker with sensible defaults.
func New(opts ...Option) *Checker {
	c := &Checker{
		httpClient:  http.DefaultClient,
		userAgent:   DefaultUserAgent,
		timeout:     DefaultTimeout,
		concurrency: DefaultConcurrency,
		cacheTTL:    DefaultCacheTTL,
		clock:       systemClock{},
		logger:      log.NewWithOptions(os.Stderr, log.Options{Prefix: "updatecheck"}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cacheTTL > 0 {
		c.cache = gocache.New(c.cacheTTL, 2*c.cacheTTL)
	}
	return c
}

// Check fetches the remote document for mod and classifies it. It never
// fails: problems are reported as OutcomeCheckFailed with Err set.
func (c *Checker) Check(ctx context.Context, mod registry.InstalledMod) Outcome {
	d := mod.Descriptor
	o := Outcome{
		ID:        mod.ID(),
		Local:     d.CheckedVersion(),
		CheckedAt: c.clock.Now(),
	}
	if !d.HasChecker() {
		o.Kind = OutcomeNoChecker
		return o
	}

	vf, err := c.Fetch(ctx, d.Checker.URL)
	if err != nil {
		o.Kind, o.Err = OutcomeCheckFailed, err
		c.logger.Debug("update check failed", "id", o.ID, "err", err)
		return o
	}

	o.Remote = vf.Version
	o.DownloadURL = cmp.Or(vf.DirectDownloadURL, d.Checker.DirectDownloadURL)
	o.Kind, o.Severity = Classify(o.Local, o.Remote)
	c.logger.Debug("update checked", "id", o.ID, "local", o.Local, "remote", o.Remote, "outcome", o.Kind)
	return o
}

// CheckAll checks every mod with bounded parallelism. The result slice is
// indexed like mods; onEach, when non-nil, is called once per mod as results
// arrive, never concurrently. Individual failures never stop the batch.
// Mods not yet started when ctx is cancelled are reported as failed.
func (c *Checker) CheckAll(ctx context.Context, mods []registry.InstalledMod, onEach func(int, Outcome)) []Outcome {
	out := make([]Outcome, len(mods))
	var mu sync.Mutex
	record := func(i int, o Outcome) {
		out[i] = o
		if onEach != nil {
			mu.Lock()
			onEach(i, o)
			mu.Unlock()
		}
	}

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, m := range mods {
		if err := ctx.Err(); err != nil {
			record(i, Outcome{ID: m.ID(), Kind: OutcomeCheckFailed, Local: m.Descriptor.CheckedVersion(), CheckedAt: c.clock.Now(), Err: err})
			continue
		}
		g.Go(func() error {
			record(i, c.Check(ctx, m))
			return nil
		})
	}
	_ = g.Wait() // workers never return errors
	return out
}

// Fetch returns the parsed version document at rawURL, from cache when a
// fresh copy is held. Transient failures are retried until the fetch timeout
// runs out.
func (c *Checker) Fetch(ctx context.Context, rawURL string) (*manifest.VersionFile, error) {
	if c.cache != nil {
		if v, ok := c.cache.Get(rawURL); ok {
			if vf, ok := v.(*manifest.VersionFile); ok {
				return vf, nil
			}
		}
	}

	c.warnPlaintext(rawURL)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = c.timeout

	attempts := 0
	data, err := backoff.RetryWithData(func() ([]byte, error) {
		attempts++
		return c.fetchOnce(ctx, rawURL)
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, newFetchError(rawURL, attempts, err)
	}

	vf, err := manifest.ParseVersionFile(data)
	if err != nil {
		return nil, fmt.Errorf("remote version file %s: %w", redactURL(rawURL), err)
	}
	if c.cache != nil {
		c.cache.SetDefault(rawURL, vf)
	}
	return vf, nil
}

// InvalidateCache drops every cached document.
func (c *Checker) InvalidateCache() {
	if c.cache != nil {
		c.cache.Flush()
	}
}

// fetchOnce performs one GET. Errors worth retrying are returned as is,
// everything else is marked permanent.
func (c *Checker) fetchOnce(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.doRequest(ctx, rawURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= http.StatusInternalServerError:
		return nil, &statusError{code: resp.StatusCode}
	default:
		return nil, backoff.Permanent(&statusError{code: resp.StatusCode})
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxDocumentBytes {
		return nil, backoff.Permanent(fmt.Errorf("%w: over %d bytes", ErrTooLarge, maxDocumentBytes))
	}
	return data, nil
}

// doRequest creates and executes a GET with the common headers.
func (c *Checker) doRequest(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	return resp, nil
}

// warnPlaintext logs when rawURL is fetched without TLS. Plain http is still
// allowed: many mod authors host their version files on http-only sites.
func (c *Checker) warnPlaintext(rawURL string) {
	if u, err := url.Parse(rawURL); err == nil && strings.EqualFold(u.Scheme, "http") {
		c.logger.Warn("fetching over unencrypted http", "url", redactURL(rawURL))
	}
}

// IsNetworkError reports whether err came from talking to a remote host
// rather than from parsing what it returned.
func IsNetworkError(err error) bool {
	return errors.Is(err, ErrFetch)
}
