// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/modkit/modkit/internal/registry"
)

type (
	// Pool bounds how many installs extract at once. Commits are serialized
	// by the registry regardless of the pool size.
	Pool struct {
		in      *Installer
		sem     *semaphore.Weighted
		workers int
	}

	// Result is the outcome of one install in a batch.
	Result struct {
		Source string
		Mod    registry.InstalledMod
		Err    error
	}
)

// NewPool creates a pool running at most workers installs concurrently.
// Values below one are treated as one.
func NewPool(in *Installer, workers int) *Pool {
	workers = max(workers, 1)
	return &Pool{in: in, sem: semaphore.NewWeighted(int64(workers)), workers: workers}
}

// Workers returns the concurrency limit.
func (p *Pool) Workers() int { return p.workers }

// Installer returns the underlying installer.
func (p *Pool) Installer() *Installer { return p.in }

// Install waits for a free slot and then installs src.
func (p *Pool) Install(ctx context.Context, src Source, opts Options) (registry.InstalledMod, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return registry.InstalledMod{}, err
	}
	defer p.sem.Release(1)
	return p.in.Install(ctx, src, opts)
}

// InstallAll installs every source and returns one Result per source in
// input order. A failure only affects its own source. opts.OpID is ignored
// so that every install gets its own staging directory.
func (p *Pool) InstallAll(ctx context.Context, srcs []Source, opts Options) []Result {
	opts.OpID = ""
	results := make([]Result, len(srcs))
	var wg sync.WaitGroup
	for i, src := range srcs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mod, err := p.Install(ctx, src, opts)
			results[i] = Result{Source: src.Name, Mod: mod, Err: err}
		}()
	}
	wg.Wait()
	return results
}
