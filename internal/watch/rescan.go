// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/modkit/modkit/internal/installer"
	"github.com/modkit/modkit/internal/registry"
	"github.com/modkit/modkit/internal/state"
	"github.com/modkit/modkit/pkg/manifest"
)

// ModRootPatterns selects the paths under a mod root whose changes alter the
// registry: top-level entries (mod folders appearing or disappearing and the
// enabled list), manifests and local version files.
func ModRootPatterns() []string {
	return []string{
		"*",
		state.EnabledFileName,
		"*/" + manifest.FileName,
		"*/data/config/version/**",
	}
}

// ModRootIgnores excludes in-flight installs.
func ModRootIgnores() []string {
	return []string{
		installer.StagingDirName,
		installer.StagingDirName + "/**",
	}
}

// NewRescanner returns a Watcher on the registry's mod root that rescans the
// registry whenever a relevant path changes. debounce <= 0 uses the default.
func NewRescanner(reg *registry.Registry, debounce time.Duration, logger *log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "watch"})
	}
	return New(Config{
		BaseDir:  reg.Root(),
		Patterns: ModRootPatterns(),
		Ignore:   ModRootIgnores(),
		Debounce: debounce,
		Logger:   logger,
		OnChange: func(ctx context.Context, changed []string) error {
			logger.Debug("mod root changed, rescanning", "paths", len(changed))
			diags, err := reg.Rescan(ctx)
			if err != nil {
				return err
			}
			for _, d := range diags {
				logger.Debug("scan diagnostic", "diagnostic", d.String())
			}
			return nil
		},
	})
}
