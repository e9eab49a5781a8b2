// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import (
	"fmt"
	"syscall"
	"testing"
)

func TestWatchLost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want bool
	}{
		{syscall.ENOSPC, true},
		{syscall.EMFILE, true},
		{syscall.ENFILE, true},
		{fmt.Errorf("add watch %s: %w", "mods/alpha", syscall.ENOSPC), true},
		{syscall.EACCES, false},
		{fmt.Errorf("mods/alpha: permission denied"), false},
	}
	for _, tt := range tests {
		if got := watchLost(tt.err); got != tt.want {
			t.Errorf("watchLost(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
