// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import (
	"errors"
	"syscall"
)

// watchLost reports whether err means inotify could not keep watching the
// mod root. Large mod folders hit max_user_watches (ENOSPC) first; EMFILE
// and ENFILE are descriptor exhaustion.
func watchLost(err error) bool {
	for _, errno := range []syscall.Errno{syscall.ENOSPC, syscall.EMFILE, syscall.ENFILE} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
