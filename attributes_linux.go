// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

//go:build linux

package archivedir

import (
	"time"

	"golang.org/x/sys/unix"
)

// platformAttributes fills owner and creation time from statx. Filesystems without
// birth time support leave BirthTime zero.
func platformAttributes(path string, a *Attributes) {
	var stx unix.Statx_t
	mask := unix.STATX_BTIME | unix.STATX_UID | unix.STATX_GID
	if err := unix.Statx(unix.AT_FDCWD, path, 0, mask, &stx); err != nil {
		return
	}
	if stx.Mask&unix.STATX_UID != 0 && stx.Mask&unix.STATX_GID != 0 {
		a.UID = int(stx.Uid)
		a.GID = int(stx.Gid)
	}
	if stx.Mask&unix.STATX_BTIME != 0 {
		a.BirthTime = time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec))
	}
}
