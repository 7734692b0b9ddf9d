// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

//go:build darwin

package archivedir

import (
	"time"

	"golang.org/x/sys/unix"
)

// platformAttributes fills owner and creation time from stat.
func platformAttributes(path string, a *Attributes) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return
	}
	a.UID = int(st.Uid)
	a.GID = int(st.Gid)
	a.BirthTime = time.Unix(st.Btim.Unix())
}
