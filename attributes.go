// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package archivedir

import (
	"fmt"
	"io/fs"
	"os"
	"time"
)

// Attributes is a snapshot of the archive file's metadata, captured when the archive
// is opened and applied again after it was rebuilt.
type Attributes struct {
	// Mode holds the permission bits of the archive
	Mode fs.FileMode

	// ModTime is the modification time at open
	ModTime time.Time

	// BirthTime is the creation time at open, zero if the platform does not report it
	BirthTime time.Time

	// UID is the owner, -1 if unknown
	UID int

	// GID is the group, -1 if unknown
	GID int
}

// captureAttributes reads the attributes of path.
func captureAttributes(path string) (Attributes, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Attributes{}, fmt.Errorf("cannot stat archive: %w", err)
	}
	if !fi.Mode().IsRegular() {
		return Attributes{}, fmt.Errorf("archive is not a regular file: %s", path)
	}

	a := Attributes{
		Mode:    fi.Mode() & (fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky),
		ModTime: fi.ModTime(),
		UID:     -1,
		GID:     -1,
	}
	platformAttributes(path, &a)
	return a, nil
}

// restoreAttributes applies the snapshot to a rebuilt archive. The timestamps are
// set to now since the content changed. The rebuilt file is a new file, so its
// creation time already is the time of the rebuild. Ownership is best effort: only
// privileged processes may hand a file to another user.
func restoreAttributes(path string, a Attributes, now time.Time, l logger) error {
	// chown clears setuid and setgid, so it has to come first
	if a.UID >= 0 && a.GID >= 0 {
		if err := os.Chown(path, a.UID, a.GID); err != nil {
			l.Debug("cannot restore owner", "archive", path, "uid", a.UID, "gid", a.GID, "error", err)
		}
	}
	if err := os.Chmod(path, a.Mode); err != nil {
		return fmt.Errorf("cannot restore permissions: %w", err)
	}
	if err := os.Chtimes(path, now, now); err != nil {
		return fmt.Errorf("cannot update timestamps: %w", err)
	}
	return nil
}
