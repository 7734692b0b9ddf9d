// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package archivedir

import "time"

// Session is the record of one open archive. The registry hands out copies; only the
// registry itself changes Dirty.
type Session struct {
	// ArchivePath is the canonical path of the archive file
	ArchivePath string

	// TempDir is the canonical path of the scratch directory the archive was
	// extracted to. It is owned by this session only.
	TempDir string

	// Format is the format detected at open
	Format Format

	// GenericToolAvailable tells whether the generic tool was found at open
	GenericToolAvailable bool

	// Dirty is true once a change was reported. It never goes back to false.
	Dirty bool

	// CreatedAt is the time the extraction finished. Entries modified after it are edits.
	CreatedAt time.Time

	// Attributes is the snapshot of the archive file's metadata at open
	Attributes Attributes

	// Baseline maps the relative path of every visible entry to its modification
	// time right after extraction
	Baseline map[string]time.Time
}

// Contains reports whether the canonical path lies inside the session's temp directory.
func (s Session) Contains(path string) bool {
	return isWithin(path, s.TempDir)
}
