// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package archivedir

import (
	"errors"
	"path/filepath"
)

// NavigationState tracks whether a browsing pane currently shows the inside of an
// archive. Each pane owns one value; it is not safe for concurrent use.
//
// The archive path and the temp directory are always set together or not at all.
type NavigationState struct {
	insideArchive bool
	archivePath   string
	tempDir       string
}

// EnterArchive records that the pane now browses the temp directory of archivePath.
func (n *NavigationState) EnterArchive(archivePath string, tempDir string) error {
	if len(archivePath) == 0 || len(tempDir) == 0 {
		return errors.New("archive path and temp directory are required")
	}
	n.insideArchive = true
	n.archivePath = archivePath
	n.tempDir = tempDir
	return nil
}

// ExitArchive records that the pane left the archive.
func (n *NavigationState) ExitArchive() {
	n.insideArchive = false
	n.archivePath = ""
	n.tempDir = ""
}

// IsInsideArchive reports whether the pane is inside an archive.
func (n *NavigationState) IsInsideArchive() bool {
	return n.insideArchive
}

// ArchivePath returns the archive the pane is inside of, or "".
func (n *NavigationState) ArchivePath() string {
	return n.archivePath
}

// TempDir returns the temp directory of the archive the pane is inside of, or "".
func (n *NavigationState) TempDir() string {
	return n.tempDir
}

// IsAtArchiveRoot reports whether current is the root of the extracted archive, in
// which case going up leaves the archive instead of walking up the temp directory.
func (n *NavigationState) IsAtArchiveRoot(current string) bool {
	if !n.insideArchive {
		return false
	}
	return canonicalPath(current) == canonicalPath(n.tempDir)
}

// NavigateUp returns the directory to show when the user goes up from current. At
// the archive root this is the folder holding the archive, and the pane leaves the
// archive; exited is true in that case.
func (n *NavigationState) NavigateUp(current string) (next string, exited bool) {
	if n.IsAtArchiveRoot(current) {
		next = filepath.Dir(n.archivePath)
		n.ExitArchive()
		return next, true
	}
	return filepath.Dir(filepath.Clean(current)), false
}
