// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package archivedir opens archives as ordinary directories.
//
// A [Registry] extracts an archive into a private temp directory with the matching
// external tool (unzip, tar or the generic 7z tool), tracks whether the extracted
// content changed and rebuilds the archive in its original format when the session
// is closed. The original archive is backed up during the rebuild and restored if
// the tool fails.
//
// Formats are detected from the file name with [Detect]. Compound extensions such as
// ".tar.gz" take precedence over the trailing extension. Configuration is done using
// [Config] in an option pattern style; telemetry data of every open and close is
// passed to a [TelemetryHook].
//
// A [NavigationState] per browsing pane tells whether the pane is inside an archive
// and whether going up should leave it.
package archivedir
