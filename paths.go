// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package archivedir

import (
	"os"
	"path/filepath"
	"strings"
)

// canonicalPath returns an absolute, cleaned path with symlinks resolved. Paths that
// do not exist (yet) are resolved up to their deepest existing ancestor, so a file
// that is about to be written inside a temp directory still maps to that directory.
func canonicalPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		abs = filepath.Clean(p)
	}

	rest := ""
	cur := abs
	for {
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			return filepath.Join(resolved, rest)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs
		}
		rest = filepath.Join(filepath.Base(cur), rest)
		cur = parent
	}
}

// isWithin reports whether path is dir or lies below dir. Both must be canonical.
func isWithin(path string, dir string) bool {
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(dir, string(os.PathSeparator))+string(os.PathSeparator))
}

// isHidden reports whether a file name is hidden by convention.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// tempDirPattern derives a readable os.MkdirTemp pattern from the archive name.
func tempDirPattern(archive string) string {
	name := strings.ReplaceAll(filepath.Base(archive), "*", "_")
	return name + "-*"
}
