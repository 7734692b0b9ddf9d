package archivedir

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCanonicalPath(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(root, "target")
	if err := os.Mkdir(target, 0755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(root, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %s", err)
	}

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "existing", input: target, want: target},
		{name: "unclean", input: target + "/./x/..", want: target},
		{name: "symlink", input: link, want: target},
		{name: "missing below symlink", input: filepath.Join(link, "a", "b.txt"), want: filepath.Join(target, "a", "b.txt")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := canonicalPath(tc.input); got != tc.want {
				t.Errorf("canonicalPath(%s) = %s; want %s", tc.input, got, tc.want)
			}
		})
	}
}

func TestIsWithin(t *testing.T) {
	tests := []struct {
		path string
		dir  string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a/b", "/tmp/a", true},
		{"/tmp/ab", "/tmp/a", false},
		{"/tmp", "/tmp/a", false},
		{"/tmp/a/b", "/", true},
	}

	for _, test := range tests {
		if got := isWithin(test.path, test.dir); got != test.want {
			t.Errorf("isWithin(%s, %s) = %v; want %v", test.path, test.dir, got, test.want)
		}
	}
}

func TestTempDirPattern(t *testing.T) {
	if got, want := tempDirPattern("/home/x/a*b.tar.gz"), "a_b.tar.gz-*"; got != want {
		t.Errorf("tempDirPattern() = %s; want %s", got, want)
	}
}
