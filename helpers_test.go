package archivedir_test

import (
	"archive/tar"
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	archivedir "github.com/hashicorp/go-archivedir"
	"github.com/klauspost/compress/gzip"
)

// fakeRunner emulates tar, zip and the generic tool. Extractions write a fixed tree
// into the destination, rebuilds write a marker file to the archive path.
type fakeRunner struct {
	mu          sync.Mutex
	calls       []archivedir.Invocation
	delay       time.Duration
	failExtract map[archivedir.ToolKind]bool
	failPack    map[archivedir.ToolKind]bool
}

// fakeTree is what every fake extraction produces
var fakeTree = map[string]string{
	"hello.txt":      "hello",
	"dir/nested.txt": "nested",
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		failExtract: make(map[archivedir.ToolKind]bool),
		failPack:    make(map[archivedir.ToolKind]bool),
	}
}

func (f *fakeRunner) Start(ctx context.Context, inv archivedir.Invocation) <-chan archivedir.Result {
	results := make(chan archivedir.Result, 1)
	go func() {
		defer close(results)
		results <- f.run(inv)
	}()
	return results
}

func (f *fakeRunner) run(inv archivedir.Invocation) archivedir.Result {
	extract, target := parseInvocation(inv)

	f.mu.Lock()
	f.calls = append(f.calls, inv)
	delay := f.delay
	failExtract := f.failExtract[inv.Tool]
	failPack := f.failPack[inv.Tool]
	f.mu.Unlock()

	time.Sleep(delay)

	res := archivedir.Result{Invocation: inv, Outcome: archivedir.OutcomeSuccess}
	failure := func(msg string) archivedir.Result {
		res.Outcome = archivedir.OutcomeFailure
		res.ExitCode = 2
		res.Stderr = msg
		return res
	}

	if extract {
		if failExtract {
			// leave some debris behind like a real tool would
			_ = os.WriteFile(filepath.Join(target, "partial"), []byte("x"), 0644)
			return failure("cannot extract")
		}
		for name, content := range fakeTree {
			p := filepath.Join(target, name)
			if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
				return failure(err.Error())
			}
			if err := os.WriteFile(p, []byte(content), 0644); err != nil {
				return failure(err.Error())
			}
		}
		return res
	}

	if failPack {
		_ = os.WriteFile(target, []byte("garbage"), 0644)
		return failure("cannot create archive")
	}
	if err := os.WriteFile(target, []byte("rebuilt by "+inv.Tool.String()), 0644); err != nil {
		return failure(err.Error())
	}
	return res
}

// parseInvocation returns whether inv extracts and the destination directory or the
// archive that is written.
func parseInvocation(inv archivedir.Invocation) (bool, string) {
	args := inv.Args
	switch inv.Tool {
	case archivedir.ToolTar:
		if args[0] == "-x" {
			return true, argAfter(args, "-C")
		}
		return false, argAfter(args, "-f")
	case archivedir.ToolZip:
		if dst := argAfter(args, "-d"); len(dst) > 0 {
			return true, dst
		}
		return false, args[3]
	case archivedir.ToolGeneric:
		if args[0] == "x" {
			for _, a := range args {
				if strings.HasPrefix(a, "-o") {
					return true, strings.TrimPrefix(a, "-o")
				}
			}
		}
		return false, args[2]
	}
	return false, ""
}

func argAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

// count returns the number of extractions (extract=true) or rebuilds.
func (f *fakeRunner) count(extract bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, inv := range f.calls {
		if e, _ := parseInvocation(inv); e == extract {
			n++
		}
	}
	return n
}

func (f *fakeRunner) invocations() []archivedir.Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]archivedir.Invocation(nil), f.calls...)
}

// fakeGenericTool creates an executable file that the tool locator accepts
func fakeGenericTool(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "7zz")
	if err := os.WriteFile(p, []byte("#!/bin/sh\nexit 0\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return p
}

// newTestRegistry creates a registry with its scratch directory inside the test's
// temp directory and no generic tool, unless opts say otherwise.
func newTestRegistry(t *testing.T, runner archivedir.Runner, opts ...archivedir.ConfigOption) *archivedir.Registry {
	t.Helper()
	base := []archivedir.ConfigOption{
		archivedir.WithRunner(runner),
		archivedir.WithScratchDir(filepath.Join(t.TempDir(), "scratch")),
		archivedir.WithGenericToolCandidates(filepath.Join(t.TempDir(), "missing-7z")),
	}
	r, err := archivedir.NewRegistry(append(base, opts...)...)
	if err != nil {
		t.Fatalf("cannot create registry: %s", err)
	}
	return r
}

// newArchiveFile writes a file with the given name and content into a fresh directory
// and returns its canonical path.
func newArchiveFile(t *testing.T, name string, content string) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

// readFile returns the content of path or fails the test
func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

// exists reports whether path exists
func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// createTarGz writes a gzip compressed tar archive with the given files
func createTarGz(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	addFilesToTar(t, tw, files)
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
}

// addFilesToTar writes regular file entries to tw
func addFilesToTar(t *testing.T, tw *tar.Writer, files map[string]string) {
	t.Helper()
	for name, content := range files {
		hdr := &tar.Header{
			Name:     name,
			Mode:     0644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
			ModTime:  time.Now().Add(-time.Hour),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
}

// createZip writes a zip archive with the given files
func createZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}
