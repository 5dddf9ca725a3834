// package testing contains shared testing utilities: failing writers, filesystem helpers
// and in-memory fakes of the source, platform and ledger collaborators
package testing

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// ErrWrite is returned by the failing writers.
var ErrWrite = errors.New("write failed")

// FWriter fails every Write.
type FWriter struct{}

func (f *FWriter) Write(p []byte) (int, error) {
	return 0, ErrWrite
}

// LimitedWriter forwards to target until maxWrites calls have been made, then fails.
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (int, error) {
	if l.written >= l.maxWrites {
		return 0, ErrWrite
	}
	l.written++
	return l.target.Write(p)
}

// NewLimitedWriter starts the count at written, so passing maxWrites == written fails immediately.
func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// InTempDir moves the test into a fresh directory, restored when the test ends.
func InTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("file does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(content)
}
