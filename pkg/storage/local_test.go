package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func writeSnapshot(t *testing.T, s *Local, path, data string) {
	t.Helper()
	w, err := s.Write(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(w, data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func readSnapshot(t *testing.T, s *Local, path string) string {
	t.Helper()
	r, err := s.Read(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return string(got)
}

func TestWriteAndRead(t *testing.T) {
	s := newTestLocal(t)
	writeSnapshot(t, s, "index/memories.hnsw", "graph bytes")
	if got := readSnapshot(t, s, "index/memories.hnsw"); got != "graph bytes" {
		t.Fatalf("got %q, want %q", got, "graph bytes")
	}
}

func TestReadNotExist(t *testing.T) {
	s := newTestLocal(t)
	_, err := s.Read(context.Background(), "no-such-snapshot")
	if err == nil {
		t.Fatal("expected error for missing snapshot")
	}
	if !os.IsNotExist(err) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestExists(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected false for missing snapshot")
	}

	writeSnapshot(t, s, "present", "x")
	ok, err = s.Exists(ctx, "present")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected true for existing snapshot")
	}
}

func TestWriteReplacesAtomically(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	writeSnapshot(t, s, "f", "previous version, longer")

	// An abandoned write (never closed) must not disturb the previous
	// version or register as the snapshot.
	w, err := s.Write(ctx, "f")
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(w, "half-writ")
	if got := readSnapshot(t, s, "f"); got != "previous version, longer" {
		t.Fatalf("previous snapshot disturbed: got %q", got)
	}
	w.Close()

	writeSnapshot(t, s, "f", "short")
	if got := readSnapshot(t, s, "f"); got != "short" {
		t.Fatalf("got %q, want %q", got, "short")
	}
}

func TestNewLocalCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "index")
	s, err := NewLocal(dir)
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(s.root)
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsDir() {
		t.Fatal("expected directory")
	}
}

func TestWriteErrorReadOnlyRoot(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocal(dir)
	if err != nil {
		t.Fatal(err)
	}
	os.Chmod(dir, 0o444)
	t.Cleanup(func() { os.Chmod(dir, 0o755) })

	_, err = s.Write(context.Background(), "sub/file")
	if err == nil {
		t.Fatal("expected error writing under a read-only root")
	}
}

func TestResolvePathTraversal(t *testing.T) {
	s := newTestLocal(t)

	// Traversal attempts must stay under root.
	cases := []string{
		"../etc/passwd",
		"a/../../etc/passwd",
		"../../../../../../../etc/passwd",
	}
	for _, tc := range cases {
		resolved := s.resolve(tc)
		if !strings.HasPrefix(resolved, s.root) {
			t.Errorf("resolve(%q) = %q, escapes root %q", tc, resolved, s.root)
		}
	}
}

var _ FileStore = (*Local)(nil)
