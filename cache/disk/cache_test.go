package disk

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/opencontainers/go-digest"
)

func testKey(s string) digest.Digest {
	return digest.FromString(s)
}

// put stores content under key through a Writer and returns the entry path.
func put(t *testing.T, c *Cache, key digest.Digest, content []byte) string {
	t.Helper()
	w, err := c.Writer(key)
	if err != nil {
		t.Fatalf("Writer() error = %v", err)
	}
	if _, err := w.Write(content); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	path, err := w.Commit()
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	return path
}

func TestCacheGet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	key := testKey("hello")
	content := []byte("hello")

	path := put(t, c, key, content)
	want := filepath.Join(dir, key.Encoded())
	if path != want {
		t.Fatalf("Commit() path = %s, want %s", path, want)
	}

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("Get() content = %q, want %q", got, content)
	}

	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected cache file at %s: %v", want, err)
	}
}

func TestCacheLookupMiss(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if path, ok := c.Lookup(testKey("missing")); ok {
		t.Fatalf("Lookup() = %s, true; want miss", path)
	}
	if _, ok := c.Get(testKey("missing")); ok {
		t.Fatal("Get() ok = true, want false")
	}
}

func TestCacheLookupIgnoresDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	key := testKey("dir")
	if err := os.Mkdir(filepath.Join(dir, key.Encoded()), 0o755); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}
	if _, ok := c.Lookup(key); ok {
		t.Fatal("Lookup() ok = true for a directory, want false")
	}
}

func TestCacheWriterCommit(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	key := testKey("streamed")
	content := []byte("streamed")

	w, err := c.Writer(key)
	if err != nil {
		t.Fatalf("Writer() error = %v", err)
	}
	if _, ok := c.Lookup(key); ok {
		t.Fatal("entry visible before Commit()")
	}
	if _, err := w.Write(content); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	path, err := w.Commit()
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("entry content = %q, want %q", got, content)
	}
}

func TestCacheWriterDiscard(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	key := testKey("discard")
	w, err := c.Writer(key)
	if err != nil {
		t.Fatalf("Writer() error = %v", err)
	}
	if _, err := w.Write([]byte("discard")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Discard(); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}

	if got, ok := c.Get(key); ok {
		t.Fatalf("Get() ok = true, want false (content %q)", got)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("cache dir has %d entries after Discard(), want 0", len(entries))
	}
}

func TestCacheWriterExistingEntry(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	key := testKey("exists")
	want := put(t, c, key, []byte("original"))

	w, err := c.Writer(key)
	if err != nil {
		t.Fatalf("Writer() error = %v", err)
	}
	if _, err := w.Write([]byte("replacement")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	path, err := w.Commit()
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if path != want {
		t.Fatalf("Commit() path = %s, want %s", path, want)
	}
	got, _ := c.Get(key)
	if string(got) != "original" {
		t.Fatalf("Get() = %q, want %q", got, "original")
	}
}

func TestCacheConcurrentWriters(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	key := testKey("race")
	content := bytes.Repeat([]byte("same bytes "), 1024)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := c.newWriter(key)
			if err != nil {
				errs <- err
				return
			}
			if _, err := w.Write(content); err != nil {
				errs <- err
				return
			}
			if _, err := w.Commit(); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent write error = %v", err)
	}

	got, ok := c.Get(key)
	if !ok || !bytes.Equal(got, content) {
		t.Fatal("entry content differs after concurrent writes")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("cache dir has %d entries, want 1", len(entries))
	}
}

func TestCacheShard(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir, WithShardPrefixLen(2))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	key := testKey("sharded")
	put(t, c, key, []byte("sharded"))

	hexKey := key.Encoded()
	path := filepath.Join(dir, hexKey[:2], hexKey)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected sharded cache file at %s: %v", path, err)
	}
}

func TestCacheInvalidKey(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := c.Path(digest.Digest("sha256:nothex")); err == nil {
		t.Fatal("Path() error = nil for malformed digest")
	}
	if _, err := c.Writer(digest.Digest("")); err == nil {
		t.Fatal("Writer() error = nil for empty digest")
	}
}

func TestNewErrors(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New(\"\") error = nil")
	}
	if _, err := New(t.TempDir(), WithShardPrefixLen(-1)); err == nil {
		t.Fatal("New() error = nil for negative shard prefix")
	}
}

func TestNewCreatesNestedDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "a", "b", "cache")
	if _, err := New(dir); err != nil {
		t.Fatalf("New() error = %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("cache root not created: %v", err)
	}
}

func TestUsage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	put(t, c, testKey("a"), []byte("aaa"))
	put(t, c, testKey("b"), []byte("bb"))
	// An abandoned temp file must not be counted.
	if err := os.WriteFile(filepath.Join(dir, ".tmp-123"), []byte("partial"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	u, err := c.Usage()
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if u.Entries != 2 || u.Bytes != 5 {
		t.Fatalf("Usage() = %+v, want {Entries:2 Bytes:5}", u)
	}
}
