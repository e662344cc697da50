package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kiransahoo/ddd-refactor/internal/agent"
)

func sampleVerdict(unit string) agent.FileVerdict {
	return agent.FileVerdict{
		Unit:         unit,
		Violation:    true,
		Reason:       "Chunk 1 => direct db call in domain",
		SuggestedFix: "//--- fix for chunk 1 ---\nfunc Save() {}\n",
		Chunks: []agent.ChunkVerdict{{
			ChunkIndex:   1,
			Violation:    true,
			Reason:       "direct db call in domain",
			SuggestedFix: "func Save() {}",
			Attempts:     2,
		}},
	}
}

func TestHashBytes(t *testing.T) {
	// Well-known sha-256 of "abc".
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := HashBytes([]byte("abc")); got != want {
		t.Errorf("HashBytes = %s, want %s", got, want)
	}
	if HashString("abc") != HashBytes([]byte("abc")) {
		t.Errorf("HashString and HashBytes disagree")
	}
}

func TestHashIsByteExact(t *testing.T) {
	base := HashString("func main() {}")
	if HashString("func main() {}") != base {
		t.Errorf("hash is not deterministic")
	}
	if HashString("func main() {} ") == base {
		t.Errorf("trailing space did not change the hash")
	}
	if HashString("func main() {}\n") == base {
		t.Errorf("trailing newline did not change the hash")
	}
}

func TestDirCacheRoundtrip(t *testing.T) {
	dir := t.TempDir()
	c, err := NewDirCache(dir)
	if err != nil {
		t.Fatalf("NewDirCache: %v", err)
	}
	ctx := context.Background()
	want := sampleVerdict("legacy/order.go")
	key := HashString("file body")

	if _, ok := c.Get(ctx, key); ok {
		t.Fatalf("unexpected hit before Put")
	}
	c.Put(ctx, key, want)
	got, ok := c.Get(ctx, key)
	if !ok {
		t.Fatalf("miss after Put")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("verdict mismatch (-want +got):\n%s", diff)
	}

	if _, err := os.Stat(filepath.Join(dir, key+".json")); err != nil {
		t.Errorf("expected entry file %s.json: %v", key, err)
	}
}

func TestDirCacheCorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	c, err := NewDirCache(dir)
	if err != nil {
		t.Fatalf("NewDirCache: %v", err)
	}
	key := HashString("x")
	if err := os.WriteFile(filepath.Join(dir, key+".json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, ok := c.Get(context.Background(), key); ok {
		t.Errorf("corrupt entry produced a hit")
	}
}

func TestDirCachePurge(t *testing.T) {
	c, err := NewDirCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirCache: %v", err)
	}
	ctx := context.Background()
	c.Put(ctx, HashString("a"), sampleVerdict("a.go"))
	c.Put(ctx, HashString("b"), sampleVerdict("b.go"))

	if err := c.Purge(ctx); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if _, ok := c.Get(ctx, HashString("a")); ok {
		t.Errorf("entry survived purge")
	}
}

func TestDirCacheRequiresRoot(t *testing.T) {
	if _, err := NewDirCache(""); err == nil {
		t.Fatalf("expected error for empty root")
	}
}

func TestSQLiteCacheRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verdicts.db")
	c, err := NewSQLiteCache(path)
	if err != nil {
		t.Fatalf("NewSQLiteCache: %v", err)
	}
	defer c.Close()
	ctx := context.Background()
	want := sampleVerdict("legacy/order.go")
	key := HashString("file body")

	if _, ok := c.Get(ctx, key); ok {
		t.Fatalf("unexpected hit before Put")
	}
	c.Put(ctx, key, want)
	got, ok := c.Get(ctx, key)
	if !ok {
		t.Fatalf("miss after Put")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("verdict mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLiteCacheReplaces(t *testing.T) {
	c, err := NewSQLiteCache(filepath.Join(t.TempDir(), "verdicts.db"))
	if err != nil {
		t.Fatalf("NewSQLiteCache: %v", err)
	}
	defer c.Close()
	ctx := context.Background()
	key := HashString("same bytes")

	first := sampleVerdict("first.go")
	second := sampleVerdict("second.go")
	c.Put(ctx, key, first)
	c.Put(ctx, key, second)

	got, ok := c.Get(ctx, key)
	if !ok || got.Unit != "second.go" {
		t.Errorf("got %+v ok=%v, want the replacement entry", got, ok)
	}
}

func TestSQLiteCachePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verdicts.db")
	ctx := context.Background()
	key := HashString("persist")

	c, err := NewSQLiteCache(path)
	if err != nil {
		t.Fatalf("NewSQLiteCache: %v", err)
	}
	c.Put(ctx, key, sampleVerdict("p.go"))
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewSQLiteCache(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, ok := reopened.Get(ctx, key); !ok {
		t.Errorf("entry lost across reopen")
	}
}

func TestSQLiteCachePurge(t *testing.T) {
	c, err := NewSQLiteCache(filepath.Join(t.TempDir(), "verdicts.db"))
	if err != nil {
		t.Fatalf("NewSQLiteCache: %v", err)
	}
	defer c.Close()
	ctx := context.Background()
	c.Put(ctx, HashString("a"), sampleVerdict("a.go"))

	if err := c.Purge(ctx); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if _, ok := c.Get(ctx, HashString("a")); ok {
		t.Errorf("entry survived purge")
	}
}

func TestNoop(t *testing.T) {
	c := NewNoop()
	ctx := context.Background()
	c.Put(ctx, "k", sampleVerdict("x.go"))
	if _, ok := c.Get(ctx, "k"); ok {
		t.Errorf("noop cache returned a hit")
	}
	if err := c.Purge(ctx); err != nil {
		t.Errorf("Purge: %v", err)
	}
}

func TestNewFactory(t *testing.T) {
	dir := t.TempDir()

	c, err := New("dir", dir)
	if err != nil {
		t.Fatalf("New(dir): %v", err)
	}
	if _, ok := c.(*DirCache); !ok {
		t.Errorf("New(dir) = %T, want *DirCache", c)
	}

	c, err = New("sqlite", dir)
	if err != nil {
		t.Fatalf("New(sqlite): %v", err)
	}
	if _, ok := c.(*SQLiteCache); !ok {
		t.Errorf("New(sqlite) = %T, want *SQLiteCache", c)
	}
	c.Close()

	if _, err := New("redis", dir); err == nil {
		t.Errorf("expected error for unknown backend")
	}
}
