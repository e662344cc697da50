package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kiransahoo/ddd-refactor/internal/vectordb"
)

// stubEngine returns canned vectors and records the last embedded text.
type stubEngine struct {
	vec      []float32
	err      error
	lastText string
}

func (e *stubEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	e.lastText = text
	if e.err != nil {
		return nil, e.err
	}
	return e.vec, nil
}

func (e *stubEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *stubEngine) Dimensions() int { return len(e.vec) }
func (e *stubEngine) Name() string    { return "stub" }

func seededService(t *testing.T, engine *stubEngine, snippets ...vectordb.Snippet) *Service {
	t.Helper()
	store := vectordb.NewMemoryStore()
	if len(snippets) > 0 {
		if err := store.Add(context.Background(), snippets...); err != nil {
			t.Fatalf("seeding store failed: %v", err)
		}
	}
	return New(store, engine, Config{})
}

func TestAvailable(t *testing.T) {
	engine := &stubEngine{vec: []float32{1, 0, 0}}

	if New(nil, engine, Config{}).Available(context.Background()) {
		t.Error("service without store reported available")
	}
	if New(vectordb.NewMemoryStore(), nil, Config{}).Available(context.Background()) {
		t.Error("service without engine reported available")
	}
	if !seededService(t, engine).Available(context.Background()) {
		t.Error("healthy service reported unavailable")
	}
}

func TestAssembleContextEmptyIndex(t *testing.T) {
	svc := seededService(t, &stubEngine{vec: []float32{1, 0, 0}})

	if got := svc.AssembleContext(context.Background(), "func main() {}"); got != "" {
		t.Fatalf("empty index produced context: %q", got)
	}
}

func TestAssembleContextFiltersByThreshold(t *testing.T) {
	engine := &stubEngine{vec: []float32{1, 0, 0}}
	svc := seededService(t, engine,
		vectordb.Snippet{ID: "1", Title: "Order aggregate", Content: "type Order struct{}", Embedding: []float32{1, 0, 0}},
		vectordb.Snippet{ID: "2", Title: "Unrelated", Content: "noise", Embedding: []float32{0, 1, 0}},
	)

	got := svc.AssembleContext(context.Background(), "some code")
	want := "--- Order aggregate ---\ntype Order struct{}"
	if got != want {
		t.Fatalf("AssembleContext = %q, want %q", got, want)
	}
}

func TestAssembleContextJoinsBlocks(t *testing.T) {
	engine := &stubEngine{vec: []float32{1, 0, 0}}
	svc := seededService(t, engine,
		vectordb.Snippet{ID: "1", Title: "First", Content: "alpha", Embedding: []float32{1, 0, 0}},
		vectordb.Snippet{ID: "2", Title: "Second", Content: "beta", Embedding: []float32{1, 0, 0}},
	)

	got := svc.AssembleContext(context.Background(), "code")
	want := "--- First ---\nalpha\n\n--- Second ---\nbeta"
	if got != want {
		t.Fatalf("AssembleContext = %q, want %q", got, want)
	}
}

func TestAssembleContextDegradesOnEmbedError(t *testing.T) {
	engine := &stubEngine{vec: []float32{1}, err: errors.New("provider down")}
	svc := seededService(t, engine,
		vectordb.Snippet{ID: "1", Title: "T", Content: "c", Embedding: []float32{1}},
	)

	if got := svc.AssembleContext(context.Background(), "code"); got != "" {
		t.Fatalf("embed failure produced context: %q", got)
	}
}

func TestQueryUsesBoundedPrefix(t *testing.T) {
	engine := &stubEngine{vec: []float32{1, 0, 0}}
	store := vectordb.NewMemoryStore()
	store.Add(context.Background(), vectordb.Snippet{ID: "1", Title: "T", Content: "c", Embedding: []float32{1, 0, 0}})
	svc := New(store, engine, Config{QueryPrefixChars: 10})

	svc.AssembleContext(context.Background(), strings.Repeat("x", 100))

	want := queryPrefix + strings.Repeat("x", 10)
	if engine.lastText != want {
		t.Fatalf("embedded query = %q, want %q", engine.lastText, want)
	}
}

func TestEnhancePrompt(t *testing.T) {
	engine := &stubEngine{vec: []float32{1, 0, 0}}
	svc := seededService(t, engine,
		vectordb.Snippet{ID: "1", Title: "Rule", Content: "no repo calls in domain", Embedding: []float32{1, 0, 0}},
	)

	got := svc.EnhancePrompt(context.Background(), "Refactor this.", "code")
	want := "Refactor this.\n\nRELEVANT CONTEXT:\n--- Rule ---\nno repo calls in domain\n\nUse the above context to inform your response when applicable."
	if got != want {
		t.Fatalf("EnhancePrompt = %q, want %q", got, want)
	}
}

func TestEnhancePromptPassthroughWithoutContext(t *testing.T) {
	svc := New(nil, nil, Config{})

	if got := svc.EnhancePrompt(context.Background(), "base", "code"); got != "base" {
		t.Fatalf("EnhancePrompt without retrieval = %q, want %q", got, "base")
	}
}

func TestIndexSnippet(t *testing.T) {
	engine := &stubEngine{vec: []float32{0, 1, 0}}
	store := vectordb.NewMemoryStore()
	svc := New(store, engine, Config{})

	if err := svc.IndexSnippet(context.Background(), "Order", "type Order struct{}"); err != nil {
		t.Fatalf("IndexSnippet failed: %v", err)
	}

	n, _ := store.Count(context.Background())
	if n != 1 {
		t.Fatalf("store count = %d, want 1", n)
	}
	matches, _ := store.Search(context.Background(), []float32{0, 1, 0}, 1)
	if matches[0].Snippet.ID == "" {
		t.Error("indexed snippet has no generated ID")
	}
	if matches[0].Snippet.Title != "Order" {
		t.Errorf("indexed title = %q", matches[0].Snippet.Title)
	}
}

func TestIndexDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "rules.md"), []byte("aggregates own invariants"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Legacy.java"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	engine := &stubEngine{vec: []float32{1, 0}}
	store := vectordb.NewMemoryStore()
	svc := New(store, engine, Config{})

	indexed, err := svc.IndexDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("IndexDirectory failed: %v", err)
	}
	if indexed != 1 {
		t.Fatalf("indexed = %d, want 1 (only the markdown file)", indexed)
	}
}
