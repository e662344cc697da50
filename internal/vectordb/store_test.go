package vectordb

import (
	"context"
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0},
		{"opposite", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 0, 0}, 0},
	}
	for _, tc := range cases {
		if got := Cosine(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: Cosine = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCosineDimensionMismatchTruncates(t *testing.T) {
	// The longer vector is cut to the shared prefix instead of erroring.
	got := Cosine([]float32{1, 0}, []float32{1, 0, 5})
	if math.Abs(got-1) > 1e-9 {
		t.Fatalf("Cosine with mismatched dims = %v, want 1", got)
	}
}

func TestMemoryStoreRanking(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	snippets := []Snippet{
		{ID: "cat", Content: "cat", Embedding: []float32{1, 0, 0}},
		{ID: "dog", Content: "dog", Embedding: []float32{0.9, 0.1, 0}},
		{ID: "car", Content: "car", Embedding: []float32{0, 0, 1}},
	}
	if err := store.Add(ctx, snippets...); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	matches, err := store.Search(ctx, []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	if matches[0].Snippet.ID != "cat" || matches[1].Snippet.ID != "dog" || matches[2].Snippet.ID != "car" {
		t.Errorf("unexpected order: %s, %s, %s",
			matches[0].Snippet.ID, matches[1].Snippet.ID, matches[2].Snippet.ID)
	}
	if math.Abs(matches[0].Score-1) > 1e-6 {
		t.Errorf("top score = %v, want 1", matches[0].Score)
	}

	top, err := store.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("topK not applied: got %d matches", len(top))
	}
}

func TestMemoryStoreTieBreakInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	// Same embedding, so identical scores: the earlier insert must win.
	if err := store.Add(ctx,
		Snippet{ID: "first", Embedding: []float32{0, 1, 0}},
		Snippet{ID: "second", Embedding: []float32{0, 1, 0}},
	); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	matches, err := store.Search(ctx, []float32{0, 1, 0}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if matches[0].Snippet.ID != "first" || matches[1].Snippet.ID != "second" {
		t.Errorf("tie broke out of insertion order: %s before %s",
			matches[0].Snippet.ID, matches[1].Snippet.ID)
	}
}

func TestMemoryStoreEmpty(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	matches, err := store.Search(ctx, []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search on empty store failed: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("empty store returned %d matches", len(matches))
	}
}

func TestMemoryStoreReplaceKeepsRank(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	store.Add(ctx, Snippet{ID: "a", Content: "v1", Embedding: []float32{0, 1}})
	store.Add(ctx, Snippet{ID: "b", Content: "other", Embedding: []float32{0, 1}})
	store.Add(ctx, Snippet{ID: "a", Content: "v2", Embedding: []float32{0, 1}})

	n, err := store.Count(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Count = %d, %v; want 2", n, err)
	}

	matches, _ := store.Search(ctx, []float32{0, 1}, 2)
	if matches[0].Snippet.ID != "a" || matches[0].Snippet.Content != "v2" {
		t.Errorf("replaced snippet lost rank or content: %+v", matches[0].Snippet)
	}
}

func TestMemoryStoreRequiresID(t *testing.T) {
	if err := NewMemoryStore().Add(context.Background(), Snippet{Content: "no id"}); err == nil {
		t.Fatal("expected error for snippet without ID")
	}
}

func TestMemoryStoreGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Add(ctx, Snippet{ID: "a", Title: "aggregate", Content: "body", Embedding: []float32{1}})

	got, ok, err := store.Get(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("Get = ok %v, err %v", ok, err)
	}
	if got.Title != "aggregate" || got.Content != "body" {
		t.Errorf("Get returned %+v", got)
	}

	if _, ok, err := store.Get(ctx, "missing"); ok || err != nil {
		t.Errorf("Get(missing) = ok %v, err %v; want miss", ok, err)
	}
}

func TestMemoryStoreDeleteKeepsOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Add(ctx,
		Snippet{ID: "first", Embedding: []float32{0, 1}},
		Snippet{ID: "second", Embedding: []float32{0, 1}},
		Snippet{ID: "third", Embedding: []float32{0, 1}},
	)

	if err := store.Delete(ctx, "second"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "second"); err != nil {
		t.Fatalf("repeated Delete failed: %v", err)
	}

	if n, _ := store.Count(ctx); n != 2 {
		t.Fatalf("Count after delete = %d, want 2", n)
	}
	matches, _ := store.Search(ctx, []float32{0, 1}, 3)
	if matches[0].Snippet.ID != "first" || matches[1].Snippet.ID != "third" {
		t.Errorf("delete broke insertion order: %s, %s",
			matches[0].Snippet.ID, matches[1].Snippet.ID)
	}
}

func TestMemoryStoreReset(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Add(ctx, Snippet{ID: "a", Embedding: []float32{1}})

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if n, _ := store.Count(ctx); n != 0 {
		t.Fatalf("Count after reset = %d", n)
	}
}

func TestNewFactory(t *testing.T) {
	store, err := New(Config{Provider: "memory"})
	if err != nil {
		t.Fatalf("New(memory) failed: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("New(memory) returned %T", store)
	}

	if _, err := New(Config{Provider: "pinecone"}); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}
