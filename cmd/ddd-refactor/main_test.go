package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/kiransahoo/ddd-refactor/internal/agent"
	"github.com/kiransahoo/ddd-refactor/internal/cache"
	"github.com/kiransahoo/ddd-refactor/internal/config"
	"github.com/kiransahoo/ddd-refactor/internal/merge"
	"github.com/kiransahoo/ddd-refactor/internal/refactor"
)

func TestPrintSummaryAllClean(t *testing.T) {
	outcomes := []refactor.UnitOutcome{
		{Unit: "a.go"},
		{Unit: "b.go", CacheHit: true},
	}

	var err error
	output := captureOutput(t, func() {
		err = printSummary(outcomes)
	})
	if err != nil {
		t.Fatalf("printSummary returned error: %v", err)
	}
	if !strings.Contains(output, "ok        a.go") {
		t.Errorf("missing clean line, got: %s", output)
	}
	if !strings.Contains(output, "2 clean") || !strings.Contains(output, "1 cache hits") {
		t.Errorf("missing totals, got: %s", output)
	}
}

func TestPrintSummaryMixed(t *testing.T) {
	outcomes := []refactor.UnitOutcome{
		{Unit: "a.go", Violation: true, OutputPath: "out/a_refactored.go", MergeResult: merge.ResultMerged},
		{Unit: "b.go", Violation: true},
		{Unit: "c.go", Err: errors.New("boom")},
		{Unit: "d.go", Abandoned: true},
	}

	var err error
	output := captureOutput(t, func() {
		err = printSummary(outcomes)
	})
	if err == nil {
		t.Fatalf("expected error for failed and abandoned units")
	}
	if !strings.Contains(err.Error(), "2 of 4 files did not complete") {
		t.Errorf("err = %v", err)
	}
	for _, want := range []string{
		"rewrote   a.go -> out/a_refactored.go (merged)",
		"flagged   b.go (no fix produced)",
		"failed    c.go: boom",
		"abandoned d.go (shutdown deadline)",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("missing %q in output:\n%s", want, output)
		}
	}
}

func TestShowStatusRetrievalDisabled(t *testing.T) {
	cfg = config.DefaultConfig()
	cfg.RAG.Enabled = false

	output := captureOutput(t, func() {
		if err := showStatus(&cobra.Command{}, nil); err != nil {
			t.Fatalf("showStatus returned error: %v", err)
		}
	})
	if !strings.Contains(output, "Retrieval:  disabled") {
		t.Errorf("expected disabled retrieval, got: %s", output)
	}
}

func TestShowStatusMemoryStore(t *testing.T) {
	cfg = config.DefaultConfig()

	output := captureOutput(t, func() {
		if err := showStatus(&cobra.Command{}, nil); err != nil {
			t.Fatalf("showStatus returned error: %v", err)
		}
	})
	if !strings.Contains(output, "memory (0 snippets)") {
		t.Errorf("expected empty memory store, got: %s", output)
	}
}

func TestPurgeCacheDropsEntries(t *testing.T) {
	cfg = config.DefaultConfig()
	cfg.Refactor.CacheBackend = "dir"
	cfg.Refactor.CacheDir = t.TempDir()

	seed, err := cache.New(cfg.Refactor.CacheBackend, cfg.Refactor.CacheDir)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	key := cache.HashString("package a\n")
	seed.Put(context.Background(), key, agent.FileVerdict{Unit: "a.go", Violation: true})
	if _, ok := seed.Get(context.Background(), key); !ok {
		t.Fatalf("seed entry missing before purge")
	}

	output := captureOutput(t, func() {
		if err := purgeCache(&cobra.Command{}, nil); err != nil {
			t.Fatalf("purgeCache returned error: %v", err)
		}
	})
	if !strings.Contains(output, "Verdict cache purged.") {
		t.Errorf("expected purge notice, got: %s", output)
	}
	if _, ok := seed.Get(context.Background(), key); ok {
		t.Errorf("entry survived the purge")
	}
}

func TestRunRefactorEmptySourceTree(t *testing.T) {
	cfg = config.DefaultConfig()
	cfg.Refactor.SourceDir = t.TempDir()

	output := captureOutput(t, func() {
		if err := runRefactor(&cobra.Command{}, nil); err != nil {
			t.Fatalf("runRefactor returned error: %v", err)
		}
	})
	if !strings.Contains(output, "No Go sources found") {
		t.Errorf("expected empty-tree notice, got: %s", output)
	}
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	origOut := os.Stdout
	rOut, wOut, _ := os.Pipe()
	os.Stdout = wOut

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, rOut)
		done <- buf.String()
	}()

	fn()

	_ = wOut.Close()
	os.Stdout = origOut
	return <-done
}
