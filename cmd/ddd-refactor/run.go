package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kiransahoo/ddd-refactor/internal/agent"
	"github.com/kiransahoo/ddd-refactor/internal/chunker"
	"github.com/kiransahoo/ddd-refactor/internal/logging"
	"github.com/kiransahoo/ddd-refactor/internal/rag"
	"github.com/kiransahoo/ddd-refactor/internal/refactor"
	"github.com/kiransahoo/ddd-refactor/internal/vectordb"
)

// runCmd executes the full detect-validate-merge pipeline
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scan a source tree, repair violations, write *_refactored.go files",
	Long: `Discovers Go files under the source directory and pushes each one
through the pipeline:

  1. Chunk the file along declaration boundaries
  2. Retrieve reference snippets for each chunk (when RAG is enabled)
  3. Ask the model for a verdict and validate its fix, correcting up to
     the retry budget
  4. Merge accepted fixes into the original structurally
  5. Write the result as <name>_refactored.go under the output directory

Unchanged files are served from the verdict cache without model calls.`,
	RunE: runRefactor,
}

func runRefactor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logging.Get("cli").Info("received shutdown signal")
		cancel()
	}()

	units, err := refactor.Discover(cfg.Refactor.SourceDir, cfg.Refactor.OutputDir)
	if err != nil {
		return err
	}
	if len(units) == 0 {
		fmt.Printf("No Go sources found under %s\n", cfg.Refactor.SourceDir)
		return nil
	}

	client, err := newLLMClient(cfg)
	if err != nil {
		return err
	}

	ragService := rag.New(nil, nil, rag.DefaultConfig())
	if cfg.RAG.Enabled {
		svc, store, err := newRAGService(cfg)
		if err != nil {
			return fmt.Errorf("failed to set up retrieval: %w", err)
		}
		defer func() { _ = store.Close() }()
		ragService = svc
		seedReferenceIndex(ctx, svc, store)
	}

	verdictCache, err := newVerdictCache(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = verdictCache.Close() }()

	splitter, err := chunker.New(cfg.Refactor.MaxLinesPerChunk, cfg.Refactor.ChunkOverlap)
	if err != nil {
		return err
	}

	runner, err := refactor.NewRunner(refactor.Options{
		Splitter:        splitter,
		Context:         ragService,
		Loop:            agent.NewLoop(client, cfg.Refactor.MaxPromptRetries),
		Cache:           verdictCache,
		Merger:          newMerger(cfg),
		BasePrompt:      cfg.Refactor.BasePrompt,
		MaxParallel:     cfg.Refactor.MaxParallel,
		ChunkParallel:   cfg.Refactor.ChunkParallel,
		OutputDir:       cfg.Refactor.OutputDir,
		ShutdownTimeout: cfg.GetShutdownTimeout(),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Processing %d files from %s (model: %s/%s)\n",
		len(units), cfg.Refactor.SourceDir, cfg.LLM.Provider, cfg.LLM.Model)

	outcomes := runner.RunAll(ctx, units)
	return printSummary(outcomes)
}

// seedReferenceIndex populates an empty snippet store from the configured
// context path. Retrieval stays best-effort, so seeding failures only warn.
func seedReferenceIndex(ctx context.Context, svc *rag.Service, store vectordb.Store) {
	log := logging.Get("cli")
	if cfg.RAG.ContextPath == "" {
		return
	}
	count, err := store.Count(ctx)
	if err != nil {
		log.Warn("snippet count failed, skipping index seed", zap.Error(err))
		return
	}
	if count > 0 {
		log.Debug("reference index already populated", zap.Int("snippets", count))
		return
	}
	indexed, err := svc.IndexDirectory(ctx, cfg.RAG.ContextPath)
	if err != nil {
		log.Warn("reference index seed failed, continuing without it",
			zap.String("path", cfg.RAG.ContextPath), zap.Error(err))
		return
	}
	fmt.Printf("Indexed %d reference snippets from %s\n", indexed, cfg.RAG.ContextPath)
}

// printSummary reports per-unit results and returns an error when any unit
// failed or was abandoned, so the process exit code reflects the run.
func printSummary(outcomes []refactor.UnitOutcome) error {
	var clean, rewritten, flagged, cached, failed, abandoned int
	for _, o := range outcomes {
		if o.CacheHit {
			cached++
		}
		switch {
		case o.Abandoned:
			abandoned++
			fmt.Printf("  abandoned %s (shutdown deadline)\n", o.Unit)
		case o.Err != nil:
			failed++
			fmt.Printf("  failed    %s: %v\n", o.Unit, o.Err)
		case !o.Violation:
			clean++
			fmt.Printf("  ok        %s\n", o.Unit)
		case o.OutputPath != "":
			rewritten++
			fmt.Printf("  rewrote   %s -> %s (%s)\n", o.Unit, o.OutputPath, o.MergeResult)
		default:
			flagged++
			fmt.Printf("  flagged   %s (no fix produced)\n", o.Unit)
		}
	}

	fmt.Printf("\n%d files: %d clean, %d rewritten, %d flagged, %d failed, %d abandoned (%d cache hits)\n",
		len(outcomes), clean, rewritten, flagged, failed, abandoned, cached)

	if failed > 0 || abandoned > 0 {
		return fmt.Errorf("%d of %d files did not complete", failed+abandoned, len(outcomes))
	}
	return nil
}
