package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// statusCmd reports the configured backends and their health
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configured backends and snippet store health",
	RunE:  showStatus,
}

func showStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	fmt.Printf("Model:      %s (%s)\n", cfg.LLM.Model, cfg.LLM.Provider)
	fmt.Printf("Embedding:  %s (%s)\n", cfg.Embedding.Model, cfg.Embedding.Provider)
	fmt.Printf("Source:     %s\n", cfg.Refactor.SourceDir)
	fmt.Printf("Output:     %s\n", cfg.Refactor.OutputDir)

	if cfg.Refactor.CacheEnabled {
		fmt.Printf("Cache:      %s (%s)\n", cfg.Refactor.CacheBackend, cfg.Refactor.CacheDir)
	} else {
		fmt.Println("Cache:      disabled")
	}

	if !cfg.RAG.Enabled {
		fmt.Println("Retrieval:  disabled")
		return nil
	}

	store, err := newVectorStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Ping(ctx); err != nil {
		fmt.Printf("Retrieval:  %s (unreachable: %v)\n", cfg.VectorDB.Provider, err)
		return nil
	}
	count, err := store.Count(ctx)
	if err != nil {
		fmt.Printf("Retrieval:  %s (count failed: %v)\n", cfg.VectorDB.Provider, err)
		return nil
	}
	fmt.Printf("Retrieval:  %s (%d snippets)\n", cfg.VectorDB.Provider, count)
	return nil
}
