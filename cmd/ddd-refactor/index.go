package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kiransahoo/ddd-refactor/internal/agent"
	"github.com/kiransahoo/ddd-refactor/internal/rag"
)

// indexCmd populates the reference snippet store
var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index reference material into the snippet store",
	Long: `Embeds domain reference material and stores it for retrieval during
runs. A directory is walked and every Go, markdown, and text file is
indexed in declaration-sized chunks; a single file is indexed whole.

With --probe the command retrieves instead of indexing: it prints the
prompt a chunk matching the query would receive, so the index can be
checked before a run.

Examples:
  ddd-refactor index ./docs/domain --reset
  ddd-refactor index --probe "aggregate saving itself to the database"`,
	Args: func(cmd *cobra.Command, args []string) error {
		if probeQuery != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: indexReferences,
}

func indexReferences(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	svc, store, err := newRAGService(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if probeQuery != "" {
		return probeIndex(ctx, svc)
	}

	if resetIndex {
		if err := store.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset snippet store: %w", err)
		}
		fmt.Println("Snippet store reset.")
	}

	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot index %s: %w", path, err)
	}

	if info.IsDir() {
		indexed, err := svc.IndexDirectory(ctx, path)
		if err != nil {
			return err
		}
		fmt.Printf("Indexed %d snippets from %s\n", indexed, path)
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := svc.IndexSnippet(ctx, filepath.Base(path), string(data)); err != nil {
		return err
	}
	fmt.Printf("Indexed %s\n", path)
	return nil
}

// probeIndex shows what retrieval adds to the policy prompt for a query.
func probeIndex(ctx context.Context, svc *rag.Service) error {
	basePrompt := cfg.Refactor.BasePrompt
	if basePrompt == "" {
		basePrompt = agent.DefaultBasePrompt
	}

	enhanced := svc.EnhancePrompt(ctx, basePrompt, probeQuery)
	if enhanced == basePrompt {
		fmt.Println("No relevant context retrieved for this query.")
		return nil
	}
	fmt.Println(enhanced)
	return nil
}
