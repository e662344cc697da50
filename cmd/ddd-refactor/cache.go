package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiransahoo/ddd-refactor/internal/cache"
)

// cacheCmd groups verdict cache maintenance
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Verdict cache maintenance",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Drop every cached verdict so the next run re-judges all files",
	RunE:  purgeCache,
}

func purgeCache(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	c, err := cache.New(cfg.Refactor.CacheBackend, cfg.Refactor.CacheDir)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if err := c.Purge(ctx); err != nil {
		return fmt.Errorf("failed to purge cache: %w", err)
	}
	fmt.Println("Verdict cache purged.")
	return nil
}
