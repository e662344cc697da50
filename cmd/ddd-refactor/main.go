package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kiransahoo/ddd-refactor/internal/config"
	"github.com/kiransahoo/ddd-refactor/internal/logging"
)

var (
	// Global flags
	cfgPath   string
	verbose   bool
	opTimeout time.Duration

	// Run flags
	sourceDir string
	outputDir string
	noCache   bool

	// Index flags
	resetIndex bool
	probeQuery string

	// Loaded configuration, available to every subcommand after
	// PersistentPreRunE.
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ddd-refactor",
	Short: "ddd-refactor - LLM-backed DDD violation detection and repair",
	Long: `ddd-refactor scans Go sources for Domain-Driven Design and hexagonal
architecture violations, asks a generative model for a fix, validates the
fix syntactically, and merges accepted fixes into the original file
structurally.

Every model reply passes a bounded validate-and-correct loop before it is
trusted, and every merge degrades to an annotated copy of the original
rather than failing. Repaired files are written as *_refactored.go into an
output tree mirroring the sources; originals are never touched.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if sourceDir != "" {
			cfg.Refactor.SourceDir = sourceDir
		}
		if outputDir != "" {
			cfg.Refactor.OutputDir = outputDir
		}
		if noCache {
			cfg.Refactor.CacheEnabled = false
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		return logging.Setup(level, cfg.Logging.JSON)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

// defaultConfigPath honors the DDD_REFACTOR_CONFIG environment variable so
// wrapper scripts can point every invocation at one file.
func defaultConfigPath() string {
	if env := os.Getenv("DDD_REFACTOR_CONFIG"); env != "" {
		return env
	}
	return "ddd-refactor.yaml"
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultConfigPath(), "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&opTimeout, "timeout", 5*time.Minute, "Timeout for index, status and cache operations")

	runCmd.Flags().StringVarP(&sourceDir, "source", "s", "", "Source directory to scan (overrides config)")
	runCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory for refactored files (overrides config)")
	runCmd.Flags().BoolVar(&noCache, "no-cache", false, "Re-judge every file even when a cached verdict exists")

	indexCmd.Flags().BoolVar(&resetIndex, "reset", false, "Drop existing snippets before indexing")
	indexCmd.Flags().StringVar(&probeQuery, "probe", "", "Retrieve context for a query instead of indexing")

	cacheCmd.AddCommand(cachePurgeCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cacheCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
