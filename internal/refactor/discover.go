// Package refactor drives the pipeline end to end: discover source units,
// consult the cache, chunk, assemble retrieval context, run the validation
// loop, aggregate, merge and write outputs, bounded by a fixed worker pool.
package refactor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kiransahoo/ddd-refactor/internal/logging"
)

// outputSuffix names generated files; discovery skips them so re-runs never
// judge their own output.
const outputSuffix = "_refactored.go"

// SourceUnit is one file to judge. Text is the content read at discovery
// time; verdicts and merges always run against it.
type SourceUnit struct {
	// Rel keys the unit in verdicts and mirrors into the output tree,
	// always slash-separated.
	Rel  string
	Path string
	Text string
}

// Discover walks sourceDir collecting .go units. Hidden directories, vendor
// trees, the output directory and previously generated outputs are skipped.
func Discover(sourceDir, outputDir string) ([]SourceUnit, error) {
	srcAbs, err := filepath.Abs(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source dir: %w", err)
	}
	outAbs := ""
	if outputDir != "" {
		if outAbs, err = filepath.Abs(outputDir); err != nil {
			return nil, fmt.Errorf("failed to resolve output dir: %w", err)
		}
	}

	var units []SourceUnit
	walkErr := filepath.WalkDir(srcAbs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == srcAbs {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") || d.Name() == "vendor" || path == outAbs {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".go") || strings.HasSuffix(d.Name(), outputSuffix) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		rel, err := filepath.Rel(srcAbs, path)
		if err != nil {
			return err
		}
		units = append(units, SourceUnit{
			Rel:  filepath.ToSlash(rel),
			Path: path,
			Text: string(data),
		})
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to discover sources: %w", walkErr)
	}

	logging.Get("refactor").Debug("discovered source units",
		zap.String("dir", srcAbs), zap.Int("count", len(units)))
	return units, nil
}
