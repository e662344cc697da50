package refactor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// writeOutput writes finalText into the output tree mirroring the unit's
// relative path, named <base>_refactored.go. It returns the written path.
func writeOutput(outputDir, rel, text string) (string, error) {
	outDir := filepath.Join(outputDir, filepath.Dir(rel))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(rel), ".go")
	outPath := filepath.Join(outDir, base+outputSuffix)
	if err := os.WriteFile(outPath, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	return outPath, nil
}
