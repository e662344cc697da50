package agent

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kiransahoo/ddd-refactor/internal/logging"
)

// Aggregate folds per-chunk verdicts into one file-level verdict. Chunks are
// ordered by index regardless of completion order, every chunk contributes
// exactly one reason line and one block marker, and the aggregated fix text
// is empty when nothing violated.
func Aggregate(unit string, verdicts []ChunkVerdict) FileVerdict {
	sorted := make([]ChunkVerdict, len(verdicts))
	copy(sorted, verdicts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ChunkIndex < sorted[j].ChunkIndex
	})

	var (
		reasons  strings.Builder
		fixes    strings.Builder
		violated bool
	)
	for _, v := range sorted {
		if v.Violation {
			violated = true
			fmt.Fprintf(&reasons, "Chunk %d => %s\n", v.ChunkIndex, v.Reason)
			fixes.WriteString(FixMarker(v.ChunkIndex))
			fixes.WriteString(v.SuggestedFix)
			fixes.WriteString("\n")
		} else {
			fmt.Fprintf(&reasons, "Chunk %d => no violation\n", v.ChunkIndex)
			fixes.WriteString(NoViolationMarker(v.ChunkIndex))
		}
	}

	fv := FileVerdict{
		Unit:      unit,
		Violation: violated,
		Reason:    strings.TrimSpace(reasons.String()),
		Chunks:    sorted,
	}
	if violated {
		fv.SuggestedFix = fixes.String()
	}

	logging.Get("agent").Debug("aggregated verdicts",
		zap.String("unit", unit),
		zap.Int("chunks", len(sorted)),
		zap.Bool("violation", violated))
	return fv
}
