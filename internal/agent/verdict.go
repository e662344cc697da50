// Package agent drives the bounded generate, validate, correct exchange with
// the model and folds per-chunk verdicts into file-level ones. Verdict JSON
// field names are part of the model contract and the cache format; renaming
// them invalidates existing caches and prompts.
package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Verdict is the model's judgment for one chunk, parsed from its reply.
type Verdict struct {
	Violation    bool   `json:"violation"`
	Reason       string `json:"reason"`
	SuggestedFix string `json:"suggestedFix"`
}

// ChunkVerdict is the terminal loop result for one chunk. Fallback marks a
// verdict synthesized after attempt exhaustion rather than accepted from the
// model.
type ChunkVerdict struct {
	ChunkIndex   int    `json:"chunkIndex"`
	Violation    bool   `json:"violation"`
	Reason       string `json:"reason"`
	SuggestedFix string `json:"suggestedFix"`
	Attempts     int    `json:"attempts"`
	Fallback     bool   `json:"fallback,omitempty"`
}

// FileVerdict aggregates all chunk verdicts of one source unit. It is the
// record cached by content hash and consumed by the merger.
type FileVerdict struct {
	Unit         string         `json:"file"`
	Violation    bool           `json:"violation"`
	Reason       string         `json:"reason"`
	SuggestedFix string         `json:"suggestedFix"`
	Chunks       []ChunkVerdict `json:"results,omitempty"`
}

// Chunk boundary markers inside the aggregated fix. The merger splits on
// FixMarkerPrefix, so all three constants are load-bearing.
const (
	FixMarkerPrefix   = "//--- fix for chunk "
	fixMarkerSuffix   = " ---\n"
	noViolationFormat = "//--- chunk %d => no violation\n"
)

// FixMarker returns the boundary line opening chunk i's fix block.
func FixMarker(i int) string {
	return fmt.Sprintf("%s%d%s", FixMarkerPrefix, i, fixMarkerSuffix)
}

// NoViolationMarker returns the traceability line for a clean chunk.
func NoViolationMarker(i int) string {
	return fmt.Sprintf(noViolationFormat, i)
}

// ExtractVerdict pulls the first JSON object out of a model reply, tolerating
// prose or markdown fences around it. The slice runs from the first '{' to
// the last '}' so nested objects survive.
func ExtractVerdict(content string) (Verdict, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return Verdict{}, false
	}

	var v Verdict
	if err := json.Unmarshal([]byte(content[start:end+1]), &v); err != nil {
		return Verdict{}, false
	}
	return v, true
}
