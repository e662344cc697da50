package merge

import (
	"regexp"
	"strings"

	"github.com/kiransahoo/ddd-refactor/internal/agent"
)

// applyTextHeuristics applies the strategy rules as pattern edits when
// structural merging is off the table: flagged method declarations become a
// tombstone comment and keyword ifs are replaced likewise. The edits are
// deliberately naive; they run only on text that resisted parsing or fixes
// that resisted merging.
func applyTextHeuristics(code string, strategy Strategy) string {
	for _, name := range strategy.RemoveMethods {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		code = methodPattern(name).ReplaceAllString(code, "// removed "+name+" per domain rule")
	}
	if re := keywordIfPattern(strategy.DomainKeywords); re != nil {
		code = re.ReplaceAllString(code, "// removed domain check")
	}
	return code
}

// methodPattern matches a top-level func or method declaration with the
// given name, through the closing brace at column one.
func methodPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?ms)^func\s*(?:\([^)]*\)\s*)?` +
		regexp.QuoteMeta(name) + `\s*\([^)]*\)[^\n{]*\{.*?^\}`)
}

// keywordIfPattern matches an if statement whose condition mentions any
// keyword as a whole word, through the first closing brace. Nil when no
// keywords are configured.
func keywordIfPattern(keywords []string) *regexp.Regexp {
	var quoted []string
	for _, kw := range keywords {
		kw = strings.TrimSpace(strings.ToLower(kw))
		if kw == "" {
			continue
		}
		quoted = append(quoted, `\b`+regexp.QuoteMeta(kw)+`\b`)
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?is)if\s[^{]*?(?:` + strings.Join(quoted, "|") + `)[^{]*?\{.*?\}`)
}

var markerResidue = regexp.MustCompile(`^\d+\s*---[ \t]*\r?\n?`)

// splitFixBlocks cuts aggregated fix text back into per-chunk blocks on the
// fix marker, dropping the marker residue the split leaves at the head of
// each block. Blocks that are empty after trimming are discarded.
func splitFixBlocks(fix string) []string {
	parts := strings.Split(fix, agent.FixMarkerPrefix)
	blocks := make([]string, 0, len(parts))
	for _, part := range parts {
		part = markerResidue.ReplaceAllString(part, "")
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		blocks = append(blocks, part)
	}
	return blocks
}

// embedAnnotation appends fix text that could not be merged as one block
// comment so it is never silently dropped.
func embedAnnotation(base, snippet, header string) string {
	return base + "\n\n/*\n" + header + "\n\n" + snippet + "\n*/\n"
}

// leftoverAnnotation lists the blocks that resisted parsing during a partial
// merge.
func leftoverAnnotation(blocks []string) string {
	return "\n\n/*\n" + leftoverHeader + "\n" +
		strings.Join(blocks, chunkFailSeparator) + "\n*/\n"
}
