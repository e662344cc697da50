// Package chunker splits source units into ordered, bounded chunks. Three
// strategies are available: fixed line windows, structure-aware splitting
// keyed on top-level Go declaration boundaries, and paragraph accumulation
// for prose. Boundary detection is lightweight pattern matching, not a
// parse: the pipeline must chunk files that do not parse yet.
package chunker

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
)

// Mode selects a splitting strategy.
type Mode int

const (
	// ModeLine is a fixed-size sliding line window.
	ModeLine Mode = iota
	// ModeStructure splits on top-level Go declaration boundaries.
	ModeStructure
	// ModeParagraph accumulates blank-line-delimited paragraphs by size.
	ModeParagraph
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeLine:
		return "line"
	case ModeStructure:
		return "structure"
	case ModeParagraph:
		return "paragraph"
	default:
		return "unknown"
	}
}

// Chunk is a bounded contiguous slice of a source unit. Index is 1-based:
// chunk markers in aggregated output use the same numbering.
type Chunk struct {
	Index int
	Text  string
	Label string
}

// Chunk labels. Line-window chunks carry no label.
const (
	LabelHeader    = "header"
	LabelType      = "type"
	LabelMember    = "member"
	LabelWindow    = "window"
	LabelParagraph = "paragraph"
)

// ErrBadWindow is returned when the window size does not exceed the overlap,
// which would make the window stop advancing.
var ErrBadWindow = errors.New("chunker: max size must exceed overlap")

var (
	importOpenRe   = regexp.MustCompile(`^import\s*\(`)
	importSingleRe = regexp.MustCompile(`^import\s`)
	packageRe      = regexp.MustCompile(`^package\s`)
	typeRe         = regexp.MustCompile(`^type\b`)
	funcRe         = regexp.MustCompile(`^func\b`)
)

// Splitter chunks text with fixed window parameters. MaxSize is lines for
// the line and structure modes and characters for the paragraph mode.
type Splitter struct {
	maxSize int
	overlap int
}

// New creates a Splitter, failing fast on a window that cannot advance.
func New(maxSize, overlap int) (*Splitter, error) {
	if maxSize <= 0 || overlap < 0 || maxSize <= overlap {
		return nil, ErrBadWindow
	}
	return &Splitter{maxSize: maxSize, overlap: overlap}, nil
}

// ModeForFile picks the strategy for a file name: Go sources split on
// structure, prose by paragraphs, anything else by line windows.
func ModeForFile(name string) Mode {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".go":
		return ModeStructure
	case ".md", ".txt":
		return ModeParagraph
	default:
		return ModeLine
	}
}

// SplitFile chunks text using the strategy implied by the file name.
func (s *Splitter) SplitFile(name, text string) []Chunk {
	return s.Split(text, ModeForFile(name))
}

// Split chunks text with the given mode. Identical input and parameters
// always yield identical chunks; empty input yields no chunks.
func (s *Splitter) Split(text string, mode Mode) []Chunk {
	if text == "" {
		return nil
	}

	var chunks []Chunk
	switch mode {
	case ModeStructure:
		chunks = s.splitStructure(text)
	case ModeParagraph:
		chunks = s.splitParagraphs(text)
	default:
		chunks = s.splitLines(text, s.overlap, "")
	}

	for i := range chunks {
		chunks[i].Index = i + 1
	}
	return chunks
}

// splitLines emits windows of maxSize lines advancing by maxSize-overlap.
// Valid for overlap zero, which the structure and paragraph fallbacks use.
func (s *Splitter) splitLines(text string, overlap int, label string) []Chunk {
	lines := splitInputLines(text)
	step := s.maxSize - overlap

	var chunks []Chunk
	for i := 0; i < len(lines); i += step {
		end := i + s.maxSize
		if end > len(lines) {
			end = len(lines)
		}
		appendChunk(&chunks, strings.Join(lines[i:end], "\n"), label)
		if end == len(lines) {
			break
		}
	}
	return chunks
}

// splitStructure detects the header region and top-level declaration
// boundaries by pattern, then emits covering slices: header, one chunk per
// type region that fits, member chunks for oversized regions, line windows
// when nothing smaller works. No line of input is dropped.
func (s *Splitter) splitStructure(text string) []Chunk {
	lines := splitInputLines(text)

	headerEnd := 0
	inImport := false
	var decls []declStart
	for i, line := range lines {
		if inImport {
			if strings.HasPrefix(line, ")") {
				inImport = false
			}
			headerEnd = i + 1
			continue
		}
		switch {
		case packageRe.MatchString(line), importSingleRe.MatchString(line):
			if importOpenRe.MatchString(line) {
				inImport = true
			}
			headerEnd = i + 1
		case typeRe.MatchString(line):
			decls = append(decls, declStart{line: i, isType: true})
		case funcRe.MatchString(line):
			decls = append(decls, declStart{line: i})
		}
	}

	if headerEnd == 0 && len(decls) == 0 {
		return s.splitLines(text, 0, "")
	}

	var chunks []Chunk

	firstDecl := len(lines)
	if len(decls) > 0 {
		firstDecl = decls[0].line
	}
	// Header slice runs to the first declaration so file comments and
	// const/var blocks between imports and the first decl stay covered.
	s.emitSlice(&chunks, lines[:firstDecl], LabelHeader)

	for i := 0; i < len(decls); {
		start := decls[i].line
		if !decls[i].isType {
			end := s.nextDeclLine(decls, i, len(lines))
			s.emitSlice(&chunks, lines[start:end], LabelMember)
			i++
			continue
		}

		// A type region owns the funcs that follow it up to the next type.
		j := i + 1
		for j < len(decls) && !decls[j].isType {
			j++
		}
		end := len(lines)
		if j < len(decls) {
			end = decls[j].line
		}

		if end-start <= s.maxSize {
			s.emitSlice(&chunks, lines[start:end], LabelType)
		} else if j > i+1 {
			head := decls[i+1].line
			s.emitSlice(&chunks, lines[start:head], LabelType)
			for k := i + 1; k < j; k++ {
				memberEnd := end
				if k+1 < j {
					memberEnd = decls[k+1].line
				}
				s.emitSlice(&chunks, lines[decls[k].line:memberEnd], LabelMember)
			}
		} else {
			s.emitSlice(&chunks, lines[start:end], LabelWindow)
		}
		i = j
	}

	return chunks
}

type declStart struct {
	line   int
	isType bool
}

func (s *Splitter) nextDeclLine(decls []declStart, i, total int) int {
	if i+1 < len(decls) {
		return decls[i+1].line
	}
	return total
}

// emitSlice appends one chunk for the slice, or overlap-free line windows
// when the slice exceeds the window size.
func (s *Splitter) emitSlice(chunks *[]Chunk, lines []string, label string) {
	if len(lines) == 0 {
		return
	}
	if len(lines) > s.maxSize {
		*chunks = append(*chunks, s.splitLines(strings.Join(lines, "\n"), 0, LabelWindow)...)
		return
	}
	appendChunk(chunks, strings.Join(lines, "\n"), label)
}

// splitParagraphs accumulates paragraphs until the next would push the chunk
// past maxSize characters, seeding each new chunk with the last overlap
// characters of the previous one.
func (s *Splitter) splitParagraphs(text string) []Chunk {
	paragraphs := regexp.MustCompile(`\n\s*\n`).Split(text, -1)

	var chunks []Chunk
	var current strings.Builder
	for _, para := range paragraphs {
		if current.Len() > 0 && current.Len()+len(para)+2 > s.maxSize {
			appendChunk(&chunks, current.String(), LabelParagraph)
			prev := current.String()
			current.Reset()
			if s.overlap > 0 && len(prev) > s.overlap {
				current.WriteString(prev[len(prev)-s.overlap:])
			}
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	if current.Len() > 0 {
		appendChunk(&chunks, current.String(), LabelParagraph)
	}
	return chunks
}

// appendChunk trims and appends non-empty chunk text. Indexes are assigned
// by Split once the full sequence is known.
func appendChunk(chunks *[]Chunk, text, label string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}
	*chunks = append(*chunks, Chunk{Text: trimmed, Label: label})
}

func splitInputLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}
