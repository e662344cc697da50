// Package merge fuses validated fix text back into original source files.
// It degrades from whole-fix structural merging through per-chunk merging to
// pattern-based edits, so every input produces output text and a result tag.
package merge

import (
	"bytes"
	"go/ast"
	"go/printer"
	"go/token"
	"strings"

	"go.uber.org/zap"

	"github.com/kiransahoo/ddd-refactor/internal/agent"
	"github.com/kiransahoo/ddd-refactor/internal/logging"
	"github.com/kiransahoo/ddd-refactor/internal/parser"
)

// Result tags which stage of the degradation chain produced the output.
type Result int

const (
	// ResultMerged means the whole fix parsed and was fused structurally.
	ResultMerged Result = iota
	// ResultPartiallyMerged means at least one chunk block fused; blocks
	// that did not parse ride along as a trailing annotation.
	ResultPartiallyMerged
	// ResultUnmerged means no part of the fix parsed; the original got
	// pattern edits and the fix text as a trailing annotation.
	ResultUnmerged
	// ResultFailed means the original itself did not parse; the original
	// got pattern edits and the fix text as a trailing annotation.
	ResultFailed
)

// String returns the result tag name.
func (r Result) String() string {
	switch r {
	case ResultMerged:
		return "merged"
	case ResultPartiallyMerged:
		return "partially-merged"
	case ResultUnmerged:
		return "unmerged"
	case ResultFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Strategy carries the declaration-level rules as plain data. RemoveMethods
// names methods deleted wherever a type declares them; DomainKeywords flags
// if statements whose condition mentions any keyword.
type Strategy struct {
	RemoveMethods  []string
	DomainKeywords []string
}

// Annotation headers for fix text that could not be merged structurally.
const (
	headerOriginalUnparsed = "Snippet (entire) unparseable due to original parse fail:"
	headerFixUnparsed      = "Entire snippet unparseable after chunk attempts:"
	leftoverHeader         = "Un-merged snippet blocks:"
	chunkFailSeparator     = "\n\n//--- Chunk parse fail ---\n"
)

// Merger fuses aggregated fix text into originals.
type Merger struct {
	strategy Strategy
	log      *zap.Logger
}

// New returns a Merger applying the given strategy rules.
func New(strategy Strategy) *Merger {
	return &Merger{strategy: strategy, log: logging.Get("merge")}
}

// Merge fuses the verdict's fix into the original text. It never panics and
// always returns output at least as parseable as the original plus trailing
// annotations.
func (m *Merger) Merge(original string, verdict agent.FileVerdict) (text string, result Result) {
	unit := verdict.Unit
	if unit == "" {
		unit = "original.go"
	}
	fix := verdict.SuggestedFix

	// Whatever the inputs look like, the chain must end in output text.
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("merge panicked, falling back to pattern edits",
				zap.String("unit", unit), zap.Any("panic", r))
			text = embedAnnotation(applyTextHeuristics(original, m.strategy), fix, headerFixUnparsed)
			result = ResultUnmerged
		}
	}()

	if strings.TrimSpace(fix) == "" {
		m.log.Debug("no fix text, applying pattern edits only", zap.String("unit", unit))
		return applyTextHeuristics(original, m.strategy), ResultUnmerged
	}

	origFile, origFset, err := parser.ParseFile(unit, original)
	if err != nil {
		m.log.Warn("original does not parse, falling back to pattern edits",
			zap.String("unit", unit), zap.Error(err))
		out := embedAnnotation(applyTextHeuristics(original, m.strategy), fix, headerOriginalUnparsed)
		return out, ResultFailed
	}

	st := &mergeState{
		fset:     origFset,
		file:     origFile,
		strategy: m.strategy,
		added:    make(map[string]bool),
		log:      m.log,
	}

	if fixFile, fixFset, err := parser.ParseSnippet(fix); err == nil {
		st.mergeSnippet(fixFset, fixFile)
		st.applyStrategy()
		m.log.Debug("whole fix merged", zap.String("unit", unit),
			zap.Int("added", len(st.additions)))
		return st.render(), ResultMerged
	}
	m.log.Debug("whole fix does not parse, trying per-chunk blocks",
		zap.String("unit", unit))

	var (
		merged bool
		failed []string
	)
	for _, block := range splitFixBlocks(fix) {
		fixFile, fixFset, err := parser.ParseSnippet(block)
		if err != nil {
			m.log.Debug("chunk block does not parse",
				zap.String("unit", unit), zap.Error(err))
			failed = append(failed, block)
			continue
		}
		if len(fixFile.Decls) == 0 {
			// Marker or comment residue, nothing mergeable in it.
			continue
		}
		st.mergeSnippet(fixFset, fixFile)
		merged = true
	}

	if !merged {
		m.log.Warn("no fix block parsed, falling back to pattern edits",
			zap.String("unit", unit), zap.Int("blocks", len(failed)))
		out := embedAnnotation(applyTextHeuristics(original, m.strategy), fix, headerFixUnparsed)
		return out, ResultUnmerged
	}

	st.applyStrategy()
	out := st.render()
	if len(failed) > 0 {
		out = strings.TrimRight(out, "\n") + "\n" + leftoverAnnotation(failed)
	}
	m.log.Debug("fix merged per chunk", zap.String("unit", unit),
		zap.Int("unmerged_blocks", len(failed)))
	return out, ResultPartiallyMerged
}

type span struct {
	pos, end token.Pos
}

// mergeState accumulates edits against the parsed original across one or
// more fix snippets.
type mergeState struct {
	fset     *token.FileSet
	file     *ast.File
	strategy Strategy
	// additions hold fix-side declarations rendered from their own fileset;
	// they are appended after the printed original.
	additions []string
	added     map[string]bool
	removed   []span
	log       *zap.Logger
}

// mergeSnippet adopts fix-side functions missing from the original.
// Existing declarations are never replaced, and methods whose receiver type
// the original never declared are dropped.
func (st *mergeState) mergeSnippet(fixFset *token.FileSet, fixFile *ast.File) {
	origTypes := typeNames(st.file)

	for _, decl := range fixFile.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		recv := receiverTypeName(fn)
		if recv != "" && !origTypes[recv] {
			// The original never declared this method's type.
			continue
		}
		key := recv + "." + fn.Name.Name
		if st.added[key] || st.hasFunc(recv, fn.Name.Name) {
			continue
		}
		st.added[key] = true
		st.additions = append(st.additions, renderDecl(fixFset, fixFile, fn))
	}
}

// applyStrategy runs the declaration rules once over the whole tree after
// snippet adoption.
func (st *mergeState) applyStrategy() {
	st.removeFlaggedMethods()
	st.stripDomainChecks()
}

// removeFlaggedMethods drops every method whose name is on the strategy
// removal list.
func (st *mergeState) removeFlaggedMethods() {
	if len(st.strategy.RemoveMethods) == 0 {
		return
	}
	flagged := make(map[string]bool, len(st.strategy.RemoveMethods))
	for _, name := range st.strategy.RemoveMethods {
		flagged[name] = true
	}

	kept := st.file.Decls[:0]
	for _, decl := range st.file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok &&
			fn.Recv != nil && flagged[fn.Name.Name] {
			st.log.Debug("removed flagged method",
				zap.String("type", receiverTypeName(fn)),
				zap.String("method", fn.Name.Name))
			start := decl.Pos()
			if fn.Doc != nil {
				start = fn.Doc.Pos()
			}
			st.removed = append(st.removed, span{start, decl.End()})
			continue
		}
		kept = append(kept, decl)
	}
	st.file.Decls = kept
}

// stripDomainChecks drops top-level if statements referencing a domain
// keyword from every method body.
func (st *mergeState) stripDomainChecks() {
	if len(st.strategy.DomainKeywords) == 0 {
		return
	}
	for _, decl := range st.file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil || fn.Recv == nil {
			continue
		}
		kept := fn.Body.List[:0]
		for _, stmt := range fn.Body.List {
			if ifStmt, ok := stmt.(*ast.IfStmt); ok && st.mentionsKeyword(ifStmt.Cond) {
				st.log.Debug("removed domain check",
					zap.String("type", receiverTypeName(fn)),
					zap.String("method", fn.Name.Name))
				st.removed = append(st.removed, span{stmt.Pos(), stmt.End()})
				continue
			}
			kept = append(kept, stmt)
		}
		fn.Body.List = kept
	}
}

func (st *mergeState) mentionsKeyword(cond ast.Expr) bool {
	text := strings.ToLower(renderNode(st.fset, cond))
	for _, kw := range st.strategy.DomainKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func (st *mergeState) hasFunc(recv, name string) bool {
	for _, decl := range st.file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Name.Name != name {
			continue
		}
		if receiverTypeName(fn) == recv {
			return true
		}
	}
	return false
}

// render prints the edited original and appends scheduled additions. Comment
// groups inside removed ranges are pruned first so the printer does not
// float them into unrelated positions.
func (st *mergeState) render() string {
	st.pruneComments()
	var buf bytes.Buffer
	_ = printer.Fprint(&buf, st.fset, st.file)
	out := buf.String()
	if len(st.additions) > 0 {
		out = strings.TrimRight(out, "\n") + "\n\n" + strings.Join(st.additions, "\n\n") + "\n"
	}
	return out
}

func (st *mergeState) pruneComments() {
	if len(st.removed) == 0 {
		return
	}
	kept := st.file.Comments[:0]
	for _, group := range st.file.Comments {
		inRemoved := false
		for _, s := range st.removed {
			if group.Pos() >= s.pos && group.End() <= s.end {
				inRemoved = true
				break
			}
		}
		if !inRemoved {
			kept = append(kept, group)
		}
	}
	st.file.Comments = kept
}

func typeNames(file *ast.File) map[string]bool {
	names := make(map[string]bool)
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			if ts, ok := spec.(*ast.TypeSpec); ok {
				names[ts.Name.Name] = true
			}
		}
	}
	return names
}

func receiverTypeName(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return ""
	}
	return baseTypeName(fn.Recv.List[0].Type)
}

func baseTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return baseTypeName(t.X)
	case *ast.IndexExpr:
		return baseTypeName(t.X)
	case *ast.IndexListExpr:
		return baseTypeName(t.X)
	}
	return ""
}

func renderNode(fset *token.FileSet, node any) string {
	var buf bytes.Buffer
	_ = printer.Fprint(&buf, fset, node)
	return buf.String()
}

// renderDecl prints one declaration with the comments lying inside its
// range, so grafted methods keep their body comments.
func renderDecl(fset *token.FileSet, file *ast.File, decl ast.Decl) string {
	var buf bytes.Buffer
	_ = printer.Fprint(&buf, fset, &printer.CommentedNode{Node: decl, Comments: file.Comments})
	return buf.String()
}
