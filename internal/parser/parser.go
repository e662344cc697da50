// Package parser wraps go/parser as the pipeline's acceptance oracle and as
// the front end for structural merging. Model fixes rarely arrive as
// complete files, so acceptance tries three shapes in order: a whole file, a
// bare declaration list, and a bare statement list.
package parser

import (
	"fmt"
	"go/ast"
	goparser "go/parser"
	"go/token"
	"strings"
)

const (
	declWrapHeader = "package snippet\n\n"
	stmtWrapHeader = "package snippet\n\nfunc _() {\n"
	stmtWrapFooter = "\n}\n"
)

// Check reports whether src is syntactically valid Go at any accepted
// shape. A blank snippet passes; rejecting it is the caller's policy.
func Check(src string) error {
	if strings.TrimSpace(src) == "" {
		return nil
	}

	fileErr := check(src)
	if fileErr == nil {
		return nil
	}
	if check(declWrapHeader+src) == nil {
		return nil
	}
	if check(stmtWrapHeader+src+stmtWrapFooter) == nil {
		return nil
	}
	// Report the whole-file error: it points at real positions in src.
	return fmt.Errorf("snippet is not valid Go: %w", fileErr)
}

func check(src string) error {
	fset := token.NewFileSet()
	_, err := goparser.ParseFile(fset, "snippet.go", src, goparser.AllErrors)
	return err
}

// ParseFile parses src as a complete Go source file, keeping comments for
// later printing.
func ParseFile(name, src string) (*ast.File, *token.FileSet, error) {
	fset := token.NewFileSet()
	file, err := goparser.ParseFile(fset, name, src, goparser.ParseComments)
	if err != nil {
		return nil, nil, err
	}
	return file, fset, nil
}

// ParseSnippet parses src as a complete file or, failing that, as a bare
// declaration list wrapped in a synthetic package clause. The returned AST
// is what structural merging consumes; statement lists are rejected here
// because they cannot be merged as declarations.
func ParseSnippet(src string) (*ast.File, *token.FileSet, error) {
	fset := token.NewFileSet()
	file, err := goparser.ParseFile(fset, "snippet.go", src, goparser.ParseComments)
	if err == nil {
		return file, fset, nil
	}

	fset = token.NewFileSet()
	file, wrapErr := goparser.ParseFile(fset, "snippet.go", declWrapHeader+src, goparser.ParseComments)
	if wrapErr != nil {
		return nil, nil, fmt.Errorf("snippet has no mergeable declarations: %w", err)
	}
	return file, fset, nil
}
