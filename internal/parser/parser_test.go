package parser

import (
	"strings"
	"testing"
)

func TestCheckAcceptsCompleteFile(t *testing.T) {
	src := "package main\n\nfunc main() {}\n"
	if err := Check(src); err != nil {
		t.Fatalf("Check rejected a valid file: %v", err)
	}
}

func TestCheckAcceptsBareDeclarations(t *testing.T) {
	cases := []string{
		"func (o *Order) Total() int { return len(o.items) }",
		"type Order struct {\n\titems []string\n}",
		"var defaultLimit = 10",
	}
	for _, src := range cases {
		if err := Check(src); err != nil {
			t.Errorf("Check rejected declaration %q: %v", src, err)
		}
	}
}

func TestCheckAcceptsBareStatements(t *testing.T) {
	src := "total := 0\nfor _, it := range items {\n\ttotal += it\n}"
	if err := Check(src); err != nil {
		t.Fatalf("Check rejected statements: %v", err)
	}
}

func TestCheckRejectsBrokenCode(t *testing.T) {
	cases := []string{
		"func {",
		"type Order struct { unbalanced",
		"if x ==  { }",
	}
	for _, src := range cases {
		if err := Check(src); err == nil {
			t.Errorf("Check accepted broken code %q", src)
		}
	}
}

func TestCheckAcceptsBlank(t *testing.T) {
	if err := Check("   \n\t"); err != nil {
		t.Fatalf("Check rejected blank input: %v", err)
	}
}

func TestParseFileStrict(t *testing.T) {
	if _, _, err := ParseFile("x.go", "package x\n\nfunc a() {}\n"); err != nil {
		t.Fatalf("ParseFile rejected a valid file: %v", err)
	}
	if _, _, err := ParseFile("x.go", "func a() {}"); err == nil {
		t.Fatal("ParseFile accepted a file without a package clause")
	}
}

func TestParseSnippetWrapsDeclarations(t *testing.T) {
	file, _, err := ParseSnippet("func (o *Order) Total() int { return 0 }")
	if err != nil {
		t.Fatalf("ParseSnippet failed: %v", err)
	}
	if len(file.Decls) != 1 {
		t.Fatalf("expected 1 declaration, got %d", len(file.Decls))
	}
}

func TestParseSnippetPassesThroughFiles(t *testing.T) {
	file, _, err := ParseSnippet("package orders\n\ntype Order struct{}\n\nfunc a() {}\n")
	if err != nil {
		t.Fatalf("ParseSnippet failed: %v", err)
	}
	if file.Name.Name != "orders" {
		t.Errorf("package name = %q", file.Name.Name)
	}
	if len(file.Decls) != 2 {
		t.Errorf("expected 2 declarations, got %d", len(file.Decls))
	}
}

func TestParseSnippetRejectsStatements(t *testing.T) {
	_, _, err := ParseSnippet("x := 1")
	if err == nil {
		t.Fatal("ParseSnippet accepted a bare statement list")
	}
	if !strings.Contains(err.Error(), "no mergeable declarations") {
		t.Errorf("unexpected error: %v", err)
	}
}
