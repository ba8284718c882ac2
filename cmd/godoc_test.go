package cmd

import (
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// TestDoctorCodes_GoDocComments verifies that every doctor code constant
// carries a GoDoc comment describing what it reports. The codes are part of
// the --json output contract, so doctor.go is parsed at the AST level.
func TestDoctorCodes_GoDocComments(t *testing.T) {
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed to resolve current file path")
	}
	doctorFile := filepath.Join(filepath.Dir(thisFile), "doctor.go")

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, doctorFile, nil, parser.ParseComments)
	if err != nil {
		t.Fatalf("failed to parse doctor.go: %v", err)
	}

	docs := extractConstDocs(f)

	tests := []struct {
		constant string
		wantDoc  string
	}{
		{"DocInvalidConfig", "cannot be loaded or fails validation"},
		{"DocAnalyzerMissing", "does not resolve to an executable"},
		{"DocNoComposerLock", "composer.lock is missing (warning)"},
		{"DocNoInstalledJSON", "installed.json is missing (warning)"},
		{"DocVersionUnknown", "version-gated scenarios will skip (warning)"},
		{"DocNoFeatures", "no .feature files were found"},
		{"DocFeatureSyntax", "cannot be read or parsed"},
		{"DocUndefinedStep", "matches no step definition"},
	}

	for _, tt := range tests {
		t.Run(tt.constant, func(t *testing.T) {
			doc, ok := docs[tt.constant]
			if !ok {
				t.Fatalf("constant %s not found in doctor.go; was it renamed or removed?", tt.constant)
			}
			if !strings.Contains(doc, tt.wantDoc) {
				t.Errorf("GoDoc for %s\ngot:  %q\nwant: %q", tt.constant, strings.TrimSpace(doc), tt.wantDoc)
			}
		})
	}
}

// extractConstDocs walks an AST file and returns a map of constant name to its
// GoDoc comment text.
func extractConstDocs(f *ast.File) map[string]string {
	docs := make(map[string]string)
	for _, decl := range f.Decls {
		genDecl, ok := decl.(*ast.GenDecl)
		if !ok || genDecl.Tok != token.CONST {
			continue
		}
		for _, spec := range genDecl.Specs {
			valSpec, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			// Prefer the per-spec doc comment; fall back to group-level doc only
			// when there is a single spec in the group.
			var commentText string
			switch {
			case valSpec.Doc != nil:
				commentText = valSpec.Doc.Text()
			case genDecl.Doc != nil && len(genDecl.Specs) == 1:
				commentText = genDecl.Doc.Text()
			}
			for _, name := range valSpec.Names {
				if commentText != "" {
					docs[name.Name] = commentText
				}
			}
		}
	}
	return docs
}
