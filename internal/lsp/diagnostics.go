package lsp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/upm-tools/upmls/internal/jsontext"
	"github.com/upm-tools/upmls/internal/registry"
)

const diagnosticSource = "upm"

// collectDiagnostics runs every manifest check over one document snapshot.
// A JSON syntax error short-circuits: structural checks are meaningless on
// an unparsable document. All other checks are independent and best-effort;
// a registry failure for one dependency never blocks its siblings.
func (s *Server) collectDiagnostics(doc *Document) []protocol.Diagnostic {
	if diag, bad := syntaxDiagnostic(doc); bad {
		return []protocol.Diagnostic{diag}
	}

	diagnostics := []protocol.Diagnostic{}
	diagnostics = append(diagnostics, s.dependencyDiagnostics(doc)...)
	diagnostics = append(diagnostics, scopedRegistryDiagnostics(doc)...)
	diagnostics = append(diagnostics, testablesDiagnostics(doc)...)
	return diagnostics
}

func syntaxDiagnostic(doc *Document) (protocol.Diagnostic, bool) {
	var parsed any
	err := json.Unmarshal([]byte(doc.Text), &parsed)
	if err == nil {
		return protocol.Diagnostic{}, false
	}

	offset, _ := jsontext.SyntaxErrorOffset(doc.Text, err)
	end := offset + 1
	if end > len(doc.Text) {
		end = len(doc.Text)
	}
	return newDiagnostic(
		spanRange(doc.Index, jsontext.Span{Start: offset, End: end}),
		protocol.DiagnosticSeverityError,
		fmt.Sprintf("Invalid JSON: %s", err),
	), true
}

func (s *Server) dependencyDiagnostics(doc *Document) []protocol.Diagnostic {
	var diagnostics []protocol.Diagnostic
	for _, entry := range jsontext.ExtractDependencies(doc.Text) {
		if entry.Name == "" {
			diagnostics = append(diagnostics, newDiagnostic(
				spanRange(doc.Index, entry.NameSpan),
				protocol.DiagnosticSeverityWarning,
				"Package name is empty",
			))
			continue
		}

		if fr, ok := registry.ParseFileReference(entry.Version); ok {
			if diag, bad := s.fileReferenceDiagnostic(doc, entry, fr); bad {
				diagnostics = append(diagnostics, diag)
			}
			continue
		}
		if isGitReference(entry.Version) {
			// Git references are resolved on hover; existence is not
			// validated here.
			continue
		}

		if !s.networkValidation {
			continue
		}
		diagnostics = append(diagnostics, s.registryDiagnostics(doc, entry)...)
	}

	return diagnostics
}

// fileReferenceDiagnostic validates one file: dependency. An empty path is
// a format error reported without any filesystem probe; a well-formed path
// that does not resolve is a warning.
func (s *Server) fileReferenceDiagnostic(doc *Document, entry jsontext.DependencyEntry, fr registry.FileReference) (protocol.Diagnostic, bool) {
	if fr.IsGitStyle {
		return protocol.Diagnostic{}, false
	}
	if fr.Path == "" {
		return newDiagnostic(
			spanRange(doc.Index, entry.ValueSpan),
			protocol.DiagnosticSeverityError,
			"Empty path in file: reference",
		), true
	}

	ctx, cancel := requestContext()
	defer cancel()

	res, err := s.registry.ResolveLocal(ctx, entry.Version)
	if err != nil {
		if errors.Is(err, registry.ErrEmptyLocalPath) {
			return newDiagnostic(
				spanRange(doc.Index, entry.ValueSpan),
				protocol.DiagnosticSeverityError,
				"Empty path in file: reference",
			), true
		}
		return protocol.Diagnostic{}, false
	}
	if !res.Exists {
		return newDiagnostic(
			spanRange(doc.Index, entry.ValueSpan),
			protocol.DiagnosticSeverityWarning,
			fmt.Sprintf("Local package path not found: %s", fr.Path),
		), true
	}
	return protocol.Diagnostic{}, false
}

func (s *Server) registryDiagnostics(doc *Document, entry jsontext.DependencyEntry) []protocol.Diagnostic {
	ctx, cancel := requestContext()
	defer cancel()

	if !s.registry.PackageExists(ctx, entry.Name) {
		return []protocol.Diagnostic{newDiagnostic(
			spanRange(doc.Index, entry.NameSpan),
			protocol.DiagnosticSeverityWarning,
			fmt.Sprintf("Package %q not found in any registry", entry.Name),
		)}
	}

	var diagnostics []protocol.Diagnostic
	if !s.registry.VersionExists(ctx, entry.Name, entry.Version) {
		diagnostics = append(diagnostics, newDiagnostic(
			spanRange(doc.Index, entry.ValueSpan),
			protocol.DiagnosticSeverityWarning,
			fmt.Sprintf("Version %q not found for package %q", entry.Version, entry.Name),
		))
	}
	if reason, deprecated := s.registry.GetDeprecationInfo(ctx, entry.Name); deprecated {
		message := fmt.Sprintf("Package %q is deprecated", entry.Name)
		if reason != "" {
			message += ": " + reason
		}
		diagnostics = append(diagnostics, newDiagnostic(
			spanRange(doc.Index, entry.NameSpan),
			protocol.DiagnosticSeverityInformation,
			message,
		))
	}
	return diagnostics
}

func scopedRegistryDiagnostics(doc *Document) []protocol.Diagnostic {
	var diagnostics []protocol.Diagnostic
	for _, entry := range jsontext.ExtractScopedRegistries(doc.Text) {
		rng := spanRange(doc.Index, entry.Span)
		if entry.Name == nil {
			diagnostics = append(diagnostics, newDiagnostic(rng,
				protocol.DiagnosticSeverityWarning, `Scoped registry is missing "name"`))
		}
		if entry.URL == nil {
			diagnostics = append(diagnostics, newDiagnostic(rng,
				protocol.DiagnosticSeverityWarning, `Scoped registry is missing "url"`))
		}
		switch {
		case entry.Scopes == nil:
			diagnostics = append(diagnostics, newDiagnostic(rng,
				protocol.DiagnosticSeverityWarning, `Scoped registry is missing "scopes"`))
		case len(entry.Scopes) == 0:
			diagnostics = append(diagnostics, newDiagnostic(rng,
				protocol.DiagnosticSeverityWarning, `Scoped registry "scopes" must not be empty`))
		}
	}
	return diagnostics
}

// testablesDiagnostics flags testables entries that are not declared
// dependencies.
func testablesDiagnostics(doc *Document) []protocol.Diagnostic {
	tokens := jsontext.Testables(doc.Text)
	if len(tokens) == 0 {
		return nil
	}

	declared := make(map[string]struct{})
	for _, entry := range jsontext.ExtractDependencies(doc.Text) {
		declared[entry.Name] = struct{}{}
	}

	var diagnostics []protocol.Diagnostic
	for _, tok := range tokens {
		if _, ok := declared[tok.Value]; ok {
			continue
		}
		diagnostics = append(diagnostics, newDiagnostic(
			spanRange(doc.Index, jsontext.Span{Start: tok.Start, End: tok.End + 1}),
			protocol.DiagnosticSeverityInformation,
			fmt.Sprintf("Testable package %q is not listed in dependencies", tok.Value),
		))
	}
	return diagnostics
}

// isGitReference reports whether a dependency value is a git URL rather
// than a registry version. Bare "owner/repo" shorthand is not accepted in
// manifest values, so a scheme or scp-style prefix is required.
func isGitReference(value string) bool {
	return strings.Contains(value, "://") ||
		strings.HasPrefix(value, "git@") ||
		strings.HasPrefix(value, "git+")
}

func newDiagnostic(rng protocol.Range, severity protocol.DiagnosticSeverity, message string) protocol.Diagnostic {
	source := diagnosticSource
	sev := severity
	return protocol.Diagnostic{
		Range:    rng,
		Severity: &sev,
		Source:   &source,
		Message:  message,
	}
}
