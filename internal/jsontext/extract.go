package jsontext

import (
	"encoding/json"
	"errors"
	"regexp"
)

// DependencyEntry is one "name": "version" pair inside the dependencies
// block, with the byte spans of both tokens (quotes included) for
// diagnostics.
type DependencyEntry struct {
	Name      string
	Version   string
	NameSpan  Span
	ValueSpan Span
}

var dependencyPair = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// ExtractDependencies locates every dependency entry in the document.
// Extraction is regex-based over the dependencies boundary span; it works on
// transiently invalid documents and simply returns what it can find.
func ExtractDependencies(text string) []DependencyEntry {
	span, ok := FindDependenciesBoundaries(text)
	if !ok {
		return nil
	}
	region := text[span.Start:span.End]
	matches := dependencyPair.FindAllStringSubmatchIndex(region, -1)
	entries := make([]DependencyEntry, 0, len(matches))
	for _, m := range matches {
		entries = append(entries, DependencyEntry{
			Name:      region[m[2]:m[3]],
			Version:   region[m[4]:m[5]],
			NameSpan:  Span{Start: span.Start + m[2] - 1, End: span.Start + m[3] + 1},
			ValueSpan: Span{Start: span.Start + m[4] - 1, End: span.Start + m[5] + 1},
		})
	}
	return entries
}

// ScopedRegistryEntry is one object element of the scopedRegistries array.
// Name and URL are nil when the field is absent. Scopes is nil when the
// field is absent and empty (non-nil) when present but empty.
type ScopedRegistryEntry struct {
	Name   *string
	URL    *string
	Scopes []string
	Span   Span
}

var (
	registryNameField = regexp.MustCompile(`"name"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	registryURLField  = regexp.MustCompile(`"url"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	scopesField       = regexp.MustCompile(`"scopes"\s*:\s*\[([^\]]*)\]`)
)

// ExtractScopedRegistries locates every scoped-registry object and its
// name/url/scopes fields for diagnostic traversal.
func ExtractScopedRegistries(text string) []ScopedRegistryEntry {
	span, ok := FindScopedRegistriesBoundaries(text)
	if !ok {
		return nil
	}

	var entries []ScopedRegistryEntry
	depth := 0
	objStart := -1
	for i := span.Start; i < span.End; i++ {
		switch text[i] {
		case '{':
			if depth == 0 {
				objStart = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && objStart >= 0 {
				entries = append(entries, parseScopedRegistry(text, Span{Start: objStart, End: i + 1}))
				objStart = -1
			}
		}
	}
	return entries
}

func parseScopedRegistry(text string, span Span) ScopedRegistryEntry {
	body := text[span.Start:span.End]
	entry := ScopedRegistryEntry{Span: span}
	if m := registryNameField.FindStringSubmatch(body); m != nil {
		entry.Name = &m[1]
	}
	if m := registryURLField.FindStringSubmatch(body); m != nil {
		entry.URL = &m[1]
	}
	if m := scopesField.FindStringSubmatch(body); m != nil {
		entry.Scopes = []string{}
		for _, tok := range FindAllTokens(m[1]) {
			entry.Scopes = append(entry.Scopes, tok.Value)
		}
	}
	return entry
}

var testablesField = regexp.MustCompile(`"testables"\s*:\s*\[([^\]]*)\]`)

// Testables returns the entries of the top-level "testables" array, with
// each token's span in document coordinates.
func Testables(text string) []Token {
	m := testablesField.FindStringSubmatchIndex(text)
	if m == nil {
		return nil
	}
	inner := text[m[2]:m[3]]
	tokens := FindAllTokens(inner)
	for i := range tokens {
		tokens[i].Start += m[2]
		tokens[i].End += m[2]
	}
	return tokens
}

// SyntaxErrorOffset recovers the byte offset of a JSON syntax error reported
// by encoding/json, clamped to the document. The second result is false for
// non-syntax errors.
func SyntaxErrorOffset(text string, err error) (int, bool) {
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return 0, false
	}
	offset := int(syntaxErr.Offset)
	if offset > 0 {
		offset-- // json offsets point one past the offending byte
	}
	if offset > len(text) {
		offset = len(text)
	}
	if offset < 0 {
		offset = 0
	}
	return offset, true
}
