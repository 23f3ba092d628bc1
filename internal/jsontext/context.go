package jsontext

import (
	"regexp"
	"strings"
)

// Kind tags the structural region of the manifest a cursor sits in.
type Kind int

const (
	Unknown Kind = iota
	TopLevel
	DependenciesKey
	DependenciesValue
	ScopedRegistriesObject
	ScopedRegistriesScopes
)

func (k Kind) String() string {
	switch k {
	case TopLevel:
		return "topLevel"
	case DependenciesKey:
		return "dependenciesKey"
	case DependenciesValue:
		return "dependenciesValue"
	case ScopedRegistriesObject:
		return "scopedRegistriesObject"
	case ScopedRegistriesScopes:
		return "scopedRegistriesScopes"
	default:
		return "unknown"
	}
}

// Context is the classification of one cursor position. PackageName is set
// for DependenciesValue; Partial carries the text inside an open or partial
// quote at the cursor for key/value positions.
type Context struct {
	Kind        Kind
	PackageName string
	Partial     string
}

var (
	depsAnchor   = regexp.MustCompile(`"dependencies"\s*:\s*\{`)
	scopedAnchor = regexp.MustCompile(`"scopedRegistries"\s*:\s*\[`)

	// lastKeyOnLine captures the nearest preceding quoted key before a colon.
	lastKeyOnLine = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"\s*:`)
	// trailingQuote captures the content of an open or partial quote at the
	// end of the current line (the in-progress token under the cursor).
	trailingQuote = regexp.MustCompile(`"([^"]*)$`)
)

// Classify determines which semantic region of the manifest offset is in.
// It never fails: malformed or ambiguous structure yields Unknown. The
// anchor search uses the lexically last `"dependencies": {` or
// `"scopedRegistries": [` before the cursor, not the nearest enclosing one;
// with duplicated keys (malformed JSON) the last occurrence wins.
func Classify(text string, offset int) Context {
	if offset < 0 || offset > len(text) {
		return Context{Kind: Unknown}
	}
	head := text[:offset]

	depsEnd := lastMatchEnd(depsAnchor, head)
	scopedEnd := lastMatchEnd(scopedAnchor, head)

	// The later anchor is the candidate construct; fall back to the other if
	// the cursor already left the later one.
	if scopedEnd > depsEnd {
		if ctx, ok := classifyScoped(text, scopedEnd, offset); ok {
			return ctx
		}
		if ctx, ok := classifyDependencies(text, depsEnd, offset); ok {
			return ctx
		}
	} else {
		if ctx, ok := classifyDependencies(text, depsEnd, offset); ok {
			return ctx
		}
		if ctx, ok := classifyScoped(text, scopedEnd, offset); ok {
			return ctx
		}
	}

	if isTopLevel(text, offset) {
		return Context{Kind: TopLevel}
	}
	return Context{Kind: Unknown}
}

// lastMatchEnd returns the end offset of the last match of re in head, or -1.
func lastMatchEnd(re *regexp.Regexp, head string) int {
	locs := re.FindAllStringIndex(head, -1)
	if len(locs) == 0 {
		return -1
	}
	return locs[len(locs)-1][1]
}

// classifyDependencies reports the context when the cursor is still inside
// the dependencies object anchored at anchorEnd (the offset just past the
// opening brace).
func classifyDependencies(text string, anchorEnd, offset int) (Context, bool) {
	if anchorEnd < 0 {
		return Context{}, false
	}
	depth := 1
	for i := anchorEnd; i < offset; i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return Context{}, false
			}
		}
	}

	lineStart := strings.LastIndexByte(text[:offset], '\n') + 1
	if lineStart < anchorEnd {
		lineStart = anchorEnd
	}
	line := text[lineStart:offset]

	partial := ""
	if m := trailingQuote.FindStringSubmatch(line); m != nil {
		partial = m[1]
	}

	if strings.Contains(line, ":") {
		name := ""
		if keys := lastKeyOnLine.FindAllStringSubmatch(line, -1); len(keys) > 0 {
			name = keys[len(keys)-1][1]
		}
		return Context{Kind: DependenciesValue, PackageName: name, Partial: partial}, true
	}
	return Context{Kind: DependenciesKey, Partial: partial}, true
}

// classifyScoped reports the context when the cursor is inside the
// scopedRegistries array anchored at anchorEnd (just past the opening
// bracket). Inside an object element it is ScopedRegistriesObject, and
// inside that object's scopes array it is ScopedRegistriesScopes.
func classifyScoped(text string, anchorEnd, offset int) (Context, bool) {
	if anchorEnd < 0 {
		return Context{}, false
	}
	bracketDepth := 1
	braceDepth := 0
	for i := anchorEnd; i < offset; i++ {
		switch text[i] {
		case '[':
			bracketDepth++
		case ']':
			bracketDepth--
			if bracketDepth == 0 {
				return Context{}, false
			}
		case '{':
			braceDepth++
		case '}':
			braceDepth--
		}
	}
	if braceDepth <= 0 {
		// Between elements of the array; not a completable region.
		return Context{}, false
	}
	// A nested array inside a registry object can only be "scopes" under the
	// manifest schema.
	if bracketDepth >= 2 {
		return Context{Kind: ScopedRegistriesScopes}, true
	}
	return Context{Kind: ScopedRegistriesObject}, true
}

// isTopLevel scans from the document start, skipping string literals
// (including escape sequences), and reports whether the running depth at
// offset is exactly one object deep with no enclosing array.
func isTopLevel(text string, offset int) bool {
	braceDepth := 0
	bracketDepth := 0
	inString := false
	escaped := false

	for i := 0; i < offset; i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			braceDepth++
		case '}':
			braceDepth--
		case '[':
			bracketDepth++
		case ']':
			bracketDepth--
		}
	}
	return braceDepth == 1 && bracketDepth == 0
}
