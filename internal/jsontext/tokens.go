package jsontext

import (
	"regexp"
	"strings"
)

// Token is one JSON double-quoted string in the document. Start and End are
// the byte offsets of the opening and closing quote characters; Value is the
// raw text between them (escape sequences are not decoded).
type Token struct {
	Value string
	Start int
	End   int
}

// stringToken matches a JSON string literal. The `\\.` alternative consumes
// escaped pairs so that `\"` does not terminate the match.
var stringToken = regexp.MustCompile(`"(?:[^"\\]|\\.)*"`)

// FindAllTokens returns every string token in document order.
func FindAllTokens(text string) []Token {
	locs := stringToken.FindAllStringIndex(text, -1)
	tokens := make([]Token, 0, len(locs))
	for _, loc := range locs {
		tokens = append(tokens, Token{
			Value: text[loc[0]+1 : loc[1]-1],
			Start: loc[0],
			End:   loc[1] - 1,
		})
	}
	return tokens
}

// FindTokenAt returns the token whose range contains offset. The range is
// inclusive at both boundaries, so a cursor sitting exactly on the closing
// quote still matches (end-of-token hover).
func FindTokenAt(text string, offset int) (Token, bool) {
	for _, tok := range FindAllTokens(text) {
		if offset >= tok.Start && offset <= tok.End {
			return tok, true
		}
		if tok.Start > offset {
			break
		}
	}
	return Token{}, false
}

// FindDependenciesBoundaries returns the content span of the dependencies
// object: between the opening brace (exclusive) and its matching close
// (exclusive). Matching is a plain counter and assumes well-formed pairing;
// braces inside string values are not expected in this region of the
// manifest schema.
func FindDependenciesBoundaries(text string) (Span, bool) {
	return findBlockSpan(text, `"dependencies"`, '{', '}')
}

// FindScopedRegistriesBoundaries returns the content span of the
// scopedRegistries array, with the same counter-based matching as
// FindDependenciesBoundaries.
func FindScopedRegistriesBoundaries(text string) (Span, bool) {
	return findBlockSpan(text, `"scopedRegistries"`, '[', ']')
}

func findBlockSpan(text, key string, open, close byte) (Span, bool) {
	keyIdx := strings.Index(text, key)
	if keyIdx < 0 {
		return Span{}, false
	}
	openIdx := strings.IndexByte(text[keyIdx+len(key):], open)
	if openIdx < 0 {
		return Span{}, false
	}
	openIdx += keyIdx + len(key)

	depth := 1
	for i := openIdx + 1; i < len(text); i++ {
		switch text[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return Span{Start: openIdx + 1, End: i}, true
			}
		}
	}
	return Span{}, false
}

// TokenType classifies what a string token denotes in the manifest.
type TokenType int

const (
	TokenUnknown TokenType = iota
	TokenPackageName
	TokenVersion
	TokenURL
)

func (t TokenType) String() string {
	switch t {
	case TokenPackageName:
		return "packageName"
	case TokenVersion:
		return "version"
	case TokenURL:
		return "url"
	default:
		return "unknown"
	}
}

// urlToken matches git and GitHub reference values. URL recognition takes
// priority over structural position: a git URL in a dependency value slot is
// a URL, not a version.
var urlToken = regexp.MustCompile(`(?i)^(git\+)?(https?|ssh|git|file)://|^git@[\w.-]+:|(^|[/@])github\.com[:/]`)

// DetermineTokenType classifies the token starting at tokenStart with the
// given raw value. URL patterns win; otherwise structural position inside
// the dependencies block decides between package name (key position) and
// version (value position, after a colon on the current line).
func DetermineTokenType(text string, tokenStart int, value string) TokenType {
	if urlToken.MatchString(value) {
		return TokenURL
	}
	span, ok := FindDependenciesBoundaries(text)
	if !ok || tokenStart < span.Start || tokenStart >= span.End {
		return TokenUnknown
	}
	// Only the current line decides key-vs-value position, and only the part
	// of it inside the dependencies block: the colon of the "dependencies"
	// anchor itself must not count on single-line documents.
	lineStart := strings.LastIndexByte(text[:tokenStart], '\n') + 1
	if lineStart < span.Start {
		lineStart = span.Start
	}
	if strings.Contains(text[lineStart:tokenStart], ":") {
		return TokenVersion
	}
	return TokenPackageName
}
