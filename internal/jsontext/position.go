// Package jsontext provides position-aware analysis of a UPM manifest
// buffer without building a parse tree. It classifies cursor positions into
// structural regions, scans string tokens, and extracts dependency and
// scoped-registry entries for diagnostics, all over the raw document text so
// that transiently invalid JSON never breaks a request.
package jsontext

import "sort"

// Position is a zero-based line/character pair.
type Position struct {
	Line      int
	Character int
}

// Span is a half-open byte range [Start, End) into the document text.
type Span struct {
	Start int
	End   int
}

// Index is a precomputed newline-offset table for one document snapshot.
// Only '\n' demarcates lines; a '\r' in CRLF documents is reported as a
// trailing character on its line.
type Index struct {
	lineStarts []int
	length     int
}

// NewIndex scans text once and records the byte offset of every line start.
func NewIndex(text string) *Index {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Index{lineStarts: starts, length: len(text)}
}

// PositionAt converts a byte offset to a line/character position using
// binary search. Offsets outside the document are clamped.
func (ix *Index) PositionAt(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > ix.length {
		offset = ix.length
	}
	line := sort.Search(len(ix.lineStarts), func(i int) bool {
		return ix.lineStarts[i] > offset
	}) - 1
	return Position{Line: line, Character: offset - ix.lineStarts[line]}
}

// OffsetAt converts a line/character position back to a byte offset,
// clamping to the document and to the addressed line.
func (ix *Index) OffsetAt(pos Position) int {
	if pos.Line < 0 {
		return 0
	}
	if pos.Line >= len(ix.lineStarts) {
		return ix.length
	}
	offset := ix.lineStarts[pos.Line] + pos.Character
	lineEnd := ix.length
	if pos.Line+1 < len(ix.lineStarts) {
		lineEnd = ix.lineStarts[pos.Line+1] - 1
	}
	if offset > lineEnd {
		offset = lineEnd
	}
	if offset < ix.lineStarts[pos.Line] {
		offset = ix.lineStarts[pos.Line]
	}
	return offset
}
