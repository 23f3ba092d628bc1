package jsontext

import (
	"strings"
	"testing"
)

// cursorAt returns the text with the "|" marker removed and the marker's
// offset, so test documents can mark the cursor inline.
func cursorAt(t *testing.T, marked string) (string, int) {
	t.Helper()
	offset := strings.Index(marked, "|")
	if offset < 0 {
		t.Fatalf("no cursor marker in %q", marked)
	}
	return marked[:offset] + marked[offset+1:], offset
}

func TestClassifyDependencies(t *testing.T) {
	tests := []struct {
		name    string
		marked  string
		kind    Kind
		pkg     string
		partial string
	}{
		{
			name:   "key position in new entry",
			marked: "{\n  \"dependencies\": {\n    \"com.uni|\n  }\n}",
			kind:   DependenciesKey, partial: "com.uni",
		},
		{
			name:   "key position empty quote",
			marked: "{\n  \"dependencies\": {\n    \"|\"\n  }\n}",
			kind:   DependenciesKey, partial: "",
		},
		{
			name:   "value position after colon",
			marked: "{\n  \"dependencies\": {\n    \"com.unity.inputsystem\": \"1.|\n  }\n}",
			kind:   DependenciesValue, pkg: "com.unity.inputsystem", partial: "1.",
		},
		{
			name:   "value position single line document",
			marked: `{"dependencies":{"com.unity.ugui":"|"}}`,
			kind:   DependenciesValue, pkg: "com.unity.ugui",
		},
		{
			name:   "key position single line document",
			marked: `{"dependencies":{"com.|`,
			kind:   DependenciesKey, partial: "com.",
		},
		{
			name:   "after closing brace is not inside",
			marked: "{\n  \"dependencies\": {}\n  |\n}",
			kind:   TopLevel,
		},
		{
			name:   "nested value object stays classified by line colon",
			marked: "{\n  \"dependencies\": {\n    \"a\": \"1.0.0\",\n    \"b\": \"2.|\"\n  }\n}",
			kind:   DependenciesValue, pkg: "b", partial: "2.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, offset := cursorAt(t, tt.marked)
			got := Classify(text, offset)
			if got.Kind != tt.kind {
				t.Fatalf("kind = %s, want %s", got.Kind, tt.kind)
			}
			if got.PackageName != tt.pkg {
				t.Errorf("package = %q, want %q", got.PackageName, tt.pkg)
			}
			if got.Partial != tt.partial {
				t.Errorf("partial = %q, want %q", got.Partial, tt.partial)
			}
		})
	}
}

func TestClassifyScopedRegistries(t *testing.T) {
	tests := []struct {
		name   string
		marked string
		kind   Kind
	}{
		{
			name:   "inside registry object",
			marked: `{"scopedRegistries":[{"name":"X",|}]}`,
			kind:   ScopedRegistriesObject,
		},
		{
			name:   "inside scopes array",
			marked: `{"scopedRegistries":[{"name":"X","scopes":["com.|"]}]}`,
			kind:   ScopedRegistriesScopes,
		},
		{
			name:   "between array elements",
			marked: `{"scopedRegistries":[{"name":"X"},|]}`,
			kind:   Unknown,
		},
		{
			name:   "after array close",
			marked: "{\n  \"scopedRegistries\": []\n  |\n}",
			kind:   TopLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, offset := cursorAt(t, tt.marked)
			if got := Classify(text, offset); got.Kind != tt.kind {
				t.Fatalf("kind = %s, want %s", got.Kind, tt.kind)
			}
		})
	}
}

func TestClassifyTopLevel(t *testing.T) {
	tests := []struct {
		name   string
		marked string
		kind   Kind
	}{
		{name: "empty object", marked: "{|}", kind: TopLevel},
		{name: "before any key", marked: "{\n  |\n}", kind: TopLevel},
		{name: "outside root object", marked: "|{}", kind: Unknown},
		{name: "after root close", marked: "{}|", kind: Unknown},
		{
			name:   "braces inside string values do not affect depth",
			marked: `{"description":"has { braces } inside", |}`,
			kind:   TopLevel,
		},
		{
			name:   "escaped quote inside string",
			marked: `{"description":"quote \" and { here", |}`,
			kind:   TopLevel,
		},
		{
			name:   "inside unrelated nested object",
			marked: `{"author":{"name":"|"}}`,
			kind:   Unknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, offset := cursorAt(t, tt.marked)
			if got := Classify(text, offset); got.Kind != tt.kind {
				t.Fatalf("kind = %s, want %s", got.Kind, tt.kind)
			}
		})
	}
}

func TestClassifyDuplicateDependenciesUsesLastAnchor(t *testing.T) {
	// Malformed documents with duplicated keys classify against the
	// lexically last anchor before the cursor.
	text, offset := cursorAt(t, `{"dependencies":{},"dependencies":{"a":"|"}}`)
	got := Classify(text, offset)
	if got.Kind != DependenciesValue {
		t.Fatalf("kind = %s, want %s", got.Kind, DependenciesValue)
	}
	if got.PackageName != "a" {
		t.Errorf("package = %q, want %q", got.PackageName, "a")
	}
}

func TestClassifyNeverPanics(t *testing.T) {
	inputs := []string{"", "{", "}{", `{"dependencies":`, `{"scopedRegistries":[`, "\x00\x01"}
	for _, text := range inputs {
		for offset := -1; offset <= len(text)+1; offset++ {
			_ = Classify(text, offset)
		}
	}
}
