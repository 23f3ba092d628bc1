package lsp

import (
	"fmt"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/upm-tools/upmls/internal/jsontext"
)

// topLevelKeys are the documented manifest keys offered at the top level,
// with their insert templates.
var topLevelKeys = []struct {
	label   string
	snippet string
}{
	{"dependencies", `"dependencies": {$1}`},
	{"scopedRegistries", `"scopedRegistries": [$1]`},
	{"testables", `"testables": [$1]`},
	{"enableLockFile", `"enableLockFile": ${1:true}`},
	{"resolutionStrategy", `"resolutionStrategy": "${1:highestMinor}"`},
	{"registry", `"registry": "$1"`},
}

// registryObjectKeys are the fields of one scopedRegistries entry.
var registryObjectKeys = []struct {
	label   string
	snippet string
}{
	{"name", `"name": "$1"`},
	{"url", `"url": "$1"`},
	{"scopes", `"scopes": ["$1"]`},
}

func (s *Server) textDocumentCompletion(glspCtx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc, ok := s.docs.Get(string(params.TextDocument.URI))
	if !ok {
		return nil, nil
	}
	offset := doc.Index.OffsetAt(jsontext.Position{
		Line:      int(params.Position.Line),
		Character: int(params.Position.Character),
	})

	jctx := jsontext.Classify(doc.Text, offset)
	switch jctx.Kind {
	case jsontext.TopLevel:
		return staticKeyItems(topLevelKeys), nil
	case jsontext.DependenciesKey:
		return s.packageNameItems(jctx.Partial), nil
	case jsontext.DependenciesValue:
		return s.versionItems(jctx.PackageName), nil
	case jsontext.ScopedRegistriesObject:
		return staticKeyItems(registryObjectKeys), nil
	case jsontext.ScopedRegistriesScopes:
		return s.scopeItems(jctx.Partial), nil
	default:
		return nil, nil
	}
}

func staticKeyItems(keys []struct {
	label   string
	snippet string
}) []protocol.CompletionItem {
	kind := protocol.CompletionItemKindProperty
	format := protocol.InsertTextFormatSnippet
	items := make([]protocol.CompletionItem, 0, len(keys))
	for i, key := range keys {
		insert := key.snippet
		sortText := fmt.Sprintf("%04d", i)
		items = append(items, protocol.CompletionItem{
			Label:            key.label,
			Kind:             &kind,
			InsertText:       &insert,
			InsertTextFormat: &format,
			SortText:         &sortText,
		})
	}
	return items
}

// packageNameItems offers package names matching the partial key typed so
// far. The snippet completes the whole entry: the typed opening quote plus
// `name": "version"`.
func (s *Server) packageNameItems(partial string) []protocol.CompletionItem {
	ctx, cancel := requestContext()
	defer cancel()

	packages := s.registry.SearchPackages(ctx, partial)

	kind := protocol.CompletionItemKindModule
	format := protocol.InsertTextFormatSnippet
	items := make([]protocol.CompletionItem, 0, len(packages))
	for i, pkg := range packages {
		detail := pkg.Version
		if pkg.DisplayName != "" {
			detail = pkg.DisplayName + " " + pkg.Version
		}
		insert := fmt.Sprintf(`%s": "${1:%s}"`, pkg.Name, pkg.Version)
		sortText := fmt.Sprintf("%04d", i)
		filter := pkg.Name
		item := protocol.CompletionItem{
			Label:            pkg.Name,
			Kind:             &kind,
			Detail:           &detail,
			InsertText:       &insert,
			InsertTextFormat: &format,
			SortText:         &sortText,
			FilterText:       &filter,
		}
		if pkg.Description != "" {
			item.Documentation = pkg.Description
		}
		items = append(items, item)
	}
	return items
}

// versionItems offers the known versions of the entry's package, newest
// first, plus the file: and git reference templates.
func (s *Server) versionItems(packageName string) []protocol.CompletionItem {
	valueKind := protocol.CompletionItemKindValue
	snippetKind := protocol.CompletionItemKindSnippet
	format := protocol.InsertTextFormatSnippet

	var items []protocol.CompletionItem
	if packageName != "" {
		ctx, cancel := requestContext()
		defer cancel()
		for i, version := range s.registry.GetVersions(ctx, packageName) {
			v := version
			sortText := fmt.Sprintf("%04d", i)
			items = append(items, protocol.CompletionItem{
				Label:      v,
				Kind:       &valueKind,
				InsertText: &v,
				SortText:   &sortText,
			})
		}
	}

	fileInsert := `file:$1`
	fileSort := fmt.Sprintf("%04d", len(items))
	fileDetail := "local package reference"
	gitInsert := `https://github.com/${1:owner}/${2:repo}.git`
	gitSort := fmt.Sprintf("%04d", len(items)+1)
	gitDetail := "git package reference"
	items = append(items,
		protocol.CompletionItem{
			Label:            "file:",
			Kind:             &snippetKind,
			Detail:           &fileDetail,
			InsertText:       &fileInsert,
			InsertTextFormat: &format,
			SortText:         &fileSort,
		},
		protocol.CompletionItem{
			Label:            "https://github.com/...",
			Kind:             &snippetKind,
			Detail:           &gitDetail,
			InsertText:       &gitInsert,
			InsertTextFormat: &format,
			SortText:         &gitSort,
		},
	)
	return items
}

// scopeItems offers package names as scope prefixes.
func (s *Server) scopeItems(partial string) []protocol.CompletionItem {
	ctx, cancel := requestContext()
	defer cancel()

	kind := protocol.CompletionItemKindText
	items := make([]protocol.CompletionItem, 0)
	for i, pkg := range s.registry.SearchPackages(ctx, partial) {
		name := pkg.Name
		sortText := fmt.Sprintf("%04d", i)
		items = append(items, protocol.CompletionItem{
			Label:      name,
			Kind:       &kind,
			InsertText: &name,
			SortText:   &sortText,
		})
	}
	return items
}
