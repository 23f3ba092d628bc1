package lsp

import (
	"fmt"
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/upm-tools/upmls/internal/jsontext"
	"github.com/upm-tools/upmls/internal/registry"
)

func (s *Server) textDocumentHover(glspCtx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc, ok := s.docs.Get(string(params.TextDocument.URI))
	if !ok {
		return nil, nil
	}
	offset := doc.Index.OffsetAt(jsontext.Position{
		Line:      int(params.Position.Line),
		Character: int(params.Position.Character),
	})

	token, ok := jsontext.FindTokenAt(doc.Text, offset)
	if !ok {
		return nil, nil
	}

	var markdown string
	switch jsontext.DetermineTokenType(doc.Text, token.Start, token.Value) {
	case jsontext.TokenPackageName:
		markdown = s.packageHover(token.Value)
	case jsontext.TokenVersion:
		markdown = s.versionHover(doc.Text, token)
	case jsontext.TokenURL:
		markdown = s.urlHover(doc.Text, token.Value)
	}
	if markdown == "" {
		return nil, nil
	}

	hoverRange := tokenRange(doc.Index, token)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: markdown,
		},
		Range: &hoverRange,
	}, nil
}

func (s *Server) packageHover(name string) string {
	ctx, cancel := requestContext()
	defer cancel()

	info := s.registry.GetPackageInfo(ctx, name)
	if info == nil {
		return ""
	}
	return packageMarkdown(info)
}

// versionHover summarizes the package the hovered version belongs to,
// located by the value span enclosing the token.
func (s *Server) versionHover(text string, token jsontext.Token) string {
	var name string
	for _, entry := range jsontext.ExtractDependencies(text) {
		if token.Start >= entry.ValueSpan.Start && token.Start < entry.ValueSpan.End {
			name = entry.Name
			break
		}
	}
	if name == "" {
		return ""
	}

	ctx, cancel := requestContext()
	defer cancel()

	var b strings.Builder
	fmt.Fprintf(&b, "**%s@%s**\n", name, token.Value)
	if info := s.registry.GetPackageInfo(ctx, name); info != nil {
		if info.DisplayName != "" {
			fmt.Fprintf(&b, "\n%s\n", info.DisplayName)
		}
		if info.Version != token.Value {
			fmt.Fprintf(&b, "\nLatest: `%s`\n", info.Version)
		}
	}
	return b.String()
}

// urlHover describes a git reference, or echoes the scoped registry a url
// token belongs to.
func (s *Server) urlHover(text, value string) string {
	for _, entry := range jsontext.ExtractScopedRegistries(text) {
		if entry.URL != nil && *entry.URL == value {
			var b strings.Builder
			name := "(unnamed)"
			if entry.Name != nil {
				name = *entry.Name
			}
			fmt.Fprintf(&b, "**Scoped registry: %s**\n\n%s\n", name, value)
			if len(entry.Scopes) > 0 {
				fmt.Fprintf(&b, "\nScopes: `%s`\n", strings.Join(entry.Scopes, "`, `"))
			}
			return b.String()
		}
	}

	ref, ok := registry.ParseRepoReference(value)
	if !ok {
		return ""
	}

	ctx, cancel := requestContext()
	defer cancel()

	var b strings.Builder
	fmt.Fprintf(&b, "**%s/%s**\n", ref.Owner, ref.Repo)
	if ref.Ref != "" {
		fmt.Fprintf(&b, "\nRef: `%s`\n", ref.Ref)
	}
	if ref.Path != "" {
		fmt.Fprintf(&b, "\nPath: `%s`\n", ref.Path)
	}
	if info := s.registry.GetRepoInfo(ctx, ref.Owner, ref.Repo); info != nil {
		if len(info.Tags) > 0 {
			n := len(info.Tags)
			if n > 5 {
				n = 5
			}
			fmt.Fprintf(&b, "\nTags: `%s`\n", strings.Join(info.Tags[:n], "`, `"))
		}
	}
	return b.String()
}

func packageMarkdown(info *registry.PackageInfo) string {
	var b strings.Builder
	title := info.Name
	if info.DisplayName != "" {
		title = info.DisplayName
	}
	fmt.Fprintf(&b, "**%s**\n\n`%s@%s`\n", title, info.Name, info.Version)
	if info.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", info.Description)
	}
	if info.Unity != "" {
		unity := info.Unity
		if info.UnityRelease != "" {
			unity += "." + info.UnityRelease
		}
		fmt.Fprintf(&b, "\nRequires Unity `%s`\n", unity)
	}
	var links []string
	if info.DocumentationURL != "" {
		links = append(links, fmt.Sprintf("[Documentation](%s)", info.DocumentationURL))
	}
	if info.ChangelogURL != "" {
		links = append(links, fmt.Sprintf("[Changelog](%s)", info.ChangelogURL))
	}
	if info.LicensesURL != "" {
		links = append(links, fmt.Sprintf("[License](%s)", info.LicensesURL))
	}
	if len(links) > 0 {
		fmt.Fprintf(&b, "\n%s\n", strings.Join(links, " | "))
	}
	return b.String()
}

// tokenRange converts a token's byte span (quote offsets, inclusive) to a
// protocol range covering the quoted string.
func tokenRange(index *jsontext.Index, token jsontext.Token) protocol.Range {
	return spanRange(index, jsontext.Span{Start: token.Start, End: token.End + 1})
}

func spanRange(index *jsontext.Index, span jsontext.Span) protocol.Range {
	start := index.PositionAt(span.Start)
	end := index.PositionAt(span.End)
	return protocol.Range{
		Start: protocol.Position{Line: clampToUint32(start.Line), Character: clampToUint32(start.Character)},
		End:   protocol.Position{Line: clampToUint32(end.Line), Character: clampToUint32(end.Character)},
	}
}

func clampToUint32(n int) protocol.UInteger {
	if n < 0 {
		return 0
	}
	return protocol.UInteger(n)
}
