// Package lsp implements the language server for UPM manifest.json files:
// context-aware completion, hover documentation, and debounced diagnostics,
// all computed over raw document text so transiently invalid JSON never
// breaks a request.
package lsp

import (
	"context"
	"net/url"
	"path/filepath"
	"time"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/upm-tools/upmls/internal/registry"
)

const (
	serverName     = "upmls"
	debounceDelay  = 500 * time.Millisecond
	requestTimeout = 10 * time.Second
)

// Resolver is the registry surface the handlers depend on. Implemented by
// *registry.Service; tests substitute a fake.
type Resolver interface {
	SearchPackages(ctx context.Context, query string) []*registry.PackageInfo
	GetVersions(ctx context.Context, name string) []string
	GetPackageInfo(ctx context.Context, name string) *registry.PackageInfo
	PackageExists(ctx context.Context, name string) bool
	VersionExists(ctx context.Context, name, version string) bool
	GetDeprecationInfo(ctx context.Context, name string) (string, bool)
	GetRepoInfo(ctx context.Context, owner, repo string) *registry.RepoInfo
	ResolveLocal(ctx context.Context, ref string) (registry.LocalResolution, error)
	SetManifestDir(dir string)
}

// Server is the long-lived session object. It owns the document store, the
// registry resolver, the debouncer, and the session configuration; there is
// no package-level mutable state.
type Server struct {
	handler  protocol.Handler
	log      commonlog.Logger
	version  string
	registry Resolver
	docs     *DocumentStore
	debounce *debouncer

	// networkValidation gates registry-backed diagnostics. Format and
	// local-file checks always run.
	networkValidation bool
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the version reported to the client.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// New creates a Server backed by the given resolver.
func New(resolver Resolver, opts ...Option) *Server {
	s := &Server{
		log:               commonlog.GetLogger(serverName),
		registry:          resolver,
		docs:              NewDocumentStore(),
		debounce:          newDebouncer(debounceDelay),
		networkValidation: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = protocol.Handler{
		Initialize:             s.initialize,
		Initialized:            s.initialized,
		Shutdown:               s.shutdown,
		SetTrace:               s.setTrace,
		TextDocumentDidOpen:    s.textDocumentDidOpen,
		TextDocumentDidChange:  s.textDocumentDidChange,
		TextDocumentDidSave:    s.textDocumentDidSave,
		TextDocumentDidClose:   s.textDocumentDidClose,
		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
	}
	return s
}

// Handler returns the protocol handler for the transport loop.
func (s *Server) Handler() *protocol.Handler {
	return &s.handler
}

func (s *Server) initialize(glspCtx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	if opts, ok := params.InitializationOptions.(map[string]any); ok {
		if v, ok := opts["networkValidation"].(bool); ok {
			s.networkValidation = v
		}
	}

	capabilities := s.handler.CreateServerCapabilities()
	capabilities.TextDocumentSync = protocol.TextDocumentSyncKindFull
	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{`"`, ":", "."},
	}
	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &s.version,
		},
	}, nil
}

func (s *Server) initialized(glspCtx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *Server) shutdown(glspCtx *glsp.Context) error {
	s.debounce.stopAll()
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

func (s *Server) setTrace(glspCtx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *Server) textDocumentDidOpen(glspCtx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := string(params.TextDocument.URI)
	s.docs.Open(uri, params.TextDocument.Version, params.TextDocument.Text)
	if dir := manifestDir(uri); dir != "" {
		s.registry.SetManifestDir(dir)
	}
	s.scheduleValidation(glspCtx, uri, params.TextDocument.Version)
	return nil
}

func (s *Server) textDocumentDidChange(glspCtx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := string(params.TextDocument.URI)
	doc, ok := s.docs.Get(uri)
	if !ok {
		return nil
	}

	text := doc.Text
	for _, change := range params.ContentChanges {
		// Full document sync: every change event carries the whole text.
		switch c := change.(type) {
		case protocol.TextDocumentContentChangeEvent:
			text = c.Text
		case protocol.TextDocumentContentChangeEventWhole:
			text = c.Text
		}
	}
	s.docs.Update(uri, params.TextDocument.Version, text)
	s.scheduleValidation(glspCtx, uri, params.TextDocument.Version)
	return nil
}

func (s *Server) textDocumentDidSave(glspCtx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	uri := string(params.TextDocument.URI)
	if doc, ok := s.docs.Get(uri); ok {
		s.scheduleValidation(glspCtx, uri, doc.Version)
	}
	return nil
}

func (s *Server) textDocumentDidClose(glspCtx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := string(params.TextDocument.URI)
	s.debounce.cancel(uri)
	s.docs.Close(uri)
	glspCtx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// scheduleValidation debounces diagnostics per document. When the delayed
// run fires it re-checks the stored version and discards stale results.
func (s *Server) scheduleValidation(glspCtx *glsp.Context, uri string, version int32) {
	notify := glspCtx.Notify
	s.debounce.schedule(uri, func() {
		doc, ok := s.docs.Get(uri)
		if !ok || doc.Version != version {
			return
		}
		diagnostics := s.collectDiagnostics(doc)
		notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
			URI:         protocol.DocumentUri(uri),
			Diagnostics: diagnostics,
		})
	})
}

// manifestDir resolves the directory holding the manifest a file: URI
// points at. Non-file URIs yield "".
func manifestDir(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return ""
	}
	return filepath.Dir(filepath.FromSlash(u.Path))
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}
