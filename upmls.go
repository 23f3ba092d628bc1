// Package upmls implements a language server for Unity Package Manager
// manifest.json files: context-aware completion, hover documentation, and
// diagnostics backed by the Unity and OpenUPM registries, locally installed
// editor distributions, GitHub-hosted packages, and local filesystem
// packages.
//
// The cmd/upmls binary speaks the language server protocol over stdio.
// Embedders can wire the pieces directly:
//
//	client := upmls.NewClient(upmls.WithUserAgent("upmls/" + upmls.Version))
//	service := upmls.NewService(client)
//	server := upmls.NewServer(service, upmls.WithServerVersion(upmls.Version))
//	// hand server.Handler() to a glsp transport loop
package upmls

import (
	"github.com/upm-tools/upmls/internal/lsp"
	"github.com/upm-tools/upmls/internal/registry"
)

// Version is the release version reported to clients.
const Version = "0.1.0"

// Re-export the registry surface.
type (
	// PackageInfo is the metadata of one package version.
	PackageInfo = registry.PackageInfo

	// RepoInfo is the ref inventory of a git-hosted package repository.
	RepoInfo = registry.RepoInfo

	// Client is the shared HTTP client for remote registry sources, with
	// DNS caching, retries, and per-host circuit breakers.
	Client = registry.Client

	// Service composes the five package sources behind one resolution
	// surface with defined precedence and shared caches.
	Service = registry.Service
)

// Re-export errors.
var ErrNotFound = registry.ErrNotFound

// IsNotFound reports whether err represents an absent package or version.
var IsNotFound = registry.IsNotFound

// Client construction.
var (
	NewClient     = registry.NewClient
	WithUserAgent = registry.WithUserAgent
	WithAuthFunc  = registry.WithAuthFunc
)

// NewService wires the default source set: Unity and OpenUPM hosted
// registries, the local editor scanner, GitHub, and the local filesystem
// resolver.
var NewService = registry.NewService

// Server is the language server session object.
type Server = lsp.Server

// NewServer creates a language server backed by the given service.
func NewServer(service *Service, opts ...lsp.Option) *Server {
	return lsp.New(service, opts...)
}

// WithServerVersion sets the version the server reports to clients.
var WithServerVersion = lsp.WithVersion
