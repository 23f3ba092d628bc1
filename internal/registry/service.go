package registry

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/upm-tools/upmls/internal/cache"
	"github.com/upm-tools/upmls/internal/vers"
)

const (
	// vendorPrefix is the primary vendor's package namespace. Names under
	// it resolve through the locally installed editor before any registry.
	vendorPrefix = "com.unity."

	versionCacheTTL  = 5 * time.Minute
	versionCacheSize = 500
	packageListTTL   = 10 * time.Minute

	searchLimit = 50
)

// Service composes the five package sources behind one resolution surface.
// It owns every shared cache and catches all upstream failures: callers
// receive absence values, never transport errors.
type Service struct {
	vendor    *Hosted
	community *Hosted
	editor    *Editor
	github    *GitHub
	local     *Local
	log       commonlog.Logger

	versions    *cache.Cache[string, []string]
	packageList *cache.Cache[struct{}, []*PackageInfo]
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSources substitutes the underlying clients, for tests.
func WithSources(vendor, community *Hosted, editor *Editor, github *GitHub, local *Local) ServiceOption {
	return func(s *Service) {
		s.vendor = vendor
		s.community = community
		s.editor = editor
		s.github = github
		s.local = local
	}
}

// NewService wires the default source set: the Unity and OpenUPM hosted
// registries sharing one HTTP client, the local editor scanner, GitHub, and
// the local filesystem resolver.
func NewService(client *Client, opts ...ServiceOption) *Service {
	s := &Service{
		vendor:      NewHosted("unity", UnityRegistryURL, client),
		community:   NewHosted("openupm", OpenUPMRegistryURL, client),
		editor:      NewEditor(),
		github:      NewGitHub(client),
		local:       NewLocal(),
		log:         commonlog.GetLogger("registry"),
		versions:    cache.New[string, []string](cache.WithMaxEntries[string, []string](versionCacheSize)),
		packageList: cache.New[struct{}, []*PackageInfo](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func isVendorName(name string) bool {
	return strings.HasPrefix(name, vendorPrefix)
}

// SearchPackages returns completion candidates for query, capped at 50. An
// empty query returns the vendor-namespace subset of the merged list; a
// non-empty query substring-filters the full merged list.
func (s *Service) SearchPackages(ctx context.Context, query string) []*PackageInfo {
	all := s.mergedPackageList(ctx)

	var matched []*PackageInfo
	if query == "" {
		for _, pkg := range all {
			if isVendorName(pkg.Name) {
				matched = append(matched, pkg)
			}
		}
	} else {
		needle := strings.ToLower(query)
		for _, pkg := range all {
			if matchesQuery(pkg, needle) {
				matched = append(matched, pkg)
			}
		}
	}
	if len(matched) > searchLimit {
		matched = matched[:searchLimit]
	}
	return matched
}

// mergedPackageList fans out to both hosted registries and merges by name.
// Community entries are inserted first and vendor entries second, so the
// vendor registry wins ties. A failing source contributes zero entries.
func (s *Service) mergedPackageList(ctx context.Context) []*PackageInfo {
	list, err := s.packageList.GetOrSetContext(ctx, struct{}{}, packageListTTL, func(ctx context.Context) ([]*PackageInfo, error) {
		var vendorPkgs, communityPkgs []*PackageInfo

		group, gctx := errgroup.WithContext(ctx)
		group.Go(func() error {
			pkgs, err := s.vendor.SearchPackages(gctx, "")
			if err != nil {
				s.log.Debugf("vendor registry list failed: %v", err)
				return nil
			}
			vendorPkgs = pkgs
			return nil
		})
		group.Go(func() error {
			pkgs, err := s.community.SearchPackages(gctx, "")
			if err != nil {
				s.log.Debugf("community registry list failed: %v", err)
				return nil
			}
			communityPkgs = pkgs
			return nil
		})
		_ = group.Wait()

		merged := make(map[string]*PackageInfo, len(vendorPkgs)+len(communityPkgs))
		for _, pkg := range communityPkgs {
			merged[pkg.Name] = pkg
		}
		for _, pkg := range vendorPkgs {
			merged[pkg.Name] = pkg
		}

		list := make([]*PackageInfo, 0, len(merged))
		for _, pkg := range merged {
			list = append(list, pkg)
		}
		sort.Slice(list, func(i, j int) bool {
			return list[i].Name < list[j].Name
		})
		return list, nil
	})
	if err != nil {
		return nil
	}
	return list
}

// GetVersions returns the known versions of name, newest first. Vendor
// names consult the installed editor first; a positive editor result wins.
func (s *Service) GetVersions(ctx context.Context, name string) []string {
	versions, err := s.versions.GetOrSetContext(ctx, name, versionCacheTTL, func(ctx context.Context) ([]string, error) {
		if isVendorName(name) {
			if vs, err := s.editor.GetVersions(ctx, name); err == nil && len(vs) > 0 {
				return vs, nil
			}
		}
		if vs, err := s.vendor.GetVersions(ctx, name); err == nil && len(vs) > 0 {
			return vs, nil
		} else if err != nil {
			s.log.Debugf("vendor registry versions for %s failed: %v", name, err)
		}
		if vs, err := s.community.GetVersions(ctx, name); err == nil {
			return vs, nil
		} else {
			s.log.Debugf("community registry versions for %s failed: %v", name, err)
		}
		return nil, nil
	})
	if err != nil {
		return nil
	}
	return versions
}

// GetPackageInfo resolves the metadata of name through the precedence
// chain, or nil when no source carries it.
func (s *Service) GetPackageInfo(ctx context.Context, name string) *PackageInfo {
	if isVendorName(name) {
		if info, err := s.editor.GetPackageInfo(ctx, name); err == nil && info.Valid() {
			return info
		}
	}
	if info, err := s.vendor.GetPackageInfo(ctx, name); err == nil && info.Valid() {
		return info
	} else if err != nil {
		s.log.Debugf("vendor registry lookup for %s failed: %v", name, err)
	}
	if info, err := s.community.GetPackageInfo(ctx, name); err == nil && info.Valid() {
		return info
	} else if err != nil {
		s.log.Debugf("community registry lookup for %s failed: %v", name, err)
	}
	return nil
}

// PackageExists reports whether any source carries name.
func (s *Service) PackageExists(ctx context.Context, name string) bool {
	return s.GetPackageInfo(ctx, name) != nil
}

// VersionExists reports whether name has published exactly version. Vendor
// names always re-check the editor first, even when version lists were
// already fetched from a registry: the installed engine can ship a version
// the hosted registry never mirrored.
func (s *Service) VersionExists(ctx context.Context, name, version string) bool {
	if isVendorName(name) {
		if ok, err := s.editor.HasVersion(ctx, name, version); err == nil && ok {
			return true
		}
	}
	for _, v := range s.GetVersions(ctx, name) {
		if v == version {
			return true
		}
	}
	return false
}

// GetDeprecationInfo is a reserved extension point. No source publishes
// deprecation data yet, so it always reports not deprecated.
func (s *Service) GetDeprecationInfo(ctx context.Context, name string) (string, bool) {
	return "", false
}

// GetRepoInfo lists the tags and branches of a git-hosted dependency, or
// nil when the upstream is unreachable.
func (s *Service) GetRepoInfo(ctx context.Context, owner, repo string) *RepoInfo {
	info, err := s.github.GetRepoInfo(ctx, owner, repo)
	if err != nil {
		s.log.Debugf("repo info for %s/%s failed: %v", owner, repo, err)
		return nil
	}
	return info
}

// GetGitPackageInfo fetches the package manifest of a git-hosted
// dependency, or nil when it is absent or unreachable.
func (s *Service) GetGitPackageInfo(ctx context.Context, ref RepoReference) *PackageInfo {
	info, err := s.github.GetPackageInfo(ctx, ref)
	if err != nil {
		s.log.Debugf("git manifest for %s/%s failed: %v", ref.Owner, ref.Repo, err)
		return nil
	}
	return info
}

// GitVersionExists reports whether the repository tags version.
func (s *Service) GitVersionExists(ctx context.Context, owner, repo, version string) bool {
	ok, err := s.github.VersionExists(ctx, owner, repo, version)
	if err != nil {
		s.log.Debugf("tag lookup for %s/%s failed: %v", owner, repo, err)
		return false
	}
	return ok
}

// SetManifestDir points the local resolver at the directory holding the
// open manifest.
func (s *Service) SetManifestDir(dir string) {
	s.local.SetBaseDir(dir)
}

// ResolveLocal resolves a "file:" dependency value.
func (s *Service) ResolveLocal(ctx context.Context, ref string) (LocalResolution, error) {
	return s.local.Resolve(ctx, ref)
}

// LocalPackageExists reports whether a "file:" dependency resolves. A
// malformed reference reports false.
func (s *Service) LocalPackageExists(ctx context.Context, ref string) bool {
	res, err := s.local.Resolve(ctx, ref)
	if err != nil {
		return false
	}
	return res.Exists
}

// ClearCaches drops every cache the service and its clients hold.
func (s *Service) ClearCaches() {
	s.versions.Clear()
	s.packageList.Clear()
	s.vendor.ClearCache()
	s.community.ClearCache()
	s.editor.ClearCache()
	s.github.ClearCache()
	s.local.ClearCache()
}

// LatestVersion returns the newest known version of name, or "".
func (s *Service) LatestVersion(ctx context.Context, name string) string {
	return vers.Latest(s.GetVersions(ctx, name))
}
