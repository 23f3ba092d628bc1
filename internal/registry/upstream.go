package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/upm-tools/upmls/internal/cache"
	"github.com/upm-tools/upmls/internal/vers"
)

// Default hosted registry endpoints: the primary vendor registry and the
// community registry, both npm-compatible.
const (
	UnityRegistryURL   = "https://packages.unity.com"
	OpenUPMRegistryURL = "https://package.openupm.com"
)

const (
	snapshotTTL = 10 * time.Minute
	detailTTL   = 5 * time.Minute

	// The "all packages" snapshot carries one reserved metadata key.
	updatedKey = "_updated"
)

// Hosted is a client for one npm-compatible hosted registry. Two instances
// exist (vendor and community), differing only in base URL.
type Hosted struct {
	name     string
	baseURL  string
	client   *Client
	snapshot *cache.Cache[string, []*PackageInfo]
	details  *cache.Cache[string, *detailDocument]
}

// NewHosted creates a hosted-registry client. name identifies the source in
// logs; baseURL has no trailing slash requirement.
func NewHosted(name, baseURL string, client *Client) *Hosted {
	return &Hosted{
		name:     name,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		client:   client,
		snapshot: cache.New[string, []*PackageInfo](),
		details:  cache.New[string, *detailDocument](),
	}
}

// Name identifies this source.
func (h *Hosted) Name() string {
	return h.name
}

// searchDocument is one entry of the "/-/all" snapshot.
type searchDocument struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"displayName"`
	Description string            `json:"description"`
	Keywords    []string          `json:"keywords"`
	DistTags    map[string]string `json:"dist-tags"`
	Versions    map[string]string `json:"versions"`
}

// detailDocument is the per-package detail response.
type detailDocument struct {
	Name     string                 `json:"name"`
	DistTags map[string]string      `json:"dist-tags"`
	Versions map[string]PackageInfo `json:"versions"`
}

// SearchPackages returns the packages matching query. An empty query
// returns the full cached snapshot; a non-empty query is a case-insensitive
// substring match across name, display name, description, and keywords.
func (h *Hosted) SearchPackages(ctx context.Context, query string) ([]*PackageInfo, error) {
	all, err := h.snapshot.GetOrSetContext(ctx, "all", snapshotTTL, h.fetchSnapshot)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return all, nil
	}

	needle := strings.ToLower(query)
	var matched []*PackageInfo
	for _, pkg := range all {
		if matchesQuery(pkg, needle) {
			matched = append(matched, pkg)
		}
	}
	return matched, nil
}

func matchesQuery(pkg *PackageInfo, needle string) bool {
	if strings.Contains(strings.ToLower(pkg.Name), needle) ||
		strings.Contains(strings.ToLower(pkg.DisplayName), needle) ||
		strings.Contains(strings.ToLower(pkg.Description), needle) {
		return true
	}
	for _, kw := range pkg.Keywords {
		if strings.Contains(strings.ToLower(kw), needle) {
			return true
		}
	}
	return false
}

func (h *Hosted) fetchSnapshot(ctx context.Context) ([]*PackageInfo, error) {
	var raw map[string]json.RawMessage
	if err := h.client.GetJSON(ctx, h.baseURL+"/-/all", &raw); err != nil {
		return nil, err
	}

	packages := make([]*PackageInfo, 0, len(raw))
	for key, entry := range raw {
		if key == updatedKey {
			continue
		}
		var doc searchDocument
		if err := json.Unmarshal(entry, &doc); err != nil {
			continue // malformed entries are skipped, not fatal
		}
		if doc.Name == "" {
			doc.Name = key
		}
		version := doc.DistTags["latest"]
		if version == "" {
			for v := range doc.Versions {
				if version == "" || vers.Compare(v, version) > 0 {
					version = v
				}
			}
		}
		if version == "" {
			continue // name and version are both required for validity
		}
		packages = append(packages, &PackageInfo{
			Name:        doc.Name,
			Version:     version,
			DisplayName: doc.DisplayName,
			Description: doc.Description,
			Keywords:    doc.Keywords,
		})
	}
	sort.Slice(packages, func(i, j int) bool {
		return packages[i].Name < packages[j].Name
	})
	return packages, nil
}

// GetPackageInfo returns the latest version's metadata for name, or nil
// when the registry does not carry the package. Non-404 failures propagate.
func (h *Hosted) GetPackageInfo(ctx context.Context, name string) (*PackageInfo, error) {
	doc, err := h.detail(ctx, name)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}

	latest := doc.DistTags["latest"]
	if latest == "" {
		latest = vers.Latest(versionKeys(doc.Versions))
	}
	info, ok := doc.Versions[latest]
	if !ok {
		return nil, nil
	}
	if info.Name == "" {
		info.Name = doc.Name
	}
	if info.Version == "" {
		info.Version = latest
	}
	if !info.Valid() {
		return nil, nil
	}
	return &info, nil
}

// GetVersions returns every published version of name, newest first.
func (h *Hosted) GetVersions(ctx context.Context, name string) ([]string, error) {
	doc, err := h.detail(ctx, name)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return vers.SortDescending(versionKeys(doc.Versions)), nil
}

// PackageExists reports whether the registry carries name at all.
func (h *Hosted) PackageExists(ctx context.Context, name string) (bool, error) {
	doc, err := h.detail(ctx, name)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return doc != nil, nil
}

// VersionExists reports whether name has published exactly version.
func (h *Hosted) VersionExists(ctx context.Context, name, version string) (bool, error) {
	doc, err := h.detail(ctx, name)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if doc == nil {
		return false, nil
	}
	_, ok := doc.Versions[version]
	return ok, nil
}

// ClearCache drops both the snapshot and detail caches.
func (h *Hosted) ClearCache() {
	h.snapshot.Clear()
	h.details.Clear()
}

func (h *Hosted) detail(ctx context.Context, name string) (*detailDocument, error) {
	return h.details.GetOrSetContext(ctx, name, detailTTL, func(ctx context.Context) (*detailDocument, error) {
		detailURL := fmt.Sprintf("%s/%s", h.baseURL, url.PathEscape(name))
		var doc detailDocument
		if err := h.client.GetJSON(ctx, detailURL, &doc); err != nil {
			return nil, err
		}
		return &doc, nil
	})
}

func versionKeys(versions map[string]PackageInfo) []string {
	keys := make([]string, 0, len(versions))
	for v := range versions {
		keys = append(keys, v)
	}
	return keys
}
