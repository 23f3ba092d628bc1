package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/upm-tools/upmls/internal/cache"
)

const (
	githubAPIBase = "https://api.github.com"
	githubRawBase = "https://raw.githubusercontent.com"

	repoInfoTTL     = 5 * time.Minute
	repoManifestTTL = 5 * time.Minute
)

// RepoReference is a parsed git dependency value. Ref and Path are empty
// when the reference does not pin one.
type RepoReference struct {
	Owner string
	Repo  string
	Ref   string
	Path  string
}

// ParseRepoReference extracts the GitHub coordinates out of a manifest
// dependency value. It accepts the url forms UPM resolves through git
// (https, git+https, ssh, scp-style git@) plus the bare "owner/repo"
// shorthand, with optional "#ref" and "?path=subdir" suffixes in either
// order. The second return is false for values that are not GitHub refs.
func ParseRepoReference(ref string) (RepoReference, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "file:") {
		return RepoReference{}, false
	}

	var out RepoReference
	rest := ref

	// Fragment and query can nest: "...#v1.2.3?path=/pkg".
	if i := strings.Index(rest, "#"); i >= 0 {
		frag := rest[i+1:]
		rest = rest[:i]
		if j := strings.Index(frag, "?"); j >= 0 {
			out.Path = pathParam(frag[j+1:])
			frag = frag[:j]
		}
		out.Ref = frag
	}
	if i := strings.Index(rest, "?"); i >= 0 {
		if p := pathParam(rest[i+1:]); p != "" {
			out.Path = p
		}
		rest = rest[:i]
	}

	rest = strings.TrimPrefix(rest, "git+")

	var ownerRepo string
	switch {
	case strings.HasPrefix(rest, "https://"), strings.HasPrefix(rest, "http://"),
		strings.HasPrefix(rest, "ssh://"), strings.HasPrefix(rest, "git://"):
		i := strings.Index(rest, "github.com/")
		if i < 0 {
			return RepoReference{}, false
		}
		ownerRepo = rest[i+len("github.com/"):]
	case strings.HasPrefix(rest, "git@"):
		i := strings.Index(rest, ":")
		if i < 0 || !strings.Contains(rest[:i], "github.com") {
			return RepoReference{}, false
		}
		ownerRepo = rest[i+1:]
	default:
		// Bare "owner/repo" shorthand: exactly one slash, no scheme.
		if strings.Contains(rest, "://") || strings.Count(rest, "/") != 1 {
			return RepoReference{}, false
		}
		ownerRepo = rest
	}

	ownerRepo = strings.TrimSuffix(strings.Trim(ownerRepo, "/"), ".git")
	parts := strings.Split(ownerRepo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return RepoReference{}, false
	}
	out.Owner = parts[0]
	out.Repo = parts[1]
	return out, true
}

func pathParam(query string) string {
	for _, kv := range strings.Split(query, "&") {
		if v, ok := strings.CutPrefix(kv, "path="); ok {
			return strings.Trim(v, "/")
		}
	}
	return ""
}

// GitHub resolves package metadata for git-hosted dependencies through the
// GitHub REST and raw-content endpoints.
type GitHub struct {
	client    *Client
	apiBase   string
	rawBase   string
	repos     *cache.Cache[string, *RepoInfo]
	manifests *cache.Cache[string, *PackageInfo]
}

// GitHubOption configures a GitHub client.
type GitHubOption func(*GitHub)

// WithBaseURLs overrides the API and raw-content endpoints, for tests.
func WithBaseURLs(apiBase, rawBase string) GitHubOption {
	return func(g *GitHub) {
		g.apiBase = strings.TrimSuffix(apiBase, "/")
		g.rawBase = strings.TrimSuffix(rawBase, "/")
	}
}

// NewGitHub creates a GitHub client on top of the shared HTTP client.
func NewGitHub(client *Client, opts ...GitHubOption) *GitHub {
	g := &GitHub{
		client:    client,
		apiBase:   githubAPIBase,
		rawBase:   githubRawBase,
		repos:     cache.New[string, *RepoInfo](),
		manifests: cache.New[string, *PackageInfo](),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type refEntry struct {
	Name   string `json:"name"`
	Commit struct {
		SHA string `json:"sha"`
		URL string `json:"url"`
	} `json:"commit"`
}

// GetRepoInfo lists the repository's tags and branches. Listings read only
// the first page of 100; repositories with more refs are truncated.
func (g *GitHub) GetRepoInfo(ctx context.Context, owner, repo string) (*RepoInfo, error) {
	key := owner + "/" + repo
	return g.repos.GetOrSetContext(ctx, key, repoInfoTTL, func(ctx context.Context) (*RepoInfo, error) {
		info := &RepoInfo{Owner: owner, Repo: repo, DefaultRef: "main"}

		group, gctx := errgroup.WithContext(ctx)
		group.Go(func() error {
			names, err := g.listRefs(gctx, owner, repo, "tags")
			if err != nil {
				return err
			}
			info.Tags = names
			return nil
		})
		group.Go(func() error {
			names, err := g.listRefs(gctx, owner, repo, "branches")
			if err != nil {
				return err
			}
			info.Branches = names
			return nil
		})
		if err := group.Wait(); err != nil {
			return nil, err
		}
		return info, nil
	})
}

func (g *GitHub) listRefs(ctx context.Context, owner, repo, kind string) ([]string, error) {
	listURL := fmt.Sprintf("%s/repos/%s/%s/%s?per_page=100", g.apiBase, owner, repo, kind)
	var entries []refEntry
	if err := g.client.GetJSON(ctx, listURL, &entries); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names, nil
}

// GetPackageInfo fetches the package.json of a repository at the given ref
// and subdirectory. An empty ref tries "main" and falls back to "master"
// when the file is absent. A missing manifest resolves to nil, nil.
func (g *GitHub) GetPackageInfo(ctx context.Context, ref RepoReference) (*PackageInfo, error) {
	key := fmt.Sprintf("%s/%s@%s/%s", ref.Owner, ref.Repo, ref.Ref, ref.Path)
	return g.manifests.GetOrSetContext(ctx, key, repoManifestTTL, func(ctx context.Context) (*PackageInfo, error) {
		refs := []string{ref.Ref}
		if ref.Ref == "" {
			refs = []string{"main", "master"}
		}
		for i, r := range refs {
			info, err := g.fetchManifest(ctx, ref.Owner, ref.Repo, r, ref.Path)
			if err != nil {
				if IsNotFound(err) && i < len(refs)-1 {
					continue
				}
				if IsNotFound(err) {
					return nil, nil
				}
				return nil, err
			}
			return info, nil
		}
		return nil, nil
	})
}

func (g *GitHub) fetchManifest(ctx context.Context, owner, repo, ref, path string) (*PackageInfo, error) {
	manifestPath := "package.json"
	if path != "" {
		manifestPath = strings.Trim(path, "/") + "/package.json"
	}
	rawURL := fmt.Sprintf("%s/%s/%s/%s/%s", g.rawBase, owner, repo, ref, manifestPath)

	// The raw-content endpoint serves the file as text/plain.
	body, err := g.client.GetText(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	var info PackageInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, &Error{Kind: KindParse, URL: rawURL, cause: err}
	}
	if !info.Valid() {
		return nil, &Error{Kind: KindNotFound, URL: rawURL}
	}
	return &info, nil
}

// VersionExists reports whether the repository has a tag matching version,
// either exactly or with a leading "v".
func (g *GitHub) VersionExists(ctx context.Context, owner, repo, version string) (bool, error) {
	info, err := g.GetRepoInfo(ctx, owner, repo)
	if err != nil {
		return false, err
	}
	for _, tag := range info.Tags {
		if tag == version || tag == "v"+version {
			return true, nil
		}
	}
	return false, nil
}

// ClearCache drops the repository and manifest caches.
func (g *GitHub) ClearCache() {
	g.repos.Clear()
	g.manifests.Clear()
}
