package registry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/upm-tools/upmls/internal/vers"
)

// packageNamePattern is the reverse-domain form UPM package names take,
// e.g. "com.unity.inputsystem". At least one dot-separated segment beyond
// the root is required.
var packageNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-_]*(\.[a-z0-9][a-z0-9-_]*)+$`)

const maxPackageNameLength = 214

// ValidatePackageName reports whether name is a well-formed UPM package
// name. Names that fail validation are never turned into filesystem paths.
func ValidatePackageName(name string) bool {
	if name == "" || len(name) > maxPackageNameLength {
		return false
	}
	if strings.Contains(name, "..") {
		return false
	}
	if strings.ContainsAny(name, `/\:;|&$<>'"`+" \t\n") {
		return false
	}
	return packageNamePattern.MatchString(name)
}

// Editor reads package metadata out of locally installed Unity editor
// distributions. Every editor install ships a BuiltInPackages directory of
// package sources; newer installs are preferred when several carry the same
// package.
type Editor struct {
	roots []string

	mu       sync.Mutex
	dirs     []string          // built-in package dirs, newest install first
	index    map[string]string // package name -> package dir, first found wins
	scanned  bool
	packages map[string]*PackageInfo
}

// EditorOption configures an Editor.
type EditorOption func(*Editor)

// WithRoots overrides the platform install roots, for tests.
func WithRoots(roots ...string) EditorOption {
	return func(e *Editor) {
		e.roots = roots
	}
}

// NewEditor creates an editor client rooted at the platform's standard
// Unity Hub install locations.
func NewEditor(opts ...EditorOption) *Editor {
	e := &Editor{roots: defaultEditorRoots()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func defaultEditorRoots() []string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return []string{"/Applications/Unity/Hub/Editor"}
	case "windows":
		roots := []string{`C:\Program Files\Unity\Hub\Editor`}
		if home != "" {
			roots = append(roots, filepath.Join(home, `AppData\Local\Unity\Hub\Editor`))
		}
		return roots
	default:
		var roots []string
		if home != "" {
			roots = append(roots, filepath.Join(home, "Unity", "Hub", "Editor"))
		}
		roots = append(roots, "/opt/unity/editors")
		return roots
	}
}

// builtinPackagesDir maps an editor install dir to its BuiltInPackages dir.
func builtinPackagesDir(install string) string {
	if runtime.GOOS == "darwin" {
		return filepath.Join(install, "Unity.app", "Contents", "Resources", "PackageManager", "BuiltInPackages")
	}
	return filepath.Join(install, "Editor", "Data", "Resources", "PackageManager", "BuiltInPackages")
}

// builtinDirs lists BuiltInPackages directories across all installs, newest
// editor version first. The list is memoized; ClearCache resets it.
func (e *Editor) builtinDirs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.builtinDirsLocked()
}

func (e *Editor) builtinDirsLocked() []string {
	if e.dirs != nil {
		return e.dirs
	}

	var installs []string
	for _, root := range e.roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				installs = append(installs, filepath.Join(root, entry.Name()))
			}
		}
	}
	// Version directory names sort newest-last lexicographically for the
	// common "2022.3.10f1" scheme; reverse so newer installs win.
	sort.Sort(sort.Reverse(sort.StringSlice(installs)))

	dirs := make([]string, 0, len(installs))
	for _, install := range installs {
		dir := builtinPackagesDir(install)
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			dirs = append(dirs, dir)
		}
	}
	e.dirs = dirs
	return dirs
}

// scan builds the name->dir index and parses every built-in package.json
// once. First-found wins, so a package present in several installs resolves
// to the newest.
func (e *Editor) scan() (map[string]string, map[string]*PackageInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.scanned {
		return e.index, e.packages
	}

	index := make(map[string]string)
	packages := make(map[string]*PackageInfo)
	for _, dir := range e.builtinDirsLocked() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			name := entry.Name()
			if _, seen := index[name]; seen {
				continue
			}
			if !ValidatePackageName(name) {
				continue
			}
			pkgDir := filepath.Join(dir, name)
			// Joined paths must stay inside the install tree even after
			// cleaning; names are validated, this is the backstop.
			if !strings.HasPrefix(pkgDir, dir+string(filepath.Separator)) {
				continue
			}
			info, err := readPackageManifest(pkgDir)
			if err != nil || !info.Valid() {
				continue
			}
			index[name] = pkgDir
			packages[name] = info
		}
	}
	e.index = index
	e.packages = packages
	e.scanned = true
	return index, packages
}

func readPackageManifest(dir string) (*PackageInfo, error) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return nil, err
	}
	var info PackageInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// SearchPackages returns installed built-in packages matching query, sorted
// by name. An empty query returns everything.
func (e *Editor) SearchPackages(_ context.Context, query string) ([]*PackageInfo, error) {
	_, packages := e.scan()

	needle := strings.ToLower(query)
	var matched []*PackageInfo
	for _, pkg := range packages {
		if needle == "" || matchesQuery(pkg, needle) {
			matched = append(matched, pkg)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Name < matched[j].Name
	})
	return matched, nil
}

// GetPackageInfo returns the metadata of an installed built-in package, or
// nil when no install carries it. Invalid names resolve to nil without
// touching the filesystem.
func (e *Editor) GetPackageInfo(_ context.Context, name string) (*PackageInfo, error) {
	if !ValidatePackageName(name) {
		return nil, nil
	}
	_, packages := e.scan()
	return packages[name], nil
}

// GetVersions returns the versions of name found across installs, newest
// first. Built-in packages carry exactly one version per install.
func (e *Editor) GetVersions(ctx context.Context, name string) ([]string, error) {
	if !ValidatePackageName(name) {
		return nil, nil
	}

	seen := make(map[string]struct{})
	var versions []string
	for _, dir := range e.builtinDirs() {
		pkgDir := filepath.Join(dir, name)
		if !strings.HasPrefix(pkgDir, dir+string(filepath.Separator)) {
			continue
		}
		info, err := readPackageManifest(pkgDir)
		if err != nil || !info.Valid() {
			continue
		}
		if _, dup := seen[info.Version]; dup {
			continue
		}
		seen[info.Version] = struct{}{}
		versions = append(versions, info.Version)
	}
	return vers.SortDescending(versions), nil
}

// HasVersion reports whether any install carries name at exactly version.
func (e *Editor) HasVersion(ctx context.Context, name, version string) (bool, error) {
	versions, err := e.GetVersions(ctx, name)
	if err != nil {
		return false, err
	}
	for _, v := range versions {
		if v == version {
			return true, nil
		}
	}
	return false, nil
}

// PackageExists reports whether any install carries name.
func (e *Editor) PackageExists(ctx context.Context, name string) (bool, error) {
	info, err := e.GetPackageInfo(ctx, name)
	if err != nil {
		return false, err
	}
	return info != nil, nil
}

// ClearCache forgets the memoized install list and package index; the next
// read rescans the filesystem.
func (e *Editor) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dirs = nil
	e.index = nil
	e.packages = nil
	e.scanned = false
}
