package registry

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/upm-tools/upmls/internal/cache"
)

const localTTL = 2 * time.Minute

// ErrEmptyLocalPath marks a "file:" dependency with nothing after the
// prefix. Callers report it without probing the filesystem.
var ErrEmptyLocalPath = errors.New("empty path in file: reference")

// FileReference is a parsed "file:" dependency value.
type FileReference struct {
	Path       string
	IsAbsolute bool
	IsTarball  bool
	IsGitStyle bool // "file://" URLs resolve through git, not the filesystem
}

// ParseFileReference parses a manifest dependency value of the "file:"
// form. The second return is false for values that are not file references
// at all. "file://" (two slashes) is a git-protocol URL and is flagged
// IsGitStyle rather than treated as a local path.
func ParseFileReference(ref string) (FileReference, bool) {
	rest, ok := strings.CutPrefix(ref, "file:")
	if !ok {
		return FileReference{}, false
	}
	if strings.HasPrefix(rest, "//") {
		return FileReference{IsGitStyle: true}, true
	}

	out := FileReference{Path: rest}
	out.IsAbsolute = filepath.IsAbs(rest) || (len(rest) > 1 && rest[1] == ':') // C:\ on windows
	lower := strings.ToLower(rest)
	out.IsTarball = strings.HasSuffix(lower, ".tgz") || strings.HasSuffix(lower, ".tar.gz")
	return out, true
}

// LocalResolution is the outcome of resolving one local dependency.
type LocalResolution struct {
	Exists bool
	Info   *PackageInfo // nil for tarballs and for dirs without a readable manifest
}

type localKey struct {
	baseDir string
	ref     string
}

// Local resolves "file:" dependencies against the directory holding the
// open manifest.
type Local struct {
	mu      sync.Mutex
	baseDir string
	cache   *cache.Cache[localKey, LocalResolution]
}

// NewLocal creates a local resolver. The base directory starts empty and is
// set when a manifest is opened.
func NewLocal() *Local {
	return &Local{cache: cache.New[localKey, LocalResolution]()}
}

// SetBaseDir sets the directory relative paths resolve against. Setting the
// same directory again is a no-op; entry staleness is governed by TTL, not
// by re-opens of the same manifest.
func (l *Local) SetBaseDir(dir string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if dir == l.baseDir {
		return
	}
	l.baseDir = dir
	l.cache.Clear()
}

// BaseDir returns the current resolution root.
func (l *Local) BaseDir() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.baseDir
}

// Resolve checks whether the referenced local package exists and reads its
// manifest when it is a directory. Git-style "file://" references are not
// local and resolve as absent.
func (l *Local) Resolve(ctx context.Context, ref string) (LocalResolution, error) {
	fr, ok := ParseFileReference(ref)
	if !ok {
		return LocalResolution{}, errors.New("not a file: reference")
	}
	if fr.IsGitStyle {
		return LocalResolution{}, nil
	}
	if fr.Path == "" {
		return LocalResolution{}, ErrEmptyLocalPath
	}

	baseDir := l.BaseDir()
	key := localKey{baseDir: baseDir, ref: ref}
	return l.cache.GetOrSetContext(ctx, key, localTTL, func(ctx context.Context) (LocalResolution, error) {
		return resolvePath(ctx, baseDir, fr)
	})
}

func resolvePath(ctx context.Context, baseDir string, fr FileReference) (LocalResolution, error) {
	path := fr.Path
	if !fr.IsAbsolute {
		path = filepath.Join(baseDir, filepath.FromSlash(fr.Path))
	}

	if fr.IsTarball {
		fi, err := os.Stat(path)
		exists := err == nil && fi.Mode().IsRegular()
		return LocalResolution{Exists: exists}, nil
	}

	var (
		isDir bool
		info  *PackageInfo
	)
	group, _ := errgroup.WithContext(ctx)
	group.Go(func() error {
		fi, err := os.Stat(path)
		isDir = err == nil && fi.IsDir()
		return nil
	})
	group.Go(func() error {
		data, err := os.ReadFile(filepath.Join(path, "package.json"))
		if err != nil {
			return nil
		}
		var pi PackageInfo
		if json.Unmarshal(data, &pi) == nil && pi.Valid() {
			info = &pi
		}
		return nil
	})
	_ = group.Wait()

	if !isDir {
		return LocalResolution{}, nil
	}
	return LocalResolution{Exists: true, Info: info}, nil
}

// Exists reports whether the referenced local package resolves.
func (l *Local) Exists(ctx context.Context, ref string) (bool, error) {
	res, err := l.Resolve(ctx, ref)
	if err != nil {
		return false, err
	}
	return res.Exists, nil
}

// GetPackageInfo returns the manifest of a local package directory, or nil
// when the reference does not resolve to one.
func (l *Local) GetPackageInfo(ctx context.Context, ref string) (*PackageInfo, error) {
	res, err := l.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	return res.Info, nil
}

// ClearCache drops all resolutions.
func (l *Local) ClearCache() {
	l.cache.Clear()
}
