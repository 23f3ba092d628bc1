package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writePackage(t *testing.T, dir, name, version string) string {
	t.Helper()
	pkgDir := filepath.Join(dir, name)
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name": "` + name + `", "version": "` + version + `"}`
	if err := os.WriteFile(filepath.Join(pkgDir, "package.json"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	return pkgDir
}

func TestParseFileReference(t *testing.T) {
	tests := []struct {
		ref  string
		want FileReference
		ok   bool
	}{
		{"file:../Local", FileReference{Path: "../Local"}, true},
		{"file:/abs/path", FileReference{Path: "/abs/path", IsAbsolute: true}, true},
		{"file:../pkg.tgz", FileReference{Path: "../pkg.tgz", IsTarball: true}, true},
		{"file:../pkg.tar.gz", FileReference{Path: "../pkg.tar.gz", IsTarball: true}, true},
		{"file://host/repo.git", FileReference{IsGitStyle: true}, true},
		{"file:", FileReference{}, true},
		{"1.0.0", FileReference{}, false},
		{"https://github.com/o/r.git", FileReference{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseFileReference(tt.ref)
		if ok != tt.ok {
			t.Errorf("ParseFileReference(%q) ok = %v, want %v", tt.ref, ok, tt.ok)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFileReference(%q) = %+v, want %+v", tt.ref, got, tt.want)
		}
	}
}

func TestLocalResolve(t *testing.T) {
	base := t.TempDir()
	writePackage(t, base, "Local", "1.0.0")

	local := NewLocal()
	local.SetBaseDir(base)
	ctx := context.Background()

	res, err := local.Resolve(ctx, "file:Local")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !res.Exists {
		t.Fatal("existing package not found")
	}
	if !res.Info.Valid() || res.Info.Name != "Local" {
		t.Errorf("info = %+v", res.Info)
	}

	missing, err := local.Resolve(ctx, "file:../Missing")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if missing.Exists {
		t.Error("missing path reported as existing")
	}
}

func TestLocalResolveEmptyPath(t *testing.T) {
	local := NewLocal()
	local.SetBaseDir(t.TempDir())

	_, err := local.Resolve(context.Background(), "file:")
	if !errors.Is(err, ErrEmptyLocalPath) {
		t.Fatalf("err = %v, want ErrEmptyLocalPath", err)
	}
}

func TestLocalResolveGitStyle(t *testing.T) {
	local := NewLocal()
	local.SetBaseDir(t.TempDir())

	res, err := local.Resolve(context.Background(), "file://host/repo.git")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Exists {
		t.Error("git-style file:// reference resolved as a local package")
	}
}

func TestLocalResolveTarball(t *testing.T) {
	base := t.TempDir()
	if err := os.WriteFile(filepath.Join(base, "pkg.tgz"), []byte("gz"), 0o644); err != nil {
		t.Fatal(err)
	}

	local := NewLocal()
	local.SetBaseDir(base)

	res, err := local.Resolve(context.Background(), "file:pkg.tgz")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !res.Exists {
		t.Error("tarball not found")
	}
	if res.Info != nil {
		t.Error("tarballs carry no manifest info")
	}
}

func TestLocalSameBaseDirKeepsCache(t *testing.T) {
	base := t.TempDir()
	pkgDir := writePackage(t, base, "Local", "1.0.0")

	local := NewLocal()
	local.SetBaseDir(base)
	ctx := context.Background()

	res, err := local.Resolve(ctx, "file:Local")
	if err != nil || !res.Exists {
		t.Fatalf("Resolve = %+v, %v", res, err)
	}

	// Remove the package on disk. Re-setting the same base dir must NOT
	// invalidate the cache; staleness is governed by TTL.
	if err := os.RemoveAll(pkgDir); err != nil {
		t.Fatal(err)
	}
	local.SetBaseDir(base)

	res, err = local.Resolve(ctx, "file:Local")
	if err != nil || !res.Exists {
		t.Errorf("cached resolution lost on same-value SetBaseDir: %+v, %v", res, err)
	}

	// A different base dir does invalidate.
	local.SetBaseDir(t.TempDir())
	res, err = local.Resolve(ctx, "file:Local")
	if err != nil {
		t.Fatal(err)
	}
	if res.Exists {
		t.Error("stale resolution survived a base dir change")
	}
}
