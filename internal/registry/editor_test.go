package registry

import (
	"context"
	"path/filepath"
	"testing"
)

// writeEditorInstall lays out one editor install with the given built-in
// packages and returns the install root.
func writeEditorInstall(t *testing.T, root, version string, packages map[string]string) {
	t.Helper()
	builtins := builtinPackagesDir(filepath.Join(root, version))
	for name, pkgVersion := range packages {
		writePackage(t, builtins, name, pkgVersion)
	}
}

func TestValidatePackageName(t *testing.T) {
	valid := []string{
		"com.unity.inputsystem",
		"com.unity.render-pipelines.core",
		"com.cysharp.unitask",
		"org.nuget.system_memory",
	}
	for _, name := range valid {
		if !ValidatePackageName(name) {
			t.Errorf("ValidatePackageName(%q) = false", name)
		}
	}

	invalid := []string{
		"",
		"single",
		"../../etc/passwd",
		"com.unity.foo/../../etc",
		`com.unity\foo`,
		"com.unity.foo bar",
		"com.unity.foo;rm",
		"com.unity.foo$HOME",
		"Com.Unity.Foo",
		".com.unity",
		"com..unity",
		string(make([]byte, 215)),
	}
	for _, name := range invalid {
		if ValidatePackageName(name) {
			t.Errorf("ValidatePackageName(%q) = true", name)
		}
	}
}

func TestEditorPathTraversalRejected(t *testing.T) {
	root := t.TempDir()
	writeEditorInstall(t, root, "2022.3.10f1", map[string]string{
		"com.unity.ugui": "1.0.0",
	})
	editor := NewEditor(WithRoots(root))
	ctx := context.Background()

	for _, name := range []string{"../../etc/passwd", "com.unity.foo/../../etc"} {
		info, err := editor.GetPackageInfo(ctx, name)
		if err != nil {
			t.Fatalf("GetPackageInfo(%q) failed: %v", name, err)
		}
		if info != nil {
			t.Errorf("GetPackageInfo(%q) = %+v, want nil", name, info)
		}
		versions, err := editor.GetVersions(ctx, name)
		if err != nil || versions != nil {
			t.Errorf("GetVersions(%q) = %v, %v, want nil", name, versions, err)
		}
	}
}

func TestEditorFirstInstallWins(t *testing.T) {
	root := t.TempDir()
	writeEditorInstall(t, root, "2021.3.1f1", map[string]string{
		"com.unity.ugui": "1.0.0",
		"com.unity.old":  "0.9.0",
	})
	writeEditorInstall(t, root, "2022.3.10f1", map[string]string{
		"com.unity.ugui": "2.0.0",
	})
	editor := NewEditor(WithRoots(root))
	ctx := context.Background()

	// Installs sort descending by directory name; 2022 wins the tie.
	info, err := editor.GetPackageInfo(ctx, "com.unity.ugui")
	if err != nil {
		t.Fatalf("GetPackageInfo failed: %v", err)
	}
	if info == nil || info.Version != "2.0.0" {
		t.Errorf("info = %+v, want version 2.0.0", info)
	}

	// Packages only in the older install are still visible.
	old, err := editor.GetPackageInfo(ctx, "com.unity.old")
	if err != nil || old == nil || old.Version != "0.9.0" {
		t.Errorf("old = %+v, %v", old, err)
	}

	// GetVersions merges distinct versions across installs, newest first.
	versions, err := editor.GetVersions(ctx, "com.unity.ugui")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 || versions[0] != "2.0.0" || versions[1] != "1.0.0" {
		t.Errorf("versions = %v", versions)
	}

	if ok, _ := editor.HasVersion(ctx, "com.unity.ugui", "1.0.0"); !ok {
		t.Error("older install's version not found")
	}
}

func TestEditorSearchPackages(t *testing.T) {
	root := t.TempDir()
	writeEditorInstall(t, root, "2022.3.10f1", map[string]string{
		"com.unity.ugui":        "2.0.0",
		"com.unity.inputsystem": "1.7.0",
	})
	editor := NewEditor(WithRoots(root))
	ctx := context.Background()

	all, err := editor.SearchPackages(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Name != "com.unity.inputsystem" {
		t.Errorf("all = %v", all)
	}

	matched, err := editor.SearchPackages(ctx, "ugui")
	if err != nil {
		t.Fatal(err)
	}
	if len(matched) != 1 || matched[0].Name != "com.unity.ugui" {
		t.Errorf("matched = %v", matched)
	}
}

func TestEditorClearCacheRescans(t *testing.T) {
	root := t.TempDir()
	writeEditorInstall(t, root, "2022.3.10f1", map[string]string{
		"com.unity.ugui": "2.0.0",
	})
	editor := NewEditor(WithRoots(root))
	ctx := context.Background()

	if ok, _ := editor.PackageExists(ctx, "com.unity.ugui"); !ok {
		t.Fatal("package not found")
	}

	// Add a second install after the first scan: invisible until ClearCache.
	writeEditorInstall(t, root, "2023.1.0f1", map[string]string{
		"com.unity.newpkg": "1.0.0",
	})
	if ok, _ := editor.PackageExists(ctx, "com.unity.newpkg"); ok {
		t.Error("memoized scan picked up a new install without ClearCache")
	}

	editor.ClearCache()
	if ok, _ := editor.PackageExists(ctx, "com.unity.newpkg"); !ok {
		t.Error("new install not visible after ClearCache")
	}
}
