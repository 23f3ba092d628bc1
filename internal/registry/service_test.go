package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// hostedServer serves an npm-compatible registry from a fixture map of
// name -> versions (first version is dist-tags latest).
func hostedServer(t *testing.T, packages map[string][]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.URL.Path == "/-/all" {
			resp := map[string]interface{}{"_updated": 1700000000}
			for name, versions := range packages {
				resp[name] = map[string]interface{}{
					"name":        name,
					"displayName": "Display " + name,
					"dist-tags":   map[string]string{"latest": versions[0]},
				}
			}
			json.NewEncoder(w).Encode(resp)
			return
		}

		name := r.URL.Path[1:]
		versions, ok := packages[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		versionDocs := map[string]interface{}{}
		for _, v := range versions {
			versionDocs[v] = map[string]string{"name": name, "version": v}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"name":      name,
			"dist-tags": map[string]string{"latest": versions[0]},
			"versions":  versionDocs,
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func failingServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)
	return server
}

func testService(t *testing.T, vendorSrv, communitySrv *httptest.Server, editor *Editor) *Service {
	t.Helper()
	client := NewClient(WithMaxRetries(0))
	if editor == nil {
		editor = NewEditor(WithRoots(t.TempDir()))
	}
	return NewService(client, WithSources(
		NewHosted("unity", vendorSrv.URL, client),
		NewHosted("openupm", communitySrv.URL, client),
		editor,
		NewGitHub(client),
		NewLocal(),
	))
}

func TestServiceMergeVendorWinsTies(t *testing.T) {
	vendor := hostedServer(t, map[string][]string{
		"com.unity.inputsystem": {"1.7.0"},
		"com.shared.pkg":        {"2.0.0"},
	})
	community := hostedServer(t, map[string][]string{
		"com.cysharp.unitask": {"2.5.0"},
		"com.shared.pkg":      {"1.0.0"},
	})
	svc := testService(t, vendor, community, nil)

	matched := svc.SearchPackages(context.Background(), "shared")
	if len(matched) != 1 {
		t.Fatalf("got %d packages, want 1", len(matched))
	}
	if matched[0].Version != "2.0.0" {
		t.Errorf("tie resolved to %q, want the vendor registry's 2.0.0", matched[0].Version)
	}

	// Both sources contribute to the merged list.
	all := svc.SearchPackages(context.Background(), "com.")
	if len(all) != 3 {
		t.Errorf("merged list has %d packages, want 3", len(all))
	}
}

func TestServiceEmptyQueryIsVendorSubset(t *testing.T) {
	vendor := hostedServer(t, map[string][]string{
		"com.unity.inputsystem": {"1.7.0"},
		"com.unity.ugui":        {"2.0.0"},
	})
	community := hostedServer(t, map[string][]string{
		"com.cysharp.unitask": {"2.5.0"},
	})
	svc := testService(t, vendor, community, nil)

	curated := svc.SearchPackages(context.Background(), "")
	if len(curated) != 2 {
		t.Fatalf("got %d packages, want only the com.unity. subset", len(curated))
	}
	for _, pkg := range curated {
		if !isVendorName(pkg.Name) {
			t.Errorf("non-vendor package in curated set: %s", pkg.Name)
		}
	}
}

func TestServiceSearchCap(t *testing.T) {
	packages := map[string][]string{}
	for i := 0; i < 80; i++ {
		packages[fmt.Sprintf("com.example.pkg%03d", i)] = []string{"1.0.0"}
	}
	vendor := hostedServer(t, packages)
	community := hostedServer(t, map[string][]string{})
	svc := testService(t, vendor, community, nil)

	matched := svc.SearchPackages(context.Background(), "com.example")
	if len(matched) != 50 {
		t.Errorf("got %d packages, want cap of 50", len(matched))
	}
}

func TestServiceFailingSourceContributesNothing(t *testing.T) {
	vendor := failingServer(t)
	community := hostedServer(t, map[string][]string{
		"com.cysharp.unitask": {"2.5.0"},
	})
	svc := testService(t, vendor, community, nil)

	matched := svc.SearchPackages(context.Background(), "unitask")
	if len(matched) != 1 || matched[0].Name != "com.cysharp.unitask" {
		t.Errorf("matched = %v, want the community package", matched)
	}

	// No transport error ever escapes: a fully failing lookup is absence.
	if info := svc.GetPackageInfo(context.Background(), "com.example.gone"); info != nil {
		t.Errorf("info = %+v, want nil", info)
	}
}

func TestServiceVendorNamePrefersEditor(t *testing.T) {
	root := t.TempDir()
	writeEditorInstall(t, root, "2022.3.10f1", map[string]string{
		"com.unity.ugui": "9.9.9",
	})
	editor := NewEditor(WithRoots(root))

	vendor := hostedServer(t, map[string][]string{
		"com.unity.ugui": {"2.0.0", "1.0.0"},
	})
	community := hostedServer(t, map[string][]string{})
	svc := testService(t, vendor, community, editor)
	ctx := context.Background()

	// Editor result wins for vendor-prefixed names.
	info := svc.GetPackageInfo(ctx, "com.unity.ugui")
	if info == nil || info.Version != "9.9.9" {
		t.Errorf("info = %+v, want the editor's 9.9.9", info)
	}

	// The installed engine may ship versions the registry never mirrored.
	if !svc.VersionExists(ctx, "com.unity.ugui", "9.9.9") {
		t.Error("editor-only version not found")
	}
	if svc.VersionExists(ctx, "com.unity.ugui", "3.0.0") {
		t.Error("phantom version found")
	}
}

func TestServiceFallsThroughToCommunity(t *testing.T) {
	vendor := hostedServer(t, map[string][]string{})
	community := hostedServer(t, map[string][]string{
		"com.cysharp.unitask": {"2.5.0", "2.4.0"},
	})
	svc := testService(t, vendor, community, nil)
	ctx := context.Background()

	info := svc.GetPackageInfo(ctx, "com.cysharp.unitask")
	if info == nil || info.Version != "2.5.0" {
		t.Errorf("info = %+v", info)
	}

	versions := svc.GetVersions(ctx, "com.cysharp.unitask")
	if len(versions) != 2 || versions[0] != "2.5.0" {
		t.Errorf("versions = %v", versions)
	}

	if !svc.PackageExists(ctx, "com.cysharp.unitask") {
		t.Error("package not found")
	}
	if svc.PackageExists(ctx, "com.example.absent") {
		t.Error("phantom package found")
	}
}

func TestServiceDeprecationReserved(t *testing.T) {
	vendor := hostedServer(t, map[string][]string{})
	community := hostedServer(t, map[string][]string{})
	svc := testService(t, vendor, community, nil)

	if reason, deprecated := svc.GetDeprecationInfo(context.Background(), "com.unity.ugui"); deprecated || reason != "" {
		t.Errorf("GetDeprecationInfo = %q, %v, want empty", reason, deprecated)
	}
}

func TestServiceLocalRouting(t *testing.T) {
	base := t.TempDir()
	writePackage(t, base, "Local", "1.0.0")

	vendor := hostedServer(t, map[string][]string{})
	community := hostedServer(t, map[string][]string{})
	svc := testService(t, vendor, community, nil)
	svc.SetManifestDir(base)
	ctx := context.Background()

	if !svc.LocalPackageExists(ctx, "file:Local") {
		t.Error("existing local package not found")
	}
	if svc.LocalPackageExists(ctx, "file:../Missing") {
		t.Error("missing local package reported as existing")
	}
	// Malformed references report false, not an error.
	if svc.LocalPackageExists(ctx, "file:") {
		t.Error("empty path reported as existing")
	}
}
