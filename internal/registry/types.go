// Package registry aggregates package metadata from the sources a UPM
// manifest can reference: the Unity and OpenUPM hosted registries, locally
// installed editor distributions, git-hosted packages, and local filesystem
// packages. The Service façade composes the five clients behind one set of
// precedence rules and owns all shared caches.
package registry

import "encoding/json"

// PackageInfo is the metadata of one package version. Name and Version are
// always present on a valid instance; producers drop records missing either.
type PackageInfo struct {
	Name             string            `json:"name"`
	Version          string            `json:"version"`
	DisplayName      string            `json:"displayName,omitempty"`
	Description      string            `json:"description,omitempty"`
	Unity            string            `json:"unity,omitempty"`
	UnityRelease     string            `json:"unityRelease,omitempty"`
	Dependencies     map[string]string `json:"dependencies,omitempty"`
	Keywords         []string          `json:"keywords,omitempty"`
	Author           *Author           `json:"author,omitempty"`
	DocumentationURL string            `json:"documentationUrl,omitempty"`
	ChangelogURL     string            `json:"changelogUrl,omitempty"`
	LicensesURL      string            `json:"licensesUrl,omitempty"`
}

// Valid reports whether the record carries the two required fields.
func (p *PackageInfo) Valid() bool {
	return p != nil && p.Name != "" && p.Version != ""
}

// Author tolerates both the object form and the bare-string shorthand that
// package manifests use in the wild.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	URL   string `json:"url,omitempty"`
}

func (a *Author) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		a.Name = s
		return nil
	}
	type plain Author
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = Author(p)
	return nil
}

// ScopedRegistryInfo mirrors one entry of the manifest's scopedRegistries
// array. Entries are not required to be unique.
type ScopedRegistryInfo struct {
	Name   string   `json:"name"`
	URL    string   `json:"url"`
	Scopes []string `json:"scopes"`
}

// RepoInfo is the ref inventory of a git-hosted package repository.
type RepoInfo struct {
	Owner      string
	Repo       string
	Tags       []string
	Branches   []string
	DefaultRef string
}
