// Package manifest declares where each raw source lives and how it is read.
package manifest

import (
	_ "embed"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/referral-os/directory/internal/model"
	"github.com/referral-os/directory/internal/normalize"
)

//go:embed manifest.yaml
var defaultManifest []byte

// Manifest lists the license datasets and listing files that make up the directory.
type Manifest struct {
	License LicenseSection `yaml:"license"`
	Listing ListingSection `yaml:"listing"`
}

// LicenseSection holds the license datasets and their type rules.
type LicenseSection struct {
	Categories map[string]model.Category `yaml:"categories"`
	Skip       []string                  `yaml:"skip"`
	Datasets   []Dataset                 `yaml:"datasets"`
}

// Dataset is one state registry export.
type Dataset struct {
	Name   string `yaml:"name"`
	Prefix string `yaml:"prefix"`
	State  string `yaml:"state"`
	Enrich bool   `yaml:"enrich"`
	Files  []File `yaml:"files"`
}

// File is a raw file path relative to the data directory, optionally with
// the remote URL it is fetched from. Paths may contain glob patterns.
type File struct {
	Path string `yaml:"path"`
	URL  string `yaml:"url,omitempty"`
}

// UnmarshalYAML accepts either a bare path or a {path, url} mapping.
func (f *File) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		f.Path = value.Value
		return nil
	}
	type plain File
	return value.Decode((*plain)(f))
}

// ListingSection holds the scraped listing files.
type ListingSection struct {
	State string        `yaml:"state"`
	Files []ListingFile `yaml:"files"`
}

// ListingFile is one scraper export and the category every row in it belongs to.
type ListingFile struct {
	Path     string         `yaml:"path"`
	URL      string         `yaml:"url,omitempty"`
	Category model.Category `yaml:"category"`
}

// Default returns the built-in manifest.
func Default() *Manifest {
	m, err := Parse(defaultManifest)
	if err != nil {
		panic(eris.Wrap(err, "manifest: embedded default is invalid"))
	}
	return m
}

// Load reads a manifest override from path, or returns the built-in one when path is empty.
func Load(path string) (*Manifest, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "manifest: read %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates a manifest document.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "manifest: parse")
	}
	if m.Listing.State == "" {
		m.Listing.State = "IL"
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

var stateCode = regexp.MustCompile(`^[A-Z]{2}$`)

// Validate checks dataset names, prefixes, states and categories.
func (m *Manifest) Validate() error {
	names := make(map[string]bool, len(m.License.Datasets))
	for i, ds := range m.License.Datasets {
		switch {
		case ds.Name == "":
			return eris.Errorf("manifest: license dataset %d has no name", i)
		case names[ds.Name]:
			return eris.Errorf("manifest: duplicate license dataset %q", ds.Name)
		case ds.Prefix == "":
			return eris.Errorf("manifest: license dataset %q has no prefix", ds.Name)
		case !stateCode.MatchString(ds.State):
			return eris.Errorf("manifest: license dataset %q has invalid state %q", ds.Name, ds.State)
		case len(ds.Files) == 0:
			return eris.Errorf("manifest: license dataset %q has no files", ds.Name)
		}
		for _, f := range ds.Files {
			if _, err := filepath.Match(f.Path, ""); err != nil {
				return eris.Wrapf(err, "manifest: dataset %q has a bad pattern %q", ds.Name, f.Path)
			}
		}
		names[ds.Name] = true
	}
	for raw, c := range m.License.Categories {
		if !c.Valid() {
			return eris.Errorf("manifest: type %q maps to unknown category %q", raw, c)
		}
	}
	for _, lf := range m.Listing.Files {
		if lf.Path == "" {
			return eris.New("manifest: listing file has no path")
		}
		if !lf.Category.Valid() {
			return eris.Errorf("manifest: listing file %q has unknown category %q", lf.Path, lf.Category)
		}
	}
	return nil
}

// Dataset returns the license dataset with the given name, or nil.
func (m *Manifest) Dataset(name string) *Dataset {
	for i := range m.License.Datasets {
		if m.License.Datasets[i].Name == name {
			return &m.License.Datasets[i]
		}
	}
	return nil
}

// Rules returns the built-in license type rules extended by this manifest.
func (m *Manifest) Rules() normalize.LicenseRules {
	return normalize.DefaultLicenseRules().Extend(m.License.Categories, m.License.Skip)
}

// Source returns the normalizer settings for a dataset.
func (m *Manifest) Source(ds *Dataset) normalize.LicenseSource {
	return normalize.LicenseSource{Prefix: ds.Prefix, DefaultState: ds.State, Rules: m.Rules()}
}

// ResolveFiles expands a dataset's file entries under dataDir in manifest
// order. Glob matches are sorted and a path matched twice is returned once.
// Literal paths are returned even if they do not exist yet.
func (ds *Dataset) ResolveFiles(dataDir string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, f := range ds.Files {
		full := filepath.Join(dataDir, f.Path)
		matches := []string{full}
		if hasMeta(f.Path) {
			var err error
			matches, err = filepath.Glob(full)
			if err != nil {
				return nil, eris.Wrapf(err, "manifest: expand %s", f.Path)
			}
			sort.Strings(matches)
		}
		for _, p := range matches {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func hasMeta(path string) bool {
	for _, c := range path {
		switch c {
		case '*', '?', '[', '\\':
			return true
		}
	}
	return false
}
