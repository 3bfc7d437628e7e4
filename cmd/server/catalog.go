// internal/catalog/catalog.go - Release catalog loading and validation.
//
// This file loads the release manifest once at startup, validates every entry
// and exposes the resulting releases as a read-only collection.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// ManifestFormat selects the decoder used for a manifest source.
type ManifestFormat string

const (
	ManifestFormatJSON ManifestFormat = "json"
	ManifestFormatYAML ManifestFormat = "yaml"
)

// artifactIDPattern limits artifact ids to a single safe path element.
var artifactIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Catalog is the immutable set of releases served by this process.
// It is safe for concurrent use because nothing mutates it after construction.
type Catalog struct {
	source     string
	releases   []*Release
	byArtifact map[string]*Release
}

// LoadCatalog reads and parses the manifest at path. The format is picked from the file extension.
func LoadCatalog(path string) (*Catalog, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, unreadable(path, err)
	}
	defer file.Close()

	return ParseCatalog(file, FormatForPath(path), path)
}

// FormatForPath returns YAML for .yaml/.yml files and JSON otherwise.
func FormatForPath(path string) ManifestFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ManifestFormatYAML
	default:
		return ManifestFormatJSON
	}
}

// ParseCatalog decodes an ordered list of release descriptors from r.
// source is only used to label errors.
func ParseCatalog(r io.Reader, format ManifestFormat, source string) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, unreadable(source, err)
	}

	descriptors, err := decodeDescriptors(data, format)
	if err != nil {
		return nil, malformed(source, -1, "", err)
	}

	return buildCatalog(source, descriptors)
}

// decodeDescriptors decodes the raw manifest, rejecting unknown fields and trailing documents.
func decodeDescriptors(data []byte, format ManifestFormat) ([]ReleaseDescriptor, error) {
	var descriptors []ReleaseDescriptor

	switch format {
	case ManifestFormatJSON:
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&descriptors); err != nil {
			return nil, fmt.Errorf("failed to decode manifest: %w", err)
		}
		if decoder.More() {
			return nil, errors.New("manifest must contain a single JSON array")
		}
	case ManifestFormatYAML:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&descriptors); err != nil {
			return nil, fmt.Errorf("failed to decode manifest: %w", err)
		}
		var extra any
		if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
			return nil, errors.New("manifest must contain a single YAML document")
		}
	default:
		return nil, fmt.Errorf("unsupported manifest format: %q", format)
	}

	if descriptors == nil {
		return nil, errors.New("manifest must be a list of releases")
	}
	return descriptors, nil
}

// buildCatalog validates descriptors in order and builds the catalog.
func buildCatalog(source string, descriptors []ReleaseDescriptor) (*Catalog, error) {
	catalog := &Catalog{
		source:     source,
		releases:   make([]*Release, 0, len(descriptors)),
		byArtifact: make(map[string]*Release, len(descriptors)),
	}
	seenTargets := make(map[string]int, len(descriptors)) // precedence key -> entry index

	for i, d := range descriptors {
		release, err := parseDescriptor(source, i, d)
		if err != nil {
			return nil, err
		}

		key := precedenceKey(release.targetVersion)
		if first, exists := seenTargets[key]; exists {
			return nil, malformed(source, i, "version",
				fmt.Errorf("target version %s already claimed by entry %d", release.targetVersion, first))
		}
		seenTargets[key] = i

		catalog.releases = append(catalog.releases, release)
		if _, exists := catalog.byArtifact[release.artifactID]; !exists {
			catalog.byArtifact[release.artifactID] = release
		}
	}
	return catalog, nil
}

// parseDescriptor turns one manifest entry into a typed release.
func parseDescriptor(source string, index int, d ReleaseDescriptor) (*Release, error) {
	version, err := requireField(d.Version, "version")
	if err != nil {
		return nil, malformed(source, index, "version", err)
	}
	target, err := semver.StrictNewVersion(version)
	if err != nil {
		return nil, malformed(source, index, "version", err)
	}

	hardware, err := parseConstraint(d.Hardware, "hardware")
	if err != nil {
		return nil, malformed(source, index, "hardware", err)
	}
	firmware, err := parseConstraint(d.Requires, "requires")
	if err != nil {
		return nil, malformed(source, index, "requires", err)
	}

	file, err := requireField(d.File, "file")
	if err != nil {
		return nil, malformed(source, index, "file", err)
	}
	if err := ValidateArtifactID(file); err != nil {
		return nil, malformed(source, index, "file", err)
	}

	return &Release{
		targetVersion:      target,
		hardwareConstraint: hardware,
		firmwareConstraint: firmware,
		artifactID:         file,
	}, nil
}

func requireField(value *string, name string) (string, error) {
	if value == nil {
		return "", fmt.Errorf("missing field %q", name)
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return "", fmt.Errorf("field %q must not be empty", name)
	}
	return trimmed, nil
}

func parseConstraint(value *string, name string) (*semver.Constraints, error) {
	expr, err := requireField(value, name)
	if err != nil {
		return nil, err
	}
	constraint, err := semver.NewConstraint(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid range %q: %w", expr, err)
	}
	return constraint, nil
}

// ValidateArtifactID rejects ids that could escape the binaries directory or name more than one file.
func ValidateArtifactID(id string) error {
	if !artifactIDPattern.MatchString(id) {
		return fmt.Errorf("artifact id %q contains unsupported characters", id)
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("artifact id %q must not contain '..'", id)
	}
	return nil
}

// precedenceKey identifies a version by precedence, ignoring build metadata.
func precedenceKey(v *semver.Version) string {
	key := fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
	if pre := v.Prerelease(); pre != "" {
		key += "-" + pre
	}
	return key
}

// Releases returns the releases in manifest order. The slice is a copy.
func (c *Catalog) Releases() []*Release {
	releases := make([]*Release, len(c.releases))
	copy(releases, c.releases)
	return releases
}

// Len returns the number of releases in the catalog.
func (c *Catalog) Len() int {
	return len(c.releases)
}

// Source returns the manifest the catalog was loaded from.
func (c *Catalog) Source() string {
	return c.source
}

// ReleaseByArtifact returns the first release referencing the artifact id.
func (c *Catalog) ReleaseByArtifact(id string) (*Release, bool) {
	release, ok := c.byArtifact[id]
	return release, ok
}

// ArtifactIDs returns the distinct artifact ids in manifest order.
func (c *Catalog) ArtifactIDs() []string {
	ids := make([]string, 0, len(c.byArtifact))
	seen := make(map[string]struct{}, len(c.byArtifact))
	for _, r := range c.releases {
		if _, ok := seen[r.artifactID]; ok {
			continue
		}
		seen[r.artifactID] = struct{}{}
		ids = append(ids, r.artifactID)
	}
	return ids
}
