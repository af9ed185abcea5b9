// Package categorize evaluates a repository's scan findings against a
// policy catalog loaded from YAML, producing the any-in-group boolean views
// the ScanResult embeds (§6 Categorizer collaborator).
package categorize

import (
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/greg-hellings/devdashboard/pkg/scanner"
)

// DefaultConfigPath is used when CONFIG_PATH is unset.
const DefaultConfigPath = "configs/categories.yaml"

// Category is one named policy bucket: a dependency, API call, or
// infrastructure finding belongs to it when it matches one of the glob
// patterns below.
type Category struct {
	Status         string   `yaml:"status"`
	PackagePatterns []string `yaml:"package_patterns"`
	APIPatterns     []string `yaml:"api_patterns"`
	InfraPatterns   []string `yaml:"infra_patterns"`
}

// Catalog is the parsed categories.yaml document.
type Catalog struct {
	Categories map[string]Category `yaml:"categories"`
}

// ResolveConfigPath returns the CONFIG_PATH environment variable's value, or
// DefaultConfigPath if unset (§6 "resolved from CONFIG_PATH env or a
// default").
func ResolveConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultConfigPath
}

// LoadCatalog reads and parses a categories YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("categorize: read catalog %s: %w", path, err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("categorize: parse catalog %s: %w", path, err)
	}
	if catalog.Categories == nil {
		catalog.Categories = make(map[string]Category)
	}
	return &catalog, nil
}

// Categorizer evaluates findings against a loaded Catalog.
type Categorizer struct {
	catalog *Catalog
}

// New wraps a loaded Catalog for evaluation.
func New(catalog *Catalog) *Categorizer {
	if catalog == nil {
		catalog = &Catalog{Categories: make(map[string]Category)}
	}
	return &Categorizer{catalog: catalog}
}

// Categories returns the full set of configured category names, even ones
// with no matching dependency in a given repository (mirrors the source's
// "category without dependencies is preserved" guarantee).
func (c *Categorizer) Categories() []string {
	names := make([]string, 0, len(c.catalog.Categories))
	for name := range c.catalog.Categories {
		names = append(names, name)
	}
	return names
}

func matchAny(patterns []string, candidate string) bool {
	for _, pattern := range patterns {
		if ok, _ := path.Match(pattern, candidate); ok {
			return true
		}
		if strings.EqualFold(pattern, candidate) {
			return true
		}
	}
	return false
}

// CategorizeDependencies returns, for every configured category, whether at
// least one dependency's name matched one of its package patterns.
func (c *Categorizer) CategorizeDependencies(deps []scanner.Dependency) map[string]bool {
	result := make(map[string]bool, len(c.catalog.Categories))
	for name, cat := range c.catalog.Categories {
		matched := false
		for _, dep := range deps {
			if matchAny(cat.PackagePatterns, dep.Name) {
				matched = true
				break
			}
		}
		result[name] = matched
	}
	return result
}

// CategorizeInfrastructure returns, for every configured category, whether
// at least one infrastructure component's service or name matched one of
// its infra patterns.
func (c *Categorizer) CategorizeInfrastructure(components []scanner.InfrastructureComponent) map[string]bool {
	result := make(map[string]bool, len(c.catalog.Categories))
	for name, cat := range c.catalog.Categories {
		matched := false
		for _, comp := range components {
			if matchAny(cat.InfraPatterns, comp.Service) || matchAny(cat.InfraPatterns, comp.Name) {
				matched = true
				break
			}
		}
		result[name] = matched
	}
	return result
}

// CategorizeAPICalls groups API call sites by every category whose pattern
// matches the call's URL, for the "categorized_api_calls" projection.
func (c *Categorizer) CategorizeAPICalls(calls []scanner.ApiCall) map[string][]scanner.ApiCall {
	result := make(map[string][]scanner.ApiCall)
	for name, cat := range c.catalog.Categories {
		for _, call := range calls {
			if matchAny(cat.APIPatterns, call.URL) {
				result[name] = append(result[name], call)
			}
		}
	}
	return result
}
