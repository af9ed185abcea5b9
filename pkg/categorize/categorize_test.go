package categorize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/greg-hellings/devdashboard/pkg/scanner"
)

func TestCategoryWithoutMatchesIsPreserved(t *testing.T) {
	catalog := &Catalog{Categories: map[string]Category{
		"OnlyAPI": {Status: "allowed", APIPatterns: []string{"https://example.com/*"}},
	}}
	c := New(catalog)

	result := c.CategorizeDependencies(nil)
	matched, ok := result["OnlyAPI"]
	if !ok {
		t.Fatalf("expected category to be present even with no matching dependency")
	}
	if matched {
		t.Fatalf("expected no match, got true")
	}
}

func TestCategorizeDependenciesMatchesGlobPattern(t *testing.T) {
	catalog := &Catalog{Categories: map[string]Category{
		"Logging": {PackagePatterns: []string{"log*"}},
	}}
	c := New(catalog)

	result := c.CategorizeDependencies([]scanner.Dependency{{Name: "logrus"}})
	if !result["Logging"] {
		t.Fatalf("expected logrus to match log* pattern")
	}
}

func TestCategorizeInfrastructureMatchesServiceOrName(t *testing.T) {
	catalog := &Catalog{Categories: map[string]Category{
		"Containers": {InfraPatterns: []string{"docker"}},
	}}
	c := New(catalog)

	result := c.CategorizeInfrastructure([]scanner.InfrastructureComponent{{Service: "docker", Name: "web"}})
	if !result["Containers"] {
		t.Fatalf("expected docker service to match")
	}
}

func TestCategorizeAPICallsGroupsByCategory(t *testing.T) {
	catalog := &Catalog{Categories: map[string]Category{
		"Analytics": {APIPatterns: []string{"https://analytics.example.com/*"}},
	}}
	c := New(catalog)

	calls := []scanner.ApiCall{
		{URL: "https://analytics.example.com/track", Method: "POST"},
		{URL: "https://unrelated.example.com/ping", Method: "GET"},
	}
	result := c.CategorizeAPICalls(calls)
	if len(result["Analytics"]) != 1 {
		t.Fatalf("expected 1 matching call, got %d", len(result["Analytics"]))
	}
}

func TestResolveConfigPathUsesEnvOverride(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/custom/categories.yaml")
	if got := ResolveConfigPath(); got != "/custom/categories.yaml" {
		t.Fatalf("expected env override, got %q", got)
	}
}

func TestResolveConfigPathDefaultsWhenUnset(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	if got := ResolveConfigPath(); got != DefaultConfigPath {
		t.Fatalf("expected default path, got %q", got)
	}
}

func TestLoadCatalogParsesYAML(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "categories.yaml")
	contents := []byte("categories:\n  Web:\n    status: allowed\n    package_patterns:\n      - \"flask*\"\n")
	if err := os.WriteFile(p, contents, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	catalog, err := LoadCatalog(p)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	web, ok := catalog.Categories["Web"]
	if !ok || web.Status != "allowed" || len(web.PackagePatterns) != 1 {
		t.Fatalf("unexpected catalog: %+v", catalog)
	}
}
