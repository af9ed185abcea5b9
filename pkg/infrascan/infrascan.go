// Package infrascan discovers infrastructure-as-code declarations (Docker,
// Kubernetes manifests, and so on) in a repository tree. It is the default
// implementation of the infrastructure half of the Scanner collaborator
// (spec.md §6); additional scanners register into the same Registry.
package infrascan

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/greg-hellings/devdashboard/pkg/scanner"
)

// FileScanner inspects one candidate file and returns the infrastructure
// components it declares. Implementations must not error on malformed input;
// a scanner that cannot parse a file returns an empty slice.
type FileScanner interface {
	// Patterns are shell globs (fnmatch-style) matched against the file's
	// base name to decide whether ScannersForFile offers it the file.
	Patterns() []string
	Scan(path string, content []byte) ([]scanner.InfrastructureComponent, error)
}

// Registry dispatches a file to every scanner whose pattern matches it
// (mirrors the original source's InfrastructureScannerRegistry).
type Registry struct {
	scanners map[string]FileScanner
}

// NewRegistry creates a Registry pre-populated with the Docker and
// Kubernetes scanners SPEC_FULL.md commits to.
func NewRegistry() *Registry {
	r := &Registry{scanners: make(map[string]FileScanner)}
	r.Register("docker", NewDockerScanner())
	r.Register("kubernetes", NewKubernetesScanner())
	return r
}

// Register adds or replaces a named scanner.
func (r *Registry) Register(name string, s FileScanner) {
	r.scanners[name] = s
}

// ScannersForFile returns every registered scanner that can handle path.
func (r *Registry) ScannersForFile(path string) []FileScanner {
	base := filepath.Base(path)
	var matched []FileScanner
	for _, s := range r.scanners {
		for _, pattern := range s.Patterns() {
			if ok, _ := filepath.Match(pattern, base); ok {
				matched = append(matched, s)
				break
			}
		}
	}
	return matched
}

// ScanFile runs every applicable registered scanner against one file's
// content and concatenates their findings.
func (r *Registry) ScanFile(path string, content []byte) ([]scanner.InfrastructureComponent, error) {
	var all []scanner.InfrastructureComponent
	for _, s := range r.ScannersForFile(path) {
		found, err := s.Scan(path, content)
		if err != nil {
			continue
		}
		all = append(all, found...)
	}
	return all, nil
}

// --- Docker ---

// DockerScanner recognizes Dockerfiles and docker-compose manifests.
type DockerScanner struct{}

func NewDockerScanner() *DockerScanner { return &DockerScanner{} }

func (d *DockerScanner) Patterns() []string {
	return []string{"Dockerfile", "Dockerfile.*", "docker-compose.yml", "docker-compose.yaml"}
}

var (
	dockerFromRe    = regexp.MustCompile(`(?i)^FROM\s+(\S+)(?:\s+AS\s+(\S+))?`)
	dockerExposeRe  = regexp.MustCompile(`(?i)^EXPOSE\s+(.+)`)
	dockerWorkdirRe = regexp.MustCompile(`(?i)^WORKDIR\s+(.+)`)
	dockerUserRe    = regexp.MustCompile(`(?i)^USER\s+(.+)`)
)

func (d *DockerScanner) Scan(path string, content []byte) ([]scanner.InfrastructureComponent, error) {
	base := filepath.Base(path)
	if base == "Dockerfile" || strings.HasPrefix(base, "Dockerfile.") {
		return d.scanDockerfile(path, content), nil
	}
	return d.scanCompose(path, content)
}

func (d *DockerScanner) scanDockerfile(path string, content []byte) []scanner.InfrastructureComponent {
	config := make(map[string]string)
	var baseImages []string
	var exposedPorts []string

	lines := strings.Split(string(content), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if m := dockerFromRe.FindStringSubmatch(line); m != nil {
			baseImages = append(baseImages, m[1])
			continue
		}
		if m := dockerExposeRe.FindStringSubmatch(line); m != nil {
			exposedPorts = append(exposedPorts, strings.Fields(m[1])...)
			continue
		}
		if m := dockerWorkdirRe.FindStringSubmatch(line); m != nil {
			config["workdir"] = strings.TrimSpace(m[1])
			continue
		}
		if m := dockerUserRe.FindStringSubmatch(line); m != nil {
			config["user"] = strings.TrimSpace(m[1])
			continue
		}
	}

	if len(baseImages) == 0 {
		return nil
	}
	config["base_images"] = strings.Join(baseImages, ",")
	if len(exposedPorts) > 0 {
		config["exposed_ports"] = strings.Join(exposedPorts, ",")
	}

	return []scanner.InfrastructureComponent{{
		Kind:          "container",
		Name:          "dockerfile",
		Service:       "docker",
		Subtype:       "dockerfile",
		Configuration: config,
		SourceFile:    path,
	}}
}

type composeDoc struct {
	Version  string                 `yaml:"version"`
	Services map[string]any         `yaml:"services"`
	Volumes  map[string]any         `yaml:"volumes"`
	Networks map[string]any         `yaml:"networks"`
}

func (d *DockerScanner) scanCompose(path string, content []byte) ([]scanner.InfrastructureComponent, error) {
	var doc composeDoc
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, nil
	}

	components := []scanner.InfrastructureComponent{{
		Kind:    "container",
		Name:    "docker-compose",
		Service: "docker",
		Subtype: "docker-compose",
		Configuration: map[string]string{
			"version":       doc.Version,
			"services_count": strconv.Itoa(len(doc.Services)),
		},
		SourceFile: path,
	}}

	for name := range doc.Services {
		components = append(components, scanner.InfrastructureComponent{
			Kind:       "container",
			Name:       name,
			Service:    "docker",
			Subtype:    "service",
			SourceFile: path,
		})
	}

	return components, nil
}

// --- Kubernetes ---

// KubernetesScanner recognizes multi-document Kubernetes YAML manifests.
type KubernetesScanner struct{}

func NewKubernetesScanner() *KubernetesScanner { return &KubernetesScanner{} }

func (k *KubernetesScanner) Patterns() []string {
	return []string{"*.yaml", "*.yml"}
}

type k8sDoc struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
	Metadata   struct {
		Name      string `yaml:"name"`
		Namespace string `yaml:"namespace"`
	} `yaml:"metadata"`
}

func (k *KubernetesScanner) Scan(path string, content []byte) ([]scanner.InfrastructureComponent, error) {
	var components []scanner.InfrastructureComponent

	dec := yaml.NewDecoder(bytes.NewReader(content))
	for {
		var doc k8sDoc
		if err := dec.Decode(&doc); err != nil {
			break
		}
		if doc.APIVersion == "" || doc.Kind == "" {
			continue
		}

		name := doc.Metadata.Name
		if name == "" {
			name = fmt.Sprintf("unnamed-%s", strings.ToLower(doc.Kind))
		}

		components = append(components, scanner.InfrastructureComponent{
			Kind:       "container",
			Name:       name,
			Service:    "kubernetes",
			Subtype:    doc.Kind,
			SourceFile: path,
			Configuration: map[string]string{
				"api_version": doc.APIVersion,
				"namespace":   doc.Metadata.Namespace,
			},
		})
	}

	return components, nil
}
