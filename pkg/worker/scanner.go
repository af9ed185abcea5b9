package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/greg-hellings/devdashboard/pkg/apiscan"
	"github.com/greg-hellings/devdashboard/pkg/dependencies"
	"github.com/greg-hellings/devdashboard/pkg/infrascan"
	"github.com/greg-hellings/devdashboard/pkg/scanner"
)

// maxScanFileSize skips anything larger than this during a local tree scan;
// a repository's vendored archives and media assets are neither dependency
// manifests nor plausible API-call sources.
const maxScanFileSize = 2 << 20 // 2 MiB

var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".zip": true, ".tar": true, ".gz": true, ".jar": true, ".so": true,
	".dll": true, ".exe": true, ".pdf": true, ".woff": true, ".woff2": true,
	".ttf": true, ".mp4": true, ".mp3": true,
}

// DefaultScanner walks a local repository tree and composes the apiscan and
// infrascan collaborators with a small set of built-in dependency-manifest
// parsers. It is the Scanner wired in by default; the Worker accepts any
// scanner.Scanner through Config, so a fuller one can be substituted without
// changing the Worker.
type DefaultScanner struct {
	api   *apiscan.Scanner
	infra *infrascan.Registry
}

// NewDefaultScanner builds a DefaultScanner.
func NewDefaultScanner() *DefaultScanner {
	return &DefaultScanner{api: apiscan.New(), infra: infrascan.NewRegistry()}
}

// ScanProject implements scanner.Scanner.
func (s *DefaultScanner) ScanProject(ctx context.Context, root string, progress scanner.ProgressCallback) (*scanner.Result, error) {
	files, err := listFiles(root)
	if err != nil {
		return nil, fmt.Errorf("%w: walk tree: %v", scanner.ErrScanner, err)
	}

	total := len(files)
	result := &scanner.Result{}

	for i, file := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rel, err := filepath.Rel(root, file)
		if err != nil {
			rel = file
		}

		if progress != nil {
			progress(scanner.ProgressEvent{Stage: "imports", StageTotal: total, StageIndex: i + 1, Path: rel})
		}

		info, err := os.Stat(file)
		if err != nil || info.Size() > maxScanFileSize || binaryExtensions[strings.ToLower(filepath.Ext(file))] {
			continue
		}

		content, err := os.ReadFile(file)
		if err != nil {
			continue
		}

		result.SourceFiles = append(result.SourceFiles, rel)

		if parser, ok := manifestParsers[filepath.Base(file)]; ok {
			if deps, err := parser(rel, content); err == nil {
				result.Dependencies = append(result.Dependencies, deps...)
			}
		}

		if calls := s.api.ScanFile(rel, content); len(calls) > 0 {
			result.ApiCalls = append(result.ApiCalls, calls...)
		}

		if infra, err := s.infra.ScanFile(rel, content); err == nil && len(infra) > 0 {
			result.Infrastructure = append(result.Infrastructure, infra...)
		}
	}

	return result, nil
}

func listFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		files = append(files, path)
		return nil
	})
	sort.Strings(files)
	return files, err
}

type manifestParser func(sourceFile string, content []byte) ([]scanner.Dependency, error)

var manifestParsers = map[string]manifestParser{
	"go.mod":           parseGoMod,
	"requirements.txt": parseRequirementsTxt,
	"package.json":     parsePackageJSON,
	"poetry.lock":      parsePoetryLockFile,
	"Pipfile.lock":     parsePipfileLockFile,
	"uv.lock":          parseUvLockFile,
}

// toScannerDependencies adapts pkg/dependencies.Dependency (the Analyzer
// collaborator's shape, designed around fetching file content through a
// repository.Client) into scanner.Dependency (this Scanner's local-tree-scan
// shape); both already carry the same name/version/classification fields
// spec.md's Dependency record requires.
func toScannerDependencies(sourceFile string, deps []dependencies.Dependency) []scanner.Dependency {
	out := make([]scanner.Dependency, 0, len(deps))
	for _, d := range deps {
		out = append(out, scanner.Dependency{
			Name:           d.Name,
			Version:        d.Version,
			SourceFile:     sourceFile,
			Classification: d.Type,
		})
	}
	return out
}

// parsePoetryLockFile reuses pkg/dependencies' Poetry lock-file parser
// rather than hand-rolling a second TOML lock-file reader.
func parsePoetryLockFile(sourceFile string, content []byte) ([]scanner.Dependency, error) {
	deps, err := dependencies.NewPoetryAnalyzer().ParsePoetryLock(string(content))
	if err != nil {
		return nil, err
	}
	return toScannerDependencies(sourceFile, deps), nil
}

// parsePipfileLockFile reuses pkg/dependencies' Pipfile.lock parser.
func parsePipfileLockFile(sourceFile string, content []byte) ([]scanner.Dependency, error) {
	deps, err := dependencies.NewPipfileAnalyzer().ParsePipfileLock(string(content))
	if err != nil {
		return nil, err
	}
	return toScannerDependencies(sourceFile, deps), nil
}

// parseUvLockFile reuses pkg/dependencies' uv.lock parser.
func parseUvLockFile(sourceFile string, content []byte) ([]scanner.Dependency, error) {
	deps, err := dependencies.NewUvLockAnalyzer().ParseUvLock(string(content))
	if err != nil {
		return nil, err
	}
	return toScannerDependencies(sourceFile, deps), nil
}

var goModRequireLineRe = regexp.MustCompile(`^\s*([^\s]+)\s+(v[0-9][^\s]*)`)

func parseGoMod(sourceFile string, content []byte) ([]scanner.Dependency, error) {
	var deps []scanner.Dependency
	inBlock := false
	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "require ("):
			inBlock = true
			continue
		case inBlock && trimmed == ")":
			inBlock = false
			continue
		}

		candidate := trimmed
		if strings.HasPrefix(candidate, "require ") {
			candidate = strings.TrimPrefix(candidate, "require ")
		} else if !inBlock {
			continue
		}

		if m := goModRequireLineRe.FindStringSubmatch(candidate); m != nil {
			deps = append(deps, scanner.Dependency{Name: m[1], Version: m[2], SourceFile: sourceFile})
		}
	}
	return deps, nil
}

var requirementLineRe = regexp.MustCompile(`^([A-Za-z0-9_.\-]+)\s*(==|>=|<=|~=|!=)?\s*([A-Za-z0-9.\-]*)`)

func parseRequirementsTxt(sourceFile string, content []byte) ([]scanner.Dependency, error) {
	var deps []scanner.Dependency
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		if m := requirementLineRe.FindStringSubmatch(line); m != nil {
			deps = append(deps, scanner.Dependency{Name: m[1], Version: m[3], SourceFile: sourceFile})
		}
	}
	return deps, nil
}

type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func parsePackageJSON(sourceFile string, content []byte) ([]scanner.Dependency, error) {
	var pkg packageJSON
	if err := json.Unmarshal(content, &pkg); err != nil {
		return nil, fmt.Errorf("parse package.json: %w", err)
	}

	deps := make([]scanner.Dependency, 0, len(pkg.Dependencies)+len(pkg.DevDependencies))
	for name, version := range pkg.Dependencies {
		deps = append(deps, scanner.Dependency{Name: name, Version: version, SourceFile: sourceFile, Classification: "runtime"})
	}
	for name, version := range pkg.DevDependencies {
		deps = append(deps, scanner.Dependency{Name: name, Version: version, SourceFile: sourceFile, Classification: "dev"})
	}
	return deps, nil
}
