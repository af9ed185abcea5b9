// Package apiscan discovers REST API call sites in source files by regex,
// the same fallback strategy the original source uses when an AST parse
// fails ("fall back to regex-based extraction for files with syntax
// errors"). It is the default implementation of the API-call half of the
// Scanner collaborator (spec.md §6).
package apiscan

import (
	"regexp"
	"strings"

	"github.com/greg-hellings/devdashboard/pkg/scanner"
)

// httpMethodCallPattern matches calls of the shape `<client>.<method>(<url>)`
// across the common HTTP client libraries in Python, JS/TS, Go, and Java:
// requests.get(...), axios.post(...), http.Get(...), client.Get(...).
var httpMethodCallPattern = regexp.MustCompile(
	`(?i)\b(?:requests|httpx|axios|fetch|http|client)\s*\.\s*(get|post|put|delete|patch|head|options)\s*\(\s*["'` + "`" + `]([^"'` + "`" + `]+)["'` + "`" + `]`,
)

// bareURLPattern catches a URL literal with no recognizable calling
// convention, classified with method UNKNOWN.
var bareURLPattern = regexp.MustCompile(`https?://[^\s"'` + "`" + `)]+`)

var authHintPattern = regexp.MustCompile(`(?i)(bearer|authorization|api[_-]?key|oauth|basic auth)`)

// Scanner finds API call sites via regex over raw file content.
type Scanner struct{}

// New creates an apiscan Scanner.
func New() *Scanner { return &Scanner{} }

// ScanFile returns every API call site found in one file's content.
func (s *Scanner) ScanFile(path string, content []byte) []scanner.ApiCall {
	var calls []scanner.ApiCall
	seen := make(map[string]bool)

	lines := strings.Split(string(content), "\n")
	for lineNo, line := range lines {
		if m := httpMethodCallPattern.FindStringSubmatch(line); m != nil {
			url := m[2]
			key := url + "|" + strings.ToUpper(m[1])
			if seen[key] {
				continue
			}
			seen[key] = true
			calls = append(calls, scanner.ApiCall{
				URL:        url,
				Method:     strings.ToUpper(m[1]),
				AuthType:   authType(line),
				SourceFile: path,
				Line:       lineNo + 1,
			})
			continue
		}

		if m := bareURLPattern.FindString(line); m != "" {
			key := m + "|UNKNOWN"
			if seen[key] {
				continue
			}
			seen[key] = true
			calls = append(calls, scanner.ApiCall{
				URL:        m,
				Method:     "UNKNOWN",
				AuthType:   authType(line),
				SourceFile: path,
				Line:       lineNo + 1,
			})
		}
	}

	return calls
}

func authType(line string) string {
	if authHintPattern.MatchString(line) {
		return "bearer"
	}
	return ""
}
