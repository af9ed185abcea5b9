// Package acquirer resolves a validated Git URL into a local directory tree:
// it rewrites the URL to a ZIP archive download, streams the download and
// extraction with byte/file-count progress callbacks, guards against
// path-traversal in the archive, and consults a Cache before doing any of
// that work (spec.md §4.A).
package acquirer

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/greg-hellings/devdashboard/pkg/cache"
)

// ErrInvalidURL and ErrAcquisition mirror scanner.ErrInvalidURL/ErrAcquisition
// without importing pkg/scanner, keeping this package's dependency graph a
// leaf; the Worker wraps these into the shared taxonomy.
var (
	ErrInvalidURL   = errors.New("acquirer: url could not be rewritten to an archive url")
	ErrAcquisition  = errors.New("acquirer: download or extraction failed")
	ErrEmptyTree    = errors.New("acquirer: extracted tree contains no regular files")
)

// DownloadProgressFunc reports cumulative bytes downloaded so far.
type DownloadProgressFunc func(cumulativeBytes int64)

// ExtractProgressFunc reports extraction progress as (entries materialized, total entries).
type ExtractProgressFunc func(index, total int)

// Config controls download behavior.
type Config struct {
	// HTTPClient is used for the archive GET; defaults to a client with
	// Timeout if nil.
	HTTPClient *http.Client
	// Timeout bounds the whole download when HTTPClient is nil.
	Timeout time.Duration
	// DestRoot is the parent directory under which extraction directories
	// are created; defaults to os.TempDir() if empty.
	DestRoot string
	// Cache, if set, is consulted before acquiring and populated after.
	Cache *cache.Cache
	// CacheTTL and tracking of cache-resident paths is the Cache's own
	// concern; the Acquirer only needs to know whether a path it returns is
	// cache-owned, to decide whether Cleanup should remove it.
}

// Acquirer downloads and extracts repository archives.
type Acquirer struct {
	config Config
}

// New creates an Acquirer with the given configuration.
func New(config Config) *Acquirer {
	if config.Timeout == 0 {
		config.Timeout = 2 * time.Minute
	}
	if config.DestRoot == "" {
		config.DestRoot = os.TempDir()
	}
	return &Acquirer{config: config}
}

var (
	githubRe  = regexp.MustCompile(`^https?://github\.com/([^/]+)/([^/]+?)(?:\.git)?/?$`)
	gitlabRe  = regexp.MustCompile(`^https?://gitlab\.com/([^/]+)/([^/]+?)(?:\.git)?/?$`)
	genericRe = regexp.MustCompile(`^(https?)://([^/]+)/([^/]+)/([^/]+?)(?:\.git)?/?$`)
)

// ToArchiveURL rewrites a Git URL to the ZIP archive download URL per the
// host-specific rules in §4.A. Idempotent: re-applying it to its own output
// returns the same string, since the output no longer matches any rewrite
// pattern (it already ends in .zip).
func ToArchiveURL(gitURL string) (string, error) {
	if strings.HasSuffix(gitURL, ".zip") {
		return gitURL, nil
	}

	if m := githubRe.FindStringSubmatch(gitURL); m != nil {
		return fmt.Sprintf("https://github.com/%s/%s/archive/refs/heads/main.zip", m[1], m[2]), nil
	}
	if m := gitlabRe.FindStringSubmatch(gitURL); m != nil {
		return fmt.Sprintf("https://gitlab.com/%s/%s/-/archive/main/%s-main.zip", m[1], m[2], m[2]), nil
	}
	if m := genericRe.FindStringSubmatch(gitURL); m != nil {
		return fmt.Sprintf("%s://%s/%s/%s/archive/main.zip", m[1], m[2], m[3], m[4]), nil
	}

	return "", fmt.Errorf("%w: %s", ErrInvalidURL, gitURL)
}

// Acquire resolves url to a local directory, consulting the cache first. On
// a cache miss it downloads and extracts, reporting progress via the two
// callbacks, then inserts the result into the cache.
func (a *Acquirer) Acquire(ctx context.Context, url string, onDownloadBytes DownloadProgressFunc, onExtracted ExtractProgressFunc) (path string, cacheHit bool, err error) {
	if a.config.Cache != nil {
		if cached, ok := a.config.Cache.Get(url); ok {
			return cached, true, nil
		}
	}

	archiveURL, err := ToArchiveURL(url)
	if err != nil {
		return "", false, err
	}

	destDir, err := os.MkdirTemp(a.config.DestRoot, "repo-*")
	if err != nil {
		return "", false, fmt.Errorf("%w: create destination dir: %v", ErrAcquisition, err)
	}

	archive, err := a.download(ctx, archiveURL, onDownloadBytes)
	if err != nil {
		os.RemoveAll(destDir)
		return "", false, err
	}

	if err := extractZip(archive, destDir, onExtracted); err != nil {
		os.RemoveAll(destDir)
		return "", false, fmt.Errorf("%w: %v", ErrAcquisition, err)
	}

	if a.config.Cache != nil {
		a.config.Cache.Put(url, destDir)
	}

	return destDir, false, nil
}

// download performs the streaming HTTP GET, emitting cumulative byte counts
// after each chunk read (typical chunk size 8 KiB, per §4.A).
func (a *Acquirer) download(ctx context.Context, archiveURL string, onBytes DownloadProgressFunc) ([]byte, error) {
	client := a.config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: a.config.Timeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archiveURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrAcquisition, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAcquisition, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status %s downloading %s", ErrAcquisition, resp.Status, archiveURL)
	}

	var buf bytes.Buffer
	chunk := make([]byte, 8192)
	var cumulative int64
	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			cumulative += int64(n)
			if onBytes != nil {
				onBytes(cumulative)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("%w: reading body after %s: %v", ErrAcquisition, humanize.Bytes(uint64(cumulative)), readErr)
		}
	}

	return buf.Bytes(), nil
}

// extractZip extracts archiveData into destDir, counting entries once for
// the progress total and then emitting onExtracted after each one
// materializes. Entries resolving outside destDir are refused.
func extractZip(archiveData []byte, destDir string, onExtracted ExtractProgressFunc) error {
	reader, err := zip.NewReader(bytes.NewReader(archiveData), int64(len(archiveData)))
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}

	total := len(reader.File)
	for i, f := range reader.File {
		if err := extractOne(f, destDir); err != nil {
			return err
		}
		if onExtracted != nil {
			onExtracted(i+1, total)
		}
	}
	return nil
}

func extractOne(f *zip.File, destDir string) error {
	target := filepath.Join(destDir, f.Name)

	cleanDest := filepath.Clean(destDir) + string(os.PathSeparator)
	cleanTarget := filepath.Clean(target)
	if !strings.HasPrefix(cleanTarget+string(os.PathSeparator), cleanDest) && cleanTarget != filepath.Clean(destDir) {
		return fmt.Errorf("refusing to extract entry outside destination: %s", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}
	return nil
}

// Cleanup removes path. Callers must not invoke it for a path Acquire
// returned with cacheHit == true: the Cache owns that tree and removes it
// on eviction (§4.A "remove the directory if it was not cache-resident").
func (a *Acquirer) Cleanup(path string) error {
	return os.RemoveAll(path)
}

// ValidateTree returns true iff dir contains at least one regular file,
// searched recursively (§4.A ValidateTree).
func ValidateTree(dir string) (bool, error) {
	found := false
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil && !errors.Is(err, filepath.SkipAll) {
		return false, err
	}
	return found, nil
}
