// Package urlvalidate rejects Git URLs that are syntactically malformed or
// that target network locations a server-side fetch should never reach
// (loopback, link-local, RFC1918, and cloud metadata endpoints).
package urlvalidate

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

var shellMetacharacters = regexp.MustCompile(`[;&|$` + "`" + `<>(){}]`)

var scpLikeRe = regexp.MustCompile(`^[\w.-]+@[\w.-]+:[\w./-]+(\.git)?$`)

var blockedHostnames = map[string]bool{
	"metadata.google.internal": true,
	"metadata.azure.com":       true,
	"169.254.169.254":          true,
	"::1":                      true,
}

// Validate checks a submitted Git URL against the accepted shapes:
// https://{host}/{owner}/{repo}[.git][/] and git@host:owner/repo.git.
// Returns a descriptive error on any rejection.
func Validate(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return fmt.Errorf("empty git url")
	}

	if shellMetacharacters.MatchString(rawURL) {
		return fmt.Errorf("git url contains disallowed characters: %s", rawURL)
	}

	if scpLikeRe.MatchString(rawURL) {
		host := rawURL[strings.Index(rawURL, "@")+1 : strings.Index(rawURL, ":")]
		return validateHost(host)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed git url: %w", err)
	}

	switch parsed.Scheme {
	case "https", "http":
	default:
		return fmt.Errorf("unsupported url scheme %q (only https/http and git@host:owner/repo.git are accepted)", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("git url is missing a host")
	}

	if parsed.Port() != "" {
		switch parsed.Port() {
		case "80", "443":
		default:
			return fmt.Errorf("non-standard port %s is not allowed", parsed.Port())
		}
	}

	trimmedPath := strings.Trim(parsed.Path, "/")
	trimmedPath = strings.TrimSuffix(trimmedPath, ".git")
	if parts := strings.Split(trimmedPath, "/"); len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("git url must name an owner and repository: %s", rawURL)
	}

	return validateHost(parsed.Hostname())
}

// IsGroupURL reports whether rawURL names a provider group/organization
// rather than a single repository: an http(s) URL whose path carries
// exactly one non-empty segment (no repository name), e.g.
// https://github.com/myorg or https://gitlab.com/mygroup. scp-like URLs
// always name a single repository and are never group URLs.
func IsGroupURL(rawURL string) bool {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" || scpLikeRe.MatchString(rawURL) {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	switch parsed.Scheme {
	case "https", "http":
	default:
		return false
	}

	trimmed := strings.Trim(parsed.Path, "/")
	if trimmed == "" {
		return false
	}
	return len(strings.Split(trimmed, "/")) == 1
}

// ValidateGroup applies the same security checks as Validate to a
// group/organization URL, which must carry exactly one path segment
// (no repository name) rather than Validate's owner+repo requirement.
func ValidateGroup(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return fmt.Errorf("empty group url")
	}

	if shellMetacharacters.MatchString(rawURL) {
		return fmt.Errorf("group url contains disallowed characters: %s", rawURL)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed group url: %w", err)
	}

	switch parsed.Scheme {
	case "https", "http":
	default:
		return fmt.Errorf("unsupported url scheme %q (only https/http group urls are accepted)", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("group url is missing a host")
	}

	if parsed.Port() != "" {
		switch parsed.Port() {
		case "80", "443":
		default:
			return fmt.Errorf("non-standard port %s is not allowed", parsed.Port())
		}
	}

	trimmed := strings.Trim(parsed.Path, "/")
	if segs := strings.Split(trimmed, "/"); trimmed == "" || len(segs) != 1 {
		return fmt.Errorf("group url must name exactly one group/organization segment: %s", rawURL)
	}

	return validateHost(parsed.Hostname())
}

func validateHost(host string) error {
	host = strings.TrimSpace(host)
	if host == "" {
		return fmt.Errorf("git url is missing a host")
	}

	if blockedHostnames[strings.ToLower(host)] {
		return fmt.Errorf("host %s is not allowed", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		// Not a literal address; a real deployment would additionally
		// resolve the hostname and re-check, but the core does not perform
		// DNS lookups during validation (no network access allowed here).
		return nil
	}

	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsPrivate() || ip.IsUnspecified() {
		return fmt.Errorf("host %s resolves to a disallowed network range", host)
	}

	return nil
}
