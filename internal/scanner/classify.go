package scanner

import (
	"net/url"
	"strings"

	"github.com/buemura/redirhunt/pkg/types"
	"golang.org/x/net/idna"
)

// Classify reports whether a redirect is a genuine open redirect. It never
// fails: malformed input is simply not a match.
func Classify(candidateLocation, finalURL, destination, baseURL string) bool {
	_, ok := Match(candidateLocation, finalURL, destination, baseURL)
	return ok
}

// Match is Classify that also names the accepting rule. The destination
// match rule is tried first and only applies to an absolute or
// protocol-relative candidateLocation; a relative Location stays on the
// target whatever its text looks like.
func Match(candidateLocation, finalURL, destination, baseURL string) (types.Rule, bool) {
	if isAbsoluteLocation(candidateLocation) {
		if loc := NormalizeDestination(candidateLocation); loc != "" && loc == NormalizeDestination(destination) {
			return types.RuleDestinationMatch, true
		}
	}
	if escapesOrigin(finalURL, baseURL) {
		return types.RuleCrossOrigin, true
	}
	return "", false
}

// NormalizeDestination reduces a URL or bare host to its lower-cased host
// (and port, if any) without scheme, leading "www." labels, path, query or
// fragment. Path-only and unparsable values normalize to "".
// NormalizeDestination(NormalizeDestination(x)) == NormalizeDestination(x).
func NormalizeDestination(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "//") {
		return ""
	}
	if !strings.Contains(s, "://") && !strings.HasPrefix(s, "//") {
		s = "//" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	host := canonicalHost(u.Hostname())
	if host == "" {
		return ""
	}
	if strings.Contains(host, ":") {
		host = "[" + strings.ReplaceAll(host, "%", "%25") + "]"
	}
	if port := u.Port(); port != "" {
		host += ":" + port
	}
	return host
}

func isAbsoluteLocation(raw string) bool {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "//") {
		return true
	}
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// escapesOrigin is true when finalURL is an absolute http(s) URL whose host
// differs from baseURL's.
func escapesOrigin(finalURL, baseURL string) bool {
	final := absoluteHost(finalURL)
	base := absoluteHost(baseURL)
	return final != "" && base != "" && final != base
}

func absoluteHost(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	return canonicalHost(u.Hostname())
}

func canonicalHost(host string) string {
	host = strings.ToLower(strings.TrimRight(host, "."))
	if strings.Contains(host, ":") {
		return host
	}
	for strings.HasPrefix(host, "www.") {
		host = strings.TrimPrefix(host, "www.")
	}
	if ascii, err := idna.ToASCII(host); err == nil && ascii != "" {
		host = strings.ToLower(ascii)
	}
	return host
}
