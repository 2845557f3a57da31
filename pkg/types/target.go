package types

import (
	"fmt"
	"net/url"
	"strings"
)

// Target is the single application under test.
type Target struct {
	Host   string `json:"host"`
	URL    string `json:"url"`
	Scheme string `json:"scheme"`
}

// ParseTarget accepts a full URL or a bare host and normalizes it into a Target.
// A bare host defaults to https. Only http and https are accepted.
func ParseTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, fmt.Errorf("target cannot be empty")
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("invalid URL %q: %w", raw, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Target{}, fmt.Errorf("unsupported scheme %q (want http or https)", u.Scheme)
	}

	if u.Hostname() == "" {
		return Target{}, fmt.Errorf("URL %q has no hostname", raw)
	}

	// Fragments never reach the server; drop them so probes append cleanly.
	u.Fragment = ""

	return Target{
		Host:   u.Hostname(),
		URL:    u.String(),
		Scheme: scheme,
	}, nil
}
