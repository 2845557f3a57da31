// Package wordlist reads the line-oriented input files of a scan: the
// parameter names, the redirect destinations and the target file.
package wordlist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Load reads a list file. Lines are trimmed; blank lines, '#' comments and
// repeated entries are dropped, keeping first-seen order.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading list %s: %w", path, err)
	}
	defer f.Close()

	lines, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("reading list %s: %w", path, err)
	}
	return lines, nil
}

// Parse applies Load's line rules to r.
func Parse(r io.Reader) ([]string, error) {
	var lines []string
	seen := make(map[string]struct{})

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}

// LoadTarget returns the first entry of a target file.
func LoadTarget(path string) (string, error) {
	lines, err := Load(path)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("target file %s is empty", path)
	}
	return lines[0], nil
}
