package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/Serbz/TorScraper-SC/internal/urlutil"
)

// LoadKeywordsFile reads keyword entries from a file, one per line.
// Blank lines and lines starting with '#' are skipped. Lines keep their
// exact spelling otherwise: a "REGEX: " prefix marks a pattern entry and
// the prefix itself is significant.
func LoadKeywordsFile(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // user-provided keyword path is intentional
	if err != nil {
		return nil, fmt.Errorf("open keywords file %s: %w", path, err)
	}
	defer f.Close()

	var keywords []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keywords = append(keywords, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read keywords file %s: %w", path, err)
	}
	return keywords, nil
}

// LoadSeedsFile extracts seed URLs from a file of free text. The file
// does not need any particular format: anything that looks like a URL is
// picked up, and bare "www." hosts get an http scheme.
func LoadSeedsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided seeds path is intentional
	if err != nil {
		return nil, fmt.Errorf("open seeds file %s: %w", path, err)
	}
	return urlutil.ExtractFromText(string(data)), nil
}
