// Package manifest parses delivery asset manifests and matches their
// entries against files on disk.
//
// A manifest is a plain UTF-8 text file. Lines whose first non-blank
// character is '#' start a named section; every other non-blank line is a
// filename pattern belonging to the section above it.
package manifest

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

const (
	// DefaultSection collects patterns that appear before any header.
	DefaultSection = "default"

	// ImageSectionToken marks the section holding container image tarballs.
	// Delivery manifests are authored in Chinese.
	ImageSectionToken = "镜像"

	sectionMarker = "#"
)

// Section is a named group of filename patterns, in file order.
type Section struct {
	Name     string
	Patterns []string
}

// Manifest holds the ordered sections of an asset manifest. A header name
// that recurs later in the file appends to the section accumulated under
// that name rather than starting a fresh one.
type Manifest struct {
	Sections []*Section

	index map[string]*Section
}

// Parse reads and parses a manifest file.
func Parse(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	m := &Manifest{index: make(map[string]*Section)}
	current := m.section(DefaultSection)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, sectionMarker) {
			name := strings.TrimSpace(strings.TrimLeft(line, sectionMarker))
			current = m.section(name)
			continue
		}
		current.Patterns = append(current.Patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	return m, nil
}

// section returns the accumulation bucket for name, creating it on first use.
func (m *Manifest) section(name string) *Section {
	if s, ok := m.index[name]; ok {
		return s
	}
	s := &Section{Name: name}
	m.index[name] = s
	m.Sections = append(m.Sections, s)
	return s
}

// AllPatterns returns every pattern in section-then-within-section order.
// Sections that ended up empty (headers with no entries) contribute nothing.
func (m *Manifest) AllPatterns() []string {
	var patterns []string
	for _, s := range m.Sections {
		patterns = append(patterns, s.Patterns...)
	}
	return patterns
}

// ImagePatterns returns the patterns of the first section whose name
// contains ImageSectionToken. When no such section exists it falls back to
// every pattern in the manifest and logs a warning.
func (m *Manifest) ImagePatterns() []string {
	for _, s := range m.Sections {
		if strings.Contains(s.Name, ImageSectionToken) {
			return s.Patterns
		}
	}
	log.Warn("No image section found in manifest, using all entries", "token", ImageSectionToken)
	return m.AllPatterns()
}
