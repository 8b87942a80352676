package swr

import (
	"path/filepath"

	"github.com/xuopoj/sd-helper/pkg/manifest"
)

// FoundAsset is a manifest pattern resolved to a file on disk.
type FoundAsset struct {
	Section string
	Pattern string
	File    string
}

// MissingAsset is a manifest pattern with no file on disk.
type MissingAsset struct {
	Section string
	Pattern string
}

// Validate audits every pattern in every section of the manifest against
// dir. It is read-only: the progress store is never consulted and no engine
// operation runs.
func Validate(m *manifest.Manifest, dir string) (found []FoundAsset, missing []MissingAsset) {
	for _, sec := range m.Sections {
		for _, pattern := range sec.Patterns {
			match, err := manifest.FindMatch(dir, pattern)
			if err != nil {
				missing = append(missing, MissingAsset{Section: sec.Name, Pattern: pattern})
				continue
			}
			found = append(found, FoundAsset{
				Section: sec.Name,
				Pattern: pattern,
				File:    filepath.Base(match),
			})
		}
	}
	return found, missing
}
