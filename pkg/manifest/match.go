package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
)

// ErrNoMatch is returned by FindMatch when no file satisfies a pattern.
var ErrNoMatch = errors.New("no matching file")

// Manifest entries use a run of 'x' characters as a stand-in for release
// qualifiers that are unknown at authoring time (dates, build numbers).
// Runs shorter than three are kept literal so that names which genuinely
// contain "xx" are not turned into wildcards.
var placeholderRun = regexp.MustCompile(`x{3,}`)

// Signature and checksum files ship next to every payload; they must never
// satisfy a payload pattern.
var sigSuffixes = []string{".asc", ".cms", ".p7s", ".crl", ".sha256"}

// ToGlob converts a manifest pattern into a filesystem glob, replacing each
// maximal run of three or more placeholder characters with a single '*'.
func ToGlob(pattern string) string {
	return placeholderRun.ReplaceAllString(pattern, "*")
}

// FindMatch resolves a manifest pattern to exactly one regular file in dir.
// Signature sidecars are excluded. When several candidates remain the first
// one (in glob order) wins and a warning names the rest; this keeps a batch
// going instead of failing on a near-duplicate.
func FindMatch(dir, pattern string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, ToGlob(pattern)))
	if err != nil {
		return "", fmt.Errorf("bad pattern %q: %w", pattern, err)
	}

	var files []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if hasSignatureSuffix(info.Name()) {
			continue
		}
		files = append(files, m)
	}

	if len(files) == 0 {
		return "", fmt.Errorf("%w for pattern %q", ErrNoMatch, pattern)
	}
	if len(files) > 1 {
		names := make([]string, len(files))
		for i, f := range files {
			names[i] = filepath.Base(f)
		}
		log.Warn("Multiple matches, using first", "pattern", pattern, "candidates", strings.Join(names, ", "))
	}
	return files[0], nil
}

func hasSignatureSuffix(name string) bool {
	for _, s := range sigSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}
