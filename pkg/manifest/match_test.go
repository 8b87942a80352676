package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
}

func TestToGlob(t *testing.T) {
	cases := []struct {
		pattern string
		want    string
	}{
		{"app-xxxxxx.tar.gz", "app-*.tar.gz"},
		{"app-xxx-xxxx.tar", "app-*-*.tar"},
		{"linux.tar", "linux.tar"},
		// Runs of one or two stay literal.
		{"xx-tool.tar", "xx-tool.tar"},
		{"proxy-v2.tar", "proxy-v2.tar"},
		{"xxx", "*"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ToGlob(tc.pattern), "pattern %q", tc.pattern)
	}
}

func TestFindMatch_ExactAndWildcard(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "app-20260115.tar.gz", "other.bin")

	match, err := FindMatch(dir, "app-xxxxxxxx.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "app-20260115.tar.gz"), match)

	match, err = FindMatch(dir, "other.bin")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "other.bin"), match)
}

func TestFindMatch_NoMatch(t *testing.T) {
	_, err := FindMatch(t.TempDir(), "ghost-xxxx.tar")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestFindMatch_ExcludesSignatureSidecars(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir,
		"pkg-1.0.tar",
		"pkg-1.0.tar.asc",
		"pkg-1.0.tar.cms",
		"pkg-1.0.tar.p7s",
		"pkg-1.0.tar.crl",
		"pkg-1.0.tar.sha256",
	)

	match, err := FindMatch(dir, "pkg-xxxxx.tar")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "pkg-1.0.tar"), match)
}

func TestFindMatch_OnlySidecarsPresent(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "pkg-1.0.tar.sha256")

	_, err := FindMatch(dir, "pkg-xxxxx.tar")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestFindMatch_MultipleMatchesFirstWins(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "img-a.tar", "img-b.tar")

	match, err := FindMatch(dir, "img-xxxx.tar")
	require.NoError(t, err)
	// Glob returns sorted entries, so the first alphabetically wins.
	assert.Equal(t, filepath.Join(dir, "img-a.tar"), match)
}

func TestFindMatch_SkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "img-dir.tar"), 0o755))
	touch(t, dir, "img-file.tar")

	match, err := FindMatch(dir, "img-xxxx.tar")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "img-file.tar"), match)
}
