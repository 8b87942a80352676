package collect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadCollection_YAML(t *testing.T) {
	baseDir := t.TempDir()
	data := map[string]any{"notes": []any{"first"}}

	path, err := SaveCollection(data, "session1", baseDir, "yaml")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "session1.yaml"))

	loaded, err := LoadCollection("session1", baseDir)
	require.NoError(t, err)
	assert.Contains(t, loaded, "_metadata")
	assert.Contains(t, loaded, "notes")
}

func TestSaveCollection_JSONAndGeneratedName(t *testing.T) {
	baseDir := t.TempDir()

	path, err := SaveCollection(map[string]any{"k": "v"}, "", baseDir, "json")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".json"))
	assert.Contains(t, path, "collection_")
}

func TestLoadCollection_NotFound(t *testing.T) {
	_, err := LoadCollection("ghost", t.TempDir())
	assert.Error(t, err)
}

func TestListAndDeleteCollections(t *testing.T) {
	baseDir := t.TempDir()
	_, err := SaveCollection(map[string]any{}, "a", baseDir, "yaml")
	require.NoError(t, err)
	_, err = SaveCollection(map[string]any{}, "b", baseDir, "json")
	require.NoError(t, err)

	infos, err := ListCollections(baseDir)
	require.NoError(t, err)
	assert.Len(t, infos, 2)

	deleted, err := DeleteCollection("a", baseDir)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = DeleteCollection("a", baseDir)
	require.NoError(t, err)
	assert.False(t, deleted)

	infos, err = ListCollections(baseDir)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "b", infos[0].Name)
}

func TestGenerateName(t *testing.T) {
	assert.True(t, strings.HasPrefix(GenerateName("diag"), "diag_"))
	assert.True(t, strings.HasPrefix(GenerateName(""), "collection_"))
}
