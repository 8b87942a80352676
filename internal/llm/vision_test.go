package llm

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildVisionMessage_URLPassthrough(t *testing.T) {
	msg, err := BuildVisionMessage("what is this", []string{
		"https://example.com/a.png",
		"data:image/png;base64,AAAA",
	})
	require.NoError(t, err)
	assert.Equal(t, "user", msg.Role)

	parts := msg.Content.([]contentPart)
	require.Len(t, parts, 3)
	assert.Equal(t, "text", parts[0].Type)
	assert.Equal(t, "what is this", parts[0].Text)
	assert.Equal(t, "https://example.com/a.png", parts[1].ImageURL.URL)
	assert.Equal(t, "data:image/png;base64,AAAA", parts[2].ImageURL.URL)
}

func TestBuildVisionMessage_LocalFileInlined(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pic.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 0x50, 0x4e, 0x47}, 0o644))

	msg, err := BuildVisionMessage("caption", []string{path})
	require.NoError(t, err)

	parts := msg.Content.([]contentPart)
	require.Len(t, parts, 2)
	assert.True(t, strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,"))
}

func TestBuildVisionMessage_MissingFile(t *testing.T) {
	_, err := BuildVisionMessage("x", []string{filepath.Join(t.TempDir(), "nope.jpg")})
	assert.Error(t, err)
}

func TestVisionMessage_JSONShape(t *testing.T) {
	msg, err := BuildVisionMessage("t", []string{"https://example.com/i.jpg"})
	require.NoError(t, err)

	encoded, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"role": "user",
		"content": [
			{"type": "text", "text": "t"},
			{"type": "image_url", "image_url": {"url": "https://example.com/i.jpg"}}
		]
	}`, string(encoded))
}

func TestMimeFromPath(t *testing.T) {
	assert.Equal(t, "image/png", mimeFromPath("a.PNG"))
	assert.Equal(t, "image/webp", mimeFromPath("a.webp"))
	assert.Equal(t, "image/jpeg", mimeFromPath("a.jpg"))
	assert.Equal(t, "image/jpeg", mimeFromPath("noext"))
}
