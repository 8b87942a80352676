package llm

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// contentPart is one element of a vision message's content list, in the
// vLLM/OpenAI multimodal shape.
type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// BuildVisionMessage assembles a user message carrying text plus one or
// more images. Each image is an http(s) URL, an existing data URL, or a
// local file path that gets inlined as a base64 data URL.
func BuildVisionMessage(text string, images []string) (Message, error) {
	parts := []contentPart{{Type: "text", Text: text}}
	for _, img := range images {
		url, err := resolveImageURL(img)
		if err != nil {
			return Message{}, err
		}
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: url}})
	}
	return Message{Role: "user", Content: parts}, nil
}

func resolveImageURL(image string) (string, error) {
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") || strings.HasPrefix(image, "data:") {
		return image, nil
	}
	return ImageToDataURL(image)
}

// ImageToDataURL reads a local image file and encodes it as a data URL.
func ImageToDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("cannot read image %s: %w", path, err)
	}
	return BytesToDataURL(data, mimeFromPath(path)), nil
}

// BytesToDataURL encodes raw image bytes as a data URL.
func BytesToDataURL(data []byte, mime string) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func mimeFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	default:
		return "image/jpeg"
	}
}
