package collect

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

const dataDirName = ".sd-helper-data"

// DataDir returns (and creates) the collection directory under baseDir,
// or under the working directory when baseDir is empty.
func DataDir(baseDir string) (string, error) {
	if baseDir == "" {
		baseDir = "."
	}
	dir := filepath.Join(baseDir, dataDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create data directory: %w", err)
	}
	return dir, nil
}

// GenerateName returns a unique collection name with a timestamp.
func GenerateName(prefix string) string {
	if prefix == "" {
		prefix = "collection"
	}
	return prefix + "_" + time.Now().Format("20060102_150405")
}

// SaveCollection writes data as a named YAML or JSON collection file and
// returns its path.
func SaveCollection(data map[string]any, name, baseDir, format string) (string, error) {
	dir, err := DataDir(baseDir)
	if err != nil {
		return "", err
	}
	if name == "" {
		name = GenerateName("")
	}

	withMeta := map[string]any{
		"_metadata": map[string]any{
			"collected_at": time.Now().Format(time.RFC3339),
			"name":         name,
		},
	}
	for k, v := range data {
		withMeta[k] = v
	}

	var encoded []byte
	ext := "yaml"
	if format == "json" {
		ext = "json"
		encoded, err = json.MarshalIndent(withMeta, "", "  ")
	} else {
		encoded, err = yaml.Marshal(withMeta)
	}
	if err != nil {
		return "", fmt.Errorf("cannot encode collection: %w", err)
	}

	path := filepath.Join(dir, name+"."+ext)
	if err := os.WriteFile(path, encoded, 0o600); err != nil {
		return "", fmt.Errorf("cannot write collection: %w", err)
	}
	return path, nil
}

// LoadCollection reads a saved collection by name, with or without its
// extension.
func LoadCollection(name, baseDir string) (map[string]any, error) {
	dir, err := DataDir(baseDir)
	if err != nil {
		return nil, err
	}

	candidates := []string{
		filepath.Join(dir, name),
		filepath.Join(dir, name+".yaml"),
		filepath.Join(dir, name+".json"),
	}
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var out map[string]any
		if filepath.Ext(path) == ".json" {
			err = json.Unmarshal(data, &out)
		} else {
			err = yaml.Unmarshal(data, &out)
		}
		if err != nil {
			return nil, fmt.Errorf("malformed collection %s: %w", path, err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("collection not found: %s", name)
}

// CollectionInfo describes one saved collection file.
type CollectionInfo struct {
	Name     string
	File     string
	Size     int64
	Modified time.Time
}

// ListCollections returns saved collections, newest first.
func ListCollections(baseDir string) ([]CollectionInfo, error) {
	dir, err := DataDir(baseDir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []CollectionInfo
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, CollectionInfo{
			Name:     entry.Name()[:len(entry.Name())-len(ext)],
			File:     entry.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Modified.After(out[j].Modified) })
	return out, nil
}

// DeleteCollection removes a saved collection. It reports whether a file
// was deleted.
func DeleteCollection(name, baseDir string) (bool, error) {
	dir, err := DataDir(baseDir)
	if err != nil {
		return false, err
	}
	for _, path := range []string{
		filepath.Join(dir, name),
		filepath.Join(dir, name+".yaml"),
		filepath.Join(dir, name+".json"),
	} {
		if err := os.Remove(path); err == nil {
			return true, nil
		}
	}
	return false, nil
}
