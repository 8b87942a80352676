package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuopoj/sd-helper/internal/config"
)

// cacheEntry is the on-disk token cache for one profile.
type cacheEntry struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ProjectID string    `json:"project_id"`
	IAMURL    string    `json:"iam_url"`
	CachedAt  time.Time `json:"cached_at"`
}

// loadCachedToken returns the cached token for a profile if it is still
// valid (with the expiry skew applied), else nil.
func loadCachedToken(profile string) (*cacheEntry, error) {
	path, err := config.TokenCachePath(profile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read token cache: %w", err)
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("malformed token cache %s: %w", path, err)
	}

	if time.Now().After(entry.ExpiresAt.Add(-expirySkew)) {
		return nil, nil
	}
	return &entry, nil
}

func saveTokenCache(profile string, info *TokenInfo, endpoint string) error {
	path, err := config.TokenCachePath(profile)
	if err != nil {
		return err
	}
	entry := cacheEntry{
		Token:     info.Token,
		ExpiresAt: info.ExpiresAt,
		ProjectID: info.ProjectID,
		IAMURL:    endpoint,
		CachedAt:  time.Now(),
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// ClearCache removes the cached token for one profile, or for all profiles
// when profile is empty. It reports whether anything was removed.
func ClearCache(profile string) (bool, error) {
	if profile != "" {
		path, err := config.TokenCachePath(profile)
		if err != nil {
			return false, err
		}
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	}

	dir, err := config.Dir()
	if err != nil {
		return false, err
	}
	matches, err := filepath.Glob(filepath.Join(dir, "token_cache_*.json"))
	if err != nil {
		return false, err
	}
	cleared := false
	for _, m := range matches {
		if err := os.Remove(m); err == nil {
			cleared = true
		}
	}
	return cleared, nil
}
