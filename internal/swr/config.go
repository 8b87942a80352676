package swr

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/xuopoj/sd-helper/pkg/progress"
)

// Config is the upload tool's configuration file (config.yaml).
type Config struct {
	// AssetsFile points at the delivery manifest.
	AssetsFile string
	// Endpoint is the destination SWR registry host.
	Endpoint string
	// Org is the destination organization (namespace) inside SWR.
	Org string
	// CleanupAfterPush removes local images once pushed.
	CleanupAfterPush bool
	// ProgressFile overrides the default progress file location.
	ProgressFile string
}

// LoadConfig reads the upload configuration from path.
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("cleanup_after_push", false)
	v.SetDefault("progress_file", progress.DefaultFile)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("unable to read config %s: %w", path, err)
	}

	cfg := &Config{
		AssetsFile:       v.GetString("assets_file"),
		Endpoint:         v.GetString("swr.endpoint"),
		Org:              v.GetString("swr.org"),
		CleanupAfterPush: v.GetBool("cleanup_after_push"),
		ProgressFile:     v.GetString("progress_file"),
	}
	return cfg, nil
}

// RequireManifest validates the keys every mode needs.
func (c *Config) RequireManifest() error {
	if c.AssetsFile == "" {
		return fmt.Errorf("'assets_file' not set in config")
	}
	if _, err := os.Stat(c.AssetsFile); err != nil {
		return fmt.Errorf("assets file not found: %s", c.AssetsFile)
	}
	return nil
}

// RequireRegistry validates the keys the upload pipeline needs on top of
// RequireManifest.
func (c *Config) RequireRegistry() error {
	if c.Endpoint == "" {
		return fmt.Errorf("'swr.endpoint' not set in config")
	}
	if c.Org == "" {
		return fmt.Errorf("'swr.org' not set in config")
	}
	return nil
}
