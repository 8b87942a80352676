// Package config manages sd-helper's layered profile configuration: a
// global config file under the user config directory plus an optional
// .sd-helper.yaml in the working directory that overrides it.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	appDirName    = "sd-helper"
	localFileName = ".sd-helper.yaml"

	// DefaultProfileName is used when no profile was ever configured.
	DefaultProfileName = "default"
)

// ModelConfig describes one LLM endpoint in a profile.
type ModelConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Type        string  `yaml:"type,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
	System      string  `yaml:"system,omitempty"`
	VerifySSL   *bool   `yaml:"verify_ssl,omitempty"`
}

// LLMSettings is the llm section of a profile.
type LLMSettings struct {
	DefaultModel string                 `yaml:"default_model,omitempty"`
	Models       map[string]ModelConfig `yaml:"models,omitempty"`
}

// Profile holds the credentials and service settings for one cloud
// environment.
type Profile struct {
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	DomainName  string `yaml:"domain_name,omitempty"`
	ProjectName string `yaml:"project_name,omitempty"`
	Region      string `yaml:"region,omitempty"`
	IAMURL      string `yaml:"iam_url,omitempty"`
	AK          string `yaml:"ak,omitempty"`
	SK          string `yaml:"sk,omitempty"`
	ProjectID   string `yaml:"project_id,omitempty"`

	LLM *LLMSettings `yaml:"llm,omitempty"`
}

// File is the on-disk shape of both the global config and a profile-style
// local config.
type File struct {
	DefaultProfile string              `yaml:"default_profile,omitempty"`
	Profiles       map[string]*Profile `yaml:"profiles,omitempty"`
}

// Dir returns (and creates) the global config directory, honoring
// XDG_CONFIG_HOME.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	dir := filepath.Join(base, appDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create config directory: %w", err)
	}
	return dir, nil
}

// GlobalPath returns the global config file path.
func GlobalPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LocalPath returns the path of the local override file in the working
// directory, or "" when none exists.
func LocalPath() string {
	if _, err := os.Stat(localFileName); err != nil {
		return ""
	}
	return localFileName
}

// TokenCachePath returns the token cache file for a profile.
func TokenCachePath(profile string) (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "token_cache_"+profile+".json"), nil
}

func loadFile(path string) (*File, error) {
	f := &File{Profiles: map[string]*Profile{}}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("malformed config %s: %w", path, err)
	}
	if f.Profiles == nil {
		f.Profiles = map[string]*Profile{}
	}
	return f, nil
}

func saveFile(path string, f *File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("cannot encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("cannot write config %s: %w", path, err)
	}
	return nil
}

// LoadGlobal reads the global config file, returning an empty one when it
// does not exist yet.
func LoadGlobal() (*File, error) {
	path, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	return loadFile(path)
}

// SaveGlobal writes the global config file.
func SaveGlobal(f *File) (string, error) {
	path, err := GlobalPath()
	if err != nil {
		return "", err
	}
	return path, saveFile(path, f)
}

// DefaultProfile returns the configured default profile name.
func DefaultProfile() string {
	f, err := LoadGlobal()
	if err != nil || f.DefaultProfile == "" {
		return DefaultProfileName
	}
	return f.DefaultProfile
}

// SetDefaultProfile updates the default profile in the global config.
func SetDefaultProfile(name string) (string, error) {
	f, err := LoadGlobal()
	if err != nil {
		return "", err
	}
	f.DefaultProfile = name
	return SaveGlobal(f)
}

// ListProfiles returns the configured profile names.
func ListProfiles() ([]string, error) {
	f, err := LoadGlobal()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(f.Profiles))
	for name := range f.Profiles {
		names = append(names, name)
	}
	return names, nil
}

// Load returns the effective profile: the global profile deep-merged with
// the local override file, local values winning. An empty profile name
// selects the default profile.
func Load(profile string) (*Profile, error) {
	if profile == "" {
		profile = DefaultProfile()
	}

	global, err := LoadGlobal()
	if err != nil {
		return nil, err
	}
	merged := &Profile{}
	if p := global.Profiles[profile]; p != nil {
		merged = p
	}

	local, err := loadLocal(profile)
	if err != nil {
		return nil, err
	}
	if local != nil {
		merged = Merge(merged, local)
	}
	return merged, nil
}

// loadLocal reads the working-directory override for a profile, tolerating
// both the profiles layout and a flat single-profile file.
func loadLocal(profile string) (*Profile, error) {
	path := LocalPath()
	if path == "" {
		return nil, nil
	}

	f, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	if len(f.Profiles) > 0 {
		if p := f.Profiles[profile]; p != nil {
			return p, nil
		}
		return nil, nil
	}

	// Flat layout: the whole file is one profile.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("malformed config %s: %w", path, err)
	}
	return &p, nil
}

// SaveProfile stores a profile into the global config.
func SaveProfile(name string, p *Profile) (string, error) {
	if name == "" {
		name = DefaultProfile()
	}
	f, err := LoadGlobal()
	if err != nil {
		return "", err
	}
	f.Profiles[name] = p
	return SaveGlobal(f)
}

// SaveLocal stores a profile as the working-directory override file.
func SaveLocal(p *Profile) (string, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("cannot encode config: %w", err)
	}
	if err := os.WriteFile(localFileName, data, 0o600); err != nil {
		return "", fmt.Errorf("cannot write %s: %w", localFileName, err)
	}
	return localFileName, nil
}

// Merge overlays override onto base, field by field. Non-zero override
// values win; LLM model maps merge per model name.
func Merge(base, override *Profile) *Profile {
	out := *base

	overlay := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	overlay(&out.Username, override.Username)
	overlay(&out.Password, override.Password)
	overlay(&out.DomainName, override.DomainName)
	overlay(&out.ProjectName, override.ProjectName)
	overlay(&out.Region, override.Region)
	overlay(&out.IAMURL, override.IAMURL)
	overlay(&out.AK, override.AK)
	overlay(&out.SK, override.SK)
	overlay(&out.ProjectID, override.ProjectID)

	if override.LLM != nil {
		if out.LLM == nil {
			out.LLM = &LLMSettings{}
		} else {
			merged := *out.LLM
			out.LLM = &merged
		}
		if override.LLM.DefaultModel != "" {
			out.LLM.DefaultModel = override.LLM.DefaultModel
		}
		if len(override.LLM.Models) > 0 {
			models := make(map[string]ModelConfig, len(out.LLM.Models)+len(override.LLM.Models))
			for k, v := range out.LLM.Models {
				models[k] = v
			}
			for k, v := range override.LLM.Models {
				models[k] = v
			}
			out.LLM.Models = models
		}
	}
	return &out
}
