package llm

import (
	"sort"

	"github.com/xuopoj/sd-helper/internal/config"
)

// Model is a named, resolved model configuration with defaults applied.
type Model struct {
	Name        string
	Endpoint    string
	Type        string
	Temperature float64
	MaxTokens   int
	System      string
	VerifySSL   bool
}

// ListModels returns the configured model names, sorted.
func ListModels(settings *config.LLMSettings) []string {
	if settings == nil {
		return nil
	}
	names := make([]string, 0, len(settings.Models))
	for name := range settings.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveModel looks up a model by name. An empty name selects the
// configured default model, falling back to the first model (sorted) when
// no default is set. It returns false when nothing matches.
func ResolveModel(settings *config.LLMSettings, name string) (Model, bool) {
	if settings == nil || len(settings.Models) == 0 {
		return Model{}, false
	}
	if name == "" {
		name = settings.DefaultModel
	}
	if name == "" {
		names := ListModels(settings)
		name = names[0]
	}
	mc, ok := settings.Models[name]
	if !ok {
		return Model{}, false
	}

	m := Model{
		Name:        name,
		Endpoint:    mc.Endpoint,
		Type:        mc.Type,
		Temperature: mc.Temperature,
		MaxTokens:   mc.MaxTokens,
		System:      mc.System,
		VerifySSL:   true,
	}
	if m.Type == "" {
		m.Type = ModelTypeModelArts
	}
	if m.Temperature == 0 {
		m.Temperature = 0.7
	}
	if m.MaxTokens == 0 {
		m.MaxTokens = 2048
	}
	if mc.VerifySSL != nil {
		m.VerifySSL = *mc.VerifySSL
	}
	return m, true
}
