package collect

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// TemplateAuth configures authentication for a request template.
// Type is "token", "basic", or "none".
type TemplateAuth struct {
	Type     string `yaml:"type"`
	Token    string `yaml:"token,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// TemplateRequest is one request in a template.
type TemplateRequest struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Method      string            `yaml:"method"`
	Path        string            `yaml:"path"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	Body        any               `yaml:"body,omitempty"`
	Skip        bool              `yaml:"skip,omitempty"`
}

// Template is an editable description of API requests to replay on a
// customer network.
type Template struct {
	Name           string            `yaml:"name"`
	Description    string            `yaml:"description,omitempty"`
	BaseURL        string            `yaml:"base_url"`
	DefaultHeaders map[string]string `yaml:"default_headers,omitempty"`
	Auth           TemplateAuth      `yaml:"auth"`
	Variables      map[string]any    `yaml:"variables,omitempty"`
	Requests       []TemplateRequest `yaml:"requests"`
}

var iamTokenBody = map[string]any{
	"auth": map[string]any{
		"identity": map[string]any{
			"methods": []any{"password"},
			"password": map[string]any{
				"user": map[string]any{
					"name":     "YOUR_USERNAME",
					"password": "YOUR_PASSWORD",
					"domain":   map[string]any{"name": "YOUR_DOMAIN"},
				},
			},
		},
		"scope": map[string]any{
			"project": map[string]any{"name": "YOUR_PROJECT"},
		},
	},
}

func builtinTemplates() map[string]Template {
	return map[string]Template{
		"default": {
			Name:           "api_collection",
			Description:    "API collection session",
			DefaultHeaders: map[string]string{"Content-Type": "application/json"},
			Auth:           TemplateAuth{Type: "token"},
			Requests: []TemplateRequest{
				{
					Name:        "get_token",
					Description: "Fetch IAM token",
					Method:      "POST",
					Path:        "/v3/auth/tokens",
					Body:        iamTokenBody,
				},
				{
					Name:        "list_projects",
					Description: "List available projects",
					Method:      "GET",
					Path:        "/v3/projects",
				},
			},
		},
		"iam": {
			Name:           "iam_debug",
			Description:    "IAM authentication debug collection",
			BaseURL:        "https://iam.cn-north-4.myhuaweicloud.com",
			DefaultHeaders: map[string]string{"Content-Type": "application/json"},
			Auth:           TemplateAuth{Type: "none"},
			Requests: []TemplateRequest{
				{
					Name:        "get_token",
					Description: "Fetch IAM token with password auth",
					Method:      "POST",
					Path:        "/v3/auth/tokens",
					Body:        iamTokenBody,
				},
				{
					Name:        "get_token_info",
					Description: "Get token info (requires valid token in auth section)",
					Method:      "GET",
					Path:        "/v3/auth/tokens",
					Headers:     map[string]string{"X-Subject-Token": "${auth.token}"},
					Skip:        true,
				},
			},
		},
		"modelarts": {
			Name:           "modelarts_debug",
			Description:    "ModelArts API debug collection",
			BaseURL:        "https://modelarts.cn-north-4.myhuaweicloud.com",
			DefaultHeaders: map[string]string{"Content-Type": "application/json"},
			Auth:           TemplateAuth{Type: "token", Token: "YOUR_TOKEN_HERE"},
			Variables:      map[string]any{"project_id": "YOUR_PROJECT_ID"},
			Requests: []TemplateRequest{
				{
					Name:        "list_services",
					Description: "List deployed services",
					Method:      "GET",
					Path:        "/v1/${project_id}/services",
				},
				{
					Name:        "list_models",
					Description: "List models",
					Method:      "GET",
					Path:        "/v1/${project_id}/models",
				},
			},
		},
	}
}

// GetTemplate returns a built-in template by name.
func GetTemplate(name string) (Template, bool) {
	t, ok := builtinTemplates()[name]
	return t, ok
}

// ListTemplates returns the built-in template names, sorted.
func ListTemplates() []string {
	templates := builtinTemplates()
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SaveTemplate writes a template as YAML.
func SaveTemplate(t Template, path string) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("cannot encode template: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("cannot write template: %w", err)
	}
	return nil
}

// LoadTemplate reads a template from a YAML file.
func LoadTemplate(path string) (Template, error) {
	var t Template
	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("cannot read template %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("malformed template %s: %w", path, err)
	}
	return t, nil
}

var variableRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// Substitute replaces ${var} (with dotted paths into nested maps) in text.
// Unknown variables are left as-is so a half-filled template still runs.
func Substitute(text string, variables map[string]any) string {
	return variableRe.ReplaceAllStringFunc(text, func(match string) string {
		path := variableRe.FindStringSubmatch(match)[1]
		value := lookupPath(variables, strings.Split(path, "."))
		if value == nil {
			return match
		}
		return fmt.Sprintf("%v", value)
	})
}

func lookupPath(variables map[string]any, parts []string) any {
	var current any = variables
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = m[part]
		if !ok {
			return nil
		}
	}
	return current
}

// SubstituteValue recursively substitutes variables in strings, maps, and
// lists.
func SubstituteValue(value any, variables map[string]any) any {
	switch v := value.(type) {
	case string:
		return Substitute(v, variables)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = SubstituteValue(item, variables)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = SubstituteValue(item, variables)
		}
		return out
	default:
		return value
	}
}
