package collect

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// RequestResult is the outcome of one template request.
type RequestResult struct {
	Name          string `json:"name" yaml:"name"`
	Description   string `json:"description,omitempty" yaml:"description,omitempty"`
	Method        string `json:"method" yaml:"method"`
	URL           string `json:"url" yaml:"url"`
	Success       bool   `json:"success" yaml:"success"`
	StatusCode    int    `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	ResponseBody  any    `json:"response_body,omitempty" yaml:"response_body,omitempty"`
	TokenReceived bool   `json:"token_received,omitempty" yaml:"token_received,omitempty"`
	Error         string `json:"error,omitempty" yaml:"error,omitempty"`
}

// RunSummary aggregates a template run.
type RunSummary struct {
	Total      int
	Successful int
	Failed     int
	Results    []RequestResult
}

// Runner executes the requests of a template through a recording
// collector.
type Runner struct {
	Template  Template
	Collector *Collector

	variables map[string]any
	results   []RequestResult
}

// NewRunner prepares a runner for a template.
func NewRunner(t Template, mask bool) *Runner {
	variables := map[string]any{}
	for k, v := range t.Variables {
		variables[k] = v
	}
	// Expose auth for ${auth.token}-style substitution.
	variables["auth"] = map[string]any{
		"token":    t.Auth.Token,
		"username": t.Auth.Username,
	}
	return &Runner{
		Template:  t,
		Collector: NewCollector(mask),
		variables: variables,
	}
}

func (r *Runner) headers(req TemplateRequest) map[string]string {
	headers := map[string]string{}
	for k, v := range r.Template.DefaultHeaders {
		headers[k] = v
	}
	for k, v := range req.Headers {
		headers[k] = v
	}

	switch r.Template.Auth.Type {
	case "token":
		if token := r.authToken(); token != "" {
			headers["X-Auth-Token"] = token
		}
	case "basic":
		creds := r.Template.Auth.Username + ":" + r.Template.Auth.Password
		headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
	}

	for k, v := range headers {
		headers[k] = Substitute(v, r.variables)
	}
	return headers
}

func (r *Runner) authToken() string {
	auth, _ := r.variables["auth"].(map[string]any)
	token, _ := auth["token"].(string)
	return token
}

func (r *Runner) buildURL(path string) string {
	path = Substitute(path, r.variables)
	base := strings.TrimRight(r.Template.BaseURL, "/")
	if base == "" {
		return path
	}
	base += "/"
	resolved, err := url.JoinPath(base, strings.TrimLeft(path, "/"))
	if err != nil {
		return base + strings.TrimLeft(path, "/")
	}
	return resolved
}

// RunRequest executes one template request and records its result.
func (r *Runner) RunRequest(req TemplateRequest) RequestResult {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	target := r.buildURL(req.Path)

	r.Collector.AddNote(fmt.Sprintf("Executing request: %s (%s %s)", req.Name, method, req.Path))

	result := RequestResult{
		Name:        req.Name,
		Description: req.Description,
		Method:      method,
		URL:         target,
	}

	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(SubstituteValue(normalizeYAML(req.Body), r.variables))
		if err != nil {
			result.Error = fmt.Sprintf("cannot encode body: %v", err)
			r.results = append(r.results, result)
			return result
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequest(method, target, body)
	if err != nil {
		result.Error = err.Error()
		r.results = append(r.results, result)
		return result
	}
	for k, v := range r.headers(req) {
		httpReq.Header.Set(k, v)
	}

	resp, err := r.Collector.Client.Do(httpReq)
	if err != nil {
		result.Error = err.Error()
		r.results = append(r.results, result)
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.Success = resp.StatusCode >= 200 && resp.StatusCode < 300

	respBody, _ := io.ReadAll(resp.Body)
	var decoded any
	if json.Unmarshal(respBody, &decoded) == nil {
		result.ResponseBody = decoded
	} else if len(respBody) > 0 {
		text := string(respBody)
		if len(text) > 1000 {
			text = text[:1000]
		}
		result.ResponseBody = text
	}

	// Captured tokens feed later requests in the same run.
	if token := resp.Header.Get("X-Subject-Token"); token != "" {
		result.TokenReceived = true
		if auth, ok := r.variables["auth"].(map[string]any); ok {
			auth["token"] = token
		}
	}

	r.results = append(r.results, result)
	return result
}

// RunAll executes every non-skipped request, optionally stopping at the
// first failure.
func (r *Runner) RunAll(stopOnError bool) RunSummary {
	r.Collector.AddNote("Starting template: " + r.Template.Name)
	r.Collector.Add("template_info", map[string]any{
		"name":           r.Template.Name,
		"description":    r.Template.Description,
		"base_url":       r.Template.BaseURL,
		"total_requests": len(r.Template.Requests),
	})

	for _, req := range r.Template.Requests {
		if req.Skip {
			r.Collector.AddNote("Skipping request: " + req.Name + " (marked skip)")
			continue
		}
		result := r.RunRequest(req)
		if !result.Success && stopOnError {
			r.Collector.AddNote("Stopping due to error in: " + req.Name)
			break
		}
	}
	return r.Summary()
}

// Summary tallies the executed requests.
func (r *Runner) Summary() RunSummary {
	s := RunSummary{Total: len(r.results), Results: r.results}
	for _, result := range r.results {
		if result.Success {
			s.Successful++
		} else {
			s.Failed++
		}
	}
	return s
}

// Save attaches the run summary and writes the collection. An empty name
// falls back to the template name.
func (r *Runner) Save(name, baseDir string) (string, error) {
	summary := r.Summary()
	r.Collector.Add("execution_summary", map[string]any{
		"total_requests": summary.Total,
		"successful":     summary.Successful,
		"failed":         summary.Failed,
		"results":        summary.Results,
	})
	if name == "" {
		name = r.Template.Name
	}
	return r.Collector.Save(name, baseDir, "yaml")
}

// normalizeYAML converts yaml.v3's map[any]any trees (possible when a
// template was hand-edited) into map[string]any so they JSON-encode.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalizeYAML(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeYAML(item)
		}
		return out
	default:
		return v
	}
}
