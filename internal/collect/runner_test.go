package collect

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_RunAll_TokenCapturedAndReused(t *testing.T) {
	var tokenInfoHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/auth/tokens":
			w.Header().Set("X-Subject-Token", "captured-token")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"token":{}}`))
		case "/v3/projects":
			tokenInfoHeader = r.Header.Get("X-Auth-Token")
			w.Write([]byte(`{"projects":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	tpl := Template{
		Name:    "iam_flow",
		BaseURL: srv.URL,
		Auth:    TemplateAuth{Type: "token"},
		Requests: []TemplateRequest{
			{Name: "get_token", Method: "POST", Path: "/v3/auth/tokens", Body: map[string]any{"auth": "x"}},
			{Name: "list_projects", Method: "GET", Path: "/v3/projects"},
		},
	}

	summary := NewRunner(tpl, true).RunAll(false)

	require.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Successful)
	assert.True(t, summary.Results[0].TokenReceived)
	// The captured token authenticates the next request in the same run.
	assert.Equal(t, "captured-token", tokenInfoHeader)
}

func TestRunner_VariableSubstitutionInPathAndBody(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tpl := Template{
		Name:      "subst",
		BaseURL:   srv.URL,
		Variables: map[string]any{"project_id": "p-42"},
		Requests: []TemplateRequest{{
			Name:   "svc",
			Method: "POST",
			Path:   "/v1/${project_id}/services",
			Body:   map[string]any{"project": "${project_id}"},
		}},
	}

	NewRunner(tpl, true).RunAll(false)

	assert.Equal(t, "/v1/p-42/services", gotPath)
	assert.Equal(t, "p-42", gotBody["project"])
}

func TestRunner_SkippedRequestsAreNotExecuted(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	tpl := Template{
		Name:    "with_skip",
		BaseURL: srv.URL,
		Requests: []TemplateRequest{
			{Name: "run_me", Path: "/a"},
			{Name: "skip_me", Path: "/b", Skip: true},
		},
	}

	summary := NewRunner(tpl, true).RunAll(false)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, calls)
}

func TestRunner_StopOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	tpl := Template{
		Name:    "stop",
		BaseURL: srv.URL,
		Requests: []TemplateRequest{
			{Name: "fail", Path: "/fail"},
			{Name: "never", Path: "/never"},
		},
	}

	summary := NewRunner(tpl, true).RunAll(true)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Failed)
}

func TestRunner_BasicAuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	tpl := Template{
		Name:     "basic",
		BaseURL:  srv.URL,
		Auth:     TemplateAuth{Type: "basic", Username: "u", Password: "p"},
		Requests: []TemplateRequest{{Name: "r", Path: "/"}},
	}

	NewRunner(tpl, true).RunAll(false)
	// base64("u:p")
	assert.Equal(t, "Basic dTpw", gotAuth)
}

func TestRunner_SaveAttachesExecutionSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tpl := Template{
		Name:     "save_me",
		BaseURL:  srv.URL,
		Requests: []TemplateRequest{{Name: "r", Path: "/"}},
	}

	runner := NewRunner(tpl, true)
	runner.RunAll(false)

	baseDir := t.TempDir()
	path, err := runner.Save("", baseDir)
	require.NoError(t, err)
	assert.Contains(t, path, "save_me")

	loaded, err := LoadCollection("save_me", baseDir)
	require.NoError(t, err)
	assert.Contains(t, loaded, "http_logs")

	// Collector.Add nests custom entries under custom_data.
	custom, ok := loaded["custom_data"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, custom, "execution_summary")
}
