package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractChunk(t *testing.T) {
	cases := []struct {
		name string
		data string
		want string
	}{
		{
			name: "openai delta shape",
			data: `{"choices":[{"delta":{"content":"hello"}}]}`,
			want: "hello",
		},
		{
			name: "empty delta",
			data: `{"choices":[{"delta":{}}]}`,
			want: "",
		},
		{
			name: "bare content",
			data: `{"content":"hi"}`,
			want: "hi",
		},
		{
			name: "bare text",
			data: `{"text":"hey"}`,
			want: "hey",
		},
		{
			name: "non-json passthrough",
			data: "plain chunk",
			want: "plain chunk",
		},
		{
			name: "unknown json shape",
			data: `{"usage":{"total_tokens":12}}`,
			want: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractChunk(tc.data))
		})
	}
}

func TestChat_SendsTokenAndExtractsContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok-1", r.Header.Get("X-Auth-Token"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		fmt.Fprint(w, `{"choices":[{"message":{"content":"the answer"}}]}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok-1", ModelTypeModelArts, false)
	text, raw, err := client.Chat(context.Background(),
		[]Message{{Role: "user", Content: "question"}},
		Options{Temperature: 0.7, MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, "the answer", text)
	assert.Contains(t, raw, "choices")
}

func TestChat_HTTPErrorSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok", "", false)
	_, _, err := client.Chat(context.Background(), nil, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestStream_CollectsChunksUntilDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, ": keepalive comment\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ignored\"}}]}\n\n")
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok", "", false)
	var got strings.Builder
	err := client.Stream(context.Background(), nil, Options{}, func(chunk string) error {
		got.WriteString(chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.String())
}

func TestStream_CallbackErrorStopsStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"content\":\"a\"}\n")
		fmt.Fprint(w, "data: {\"content\":\"b\"}\n")
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok", "", false)
	calls := 0
	err := client.Stream(context.Background(), nil, Options{}, func(chunk string) error {
		calls++
		return fmt.Errorf("stop")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestStream_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"content\":\"a\"}\n")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(srv.URL, "tok", "", false)
	err := client.Stream(ctx, nil, Options{}, func(chunk string) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
