// Package collect captures HTTP traffic, environment facts, and notes into
// local collection files, so connectivity and auth problems on customer
// networks can be diagnosed offline afterwards.
package collect

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const maskedValue = "****MASKED****"

// Header names whose values never leave the machine unmasked.
var sensitiveHeaders = map[string]struct{}{
	"authorization":    {},
	"x-auth-token":     {},
	"x-subject-token":  {},
	"x-security-token": {},
	"cookie":           {},
	"set-cookie":       {},
}

// JSON field names masked inside recorded bodies.
var sensitiveFields = []string{"password", "secret", "token", "key", "credential"}

var sensitiveFieldRes = buildFieldRes()

func buildFieldRes() []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(sensitiveFields))
	for _, f := range sensitiveFields {
		res = append(res, regexp.MustCompile(`(?i)("`+f+`":\s*)"[^"]*"`))
	}
	return res
}

// Record is one captured HTTP exchange.
type Record struct {
	Timestamp  string            `json:"timestamp" yaml:"timestamp"`
	Method     string            `json:"method" yaml:"method"`
	URL        string            `json:"url" yaml:"url"`
	DurationMS float64           `json:"duration_ms" yaml:"duration_ms"`
	Request    RequestInfo       `json:"request" yaml:"request"`
	Response   *ResponseInfo     `json:"response,omitempty" yaml:"response,omitempty"`
	Error      string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// RequestInfo is the recorded half of an outbound request.
type RequestInfo struct {
	Headers map[string]string `json:"headers" yaml:"headers"`
	Body    string            `json:"body,omitempty" yaml:"body,omitempty"`
}

// ResponseInfo is the recorded half of a response, when one arrived.
type ResponseInfo struct {
	StatusCode int               `json:"status_code" yaml:"status_code"`
	Headers    map[string]string `json:"headers" yaml:"headers"`
	Body       string            `json:"body,omitempty" yaml:"body,omitempty"`
}

// HTTPLog accumulates records. Safe for use from one client at a time;
// the mutex covers the append so a streaming response finishing late does
// not race a new request.
type HTTPLog struct {
	mu            sync.Mutex
	records       []Record
	MaskSensitive bool
}

// NewHTTPLog returns a log with masking switched on unless disabled.
func NewHTTPLog(mask bool) *HTTPLog {
	return &HTTPLog{MaskSensitive: mask}
}

// Records returns a copy of the captured records.
func (l *HTTPLog) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Clear drops all records.
func (l *HTTPLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
}

func (l *HTTPLog) add(r Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, r)
}

func (l *HTTPLog) maskHeaders(h http.Header) map[string]string {
	masked := make(map[string]string, len(h))
	for key, values := range h {
		value := strings.Join(values, ", ")
		if l.MaskSensitive {
			if _, sensitive := sensitiveHeaders[strings.ToLower(key)]; sensitive {
				value = maskedValue
			}
		}
		masked[key] = value
	}
	return masked
}

func (l *HTTPLog) maskBody(body string) string {
	if body == "" || !l.MaskSensitive {
		return body
	}
	for _, re := range sensitiveFieldRes {
		body = re.ReplaceAllString(body, `$1"`+maskedValue+`"`)
	}
	return body
}

// Summary tallies captured traffic for the collection output.
func (l *HTTPLog) Summary() map[string]any {
	records := l.Records()
	failed := 0
	for _, r := range records {
		if r.Error != "" || (r.Response != nil && r.Response.StatusCode >= 400) {
			failed++
		}
	}
	return map[string]any{
		"http_logs":       records,
		"total_requests":  len(records),
		"failed_requests": failed,
	}
}

// Transport is an http.RoundTripper that records every exchange into an
// HTTPLog before handing it to the base transport.
type Transport struct {
	Base http.RoundTripper
	Log  *HTTPLog
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	record := Record{
		Timestamp: time.Now().Format(time.RFC3339),
		Method:    req.Method,
		URL:       req.URL.String(),
		Request: RequestInfo{
			Headers: t.Log.maskHeaders(req.Header),
			Body:    t.Log.maskBody(readBody(&req.Body)),
		},
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	record.DurationMS = float64(time.Since(start)) / float64(time.Millisecond)

	if err != nil {
		record.Error = err.Error()
		t.Log.add(record)
		return nil, err
	}

	record.Response = &ResponseInfo{
		StatusCode: resp.StatusCode,
		Headers:    t.Log.maskHeaders(resp.Header),
		Body:       t.Log.maskBody(readBody(&resp.Body)),
	}
	t.Log.add(record)
	return resp, nil
}

// readBody drains and restores a request or response body so the exchange
// still works after being recorded.
func readBody(body *io.ReadCloser) string {
	if body == nil || *body == nil {
		return ""
	}
	data, err := io.ReadAll(*body)
	(*body).Close()
	*body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return fmt.Sprintf("<read error: %v>", err)
	}
	if !utf8.Valid(data) {
		return "<binary data>"
	}
	return string(data)
}
