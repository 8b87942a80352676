package collect

import (
	"crypto/tls"
	"net"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
)

// Note is a timestamped free-text annotation in a collection.
type Note struct {
	Timestamp string `json:"timestamp" yaml:"timestamp"`
	Note      string `json:"note" yaml:"note"`
}

// Collector gathers HTTP traffic, notes, and arbitrary data for one
// diagnosis session.
type Collector struct {
	ID     string
	Log    *HTTPLog
	Client *http.Client

	custom    map[string]any
	notes     []Note
	startedAt time.Time
}

// NewCollector starts a session. The returned Client records all traffic;
// certificate verification is off because the collector's whole purpose is
// reaching endpoints that may be misconfigured.
func NewCollector(mask bool) *Collector {
	httpLog := NewHTTPLog(mask)
	return &Collector{
		ID:  uuid.NewString(),
		Log: httpLog,
		Client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &Transport{
				Base: &http.Transport{
					TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
				},
				Log: httpLog,
			},
		},
		custom:    map[string]any{},
		startedAt: time.Now(),
	}
}

// Add attaches custom data under key.
func (c *Collector) Add(key string, data any) {
	c.custom[key] = data
}

// Custom returns the data stored under key, if any.
func (c *Collector) Custom(key string) (any, bool) {
	v, ok := c.custom[key]
	return v, ok
}

// AddNote appends a timestamped note.
func (c *Collector) AddNote(note string) {
	c.notes = append(c.notes, Note{
		Timestamp: time.Now().Format(time.RFC3339),
		Note:      note,
	})
}

// SystemInfo reports the host facts worth having in an offline bundle.
func (c *Collector) SystemInfo() map[string]any {
	info := map[string]any{
		"platform":   runtime.GOOS + "/" + runtime.GOARCH,
		"go_version": runtime.Version(),
	}
	if hostname, err := os.Hostname(); err == nil {
		info["hostname"] = hostname
	}
	info["local_ips"] = localIPs()
	return info
}

func localIPs() []string {
	ips := []string{}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ips
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		ips = append(ips, ipNet.IP.String())
	}
	return ips
}

// ConnectivityResult is the outcome of probing one URL.
type ConnectivityResult struct {
	Status     string `json:"status" yaml:"status"`
	StatusCode int    `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// TestConnectivity probes each URL through the recording client. Reaching
// the endpoint at all counts as ok; the status code is informational.
func (c *Collector) TestConnectivity(urls []string) map[string]ConnectivityResult {
	if len(urls) == 0 {
		urls = []string{
			"https://iam.myhuaweicloud.com",
			"https://iam.cn-north-4.myhuaweicloud.com",
		}
	}
	results := make(map[string]ConnectivityResult, len(urls))
	for _, url := range urls {
		resp, err := c.Client.Get(url)
		if err != nil {
			results[url] = ConnectivityResult{Status: "error", Error: err.Error()}
			continue
		}
		resp.Body.Close()
		results[url] = ConnectivityResult{Status: "ok", StatusCode: resp.StatusCode}
	}
	return results
}

// ToMap exports everything collected so far.
func (c *Collector) ToMap() map[string]any {
	out := map[string]any{
		"session": map[string]any{
			"id":         c.ID,
			"started_at": c.startedAt.Format(time.RFC3339),
			"ended_at":   time.Now().Format(time.RFC3339),
		},
		"system_info": c.SystemInfo(),
		"notes":       c.notes,
		"custom_data": c.custom,
	}
	for k, v := range c.Log.Summary() {
		out[k] = v
	}
	return out
}

// Save writes the collection to the data directory and returns the file
// path. An empty name gets a timestamped one.
func (c *Collector) Save(name, baseDir, format string) (string, error) {
	return SaveCollection(c.ToMap(), name, baseDir, format)
}
