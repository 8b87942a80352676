// Package auth fetches and caches Huawei Cloud IAM tokens.
package auth

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/xuopoj/sd-helper/internal/config"
)

const (
	// tokenHeader carries the issued token in the IAM response.
	tokenHeader = "X-Subject-Token"

	requestTimeout = 30 * time.Second

	// expirySkew renews tokens slightly before they actually expire.
	expirySkew = 5 * time.Minute
)

// Credentials is what a token request needs. Region selects the public
// cloud endpoint; IAMURL overrides it for private deployments.
type Credentials struct {
	Username    string
	Password    string
	DomainName  string
	ProjectName string
	Region      string
	IAMURL      string
}

// FromProfile extracts credentials from a profile, reporting which
// required fields are absent.
func FromProfile(p *config.Profile) (Credentials, error) {
	creds := Credentials{
		Username:    p.Username,
		Password:    p.Password,
		DomainName:  p.DomainName,
		ProjectName: p.ProjectName,
		Region:      p.Region,
		IAMURL:      p.IAMURL,
	}
	var missing []string
	if creds.Username == "" {
		missing = append(missing, "username")
	}
	if creds.Password == "" {
		missing = append(missing, "password")
	}
	if creds.DomainName == "" {
		missing = append(missing, "domain_name")
	}
	if creds.ProjectName == "" {
		missing = append(missing, "project_name")
	}
	if len(missing) > 0 {
		return creds, fmt.Errorf("missing required config: %s. Run 'sd-helper iam configure' first", strings.Join(missing, ", "))
	}
	return creds, nil
}

// TokenInfo is the result of a token fetch.
type TokenInfo struct {
	Token     string
	ProjectID string
	ExpiresAt time.Time
	FromCache bool
}

// Endpoint returns the IAM endpoint for the credentials. A custom IAM URL
// wins over the region; with neither, the global endpoint is used.
func (c Credentials) Endpoint() string {
	if c.IAMURL != "" {
		return strings.TrimRight(c.IAMURL, "/")
	}
	if c.Region != "" {
		return "https://iam." + c.Region + ".myhuaweicloud.com"
	}
	return "https://iam.myhuaweicloud.com"
}

// tokenRequest is the IAM password-auth payload.
type tokenRequest struct {
	Auth struct {
		Identity struct {
			Methods  []string `json:"methods"`
			Password struct {
				User struct {
					Name     string `json:"name"`
					Password string `json:"password"`
					Domain   struct {
						Name string `json:"name"`
					} `json:"domain"`
				} `json:"user"`
			} `json:"password"`
		} `json:"identity"`
		Scope struct {
			Project struct {
				Name string `json:"name"`
			} `json:"project"`
		} `json:"scope"`
	} `json:"auth"`
}

func buildTokenRequest(c Credentials) tokenRequest {
	var req tokenRequest
	req.Auth.Identity.Methods = []string{"password"}
	req.Auth.Identity.Password.User.Name = c.Username
	req.Auth.Identity.Password.User.Password = c.Password
	req.Auth.Identity.Password.User.Domain.Name = c.DomainName
	req.Auth.Scope.Project.Name = c.ProjectName
	return req
}

type tokenResponse struct {
	Token struct {
		ExpiresAt time.Time `json:"expires_at"`
		Project   struct {
			ID string `json:"id"`
		} `json:"project"`
	} `json:"token"`
}

// newHTTPClient skips certificate verification: private-cloud IAM
// endpoints routinely present self-signed certificates.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: requestTimeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
}

// FetchToken requests a fresh IAM token, consulting and refreshing the
// per-profile cache when useCache is set. The profile name only scopes the
// cache file.
func FetchToken(creds Credentials, profile string, useCache bool) (*TokenInfo, error) {
	if profile == "" {
		profile = config.DefaultProfile()
	}
	endpoint := creds.Endpoint()

	if useCache {
		if cached, err := loadCachedToken(profile); err == nil && cached != nil && cached.IAMURL == endpoint {
			return &TokenInfo{
				Token:     cached.Token,
				ProjectID: cached.ProjectID,
				ExpiresAt: cached.ExpiresAt,
				FromCache: true,
			}, nil
		}
	}

	return fetchToken(newHTTPClient(), creds, endpoint, profile)
}

// FetchTokenWith issues the token request through the supplied client
// without touching the cache. The data collector uses it to capture the
// exchange for offline diagnosis.
func FetchTokenWith(client *http.Client, creds Credentials) (*TokenInfo, error) {
	return fetchToken(client, creds, creds.Endpoint(), "")
}

func fetchToken(client *http.Client, creds Credentials, endpoint, profile string) (*TokenInfo, error) {
	payload, err := json.Marshal(buildTokenRequest(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to encode token request: %w", err)
	}

	url := endpoint + "/v3/auth/tokens"
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("token request failed: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	token := resp.Header.Get(tokenHeader)
	if token == "" {
		return nil, fmt.Errorf("IAM response carried no %s header", tokenHeader)
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	info := &TokenInfo{
		Token:     token,
		ProjectID: parsed.Token.Project.ID,
		ExpiresAt: parsed.Token.ExpiresAt,
	}

	if profile != "" {
		if err := saveTokenCache(profile, info, endpoint); err != nil {
			log.Warn("Failed to cache token", "err", err)
		}
	}
	return info, nil
}

// TokenFromConfig fetches a token with the credentials of the given (or
// default) profile.
func TokenFromConfig(profile string, useCache bool) (*TokenInfo, error) {
	p, err := config.Load(profile)
	if err != nil {
		return nil, err
	}
	creds, err := FromProfile(p)
	if err != nil {
		return nil, err
	}
	return FetchToken(creds, profile, useCache)
}
