package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	linuxdoAuthorizeURL = "https://connect.linux.do/oauth2/authorize"
	linuxdoTokenURL     = "https://connect.linux.do/oauth2/token"
	linuxdoUserinfoURL  = "https://connect.linux.do/api/user"
)

// LinuxDoUser is the subset of the userinfo response we keep.
type LinuxDoUser struct {
	ID             json.Number `json:"id"`
	Username       string      `json:"username"`
	Name           string      `json:"name"`
	AvatarTemplate string      `json:"avatar_template"`
	TrustLevel     int         `json:"trust_level"`
	Active         bool        `json:"active"`
	Silenced       bool        `json:"silenced"`
}

// LinuxDoClient drives the LinuxDo OAuth2 code flow: authorize redirect,
// code-for-token exchange, and userinfo fetch.
type LinuxDoClient struct {
	clientID     string
	clientSecret string
	redirectURI  string
	httpClient   *http.Client

	// Endpoint overrides for tests; zero values mean the real service.
	authorizeURL string
	tokenURL     string
	userinfoURL  string
}

func NewLinuxDoClient(clientID, clientSecret, redirectURI string) *LinuxDoClient {
	return &LinuxDoClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// WithEndpoints points the client at a stand-in server.
func (c *LinuxDoClient) WithEndpoints(authorize, token, userinfo string) *LinuxDoClient {
	c.authorizeURL = authorize
	c.tokenURL = token
	c.userinfoURL = userinfo
	return c
}

func (c *LinuxDoClient) AuthorizeURL(state string) string {
	params := url.Values{
		"response_type": {"code"},
		"client_id":     {c.clientID},
		"redirect_uri":  {c.redirectURI},
		"state":         {state},
		"scope":         {"user"},
	}
	return c.endpoint(c.authorizeURL, linuxdoAuthorizeURL) + "?" + params.Encode()
}

// ExchangeCode trades an authorization code for an access token.
func (c *LinuxDoClient) ExchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {c.redirectURI},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.tokenURL, linuxdoTokenURL), strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("token exchange status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("token exchange missing access_token")
	}
	return out.AccessToken, nil
}

// FetchUser loads the profile behind an access token.
func (c *LinuxDoClient) FetchUser(ctx context.Context, accessToken string) (LinuxDoUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(c.userinfoURL, linuxdoUserinfoURL), nil)
	if err != nil {
		return LinuxDoUser{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return LinuxDoUser{}, fmt.Errorf("userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return LinuxDoUser{}, fmt.Errorf("userinfo status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var user LinuxDoUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return LinuxDoUser{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if user.ID.String() == "" {
		return LinuxDoUser{}, fmt.Errorf("userinfo missing id")
	}
	return user, nil
}

func (c *LinuxDoClient) endpoint(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}
