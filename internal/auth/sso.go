package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const tokenURL = "https://login.eveonline.com/v2/oauth/token"

// SSOConfig holds the EVE SSO application credentials.
type SSOConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       string
}

// TokenResponse is the SSO token endpoint reply.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// BuildAuthURL returns the SSO authorize URL for the given CSRF state.
func (c *SSOConfig) BuildAuthURL(state string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("redirect_uri", c.CallbackURL)
	q.Set("client_id", c.ClientID)
	q.Set("scope", c.Scopes)
	q.Set("state", state)
	return "https://login.eveonline.com/v2/oauth/authorize/?" + q.Encode()
}

// GenerateState returns a random URL-safe CSRF state token.
func GenerateState() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// RefreshToken exchanges a refresh token for a fresh access token. SSO rotates
// the refresh token on every exchange, so callers must persist the returned one.
func (c *SSOConfig) RefreshToken(refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequest("POST", tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.ClientID + ":" + c.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("SSO %d: %s", resp.StatusCode, string(body))
	}

	var tok TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &tok, nil
}
