package esi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const baseURL = "https://esi.evetech.net/latest"

const userAgent = "eve-metro/1.0 (github.com)"

// Client is a rate-limited ESI HTTP client shared by the scouting feed poller,
// the wallet reconciler, and the mail notifier.
type Client struct {
	http *http.Client
	sem  chan struct{}
}

// NewClient creates an ESI client with bounded concurrency. Journal and mail
// traffic is light; 20 in-flight requests keeps well inside the ESI error
// budget.
func NewClient() *Client {
	return &Client{
		http: &http.Client{Timeout: 30 * time.Second},
		sem:  make(chan struct{}, 20),
	}
}

// HealthCheck pings ESI to verify connectivity.
func (c *Client) HealthCheck() bool {
	req, err := http.NewRequest("GET", baseURL+"/status/?datasource=tranquility", nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == 200
}

// GetJSON fetches a URL and decodes JSON into dst.
func (c *Client) GetJSON(url string, dst interface{}) error {
	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ESI %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(dst)
}

// AuthGetJSON performs an authenticated GET against an ESI endpoint. The
// X-Pages response header, when present, is returned so callers can walk
// paginated endpoints.
func (c *Client) AuthGetJSON(url, accessToken string, dst interface{}) (totalPages int, err error) {
	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("ESI %d: %s", resp.StatusCode, string(body))
	}

	totalPages = 1
	if p := resp.Header.Get("X-Pages"); p != "" {
		fmt.Sscanf(p, "%d", &totalPages)
	}
	return totalPages, json.NewDecoder(resp.Body).Decode(dst)
}

// AuthPostJSON performs an authenticated POST with a JSON payload. Used for
// EVE mail delivery. A small set of success codes is accepted since mail
// creation answers 201.
func (c *Client) AuthPostJSON(url, accessToken string, payload interface{}, dst interface{}) error {
	c.sem <- struct{}{}
	defer func() { <-c.sem }()

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest("POST", url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 && resp.StatusCode != 201 && resp.StatusCode != 204 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ESI %d: %s", resp.StatusCode, string(raw))
	}
	if dst == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
