// Client for the token-based REST API that newer servers expose under
// /api/rest. Endpoint candidates are walked like the RPC ones, except that
// an explicit 401/403 is final: the server answered, it just said no.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
)

type Client struct {
	HTTP       *http.Client
	Bases      []string // candidate API roots, tried in order
	School     string
	ClientName string

	mu    sync.Mutex
	token string
}

func NewClient(server, school, clientName string) *Client {
	return &Client{
		HTTP:       &http.Client{Timeout: 30 * time.Second},
		Bases:      untis.RESTBaseURLs(server),
		School:     school,
		ClientName: clientName,
	}
}

// Token returns the current bearer token, empty when not authenticated.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.token
}

// SetToken restores a persisted bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Authenticate trades credentials for a bearer token.
func (c *Client) Authenticate(ctx context.Context, identity, password string) error {
	body, err := json.Marshal(map[string]string{
		"username": identity,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("encode login request: %w", err)
	}
	raw, err := c.roundTrip(ctx, http.MethodPost, "/view/v1/authentication", nil, body)
	if err != nil {
		return err
	}
	token := strings.TrimSpace(string(raw))
	if strings.HasPrefix(token, "{") {
		var resp struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return &untis.DecodeError{What: "token response", Err: err}
		}
		token = resp.Token
	}
	if token == "" {
		return &untis.DecodeError{What: "token response", Err: errors.New("empty token")}
	}
	c.SetToken(token)

	return nil
}

// get fetches a JSON resource into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	raw, err := c.roundTrip(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &untis.DecodeError{What: path, Err: err}
	}

	return nil
}

// roundTrip walks the candidate bases. Transport failures, 404 and 5xx
// move on to the next base; 401/403 and other client errors are final.
func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	var lastErr error
	for _, base := range c.Bases {
		raw, err := c.once(ctx, base, method, path, query, body)
		if err != nil {
			if retriableBase(err) {
				lastErr = err
				continue
			}

			return nil, err
		}

		return raw, nil
	}
	if lastErr == nil {
		lastErr = &untis.TransportError{URL: "", Err: errors.New("no endpoint configured")}
	}

	return nil, lastErr
}

func (c *Client) once(ctx context.Context, base, method, path string, query url.Values, body []byte) ([]byte, error) {
	u := base + path
	if query == nil {
		query = url.Values{}
	}
	if c.School != "" {
		query.Set("school", c.School)
	}
	if enc := query.Encode(); enc != "" {
		u += "?" + enc
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.ClientName != "" {
		req.Header.Set("User-Agent", c.ClientName)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &untis.TransportError{URL: u, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &untis.TransportError{URL: u, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &untis.HTTPError{Status: resp.StatusCode, URL: u, Body: trimBody(raw)}
	}

	return raw, nil
}

// retriableBase reports whether the next base candidate is worth a try.
func retriableBase(err error) bool {
	if untis.IsTransport(err) {
		return true
	}
	var he *untis.HTTPError
	if errors.As(err, &he) {
		return he.Status == http.StatusNotFound || he.Status >= 500
	}

	return false
}

func trimBody(raw []byte) string {
	const max = 256
	s := strings.TrimSpace(string(raw))
	if len(s) > max {
		s = s[:max]
	}

	return s
}
