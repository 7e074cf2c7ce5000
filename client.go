package firebolt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// Client performs authenticated HTTP requests against a Firebolt engine
// endpoint and the Firebolt API. It transparently renews the bearer
// credential and retries exactly once when the server reports it expired.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	tokens     *tokenSource
}

// NewClient creates a client bound to an engine URL. apiEndpoint is used
// for authentication; both URLs must carry a scheme.
func NewClient(engineURL, username, password, apiEndpoint string) (*Client, error) {
	parsed, err := url.Parse(engineURL)
	if err != nil {
		return nil, fmt.Errorf("invalid engine URL: %w", err)
	}
	httpClient := &http.Client{}
	return &Client{
		httpClient: httpClient,
		baseURL:    parsed,
		tokens:     newTokenSource(username, password, apiEndpoint, nil),
	}, nil
}

// Request performs an HTTP request with bearer authentication. urlStr may
// be a path relative to the engine URL or an absolute URL. body, when
// non-empty, is sent as UTF-8 text. The caller owns the response body
// unless an error is returned.
func (c *Client) Request(ctx context.Context, method, urlStr string, params url.Values, body string) (*http.Response, error) {
	u, err := c.baseURL.Parse(urlStr)
	if err != nil {
		return nil, err
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}

	do := func() (*http.Response, error) {
		var bodyReader io.Reader
		if body != "" {
			bodyReader = strings.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
		if err != nil {
			return nil, err
		}
		if body != "" {
			req.Header.Set("Content-Type", "text/plain")
		}

		token, err := c.tokens.Token()
		if err != nil {
			return nil, err
		}
		token.SetAuthHeader(req)

		return c.httpClient.Do(req)
	}

	resp, err := do()
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Debug().Err(closeErr).Msg("failed to close response body")
		}
		// The server rejected the token before its nominal expiry.
		// Renew it and retry the request exactly once.
		log.Debug().Str("url", u.String()).Msg("access token rejected, renewing")
		c.tokens.invalidate()
		return do()
	}
	return resp, nil
}

// getJSON performs an authenticated GET request and decodes the JSON
// response into v. Non-OK statuses are returned as HTTPError.
func (c *Client) getJSON(ctx context.Context, urlStr string, params url.Values, v any) error {
	resp, err := c.Request(ctx, http.MethodGet, urlStr, params, "")
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return newHTTPError(resp)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Debug().Err(closeErr).Msg("failed to close response body")
		}
	}()
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode JSON: %w", err)
	}
	return nil
}

// Close releases idle transport connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// fixURLScheme prepends https:// when the URL carries no scheme.
func fixURLScheme(raw string) string {
	if strings.Contains(raw, "://") {
		return raw
	}
	return "https://" + raw
}
