package firebolt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultAPIEndpoint is the Firebolt API endpoint used for
	// authentication and resource lookups.
	DefaultAPIEndpoint = "api.app.firebolt.io"

	loginPath = "/auth/v1/login"

	authRequestTimeout = 30 * time.Second
)

// loginRequest is the credential payload sent to the login endpoint.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the token document returned by the login endpoint.
// Expiry is the token lifetime in seconds.
type loginResponse struct {
	AccessToken string `json:"access_token"`
	Expiry      int64  `json:"expiry"`
	Error       string `json:"error,omitempty"`
	Message     string `json:"message,omitempty"`
}

// tokenSource obtains Firebolt access tokens using username and password
// credentials and caches them until they expire. It implements
// oauth2.TokenSource and is safe for concurrent use.
type tokenSource struct {
	username    string
	password    string
	apiEndpoint string
	httpClient  *http.Client

	mu    sync.Mutex
	token *oauth2.Token
}

var _ oauth2.TokenSource = (*tokenSource)(nil)

// newTokenSource creates a tokenSource for the given credentials.
// apiEndpoint must carry a scheme.
func newTokenSource(username, password, apiEndpoint string, httpClient *http.Client) *tokenSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: authRequestTimeout}
	}
	return &tokenSource{
		username:    username,
		password:    password,
		apiEndpoint: apiEndpoint,
		httpClient:  httpClient,
	}
}

// Token returns the cached token, logging in again once it has expired.
func (ts *tokenSource) Token() (*oauth2.Token, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token.Valid() {
		return ts.token, nil
	}
	token, err := ts.login()
	if err != nil {
		return nil, err
	}
	ts.token = token
	return token, nil
}

// invalidate drops the cached token so the next Token call performs a
// fresh login. Used when the server rejects a token before its nominal
// expiry.
func (ts *tokenSource) invalidate() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.token = nil
}

// login exchanges the credentials for a new access token.
func (ts *tokenSource) login() (*oauth2.Token, error) {
	payload, err := json.Marshal(loginRequest{Username: ts.username, Password: ts.password})
	if err != nil {
		return nil, &AuthenticationError{APIEndpoint: ts.apiEndpoint, Cause: err}
	}

	req, err := http.NewRequest(http.MethodPost, ts.apiEndpoint+loginPath, bytes.NewReader(payload))
	if err != nil {
		return nil, &AuthenticationError{APIEndpoint: ts.apiEndpoint, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return nil, &AuthenticationError{APIEndpoint: ts.apiEndpoint, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &AuthenticationError{
			APIEndpoint: ts.apiEndpoint,
			Cause:       fmt.Errorf("%s (status code: %d)", string(body), resp.StatusCode),
		}
	}

	var parsed loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &AuthenticationError{APIEndpoint: ts.apiEndpoint, Cause: err}
	}
	if parsed.Error != "" {
		message := parsed.Message
		if message == "" {
			message = "unknown server error"
		}
		return nil, &AuthenticationError{APIEndpoint: ts.apiEndpoint, Cause: fmt.Errorf("%s", message)}
	}

	return &oauth2.Token{
		AccessToken: parsed.AccessToken,
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Duration(parsed.Expiry) * time.Second),
	}, nil
}
