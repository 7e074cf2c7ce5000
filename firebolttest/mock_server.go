// Package firebolttest provides an in-process mock of the Firebolt REST
// API for integration testing. A single httptest server plays both the
// API endpoint (authentication and account inventory) and the engine
// endpoint (query execution), so it can back a full connection without
// any network dependencies.
package firebolttest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// --- Data Models ---

// Engine inventory statuses reported by the account API.
const (
	// EngineStatusRunning indicates the engine is up and serving queries.
	EngineStatusRunning = "ENGINE_STATUS_RUNNING_REVISION_SERVING"
	// EngineStatusStopped indicates the engine is provisioned but not serving.
	EngineStatusStopped = "ENGINE_STATUS_STOPPED"
)

// MockColumn describes one result column of a query template, using the
// wire-level type names ("Int32", "Nullable(String)", ...).
type MockColumn struct {
	Name string
	Type string
}

// MockQueryTemplate defines the canned response for a specific SQL
// string. Templates are matched against the exact statement text the
// client sends after parameter formatting and semicolon trimming.
//
// A template with a non-zero StatusCode short-circuits into an error
// response carrying Body verbatim. A template with neither Columns nor
// Data produces an empty 200 response, which is how the real engine
// answers statements that return no tabular data.
type MockQueryTemplate struct {
	SQL        string        // The statement text used for template matching.
	Columns    []MockColumn  // Metadata describing the result set columns.
	Data       [][]any       // The full result set, one inner slice per row.
	StatusCode int           // Optional HTTP status to simulate a failure.
	Body       string        // Raw response body used with StatusCode.
	Latency    time.Duration // Latency for the query execution.
}

// MockEngine represents one engine in the account inventory.
type MockEngine struct {
	ID       string
	Name     string
	Endpoint string
	Status   string
}

// queryData mirrors the JSONCompact response document.
type queryData struct {
	Meta []metaColumn `json:"meta"`
	Data [][]any      `json:"data"`
	Rows int          `json:"rows"`
}

type metaColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// --- Mock Server Implementation ---

// MockFireboltServer simulates the Firebolt authentication, account and
// engine APIs for integration testing.
type MockFireboltServer struct {
	server *httptest.Server

	username string
	password string

	mu sync.RWMutex

	// templates maps statement texts to their canned responses.
	templates map[string]*MockQueryTemplate

	// engines is the account engine inventory, keyed by engine name.
	engines map[string]*MockEngine

	// databases is the set of database names that exist in the account.
	databases map[string]bool

	// token is the currently valid access token. Requests presenting any
	// other token are rejected with 401.
	token string

	loginCounter atomic.Int64

	// lastQueryParams holds the URL parameters of the most recent query
	// request, kept for assertions.
	lastQueryParams url.Values

	// defaultLatency is the fallback query latency if no template latency
	// is defined.
	defaultLatency time.Duration
}

// NewMockFireboltServer initializes a new mock server accepting the given
// credentials.
func NewMockFireboltServer(username, password string) *MockFireboltServer {
	mock := &MockFireboltServer{
		username:  username,
		password:  password,
		templates: make(map[string]*MockQueryTemplate),
		engines:   make(map[string]*MockEngine),
		databases: make(map[string]bool),
	}

	mux := http.NewServeMux()

	// POST /auth/v1/login: Exchanges credentials for an access token.
	mux.HandleFunc("POST /auth/v1/login", mock.handleLogin)

	// GET /core/v1/account/engines:getIdByName: Resolves an engine name
	// to its inventory id.
	mux.HandleFunc("GET /core/v1/account/engines:getIdByName", mock.handleEngineIDByName)

	// GET /core/v1/account/engines/{engineID}: Returns a single engine
	// document.
	mux.HandleFunc("GET /core/v1/account/engines/{engineID}", mock.handleEngineByID)

	// GET /core/v1/account/engines: Lists engines filtered by endpoint.
	mux.HandleFunc("GET /core/v1/account/engines", mock.handleListEngines)

	// GET /core/v1/account/databases: Lists databases filtered by name.
	mux.HandleFunc("GET /core/v1/account/databases", mock.handleListDatabases)

	// POST /{$}: Executes a statement against the engine.
	mux.HandleFunc("POST /{$}", mock.handleQuery)

	mock.server = httptest.NewServer(mux)

	return mock
}

// AddQuery registers a statement template.
func (m *MockFireboltServer) AddQuery(tmpl *MockQueryTemplate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[tmpl.SQL] = tmpl
}

// AddDatabase registers a database name in the account inventory.
func (m *MockFireboltServer) AddDatabase(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.databases[name] = true
}

// AddEngine registers an engine in the account inventory. Its endpoint is
// the mock server itself, so resolving the engine by name yields a URL
// that queries can be executed against.
func (m *MockFireboltServer) AddEngine(name string, running bool) *MockEngine {
	status := EngineStatusStopped
	if running {
		status = EngineStatusRunning
	}
	engine := &MockEngine{
		ID:       uuid.NewString(),
		Name:     name,
		Endpoint: m.server.URL,
		Status:   status,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.engines[name] = engine
	return engine
}

// ExpireToken invalidates the currently issued access token. The next
// authenticated request will be rejected with 401 until the client logs
// in again.
func (m *MockFireboltServer) ExpireToken() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
}

// LoginCount returns how many successful logins the server has handled.
func (m *MockFireboltServer) LoginCount() int64 {
	return m.loginCounter.Load()
}

// LastQueryParam returns a URL parameter of the most recent query
// request.
func (m *MockFireboltServer) LastQueryParam(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQueryParams.Get(key)
}

// SetDefaultLatency configures the fallback query latency.
func (m *MockFireboltServer) SetDefaultLatency(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultLatency = latency
}

// URL returns the base URL of the mock server.
func (m *MockFireboltServer) URL() string { return m.server.URL }

// Close shuts down the mock server.
func (m *MockFireboltServer) Close() { m.server.Close() }

// --- Request Handlers ---

func (m *MockFireboltServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed login request"})
		return
	}
	if creds.Username != m.username || creds.Password != m.password {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "username or password is incorrect"})
		return
	}

	token := uuid.NewString()
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	m.loginCounter.Add(1)

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"expiry":       86400,
	})
}

// checkAuth verifies the bearer token and writes a 401 when it is stale
// or missing.
func (m *MockFireboltServer) checkAuth(w http.ResponseWriter, r *http.Request) bool {
	m.mu.RLock()
	token := m.token
	m.mu.RUnlock()

	header := r.Header.Get("Authorization")
	if token == "" || header != "Bearer "+token {
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	return true
}

func (m *MockFireboltServer) handleEngineIDByName(w http.ResponseWriter, r *http.Request) {
	if !m.checkAuth(w, r) {
		return
	}
	name := r.URL.Query().Get("engine_name")

	m.mu.RLock()
	engine, exists := m.engines[name]
	m.mu.RUnlock()

	if !exists {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "engine not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"engine_id": map[string]string{"engine_id": engine.ID},
	})
}

func (m *MockFireboltServer) handleEngineByID(w http.ResponseWriter, r *http.Request) {
	if !m.checkAuth(w, r) {
		return
	}
	id := r.PathValue("engineID")

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, engine := range m.engines {
		if engine.ID == id {
			writeJSON(w, http.StatusOK, map[string]any{
				"engine": map[string]string{
					"endpoint":       engine.Endpoint,
					"current_status": engine.Status,
				},
			})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "engine not found"})
}

func (m *MockFireboltServer) handleListEngines(w http.ResponseWriter, r *http.Request) {
	if !m.checkAuth(w, r) {
		return
	}
	filter := r.URL.Query().Get("filter.endpoint_contains")

	m.mu.RLock()
	defer m.mu.RUnlock()
	edges := make([]map[string]any, 0)
	for _, engine := range m.engines {
		if filter != "" && !strings.Contains(engine.Endpoint, filter) {
			continue
		}
		edges = append(edges, map[string]any{
			"node": map[string]string{
				"name":           engine.Name,
				"endpoint":       engine.Endpoint,
				"current_status": engine.Status,
			},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"edges": edges})
}

func (m *MockFireboltServer) handleListDatabases(w http.ResponseWriter, r *http.Request) {
	if !m.checkAuth(w, r) {
		return
	}
	filter := r.URL.Query().Get("filter.name_contains")

	m.mu.RLock()
	defer m.mu.RUnlock()
	edges := make([]map[string]any, 0)
	for name := range m.databases {
		if filter != "" && !strings.Contains(name, filter) {
			continue
		}
		edges = append(edges, map[string]any{
			"node": map[string]string{"name": name},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"edges": edges})
}

// --- Query Execution ---

func (m *MockFireboltServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	if !m.checkAuth(w, r) {
		return
	}
	body, _ := io.ReadAll(r.Body)
	sql := strings.TrimSpace(string(body))

	m.mu.Lock()
	m.lastQueryParams = r.URL.Query()
	template, exists := m.templates[sql]
	latency := m.defaultLatency
	m.mu.Unlock()

	if !exists {
		http.Error(w, "Query template not found: "+sql, http.StatusInternalServerError)
		return
	}
	if template.Latency > 0 {
		latency = template.Latency
	}
	if latency > 0 {
		time.Sleep(latency)
	}

	if template.StatusCode != 0 {
		w.WriteHeader(template.StatusCode)
		_, _ = io.WriteString(w, template.Body)
		return
	}

	// Statements without tabular results get an empty body.
	if len(template.Columns) == 0 && len(template.Data) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}

	resp := queryData{
		Meta: make([]metaColumn, len(template.Columns)),
		Data: template.Data,
		Rows: len(template.Data),
	}
	for i, col := range template.Columns {
		resp.Meta[i] = metaColumn{Name: col.Name, Type: col.Type}
	}
	if resp.Data == nil {
		resp.Data = [][]any{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeJSON encodes v as JSON and writes it to the response with the
// given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
