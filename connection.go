package firebolt

import (
	"context"
	"fmt"
	"sync"
)

// Config holds the settings required to connect to a Firebolt database.
// Database, Username and Password are required. Exactly one of EngineName
// and EngineURL must be set.
type Config struct {
	// Database is the name of the database to connect to
	Database string

	// Username is the account username used for authentication
	Username string

	// Password is the account password used for authentication
	Password string

	// EngineName is the name of the engine to connect to. It is resolved
	// to an endpoint through the API. Mutually exclusive with EngineURL.
	EngineName string

	// EngineURL is the engine endpoint to use. Mutually exclusive with
	// EngineName.
	EngineURL string

	// APIEndpoint overrides the Firebolt API endpoint used for
	// authentication and resource lookups. Defaults to
	// DefaultAPIEndpoint.
	APIEndpoint string
}

// Connection is a single logical connection to a Firebolt database. It
// owns the transport and every cursor it has created. Connections must be
// closed when no longer needed; Close is idempotent and never fails, so
// deferring it is always safe.
//
// Firebolt does not support transactions, so there is no rollback and
// Commit does nothing.
type Connection struct {
	client      *Client
	database    string
	engineURL   string
	apiEndpoint string

	// mu protects the cursor registry and the closed flag
	mu      sync.Mutex
	cursors []*Cursor
	closed  bool
}

// Connect opens a connection to a Firebolt database. When EngineName is
// set, the engine endpoint is resolved through the API first.
func Connect(ctx context.Context, cfg Config) (*Connection, error) {
	if cfg.EngineName != "" && cfg.EngineURL != "" {
		return nil, &InterfaceError{Message: "both engine_name and engine_url are provided: provide only one to connect"}
	}
	if cfg.EngineName == "" && cfg.EngineURL == "" {
		return nil, &InterfaceError{Message: "neither engine_name nor engine_url is provided: provide one to connect"}
	}
	for _, field := range []struct {
		value, name string
	}{
		{cfg.Database, "database"},
		{cfg.Username, "username"},
		{cfg.Password, "password"},
	} {
		if field.value == "" {
			return nil, &InterfaceError{Message: fmt.Sprintf("%s is required to connect", field.name)}
		}
	}

	apiEndpoint := cfg.APIEndpoint
	if apiEndpoint == "" {
		apiEndpoint = DefaultAPIEndpoint
	}
	apiEndpoint = fixURLScheme(apiEndpoint)

	engineURL := cfg.EngineURL
	if cfg.EngineName != "" {
		apiClient, err := NewClient(apiEndpoint, cfg.Username, cfg.Password, apiEndpoint)
		if err != nil {
			return nil, err
		}
		defer apiClient.Close()
		engineURL, err = resolveEngineURL(ctx, apiClient, apiEndpoint, cfg.EngineName)
		if err != nil {
			return nil, err
		}
	}
	engineURL = fixURLScheme(engineURL)

	client, err := NewClient(engineURL, cfg.Username, cfg.Password, apiEndpoint)
	if err != nil {
		return nil, err
	}

	return &Connection{
		client:      client,
		database:    cfg.Database,
		engineURL:   engineURL,
		apiEndpoint: apiEndpoint,
	}, nil
}

// Database returns the configured database name.
func (c *Connection) Database() string {
	return c.database
}

// EngineURL returns the resolved engine endpoint.
func (c *Connection) EngineURL() string {
	return c.engineURL
}

// Closed reports whether the connection has been closed.
func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Cursor creates a new cursor bound to this connection.
func (c *Connection) Cursor() (*Cursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, &ConnectionClosedError{Op: "create cursor"}
	}
	cursor := newCursor(c.client, c)
	c.cursors = append(c.cursors, cursor)
	return cursor, nil
}

// removeCursor deregisters a cursor. Removal racing with a concurrent
// close-all is tolerated as a no-op.
func (c *Connection) removeCursor(cursor *Cursor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, registered := range c.cursors {
		if registered == cursor {
			c.cursors = append(c.cursors[:i], c.cursors[i+1:]...)
			return
		}
	}
}

// Commit does nothing since Firebolt does not have transactions, but it
// still fails on a closed connection.
func (c *Connection) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &ConnectionClosedError{Op: "commit"}
	}
	return nil
}

// Close closes every cursor created by this connection, then the
// transport. It is idempotent. Once close begins no new cursor can be
// created; cursors closed concurrently by their owners are tolerated.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cursors := make([]*Cursor, len(c.cursors))
	copy(cursors, c.cursors)
	c.mu.Unlock()

	for _, cursor := range cursors {
		// A cursor can already be closed by another goroutine; Close is
		// idempotent so this is fine.
		cursor.Close()
	}
	c.client.Close()
	return nil
}
