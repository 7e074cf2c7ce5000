package firebolt

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// outputFormat is the wire format requested for every statement.
const outputFormat = "JSONCompact"

// defaultArraySize is the default number of rows returned by FetchMany.
const defaultArraySize = 1

// cursorState tracks the cursor life cycle.
type cursorState int

const (
	// stateNone means no query has been executed yet
	stateNone cursorState = iota
	// stateError means the last execute failed
	stateError
	// stateDone means the last execute completed
	stateDone
	// stateClosed is terminal
	stateClosed
)

// ExecOption configures a single Execute call.
type ExecOption func(*execConfig)

type execConfig struct {
	parameters    []any
	setParameters map[string]string
}

// WithParameters supplies positional values substituted for the
// statement's placeholders, in left-to-right order.
func WithParameters(parameters ...any) ExecOption {
	return func(cfg *execConfig) {
		cfg.parameters = parameters
	}
}

// WithSetParameter adds an extra query parameter passed through to the
// engine alongside database and output_format.
func WithSetParameter(key, value string) ExecOption {
	return func(cfg *execConfig) {
		if cfg.setParameters == nil {
			cfg.setParameters = make(map[string]string)
		}
		cfg.setParameters[key] = value
	}
}

// Cursor executes queries against a Firebolt engine and buffers their
// results for sequential consumption. Create cursors with
// Connection.Cursor, not directly.
//
// A cursor is safe for concurrent use: Execute, ExecuteMany and NextSet
// take exclusive access to the cursor state, fetch methods take shared
// access.
type Cursor struct {
	connection *Connection
	client     *Client

	// mu is the per-cursor read/write lock described above.
	mu sync.RWMutex
	// idxMu serializes fetch-position updates between concurrent readers.
	idxMu sync.Mutex

	state      cursorState
	arraySize  int
	rowCount   int
	columns    []Column
	rows       [][]any
	idx        int
	rowSets    []rowSet
	nextSetIdx int
}

// newCursor creates a cursor bound to a connection's transport.
func newCursor(client *Client, connection *Connection) *Cursor {
	c := &Cursor{
		connection: connection,
		client:     client,
		arraySize:  defaultArraySize,
	}
	c.reset()
	return c
}

// --- Preconditions ---

// checkNotClosed fails when the cursor is closed. Callers hold the lock.
func (c *Cursor) checkNotClosed(op string) error {
	if c.state == stateClosed {
		return &CursorClosedError{Op: op}
	}
	return nil
}

// checkQueryExecuted fails when no query has been executed yet.
// Callers hold the lock.
func (c *Cursor) checkQueryExecuted(op string) error {
	if c.state == stateNone {
		return &QueryNotRunError{Op: op}
	}
	return nil
}

// --- Accessors ---

// Description returns the column metadata of the active result set, or
// nil when the last statement produced no tabular data. Only Name and
// Type are ever populated.
func (c *Cursor) Description() ([]Column, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.checkNotClosed("get description"); err != nil {
		return nil, err
	}
	return c.columns, nil
}

// RowCount returns the number of rows produced by the last query, or -1
// when it produced no tabular data.
func (c *Cursor) RowCount() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.checkNotClosed("get row count"); err != nil {
		return -1, err
	}
	return c.rowCount, nil
}

// ArraySize returns the default number of rows FetchMany returns.
func (c *Cursor) ArraySize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.arraySize
}

// SetArraySize changes the default number of rows FetchMany returns.
// Sizes below one are ignored.
func (c *Cursor) SetArraySize(size int) {
	if size < 1 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.arraySize = size
}

// Closed reports whether the cursor has been closed.
func (c *Cursor) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == stateClosed
}

// Close marks the cursor closed and deregisters it from its connection.
// It is idempotent and never fails, so it is always safe to defer.
func (c *Cursor) Close() error {
	c.mu.Lock()
	c.state = stateClosed
	c.mu.Unlock()
	c.connection.removeCursor(c)
	return nil
}

// --- Execution ---

// reset clears all data stored from the previous query.
// Callers hold the write lock.
func (c *Cursor) reset() {
	c.state = stateNone
	c.rows = nil
	c.columns = nil
	c.rowCount = -1
	c.idx = 0
	c.rowSets = nil
	c.nextSetIdx = 0
}

// Execute prepares and executes a database query and returns the row
// count of the last statement. Parameters, when provided, are substituted
// as one parameter set.
func (c *Cursor) Execute(ctx context.Context, query string, opts ...ExecOption) (int, error) {
	var cfg execConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	var parameterSets [][]any
	if len(cfg.parameters) > 0 {
		parameterSets = [][]any{cfg.parameters}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkNotClosed("execute"); err != nil {
		return -1, err
	}
	return c.doExecute(ctx, query, parameterSets, cfg.setParameters)
}

// ExecuteMany prepares and executes a query once per parameter set and
// returns the row count of the last round trip. At least one parameter
// set is required.
func (c *Cursor) ExecuteMany(ctx context.Context, query string, parameterSets [][]any) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkNotClosed("execute"); err != nil {
		return -1, err
	}
	if len(parameterSets) == 0 {
		return -1, &InterfaceError{Message: "at least one parameter set is required to execute many"}
	}
	return c.doExecute(ctx, query, parameterSets, nil)
}

// doExecute runs the split-format-post loop. Statements are issued
// strictly sequentially. On failure the cursor enters the error state but
// keeps any result sets already buffered by earlier statements.
// Callers hold the write lock.
func (c *Cursor) doExecute(ctx context.Context, query string, parameterSets [][]any, setParameters map[string]string) (int, error) {
	c.reset()

	lastRowCount, err := c.runStatements(ctx, query, parameterSets, setParameters)
	if err != nil {
		c.state = stateError
		return -1, err
	}
	c.state = stateDone
	return lastRowCount, nil
}

func (c *Cursor) runStatements(ctx context.Context, query string, parameterSets [][]any, setParameters map[string]string) (int, error) {
	statements, err := splitFormatSQL(query, parameterSets)
	if err != nil {
		return -1, err
	}

	lastRowCount := -1
	for _, statement := range statements {
		start := time.Now()
		if !containsCredentials(statement) {
			log.Debug().Str("query", statement).Msg("running query")
		}

		params := url.Values{
			"database":      {c.connection.database},
			"output_format": {outputFormat},
		}
		for key, value := range setParameters {
			params.Set(key, value)
		}

		resp, err := c.client.Request(ctx, http.MethodPost, "/", params, statement)
		if err != nil {
			return -1, err
		}
		if err := c.validateResponse(ctx, resp); err != nil {
			return -1, err
		}
		set, err := decodeRowSet(resp)
		if err != nil {
			return -1, err
		}
		c.appendRowSet(set)
		lastRowCount = set.rowCount

		log.Info().
			Int("rows", set.rowCount).
			Dur("elapsed", time.Since(start)).
			Msg("query finished")
	}
	return lastRowCount, nil
}

// validateResponse maps a statement response status to the proper error.
// Probe calls against the resource API may themselves fail; such
// secondary failures surface as the generic HTTP error for the original
// status rather than masking it.
func (c *Cursor) validateResponse(ctx context.Context, resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusInternalServerError:
		httpErr := newHTTPError(resp).(*HTTPError)
		return &OperationalError{Message: httpErr.Message}

	case http.StatusForbidden:
		available, err := c.connection.isDatabaseAvailable(ctx, c.connection.database)
		if err != nil {
			return newHTTPError(resp)
		}
		if !available {
			resp.Body.Close()
			return &DatabaseNotFoundError{Database: c.connection.database}
		}
		httpErr := newHTTPError(resp).(*HTTPError)
		return &ProgrammingError{Message: httpErr.Message}

	case http.StatusServiceUnavailable, http.StatusNotFound:
		running, err := c.connection.isEngineRunning(ctx, c.connection.engineURL)
		if err != nil {
			return newHTTPError(resp)
		}
		if !running {
			resp.Body.Close()
			return &EngineNotRunningError{EngineURL: c.connection.engineURL}
		}
		return newHTTPError(resp)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newHTTPError(resp)
	}
	return nil
}

// appendRowSet buffers a decoded result set. The very first set is
// activated immediately so fetches can start without a NextSet call.
// Callers hold the write lock.
func (c *Cursor) appendRowSet(set rowSet) {
	c.rowSets = append(c.rowSets, set)
	if c.nextSetIdx == 0 {
		c.popNextSet()
	}
}

// popNextSet activates the next buffered result set.
func (c *Cursor) popNextSet() bool {
	if c.nextSetIdx >= len(c.rowSets) {
		return false
	}
	set := c.rowSets[c.nextSetIdx]
	c.rowCount = set.rowCount
	c.columns = set.columns
	c.rows = set.rows
	c.idx = 0
	c.nextSetIdx++
	return true
}

// NextSet skips to the next available result set, discarding any
// remaining rows of the current one. It returns false with a nil error
// when no more sets remain.
func (c *Cursor) NextSet() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkNotClosed("get next result set"); err != nil {
		return false, err
	}
	if err := c.checkQueryExecuted("get next result set"); err != nil {
		return false, err
	}
	return c.popNextSet(), nil
}

// hasMoreSets reports whether at least one buffered result set has not
// been activated yet.
func (c *Cursor) hasMoreSets() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nextSetIdx < len(c.rowSets)
}

// --- Fetching ---

// nextRange reserves the next fetch window of at most size rows and
// advances the fetch position past it. Callers hold at least the read
// lock; the position itself is serialized separately so concurrent
// readers never observe overlapping windows.
func (c *Cursor) nextRange(size int) (int, int, error) {
	if c.rows == nil {
		return 0, 0, &DataError{Message: "no rows to fetch"}
	}

	c.idxMu.Lock()
	defer c.idxMu.Unlock()
	left := c.idx
	right := left + size
	if right > len(c.rows) {
		right = len(c.rows)
	}
	if left > right {
		left = right
	}
	c.idx = right
	return left, right, nil
}

// parseRow converts one raw row into typed values using the active
// result set's column types, pairing by ordinal position.
func (c *Cursor) parseRow(row []any) ([]any, error) {
	if len(row) != len(c.columns) {
		return nil, &DataError{Message: fmt.Sprintf(
			"invalid row length: expected %d values, got %d", len(c.columns), len(row))}
	}
	parsed := make([]any, len(row))
	for i, value := range row {
		typed, err := ParseValue(value, c.columns[i].Type)
		if err != nil {
			return nil, err
		}
		parsed[i] = typed
	}
	return parsed, nil
}

// FetchOne fetches the next row of the active result set, or nil when
// the rows are exhausted.
func (c *Cursor) FetchOne() ([]any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.checkNotClosed("fetch one"); err != nil {
		return nil, err
	}
	if err := c.checkQueryExecuted("fetch one"); err != nil {
		return nil, err
	}

	left, right, err := c.nextRange(1)
	if err != nil {
		return nil, err
	}
	if left == right {
		return nil, nil
	}
	return c.parseRow(c.rows[left])
}

// FetchMany fetches the next size rows of the active result set. A size
// below one falls back to the cursor's array size. Fewer rows, or none,
// are returned when the set runs out.
func (c *Cursor) FetchMany(size int) ([][]any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.checkNotClosed("fetch many"); err != nil {
		return nil, err
	}
	if err := c.checkQueryExecuted("fetch many"); err != nil {
		return nil, err
	}

	if size < 1 {
		size = c.arraySize
	}
	return c.fetchRange(size)
}

// FetchAll fetches all remaining rows of the active result set.
func (c *Cursor) FetchAll() ([][]any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.checkNotClosed("fetch all"); err != nil {
		return nil, err
	}
	if err := c.checkQueryExecuted("fetch all"); err != nil {
		return nil, err
	}

	return c.fetchRange(len(c.rows))
}

func (c *Cursor) fetchRange(size int) ([][]any, error) {
	left, right, err := c.nextRange(size)
	if err != nil {
		return nil, err
	}
	rows := make([][]any, 0, right-left)
	for _, row := range c.rows[left:right] {
		parsed, err := c.parseRow(row)
		if err != nil {
			return nil, err
		}
		rows = append(rows, parsed)
	}
	return rows, nil
}

// containsCredentials reports whether a query carries credentials, such
// as CREATE EXTERNAL TABLE, and therefore must not be logged.
func containsCredentials(query string) bool {
	lower := strings.ToLower(query)
	return strings.Contains(lower, "aws_key_id") || strings.Contains(lower, "credentials")
}
