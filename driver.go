package firebolt

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"reflect"
	"strings"
	"time"
)

func init() {
	sql.Register("firebolt", &fireboltDriver{})
}

// --- DSN Parsing ---

// dsnConfig holds the parsed DSN parameters.
type dsnConfig struct {
	username    string
	password    string
	database    string
	engineName  string
	engineURL   string
	apiEndpoint string
}

// parseDSN parses a Firebolt DSN string.
//
// Format: firebolt://user:password@[api_endpoint]/database?engine_name=...
//
// The host part, when present, overrides the API endpoint used for
// authentication. Exactly one of engine_name and engine_url must be set;
// that constraint is validated on connect.
func parseDSN(dsn string) (*dsnConfig, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid DSN: %w", err)
	}
	if u.Scheme != "firebolt" {
		return nil, fmt.Errorf("unsupported scheme %q: must be firebolt", u.Scheme)
	}

	cfg := &dsnConfig{}
	if u.User != nil {
		cfg.username = u.User.Username()
		if p, ok := u.User.Password(); ok {
			cfg.password = p
		}
	}
	cfg.apiEndpoint = u.Host
	cfg.database = strings.TrimPrefix(u.Path, "/")

	q := u.Query()
	cfg.engineName = q.Get("engine_name")
	cfg.engineURL = q.Get("engine_url")
	if endpoint := q.Get("api_endpoint"); endpoint != "" {
		cfg.apiEndpoint = endpoint
	}

	return cfg, nil
}

// config converts the DSN parameters to a connect Config.
func (cfg *dsnConfig) config() Config {
	return Config{
		Database:    cfg.database,
		Username:    cfg.username,
		Password:    cfg.password,
		EngineName:  cfg.engineName,
		EngineURL:   cfg.engineURL,
		APIEndpoint: cfg.apiEndpoint,
	}
}

// --- Driver ---

// fireboltDriver implements driver.Driver and driver.DriverContext.
type fireboltDriver struct{}

var _ driver.Driver = (*fireboltDriver)(nil)
var _ driver.DriverContext = (*fireboltDriver)(nil)

// Open implements driver.Driver.
func (d *fireboltDriver) Open(dsn string) (driver.Conn, error) {
	connector, err := NewConnector(dsn)
	if err != nil {
		return nil, err
	}
	return connector.Connect(context.Background())
}

// OpenConnector implements driver.DriverContext.
func (d *fireboltDriver) OpenConnector(dsn string) (driver.Connector, error) {
	return NewConnector(dsn)
}

// --- Connector ---

// fireboltConnector implements driver.Connector. Every Connect call opens
// its own logical connection; pooling is left to database/sql.
type fireboltConnector struct {
	cfg *dsnConfig
}

var _ driver.Connector = (*fireboltConnector)(nil)

// NewConnector creates a driver.Connector from a DSN string. Use it with
// sql.OpenDB.
func NewConnector(dsn string) (driver.Connector, error) {
	cfg, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}
	return &fireboltConnector{cfg: cfg}, nil
}

// Connect implements driver.Connector.
func (c *fireboltConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := Connect(ctx, c.cfg.config())
	if err != nil {
		return nil, err
	}
	return &fireboltConn{conn: conn}, nil
}

// Driver implements driver.Connector.
func (c *fireboltConnector) Driver() driver.Driver {
	return &fireboltDriver{}
}

// --- Connection ---

// fireboltConn implements driver.Conn, driver.QueryerContext and
// driver.ExecerContext.
type fireboltConn struct {
	conn *Connection
}

var _ driver.Conn = (*fireboltConn)(nil)
var _ driver.QueryerContext = (*fireboltConn)(nil)
var _ driver.ExecerContext = (*fireboltConn)(nil)

// Prepare implements driver.Conn.
func (c *fireboltConn) Prepare(query string) (driver.Stmt, error) {
	return &fireboltStmt{conn: c, query: query}, nil
}

// Close implements driver.Conn.
func (c *fireboltConn) Close() error {
	return c.conn.Close()
}

// Begin implements driver.Conn. Firebolt has no transactions.
func (c *fireboltConn) Begin() (driver.Tx, error) {
	return nil, &NotSupportedError{Message: "transactions are not supported"}
}

// QueryContext implements driver.QueryerContext.
func (c *fireboltConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	parameters, err := namedToParameters(args)
	if err != nil {
		return nil, err
	}

	cursor, err := c.conn.Cursor()
	if err != nil {
		return nil, err
	}
	if _, err := cursor.Execute(ctx, query, WithParameters(parameters...)); err != nil {
		cursor.Close()
		return nil, err
	}
	return &fireboltRows{cursor: cursor}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *fireboltConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	parameters, err := namedToParameters(args)
	if err != nil {
		return nil, err
	}

	cursor, err := c.conn.Cursor()
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	rowCount, err := cursor.Execute(ctx, query, WithParameters(parameters...))
	if err != nil {
		return nil, err
	}
	return &fireboltResult{rowCount: rowCount}, nil
}

// namedToParameters converts named values to a positional parameter
// slice. Named parameters are not supported.
func namedToParameters(args []driver.NamedValue) ([]any, error) {
	parameters := make([]any, len(args))
	for i, arg := range args {
		if arg.Name != "" {
			return nil, &NotSupportedError{Message: "named parameters are not supported"}
		}
		if b, ok := arg.Value.([]byte); ok {
			// Binary values travel as strings.
			parameters[i] = string(b)
			continue
		}
		parameters[i] = arg.Value
	}
	return parameters, nil
}

// --- Result ---

// fireboltResult implements driver.Result.
type fireboltResult struct {
	rowCount int
}

var _ driver.Result = (*fireboltResult)(nil)

// LastInsertId implements driver.Result. Firebolt does not support
// auto-increment ids.
func (r *fireboltResult) LastInsertId() (int64, error) {
	return 0, &NotSupportedError{Message: "LastInsertId is not supported"}
}

// RowsAffected implements driver.Result.
func (r *fireboltResult) RowsAffected() (int64, error) {
	if r.rowCount < 0 {
		return 0, nil
	}
	return int64(r.rowCount), nil
}

// --- Rows ---

// fireboltRows implements driver.Rows over a cursor's buffered result
// sets, including multi-statement queries via driver.RowsNextResultSet.
type fireboltRows struct {
	cursor *Cursor
}

var _ driver.Rows = (*fireboltRows)(nil)
var _ driver.RowsNextResultSet = (*fireboltRows)(nil)
var _ driver.RowsColumnTypeDatabaseTypeName = (*fireboltRows)(nil)
var _ driver.RowsColumnTypeScanType = (*fireboltRows)(nil)

// Columns implements driver.Rows.
func (r *fireboltRows) Columns() []string {
	columns, err := r.cursor.Description()
	if err != nil {
		return nil
	}
	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = col.Name
	}
	return names
}

// Close implements driver.Rows.
func (r *fireboltRows) Close() error {
	return r.cursor.Close()
}

// Next implements driver.Rows.
func (r *fireboltRows) Next(dest []driver.Value) error {
	columns, err := r.cursor.Description()
	if err != nil {
		return err
	}
	if columns == nil {
		// The statement produced no tabular data.
		return io.EOF
	}

	row, err := r.cursor.FetchOne()
	if err != nil {
		return err
	}
	if row == nil {
		return io.EOF
	}
	for i := range dest {
		if i >= len(row) {
			dest[i] = nil
			continue
		}
		value, err := toDriverValue(row[i])
		if err != nil {
			return err
		}
		dest[i] = value
	}
	return nil
}

// HasNextResultSet implements driver.RowsNextResultSet.
func (r *fireboltRows) HasNextResultSet() bool {
	return r.cursor.hasMoreSets()
}

// NextResultSet implements driver.RowsNextResultSet.
func (r *fireboltRows) NextResultSet() error {
	ok, err := r.cursor.NextSet()
	if err != nil {
		return err
	}
	if !ok {
		return io.EOF
	}
	return nil
}

// ColumnTypeDatabaseTypeName implements
// driver.RowsColumnTypeDatabaseTypeName.
func (r *fireboltRows) ColumnTypeDatabaseTypeName(index int) string {
	columns, err := r.cursor.Description()
	if err != nil || index < 0 || index >= len(columns) {
		return ""
	}
	if columns[index].Type.Kind == KindArray {
		return "ARRAY"
	}
	return strings.ToUpper(columns[index].Type.String())
}

// ColumnTypeScanType implements driver.RowsColumnTypeScanType.
func (r *fireboltRows) ColumnTypeScanType(index int) reflect.Type {
	columns, err := r.cursor.Description()
	if err != nil || index < 0 || index >= len(columns) {
		return reflect.TypeOf("")
	}
	switch columns[index].Type.Kind {
	case KindInt:
		return reflect.TypeOf(int64(0))
	case KindFloat:
		return reflect.TypeOf(float64(0))
	case KindDate, KindDateTime:
		return reflect.TypeOf(time.Time{})
	default:
		// String and arrays (arrays are scanned as JSON strings)
		return reflect.TypeOf("")
	}
}

// toDriverValue converts a typed cursor value into one of the types
// driver.Value permits. Dates become midnight UTC timestamps; arrays
// become JSON strings.
func toDriverValue(value any) (driver.Value, error) {
	switch v := value.(type) {
	case Date:
		return time.Date(v.Year, v.Month, v.Day, 0, 0, 0, 0, time.UTC), nil
	case []any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case json.Number:
		return v.String(), nil
	}
	return value, nil
}

// --- Statement ---

// fireboltStmt implements driver.Stmt, driver.StmtQueryContext and
// driver.StmtExecContext.
type fireboltStmt struct {
	conn  *fireboltConn
	query string
}

var _ driver.Stmt = (*fireboltStmt)(nil)
var _ driver.StmtQueryContext = (*fireboltStmt)(nil)
var _ driver.StmtExecContext = (*fireboltStmt)(nil)

// Close implements driver.Stmt.
func (s *fireboltStmt) Close() error {
	return nil
}

// NumInput implements driver.Stmt. Returns -1 to disable driver-side
// validation.
func (s *fireboltStmt) NumInput() int {
	return -1
}

// Exec implements driver.Stmt.
func (s *fireboltStmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), namedValues(args))
}

// Query implements driver.Stmt.
func (s *fireboltStmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), namedValues(args))
}

// ExecContext implements driver.StmtExecContext.
func (s *fireboltStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	return s.conn.ExecContext(ctx, s.query, args)
}

// QueryContext implements driver.StmtQueryContext.
func (s *fireboltStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return s.conn.QueryContext(ctx, s.query, args)
}

// namedValues converts positional args to a NamedValue slice.
func namedValues(args []driver.Value) []driver.NamedValue {
	named := make([]driver.NamedValue, len(args))
	for i, v := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return named
}
