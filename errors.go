package firebolt

import (
	"fmt"
	"io"
	"net/http"
)

// InterfaceError indicates a misuse of the driver API contract, such as
// conflicting connect arguments or a missing required field.
type InterfaceError struct {
	// Message is the human-readable description of the misuse
	Message string
}

// Error implements the error interface for InterfaceError.
func (e *InterfaceError) Error() string {
	return fmt.Sprintf("firebolt: %s", e.Message)
}

// CursorClosedError is returned when an operation is attempted on a closed
// cursor. Op names the attempted operation.
type CursorClosedError struct {
	Op string
}

// Error implements the error interface for CursorClosedError.
func (e *CursorClosedError) Error() string {
	return fmt.Sprintf("firebolt: unable to %s: cursor closed", e.Op)
}

// ConnectionClosedError is returned when an operation is attempted on a
// closed connection.
type ConnectionClosedError struct {
	Op string
}

// Error implements the error interface for ConnectionClosedError.
func (e *ConnectionClosedError) Error() string {
	return fmt.Sprintf("firebolt: unable to %s: connection closed", e.Op)
}

// QueryNotRunError is returned when a fetch-style operation is attempted
// before any query has been executed on the cursor.
type QueryNotRunError struct {
	Op string
}

// Error implements the error interface for QueryNotRunError.
func (e *QueryNotRunError) Error() string {
	return fmt.Sprintf("firebolt: unable to %s: no query has been executed", e.Op)
}

// DataError indicates malformed or type-mismatched data: an invalid wire
// payload, an unconvertible value, or a parameter count mismatch.
type DataError struct {
	Message string
}

// Error implements the error interface for DataError.
func (e *DataError) Error() string {
	return fmt.Sprintf("firebolt: %s", e.Message)
}

// OperationalError indicates the server failed to execute a query.
// Message includes the server response body.
type OperationalError struct {
	Message string
}

// Error implements the error interface for OperationalError.
func (e *OperationalError) Error() string {
	return fmt.Sprintf("firebolt: error executing query: %s", e.Message)
}

// ProgrammingError indicates the server rejected a query, for example due
// to insufficient permissions.
type ProgrammingError struct {
	Message string
}

// Error implements the error interface for ProgrammingError.
func (e *ProgrammingError) Error() string {
	return fmt.Sprintf("firebolt: %s", e.Message)
}

// NotSupportedError indicates a feature that is intentionally not
// implemented, such as parameter substitution across multiple statements.
type NotSupportedError struct {
	Message string
}

// Error implements the error interface for NotSupportedError.
func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("firebolt: %s", e.Message)
}

// DatabaseNotFoundError indicates the configured database does not exist
// in the account.
type DatabaseNotFoundError struct {
	Database string
}

// Error implements the error interface for DatabaseNotFoundError.
func (e *DatabaseNotFoundError) Error() string {
	return fmt.Sprintf("firebolt: database %s does not exist", e.Database)
}

// EngineNotRunningError indicates the target engine is provisioned but not
// currently running.
type EngineNotRunningError struct {
	EngineURL string
}

// Error implements the error interface for EngineNotRunningError.
func (e *EngineNotRunningError) Error() string {
	return fmt.Sprintf("firebolt: engine %s needs to be running to run queries against it", e.EngineURL)
}

// EngineNotFoundError indicates no engine with the requested name exists
// in the account.
type EngineNotFoundError struct {
	EngineName string
}

// Error implements the error interface for EngineNotFoundError.
func (e *EngineNotFoundError) Error() string {
	return fmt.Sprintf("firebolt: engine %s does not exist", e.EngineName)
}

// AuthenticationError indicates a failure to obtain an access token from
// the authentication endpoint. It stores the cause and the endpoint.
type AuthenticationError struct {
	APIEndpoint string
	Cause       error
}

// Error implements the error interface for AuthenticationError.
func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("firebolt: failed to authenticate at %s: %v", e.APIEndpoint, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *AuthenticationError) Unwrap() error {
	return e.Cause
}

// HTTPError represents a generic HTTP error response from the server that
// no more specific error category covers.
type HTTPError struct {
	// StatusCode is the HTTP status code of the response
	StatusCode int

	// Message is the response body
	Message string
}

// Error implements the error interface for HTTPError.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("firebolt: %s (status code: %d)", e.Message, e.StatusCode)
}

// newHTTPError creates an HTTPError from an HTTP response.
// It reads the response body and closes it.
func newHTTPError(resp *http.Response) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &HTTPError{StatusCode: resp.StatusCode, Message: "unable to read response body"}
	}
	return &HTTPError{StatusCode: resp.StatusCode, Message: string(body)}
}
