package firebolt

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// queryData is the JSONCompact document the engine returns for a
// statement that produced tabular data.
type queryData struct {
	// Rows is the number of rows in the result
	Rows *int `json:"rows"`

	// Meta describes the result columns in order
	Meta []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"meta"`

	// Data holds the raw rows; values stay untyped until fetched
	Data [][]any `json:"data"`
}

// rowSet buffers one decoded statement result. For statements that
// produce no tabular data (INSERT, DDL) columns and rows are nil and
// rowCount is -1.
type rowSet struct {
	rowCount int
	columns  []Column
	rows     [][]any
}

// decodeRowSet decodes a single statement response into a rowSet,
// consuming and closing the response body. An empty body means the
// statement produced no result set.
func decodeRowSet(resp *http.Response) (rowSet, error) {
	defer resp.Body.Close()

	// Empty response is returned for insert and DDL queries.
	if resp.ContentLength == 0 {
		return rowSet{rowCount: -1}, nil
	}

	decoder := json.NewDecoder(resp.Body)
	// Keep numbers as json.Number so Int64 values survive decoding intact.
	decoder.UseNumber()

	var payload queryData
	if err := decoder.Decode(&payload); err != nil {
		return rowSet{}, &DataError{Message: fmt.Sprintf("invalid query data format: %v", err)}
	}
	if payload.Rows == nil || payload.Meta == nil || payload.Data == nil {
		return rowSet{}, &DataError{Message: "invalid query data format: missing rows, meta or data"}
	}

	columns := make([]Column, len(payload.Meta))
	for i, meta := range payload.Meta {
		columns[i] = Column{Name: meta.Name, Type: ParseType(meta.Type)}
	}

	return rowSet{
		rowCount: *payload.Rows,
		columns:  columns,
		rows:     payload.Data,
	}, nil
}
