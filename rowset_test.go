package firebolt

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jsonResponse wraps a body string into the minimal *http.Response
// decodeRowSet needs.
func jsonResponse(body string) *http.Response {
	return &http.Response{
		StatusCode:    http.StatusOK,
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

func TestDecodeRowSet(t *testing.T) {
	t.Run("tabular result", func(t *testing.T) {
		set, err := decodeRowSet(jsonResponse(`{
			"meta": [
				{"name": "id", "type": "Int32"},
				{"name": "name", "type": "Nullable(String)"}
			],
			"data": [[1, "alice"], [2, null]],
			"rows": 2
		}`))
		require.NoError(t, err)

		assert.Equal(t, 2, set.rowCount)
		require.Len(t, set.columns, 2)
		assert.Equal(t, "id", set.columns[0].Name)
		assert.Equal(t, KindInt, set.columns[0].Type.Kind)
		assert.Equal(t, "name", set.columns[1].Name)
		assert.Equal(t, KindString, set.columns[1].Type.Kind)

		// Values stay raw; big ints survive as json.Number.
		require.Len(t, set.rows, 2)
		assert.Equal(t, json.Number("1"), set.rows[0][0])
		assert.Nil(t, set.rows[1][1])
	})

	t.Run("empty body means no result set", func(t *testing.T) {
		set, err := decodeRowSet(jsonResponse(""))
		require.NoError(t, err)
		assert.Equal(t, rowSet{rowCount: -1}, set)
	})

	t.Run("zero rows", func(t *testing.T) {
		set, err := decodeRowSet(jsonResponse(`{
			"meta": [{"name": "id", "type": "Int32"}],
			"data": [],
			"rows": 0
		}`))
		require.NoError(t, err)
		assert.Equal(t, 0, set.rowCount)
		assert.Empty(t, set.rows)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := decodeRowSet(jsonResponse("{broken"))
		var dataErr *DataError
		require.ErrorAs(t, err, &dataErr)
		assert.Contains(t, dataErr.Message, "invalid query data format")
	})

	t.Run("missing fields", func(t *testing.T) {
		for _, body := range []string{
			`{"meta": [], "data": []}`,
			`{"rows": 0, "data": []}`,
			`{"rows": 0, "meta": []}`,
			`{}`,
		} {
			_, err := decodeRowSet(jsonResponse(body))
			var dataErr *DataError
			require.ErrorAs(t, err, &dataErr)
			assert.Equal(t, "invalid query data format: missing rows, meta or data", dataErr.Message)
		}
	})
}
