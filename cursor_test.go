package firebolt

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testCursor returns a cursor detached from any transport, for testing
// the state machine and fetch logic in isolation.
func testCursor(t *testing.T) *Cursor {
	t.Helper()
	client, err := NewClient("http://localhost", "user", "password", "http://localhost")
	require.NoError(t, err)
	conn := &Connection{client: client, database: "db"}
	cursor, err := conn.Cursor()
	require.NoError(t, err)
	return cursor
}

// seedRows loads result sets into a cursor as if a query had produced
// them.
func seedRows(c *Cursor, sets ...rowSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
	for _, set := range sets {
		c.appendRowSet(set)
	}
	c.state = stateDone
}

func intSet(values ...int) rowSet {
	rows := make([][]any, len(values))
	for i, v := range values {
		rows[i] = []any{v}
	}
	return rowSet{
		rowCount: len(values),
		columns:  []Column{{Name: "n", Type: ColumnType{Kind: KindInt}}},
		rows:     rows,
	}
}

func TestCursor_Preconditions(t *testing.T) {
	t.Run("fetch before execute", func(t *testing.T) {
		cursor := testCursor(t)
		defer cursor.Close()

		var notRun *QueryNotRunError
		_, err := cursor.FetchOne()
		assert.ErrorAs(t, err, &notRun)
		_, err = cursor.FetchMany(5)
		assert.ErrorAs(t, err, &notRun)
		_, err = cursor.FetchAll()
		assert.ErrorAs(t, err, &notRun)
		_, err = cursor.NextSet()
		assert.ErrorAs(t, err, &notRun)
	})

	t.Run("accessors before execute", func(t *testing.T) {
		cursor := testCursor(t)
		defer cursor.Close()

		columns, err := cursor.Description()
		require.NoError(t, err)
		assert.Nil(t, columns)

		rowCount, err := cursor.RowCount()
		require.NoError(t, err)
		assert.Equal(t, -1, rowCount)
	})

	t.Run("operations after close", func(t *testing.T) {
		cursor := testCursor(t)
		require.NoError(t, cursor.Close())
		assert.True(t, cursor.Closed())

		var closed *CursorClosedError
		_, err := cursor.Execute(context.Background(), "SELECT 1")
		assert.ErrorAs(t, err, &closed)
		_, err = cursor.Description()
		assert.ErrorAs(t, err, &closed)
		_, err = cursor.RowCount()
		assert.ErrorAs(t, err, &closed)
		_, err = cursor.FetchOne()
		assert.ErrorAs(t, err, &closed)
		_, err = cursor.NextSet()
		require.ErrorAs(t, err, &closed)
		assert.Contains(t, closed.Error(), "cursor closed")
	})

	t.Run("close is idempotent", func(t *testing.T) {
		cursor := testCursor(t)
		require.NoError(t, cursor.Close())
		require.NoError(t, cursor.Close())
	})
}

func TestCursor_ExecuteManyRequiresParameterSets(t *testing.T) {
	cursor := testCursor(t)
	defer cursor.Close()

	_, err := cursor.ExecuteMany(context.Background(), "INSERT INTO t VALUES (?)", nil)
	var ifaceErr *InterfaceError
	require.ErrorAs(t, err, &ifaceErr)
	assert.Equal(t, "at least one parameter set is required to execute many", ifaceErr.Message)

	_, err = cursor.ExecuteMany(context.Background(), "INSERT INTO t VALUES (?)", [][]any{})
	require.ErrorAs(t, err, &ifaceErr)
}

func TestCursor_ArraySize(t *testing.T) {
	cursor := testCursor(t)
	defer cursor.Close()

	assert.Equal(t, 1, cursor.ArraySize())

	cursor.SetArraySize(10)
	assert.Equal(t, 10, cursor.ArraySize())

	// Sizes below one are ignored.
	cursor.SetArraySize(0)
	assert.Equal(t, 10, cursor.ArraySize())
	cursor.SetArraySize(-5)
	assert.Equal(t, 10, cursor.ArraySize())
}

func TestCursor_FetchSequencing(t *testing.T) {
	cursor := testCursor(t)
	defer cursor.Close()
	seedRows(cursor, intSet(1, 2, 3, 4, 5))

	row, err := cursor.FetchOne()
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1)}, row)

	rows, err := cursor.FetchMany(2)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(2)}, {int64(3)}}, rows)

	rows, err = cursor.FetchAll()
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(4)}, {int64(5)}}, rows)

	// The set is exhausted from every fetch method's point of view.
	row, err = cursor.FetchOne()
	require.NoError(t, err)
	assert.Nil(t, row)

	rows, err = cursor.FetchMany(3)
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = cursor.FetchAll()
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCursor_FetchManySizeFallback(t *testing.T) {
	cursor := testCursor(t)
	defer cursor.Close()
	seedRows(cursor, intSet(1, 2, 3, 4, 5))
	cursor.SetArraySize(3)

	rows, err := cursor.FetchMany(0)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	// An oversized window is clamped to what remains.
	rows, err = cursor.FetchMany(100)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestCursor_NextSet(t *testing.T) {
	cursor := testCursor(t)
	defer cursor.Close()
	seedRows(cursor, intSet(1, 2), intSet(3))

	// The first set is active right away.
	rowCount, err := cursor.RowCount()
	require.NoError(t, err)
	assert.Equal(t, 2, rowCount)
	assert.True(t, cursor.hasMoreSets())

	more, err := cursor.NextSet()
	require.NoError(t, err)
	require.True(t, more)

	rowCount, err = cursor.RowCount()
	require.NoError(t, err)
	assert.Equal(t, 1, rowCount)

	rows, err := cursor.FetchAll()
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(3)}}, rows)

	assert.False(t, cursor.hasMoreSets())
	more, err = cursor.NextSet()
	require.NoError(t, err)
	assert.False(t, more)
}

// TestCursor_NextSetDiscardsRemainingRows verifies that advancing the
// set does not wait for the current one to be drained.
func TestCursor_NextSetDiscardsRemainingRows(t *testing.T) {
	cursor := testCursor(t)
	defer cursor.Close()
	seedRows(cursor, intSet(1, 2, 3), intSet(4))

	row, err := cursor.FetchOne()
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1)}, row)

	more, err := cursor.NextSet()
	require.NoError(t, err)
	require.True(t, more)

	rows, err := cursor.FetchAll()
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(4)}}, rows)
}

func TestCursor_EmptyResultSet(t *testing.T) {
	cursor := testCursor(t)
	defer cursor.Close()
	seedRows(cursor, rowSet{rowCount: -1})

	rowCount, err := cursor.RowCount()
	require.NoError(t, err)
	assert.Equal(t, -1, rowCount)

	columns, err := cursor.Description()
	require.NoError(t, err)
	assert.Nil(t, columns)

	var dataErr *DataError
	_, err = cursor.FetchAll()
	require.ErrorAs(t, err, &dataErr)
	assert.Equal(t, "no rows to fetch", dataErr.Message)
}

func TestCursor_InvalidRowLength(t *testing.T) {
	cursor := testCursor(t)
	defer cursor.Close()
	seedRows(cursor, rowSet{
		rowCount: 1,
		columns: []Column{
			{Name: "a", Type: ColumnType{Kind: KindInt}},
			{Name: "b", Type: ColumnType{Kind: KindString}},
		},
		rows: [][]any{{1}},
	})

	_, err := cursor.FetchOne()
	var dataErr *DataError
	require.ErrorAs(t, err, &dataErr)
	assert.Equal(t, "invalid row length: expected 2 values, got 1", dataErr.Message)
}

// TestCursor_ConcurrentFetches verifies that concurrent readers never
// observe overlapping fetch windows.
func TestCursor_ConcurrentFetches(t *testing.T) {
	const total = 200
	values := make([]int, total)
	for i := range values {
		values[i] = i
	}

	cursor := testCursor(t)
	defer cursor.Close()
	seedRows(cursor, intSet(values...))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool)
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				rows, err := cursor.FetchMany(7)
				if err != nil || len(rows) == 0 {
					return
				}
				mu.Lock()
				for _, row := range rows {
					seen[row[0].(int64)] = true
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, total)
}

func TestContainsCredentials(t *testing.T) {
	assert.True(t, containsCredentials("CREATE EXTERNAL TABLE t CREDENTIALS = (...)"))
	assert.True(t, containsCredentials("copy with AWS_KEY_ID = 'x'"))
	assert.False(t, containsCredentials("SELECT * FROM users"))
	assert.False(t, containsCredentials("SELECT 1"))
}
