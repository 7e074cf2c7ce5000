// Package firebolt provides a Go client library for the Firebolt
// analytics database.
//
// The client authenticates against the Firebolt REST API, resolves
// engines by name, and executes SQL over HTTPS against a running
// engine. Results are buffered per statement and read through cursors.
//
// # Getting Started
//
// Open a connection and execute a query through a cursor:
//
//	conn, err := firebolt.Connect(ctx, firebolt.Config{
//	    Database:   "my_database",
//	    Username:   "user@example.com",
//	    Password:   "secret",
//	    EngineName: "my_engine",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	cursor, err := conn.Cursor()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cursor.Close()
//
//	if _, err := cursor.Execute(ctx, "SELECT * FROM my_table"); err != nil {
//	    log.Fatal(err)
//	}
//
//	for {
//	    row, err := cursor.FetchOne()
//	    if err != nil || row == nil {
//	        break
//	    }
//	    // process row
//	}
//
// # Parameters
//
// Queries may contain ? placeholders. Parameter values are formatted
// and escaped client side before the query is sent:
//
//	cursor.Execute(ctx, "SELECT * FROM t WHERE id = ? AND name = ?",
//	    firebolt.WithParameters(42, "O'Hara"))
//
// ExecuteMany runs the same statement once per parameter set:
//
//	cursor.ExecuteMany(ctx, "INSERT INTO t VALUES (?, ?)",
//	    [][]any{{1, "a"}, {2, "b"}})
//
// # database/sql
//
// The package also registers a database/sql driver named "firebolt":
//
//	db, err := sql.Open("firebolt",
//	    "firebolt://user@example.com:secret@/my_database?engine_name=my_engine")
package firebolt
