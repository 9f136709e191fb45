package engine

import (
	"database/sql"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// Open opens a SQLite database using the modernc.org/sqlite driver.
//
// For file-based databases, pass a path like "./db.sqlite". For in-memory
// databases, pass ":memory:" — but prefer OpenSingle there, because under
// connection pooling every pooled connection would otherwise see a
// different private in-memory database.
func Open(dsn string) (*sql.DB, error) { return sql.Open("sqlite", dsn) }

// OpenSingle opens a SQLite database restricted to a single underlying
// connection. Required for in-memory databases and useful anywhere the
// caller wants temp objects and session state to stay on one connection.
func OpenSingle(dsn string) (*sql.DB, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
