package database

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE CHECK (username <> ''),
			password TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS photos (
			photo_id INTEGER PRIMARY KEY AUTOINCREMENT,
			id INTEGER NOT NULL REFERENCES users(id),
			image BLOB NOT NULL,
			is_public TEXT NOT NULL DEFAULT 'no' CHECK (is_public IN ('yes', 'no')),
			"date" TEXT NOT NULL,
			"time" TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS photos_owner_idx ON photos (id)`,
	},
	rebind: func(query string) string { return query },
	isUniqueViolation: func(err error) bool {
		var sqliteErr *sqlite.Error
		if errors.As(err, &sqliteErr) {
			switch sqliteErr.Code() {
			case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
				return true
			case sqlite3.SQLITE_CONSTRAINT:
				// primary result code only, when extended codes are disabled
				return strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
			}
		}
		return false
	},
}

const foreignKeysPragma = "_pragma=foreign_keys(1)"

// withForeignKeys adds the foreign_keys pragma to the DSN, so every connection
// the pool opens enforces the photo owner reference.
func withForeignKeys(connectionString string) string {
	if strings.Contains(connectionString, "foreign_keys") {
		return connectionString
	}
	if strings.Contains(connectionString, "?") {
		return connectionString + "&" + foreignKeysPragma
	}
	return connectionString + "?" + foreignKeysPragma
}

func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	db, err := sql.Open("sqlite", withForeignKeys(connectionString))
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	return &SQLDatabase{
		db:      db,
		dialect: sqliteDialect,
		now:     time.Now,
	}, nil
}
