package database

import (
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const pgUniqueViolation = "23505"

var postgresDialect = dialect{
	name: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL UNIQUE CHECK (username <> ''),
			password TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS photos (
			photo_id BIGSERIAL PRIMARY KEY,
			id BIGINT NOT NULL REFERENCES users(id),
			image BYTEA NOT NULL,
			is_public TEXT NOT NULL DEFAULT 'no' CHECK (is_public IN ('yes', 'no')),
			"date" TEXT NOT NULL,
			"time" TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS photos_owner_idx ON photos (id)`,
	},
	rebind: rebindDollar,
	isUniqueViolation: func(err error) bool {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return pgErr.Code == pgUniqueViolation
		}
		return false
	},
}

// rebindDollar rewrites "?" placeholders into PostgreSQL's "$1", "$2", ...
func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func NewPostgresDatabase(connectionString string) (DatabaseService, error) {
	db, err := sql.Open("pgx", connectionString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	return &SQLDatabase{
		db:      db,
		dialect: postgresDialect,
		now:     time.Now,
	}, nil
}
