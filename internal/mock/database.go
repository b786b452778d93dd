// Package mock contains the test doubles shared by the context test suites.
package mock

import (
	"context"
	"database/sql"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

const queryTimeout = 5 * time.Second

// Connection is an in-memory stand-in for database.Connection backed by
// go-sqlmock. Tests script the expected queries through SQLMock.
type Connection struct {
	db      *sql.DB
	SQLMock sqlmock.Sqlmock
}

func (m Connection) CreateContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, queryTimeout)
}

func (m Connection) DB() *sql.DB {
	return m.db
}

func (m Connection) Close() {
	_ = m.DB().Close()
}

// MustCreateConnectionMock creates a Connection backed by a fresh sqlmock,
// panicking when the mock cannot be created.
func MustCreateConnectionMock() Connection {
	db, sqlMock, err := sqlmock.New()
	if err != nil {
		panic(err)
	}
	return Connection{
		db:      db,
		SQLMock: sqlMock,
	}
}

// DBResultOption scripts one expected database interaction on the mock.
type DBResultOption func(dbConn Connection)

// MockDBResults applies the given expectations to the connection, in order.
func MockDBResults(dbConn Connection, opts ...DBResultOption) {
	for _, opt := range opts {
		opt(dbConn)
	}
}
