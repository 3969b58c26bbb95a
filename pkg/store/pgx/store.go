// Package pgx implements the graph and vector stores on PostgreSQL with
// pgvector. Metadata filters are compiled to SQL and pushed into the
// similarity query instead of filtering in process.
package pgx

import (
	"context"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// Store implements store.GraphStore and store.VectorStore against one
// connection or pool.
type Store struct {
	conn pgxIConn
	// bulkChunkSize bounds rows per write transaction.
	bulkChunkSize int
}

type StoreOption func(*Store)

// WithBulkChunkSize overrides the number of rows written per transaction.
func WithBulkChunkSize(size int) StoreOption {
	return func(s *Store) {
		if size > 0 {
			s.bulkChunkSize = size
		}
	}
}

// NewStoreWithConnection creates a store on an existing connection. Tests
// hand in a single connection; production hands in a pool.
func NewStoreWithConnection(conn pgxIConn, opts ...StoreOption) *Store {
	s := &Store{
		conn:          conn,
		bulkChunkSize: 1000,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// NewStore connects a pool to the given database URL and registers the
// pgvector types on every connection.
func NewStore(ctx context.Context, databaseURL string, opts ...StoreOption) (*Store, *pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, nil, err
	}
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgxv5.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return NewStoreWithConnection(pool, opts...), pool, nil
}
