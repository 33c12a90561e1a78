package archive

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS stream_messages (
	id          uuid PRIMARY KEY,
	client_id   text NOT NULL,
	url         text NOT NULL,
	seq         bigint NOT NULL,
	received_at timestamptz NOT NULL,
	payload     jsonb NOT NULL
);
CREATE INDEX IF NOT EXISTS stream_messages_received_at_idx ON stream_messages (received_at);
`

var messageColumns = []string{"id", "client_id", "url", "seq", "received_at", "payload"}

// pgDB is the subset of *pgxpool.Pool the store uses.
type pgDB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Close()
}

// PostgresStore writes records with COPY. It owns the pool.
type PostgresStore struct {
	db pgDB

	mu     sync.Mutex
	closed bool
}

// NewPostgresStore creates the table if needed. db is usually a
// *pgxpool.Pool from database.Connect.
func NewPostgresStore(ctx context.Context, db pgDB) (*PostgresStore, error) {
	if _, err := db.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Append copies records into stream_messages.
func (s *PostgresStore) Append(ctx context.Context, records []Record) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if len(records) == 0 {
		return nil
	}

	n, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"stream_messages"},
		messageColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			r := records[i]
			return []any{r.ID, r.ClientID, r.URL, int64(r.Seq), r.ReceivedAt, []byte(r.Payload)}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy stream_messages: %w", err)
	}
	if n != int64(len(records)) {
		return fmt.Errorf("copy stream_messages: wrote %d of %d rows", n, len(records))
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.db.Close()
	return nil
}
