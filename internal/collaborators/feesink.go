package collaborators

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresFeeSink is a PostgreSQL-backed fee ledger: every Transfer call
// appends one row to the fee_ledger table, giving the deployment an
// auditable trail of every registration and execution fee collected.
type PostgresFeeSink struct {
	db *pgxpool.Pool
}

// NewPostgresFeeSink creates a new PostgresFeeSink.
func NewPostgresFeeSink(db *pgxpool.Pool) *PostgresFeeSink {
	return &PostgresFeeSink{db: db}
}

// Transfer implements engine.FeeSink by recording amount into the ledger.
func (s *PostgresFeeSink) Transfer(ctx context.Context, amount uint64) error {
	_, err := s.db.Exec(ctx, "INSERT INTO fee_ledger (amount) VALUES ($1)", amount)
	return err
}

// Balance sums every recorded transfer. Exposed for admin/diagnostic use;
// not part of engine.FeeSink.
func (s *PostgresFeeSink) Balance(ctx context.Context) (uint64, error) {
	var total uint64
	err := s.db.QueryRow(ctx, "SELECT COALESCE(SUM(amount), 0) FROM fee_ledger").Scan(&total)
	return total, err
}

// InMemoryFeeSink is a process-local fee sink for tests and single-node
// demo deployments that run without a database.
type InMemoryFeeSink struct {
	mu    sync.Mutex
	total uint64
}

// Transfer implements engine.FeeSink.
func (s *InMemoryFeeSink) Transfer(ctx context.Context, amount uint64) error {
	s.mu.Lock()
	s.total += amount
	s.mu.Unlock()
	return nil
}

// Balance returns the running total collected so far.
func (s *InMemoryFeeSink) Balance() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}
