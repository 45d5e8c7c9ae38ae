package dedup

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pumpsync/internal/model"
)

// PgxPool is the minimal pool surface the Postgres store needs. It is
// implemented by *pgxpool.Pool and pgxmock.PgxPoolIface.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PG is the PostgreSQL-backed Store. Identities are stored verbatim so
// they round-trip exactly across connector restarts.
type PG struct {
	pool PgxPool
}

// NewPG constructs a Postgres-backed store over a live pool.
func NewPG(pool *pgxpool.Pool) *PG { return &PG{pool: pool} }

// NewPGWithQuerier constructs the store over any PgxPool (tests).
func NewPGWithQuerier(q PgxPool) *PG { return &PG{pool: q} }

// Seen reports whether the identity was already recorded.
func (s *PG) Seen(ctx context.Context, id model.EventIdentity) (bool, error) {
	const q = `SELECT 1 FROM seen_events WHERE identity=$1`
	var one int
	err := s.pool.QueryRow(ctx, q, string(id)).Scan(&one)
	switch err {
	case nil:
		return true, nil
	case pgx.ErrNoRows:
		return false, nil
	default:
		return false, err
	}
}

// MarkSeen records the identity; marking twice is a no-op.
func (s *PG) MarkSeen(ctx context.Context, id model.EventIdentity, eventTime time.Time) error {
	const q = `
INSERT INTO seen_events (identity, event_ts, marked_at)
VALUES ($1, $2, now())
ON CONFLICT (identity) DO NOTHING`
	_, err := s.pool.Exec(ctx, q, string(id), eventTime.UTC())
	return err
}

// Sweep deletes entries whose source event time is before the cutoff.
func (s *PG) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	const q = `DELETE FROM seen_events WHERE event_ts < $1`
	tag, err := s.pool.Exec(ctx, q, olderThan.UTC())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
