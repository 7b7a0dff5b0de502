package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the query surface shared by *pgxpool.Pool, pgx.Tx and pgxmock.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Pool interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository reads provider schedules and writes appointments. Reads go to
// the pool, or to a transaction for a repository returned by WithTx.
type Repository struct {
	pool Pool
	db   DBTX
}

func NewRepository(pool Pool) *Repository {
	return &Repository{pool: pool, db: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	if r.pool == nil {
		return nil, errors.New("repository is bound to a transaction")
	}
	return r.pool.Begin(ctx)
}

// WithTx returns a repository whose reads run on tx.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{db: tx}
}

// LockProvider serialises commits for one provider until tx ends.
func (r *Repository) LockProvider(ctx context.Context, tx pgx.Tx, providerID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, providerID)
	return err
}

// IsConflict reports an exclusion-constraint violation, raised by the
// no-overlap constraint on appointments.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
