package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"driftcast/internal/models"
)

// LeaseRepository mutates the singleton scheduler lease row. Every write is a
// conditional update scoped by (name, holder); the row itself is the source of
// truth for leadership, never in-process state.
type LeaseRepository struct {
	db *pgxpool.Pool
}

func NewLeaseRepository(db *pgxpool.Pool) *LeaseRepository {
	return &LeaseRepository{db: db}
}

// Acquire claims the lease for holder iff the row does not exist, is already
// held by this holder, has been released, or has expired. Returns true when
// the claim succeeded.
func (r *LeaseRepository) Acquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	expiresAt := time.Now().UTC().Add(ttl)

	var got string
	err := r.db.QueryRow(ctx, `
		INSERT INTO scheduler_leases (name, holder, expires_at, updated_at)
		VALUES ($1,$2,$3,now())
		ON CONFLICT (name) DO UPDATE
		SET holder=EXCLUDED.holder, expires_at=EXCLUDED.expires_at, updated_at=now()
		WHERE scheduler_leases.holder = EXCLUDED.holder
		   OR scheduler_leases.holder = ''
		   OR scheduler_leases.expires_at < now()
		RETURNING holder
	`, name, holder, expiresAt).Scan(&got)

	if errors.Is(err, pgx.ErrNoRows) {
		// Another instance holds a live lease; the conditional upsert
		// matched nothing.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return got == holder, nil
}

// Renew extends the lease iff this holder still owns it. Zero rows means the
// lease was lost to expiry or manual intervention.
func (r *LeaseRepository) Renew(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	expiresAt := time.Now().UTC().Add(ttl)

	cmd, err := r.db.Exec(ctx, `
		UPDATE scheduler_leases
		SET expires_at=$3, updated_at=now()
		WHERE name=$1 AND holder=$2
	`, name, holder, expiresAt)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// Release clears the holder iff this holder still owns the lease. Releasing a
// lease someone else took over is a no-op.
func (r *LeaseRepository) Release(ctx context.Context, name, holder string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE scheduler_leases
		SET holder='', updated_at=now()
		WHERE name=$1 AND holder=$2
	`, name, holder)
	return err
}

// Get reads the lease row, for diagnostics.
func (r *LeaseRepository) Get(ctx context.Context, name string) (*models.SchedulerLease, error) {
	var l models.SchedulerLease
	err := r.db.QueryRow(ctx, `
		SELECT name, holder, expires_at, updated_at
		FROM scheduler_leases WHERE name=$1
	`, name).Scan(&l.Name, &l.Holder, &l.ExpiresAt, &l.UpdatedAt)
	if isUndefinedTable(err) {
		return nil, ErrSchemaMissing
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}
