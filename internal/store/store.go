// Package store implements the persistence layer on PostgreSQL via pgx.
// The job-claim and lease updates here are the only cross-process
// synchronization in the system; both are conditional single-statement
// updates, never in-memory locks.
package store

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store bundles the per-table repositories over one connection pool.
type Store struct {
	Media      *MediaRepository
	RenderJobs *RenderJobRepository
	UploadJobs *UploadJobRepository
	Leases     *LeaseRepository
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{
		Media:      NewMediaRepository(pool),
		RenderJobs: NewRenderJobRepository(pool),
		UploadJobs: NewUploadJobRepository(pool),
		Leases:     NewLeaseRepository(pool),
	}
}
