package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"driftcast/internal/models"
)

var ErrRenderJobNotFound = errors.New("render job not found")

type RenderJobRepository struct {
	db *pgxpool.Pool
}

func NewRenderJobRepository(db *pgxpool.Pool) *RenderJobRepository {
	return &RenderJobRepository{db: db}
}

const renderJobColumns = `
	j.id, j.spec_json, j.audio_media_item_id, j.image_media_item_id,
	j.output_media_item_id, j.requested_by, j.status, j.error_message,
	j.scheduled_for, j.created_at, j.started_at, j.finished_at`

func scanRenderJob(row pgx.Row) (*models.RenderJob, error) {
	var j models.RenderJob
	err := row.Scan(
		&j.ID,
		&j.Spec,
		&j.AudioMediaItemID,
		&j.ImageMediaItemID,
		&j.OutputMediaItemID,
		&j.RequestedBy,
		&j.Status,
		&j.ErrorMessage,
		&j.ScheduledFor,
		&j.CreatedAt,
		&j.StartedAt,
		&j.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *RenderJobRepository) Create(ctx context.Context, j *models.RenderJob) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO render_jobs
			(id, spec_json, audio_media_item_id, image_media_item_id, requested_by, status, scheduled_for)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at
	`, j.ID, j.Spec, j.AudioMediaItemID, j.ImageMediaItemID, j.RequestedBy, models.JobPending, j.ScheduledFor).
		Scan(&j.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateJob
	}
	return err
}

func (r *RenderJobRepository) Get(ctx context.Context, id string) (*models.RenderJob, error) {
	j, err := scanRenderJob(r.db.QueryRow(ctx,
		`SELECT`+renderJobColumns+` FROM render_jobs j WHERE j.id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRenderJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return j, r.attachMedia(ctx, j)
}

// attachMedia loads the legacy single-media relations so the resolver can
// reuse them without extra lookups.
func (r *RenderJobRepository) attachMedia(ctx context.Context, j *models.RenderJob) error {
	var ids []int64
	if j.AudioMediaItemID != nil {
		ids = append(ids, *j.AudioMediaItemID)
	}
	if j.ImageMediaItemID != nil {
		ids = append(ids, *j.ImageMediaItemID)
	}
	if len(ids) == 0 {
		return nil
	}

	items, err := NewMediaRepository(r.db).GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i := range items {
		item := items[i]
		if j.AudioMediaItemID != nil && item.ID == *j.AudioMediaItemID {
			j.AudioItem = &item
		}
		if j.ImageMediaItemID != nil && item.ID == *j.ImageMediaItemID {
			j.ImageItem = &item
		}
	}
	return nil
}

func (r *RenderJobRepository) List(ctx context.Context, requestedBy string, limit int) ([]models.RenderJob, error) {
	rows, err := r.db.Query(ctx, `
		SELECT`+renderJobColumns+`
		FROM render_jobs j
		WHERE j.requested_by=$1
		ORDER BY j.created_at DESC
		LIMIT $2
	`, requestedBy, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RenderJob
	for rows.Next() {
		j, err := scanRenderJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

// CountRunning reports how many of the requester's jobs are currently RUNNING.
func (r *RenderJobRepository) CountRunning(ctx context.Context, requestedBy string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM render_jobs WHERE requested_by=$1 AND status=$2`,
		requestedBy, models.JobRunning).Scan(&n)
	return n, err
}

// ListDuePending returns up to limit PENDING job IDs for the requester whose
// scheduled_for is null or past, oldest-created first.
func (r *RenderJobRepository) ListDuePending(ctx context.Context, requestedBy string, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM render_jobs
		WHERE requested_by=$1 AND status=$2
		  AND (scheduled_for IS NULL OR scheduled_for <= now())
		ORDER BY created_at ASC
		LIMIT $3
	`, requestedBy, models.JobPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ClaimPending atomically transitions the given IDs from PENDING to RUNNING
// and returns the IDs actually won. Rows a concurrent claimer already flipped
// fail the status predicate and are silently dropped; that is the
// at-most-one-claimer property.
func (r *RenderJobRepository) ClaimPending(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, `
		UPDATE render_jobs
		SET status=$1, started_at=now(), error_message=NULL
		WHERE id = ANY($2) AND status=$3
		RETURNING id
	`, models.JobRunning, ids, models.JobPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claimed []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		claimed = append(claimed, id)
	}
	return claimed, rows.Err()
}

// HasDuePending reports whether any due PENDING job exists at all. Used by the
// trigger endpoint to short-circuit with "no work".
func (r *RenderJobRepository) HasDuePending(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM render_jobs
			WHERE status=$1 AND (scheduled_for IS NULL OR scheduled_for <= now())
		)
	`, models.JobPending).Scan(&exists)
	return exists, err
}

func (r *RenderJobRepository) MarkRunning(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE render_jobs
		SET status=$2, started_at=COALESCE(started_at, now()), error_message=NULL
		WHERE id=$1
	`, id, models.JobRunning)
	return err
}

func (r *RenderJobRepository) MarkFailed(ctx context.Context, id, message string) error {
	if len(message) > 2000 {
		message = message[:2000]
	}
	_, err := r.db.Exec(ctx, `
		UPDATE render_jobs
		SET status=$2, finished_at=now(), error_message=$3
		WHERE id=$1
	`, id, models.JobFailed, message)
	return err
}

// CompleteWithOutput creates the output media record and flips the job to
// SUCCESS in one transaction. The output row must never exist without the job
// reflecting it, and vice versa.
func (r *RenderJobRepository) CompleteWithOutput(ctx context.Context, jobID string, output models.MediaItem) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var outputID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO media_items (remote_id, name, mime_type, size_bytes, folder_path, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, output.RemoteID, output.Name, output.MimeType, output.SizeBytes, output.FolderPath, models.MediaActive).
		Scan(&outputID)
	if err != nil {
		return 0, err
	}

	cmd, err := tx.Exec(ctx, `
		UPDATE render_jobs
		SET status=$2, output_media_item_id=$3, finished_at=now(), error_message=NULL
		WHERE id=$1
	`, jobID, models.JobSuccess, outputID)
	if err != nil {
		return 0, err
	}
	if cmd.RowsAffected() == 0 {
		return 0, ErrRenderJobNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	return outputID, nil
}

// RequestersWithDuePending lists the distinct requesters that currently have
// a due PENDING job. The dispatch tick claims per requester so the
// per-requester ceiling applies.
func (r *RenderJobRepository) RequestersWithDuePending(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT requested_by FROM render_jobs
		WHERE status=$1 AND (scheduled_for IS NULL OR scheduled_for <= now())
	`, models.JobPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
