package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"driftcast/internal/models"
)

var ErrUploadJobNotFound = errors.New("upload job not found")

type UploadJobRepository struct {
	db *pgxpool.Pool
}

func NewUploadJobRepository(db *pgxpool.Pool) *UploadJobRepository {
	return &UploadJobRepository{db: db}
}

const uploadJobColumns = `
	j.id, j.media_item_id, j.title, j.description, j.privacy, j.requested_by,
	j.status, j.error_message, j.scheduled_for, j.created_at, j.finished_at, j.video_id`

func scanUploadJob(row pgx.Row) (*models.UploadJob, error) {
	var j models.UploadJob
	err := row.Scan(
		&j.ID,
		&j.MediaItemID,
		&j.Title,
		&j.Description,
		&j.Privacy,
		&j.RequestedBy,
		&j.Status,
		&j.ErrorMessage,
		&j.ScheduledFor,
		&j.CreatedAt,
		&j.FinishedAt,
		&j.VideoID,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *UploadJobRepository) Create(ctx context.Context, j *models.UploadJob) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO upload_jobs
			(id, media_item_id, title, description, privacy, requested_by, status, scheduled_for)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at
	`, j.ID, j.MediaItemID, j.Title, j.Description, j.Privacy, j.RequestedBy, models.JobPending, j.ScheduledFor).
		Scan(&j.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateJob
	}
	return err
}

func (r *UploadJobRepository) Get(ctx context.Context, id string) (*models.UploadJob, error) {
	j, err := scanUploadJob(r.db.QueryRow(ctx,
		`SELECT`+uploadJobColumns+` FROM upload_jobs j WHERE j.id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUploadJobNotFound
	}
	if err != nil {
		return nil, err
	}

	item, err := NewMediaRepository(r.db).Get(ctx, j.MediaItemID)
	if err != nil && !errors.Is(err, ErrMediaNotFound) {
		return nil, err
	}
	j.MediaItem = item
	return j, nil
}

func (r *UploadJobRepository) CountRunning(ctx context.Context, requestedBy string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM upload_jobs WHERE requested_by=$1 AND status=$2`,
		requestedBy, models.JobRunning).Scan(&n)
	return n, err
}

func (r *UploadJobRepository) ListDuePending(ctx context.Context, requestedBy string, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM upload_jobs
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

// ClaimPending is the upload-job instance of the conditional claim; see
// RenderJobRepository.ClaimPending.
func (r *UploadJobRepository) ClaimPending(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, `
		UPDATE upload_jobs
		SET status=$1, error_message=NULL
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

func (r *UploadJobRepository) HasDuePending(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM upload_jobs
			WHERE status=$1 AND (scheduled_for IS NULL OR scheduled_for <= now())
		)
	`, models.JobPending).Scan(&exists)
	return exists, err
}

func (r *UploadJobRepository) RequestersWithDuePending(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT requested_by FROM upload_jobs
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

func (r *UploadJobRepository) MarkFailed(ctx context.Context, id, message string) error {
	if len(message) > 2000 {
		message = message[:2000]
	}
	_, err := r.db.Exec(ctx, `
		UPDATE upload_jobs
		SET status=$2, finished_at=now(), error_message=$3
		WHERE id=$1
	`, id, models.JobFailed, message)
	return err
}

// CompletePublished records the platform video ID, flips the job to SUCCESS,
// and marks the source media item UPLOADED, all in one transaction.
func (r *UploadJobRepository) CompletePublished(ctx context.Context, id, videoID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var mediaItemID int64
	err = tx.QueryRow(ctx, `
		UPDATE upload_jobs
		SET status=$2, video_id=$3, finished_at=now(), error_message=NULL
		WHERE id=$1
		RETURNING media_item_id
	`, id, models.JobSuccess, videoID).Scan(&mediaItemID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUploadJobNotFound
	}
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE media_items SET status=$2, updated_at=now() WHERE id=$1`,
		mediaItemID, models.MediaUploaded)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}
