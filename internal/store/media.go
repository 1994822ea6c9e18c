package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"driftcast/internal/models"
)

var ErrMediaNotFound = errors.New("media item not found")

type MediaRepository struct {
	db *pgxpool.Pool
}

func NewMediaRepository(db *pgxpool.Pool) *MediaRepository {
	return &MediaRepository{db: db}
}

const mediaColumns = `id, remote_id, name, mime_type, size_bytes, folder_path, status, created_at, updated_at`

func scanMediaItem(row pgx.Row) (*models.MediaItem, error) {
	var m models.MediaItem
	err := row.Scan(
		&m.ID,
		&m.RemoteID,
		&m.Name,
		&m.MimeType,
		&m.SizeBytes,
		&m.FolderPath,
		&m.Status,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MediaRepository) Get(ctx context.Context, id int64) (*models.MediaItem, error) {
	m, err := scanMediaItem(r.db.QueryRow(ctx,
		`SELECT `+mediaColumns+` FROM media_items WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMediaNotFound
	}
	return m, err
}

// GetByIDs batch-fetches media items. Missing IDs are simply absent from the
// result; the resolver decides whether that is an error.
func (r *MediaRepository) GetByIDs(ctx context.Context, ids []int64) ([]models.MediaItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+mediaColumns+` FROM media_items WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MediaItem
	for rows.Next() {
		m, err := scanMediaItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// UpsertRemote inserts or refreshes a crawled file keyed by its remote ID.
// A re-seen file always returns to ACTIVE; only a sync pass does that.
func (r *MediaRepository) UpsertRemote(ctx context.Context, item models.MediaItem) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO media_items (remote_id, name, mime_type, size_bytes, folder_path, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (remote_id) DO UPDATE
		SET name=EXCLUDED.name,
		    mime_type=EXCLUDED.mime_type,
		    size_bytes=EXCLUDED.size_bytes,
		    folder_path=EXCLUDED.folder_path,
		    status=$6,
		    updated_at=now()
		RETURNING id
	`, item.RemoteID, item.Name, item.MimeType, item.SizeBytes, item.FolderPath, models.MediaActive).Scan(&id)
	return id, err
}

// MarkMissingExcept marks every ACTIVE item with a synced folder path whose
// remote ID is not in seen as MISSING, returning the number of rows flipped.
// Callers must not invoke this with an empty seen set; the crawler guards that.
func (r *MediaRepository) MarkMissingExcept(ctx context.Context, seen []string) (int64, error) {
	cmd, err := r.db.Exec(ctx, `
		UPDATE media_items
		SET status=$1, updated_at=now()
		WHERE status=$2 AND folder_path IS NOT NULL AND NOT (remote_id = ANY($3))
	`, models.MediaMissing, models.MediaActive, seen)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
