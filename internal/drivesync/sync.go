// Package drivesync mirrors the remote media folder tree into the media_items
// table. The crawl is breadth-first from the configured root; files seen get
// upserted as ACTIVE, previously synced files that vanished get marked
// MISSING.
package drivesync

import (
	"context"
	"path"
	"sync"
	"time"

	"driftcast/internal/models"
	"driftcast/internal/pkg/errors"
	"driftcast/internal/pkg/logger"
	"driftcast/internal/ports"
)

// MediaRepo is the slice of the media repository the crawler writes through.
type MediaRepo interface {
	UpsertRemote(ctx context.Context, item models.MediaItem) (int64, error)
	MarkMissingExcept(ctx context.Context, seen []string) (int64, error)
}

type Syncer struct {
	storage      ports.RemoteStorage
	media        MediaRepo
	rootFolderID string
	log          *logger.Logger

	mu       sync.Mutex
	lastSync time.Time
}

func New(storage ports.RemoteStorage, media MediaRepo, rootFolderID string, log *logger.Logger) *Syncer {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Syncer{
		storage:      storage,
		media:        media,
		rootFolderID: rootFolderID,
		log:          log.WithComponent("drivesync"),
	}
}

type folder struct {
	id   string
	path string
}

// Sync crawls the remote tree once. An empty listing is treated as a probable
// outage rather than a mass deletion: nothing gets marked missing then.
func (s *Syncer) Sync(ctx context.Context) error {
	log := s.log.FromContext(ctx)
	log.Info("starting media sync", "root", s.rootFolderID)

	var seen []string
	upserts := 0

	queue := []folder{{id: s.rootFolderID, path: "/"}}
	for len(queue) > 0 {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		current := queue[0]
		queue = queue[1:]

		pageToken := ""
		for {
			page, err := s.storage.List(ctx, current.id, pageToken)
			if err != nil {
				return errors.Wrap(err, "drivesync.list",
					"failed to list folder "+current.path)
			}

			for _, entry := range page.Entries {
				if entry.IsFolder {
					queue = append(queue, folder{
						id:   entry.ID,
						path: path.Join(current.path, entry.Name),
					})
					continue
				}

				folderPath := current.path
				_, err := s.media.UpsertRemote(ctx, models.MediaItem{
					RemoteID:   entry.ID,
					Name:       entry.Name,
					MimeType:   entry.MimeType,
					SizeBytes:  entry.SizeBytes,
					FolderPath: &folderPath,
					Status:     models.MediaActive,
				})
				if err != nil {
					return errors.Wrap(err, "drivesync.upsert",
						"failed to upsert "+entry.Name)
				}
				seen = append(seen, entry.ID)
				upserts++
			}

			pageToken = page.NextPageToken
			if pageToken == "" {
				break
			}
		}
	}

	if len(seen) == 0 {
		log.Warn("sync saw no files, skipping missing sweep")
		s.markSynced()
		return nil
	}

	missing, err := s.media.MarkMissingExcept(ctx, seen)
	if err != nil {
		return errors.Wrap(err, "drivesync.sweep", "failed to mark missing files")
	}

	log.Info("media sync finished", "seen", upserts, "marked_missing", missing)
	s.markSynced()
	return nil
}

func (s *Syncer) markSynced() {
	s.mu.Lock()
	s.lastSync = time.Now()
	s.mu.Unlock()
}

// LastSync reports when the last crawl completed; zero if none has.
func (s *Syncer) LastSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}

// Tick adapts Sync to the scheduler's periodic task shape.
func (s *Syncer) Tick(ctx context.Context) (int, error) {
	if err := s.Sync(ctx); err != nil {
		return 0, err
	}
	return 1, nil
}
