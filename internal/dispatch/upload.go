package dispatch

import (
	"context"
	"fmt"

	"driftcast/internal/models"
	"driftcast/internal/pkg/errors"
	"driftcast/internal/pkg/logger"
	"driftcast/internal/ports"
)

// UploadStore is the slice of the upload-job repository the dispatcher needs
// beyond claiming.
type UploadStore interface {
	Get(ctx context.Context, id string) (*models.UploadJob, error)
	MarkFailed(ctx context.Context, id, message string) error
	CompletePublished(ctx context.Context, id, videoID string) error
}

// UploadDispatcher claims due upload jobs, streams each rendered file out of
// remote storage, and publishes it to the video platform.
type UploadDispatcher struct {
	claimer   *Claimer
	store     UploadStore
	storage   ports.RemoteStorage
	publisher ports.Publisher
	log       *logger.Logger
}

func NewUploadDispatcher(claimer *Claimer, store UploadStore, storage ports.RemoteStorage, publisher ports.Publisher, log *logger.Logger) *UploadDispatcher {
	if log == nil {
		log = logger.NewDefault()
	}
	return &UploadDispatcher{
		claimer:   claimer,
		store:     store,
		storage:   storage,
		publisher: publisher,
		log:       log.WithComponent("upload_dispatch"),
	}
}

func (d *UploadDispatcher) Tick(ctx context.Context) (int, error) {
	claimed, err := d.claimer.ClaimDue(ctx)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, id := range claimed {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}

		log := d.log.FromContext(ctx).WithJobID(id)
		if err := d.process(ctx, id); err != nil {
			msg := errors.FirstFrame(err)
			log.Error("upload job failed", "error", msg)
			if markErr := d.store.MarkFailed(ctx, id, msg); markErr != nil {
				log.Error("failed to persist upload failure", "error", markErr.Error())
			}
			continue
		}
		log.Info("upload job published")
		done++
	}
	return done, nil
}

func (d *UploadDispatcher) process(ctx context.Context, id string) error {
	job, err := d.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.MediaItem == nil {
		return errors.NotFound("media item", fmt.Sprintf("%d", job.MediaItemID))
	}

	rc, err := d.storage.Download(ctx, job.MediaItem.RemoteID)
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeDownloadFailed, "dispatch.upload",
			"failed to download rendered file")
	}
	defer rc.Close()

	videoID, err := d.publisher.Publish(ctx, ports.PublishRequest{
		Title:       job.Title,
		Description: job.Description,
		Privacy:     job.Privacy,
		MimeType:    job.MediaItem.MimeType,
		Body:        rc,
	})
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeUploadFailed, "dispatch.upload", "publish failed")
	}

	return d.store.CompletePublished(ctx, id, videoID)
}
