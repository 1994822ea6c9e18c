// Package media resolves the media references of a render job to concrete
// storage records, validating that each item is the kind the spec expects.
package media

import (
	"context"
	"strings"

	"driftcast/internal/models"
	"driftcast/internal/pkg/errors"
	"driftcast/internal/renderspec"
)

// Store is the lookup surface the resolver needs from the persistence layer.
type Store interface {
	GetByIDs(ctx context.Context, ids []int64) ([]models.MediaItem, error)
}

// Resolved is a render job's media, ordered exactly as the normalized spec
// lists so the encode order is deterministic.
type Resolved struct {
	Spec       *renderspec.Spec
	AudioItems []models.MediaItem
	ImageItems []models.MediaItem
}

// Resolve maps the job's spec (or its legacy single-media columns when the
// spec carries no ID lists) to media records. Items already attached to the
// job are reused before hitting the store; remaining IDs are batch-fetched.
// MIME kinds are checked here, before anything is downloaded.
func Resolve(ctx context.Context, store Store, job *models.RenderJob, spec *renderspec.Spec) (*Resolved, error) {
	if spec == nil {
		parsed, err := renderspec.Parse(job.Spec)
		if err != nil {
			return nil, err
		}
		spec = parsed
	}

	audioIDs := legacyFallback(specAudios(spec), job.AudioMediaItemID)
	if len(audioIDs) == 0 {
		return nil, errors.InvalidSpec("audio list must not be empty")
	}

	var imageIDs []int64
	if spec == nil || spec.Mode == renderspec.ModeSlideshow {
		imageIDs = legacyFallback(specImages(spec), job.ImageMediaItemID)
	}

	attached := attachedByID(job)
	byID, err := fetchMissing(ctx, store, attached, append(append([]int64{}, audioIDs...), imageIDs...))
	if err != nil {
		return nil, err
	}

	audioItems, err := collect(byID, audioIDs, "audio/")
	if err != nil {
		return nil, err
	}
	imageItems, err := collect(byID, imageIDs, "image/")
	if err != nil {
		return nil, err
	}

	return &Resolved{Spec: spec, AudioItems: audioItems, ImageItems: imageItems}, nil
}

func specAudios(spec *renderspec.Spec) []int64 {
	if spec == nil {
		return nil
	}
	return spec.Audios
}

func specImages(spec *renderspec.Spec) []int64 {
	if spec == nil {
		return nil
	}
	return spec.Images
}

// legacyFallback prefers the spec's ID list; jobs created before spec lists
// existed carry a single media column instead.
func legacyFallback(ids []int64, legacy *int64) []int64 {
	if len(ids) > 0 {
		return ids
	}
	if legacy != nil {
		return []int64{*legacy}
	}
	return nil
}

func attachedByID(job *models.RenderJob) map[int64]models.MediaItem {
	out := make(map[int64]models.MediaItem, 2)
	if job.AudioItem != nil {
		out[job.AudioItem.ID] = *job.AudioItem
	}
	if job.ImageItem != nil {
		out[job.ImageItem.ID] = *job.ImageItem
	}
	return out
}

func fetchMissing(ctx context.Context, store Store, have map[int64]models.MediaItem, wanted []int64) (map[int64]models.MediaItem, error) {
	var missing []int64
	seen := make(map[int64]bool, len(wanted))
	for _, id := range wanted {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		items, err := store.GetByIDs(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			have[item.ID] = item
		}
	}
	return have, nil
}

func collect(byID map[int64]models.MediaItem, ids []int64, mimePrefix string) ([]models.MediaItem, error) {
	var out []models.MediaItem
	for _, id := range ids {
		item, ok := byID[id]
		if !ok {
			return nil, errors.Newf(errors.CodeNotFound, "media item not found: %d", id).
				WithField("media_id", id)
		}
		if !strings.HasPrefix(item.MimeType, mimePrefix) {
			return nil, errors.InvalidMimeType(id, mimePrefix, item.MimeType)
		}
		out = append(out, item)
	}
	return out, nil
}
