package media

import (
	"context"
	"testing"

	"driftcast/internal/models"
	"driftcast/internal/pkg/errors"
	"driftcast/internal/renderspec"
)

type fakeStore struct {
	items map[int64]models.MediaItem
	calls [][]int64
}

func (f *fakeStore) GetByIDs(ctx context.Context, ids []int64) ([]models.MediaItem, error) {
	f.calls = append(f.calls, ids)
	var out []models.MediaItem
	for _, id := range ids {
		if item, ok := f.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func audioItem(id int64) models.MediaItem {
	return models.MediaItem{ID: id, RemoteID: "r", MimeType: "audio/mpeg", Status: models.MediaActive}
}

func imageItem(id int64) models.MediaItem {
	return models.MediaItem{ID: id, RemoteID: "r", MimeType: "image/png", Status: models.MediaActive}
}

func TestResolveOrdersItemsAsSpec(t *testing.T) {
	store := &fakeStore{items: map[int64]models.MediaItem{
		1: imageItem(1), 2: imageItem(2),
		5: audioItem(5), 6: audioItem(6),
	}}

	spec := &renderspec.Spec{
		Mode:            renderspec.ModeSlideshow,
		Images:          []int64{2, 1},
		Audios:          []int64{6, 5},
		IntervalSeconds: 3,
	}

	resolved, err := Resolve(context.Background(), store, &models.RenderJob{}, spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(resolved.AudioItems) != 2 || resolved.AudioItems[0].ID != 6 || resolved.AudioItems[1].ID != 5 {
		t.Errorf("audio items out of order: %+v", resolved.AudioItems)
	}
	if len(resolved.ImageItems) != 2 || resolved.ImageItems[0].ID != 2 || resolved.ImageItems[1].ID != 1 {
		t.Errorf("image items out of order: %+v", resolved.ImageItems)
	}
}

func TestResolveReusesAttachedItems(t *testing.T) {
	store := &fakeStore{items: map[int64]models.MediaItem{}}

	audioID := int64(5)
	attached := audioItem(audioID)
	job := &models.RenderJob{
		AudioMediaItemID: &audioID,
		AudioItem:        &attached,
	}

	resolved, err := Resolve(context.Background(), store, job, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resolved.AudioItems) != 1 || resolved.AudioItems[0].ID != audioID {
		t.Fatalf("expected attached audio item, got %+v", resolved.AudioItems)
	}
	if len(store.calls) != 0 {
		t.Errorf("expected no store lookups when relations are attached, got %v", store.calls)
	}
}

func TestResolveLegacyFallback(t *testing.T) {
	audioID, imageID := int64(5), int64(9)
	store := &fakeStore{items: map[int64]models.MediaItem{
		audioID: audioItem(audioID),
		imageID: imageItem(imageID),
	}}

	job := &models.RenderJob{
		AudioMediaItemID: &audioID,
		ImageMediaItemID: &imageID,
	}

	resolved, err := Resolve(context.Background(), store, job, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resolved.AudioItems) != 1 || resolved.AudioItems[0].ID != audioID {
		t.Errorf("expected legacy audio resolved, got %+v", resolved.AudioItems)
	}
	if len(resolved.ImageItems) != 1 || resolved.ImageItems[0].ID != imageID {
		t.Errorf("expected legacy image resolved, got %+v", resolved.ImageItems)
	}
}

func TestResolveNotFound(t *testing.T) {
	store := &fakeStore{items: map[int64]models.MediaItem{}}

	spec := &renderspec.Spec{
		Mode:            renderspec.ModeWaveform,
		Audios:          []int64{404},
		BackgroundColor: "#000",
		WaveColor:       "#fff",
		WaveStyle:       renderspec.WaveLine,
	}

	_, err := Resolve(context.Background(), store, &models.RenderJob{}, spec)
	if !errors.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestResolveWrongMimeType(t *testing.T) {
	store := &fakeStore{items: map[int64]models.MediaItem{
		7: {ID: 7, MimeType: "video/mp4", Status: models.MediaActive},
	}}

	spec := &renderspec.Spec{
		Mode:            renderspec.ModeWaveform,
		Audios:          []int64{7},
		BackgroundColor: "#000000",
		WaveColor:       "#00ffcc",
		WaveStyle:       renderspec.WaveBars,
	}

	_, err := Resolve(context.Background(), store, &models.RenderJob{}, spec)
	if !errors.IsCode(err, errors.CodeInvalidMime) {
		t.Fatalf("expected INVALID_MIME_TYPE, got %v", err)
	}
}

func TestResolveNoAudioAnywhere(t *testing.T) {
	store := &fakeStore{items: map[int64]models.MediaItem{}}

	_, err := Resolve(context.Background(), store, &models.RenderJob{}, nil)
	if !errors.IsInvalidSpec(err) {
		t.Fatalf("expected INVALID_SPEC, got %v", err)
	}
}
