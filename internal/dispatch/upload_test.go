package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"driftcast/internal/models"
	"driftcast/internal/ports"
)

type fakeUploadStore struct {
	jobs      map[string]*models.UploadJob
	failed    map[string]string
	published map[string]string
}

func newFakeUploadStore() *fakeUploadStore {
	return &fakeUploadStore{
		jobs:      make(map[string]*models.UploadJob),
		failed:    make(map[string]string),
		published: make(map[string]string),
	}
}

func (s *fakeUploadStore) Get(ctx context.Context, id string) (*models.UploadJob, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("no such job %q", id)
	}
	return j, nil
}

func (s *fakeUploadStore) MarkFailed(ctx context.Context, id, message string) error {
	s.failed[id] = message
	return nil
}

func (s *fakeUploadStore) CompletePublished(ctx context.Context, id, videoID string) error {
	s.published[id] = videoID
	return nil
}

type fakeDownloader struct {
	files map[string][]byte
}

func (s *fakeDownloader) Provider() string { return "fake" }

func (s *fakeDownloader) List(ctx context.Context, folderID, pageToken string) (ports.ListPage, error) {
	return ports.ListPage{}, nil
}

func (s *fakeDownloader) Get(ctx context.Context, fileID string) (ports.Entry, error) {
	return ports.Entry{ID: fileID}, nil
}

func (s *fakeDownloader) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	data, ok := s.files[fileID]
	if !ok {
		return nil, fmt.Errorf("no such file %q", fileID)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeDownloader) Upload(ctx context.Context, folderID, name, mimeType string, r io.Reader) (ports.Entry, error) {
	return ports.Entry{}, fmt.Errorf("not supported")
}

type fakePublisher struct {
	requests []ports.PublishRequest
	err      error
}

func (p *fakePublisher) Publish(ctx context.Context, req ports.PublishRequest) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.requests = append(p.requests, req)
	return fmt.Sprintf("vid-%d", len(p.requests)), nil
}

func uploadFixture(t *testing.T) (*fakeQueue, *fakeUploadStore, *fakeDownloader, *fakePublisher, *UploadDispatcher) {
	t.Helper()

	q := newFakeQueue()
	store := newFakeUploadStore()
	storage := &fakeDownloader{files: map[string][]byte{"r-video-1": []byte("mp4")}}
	publisher := &fakePublisher{}

	d := NewUploadDispatcher(NewClaimer(q, 5, nil), store, storage, publisher, nil)
	return q, store, storage, publisher, d
}

func TestUploadDispatcherPublishes(t *testing.T) {
	q, store, _, publisher, d := uploadFixture(t)
	q.requesters["alice"] = []string{"u1"}
	store.jobs["u1"] = &models.UploadJob{
		ID:          "u1",
		MediaItemID: 7,
		Title:       "Mix #42",
		Description: "weekly mix",
		Privacy:     "unlisted",
		MediaItem:   &models.MediaItem{ID: 7, RemoteID: "r-video-1", MimeType: "video/mp4"},
	}

	done, err := d.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if done != 1 {
		t.Fatalf("expected 1 published job, got %d", done)
	}

	if store.published["u1"] != "vid-1" {
		t.Errorf("expected vid-1 recorded, got %q", store.published["u1"])
	}
	req := publisher.requests[0]
	if req.Title != "Mix #42" || req.Privacy != "unlisted" {
		t.Errorf("publish request not built from the job: %+v", req)
	}
}

func TestUploadDispatcherFailureIsolation(t *testing.T) {
	q, store, _, _, d := uploadFixture(t)
	q.requesters["alice"] = []string{"u-bad", "u-good"}
	// u-bad has no media item attached; u-good is fine.
	store.jobs["u-bad"] = &models.UploadJob{ID: "u-bad", MediaItemID: 99}
	store.jobs["u-good"] = &models.UploadJob{
		ID:          "u-good",
		MediaItemID: 7,
		MediaItem:   &models.MediaItem{ID: 7, RemoteID: "r-video-1", MimeType: "video/mp4"},
	}

	done, err := d.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	if done != 1 {
		t.Errorf("expected 1 published job, got %d", done)
	}
	if _, ok := store.failed["u-bad"]; !ok {
		t.Error("broken job was not marked failed")
	}
	if store.published["u-good"] != "vid-1" {
		t.Errorf("healthy job not published, got %q", store.published["u-good"])
	}
}

func TestUploadDispatcherPublishError(t *testing.T) {
	q, store, _, publisher, d := uploadFixture(t)
	publisher.err = fmt.Errorf("quota exceeded")
	q.requesters["alice"] = []string{"u1"}
	store.jobs["u1"] = &models.UploadJob{
		ID:          "u1",
		MediaItemID: 7,
		MediaItem:   &models.MediaItem{ID: 7, RemoteID: "r-video-1", MimeType: "video/mp4"},
	}

	done, err := d.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if done != 0 {
		t.Errorf("expected no published jobs, got %d", done)
	}
	if msg := store.failed["u1"]; msg == "" {
		t.Error("publish failure was not persisted")
	}
	if len(store.published) != 0 {
		t.Error("failed job must not be completed")
	}
}
