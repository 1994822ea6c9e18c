// Package models holds the persisted domain records shared across components.
package models

import "time"

// MediaStatus is the lifecycle state of a synced media file.
type MediaStatus string

const (
	MediaActive   MediaStatus = "ACTIVE"
	MediaMissing  MediaStatus = "MISSING"
	MediaDeleted  MediaStatus = "DELETED"
	MediaUploaded MediaStatus = "UPLOADED"
)

// JobStatus is the lifecycle state shared by render and upload jobs.
type JobStatus string

const (
	JobPending JobStatus = "PENDING"
	JobRunning JobStatus = "RUNNING"
	JobSuccess JobStatus = "SUCCESS"
	JobFailed  JobStatus = "FAILED"
)

// MediaItem identifies one remote file known to the sync crawler.
// RemoteID is the opaque Drive file ID; it is the idempotency key for upserts.
type MediaItem struct {
	ID         int64
	RemoteID   string
	Name       string
	MimeType   string
	SizeBytes  int64
	FolderPath *string
	Status     MediaStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RenderJob is a request to render one video from stored media.
// Spec carries the serialized render spec as written by the API layer;
// AudioMediaItemID/ImageMediaItemID are the legacy single-media columns kept
// for jobs created before spec ID lists existed.
type RenderJob struct {
	ID                string
	Spec              []byte
	AudioMediaItemID  *int64
	ImageMediaItemID  *int64
	OutputMediaItemID *int64
	RequestedBy       string
	Status            JobStatus
	ErrorMessage      *string
	ScheduledFor      *time.Time
	CreatedAt         time.Time
	StartedAt         *time.Time
	FinishedAt        *time.Time

	// Attached relations, loaded by the store when requested.
	AudioItem *MediaItem
	ImageItem *MediaItem
}

// UploadJob publishes an already-rendered media item to the video platform.
type UploadJob struct {
	ID           string
	MediaItemID  int64
	Title        string
	Description  string
	Privacy      string
	RequestedBy  string
	Status       JobStatus
	ErrorMessage *string
	ScheduledFor *time.Time
	CreatedAt    time.Time
	FinishedAt   *time.Time
	VideoID      *string

	MediaItem *MediaItem
}

// SchedulerLease is the singleton row that elects the leading instance.
type SchedulerLease struct {
	Name      string
	Holder    string
	ExpiresAt time.Time
	UpdatedAt time.Time
}
