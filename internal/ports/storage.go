package ports

import (
	"context"
	"io"
	"time"
)

// Entry describes one remote object as reported by the storage service.
type Entry struct {
	ID           string
	Name         string
	MimeType     string
	IsFolder     bool
	SizeBytes    int64
	ModifiedTime time.Time
	ParentID     string
}

// ListPage is one page of a folder listing.
type ListPage struct {
	Entries       []Entry
	NextPageToken string
}

// RemoteStorage is the cloud-storage collaborator (gdrive, localfs, ...).
// Implementations are opaque remote services; callers treat every method as a
// suspension point.
type RemoteStorage interface {
	Provider() string

	List(ctx context.Context, folderID, pageToken string) (ListPage, error)
	Get(ctx context.Context, fileID string) (Entry, error)
	Download(ctx context.Context, fileID string) (io.ReadCloser, error)
	Upload(ctx context.Context, folderID, name, mimeType string, r io.Reader) (Entry, error)
}

// PublishRequest carries one rendered video to the video platform.
type PublishRequest struct {
	Title       string
	Description string
	Privacy     string
	MimeType    string
	Body        io.Reader
}

// Publisher is the video-platform collaborator. Publish returns the
// platform-assigned video ID.
type Publisher interface {
	Publish(ctx context.Context, req PublishRequest) (string, error)
}
