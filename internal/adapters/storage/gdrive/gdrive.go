package gdrive

import (
	"context"
	"fmt"
	"io"
	"time"

	"driftcast/internal/ports"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Client implements ports.RemoteStorage backed by Google Drive.
// Entry IDs are Drive fileIds throughout.
type Client struct {
	srv *drive.Service
}

func NewClient(srv *drive.Service) *Client {
	return &Client{srv: srv}
}

func (c *Client) Provider() string { return "gdrive" }

// List returns one page of a folder's direct children. Trashed files are
// excluded; the crawler treats a vanished file as missing, not deleted.
func (c *Client) List(ctx context.Context, folderID, pageToken string) (ports.ListPage, error) {
	call := c.srv.Files.List().
		Q(fmt.Sprintf("'%s' in parents and trashed = false", folderID)).
		Fields("nextPageToken, files(id, name, mimeType, size, modifiedTime, parents)").
		PageSize(100).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	res, err := call.Do()
	if err != nil {
		return ports.ListPage{}, fmt.Errorf("gdrive list %s: %w", folderID, err)
	}

	page := ports.ListPage{NextPageToken: res.NextPageToken}
	for _, f := range res.Files {
		page.Entries = append(page.Entries, toEntry(f, folderID))
	}
	return page, nil
}

func (c *Client) Get(ctx context.Context, fileID string) (ports.Entry, error) {
	f, err := c.srv.Files.Get(fileID).
		Fields("id, name, mimeType, size, modifiedTime, parents").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return ports.Entry{}, fmt.Errorf("gdrive get %s: %w", fileID, err)
	}
	return toEntry(f, ""), nil
}

func (c *Client) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	res, err := c.srv.Files.Get(fileID).
		SupportsAllDrives(true).
		Context(ctx).
		Download()
	if err != nil {
		return nil, fmt.Errorf("gdrive download %s: %w", fileID, err)
	}
	return res.Body, nil
}

func (c *Client) Upload(ctx context.Context, folderID, name, mimeType string, r io.Reader) (ports.Entry, error) {
	file := &drive.File{Name: name}
	if folderID != "" {
		file.Parents = []string{folderID}
	}

	call := c.srv.Files.Create(file).
		Fields("id, name, mimeType, size").
		SupportsAllDrives(true)
	if mimeType != "" {
		call = call.Media(r, googleapi.ContentType(mimeType))
	} else {
		call = call.Media(r)
	}

	created, err := call.Context(ctx).Do()
	if err != nil {
		return ports.Entry{}, fmt.Errorf("gdrive upload failed: %w", err)
	}
	return toEntry(created, folderID), nil
}

func toEntry(f *drive.File, parentID string) ports.Entry {
	if parentID == "" && len(f.Parents) > 0 {
		parentID = f.Parents[0]
	}

	modified, _ := time.Parse(time.RFC3339, f.ModifiedTime)

	return ports.Entry{
		ID:           f.Id,
		Name:         f.Name,
		MimeType:     f.MimeType,
		IsFolder:     f.MimeType == folderMimeType,
		SizeBytes:    f.Size,
		ModifiedTime: modified,
		ParentID:     parentID,
	}
}
