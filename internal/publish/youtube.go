// Package publish posts rendered videos to YouTube.
package publish

import (
	"context"
	"fmt"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/youtube/v3"

	"driftcast/internal/ports"
)

const defaultPrivacy = "private"

// YouTube implements ports.Publisher through the YouTube Data API.
type YouTube struct {
	srv *youtube.Service
}

func NewYouTube(srv *youtube.Service) *YouTube {
	return &YouTube{srv: srv}
}

// Publish inserts the video and returns the platform-assigned ID. An invalid
// privacy value falls back to private rather than risking a public upload.
func (y *YouTube) Publish(ctx context.Context, req ports.PublishRequest) (string, error) {
	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       req.Title,
			Description: req.Description,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: normalizePrivacy(req.Privacy),
		},
	}

	call := y.srv.Videos.Insert([]string{"snippet", "status"}, video)
	if req.MimeType != "" {
		call = call.Media(req.Body, googleapi.ContentType(req.MimeType))
	} else {
		call = call.Media(req.Body)
	}

	inserted, err := call.Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("youtube insert failed: %w", err)
	}
	return inserted.Id, nil
}

func normalizePrivacy(p string) string {
	switch p {
	case "public", "unlisted", "private":
		return p
	default:
		return defaultPrivacy
	}
}
