// Package storage builds the configured RemoteStorage and Publisher
// implementations.
package storage

import (
	"context"
	"fmt"

	"driftcast/internal/adapters/storage/gdrive"
	"driftcast/internal/adapters/storage/localfs"
	"driftcast/internal/config"
	"driftcast/internal/ports"
	"driftcast/internal/publish"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

func NewRemoteStorage(ctx context.Context, cfg config.DriveConfig) (ports.RemoteStorage, error) {
	switch cfg.Provider {
	case "localfs":
		if cfg.LocalRoot == "" {
			return nil, fmt.Errorf("localfs storage requires a local root")
		}
		return localfs.New(cfg.LocalRoot), nil

	case "gdrive":
		return newGDrive(ctx, cfg)

	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
}

func newGDrive(ctx context.Context, cfg config.DriveConfig) (ports.RemoteStorage, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, fmt.Errorf("gdrive storage requires client id, client secret and refresh token")
	}

	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveScope},
	}

	tok := &oauth2.Token{RefreshToken: cfg.RefreshToken}
	httpClient := conf.Client(ctx, tok)

	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}
	return gdrive.NewClient(srv), nil
}

// NewPublisher builds the YouTube publisher, or nil when publishing is
// disabled.
func NewPublisher(ctx context.Context, cfg config.YouTubeConfig) (ports.Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, fmt.Errorf("youtube publishing requires client id, client secret and refresh token")
	}

	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope},
	}

	tok := &oauth2.Token{RefreshToken: cfg.RefreshToken}
	httpClient := conf.Client(ctx, tok)

	srv, err := youtube.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}
	return publish.NewYouTube(srv), nil
}
